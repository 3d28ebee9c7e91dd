// Package security implements the four BPv6 security ciphersuites as block
// processors: BA1 (bundle authentication, HMAC-SHA1), PI2 (payload
// integrity, RSA/SHA-256), PC3 (payload confidentiality, AES-128-GCM with an
// RSA-wrapped session key) and ES4 (extension-block confidentiality, same
// crypto as PC3 applied per block via encapsulation).
//
// All four share the security-parameters/security-result wire shape: a
// typed item list of {type, length, value} entries (IV, salt, key-info,
// ICV, fragment-range, encapsulated-block), SDNV-length-prefixed. Key
// material is never looked up directly; every processor is constructed with
// a KeySteward so tests can inject deterministic keys and real deployments
// can bind to an HSM.
package security
