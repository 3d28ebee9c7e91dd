// Package blockproc provides the core, non-security BlockProcessor
// implementations: the payload block itself and the age block extension
// (spec §4.2, §3). Security block processors (BA1/PI2/PC3/ES4) live in
// pkg/security since they share a large body of ciphersuite-specific
// parsing that has nothing to do with this package's concerns.
package blockproc
