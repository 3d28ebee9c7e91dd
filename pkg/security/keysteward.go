package security

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"sync"

	"github.com/cuemby/dtnd/pkg/eid"
)

// KeySteward resolves the key material each ciphersuite needs, keyed by the
// endpoint the key belongs to. Processors never generate or cache keys
// themselves; a steward lets tests substitute deterministic keys and lets a
// real deployment bind to an HSM or a config-loaded keyring instead.
type KeySteward interface {
	// HMACKey returns the preshared symmetric key BA1 uses with peer.
	HMACKey(peer eid.EID) ([]byte, error)
	// RSAPrivateKey returns this node's own signing/decryption key, used
	// when self is the security source (PI2 sign) or security destination
	// (PC3/ES4 unwrap).
	RSAPrivateKey(self eid.EID) (*rsa.PrivateKey, error)
	// RSAPublicKey returns peer's public key, used to verify (PI2) or wrap
	// a session key for (PC3/ES4).
	RSAPublicKey(peer eid.EID) (*rsa.PublicKey, error)
}

// InMemoryKeySteward is a process-wide keyed map, the deployment KeySteward
// used when no HSM is configured and the test-only implementation in one.
// Keys are never persisted; pkg/config loads them from the node's YAML
// configuration at startup (Kind: SecurityKey resources).
type InMemoryKeySteward struct {
	mu      sync.RWMutex
	hmac    map[string][]byte
	rsaPriv map[string]*rsa.PrivateKey
	rsaPub  map[string]*rsa.PublicKey
}

// NewInMemoryKeySteward returns an empty steward; keys are added with
// SetHMACKey/SetRSAPrivateKey/SetRSAPublicKey or GenerateRSAKeyPair.
func NewInMemoryKeySteward() *InMemoryKeySteward {
	return &InMemoryKeySteward{
		hmac:    make(map[string][]byte),
		rsaPriv: make(map[string]*rsa.PrivateKey),
		rsaPub:  make(map[string]*rsa.PublicKey),
	}
}

func (s *InMemoryKeySteward) SetHMACKey(peer eid.EID, key []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hmac[peer.String()] = append([]byte(nil), key...)
}

func (s *InMemoryKeySteward) SetRSAPrivateKey(self eid.EID, key *rsa.PrivateKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rsaPriv[self.String()] = key
	s.rsaPub[self.String()] = &key.PublicKey
}

func (s *InMemoryKeySteward) SetRSAPublicKey(peer eid.EID, key *rsa.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rsaPub[peer.String()] = key
}

// GenerateRSAKeyPair creates and registers a fresh 2048-bit key pair for
// self, returning the public key so it can be handed out of band to peers
// (e.g. via pkg/config's SecurityKey apply kind).
func (s *InMemoryKeySteward) GenerateRSAKeyPair(self eid.EID) (*rsa.PublicKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("security: generate rsa key: %w", err)
	}
	s.SetRSAPrivateKey(self, key)
	return &key.PublicKey, nil
}

func (s *InMemoryKeySteward) HMACKey(peer eid.EID) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.hmac[peer.String()]
	if !ok {
		return nil, fmt.Errorf("security: no HMAC key for %s", peer)
	}
	return key, nil
}

func (s *InMemoryKeySteward) RSAPrivateKey(self eid.EID) (*rsa.PrivateKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.rsaPriv[self.String()]
	if !ok {
		return nil, fmt.Errorf("security: no RSA private key for %s", self)
	}
	return key, nil
}

func (s *InMemoryKeySteward) RSAPublicKey(peer eid.EID) (*rsa.PublicKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.rsaPub[peer.String()]
	if !ok {
		return nil, fmt.Errorf("security: no RSA public key for %s", peer)
	}
	return key, nil
}
