// Package aead defines the authenticated-encryption contract used by SFrame
// sender and receiver contexts, with AES-128-GCM as the default, registrable
// suite.
package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
)

// Suite identifies an AEAD algorithm. The suite is fixed for the lifetime of
// a sender/receiver context and is never carried on the wire — both ends
// learn it out of band from the group configuration (spec Section 4.1).
type Suite uint8

const (
	// SuiteAES128GCM is the default suite: AES-128-GCM, 12-byte nonce,
	// 16-byte tag.
	SuiteAES128GCM Suite = iota
)

// String returns a human-readable suite name.
func (s Suite) String() string {
	switch s {
	case SuiteAES128GCM:
		return "AES-128-GCM-SHA256"
	default:
		return fmt.Sprintf("Suite(%d)", uint8(s))
	}
}

// KeySize, NonceSize and TagSize describe the default suite's parameters.
const (
	KeySize   = 16
	NonceSize = 12
	TagSize   = 16
)

var (
	// ErrUnknownSuite is returned when no AEAD constructor is registered for
	// a requested suite identifier.
	ErrUnknownSuite = errors.New("aead: unknown suite")

	// ErrInvalidKeySize is returned when a key of the wrong length is passed
	// to a suite constructor.
	ErrInvalidKeySize = errors.New("aead: invalid key size")

	// ErrAuthFailed is returned by Open when the authentication tag does not
	// verify. Corresponds to spec error taxonomy AuthFailed (spec Section 7).
	ErrAuthFailed = errors.New("aead: authentication failed")
)

// AEAD is the seal/open contract every registered suite must satisfy.
// Seal returns ciphertext||tag; Open consumes ciphertext||tag and returns the
// recovered plaintext or ErrAuthFailed.
type AEAD interface {
	Seal(nonce, aad, plaintext []byte) ([]byte, error)
	Open(nonce, aad, sealed []byte) ([]byte, error)
	NonceSize() int
	Overhead() int
}

// Constructor builds an AEAD instance from a raw key.
type Constructor func(key []byte) (AEAD, error)

// registry maps a suite identifier to its constructor. Alternate suites may
// be registered by identifier (spec Section 4.1); AES-128-GCM is registered
// at init time as the default.
var registry = map[Suite]Constructor{
	SuiteAES128GCM: newAESGCM,
}

// Register installs a constructor for a suite identifier, overriding any
// existing registration. Intended for test doubles and alternate ciphers;
// production code should register suites during process startup, before any
// New call for that suite.
func Register(suite Suite, ctor Constructor) {
	registry[suite] = ctor
}

// New constructs an AEAD instance for the given suite and key.
func New(suite Suite, key []byte) (AEAD, error) {
	ctor, ok := registry[suite]
	if !ok {
		return nil, ErrUnknownSuite
	}
	return ctor(key)
}

// gcmAEAD adapts crypto/cipher.AEAD (stdlib AES-GCM) to the aead.AEAD
// contract, normalizing tag-mismatch errors to ErrAuthFailed so callers
// never need to inspect crypto/cipher error internals.
type gcmAEAD struct {
	cipher cipher.AEAD
}

func newAESGCM(key []byte) (AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aead: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, fmt.Errorf("aead: %w", err)
	}
	return &gcmAEAD{cipher: gcm}, nil
}

func (g *gcmAEAD) Seal(nonce, aad, plaintext []byte) ([]byte, error) {
	if len(nonce) != g.cipher.NonceSize() {
		return nil, fmt.Errorf("aead: invalid nonce size %d", len(nonce))
	}
	return g.cipher.Seal(nil, nonce, plaintext, aad), nil
}

func (g *gcmAEAD) Open(nonce, aad, sealed []byte) ([]byte, error) {
	if len(nonce) != g.cipher.NonceSize() {
		return nil, fmt.Errorf("aead: invalid nonce size %d", len(nonce))
	}
	plaintext, err := g.cipher.Open(nil, nonce, sealed, aad)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

func (g *gcmAEAD) NonceSize() int { return g.cipher.NonceSize() }
func (g *gcmAEAD) Overhead() int  { return g.cipher.Overhead() }
