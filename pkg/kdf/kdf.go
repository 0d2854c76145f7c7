// Package kdf implements the HKDF-SHA-256 key schedule used to derive
// per-sender SFrame traffic keys from an MLS epoch secret.
package kdf

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Sizes of the derived material for one SFrame sender.
const (
	// AEADKeySize is the AES-128-GCM key size in bytes.
	AEADKeySize = 16

	// SaltSize is the nonce salt size in bytes (matches the AEAD nonce size).
	SaltSize = 12

	// senderSecretSize is AEADKeySize+SaltSize: the single Expand call emits
	// exactly this many bytes, split with no remainder discarded (the frozen
	// choice for the 32-byte-split Open Question, see SPEC_FULL.md Section 9).
	senderSecretSize = AEADKeySize + SaltSize

	// EpochSecretSize is the expected length of the MLS epoch secret.
	EpochSecretSize = 32
)

var (
	// ErrInvalidEpochSecret is returned when the epoch secret is not 32 bytes.
	ErrInvalidEpochSecret = errors.New("kdf: epoch secret must be 32 bytes")
)

// ZeroSalt is the constant all-zero 32-byte HKDF-Extract salt mandated by
// spec Section 4.2.
var ZeroSalt = make([]byte, sha256.Size)

// Extract performs HKDF-Extract(ZeroSalt, epochSecret) -> PRK.
func Extract(epochSecret []byte) ([]byte, error) {
	if len(epochSecret) != EpochSecretSize {
		return nil, ErrInvalidEpochSecret
	}
	return hkdf.Extract(sha256.New, epochSecret, ZeroSalt), nil
}

// Expand performs HKDF-Expand(prk, info, length) and returns exactly length
// bytes of output keying material.
func Expand(prk, info []byte, length int) ([]byte, error) {
	reader := hkdf.Expand(sha256.New, prk, info)
	out := make([]byte, length)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, fmt.Errorf("kdf: expand: %w", err)
	}
	return out, nil
}

// SenderLabel returns the UTF-8 HKDF info string for a given leaf index,
// verbatim per spec Section 4.2: "sframe/sender/<leaf-index-decimal>".
func SenderLabel(leafIndex uint32) []byte {
	return []byte(fmt.Sprintf("sframe/sender/%d", leafIndex))
}

// DeriveSenderSecret derives the AEAD key and nonce salt for the sender at
// leafIndex under the given epoch secret. The same label is used for TX and
// RX derivation, so any participant deriving for leaf i obtains identical
// key material (spec Section 4.2).
//
// The 28-byte Expand output is split key||salt with no discarded bytes: this
// is the frozen choice for the Open Question in spec Section 9.
func DeriveSenderSecret(epochSecret []byte, leafIndex uint32) (key [AEADKeySize]byte, salt [SaltSize]byte, err error) {
	prk, err := Extract(epochSecret)
	if err != nil {
		return key, salt, err
	}

	okm, err := Expand(prk, SenderLabel(leafIndex), senderSecretSize)
	if err != nil {
		return key, salt, err
	}

	copy(key[:], okm[:AEADKeySize])
	copy(salt[:], okm[AEADKeySize:])

	// okm held transient key material; zeroise before it falls out of scope.
	for i := range okm {
		okm[i] = 0
	}

	return key, salt, nil
}
