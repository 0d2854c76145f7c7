package sframe

import "encoding/binary"

// SaltSize and CounterNonceSize describe the nonce-construction inputs and
// output (spec Section 4.4); both match the default AEAD suite's 12-byte
// nonce (pkg/aead.NonceSize).
const (
	SaltSize         = 12
	CounterNonceSize = 12
)

// BuildNonce derives the deterministic per-(key, counter) AEAD nonce: the
// salt XORed with the frame counter, zero-padded on the left to the salt's
// width (spec Section 4.4). Distinct counters under one salt never collide,
// which is the AEAD correctness requirement this construction exists to
// satisfy.
func BuildNonce(salt [SaltSize]byte, counter uint64) [CounterNonceSize]byte {
	var padded [CounterNonceSize]byte
	binary.BigEndian.PutUint64(padded[CounterNonceSize-8:], counter)

	var nonce [CounterNonceSize]byte
	for i := range nonce {
		nonce[i] = salt[i] ^ padded[i]
	}
	return nonce
}
