package sframe

import (
	"errors"
	"fmt"
	"sync"

	"github.com/backkem/sframe/pkg/aead"
)

// MaxPlaintextSize bounds the plaintext accepted by Seal, matching the
// media-pipeline contract of spec Section 6.
const MaxPlaintextSize = 1 << 20

// SenderContext is the transmit side of one local participant: one key and
// salt, a single monotonically increasing frame counter shared across both
// media kinds, and the two KIDs (audio, video) that counter's frames carry
// (spec Section 3). There is exactly one SenderContext per local
// participant per epoch.
//
// This is a concrete, receive-incapable type — spec Section 9's redesign
// flag calls for splitting the teacher corpus's duck-typed full-duplex
// peer into distinct sender and receiver types; SenderContext never holds
// decryption key material.
type SenderContext struct {
	mu sync.Mutex

	suite aead.AEAD
	key   [16]byte
	salt  [SaltSize]byte

	kidAudio uint64
	kidVideo uint64

	counter   uint64
	exhausted bool
}

// NewSenderContext constructs a SenderContext bound to kidAudio/kidVideo
// using the given AEAD suite, key and nonce salt.
func NewSenderContext(suite aead.Suite, key [16]byte, salt [SaltSize]byte, kidAudio, kidVideo uint64) (*SenderContext, error) {
	a, err := aead.New(suite, key[:])
	if err != nil {
		if errors.Is(err, aead.ErrInvalidKeySize) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKeySize, err)
		}
		return nil, err
	}
	return &SenderContext{
		suite:    a,
		key:      key,
		salt:     salt,
		kidAudio: kidAudio,
		kidVideo: kidVideo,
	}, nil
}

// Seal encrypts plaintext for the given media kind and returns the complete
// SFrame record: header || ciphertext || tag (spec Section 4.5).
//
// Seal operations on one context are serialized by mu; the counter
// increment is atomic with the nonce use, so two concurrent seals never
// observe the same counter value. A failed seal does not consume the
// counter.
func (s *SenderContext) Seal(kind MediaKind, plaintext []byte) ([]byte, error) {
	if len(plaintext) > MaxPlaintextSize {
		return nil, ErrPlaintextTooLarge
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exhausted {
		return nil, ErrCounterExhausted
	}

	kid := s.kidAudio
	if kind == MediaVideo {
		kid = s.kidVideo
	}

	ctr := s.counter
	header := Header{KID: kid, Counter: ctr}
	headerBytes := header.Encode()

	nonce := BuildNonce(s.salt, ctr)
	sealed, err := s.suite.Seal(nonce[:], headerBytes, plaintext)
	if err != nil {
		return nil, err
	}

	// Increment only after a successful seal; mark exhausted if the next
	// counter would wrap past 2^64-1 (spec Section 4.5 step 2/6).
	if ctr == ^uint64(0) {
		s.exhausted = true
	} else {
		s.counter = ctr + 1
	}

	record := make([]byte, 0, len(headerBytes)+len(sealed))
	record = append(record, headerBytes...)
	record = append(record, sealed...)
	return record, nil
}

// Counter returns the current (next-to-use) frame counter. Exposed for
// tests and for operator diagnostics; not part of the media-pipeline
// contract.
func (s *SenderContext) Counter() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counter
}

// SetCounter overrides the frame counter. Intended for tests exercising
// counter-exhaustion boundaries (spec scenario S6); production callers
// never need this.
func (s *SenderContext) SetCounter(ctr uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter = ctr
	s.exhausted = false
}

// Zeroize overwrites key material so no byte of the key or salt remains in
// the context's memory (spec Section 8, zeroisation property).
func (s *SenderContext) Zeroize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.key {
		s.key[i] = 0
	}
	for i := range s.salt {
		s.salt[i] = 0
	}
	s.suite = nil
}
