package sframe

import (
	"errors"
	"fmt"
	"sync"

	"github.com/backkem/sframe/pkg/aead"
)

// ReceiverContext is the receive side for one remote participant: one key
// and salt, the pair of KIDs (audio, video) that remote leaf may use, and a
// single replay window shared across both (spec Section 3's entity model
// binds a ReceiverContext to an (epoch, remote leaf index) pair, not a
// single KID; since SenderContext advances one counter shared across both
// media kinds, the matching ReceiverContext must validate against either
// KID of the pair while tracking one shared counter sequence, not two
// independent ones).
type ReceiverContext struct {
	mu sync.Mutex

	suite aead.AEAD
	key   [16]byte
	salt  [SaltSize]byte

	kidAudio uint64
	kidVideo uint64

	window *replayWindow
}

// NewReceiverContext constructs a ReceiverContext bound to kidAudio/kidVideo
// using the given AEAD suite, key, nonce salt and replay-window width.
// A width of 0 selects DefaultReplayWindowSize.
func NewReceiverContext(suite aead.Suite, key [16]byte, salt [SaltSize]byte, kidAudio, kidVideo uint64, windowSize uint64) (*ReceiverContext, error) {
	a, err := aead.New(suite, key[:])
	if err != nil {
		if errors.Is(err, aead.ErrInvalidKeySize) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKeySize, err)
		}
		return nil, err
	}
	return &ReceiverContext{
		suite:    a,
		key:      key,
		salt:     salt,
		kidAudio: kidAudio,
		kidVideo: kidVideo,
		window:   newReplayWindow(windowSize),
	}, nil
}

// Matches reports whether kid belongs to this context's sender (either its
// audio or its video KID).
func (r *ReceiverContext) Matches(kid uint64) bool {
	return kid == r.kidAudio || kid == r.kidVideo
}

// Open validates and decrypts one SFrame record (spec Section 4.6):
//
//  1. Decode the header; malformed headers are rejected outright.
//  2. Reject a KID that belongs to neither of this context's two KIDs.
//  3. Check the counter against the replay window, provisionally admitting
//     it.
//  4. Build the nonce and attempt the AEAD open, using the raw header bytes
//     as associated data.
//  5. On AEAD failure, undo the provisional replay-window update and
//     return ErrAuthFailed, so a record that merely failed authentication
//     never permanently consumes a counter slot.
//  6. On success, return the recovered plaintext.
func (r *ReceiverContext) Open(record []byte) ([]byte, error) {
	hdr, n, err := DecodeHeader(record)
	if err != nil {
		return nil, err
	}
	if len(record)-n < aead.TagSize {
		return nil, ErrRecordTooShort
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.Matches(hdr.KID) {
		return nil, ErrWrongKey
	}

	snap, err := r.window.admit(hdr.Counter)
	if err != nil {
		return nil, err
	}

	nonce := BuildNonce(r.salt, hdr.Counter)
	headerBytes := record[:n]
	sealed := record[n:]

	plaintext, err := r.suite.Open(nonce[:], headerBytes, sealed)
	if err != nil {
		r.window.restore(snap)
		return nil, ErrAuthFailed
	}

	return plaintext, nil
}

// Zeroize overwrites key material so no byte of the key or salt remains in
// the context's memory (spec Section 8, zeroisation property).
func (r *ReceiverContext) Zeroize() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.key {
		r.key[i] = 0
	}
	for i := range r.salt {
		r.salt[i] = 0
	}
	r.suite = nil
}
