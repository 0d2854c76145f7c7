package sframe

import "errors"

// Sentinel errors for the SFrame codec and sender/receiver contexts. One
// variable per named failure mode of spec Section 7.
var (
	// ErrHeaderMalformed is returned when header bytes do not decode, or
	// declare a length that would exceed the record.
	ErrHeaderMalformed = errors.New("sframe: malformed header")

	// ErrAuthFailed is returned when the AEAD tag does not verify. The
	// frame is dropped; counters are not updated.
	ErrAuthFailed = errors.New("sframe: authentication failed")

	// ErrReplay is returned when a record's counter falls outside the
	// replay window, or its bit in the window is already set.
	ErrReplay = errors.New("sframe: replay detected")

	// ErrWrongKey is returned when a record's KID does not match any KID
	// known to the receiving context.
	ErrWrongKey = errors.New("sframe: wrong key identifier")

	// ErrCounterExhausted is returned when the sender's frame counter
	// would roll over past 2^64-1. The sender must not be used again; an
	// epoch rotation is required.
	ErrCounterExhausted = errors.New("sframe: frame counter exhausted")

	// ErrRecordTooShort is returned when a record is shorter than the
	// minimum header-plus-tag length.
	ErrRecordTooShort = errors.New("sframe: record shorter than header plus tag")

	// ErrInvalidKeySize is returned when the AEAD suite selected for a
	// context rejects the supplied key size. The default suite's key is a
	// fixed-size [16]byte array matching aead.KeySize exactly, so this
	// only fires for a suite registered via aead.Register with a
	// different key-size requirement.
	ErrInvalidKeySize = errors.New("sframe: invalid key or salt size")

	// ErrPlaintextTooLarge is returned when a plaintext exceeds the
	// 2^20-byte bound of the media-pipeline contract (spec Section 6).
	ErrPlaintextTooLarge = errors.New("sframe: plaintext exceeds maximum frame size")
)
