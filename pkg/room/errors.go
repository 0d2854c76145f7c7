package room

import "errors"

// Manager-level errors.
var (
	// ErrNoContext is returned by Open before any epoch has been
	// installed. Expected during startup; the frame is dropped silently
	// by the caller, not logged as a failure (spec Section 7).
	ErrNoContext = errors.New("room: no context installed")

	// ErrClosed is returned by Seal, Open and Resync once the manager has
	// transitioned to Closed.
	ErrClosed = errors.New("room: manager closed")

	// ErrAlreadyStarted is returned by Start when the manager is not in
	// StateIdle.
	ErrAlreadyStarted = errors.New("room: already started")

	// ErrRekeyTimeout is returned when a rekey fails to complete within
	// the configured RekeyDeadline; the manager zeroises and falls back
	// to Joining rather than staying Active on stale key material (spec
	// Section 4.8).
	ErrRekeyTimeout = errors.New("room: rekey deadline exceeded")

	// ErrUnknownLeaf is returned by OnRemoteLeave for a leaf with no
	// installed receiver context.
	ErrUnknownLeaf = errors.New("room: unknown remote leaf")
)
