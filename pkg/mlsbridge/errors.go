package mlsbridge

import "errors"

// Sentinel errors for the MLS bridge client.
var (
	// ErrMlsFailure wraps any non-2xx HTTP response from the MLS server
	// (spec Section 6), or a response body that fails to decode.
	ErrMlsFailure = errors.New("mlsbridge: mls server failure")

	// ErrCancelled is returned when the calling context is cancelled or
	// its deadline expires before the bridge operation completes.
	ErrCancelled = errors.New("mlsbridge: operation cancelled")

	// ErrInvalidSecret is returned when a join response carries a
	// master_secret that does not decode to exactly 32 bytes.
	ErrInvalidSecret = errors.New("mlsbridge: master secret is not 32 bytes")
)
