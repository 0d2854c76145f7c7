package sframe

import (
	"math/rand"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	cases := []Header{
		{KID: 0, Counter: 0},
		{KID: 1, Counter: 1},
		{KID: 255, Counter: 255},
		{KID: 256, Counter: 256},
		{KID: 7012340030, Counter: 0}, // scenario S1
		{KID: 7012340030, Counter: 1},
		{KID: 1<<32 - 1, Counter: 1<<32 - 1},
		{KID: 1<<32 + 1, Counter: 1<<32 + 1},
		{KID: 1<<64 - 1, Counter: 1<<64 - 1}, // scenario S6 boundary
	}

	for _, h := range cases {
		encoded := h.Encode()
		got, n, err := DecodeHeader(encoded)
		if err != nil {
			t.Fatalf("DecodeHeader(%v): %v", h, err)
		}
		if n != len(encoded) {
			t.Fatalf("DecodeHeader consumed %d bytes, want %d", n, len(encoded))
		}
		if got != h {
			t.Fatalf("round trip = %v, want %v", got, h)
		}
	}
}

func TestHeaderRoundTripRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 2000; i++ {
		h := Header{
			KID:     uint64(rng.Uint32()) * uint64(rng.Intn(5)+1),
			Counter: uint64(rng.Uint32()),
		}
		encoded := h.Encode()
		got, n, err := DecodeHeader(encoded)
		if err != nil {
			t.Fatalf("DecodeHeader(%v): %v", h, err)
		}
		if n != len(encoded) || got != h {
			t.Fatalf("round trip mismatch: got %v (%d bytes), want %v", got, n, h)
		}
	}
}

func TestHeaderTrailingBytesIgnored(t *testing.T) {
	h := Header{KID: 3, Counter: 9}
	encoded := append(h.Encode(), 0xAA, 0xBB, 0xCC)

	got, n, err := DecodeHeader(encoded)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if n != len(h.Encode()) {
		t.Fatalf("consumed %d bytes, want header-only length %d", n, len(h.Encode()))
	}
	if got != h {
		t.Fatalf("got %v, want %v", got, h)
	}
}

func TestHeaderDecodeTruncated(t *testing.T) {
	h := Header{KID: 7012340030, Counter: 12345}
	encoded := h.Encode()

	for n := 0; n < len(encoded); n++ {
		if _, _, err := DecodeHeader(encoded[:n]); err != ErrHeaderMalformed {
			t.Fatalf("DecodeHeader(%d bytes) = %v, want ErrHeaderMalformed", n, err)
		}
	}
}

func TestHeaderDecodeRejectsMissingMarker(t *testing.T) {
	if _, _, err := DecodeHeader([]byte{0x00, 0x01, 0x01}); err != ErrHeaderMalformed {
		t.Fatalf("expected ErrHeaderMalformed for missing marker bit, got %v", err)
	}
}

func TestHeaderDecodeRejectsReservedBit(t *testing.T) {
	if _, _, err := DecodeHeader([]byte{0xC0, 0x01, 0x01}); err != ErrHeaderMalformed {
		t.Fatalf("expected ErrHeaderMalformed for reserved bit set, got %v", err)
	}
}

func TestHeaderDecodeEmpty(t *testing.T) {
	if _, _, err := DecodeHeader(nil); err != ErrHeaderMalformed {
		t.Fatalf("expected ErrHeaderMalformed for empty input, got %v", err)
	}
}
