package sframe

import (
	"bytes"
	"errors"
	"testing"

	"github.com/backkem/sframe/pkg/aead"
)

func TestNewReceiverContextWrongKeySizeForSuite(t *testing.T) {
	key, salt := testKeySalt()
	_, err := NewReceiverContext(suite256, key, salt, 1, 2, DefaultReplayWindowSize)
	if !errors.Is(err, ErrInvalidKeySize) {
		t.Fatalf("NewReceiverContext with mismatched suite key size = %v, want ErrInvalidKeySize", err)
	}
}

func TestReceiverOpenRecordTooShort(t *testing.T) {
	_, receiver := newPair(t, 1, 2)

	hdr := Header{KID: 1, Counter: 0}
	short := append(hdr.Encode(), make([]byte, aead.TagSize-1)...)

	if _, err := receiver.Open(short); err != ErrRecordTooShort {
		t.Fatalf("Open(short record) = %v, want ErrRecordTooShort", err)
	}
}

func newPair(t *testing.T, kidAudio, kidVideo uint64) (*SenderContext, *ReceiverContext) {
	t.Helper()
	key, salt := testKeySalt()

	sender, err := NewSenderContext(aead.SuiteAES128GCM, key, salt, kidAudio, kidVideo)
	if err != nil {
		t.Fatalf("NewSenderContext: %v", err)
	}
	receiver, err := NewReceiverContext(aead.SuiteAES128GCM, key, salt, kidAudio, kidVideo, DefaultReplayWindowSize)
	if err != nil {
		t.Fatalf("NewReceiverContext: %v", err)
	}
	return sender, receiver
}

// S1: basic seal/open round trip for a realistic KID.
func TestScenarioS1RoundTrip(t *testing.T) {
	sender, receiver := newPair(t, 7012340030, 7012340031)

	plaintext := []byte("the quick brown fox")
	record, err := sender.Seal(MediaAudio, plaintext)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	got, err := receiver.Open(record)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("Open = %q, want %q", got, plaintext)
	}
}

// S2: a tampered record must fail authentication and not crash.
func TestScenarioS2TamperedRecordRejected(t *testing.T) {
	sender, receiver := newPair(t, 10, 11)

	record, err := sender.Seal(MediaVideo, []byte("frame data"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	record[len(record)-1] ^= 0xFF

	if _, err := receiver.Open(record); err != ErrAuthFailed {
		t.Fatalf("Open(tampered) = %v, want ErrAuthFailed", err)
	}
}

// S3: duplicate delivery of the same record must be rejected as replay.
func TestScenarioS3DuplicateRejected(t *testing.T) {
	sender, receiver := newPair(t, 20, 21)

	record, err := sender.Seal(MediaAudio, []byte("once"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	if _, err := receiver.Open(record); err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if _, err := receiver.Open(record); err != ErrReplay {
		t.Fatalf("duplicate Open = %v, want ErrReplay", err)
	}
}

// S4: out-of-order delivery within the replay window must succeed.
func TestScenarioS4ReorderingTolerated(t *testing.T) {
	sender, receiver := newPair(t, 30, 31)

	var records [][]byte
	for i := 0; i < 5; i++ {
		r, err := sender.Seal(MediaAudio, []byte{byte(i)})
		if err != nil {
			t.Fatalf("Seal %d: %v", i, err)
		}
		records = append(records, r)
	}

	order := []int{4, 0, 2, 1, 3}
	for _, idx := range order {
		if _, err := receiver.Open(records[idx]); err != nil {
			t.Fatalf("Open(record %d) = %v, want nil", idx, err)
		}
	}
}

// S5: a record whose KID belongs to neither half of this context's pair is
// rejected as WrongKey, and failing the AEAD open does not permanently
// consume the replay-window slot (it can be retried, e.g. after a key
// update, without being treated as replay).
func TestScenarioS5WrongKeyAndAuthFailureDoesNotConsumeReplaySlot(t *testing.T) {
	_, receiver := newPair(t, 40, 41)
	other, _ := newPair(t, 50, 51)

	foreign, err := other.Seal(MediaAudio, []byte("not for you"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := receiver.Open(foreign); err != ErrWrongKey {
		t.Fatalf("Open(foreign KID) = %v, want ErrWrongKey", err)
	}

	// Now exercise a record with this receiver's own KID but encrypted
	// under a different key, so authentication fails; the replay window
	// must not record the counter as consumed.
	key2, salt2 := testKeySalt()
	key2[0] ^= 0xFF
	wrongKeySender, err := NewSenderContext(aead.SuiteAES128GCM, key2, salt2, 40, 41)
	if err != nil {
		t.Fatalf("NewSenderContext: %v", err)
	}
	badRecord, err := wrongKeySender.Seal(MediaAudio, []byte("bad key"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	if _, err := receiver.Open(badRecord); err != ErrAuthFailed {
		t.Fatalf("Open(wrong key material) = %v, want ErrAuthFailed", err)
	}

	// Counter 0 must still be admittable since the prior attempt's replay
	// update was undone.
	origKey, origSalt := testKeySalt()
	goodSender, err := NewSenderContext(aead.SuiteAES128GCM, origKey, origSalt, 40, 41)
	if err != nil {
		t.Fatalf("NewSenderContext: %v", err)
	}
	goodRecord, err := goodSender.Seal(MediaAudio, []byte("good key"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := receiver.Open(goodRecord); err != nil {
		t.Fatalf("Open(same counter, correct key) = %v, want nil", err)
	}
}

// Property 7 (epoch isolation): contexts derived under different epochs
// (here modeled directly as different keys/salts/KIDs) must never
// interoperate.
func TestEpochIsolation(t *testing.T) {
	epoch1Sender, epoch1Receiver := newPair(t, 1_000_000_000_010, 1_000_000_000_011)
	epoch2Sender, epoch2Receiver := newPair(t, 2_000_000_000_010, 2_000_000_000_011)

	r1, err := epoch1Sender.Seal(MediaAudio, []byte("epoch 1 frame"))
	if err != nil {
		t.Fatalf("Seal epoch1: %v", err)
	}
	if _, err := epoch2Receiver.Open(r1); err != ErrWrongKey {
		t.Fatalf("epoch2 Open(epoch1 record) = %v, want ErrWrongKey", err)
	}

	r2, err := epoch2Sender.Seal(MediaAudio, []byte("epoch 2 frame"))
	if err != nil {
		t.Fatalf("Seal epoch2: %v", err)
	}
	if _, err := epoch1Receiver.Open(r2); err != ErrWrongKey {
		t.Fatalf("epoch1 Open(epoch2 record) = %v, want ErrWrongKey", err)
	}
}

func TestReceiverOpenMalformedRecord(t *testing.T) {
	_, receiver := newPair(t, 1, 2)
	if _, err := receiver.Open([]byte{0x00}); err != ErrHeaderMalformed {
		t.Fatalf("Open(malformed) = %v, want ErrHeaderMalformed", err)
	}
}

func TestReceiverMatchesBothKinds(t *testing.T) {
	_, receiver := newPair(t, 700, 701)
	if !receiver.Matches(700) {
		t.Fatalf("Matches(audio KID) = false, want true")
	}
	if !receiver.Matches(701) {
		t.Fatalf("Matches(video KID) = false, want true")
	}
	if receiver.Matches(702) {
		t.Fatalf("Matches(unrelated KID) = true, want false")
	}
}

func TestReceiverZeroizeClearsKeyAndSalt(t *testing.T) {
	_, receiver := newPair(t, 1, 2)
	receiver.Zeroize()

	if !bytes.Equal(receiver.key[:], make([]byte, 16)) {
		t.Fatalf("key not zeroized: %x", receiver.key)
	}
	if !bytes.Equal(receiver.salt[:], make([]byte, SaltSize)) {
		t.Fatalf("salt not zeroized: %x", receiver.salt)
	}
}
