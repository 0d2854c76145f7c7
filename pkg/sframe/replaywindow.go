package sframe

// DefaultReplayWindowSize is the default replay-window width W (spec
// Section 3): the number of trailing counter positions tracked for replay
// rejection.
const DefaultReplayWindowSize = 1024

// replayWindow is a bitmap of the last W received counters, generalizing
// the teacher corpus's fixed 32-bit ReceptionState (a single uint32 word,
// see backkem-matter's pkg/message/counter.go) to an arbitrary width backed
// by a slice of 64-bit words, as spec Section 3's default W=1024 requires.
//
// Bit k (0-indexed from the low end of word 0 upward) represents the
// counter value (highest - 1 - k); a set bit means that counter has
// already been accepted.
type replayWindow struct {
	width       uint64
	words       []uint64
	highest     uint64
	initialized bool
}

func newReplayWindow(width uint64) *replayWindow {
	if width == 0 {
		width = DefaultReplayWindowSize
	}
	nWords := (width + 63) / 64
	return &replayWindow{
		width: width,
		words: make([]uint64, nWords),
	}
}

// replayWindowSnapshot captures enough state to undo a provisional admit.
type replayWindowSnapshot struct {
	highest     uint64
	initialized bool
	words       []uint64
}

func (w *replayWindow) snapshot() replayWindowSnapshot {
	words := make([]uint64, len(w.words))
	copy(words, w.words)
	return replayWindowSnapshot{highest: w.highest, initialized: w.initialized, words: words}
}

func (w *replayWindow) restore(s replayWindowSnapshot) {
	w.highest = s.highest
	w.initialized = s.initialized
	copy(w.words, s.words)
}

// bit returns whether bit k is set.
func (w *replayWindow) bit(k uint64) bool {
	word, off := k/64, k%64
	return w.words[word]&(1<<off) != 0
}

// setBit sets bit k.
func (w *replayWindow) setBit(k uint64) {
	word, off := k/64, k%64
	w.words[word] |= 1 << off
}

// shiftLeft shifts the whole bitmap left by n bit positions (toward higher
// indices), zero-filling the vacated low bits. n == 0 is a no-op; n >=
// width clears the bitmap entirely.
func (w *replayWindow) shiftLeft(n uint64) {
	if n >= w.width {
		for i := range w.words {
			w.words[i] = 0
		}
		return
	}

	wordShift := n / 64
	bitShift := n % 64

	for i := len(w.words) - 1; i >= 0; i-- {
		var v uint64
		srcIdx := i - int(wordShift)
		if srcIdx >= 0 {
			v = w.words[srcIdx] << bitShift
			if bitShift != 0 && srcIdx-1 >= 0 {
				v |= w.words[srcIdx-1] >> (64 - bitShift)
			}
		}
		w.words[i] = v
	}
}

// admit checks counter against the window and, if accepted, provisionally
// marks it received. It returns a snapshot the caller must pass to restore
// if the corresponding AEAD open subsequently fails (spec Section 4.6 step
// 4's "undo the provisional replay-window update").
func (w *replayWindow) admit(counter uint64) (replayWindowSnapshot, error) {
	snap := w.snapshot()

	if !w.initialized {
		w.initialized = true
		w.highest = counter
		// Bit 0 would represent (highest-1); nothing to mark for the very
		// first counter since it IS the highest.
		return snap, nil
	}

	if counter > w.highest {
		shift := counter - w.highest
		w.shiftLeft(shift)
		if shift-1 < w.width {
			w.setBit(shift - 1)
		}
		w.highest = counter
		return snap, nil
	}

	if counter == w.highest {
		return snap, ErrReplay
	}

	behind := w.highest - counter
	if behind > w.width {
		return snap, ErrReplay
	}

	offset := behind - 1
	if w.bit(offset) {
		return snap, ErrReplay
	}
	w.setBit(offset)
	return snap, nil
}
