package sframe

import "testing"

func TestReplayWindowInOrder(t *testing.T) {
	w := newReplayWindow(8)
	for ctr := uint64(0); ctr < 20; ctr++ {
		if _, err := w.admit(ctr); err != nil {
			t.Fatalf("admit(%d) = %v, want nil", ctr, err)
		}
	}
}

func TestReplayWindowDuplicateRejected(t *testing.T) {
	w := newReplayWindow(8)
	if _, err := w.admit(5); err != nil {
		t.Fatalf("admit(5): %v", err)
	}
	if _, err := w.admit(5); err != ErrReplay {
		t.Fatalf("admit(5) again = %v, want ErrReplay", err)
	}
}

func TestReplayWindowReorderingTolerance(t *testing.T) {
	w := newReplayWindow(DefaultReplayWindowSize)

	order := []uint64{4, 0, 2, 1, 3}
	for _, ctr := range order {
		if _, err := w.admit(ctr); err != nil {
			t.Fatalf("admit(%d): %v", ctr, err)
		}
	}
	if _, err := w.admit(2); err != ErrReplay {
		t.Fatalf("re-admit(2) = %v, want ErrReplay", err)
	}
}

func TestReplayWindowBehindWindowRejected(t *testing.T) {
	w := newReplayWindow(8)
	if _, err := w.admit(100); err != nil {
		t.Fatalf("admit(100): %v", err)
	}
	if _, err := w.admit(50); err != ErrReplay {
		t.Fatalf("admit(50) far behind = %v, want ErrReplay", err)
	}
}

func TestReplayWindowUndo(t *testing.T) {
	w := newReplayWindow(8)
	if _, err := w.admit(1); err != nil {
		t.Fatalf("admit(1): %v", err)
	}

	snap, err := w.admit(2)
	if err != nil {
		t.Fatalf("admit(2): %v", err)
	}
	w.restore(snap)

	// Because we restored to the pre-admit(2) snapshot, 2 must be
	// admittable again, exactly as if the AEAD open for it had failed.
	if _, err := w.admit(2); err != nil {
		t.Fatalf("admit(2) after undo = %v, want nil", err)
	}
}

func TestReplayWindowFullWindowPermutation(t *testing.T) {
	const w64 = 1024
	w := newReplayWindow(w64)

	perm := make([]uint64, w64)
	for i := range perm {
		perm[i] = uint64(i)
	}
	// Simple deterministic shuffle: reverse-interleave.
	shuffled := make([]uint64, 0, w64)
	for i, j := 0, w64-1; i <= j; i, j = i+1, j-1 {
		shuffled = append(shuffled, perm[j])
		if i != j {
			shuffled = append(shuffled, perm[i])
		}
	}

	for _, ctr := range shuffled {
		if _, err := w.admit(ctr); err != nil {
			t.Fatalf("admit(%d): %v", ctr, err)
		}
	}
	for _, ctr := range shuffled {
		if _, err := w.admit(ctr); err != ErrReplay {
			t.Fatalf("re-admit(%d) = %v, want ErrReplay", ctr, err)
		}
	}
}
