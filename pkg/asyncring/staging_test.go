package asyncring

import "testing"

func TestStagingBufferCommitAdvance(t *testing.T) {
	s := newStagingBuffer(8)

	if !s.IsEmpty() {
		t.Fatalf("new buffer should be empty")
	}

	n := copy(s.Free(), []byte{1, 2, 3, 4})
	s.Commit(n)

	if s.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", s.Len())
	}
	if got := s.Bytes(); got[0] != 1 || got[3] != 4 {
		t.Fatalf("Bytes() = %v, want [1 2 3 4]", got)
	}

	s.Advance(2)
	if s.Len() != 2 {
		t.Fatalf("Len() after Advance(2) = %d, want 2", s.Len())
	}
	if got := s.Bytes(); got[0] != 3 || got[1] != 4 {
		t.Fatalf("Bytes() after Advance(2) = %v, want [3 4]", got)
	}
}

func TestStagingBufferMaybeCompactClearsWhenDrained(t *testing.T) {
	s := newStagingBuffer(8)
	s.Commit(copy(s.Free(), []byte{1, 2}))
	s.Advance(2)

	if s.start == 0 {
		t.Fatalf("test setup: expected start to have advanced")
	}

	s.MaybeCompact()
	if s.start != 0 || s.used != 0 {
		t.Fatalf("MaybeCompact did not reset a fully-drained buffer: start=%d used=%d", s.start, s.used)
	}
}

func TestStagingBufferMaybeCompactShiftsPastMidpoint(t *testing.T) {
	s := newStagingBuffer(8)
	s.Commit(copy(s.Free(), []byte{1, 2, 3, 4, 5, 6}))
	s.Advance(5) // start=5 > capacity/2=4, one byte left unread

	s.MaybeCompact()
	if s.start != 0 {
		t.Fatalf("MaybeCompact should have shifted to the front, start=%d", s.start)
	}
	if s.Len() != 1 || s.Bytes()[0] != 6 {
		t.Fatalf("Bytes() after compact = %v, want [6]", s.Bytes())
	}
}

func TestStagingBufferAdvancePastUsedPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic advancing past used data")
		}
	}()
	s := newStagingBuffer(8)
	s.Advance(1)
}

func TestStagingBufferCommitOverrunPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic committing past capacity")
		}
	}()
	s := newStagingBuffer(4)
	s.Commit(5)
}

func TestStagingBufferNewRejectsBadCapacity(t *testing.T) {
	for _, c := range []int{0, -2, 3} {
		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("capacity %d: expected panic", c)
				}
			}()
			newStagingBuffer(c)
		}()
	}
}
