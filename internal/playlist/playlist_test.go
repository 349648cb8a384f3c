package playlist

import (
	"testing"

	"github.com/drgolem/tuneterm/pkg/types"
)

func tracks(n int) []types.Track {
	ts := make([]types.Track, n)
	for i := range ts {
		ts[i] = types.Track{ID: int64(i), Title: string(rune('A' + i))}
	}
	return ts
}

func TestNextLoopNone(t *testing.T) {
	p := New(tracks(3))

	for i := 0; i < 3; i++ {
		tr, ok := p.Next()
		if !ok {
			t.Fatalf("Next() %d: got ok=false, want true", i)
		}
		if tr.ID != int64(i) {
			t.Errorf("Next() %d: got track %d, want %d", i, tr.ID, i)
		}
	}

	if _, ok := p.Next(); ok {
		t.Error("Next() past end with LoopNone: got ok=true, want false")
	}
}

func TestNextLoopAllWraps(t *testing.T) {
	p := New(tracks(2))
	p.SetLoopMode(LoopAll)

	p.Next() // 0
	p.Next() // 1
	tr, ok := p.Next()
	if !ok || tr.ID != 0 {
		t.Fatalf("Next() wrap: got (%v, %v), want (track 0, true)", tr, ok)
	}
}

func TestNextLoopTrackRepeats(t *testing.T) {
	p := New(tracks(2))
	p.Next() // pos=0
	p.SetLoopMode(LoopTrack)

	for i := 0; i < 3; i++ {
		tr, ok := p.Next()
		if !ok || tr.ID != 0 {
			t.Fatalf("Next() under LoopTrack iteration %d: got (%v, %v), want (track 0, true)", i, tr, ok)
		}
	}
}

func TestPrevWraps(t *testing.T) {
	p := New(tracks(2))
	p.SetLoopMode(LoopAll)

	if _, ok := p.Prev(); !ok {
		t.Fatal("Prev() from unstarted cursor with LoopAll: got ok=false, want true")
	}
}

func TestLoopModeCycle(t *testing.T) {
	got := []LoopMode{LoopNone.Cycle(), LoopAll.Cycle(), LoopTrack.Cycle()}
	want := []LoopMode{LoopAll, LoopTrack, LoopNone}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Cycle() step %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestShuffleKeepsStorageOrder(t *testing.T) {
	p := New(tracks(5))
	p.Shuffle()

	storage := p.Tracks()
	for i, tr := range storage {
		if tr.ID != int64(i) {
			t.Fatalf("Tracks() after Shuffle: storage order changed at %d", i)
		}
	}
	if len(p.order) != 5 {
		t.Fatalf("order length: got %d, want 5", len(p.order))
	}
}

func TestRemoveResetsCursor(t *testing.T) {
	p := New(tracks(3))
	p.Next()
	p.Remove(1)

	if p.Len() != 2 {
		t.Errorf("Len() after Remove: got %d, want 2", p.Len())
	}
	if _, ok := p.Current(); ok {
		t.Error("Current() after Remove: got ok=true, want false (cursor reset)")
	}
}

func TestUpdateTrackKeepsCursor(t *testing.T) {
	p := New(tracks(3))
	p.Next() // pos=0

	updated := types.Track{ID: 1, Title: "Renamed", Artist: "Someone"}
	p.UpdateTrack(1, updated)

	if got := p.Tracks()[1]; got.Title != "Renamed" || got.Artist != "Someone" {
		t.Errorf("Tracks()[1] after UpdateTrack: got %+v", got)
	}
	if cur, ok := p.Current(); !ok || cur.ID != 0 {
		t.Errorf("Current() after UpdateTrack: got (%+v, %v), want cursor unmoved on track 0", cur, ok)
	}

	p.UpdateTrack(99, updated) // out of range is a no-op
	if p.Len() != 3 {
		t.Errorf("Len() after out-of-range UpdateTrack: got %d, want 3", p.Len())
	}
}

func TestJump(t *testing.T) {
	p := New(tracks(3))
	tr, ok := p.Jump(2)
	if !ok || tr.ID != 2 {
		t.Fatalf("Jump(2): got (%v, %v), want (track 2, true)", tr, ok)
	}

	if _, ok := p.Jump(99); ok {
		t.Error("Jump(99) out of range: got ok=true, want false")
	}
}

func TestEmptyPlaylist(t *testing.T) {
	p := New(nil)
	if _, ok := p.Next(); ok {
		t.Error("Next() on empty playlist: got ok=true, want false")
	}
	if _, ok := p.Current(); ok {
		t.Error("Current() on empty playlist: got ok=true, want false")
	}
}
