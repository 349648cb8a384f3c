// Package playlist is the ordered list of tracks the TUI and the sequential
// playlist CLI command advance through: current index, shuffle/repeat
// modes, and next/prev/jump navigation.
package playlist

import (
	"math/rand"

	"github.com/drgolem/tuneterm/pkg/types"
)

// LoopMode selects what happens when the playlist runs off either end:
// play once through in order, repeat the whole list, or repeat the
// current track forever.
type LoopMode int

const (
	LoopNone LoopMode = iota
	LoopAll
	LoopTrack
)

// Cycle returns the next mode in the none -> all -> track -> none order,
// for a single toggle key to step through.
func (m LoopMode) Cycle() LoopMode {
	switch m {
	case LoopNone:
		return LoopAll
	case LoopAll:
		return LoopTrack
	default:
		return LoopNone
	}
}

// Playlist holds an ordered track list plus navigation state. It is not
// safe for concurrent use without external locking; the TUI and CLI
// commands that own one run single-threaded against it.
type Playlist struct {
	tracks   []types.Track
	order    []int // indices into tracks; identity order unless shuffled
	pos      int   // index into order, -1 when empty/unstarted
	shuffled bool
	loop     LoopMode
}

// New builds a Playlist from tracks in the given order.
func New(tracks []types.Track) *Playlist {
	p := &Playlist{tracks: tracks, pos: -1}
	p.resetOrder()
	return p
}

func (p *Playlist) resetOrder() {
	p.order = make([]int, len(p.tracks))
	for i := range p.order {
		p.order[i] = i
	}
}

// Tracks returns the playlist's tracks in storage (not playback) order.
func (p *Playlist) Tracks() []types.Track {
	return p.tracks
}

// Len reports the number of tracks.
func (p *Playlist) Len() int {
	return len(p.tracks)
}

// Add appends a track to the end of the list.
func (p *Playlist) Add(t types.Track) {
	p.tracks = append(p.tracks, t)
	p.order = append(p.order, len(p.tracks)-1)
}

// UpdateTrack replaces the track at storage index i, e.g. after a metadata
// lookup backfills its tags. Playback order and cursor are unaffected.
func (p *Playlist) UpdateTrack(i int, t types.Track) {
	if i < 0 || i >= len(p.tracks) {
		return
	}
	p.tracks[i] = t
}

// Remove deletes the track at storage index i, adjusting the playback
// cursor if the removed track was before or at it.
func (p *Playlist) Remove(i int) {
	if i < 0 || i >= len(p.tracks) {
		return
	}
	p.tracks = append(p.tracks[:i], p.tracks[i+1:]...)
	p.resetOrder()
	if p.shuffled {
		p.Shuffle()
	}
	p.pos = -1
}

// Shuffle randomizes playback order, leaving storage order (Tracks())
// untouched.
func (p *Playlist) Shuffle() {
	p.resetOrder()
	rand.Shuffle(len(p.order), func(i, j int) {
		p.order[i], p.order[j] = p.order[j], p.order[i]
	})
	p.shuffled = true
}

// Unshuffle restores storage order as playback order.
func (p *Playlist) Unshuffle() {
	p.resetOrder()
	p.shuffled = false
}

// SetLoopMode sets the repeat mode directly (e.g. from persisted config).
func (p *Playlist) SetLoopMode(m LoopMode) {
	p.loop = m
}

// CycleLoopMode advances to the next repeat mode and returns it, the
// keybinding-driven LoopModeCycle action.
func (p *Playlist) CycleLoopMode() LoopMode {
	p.loop = p.loop.Cycle()
	return p.loop
}

// LoopMode returns the current repeat mode.
func (p *Playlist) LoopMode() LoopMode {
	return p.loop
}

// Current returns the track at the playback cursor, or false if the
// playlist is empty or navigation hasn't started yet.
func (p *Playlist) Current() (types.Track, bool) {
	if p.pos < 0 || p.pos >= len(p.order) {
		return types.Track{}, false
	}
	return p.tracks[p.order[p.pos]], true
}

// Jump moves the cursor to storage index i and returns its track.
func (p *Playlist) Jump(i int) (types.Track, bool) {
	if i < 0 || i >= len(p.tracks) {
		return types.Track{}, false
	}
	for orderPos, trackIdx := range p.order {
		if trackIdx == i {
			p.pos = orderPos
			return p.tracks[i], true
		}
	}
	return types.Track{}, false
}

// Next advances the cursor per the current loop mode and returns the track
// to play, or false when playback should stop (LoopNone exhausted).
func (p *Playlist) Next() (types.Track, bool) {
	if len(p.order) == 0 {
		return types.Track{}, false
	}
	if p.loop == LoopTrack && p.pos >= 0 {
		return p.Current()
	}
	if p.pos+1 < len(p.order) {
		p.pos++
		return p.Current()
	}
	if p.loop == LoopAll {
		p.pos = 0
		return p.Current()
	}
	return types.Track{}, false
}

// Prev moves the cursor back one position, wrapping to the end under
// LoopAll the same way Next wraps to the start.
func (p *Playlist) Prev() (types.Track, bool) {
	if len(p.order) == 0 {
		return types.Track{}, false
	}
	if p.pos-1 >= 0 {
		p.pos--
		return p.Current()
	}
	if p.loop == LoopAll {
		p.pos = len(p.order) - 1
		return p.Current()
	}
	return types.Track{}, false
}
