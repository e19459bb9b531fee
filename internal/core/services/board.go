package services

import (
	"sync"
	"time"

	"github.com/ewilliams-labs/soundstage/internal/core/domain"
)

// StateBoard holds the latest published Snapshot. Only the poller writes;
// everything else reads.
type StateBoard struct {
	mu     sync.RWMutex
	snap   domain.Snapshot
	subs   map[int]func(domain.Snapshot)
	nextID int
	now    func() time.Time
}

func NewStateBoard() *StateBoard {
	return &StateBoard{
		subs: make(map[int]func(domain.Snapshot)),
		now:  time.Now,
	}
}

// Publish replaces the snapshot and notifies subscribers.
func (b *StateBoard) Publish(snap domain.Snapshot) {
	snap.UpdatedAt = b.now()

	b.mu.Lock()
	b.snap = snap
	subs := b.subscribersLocked()
	b.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// SetPlaying flips the playing flag, keeping the rest of the snapshot.
func (b *StateBoard) SetPlaying(playing bool) {
	b.mu.Lock()
	if b.snap.Playing == playing {
		b.mu.Unlock()
		return
	}
	b.snap.Playing = playing
	b.snap.UpdatedAt = b.now()
	snap := b.snap
	subs := b.subscribersLocked()
	b.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// MarkIdle records that nothing is playing. The track and its playlist
// context are cleared; genre and features stay at their last values.
func (b *StateBoard) MarkIdle() {
	b.mu.Lock()
	b.snap.TrackID = ""
	b.snap.TrackName = ""
	b.snap.PlaylistName = ""
	b.snap.BonusPlaylist = false
	b.snap.Playing = false
	b.snap.UpdatedAt = b.now()
	snap := b.snap
	subs := b.subscribersLocked()
	b.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// Subscribe registers fn for every change. Callbacks run on the publishing
// goroutine and must not block.
func (b *StateBoard) Subscribe(fn func(domain.Snapshot)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

func (b *StateBoard) subscribersLocked() []func(domain.Snapshot) {
	subs := make([]func(domain.Snapshot), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	return subs
}

func (b *StateBoard) Current() domain.Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snap
}

func (b *StateBoard) Genre() domain.Genre {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snap.Genre
}

func (b *StateBoard) Features() domain.AudioFeatures {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snap.Features
}

// PlaylistName is empty when playback is not driven by a playlist.
func (b *StateBoard) PlaylistName() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snap.PlaylistName
}

// BonusActive reports whether the designated bonus playlist is playing.
func (b *StateBoard) BonusActive() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snap.BonusPlaylist
}
