package domain

// PlaybackContext describes the collection currently driving playback.
type PlaybackContext struct {
	Type string
	URI  string
}

// PlayingTrack is the subset of the playing item the core needs.
type PlayingTrack struct {
	ID         string
	Name       string
	ArtistID   string
	ArtistName string
	PreviewURL string
}

// Playback is a single observation of the player.
// Track is nil when nothing is active.
type Playback struct {
	Track          *PlayingTrack
	Context        *PlaybackContext
	IsPlaying      bool
	ShuffleEnabled bool
}
