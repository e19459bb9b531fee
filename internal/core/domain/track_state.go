package domain

import "time"

// TrackState is the poller's private record of the current track.
type TrackState struct {
	TrackID      string
	ArtistID     string
	Genre        Genre
	PlaylistName string
	Elapsed      time.Duration
	AutoSkipped  bool
	PlayID       string
}

// Active reports whether a track is being tracked.
func (s TrackState) Active() bool {
	return s.TrackID != ""
}

// Reset starts tracking a new track, dropping elapsed time and the auto-skip flag.
func (s *TrackState) Reset(trackID, artistID string) {
	*s = TrackState{TrackID: trackID, ArtistID: artistID}
}

// Snapshot is the published, read-only view of the current track.
type Snapshot struct {
	TrackID       string        `json:"track_id"`
	TrackName     string        `json:"track_name"`
	ArtistID      string        `json:"artist_id"`
	ArtistName    string        `json:"artist_name"`
	Genre         Genre         `json:"genre"`
	PlaylistName  string        `json:"playlist_name,omitempty"`
	Features      AudioFeatures `json:"features"`
	FeatureSource FeatureSource `json:"feature_source"`
	BonusPlaylist bool          `json:"bonus_playlist"`
	Playing       bool          `json:"playing"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Play is one observed track in the session history.
type Play struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	TrackID      string    `json:"track_id"`
	ArtistID     string    `json:"artist_id"`
	Genre        Genre     `json:"genre"`
	PlaylistName string    `json:"playlist_name,omitempty"`
	Bonus        bool      `json:"bonus"`
	AutoSkipped  bool      `json:"auto_skipped"`
	StartedAt    time.Time `json:"started_at"`
}
