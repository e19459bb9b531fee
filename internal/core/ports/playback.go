package ports

import (
	"context"

	"github.com/ewilliams-labs/soundstage/internal/core/domain"
)

// PlaybackClient is the playback service as seen by the poller.
// Authentication and grant failures must wrap domain.ErrUnauthorized.
type PlaybackClient interface {
	CurrentPlayback(ctx context.Context) (domain.Playback, error)
	ArtistGenres(ctx context.Context, artistID string) ([]string, error)
	PlaylistName(ctx context.Context, playlistID string) (string, error)
	SetShuffle(ctx context.Context, enabled bool) error
	SkipToNext(ctx context.Context) error
}

// Authorizer owns the playback client's credentials.
type Authorizer interface {
	IsConnected() bool
	// Client returns the current client handle. It changes after Reauthorize.
	Client() PlaybackClient
	// Reauthorize runs the re-authorization flow once.
	Reauthorize(ctx context.Context) error
}
