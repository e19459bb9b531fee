// Package spotify adapts the Spotify Web API to the playback ports.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"

	"github.com/ewilliams-labs/soundstage/internal/core/domain"
	"github.com/ewilliams-labs/soundstage/internal/core/ports"
)

// Client wraps a spotify.Client authorised for one user.
type Client struct {
	api *spotify.Client
}

// compile-time interface assertion
var _ ports.PlaybackClient = (*Client)(nil)

// NewClient builds a client over an authorised HTTP client. opts are passed
// through, e.g. spotify.WithBaseURL in tests.
func NewClient(httpClient *http.Client, opts ...spotify.ClientOption) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{api: spotify.New(httpClient, opts...)}
}

// CurrentPlayback reads the player state. An idle player yields a Playback
// with a nil Track.
func (c *Client) CurrentPlayback(ctx context.Context) (domain.Playback, error) {
	state, err := c.api.PlayerState(ctx)
	if err != nil {
		return domain.Playback{}, mapError("get player state", err)
	}
	if state == nil {
		return domain.Playback{}, nil
	}
	return mapPlayerState(state), nil
}

// ArtistGenres returns the artist's free-text genre tags.
func (c *Client) ArtistGenres(ctx context.Context, artistID string) ([]string, error) {
	artist, err := c.api.GetArtist(ctx, spotify.ID(artistID))
	if err != nil {
		return nil, mapError("get artist", err)
	}
	return artist.Genres, nil
}

func (c *Client) PlaylistName(ctx context.Context, playlistID string) (string, error) {
	playlist, err := c.api.GetPlaylist(ctx, spotify.ID(playlistID), spotify.Fields("name"))
	if err != nil {
		return "", mapError("get playlist", err)
	}
	return playlist.Name, nil
}

func (c *Client) SetShuffle(ctx context.Context, enabled bool) error {
	if err := c.api.Shuffle(ctx, enabled); err != nil {
		return mapError(fmt.Sprintf("set shuffle to %t", enabled), err)
	}
	return nil
}

func (c *Client) SkipToNext(ctx context.Context) error {
	if err := c.api.Next(ctx); err != nil {
		return mapError("skip to next", err)
	}
	return nil
}

func mapPlayerState(state *spotify.PlayerState) domain.Playback {
	pb := domain.Playback{
		IsPlaying:      state.Playing,
		ShuffleEnabled: state.ShuffleState,
	}

	if pc := state.PlaybackContext; pc.Type != "" || pc.URI != "" {
		pb.Context = &domain.PlaybackContext{Type: pc.Type, URI: string(pc.URI)}
	}

	if item := state.Item; item != nil && item.ID != "" {
		track := &domain.PlayingTrack{
			ID:         string(item.ID),
			Name:       item.Name,
			PreviewURL: item.PreviewURL,
		}
		if len(item.Artists) > 0 {
			track.ArtistID = string(item.Artists[0].ID)
			track.ArtistName = item.Artists[0].Name
		}
		pb.Track = track
	}

	return pb
}

// mapError wraps err, marking authentication and grant failures with
// domain.ErrUnauthorized.
func mapError(op string, err error) error {
	if isAuthError(err) {
		return fmt.Errorf("spotify adapter: %s: %w: %w", op, domain.ErrUnauthorized, err)
	}
	if isNotFound(err) {
		return fmt.Errorf("spotify adapter: %s: %w: %w", op, domain.ErrNotFound, err)
	}
	return fmt.Errorf("spotify adapter: %s: %w", op, err)
}

func isAuthError(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return true
	}
	return apiStatus(err) == http.StatusUnauthorized
}

func isNotFound(err error) bool {
	return apiStatus(err) == http.StatusNotFound
}

func apiStatus(err error) int {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	var apiErrPtr *spotify.Error
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Status
	}
	return 0
}
