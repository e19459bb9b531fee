package spotify

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmb3/spotify/v2"

	"github.com/ewilliams-labs/soundstage/internal/core/domain"
)

const playerBody = `{
  "is_playing": true,
  "shuffle_state": false,
  "context": {"type": "playlist", "uri": "spotify:playlist:pl1"},
  "item": {
    "id": "track1",
    "name": "Enter Sandman",
    "preview_url": "https://p.scdn.co/mp3-preview/abc",
    "artists": [{"id": "artist1", "name": "Metallica"}, {"id": "artist2", "name": "Guest"}]
  }
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewClient(ts.Client(), spotify.WithBaseURL(ts.URL+"/"))
}

func writeAPIError(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":{"status":%d,"message":"test error"}}`, status)
}

func TestClient_CurrentPlayback(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		wantErr     error
		wantTrack   *domain.PlayingTrack
		wantContext *domain.PlaybackContext
		wantPlaying bool
	}{
		{
			name: "active track",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/me/player", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, playerBody)
			},
			wantTrack: &domain.PlayingTrack{
				ID:         "track1",
				Name:       "Enter Sandman",
				ArtistID:   "artist1",
				ArtistName: "Metallica",
				PreviewURL: "https://p.scdn.co/mp3-preview/abc",
			},
			wantContext: &domain.PlaybackContext{Type: "playlist", URI: "spotify:playlist:pl1"},
			wantPlaying: true,
		},
		{
			name: "nothing playing",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			},
		},
		{
			name: "expired token",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeAPIError(w, http.StatusUnauthorized)
			},
			wantErr: domain.ErrUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)

			pb, err := c.CurrentPlayback(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTrack, pb.Track)
			assert.Equal(t, tt.wantContext, pb.Context)
			assert.Equal(t, tt.wantPlaying, pb.IsPlaying)
			assert.False(t, pb.ShuffleEnabled)
		})
	}
}

func TestClient_ServerErrorIsNotAuth(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusBadGateway)
	})

	_, err := c.CurrentPlayback(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrUnauthorized)
}

func TestClient_ArtistGenresAndPlaylistName(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/artists/artist1":
			fmt.Fprint(w, `{"id":"artist1","name":"Metallica","genres":["metal","thrash metal"]}`)
		case "/playlists/pl1":
			assert.Equal(t, "name", r.URL.Query().Get("fields"))
			fmt.Fprint(w, `{"id":"pl1","name":"Boss Rush"}`)
		default:
			writeAPIError(w, http.StatusNotFound)
		}
	})
	ctx := context.Background()

	genres, err := c.ArtistGenres(ctx, "artist1")
	require.NoError(t, err)
	assert.Equal(t, []string{"metal", "thrash metal"}, genres)

	name, err := c.PlaylistName(ctx, "pl1")
	require.NoError(t, err)
	assert.Equal(t, "Boss Rush", name)

	_, err = c.PlaylistName(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClient_PlayerCommands(t *testing.T) {
	var calls []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path+"?"+r.URL.RawQuery)
		w.WriteHeader(http.StatusNoContent)
	})
	ctx := context.Background()

	require.NoError(t, c.SetShuffle(ctx, true))
	require.NoError(t, c.SkipToNext(ctx))

	require.Len(t, calls, 2)
	assert.Contains(t, calls[0], "PUT /me/player/shuffle")
	assert.Contains(t, calls[0], "state=true")
	assert.Contains(t, calls[1], "POST /me/player/next")
}
