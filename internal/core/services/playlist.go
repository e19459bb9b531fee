package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/soundstage/internal/core/domain"
	"github.com/ewilliams-labs/soundstage/internal/core/ports"
)

const playlistContextType = "playlist"

// PlaylistResolver turns a playback context into a playlist display name.
type PlaylistResolver struct {
	logger *zap.Logger
}

func NewPlaylistResolver(logger *zap.Logger) *PlaylistResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlaylistResolver{logger: logger}
}

// Resolve returns "" for a missing or non-playlist context and on any lookup
// failure.
func (r *PlaylistResolver) Resolve(ctx context.Context, client ports.PlaybackClient, pc *domain.PlaybackContext) string {
	if pc == nil || pc.Type != playlistContextType {
		return ""
	}

	id, ok := ParsePlaylistID(pc.URI)
	if !ok {
		r.logger.Debug("unrecognised playlist uri", zap.String("uri", pc.URI))
		return ""
	}

	name, err := client.PlaylistName(ctx, id)
	if err != nil {
		r.logger.Warn("playlist lookup failed", zap.String("playlist_id", id), zap.Error(err))
		return ""
	}
	return name
}

// ParsePlaylistID extracts the id from "spotify:playlist:{id}" or the longer
// "spotify:user:{user}:playlist:{id}" form.
func ParsePlaylistID(uri string) (string, bool) {
	parts := strings.Split(uri, ":")
	var id string
	switch {
	case len(parts) >= 5:
		id = parts[4]
	case len(parts) >= 3:
		id = parts[2]
	default:
		return "", false
	}
	id = strings.TrimSpace(id)
	return id, id != ""
}
