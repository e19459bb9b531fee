package ports

import (
	"context"

	"github.com/ewilliams-labs/soundstage/internal/core/domain"
)

// FeatureService is the secondary audio-analysis service.
type FeatureService interface {
	// LookupTrack maps an external track id to the service's own identifier.
	LookupTrack(ctx context.Context, externalID string) (string, error)
	AudioFeatures(ctx context.Context, id string) (domain.AudioFeatures, error)
}

// FeatureStore persists resolved vectors across sessions.
type FeatureStore interface {
	GetFeatures(ctx context.Context, trackID string) (domain.AudioFeatures, domain.FeatureSource, error)
	SaveFeatures(ctx context.Context, features domain.AudioFeatures, source domain.FeatureSource) error
}

// PreviewAnalyzer estimates features from a track preview in the background.
type PreviewAnalyzer interface {
	SubmitPreview(trackID string, genre domain.Genre, previewURL string)
}
