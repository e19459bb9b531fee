// Package features resolves audio feature vectors for tracks, with an
// in-memory cache, an optional persistent store and per-genre presets.
package features

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/soundstage/internal/core/domain"
	"github.com/ewilliams-labs/soundstage/internal/core/ports"
)

type Resolver struct {
	service ports.FeatureService
	store   ports.FeatureStore
	cache   *Cache
	logger  *zap.Logger
}

// NewResolver wires a resolver. store may be nil.
func NewResolver(service ports.FeatureService, store ports.FeatureStore, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		service: service,
		store:   store,
		cache:   NewCache(),
		logger:  logger,
	}
}

// Cache exposes the resolver's cache.
func (r *Resolver) Cache() *Cache {
	return r.cache
}

// Resolve returns the features for an external track id. Failures are never
// cached.
func (r *Resolver) Resolve(ctx context.Context, trackID string) (domain.AudioFeatures, domain.FeatureSource, error) {
	if trackID == "" {
		return domain.AudioFeatures{}, "", fmt.Errorf("features: empty track id: %w", domain.ErrNotFound)
	}

	if f, ok := r.cache.Get(trackID); ok {
		return f, domain.SourceCache, nil
	}

	// Preview estimates are served only when the service cannot answer.
	var estimate *domain.AudioFeatures
	if r.store != nil {
		f, source, err := r.store.GetFeatures(ctx, trackID)
		switch {
		case err == nil && source == domain.SourcePreview:
			estimate = &f
		case err == nil:
			r.cache.Put(trackID, f)
			return f, domain.SourceStore, nil
		case !errors.Is(err, domain.ErrNotFound):
			r.logger.Warn("feature store lookup failed", zap.String("track_id", trackID), zap.Error(err))
		}
	}

	f, err := r.fetch(ctx, trackID)
	if err != nil {
		if estimate != nil {
			return *estimate, domain.SourcePreview, nil
		}
		return domain.AudioFeatures{}, "", err
	}

	f = f.WithTrackID(trackID)
	r.cache.Put(trackID, f)
	if r.store != nil {
		if err := r.store.SaveFeatures(ctx, f, domain.SourceNetwork); err != nil {
			r.logger.Warn("feature store save failed", zap.String("track_id", trackID), zap.Error(err))
		}
	}

	return f, domain.SourceNetwork, nil
}

func (r *Resolver) fetch(ctx context.Context, trackID string) (domain.AudioFeatures, error) {
	if r.service == nil {
		return domain.AudioFeatures{}, fmt.Errorf("features: no feature service configured: %w", domain.ErrNotFound)
	}

	resolvedID, err := r.service.LookupTrack(ctx, trackID)
	if err != nil {
		return domain.AudioFeatures{}, fmt.Errorf("features: lookup %s: %w", trackID, err)
	}

	f, err := r.service.AudioFeatures(ctx, resolvedID)
	if err != nil {
		return domain.AudioFeatures{}, fmt.Errorf("features: fetch %s: %w", resolvedID, err)
	}
	return f, nil
}

// ResolveOrPreset never fails: on any resolution error the genre preset is
// returned with SourcePreset.
func (r *Resolver) ResolveOrPreset(ctx context.Context, trackID string, g domain.Genre) (domain.AudioFeatures, domain.FeatureSource) {
	f, source, err := r.Resolve(ctx, trackID)
	if err == nil {
		return f, source
	}

	r.logger.Info("using genre preset features",
		zap.String("track_id", trackID),
		zap.Stringer("genre", g),
		zap.Error(err))
	return Preset(g).WithTrackID(trackID), domain.SourcePreset
}
