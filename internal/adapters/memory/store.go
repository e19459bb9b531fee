// Package memory is a process-local stand-in for the SQLite store, used when
// persistence is disabled.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ewilliams-labs/soundstage/internal/core/domain"
	"github.com/ewilliams-labs/soundstage/internal/core/ports"
)

var (
	_ ports.FeatureStore = (*Store)(nil)
	_ ports.PlayRecorder = (*Store)(nil)
	_ ports.PlayHistory  = (*Store)(nil)
)

type storedFeatures struct {
	features domain.AudioFeatures
	source   domain.FeatureSource
}

type Store struct {
	mu       sync.RWMutex
	features map[string]storedFeatures
	plays    []domain.Play
}

func NewStore() *Store {
	return &Store{features: make(map[string]storedFeatures)}
}

func (s *Store) GetFeatures(_ context.Context, trackID string) (domain.AudioFeatures, domain.FeatureSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.features[trackID]
	if !ok {
		return domain.AudioFeatures{}, "", domain.ErrNotFound
	}
	return row.features, row.source, nil
}

func (s *Store) SaveFeatures(_ context.Context, f domain.AudioFeatures, source domain.FeatureSource) error {
	if f.TrackID == "" {
		return fmt.Errorf("memory: features without track id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.features[f.TrackID]; ok &&
		existing.source == domain.SourceNetwork && source == domain.SourcePreview {
		return nil
	}
	s.features[f.TrackID] = storedFeatures{features: f, source: source}
	return nil
}

func (s *Store) RecordPlay(_ context.Context, play domain.Play) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plays = append(s.plays, play)
	return nil
}

func (s *Store) MarkSkipped(_ context.Context, playID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.plays {
		if s.plays[i].ID == playID {
			s.plays[i].AutoSkipped = true
			return nil
		}
	}
	return domain.ErrNotFound
}

// RecentPlays returns up to limit plays, newest first.
func (s *Store) RecentPlays(_ context.Context, limit int) ([]domain.Play, error) {
	s.mu.RLock()
	out := append([]domain.Play(nil), s.plays...)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
