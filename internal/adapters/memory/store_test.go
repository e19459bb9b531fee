package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/soundstage/internal/core/domain"
)

func TestStore_Features(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_, _, err := s.GetFeatures(ctx, "t1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.SaveFeatures(ctx, domain.AudioFeatures{TrackID: "t1", Energy: 0.9}, domain.SourceNetwork))
	require.NoError(t, s.SaveFeatures(ctx, domain.AudioFeatures{TrackID: "t1", Energy: 0.1}, domain.SourcePreview))

	f, src, err := s.GetFeatures(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.SourceNetwork, src)
	assert.InDelta(t, 0.9, f.Energy, 1e-9)
}

func TestStore_Plays(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.RecordPlay(ctx, domain.Play{ID: "p1", StartedAt: now}))
	require.NoError(t, s.RecordPlay(ctx, domain.Play{ID: "p2", StartedAt: now.Add(time.Second)}))
	require.NoError(t, s.MarkSkipped(ctx, "p1"))
	assert.ErrorIs(t, s.MarkSkipped(ctx, "p9"), domain.ErrNotFound)

	plays, err := s.RecentPlays(ctx, 1)
	require.NoError(t, err)
	require.Len(t, plays, 1)
	assert.Equal(t, "p2", plays[0].ID)

	plays, err = s.RecentPlays(ctx, 0)
	require.NoError(t, err)
	require.Len(t, plays, 2)
	assert.True(t, plays[1].AutoSkipped)
}
