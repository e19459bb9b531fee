package ports

import (
	"context"

	"github.com/ewilliams-labs/soundstage/internal/core/domain"
)

type PlayRecorder interface {
	RecordPlay(ctx context.Context, play domain.Play) error
	MarkSkipped(ctx context.Context, playID string) error
}

type PlayHistory interface {
	RecentPlays(ctx context.Context, limit int) ([]domain.Play, error)
}
