package ports

import (
	"context"

	"github.com/ewilliams-labs/soundstage/internal/core/domain"
)

// SceneLoader drives the engine's additive scene management.
type SceneLoader interface {
	UnloadScene(ctx context.Context, scene string) error
	// LoadSceneAdditive returns the spawn anchors the loaded scene designates.
	LoadSceneAdditive(ctx context.Context, scene string) ([]domain.Anchor, error)
}

// Visuals applies skybox and post-processing profiles.
type Visuals interface {
	ApplyVisuals(ctx context.Context, skybox, postProcess string) error
}

// Avatar repositions the player.
type Avatar interface {
	MoveTo(ctx context.Context, anchor domain.Anchor) error
}

// EnvironmentController receives genre changes from the poller.
type EnvironmentController interface {
	SetGenre(ctx context.Context, genre domain.Genre) bool
}
