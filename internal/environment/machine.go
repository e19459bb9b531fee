// Package environment switches the engine's scene, skybox and
// post-processing profile to follow the current genre.
package environment

import (
	"context"
	"math/rand/v2"
	"sync"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/soundstage/internal/core/domain"
	"github.com/ewilliams-labs/soundstage/internal/core/ports"
)

// Machine owns the single loaded scene. At most one transition runs at a
// time; SetGenre calls made while one is running are dropped.
type Machine struct {
	loader   ports.SceneLoader
	visuals  ports.Visuals
	avatar   ports.Avatar
	profiles Profiles
	logger   *zap.Logger

	// pick returns an index in [0, n).
	pick func(n int) int

	mu        sync.Mutex
	current   string
	switching bool
	// genre is the last genre requested; hasGenre is false until the first.
	genre    domain.Genre
	hasGenre bool
	wg       sync.WaitGroup
}

// Option configures a Machine.
type Option func(*Machine)

// WithPicker replaces the uniform anchor picker.
func WithPicker(pick func(n int) int) Option {
	return func(m *Machine) { m.pick = pick }
}

func WithLogger(logger *zap.Logger) Option {
	return func(m *Machine) { m.logger = logger }
}

func NewMachine(loader ports.SceneLoader, visuals ports.Visuals, avatar ports.Avatar, profiles Profiles, opts ...Option) *Machine {
	if profiles == nil {
		profiles = DefaultProfiles()
	}
	m := &Machine{
		loader:   loader,
		visuals:  visuals,
		avatar:   avatar,
		profiles: profiles,
		logger:   zap.NewNop(),
		pick:     rand.IntN,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetGenre applies the genre's visuals and starts a scene transition when
// the target scene differs from the loaded one. It reports whether a
// transition was started.
func (m *Machine) SetGenre(ctx context.Context, g domain.Genre) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.genre = g
	m.hasGenre = true
	if m.switching {
		m.logger.Debug("scene transition in progress, genre change dropped", zap.Stringer("genre", g))
		return false
	}

	profile := m.profiles.For(g)
	if err := m.visuals.ApplyVisuals(ctx, profile.Skybox, profile.PostProcess); err != nil {
		m.logger.Warn("failed to apply visuals",
			zap.String("skybox", profile.Skybox),
			zap.String("post_process", profile.PostProcess),
			zap.Error(err))
	}

	if profile.Scene == "" || profile.Scene == m.current {
		return false
	}

	m.switching = true
	m.wg.Add(1)
	go m.transition(ctx, m.current, profile)
	return true
}

func (m *Machine) transition(ctx context.Context, previous string, target Profile) {
	defer m.wg.Done()

	log := m.logger.With(zap.String("from", previous), zap.String("to", target.Scene))
	log.Info("scene transition started")

	if previous != "" {
		if err := m.loader.UnloadScene(ctx, previous); err != nil {
			log.Error("scene unload failed", zap.Error(err))
			m.finish(previous)
			return
		}
	}

	anchors, err := m.loader.LoadSceneAdditive(ctx, target.Scene)
	if err != nil {
		log.Error("scene load failed", zap.Error(err))
		m.finish("")
		return
	}

	if len(anchors) == 0 {
		anchors = target.Anchors
	}
	if len(anchors) == 0 {
		log.Warn("scene has no spawn anchors, avatar not moved")
	} else {
		anchor := anchors[m.pick(len(anchors))]
		if err := m.avatar.MoveTo(ctx, anchor); err != nil {
			log.Warn("failed to reposition avatar", zap.String("anchor", anchor.Name), zap.Error(err))
		}
	}

	m.finish(target.Scene)
	log.Info("scene transition finished")
}

func (m *Machine) finish(scene string) {
	m.mu.Lock()
	m.current = scene
	m.switching = false
	m.mu.Unlock()
}

// Resync forgets the loaded scene and replays the last requested genre. It
// is used when an engine attaches and holds none of the scenes recorded so
// far. It reports whether a transition was started.
func (m *Machine) Resync(ctx context.Context) bool {
	m.mu.Lock()
	if m.switching {
		m.mu.Unlock()
		m.logger.Debug("scene transition in progress, resync skipped")
		return false
	}
	m.current = ""
	g, ok := m.genre, m.hasGenre
	m.mu.Unlock()

	if !ok {
		return false
	}
	return m.SetGenre(ctx, g)
}

// CurrentScene is "" before the first transition completes.
func (m *Machine) CurrentScene() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Machine) Switching() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.switching
}

// Wait blocks until any running transition has finished.
func (m *Machine) Wait() {
	m.wg.Wait()
}
