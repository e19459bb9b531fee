package environment

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/soundstage/internal/core/domain"
)

type fakeEngine struct {
	mu        sync.Mutex
	calls     []string
	visuals   []string
	moves     []domain.Anchor
	anchors   map[string][]domain.Anchor
	loadErr   error
	unloadErr error
	gate      chan struct{}
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{anchors: map[string][]domain.Anchor{}}
}

func (e *fakeEngine) record(call string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, call)
}

func (e *fakeEngine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

func (e *fakeEngine) UnloadScene(_ context.Context, scene string) error {
	e.record("unload:" + scene)
	return e.unloadErr
}

func (e *fakeEngine) LoadSceneAdditive(_ context.Context, scene string) ([]domain.Anchor, error) {
	if e.gate != nil {
		<-e.gate
	}
	e.record("load:" + scene)
	if e.loadErr != nil {
		return nil, e.loadErr
	}
	return e.anchors[scene], nil
}

func (e *fakeEngine) ApplyVisuals(_ context.Context, skybox, _ string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.visuals = append(e.visuals, skybox)
	return nil
}

func (e *fakeEngine) MoveTo(_ context.Context, anchor domain.Anchor) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.moves = append(e.moves, anchor)
	return nil
}

func newMachine(e *fakeEngine, opts ...Option) *Machine {
	return NewMachine(e, e, e, DefaultProfiles(), opts...)
}

func TestMachine_TransitionSequence(t *testing.T) {
	e := newFakeEngine()
	e.anchors["Env_Pop"] = []domain.Anchor{{Name: "a0"}, {Name: "a1"}, {Name: "a2"}}
	m := newMachine(e, WithPicker(func(n int) int { return n - 1 }))
	ctx := context.Background()

	require.True(t, m.SetGenre(ctx, domain.GenreRock))
	m.Wait()
	assert.Equal(t, "Env_Rock", m.CurrentScene())

	require.True(t, m.SetGenre(ctx, domain.GenrePop))
	m.Wait()

	assert.Equal(t, []string{"load:Env_Rock", "unload:Env_Rock", "load:Env_Pop"}, e.Calls())
	assert.Equal(t, "Env_Pop", m.CurrentScene())
	assert.False(t, m.Switching())
	require.Len(t, e.moves, 2)
	// Rock reported no anchors, so its configured ones were used.
	assert.Equal(t, "stage_right", e.moves[0].Name)
	assert.Equal(t, "a2", e.moves[1].Name)
	assert.Equal(t, []string{"Sky_Stormfront", "Sky_NeonDusk"}, e.visuals)
}

func TestMachine_SameSceneOnlyAppliesVisuals(t *testing.T) {
	e := newFakeEngine()
	m := newMachine(e)
	ctx := context.Background()

	require.True(t, m.SetGenre(ctx, domain.GenreRap))
	m.Wait()
	assert.False(t, m.SetGenre(ctx, domain.GenreRap))
	m.Wait()

	assert.Equal(t, []string{"load:Env_Rap"}, e.Calls())
	assert.Len(t, e.visuals, 2)
}

func TestMachine_DropsCallsDuringTransition(t *testing.T) {
	e := newFakeEngine()
	e.gate = make(chan struct{})
	m := newMachine(e)
	ctx := context.Background()

	require.True(t, m.SetGenre(ctx, domain.GenreClassic))
	assert.True(t, m.Switching())
	assert.False(t, m.SetGenre(ctx, domain.GenreCountry))
	assert.False(t, m.SetGenre(ctx, domain.GenreRock))

	close(e.gate)
	m.Wait()

	assert.Equal(t, []string{"load:Env_Classic"}, e.Calls())
	assert.Equal(t, "Env_Classic", m.CurrentScene())
	// Dropped calls did not touch visuals either.
	assert.Len(t, e.visuals, 1)
}

func TestMachine_LoadFailureClearsGuard(t *testing.T) {
	e := newFakeEngine()
	m := newMachine(e)
	ctx := context.Background()

	require.True(t, m.SetGenre(ctx, domain.GenreRock))
	m.Wait()

	e.loadErr = errors.New("scene missing from build")
	require.True(t, m.SetGenre(ctx, domain.GenrePop))
	m.Wait()

	assert.False(t, m.Switching())
	assert.Equal(t, "", m.CurrentScene())
	assert.Len(t, e.moves, 1)
}

func TestMachine_UnloadFailureKeepsPreviousScene(t *testing.T) {
	e := newFakeEngine()
	m := newMachine(e)
	ctx := context.Background()

	require.True(t, m.SetGenre(ctx, domain.GenreRock))
	m.Wait()

	e.unloadErr = errors.New("unload timed out")
	require.True(t, m.SetGenre(ctx, domain.GenreCountry))
	m.Wait()

	assert.False(t, m.Switching())
	assert.Equal(t, "Env_Rock", m.CurrentScene())
	assert.Equal(t, []string{"load:Env_Rock", "unload:Env_Rock"}, e.Calls())
}

func TestMachine_NoAnchorsDoesNotMove(t *testing.T) {
	e := newFakeEngine()
	profiles := Profiles{
		domain.GenreDefault: {Genre: domain.GenreDefault, Scene: "Env_Empty"},
	}
	m := NewMachine(e, e, e, profiles)

	require.True(t, m.SetGenre(context.Background(), domain.GenreRock))
	m.Wait()

	assert.Equal(t, "Env_Empty", m.CurrentScene())
	assert.Empty(t, e.moves)
}

func TestMachine_ResyncReloadsLastGenre(t *testing.T) {
	tests := []struct {
		name      string
		genres    []domain.Genre
		wantStart bool
		wantCalls []string
	}{
		{
			name:      "before any genre",
			wantCalls: nil,
		},
		{
			name:      "reloads the loaded scene without unloading",
			genres:    []domain.Genre{domain.GenreRock},
			wantStart: true,
			wantCalls: []string{"load:Env_Rock", "load:Env_Rock"},
		},
		{
			name:      "uses the latest genre",
			genres:    []domain.Genre{domain.GenreRock, domain.GenrePop},
			wantStart: true,
			wantCalls: []string{"load:Env_Rock", "unload:Env_Rock", "load:Env_Pop", "load:Env_Pop"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newFakeEngine()
			m := newMachine(e)
			ctx := context.Background()

			for _, g := range tt.genres {
				m.SetGenre(ctx, g)
				m.Wait()
			}

			assert.Equal(t, tt.wantStart, m.Resync(ctx))
			m.Wait()

			assert.Equal(t, tt.wantCalls, e.Calls())
			assert.False(t, m.Switching())
		})
	}
}

func TestMachine_ResyncSkippedDuringTransition(t *testing.T) {
	e := newFakeEngine()
	e.gate = make(chan struct{})
	m := newMachine(e)
	ctx := context.Background()

	require.True(t, m.SetGenre(ctx, domain.GenreRap))
	assert.False(t, m.Resync(ctx))

	close(e.gate)
	m.Wait()
	assert.Equal(t, "Env_Rap", m.CurrentScene())
}

func TestParseProfiles(t *testing.T) {
	profiles := DefaultProfiles()
	for _, g := range domain.AllGenres {
		assert.NotEmpty(t, profiles.For(g).Scene, g.String())
	}

	_, err := ParseProfiles([]byte("profiles:\n  - genre: rock\n    scene: Env_Rock\n"))
	assert.Error(t, err, "default profile is required")

	_, err = ParseProfiles([]byte("profiles:\n  - genre: default\n    scene: a\n  - genre: default\n    scene: b\n"))
	assert.Error(t, err)
}
