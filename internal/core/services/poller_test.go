package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/soundstage/internal/core/domain"
	"github.com/ewilliams-labs/soundstage/internal/core/ports"
	"github.com/ewilliams-labs/soundstage/internal/genre"
)

type playbackResult struct {
	pb  domain.Playback
	err error
}

type fakePlayback struct {
	mu        sync.Mutex
	script    []playbackResult
	fetches   int
	shuffles  []bool
	skips     int
	skipErr   error
	genres    map[string][]string
	playlists map[string]string
}

func (f *fakePlayback) CurrentPlayback(context.Context) (domain.Playback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if len(f.script) == 0 {
		return domain.Playback{}, nil
	}
	next := f.script[0]
	if len(f.script) > 1 {
		f.script = f.script[1:]
	}
	return next.pb, next.err
}

func (f *fakePlayback) ArtistGenres(_ context.Context, artistID string) ([]string, error) {
	tags, ok := f.genres[artistID]
	if !ok {
		return nil, errors.New("artist lookup failed")
	}
	return tags, nil
}

func (f *fakePlayback) PlaylistName(_ context.Context, id string) (string, error) {
	name, ok := f.playlists[id]
	if !ok {
		return "", domain.ErrNotFound
	}
	return name, nil
}

func (f *fakePlayback) SetShuffle(_ context.Context, enabled bool) error {
	f.shuffles = append(f.shuffles, enabled)
	return nil
}

func (f *fakePlayback) SkipToNext(context.Context) error {
	f.skips++
	return f.skipErr
}

type fakeAuth struct {
	connected  bool
	clients    []*fakePlayback
	current    int
	reauthErr  error
	reauthCall int
}

func (a *fakeAuth) IsConnected() bool { return a.connected }

func (a *fakeAuth) Client() ports.PlaybackClient { return a.clients[a.current] }

func (a *fakeAuth) Reauthorize(context.Context) error {
	a.reauthCall++
	if a.reauthErr != nil {
		return a.reauthErr
	}
	if a.current+1 < len(a.clients) {
		a.current++
	}
	return nil
}

type fakeFeatures struct {
	calls  int
	source domain.FeatureSource
}

func (f *fakeFeatures) ResolveOrPreset(_ context.Context, trackID string, g domain.Genre) (domain.AudioFeatures, domain.FeatureSource) {
	f.calls++
	src := f.source
	if src == "" {
		src = domain.SourceNetwork
	}
	return domain.AudioFeatures{TrackID: trackID, Energy: 0.75}, src
}

type fakeEnvironment struct {
	genres []domain.Genre
}

func (e *fakeEnvironment) SetGenre(_ context.Context, g domain.Genre) bool {
	e.genres = append(e.genres, g)
	return true
}

type fakeRecorder struct {
	plays   []domain.Play
	skipped []string
}

func (r *fakeRecorder) RecordPlay(_ context.Context, play domain.Play) error {
	r.plays = append(r.plays, play)
	return nil
}

func (r *fakeRecorder) MarkSkipped(_ context.Context, playID string) error {
	r.skipped = append(r.skipped, playID)
	return nil
}

type fakeAnalyzer struct {
	jobs []string
}

func (a *fakeAnalyzer) SubmitPreview(trackID string, _ domain.Genre, _ string) {
	a.jobs = append(a.jobs, trackID)
}

func playing(trackID string) playbackResult {
	return playbackResult{pb: domain.Playback{
		Track:          &domain.PlayingTrack{ID: trackID, Name: "Song " + trackID, ArtistID: "artist-rock", ArtistName: "Band"},
		IsPlaying:      true,
		ShuffleEnabled: true,
	}}
}

type pollerFixture struct {
	poller   *Poller
	client   *fakePlayback
	auth     *fakeAuth
	features *fakeFeatures
	env      *fakeEnvironment
	recorder *fakeRecorder
	analyzer *fakeAnalyzer
}

func newPollerFixture(cfg PollerConfig, script ...playbackResult) *pollerFixture {
	client := &fakePlayback{
		script: script,
		genres: map[string][]string{
			"artist-rock": {"classic rock", "hard rock"},
			"artist-none": {},
		},
		playlists: map[string]string{"p1": "Boss Rush"},
	}
	f := &pollerFixture{
		client:   client,
		auth:     &fakeAuth{connected: true, clients: []*fakePlayback{client}},
		features: &fakeFeatures{},
		env:      &fakeEnvironment{},
		recorder: &fakeRecorder{},
		analyzer: &fakeAnalyzer{},
	}
	f.poller = NewPoller(PollerDeps{
		Auth:        f.auth,
		Classifier:  genre.NewClassifier(nil),
		Features:    f.features,
		Environment: f.env,
		Recorder:    f.recorder,
		Analyzer:    f.analyzer,
	}, cfg)
	return f
}

func tickN(t *testing.T, p *Poller, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, p.Tick(context.Background()))
	}
}

func TestPoller_AutoSkipFiresExactlyOnce(t *testing.T) {
	fx := newPollerFixture(PollerConfig{Interval: 5 * time.Second, MaxPlay: 45 * time.Second}, playing("t1"))

	// First observation resets the track; each further tick adds 5s.
	tickN(t, fx.poller, 9)
	assert.Equal(t, 0, fx.client.skips)
	assert.Equal(t, 40*time.Second, fx.poller.TrackState().Elapsed)

	tickN(t, fx.poller, 1)
	assert.Equal(t, 1, fx.client.skips)
	assert.True(t, fx.poller.TrackState().AutoSkipped)

	tickN(t, fx.poller, 10)
	assert.Equal(t, 1, fx.client.skips)
	require.Len(t, fx.recorder.skipped, 1)
	assert.Equal(t, fx.recorder.plays[0].ID, fx.recorder.skipped[0])
}

func TestPoller_AutoSkipFlagSetWhenSkipFails(t *testing.T) {
	fx := newPollerFixture(PollerConfig{Interval: 5 * time.Second, MaxPlay: 10 * time.Second}, playing("t1"))
	fx.client.skipErr = errors.New("no active device")

	tickN(t, fx.poller, 6)
	assert.Equal(t, 1, fx.client.skips)
	assert.Equal(t, StatePolling, fx.poller.State())
}

func TestPoller_PausedTrackDoesNotAccumulate(t *testing.T) {
	paused := playing("t1")
	paused.pb.IsPlaying = false
	fx := newPollerFixture(PollerConfig{Interval: 5 * time.Second, MaxPlay: 10 * time.Second}, paused)

	tickN(t, fx.poller, 5)
	assert.Equal(t, time.Duration(0), fx.poller.TrackState().Elapsed)
	assert.Equal(t, 0, fx.client.skips)
}

func TestPoller_IntervalFloor(t *testing.T) {
	fx := newPollerFixture(PollerConfig{Interval: 200 * time.Millisecond}, playing("t1"))
	assert.Equal(t, time.Second, fx.poller.Interval())

	tickN(t, fx.poller, 3)
	assert.Equal(t, 2*time.Second, fx.poller.TrackState().Elapsed)
}

func TestPoller_ShuffleEnforcedEveryTick(t *testing.T) {
	noShuffle := playing("t1")
	noShuffle.pb.ShuffleEnabled = false
	fx := newPollerFixture(PollerConfig{Interval: time.Second}, noShuffle)

	tickN(t, fx.poller, 3)
	assert.Equal(t, []bool{true, true, true}, fx.client.shuffles)
}

func TestPoller_TrackChangedSequence(t *testing.T) {
	withPlaylist := playing("t1")
	withPlaylist.pb.Context = &domain.PlaybackContext{Type: "playlist", URI: "spotify:playlist:p1"}
	fx := newPollerFixture(PollerConfig{Interval: time.Second, BonusPlaylist: "boss rush"}, withPlaylist)

	tickN(t, fx.poller, 1)

	snap := fx.poller.Board().Current()
	assert.Equal(t, "t1", snap.TrackID)
	assert.Equal(t, domain.GenreRock, snap.Genre)
	assert.Equal(t, "Boss Rush", snap.PlaylistName)
	assert.True(t, snap.BonusPlaylist)
	assert.True(t, fx.poller.Board().BonusActive())
	assert.InDelta(t, 0.75, fx.poller.Board().Features().Energy, 1e-9)
	assert.Equal(t, []domain.Genre{domain.GenreRock}, fx.env.genres)
	require.Len(t, fx.recorder.plays, 1)
	assert.Equal(t, fx.poller.SessionID(), fx.recorder.plays[0].SessionID)
	assert.Empty(t, fx.analyzer.jobs)

	// Same track again triggers nothing new.
	tickN(t, fx.poller, 1)
	assert.Equal(t, 1, fx.features.calls)
	assert.Len(t, fx.env.genres, 1)
}

func TestPoller_ArtistFallbackAndPreviewJob(t *testing.T) {
	res := playing("t2")
	res.pb.Track.ArtistID = "artist-none"
	res.pb.Track.ArtistName = "Dolly Parton"
	res.pb.Track.PreviewURL = "https://p.scdn.co/mp3-preview/t2"
	fx := newPollerFixture(PollerConfig{Interval: time.Second, BonusPlaylist: "Boss Rush"}, res)
	fx.features.source = domain.SourcePreset

	tickN(t, fx.poller, 1)

	assert.Equal(t, domain.GenreCountry, fx.poller.Board().Genre())
	assert.False(t, fx.poller.Board().BonusActive())
	assert.Equal(t, []string{"t2"}, fx.analyzer.jobs)
}

func TestPoller_ArtistLookupFailureDegrades(t *testing.T) {
	res := playing("t3")
	res.pb.Track.ArtistID = "artist-unknown"
	res.pb.Track.ArtistName = "Eminem"
	fx := newPollerFixture(PollerConfig{Interval: time.Second}, res)

	tickN(t, fx.poller, 1)
	assert.Equal(t, domain.GenreRap, fx.poller.Board().Genre())
}

func TestPoller_NothingPlayingClearsTrack(t *testing.T) {
	fx := newPollerFixture(PollerConfig{Interval: time.Second},
		playing("t1"), playing("t1"), playbackResult{})

	tickN(t, fx.poller, 2)
	assert.Equal(t, time.Second, fx.poller.TrackState().Elapsed)

	tickN(t, fx.poller, 1)
	assert.False(t, fx.poller.TrackState().Active())
	assert.Equal(t, StateIdle, fx.poller.State())
	assert.Empty(t, fx.poller.Board().Current().TrackID)
	assert.Equal(t, domain.GenreRock, fx.poller.Board().Genre())
}

func TestPoller_NothingPlayingEndsBonus(t *testing.T) {
	withPlaylist := playing("t1")
	withPlaylist.pb.Context = &domain.PlaybackContext{Type: "playlist", URI: "spotify:playlist:p1"}
	fx := newPollerFixture(PollerConfig{Interval: time.Second, BonusPlaylist: "Boss Rush"},
		withPlaylist, playbackResult{})

	tickN(t, fx.poller, 1)
	require.True(t, fx.poller.Board().BonusActive())

	tickN(t, fx.poller, 1)
	board := fx.poller.Board()
	assert.False(t, board.BonusActive())
	assert.Empty(t, board.PlaylistName())
	assert.Empty(t, fx.poller.TrackState().PlaylistName)
	assert.Equal(t, domain.GenreRock, board.Genre())
}

func TestPoller_TransientErrorKeepsPolling(t *testing.T) {
	fx := newPollerFixture(PollerConfig{Interval: time.Second},
		playbackResult{err: errors.New("502 bad gateway")}, playing("t1"))

	tickN(t, fx.poller, 1)
	assert.Equal(t, StatePolling, fx.poller.State())
	assert.Equal(t, 0, fx.auth.reauthCall)

	tickN(t, fx.poller, 1)
	assert.Equal(t, "t1", fx.poller.Board().Current().TrackID)
}

func TestPoller_AwaitingAuth(t *testing.T) {
	fx := newPollerFixture(PollerConfig{Interval: time.Second}, playing("t1"))
	fx.auth.connected = false

	tickN(t, fx.poller, 2)
	assert.Equal(t, StateAwaitingAuth, fx.poller.State())
	assert.Equal(t, 0, fx.client.fetches)

	fx.auth.connected = true
	tickN(t, fx.poller, 1)
	assert.Equal(t, 1, fx.client.fetches)
}

func TestPoller_ReauthorizeSwapsClient(t *testing.T) {
	fx := newPollerFixture(PollerConfig{Interval: time.Second},
		playbackResult{err: domain.ErrUnauthorized})
	fresh := &fakePlayback{script: []playbackResult{playing("t9")}, genres: map[string][]string{"artist-rock": {"rock"}}}
	fx.auth.clients = append(fx.auth.clients, fresh)

	tickN(t, fx.poller, 1)
	assert.Equal(t, 1, fx.auth.reauthCall)
	assert.Equal(t, StatePolling, fx.poller.State())

	tickN(t, fx.poller, 1)
	assert.Equal(t, 1, fresh.fetches)
	assert.Equal(t, "t9", fx.poller.Board().Current().TrackID)
}

func TestPoller_RepeatedAuthFailureHalts(t *testing.T) {
	fx := newPollerFixture(PollerConfig{Interval: time.Second},
		playbackResult{err: domain.ErrUnauthorized})

	require.NoError(t, fx.poller.Tick(context.Background()))
	err := fx.poller.Tick(context.Background())
	require.ErrorIs(t, err, ErrPollerStopped)
	assert.Equal(t, 1, fx.auth.reauthCall)
	assert.Equal(t, StateStopped, fx.poller.State())
}

func TestPoller_RunStopsWhenReauthorizationFails(t *testing.T) {
	fx := newPollerFixture(PollerConfig{Interval: time.Second},
		playbackResult{err: domain.ErrUnauthorized})
	fx.auth.reauthErr = errors.New("refresh token revoked")

	err := fx.poller.Run(context.Background())
	require.ErrorIs(t, err, ErrPollerStopped)
	assert.Equal(t, StateStopped, fx.poller.State())
	assert.Equal(t, 1, fx.auth.reauthCall)

	// No further polling once halted.
	require.ErrorIs(t, fx.poller.Tick(context.Background()), ErrPollerStopped)
	assert.Equal(t, 1, fx.client.fetches)
}

func TestPoller_RunReturnsNilOnCancel(t *testing.T) {
	fx := newPollerFixture(PollerConfig{Interval: time.Second}, playing("t1"))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- fx.poller.Run(ctx) }()

	require.Eventually(t, func() bool { return fx.poller.Board().Current().TrackID == "t1" },
		time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
