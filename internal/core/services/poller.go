package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ewilliams-labs/soundstage/internal/core/domain"
	"github.com/ewilliams-labs/soundstage/internal/core/ports"
)

// ErrPollerStopped is returned once the poller has halted permanently.
var ErrPollerStopped = errors.New("poller: stopped")

const minPollInterval = time.Second

type PollerState int

const (
	StateAwaitingAuth PollerState = iota
	StateIdle
	StatePolling
	StateReauthenticating
	StateStopped
)

func (s PollerState) String() string {
	switch s {
	case StateAwaitingAuth:
		return "awaiting_auth"
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateReauthenticating:
		return "reauthenticating"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("poller_state(%d)", int(s))
	}
}

// GenreClassifier is the classification surface the poller needs.
type GenreClassifier interface {
	Classify(tags []string) domain.Genre
	ClassifyArtist(name string) domain.Genre
}

// FeatureResolver resolves a vector for a track and never fails.
type FeatureResolver interface {
	ResolveOrPreset(ctx context.Context, trackID string, g domain.Genre) (domain.AudioFeatures, domain.FeatureSource)
}

type PollerConfig struct {
	Interval time.Duration
	// MaxPlay is the auto-skip threshold. Zero disables auto-skip.
	MaxPlay       time.Duration
	BonusPlaylist string
}

// PollerDeps are the poller's collaborators. Environment, Recorder and
// Analyzer are optional.
type PollerDeps struct {
	Auth        ports.Authorizer
	Classifier  GenreClassifier
	Features    FeatureResolver
	Playlists   *PlaylistResolver
	Board       *StateBoard
	Environment ports.EnvironmentController
	Recorder    ports.PlayRecorder
	Analyzer    ports.PreviewAnalyzer
	Logger      *zap.Logger
}

// Poller is the playback control loop.
type Poller struct {
	deps      PollerDeps
	cfg       PollerConfig
	logger    *zap.Logger
	sessionID string
	now       func() time.Time

	// state is readable while a tick is in flight; everything below mu is
	// owned by the goroutine running Tick.
	state  atomic.Int32
	mu     sync.Mutex
	client ports.PlaybackClient
	track  domain.TrackState
	// reauthed is set by a successful reauthorization and cleared by the
	// next successful fetch.
	reauthed bool
}

func NewPoller(deps PollerDeps, cfg PollerConfig) *Poller {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Playlists == nil {
		deps.Playlists = NewPlaylistResolver(logger)
	}
	if deps.Board == nil {
		deps.Board = NewStateBoard()
	}
	p := &Poller{
		deps:      deps,
		cfg:       cfg,
		logger:    logger,
		sessionID: uuid.NewString(),
		now:       time.Now,
	}
	p.setState(StateAwaitingAuth)
	return p
}

func (p *Poller) State() PollerState {
	return PollerState(p.state.Load())
}

func (p *Poller) setState(s PollerState) {
	p.state.Store(int32(s))
}

// TrackState returns a copy of the current track record. It blocks while a
// tick is running.
func (p *Poller) TrackState() domain.TrackState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.track
}

func (p *Poller) SessionID() string {
	return p.sessionID
}

func (p *Poller) Board() *StateBoard {
	return p.deps.Board
}

// Interval is the effective wait between iterations.
func (p *Poller) Interval() time.Duration {
	if p.cfg.Interval < minPollInterval {
		return minPollInterval
	}
	return p.cfg.Interval
}

// Run drives Tick until ctx is cancelled or the poller stops. Cancellation
// returns nil; a permanent halt returns an error wrapping ErrPollerStopped.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started",
		zap.String("session_id", p.sessionID),
		zap.Duration("interval", p.Interval()),
		zap.Duration("max_play", p.cfg.MaxPlay))

	for {
		if ctx.Err() != nil {
			p.logger.Info("poller stopped by owner")
			return nil
		}

		if err := p.Tick(ctx); err != nil {
			return err
		}

		timer := time.NewTimer(p.Interval())
		select {
		case <-ctx.Done():
			timer.Stop()
			p.logger.Info("poller stopped by owner")
			return nil
		case <-timer.C:
		}
	}
}

// Tick runs one loop iteration. It only returns an error once the poller has
// halted.
func (p *Poller) Tick(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.State() {
	case StateStopped:
		return fmt.Errorf("poller: tick after halt: %w", ErrPollerStopped)
	case StateAwaitingAuth:
		if !p.deps.Auth.IsConnected() {
			p.logger.Debug("waiting for playback authorization")
			return nil
		}
		p.client = p.deps.Auth.Client()
		p.setState(StateIdle)
		p.logger.Info("playback client connected")
	}

	p.setState(StatePolling)
	pb, err := p.client.CurrentPlayback(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			return p.reauthorizeLocked(ctx, err)
		}
		p.logger.Warn("playback fetch failed", zap.Error(err))
		return nil
	}
	p.reauthed = false

	if pb.Track == nil || pb.Track.ID == "" {
		p.idleLocked()
		return nil
	}

	if !pb.ShuffleEnabled {
		if err := p.client.SetShuffle(ctx, true); err != nil {
			p.logger.Warn("failed to enable shuffle", zap.Error(err))
		} else {
			p.logger.Info("shuffle enabled")
		}
	}

	if pb.Track.ID != p.track.TrackID {
		p.trackChangedLocked(ctx, pb)
		return nil
	}

	p.advanceLocked(ctx, pb)
	return nil
}

func (p *Poller) reauthorizeLocked(ctx context.Context, cause error) error {
	if p.reauthed {
		p.setState(StateStopped)
		p.logger.Error("authorization rejected again after reauthorization", zap.Error(cause))
		return fmt.Errorf("poller: authorization rejected after reauthorization: %w: %w", ErrPollerStopped, cause)
	}

	p.setState(StateReauthenticating)
	p.logger.Warn("playback authorization failed, reauthorizing", zap.Error(cause))

	if err := p.deps.Auth.Reauthorize(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		p.setState(StateStopped)
		p.logger.Error("reauthorization failed, polling halted", zap.Error(err))
		return fmt.Errorf("poller: reauthorization failed: %w: %w", ErrPollerStopped, err)
	}

	p.client = p.deps.Auth.Client()
	p.reauthed = true
	p.setState(StatePolling)
	p.logger.Info("reauthorization succeeded")
	return nil
}

func (p *Poller) idleLocked() {
	p.setState(StateIdle)
	if !p.track.Active() {
		return
	}
	p.track = domain.TrackState{}
	p.deps.Board.MarkIdle()
	p.logger.Info("nothing playing")
}

func (p *Poller) advanceLocked(ctx context.Context, pb domain.Playback) {
	p.deps.Board.SetPlaying(pb.IsPlaying)
	if pb.IsPlaying {
		p.track.Elapsed += p.Interval()
	}

	if p.cfg.MaxPlay <= 0 || p.track.AutoSkipped || p.track.Elapsed < p.cfg.MaxPlay {
		return
	}

	// The flag is set before the call so a failed skip is never retried.
	p.track.AutoSkipped = true
	p.logger.Info("max play time reached, skipping",
		zap.String("track_id", p.track.TrackID),
		zap.Duration("elapsed", p.track.Elapsed))
	if err := p.client.SkipToNext(ctx); err != nil {
		p.logger.Warn("auto-skip failed", zap.Error(err))
	}

	if p.deps.Recorder != nil && p.track.PlayID != "" {
		if err := p.deps.Recorder.MarkSkipped(ctx, p.track.PlayID); err != nil {
			p.logger.Warn("failed to record auto-skip", zap.Error(err))
		}
	}
}

func (p *Poller) trackChangedLocked(ctx context.Context, pb domain.Playback) {
	t := pb.Track
	p.track.Reset(t.ID, t.ArtistID)
	p.track.PlaylistName = p.deps.Playlists.Resolve(ctx, p.client, pb.Context)

	g := p.classify(ctx, t)
	p.track.Genre = g

	features, source := p.deps.Features.ResolveOrPreset(ctx, t.ID, g)
	bonus := p.cfg.BonusPlaylist != "" && strings.EqualFold(p.track.PlaylistName, p.cfg.BonusPlaylist)

	p.logger.Info("track changed",
		zap.String("track_id", t.ID),
		zap.String("track", t.Name),
		zap.String("artist", t.ArtistName),
		zap.Stringer("genre", g),
		zap.String("playlist", p.track.PlaylistName),
		zap.String("feature_source", string(source)),
		zap.Float64("energy", features.Energy),
		zap.Bool("bonus", bonus))

	p.deps.Board.Publish(domain.Snapshot{
		TrackID:       t.ID,
		TrackName:     t.Name,
		ArtistID:      t.ArtistID,
		ArtistName:    t.ArtistName,
		Genre:         g,
		PlaylistName:  p.track.PlaylistName,
		Features:      features,
		FeatureSource: source,
		BonusPlaylist: bonus,
		Playing:       pb.IsPlaying,
	})

	if p.deps.Environment != nil {
		p.deps.Environment.SetGenre(ctx, g)
	}

	if p.deps.Recorder != nil {
		play := domain.Play{
			ID:           uuid.NewString(),
			SessionID:    p.sessionID,
			TrackID:      t.ID,
			ArtistID:     t.ArtistID,
			Genre:        g,
			PlaylistName: p.track.PlaylistName,
			Bonus:        bonus,
			StartedAt:    p.now(),
		}
		if err := p.deps.Recorder.RecordPlay(ctx, play); err != nil {
			p.logger.Warn("failed to record play", zap.Error(err))
		} else {
			p.track.PlayID = play.ID
		}
	}

	if p.deps.Analyzer != nil && source == domain.SourcePreset && t.PreviewURL != "" {
		p.deps.Analyzer.SubmitPreview(t.ID, g, t.PreviewURL)
	}
}

func (p *Poller) classify(ctx context.Context, t *domain.PlayingTrack) domain.Genre {
	var tags []string
	if t.ArtistID != "" {
		var err error
		tags, err = p.client.ArtistGenres(ctx, t.ArtistID)
		if err != nil {
			p.logger.Warn("artist genre lookup failed", zap.String("artist_id", t.ArtistID), zap.Error(err))
		}
	}

	g := p.deps.Classifier.Classify(tags)
	if g == domain.GenreDefault {
		g = p.deps.Classifier.ClassifyArtist(t.ArtistName)
	}
	return g
}
