// Package worker estimates audio features from track previews in the
// background when the feature service has no answer.
package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/soundstage/internal/core/domain"
	"github.com/ewilliams-labs/soundstage/internal/core/ports"
	"github.com/ewilliams-labs/soundstage/internal/features"
)

// Job is one preview analysis request.
type Job struct {
	TrackID    string
	Genre      domain.Genre
	PreviewURL string
}

// Pool runs preview analysis on a fixed number of goroutines.
type Pool struct {
	store   ports.FeatureStore
	logger  *zap.Logger
	analyze AnalyzeFunc
	jobs    chan Job
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
}

// NewPool creates a pool with the given queue size. analyze may be nil to
// use AnalyzePreview.
func NewPool(store ports.FeatureStore, analyze AnalyzeFunc, queueSize int, logger *zap.Logger) *Pool {
	if queueSize < 1 {
		queueSize = 1
	}
	if analyze == nil {
		analyze = AnalyzePreview
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		store:   store,
		logger:  logger,
		analyze: analyze,
		jobs:    make(chan Job, queueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start(workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				p.processJob(job)
			}
		}()
	}
}

// Stop cancels in-flight downloads, closes the queue and waits for workers.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}

// Submit queues a job without blocking. Jobs are dropped when the queue is
// full or the pool is stopped.
func (p *Pool) Submit(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}

	select {
	case p.jobs <- job:
		return true
	default:
		p.logger.Warn("analysis queue full, dropping job", zap.String("track_id", job.TrackID))
		return false
	}
}

// SubmitPreview implements ports.PreviewAnalyzer.
func (p *Pool) SubmitPreview(trackID string, genre domain.Genre, previewURL string) {
	p.Submit(Job{TrackID: trackID, Genre: genre, PreviewURL: previewURL})
}

func (p *Pool) processJob(job Job) {
	log := p.logger.With(zap.String("track_id", job.TrackID))
	if job.PreviewURL == "" {
		log.Debug("no preview url, skipping analysis")
		return
	}

	analysis, err := p.analyze(p.ctx, job.PreviewURL)
	if err != nil {
		log.Warn("preview analysis failed", zap.Error(err))
		return
	}

	estimate := features.Preset(job.Genre).WithTrackID(job.TrackID)
	estimate.Energy = analysis.Energy
	estimate.Loudness = analysis.Loudness

	if err := p.store.SaveFeatures(p.ctx, estimate, domain.SourcePreview); err != nil {
		log.Warn("failed to store preview estimate", zap.Error(err))
		return
	}
	log.Info("stored preview estimate",
		zap.Float64("energy", analysis.Energy),
		zap.Float64("loudness", analysis.Loudness))
}

var _ ports.PreviewAnalyzer = (*Pool)(nil)
