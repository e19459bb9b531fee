package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gospotify "github.com/zmb3/spotify/v2"
	"go.uber.org/zap"

	"github.com/ewilliams-labs/soundstage/internal/adapters/memory"
	"github.com/ewilliams-labs/soundstage/internal/adapters/reccobeats"
	"github.com/ewilliams-labs/soundstage/internal/adapters/rest"
	"github.com/ewilliams-labs/soundstage/internal/adapters/spotify"
	"github.com/ewilliams-labs/soundstage/internal/adapters/sqlite"
	"github.com/ewilliams-labs/soundstage/internal/config"
	"github.com/ewilliams-labs/soundstage/internal/core/ports"
	"github.com/ewilliams-labs/soundstage/internal/core/services"
	"github.com/ewilliams-labs/soundstage/internal/difficulty"
	"github.com/ewilliams-labs/soundstage/internal/environment"
	"github.com/ewilliams-labs/soundstage/internal/features"
	"github.com/ewilliams-labs/soundstage/internal/genre"
	"github.com/ewilliams-labs/soundstage/internal/worker"
)

const analysisQueueSize = 100

// storage is everything the session persists.
type storage interface {
	ports.FeatureStore
	ports.PlayRecorder
	ports.PlayHistory
}

func main() {
	// 1. Configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Driven adapters
	var store storage
	switch cfg.StorageDriver {
	case config.DriverSQLite:
		dbAdapter, err := sqlite.NewAdapter(cfg.SQLitePath)
		if err != nil {
			logger.Fatal("failed to initialize database", zap.Error(err))
		}
		defer dbAdapter.Close()
		store = dbAdapter
	case config.DriverMemory:
		store = memory.NewStore()
	}

	auth := spotify.NewAuthorizer(spotify.AuthConfig{
		ClientID:     cfg.SpotifyClientID,
		ClientSecret: cfg.SpotifyClientSecret,
		RedirectURL:  cfg.SpotifyRedirectURL,
		TokenPath:    cfg.SpotifyTokenPath,
		Prompt:       os.Stdin,
		Out:          os.Stdout,
		// Rate-limited requests are retried after the advertised delay.
		ClientOptions: []gospotify.ClientOption{gospotify.WithRetry(true)},
	}, logger.Named("spotify"))
	if err := auth.Connect(ctx); err != nil {
		logger.Fatal("failed to connect to spotify", zap.Error(err))
	}

	featureClient := reccobeats.NewClient(&http.Client{Timeout: 15 * time.Second}, cfg.FeaturesBaseURL, logger.Named("reccobeats"))
	resolver := features.NewResolver(featureClient, store, logger.Named("features"))

	// 3. Rule table, hot-reloaded when it lives on disk
	rules := genre.DefaultRuleTable()
	if cfg.GenreRulesPath != "" {
		rules, err = genre.LoadRuleTable(cfg.GenreRulesPath)
		if err != nil {
			logger.Fatal("failed to load genre rules", zap.Error(err))
		}
	}
	classifier := genre.NewClassifier(rules)
	if cfg.GenreRulesPath != "" {
		watcher, err := genre.NewWatcher(cfg.GenreRulesPath, classifier, logger.Named("genre"))
		if err != nil {
			logger.Warn("genre rule hot reload disabled", zap.Error(err))
		} else {
			go watcher.Run(ctx)
		}
	}

	// 4. Engine bridge and the environment it drives
	hub := rest.NewHub(logger.Named("engine"), cfg.EngineAckTimeout)

	profiles := environment.DefaultProfiles()
	if cfg.EnvironmentConfigPath != "" {
		profiles, err = environment.LoadProfiles(cfg.EnvironmentConfigPath)
		if err != nil {
			logger.Fatal("failed to load environment profiles", zap.Error(err))
		}
	}
	machine := environment.NewMachine(hub, hub, hub, profiles, environment.WithLogger(logger.Named("environment")))
	// A newly attached engine holds no scene, so replay the current genre.
	hub.OnEngineAttached(func() { machine.Resync(ctx) })

	difficultyCfg, err := difficulty.LoadConfig(cfg.DifficultyConfigPath)
	if err != nil {
		logger.Warn("using default difficulty tuning", zap.Error(err))
	}
	modulator := difficulty.NewModulator(difficultyCfg)

	var analyzer ports.PreviewAnalyzer
	if cfg.AnalysisWorkers > 0 {
		pool := worker.NewPool(store, worker.AnalyzePreview, analysisQueueSize, logger.Named("worker"))
		pool.Start(cfg.AnalysisWorkers)
		defer pool.Stop()
		analyzer = pool
	}

	// 5. Core
	board := services.NewStateBoard()
	poller := services.NewPoller(services.PollerDeps{
		Auth:        auth,
		Classifier:  classifier,
		Features:    resolver,
		Playlists:   services.NewPlaylistResolver(logger.Named("playlist")),
		Board:       board,
		Environment: machine,
		Recorder:    store,
		Analyzer:    analyzer,
		Logger:      logger.Named("poller"),
	}, services.PollerConfig{
		Interval:      cfg.PollInterval,
		MaxPlay:       cfg.MaxTrackPlay,
		BonusPlaylist: cfg.BonusPlaylistName,
	})

	// 6. Driving adapter
	handler := rest.NewHandler(rest.Deps{
		Board:     board,
		Modulator: modulator,
		Poller:    poller,
		Scenes:    machine,
		History:   store,
		Hub:       hub,
		Logger:    logger.Named("http"),
	})
	unsubscribe := board.Subscribe(handler.PublishState)
	defer unsubscribe()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	pollerErr := make(chan error, 1)
	go func() {
		pollerErr <- poller.Run(ctx)
	}()

	logger.Info("soundstage is running",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("storage", cfg.StorageDriver),
		zap.Duration("poll_interval", poller.Interval()),
		zap.String("session_id", poller.SessionID()))

	pollerDone := false
	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("http server failed", zap.Error(err))
		}
	case err := <-pollerErr:
		pollerDone = true
		if err != nil {
			logger.Error("poller stopped", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}
	stop()
	if !pollerDone {
		<-pollerErr
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
	machine.Wait()
}
