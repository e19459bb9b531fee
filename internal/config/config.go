// Package config reads runtime settings from the environment, with optional
// .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config is the full set of runtime settings.
type Config struct {
	SpotifyClientID     string
	SpotifyClientSecret string
	SpotifyRedirectURL  string
	SpotifyTokenPath    string

	PollInterval      time.Duration
	MaxTrackPlay      time.Duration
	BonusPlaylistName string

	FeaturesBaseURL string

	StorageDriver string
	SQLitePath    string

	GenreRulesPath        string
	EnvironmentConfigPath string
	DifficultyConfigPath  string

	HTTPAddr         string
	EngineAckTimeout time.Duration
	AnalysisWorkers  int

	LogLevel string
}

// Load applies the given .env files (".env" when none are named) and reads
// the environment. Variables already set take precedence over file values.
// Missing .env files are ignored.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: failed to load env file: %w", err)
	}
	return FromEnv()
}

// FromEnv reads the process environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		SpotifyClientID:       os.Getenv("SPOTIFY_CLIENT_ID"),
		SpotifyClientSecret:   os.Getenv("SPOTIFY_CLIENT_SECRET"),
		SpotifyRedirectURL:    getEnv("SPOTIFY_REDIRECT_URL", "http://127.0.0.1:8888/callback"),
		SpotifyTokenPath:      getEnv("SPOTIFY_TOKEN_PATH", "spotify_token.json"),
		BonusPlaylistName:     os.Getenv("BONUS_PLAYLIST_NAME"),
		FeaturesBaseURL:       getEnv("FEATURES_BASE_URL", "https://api.reccobeats.com/v1"),
		StorageDriver:         strings.ToLower(getEnv("STORAGE_DRIVER", DriverSQLite)),
		SQLitePath:            getEnv("SQLITE_PATH", "soundstage.db"),
		GenreRulesPath:        os.Getenv("GENRE_RULES_PATH"),
		EnvironmentConfigPath: os.Getenv("ENVIRONMENT_CONFIG_PATH"),
		DifficultyConfigPath:  getEnv("DIFFICULTY_CONFIG_PATH", "soundstage.toml"),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
	}

	var errs []error
	cfg.PollInterval = getSeconds("POLL_INTERVAL_SECONDS", 3, &errs)
	cfg.MaxTrackPlay = getSeconds("MAX_TRACK_PLAY_SECONDS", 45, &errs)
	cfg.EngineAckTimeout = getSeconds("ENGINE_ACK_TIMEOUT_SECONDS", 10, &errs)
	cfg.AnalysisWorkers = getInt("ANALYSIS_WORKERS", 2, &errs)
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required credentials and value ranges.
func (c Config) Validate() error {
	var errs []error
	if c.SpotifyClientID == "" || c.SpotifyClientSecret == "" {
		errs = append(errs, errors.New("config: SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET are required"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("config: POLL_INTERVAL_SECONDS must be positive"))
	}
	if c.MaxTrackPlay < 0 {
		errs = append(errs, errors.New("config: MAX_TRACK_PLAY_SECONDS must not be negative"))
	}
	if c.EngineAckTimeout < 0 {
		errs = append(errs, errors.New("config: ENGINE_ACK_TIMEOUT_SECONDS must not be negative"))
	}
	if c.AnalysisWorkers < 0 {
		errs = append(errs, errors.New("config: ANALYSIS_WORKERS must not be negative"))
	}
	switch c.StorageDriver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("config: SQLITE_PATH is required for the sqlite driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("config: unknown storage driver %q", c.StorageDriver))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("config: invalid LOG_LEVEL: %w", err))
	}
	return errors.Join(errs...)
}

// NewLogger builds a production logger at the configured level.
func (c Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("config: invalid LOG_LEVEL: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getSeconds(key string, fallback float64, errs *[]error) time.Duration {
	seconds := fallback
	if raw := os.Getenv(key); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("config: %s: %w", key, err))
		} else {
			seconds = parsed
		}
	}
	return time.Duration(seconds * float64(time.Second))
}

func getInt(key string, fallback int, errs *[]error) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("config: %s: %w", key, err))
		return fallback
	}
	return parsed
}
