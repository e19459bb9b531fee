package difficulty

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/ewilliams-labs/soundstage/internal/core/domain"
)

// Config holds the tunable spawn parameters. Multiplier maps are keyed by
// genre name; genres absent from a map use 1.0.
type Config struct {
	MinIntervalSeconds float64            `toml:"min_interval_seconds"`
	MaxIntervalSeconds float64            `toml:"max_interval_seconds"`
	SmoothingRate      float64            `toml:"smoothing_rate"`
	SpawnMultipliers   map[string]float64 `toml:"spawn_multipliers"`
	SpeedMultipliers   map[string]float64 `toml:"speed_multipliers"`
}

func DefaultConfig() Config {
	return Config{
		MinIntervalSeconds: 3,
		MaxIntervalSeconds: 5,
		SmoothingRate:      3,
		SpawnMultipliers: map[string]float64{
			"rock":    2.5,
			"pop":     1.5,
			"rap":     1.5,
			"classic": 0.5,
			"country": 1.2,
			"default": 1.0,
		},
		SpeedMultipliers: map[string]float64{
			"rock":    4.0,
			"pop":     1.8,
			"rap":     4.0,
			"classic": 1.5,
			"country": 1.5,
			"default": 1.0,
		},
	}
}

// LoadConfig reads a TOML file over the defaults. A missing file yields the
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return DefaultConfig(), fmt.Errorf("difficulty: failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("difficulty: failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return DefaultConfig(), err
	}
	return cfg, nil
}

// Validate checks interval ordering, rates and multiplier keys.
func (c Config) Validate() error {
	if c.MinIntervalSeconds <= 0 || c.MaxIntervalSeconds < c.MinIntervalSeconds {
		return fmt.Errorf("difficulty: invalid interval range [%v, %v]", c.MinIntervalSeconds, c.MaxIntervalSeconds)
	}
	if c.SmoothingRate < 0 {
		return fmt.Errorf("difficulty: smoothing rate must not be negative")
	}
	for _, table := range []map[string]float64{c.SpawnMultipliers, c.SpeedMultipliers} {
		for name, mult := range table {
			if _, err := domain.ParseGenre(name); err != nil {
				return fmt.Errorf("difficulty: multiplier table: %w", err)
			}
			if mult < 0 {
				return fmt.Errorf("difficulty: negative multiplier for %q", name)
			}
		}
	}
	return nil
}

func multipliers(table map[string]float64) map[domain.Genre]float64 {
	out := make(map[domain.Genre]float64, len(table))
	for name, mult := range table {
		if g, err := domain.ParseGenre(name); err == nil {
			out[g] = mult
		}
	}
	return out
}
