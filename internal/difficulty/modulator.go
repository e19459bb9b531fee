// Package difficulty turns track energy and genre into spawn parameters.
package difficulty

import (
	"math"
	"time"

	"github.com/ewilliams-labs/soundstage/internal/core/domain"
)

// highEnergy is where the base curves switch to their steeper branch.
const highEnergy = 0.7

// Params is one evaluation of the spawn curves.
type Params struct {
	SpawnInterval time.Duration `json:"spawn_interval_ns"`
	SpawnCount    int           `json:"spawn_count"`
	Speed         float64       `json:"speed"`
}

type Modulator struct {
	minInterval float64
	maxInterval float64
	rate        float64
	spawn       map[domain.Genre]float64
	speed       map[domain.Genre]float64
}

func NewModulator(cfg Config) *Modulator {
	return &Modulator{
		minInterval: cfg.MinIntervalSeconds,
		maxInterval: cfg.MaxIntervalSeconds,
		rate:        cfg.SmoothingRate,
		spawn:       multipliers(cfg.SpawnMultipliers),
		speed:       multipliers(cfg.SpeedMultipliers),
	}
}

// Compute evaluates the curves. Energy is clamped to [0, 1].
func (m *Modulator) Compute(energy float64, g domain.Genre) Params {
	e := clamp01(energy)

	var baseCount, baseSpeed float64
	if e < highEnergy {
		baseCount = 1 + 2*e
		baseSpeed = 0.5 + e
	} else {
		baseCount = 2 + 3*e
		baseSpeed = 1 + 1.5*e
	}

	interval := m.maxInterval + (m.minInterval-m.maxInterval)*e

	return Params{
		SpawnInterval: time.Duration(interval * float64(time.Second)),
		SpawnCount:    int(math.Ceil(baseCount * m.multiplier(m.spawn, g))),
		Speed:         baseSpeed * m.multiplier(m.speed, g),
	}
}

// Approach moves current toward target by exponential smoothing over dt
// seconds. The step never passes target.
func (m *Modulator) Approach(current, target, dt float64) float64 {
	if dt <= 0 {
		return current
	}
	factor := math.Min(1, dt*m.rate)
	return current + (target-current)*factor
}

func (m *Modulator) multiplier(table map[domain.Genre]float64, g domain.Genre) float64 {
	if mult, ok := table[g]; ok {
		return mult
	}
	return 1.0
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
