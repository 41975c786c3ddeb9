// Package scoring keeps a bounded penalty/reward score for one vehicle.
package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/soltixdb/telewatch/internal/alert"
	"github.com/soltixdb/telewatch/internal/models"
	"github.com/soltixdb/telewatch/internal/window"
)

const (
	MinScore = 0.0
	MaxScore = 100.0

	// historyMetric labels score points in the history ring
	historyMetric = "score"
)

// Config holds the scoring magnitudes
type Config struct {
	Initial float64 `mapstructure:"initial"`

	// Penalties maps severity names to the amount subtracted per alert
	Penalties map[string]float64 `mapstructure:"penalties"`

	// Reward is added once per RewardInterval of sample time without an alert
	Reward         float64       `mapstructure:"reward"`
	RewardInterval time.Duration `mapstructure:"reward_interval"`
}

// DefaultConfig returns the default scoring magnitudes
func DefaultConfig() Config {
	return Config{
		Initial: MaxScore,
		Penalties: map[string]float64{
			alert.SeverityInfo.String():      1,
			alert.SeverityWarning.String():   5,
			alert.SeverityCritical.String():  10,
			alert.SeverityEmergency.String(): 20,
		},
		Reward:         0.5,
		RewardInterval: time.Minute,
	}
}

// Validate checks the scoring configuration
func (c Config) Validate() error {
	if c.Initial < MinScore || c.Initial > MaxScore {
		return fmt.Errorf("initial score must be within [%v, %v], got %v", MinScore, MaxScore, c.Initial)
	}
	for name, p := range c.Penalties {
		if _, err := alert.ParseSeverity(name); err != nil {
			return fmt.Errorf("penalties: %w", err)
		}
		if p < 0 || math.IsNaN(p) {
			return fmt.Errorf("penalty for %s must not be negative, got %v", name, p)
		}
	}
	if c.Reward < 0 {
		return fmt.Errorf("reward must not be negative, got %v", c.Reward)
	}
	if c.RewardInterval < 0 {
		return fmt.Errorf("reward_interval must not be negative, got %v", c.RewardInterval)
	}
	return nil
}

// Engine owns the score state. The value is clamped to [MinScore, MaxScore]
// on every mutation.
type Engine struct {
	value     float64
	penalties [alert.SeverityEmergency + 1]float64
	reward    float64
	interval  time.Duration
	history   *window.Ring
}

// NewEngine creates a scoring engine. historyCapacity bounds the number of
// score points kept.
func NewEngine(cfg Config, historyCapacity int) *Engine {
	defaults := DefaultConfig()
	e := &Engine{
		value:    clamp(cfg.Initial),
		reward:   cfg.Reward,
		interval: cfg.RewardInterval,
		history:  window.NewRing(historyCapacity),
	}
	for _, sev := range alert.Severities {
		p, ok := cfg.Penalties[sev.String()]
		if !ok {
			p = defaults.Penalties[sev.String()]
		}
		e.penalties[sev] = p
	}
	return e
}

// Apply adds delta to the score at the given instant and returns the new value.
// Non-finite deltas are ignored.
func (e *Engine) Apply(at time.Time, delta float64) float64 {
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return e.value
	}
	e.value = clamp(e.value + delta)
	e.history.Push(models.NewSample(historyMetric, e.value, at))
	return e.value
}

// Penalize applies the configured penalty for a severity
func (e *Engine) Penalize(at time.Time, sev alert.Severity) float64 {
	return e.Apply(at, -e.Penalty(sev))
}

// Reward applies the configured clean-period reward
func (e *Engine) Reward(at time.Time) float64 {
	return e.Apply(at, e.reward)
}

// Penalty returns the configured penalty for a severity
func (e *Engine) Penalty(sev alert.Severity) float64 {
	if int(sev) >= len(e.penalties) {
		return 0
	}
	return e.penalties[sev]
}

// RewardInterval returns the clean period after which a reward is due
func (e *Engine) RewardInterval() time.Duration {
	return e.interval
}

// Current returns the score
func (e *Engine) Current() float64 {
	return e.value
}

// History returns the recent score points oldest first
func (e *Engine) History() []models.Sample {
	return e.history.Snapshot()
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return MinScore
	}
	return math.Max(MinScore, math.Min(MaxScore, v))
}
