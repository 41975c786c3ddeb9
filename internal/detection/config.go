package detection

import (
	"fmt"

	"github.com/soltixdb/telewatch/internal/models"
)

// Profile holds the thresholds applied to one metric kind
type Profile struct {
	HarshDeceleration     float64 `mapstructure:"harsh_deceleration"`     // units/s, negative
	CollisionDeceleration float64 `mapstructure:"collision_deceleration"` // units/s, below HarshDeceleration
	RapidAcceleration     float64 `mapstructure:"rapid_acceleration"`     // units/s, positive
	Variance              float64 `mapstructure:"variance"`               // stddev limit
	VarianceMinPoints     int     `mapstructure:"variance_min_points"`
	AnomalyZScore         float64 `mapstructure:"anomaly_zscore"`
	AnomalyCriticalZScore float64 `mapstructure:"anomaly_critical_zscore"`
	AnomalyMinPoints      int     `mapstructure:"anomaly_min_points"`
}

// Config maps metric kind names (speed, engine_rpm, ..., generic) to profiles
type Config struct {
	Profiles map[string]Profile `mapstructure:"profiles"`
}

const (
	defaultVarianceMinPoints = 5
	defaultAnomalyMinPoints  = 10
)

// DefaultConfig returns the built-in thresholds table
func DefaultConfig() Config {
	return Config{
		Profiles: map[string]Profile{
			models.MetricSpeed: {
				HarshDeceleration:     -5.0,
				CollisionDeceleration: -12.0,
				RapidAcceleration:     4.0,
				Variance:              15.0,
				VarianceMinPoints:     defaultVarianceMinPoints,
				AnomalyZScore:         2.0,
				AnomalyCriticalZScore: 4.0,
				AnomalyMinPoints:      defaultAnomalyMinPoints,
			},
			models.MetricEngineRPM: {
				AnomalyZScore:         3.0,
				AnomalyCriticalZScore: 5.0,
				AnomalyMinPoints:      20,
			},
			models.MetricEngineTemp: {
				AnomalyZScore:         2.0,
				AnomalyCriticalZScore: 4.0,
				AnomalyMinPoints:      defaultAnomalyMinPoints,
			},
			models.MetricFuelLevel: {
				AnomalyZScore:    3.0,
				AnomalyMinPoints: defaultAnomalyMinPoints,
			},
			models.MetricBatteryVoltage: {
				AnomalyZScore:         2.5,
				AnomalyCriticalZScore: 5.0,
				AnomalyMinPoints:      defaultAnomalyMinPoints,
			},
			// Usage counters only feed maintenance planning
			models.MetricOdometer:    {},
			models.MetricEngineHours: {},
			"generic": {
				AnomalyZScore:    2.0,
				AnomalyMinPoints: defaultAnomalyMinPoints,
			},
		},
	}
}

func (p Profile) withDefaults() Profile {
	if p.Variance != 0 && p.VarianceMinPoints <= 0 {
		p.VarianceMinPoints = defaultVarianceMinPoints
	}
	if p.AnomalyZScore != 0 && p.AnomalyMinPoints <= 0 {
		p.AnomalyMinPoints = defaultAnomalyMinPoints
	}
	return p
}

// Validate checks threshold signs and ordering
func (p Profile) Validate() error {
	if p.HarshDeceleration > 0 {
		return fmt.Errorf("harsh_deceleration must be negative, got %v", p.HarshDeceleration)
	}
	if p.CollisionDeceleration > 0 {
		return fmt.Errorf("collision_deceleration must be negative, got %v", p.CollisionDeceleration)
	}
	if p.CollisionDeceleration != 0 && p.HarshDeceleration != 0 && p.CollisionDeceleration > p.HarshDeceleration {
		return fmt.Errorf("collision_deceleration (%v) must not exceed harsh_deceleration (%v)",
			p.CollisionDeceleration, p.HarshDeceleration)
	}
	if p.RapidAcceleration < 0 {
		return fmt.Errorf("rapid_acceleration must be positive, got %v", p.RapidAcceleration)
	}
	if p.Variance < 0 {
		return fmt.Errorf("variance must not be negative, got %v", p.Variance)
	}
	if p.AnomalyZScore < 0 || p.AnomalyCriticalZScore < 0 {
		return fmt.Errorf("anomaly z-scores must not be negative")
	}
	if p.AnomalyCriticalZScore != 0 && p.AnomalyCriticalZScore < p.AnomalyZScore {
		return fmt.Errorf("anomaly_critical_zscore (%v) must be at least anomaly_zscore (%v)",
			p.AnomalyCriticalZScore, p.AnomalyZScore)
	}
	return nil
}
