package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/soltixdb/telewatch/internal/alert"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestEngine_ApplyClamps(t *testing.T) {
	e := NewEngine(DefaultConfig(), 10)
	assert.Equal(t, 100.0, e.Current())

	assert.Equal(t, 100.0, e.Apply(t0, 5))
	assert.Equal(t, 70.0, e.Apply(t0, -30))

	for i := 0; i < 10; i++ {
		e.Apply(t0, -1000)
		assert.GreaterOrEqual(t, e.Current(), MinScore)
		assert.LessOrEqual(t, e.Current(), MaxScore)
	}
	assert.Equal(t, 0.0, e.Current())
}

func TestEngine_IgnoresNonFinite(t *testing.T) {
	e := NewEngine(DefaultConfig(), 10)
	e.Apply(t0, math.NaN())
	e.Apply(t0, math.Inf(-1))
	assert.Equal(t, 100.0, e.Current())
	assert.Empty(t, e.History())
}

func TestEngine_Deterministic(t *testing.T) {
	deltas := []float64{-5, -10, 0.5, -20, 0.5, 0.5, -1, 300, -99}

	a := NewEngine(DefaultConfig(), 10)
	b := NewEngine(DefaultConfig(), 10)
	for i, d := range deltas {
		a.Apply(t0, d)
		// Polling in between must not change the outcome
		if i%2 == 0 {
			_ = b.Current()
		}
		b.Apply(t0, d)
	}
	assert.Equal(t, a.Current(), b.Current())
}

func TestEngine_Penalties(t *testing.T) {
	e := NewEngine(DefaultConfig(), 10)

	tests := []struct {
		sev  alert.Severity
		want float64
	}{
		{alert.SeverityInfo, 1},
		{alert.SeverityWarning, 5},
		{alert.SeverityCritical, 10},
		{alert.SeverityEmergency, 20},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, e.Penalty(tt.sev), tt.sev.String())
	}

	assert.Equal(t, 95.0, e.Penalize(t0, alert.SeverityWarning))
	assert.Equal(t, 95.5, e.Reward(t0.Add(time.Minute)))
}

func TestEngine_PartialPenaltyConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Penalties = map[string]float64{"critical": 25}
	e := NewEngine(cfg, 10)

	assert.Equal(t, 25.0, e.Penalty(alert.SeverityCritical))
	assert.Equal(t, 5.0, e.Penalty(alert.SeverityWarning))
}

func TestEngine_History(t *testing.T) {
	e := NewEngine(DefaultConfig(), 3)
	for i := 0; i < 5; i++ {
		e.Apply(t0.Add(time.Duration(i)*time.Second), -1)
	}

	h := e.History()
	require.Len(t, h, 3)
	assert.Equal(t, 97.0, h[0].Value)
	assert.Equal(t, 95.0, h[2].Value)
	assert.Equal(t, t0.Add(4*time.Second), h[2].Timestamp)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"initial too high", func(c *Config) { c.Initial = 120 }, true},
		{"unknown severity", func(c *Config) { c.Penalties["fatal"] = 1 }, true},
		{"negative penalty", func(c *Config) { c.Penalties["info"] = -1 }, true},
		{"negative reward", func(c *Config) { c.Reward = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}
