package report

import (
	"testing"
	"time"

	"github.com/soltixdb/telewatch/internal/alert"
	"github.com/soltixdb/telewatch/internal/maintenance"
	"github.com/soltixdb/telewatch/internal/models"
	"github.com/soltixdb/telewatch/internal/scoring"
	"github.com/soltixdb/telewatch/internal/window"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatus struct {
	rejected int
	zone     string
	pos      *models.Position
}

func (f *fakeStatus) VehicleID() string              { return "truck-1" }
func (f *fakeStatus) RejectedSamples() int           { return f.rejected }
func (f *fakeStatus) CurrentZone() string            { return f.zone }
func (f *fakeStatus) LastPosition() *models.Position { return f.pos }

var t0 = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	status  *fakeStatus
	windows *window.Store
	alerts  *alert.Manager
	score   *scoring.Engine
	agg     *Aggregator
}

func newFixture() *fixture {
	f := &fixture{
		status:  &fakeStatus{},
		windows: window.NewStore(10),
		alerts:  alert.NewManager(alert.Config{TTL: time.Minute, CriticalThreshold: 2}),
		score:   scoring.NewEngine(scoring.DefaultConfig(), 10),
	}
	f.agg = NewAggregator(f.status, f.windows, f.alerts, f.score, maintenance.NewPlanner(maintenance.DefaultConfig()))
	return f
}

func TestAggregator_Snapshot(t *testing.T) {
	f := newFixture()
	f.windows.Push("speed", 10, t0)
	f.windows.Push("speed", 20, t0.Add(time.Second))
	f.windows.Push("engine_temp", 90, t0)
	f.windows.Push("odometer", 9800, t0)
	f.status.rejected = 2
	f.status.zone = "midtown"
	f.status.pos = &models.Position{Latitude: 40.755, Longitude: -73.995}

	f.alerts.Create(t0, alert.KindRapidAcceleration, alert.SeverityWarning, "rapid acceleration", 10, nil)
	f.score.Penalize(t0, alert.SeverityWarning)

	r := f.agg.Snapshot(t0.Add(10 * time.Second))

	assert.Equal(t, "truck-1", r.VehicleID)
	assert.Equal(t, t0.Add(10*time.Second), r.GeneratedAt)
	require.Len(t, r.Metrics, 3)
	assert.Equal(t, "engine_temp", r.Metrics[0].Metric)
	assert.Equal(t, "odometer", r.Metrics[1].Metric)
	assert.Equal(t, "speed", r.Metrics[2].Metric)
	assert.Equal(t, 15.0, r.Metrics[2].Mean)
	assert.Equal(t, 10.0, r.Metrics[2].Trend)

	require.Equal(t, 1, r.ActiveCount())
	assert.Equal(t, 1, r.AlertCounts[alert.SeverityWarning])
	assert.Equal(t, 0, r.AlertCounts[alert.SeverityEmergency])
	assert.Equal(t, 1, r.TotalAlerts)
	assert.Equal(t, 95.0, r.Score)
	assert.False(t, r.FleetCritical)
	assert.Equal(t, 2, r.RejectedSamples)
	assert.Equal(t, "midtown", r.CurrentZone)
	require.NotNil(t, r.Position)

	// Only the odometer schedule lines have a counter
	require.Len(t, r.Maintenance, 2)
	assert.Equal(t, maintenance.PriorityMedium, r.Maintenance[0].Priority)
}

func TestAggregator_SnapshotExpiresAlerts(t *testing.T) {
	f := newFixture()
	f.alerts.Create(t0, alert.KindSpeedViolation, alert.SeverityCritical, "a", 1, nil)
	f.alerts.Create(t0.Add(30*time.Second), alert.KindSpeedViolation, alert.SeverityCritical, "b", 1, nil)

	r := f.agg.Snapshot(t0.Add(45 * time.Second))
	assert.Equal(t, 2, r.ActiveCount())
	assert.True(t, r.FleetCritical)

	r = f.agg.Snapshot(t0.Add(time.Minute))
	assert.Equal(t, 1, r.ActiveCount())
	assert.False(t, r.FleetCritical)
	assert.Equal(t, 2, r.TotalAlerts)
}

func TestAggregator_SnapshotIdempotent(t *testing.T) {
	f := newFixture()
	f.windows.Push("speed", 30, t0)
	f.windows.Push("speed", 31, t0.Add(time.Second))
	f.alerts.Create(t0, alert.KindReadingAnomaly, alert.SeverityWarning, "x", 3, nil)
	f.alerts.Create(t0, alert.KindErraticVariance, alert.SeverityInfo, "y", 20, nil)

	now := t0.Add(5 * time.Second)
	first := f.agg.Snapshot(now)
	second := f.agg.Snapshot(now)
	assert.Equal(t, first, second)
}

func TestAggregator_ActiveAlertsOrdered(t *testing.T) {
	f := newFixture()
	f.alerts.Create(t0.Add(2*time.Second), alert.KindSpeedViolation, alert.SeverityWarning, "late", 1, nil)
	f.alerts.Create(t0, alert.KindSpeedViolation, alert.SeverityWarning, "early", 1, nil)

	r := f.agg.Snapshot(t0.Add(3 * time.Second))
	require.Len(t, r.ActiveAlerts, 2)
	assert.Equal(t, "early", r.ActiveAlerts[0].Message)
	assert.Equal(t, "late", r.ActiveAlerts[1].Message)
}

func TestAggregator_EmptyState(t *testing.T) {
	f := newFixture()
	r := f.agg.Snapshot(t0)

	assert.Empty(t, r.Metrics)
	assert.Empty(t, r.ActiveAlerts)
	assert.Empty(t, r.Maintenance)
	assert.Equal(t, 100.0, r.Score)
	assert.Len(t, r.AlertCounts, 4)
	assert.Nil(t, r.Position)
}
