// Package report builds point-in-time snapshots of a monitored vehicle.
package report

import (
	"sort"
	"time"

	"github.com/soltixdb/telewatch/internal/alert"
	"github.com/soltixdb/telewatch/internal/analytics"
	"github.com/soltixdb/telewatch/internal/maintenance"
	"github.com/soltixdb/telewatch/internal/models"
	"github.com/soltixdb/telewatch/internal/scoring"
	"github.com/soltixdb/telewatch/internal/window"
)

// Report is an immutable snapshot. Slices and maps are owned by the report.
type Report struct {
	VehicleID       string                 `json:"vehicle_id"`
	GeneratedAt     time.Time              `json:"generated_at"`
	Metrics         []analytics.Summary    `json:"metrics"`
	ActiveAlerts    []alert.Alert          `json:"active_alerts"`
	AlertCounts     map[alert.Severity]int `json:"alert_counts"`
	TotalAlerts     int                    `json:"total_alerts"` // created over the lifetime, expired included
	Score           float64                `json:"score"`
	FleetCritical   bool                   `json:"fleet_critical"`
	RejectedSamples int                    `json:"rejected_samples"`
	CurrentZone     string                 `json:"current_zone,omitempty"`
	Position        *models.Position       `json:"position,omitempty"`
	Maintenance     []maintenance.Item     `json:"maintenance"`
}

// ActiveCount returns the number of active alerts
func (r Report) ActiveCount() int {
	return len(r.ActiveAlerts)
}

// Status exposes the vehicle-level state the components do not own
type Status interface {
	VehicleID() string
	RejectedSamples() int
	CurrentZone() string
	LastPosition() *models.Position
}

// Aggregator combines the components of one vehicle into reports
type Aggregator struct {
	status  Status
	windows *window.Store
	alerts  *alert.Manager
	score   *scoring.Engine
	planner *maintenance.Planner
}

// NewAggregator creates an aggregator over the given components
func NewAggregator(status Status, windows *window.Store, alerts *alert.Manager, score *scoring.Engine, planner *maintenance.Planner) *Aggregator {
	return &Aggregator{
		status:  status,
		windows: windows,
		alerts:  alerts,
		score:   score,
		planner: planner,
	}
}

// Snapshot expires stale alerts at now and returns a report of the current
// state. Nothing else is mutated, so repeated calls with no intervening input
// return equal reports.
func (a *Aggregator) Snapshot(now time.Time) Report {
	a.alerts.Tick(now)

	metrics := a.windows.Metrics()
	summaries := make([]analytics.Summary, 0, len(metrics))
	latest := make(map[string]float64, len(metrics))
	for _, m := range metrics {
		w := a.windows.Window(m)
		summaries = append(summaries, analytics.Summarize(m, w))
		if len(w) > 0 {
			latest[m] = w[len(w)-1].Value
		}
	}

	active := a.alerts.Active()
	sort.SliceStable(active, func(i, j int) bool {
		if !active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].CreatedAt.Before(active[j].CreatedAt)
		}
		return active[i].ID < active[j].ID
	})

	var pos *models.Position
	if p := a.status.LastPosition(); p != nil {
		cp := *p
		pos = &cp
	}

	var items []maintenance.Item
	if a.planner != nil {
		items = a.planner.Evaluate(latest)
	}

	return Report{
		VehicleID:       a.status.VehicleID(),
		GeneratedAt:     now,
		Metrics:         summaries,
		ActiveAlerts:    active,
		AlertCounts:     a.alerts.CountBySeverity(),
		TotalAlerts:     a.alerts.TotalCreated(),
		Score:           a.score.Current(),
		FleetCritical:   a.alerts.FleetCriticalState(),
		RejectedSamples: a.status.RejectedSamples(),
		CurrentZone:     a.status.CurrentZone(),
		Position:        pos,
		Maintenance:     items,
	}
}
