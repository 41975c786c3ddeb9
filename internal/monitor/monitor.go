// Package monitor wires the analytics pipeline for one vehicle.
//
// A Monitor owns its window store, alert manager and score. Each call runs to
// completion before returning and nothing is shared with other monitors apart
// from the read-only zone registry, so a Monitor is not safe for concurrent use
// and callers serialise access (see the fleet package).
package monitor

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/soltixdb/telewatch/internal/alert"
	"github.com/soltixdb/telewatch/internal/detection"
	"github.com/soltixdb/telewatch/internal/geofence"
	"github.com/soltixdb/telewatch/internal/logging"
	"github.com/soltixdb/telewatch/internal/maintenance"
	"github.com/soltixdb/telewatch/internal/models"
	"github.com/soltixdb/telewatch/internal/report"
	"github.com/soltixdb/telewatch/internal/scoring"
	"github.com/soltixdb/telewatch/internal/window"
)

var (
	// ErrInvalidSample is returned for samples with no metric, a non-finite value or no timestamp
	ErrInvalidSample = errors.New("invalid sample")

	// ErrOutOfOrder is returned for samples older than the newest stored sample of the metric
	ErrOutOfOrder = errors.New("sample out of order")

	// ErrInvalidPosition is returned for non-finite or out-of-range positions
	ErrInvalidPosition = errors.New("invalid position")
)

// Config gathers the per-vehicle pipeline settings
type Config struct {
	WindowCapacity int
	Alert          alert.Config
	Detection      detection.Config
	Scoring        scoring.Config
	Maintenance    maintenance.Config
}

// DefaultConfig returns the default pipeline settings
func DefaultConfig() Config {
	return Config{
		WindowCapacity: window.DefaultCapacity,
		Alert:          alert.DefaultConfig(),
		Detection:      detection.DefaultConfig(),
		Scoring:        scoring.DefaultConfig(),
		Maintenance:    maintenance.DefaultConfig(),
	}
}

// Monitor is the core instance for one vehicle
type Monitor struct {
	vehicleID string
	logger    *logging.Logger

	windows  *window.Store
	detector *detection.Detector
	zones    *geofence.Engine
	alerts   *alert.Manager
	score    *scoring.Engine
	planner  *maintenance.Planner
	reporter *report.Aggregator

	rejected   int
	zone       string
	position   *models.Position
	cleanSince time.Time       // sample time of the last penalty, or of the first sample
	overdue    map[string]bool // maintenance items already alerted
}

// New creates a monitor. zones may be nil when no geofences are configured.
func New(vehicleID string, cfg Config, zones *geofence.Engine, logger *logging.Logger) (*Monitor, error) {
	if strings.TrimSpace(vehicleID) == "" {
		return nil, fmt.Errorf("vehicle id is required")
	}
	detector, err := detection.New(cfg.Detection)
	if err != nil {
		return nil, err
	}
	if zones == nil {
		zones = geofence.NewEngine(0, 0)
	}
	if logger == nil {
		logger = logging.Global()
	}

	m := &Monitor{
		vehicleID: vehicleID,
		logger:    logger.With("vehicle_id", vehicleID),
		windows:   window.NewStore(cfg.WindowCapacity),
		detector:  detector,
		zones:     zones,
		alerts:    alert.NewManager(cfg.Alert),
		score:     scoring.NewEngine(cfg.Scoring, cfg.WindowCapacity),
		planner:   maintenance.NewPlanner(cfg.Maintenance),
		overdue:   make(map[string]bool),
	}
	m.reporter = report.NewAggregator(m, m.windows, m.alerts, m.score, m.planner)
	return m, nil
}

// Ingest validates and records a sample, then runs detection on the metric's
// window. It returns the alerts raised by this sample. Rejected samples are
// counted and reported through the error; the pipeline keeps running.
// Metric names are case-insensitive.
func (m *Monitor) Ingest(s models.Sample) ([]alert.Alert, error) {
	s.Metric = models.NormalizeMetric(s.Metric)
	if err := m.validate(s); err != nil {
		m.rejected++
		m.logger.Warn("Rejected sample",
			"metric", s.Metric,
			"error", err)
		return nil, err
	}

	m.windows.Push(s.Metric, s.Value, s.Timestamp)
	if m.cleanSince.IsZero() {
		m.cleanSince = s.Timestamp
	}

	kind := models.KindOf(s.Metric)
	var raised []alert.Alert
	for _, ev := range m.detector.Evaluate(kind, m.windows.Window(s.Metric)) {
		raised = append(raised, m.raise(s.Timestamp, ev.Kind, ev.Severity, ev.Message, ev.Value))
	}

	if kind.IsCounter() && m.planner.Tracks(s.Metric) {
		raised = append(raised, m.checkMaintenance(s.Timestamp)...)
	}

	m.maybeReward(s.Timestamp)
	return raised, nil
}

// UpdatePosition records the vehicle position and checks speed compliance
// against the zone containing it. Outside every zone no check is made.
func (m *Monitor) UpdatePosition(pos models.Position, speed float64, at time.Time) ([]alert.Alert, error) {
	if !pos.Valid() {
		m.rejected++
		err := fmt.Errorf("%w: (%v, %v)", ErrInvalidPosition, pos.Latitude, pos.Longitude)
		m.logger.Warn("Rejected position", "error", err)
		return nil, err
	}
	if !models.IsFinite(speed) || speed < 0 {
		m.rejected++
		err := fmt.Errorf("%w: speed %v", ErrInvalidPosition, speed)
		m.logger.Warn("Rejected position", "error", err)
		return nil, err
	}
	if at.IsZero() {
		m.rejected++
		err := fmt.Errorf("%w: position has no timestamp", ErrInvalidPosition)
		m.logger.Warn("Rejected position", "error", err)
		return nil, err
	}

	p := pos
	m.position = &p

	zone, ok := m.zones.Lookup(pos.Latitude, pos.Longitude)
	if !ok {
		if m.zone != "" {
			m.logger.Debug("Left zone", "zone", m.zone)
		}
		m.zone = ""
		return nil, nil
	}
	if zone.Name != m.zone {
		m.logger.Debug("Entered zone", "zone", zone.Name, "kind", zone.Kind)
	}
	m.zone = zone.Name

	v := m.zones.CheckCompliance(zone, speed)
	if v == nil {
		return nil, nil
	}
	return []alert.Alert{m.raise(at, alert.KindSpeedViolation, v.Severity, v.Message, speed)}, nil
}

// Snapshot expires stale alerts at now and returns the vehicle report
func (m *Monitor) Snapshot(now time.Time) report.Report {
	return m.reporter.Snapshot(now)
}

// ActiveAlerts expires stale alerts at now and returns the rest in creation order
func (m *Monitor) ActiveAlerts(now time.Time) []alert.Alert {
	m.alerts.Tick(now)
	return m.alerts.Active()
}

// Score returns the current score
func (m *Monitor) Score() float64 {
	return m.score.Current()
}

// Window returns the recent history of a metric
func (m *Monitor) Window(metric string) []models.Sample {
	return m.windows.Window(models.NormalizeMetric(metric))
}

// VehicleID returns the monitored vehicle
func (m *Monitor) VehicleID() string {
	return m.vehicleID
}

// RejectedSamples returns how many samples and positions were rejected
func (m *Monitor) RejectedSamples() int {
	return m.rejected
}

// CurrentZone returns the name of the zone of the last position, "" if none
func (m *Monitor) CurrentZone() string {
	return m.zone
}

// LastPosition returns the last accepted position, nil if none
func (m *Monitor) LastPosition() *models.Position {
	return m.position
}

func (m *Monitor) validate(s models.Sample) error {
	if s.Metric == "" {
		return fmt.Errorf("%w: metric name is required", ErrInvalidSample)
	}
	if !s.IsFinite() {
		return fmt.Errorf("%w: %s value %v is not finite", ErrInvalidSample, s.Metric, s.Value)
	}
	if s.Timestamp.IsZero() {
		return fmt.Errorf("%w: %s has no timestamp", ErrInvalidSample, s.Metric)
	}
	if latest, ok := m.windows.Latest(s.Metric); ok && s.Timestamp.Before(latest.Timestamp) {
		return fmt.Errorf("%w: %s at %s is older than %s", ErrOutOfOrder, s.Metric,
			s.Timestamp.Format(time.RFC3339Nano), latest.Timestamp.Format(time.RFC3339Nano))
	}
	return nil
}

// raise creates an alert at the current position and applies its penalty
func (m *Monitor) raise(at time.Time, kind alert.Kind, sev alert.Severity, msg string, value float64) alert.Alert {
	a := m.alerts.CreateInZone(at, m.zone, kind, sev, msg, value, m.position)
	score := m.score.Penalize(at, sev)
	m.cleanSince = at

	m.logger.Info("Alert created",
		"alert_id", a.ID,
		"kind", a.Kind,
		"severity", a.Severity.String(),
		"value", value,
		"score", score)
	return a
}

// checkMaintenance raises one Info alert per item that has just become overdue.
// Maintenance alerts carry no penalty.
func (m *Monitor) checkMaintenance(at time.Time) []alert.Alert {
	counters := make(map[string]float64)
	for _, metric := range m.windows.Metrics() {
		if latest, ok := m.windows.Latest(metric); ok {
			counters[metric] = latest.Value
		}
	}

	var raised []alert.Alert
	for _, item := range m.planner.Evaluate(counters) {
		key := item.Key()
		if !item.IsOverdue {
			delete(m.overdue, key)
			continue
		}
		if m.overdue[key] {
			continue
		}
		m.overdue[key] = true

		msg := fmt.Sprintf("%s %s due at %s %.0f (now %.0f)",
			item.Subject, item.ServiceType, item.CounterMetric, item.DueAtMetric, item.Counter)
		a := m.alerts.CreateInZone(at, m.zone, alert.KindMaintenanceDue, alert.SeverityInfo, msg, item.Counter, m.position)
		m.logger.Info("Maintenance due",
			"alert_id", a.ID,
			"subject", item.Subject,
			"service_type", item.ServiceType,
			"priority", string(item.Priority))
		raised = append(raised, a)
	}
	return raised
}

// maybeReward grants the clean-period reward once per reward interval of sample time
func (m *Monitor) maybeReward(at time.Time) {
	interval := m.score.RewardInterval()
	if interval <= 0 {
		return
	}
	if at.Sub(m.cleanSince) >= interval {
		m.score.Reward(at)
		m.cleanSince = at
	}
}
