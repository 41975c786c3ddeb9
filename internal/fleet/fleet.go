// Package fleet runs one monitor per vehicle.
//
// Each vehicle is an independent unit: its monitor sits behind its own mutex
// and shares nothing mutable with other units. Fleet-wide reports are merged
// from per-vehicle snapshots, which are copies.
package fleet

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/soltixdb/telewatch/internal/alert"
	"github.com/soltixdb/telewatch/internal/geofence"
	"github.com/soltixdb/telewatch/internal/logging"
	"github.com/soltixdb/telewatch/internal/models"
	"github.com/soltixdb/telewatch/internal/monitor"
	"github.com/soltixdb/telewatch/internal/report"
)

// DefaultMaxVehicles bounds the number of units when no limit is configured
const DefaultMaxVehicles = 1000

var (
	// ErrFleetFull is returned when a new vehicle would exceed the unit limit
	ErrFleetFull = errors.New("fleet is full")

	// ErrUnknownVehicle is returned for reads on a vehicle that never sent data
	ErrUnknownVehicle = errors.New("unknown vehicle")
)

type unit struct {
	mu      sync.Mutex
	monitor *monitor.Monitor
}

// Fleet routes samples and positions to per-vehicle monitors, creating them
// on first data
type Fleet struct {
	cfg         monitor.Config
	zones       *geofence.Engine
	maxVehicles int
	logger      *logging.Logger

	mu    sync.RWMutex
	units map[string]*unit
}

// New creates an empty fleet. The monitor configuration is validated up front
// so per-vehicle creation cannot fail on configuration.
func New(cfg monitor.Config, zones *geofence.Engine, maxVehicles int, logger *logging.Logger) (*Fleet, error) {
	if logger == nil {
		logger = logging.Global()
	}
	if maxVehicles <= 0 {
		maxVehicles = DefaultMaxVehicles
	}
	if _, err := monitor.New("config-check", cfg, zones, logging.NewNop()); err != nil {
		return nil, fmt.Errorf("invalid monitor configuration: %w", err)
	}
	return &Fleet{
		cfg:         cfg,
		zones:       zones,
		maxVehicles: maxVehicles,
		logger:      logger.Component("fleet"),
		units:       make(map[string]*unit),
	}, nil
}

func (f *Fleet) get(vehicleID string) (*unit, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	u, ok := f.units[vehicleID]
	return u, ok
}

func (f *Fleet) getOrCreate(vehicleID string) (*unit, error) {
	vehicleID = strings.TrimSpace(vehicleID)
	if vehicleID == "" {
		return nil, fmt.Errorf("vehicle id is required")
	}
	if u, ok := f.get(vehicleID); ok {
		return u, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.units[vehicleID]; ok {
		return u, nil
	}
	if len(f.units) >= f.maxVehicles {
		return nil, fmt.Errorf("%w: limit %d reached, vehicle %s", ErrFleetFull, f.maxVehicles, vehicleID)
	}

	m, err := monitor.New(vehicleID, f.cfg, f.zones, f.logger)
	if err != nil {
		return nil, err
	}
	u := &unit{monitor: m}
	f.units[vehicleID] = u
	f.logger.Info("Vehicle registered", "vehicle_id", vehicleID, "vehicles", len(f.units))
	return u, nil
}

// Ingest routes a sample to the vehicle's monitor
func (f *Fleet) Ingest(vehicleID string, s models.Sample) ([]alert.Alert, error) {
	u, err := f.getOrCreate(vehicleID)
	if err != nil {
		return nil, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.monitor.Ingest(s)
}

// UpdatePosition routes a position update to the vehicle's monitor
func (f *Fleet) UpdatePosition(vehicleID string, pos models.Position, speed float64, at time.Time) ([]alert.Alert, error) {
	u, err := f.getOrCreate(vehicleID)
	if err != nil {
		return nil, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.monitor.UpdatePosition(pos, speed, at)
}

// Snapshot returns the report of one vehicle
func (f *Fleet) Snapshot(vehicleID string, now time.Time) (report.Report, error) {
	u, ok := f.get(vehicleID)
	if !ok {
		return report.Report{}, fmt.Errorf("%w: %s", ErrUnknownVehicle, vehicleID)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.monitor.Snapshot(now), nil
}

// ActiveAlerts returns the active alerts of one vehicle
func (f *Fleet) ActiveAlerts(vehicleID string, now time.Time) ([]alert.Alert, error) {
	u, ok := f.get(vehicleID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVehicle, vehicleID)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.monitor.ActiveAlerts(now), nil
}

// Vehicles returns the known vehicle IDs, sorted
func (f *Fleet) Vehicles() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ids := make([]string, 0, len(f.units))
	for id := range f.units {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of vehicles
func (f *Fleet) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.units)
}

// Snapshots returns a report per vehicle, sorted by vehicle ID. Each unit is
// locked only while its own snapshot is taken.
func (f *Fleet) Snapshots(now time.Time) []report.Report {
	ids := f.Vehicles()
	reports := make([]report.Report, 0, len(ids))
	for _, id := range ids {
		if r, err := f.Snapshot(id, now); err == nil {
			reports = append(reports, r)
		}
	}
	return reports
}

// Summary is the fleet-wide merge of vehicle reports
type Summary struct {
	GeneratedAt      time.Time              `json:"generated_at"`
	Vehicles         int                    `json:"vehicles"`
	ActiveAlerts     int                    `json:"active_alerts"`
	AlertCounts      map[alert.Severity]int `json:"alert_counts"`
	AverageScore     float64                `json:"average_score"`
	MinScore         float64                `json:"min_score"`
	CriticalVehicles []string               `json:"critical_vehicles"`
	RejectedSamples  int                    `json:"rejected_samples"`
}

// FleetReport snapshots every vehicle and merges the results
func (f *Fleet) FleetReport(now time.Time) Summary {
	return Merge(now, f.Snapshots(now))
}

// Merge combines vehicle reports into a fleet summary
func Merge(now time.Time, reports []report.Report) Summary {
	s := Summary{
		GeneratedAt:      now,
		Vehicles:         len(reports),
		AlertCounts:      make(map[alert.Severity]int, len(alert.Severities)),
		CriticalVehicles: []string{},
	}
	for _, sev := range alert.Severities {
		s.AlertCounts[sev] = 0
	}
	if len(reports) == 0 {
		return s
	}

	s.MinScore = reports[0].Score
	var total float64
	for _, r := range reports {
		s.ActiveAlerts += r.ActiveCount()
		for sev, n := range r.AlertCounts {
			s.AlertCounts[sev] += n
		}
		total += r.Score
		if r.Score < s.MinScore {
			s.MinScore = r.Score
		}
		if r.FleetCritical {
			s.CriticalVehicles = append(s.CriticalVehicles, r.VehicleID)
		}
		s.RejectedSamples += r.RejectedSamples
	}
	s.AverageScore = total / float64(len(reports))
	sort.Strings(s.CriticalVehicles)
	return s
}
