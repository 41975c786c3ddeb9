// Package alert owns the set of active alerts for one monitored vehicle.
package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/soltixdb/telewatch/internal/models"
)

// Severity is the ordered alert tier: Info < Warning < Critical < Emergency.
type Severity uint8

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
	SeverityEmergency
)

// Severities lists every tier in ascending order
var Severities = []Severity{SeverityInfo, SeverityWarning, SeverityCritical, SeverityEmergency}

// String returns the lower-case tier name
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	case SeverityEmergency:
		return "emergency"
	default:
		return fmt.Sprintf("severity(%d)", uint8(s))
	}
}

// ParseSeverity converts a tier name to a Severity
func ParseSeverity(name string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "info":
		return SeverityInfo, nil
	case "warning", "warn":
		return SeverityWarning, nil
	case "critical":
		return SeverityCritical, nil
	case "emergency":
		return SeverityEmergency, nil
	default:
		return SeverityInfo, fmt.Errorf("unknown severity: %q", name)
	}
}

// MarshalText encodes the severity by name (also used for JSON map keys)
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Kind identifies what raised an alert
type Kind string

const (
	KindHarshDeceleration Kind = "harsh_deceleration"
	KindRapidAcceleration Kind = "rapid_acceleration"
	KindErraticVariance   Kind = "erratic_variance"
	KindReadingAnomaly    Kind = "reading_anomaly"
	KindSpeedViolation    Kind = "speed_violation"
	KindMaintenanceDue    Kind = "maintenance_due"
)

// Alert is immutable once created. Position is the last known vehicle
// position when the alert fired, nil if none was reported yet. Zone names
// the geofence the vehicle was in, if any.
type Alert struct {
	ID        string           `json:"id"`
	Kind      Kind             `json:"kind"`
	Severity  Severity         `json:"severity"`
	Message   string           `json:"message"`
	Value     float64          `json:"value"`
	CreatedAt time.Time        `json:"created_at"`
	Position  *models.Position `json:"position,omitempty"`
	Zone      string           `json:"zone,omitempty"`
}

// ExpiresAt returns the first instant at which the alert is no longer active
func (a Alert) ExpiresAt(ttl time.Duration) time.Time {
	return a.CreatedAt.Add(ttl)
}
