// Package geofence keeps the zone registry and checks speed compliance.
//
// Zones are axis-aligned latitude/longitude rectangles with inclusive bounds.
// Lookup returns the first registered zone containing the point, so overlapping
// zones resolve deterministically by registration order. The registry is
// reference data: it is filled at startup and only read afterwards.
package geofence

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/soltixdb/telewatch/internal/alert"
)

// ErrInvalidZone is returned when a zone cannot be registered
var ErrInvalidZone = errors.New("invalid zone")

// Kind classifies the policy attached to a zone
type Kind string

const (
	KindGeneral     Kind = "general"
	KindResidential Kind = "residential"
	KindCommercial  Kind = "commercial"
	KindHighway     Kind = "highway"
	KindRestricted  Kind = "restricted" // school and similar zones: zero tolerance
)

// Zone is a bounding rectangle with a speed limit
type Zone struct {
	Name       string  `json:"name" mapstructure:"name"`
	MinLat     float64 `json:"min_lat" mapstructure:"min_lat"`
	MaxLat     float64 `json:"max_lat" mapstructure:"max_lat"`
	MinLon     float64 `json:"min_lon" mapstructure:"min_lon"`
	MaxLon     float64 `json:"max_lon" mapstructure:"max_lon"`
	SpeedLimit float64 `json:"speed_limit" mapstructure:"speed_limit"`
	Kind       Kind    `json:"kind" mapstructure:"kind"`
}

// Contains reports whether the point lies inside the rectangle, edges included
func (z Zone) Contains(lat, lon float64) bool {
	return lat >= z.MinLat && lat <= z.MaxLat && lon >= z.MinLon && lon <= z.MaxLon
}

// Validate checks bounds and limit
func (z Zone) Validate() error {
	if strings.TrimSpace(z.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidZone)
	}
	for _, v := range []float64{z.MinLat, z.MaxLat, z.MinLon, z.MaxLon, z.SpeedLimit} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s has non-finite bounds or limit", ErrInvalidZone, z.Name)
		}
	}
	if z.MinLat > z.MaxLat || z.MinLon > z.MaxLon {
		return fmt.Errorf("%w: %s has inverted bounds", ErrInvalidZone, z.Name)
	}
	if z.MinLat < -90 || z.MaxLat > 90 || z.MinLon < -180 || z.MaxLon > 180 {
		return fmt.Errorf("%w: %s is outside valid coordinates", ErrInvalidZone, z.Name)
	}
	if z.SpeedLimit < 0 {
		return fmt.Errorf("%w: %s has a negative speed limit", ErrInvalidZone, z.Name)
	}
	switch z.Kind {
	case KindGeneral, KindResidential, KindCommercial, KindHighway, KindRestricted:
	default:
		return fmt.Errorf("%w: %s has unknown kind %q", ErrInvalidZone, z.Name, z.Kind)
	}
	return nil
}

// Config holds the compliance policy and the statically configured zones
type Config struct {
	// Tolerance is the fixed amount a vehicle may exceed the limit by.
	// Restricted zones ignore it.
	Tolerance float64 `mapstructure:"tolerance"`

	// MajorExcess escalates a violation by one tier when the speed is at least
	// this far over the limit
	MajorExcess float64 `mapstructure:"major_excess"`

	Zones []Zone `mapstructure:"zones"`
}

// DefaultConfig returns the default compliance policy with no zones
func DefaultConfig() Config {
	return Config{
		Tolerance:   5.0,
		MajorExcess: 20.0,
	}
}

// Violation describes a failed compliance check
type Violation struct {
	Zone     Zone
	Speed    float64
	Excess   float64 // speed over the posted limit
	Severity alert.Severity
	Message  string
}

// Engine is the ordered zone registry
type Engine struct {
	tolerance   float64
	majorExcess float64
	zones       []Zone
}

// NewEngine creates an engine with the given policy and no zones
func NewEngine(tolerance, majorExcess float64) *Engine {
	if tolerance < 0 {
		tolerance = 0
	}
	return &Engine{
		tolerance:   tolerance,
		majorExcess: majorExcess,
	}
}

// NewEngineFromConfig creates an engine and registers every configured zone in order
func NewEngineFromConfig(cfg Config) (*Engine, error) {
	e := NewEngine(cfg.Tolerance, cfg.MajorExcess)
	for _, z := range cfg.Zones {
		if err := e.Register(z); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Register appends a zone. Later registrations lose overlaps to earlier ones.
func (e *Engine) Register(z Zone) error {
	if z.Kind == "" {
		z.Kind = KindGeneral
	}
	z.Kind = Kind(strings.ToLower(string(z.Kind)))
	if err := z.Validate(); err != nil {
		return err
	}
	e.zones = append(e.zones, z)
	return nil
}

// Lookup returns the first registered zone containing the point
func (e *Engine) Lookup(lat, lon float64) (Zone, bool) {
	for _, z := range e.zones {
		if z.Contains(lat, lon) {
			return z, true
		}
	}
	return Zone{}, false
}

// Zones returns the registry in registration order
func (e *Engine) Zones() []Zone {
	out := make([]Zone, len(e.zones))
	copy(out, e.zones)
	return out
}

// Len returns the number of registered zones
func (e *Engine) Len() int {
	return len(e.zones)
}

// Tolerance returns the fixed tolerance applied to non-restricted zones
func (e *Engine) Tolerance() float64 {
	return e.tolerance
}

// CheckCompliance returns a violation when speed exceeds the zone limit plus
// tolerance, nil otherwise. Restricted zones use zero tolerance and are always
// Critical. Elsewhere a major excess raises Warning to Critical.
func (e *Engine) CheckCompliance(z Zone, speed float64) *Violation {
	if math.IsNaN(speed) || math.IsInf(speed, 0) {
		return nil
	}

	restricted := z.Kind == KindRestricted
	tolerance := e.tolerance
	if restricted {
		tolerance = 0
	}
	if speed <= z.SpeedLimit+tolerance {
		return nil
	}

	excess := speed - z.SpeedLimit
	severity := alert.SeverityWarning
	if restricted || (e.majorExcess > 0 && excess >= e.majorExcess) {
		severity = alert.SeverityCritical
	}

	return &Violation{
		Zone:     z,
		Speed:    speed,
		Excess:   excess,
		Severity: severity,
		Message: fmt.Sprintf("speed %.1f exceeds %s zone %q limit %.1f by %.1f",
			speed, z.Kind, z.Name, z.SpeedLimit, excess),
	}
}
