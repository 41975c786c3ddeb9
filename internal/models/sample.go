package models

import (
	"math"
	"strings"
	"time"
)

// Sample is a single numeric reading of one metric at one instant.
type Sample struct {
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"time"`
}

// NewSample creates a sample
func NewSample(metric string, value float64, ts time.Time) Sample {
	return Sample{Metric: metric, Value: value, Timestamp: ts}
}

// IsFinite reports whether the value can be stored and analysed
func (s Sample) IsFinite() bool {
	return IsFinite(s.Value)
}

// IsFinite reports whether v is neither NaN nor infinite
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// MetricKind is the closed set of metrics the detectors know how to treat.
// Anything else goes through the Generic path.
type MetricKind uint8

const (
	KindGeneric MetricKind = iota
	KindSpeed
	KindEngineRPM
	KindEngineTemp
	KindFuelLevel
	KindBatteryVoltage
	KindOdometer
	KindEngineHours
)

// Canonical metric names
const (
	MetricSpeed          = "speed"
	MetricEngineRPM      = "engine_rpm"
	MetricEngineTemp     = "engine_temp"
	MetricFuelLevel      = "fuel_level"
	MetricBatteryVoltage = "battery_voltage"
	MetricOdometer       = "odometer"
	MetricEngineHours    = "engine_hours"
)

// NormalizeMetric returns the canonical form of a metric name
func NormalizeMetric(metric string) string {
	return strings.ToLower(strings.TrimSpace(metric))
}

// KindOf resolves a metric name to its kind. Names are case-insensitive.
func KindOf(metric string) MetricKind {
	switch NormalizeMetric(metric) {
	case MetricSpeed:
		return KindSpeed
	case MetricEngineRPM:
		return KindEngineRPM
	case MetricEngineTemp:
		return KindEngineTemp
	case MetricFuelLevel:
		return KindFuelLevel
	case MetricBatteryVoltage:
		return KindBatteryVoltage
	case MetricOdometer:
		return KindOdometer
	case MetricEngineHours:
		return KindEngineHours
	default:
		return KindGeneric
	}
}

// String returns the config key of the kind
func (k MetricKind) String() string {
	switch k {
	case KindSpeed:
		return MetricSpeed
	case KindEngineRPM:
		return MetricEngineRPM
	case KindEngineTemp:
		return MetricEngineTemp
	case KindFuelLevel:
		return MetricFuelLevel
	case KindBatteryVoltage:
		return MetricBatteryVoltage
	case KindOdometer:
		return MetricOdometer
	case KindEngineHours:
		return MetricEngineHours
	default:
		return "generic"
	}
}

// IsCounter reports whether the metric is a monotonically growing usage counter
func (k MetricKind) IsCounter() bool {
	return k == KindOdometer || k == KindEngineHours
}

// Position is a WGS84 coordinate pair
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the coordinates are finite and in range
func (p Position) Valid() bool {
	if !IsFinite(p.Latitude) || !IsFinite(p.Longitude) {
		return false
	}
	return p.Latitude >= -90 && p.Latitude <= 90 &&
		p.Longitude >= -180 && p.Longitude <= 180
}
