package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/soltixdb/telewatch/internal/alert"
	"github.com/soltixdb/telewatch/internal/compression"
	"github.com/soltixdb/telewatch/internal/fleet"
	"github.com/soltixdb/telewatch/internal/models"
	"github.com/soltixdb/telewatch/internal/report"
	"github.com/soltixdb/telewatch/internal/utils"
)

// SampleMessage is one metric reading on the samples subject. Value accepts
// JSON numbers and numeric strings.
type SampleMessage struct {
	VehicleID string      `json:"vehicle_id"`
	Metric    string      `json:"metric"`
	Value     interface{} `json:"value"`
	Time      time.Time   `json:"time"`
}

// Sample validates the envelope and converts it to a models.Sample. Value and
// ordering checks are left to the monitor.
func (m SampleMessage) Sample() (models.Sample, error) {
	if strings.TrimSpace(m.VehicleID) == "" {
		return models.Sample{}, fmt.Errorf("%w: vehicle_id is required", ErrMalformedMessage)
	}
	value, ok := utils.ToFloat64(m.Value)
	if !ok {
		return models.Sample{}, fmt.Errorf("%w: value %v is not a finite number", ErrMalformedMessage, m.Value)
	}
	return models.NewSample(m.Metric, value, m.Time), nil
}

// PositionMessage is a position fix with the speed measured at that instant
type PositionMessage struct {
	VehicleID string    `json:"vehicle_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Speed     float64   `json:"speed"`
	Time      time.Time `json:"time"`
}

// Position returns the coordinates of the fix
func (m PositionMessage) Position() models.Position {
	return models.Position{Latitude: m.Latitude, Longitude: m.Longitude}
}

// AlertMessage carries one alert raised for a vehicle
type AlertMessage struct {
	VehicleID string      `json:"vehicle_id"`
	Alert     alert.Alert `json:"alert"`
}

// Report message kinds
const (
	ReportKindVehicle = "vehicle"
	ReportKindFleet   = "fleet"
)

// ReportMessage carries either a vehicle report or the fleet summary
type ReportMessage struct {
	Kind   string         `json:"kind"`
	Report *report.Report `json:"report,omitempty"`
	Fleet  *fleet.Summary `json:"fleet,omitempty"`
}

// Codec encodes bus messages as JSON, optionally snappy-framed. Decoding
// detects the framing per message, so mixed producers interoperate.
type Codec struct {
	algo compression.Algorithm
}

// NewCodec returns a codec compressing with the named algorithm (none or snappy)
func NewCodec(compressionName string) (*Codec, error) {
	algo, err := compression.ParseAlgorithm(compressionName)
	if err != nil {
		return nil, err
	}
	return &Codec{algo: algo}, nil
}

// Algorithm returns the compression applied on Encode
func (c *Codec) Algorithm() compression.Algorithm {
	return c.algo
}

// Encode marshals v and frames it
func (c *Codec) Encode(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return compression.Frame(c.algo, data)
}

// Decode unframes data and unmarshals it into v. Numbers inside interface{}
// fields decode as json.Number.
func (c *Codec) Decode(data []byte, v interface{}) error {
	payload, err := compression.Unframe(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return nil
}
