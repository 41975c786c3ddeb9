package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/soltixdb/telewatch/internal/fleet"
	"github.com/soltixdb/telewatch/internal/logging"
	"github.com/soltixdb/telewatch/internal/monitor"
	"github.com/soltixdb/telewatch/internal/queue"
)

// IngestStats counts what the ingest service has consumed
type IngestStats struct {
	Samples   int64 `json:"samples"`
	Positions int64 `json:"positions"`
	Malformed int64 `json:"malformed"`
	Rejected  int64 `json:"rejected"`
	Alerts    int64 `json:"alerts"`
}

// IngestService consumes samples and positions from the bus and routes them
// into the fleet. Every message is acknowledged once handled, including ones
// that are malformed or rejected: redelivering them cannot succeed.
type IngestService struct {
	logger   *logging.Logger
	fleet    *fleet.Fleet
	sub      queue.Subscriber
	codec    *Codec
	subjects Subjects
	alerts   *AlertPublisher

	samples   atomic.Int64
	positions atomic.Int64
	malformed atomic.Int64
	rejected  atomic.Int64
	raised    atomic.Int64
}

// NewIngestService creates a new IngestService
func NewIngestService(
	logger *logging.Logger,
	f *fleet.Fleet,
	sub queue.Subscriber,
	codec *Codec,
	subjects Subjects,
	alerts *AlertPublisher,
) *IngestService {
	if logger == nil {
		logger = logging.Global()
	}
	return &IngestService{
		logger:   logger.Component("ingest"),
		fleet:    f,
		sub:      sub,
		codec:    codec,
		subjects: subjects,
		alerts:   alerts,
	}
}

// Start subscribes to the sample and position subjects
func (s *IngestService) Start() error {
	if err := s.sub.Subscribe(s.subjects.Samples, s.HandleSample); err != nil {
		return fmt.Errorf("failed to subscribe to samples: %w", err)
	}
	if err := s.sub.Subscribe(s.subjects.Positions, s.HandlePosition); err != nil {
		_ = s.sub.Unsubscribe(s.subjects.Samples)
		return fmt.Errorf("failed to subscribe to positions: %w", err)
	}

	s.logger.Info("Ingest service started",
		"samples", s.subjects.Samples,
		"positions", s.subjects.Positions,
	)
	return nil
}

// Stop unsubscribes from both subjects
func (s *IngestService) Stop() {
	for _, subject := range []string{s.subjects.Samples, s.subjects.Positions} {
		if err := s.sub.Unsubscribe(subject); err != nil {
			s.logger.Warn("Failed to unsubscribe", "subject", subject, "error", err)
		}
	}
	s.logger.Info("Ingest service stopped", "stats", s.Stats())
}

// HandleSample is the MessageHandler for the samples subject
func (s *IngestService) HandleSample(data []byte) error {
	var msg SampleMessage
	if err := s.codec.Decode(data, &msg); err != nil {
		s.drop("sample", err)
		return nil
	}
	sample, err := msg.Sample()
	if err != nil {
		s.drop("sample", err)
		return nil
	}

	s.samples.Add(1)
	raised, err := s.fleet.Ingest(msg.VehicleID, sample)
	if err != nil {
		s.reject(msg.VehicleID, err)
		return nil
	}

	s.raised.Add(int64(len(raised)))
	s.alerts.Publish(context.Background(), msg.VehicleID, raised)
	return nil
}

// HandlePosition is the MessageHandler for the positions subject
func (s *IngestService) HandlePosition(data []byte) error {
	var msg PositionMessage
	if err := s.codec.Decode(data, &msg); err != nil {
		s.drop("position", err)
		return nil
	}
	if msg.VehicleID == "" {
		s.drop("position", fmt.Errorf("%w: vehicle_id is required", ErrMalformedMessage))
		return nil
	}

	s.positions.Add(1)
	raised, err := s.fleet.UpdatePosition(msg.VehicleID, msg.Position(), msg.Speed, msg.Time)
	if err != nil {
		s.reject(msg.VehicleID, err)
		return nil
	}

	s.raised.Add(int64(len(raised)))
	s.alerts.Publish(context.Background(), msg.VehicleID, raised)
	return nil
}

func (s *IngestService) drop(kind string, err error) {
	s.malformed.Add(1)
	s.logger.Warn("Dropping malformed message", "kind", kind, "error", err)
}

func (s *IngestService) reject(vehicleID string, err error) {
	s.rejected.Add(1)
	switch {
	case errors.Is(err, fleet.ErrFleetFull):
		s.logger.Error("Fleet is full, dropping data for new vehicle", "vehicle_id", vehicleID)
	case errors.Is(err, monitor.ErrInvalidSample),
		errors.Is(err, monitor.ErrOutOfOrder),
		errors.Is(err, monitor.ErrInvalidPosition):
		// The monitor already logged the rejection
	default:
		s.logger.Error("Failed to ingest", "vehicle_id", vehicleID, "error", err)
	}
}

// Stats returns a snapshot of the counters
func (s *IngestService) Stats() IngestStats {
	return IngestStats{
		Samples:   s.samples.Load(),
		Positions: s.positions.Load(),
		Malformed: s.malformed.Load(),
		Rejected:  s.rejected.Load(),
		Alerts:    s.raised.Load(),
	}
}
