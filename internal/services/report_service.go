package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soltixdb/telewatch/internal/fleet"
	"github.com/soltixdb/telewatch/internal/logging"
	"github.com/soltixdb/telewatch/internal/queue"
	"github.com/soltixdb/telewatch/internal/utils"
)

// ReportService publishes every vehicle's report and the fleet summary on a
// fixed interval. Snapshots only expire alerts, so publishing never changes
// what the monitors will report next.
type ReportService struct {
	logger   *logging.Logger
	fleet    *fleet.Fleet
	pub      queue.Publisher
	codec    *Codec
	subject  string
	interval time.Duration
	now      func() time.Time

	published atomic.Int64

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewReportService creates a new ReportService
func NewReportService(
	logger *logging.Logger,
	f *fleet.Fleet,
	pub queue.Publisher,
	codec *Codec,
	subject string,
	interval time.Duration,
) *ReportService {
	if logger == nil {
		logger = logging.Global()
	}
	if interval <= 0 {
		interval = utils.DefaultReportInterval
	}
	return &ReportService{
		logger:   logger.Component("reports"),
		fleet:    f,
		pub:      pub,
		codec:    codec,
		subject:  subject,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the publish loop
func (s *ReportService) Start(ctx context.Context) {
	s.logger.Info("Starting report service", "interval", s.interval, "subject", s.subject)

	s.wg.Add(1)
	go s.run(ctx)
}

// Stop stops the publish loop and waits for an in-flight publish to finish
func (s *ReportService) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	s.logger.Info("Report service stopped", "published", s.published.Load())
}

func (s *ReportService) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.PublishOnce(ctx); err != nil {
				s.logger.Error("Failed to publish reports", "error", err)
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// PublishOnce snapshots the fleet and publishes one message per vehicle plus
// the fleet summary. It returns the number of messages accepted.
func (s *ReportService) PublishOnce(ctx context.Context) (int, error) {
	now := s.now()
	reports := s.fleet.Snapshots(now)
	summary := fleet.Merge(now, reports)

	messages := make([]queue.Message, 0, len(reports)+1)
	for i := range reports {
		data, err := s.codec.Encode(ReportMessage{Kind: ReportKindVehicle, Report: &reports[i]})
		if err != nil {
			return 0, fmt.Errorf("failed to encode report for %s: %w", reports[i].VehicleID, err)
		}
		messages = append(messages, queue.Message{Subject: s.subject, Key: reports[i].VehicleID, Data: data})
	}

	data, err := s.codec.Encode(ReportMessage{Kind: ReportKindFleet, Fleet: &summary})
	if err != nil {
		return 0, fmt.Errorf("failed to encode fleet summary: %w", err)
	}
	messages = append(messages, queue.Message{Subject: s.subject, Data: data})

	ctx, cancel := context.WithTimeout(ctx, utils.PublishTimeout)
	defer cancel()

	n, err := s.pub.PublishBatch(ctx, messages)
	s.published.Add(int64(n))
	if err != nil {
		return n, err
	}
	if n < len(messages) {
		return n, fmt.Errorf("published %d of %d report messages", n, len(messages))
	}

	s.logger.Debug("Published reports",
		"vehicles", len(reports),
		"critical", len(summary.CriticalVehicles),
	)
	return n, nil
}

// Published returns the number of report messages delivered so far
func (s *ReportService) Published() int64 {
	return s.published.Load()
}
