package services

import (
	"context"
	"sync/atomic"

	"github.com/soltixdb/telewatch/internal/alert"
	"github.com/soltixdb/telewatch/internal/logging"
	"github.com/soltixdb/telewatch/internal/queue"
	"github.com/soltixdb/telewatch/internal/utils"
)

// AlertPublisher forwards newly raised alerts to the alert subject. A nil
// publisher or queue turns it into a no-op, which is how the HTTP-only mode
// runs.
type AlertPublisher struct {
	logger  *logging.Logger
	pub     queue.Publisher
	codec   *Codec
	subject string

	published atomic.Int64
	failed    atomic.Int64
}

// NewAlertPublisher creates an alert publisher. pub may be nil.
func NewAlertPublisher(logger *logging.Logger, pub queue.Publisher, codec *Codec, subject string) *AlertPublisher {
	if logger == nil {
		logger = logging.Global()
	}
	return &AlertPublisher{
		logger:  logger.Component("alert-publisher"),
		pub:     pub,
		codec:   codec,
		subject: subject,
	}
}

// Publish sends one message per alert, keyed by vehicle. Failures are logged
// and counted; the alerts themselves are already recorded by the monitor.
func (p *AlertPublisher) Publish(ctx context.Context, vehicleID string, alerts []alert.Alert) {
	if p == nil || p.pub == nil || len(alerts) == 0 {
		return
	}

	messages := make([]queue.Message, 0, len(alerts))
	for _, a := range alerts {
		data, err := p.codec.Encode(AlertMessage{VehicleID: vehicleID, Alert: a})
		if err != nil {
			p.failed.Add(1)
			p.logger.Error("Failed to encode alert", "vehicle_id", vehicleID, "alert_id", a.ID, "error", err)
			continue
		}
		messages = append(messages, queue.Message{Subject: p.subject, Key: vehicleID, Data: data})
	}

	ctx, cancel := context.WithTimeout(ctx, utils.PublishTimeout)
	defer cancel()

	n, err := p.pub.PublishBatch(ctx, messages)
	p.published.Add(int64(n))
	if lost := len(messages) - n; lost > 0 {
		p.failed.Add(int64(lost))
		p.logger.Error("Failed to publish alerts",
			"vehicle_id", vehicleID,
			"lost", lost,
			"error", err,
		)
		return
	}

	p.logger.Debug("Published alerts", "vehicle_id", vehicleID, "count", n)
}

// Published returns the number of alerts delivered to the queue
func (p *AlertPublisher) Published() int64 {
	if p == nil {
		return 0
	}
	return p.published.Load()
}

// Failed returns the number of alerts that could not be delivered
func (p *AlertPublisher) Failed() int64 {
	if p == nil {
		return 0
	}
	return p.failed.Load()
}
