package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/soltixdb/telewatch/internal/logging"
)

// KeyHeader carries Message.Key on NATS messages
const KeyHeader = "Telewatch-Key"

// NATSConfig represents NATS JetStream configuration
type NATSConfig struct {
	URL           string
	Username      string
	Password      string
	StreamPrefix  string        // default: "telewatch-"
	AckWait       time.Duration // default: 30s
	MaxDeliver    int           // default: 3
	MaxAckPending int           // default: 100
}

func (c *NATSConfig) applyDefaults() {
	if c.StreamPrefix == "" {
		c.StreamPrefix = "telewatch-"
	}
	if c.AckWait <= 0 {
		c.AckWait = 30 * time.Second
	}
	if c.MaxDeliver <= 0 {
		c.MaxDeliver = 3
	}
	if c.MaxAckPending <= 0 {
		c.MaxAckPending = 100
	}
}

// NATSQueue implements Queue using NATS JetStream. One file-backed stream is
// created per subject the first time it is published to or subscribed.
type NATSQueue struct {
	conn          *nats.Conn
	js            nats.JetStreamContext
	config        NATSConfig
	logger        *logging.Logger
	streams       map[string]struct{}
	subscriptions map[string]*nats.Subscription
	closed        bool
	mu            sync.Mutex
}

func newNATSQueue(cfg NATSConfig, logger *logging.Logger) (*NATSQueue, error) {
	opts := []nats.Option{nats.Name("telewatch")}
	if cfg.Username != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	q, err := newNATSQueueWithConn(conn, cfg, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return q, nil
}

// newNATSQueueWithConn wraps an existing connection. Close closes it.
func newNATSQueueWithConn(conn *nats.Conn, cfg NATSConfig, logger *logging.Logger) (*NATSQueue, error) {
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	if logger == nil {
		logger = logging.Global()
	}
	cfg.applyDefaults()

	return &NATSQueue{
		conn:          conn,
		js:            js,
		config:        cfg,
		logger:        logger,
		streams:       make(map[string]struct{}),
		subscriptions: make(map[string]*nats.Subscription),
	}, nil
}

// StreamName returns the JetStream stream backing subject
func (q *NATSQueue) StreamName(subject string) string {
	return q.config.StreamPrefix + sanitizeName(subject)
}

// ensureStream creates the stream for subject unless it is already known.
// Callers hold q.mu.
func (q *NATSQueue) ensureStream(subject string) error {
	if _, ok := q.streams[subject]; ok {
		return nil
	}

	name := q.StreamName(subject)
	if _, err := q.js.StreamInfo(name); err != nil {
		if !errors.Is(err, nats.ErrStreamNotFound) {
			return fmt.Errorf("failed to look up stream %s: %w", name, err)
		}
		if _, err := q.js.AddStream(&nats.StreamConfig{
			Name:     name,
			Subjects: []string{subject},
			Storage:  nats.FileStorage,
		}); err != nil {
			return fmt.Errorf("failed to create stream for subject %s: %w", subject, err)
		}
		q.logger.Debug("Created stream", "stream", name, "subject", subject)
	}

	q.streams[subject] = struct{}{}
	return nil
}

func (q *NATSQueue) prepare(subject string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	return q.ensureStream(subject)
}

func toNATSMsg(m Message) *nats.Msg {
	msg := nats.NewMsg(m.Subject)
	msg.Data = m.Data
	if m.Key != "" {
		msg.Header.Set(KeyHeader, m.Key)
	}
	return msg
}

// Publish publishes a message and waits for the JetStream ack
func (q *NATSQueue) Publish(ctx context.Context, m Message) error {
	if err := q.prepare(m.Subject); err != nil {
		return err
	}
	if _, err := q.js.PublishMsg(toNATSMsg(m), nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish to subject %s: %w", m.Subject, err)
	}
	return nil
}

// PublishBatch queues every message asynchronously and waits for all acks or
// for ctx to end. Messages that fail are logged and not counted.
func (q *NATSQueue) PublishBatch(ctx context.Context, messages []Message) (int, error) {
	if len(messages) == 0 {
		return 0, nil
	}

	futures := make([]nats.PubAckFuture, 0, len(messages))
	for _, m := range messages {
		if err := q.prepare(m.Subject); err != nil {
			if errors.Is(err, ErrClosed) {
				return 0, err
			}
			q.logger.Warn("Skipping batch message", "subject", m.Subject, "error", err)
			continue
		}
		future, err := q.js.PublishMsgAsync(toNATSMsg(m))
		if err != nil {
			q.logger.Warn("Failed to queue batch message", "subject", m.Subject, "error", err)
			continue
		}
		futures = append(futures, future)
	}

	select {
	case <-q.js.PublishAsyncComplete():
	case <-ctx.Done():
		return 0, fmt.Errorf("timeout waiting for batch publish: %w", ctx.Err())
	}

	accepted := 0
	for _, future := range futures {
		select {
		case <-future.Ok():
			accepted++
		case err := <-future.Err():
			q.logger.Warn("Batch message rejected", "subject", future.Msg().Subject, "error", err)
		}
	}
	return accepted, nil
}

// Subscribe creates a durable push consumer with manual acks. Handler errors
// NAK the message, which JetStream redelivers up to MaxDeliver times.
func (q *NATSQueue) Subscribe(subject string, handler MessageHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	if _, exists := q.subscriptions[subject]; exists {
		return fmt.Errorf("already subscribed to subject: %s", subject)
	}
	if err := q.ensureStream(subject); err != nil {
		return err
	}

	logger := q.logger.With("subject", subject)
	sub, err := q.js.Subscribe(subject, func(msg *nats.Msg) {
		if err := handler(msg.Data); err != nil {
			logger.Warn("Handler failed, message will be redelivered", "error", err)
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable("consumer-"+sanitizeName(subject)),
		nats.ManualAck(),
		nats.MaxAckPending(q.config.MaxAckPending),
		nats.AckWait(q.config.AckWait),
		nats.MaxDeliver(q.config.MaxDeliver),
		nats.DeliverAll(),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", subject, err)
	}

	q.subscriptions[subject] = sub
	return nil
}

// Unsubscribe unsubscribes from a subject
func (q *NATSQueue) Unsubscribe(subject string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	sub, exists := q.subscriptions[subject]
	if !exists {
		return fmt.Errorf("not subscribed to subject: %s", subject)
	}
	delete(q.subscriptions, subject)

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("failed to unsubscribe from subject %s: %w", subject, err)
	}
	return nil
}

// Close drops all subscriptions and closes the connection
func (q *NATSQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true

	for subject, sub := range q.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			q.logger.Warn("Failed to unsubscribe", "subject", subject, "error", err)
		}
		delete(q.subscriptions, subject)
	}

	q.conn.Close()
	return nil
}

// sanitizeName maps a subject onto the characters JetStream allows in stream
// and consumer names: A-Z, a-z, 0-9, dash and underscore.
func sanitizeName(subject string) string {
	out := []byte(subject)
	for i, c := range out {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			out[i] = '_'
		}
	}
	return string(out)
}
