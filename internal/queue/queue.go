package queue

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a queue after Close
var ErrClosed = errors.New("queue closed")

// Message is one payload on the bus. Key carries the vehicle ID so backends
// that partition (Kafka) keep one vehicle's messages in order.
type Message struct {
	Subject string
	Key     string
	Data    []byte
}

// Publisher publishes telemetry, alerts and reports
type Publisher interface {
	// Publish publishes a single message and waits for the backend to accept it
	Publish(ctx context.Context, msg Message) error

	// PublishBatch publishes messages and returns how many the backend accepted
	PublishBatch(ctx context.Context, messages []Message) (int, error)

	// Close closes the connection
	Close() error
}

// Subscriber consumes messages from a subject/topic
type Subscriber interface {
	// Subscribe registers handler for subject. Messages whose handler returns an
	// error are left unacknowledged for redelivery where the backend supports it.
	Subscribe(subject string, handler MessageHandler) error

	// Unsubscribe stops delivery for subject
	Unsubscribe(subject string) error

	// Close closes the connection
	Close() error
}

// MessageHandler handles an incoming payload
type MessageHandler func(data []byte) error

// Queue combines Publisher and Subscriber
type Queue interface {
	Publisher
	Subscriber
}
