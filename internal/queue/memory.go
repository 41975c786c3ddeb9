package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/soltixdb/telewatch/internal/logging"
)

// MemoryBufferSize is the per-subject buffer of the in-memory queue
const MemoryBufferSize = 10000

// MemoryQueue implements Queue with buffered channels. It serves tests and
// single-process deployments; messages are lost on restart and handler
// errors are logged, not retried.
type MemoryQueue struct {
	logger        *logging.Logger
	channels      map[string]chan []byte
	subscriptions map[string]context.CancelFunc
	closed        bool
	wg            sync.WaitGroup
	mu            sync.Mutex
}

func newMemoryQueue(logger *logging.Logger) *MemoryQueue {
	if logger == nil {
		logger = logging.Global()
	}
	return &MemoryQueue{
		logger:        logger,
		channels:      make(map[string]chan []byte),
		subscriptions: make(map[string]context.CancelFunc),
	}
}

// NewMemoryQueue returns an empty in-memory queue
func NewMemoryQueue(logger *logging.Logger) *MemoryQueue {
	return newMemoryQueue(logger)
}

// channel returns subject's buffer, creating it. Callers hold q.mu.
func (q *MemoryQueue) channel(subject string) chan []byte {
	ch, ok := q.channels[subject]
	if !ok {
		ch = make(chan []byte, MemoryBufferSize)
		q.channels[subject] = ch
	}
	return ch
}

// Publish copies the payload into subject's buffer. A full buffer is an error
// rather than backpressure.
func (q *MemoryQueue) Publish(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}

	data := make([]byte, len(m.Data))
	copy(data, m.Data)

	select {
	case q.channel(m.Subject) <- data:
		return nil
	default:
		return fmt.Errorf("buffer full for subject: %s", m.Subject)
	}
}

// PublishBatch publishes messages one by one and counts the accepted ones
func (q *MemoryQueue) PublishBatch(ctx context.Context, messages []Message) (int, error) {
	accepted := 0
	for _, m := range messages {
		if err := q.Publish(ctx, m); err != nil {
			if err == ErrClosed || ctx.Err() != nil {
				return accepted, err
			}
			q.logger.Warn("Dropped batch message", "subject", m.Subject, "error", err)
			continue
		}
		accepted++
	}
	return accepted, nil
}

// Subscribe starts a goroutine draining subject's buffer into handler.
// Messages published before the subscription are delivered too.
func (q *MemoryQueue) Subscribe(subject string, handler MessageHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	if _, exists := q.subscriptions[subject]; exists {
		return fmt.Errorf("already subscribed to subject: %s", subject)
	}

	ch := q.channel(subject)
	ctx, cancel := context.WithCancel(context.Background())
	q.subscriptions[subject] = cancel

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case data := <-ch:
				if err := handler(data); err != nil {
					q.logger.Warn("Handler failed, message dropped", "subject", subject, "error", err)
				}
			}
		}
	}()
	return nil
}

// Unsubscribe stops delivery for subject. Buffered messages stay queued.
func (q *MemoryQueue) Unsubscribe(subject string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	cancel, exists := q.subscriptions[subject]
	if !exists {
		return fmt.Errorf("not subscribed to subject: %s", subject)
	}
	cancel()
	delete(q.subscriptions, subject)
	return nil
}

// Close stops all consumers and discards buffered messages
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	for subject, cancel := range q.subscriptions {
		cancel()
		delete(q.subscriptions, subject)
	}
	q.channels = make(map[string]chan []byte)
	q.mu.Unlock()

	q.wg.Wait()
	return nil
}

// Pending returns the number of undelivered messages for subject
func (q *MemoryQueue) Pending(subject string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if ch, ok := q.channels[subject]; ok {
		return len(ch)
	}
	return 0
}
