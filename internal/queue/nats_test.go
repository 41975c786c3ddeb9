package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/soltixdb/telewatch/internal/logging"
)

// startTestNATS runs an embedded JetStream server for the duration of the test
func startTestNATS(t *testing.T) string {
	t.Helper()

	ns, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Failed to create NATS server: %v", err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return ns.ClientURL()
}

func newTestNATSQueue(t *testing.T) *NATSQueue {
	t.Helper()
	q, err := newNATSQueue(NATSConfig{URL: startTestNATS(t)}, logging.NewNop())
	if err != nil {
		t.Fatalf("Failed to create NATS queue: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func TestNATSQueue_Defaults(t *testing.T) {
	q := newTestNATSQueue(t)

	if q.config.StreamPrefix != "telewatch-" {
		t.Errorf("unexpected stream prefix %q", q.config.StreamPrefix)
	}
	if q.config.AckWait != 30*time.Second || q.config.MaxDeliver != 3 || q.config.MaxAckPending != 100 {
		t.Errorf("unexpected consumer defaults %+v", q.config)
	}
	if got := q.StreamName("telemetry.samples"); got != "telewatch-telemetry_samples" {
		t.Errorf("unexpected stream name %q", got)
	}
}

func TestNATSQueue_PublishBeforeSubscribe(t *testing.T) {
	q := newTestNATSQueue(t)
	ctx := context.Background()

	// Publishing creates the stream, so alerts survive until a consumer appears
	for _, body := range []string{"a1", "a2"} {
		if err := q.Publish(ctx, Message{Subject: "telemetry.alerts", Key: "truck-1", Data: []byte(body)}); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	var mu sync.Mutex
	var got []string
	err := q.Subscribe("telemetry.alerts", func(data []byte) error {
		mu.Lock()
		got = append(got, string(data))
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, 5*time.Second)

	mu.Lock()
	defer mu.Unlock()
	if got[0] != "a1" || got[1] != "a2" {
		t.Errorf("unexpected delivery order %v", got)
	}
}

func TestNATSQueue_KeyHeader(t *testing.T) {
	q := newTestNATSQueue(t)

	if err := q.Publish(context.Background(), Message{Subject: "telemetry.samples", Key: "truck-7", Data: []byte("x")}); err != nil {
		t.Fatal(err)
	}

	msg, err := q.js.GetLastMsg(q.StreamName("telemetry.samples"), "telemetry.samples")
	if err != nil {
		t.Fatalf("GetLastMsg() error = %v", err)
	}
	if msg.Header.Get(KeyHeader) != "truck-7" {
		t.Errorf("expected key header truck-7, got %q", msg.Header.Get(KeyHeader))
	}
}

func TestNATSQueue_HandlerErrorRedelivers(t *testing.T) {
	q := newTestNATSQueue(t)

	var attempts atomic.Int32
	err := q.Subscribe("telemetry.samples", func([]byte) error {
		if attempts.Add(1) == 1 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := q.Publish(context.Background(), Message{Subject: "telemetry.samples", Data: []byte("x")}); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return attempts.Load() >= 2 }, 5*time.Second)
}

func TestNATSQueue_SubscribeTwice(t *testing.T) {
	q := newTestNATSQueue(t)
	noop := func([]byte) error { return nil }

	if err := q.Subscribe("telemetry.positions", noop); err != nil {
		t.Fatal(err)
	}
	if err := q.Subscribe("telemetry.positions", noop); err == nil {
		t.Error("expected error on second subscription")
	}
}

func TestNATSQueue_Unsubscribe(t *testing.T) {
	q := newTestNATSQueue(t)

	if err := q.Unsubscribe("telemetry.samples"); err == nil {
		t.Error("expected error for unknown subscription")
	}
	_ = q.Subscribe("telemetry.samples", func([]byte) error { return nil })
	if err := q.Unsubscribe("telemetry.samples"); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}
}

func TestNATSQueue_PublishBatch(t *testing.T) {
	q := newTestNATSQueue(t)

	var received atomic.Int32
	for _, subject := range []string{"telemetry.reports", "telemetry.alerts"} {
		if err := q.Subscribe(subject, func([]byte) error {
			received.Add(1)
			return nil
		}); err != nil {
			t.Fatal(err)
		}
	}

	batch := make([]Message, 0, 20)
	for i := 0; i < 10; i++ {
		batch = append(batch,
			Message{Subject: "telemetry.reports", Key: "truck-1", Data: []byte("r")},
			Message{Subject: "telemetry.alerts", Key: "truck-1", Data: []byte("a")},
		)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n, err := q.PublishBatch(ctx, batch)
	if err != nil {
		t.Fatalf("PublishBatch() error = %v", err)
	}
	if n != 20 {
		t.Errorf("expected 20 accepted, got %d", n)
	}
	waitFor(t, func() bool { return received.Load() == 20 }, 5*time.Second)

	if n, err := q.PublishBatch(ctx, nil); n != 0 || err != nil {
		t.Errorf("empty batch: n=%d err=%v", n, err)
	}
}

func TestNATSQueue_Close(t *testing.T) {
	url := startTestNATS(t)
	conn, err := nats.Connect(url)
	if err != nil {
		t.Fatal(err)
	}

	q, err := newNATSQueueWithConn(conn, NATSConfig{}, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	_ = q.Subscribe("telemetry.samples", func([]byte) error { return nil })

	if err := q.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !conn.IsClosed() {
		t.Error("expected connection to be closed")
	}
	if err := q.Publish(context.Background(), Message{Subject: "telemetry.samples"}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"telemetry.samples": "telemetry_samples",
		"telemetry.>":       "telemetry__",
		"fleet-1_ok":        "fleet-1_ok",
		"a*b c":             "a_b_c",
	}
	for in, want := range tests {
		if got := sanitizeName(in); got != want {
			t.Errorf("sanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}
