package utils

import "time"

// =============================================================================
// Timeout Constants
// =============================================================================

const (
	// DefaultRequestTimeout is the default timeout for HTTP requests
	DefaultRequestTimeout = 30 * time.Second

	// DefaultShutdownTimeout bounds graceful shutdown of the HTTP server and services
	DefaultShutdownTimeout = 10 * time.Second

	// PublishTimeout bounds a single alert or report publish
	PublishTimeout = 5 * time.Second

	// ZoneLoadTimeout bounds loading the zone catalog at startup
	ZoneLoadTimeout = 10 * time.Second
)

// =============================================================================
// Monitor Constants
// =============================================================================

const (
	// DefaultWindowCapacity is the default number of samples kept per metric
	DefaultWindowCapacity = 60

	// DefaultAlertTTL is how long an alert stays active by default
	DefaultAlertTTL = 5 * time.Minute

	// DefaultReportInterval is the default cadence of published reports
	DefaultReportInterval = 30 * time.Second

	// DefaultCriticalThreshold is the number of Critical+Emergency alerts that
	// flags a vehicle
	DefaultCriticalThreshold = 3

	// DefaultMaxVehicles bounds the number of monitored vehicles
	DefaultMaxVehicles = 1000

	// MaxSamplesPerRequest bounds a batch POST of samples
	MaxSamplesPerRequest = 1000
)

// =============================================================================
// Queue Subjects
// =============================================================================

const (
	// SubjectSamples carries SampleMessage payloads
	SubjectSamples = "telemetry.samples"

	// SubjectPositions carries PositionMessage payloads
	SubjectPositions = "telemetry.positions"

	// SubjectAlerts carries AlertMessage payloads
	SubjectAlerts = "telemetry.alerts"

	// SubjectReports carries ReportMessage payloads
	SubjectReports = "telemetry.reports"
)

// =============================================================================
// Queue Type Constants
// =============================================================================

// QueueType represents the type of message queue
type QueueType string

const (
	// QueueTypeNATS represents NATS JetStream queue (default)
	QueueTypeNATS QueueType = "nats"

	// QueueTypeRedis represents Redis Streams queue
	QueueTypeRedis QueueType = "redis"

	// QueueTypeKafka represents Apache Kafka queue
	QueueTypeKafka QueueType = "kafka"

	// QueueTypeMemory represents in-memory queue (for testing)
	QueueTypeMemory QueueType = "memory"
)

// Valid reports whether the queue type is supported
func (t QueueType) Valid() bool {
	switch t {
	case QueueTypeNATS, QueueTypeRedis, QueueTypeKafka, QueueTypeMemory:
		return true
	}
	return false
}
