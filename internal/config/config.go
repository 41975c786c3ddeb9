package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/soltixdb/telewatch/internal/alert"
	"github.com/soltixdb/telewatch/internal/detection"
	"github.com/soltixdb/telewatch/internal/geofence"
	"github.com/soltixdb/telewatch/internal/maintenance"
	"github.com/soltixdb/telewatch/internal/scoring"
	"github.com/soltixdb/telewatch/internal/utils"
)

// Config represents the complete application configuration
type Config struct {
	Server      ServerConfig       `mapstructure:"server"`
	Auth        AuthConfig         `mapstructure:"auth"`
	Queue       QueueConfig        `mapstructure:"queue"`
	Etcd        EtcdConfig         `mapstructure:"etcd"`
	Logging     LoggingConfig      `mapstructure:"logging"`
	Monitor     MonitorConfig      `mapstructure:"monitor"`
	Detection   detection.Config   `mapstructure:"detection"`
	Geofence    geofence.Config    `mapstructure:"geofence"`
	Scoring     scoring.Config     `mapstructure:"scoring"`
	Maintenance maintenance.Config `mapstructure:"maintenance"`
}

// AuthConfig represents authentication configuration
type AuthConfig struct {
	Enabled bool     `mapstructure:"enabled"`  // Enable/disable API key authentication
	APIKeys []string `mapstructure:"api_keys"` // List of valid API keys
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`      // Bind address (e.g., 0.0.0.0 for all interfaces)
	HTTPPort        int           `mapstructure:"http_port"` // HTTP server port
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// EtcdConfig represents the zone catalog connection
type EtcdConfig struct {
	Enabled     bool          `mapstructure:"enabled"` // Load zones from etcd instead of geofence.zones
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	ZonePrefix  string        `mapstructure:"zone_prefix"` // Key prefix of zone records
}

// QueueConfig represents message queue configuration
type QueueConfig struct {
	Enabled  bool   `mapstructure:"enabled"`  // Consume samples and publish alerts/reports over the queue
	Type     string `mapstructure:"type"`     // Queue type: nats (default), redis, kafka, memory
	URL      string `mapstructure:"url"`      // Queue server URL (e.g., nats://localhost:4222, redis://localhost:6379)
	Username string `mapstructure:"username"` // Optional authentication
	Password string `mapstructure:"password"` // Optional authentication

	// Redis-specific options
	RedisDB       int    `mapstructure:"redis_db"`       // Redis database number (default: 0)
	RedisStream   string `mapstructure:"redis_stream"`   // Redis stream prefix (default: "telewatch")
	RedisGroup    string `mapstructure:"redis_group"`    // Redis consumer group (default: "telewatch-group")
	RedisConsumer string `mapstructure:"redis_consumer"` // Redis consumer name (default: hostname)

	// Kafka-specific options
	KafkaBrokers []string `mapstructure:"kafka_brokers"`  // Kafka broker addresses
	KafkaGroupID string   `mapstructure:"kafka_group_id"` // Kafka consumer group ID

	// Subjects
	SampleSubject   string `mapstructure:"sample_subject"`
	PositionSubject string `mapstructure:"position_subject"`
	AlertSubject    string `mapstructure:"alert_subject"`
	ReportSubject   string `mapstructure:"report_subject"`

	// Compression of published payloads: none or snappy. Consumers detect it per message.
	Compression string `mapstructure:"compression"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, file path
	TimeFormat string `mapstructure:"time_format"` // RFC3339, RFC3339Nano, Unix, Kitchen
}

// MonitorConfig holds the per-vehicle pipeline settings
type MonitorConfig struct {
	WindowCapacity         int           `mapstructure:"window_capacity"`
	AlertTTL               time.Duration `mapstructure:"alert_ttl"`
	ReportInterval         time.Duration `mapstructure:"report_interval"`
	FleetCriticalThreshold int           `mapstructure:"fleet_critical_threshold"`
	MaxVehicles            int           `mapstructure:"max_vehicles"`
}

// AlertConfig returns the alert manager settings
func (c *MonitorConfig) AlertConfig() alert.Config {
	return alert.Config{
		TTL:               c.AlertTTL,
		CriticalThreshold: c.FleetCriticalThreshold,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth config: %w", err)
	}
	if err := c.Queue.Validate(); err != nil {
		return fmt.Errorf("queue config: %w", err)
	}
	if err := c.Etcd.Validate(); err != nil {
		return fmt.Errorf("etcd config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	if err := c.Monitor.Validate(); err != nil {
		return fmt.Errorf("monitor config: %w", err)
	}
	for name, p := range c.Detection.Profiles {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("detection config: profile %s: %w", name, err)
		}
	}
	if err := c.validateGeofence(); err != nil {
		return fmt.Errorf("geofence config: %w", err)
	}
	if err := c.Scoring.Validate(); err != nil {
		return fmt.Errorf("scoring config: %w", err)
	}
	if err := c.Maintenance.Validate(); err != nil {
		return fmt.Errorf("maintenance config: %w", err)
	}
	return nil
}

// Validate validates server configuration
func (c *ServerConfig) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port: %d", c.HTTPPort)
	}
	return nil
}

// Validate validates auth configuration
func (c *AuthConfig) Validate() error {
	if c.Enabled && len(c.APIKeys) == 0 {
		return fmt.Errorf("auth.api_keys is required when auth is enabled")
	}
	return nil
}

// Validate validates queue configuration
func (c *QueueConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if !utils.QueueType(c.Type).Valid() {
		return fmt.Errorf("queue.type must be one of: nats, redis, kafka, memory")
	}
	for name, subject := range map[string]string{
		"sample_subject":   c.SampleSubject,
		"position_subject": c.PositionSubject,
		"alert_subject":    c.AlertSubject,
		"report_subject":   c.ReportSubject,
	} {
		if strings.TrimSpace(subject) == "" {
			return fmt.Errorf("queue.%s is required", name)
		}
	}
	if c.Compression != "none" && c.Compression != "snappy" {
		return fmt.Errorf("queue.compression must be 'none' or 'snappy'")
	}
	return nil
}

// Validate validates etcd configuration
func (c *EtcdConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Endpoints) == 0 {
		return fmt.Errorf("etcd.endpoints is required")
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("etcd.dial_timeout must be positive")
	}
	if !strings.HasPrefix(c.ZonePrefix, "/") {
		return fmt.Errorf("etcd.zone_prefix must start with '/'")
	}
	return nil
}

// Validate validates logging configuration
func (c *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}
	if !validFormats[c.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console'")
	}
	return nil
}

// Validate validates monitor configuration
func (c *MonitorConfig) Validate() error {
	if c.WindowCapacity < 2 {
		return fmt.Errorf("monitor.window_capacity must be at least 2")
	}
	if c.AlertTTL <= 0 {
		return fmt.Errorf("monitor.alert_ttl must be positive")
	}
	if c.ReportInterval <= 0 {
		return fmt.Errorf("monitor.report_interval must be positive")
	}
	if c.FleetCriticalThreshold < 1 {
		return fmt.Errorf("monitor.fleet_critical_threshold must be at least 1")
	}
	if c.MaxVehicles < 1 {
		return fmt.Errorf("monitor.max_vehicles must be at least 1")
	}
	return nil
}

func (c *Config) validateGeofence() error {
	if c.Geofence.Tolerance < 0 {
		return fmt.Errorf("geofence.tolerance must not be negative")
	}
	if c.Geofence.MajorExcess < 0 {
		return fmt.Errorf("geofence.major_excess must not be negative")
	}
	// Registering into a scratch engine runs the same checks as startup
	_, err := geofence.NewEngineFromConfig(c.Geofence)
	return err
}
