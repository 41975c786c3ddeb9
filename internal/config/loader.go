package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/soltixdb/telewatch/internal/detection"
	"github.com/soltixdb/telewatch/internal/geofence"
	"github.com/soltixdb/telewatch/internal/maintenance"
	"github.com/soltixdb/telewatch/internal/scoring"
	"github.com/soltixdb/telewatch/internal/utils"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides, e.g. TELEWATCH_SERVER_HTTP_PORT
const EnvPrefix = "TELEWATCH"

// Load loads configuration from file
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/telewatch")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; use defaults
			return parseConfig(v)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return parseConfig(v)
}

// setDefaults sets default values for the scalar keys. Structured sections
// (detection profiles, zones, penalties, schedule) default through DefaultConfig.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 5580)
	v.SetDefault("server.shutdown_timeout", utils.DefaultShutdownTimeout)

	// Auth defaults
	v.SetDefault("auth.enabled", false)

	// Queue defaults
	v.SetDefault("queue.enabled", false)
	v.SetDefault("queue.type", string(utils.QueueTypeNATS))
	v.SetDefault("queue.url", "nats://localhost:4222")
	v.SetDefault("queue.redis_stream", "telewatch")
	v.SetDefault("queue.redis_group", "telewatch-group")
	v.SetDefault("queue.kafka_group_id", "telewatch-group")
	v.SetDefault("queue.sample_subject", utils.SubjectSamples)
	v.SetDefault("queue.position_subject", utils.SubjectPositions)
	v.SetDefault("queue.alert_subject", utils.SubjectAlerts)
	v.SetDefault("queue.report_subject", utils.SubjectReports)
	v.SetDefault("queue.compression", "none")

	// Etcd defaults
	v.SetDefault("etcd.enabled", false)
	v.SetDefault("etcd.endpoints", []string{"http://localhost:2379"})
	v.SetDefault("etcd.dial_timeout", "5s")
	v.SetDefault("etcd.zone_prefix", "/telewatch/zones/")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_path", "stdout")
	v.SetDefault("logging.time_format", "RFC3339")

	// Monitor defaults
	v.SetDefault("monitor.window_capacity", utils.DefaultWindowCapacity)
	v.SetDefault("monitor.alert_ttl", utils.DefaultAlertTTL)
	v.SetDefault("monitor.report_interval", utils.DefaultReportInterval)
	v.SetDefault("monitor.fleet_critical_threshold", utils.DefaultCriticalThreshold)
	v.SetDefault("monitor.max_vehicles", utils.DefaultMaxVehicles)

	// Detection profiles are set per field so a file overriding one
	// threshold keeps the rest of that profile
	for kind, p := range detection.DefaultConfig().Profiles {
		prefix := "detection.profiles." + kind + "."
		v.SetDefault(prefix+"harsh_deceleration", p.HarshDeceleration)
		v.SetDefault(prefix+"collision_deceleration", p.CollisionDeceleration)
		v.SetDefault(prefix+"rapid_acceleration", p.RapidAcceleration)
		v.SetDefault(prefix+"variance", p.Variance)
		v.SetDefault(prefix+"variance_min_points", p.VarianceMinPoints)
		v.SetDefault(prefix+"anomaly_zscore", p.AnomalyZScore)
		v.SetDefault(prefix+"anomaly_critical_zscore", p.AnomalyCriticalZScore)
		v.SetDefault(prefix+"anomaly_min_points", p.AnomalyMinPoints)
	}

	// Geofence and scoring
	geo := geofence.DefaultConfig()
	v.SetDefault("geofence.tolerance", geo.Tolerance)
	v.SetDefault("geofence.major_excess", geo.MajorExcess)

	sc := scoring.DefaultConfig()
	v.SetDefault("scoring.initial", sc.Initial)
	v.SetDefault("scoring.reward", sc.Reward)
	v.SetDefault("scoring.reward_interval", sc.RewardInterval)
	for sev, penalty := range sc.Penalties {
		v.SetDefault("scoring.penalties."+sev, penalty)
	}
}

// parseConfig decodes viper settings over the defaults and validates the result
func parseConfig(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	// Lists given in the file replace the defaults instead of merging by index
	if v.IsSet("maintenance.schedule") {
		cfg.Maintenance.Schedule = nil
	}
	if v.IsSet("geofence.zones") {
		cfg.Geofence.Zones = nil
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads configuration from file or returns default config
func LoadOrDefault(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		return DefaultConfig()
	}
	return cfg
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			HTTPPort:        5580,
			ShutdownTimeout: utils.DefaultShutdownTimeout,
		},
		Queue: QueueConfig{
			Type:            string(utils.QueueTypeNATS),
			URL:             "nats://localhost:4222",
			RedisStream:     "telewatch",
			RedisGroup:      "telewatch-group",
			KafkaGroupID:    "telewatch-group",
			SampleSubject:   utils.SubjectSamples,
			PositionSubject: utils.SubjectPositions,
			AlertSubject:    utils.SubjectAlerts,
			ReportSubject:   utils.SubjectReports,
			Compression:     "none",
		},
		Etcd: EtcdConfig{
			Endpoints:   []string{"http://localhost:2379"},
			DialTimeout: 5 * time.Second,
			ZonePrefix:  "/telewatch/zones/",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			OutputPath: "stdout",
			TimeFormat: "RFC3339",
		},
		Monitor: MonitorConfig{
			WindowCapacity:         utils.DefaultWindowCapacity,
			AlertTTL:               utils.DefaultAlertTTL,
			ReportInterval:         utils.DefaultReportInterval,
			FleetCriticalThreshold: utils.DefaultCriticalThreshold,
			MaxVehicles:            utils.DefaultMaxVehicles,
		},
		Detection:   detection.DefaultConfig(),
		Geofence:    geofence.DefaultConfig(),
		Scoring:     scoring.DefaultConfig(),
		Maintenance: maintenance.DefaultConfig(),
	}
}
