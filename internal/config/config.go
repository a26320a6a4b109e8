// Package config provides configuration management for the feedback dedup service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/helixir/feedback-dedup-service/internal/policy"
	"github.com/helixir/feedback-dedup-service/internal/similarity"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "FEEDBACKDEDUP"

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config holds all configuration for the feedback dedup service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Storage selects the feedback and comparison log backend.
	Storage StorageConfig `mapstructure:"storage"`
	// Audit contains comparison log settings.
	Audit AuditConfig `mapstructure:"audit"`
	// Kafka contains event publishing and policy sync settings.
	Kafka KafkaConfig `mapstructure:"kafka"`
	// Tuning contains adaptive threshold job settings.
	Tuning TuningConfig `mapstructure:"tuning"`
	// Detection seeds the baseline duplicate detection policy.
	Detection DetectionConfig `mapstructure:"detection"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// IdleTimeout is how long keep-alive connections stay open between requests.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (use environment variable in production).
	Password string `mapstructure:"password"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool (default: 20).
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open (default: 2).
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath is the path to migration files (relative or absolute).
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun enables automatic migration on startup (default: false).
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
	// StatementCacheCapacity is the size of the prepared statement cache.
	StatementCacheCapacity int `mapstructure:"statement_cache_capacity"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
	// Namespace prefixes every metric name.
	Namespace string `mapstructure:"namespace"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Backend is memory or postgres.
	Backend string `mapstructure:"backend"`
}

// AuditConfig holds comparison log settings.
type AuditConfig struct {
	// Capacity bounds the in-memory log (memory backend only).
	Capacity int `mapstructure:"capacity"`
	// Retention hides (memory) or prunes (postgres) entries older than this. Zero keeps everything.
	Retention time.Duration `mapstructure:"retention"`
}

// KafkaConfig holds Kafka settings for event publishing and policy sync.
type KafkaConfig struct {
	// Enabled controls whether Kafka publishing and the policy listener are active.
	Enabled bool `mapstructure:"enabled"`
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`
	// Topic is the Kafka topic feedback and policy events are written to.
	Topic string `mapstructure:"topic"`
	// BatchSize is the maximum number of messages to batch before sending.
	BatchSize int `mapstructure:"batch_size"`
	// BatchTimeout is the maximum time to wait for a batch to fill before sending.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	// GroupIDPrefix is combined with InstanceID to form this replica's consumer group.
	GroupIDPrefix string `mapstructure:"group_id_prefix"`
	// InstanceID names this replica in published events. Defaults to the hostname.
	InstanceID string `mapstructure:"instance_id"`
}

// GroupID returns this replica's policy listener consumer group.
func (c *KafkaConfig) GroupID() string {
	return c.GroupIDPrefix + "-" + c.InstanceID
}

// TuningConfig holds adaptive threshold job settings.
type TuningConfig struct {
	// Enabled starts the periodic tuning job.
	Enabled bool `mapstructure:"enabled"`
	// Interval is the time between tuning runs.
	Interval time.Duration `mapstructure:"interval"`
	// Window is how far back each run looks in the comparison log.
	Window time.Duration `mapstructure:"window"`
	// MinSamples is the minimum number of comparisons before the threshold moves.
	MinSamples int `mapstructure:"min_samples"`
}

// DetectionConfig seeds the global fields of the baseline detection policy.
// Per-category overrides start from the built-in defaults and are managed at runtime.
type DetectionConfig struct {
	SimilarityThreshold          int                `mapstructure:"similarity_threshold"`
	TitleWeight                  float64            `mapstructure:"title_weight"`
	DescriptionWeight            float64            `mapstructure:"description_weight"`
	Algorithm                    string             `mapstructure:"algorithm"`
	AlgorithmWeights             similarity.Weights `mapstructure:"algorithm_weights"`
	TimeThreshold                time.Duration      `mapstructure:"time_threshold"`
	CheckIPAddress               bool               `mapstructure:"check_ip_address"`
	EnableCrossCategoryDetection bool               `mapstructure:"enable_cross_category_detection"`
	EnableAdaptiveThresholds     bool               `mapstructure:"enable_adaptive_thresholds"`
	AdaptationRate               float64            `mapstructure:"adaptation_rate"`
	NearMissRatio                float64            `mapstructure:"near_miss_ratio"`
	DetailedLogging              bool               `mapstructure:"detailed_logging"`
	NotifyAdminsOnDuplicate      bool               `mapstructure:"notify_admins_on_duplicate"`
	// Workers bounds concurrent candidate scoring per check.
	Workers int `mapstructure:"workers"`
}

// Policy returns the baseline policy: built-in defaults with the configured
// global fields applied.
func (c *DetectionConfig) Policy() policy.Config {
	p := policy.DefaultConfig()
	p.SimilarityThreshold = c.SimilarityThreshold
	p.TitleWeight = c.TitleWeight
	p.DescriptionWeight = c.DescriptionWeight
	p.Algorithm = similarity.Algorithm(strings.ToLower(c.Algorithm))
	p.AlgorithmWeights = c.AlgorithmWeights
	p.TimeThreshold = c.TimeThreshold
	p.CheckIPAddress = c.CheckIPAddress
	p.EnableCrossCategoryDetection = c.EnableCrossCategoryDetection
	p.EnableAdaptiveThresholds = c.EnableAdaptiveThresholds
	p.AdaptationRate = c.AdaptationRate
	p.NearMissRatio = c.NearMissRatio
	p.DetailedLogging = c.DetailedLogging
	p.NotifyAdminsOnDuplicate = c.NotifyAdminsOnDuplicate
	return p
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}
	if c.StatementCacheCapacity > 0 {
		params.Set("statement_cache_capacity", fmt.Sprintf("%d", c.StatementCacheCapacity))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/feedback-dedup-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Kafka.InstanceID == "" {
		cfg.Kafka.InstanceID = defaultInstanceID()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func defaultInstanceID() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "feedback-dedup"
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "feedback")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "feedback_dedup")
	// Default to "require" for production security. Use FEEDBACKDEDUP_DATABASE_SSL_MODE=disable for local development.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", false)
	v.SetDefault("database.statement_cache_capacity", 512)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "feedback_dedup")

	// Storage defaults
	v.SetDefault("storage.backend", StoragePostgres)

	// Audit defaults
	v.SetDefault("audit.capacity", 10000)
	v.SetDefault("audit.retention", "720h")

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "events.feedback_dedup_service")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.batch_timeout", "10ms")
	v.SetDefault("kafka.group_id_prefix", "feedback-dedup-policy")
	v.SetDefault("kafka.instance_id", "")

	// Tuning defaults
	v.SetDefault("tuning.enabled", false)
	v.SetDefault("tuning.interval", "1h")
	v.SetDefault("tuning.window", "168h")
	v.SetDefault("tuning.min_samples", 20)

	// Detection defaults mirror the built-in policy.
	d := policy.DefaultConfig()
	v.SetDefault("detection.similarity_threshold", d.SimilarityThreshold)
	v.SetDefault("detection.title_weight", d.TitleWeight)
	v.SetDefault("detection.description_weight", d.DescriptionWeight)
	v.SetDefault("detection.algorithm", string(d.Algorithm))
	v.SetDefault("detection.algorithm_weights.levenshtein", d.AlgorithmWeights.Levenshtein)
	v.SetDefault("detection.algorithm_weights.jaccard", d.AlgorithmWeights.Jaccard)
	v.SetDefault("detection.algorithm_weights.cosine", d.AlgorithmWeights.Cosine)
	v.SetDefault("detection.time_threshold", d.TimeThreshold.String())
	v.SetDefault("detection.check_ip_address", d.CheckIPAddress)
	v.SetDefault("detection.enable_cross_category_detection", d.EnableCrossCategoryDetection)
	v.SetDefault("detection.enable_adaptive_thresholds", d.EnableAdaptiveThresholds)
	v.SetDefault("detection.adaptation_rate", d.AdaptationRate)
	v.SetDefault("detection.near_miss_ratio", d.NearMissRatio)
	v.SetDefault("detection.detailed_logging", d.DetailedLogging)
	v.SetDefault("detection.notify_admins_on_duplicate", d.NotifyAdminsOnDuplicate)
	v.SetDefault("detection.workers", 4)
}

// Validate validates the configuration. Detection policy values are checked
// again, field by field, when the policy store is built.
func (c *Config) Validate() error {
	// Validate server ports
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}

	// Validate storage backend
	switch c.Storage.Backend {
	case StorageMemory:
	case StoragePostgres:
		if err := c.Database.validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid storage backend: %q (expected %s or %s)", c.Storage.Backend, StorageMemory, StoragePostgres)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Audit.Capacity < 0 {
		return fmt.Errorf("audit capacity must not be negative")
	}
	if c.Audit.Retention < 0 {
		return fmt.Errorf("audit retention must not be negative")
	}

	// Validate Kafka config
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka brokers are required when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka topic is required when kafka is enabled")
		}
	}

	// Validate tuning config
	if c.Tuning.Enabled && c.Tuning.Interval <= 0 {
		return fmt.Errorf("tuning interval must be positive when tuning is enabled")
	}

	if c.Detection.Workers < 0 {
		return fmt.Errorf("detection workers must not be negative")
	}

	return nil
}

func (c *DatabaseConfig) validate() error {
	if c.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Port)
	}
	if c.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if c.MaxConns < c.MinConns {
		return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.MaxConns, c.MinConns)
	}
	if c.MaxConnLifetime <= 0 {
		return fmt.Errorf("max_conn_lifetime must be positive")
	}
	if c.MaxConnIdleTime <= 0 {
		return fmt.Errorf("max_conn_idle_time must be positive")
	}
	if c.HealthCheckPeriod <= 0 {
		return fmt.Errorf("health_check_period must be positive")
	}
	return nil
}
