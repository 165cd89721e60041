/*
Package config loads server configuration.

PURPOSE:
  Defaults, then an optional YAML file, then GIFTCERT_* environment
  variables. Each layer overrides only the fields it sets.

ENVIRONMENT:
  Nested fields join with underscores:
    GIFTCERT_SERVER_PORT=8080
    GIFTCERT_DATABASE_DRIVER=postgres
    GIFTCERT_DATABASE_DSN=postgres://...
    GIFTCERT_EVENTS_SINKS=log,kafka
    GIFTCERT_EVENTS_KAFKA_BROKERS=broker-1:9092,broker-2:9092

EXAMPLE FILE:
  server:
    port: 8080
  database:
    driver: sqlite
    dsn: ./giftcert.db
  codes:
    prefix: GC
    length: 12
  sweeper:
    enabled: true
    interval: 5m
  events:
    sinks: [log, redis]
    redis:
      url: redis://localhost:6379/0
*/
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable.
const EnvPrefix = "giftcert"

type Config struct {
	Server   ServerConfig   `yaml:"server"   envconfig:"server"`
	Database DatabaseConfig `yaml:"database" envconfig:"database"`
	Codes    CodesConfig    `yaml:"codes"    envconfig:"codes"`
	Sweeper  SweeperConfig  `yaml:"sweeper"  envconfig:"sweeper"`
	Events   EventsConfig   `yaml:"events"   envconfig:"events"`
	Metrics  MetricsConfig  `yaml:"metrics"  envconfig:"metrics"`
	Log      LogConfig      `yaml:"log"      envconfig:"log"`

	// DefaultCurrency applies when an issue request names none.
	DefaultCurrency string `yaml:"defaultCurrency" split_words:"true"`
	// QRBaseURL turns QR payloads into redeem URLs when set.
	QRBaseURL string `yaml:"qrBaseURL" envconfig:"qr_base_url"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"     split_words:"true"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"    split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" split_words:"true"`
	// AllowedOrigins feeds the CORS middleware.
	AllowedOrigins []string `yaml:"allowedOrigins" split_words:"true"`
}

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`

	// Postgres pool sizing.
	MaxOpenConns    int           `yaml:"maxOpenConns"    split_words:"true"`
	MaxIdleConns    int           `yaml:"maxIdleConns"    split_words:"true"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime" split_words:"true"`
}

type CodesConfig struct {
	Prefix      string `yaml:"prefix"`
	Length      int    `yaml:"length"`
	GroupSize   int    `yaml:"groupSize"   split_words:"true"`
	MaxAttempts int    `yaml:"maxAttempts" split_words:"true"`
}

type SweeperConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	// Organizations limits sweeping to these ids. Empty means every
	// organization that has certificates with an expiry.
	Organizations []string `yaml:"organizations"`
}

const (
	SinkNone  = "none"
	SinkLog   = "log"
	SinkRedis = "redis"
	SinkKafka = "kafka"
)

type EventsConfig struct {
	// Sinks lists where events go: none, log, redis, kafka.
	Sinks []string    `yaml:"sinks"`
	Redis RedisConfig `yaml:"redis" envconfig:"redis"`
	Kafka KafkaConfig `yaml:"kafka" envconfig:"kafka"`
}

type RedisConfig struct {
	URL    string `yaml:"url"`
	Stream string `yaml:"stream"`
	MaxLen int64  `yaml:"maxLen" split_words:"true"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or text
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			DSN:    "./giftcert.db",
		},
		Codes: CodesConfig{
			Prefix:      "GC",
			Length:      12,
			GroupSize:   4,
			MaxAttempts: 10,
		},
		Sweeper: SweeperConfig{
			Enabled:  true,
			Interval: 5 * time.Minute,
		},
		Events: EventsConfig{
			Sinks: []string{SinkLog},
			Redis: RedisConfig{Stream: "giftcert:events"},
			Kafka: KafkaConfig{Topic: "giftcert.events"},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		DefaultCurrency: "USD",
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is non-empty), and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	switch c.Database.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database dsn is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unknown database driver %q (must be memory, sqlite, or postgres)", c.Database.Driver)
	}
	if len(c.DefaultCurrency) != 3 {
		return fmt.Errorf("default currency must be a 3-letter code, got %q", c.DefaultCurrency)
	}
	if c.Sweeper.Enabled && c.Sweeper.Interval <= 0 {
		return fmt.Errorf("sweeper interval must be positive")
	}
	for _, sink := range c.Events.Sinks {
		switch strings.ToLower(sink) {
		case SinkNone, SinkLog:
		case SinkRedis:
			if c.Events.Redis.URL == "" {
				return fmt.Errorf("events.redis.url is required for the redis sink")
			}
		case SinkKafka:
			if len(c.Events.Kafka.Brokers) == 0 {
				return fmt.Errorf("events.kafka.brokers is required for the kafka sink")
			}
		default:
			return fmt.Errorf("unknown event sink %q", sink)
		}
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
