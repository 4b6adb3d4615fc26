// Package config provides configuration loading, defaults, and validation for
// rxntd.
package config

import (
	"time"
	"unicode/utf8"

	"github.com/turtacn/rxntd/internal/infrastructure/database/postgres"
	"github.com/turtacn/rxntd/internal/infrastructure/database/redis"
	"github.com/turtacn/rxntd/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/rxntd/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/rxntd/internal/infrastructure/storage/minio"
	"github.com/turtacn/rxntd/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Pipeline
// ─────────────────────────────────────────────────────────────────────────────

// PipelineConfig controls how reaction tables are read and written.
type PipelineConfig struct {
	// PatternTable is a path to a fragment pattern CSV. Empty selects the
	// built-in table.
	PatternTable string `mapstructure:"pattern_table"`

	// Delimiter is the single input field separator.
	Delimiter string `mapstructure:"delimiter"`

	// InputHeader is auto, always or never.
	InputHeader string `mapstructure:"input_header"`

	// OutputFormat forces tsv or jsonl. Empty picks by output extension.
	OutputFormat string `mapstructure:"output_format"`
}

// WorkerConfig bounds per-structure concurrency.
type WorkerConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	ItemTimeout time.Duration `mapstructure:"item_timeout"`
	SlowPhase   time.Duration `mapstructure:"slow_phase"`
}

// LogConfig mirrors logging.LogConfig with viper tags.
type LogConfig struct {
	Level            string   `mapstructure:"level"`
	Format           string   `mapstructure:"format"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// MetricsConfig enables export of pipeline metrics.
type MetricsConfig struct {
	Enabled                    bool `mapstructure:"enabled"`
	prometheus.CollectorConfig `mapstructure:",squash"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Cache
// ─────────────────────────────────────────────────────────────────────────────

// RedisCacheConfig is the shared cache tier.
type RedisCacheConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	redis.RedisConfig `mapstructure:",squash"`
}

// CacheConfig memoizes descriptor vectors per structure.
type CacheConfig struct {
	Enabled       bool             `mapstructure:"enabled"`
	VectorTTL     time.Duration    `mapstructure:"vector_ttl"`
	MemoryTTL     time.Duration    `mapstructure:"memory_ttl"`
	MemoryCleanup time.Duration    `mapstructure:"memory_cleanup"`
	Redis         RedisCacheConfig `mapstructure:"redis"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Storage, database, messaging
// ─────────────────────────────────────────────────────────────────────────────

// MinIOSection enables s3:// input and output.
type MinIOSection struct {
	Enabled           bool `mapstructure:"enabled"`
	minio.MinIOConfig `mapstructure:",squash"`
}

// StorageConfig groups object storage backends.
type StorageConfig struct {
	MinIO MinIOSection `mapstructure:"minio"`
}

// PostgresSection enables the row sink.
type PostgresSection struct {
	Enabled                 bool `mapstructure:"enabled"`
	postgres.PostgresConfig `mapstructure:",squash"`
}

// DatabaseConfig groups database backends.
type DatabaseConfig struct {
	Postgres PostgresSection `mapstructure:"postgres"`
}

// KafkaSection enables run events and the consume command.
type KafkaSection struct {
	Enabled      bool `mapstructure:"enabled"`
	kafka.Config `mapstructure:",squash"`
}

// MessagingConfig groups message brokers.
type MessagingConfig struct {
	Kafka KafkaSection `mapstructure:"kafka"`
}

// WatchConfig tunes the watch command.
type WatchConfig struct {
	// Settle is how long a file must be quiet before it is processed.
	Settle time.Duration `mapstructure:"settle"`

	// LockTTL bounds how long one watcher may hold a file claim in redis.
	LockTTL time.Duration `mapstructure:"lock_ttl"`

	Extensions []string `mapstructure:"extensions"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure.
type Config struct {
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Messaging MessagingConfig `mapstructure:"messaging"`
	Watch     WatchConfig     `mapstructure:"watch"`
}

// DelimiterRune returns the configured delimiter as a rune.
func (c *Config) DelimiterRune() rune {
	r, _ := utf8.DecodeRuneInString(c.Pipeline.Delimiter)
	return r
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config. It
// returns the first error encountered.
func (c *Config) Validate() error {
	if utf8.RuneCountInString(c.Pipeline.Delimiter) != 1 {
		return invalid("pipeline.delimiter %q must be a single character", c.Pipeline.Delimiter)
	}
	switch c.Pipeline.InputHeader {
	case "auto", "always", "never":
	default:
		return invalid("pipeline.input_header %q is invalid; expected auto|always|never", c.Pipeline.InputHeader)
	}
	switch c.Pipeline.OutputFormat {
	case "", "tsv", "jsonl":
	default:
		return invalid("pipeline.output_format %q is invalid; expected tsv|jsonl", c.Pipeline.OutputFormat)
	}

	if c.Worker.Concurrency < 0 {
		return invalid("worker.concurrency must be >= 0, got %d", c.Worker.Concurrency)
	}
	if c.Worker.ItemTimeout < 0 {
		return invalid("worker.item_timeout must be >= 0, got %s", c.Worker.ItemTimeout)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return invalid("log.format %q is invalid; expected json|console", c.Log.Format)
	}

	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		return invalid("metrics.namespace is required when metrics are enabled")
	}

	if c.Cache.Enabled && c.Cache.VectorTTL <= 0 {
		return invalid("cache.vector_ttl must be > 0, got %s", c.Cache.VectorTTL)
	}
	if c.Cache.Redis.Enabled && c.Cache.Redis.DB < 0 {
		return invalid("cache.redis.db must be >= 0, got %d", c.Cache.Redis.DB)
	}

	if m := c.Storage.MinIO; m.Enabled {
		if m.Endpoint == "" {
			return invalid("storage.minio.endpoint is required")
		}
		if m.AccessKeyID == "" || m.SecretAccessKey == "" {
			return invalid("storage.minio credentials are required")
		}
	}

	if p := c.Database.Postgres; p.Enabled {
		if p.Port < 1 || p.Port > 65535 {
			return invalid("database.postgres.port %d is out of range [1, 65535]", p.Port)
		}
		if p.Database == "" {
			return invalid("database.postgres.database is required")
		}
		if p.Username == "" {
			return invalid("database.postgres.username is required")
		}
	}

	if k := c.Messaging.Kafka; k.Enabled {
		if len(k.Brokers) == 0 {
			return invalid("messaging.kafka.brokers must contain at least one broker address")
		}
		if k.GroupID == "" {
			return invalid("messaging.kafka.group_id is required")
		}
	}

	return nil
}

func invalid(format string, args ...interface{}) error {
	return errors.Newf(errors.ErrCodeValidation, "config: "+format, args...)
}
