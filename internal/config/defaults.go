package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultDelimiter   = "\t"
	DefaultInputHeader = "auto"

	DefaultItemTimeout = 30 * time.Second
	DefaultSlowPhase   = 30 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultMetricsNamespace = "rxntd"
	DefaultMetricsJob       = "rxntd"

	DefaultVectorTTL     = 24 * time.Hour
	DefaultMemoryTTL     = 10 * time.Minute
	DefaultMemoryCleanup = 15 * time.Minute

	DefaultRedisAddr     = "localhost:6379"
	DefaultMinIOEndpoint = "localhost:9000"
	DefaultPostgresHost  = "localhost"
	DefaultPostgresPort  = 5432
	DefaultPostgresDB    = "rxntd"
	DefaultKafkaBroker   = "localhost:9092"
	DefaultKafkaGroupID  = "rxntd-workers"
	DefaultWatchSettle   = 2 * time.Second
	DefaultWatchLockTTL  = 10 * time.Minute
)

// DefaultWatchExtensions are the file types the watch command picks up.
var DefaultWatchExtensions = []string{".tsv", ".txt"}

// ApplyDefaults fills every zero-value field in cfg with its default. Values
// already set win.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Pipeline ──────────────────────────────────────────────────────────────
	if cfg.Pipeline.Delimiter == "" {
		cfg.Pipeline.Delimiter = DefaultDelimiter
	}
	if cfg.Pipeline.InputHeader == "" {
		cfg.Pipeline.InputHeader = DefaultInputHeader
	}

	// ── Worker ────────────────────────────────────────────────────────────────
	// Concurrency 0 means one worker per CPU.
	if cfg.Worker.ItemTimeout == 0 {
		cfg.Worker.ItemTimeout = DefaultItemTimeout
	}
	if cfg.Worker.SlowPhase == 0 {
		cfg.Worker.SlowPhase = DefaultSlowPhase
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.PushJob == "" {
		cfg.Metrics.PushJob = DefaultMetricsJob
	}

	// ── Cache ─────────────────────────────────────────────────────────────────
	if cfg.Cache.VectorTTL == 0 {
		cfg.Cache.VectorTTL = DefaultVectorTTL
	}
	if cfg.Cache.MemoryTTL == 0 {
		cfg.Cache.MemoryTTL = DefaultMemoryTTL
	}
	if cfg.Cache.MemoryCleanup == 0 {
		cfg.Cache.MemoryCleanup = DefaultMemoryCleanup
	}
	if cfg.Cache.Redis.Addr == "" && cfg.Cache.Redis.Mode != "cluster" && cfg.Cache.Redis.Mode != "sentinel" {
		cfg.Cache.Redis.Addr = DefaultRedisAddr
	}

	// ── Storage ───────────────────────────────────────────────────────────────
	if cfg.Storage.MinIO.Endpoint == "" {
		cfg.Storage.MinIO.Endpoint = DefaultMinIOEndpoint
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.Postgres.Host == "" {
		cfg.Database.Postgres.Host = DefaultPostgresHost
	}
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = DefaultPostgresPort
	}
	if cfg.Database.Postgres.Database == "" {
		cfg.Database.Postgres.Database = DefaultPostgresDB
	}

	// ── Messaging ─────────────────────────────────────────────────────────────
	if len(cfg.Messaging.Kafka.Brokers) == 0 {
		cfg.Messaging.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Messaging.Kafka.GroupID == "" {
		cfg.Messaging.Kafka.GroupID = DefaultKafkaGroupID
	}

	// ── Watch ─────────────────────────────────────────────────────────────────
	if cfg.Watch.Settle == 0 {
		cfg.Watch.Settle = DefaultWatchSettle
	}
	if cfg.Watch.LockTTL == 0 {
		cfg.Watch.LockTTL = DefaultWatchLockTTL
	}
	if len(cfg.Watch.Extensions) == 0 {
		cfg.Watch.Extensions = append([]string(nil), DefaultWatchExtensions...)
	}
}
