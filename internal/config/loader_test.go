package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfigYAML = `
pipeline:
  delimiter: ";"
  input_header: never
worker:
  concurrency: 4
  item_timeout: 5s
log:
  level: debug
  format: console
metrics:
  enabled: true
  textfile: /var/lib/node_exporter/rxntd.prom
cache:
  enabled: true
  memory_ttl: 1m
  redis:
    enabled: true
    addr: redis:6379
    key_prefix: "td-test:"
storage:
  minio:
    enabled: true
    endpoint: minio:9000
    access_key_id: key
    secret_access_key: secret
database:
  postgres:
    enabled: true
    host: pg
    username: rxntd
    password: secret
messaging:
  kafka:
    enabled: true
    brokers: ["k1:9092", "k2:9092"]
    topic_prefix: staging
`

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rxntd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FromFile(t *testing.T) {
	cfg, err := Load(createTempConfigFile(t, validConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, ";", cfg.Pipeline.Delimiter)
	assert.Equal(t, "never", cfg.Pipeline.InputHeader)
	assert.Equal(t, 4, cfg.Worker.Concurrency)
	assert.Equal(t, 5*time.Second, cfg.Worker.ItemTimeout)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/var/lib/node_exporter/rxntd.prom", cfg.Metrics.TextfilePath)
	assert.Equal(t, time.Minute, cfg.Cache.MemoryTTL)
	assert.Equal(t, "redis:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, "td-test:", cfg.Cache.Redis.KeyPrefix)
	assert.Equal(t, "key", cfg.Storage.MinIO.AccessKeyID)
	assert.Equal(t, "pg", cfg.Database.Postgres.Host)
	assert.Equal(t, DefaultPostgresPort, cfg.Database.Postgres.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Messaging.Kafka.Brokers)
	assert.Equal(t, "staging.rxntd.run.completed", cfg.Messaging.Kafka.Topics().RunCompleted)
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(createTempConfigFile(t, "pipeline: [unclosed"))
	assert.Error(t, err)
}

func TestLoad_ValidationFailure(t *testing.T) {
	_, err := Load(createTempConfigFile(t, "log:\n  level: loud\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("RXNTD_WORKER_CONCURRENCY", "9")
	t.Setenv("RXNTD_CACHE_REDIS_ADDR", "cache.internal:6380")

	cfg, err := Load(createTempConfigFile(t, validConfigYAML))
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Worker.Concurrency)
	assert.Equal(t, "cache.internal:6380", cfg.Cache.Redis.Addr)
}

func TestLoadFromEnv_NoFile(t *testing.T) {
	t.Setenv("RXNTD_LOG_LEVEL", "warn")
	t.Setenv("RXNTD_PIPELINE_PATTERN_TABLE", "/etc/rxntd/patterns.csv")
	t.Setenv("RXNTD_DATABASE_POSTGRES_PORT", "6543")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "/etc/rxntd/patterns.csv", cfg.Pipeline.PatternTable)
	assert.Equal(t, 6543, cfg.Database.Postgres.Port)
	assert.Equal(t, DefaultDelimiter, cfg.Pipeline.Delimiter)
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := createTempConfigFile(t, "worker:\n  concurrency: 1\n")

	changed := make(chan *Config, 4)
	require.NoError(t, Watch(path, func(c *Config) { changed <- c }, nil))

	require.NoError(t, os.WriteFile(path, []byte("worker:\n  concurrency: 7\n"), 0o644))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-changed:
			if c.Worker.Concurrency == 7 {
				return
			}
		case <-deadline:
			t.Fatal("config change not observed")
		}
	}
}

func TestWatch_MissingFile(t *testing.T) {
	assert.Error(t, Watch(filepath.Join(t.TempDir(), "missing.yaml"), func(*Config) {}, nil))
}
