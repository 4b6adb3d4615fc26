//go:build integration

package postgres_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/turtacn/rxntd/internal/domain/descriptor"
	"github.com/turtacn/rxntd/internal/domain/reaction"
	"github.com/turtacn/rxntd/internal/infrastructure/database/postgres"
	"github.com/turtacn/rxntd/internal/infrastructure/monitoring/logging"
)

// startPostgres launches a PostgreSQL 16 container and returns its config.
func startPostgres(t *testing.T) postgres.PostgresConfig {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "rxntd_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)
	p, err := strconv.Atoi(port.Port())
	require.NoError(t, err)

	return postgres.PostgresConfig{
		Host:     host,
		Port:     p,
		Database: "rxntd_test",
		Username: "test",
		Password: "test",
		SSLMode:  "disable",
	}
}

func TestFeatureSink_Integration(t *testing.T) {
	cfg := startPostgres(t)
	ctx := context.Background()

	require.NoError(t, postgres.RunMigrations(cfg))
	require.NoError(t, postgres.RunMigrations(cfg))
	version, dirty, err := postgres.MigrationStatus(cfg)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)

	pool, err := postgres.NewConnectionPool(ctx, cfg, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, postgres.HealthCheck(ctx, pool, nil))

	schema := descriptor.MustSchema(descriptor.NewElementalFamily())
	feat := descriptor.Zero(schema.Width())
	feat[0] = -2
	rows := []reaction.Row{
		{ID: "r1", Position: 0, A: "CC(=O)O", B: "CCO", Product: "CCOC(C)=O", Features: feat},
		{ID: "r2", Position: 3, A: "C", B: "C", Product: "CC", Features: descriptor.Zero(schema.Width())},
	}
	runID := uuid.NewString()
	sink := postgres.NewFeatureSink(pool, nil)
	require.NoError(t, sink.WriteRows(ctx, runID, schema, rows))

	var cols []string
	var count int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT columns, row_count FROM td_runs WHERE run_id = $1`, runID).Scan(&cols, &count))
	assert.Equal(t, schema.Columns(), cols)
	assert.Equal(t, 2, count)

	var got []int32
	var product string
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT product, features FROM td_rows WHERE run_id = $1 AND position = 0`, runID).Scan(&product, &got))
	assert.Equal(t, "CCOC(C)=O", product)
	assert.Equal(t, int32(-2), got[0])

	// The same run id cannot be written twice.
	assert.Error(t, sink.WriteRows(ctx, runID, schema, rows))

	require.NoError(t, postgres.RollbackMigration(cfg, 1))
	version, _, err = postgres.MigrationStatus(cfg)
	require.NoError(t, err)
	assert.Zero(t, version)
}
