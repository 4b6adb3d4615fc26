package postgres

import (
	"database/sql"
	"embed"
	stdliberrors "errors"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/turtacn/rxntd/pkg/errors"
)

// MigrationsTable keeps rxntd's version row apart from other schemas in a
// shared database.
const MigrationsTable = "rxntd_schema_migrations"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// newMigrator builds a migrate instance over the embedded migrations. The
// returned close func releases both the source and the database handle.
func newMigrator(dsn string) (*migrate.Migrate, func(), error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to open embedded migrations")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to open database")
	}
	driver, err := migratepg.WithInstance(db, &migratepg.Config{MigrationsTable: MigrationsTable})
	if err != nil {
		db.Close()
		return nil, nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create migration driver")
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		db.Close()
		return nil, nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create migrate instance")
	}
	return m, func() { m.Close() }, nil
}

// RunMigrations applies all pending migrations. No pending migrations is
// not an error.
func RunMigrations(cfg PostgresConfig) error {
	m, closeFn, err := newMigrator(buildConnString(cfg))
	if err != nil {
		return err
	}
	defer closeFn()

	if err := m.Up(); err != nil && !stdliberrors.Is(err, migrate.ErrNoChange) {
		version, _, _ := m.Version()
		return errors.Wrapf(err, errors.ErrCodeDatabaseError, "failed to run migrations (current version: %d)", version)
	}
	return nil
}

// RollbackMigration rolls back steps migrations.
func RollbackMigration(cfg PostgresConfig, steps int) error {
	if steps <= 0 {
		return errors.Newf(errors.ErrCodeValidation, "steps must be greater than 0, got %d", steps)
	}
	m, closeFn, err := newMigrator(buildConnString(cfg))
	if err != nil {
		return err
	}
	defer closeFn()

	if err := m.Steps(-steps); err != nil {
		if stdliberrors.Is(err, migrate.ErrNoChange) {
			return errors.New(errors.ErrCodeValidation, "no migrations to roll back")
		}
		return errors.Wrapf(err, errors.ErrCodeDatabaseError, "failed to rollback %d step(s)", steps)
	}
	return nil
}

// MigrationStatus returns the applied version and dirty flag. An empty
// database reports version 0.
func MigrationStatus(cfg PostgresConfig) (version uint, dirty bool, err error) {
	m, closeFn, err := newMigrator(buildConnString(cfg))
	if err != nil {
		return 0, false, err
	}
	defer closeFn()

	version, dirty, err = m.Version()
	if err != nil {
		if stdliberrors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to get migration version")
	}
	return version, dirty, nil
}
