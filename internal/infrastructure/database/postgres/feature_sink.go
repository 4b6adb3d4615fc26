package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/turtacn/rxntd/internal/domain/descriptor"
	"github.com/turtacn/rxntd/internal/domain/reaction"
	"github.com/turtacn/rxntd/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/rxntd/pkg/errors"
)

// TxStarter is the slice of *pgxpool.Pool the sink needs.
type TxStarter interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

var rowColumns = []string{"run_id", "position", "reaction_id", "compound1", "compound2", "product", "features"}

// FeatureSink writes one run's rows with the COPY protocol. The run header
// and its rows commit together.
type FeatureSink struct {
	db     TxStarter
	logger logging.Logger
}

func NewFeatureSink(db TxStarter, log logging.Logger) *FeatureSink {
	if db == nil {
		panic("db cannot be nil")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &FeatureSink{db: db, logger: log}
}

func (s *FeatureSink) WriteRows(ctx context.Context, runID string, schema *descriptor.Schema, rows []reaction.Row) error {
	id, err := uuid.Parse(runID)
	if err != nil {
		return errors.InvalidParam("run id is not a uuid").WithDetail(runID)
	}
	width := schema.Width()
	for _, r := range rows {
		if len(r.Features) != width {
			return errors.RowCountMismatch("row features", width, len(r.Features))
		}
	}

	err = withTx(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO td_runs (run_id, columns, row_count) VALUES ($1, $2, $3)`,
			[16]byte(id), schema.Columns(), len(rows)); err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert run")
		}
		n, err := tx.CopyFrom(ctx, pgx.Identifier{"td_rows"}, rowColumns,
			pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
				r := rows[i]
				return []any{[16]byte(id), int32(r.Position), r.ID, r.A, r.B, r.Product, toInt32s(r.Features)}, nil
			}))
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to copy rows")
		}
		if int(n) != len(rows) {
			return errors.RowCountMismatch("copied rows", len(rows), int(n))
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.WithContext(ctx).Debug("rows persisted",
		logging.String(logging.FieldRunID, runID),
		logging.Int("rows", len(rows)))
	return nil
}

// withTx runs fn in a transaction, rolling back on error or panic.
func withTx(ctx context.Context, db TxStarter, fn func(tx pgx.Tx) error) (err error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to begin transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if cerr := tx.Commit(ctx); cerr != nil {
		return errors.Wrap(cerr, errors.ErrCodeDatabaseError, "failed to commit transaction")
	}
	return nil
}

func toInt32s(v descriptor.Vector) []int32 {
	out := make([]int32, len(v))
	for i, x := range v {
		out[i] = int32(x)
	}
	return out
}
