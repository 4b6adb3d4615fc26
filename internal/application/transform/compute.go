package transform

import (
	"context"
	"encoding/json"
	"time"

	"github.com/turtacn/rxntd/internal/domain/descriptor"
	"github.com/turtacn/rxntd/internal/domain/reaction"
	"github.com/turtacn/rxntd/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/rxntd/internal/infrastructure/worker"
)

// familyComputer evaluates one descriptor family over structure lists,
// consulting the vector cache before computing.
type familyComputer struct {
	family      descriptor.Family
	fingerprint string
	width       int
	cache       Cache
	cacheTTL    time.Duration
	concurrency int
	itemTimeout time.Duration
	logger      logging.Logger
	metrics     Metrics
}

// cacheKey scopes cached vectors by family fingerprint, so a changed
// pattern table never reads entries computed under another table.
func (c *familyComputer) cacheKey(structure string) string {
	return "td:" + c.family.Name() + ":" + c.fingerprint + ":" + structure
}

// table computes the family for every record. Every position gets a
// vector: the sentinel and failed computations yield the zero vector.
func (c *familyComputer) table(ctx context.Context, list reaction.List, records []reaction.StructureRecord) (*descriptor.Table, error) {
	logger := c.logger.WithContext(ctx).With(
		logging.String(logging.FieldFamily, c.family.Name()),
		logging.String(logging.FieldList, string(list)))

	opts := []worker.BatchOption{
		worker.WithName(c.family.Name() + ":" + string(list)),
		worker.WithBatchLogger(logger),
		worker.WithItemTimeout(c.itemTimeout),
	}
	if c.concurrency > 0 {
		opts = append(opts, worker.WithMaxConcurrency(c.concurrency))
	}
	bp := worker.NewBatchProcessor[reaction.StructureRecord, descriptor.Vector](opts...)

	br, err := bp.Process(ctx, records, func(ctx context.Context, r reaction.StructureRecord) (descriptor.Vector, error) {
		return c.compute(ctx, r.Canonical)
	})
	if err != nil {
		return nil, err
	}

	vectors := br.Values(func(i int, err error) descriptor.Vector {
		logger.Debug("descriptor computation failed",
			logging.Int(logging.FieldPosition, records[i].Position),
			logging.Err(err))
		return descriptor.Zero(c.width)
	})

	t := descriptor.NewTable(c.family.Name(), c.family.FeatureNames(), len(records))
	for i, v := range vectors {
		t.Append(records[i].Position, v)
	}
	return t, nil
}

func (c *familyComputer) compute(ctx context.Context, structure string) (descriptor.Vector, error) {
	if structure == reaction.Sentinel {
		return descriptor.Zero(c.width), nil
	}
	key := c.cacheKey(structure)
	if raw, err := c.cache.Get(ctx, key); err == nil {
		var v descriptor.Vector
		if json.Unmarshal(raw, &v) == nil && len(v) == c.width {
			c.metrics.RecordCacheLookup(c.family.Name(), true)
			return v, nil
		}
	}
	c.metrics.RecordCacheLookup(c.family.Name(), false)

	v, err := c.family.Compute(structure)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(v); err == nil {
		if err := c.cache.Set(ctx, key, raw, c.cacheTTL); err != nil {
			c.logger.Debug("descriptor cache write failed", logging.Err(err))
		}
	}
	return v, nil
}
