package transform

import (
	"context"
	"time"

	"github.com/turtacn/rxntd/internal/domain/reaction"
	"github.com/turtacn/rxntd/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/rxntd/internal/infrastructure/worker"
	"github.com/turtacn/rxntd/pkg/chem"
)

// StructureStandardizer turns a raw structure into its canonical form.
type StructureStandardizer interface {
	Standardize(smiles string) (string, error)
}

// Normalizer standardizes structure lists in parallel, preserving order.
// A structure that fails becomes reaction.Sentinel and is logged; it never
// fails the batch.
type Normalizer struct {
	standardizer StructureStandardizer
	concurrency  int
	itemTimeout  time.Duration
	logger       logging.Logger
	metrics      Metrics
}

// NewNormalizer returns a Normalizer. A nil standardizer selects the default
// chem standardizer; concurrency <= 0 selects the worker default.
func NewNormalizer(standardizer StructureStandardizer, concurrency int, itemTimeout time.Duration, logger logging.Logger, metrics Metrics) *Normalizer {
	if standardizer == nil {
		standardizer = chem.DefaultStandardizer()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Normalizer{
		standardizer: standardizer,
		concurrency:  concurrency,
		itemTimeout:  itemTimeout,
		logger:       logger,
		metrics:      metrics,
	}
}

// Normalize standardizes raw structures whose positions are their indices.
func (n *Normalizer) Normalize(ctx context.Context, list reaction.List, raw []string) ([]reaction.StructureRecord, error) {
	in := make([]reaction.StructureRecord, len(raw))
	for i, s := range raw {
		in[i] = reaction.StructureRecord{Position: i, Raw: s}
	}
	return n.NormalizeRecords(ctx, list, in)
}

// NormalizeRecords fills Canonical for every record. The returned slice has
// the same length and order as records. The error is non-nil only when ctx
// ends before the batch completes.
func (n *Normalizer) NormalizeRecords(ctx context.Context, list reaction.List, records []reaction.StructureRecord) ([]reaction.StructureRecord, error) {
	logger := n.logger.WithContext(ctx)
	opts := []worker.BatchOption{
		worker.WithName("normalize:" + string(list)),
		worker.WithBatchLogger(logger),
		worker.WithItemTimeout(n.itemTimeout),
	}
	if n.concurrency > 0 {
		opts = append(opts, worker.WithMaxConcurrency(n.concurrency))
	}
	bp := worker.NewBatchProcessor[reaction.StructureRecord, string](opts...)

	br, err := bp.Process(ctx, records, func(_ context.Context, r reaction.StructureRecord) (string, error) {
		return n.standardizer.Standardize(r.Raw)
	})
	if err != nil {
		return nil, err
	}

	out := make([]reaction.StructureRecord, len(records))
	for i, res := range br.Results {
		out[i] = reaction.StructureRecord{Position: records[i].Position, Raw: records[i].Raw}
		if res.Status == worker.ItemStatusSuccess {
			out[i].Canonical = res.Result
			n.metrics.RecordNormalized(string(list), true)
			continue
		}
		out[i].Canonical = reaction.Sentinel
		n.metrics.RecordNormalized(string(list), false)
		logger.Warn("structure normalization failed",
			logging.Int(logging.FieldPosition, records[i].Position),
			logging.String(logging.FieldList, string(list)),
			logging.String("raw", records[i].Raw),
			logging.Err(res.Error))
	}
	return out, nil
}
