// Package worker provides the ordered task batch used by every compute phase:
// submit N independent units, collect N results in submission order.
package worker

import (
	"context"
	stdliberrors "errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/rxntd/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/rxntd/pkg/errors"
)

// ErrPanic marks an item whose process function panicked.
var ErrPanic = stdliberrors.New("worker panicked")

// ---------------------------------------------------------------------------
// ItemStatus enumeration
// ---------------------------------------------------------------------------

// ItemStatus represents the outcome status of a single batch item.
type ItemStatus int

const (
	ItemStatusSuccess   ItemStatus = iota // processing completed successfully
	ItemStatusFailed                      // processing returned an error or panicked
	ItemStatusTimeout                     // processing exceeded its timeout
	ItemStatusCancelled                   // the batch context ended before the item ran
)

// String returns the human-readable representation of an ItemStatus.
func (s ItemStatus) String() string {
	switch s {
	case ItemStatusSuccess:
		return "SUCCESS"
	case ItemStatusFailed:
		return "FAILED"
	case ItemStatusTimeout:
		return "TIMEOUT"
	case ItemStatusCancelled:
		return "CANCELLED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// ---------------------------------------------------------------------------
// Generic types
// ---------------------------------------------------------------------------

// ProcessFunc is the signature for a function that processes a single item.
type ProcessFunc[T, R any] func(ctx context.Context, item T) (R, error)

// ItemResult holds the outcome of processing a single item within a batch.
type ItemResult[R any] struct {
	Index      int        `json:"index"`
	Result     R          `json:"result"`
	Error      error      `json:"error,omitempty"`
	DurationMs float64    `json:"duration_ms"`
	Status     ItemStatus `json:"status"`
}

// BatchResult aggregates the outcomes of an entire batch. Results[i] always
// belongs to items[i].
type BatchResult[R any] struct {
	Results           []*ItemResult[R] `json:"results"`
	TotalCount        int              `json:"total_count"`
	SuccessCount      int              `json:"success_count"`
	FailureCount      int              `json:"failure_count"`
	TotalDurationMs   float64          `json:"total_duration_ms"`
	AvgItemDurationMs float64          `json:"avg_item_duration_ms"`
}

// Values returns the per-item results in submission order, substituting
// fallback(i, err) for every item that did not succeed.
func (br *BatchResult[R]) Values(fallback func(index int, err error) R) []R {
	out := make([]R, len(br.Results))
	for i, r := range br.Results {
		if r.Status == ItemStatusSuccess {
			out[i] = r.Result
			continue
		}
		out[i] = fallback(i, r.Error)
	}
	return out
}

// BatchProcessor defines the contract for the ordered batch engine.
type BatchProcessor[T, R any] interface {
	// Process executes fn for every item, respecting the concurrency limit
	// and item timeout. A failing or panicking item never aborts the batch.
	// The returned error is non-nil only when ctx ends before all items ran.
	Process(ctx context.Context, items []T, fn ProcessFunc[T, R]) (*BatchResult[R], error)
}

// ---------------------------------------------------------------------------
// BatchOption functional options
// ---------------------------------------------------------------------------

type batchConfig struct {
	maxConcurrency int
	itemTimeout    time.Duration
	name           string
	logger         logging.Logger
}

func defaultBatchConfig() *batchConfig {
	return &batchConfig{
		maxConcurrency: runtime.NumCPU(),
		itemTimeout:    0, // disabled
		name:           "batch",
		logger:         logging.NewNopLogger(),
	}
}

// BatchOption configures a batchProcessor.
type BatchOption func(*batchConfig)

// WithMaxConcurrency sets the maximum number of items processed concurrently.
func WithMaxConcurrency(n int) BatchOption {
	return func(c *batchConfig) {
		if n > 0 {
			c.maxConcurrency = n
		}
	}
}

// WithItemTimeout sets the per-item processing timeout. Zero disables it.
func WithItemTimeout(d time.Duration) BatchOption {
	return func(c *batchConfig) {
		if d > 0 {
			c.itemTimeout = d
		}
	}
}

// WithName labels the batch in log output.
func WithName(name string) BatchOption {
	return func(c *batchConfig) {
		if name != "" {
			c.name = name
		}
	}
}

// WithBatchLogger injects a logger.
func WithBatchLogger(l logging.Logger) BatchOption {
	return func(c *batchConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// ---------------------------------------------------------------------------
// batchProcessor implementation
// ---------------------------------------------------------------------------

type batchProcessor[T, R any] struct {
	cfg *batchConfig
}

// NewBatchProcessor creates a new BatchProcessor with the supplied options.
func NewBatchProcessor[T, R any](opts ...BatchOption) BatchProcessor[T, R] {
	cfg := defaultBatchConfig()
	for _, o := range opts {
		o(cfg)
	}
	return &batchProcessor[T, R]{cfg: cfg}
}

func (bp *batchProcessor[T, R]) Process(
	ctx context.Context,
	items []T,
	fn ProcessFunc[T, R],
) (*BatchResult[R], error) {
	if fn == nil {
		return nil, errors.InvalidParam("process function must not be nil")
	}
	n := len(items)
	batchStart := time.Now()
	results := make([]*ItemResult[R], n)

	var g errgroup.Group
	g.SetLimit(bp.cfg.maxConcurrency)
	for i := 0; i < n; i++ {
		idx, item := i, items[i]
		if err := ctx.Err(); err != nil {
			results[idx] = &ItemResult[R]{Index: idx, Error: err, Status: classifyCtxError(err)}
			continue
		}
		g.Go(func() error {
			results[idx] = bp.processOneItem(ctx, idx, item, fn)
			return nil
		})
	}
	_ = g.Wait()

	br := buildBatchResult(results, time.Since(batchStart))
	bp.cfg.logger.Debug("batch completed",
		logging.String("batch", bp.cfg.name),
		logging.Int("total", br.TotalCount),
		logging.Int("failed", br.FailureCount),
		logging.Float64("duration_ms", br.TotalDurationMs))

	if err := ctx.Err(); err != nil {
		return br, errors.Wrap(err, errors.ErrCodeCancelled, "batch interrupted").WithDetail(bp.cfg.name)
	}
	return br, nil
}

// itemOutcome is what a process function goroutine reports back.
type itemOutcome[R any] struct {
	result   R
	err      error
	panicked bool
}

// processOneItem runs fn once, converting a panic into ErrPanic. fn runs in
// its own goroutine so the item timeout holds even when fn ignores its
// context: the item is recorded as timed out and fn's late result is
// discarded.
func (bp *batchProcessor[T, R]) processOneItem(
	ctx context.Context,
	idx int,
	item T,
	fn ProcessFunc[T, R],
) *ItemResult[R] {
	itemStart := time.Now()
	itemCtx := ctx
	if bp.cfg.itemTimeout > 0 {
		var cancel context.CancelFunc
		itemCtx, cancel = context.WithTimeout(ctx, bp.cfg.itemTimeout)
		defer cancel()
	}

	done := make(chan itemOutcome[R], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				bp.cfg.logger.Error("worker panic recovered",
					logging.String("batch", bp.cfg.name),
					logging.Int(logging.FieldPosition, idx),
					logging.Any("panic", r),
					logging.String("stack", string(debug.Stack())))
				done <- itemOutcome[R]{err: fmt.Errorf("%w: %v", ErrPanic, r), panicked: true}
			}
		}()
		result, err := fn(itemCtx, item)
		done <- itemOutcome[R]{result: result, err: err}
	}()

	select {
	case o := <-done:
		switch {
		case o.panicked:
			return &ItemResult[R]{Index: idx, Error: o.err, Status: ItemStatusFailed, DurationMs: msSince(itemStart)}
		case o.err != nil:
			return &ItemResult[R]{Index: idx, Error: o.err, Status: classifyError(itemCtx, o.err), DurationMs: msSince(itemStart)}
		}
		return &ItemResult[R]{Index: idx, Result: o.result, Status: ItemStatusSuccess, DurationMs: msSince(itemStart)}
	case <-itemCtx.Done():
		err := itemCtx.Err()
		bp.cfg.logger.Debug("item abandoned",
			logging.String("batch", bp.cfg.name),
			logging.Int(logging.FieldPosition, idx),
			logging.Err(err))
		return &ItemResult[R]{Index: idx, Error: err, Status: classifyCtxError(err), DurationMs: msSince(itemStart)}
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func buildBatchResult[R any](results []*ItemResult[R], totalDuration time.Duration) *BatchResult[R] {
	br := &BatchResult[R]{
		Results:         results,
		TotalCount:      len(results),
		TotalDurationMs: float64(totalDuration.Microseconds()) / 1000.0,
	}
	var sumItemMs float64
	for _, r := range results {
		switch r.Status {
		case ItemStatusSuccess:
			br.SuccessCount++
		default:
			br.FailureCount++
		}
		sumItemMs += r.DurationMs
	}
	if br.TotalCount > 0 {
		br.AvgItemDurationMs = sumItemMs / float64(br.TotalCount)
	}
	return br
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000.0
}

func classifyCtxError(err error) ItemStatus {
	if stdliberrors.Is(err, context.DeadlineExceeded) {
		return ItemStatusTimeout
	}
	return ItemStatusCancelled
}

func classifyError(ctx context.Context, err error) ItemStatus {
	switch {
	case stdliberrors.Is(err, context.DeadlineExceeded):
		return ItemStatusTimeout
	case stdliberrors.Is(err, context.Canceled):
		return ItemStatusCancelled
	case ctx.Err() != nil:
		return classifyCtxError(ctx.Err())
	}
	return ItemStatusFailed
}
