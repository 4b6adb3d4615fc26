package transform

import (
	"context"
	"fmt"
	"time"

	"github.com/turtacn/rxntd/internal/domain/descriptor"
	"github.com/turtacn/rxntd/internal/domain/reaction"
)

// Cache is a minimal byte cache for computed descriptor vectors. Any error
// from Get is treated as a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Metrics records pipeline metrics.
type Metrics interface {
	RecordRun(status string)
	RecordNormalized(list string, ok bool)
	RecordRows(emitted, dropped int)
	ObservePhase(phase string, d time.Duration)
	RecordCacheLookup(family string, hit bool)
}

// RowSink persists emitted rows.
type RowSink interface {
	WriteRows(ctx context.Context, runID string, schema *descriptor.Schema, rows []reaction.Row) error
}

// RunPublisher announces finished runs.
type RunPublisher interface {
	PublishRun(ctx context.Context, summary *reaction.RunSummary) error
}

// Run status labels.
const (
	RunStatusSuccess   = "success"
	RunStatusFailed    = "failed"
	RunStatusCancelled = "cancelled"
)

type noopMetrics struct{}

func (noopMetrics) RecordRun(string)                   {}
func (noopMetrics) RecordNormalized(string, bool)      {}
func (noopMetrics) RecordRows(int, int)                {}
func (noopMetrics) ObservePhase(string, time.Duration) {}
func (noopMetrics) RecordCacheLookup(string, bool)     {}

type noopCache struct{}

func (noopCache) Get(context.Context, string) ([]byte, error) { return nil, fmt.Errorf("cache miss") }
func (noopCache) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}
