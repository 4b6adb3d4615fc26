// Package transform runs the reaction transform descriptor pipeline:
// normalize the three structure lists, compute every descriptor family per
// list, take product - (A + B) per family, concatenate, and keep the rows
// whose three structures all normalized.
package transform

import (
	"context"
	stdliberrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/rxntd/internal/domain/descriptor"
	"github.com/turtacn/rxntd/internal/domain/reaction"
	"github.com/turtacn/rxntd/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/rxntd/pkg/errors"
)

// Service is the pipeline entry point.
type Service interface {
	// Run computes transform descriptors for reactions. Positions must be
	// unique. The returned rows are in input order.
	Run(ctx context.Context, req *RunRequest) (*Result, error)

	// Check normalizes individual structures.
	Check(ctx context.Context, structures []string) ([]CheckResult, error)

	// Schema returns the fixed feature schema.
	Schema() *descriptor.Schema
}

// RunRequest is the input of one pipeline run.
type RunRequest struct {
	Source    string
	Reactions []reaction.RawReaction
}

// Result is the output of one pipeline run.
type Result struct {
	RunID   string
	Schema  *descriptor.Schema
	Rows    []reaction.Row
	Dropped []int
	Summary *reaction.RunSummary
}

// CheckResult is the normalization outcome of one structure.
type CheckResult struct {
	Input     string `json:"input"`
	Canonical string `json:"canonical"`
	Valid     bool   `json:"valid"`
	Error     string `json:"error,omitempty"`
}

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// ServiceConfig holds tuneable parameters.
type ServiceConfig struct {
	Concurrency int
	ItemTimeout time.Duration
	CacheTTL    time.Duration
	SlowPhase   time.Duration
}

const (
	defaultCacheTTL  = 24 * time.Hour
	defaultSlowPhase = 30 * time.Second
)

// DefaultServiceConfig returns production defaults. Concurrency 0 selects
// runtime.NumCPU in the worker batch.
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		CacheTTL:  defaultCacheTTL,
		SlowPhase: defaultSlowPhase,
	}
}

// Option configures optional collaborators.
type Option func(*serviceImpl)

// WithCache enables descriptor vector memoization.
func WithCache(c Cache) Option {
	return func(s *serviceImpl) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m Metrics) Option {
	return func(s *serviceImpl) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithRowSink persists emitted rows after every run.
func WithRowSink(sink RowSink) Option {
	return func(s *serviceImpl) { s.sink = sink }
}

// WithRunPublisher announces every finished run.
func WithRunPublisher(p RunPublisher) Option {
	return func(s *serviceImpl) { s.publisher = p }
}

// WithStandardizer replaces the structure standardizer.
func WithStandardizer(st StructureStandardizer) Option {
	return func(s *serviceImpl) { s.standardizer = st }
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type serviceImpl struct {
	families     []descriptor.Family
	schema       *descriptor.Schema
	standardizer StructureStandardizer
	cache        Cache
	metrics      Metrics
	sink         RowSink
	publisher    RunPublisher
	logger       logging.Logger
	config       *ServiceConfig
	normalizer   *Normalizer
	computers    []*familyComputer
}

// NewService constructs the pipeline over families, which fix the schema
// order.
func NewService(families []descriptor.Family, logger logging.Logger, config *ServiceConfig, opts ...Option) Service {
	if len(families) == 0 {
		panic("transform: at least one descriptor family is required")
	}
	if logger == nil {
		panic("transform: logger must not be nil")
	}
	if config == nil {
		config = DefaultServiceConfig()
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = defaultCacheTTL
	}
	s := &serviceImpl{
		families: families,
		schema:   descriptor.MustSchema(families...),
		cache:    noopCache{},
		metrics:  noopMetrics{},
		logger:   logger,
		config:   config,
	}
	for _, o := range opts {
		o(s)
	}
	s.normalizer = NewNormalizer(s.standardizer, config.Concurrency, config.ItemTimeout, logger, s.metrics)
	for _, f := range families {
		s.computers = append(s.computers, &familyComputer{
			family:      f,
			fingerprint: descriptor.Fingerprint(f),
			width:       len(f.FeatureNames()),
			cache:       s.cache,
			cacheTTL:    config.CacheTTL,
			concurrency: config.Concurrency,
			itemTimeout: config.ItemTimeout,
			logger:      logger,
			metrics:     s.metrics,
		})
	}
	return s
}

func (s *serviceImpl) Schema() *descriptor.Schema { return s.schema }

func (s *serviceImpl) Run(ctx context.Context, req *RunRequest) (*Result, error) {
	if req == nil {
		return nil, errors.InvalidParam("run request must not be nil")
	}
	started := time.Now()
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	logger := s.logger.WithContext(ctx)

	res, err := s.run(ctx, runID, req, started, logger)
	switch {
	case err == nil:
		s.metrics.RecordRun(RunStatusSuccess)
	case errors.IsCode(err, errors.ErrCodeCancelled) || stdliberrors.Is(err, context.Canceled):
		s.metrics.RecordRun(RunStatusCancelled)
		logger.Warn("run cancelled", logging.Err(err))
	default:
		s.metrics.RecordRun(RunStatusFailed)
		logger.Error("run failed", logging.Err(err))
	}
	return res, err
}

func (s *serviceImpl) run(ctx context.Context, runID string, req *RunRequest, started time.Time, logger logging.Logger) (*Result, error) {
	if err := checkPositions(req.Reactions); err != nil {
		return nil, err
	}
	summary := reaction.NewRunSummary(runID, started)
	summary.Source = req.Source
	summary.InputRows = len(req.Reactions)
	summary.Width = s.schema.Width()
	logger.Info("run started",
		logging.String("source", req.Source),
		logging.Int("reactions", len(req.Reactions)),
		logging.Int("features", s.schema.Width()))

	// Normalize.
	phaseStart := time.Now()
	lists := reaction.Lists()
	normalized := make([][]reaction.StructureRecord, len(lists))
	for i, l := range lists {
		in := make([]reaction.StructureRecord, len(req.Reactions))
		for j, r := range req.Reactions {
			in[j] = reaction.StructureRecord{Position: r.Position, Raw: r.Structure(l)}
		}
		out, err := s.normalizer.NormalizeRecords(ctx, l, in)
		if err != nil {
			return nil, err
		}
		normalized[i] = out
		summary.Failures[l] = reaction.CountInvalid(out)
	}
	s.endPhase(logger, "normalize", phaseStart)

	// Describe and diff per family.
	deltas := make([]*descriptor.Table, 0, len(s.computers))
	for _, c := range s.computers {
		phaseStart = time.Now()
		tables := make([]*descriptor.Table, len(lists))
		for i, l := range lists {
			t, err := c.table(ctx, l, normalized[i])
			if err != nil {
				return nil, err
			}
			tables[i] = t
		}
		d, err := descriptor.Delta(tables[0], tables[1], tables[2])
		if err != nil {
			return nil, err
		}
		deltas = append(deltas, d)
		s.endPhase(logger, "describe:"+c.family.Name(), phaseStart)
	}
	features, err := descriptor.Concat(deltas...)
	if err != nil {
		return nil, err
	}
	if features.Width() != s.schema.Width() {
		return nil, errors.New(errors.ErrCodeRowCountMismatch, "feature width differs from schema").
			WithDetail(fmt.Sprintf("want %d, got %d", s.schema.Width(), features.Width()))
	}

	// Assemble.
	phaseStart = time.Now()
	ids := make([]string, len(req.Reactions))
	for i, r := range req.Reactions {
		ids[i] = r.ID
	}
	rows, dropped, err := reaction.Assemble(ids, normalized[0], normalized[1], normalized[2], features)
	if err != nil {
		return nil, err
	}
	s.endPhase(logger, "assemble", phaseStart)

	summary.ValidRows = len(rows)
	summary.Dropped = dropped
	summary.FinishedAt = time.Now()
	s.metrics.RecordRows(len(rows), len(dropped))

	if s.sink != nil {
		phaseStart = time.Now()
		if err := s.sink.WriteRows(ctx, runID, s.schema, rows); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeOutputWriteFailed, "persisting rows")
		}
		s.endPhase(logger, "sink", phaseStart)
	}
	if s.publisher != nil {
		if err := s.publisher.PublishRun(ctx, summary); err != nil {
			logger.Warn("run event not published", logging.Err(err))
		}
	}

	logger.Info("run completed",
		logging.Int("input_rows", summary.InputRows),
		logging.Int("valid_rows", summary.ValidRows),
		logging.Int("dropped", summary.DroppedCount()),
		logging.Ints("dropped_positions", summary.Dropped),
		logging.Int("failed_compound1", summary.Failures[reaction.ListCompound1]),
		logging.Int("failed_compound2", summary.Failures[reaction.ListCompound2]),
		logging.Int("failed_product", summary.Failures[reaction.ListProduct]),
		logging.Duration("elapsed", summary.Duration()))

	return &Result{
		RunID:   runID,
		Schema:  s.schema,
		Rows:    rows,
		Dropped: dropped,
		Summary: summary,
	}, nil
}

func (s *serviceImpl) Check(ctx context.Context, structures []string) ([]CheckResult, error) {
	out := make([]CheckResult, len(structures))
	for i, st := range structures {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeCancelled, "check interrupted")
		}
		out[i].Input = st
		canonical, err := s.normalizer.standardizer.Standardize(st)
		if err != nil {
			out[i].Error = err.Error()
			continue
		}
		out[i].Canonical = canonical
		out[i].Valid = true
	}
	return out, nil
}

func (s *serviceImpl) endPhase(logger logging.Logger, phase string, start time.Time) {
	s.metrics.ObservePhase(phase, time.Since(start))
	logging.LogPhaseDuration(logger, phase, start, s.config.SlowPhase)
}

func checkPositions(reactions []reaction.RawReaction) error {
	seen := make(map[int]struct{}, len(reactions))
	for _, r := range reactions {
		if _, ok := seen[r.Position]; ok {
			return errors.InvalidParam("duplicate reaction position").WithDetail(fmt.Sprintf("%d", r.Position))
		}
		seen[r.Position] = struct{}{}
	}
	return nil
}
