package transform

import (
	"bytes"
	"context"
	stdliberrors "errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/rxntd/internal/domain/descriptor"
	"github.com/turtacn/rxntd/internal/domain/reaction"
	"github.com/turtacn/rxntd/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/rxntd/internal/infrastructure/storage/tabular"
	"github.com/turtacn/rxntd/internal/testutil"
	"github.com/turtacn/rxntd/pkg/chem"
	"github.com/turtacn/rxntd/pkg/errors"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type mockSink struct{ mock.Mock }

func (m *mockSink) WriteRows(ctx context.Context, runID string, schema *descriptor.Schema, rows []reaction.Row) error {
	return m.Called(ctx, runID, schema, rows).Error(0)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) PublishRun(ctx context.Context, summary *reaction.RunSummary) error {
	return m.Called(ctx, summary).Error(0)
}

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMapCache() *mapCache { return &mapCache{data: map[string][]byte{}} }

func (c *mapCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, stdliberrors.New("miss")
	}
	return v, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

type recordingMetrics struct {
	mu         sync.Mutex
	runs       map[string]int
	normalized map[bool]int
	emitted    int
	dropped    int
	phases     []string
	hits       int
	misses     int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{runs: map[string]int{}, normalized: map[bool]int{}}
}

func (r *recordingMetrics) RecordRun(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[status]++
}

func (r *recordingMetrics) RecordNormalized(_ string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.normalized[ok]++
}

func (r *recordingMetrics) RecordRows(emitted, dropped int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emitted += emitted
	r.dropped += dropped
}

func (r *recordingMetrics) ObservePhase(phase string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phases = append(r.phases, phase)
}

func (r *recordingMetrics) RecordCacheLookup(_ string, hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hit {
		r.hits++
	} else {
		r.misses++
	}
}

// failingFamily fails on one structure.
type failingFamily struct{ bad string }

func (failingFamily) Name() string           { return "flaky" }
func (failingFamily) FeatureNames() []string { return []string{"flaky"} }
func (f failingFamily) Compute(s string) (descriptor.Vector, error) {
	if s == f.bad {
		return descriptor.Vector{0}, errors.New(errors.ErrCodeDescriptorFailed, "flaky family failed")
	}
	if s == reaction.Sentinel {
		return descriptor.Vector{0}, nil
	}
	return descriptor.Vector{1}, nil
}

type panickyStandardizer struct{}

func (panickyStandardizer) Standardize(s string) (string, error) {
	if s == "boom" {
		panic("standardizer exploded")
	}
	return chem.Standardize(s)
}

// slowStandardizer ignores every deadline.
type slowStandardizer struct{ delay time.Duration }

func (s slowStandardizer) Standardize(smiles string) (string, error) {
	time.Sleep(s.delay)
	return smiles, nil
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

// sevenReactions has an invalid reactant at index 4, an empty product at
// index 5 and a halide that changes identity at index 6.
func sevenReactions() []reaction.RawReaction {
	raw := [][4]string{
		{"esterification", "CC(=O)O", "OCC", "CC(=O)OCC"},
		{"suzuki", "Brc1ccccc1", "OB(O)c1ccccc1", "c1ccc(-c2ccccc2)cc1"},
		{"amide", "CC(=O)Cl", "NCC", "CC(=O)NCC"},
		{"williamson", "CCCBr", "OC", "CCCOC"},
		{"bad-reactant", "cc", "O", "CO"},
		{"no-product", "CCO", "CC(=O)O", ""},
		{"halide-swap", "CCCCl", "O", "CCCBr"},
	}
	out := make([]reaction.RawReaction, len(raw))
	for i, r := range raw {
		out[i] = reaction.RawReaction{Position: i, ID: r[0], A: r[1], B: r[2], Product: r[3]}
	}
	return out
}

func defaultFamilies(t *testing.T) []descriptor.Family {
	t.Helper()
	table, err := descriptor.DefaultPatternTable()
	require.NoError(t, err)
	return []descriptor.Family{
		descriptor.NewElementalFamily(),
		descriptor.NewTopologicalFamily(),
		descriptor.NewFragmentFamily(table),
	}
}

func elementalFeature(t *testing.T, schema *descriptor.Schema, row reaction.Row, symbol string) int {
	t.Helper()
	names, offset, ok := schema.FamilyColumns(descriptor.FamilyElemental)
	require.True(t, ok)
	for i, n := range names {
		if n == symbol {
			return row.Features[offset+i]
		}
	}
	t.Fatalf("element %s not in schema", symbol)
	return 0
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestRun_EndToEnd(t *testing.T) {
	logger := testutil.NewMockLogger()
	metrics := newRecordingMetrics()
	svc := NewService(defaultFamilies(t), logger, &ServiceConfig{Concurrency: 4}, WithMetrics(metrics))

	res, err := svc.Run(context.Background(), &RunRequest{Source: "seven.tsv", Reactions: sevenReactions()})
	require.NoError(t, err)

	require.Len(t, res.Rows, 5)
	assert.Equal(t, []int{4, 5}, res.Dropped)
	ids := make([]string, len(res.Rows))
	for i, r := range res.Rows {
		ids[i] = r.ID
		assert.Len(t, r.Features, svc.Schema().Width())
	}
	assert.Equal(t, []string{"esterification", "suzuki", "amide", "williamson", "halide-swap"}, ids)

	ester := res.Rows[0]
	assert.Equal(t, "CC(=O)O", ester.A)
	assert.Equal(t, 0, elementalFeature(t, res.Schema, ester, "C"))
	assert.Equal(t, -1, elementalFeature(t, res.Schema, ester, "O"))

	swap := res.Rows[4]
	assert.Equal(t, 6, swap.Position)
	assert.Equal(t, -1, elementalFeature(t, res.Schema, swap, "C"))
	assert.Equal(t, -1, elementalFeature(t, res.Schema, swap, "Cl"))
	assert.Equal(t, 1, elementalFeature(t, res.Schema, swap, "Br"))
	assert.Equal(t, -1, elementalFeature(t, res.Schema, swap, "O"))

	s := res.Summary
	assert.Equal(t, res.RunID, s.RunID)
	assert.Equal(t, 7, s.InputRows)
	assert.Equal(t, 5, s.ValidRows)
	assert.Equal(t, 1, s.Failures[reaction.ListCompound1])
	assert.Equal(t, 0, s.Failures[reaction.ListCompound2])
	assert.Equal(t, 1, s.Failures[reaction.ListProduct])
	assert.False(t, s.FinishedAt.IsZero())

	warns := logger.MessagesAt("warn")
	require.Len(t, warns, 2)
	positions := map[interface{}]interface{}{}
	for _, w := range warns {
		pos, _ := w.Field(logging.FieldPosition)
		list, _ := w.Field(logging.FieldList)
		positions[pos] = list
		_, hasErr := w.Field("error")
		assert.True(t, hasErr)
	}
	assert.Equal(t, map[interface{}]interface{}{4: "compound1", 5: "product"}, positions)
	assert.True(t, logger.HasMessage("info", "run completed"))

	assert.Equal(t, 1, metrics.runs[RunStatusSuccess])
	assert.Equal(t, 5, metrics.emitted)
	assert.Equal(t, 2, metrics.dropped)
	assert.Equal(t, 19, metrics.normalized[true])
	assert.Equal(t, 2, metrics.normalized[false])
	assert.Contains(t, metrics.phases, "normalize")
	assert.Contains(t, metrics.phases, "describe:fragment")
	assert.Contains(t, metrics.phases, "assemble")
}

func TestRun_Idempotent(t *testing.T) {
	svc := NewService(defaultFamilies(t), logging.NewNopLogger(), nil)

	first, err := svc.Run(context.Background(), &RunRequest{Reactions: sevenReactions()})
	require.NoError(t, err)
	second, err := svc.Run(context.Background(), &RunRequest{Reactions: sevenReactions()})
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.Dropped, second.Dropped)

	var a, b bytes.Buffer
	require.NoError(t, tabular.WriteRows(&a, tabular.FormatTSV, first.Schema, first.Rows))
	require.NoError(t, tabular.WriteRows(&b, tabular.FormatTSV, second.Schema, second.Rows))
	assert.NotZero(t, a.Len())
	assert.Equal(t, a.String(), b.String())
}

func TestRun_SchemaIndependentOfInput(t *testing.T) {
	a := NewService(defaultFamilies(t), logging.NewNopLogger(), nil)
	b := NewService(defaultFamilies(t), logging.NewNopLogger(), nil)

	_, err := a.Run(context.Background(), &RunRequest{Reactions: sevenReactions()})
	require.NoError(t, err)
	_, err = b.Run(context.Background(), &RunRequest{})
	require.NoError(t, err)

	assert.Equal(t, a.Schema().Columns(), b.Schema().Columns())
	assert.Equal(t, descriptor.IdentityColumns, a.Schema().Header()[:4])
}

func TestRun_EmptyInput(t *testing.T) {
	svc := NewService(defaultFamilies(t), logging.NewNopLogger(), nil)
	res, err := svc.Run(context.Background(), &RunRequest{})
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.Empty(t, res.Dropped)
}

func TestRun_DescriptorFailureKeepsRow(t *testing.T) {
	bad, err := chem.Standardize("CO")
	require.NoError(t, err)
	logger := testutil.NewMockLogger()
	svc := NewService([]descriptor.Family{failingFamily{bad: bad}}, logger, nil)

	res, err := svc.Run(context.Background(), &RunRequest{Reactions: []reaction.RawReaction{
		{Position: 0, ID: "ok", A: "C", B: "C", Product: "CC"},
		{Position: 1, ID: "flaky-product", A: "C", B: "O", Product: "CO"},
	}})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, descriptor.Vector{-1}, res.Rows[0].Features)
	// product vector falls back to zero: 0 - (1 + 1)
	assert.Equal(t, descriptor.Vector{-2}, res.Rows[1].Features)
	assert.True(t, logger.HasMessage("debug", "descriptor computation failed"))
}

func TestRun_StandardizerPanicBecomesSentinel(t *testing.T) {
	svc := NewService(defaultFamilies(t), logging.NewNopLogger(), nil, WithStandardizer(panickyStandardizer{}))
	res, err := svc.Run(context.Background(), &RunRequest{Reactions: []reaction.RawReaction{
		{Position: 0, ID: "a", A: "C", B: "C", Product: "CC"},
		{Position: 1, ID: "b", A: "boom", B: "C", Product: "CC"},
	}})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, []int{1}, res.Dropped)
}

func TestRun_DuplicatePositions(t *testing.T) {
	metrics := newRecordingMetrics()
	svc := NewService(defaultFamilies(t), logging.NewNopLogger(), nil, WithMetrics(metrics))
	_, err := svc.Run(context.Background(), &RunRequest{Reactions: []reaction.RawReaction{
		{Position: 0, A: "C", B: "C", Product: "CC"},
		{Position: 0, A: "C", B: "C", Product: "CC"},
	}})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
	assert.Equal(t, 1, metrics.runs[RunStatusFailed])
}

func TestRun_Cancelled(t *testing.T) {
	metrics := newRecordingMetrics()
	svc := NewService(defaultFamilies(t), logging.NewNopLogger(), nil, WithMetrics(metrics))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Run(ctx, &RunRequest{Reactions: sevenReactions()})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCancelled))
	assert.Equal(t, 1, metrics.runs[RunStatusCancelled])
}

func TestRun_NilRequest(t *testing.T) {
	svc := NewService(defaultFamilies(t), logging.NewNopLogger(), nil)
	_, err := svc.Run(context.Background(), nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
}

func TestRun_CacheHitsOnSecondRun(t *testing.T) {
	cache := newMapCache()
	metrics := newRecordingMetrics()
	svc := NewService(defaultFamilies(t), logging.NewNopLogger(), nil, WithCache(cache), WithMetrics(metrics))

	first, err := svc.Run(context.Background(), &RunRequest{Reactions: sevenReactions()})
	require.NoError(t, err)
	assert.NotEmpty(t, cache.data)
	missesAfterFirst := metrics.misses

	second, err := svc.Run(context.Background(), &RunRequest{Reactions: sevenReactions()})
	require.NoError(t, err)
	assert.Equal(t, first.Rows, second.Rows)
	assert.Equal(t, missesAfterFirst, metrics.misses)
	assert.Greater(t, metrics.hits, 0)
}

func TestRun_CacheScopedByPatternTable(t *testing.T) {
	fragments := func(src string) []descriptor.Family {
		table, err := descriptor.LoadPatternTable(strings.NewReader(src))
		require.NoError(t, err)
		return []descriptor.Family{descriptor.NewFragmentFamily(table)}
	}
	alcohol := fragments("[OX2H]\talcohol\n")
	ether := fragments("[OD2]([#6])[#6]\tether\n")
	req := func() *RunRequest {
		return &RunRequest{Reactions: []reaction.RawReaction{{ID: "r1", A: "CCO", B: "CCO", Product: "CCOCC"}}}
	}

	shared := newMapCache()
	ctx := context.Background()
	withAlcohol, err := NewService(alcohol, logging.NewNopLogger(), nil, WithCache(shared)).Run(ctx, req())
	require.NoError(t, err)
	entries := len(shared.data)
	require.NotZero(t, entries)

	withEther, err := NewService(ether, logging.NewNopLogger(), nil, WithCache(shared)).Run(ctx, req())
	require.NoError(t, err)
	uncached, err := NewService(ether, logging.NewNopLogger(), nil).Run(ctx, req())
	require.NoError(t, err)

	require.Len(t, withEther.Rows, 1)
	assert.Equal(t, uncached.Rows[0].Features, withEther.Rows[0].Features)
	assert.NotEqual(t, withAlcohol.Rows[0].Features, withEther.Rows[0].Features)
	assert.Greater(t, len(shared.data), entries)
}

func TestRun_SinkAndPublisher(t *testing.T) {
	sink := &mockSink{}
	pub := &mockPublisher{}
	sink.On("WriteRows", mock.Anything, mock.AnythingOfType("string"), mock.Anything,
		mock.MatchedBy(func(rows []reaction.Row) bool { return len(rows) == 5 })).Return(nil).Once()
	pub.On("PublishRun", mock.Anything,
		mock.MatchedBy(func(s *reaction.RunSummary) bool { return s.ValidRows == 5 && s.InputRows == 7 })).Return(nil).Once()

	svc := NewService(defaultFamilies(t), logging.NewNopLogger(), nil, WithRowSink(sink), WithRunPublisher(pub))
	_, err := svc.Run(context.Background(), &RunRequest{Reactions: sevenReactions()})
	require.NoError(t, err)

	sink.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestRun_SinkFailureIsFatal(t *testing.T) {
	sink := &mockSink{}
	sink.On("WriteRows", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(stdliberrors.New("connection refused"))

	svc := NewService(defaultFamilies(t), logging.NewNopLogger(), nil, WithRowSink(sink))
	_, err := svc.Run(context.Background(), &RunRequest{Reactions: sevenReactions()})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeOutputWriteFailed))
}

func TestRun_PublisherFailureIsLogged(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("PublishRun", mock.Anything, mock.Anything).Return(stdliberrors.New("broker down"))
	logger := testutil.NewMockLogger()

	svc := NewService(defaultFamilies(t), logger, nil, WithRunPublisher(pub))
	res, err := svc.Run(context.Background(), &RunRequest{Reactions: sevenReactions()})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 5)
	assert.True(t, logger.HasMessage("warn", "run event not published"))
}

func TestCheck(t *testing.T) {
	svc := NewService(defaultFamilies(t), logging.NewNopLogger(), nil)
	out, err := svc.Check(context.Background(), []string{"OCC", "cc", ""})
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.True(t, out[0].Valid)
	assert.Equal(t, "CCO", out[0].Canonical)
	assert.False(t, out[1].Valid)
	assert.NotEmpty(t, out[1].Error)
	assert.False(t, out[2].Valid)
}

func TestNormalizer_PreservesOrderAndLength(t *testing.T) {
	n := NewNormalizer(nil, 3, 0, nil, nil)
	raw := []string{"OCC", "", "c1ccccc1", "((", "CC(O)=O", "C"}
	out, err := n.Normalize(context.Background(), reaction.ListCompound1, raw)
	require.NoError(t, err)
	require.Len(t, out, len(raw))
	for i, r := range out {
		assert.Equal(t, i, r.Position)
		assert.Equal(t, raw[i], r.Raw)
	}
	assert.Equal(t, "CCO", out[0].Canonical)
	assert.False(t, out[1].Valid())
	assert.True(t, out[2].Valid())
	assert.False(t, out[3].Valid())
	assert.Equal(t, "CC(=O)O", out[4].Canonical)
}

func TestNormalizer_ItemTimeoutWithSlowStandardizer(t *testing.T) {
	n := NewNormalizer(slowStandardizer{delay: 300 * time.Millisecond}, 2, 10*time.Millisecond, nil, nil)

	start := time.Now()
	out, err := n.Normalize(context.Background(), reaction.ListCompound1, []string{"CCO", "CC"})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 200*time.Millisecond)

	require.Len(t, out, 2)
	for i, r := range out {
		assert.Equal(t, i, r.Position)
		assert.Equal(t, reaction.Sentinel, r.Canonical)
	}
}
