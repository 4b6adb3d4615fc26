package prometheus

import "time"

// Buckets for run phases. Large inputs spend minutes in descriptor
// computation.
var (
	DefaultPhaseBuckets = []float64{.001, .01, .1, .5, 1, 5, 15, 60, 300, 900}
	DefaultRowBuckets   = []float64{0, 10, 100, 1000, 10000, 100000, 1000000}
)

// PipelineMetrics records descriptor pipeline activity.
type PipelineMetrics struct {
	RunsTotal         CounterVec
	NormalizedTotal   CounterVec
	RowsEmittedTotal  CounterVec
	RowsDroppedTotal  CounterVec
	RowsPerRun        HistogramVec
	PhaseDuration     HistogramVec
	CacheLookupsTotal CounterVec
	LastRunTimestamp  GaugeVec
}

// NewPipelineMetrics registers the pipeline metrics on collector.
func NewPipelineMetrics(collector MetricsCollector) *PipelineMetrics {
	return &PipelineMetrics{
		RunsTotal:         collector.RegisterCounter("runs_total", "Descriptor runs by final status", "status"),
		NormalizedTotal:   collector.RegisterCounter("normalized_total", "Normalized SMILES by list and outcome", "list", "result"),
		RowsEmittedTotal:  collector.RegisterCounter("rows_emitted_total", "Rows written to output"),
		RowsDroppedTotal:  collector.RegisterCounter("rows_dropped_total", "Rows dropped after normalization"),
		RowsPerRun:        collector.RegisterHistogram("rows_per_run", "Rows emitted per run", DefaultRowBuckets),
		PhaseDuration:     collector.RegisterHistogram("phase_duration_seconds", "Duration of each run phase", DefaultPhaseBuckets, "phase"),
		CacheLookupsTotal: collector.RegisterCounter("cache_lookups_total", "Descriptor cache lookups", "family", "result"),
		LastRunTimestamp:  collector.RegisterGauge("last_run_timestamp_seconds", "Unix time of the last finished run", "status"),
	}
}

func (m *PipelineMetrics) RecordRun(status string) {
	m.RunsTotal.WithLabelValues(status).Inc()
	m.LastRunTimestamp.WithLabelValues(status).Set(float64(time.Now().Unix()))
}

func (m *PipelineMetrics) RecordNormalized(list string, ok bool) {
	m.NormalizedTotal.WithLabelValues(list, result(ok, "ok", "failed")).Inc()
}

func (m *PipelineMetrics) RecordRows(emitted, dropped int) {
	m.RowsEmittedTotal.WithLabelValues().Add(float64(emitted))
	m.RowsDroppedTotal.WithLabelValues().Add(float64(dropped))
	m.RowsPerRun.WithLabelValues().Observe(float64(emitted))
}

func (m *PipelineMetrics) ObservePhase(phase string, d time.Duration) {
	m.PhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

func (m *PipelineMetrics) RecordCacheLookup(family string, hit bool) {
	m.CacheLookupsTotal.WithLabelValues(family, result(hit, "hit", "miss")).Inc()
}

func result(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
