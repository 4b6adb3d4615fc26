package reaction

import "time"

// RunSummary describes the outcome of one pipeline run.
type RunSummary struct {
	RunID      string       `json:"run_id"`
	Source     string       `json:"source,omitempty"`
	InputRows  int          `json:"input_rows"`
	ValidRows  int          `json:"valid_rows"`
	Dropped    []int        `json:"dropped_positions"`
	Failures   map[List]int `json:"failures"`
	Width      int          `json:"feature_width"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// NewRunSummary returns a summary with an empty failure map.
func NewRunSummary(runID string, started time.Time) *RunSummary {
	return &RunSummary{
		RunID:     runID,
		StartedAt: started,
		Failures:  map[List]int{ListCompound1: 0, ListCompound2: 0, ListProduct: 0},
	}
}

// Duration returns the wall time of the run.
func (s *RunSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// DroppedCount returns the number of dropped positions.
func (s *RunSummary) DroppedCount() int { return len(s.Dropped) }
