package batch

import (
	"time"

	"github.com/hollandm/slurmherd/spec"
)

// RunState is the lifecycle state of a run
type RunState string

const (
	RunIdle       RunState = "idle"
	RunLoading    RunState = "loading"
	RunSubmitting RunState = "submitting"
	RunCompleted  RunState = "completed"
)

// RunReport is the full record of one run. Results appear in the same
// order the specs were loaded; its length always equals the number of
// specs processed, whether they were submitted, failed, or skipped.
type RunReport struct {
	RunID       string             `json:"run_id"`
	SpecDir     string             `json:"spec_dir"`
	State       RunState           `json:"state"`
	Results     []SubmissionResult `json:"results"`
	ParseSkips  []spec.Skip        `json:"parse_skips,omitempty"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

// Counts summarizes outcomes by status
type Counts struct {
	Total     int `json:"total"`
	Submitted int `json:"submitted"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Counts tallies the report's results
func (r *RunReport) Counts() Counts {
	c := Counts{Total: len(r.Results)}
	for _, res := range r.Results {
		switch res.Status {
		case StatusSubmitted:
			c.Submitted++
		case StatusFailed:
			c.Failed++
		case StatusSkipped:
			c.Skipped++
		}
	}
	return c
}

// JobIDs returns the scheduler job IDs of every accepted submission,
// in submission order
func (r *RunReport) JobIDs() []string {
	var ids []string
	for _, res := range r.Results {
		if res.Status == StatusSubmitted && res.JobID != "" {
			ids = append(ids, res.JobID)
		}
	}
	return ids
}
