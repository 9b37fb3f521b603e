// Package batch drives a run: load job descriptions from a directory,
// submit them through the scheduler under throttle limits, and record
// the outcome of every spec in order.
package batch

import (
	"time"

	"github.com/hollandm/slurmherd/spec"
)

// SubmissionStatus is the terminal outcome of one spec within a run
type SubmissionStatus string

const (
	// StatusSubmitted means the scheduler accepted the job
	StatusSubmitted SubmissionStatus = "submitted"

	// StatusFailed means the scheduler rejected the job or the attempt errored
	StatusFailed SubmissionStatus = "failed"

	// StatusSkipped means the run was cancelled before this spec was attempted
	StatusSkipped SubmissionStatus = "skipped"
)

// SubmissionResult records the outcome of one spec
type SubmissionResult struct {
	Seq         int              `json:"seq"`
	SpecName    string           `json:"spec_name"`
	SpecPath    string           `json:"spec_path"`
	Partition   string           `json:"partition,omitempty"`
	JobID       string           `json:"job_id,omitempty"` // scheduler-assigned, set when submitted
	Status      SubmissionStatus `json:"status"`
	Error       string           `json:"error,omitempty"`
	SubmittedAt *time.Time       `json:"submitted_at,omitempty"`
}

// newResult seeds a result from a spec before the attempt is made
func newResult(seq int, js spec.JobSpec) SubmissionResult {
	return SubmissionResult{
		Seq:       seq,
		SpecName:  js.Name,
		SpecPath:  js.Path,
		Partition: js.Partition,
	}
}
