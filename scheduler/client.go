// Package scheduler talks to the cluster workload manager. The Client
// interface abstracts over the sbatch/squeue/scancel binaries and the
// slurmrestd REST API so the submission pipeline does not care which
// transport is configured.
package scheduler

import (
	"context"

	"github.com/hollandm/slurmherd/spec"
)

// JobState is the coarse lifecycle state of a scheduler job
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
	StateUnknown   JobState = "unknown"
)

// Terminal reports whether the state is final
func (s JobState) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// Client submits and manages jobs on the cluster.
//
// Submit returns the scheduler-assigned job ID on success. Rejections
// and transport failures come back wrapped as submission errors so
// callers can record them without aborting the batch.
type Client interface {
	// Submit hands the job description to the scheduler
	Submit(ctx context.Context, js spec.JobSpec) (jobID string, err error)

	// QueryStatus reports the current state of a previously submitted job
	QueryStatus(ctx context.Context, jobID string) (JobState, error)

	// Cancel asks the scheduler to cancel a job. Cancelling a job that
	// already reached a terminal state returns ErrJobTerminal.
	Cancel(ctx context.Context, jobID string) error

	// Name identifies the backend for logs and reports
	Name() string
}

// normalizeState maps a raw scheduler state string to a JobState.
// Slurm reports states like PENDING, RUNNING, COMPLETED, FAILED,
// CANCELLED, TIMEOUT, NODE_FAIL, OUT_OF_MEMORY.
func normalizeState(raw string) JobState {
	switch raw {
	case "PENDING", "CONFIGURING", "REQUEUED", "REQUEUE_HOLD", "SUSPENDED":
		return StatePending
	case "RUNNING", "COMPLETING":
		return StateRunning
	case "COMPLETED":
		return StateCompleted
	case "FAILED", "TIMEOUT", "NODE_FAIL", "OUT_OF_MEMORY", "BOOT_FAIL", "DEADLINE", "PREEMPTED":
		return StateFailed
	case "CANCELLED":
		return StateCancelled
	}
	return StateUnknown
}
