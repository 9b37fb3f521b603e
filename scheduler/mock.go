package scheduler

import (
	"context"
	"strconv"
	"sync"

	"github.com/hollandm/slurmherd/errors"
	"github.com/hollandm/slurmherd/spec"
)

// MockClient is an in-memory scheduler for tests and dry runs. Job IDs
// are assigned sequentially; individual specs can be scripted to fail.
type MockClient struct {
	mu        sync.Mutex
	nextID    int64
	failures  map[string]string // spec name -> rejection message
	states    map[string]JobState
	submitted []string // spec names in submission order
	cancelled []string // job IDs in cancellation order
}

// NewMockClient creates a mock scheduler that accepts every submission
func NewMockClient() *MockClient {
	return &MockClient{
		nextID:   1000,
		failures: make(map[string]string),
		states:   make(map[string]JobState),
	}
}

// Name identifies the backend
func (c *MockClient) Name() string {
	return "mock"
}

// FailSpec scripts a rejection for submissions of the named spec
func (c *MockClient) FailSpec(name, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[name] = message
}

// SetState scripts the state reported for a job ID
func (c *MockClient) SetState(jobID string, state JobState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[jobID] = state
}

// Submit accepts or rejects the spec per the scripted outcomes
func (c *MockClient) Submit(ctx context.Context, js spec.JobSpec) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if msg, ok := c.failures[js.Name]; ok {
		return "", errors.NewSubmissionError("mock rejected %s: %s", js.Name, msg)
	}

	c.nextID++
	jobID := strconv.FormatInt(c.nextID, 10)
	c.states[jobID] = StatePending
	c.submitted = append(c.submitted, js.Name)
	return jobID, nil
}

// QueryStatus reports the scripted state, defaulting to pending
func (c *MockClient) QueryStatus(ctx context.Context, jobID string) (JobState, error) {
	if err := ctx.Err(); err != nil {
		return StateUnknown, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if state, ok := c.states[jobID]; ok {
		return state, nil
	}
	return StateUnknown, nil
}

// Cancel marks the job cancelled unless it is already terminal
func (c *MockClient) Cancel(ctx context.Context, jobID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if state, ok := c.states[jobID]; ok && state.Terminal() {
		return errors.Wrapf(errors.ErrJobTerminal, "job %s", jobID)
	}
	c.states[jobID] = StateCancelled
	c.cancelled = append(c.cancelled, jobID)
	return nil
}

// Submitted returns spec names in the order they were accepted
func (c *MockClient) Submitted() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.submitted))
	copy(out, c.submitted)
	return out
}

// Cancelled returns job IDs in the order they were cancelled
func (c *MockClient) Cancelled() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.cancelled))
	copy(out, c.cancelled)
	return out
}
