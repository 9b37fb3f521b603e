package batch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollandm/slurmherd/errors"
	qtesting "github.com/hollandm/slurmherd/internal/testing"
	"github.com/hollandm/slurmherd/scheduler"
	"github.com/hollandm/slurmherd/spec"
	"github.com/hollandm/slurmherd/throttle"
)

func writeSpecFile(t *testing.T, dir, name, jobName string) {
	t.Helper()
	content := "#!/bin/bash\n#SBATCH --job-name=" + jobName + "\n#SBATCH --partition=gpu\npython train.py\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func fastThrottler(t *testing.T, concurrency int) *throttle.Throttler {
	t.Helper()
	th, err := throttle.New(throttle.Options{
		MinInterval:   time.Millisecond,
		MaxConcurrent: concurrency,
	}, nil)
	require.NoError(t, err)
	return th
}

func newTestCoordinator(t *testing.T, client scheduler.Client, opts CoordinatorOptions) *Coordinator {
	t.Helper()
	loader := spec.NewLoader([]string{".sbatch"}, nil)
	return NewCoordinator(loader, client, fastThrottler(t, 1), nil, opts, nil)
}

func TestRunSubmitsAllInOrder(t *testing.T) {
	dir := t.TempDir()
	writeSpecFile(t, dir, "b.sbatch", "job-b")
	writeSpecFile(t, dir, "a.sbatch", "job-a")
	writeSpecFile(t, dir, "c.sbatch", "job-c")

	client := scheduler.NewMockClient()
	coord := newTestCoordinator(t, client, CoordinatorOptions{})

	report, err := coord.Run(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, report.Results, 3)
	assert.Equal(t, []string{"job-a", "job-b", "job-c"}, client.Submitted(),
		"submission order follows filename order")

	counts := report.Counts()
	assert.Equal(t, 3, counts.Submitted)
	assert.Zero(t, counts.Failed)
	assert.Zero(t, counts.Skipped)

	for i, res := range report.Results {
		assert.Equal(t, i, res.Seq)
		assert.Equal(t, StatusSubmitted, res.Status)
		assert.NotEmpty(t, res.JobID)
		assert.NotNil(t, res.SubmittedAt)
	}

	assert.Equal(t, RunCompleted, report.State)
	assert.Equal(t, RunCompleted, coord.State())
	require.NotNil(t, report.CompletedAt)
}

func TestRunRecordsFailuresAndContinues(t *testing.T) {
	dir := t.TempDir()
	writeSpecFile(t, dir, "a.sbatch", "job-a")
	writeSpecFile(t, dir, "b.sbatch", "job-b")
	writeSpecFile(t, dir, "c.sbatch", "job-c")

	client := scheduler.NewMockClient()
	client.FailSpec("job-b", "invalid partition")

	coord := newTestCoordinator(t, client, CoordinatorOptions{})
	report, err := coord.Run(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, report.Results, 3)
	assert.Equal(t, StatusSubmitted, report.Results[0].Status)
	assert.Equal(t, StatusFailed, report.Results[1].Status)
	assert.Contains(t, report.Results[1].Error, "invalid partition")
	assert.Empty(t, report.Results[1].JobID)
	assert.Equal(t, StatusSubmitted, report.Results[2].Status,
		"a rejection must not stop later submissions")

	counts := report.Counts()
	assert.Equal(t, 2, counts.Submitted)
	assert.Equal(t, 1, counts.Failed)
}

func TestRunEmptyDirectory(t *testing.T) {
	client := scheduler.NewMockClient()
	coord := newTestCoordinator(t, client, CoordinatorOptions{})

	report, err := coord.Run(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, report.Results)
	assert.Equal(t, RunCompleted, report.State)
}

func TestRunDiscoveryFailureIsFatal(t *testing.T) {
	client := scheduler.NewMockClient()
	coord := newTestCoordinator(t, client, CoordinatorOptions{})

	_, err := coord.Run(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, errors.IsDiscoveryError(err))
	assert.Empty(t, client.Submitted(), "no submission may happen after a discovery failure")
}

func TestRunRecordsParseSkips(t *testing.T) {
	dir := t.TempDir()
	writeSpecFile(t, dir, "a.sbatch", "job-a")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.sbatch"), []byte(""), 0o644))

	client := scheduler.NewMockClient()
	coord := newTestCoordinator(t, client, CoordinatorOptions{})

	report, err := coord.Run(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, report.Results, 1, "unparseable files do not enter the batch")
	require.Len(t, report.ParseSkips, 1)
	assert.Contains(t, report.ParseSkips[0].Path, "broken.sbatch")
}

func TestRunCancellationSkipsTail(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		writeSpecFile(t, dir, name+".sbatch", "job-"+name)
	}

	ctx, cancel := context.WithCancel(context.Background())

	client := scheduler.NewMockClient()
	coord := newTestCoordinator(t, client, CoordinatorOptions{
		OnProgress: func(p Progress) {
			if p.Done == 2 {
				cancel()
			}
		},
	})

	report, err := coord.Run(ctx, dir)
	require.NoError(t, err, "cancellation is a normal outcome, not an error")

	require.Len(t, report.Results, 5, "every spec appears in the report")

	counts := report.Counts()
	assert.GreaterOrEqual(t, counts.Submitted, 2)
	assert.GreaterOrEqual(t, counts.Skipped, 1, "the tail must be skipped")
	assert.Equal(t, 5, counts.Submitted+counts.Failed+counts.Skipped)

	// Skipped entries carry no job ID and trail the submitted ones
	sawSkipped := false
	for _, res := range report.Results {
		if res.Status == StatusSkipped {
			sawSkipped = true
			assert.Empty(t, res.JobID)
			assert.NotEmpty(t, res.Error)
		} else {
			assert.False(t, sawSkipped, "submitted specs precede skipped ones in sequence order")
		}
	}
}

func TestRunRetriesSubmissionErrors(t *testing.T) {
	dir := t.TempDir()
	writeSpecFile(t, dir, "a.sbatch", "job-a")

	attempts := 0
	client := &stubClient{
		submit: func(ctx context.Context, js spec.JobSpec) (string, error) {
			attempts++
			if attempts < 3 {
				return "", errors.NewSubmissionError("transient rejection of %s", js.Name)
			}
			return "777", nil
		},
	}

	coord := newTestCoordinator(t, client, CoordinatorOptions{Retries: 2})
	report, err := coord.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 3, attempts)
	require.Len(t, report.Results, 1)
	assert.Equal(t, StatusSubmitted, report.Results[0].Status)
	assert.Equal(t, "777", report.Results[0].JobID)
}

func TestRunRetriesExhausted(t *testing.T) {
	dir := t.TempDir()
	writeSpecFile(t, dir, "a.sbatch", "job-a")

	attempts := 0
	client := &stubClient{
		submit: func(ctx context.Context, js spec.JobSpec) (string, error) {
			attempts++
			return "", errors.NewSubmissionError("rejected %s", js.Name)
		},
	}

	coord := newTestCoordinator(t, client, CoordinatorOptions{Retries: 2})
	report, err := coord.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 3, attempts)
	assert.Equal(t, StatusFailed, report.Results[0].Status)
}

func TestRunDoesNotRetryNonSubmissionErrors(t *testing.T) {
	dir := t.TempDir()
	writeSpecFile(t, dir, "a.sbatch", "job-a")

	attempts := 0
	client := &stubClient{
		submit: func(ctx context.Context, js spec.JobSpec) (string, error) {
			attempts++
			return "", errors.New("scheduler binary not found")
		},
	}

	coord := newTestCoordinator(t, client, CoordinatorOptions{Retries: 5})
	report, err := coord.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 1, attempts, "only submission errors are retried")
	assert.Equal(t, StatusFailed, report.Results[0].Status)
}

func TestRunIntervalSpacing(t *testing.T) {
	dir := t.TempDir()
	writeSpecFile(t, dir, "a.sbatch", "job-a")
	writeSpecFile(t, dir, "b.sbatch", "job-b")
	writeSpecFile(t, dir, "c.sbatch", "job-c")

	th, err := throttle.New(throttle.Options{
		MinInterval:   50 * time.Millisecond,
		MaxConcurrent: 1,
	}, nil)
	require.NoError(t, err)

	loader := spec.NewLoader([]string{".sbatch"}, nil)
	client := scheduler.NewMockClient()
	coord := NewCoordinator(loader, client, th, nil, CoordinatorOptions{}, nil)

	start := time.Now()
	report, err := coord.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Counts().Submitted)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond,
		"three submissions span at least two intervals")
}

func TestRunProgressCallbacks(t *testing.T) {
	dir := t.TempDir()
	writeSpecFile(t, dir, "a.sbatch", "job-a")
	writeSpecFile(t, dir, "b.sbatch", "job-b")

	var mu sync.Mutex
	var seen []Progress

	client := scheduler.NewMockClient()
	coord := newTestCoordinator(t, client, CoordinatorOptions{
		OnProgress: func(p Progress) {
			mu.Lock()
			seen = append(seen, p)
			mu.Unlock()
		},
	})

	_, err := coord.Run(context.Background(), dir)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.Equal(t, 1, seen[0].Done)
	assert.Equal(t, 2, seen[1].Done)
	assert.Equal(t, 2, seen[0].Total)
}

func TestRunPersistsToStore(t *testing.T) {
	dir := t.TempDir()
	writeSpecFile(t, dir, "a.sbatch", "job-a")
	writeSpecFile(t, dir, "b.sbatch", "job-b")

	store := NewRunStore(qtesting.CreateTestDB(t))
	loader := spec.NewLoader([]string{".sbatch"}, nil)
	client := scheduler.NewMockClient()
	client.FailSpec("job-b", "account over quota")

	coord := NewCoordinator(loader, client, fastThrottler(t, 1), store, CoordinatorOptions{}, nil)

	report, err := coord.Run(context.Background(), dir)
	require.NoError(t, err)

	run, err := store.GetRun(report.RunID)
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, run.State)
	assert.Equal(t, 2, run.SpecsTotal)
	assert.Equal(t, 1, run.Submitted)
	assert.Equal(t, 1, run.Failed)
	require.NotNil(t, run.StartedAt)
	require.NotNil(t, run.CompletedAt)

	results, err := store.GetSubmissions(report.RunID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "job-a", results[0].SpecName)
	assert.Equal(t, StatusSubmitted, results[0].Status)
	assert.Equal(t, StatusFailed, results[1].Status)
	assert.Contains(t, results[1].Error, "over quota")

	latest, err := store.LatestRunID()
	require.NoError(t, err)
	assert.Equal(t, report.RunID, latest)
}

func TestRunPersistsResultsAsTheyComplete(t *testing.T) {
	dir := t.TempDir()
	writeSpecFile(t, dir, "a.sbatch", "job-a")
	writeSpecFile(t, dir, "b.sbatch", "job-b")
	writeSpecFile(t, dir, "c.sbatch", "job-c")

	store := NewRunStore(qtesting.CreateTestDB(t))
	loader := spec.NewLoader([]string{".sbatch"}, nil)
	client := scheduler.NewMockClient()

	// Each result must be durable before its progress event fires, so a
	// crashed run leaves the already-accepted job IDs in the store
	var mu sync.Mutex
	var visible []int
	coord := NewCoordinator(loader, client, fastThrottler(t, 1), store, CoordinatorOptions{
		OnProgress: func(p Progress) {
			runID, err := store.LatestRunID()
			require.NoError(t, err)
			rows, err := store.GetSubmissions(runID)
			require.NoError(t, err)
			mu.Lock()
			visible = append(visible, len(rows))
			mu.Unlock()
		},
	}, nil)

	_, err := coord.Run(context.Background(), dir)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, visible,
		"every result is in the store by the time its progress event is delivered")
}

func TestRunDiscoveryFailureLeavesNoStoredRun(t *testing.T) {
	store := NewRunStore(qtesting.CreateTestDB(t))
	loader := spec.NewLoader([]string{".sbatch"}, nil)
	client := scheduler.NewMockClient()
	coord := NewCoordinator(loader, client, fastThrottler(t, 1), store, CoordinatorOptions{}, nil)

	_, err := coord.Run(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)

	// The aborted run must not linger as the latest run
	_, err = store.LatestRunID()
	assert.True(t, errors.Is(err, errors.ErrRunNotFound))

	// A later good run resolves normally
	dir := t.TempDir()
	writeSpecFile(t, dir, "a.sbatch", "job-a")
	report, err := coord.Run(context.Background(), dir)
	require.NoError(t, err)

	latest, err := store.LatestRunID()
	require.NoError(t, err)
	assert.Equal(t, report.RunID, latest)
}

func TestRunConcurrentSubmissions(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		writeSpecFile(t, dir, name+".sbatch", "job-"+name)
	}

	loader := spec.NewLoader([]string{".sbatch"}, nil)
	client := scheduler.NewMockClient()
	coord := NewCoordinator(loader, client, fastThrottler(t, 3), nil, CoordinatorOptions{}, nil)

	report, err := coord.Run(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, report.Results, 6)
	assert.Equal(t, 6, report.Counts().Submitted)

	// Sequence slots stay aligned with filename order even when the
	// scheduler sees submissions out of order
	for i, res := range report.Results {
		assert.Equal(t, i, res.Seq)
	}
}

// stubClient scripts Submit with a function for cases MockClient cannot express
type stubClient struct {
	submit func(ctx context.Context, js spec.JobSpec) (string, error)
}

func (s *stubClient) Name() string { return "stub" }

func (s *stubClient) Submit(ctx context.Context, js spec.JobSpec) (string, error) {
	return s.submit(ctx, js)
}

func (s *stubClient) QueryStatus(ctx context.Context, jobID string) (scheduler.JobState, error) {
	return scheduler.StateUnknown, nil
}

func (s *stubClient) Cancel(ctx context.Context, jobID string) error {
	return nil
}
