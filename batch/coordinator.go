package batch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hollandm/slurmherd/errors"
	"github.com/hollandm/slurmherd/scheduler"
	"github.com/hollandm/slurmherd/spec"
	"github.com/hollandm/slurmherd/throttle"
)

// Progress is delivered to the progress callback after each spec reaches
// a terminal status
type Progress struct {
	Done   int
	Total  int
	Result SubmissionResult
}

// CoordinatorOptions tunes run behavior
type CoordinatorOptions struct {
	// Retries is the number of extra submission attempts after a
	// scheduler rejection. Only submission errors are retried.
	Retries int

	// OnProgress, when set, is called from a single goroutine after
	// each spec is resolved. Results may arrive out of sequence order
	// when concurrency is above one.
	OnProgress func(Progress)
}

// Coordinator runs batches: it loads specs, paces submissions through
// the throttler, and assembles the run report. A Coordinator is safe to
// reuse for consecutive runs but must not run batches concurrently.
type Coordinator struct {
	loader    *spec.Loader
	client    scheduler.Client
	throttler *throttle.Throttler
	store     *RunStore // optional; nil disables persistence
	opts      CoordinatorOptions
	logger    *zap.SugaredLogger

	mu    sync.Mutex
	state RunState
}

// NewCoordinator creates a run coordinator
func NewCoordinator(
	loader *spec.Loader,
	client scheduler.Client,
	throttler *throttle.Throttler,
	store *RunStore,
	opts CoordinatorOptions,
	logger *zap.SugaredLogger,
) *Coordinator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Coordinator{
		loader:    loader,
		client:    client,
		throttler: throttler,
		store:     store,
		opts:      opts,
		logger:    logger,
		state:     RunIdle,
	}
}

// State reports the coordinator's current lifecycle state
func (c *Coordinator) State() RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) setState(state RunState) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

// Run executes one batch over the spec directory. Every loaded spec
// ends up in the report exactly once: submitted, failed, or skipped.
// Cancellation is not an error; the remaining specs are recorded as
// skipped and the report is returned complete.
//
// A discovery failure is fatal and aborts before any submission.
func (c *Coordinator) Run(ctx context.Context, specDir string) (*RunReport, error) {
	return c.run(ctx, specDir, func() ([]spec.JobSpec, []spec.Skip, error) {
		return c.loader.Load(specDir)
	})
}

// RunPaths executes one batch over an explicit set of spec files, in
// the given order. Files that fail to parse are recorded as skips, the
// same as in a directory run. Used by watch mode to submit only newly
// arrived specs.
func (c *Coordinator) RunPaths(ctx context.Context, specDir string, paths []string) (*RunReport, error) {
	return c.run(ctx, specDir, func() ([]spec.JobSpec, []spec.Skip, error) {
		var specs []spec.JobSpec
		var skips []spec.Skip
		for _, path := range paths {
			js, err := spec.Parse(path)
			if err != nil {
				c.logger.Warnw("Skipping unparseable spec", "path", path, "error", err)
				skips = append(skips, spec.Skip{Path: path, Reason: err.Error()})
				continue
			}
			specs = append(specs, js)
		}
		return specs, skips, nil
	})
}

func (c *Coordinator) run(ctx context.Context, specDir string, load func() ([]spec.JobSpec, []spec.Skip, error)) (*RunReport, error) {
	runID := uuid.NewString()
	startedAt := time.Now()

	report := &RunReport{
		RunID:     runID,
		SpecDir:   specDir,
		State:     RunLoading,
		StartedAt: startedAt,
	}

	if c.store != nil {
		if err := c.store.CreateRun(runID, specDir); err != nil {
			return nil, err
		}
		if err := c.store.StartRun(runID, startedAt); err != nil {
			return nil, err
		}
	}

	c.setState(RunLoading)
	c.logger.Infow("Run started",
		"run_id", runID,
		"spec_dir", specDir)

	specs, skips, err := load()
	if err != nil {
		c.setState(RunIdle)
		// Discard the run record so an aborted run never resolves as
		// the latest run for report/status/cancel
		if c.store != nil {
			if derr := c.store.DeleteRun(runID); derr != nil {
				c.logger.Errorw("Failed to discard aborted run",
					"run_id", runID,
					"error", derr)
			}
		}
		return nil, errors.Wrapf(err, "run %s", runID)
	}
	report.ParseSkips = skips

	c.setState(RunSubmitting)
	if c.store != nil {
		if err := c.store.UpdateRunState(runID, RunSubmitting); err != nil {
			return nil, err
		}
	}

	report.Results = c.submitAll(ctx, runID, specs)

	completedAt := time.Now()
	report.CompletedAt = &completedAt
	report.State = RunCompleted
	c.setState(RunCompleted)

	counts := report.Counts()
	if c.store != nil {
		if err := c.store.FinalizeRun(runID, counts, len(skips), completedAt); err != nil {
			c.logger.Errorw("Failed to finalize run", "run_id", runID, "error", err)
		}
	}

	c.logger.Infow("Run completed",
		"run_id", runID,
		"total", counts.Total,
		"submitted", counts.Submitted,
		"failed", counts.Failed,
		"skipped", counts.Skipped,
		"parse_skips", len(skips))

	return report, nil
}

// submitAll drives every spec to a terminal status. Results land in
// their sequence slot; a single collector goroutine persists each result
// as it arrives and serializes progress callbacks. Persisting per result
// keeps accepted job IDs recoverable if the process dies mid-run.
func (c *Coordinator) submitAll(ctx context.Context, runID string, specs []spec.JobSpec) []SubmissionResult {
	results := make([]SubmissionResult, len(specs))

	progressCh := make(chan SubmissionResult, len(specs))
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		done := 0
		for res := range progressCh {
			done++
			if c.store != nil {
				if err := c.store.RecordSubmission(runID, res); err != nil {
					c.logger.Errorw("Failed to persist submission",
						"run_id", runID,
						"spec", res.SpecName,
						"error", err)
				}
			}
			if c.opts.OnProgress != nil {
				c.opts.OnProgress(Progress{Done: done, Total: len(specs), Result: res})
			}
		}
	}()

	var wg sync.WaitGroup
	next := 0
	for ; next < len(specs); next++ {
		if err := c.throttler.Acquire(ctx); err != nil {
			// Cancelled while waiting; the tail is skipped below
			break
		}

		seq := next
		js := specs[seq]
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer c.throttler.Release()

			res := c.submitOne(ctx, seq, js)
			results[seq] = res
			progressCh <- res
		}()
	}

	// Mark everything not attempted as skipped
	for seq := next; seq < len(specs); seq++ {
		res := newResult(seq, specs[seq])
		res.Status = StatusSkipped
		res.Error = "run cancelled before submission"
		results[seq] = res
		progressCh <- res

		c.logger.Infow("Spec skipped",
			"spec", specs[seq].Name,
			"reason", "run cancelled")
	}

	wg.Wait()
	close(progressCh)
	<-collectorDone

	return results
}

// submitOne makes the submission attempts for a single spec
func (c *Coordinator) submitOne(ctx context.Context, seq int, js spec.JobSpec) SubmissionResult {
	res := newResult(seq, js)

	var lastErr error
	for attempt := 0; attempt <= c.opts.Retries; attempt++ {
		if ctx.Err() != nil {
			res.Status = StatusSkipped
			res.Error = "run cancelled before submission"
			return res
		}

		// A started attempt runs to completion even if the run is
		// cancelled meanwhile; the client's own timeout still bounds it
		jobID, err := c.client.Submit(context.WithoutCancel(ctx), js)
		if err == nil {
			now := time.Now()
			res.Status = StatusSubmitted
			res.JobID = jobID
			res.SubmittedAt = &now
			return res
		}

		lastErr = err
		if !errors.IsSubmissionError(err) {
			break
		}
		if attempt < c.opts.Retries {
			c.logger.Warnw("Submission failed, retrying",
				"spec", js.Name,
				"attempt", attempt+1,
				"error", err)
		}
	}

	res.Status = StatusFailed
	res.Error = lastErr.Error()
	c.logger.Errorw("Submission failed",
		"spec", js.Name,
		"error", lastErr)

	return res
}
