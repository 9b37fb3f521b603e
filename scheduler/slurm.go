package scheduler

import (
	"context"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"go.uber.org/zap"

	"github.com/hollandm/slurmherd/errors"
	"github.com/hollandm/slurmherd/spec"
)

// sbatch prints "Submitted batch job 12345" on success
var submittedRe = regexp.MustCompile(`Submitted batch job (\d+)`)

// SlurmOptions configures the command-line Slurm client
type SlurmOptions struct {
	SbatchPath  string // defaults to "sbatch"
	SqueuePath  string // defaults to "squeue"
	ScancelPath string // defaults to "scancel"
	ExtraArgs   string // shell-quoted extra sbatch arguments
	Timeout     time.Duration
}

// SlurmClient submits jobs by invoking the Slurm command-line tools
type SlurmClient struct {
	opts      SlurmOptions
	extraArgs []string
	logger    *zap.SugaredLogger
}

// NewSlurmClient creates a client that shells out to sbatch/squeue/scancel
func NewSlurmClient(opts SlurmOptions, logger *zap.SugaredLogger) (*SlurmClient, error) {
	if opts.SbatchPath == "" {
		opts.SbatchPath = "sbatch"
	}
	if opts.SqueuePath == "" {
		opts.SqueuePath = "squeue"
	}
	if opts.ScancelPath == "" {
		opts.ScancelPath = "scancel"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	extraArgs, err := shellquote.Split(opts.ExtraArgs)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid extra sbatch arguments: %q", opts.ExtraArgs)
	}

	return &SlurmClient{
		opts:      opts,
		extraArgs: extraArgs,
		logger:    logger,
	}, nil
}

// Name identifies the backend
func (c *SlurmClient) Name() string {
	return "slurm"
}

// Submit runs sbatch for the job description and parses the assigned job ID
func (c *SlurmClient) Submit(ctx context.Context, js spec.JobSpec) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	args := append([]string{}, c.extraArgs...)
	args = append(args, js.Path)

	c.logger.Debugw("Invoking sbatch",
		"spec", js.Name,
		"path", js.Path,
		"args", args)

	cmd := exec.CommandContext(ctx, c.opts.SbatchPath, args...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", errors.NewSubmissionError("sbatch rejected %s: %s", js.Name, msg)
	}

	jobID, err := parseSubmitReply(stdout.String())
	if err != nil {
		return "", errors.WrapSubmission(err, js.Name)
	}

	c.logger.Infow("Job submitted",
		"spec", js.Name,
		"job_id", jobID)

	return jobID, nil
}

// parseSubmitReply extracts the job ID from sbatch output
func parseSubmitReply(out string) (string, error) {
	m := submittedRe.FindStringSubmatch(out)
	if m == nil {
		return "", errors.Newf("unrecognized sbatch reply: %q", strings.TrimSpace(out))
	}
	return m[1], nil
}

// QueryStatus asks squeue for the job state. Jobs that have left the
// queue entirely are reported by sacct-less clusters as gone; we map
// an empty squeue reply to completed.
func (c *SlurmClient) QueryStatus(ctx context.Context, jobID string) (JobState, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.opts.SqueuePath, "-j", jobID, "-h", "-o", "%T")
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return StateUnknown, ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		// squeue exits non-zero for unknown job IDs once they age out
		if strings.Contains(msg, "Invalid job id") {
			return StateCompleted, nil
		}
		return StateUnknown, errors.Newf("squeue failed for job %s: %s", jobID, msg)
	}

	raw := strings.TrimSpace(stdout.String())
	if raw == "" {
		return StateCompleted, nil
	}
	// CANCELLED can carry a "by <uid>" suffix
	if fields := strings.Fields(raw); len(fields) > 0 {
		raw = fields[0]
	}

	return normalizeState(raw), nil
}

// Cancel runs scancel for the job
func (c *SlurmClient) Cancel(ctx context.Context, jobID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.opts.ScancelPath, jobID)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if strings.Contains(msg, "Invalid job id") || strings.Contains(msg, "already completing") {
			return errors.Wrapf(errors.ErrJobTerminal, "job %s", jobID)
		}
		return errors.Newf("scancel failed for job %s: %s", jobID, msg)
	}

	c.logger.Infow("Job cancelled", "job_id", jobID)
	return nil
}
