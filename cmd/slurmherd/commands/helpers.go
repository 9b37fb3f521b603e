package commands

import (
	"time"

	"github.com/hollandm/slurmherd/config"
	"github.com/hollandm/slurmherd/errors"
	"github.com/hollandm/slurmherd/logger"
	"github.com/hollandm/slurmherd/scheduler"
	"github.com/hollandm/slurmherd/spec"
	"github.com/hollandm/slurmherd/throttle"
)

// buildClient constructs the scheduler client named by backend
func buildClient(cfg *config.Config, backend string) (scheduler.Client, error) {
	if backend == "" {
		backend = cfg.Scheduler.Backend
	}

	switch backend {
	case "slurm":
		return scheduler.NewSlurmClient(scheduler.SlurmOptions{
			SbatchPath:  cfg.Scheduler.Slurm.SbatchPath,
			SqueuePath:  cfg.Scheduler.Slurm.SqueuePath,
			ScancelPath: cfg.Scheduler.Slurm.ScancelPath,
			ExtraArgs:   cfg.Scheduler.Slurm.ExtraArgs,
			Timeout:     time.Duration(cfg.Scheduler.Slurm.TimeoutSeconds) * time.Second,
		}, logger.Logger)
	case "rest":
		return scheduler.NewRestClient(scheduler.RestOptions{
			BaseURL:  cfg.Scheduler.Rest.BaseURL,
			UserName: cfg.Scheduler.Rest.UserName,
			Token:    cfg.Scheduler.Rest.Token,
			Timeout:  time.Duration(cfg.Scheduler.Rest.TimeoutSeconds) * time.Second,
		}, logger.Logger)
	case "mock":
		return scheduler.NewMockClient(), nil
	}

	return nil, errors.Newf("unknown scheduler backend: %q", backend)
}

// buildThrottler constructs the submission throttler, with flag overrides
// taking precedence over configured values
func buildThrottler(cfg *config.Config, intervalOverride time.Duration, concurrencyOverride int) (*throttle.Throttler, error) {
	opts := throttle.Options{
		MinInterval:   time.Duration(cfg.Throttle.MinIntervalSeconds) * time.Second,
		MaxConcurrent: cfg.Throttle.MaxConcurrent,
		MaxPerMinute:  cfg.Throttle.MaxPerMinute,
	}
	if intervalOverride > 0 {
		opts.MinInterval = intervalOverride
	}
	if concurrencyOverride > 0 {
		opts.MaxConcurrent = concurrencyOverride
	}

	return throttle.New(opts, logger.Logger)
}

// buildLoader constructs the spec loader from configured extensions
func buildLoader(cfg *config.Config) *spec.Loader {
	return spec.NewLoader(cfg.Specs.Extensions, logger.Logger)
}
