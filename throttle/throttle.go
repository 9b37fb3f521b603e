// Package throttle paces scheduler submissions so a batch of jobs does
// not hammer the controller. It combines three independent limits: a
// minimum interval between consecutive submissions, a cap on in-flight
// submissions, and an optional per-minute sliding-window cap.
package throttle

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hollandm/slurmherd/errors"
)

// Default limits applied when the corresponding option is zero
const (
	DefaultMinInterval   = 10 * time.Second
	DefaultMaxConcurrent = 1
)

// Options configures a Throttler. Zero values fall back to defaults;
// MaxPerMinute of zero disables the per-minute cap.
type Options struct {
	MinInterval   time.Duration
	MaxConcurrent int
	MaxPerMinute  int
}

// Throttler gates submissions. Callers must pair every successful
// Acquire with a Release once the submission attempt finishes,
// regardless of its outcome.
type Throttler struct {
	interval *rate.Limiter
	window   *WindowLimiter
	slots    chan struct{}
	logger   *zap.SugaredLogger
}

// New creates a Throttler from opts.
func New(opts Options, logger *zap.SugaredLogger) (*Throttler, error) {
	if opts.MinInterval < 0 {
		return nil, errors.Newf("min interval must not be negative: %s", opts.MinInterval)
	}
	if opts.MaxConcurrent < 0 {
		return nil, errors.Newf("max concurrent must not be negative: %d", opts.MaxConcurrent)
	}
	if opts.MaxPerMinute < 0 {
		return nil, errors.Newf("max per minute must not be negative: %d", opts.MaxPerMinute)
	}

	if opts.MinInterval == 0 {
		opts.MinInterval = DefaultMinInterval
	}
	if opts.MaxConcurrent == 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	t := &Throttler{
		interval: rate.NewLimiter(rate.Every(opts.MinInterval), 1),
		slots:    make(chan struct{}, opts.MaxConcurrent),
		logger:   logger,
	}
	if opts.MaxPerMinute > 0 {
		t.window = NewWindowLimiter(opts.MaxPerMinute)
	}
	return t, nil
}

// Acquire blocks until the caller may submit: a concurrency slot is
// free, the minimum interval since the previous acquisition has
// elapsed, and the per-minute window has capacity. Returns the
// context's error if it is cancelled while waiting.
func (t *Throttler) Acquire(ctx context.Context) error {
	select {
	case t.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := t.interval.Wait(ctx); err != nil {
		<-t.slots
		return err
	}

	if t.window != nil {
		if err := t.window.Wait(ctx); err != nil {
			<-t.slots
			return err
		}
	}

	return nil
}

// Release frees the concurrency slot taken by a successful Acquire
func (t *Throttler) Release() {
	select {
	case <-t.slots:
	default:
		t.logger.Warnw("throttle release without matching acquire")
	}
}

// InFlight reports how many acquired slots have not been released
func (t *Throttler) InFlight() int {
	return len(t.slots)
}
