package throttle

import (
	"context"
	"sync"
	"time"

	"github.com/hollandm/slurmherd/errors"
)

// windowRetryFloor keeps the wait loop responsive even when a skewed or
// frozen clock would otherwise compute a zero or negative delay.
const windowRetryFloor = 10 * time.Millisecond

// WindowLimiter caps how many jobs reach the scheduler per minute. It
// guards a shared controller from burst traffic that the min-interval
// pacing alone cannot rule out when concurrency is above one. The cap
// slides: each accepted submission counts against the minute that
// follows it.
type WindowLimiter struct {
	maxPerMinute int
	window       time.Duration
	mu           sync.Mutex
	accepted     []time.Time
	timeNow      func() time.Time // injectable for testing
}

// NewWindowLimiter creates a per-minute cap backed by the wall clock
func NewWindowLimiter(maxPerMinute int) *WindowLimiter {
	return NewWindowLimiterWithClock(maxPerMinute, time.Now)
}

// NewWindowLimiterWithClock creates a per-minute cap with an injectable
// clock (for testing)
func NewWindowLimiterWithClock(maxPerMinute int, timeNow func() time.Time) *WindowLimiter {
	return &WindowLimiter{
		maxPerMinute: maxPerMinute,
		window:       60 * time.Second,
		accepted:     make([]time.Time, 0, maxPerMinute),
		timeNow:      timeNow,
	}
}

// Allow records a submission if the cap has room, otherwise returns an
// error naming the cap. Callers that can block should use Wait.
func (w *WindowLimiter) Allow() error {
	ok, _ := w.tryAdmit()
	if !ok {
		return errors.Newf("per-minute cap reached: %d of %d submissions in the last %s",
			w.maxPerMinute, w.maxPerMinute, w.window)
	}
	return nil
}

// Wait blocks until the cap admits another submission or the context
// ends. The retry delay is taken from when the oldest in-window
// submission ages out, so a full window sleeps once instead of polling.
func (w *WindowLimiter) Wait(ctx context.Context) error {
	for {
		ok, retry := w.tryAdmit()
		if ok {
			return nil
		}

		timer := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tryAdmit records a submission when the window has room. When full it
// reports how long until the oldest entry leaves the window, clamped to
// [windowRetryFloor, window].
func (w *WindowLimiter) tryAdmit() (bool, time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.timeNow()
	w.prune(now)

	if len(w.accepted) < w.maxPerMinute {
		w.accepted = append(w.accepted, now)
		return true, 0
	}

	retry := w.accepted[0].Add(w.window).Sub(now)
	if retry < windowRetryFloor {
		retry = windowRetryFloor
	}
	if retry > w.window {
		retry = w.window
	}
	return false, retry
}

// prune drops timestamps that have aged out of the window. Must be
// called with the lock held; accepted stays in admission order so only
// a prefix can expire.
func (w *WindowLimiter) prune(now time.Time) {
	cutoff := now.Add(-w.window)

	expired := 0
	for _, ts := range w.accepted {
		if ts.After(cutoff) {
			break
		}
		expired++
	}

	w.accepted = w.accepted[expired:]
}

// Reset clears the window, forgetting every recorded submission
func (w *WindowLimiter) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.accepted = w.accepted[:0]
}

// Stats returns how many submissions sit in the current window and how
// many more the cap admits
func (w *WindowLimiter) Stats() (inWindow int, remaining int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.timeNow()
	w.prune(now)

	inWindow = len(w.accepted)
	remaining = w.maxPerMinute - inWindow
	if remaining < 0 {
		remaining = 0
	}

	return inWindow, remaining
}
