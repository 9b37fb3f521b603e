package throttle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottlerRejectsNegativeOptions(t *testing.T) {
	_, err := New(Options{MinInterval: -time.Second}, nil)
	assert.Error(t, err)

	_, err = New(Options{MaxConcurrent: -1}, nil)
	assert.Error(t, err)

	_, err = New(Options{MaxPerMinute: -1}, nil)
	assert.Error(t, err)
}

func TestThrottlerMinIntervalSpacing(t *testing.T) {
	th, err := New(Options{MinInterval: 50 * time.Millisecond, MaxConcurrent: 5}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	start := time.Now()

	// First acquisition is immediate, the next two each wait the interval
	for i := 0; i < 3; i++ {
		require.NoError(t, th.Acquire(ctx))
		th.Release()
	}

	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond,
		"three acquisitions should span at least two intervals")
}

func TestThrottlerMaxConcurrent(t *testing.T) {
	th, err := New(Options{MinInterval: time.Millisecond, MaxConcurrent: 2}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, th.Acquire(ctx))
	require.NoError(t, th.Acquire(ctx))
	assert.Equal(t, 2, th.InFlight())

	// Third acquisition blocks until a slot is released
	acquired := make(chan struct{})
	go func() {
		if err := th.Acquire(ctx); err == nil {
			close(acquired)
		}
	}()

	select {
	case <-acquired:
		t.Fatal("third acquisition should block while both slots are held")
	case <-time.After(50 * time.Millisecond):
	}

	th.Release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("third acquisition should proceed after release")
	}
}

func TestThrottlerAcquireCancelled(t *testing.T) {
	th, err := New(Options{MinInterval: time.Millisecond, MaxConcurrent: 1}, nil)
	require.NoError(t, err)

	require.NoError(t, th.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = th.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, th.InFlight(), "failed acquisition must not consume a slot")
}

func TestThrottlerCancelledDuringIntervalWait(t *testing.T) {
	th, err := New(Options{MinInterval: time.Hour, MaxConcurrent: 1}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, th.Acquire(ctx))
	th.Release()

	// Second acquisition would wait an hour for the interval
	waitCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = th.Acquire(waitCtx)
	assert.Error(t, err)
	assert.Equal(t, 0, th.InFlight(), "slot must be returned when the interval wait is cancelled")
}

func TestThrottlerReleaseWithoutAcquire(t *testing.T) {
	th, err := New(Options{}, nil)
	require.NoError(t, err)

	// Must not panic or block
	th.Release()
	assert.Equal(t, 0, th.InFlight())
}

func TestThrottlerPerMinuteCap(t *testing.T) {
	th, err := New(Options{MinInterval: time.Millisecond, MaxConcurrent: 5, MaxPerMinute: 3}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, th.Acquire(ctx))
		th.Release()
	}

	// Fourth submission in the same minute should block until cancelled
	waitCtx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err = th.Acquire(waitCtx)
	assert.Error(t, err)
}
