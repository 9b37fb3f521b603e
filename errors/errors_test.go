package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New("test error")
	require.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestWrap(t *testing.T) {
	original := New("original")
	wrapped := Wrap(original, "wrapped")

	assert.Contains(t, wrapped.Error(), "wrapped")
	assert.Contains(t, wrapped.Error(), "original")
	assert.True(t, Is(wrapped, original))
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{ErrDiscovery, ErrParse, ErrSubmission, ErrRunNotFound, ErrJobTerminal}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			assert.False(t, Is(a, b), "sentinel %d should not match sentinel %d", i, j)
		}
	}
}

func TestIsSubmissionError(t *testing.T) {
	err := NewSubmissionError("sbatch exited %d", 1)
	assert.True(t, IsSubmissionError(err))
	assert.Contains(t, err.Error(), "sbatch exited 1")

	wrapped := Wrap(err, "spec train_a.sbatch")
	assert.True(t, IsSubmissionError(wrapped))

	assert.False(t, IsSubmissionError(nil))
	assert.False(t, IsSubmissionError(New("unrelated")))
}

func TestWrapSubmissionPreservesType(t *testing.T) {
	cause := New("connection refused")
	err := WrapSubmission(cause, "slurmrestd unreachable")

	assert.True(t, Is(err, ErrSubmission))
	assert.Contains(t, err.Error(), "slurmrestd unreachable")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestWrapParsePreservesType(t *testing.T) {
	cause := New("bad directive")
	err := WrapParse(cause, "line 3")

	assert.True(t, IsParseError(err))
	assert.False(t, IsDiscoveryError(err))
}
