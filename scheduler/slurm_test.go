package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSubmitReply(t *testing.T) {
	jobID, err := parseSubmitReply("Submitted batch job 12345\n")
	require.NoError(t, err)
	assert.Equal(t, "12345", jobID)
}

func TestParseSubmitReplyWithClusterNotice(t *testing.T) {
	// Some clusters print informational lines before the reply
	out := "sbatch: Setting account to proj-a\nSubmitted batch job 987\n"
	jobID, err := parseSubmitReply(out)
	require.NoError(t, err)
	assert.Equal(t, "987", jobID)
}

func TestParseSubmitReplyUnrecognized(t *testing.T) {
	_, err := parseSubmitReply("sbatch: error: invalid partition\n")
	assert.Error(t, err)
}

func TestNormalizeState(t *testing.T) {
	tests := []struct {
		raw  string
		want JobState
	}{
		{"PENDING", StatePending},
		{"CONFIGURING", StatePending},
		{"RUNNING", StateRunning},
		{"COMPLETING", StateRunning},
		{"COMPLETED", StateCompleted},
		{"FAILED", StateFailed},
		{"TIMEOUT", StateFailed},
		{"NODE_FAIL", StateFailed},
		{"OUT_OF_MEMORY", StateFailed},
		{"CANCELLED", StateCancelled},
		{"SPECIAL_EXIT", StateUnknown},
		{"", StateUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeState(tt.raw), "state %q", tt.raw)
	}
}

func TestJobStateTerminal(t *testing.T) {
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.True(t, StateCancelled.Terminal())
	assert.False(t, StatePending.Terminal())
	assert.False(t, StateRunning.Terminal())
	assert.False(t, StateUnknown.Terminal())
}

func TestNewSlurmClientRejectsBadExtraArgs(t *testing.T) {
	_, err := NewSlurmClient(SlurmOptions{ExtraArgs: `--comment "unterminated`}, nil)
	assert.Error(t, err)
}

func TestNewSlurmClientSplitsExtraArgs(t *testing.T) {
	c, err := NewSlurmClient(SlurmOptions{ExtraArgs: `--qos high --comment "nightly sweep"`}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"--qos", "high", "--comment", "nightly sweep"}, c.extraArgs)
}
