package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/cortex/internal/constants"
	cortexerrors "github.com/mrz1836/cortex/internal/errors"
)

func TestIsValidTaskTransition(t *testing.T) {
	tests := []struct {
		name string
		from constants.TaskStatus
		to   constants.TaskStatus
		want bool
	}{
		{"pending to active", constants.TaskStatusPending, constants.TaskStatusActive, true},
		{"pending to completed", constants.TaskStatusPending, constants.TaskStatusCompleted, true},
		{"pending to rejected", constants.TaskStatusPending, constants.TaskStatusRejected, true},
		{"active to completed", constants.TaskStatusActive, constants.TaskStatusCompleted, true},
		{"active to failed", constants.TaskStatusActive, constants.TaskStatusFailed, true},
		{"active to deferred", constants.TaskStatusActive, constants.TaskStatusDeferred, true},
		{"deferred to active", constants.TaskStatusDeferred, constants.TaskStatusActive, true},
		{"deferred to pending", constants.TaskStatusDeferred, constants.TaskStatusPending, true},

		{"active to pending is disallowed", constants.TaskStatusActive, constants.TaskStatusPending, false},
		{"completed is terminal", constants.TaskStatusCompleted, constants.TaskStatusActive, false},
		{"failed is terminal", constants.TaskStatusFailed, constants.TaskStatusPending, false},
		{"rejected is terminal", constants.TaskStatusRejected, constants.TaskStatusActive, false},
		{"same status", constants.TaskStatusActive, constants.TaskStatusActive, false},
		{"unknown source", constants.TaskStatus("bogus"), constants.TaskStatusActive, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidTaskTransition(tt.from, tt.to))
		})
	}
}

func TestIsValidThoughtTransition(t *testing.T) {
	tests := []struct {
		name string
		from constants.ThoughtStatus
		to   constants.ThoughtStatus
		want bool
	}{
		{"pending to processing", constants.ThoughtStatusPending, constants.ThoughtStatusProcessing, true},
		{"pending to failed", constants.ThoughtStatusPending, constants.ThoughtStatusFailed, true},
		{"processing to completed", constants.ThoughtStatusProcessing, constants.ThoughtStatusCompleted, true},
		{"processing to deferred", constants.ThoughtStatusProcessing, constants.ThoughtStatusDeferred, true},
		{"processing back to pending", constants.ThoughtStatusProcessing, constants.ThoughtStatusPending, true},

		{"pending straight to completed", constants.ThoughtStatusPending, constants.ThoughtStatusCompleted, false},
		{"completed is terminal", constants.ThoughtStatusCompleted, constants.ThoughtStatusPending, false},
		{"deferred is terminal", constants.ThoughtStatusDeferred, constants.ThoughtStatusProcessing, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidThoughtTransition(tt.from, tt.to))
		})
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, IsTerminalTaskStatus(constants.TaskStatusCompleted))
	assert.True(t, IsTerminalTaskStatus(constants.TaskStatusFailed))
	assert.True(t, IsTerminalTaskStatus(constants.TaskStatusRejected))
	assert.False(t, IsTerminalTaskStatus(constants.TaskStatusDeferred))
	assert.False(t, IsTerminalTaskStatus(constants.TaskStatusActive))

	assert.True(t, IsTerminalThoughtStatus(constants.ThoughtStatusDeferred))
	assert.False(t, IsTerminalThoughtStatus(constants.ThoughtStatusProcessing))
}

// Every status that is not a key of the transition table must be terminal,
// and every terminal status must be absent from the table.
func TestTerminalStatusesMatchTransitionTables(t *testing.T) {
	for _, status := range []constants.TaskStatus{
		constants.TaskStatusPending, constants.TaskStatusActive, constants.TaskStatusCompleted,
		constants.TaskStatusFailed, constants.TaskStatusDeferred, constants.TaskStatusRejected,
	} {
		_, hasTargets := ValidTaskTransitions[status]
		assert.Equal(t, !hasTargets, IsTerminalTaskStatus(status), "task status %s", status)
	}
	for _, status := range []constants.ThoughtStatus{
		constants.ThoughtStatusPending, constants.ThoughtStatusProcessing, constants.ThoughtStatusCompleted,
		constants.ThoughtStatusFailed, constants.ThoughtStatusDeferred,
	} {
		_, hasTargets := ValidThoughtTransitions[status]
		assert.Equal(t, !hasTargets, IsTerminalThoughtStatus(status), "thought status %s", status)
	}
}

func TestCheckTransition(t *testing.T) {
	require.NoError(t, CheckTaskTransition(constants.TaskStatusPending, constants.TaskStatusActive))
	err := CheckTaskTransition(constants.TaskStatusCompleted, constants.TaskStatusActive)
	require.ErrorIs(t, err, cortexerrors.ErrInvalidTransition)
	assert.Contains(t, err.Error(), "completed -> active")

	require.NoError(t, CheckThoughtTransition(constants.ThoughtStatusPending, constants.ThoughtStatusProcessing))
	require.ErrorIs(t, CheckThoughtTransition(constants.ThoughtStatusFailed, constants.ThoughtStatusPending), cortexerrors.ErrInvalidTransition)
}
