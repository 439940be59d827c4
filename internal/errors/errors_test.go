package errors_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cortexerrors "github.com/mrz1836/cortex/internal/errors"
)

type testError struct {
	msg string
}

func (e testError) Error() string {
	return e.msg
}

func TestSentinelErrors_Messages(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"ErrMissingOccurrenceID", cortexerrors.ErrMissingOccurrenceID, "agent occurrence id is required"},
		{"ErrDepthExceeded", cortexerrors.ErrDepthExceeded, "thought depth limit exceeded"},
		{"ErrNotPaused", cortexerrors.ErrNotPaused, "processor is not paused"},
		{"ErrTaskWaitTimeout", cortexerrors.ErrTaskWaitTimeout, "task wait timeout"},
		{"ErrInvalidTransition", cortexerrors.ErrInvalidTransition, "invalid state transition"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestWrap(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		require.NoError(t, cortexerrors.Wrap(nil, "context"))
		require.NoError(t, cortexerrors.Wrapf(nil, "context %d", 1))
	})

	t.Run("preserves chain", func(t *testing.T) {
		err := cortexerrors.Wrapf(cortexerrors.ErrTaskNotFound, "task %s", "t-1")
		require.ErrorIs(t, err, cortexerrors.ErrTaskNotFound)
		assert.Equal(t, "task t-1: task not found", err.Error())
	})
}

func TestUserMessage(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		assert.Empty(t, cortexerrors.UserMessage(nil))
	})

	t.Run("wrapped sentinel", func(t *testing.T) {
		err := fmt.Errorf("claim: %w", cortexerrors.ErrStoreUnavailable)
		assert.Equal(t, "The scheduler database could not be reached.", cortexerrors.UserMessage(err))
	})

	t.Run("unknown error keeps message", func(t *testing.T) {
		assert.Equal(t, "boom", cortexerrors.UserMessage(testError{msg: "boom"}))
	})
}

func TestActionable(t *testing.T) {
	msg, action := cortexerrors.Actionable(cortexerrors.ErrMissingOccurrenceID)
	assert.Equal(t, "An agent occurrence id is required.", msg)
	assert.Contains(t, action, "CORTEX_OCCURRENCE_ID")

	msg, action = cortexerrors.Actionable(cortexerrors.ErrConfigNil)
	assert.NotEmpty(t, msg)
	assert.Empty(t, action)
}

func TestExitCode2Error(t *testing.T) {
	err := cortexerrors.NewExitCode2Error(cortexerrors.ErrInvalidOutputFormat)
	assert.True(t, cortexerrors.IsExitCode2Error(fmt.Errorf("wrapped: %w", err)))
	require.ErrorIs(t, err, cortexerrors.ErrInvalidOutputFormat)
	assert.False(t, cortexerrors.IsExitCode2Error(cortexerrors.ErrNotPaused))
}

func TestIsValidation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"missing occurrence", cortexerrors.ErrMissingOccurrenceID, true},
		{"wrapped depth", fmt.Errorf("x: %w", cortexerrors.ErrDepthExceeded), true},
		{"store", cortexerrors.ErrStoreUnavailable, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cortexerrors.IsValidation(tt.err))
		})
	}
}
