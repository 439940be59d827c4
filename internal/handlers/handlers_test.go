package handlers

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/cortex/internal/constants"
	"github.com/mrz1836/cortex/internal/contracts"
	"github.com/mrz1836/cortex/internal/domain"
	cortexerrors "github.com/mrz1836/cortex/internal/errors"
	"github.com/mrz1836/cortex/internal/logging"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Has(constants.ActionSpeak))

	_, err := r.Get(constants.ActionSpeak)
	require.ErrorIs(t, err, cortexerrors.ErrNoHandler)

	called := false
	r.Register(constants.ActionSpeak, contracts.ActionHandlerFunc(
		func(context.Context, *domain.Thought, *domain.FinalAction) (*domain.HandlerResult, error) {
			called = true
			return &domain.HandlerResult{Success: true}, nil
		}))
	assert.True(t, r.Has(constants.ActionSpeak))
	assert.Equal(t, []constants.ActionType{constants.ActionSpeak}, r.Actions())

	res, err := r.Handle(context.Background(), &domain.Thought{}, &domain.FinalAction{ActionType: constants.ActionSpeak})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, called)

	_, err = r.Handle(context.Background(), &domain.Thought{}, &domain.FinalAction{ActionType: constants.ActionTool})
	require.ErrorIs(t, err, cortexerrors.ErrNoHandler)

	_, err = r.Handle(context.Background(), &domain.Thought{}, nil)
	require.ErrorIs(t, err, cortexerrors.ErrEmptyValue)
}

func TestDefaultRegistry(t *testing.T) {
	r := NewDefaultRegistry(zerolog.Nop())
	for _, a := range constants.AllActionTypes() {
		assert.Equal(t, !a.IsTerminal(), r.Has(a), "action %s", a)
	}
}

func TestLoggingHandler(t *testing.T) {
	h := NewLoggingHandler(zerolog.Nop())
	thought := &domain.Thought{ThoughtID: "th-1", SourceTaskID: "task-1", Content: "hello"}

	tests := []struct {
		name         string
		action       *domain.FinalAction
		wantFollowUp string
	}{
		{
			name:         "speak asks for a follow-up",
			action:       &domain.FinalAction{ActionType: constants.ActionSpeak},
			wantFollowUp: `Spoke on task task-1: "hello". Is the task complete?`,
		},
		{
			name:         "speak uses the content param",
			action:       &domain.FinalAction{ActionType: constants.ActionSpeak, ActionParams: map[string]string{"content": "hi"}},
			wantFollowUp: `Spoke on task task-1: "hi". Is the task complete?`,
		},
		{
			name:   "memorize does not",
			action: &domain.FinalAction{ActionType: constants.ActionMemorize},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := h.Handle(context.Background(), thought, tt.action)
			require.NoError(t, err)
			assert.True(t, res.Success)
			assert.Equal(t, tt.wantFollowUp, res.FollowUpContent)
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.Handle(ctx, thought, &domain.FinalAction{ActionType: constants.ActionSpeak})
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoggingHandler_RedactsSensitiveParams(t *testing.T) {
	var buf bytes.Buffer
	h := NewLoggingHandler(zerolog.New(&buf).Level(zerolog.DebugLevel))

	_, err := h.Handle(context.Background(),
		&domain.Thought{ThoughtID: "th-1", SourceTaskID: "task-1", Content: "calling out"},
		&domain.FinalAction{
			ActionType:   constants.ActionTool,
			ActionParams: map[string]string{"auth_token": "plain-secret-value", "tool": "search"},
		})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"tool":"search"`)
	assert.NotContains(t, out, "plain-secret-value")
	assert.Contains(t, out, logging.RedactedValue)
}
