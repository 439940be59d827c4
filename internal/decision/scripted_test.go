package decision

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/cortex/internal/constants"
	"github.com/mrz1836/cortex/internal/domain"
	cortexerrors "github.com/mrz1836/cortex/internal/errors"
)

func TestScripted_SelectAction(t *testing.T) {
	tests := []struct {
		name    string
		thought *domain.Thought
		want    constants.ActionType
	}{
		{"seed speaks", &domain.Thought{SourceTaskID: "task_1", Content: "hello"}, constants.ActionSpeak},
		{"follow-up completes", &domain.Thought{SourceTaskID: "task_1", ParentThoughtID: "th_1", Content: "again"}, constants.ActionTaskComplete},
		{"reject directive", &domain.Thought{SourceTaskID: "task_1", Content: "please [REJECT] this"}, constants.ActionReject},
		{"defer directive", &domain.Thought{SourceTaskID: "task_1", Content: "[defer]"}, constants.ActionDefer},
		{"ponder directive wins over lineage", &domain.Thought{SourceTaskID: "task_1", ParentThoughtID: "th_1", Content: "[ponder]"}, constants.ActionPonder},
		{"complete directive", &domain.Thought{SourceTaskID: "task_1", Content: "[complete]"}, constants.ActionTaskComplete},
		{"wakeup step speaks", &domain.Thought{SourceTaskID: "VERIFY_IDENTITY_abc", Content: "who am I"}, constants.ActionSpeak},
		{"shutdown consents", &domain.Thought{SourceTaskID: "SHUTDOWN_SHARED_20261018", Content: "shut down?"}, constants.ActionTaskComplete},
	}

	s := NewScripted(zerolog.Nop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.SelectAction(context.Background(), tt.thought, nil, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.ActionType)
			assert.InDelta(t, 1.0, got.Confidence, 0.0001)
		})
	}
}

func TestScripted_Params(t *testing.T) {
	s := NewScripted(zerolog.Nop())

	speak, err := s.SelectAction(context.Background(), &domain.Thought{Content: "hello"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", speak.Param("content", ""))

	reject, err := s.SelectAction(context.Background(), &domain.Thought{Content: "[reject]"}, nil, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, reject.Param("reason", ""))
}

func TestScripted_CustomRules(t *testing.T) {
	s := NewScripted(zerolog.Nop(), WithRules(Rule{
		Name:   "always observe",
		Match:  func(*domain.Thought) bool { return true },
		Action: constants.ActionObserve,
	}))

	got, err := s.SelectAction(context.Background(), &domain.Thought{Content: "[reject]"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, constants.ActionObserve, got.ActionType)
	assert.Equal(t, "scripted: always observe", got.Reasoning)
}

func TestScripted_EvaluateThought(t *testing.T) {
	s := NewScripted(zerolog.Nop())

	res, err := s.EvaluateThought(context.Background(), &domain.Thought{Content: "x", ThoughtDepth: 2},
		&domain.ThoughtContext{RoundNumber: 3})
	require.NoError(t, err)
	assert.Equal(t, "round 3 depth 2", res.Summaries["domain"])

	_, err = s.EvaluateThought(context.Background(), &domain.Thought{ThoughtID: "th", Content: "[fail]"}, nil)
	require.ErrorIs(t, err, cortexerrors.ErrDecisionFailed)

	_, err = s.EvaluateThought(context.Background(), nil, nil)
	require.ErrorIs(t, err, cortexerrors.ErrEmptyValue)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.SelectAction(ctx, &domain.Thought{}, nil, nil)
	require.ErrorIs(t, err, context.Canceled)
}
