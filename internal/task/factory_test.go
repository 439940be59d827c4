package task

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/cortex/internal/constants"
	"github.com/mrz1836/cortex/internal/domain"
	cortexerrors "github.com/mrz1836/cortex/internal/errors"
	"github.com/mrz1836/cortex/internal/testutil"
)

var testEpoch = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func newTestFactory(opts ...FactoryOption) *Factory {
	return NewFactory(testutil.NewClock(testEpoch), opts...)
}

func intPtr(n int) *int { return &n }

func TestFactory_CreateTask(t *testing.T) {
	f := newTestFactory()

	t.Run("minimal", func(t *testing.T) {
		task, err := f.CreateTask(TaskSpec{
			Description:       "Answer the question",
			ChannelID:         "chan-1",
			AgentOccurrenceID: "002",
			CorrelationID:     "corr-123",
		})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(task.TaskID, "task_"))
		assert.Equal(t, "002", task.AgentOccurrenceID)
		assert.Equal(t, constants.TaskStatusPending, task.Status)
		assert.Equal(t, DefaultTaskPriority, task.Priority)
		assert.Equal(t, testEpoch, task.CreatedAt)
		require.NotNil(t, task.Context)
		assert.Equal(t, "002", task.Context.AgentOccurrenceID)
		assert.Equal(t, "chan-1", task.Context.ChannelID)
		assert.Equal(t, "corr-123", task.Context.CorrelationID)
	})

	t.Run("default is an ordinary occurrence id", func(t *testing.T) {
		task, err := f.CreateTask(TaskSpec{Description: "x", AgentOccurrenceID: "default"})
		require.NoError(t, err)
		assert.Equal(t, "default", task.AgentOccurrenceID)
	})

	t.Run("supplied context keeps correlation but not occurrence", func(t *testing.T) {
		task, err := f.CreateTask(TaskSpec{
			Description:       "x",
			ChannelID:         "chan-1",
			AgentOccurrenceID: "002",
			CorrelationID:     "corr-param",
			Context: &domain.TaskContext{
				CorrelationID:     "corr-ctx",
				UserID:            "user-1",
				AgentOccurrenceID: "001",
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "corr-ctx", task.Context.CorrelationID)
		assert.Equal(t, "user-1", task.Context.UserID)
		assert.Equal(t, "002", task.Context.AgentOccurrenceID)
	})

	t.Run("custom priority and status", func(t *testing.T) {
		task, err := f.CreateTask(TaskSpec{
			Description:       "x",
			AgentOccurrenceID: "002",
			Priority:          intPtr(0),
			Status:            constants.TaskStatusActive,
			TaskID:            "fixed-id",
		})
		require.NoError(t, err)
		assert.Equal(t, 0, task.Priority)
		assert.Equal(t, constants.TaskStatusActive, task.Status)
		assert.Equal(t, "fixed-id", task.TaskID)
	})
}

func TestFactory_CreateTask_Validation(t *testing.T) {
	f := newTestFactory()
	tests := []struct {
		name    string
		spec    TaskSpec
		wantErr error
	}{
		{"empty occurrence", TaskSpec{Description: "x"}, cortexerrors.ErrMissingOccurrenceID},
		{"empty description", TaskSpec{AgentOccurrenceID: "a"}, cortexerrors.ErrEmptyValue},
		{"priority too high", TaskSpec{Description: "x", AgentOccurrenceID: "a", Priority: intPtr(11)}, cortexerrors.ErrValueOutOfRange},
		{"priority negative", TaskSpec{Description: "x", AgentOccurrenceID: "a", Priority: intPtr(-1)}, cortexerrors.ErrValueOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task, err := f.CreateTask(tt.spec)
			require.ErrorIs(t, err, tt.wantErr)
			assert.True(t, cortexerrors.IsValidation(err))
			assert.Nil(t, task)
		})
	}
}

func TestFactory_CreateThought(t *testing.T) {
	f := newTestFactory()

	t.Run("minimal", func(t *testing.T) {
		th, err := f.CreateThought(ThoughtSpec{
			SourceTaskID:      "task-1",
			AgentOccurrenceID: "002",
			CorrelationID:     "corr-1",
			Content:           "hello",
		})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(th.ThoughtID, "th_standard_"))
		assert.Equal(t, constants.ThoughtStatusPending, th.Status)
		assert.Equal(t, constants.ThoughtTypeStandard, th.ThoughtType)
		assert.Equal(t, 0, th.RoundNumber)
		assert.Equal(t, 0, th.ThoughtDepth)
		require.NotNil(t, th.Context)
		assert.Equal(t, domain.ThoughtContextSchemaVersion, th.Context.SchemaVersion)
		assert.Equal(t, "002", th.Context.AgentOccurrenceID)
		assert.Equal(t, "task-1", th.Context.TaskID)
		assert.Equal(t, "corr-1", th.Context.CorrelationID)
	})

	t.Run("mismatched context is corrected", func(t *testing.T) {
		th, err := f.CreateThought(ThoughtSpec{
			SourceTaskID:      "task-1",
			AgentOccurrenceID: "002",
			Content:           "hello",
			RoundNumber:       3,
			ThoughtDepth:      2,
			Context: &domain.ThoughtContext{
				TaskID:            "task-other",
				AgentOccurrenceID: "001",
				RoundNumber:       99,
				GuidanceMessageID: "msg-7",
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "002", th.Context.AgentOccurrenceID)
		assert.Equal(t, "task-1", th.Context.TaskID)
		assert.Equal(t, 3, th.Context.RoundNumber)
		assert.Equal(t, 2, th.Context.Depth)
		assert.Equal(t, "msg-7", th.Context.GuidanceMessageID, "optional fields survive")
	})
}

func TestFactory_CreateThought_Validation(t *testing.T) {
	f := newTestFactory(WithMaxRoundNumber(5))
	base := ThoughtSpec{SourceTaskID: "task-1", AgentOccurrenceID: "a", Content: "c"}

	tests := []struct {
		name    string
		mutate  func(*ThoughtSpec)
		wantErr error
	}{
		{"empty occurrence", func(s *ThoughtSpec) { s.AgentOccurrenceID = "" }, cortexerrors.ErrMissingOccurrenceID},
		{"empty task", func(s *ThoughtSpec) { s.SourceTaskID = "" }, cortexerrors.ErrEmptyValue},
		{"empty content", func(s *ThoughtSpec) { s.Content = "" }, cortexerrors.ErrEmptyValue},
		{"depth over ceiling", func(s *ThoughtSpec) { s.ThoughtDepth = constants.MaxThoughtDepth + 1 }, cortexerrors.ErrDepthExceeded},
		{"negative depth", func(s *ThoughtSpec) { s.ThoughtDepth = -1 }, cortexerrors.ErrDepthExceeded},
		{"round over bound", func(s *ThoughtSpec) { s.RoundNumber = 6 }, cortexerrors.ErrRoundLimitExceeded},
		{"negative round", func(s *ThoughtSpec) { s.RoundNumber = -1 }, cortexerrors.ErrValueOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := base
			tt.mutate(&spec)
			th, err := f.CreateThought(spec)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, th)
		})
	}

	t.Run("depth at ceiling is allowed", func(t *testing.T) {
		spec := base
		spec.ThoughtDepth = constants.MaxThoughtDepth
		_, err := f.CreateThought(spec)
		require.NoError(t, err)
	})

	t.Run("unbounded rounds", func(t *testing.T) {
		unbounded := newTestFactory(WithMaxRoundNumber(0))
		spec := base
		spec.RoundNumber = 10_000
		_, err := unbounded.CreateThought(spec)
		require.NoError(t, err)
	})
}

func TestFactory_CreateSeedThought(t *testing.T) {
	f := newTestFactory()
	task, err := f.CreateTask(TaskSpec{
		Description:       "Say hello",
		ChannelID:         "chan-9",
		AgentOccurrenceID: "occ-a",
		CorrelationID:     "corr-9",
	})
	require.NoError(t, err)

	seed, err := f.CreateSeedThought(task, 0)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(seed.ThoughtID, "th_seed_"))
	assert.Equal(t, task.TaskID, seed.SourceTaskID)
	assert.Equal(t, "occ-a", seed.AgentOccurrenceID)
	assert.Equal(t, "chan-9", seed.ChannelID)
	assert.Empty(t, seed.ParentThoughtID)
	assert.Equal(t, 0, seed.RoundNumber)
	assert.Equal(t, "corr-9", seed.Context.CorrelationID)
	assert.Contains(t, seed.Content, "Say hello")

	t.Run("round override", func(t *testing.T) {
		seed, err := f.CreateSeedThought(task, 4)
		require.NoError(t, err)
		assert.Equal(t, 4, seed.RoundNumber)
	})

	t.Run("updated information is included", func(t *testing.T) {
		updated := *task
		updated.UpdatedInfoAvailable = true
		updated.UpdatedInfoContent = "the user added a detail"
		seed, err := f.CreateSeedThought(&updated, 0)
		require.NoError(t, err)
		assert.Contains(t, seed.Content, "the user added a detail")
	})

	t.Run("task without occurrence cannot be seeded", func(t *testing.T) {
		bad := *task
		bad.AgentOccurrenceID = ""
		_, err := f.CreateSeedThought(&bad, 0)
		require.ErrorIs(t, err, cortexerrors.ErrMissingOccurrenceID)
	})
}

func TestFactory_CreateFollowUpThought(t *testing.T) {
	f := newTestFactory()
	parent, err := f.CreateThought(ThoughtSpec{
		SourceTaskID:      "task-1",
		AgentOccurrenceID: "occ-a",
		ChannelID:         "chan-1",
		CorrelationID:     "corr-1",
		Content:           "parent",
		RoundNumber:       2,
		ThoughtDepth:      1,
	})
	require.NoError(t, err)

	tests := []struct {
		name      string
		spec      FollowUpSpec
		wantRound int
		wantDepth int
		wantType  constants.ThoughtType
	}{
		{"defaults", NewFollowUpSpec("next"), 3, 1, constants.ThoughtTypeStandard},
		{"same round", FollowUpSpec{Content: "next"}, 2, 1, constants.ThoughtTypeStandard},
		{"ponder", FollowUpSpec{Content: "next", IncrementRound: true, IncrementDepth: true, ThoughtType: constants.ThoughtTypePonder}, 3, 2, constants.ThoughtTypePonder},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			child, err := f.CreateFollowUpThought(parent, tt.spec)
			require.NoError(t, err)
			assert.Equal(t, parent.ThoughtID, child.ParentThoughtID)
			assert.Equal(t, parent.SourceTaskID, child.SourceTaskID)
			assert.Equal(t, parent.AgentOccurrenceID, child.AgentOccurrenceID)
			assert.Equal(t, parent.ChannelID, child.ChannelID)
			assert.Equal(t, "corr-1", child.Context.CorrelationID)
			assert.Equal(t, parent.ThoughtID, child.Context.ParentThoughtID)
			assert.Equal(t, tt.wantRound, child.RoundNumber)
			assert.Equal(t, tt.wantDepth, child.ThoughtDepth)
			assert.Equal(t, tt.wantType, child.ThoughtType)
		})
	}
}

// A pondering chain stops at the depth ceiling: the follow-up past it is refused.
func TestFactory_FollowUpChainNeverExceedsDepth(t *testing.T) {
	f := newTestFactory(WithMaxRoundNumber(0))
	current, err := f.CreateThought(ThoughtSpec{SourceTaskID: "task-1", AgentOccurrenceID: "occ-a", Content: "start"})
	require.NoError(t, err)

	for {
		next, err := f.CreateFollowUpThought(current, FollowUpSpec{Content: "deeper", IncrementRound: true, IncrementDepth: true})
		if err != nil {
			require.ErrorIs(t, err, cortexerrors.ErrDepthExceeded)
			break
		}
		require.LessOrEqual(t, next.ThoughtDepth, constants.MaxThoughtDepth)
		current = next
	}
	assert.Equal(t, constants.MaxThoughtDepth, current.ThoughtDepth)
}

func TestFactory_WithMaxThoughtDepth(t *testing.T) {
	assert.Equal(t, 3, newTestFactory(WithMaxThoughtDepth(3)).MaxThoughtDepth())
	assert.Equal(t, constants.MaxThoughtDepth, newTestFactory(WithMaxThoughtDepth(99)).MaxThoughtDepth())
}
