package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/cortex/internal/constants"
	cortexerrors "github.com/mrz1836/cortex/internal/errors"
	"github.com/mrz1836/cortex/internal/task"
)

func TestWaitForTaskCompletion(t *testing.T) {
	ctx := context.Background()

	t.Run("timeout force-fails under the task's own occurrence", func(t *testing.T) {
		clk := newTestClock()
		s := openTestStore(t, clk)
		m := newManager(t, s, clk, "occ-a")

		shared, err := m.Factory().CreateTask(task.TaskSpec{
			TaskID:            "WAKEUP_SHARED_20261018",
			Description:       "Wakeup ritual",
			AgentOccurrenceID: constants.SharedOccurrenceID,
			Status:            constants.TaskStatusActive,
		})
		require.NoError(t, err)
		require.NoError(t, s.AddTask(ctx, shared))

		start := time.Now()
		status, err := WaitForTaskCompletion(ctx, s, m, shared, 200*time.Millisecond, 10*time.Millisecond, zerolog.Nop())
		require.ErrorIs(t, err, cortexerrors.ErrTaskWaitTimeout)
		assert.Equal(t, constants.TaskStatusActive, status)
		assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)

		got, err := s.GetTaskByID(ctx, shared.TaskID, constants.SharedOccurrenceID)
		require.NoError(t, err)
		assert.Equal(t, constants.TaskStatusFailed, got.Status)
		require.NotNil(t, got.Outcome)
		assert.Contains(t, got.Outcome.Reason, "timed out")
	})

	t.Run("returns the terminal status", func(t *testing.T) {
		clk := newTestClock()
		s := openTestStore(t, clk)
		m := newManager(t, s, clk, "occ-a")

		tk, err := m.CreateTask(ctx, task.TaskSpec{Description: "x", AgentOccurrenceID: "occ-a", Status: constants.TaskStatusActive})
		require.NoError(t, err)

		go func() {
			time.Sleep(30 * time.Millisecond)
			_ = m.CompleteTask(context.Background(), tk.TaskID, "done")
		}()

		status, err := WaitForTaskCompletion(ctx, s, m, tk, 2*time.Second, 5*time.Millisecond, zerolog.Nop())
		require.NoError(t, err)
		assert.Equal(t, constants.TaskStatusCompleted, status)
	})

	t.Run("canceled context is not a timeout", func(t *testing.T) {
		clk := newTestClock()
		s := openTestStore(t, clk)
		m := newManager(t, s, clk, "occ-a")

		tk, err := m.CreateTask(ctx, task.TaskSpec{Description: "x", AgentOccurrenceID: "occ-a", Status: constants.TaskStatusActive})
		require.NoError(t, err)

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err = WaitForTaskCompletion(cctx, s, m, tk, time.Second, 5*time.Millisecond, zerolog.Nop())
		require.Error(t, err)
		require.NotErrorIs(t, err, cortexerrors.ErrTaskWaitTimeout)

		got, err := s.GetTaskByID(ctx, tk.TaskID, "occ-a")
		require.NoError(t, err)
		assert.Equal(t, constants.TaskStatusActive, got.Status)
	})

	t.Run("nil task", func(t *testing.T) {
		_, err := WaitForTaskCompletion(ctx, nil, nil, nil, time.Second, 0, zerolog.Nop())
		require.ErrorIs(t, err, cortexerrors.ErrEmptyValue)
	})
}
