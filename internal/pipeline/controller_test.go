package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cortexerrors "github.com/mrz1836/cortex/internal/errors"
	"github.com/mrz1836/cortex/internal/testutil"
)

func newTestController(t *testing.T) (*Controller, *testutil.Clock) {
	t.Helper()
	clk := testutil.NewClock(testEpoch)
	return NewController(NewState(clk), zerolog.Nop()), clk
}

// waitAsync runs WaitForResume in a goroutine and returns its result channel
// once the thought is registered as waiting.
func waitAsync(t *testing.T, c *Controller, thoughtID string) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		done <- c.WaitForResume(context.Background(), thoughtID)
	}()
	require.Eventually(t, func() bool {
		for _, id := range c.Snapshot().Waiting {
			if id == thoughtID {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)
	return done
}

func requireReleased(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(time.Second):
		require.FailNow(t, "waiter was not released")
		return nil
	}
}

func requireBlocked(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		require.FailNow(t, "waiter released unexpectedly", "err: %v", err)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestController_PauseResume(t *testing.T) {
	c, _ := newTestController(t)

	assert.False(t, c.Resume(), "resume while running fails")
	assert.True(t, c.Pause())
	assert.False(t, c.Pause(), "pause is idempotent")
	assert.True(t, c.IsPaused())
	assert.True(t, c.SingleStepMode(), "pause turns on single-step mode")
	assert.True(t, c.State().IsPaused())

	assert.True(t, c.Resume())
	assert.False(t, c.IsPaused())
	assert.False(t, c.SingleStepMode())
	assert.False(t, c.State().IsPaused())
}

func TestController_ShouldPauseAt(t *testing.T) {
	c, _ := newTestController(t)
	assert.False(t, c.ShouldPauseAt(StageBuildContext, "th-1"), "running never pauses")

	c.Pause()
	assert.True(t, c.ShouldPauseAt(StageBuildContext, "th-1"), "all stages enabled by default")

	require.NoError(t, c.SetEnabledStages([]Stage{StageActionSelection}))
	assert.False(t, c.ShouldPauseAt(StageBuildContext, "th-1"))
	assert.True(t, c.ShouldPauseAt(StageActionSelection, "th-1"))

	c.SetSingleStepMode(false)
	assert.False(t, c.ShouldPauseAt(StageActionSelection, "th-1"), "paused without single-step runs through")
	c.SetSingleStepMode(true)

	require.NoError(t, c.State().Enter("th-1", "task", "standard", StageActionSelection))
	require.NoError(t, c.AbortThought("th-1"))
	assert.False(t, c.ShouldPauseAt(StageActionSelection, "th-1"), "aborted thoughts do not pause")

	require.ErrorIs(t, c.SetEnabledStages([]Stage{"nope"}), cortexerrors.ErrUnknownStage)
	require.NoError(t, c.SetEnabledStages(nil))
	assert.Len(t, c.Snapshot().EnabledStages, len(Stages()))
}

func TestController_SingleStepWhileRunning(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.State().Enter("th-1", "task", "standard", StageBuildContext))
	before := c.Snapshot()

	_, err := c.SingleStep()
	require.ErrorIs(t, err, cortexerrors.ErrNotPaused)
	assert.Equal(t, before, c.Snapshot(), "a failed step changes nothing")
}

func TestController_SingleStepEmpty(t *testing.T) {
	c, _ := newTestController(t)
	c.Pause()

	res, err := c.SingleStep()
	require.NoError(t, err)
	assert.True(t, res.PipelineEmpty)
	assert.Empty(t, res.ThoughtID)
}

func TestController_SingleStepDrainOrder(t *testing.T) {
	c, clk := newTestController(t)
	s := c.State()
	require.NoError(t, s.Enter("th-build", "task-a", "standard", StageBuildContext))
	clk.Advance(time.Second)
	require.NoError(t, s.Enter("th-complete", "task-b", "standard", StageHandlerComplete))
	clk.Advance(time.Second)
	require.NoError(t, s.Enter("th-select", "task-c", "standard", StageActionSelection))

	id, ok := c.DrainPipelineStep()
	require.True(t, ok)
	assert.Equal(t, "th-complete", id)

	c.Pause()
	build := waitAsync(t, c, "th-build")
	complete := waitAsync(t, c, "th-complete")

	res, err := c.SingleStep()
	require.NoError(t, err)
	assert.Equal(t, StepResult{
		ThoughtID:        "th-complete",
		TaskID:           "task-b",
		FromStage:        StageHandlerComplete,
		ToStage:          "",
		ThoughtsInFlight: 3,
	}, res)

	require.NoError(t, requireReleased(t, complete))
	requireBlocked(t, build)

	// The released thought leaves the pipeline; the next step picks action_selection.
	s.Complete("th-complete")
	c.Release("th-complete")
	sel := waitAsync(t, c, "th-select")
	res, err = c.SingleStep()
	require.NoError(t, err)
	assert.Equal(t, "th-select", res.ThoughtID)
	assert.Equal(t, StageHandlerStart, res.ToStage)
	require.NoError(t, requireReleased(t, sel))

	assert.True(t, c.Resume())
	require.NoError(t, requireReleased(t, build))
}

func TestController_SingleStepBackToBack(t *testing.T) {
	c, clk := newTestController(t)
	s := c.State()
	require.NoError(t, s.Enter("early", "task-a", "standard", StageBuildContext))
	clk.Advance(time.Second)
	require.NoError(t, s.Enter("late", "task-b", "standard", StageHandlerComplete))

	c.Pause()
	early := waitAsync(t, c, "early")
	late := waitAsync(t, c, "late")

	first, err := c.SingleStep()
	require.NoError(t, err)
	second, err := c.SingleStep()
	require.NoError(t, err)

	assert.Equal(t, "late", first.ThoughtID)
	assert.Equal(t, "early", second.ThoughtID, "a released thought is not picked twice")
	require.NoError(t, requireReleased(t, late))
	require.NoError(t, requireReleased(t, early))

	third, err := c.SingleStep()
	require.NoError(t, err)
	assert.True(t, third.NothingWaiting)
	assert.False(t, third.PipelineEmpty)
	assert.Empty(t, third.ThoughtID)
	assert.Equal(t, 2, third.ThoughtsInFlight)
}

func TestController_SingleStepSkipsRunningThought(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.State().Enter("busy", "task", "standard", StagePerformDMAs))
	c.Pause()

	res, err := c.SingleStep()
	require.NoError(t, err)
	assert.True(t, res.NothingWaiting, "a thought still running its stage is not released")

	// No release was buffered, so the thought stops at its next pause point.
	requireBlocked(t, waitAsync(t, c, "busy"))
	assert.True(t, c.Resume())
}

func TestController_ReleaseBeforeWaitIsKept(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.State().Enter("th-1", "task", "standard", StagePerformDMAs))
	c.Pause()

	assert.True(t, c.ResumeThought("th-1"))
	require.NoError(t, c.WaitForResume(context.Background(), "th-1"), "buffered release is consumed")

	assert.False(t, c.ResumeThought("unknown"))
}

func TestController_ResumeReleasesAllWaiters(t *testing.T) {
	c, _ := newTestController(t)
	c.Pause()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, c.State().Enter(id, "task", "standard", StageBuildContext))
	}
	waits := []<-chan error{waitAsync(t, c, "a"), waitAsync(t, c, "b"), waitAsync(t, c, "c")}

	require.True(t, c.Resume())
	for _, w := range waits {
		require.NoError(t, requireReleased(t, w))
	}

	// A second pause must hold the thought again rather than reuse an old release.
	c.Pause()
	again := waitAsync(t, c, "a")
	requireBlocked(t, again)
	c.Resume()
	require.NoError(t, requireReleased(t, again))
}

func TestController_WaitWhenRunningReturnsImmediately(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.WaitForResume(context.Background(), "th-1"))
}

func TestController_AbortReleasesWaiter(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.State().Enter("th-1", "task", "standard", StagePerformDMAs))
	c.Pause()

	done := waitAsync(t, c, "th-1")
	require.NoError(t, c.AbortThought("th-1"))
	require.ErrorIs(t, requireReleased(t, done), cortexerrors.ErrThoughtAborted)

	assert.True(t, c.ShouldAbort("th-1"))
	require.ErrorIs(t, c.WaitForResume(context.Background(), "th-1"), cortexerrors.ErrThoughtAborted)
	assert.Equal(t, []string{"th-1"}, c.Snapshot().Aborted)

	c.Release("th-1")
	assert.False(t, c.ShouldAbort("th-1"))

	require.ErrorIs(t, c.AbortThought("ghost"), cortexerrors.ErrThoughtNotInPipeline)
}

func TestController_WaitHonorsContext(t *testing.T) {
	c, _ := newTestController(t)
	c.Pause()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.WaitForResume(ctx, "th-1")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, c.Snapshot().Waiting)
}

func TestController_Snapshot(t *testing.T) {
	c, _ := newTestController(t)
	snap := c.Snapshot()
	assert.Equal(t, RunStateRunning, snap.RunState)
	assert.Equal(t, ModeNormal, snap.Mode)

	c.Pause()
	snap = c.Snapshot()
	assert.Equal(t, RunStatePaused, snap.RunState)
	assert.Equal(t, ModeSingleStep, snap.Mode)
	assert.True(t, snap.Pipeline.IsPaused)
}
