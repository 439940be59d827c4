package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cortexerrors "github.com/mrz1836/cortex/internal/errors"
	"github.com/mrz1836/cortex/internal/testutil"
)

//nolint:gochecknoglobals // Test fixture
var testEpoch = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func TestState_EnterAndMove(t *testing.T) {
	clk := testutil.NewClock(testEpoch)
	s := NewState(clk)

	require.NoError(t, s.Enter("th-1", "task-1", "standard", StageBuildContext))
	clk.Advance(time.Second)

	assert.False(t, s.MoveThought("th-1", StagePerformDMAs, StageActionSelection), "not at from")
	assert.False(t, s.MoveThought("missing", StageBuildContext, StagePerformDMAs))
	assert.False(t, s.MoveThought("th-1", StageBuildContext, Stage("bogus")))

	require.True(t, s.MoveThought("th-1", StageBuildContext, StagePerformDMAs))
	assert.Empty(t, s.ThoughtsAt(StageBuildContext))

	at := s.ThoughtsAt(StagePerformDMAs)
	require.Len(t, at, 1)
	assert.Equal(t, "task-1", at[0].TaskID)
	assert.Equal(t, StagePerformDMAs, at[0].CurrentStage)
	assert.Equal(t, testEpoch.Add(time.Second), at[0].EnteredStageAt)
	assert.Equal(t, []Stage{StageBuildContext}, at[0].StagesCompleted)
}

func TestState_EnterValidation(t *testing.T) {
	s := NewState(nil)
	require.ErrorIs(t, s.Enter("", "task", "standard", StageBuildContext), cortexerrors.ErrEmptyValue)
	require.ErrorIs(t, s.Enter("th", "task", "standard", Stage("nope")), cortexerrors.ErrUnknownStage)
}

func TestState_EnterTwiceMoves(t *testing.T) {
	s := NewState(nil)
	require.NoError(t, s.Enter("th-1", "task-1", "standard", StageBuildContext))
	require.NoError(t, s.Enter("th-1", "task-1", "standard", StageHandlerStart))

	assert.Equal(t, 1, s.TotalInFlight())
	got, ok := s.Find("th-1")
	require.True(t, ok)
	assert.Equal(t, StageHandlerStart, got.CurrentStage)
}

func TestState_CompleteAndRemove(t *testing.T) {
	s := NewState(nil)
	require.NoError(t, s.Enter("th-1", "task-1", "standard", StageHandlerComplete))
	require.NoError(t, s.Enter("th-2", "task-1", "standard", StageBuildContext))

	assert.True(t, s.SetError("th-2", "boom"))
	got, _ := s.Find("th-2")
	assert.Equal(t, "boom", got.LastError)

	assert.True(t, s.Complete("th-1"))
	assert.True(t, s.Remove("th-2"))
	assert.False(t, s.Complete("th-1"))
	assert.False(t, s.SetError("th-2", "x"))

	assert.Equal(t, int64(1), s.TotalProcessed())
	assert.Zero(t, s.TotalInFlight())
}

func TestState_DrainOrder(t *testing.T) {
	clk := testutil.NewClock(testEpoch)
	s := NewState(clk)

	require.NoError(t, s.Enter("at-build", "t", "standard", StageBuildContext))
	clk.Advance(time.Second)
	require.NoError(t, s.Enter("at-complete", "t", "standard", StageHandlerComplete))
	clk.Advance(time.Second)
	require.NoError(t, s.Enter("at-select", "t", "standard", StageActionSelection))

	id, ok := s.DrainNext()
	require.True(t, ok)
	assert.Equal(t, "at-complete", id)
	assert.Equal(t, []string{"at-complete", "at-select", "at-build"}, s.DrainOrder())
}

func TestState_DrainTieBreak(t *testing.T) {
	clk := testutil.NewClock(testEpoch)
	s := NewState(clk)

	clk.Advance(time.Second)
	require.NoError(t, s.Enter("late", "t", "standard", StagePerformDMAs))
	clk.Set(testEpoch)
	require.NoError(t, s.Enter("early", "t", "standard", StagePerformDMAs))
	require.NoError(t, s.Enter("same-time", "t", "standard", StagePerformDMAs))

	id, ok := s.DrainNext()
	require.True(t, ok)
	assert.Equal(t, "early", id)
	assert.Equal(t, []string{"early", "same-time", "late"}, s.DrainOrder())
}

func TestState_DrainEmpty(t *testing.T) {
	s := NewState(nil)
	_, ok := s.DrainNext()
	assert.False(t, ok)
	assert.Empty(t, s.DrainOrder())
}

func TestState_SnapshotIsCopy(t *testing.T) {
	s := NewState(nil)
	require.NoError(t, s.Enter("th-1", "task-1", "standard", StageBuildContext))
	assert.Equal(t, 1, s.NextRound())

	snap := s.Snapshot()
	assert.Equal(t, 1, snap.CurrentRound)
	assert.Equal(t, 1, snap.TotalInFlight)
	require.Len(t, snap.ThoughtsByStage, len(Stages()))
	require.Len(t, snap.ThoughtsByStage[StageBuildContext], 1)

	snap.ThoughtsByStage[StageBuildContext][0].LastError = "changed"
	got, _ := s.Find("th-1")
	assert.Empty(t, got.LastError)

	counts := s.StageCounts()
	assert.Equal(t, 1, counts[StageBuildContext])
	assert.Zero(t, counts[StageHandlerComplete])
}
