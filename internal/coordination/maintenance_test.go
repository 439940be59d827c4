package coordination

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/cortex/internal/constants"
	"github.com/mrz1836/cortex/internal/domain"
	cortexerrors "github.com/mrz1836/cortex/internal/errors"
	"github.com/mrz1836/cortex/internal/store"
	"github.com/mrz1836/cortex/internal/testutil"
)

func setupMaintenance(t *testing.T) (*Maintenance, *store.SQLStore, *testutil.Clock) {
	t.Helper()
	clk := testutil.NewClock(testEpoch)
	s := openTestStore(t, filepath.Join(t.TempDir(), "cortex.db"), clk)
	m, err := NewMaintenance(s, clk, DefaultMaintenanceConfig(), zerolog.Nop())
	require.NoError(t, err)
	return m, s, clk
}

func addTask(t *testing.T, s store.Store, id, occurrence string, status constants.TaskStatus, createdAt time.Time) {
	t.Helper()
	require.NoError(t, s.AddTask(context.Background(), &domain.Task{
		TaskID:            id,
		AgentOccurrenceID: occurrence,
		ChannelID:         "chan-1",
		Description:       id,
		Status:            status,
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
	}))
}

func addThought(t *testing.T, s store.Store, id, taskID, occurrence string, status constants.ThoughtStatus, createdAt time.Time) {
	t.Helper()
	require.NoError(t, s.AddThought(context.Background(), &domain.Thought{
		ThoughtID:         id,
		SourceTaskID:      taskID,
		AgentOccurrenceID: occurrence,
		ThoughtType:       constants.ThoughtTypeStandard,
		Status:            status,
		Content:           "c",
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
	}))
}

func TestNewMaintenance_NilStore(t *testing.T) {
	_, err := NewMaintenance(nil, nil, DefaultMaintenanceConfig(), zerolog.Nop())
	require.ErrorIs(t, err, cortexerrors.ErrNilStore)
}

// A shared task left active for ten minutes belongs to a crashed claimant and is
// removed with its thoughts. One created thirty seconds ago is still being worked.
func TestMaintenance_StaleSharedTask(t *testing.T) {
	ctx := context.Background()
	m, s, _ := setupMaintenance(t)

	staleID := "WAKEUP_SHARED_20261017"
	freshID := "WAKEUP_SHARED_20261018"
	addTask(t, s, staleID, constants.SharedOccurrenceID, constants.TaskStatusActive, testEpoch.Add(-10*time.Minute))
	addTask(t, s, freshID, constants.SharedOccurrenceID, constants.TaskStatusActive, testEpoch.Add(-30*time.Second))

	// The stale task's thought is owned by the claimant, not by __shared__.
	addThought(t, s, "th-stale", staleID, "occ-claimant", constants.ThoughtStatusPending, testEpoch.Add(-10*time.Minute))
	addThought(t, s, "th-fresh", freshID, "occ-claimant", constants.ThoughtStatusPending, testEpoch.Add(-30*time.Second))

	report, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.StaleSharedTasksDeleted)
	assert.Equal(t, 1, report.StaleSharedThoughtsDeleted)

	_, err = s.GetTaskByID(ctx, staleID, constants.SharedOccurrenceID)
	require.ErrorIs(t, err, cortexerrors.ErrTaskNotFound)
	_, err = s.GetThoughtByID(ctx, "th-stale", "occ-claimant")
	require.ErrorIs(t, err, cortexerrors.ErrThoughtNotFound)

	fresh, err := s.GetTaskByID(ctx, freshID, constants.SharedOccurrenceID)
	require.NoError(t, err)
	assert.Equal(t, constants.TaskStatusActive, fresh.Status)
	_, err = s.GetThoughtByID(ctx, "th-fresh", "occ-claimant")
	require.NoError(t, err)
}

func TestMaintenance_CompletedSharedTaskKept(t *testing.T) {
	ctx := context.Background()
	m, s, _ := setupMaintenance(t)

	id := "WAKEUP_SHARED_20261017"
	addTask(t, s, id, constants.SharedOccurrenceID, constants.TaskStatusCompleted, testEpoch.Add(-time.Hour))
	addThought(t, s, "th-done", id, "occ-a", constants.ThoughtStatusCompleted, testEpoch.Add(-time.Hour))
	addThought(t, s, "th-stuck", id, "occ-a", constants.ThoughtStatusProcessing, testEpoch.Add(-time.Hour))

	report, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.StaleSharedTasksDeleted)
	assert.Equal(t, 1, report.StaleSharedThoughtsDeleted)

	_, err = s.GetTaskByID(ctx, id, constants.SharedOccurrenceID)
	require.NoError(t, err)
	_, err = s.GetThoughtByID(ctx, "th-done", "occ-a")
	require.NoError(t, err)
	_, err = s.GetThoughtByID(ctx, "th-stuck", "occ-a")
	require.ErrorIs(t, err, cortexerrors.ErrThoughtNotFound)
}

func TestMaintenance_StaleOrdinaryTasks(t *testing.T) {
	ctx := context.Background()
	m, s, _ := setupMaintenance(t)

	addTask(t, s, "old-a", "occ-a", constants.TaskStatusActive, testEpoch.Add(-time.Hour))
	addTask(t, s, "old-b", "occ-b", constants.TaskStatusPending, testEpoch.Add(-time.Hour))
	addTask(t, s, "young", "occ-a", constants.TaskStatusActive, testEpoch.Add(-time.Minute))
	addTask(t, s, "VERIFY_IDENTITY_123", "occ-a", constants.TaskStatusCompleted, testEpoch.Add(-time.Hour))

	report, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.StaleTasksCompleted)

	tests := []struct {
		id, occurrence string
		want           constants.TaskStatus
	}{
		{"old-a", "occ-a", constants.TaskStatusCompleted},
		{"old-b", "occ-b", constants.TaskStatusCompleted},
		{"young", "occ-a", constants.TaskStatusActive},
		{"VERIFY_IDENTITY_123", "occ-a", constants.TaskStatusCompleted},
	}
	for _, tt := range tests {
		got, err := s.GetTaskByID(ctx, tt.id, tt.occurrence)
		require.NoError(t, err, tt.id)
		assert.Equal(t, tt.want, got.Status, tt.id)
	}

	old, err := s.GetTaskByID(ctx, "old-b", "occ-b")
	require.NoError(t, err)
	require.NotNil(t, old.Outcome)
	assert.Contains(t, old.Outcome.Summary, "auto-completed")
}

func TestMaintenance_StaleRitualStepTaskDeleted(t *testing.T) {
	ctx := context.Background()
	m, s, _ := setupMaintenance(t)

	addTask(t, s, "EXPRESS_GRATITUDE_abc", "occ-a", constants.TaskStatusActive, testEpoch.Add(-10*time.Minute))

	report, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.StaleSharedTasksDeleted)
	assert.Zero(t, report.StaleTasksCompleted)
}

func TestMaintenance_OrphanThoughts(t *testing.T) {
	ctx := context.Background()
	m, s, _ := setupMaintenance(t)

	addThought(t, s, "orphan-old", "gone", "occ-a", constants.ThoughtStatusPending, testEpoch.Add(-5*time.Minute))
	addThought(t, s, "orphan-new", "gone", "occ-b", constants.ThoughtStatusPending, testEpoch.Add(-30*time.Second))

	report, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.OrphanThoughtsDeleted)

	_, err = s.GetThoughtByID(ctx, "orphan-new", "occ-b")
	require.NoError(t, err)
}

func TestMaintenance_OldCompletedTasks(t *testing.T) {
	ctx := context.Background()
	m, s, _ := setupMaintenance(t)

	addTask(t, s, "ancient", "occ-a", constants.TaskStatusCompleted, testEpoch.Add(-10*24*time.Hour))
	addThought(t, s, "th-ancient", "ancient", "occ-a", constants.ThoughtStatusCompleted, testEpoch.Add(-10*24*time.Hour))
	addTask(t, s, "recent", "occ-a", constants.TaskStatusCompleted, testEpoch.Add(-time.Hour))

	report, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.CompletedTasksDeleted)
	assert.Equal(t, report.CompletedTasksDeleted+report.OrphanThoughtsDeleted, report.Total())

	_, err = s.GetTaskByID(ctx, "ancient", "occ-a")
	require.ErrorIs(t, err, cortexerrors.ErrTaskNotFound)
	_, err = s.GetThoughtByID(ctx, "th-ancient", "occ-a")
	require.ErrorIs(t, err, cortexerrors.ErrThoughtNotFound)
	_, err = s.GetTaskByID(ctx, "recent", "occ-a")
	require.NoError(t, err)
}

func TestMaintenance_CanceledContext(t *testing.T) {
	m, _, _ := setupMaintenance(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Sweep(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
