package coordination

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/cortex/internal/clock"
	"github.com/mrz1836/cortex/internal/constants"
	"github.com/mrz1836/cortex/internal/domain"
	"github.com/mrz1836/cortex/internal/errors"
	"github.com/mrz1836/cortex/internal/store"
	"github.com/mrz1836/cortex/internal/task"
)

// MaintenanceConfig holds the sweep windows.
type MaintenanceConfig struct {
	// SharedTaskStaleAfter is the freshness window of unfinished shared tasks.
	SharedTaskStaleAfter time.Duration

	// StaleTaskAge is the age after which unfinished ordinary tasks are force-completed.
	StaleTaskAge time.Duration

	// OrphanGrace protects thoughts younger than this from orphan removal.
	OrphanGrace time.Duration

	// CompletedRetention is how long completed tasks are kept. Zero keeps them forever.
	CompletedRetention time.Duration
}

// DefaultMaintenanceConfig returns the standard windows.
func DefaultMaintenanceConfig() MaintenanceConfig {
	return MaintenanceConfig{
		SharedTaskStaleAfter: constants.SharedTaskStaleAfter,
		StaleTaskAge:         constants.DefaultStaleTaskAge,
		OrphanGrace:          constants.OrphanGracePeriod,
		CompletedRetention:   constants.DefaultCompletedRetention,
	}
}

// SweepReport counts what a sweep changed.
type SweepReport struct {
	StaleSharedTasksDeleted    int `json:"stale_shared_tasks_deleted"`
	StaleSharedThoughtsDeleted int `json:"stale_shared_thoughts_deleted"`
	StaleTasksCompleted        int `json:"stale_tasks_completed"`
	OrphanThoughtsDeleted      int `json:"orphan_thoughts_deleted"`
	CompletedTasksDeleted      int `json:"completed_tasks_deleted"`
}

// Total returns the number of rows touched.
func (r SweepReport) Total() int {
	return r.StaleSharedTasksDeleted + r.StaleSharedThoughtsDeleted + r.StaleTasksCompleted +
		r.OrphanThoughtsDeleted + r.CompletedTasksDeleted
}

// ritualPrefixes identifies shared ritual tasks and the wakeup step tasks a
// claimant creates under its own occurrence.
//
//nolint:gochecknoglobals // Read-only lookup table
var ritualPrefixes = []string{
	SharedTaskPrefix(constants.WakeupTaskType),
	SharedTaskPrefix(constants.ShutdownTaskType),
	constants.StepVerifyIdentity + "_",
	constants.StepValidateIntegrity + "_",
	constants.StepEvaluateResilience + "_",
	constants.StepAcceptIncompleteness + "_",
	constants.StepExpressGratitude + "_",
}

// IsRitualTaskID reports whether id belongs to a wakeup or shutdown ritual.
func IsRitualTaskID(id string) bool {
	for _, p := range ritualPrefixes {
		if strings.HasPrefix(id, p) {
			return true
		}
	}
	return false
}

// Maintenance recovers the store from crashed occurrences. Every write it makes
// is scoped by the target row's own occurrence id.
type Maintenance struct {
	store  store.Store
	clock  clock.Clock
	cfg    MaintenanceConfig
	logger zerolog.Logger
}

// NewMaintenance creates a Maintenance sweeper. A nil clock uses the real clock.
func NewMaintenance(s store.Store, clk clock.Clock, cfg MaintenanceConfig, logger zerolog.Logger) (*Maintenance, error) {
	if s == nil {
		return nil, errors.ErrNilStore
	}
	return &Maintenance{
		store:  s,
		clock:  clock.OrReal(clk),
		cfg:    cfg,
		logger: logger.With().Str("component", "maintenance").Logger(),
	}, nil
}

// Sweep runs every cleanup pass once. The first store error stops the sweep and
// is returned with the partial report.
func (m *Maintenance) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	passes := []func(context.Context, *SweepReport) error{
		m.sweepStaleRitualTasks,
		m.completeStaleTasks,
		m.removeOrphanThoughts,
		m.removeOldCompletedTasks,
	}
	for _, pass := range passes {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}
		if err := pass(ctx, &report); err != nil {
			return report, err
		}
	}
	m.logger.Info().
		Int("stale_shared_tasks_deleted", report.StaleSharedTasksDeleted).
		Int("stale_shared_thoughts_deleted", report.StaleSharedThoughtsDeleted).
		Int("stale_tasks_completed", report.StaleTasksCompleted).
		Int("orphan_thoughts_deleted", report.OrphanThoughtsDeleted).
		Int("completed_tasks_deleted", report.CompletedTasksDeleted).
		Msg("maintenance sweep finished")
	return report, nil
}

// sweepStaleRitualTasks removes unfinished ritual tasks older than the freshness
// window, presumed abandoned by a crashed claimant. Old finished ones keep
// their row but lose any thought still pending or processing.
func (m *Maintenance) sweepStaleRitualTasks(ctx context.Context, report *SweepReport) error {
	cutoff := m.clock.Now().Add(-m.cfg.SharedTaskStaleAfter)
	candidates, err := m.store.ListTasks(ctx, store.TaskFilter{CreatedBefore: cutoff})
	if err != nil {
		return err
	}

	for _, t := range candidates {
		if !t.IsShared() && !IsRitualTaskID(t.TaskID) {
			continue
		}
		n, err := m.deleteUnfinishedThoughts(ctx, t)
		if err != nil {
			return err
		}
		report.StaleSharedThoughtsDeleted += n

		if t.Status != constants.TaskStatusPending && t.Status != constants.TaskStatusActive {
			continue
		}
		if err := m.store.DeleteTask(ctx, t.TaskID, t.AgentOccurrenceID); err != nil && !stderrors.Is(err, errors.ErrTaskNotFound) {
			return err
		}
		report.StaleSharedTasksDeleted++
		m.logger.Info().
			Str("task_id", t.TaskID).
			Str("occurrence_id", t.AgentOccurrenceID).
			Str("status", t.Status.String()).
			Msg("deleted stale ritual task")
	}
	return nil
}

// deleteUnfinishedThoughts removes t's pending and processing thoughts. The
// thoughts are found by task id alone and each is deleted under its own
// occurrence id, which may differ from the task's.
func (m *Maintenance) deleteUnfinishedThoughts(ctx context.Context, t *domain.Task) (int, error) {
	thoughts, err := m.store.ListThoughts(ctx, store.ThoughtFilter{
		SourceTaskID: t.TaskID,
		Statuses:     []constants.ThoughtStatus{constants.ThoughtStatusPending, constants.ThoughtStatusProcessing},
	})
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, th := range thoughts {
		if err := m.store.DeleteThought(ctx, th.ThoughtID, th.AgentOccurrenceID); err != nil {
			if stderrors.Is(err, errors.ErrThoughtNotFound) {
				continue
			}
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// completeStaleTasks force-completes ordinary pending or active tasks older
// than StaleTaskAge. Ritual tasks are left to sweepStaleRitualTasks.
func (m *Maintenance) completeStaleTasks(ctx context.Context, report *SweepReport) error {
	if m.cfg.StaleTaskAge <= 0 {
		return nil
	}
	now := m.clock.Now()
	stale, err := m.store.ListTasks(ctx, store.TaskFilter{
		ExcludeOccurrenceID: constants.SharedOccurrenceID,
		Statuses:            []constants.TaskStatus{constants.TaskStatusPending, constants.TaskStatusActive},
		CreatedBefore:       now.Add(-m.cfg.StaleTaskAge),
	})
	if err != nil {
		return err
	}
	for _, t := range stale {
		if IsRitualTaskID(t.TaskID) {
			continue
		}
		outcome := &domain.TaskOutcome{
			Status:      constants.TaskStatusCompleted,
			Summary:     "auto-completed by maintenance after restart",
			CompletedAt: now,
		}
		if err := m.store.UpdateTaskOutcome(ctx, t.TaskID, t.AgentOccurrenceID, t.Status, outcome, m.clock); err != nil {
			if stderrors.Is(err, errors.ErrTaskNotFound) || stderrors.Is(err, errors.ErrInvalidTransition) {
				continue
			}
			return err
		}
		report.StaleTasksCompleted++
		m.logger.Info().
			Str("task_id", t.TaskID).
			Str("occurrence_id", t.AgentOccurrenceID).
			Dur("age", now.Sub(t.CreatedAt)).
			Msg("force-completed stale task")
	}
	return nil
}

// removeOrphanThoughts deletes thoughts whose task no longer exists. Thoughts
// younger than OrphanGrace are kept: another occurrence may be about to insert
// their task.
func (m *Maintenance) removeOrphanThoughts(ctx context.Context, report *SweepReport) error {
	orphans, err := m.store.OrphanThoughts(ctx, m.clock.Now().Add(-m.cfg.OrphanGrace))
	if err != nil {
		return err
	}
	for _, th := range orphans {
		if err := m.store.DeleteThought(ctx, th.ThoughtID, th.AgentOccurrenceID); err != nil {
			if stderrors.Is(err, errors.ErrThoughtNotFound) {
				continue
			}
			return err
		}
		report.OrphanThoughtsDeleted++
	}
	return nil
}

func (m *Maintenance) removeOldCompletedTasks(ctx context.Context, report *SweepReport) error {
	if m.cfg.CompletedRetention <= 0 {
		return nil
	}
	old, err := m.store.ListTasks(ctx, store.TaskFilter{
		Statuses:      []constants.TaskStatus{constants.TaskStatusCompleted},
		UpdatedBefore: m.clock.Now().Add(-m.cfg.CompletedRetention),
	})
	if err != nil {
		return err
	}
	for _, t := range old {
		if err := task.DeleteTaskWithThoughts(ctx, m.store, t); err != nil {
			return err
		}
		report.CompletedTasksDeleted++
	}
	return nil
}
