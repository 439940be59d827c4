package task

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/cortex/internal/clock"
	"github.com/mrz1836/cortex/internal/constants"
	"github.com/mrz1836/cortex/internal/domain"
	"github.com/mrz1836/cortex/internal/errors"
	"github.com/mrz1836/cortex/internal/logging"
	"github.com/mrz1836/cortex/internal/store"
)

// Counts is a point-in-time view of one occurrence's work.
type Counts struct {
	PendingTasks       int64 `json:"pending_tasks"`
	ActiveTasks        int64 `json:"active_tasks"`
	PendingThoughts    int64 `json:"pending_thoughts"`
	ProcessingThoughts int64 `json:"processing_thoughts"`
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithMaxActiveTasks caps the number of tasks ActivatePendingTasks keeps active.
func WithMaxActiveTasks(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.maxActiveTasks = n
		}
	}
}

// WithManagerClock sets the clock used to stamp status changes.
func WithManagerClock(clk clock.Clock) ManagerOption {
	return func(m *Manager) {
		m.clock = clock.OrReal(clk)
	}
}

// Manager drives the task lifecycle of one occurrence: activation, seeding,
// terminal transitions and cleanup. All store calls are scoped to the
// occurrence the manager was built for, or to the task's own occurrence.
type Manager struct {
	store          store.Store
	factory        *Factory
	occurrenceID   string
	clock          clock.Clock
	logger         zerolog.Logger
	maxActiveTasks int
}

// NewManager creates a Manager for occurrenceID.
func NewManager(s store.Store, factory *Factory, occurrenceID string, logger zerolog.Logger, opts ...ManagerOption) (*Manager, error) {
	if s == nil {
		return nil, errors.ErrNilStore
	}
	if occurrenceID == "" {
		return nil, fmt.Errorf("failed to create task manager: %w", errors.ErrMissingOccurrenceID)
	}
	if factory == nil {
		factory = NewFactory(nil)
	}
	m := &Manager{
		store:          s,
		factory:        factory,
		occurrenceID:   occurrenceID,
		clock:          clock.RealClock{},
		logger:         logger.With().Str("component", "task_manager").Str("occurrence_id", occurrenceID).Logger(),
		maxActiveTasks: constants.DefaultMaxActiveTasks,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// OccurrenceID returns the occurrence this manager works for.
func (m *Manager) OccurrenceID() string {
	return m.occurrenceID
}

// Factory returns the factory used to build tasks and thoughts.
func (m *Manager) Factory() *Factory {
	return m.factory
}

// CreateTask builds and persists a task.
func (m *Manager) CreateTask(ctx context.Context, spec TaskSpec) (*domain.Task, error) {
	t, err := m.factory.CreateTask(spec)
	if err != nil {
		return nil, err
	}
	if err := m.store.AddTask(ctx, t); err != nil {
		return nil, err
	}
	m.logger.Debug().
		Str("task_id", t.TaskID).
		Int("priority", t.Priority).
		Str("description", logging.Preview(t.Description, 0)).
		Msg("task created")
	return t, nil
}

// ActivatePendingTasks moves the highest-priority pending tasks to active,
// keeping at most maxActiveTasks active. It returns how many were activated.
func (m *Manager) ActivatePendingTasks(ctx context.Context) (int, error) {
	active, err := m.store.CountTasks(ctx, store.TaskFilter{
		OccurrenceID: m.occurrenceID,
		Statuses:     []constants.TaskStatus{constants.TaskStatusActive},
	})
	if err != nil {
		return 0, err
	}
	available := m.maxActiveTasks - int(active)
	if available <= 0 {
		return 0, nil
	}

	pending, err := m.store.ListTasks(ctx, store.TaskFilter{
		OccurrenceID: m.occurrenceID,
		Statuses:     []constants.TaskStatus{constants.TaskStatusPending},
		Limit:        available,
	})
	if err != nil {
		return 0, err
	}

	activated := 0
	for _, t := range pending {
		if err := m.Transition(ctx, t, constants.TaskStatusActive); err != nil {
			if IsStoreFailure(err) {
				return activated, err
			}
			m.logger.Warn().Err(err).Str("task_id", t.TaskID).Msg("failed to activate task")
			continue
		}
		activated++
	}
	if activated > 0 {
		m.logger.Info().Int("activated", activated).Msg("activated pending tasks")
	}
	return activated, nil
}

// TasksNeedingSeed returns active tasks that have no thoughts yet.
func (m *Manager) TasksNeedingSeed(ctx context.Context, limit int) ([]*domain.Task, error) {
	return m.store.TasksWithoutThoughts(ctx, m.occurrenceID, constants.TaskStatusActive, limit)
}

// GenerateSeedThoughts creates and stores one seed thought per task at round.
// A task that cannot be seeded is logged and skipped.
func (m *Manager) GenerateSeedThoughts(ctx context.Context, tasks []*domain.Task, round int) (int, error) {
	created := 0
	for _, t := range tasks {
		seed, err := m.factory.CreateSeedThought(t, round)
		if err != nil {
			m.logger.Warn().Err(err).Str("task_id", t.TaskID).Msg("failed to build seed thought")
			continue
		}
		if err := m.store.AddThought(ctx, seed); err != nil {
			if IsStoreFailure(err) {
				return created, err
			}
			m.logger.Warn().Err(err).Str("task_id", t.TaskID).Msg("failed to store seed thought")
			continue
		}
		created++
	}
	return created, nil
}

// Transition moves t to status after checking the state machine. The update is
// scoped by the task's own occurrence id. On success t.Status is updated.
func (m *Manager) Transition(ctx context.Context, t *domain.Task, to constants.TaskStatus) error {
	if t == nil {
		return fmt.Errorf("failed to transition task: task %w", errors.ErrEmptyValue)
	}
	if err := CheckTaskTransition(t.Status, to); err != nil {
		return fmt.Errorf("task %s: %w", t.TaskID, err)
	}
	if err := m.store.TransitionTaskStatus(ctx, t.TaskID, t.AgentOccurrenceID, t.Status, to, m.clock); err != nil {
		return err
	}
	t.Status = to
	return nil
}

// CompleteTask marks the occurrence's task completed with a summary.
func (m *Manager) CompleteTask(ctx context.Context, taskID, summary string) error {
	return m.finish(ctx, taskID, constants.TaskStatusCompleted, summary, "")
}

// FailTask marks the occurrence's task failed with a reason.
func (m *Manager) FailTask(ctx context.Context, taskID, reason string) error {
	return m.finish(ctx, taskID, constants.TaskStatusFailed, "", reason)
}

// RejectTask marks the occurrence's task rejected with a reason.
func (m *Manager) RejectTask(ctx context.Context, taskID, reason string) error {
	return m.finish(ctx, taskID, constants.TaskStatusRejected, "", reason)
}

// DeferTask marks the occurrence's task deferred with a reason.
func (m *Manager) DeferTask(ctx context.Context, taskID, reason string) error {
	return m.finish(ctx, taskID, constants.TaskStatusDeferred, "", reason)
}

func (m *Manager) finish(ctx context.Context, taskID string, status constants.TaskStatus, summary, reason string) error {
	t, err := m.store.GetTaskByID(ctx, taskID, m.occurrenceID)
	if err != nil {
		return err
	}
	return m.FinishTask(ctx, t, status, summary, reason)
}

// FinishTask moves t to status, writing an outcome when status is terminal.
// Writes are scoped by the task's own occurrence id, so shared tasks can be
// finished by their claimant. The write applies only while the stored status
// still equals t.Status; a task finished elsewhere in the meantime fails with
// ErrInvalidTransition. On success t is updated in place.
func (m *Manager) FinishTask(ctx context.Context, t *domain.Task, status constants.TaskStatus, summary, reason string) error {
	if t == nil {
		return fmt.Errorf("failed to finish task: task %w", errors.ErrEmptyValue)
	}
	if err := CheckTaskTransition(t.Status, status); err != nil {
		return fmt.Errorf("task %s: %w", t.TaskID, err)
	}
	// Outcomes are recorded only for terminal statuses.
	if !IsTerminalTaskStatus(status) {
		if err := m.store.TransitionTaskStatus(ctx, t.TaskID, t.AgentOccurrenceID, t.Status, status, m.clock); err != nil {
			return err
		}
		t.Status = status
		m.logger.Info().Str("task_id", t.TaskID).Str("status", status.String()).Str("reason", reason).Msg("task parked")
		return nil
	}
	outcome := &domain.TaskOutcome{
		Status:      status,
		Summary:     summary,
		Reason:      reason,
		CompletedAt: m.clock.Now(),
	}
	if err := m.store.UpdateTaskOutcome(ctx, t.TaskID, t.AgentOccurrenceID, t.Status, outcome, m.clock); err != nil {
		return err
	}
	t.Status = status
	t.Outcome = outcome
	m.logger.Info().Str("task_id", t.TaskID).Str("status", status.String()).Msg("task finished")
	return nil
}

// Counts returns the occurrence's task and thought counts.
func (m *Manager) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	var err error
	taskCount := func(status constants.TaskStatus) int64 {
		if err != nil {
			return 0
		}
		var n int64
		n, err = m.store.CountTasks(ctx, store.TaskFilter{OccurrenceID: m.occurrenceID, Statuses: []constants.TaskStatus{status}})
		return n
	}
	thoughtCount := func(status constants.ThoughtStatus) int64 {
		if err != nil {
			return 0
		}
		var n int64
		n, err = m.store.CountThoughts(ctx, store.ThoughtFilter{OccurrenceID: m.occurrenceID, Statuses: []constants.ThoughtStatus{status}})
		return n
	}
	c.PendingTasks = taskCount(constants.TaskStatusPending)
	c.ActiveTasks = taskCount(constants.TaskStatusActive)
	c.PendingThoughts = thoughtCount(constants.ThoughtStatusPending)
	c.ProcessingThoughts = thoughtCount(constants.ThoughtStatusProcessing)
	if err != nil {
		return Counts{}, err
	}
	return c, nil
}

// CleanupOldCompletedTasks deletes the occurrence's completed tasks last
// updated before cutoff, together with their thoughts.
func (m *Manager) CleanupOldCompletedTasks(ctx context.Context, cutoff time.Time) (int, error) {
	old, err := m.store.ListTasks(ctx, store.TaskFilter{
		OccurrenceID:  m.occurrenceID,
		Statuses:      []constants.TaskStatus{constants.TaskStatusCompleted},
		UpdatedBefore: cutoff,
	})
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, t := range old {
		if err := DeleteTaskWithThoughts(ctx, m.store, t); err != nil {
			return deleted, err
		}
		deleted++
	}
	if deleted > 0 {
		m.logger.Info().Int("deleted", deleted).Time("cutoff", cutoff).Msg("cleaned up completed tasks")
	}
	return deleted, nil
}

// DeleteTaskWithThoughts removes t and every thought attached to it. Each
// thought is deleted under its own occurrence id.
func DeleteTaskWithThoughts(ctx context.Context, s store.Store, t *domain.Task) error {
	thoughts, err := s.ListThoughts(ctx, store.ThoughtFilter{SourceTaskID: t.TaskID})
	if err != nil {
		return err
	}
	for _, th := range thoughts {
		if err := s.DeleteThought(ctx, th.ThoughtID, th.AgentOccurrenceID); err != nil && !stderrors.Is(err, errors.ErrThoughtNotFound) {
			return err
		}
	}
	if err := s.DeleteTask(ctx, t.TaskID, t.AgentOccurrenceID); err != nil && !stderrors.Is(err, errors.ErrTaskNotFound) {
		return err
	}
	return nil
}

// IsStoreFailure reports whether err is something other than a per-entity
// problem (validation, state or lookup). The processing loop stops only on these.
func IsStoreFailure(err error) bool {
	if err == nil {
		return false
	}
	return !errors.IsValidation(err) &&
		!stderrors.Is(err, errors.ErrInvalidTransition) &&
		!stderrors.Is(err, errors.ErrTaskNotFound) &&
		!stderrors.Is(err, errors.ErrThoughtNotFound) &&
		!stderrors.Is(err, errors.ErrFinalActionAlreadySet)
}
