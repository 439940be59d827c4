// Package store provides durable storage for tasks, thoughts and correlations.
//
// Every call that targets a specific task or thought takes that entity's own
// agent occurrence id. The store never substitutes a default occurrence: an
// empty occurrence id is rejected with errors.ErrMissingOccurrenceID.
//
// Import rules:
//   - CAN import: internal/clock, internal/constants, internal/domain, internal/errors
//   - MUST NOT import: internal/task, internal/processor, internal/cli
package store

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/mrz1836/cortex/internal/clock"
	"github.com/mrz1836/cortex/internal/constants"
	"github.com/mrz1836/cortex/internal/domain"
)

// Store is the persistence contract used by every scheduler component.
type Store interface {
	TaskStore
	ThoughtStore
	CorrelationStore
}

// TaskStore persists tasks.
type TaskStore interface {
	// AddTask inserts a new task. Inserting an existing task_id fails.
	AddTask(ctx context.Context, task *domain.Task) error

	// InsertTaskIfAbsent inserts task unless a task with the same id exists.
	// It is a single conditional insert; of any number of concurrent callers
	// exactly one observes created == true.
	InsertTaskIfAbsent(ctx context.Context, task *domain.Task) (created bool, err error)

	// GetTaskByID returns the task owned by occurrenceID.
	GetTaskByID(ctx context.Context, taskID, occurrenceID string) (*domain.Task, error)

	// GetTaskByCorrelationID returns the newest task owned by occurrenceID that
	// carries correlationID.
	GetTaskByCorrelationID(ctx context.Context, correlationID, occurrenceID string) (*domain.Task, error)

	// UpdateTaskStatus sets the status of the task owned by occurrenceID. A task
	// already completed, failed or rejected is left alone and the call fails
	// with ErrInvalidTransition.
	UpdateTaskStatus(ctx context.Context, taskID string, status constants.TaskStatus, occurrenceID string, clk clock.Clock) error

	// TransitionTaskStatus sets the status to `to` only while the stored status
	// is still `from`. A task that moved on since it was read fails with
	// ErrInvalidTransition.
	TransitionTaskStatus(ctx context.Context, taskID, occurrenceID string, from, to constants.TaskStatus, clk clock.Clock) error

	// UpdateTaskOutcome sets the status and outcome of the task owned by
	// occurrenceID while its stored status is still from. An empty from accepts
	// any status that is not terminal.
	UpdateTaskOutcome(ctx context.Context, taskID, occurrenceID string, from constants.TaskStatus, outcome *domain.TaskOutcome, clk clock.Clock) error

	// ListTasks returns tasks matching filter, highest priority first then oldest.
	ListTasks(ctx context.Context, filter TaskFilter) ([]*domain.Task, error)

	// CountTasks counts tasks matching filter.
	CountTasks(ctx context.Context, filter TaskFilter) (int64, error)

	// LatestTaskWithPrefix returns the newest task owned by occurrenceID whose id
	// starts with prefix and that was created at or after since. Nil when none.
	LatestTaskWithPrefix(ctx context.Context, prefix, occurrenceID string, since time.Time) (*domain.Task, error)

	// TasksWithoutThoughts returns tasks owned by occurrenceID in status that
	// have no thoughts yet.
	TasksWithoutThoughts(ctx context.Context, occurrenceID string, status constants.TaskStatus, limit int) ([]*domain.Task, error)

	// DeleteTask removes the task owned by occurrenceID.
	DeleteTask(ctx context.Context, taskID, occurrenceID string) error
}

// ThoughtStore persists thoughts.
type ThoughtStore interface {
	AddThought(ctx context.Context, thought *domain.Thought) error
	GetThoughtByID(ctx context.Context, thoughtID, occurrenceID string) (*domain.Thought, error)
	GetThoughtsByTaskID(ctx context.Context, taskID, occurrenceID string) ([]*domain.Thought, error)

	// UpdateThoughtStatus changes status without touching the final action.
	UpdateThoughtStatus(ctx context.Context, thoughtID string, status constants.ThoughtStatus, occurrenceID string, clk clock.Clock) error

	// FinalizeThought records the final action together with a terminal status.
	// A thought that already has a final action yields errors.ErrFinalActionAlreadySet.
	FinalizeThought(ctx context.Context, thoughtID, occurrenceID string, status constants.ThoughtStatus, action *domain.FinalAction, clk clock.Clock) error

	// ListThoughts returns thoughts matching filter, oldest first.
	ListThoughts(ctx context.Context, filter ThoughtFilter) ([]*domain.Thought, error)

	// CountThoughts counts thoughts matching filter.
	CountThoughts(ctx context.Context, filter ThoughtFilter) (int64, error)

	// OrphanThoughts returns thoughts whose source task no longer exists and
	// that were created before the cutoff.
	OrphanThoughts(ctx context.Context, createdBefore time.Time) ([]*domain.Thought, error)

	// TransferThoughtOwnership moves a thought from one occurrence to another.
	TransferThoughtOwnership(ctx context.Context, thoughtID, fromOccurrenceID, toOccurrenceID string, clk clock.Clock) error

	// DeleteThought removes the thought owned by occurrenceID.
	DeleteThought(ctx context.Context, thoughtID, occurrenceID string) error
}

// CorrelationStore persists correlations.
type CorrelationStore interface {
	AddCorrelation(ctx context.Context, corr *domain.Correlation) error
	GetCorrelation(ctx context.Context, correlationID string) (*domain.Correlation, error)
}

// TaskFilter narrows ListTasks and CountTasks. Zero fields do not filter.
type TaskFilter struct {
	// OccurrenceID restricts to one owner.
	OccurrenceID string

	// ExcludeOccurrenceID skips one owner (typically the shared sentinel).
	ExcludeOccurrenceID string

	Statuses      []constants.TaskStatus
	ParentTaskID  string
	CreatedBefore time.Time
	UpdatedBefore time.Time
	Limit         int
}

// ThoughtFilter narrows ListThoughts and CountThoughts. Zero fields do not filter.
type ThoughtFilter struct {
	OccurrenceID string
	SourceTaskID string
	Statuses     []constants.ThoughtStatus
	Limit        int
}

// SQLStore is the gorm/sqlite implementation of Store.
type SQLStore struct {
	db     *gorm.DB
	clock  clock.Clock
	logger zerolog.Logger
}

// Ensure SQLStore implements Store.
var _ Store = (*SQLStore)(nil)

// Close releases the underlying database handle.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping verifies the database is reachable.
func (s *SQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *SQLStore) now(clk clock.Clock) time.Time {
	if clk != nil {
		return clk.Now()
	}
	return s.clock.Now()
}
