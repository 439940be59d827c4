package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrz1836/cortex/internal/clock"
	"github.com/mrz1836/cortex/internal/constants"
	"github.com/mrz1836/cortex/internal/domain"
	"github.com/mrz1836/cortex/internal/errors"
)

func validateTaskKey(op, taskID, occurrenceID string) error {
	if taskID == "" {
		return fmt.Errorf("failed to %s: task ID %w", op, errors.ErrEmptyValue)
	}
	if occurrenceID == "" {
		return fmt.Errorf("failed to %s: %w", op, errors.ErrMissingOccurrenceID)
	}
	return nil
}

// AddTask inserts a new task.
func (s *SQLStore) AddTask(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return fmt.Errorf("failed to add task: task %w", errors.ErrEmptyValue)
	}
	if err := validateTaskKey("add task", task.TaskID, task.AgentOccurrenceID); err != nil {
		return err
	}
	row, err := toTaskRow(task)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return errors.Wrapf(err, "failed to add task %s", task.TaskID)
	}
	return nil
}

// InsertTaskIfAbsent is the claim primitive: INSERT ... ON CONFLICT DO NOTHING
// on the task_id primary key. RowsAffected tells the caller whether it won.
func (s *SQLStore) InsertTaskIfAbsent(ctx context.Context, task *domain.Task) (bool, error) {
	if task == nil {
		return false, fmt.Errorf("failed to claim task: task %w", errors.ErrEmptyValue)
	}
	if err := validateTaskKey("claim task", task.TaskID, task.AgentOccurrenceID); err != nil {
		return false, err
	}
	row, err := toTaskRow(task)
	if err != nil {
		return false, err
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "task_id"}},
		DoNothing: true,
	}).Create(row)
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "failed to claim task %s", task.TaskID)
	}
	return res.RowsAffected == 1, nil
}

// GetTaskByID returns the task owned by occurrenceID.
func (s *SQLStore) GetTaskByID(ctx context.Context, taskID, occurrenceID string) (*domain.Task, error) {
	if err := validateTaskKey("get task", taskID, occurrenceID); err != nil {
		return nil, err
	}
	var row taskRow
	err := s.db.WithContext(ctx).
		Where("task_id = ? AND agent_occurrence_id = ?", taskID, occurrenceID).
		Take(&row).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s (occurrence %s)", errors.ErrTaskNotFound, taskID, occurrenceID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get task %s", taskID)
	}
	return fromTaskRow(&row)
}

// GetTaskByCorrelationID returns the newest task owned by occurrenceID with correlationID.
func (s *SQLStore) GetTaskByCorrelationID(ctx context.Context, correlationID, occurrenceID string) (*domain.Task, error) {
	if correlationID == "" {
		return nil, fmt.Errorf("failed to get task: correlation ID %w", errors.ErrEmptyValue)
	}
	if occurrenceID == "" {
		return nil, fmt.Errorf("failed to get task: %w", errors.ErrMissingOccurrenceID)
	}
	var row taskRow
	err := s.db.WithContext(ctx).
		Where("correlation_id = ? AND agent_occurrence_id = ?", correlationID, occurrenceID).
		Order("created_at DESC").
		Take(&row).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: correlation %s", errors.ErrTaskNotFound, correlationID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get task for correlation %s", correlationID)
	}
	return fromTaskRow(&row)
}

// settledTaskStatuses are never left once stored.
//
//nolint:gochecknoglobals // Read-only lookup list
var settledTaskStatuses = []string{
	string(constants.TaskStatusCompleted),
	string(constants.TaskStatusFailed),
	string(constants.TaskStatusRejected),
}

// UpdateTaskStatus sets the status of the task owned by occurrenceID unless it
// is already settled.
func (s *SQLStore) UpdateTaskStatus(ctx context.Context, taskID string, status constants.TaskStatus, occurrenceID string, clk clock.Clock) error {
	if err := validateTaskKey("update task", taskID, occurrenceID); err != nil {
		return err
	}
	return s.updateTask(ctx, taskID, occurrenceID, "", status, map[string]any{
		"status":     string(status),
		"updated_at": toUnix(s.now(clk)),
	})
}

// TransitionTaskStatus sets the status only while the stored one is still from.
func (s *SQLStore) TransitionTaskStatus(ctx context.Context, taskID, occurrenceID string, from, to constants.TaskStatus, clk clock.Clock) error {
	if err := validateTaskKey("transition task", taskID, occurrenceID); err != nil {
		return err
	}
	if from == "" {
		return fmt.Errorf("failed to transition task %s: from status %w", taskID, errors.ErrEmptyValue)
	}
	return s.updateTask(ctx, taskID, occurrenceID, from, to, map[string]any{
		"status":     string(to),
		"updated_at": toUnix(s.now(clk)),
	})
}

// UpdateTaskOutcome sets status and outcome in one statement.
func (s *SQLStore) UpdateTaskOutcome(ctx context.Context, taskID, occurrenceID string, from constants.TaskStatus, outcome *domain.TaskOutcome, clk clock.Clock) error {
	if err := validateTaskKey("update task outcome", taskID, occurrenceID); err != nil {
		return err
	}
	if outcome == nil {
		return fmt.Errorf("failed to update task outcome: outcome %w", errors.ErrEmptyValue)
	}
	outcomeJSON, err := marshalOptional(outcome)
	if err != nil {
		return errors.Wrap(err, "failed to encode task outcome")
	}
	return s.updateTask(ctx, taskID, occurrenceID, from, outcome.Status, map[string]any{
		"status":       string(outcome.Status),
		"outcome_json": outcomeJSON,
		"updated_at":   toUnix(s.now(clk)),
	})
}

// updateTask writes fields in a single conditional UPDATE. With from set the
// row must still hold that status; otherwise it must not be settled. When no
// row matches, the current row decides between ErrTaskNotFound and
// ErrInvalidTransition.
func (s *SQLStore) updateTask(ctx context.Context, taskID, occurrenceID string, from, to constants.TaskStatus, fields map[string]any) error {
	q := s.db.WithContext(ctx).Model(&taskRow{}).
		Where("task_id = ? AND agent_occurrence_id = ?", taskID, occurrenceID)
	if from != "" {
		q = q.Where("status = ?", string(from))
	} else {
		q = q.Where("status NOT IN ?", settledTaskStatuses)
	}
	res := q.Updates(fields)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "failed to update task %s", taskID)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var current taskRow
	err := s.db.WithContext(ctx).
		Select("status").
		Where("task_id = ? AND agent_occurrence_id = ?", taskID, occurrenceID).
		Take(&current).Error
	switch {
	case stderrors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %s (occurrence %s)", errors.ErrTaskNotFound, taskID, occurrenceID)
	case err != nil:
		return errors.Wrapf(err, "failed to read task %s", taskID)
	}
	s.logger.Debug().
		Str("task_id", taskID).
		Str("status", current.Status).
		Str("to", to.String()).
		Msg("stale task status update refused")
	return fmt.Errorf("%w: task %s is %s, cannot move to %s", errors.ErrInvalidTransition, taskID, current.Status, to)
}

func (s *SQLStore) taskQuery(ctx context.Context, filter TaskFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&taskRow{})
	if filter.OccurrenceID != "" {
		q = q.Where("agent_occurrence_id = ?", filter.OccurrenceID)
	}
	if filter.ExcludeOccurrenceID != "" {
		q = q.Where("agent_occurrence_id <> ?", filter.ExcludeOccurrenceID)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", taskStatusStrings(filter.Statuses))
	}
	if filter.ParentTaskID != "" {
		q = q.Where("parent_task_id = ?", filter.ParentTaskID)
	}
	if !filter.CreatedBefore.IsZero() {
		q = q.Where("created_at < ?", toUnix(filter.CreatedBefore))
	}
	if !filter.UpdatedBefore.IsZero() {
		q = q.Where("updated_at < ?", toUnix(filter.UpdatedBefore))
	}
	return q
}

// ListTasks returns tasks matching filter, highest priority first then oldest.
func (s *SQLStore) ListTasks(ctx context.Context, filter TaskFilter) ([]*domain.Task, error) {
	q := s.taskQuery(ctx, filter).Order("priority DESC").Order("created_at ASC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var rows []taskRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list tasks")
	}
	return tasksFromRows(rows)
}

// CountTasks counts tasks matching filter.
func (s *SQLStore) CountTasks(ctx context.Context, filter TaskFilter) (int64, error) {
	var n int64
	if err := s.taskQuery(ctx, filter).Count(&n).Error; err != nil {
		return 0, errors.Wrap(err, "failed to count tasks")
	}
	return n, nil
}

// LatestTaskWithPrefix returns the newest matching task or nil.
func (s *SQLStore) LatestTaskWithPrefix(ctx context.Context, prefix, occurrenceID string, since time.Time) (*domain.Task, error) {
	if prefix == "" {
		return nil, fmt.Errorf("failed to find task: prefix %w", errors.ErrEmptyValue)
	}
	if occurrenceID == "" {
		return nil, fmt.Errorf("failed to find task: %w", errors.ErrMissingOccurrenceID)
	}
	var rows []taskRow
	err := s.db.WithContext(ctx).
		Where("agent_occurrence_id = ? AND substr(task_id, 1, ?) = ? AND created_at >= ?", occurrenceID, len(prefix), prefix, toUnix(since)).
		Order("created_at DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrapf(err, "failed to find task with prefix %s", prefix)
	}
	if len(rows) == 0 {
		return nil, nil //nolint:nilnil // absence is a normal answer here
	}
	return fromTaskRow(&rows[0])
}

// TasksWithoutThoughts returns tasks in status that have no thoughts yet.
func (s *SQLStore) TasksWithoutThoughts(ctx context.Context, occurrenceID string, status constants.TaskStatus, limit int) ([]*domain.Task, error) {
	if occurrenceID == "" {
		return nil, fmt.Errorf("failed to list tasks: %w", errors.ErrMissingOccurrenceID)
	}
	q := s.db.WithContext(ctx).
		Where("tasks.agent_occurrence_id = ? AND tasks.status = ?", occurrenceID, string(status)).
		Where("NOT EXISTS (SELECT 1 FROM thoughts th WHERE th.source_task_id = tasks.task_id AND th.agent_occurrence_id = tasks.agent_occurrence_id)").
		Order("priority DESC").
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []taskRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list tasks needing thoughts")
	}
	return tasksFromRows(rows)
}

// DeleteTask removes the task owned by occurrenceID.
func (s *SQLStore) DeleteTask(ctx context.Context, taskID, occurrenceID string) error {
	if err := validateTaskKey("delete task", taskID, occurrenceID); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).
		Where("task_id = ? AND agent_occurrence_id = ?", taskID, occurrenceID).
		Delete(&taskRow{})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "failed to delete task %s", taskID)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s (occurrence %s)", errors.ErrTaskNotFound, taskID, occurrenceID)
	}
	return nil
}

func tasksFromRows(rows []taskRow) ([]*domain.Task, error) {
	tasks := make([]*domain.Task, 0, len(rows))
	for i := range rows {
		t, err := fromTaskRow(&rows[i])
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}
