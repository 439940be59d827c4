package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mrz1836/cortex/internal/clock"
	"github.com/mrz1836/cortex/internal/constants"
	"github.com/mrz1836/cortex/internal/domain"
	"github.com/mrz1836/cortex/internal/errors"
)

func validateThoughtKey(op, thoughtID, occurrenceID string) error {
	if thoughtID == "" {
		return fmt.Errorf("failed to %s: thought ID %w", op, errors.ErrEmptyValue)
	}
	if occurrenceID == "" {
		return fmt.Errorf("failed to %s: %w", op, errors.ErrMissingOccurrenceID)
	}
	return nil
}

// AddThought inserts a new thought.
func (s *SQLStore) AddThought(ctx context.Context, thought *domain.Thought) error {
	if thought == nil {
		return fmt.Errorf("failed to add thought: thought %w", errors.ErrEmptyValue)
	}
	if err := validateThoughtKey("add thought", thought.ThoughtID, thought.AgentOccurrenceID); err != nil {
		return err
	}
	if thought.SourceTaskID == "" {
		return fmt.Errorf("failed to add thought: source task ID %w", errors.ErrEmptyValue)
	}
	row, err := toThoughtRow(thought)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return errors.Wrapf(err, "failed to add thought %s", thought.ThoughtID)
	}
	return nil
}

// GetThoughtByID returns the thought owned by occurrenceID.
func (s *SQLStore) GetThoughtByID(ctx context.Context, thoughtID, occurrenceID string) (*domain.Thought, error) {
	if err := validateThoughtKey("get thought", thoughtID, occurrenceID); err != nil {
		return nil, err
	}
	var row thoughtRow
	err := s.db.WithContext(ctx).
		Where("thought_id = ? AND agent_occurrence_id = ?", thoughtID, occurrenceID).
		Take(&row).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s (occurrence %s)", errors.ErrThoughtNotFound, thoughtID, occurrenceID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get thought %s", thoughtID)
	}
	return fromThoughtRow(&row)
}

// GetThoughtsByTaskID returns the task's thoughts owned by occurrenceID, oldest first.
func (s *SQLStore) GetThoughtsByTaskID(ctx context.Context, taskID, occurrenceID string) ([]*domain.Thought, error) {
	if err := validateTaskKey("list thoughts", taskID, occurrenceID); err != nil {
		return nil, err
	}
	return s.ListThoughts(ctx, ThoughtFilter{SourceTaskID: taskID, OccurrenceID: occurrenceID})
}

// UpdateThoughtStatus changes status without touching the final action.
func (s *SQLStore) UpdateThoughtStatus(ctx context.Context, thoughtID string, status constants.ThoughtStatus, occurrenceID string, clk clock.Clock) error {
	if err := validateThoughtKey("update thought", thoughtID, occurrenceID); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&thoughtRow{}).
		Where("thought_id = ? AND agent_occurrence_id = ?", thoughtID, occurrenceID).
		Updates(map[string]any{
			"status":     string(status),
			"updated_at": toUnix(s.now(clk)),
		})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "failed to update thought %s", thoughtID)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s (occurrence %s)", errors.ErrThoughtNotFound, thoughtID, occurrenceID)
	}
	return nil
}

// FinalizeThought writes the final action and terminal status in one conditional
// update. The condition on an empty final_action_json makes the write happen once.
func (s *SQLStore) FinalizeThought(ctx context.Context, thoughtID, occurrenceID string, status constants.ThoughtStatus, action *domain.FinalAction, clk clock.Clock) error {
	if err := validateThoughtKey("finalize thought", thoughtID, occurrenceID); err != nil {
		return err
	}
	if action == nil {
		return fmt.Errorf("failed to finalize thought: final action %w", errors.ErrEmptyValue)
	}
	actionJSON, err := marshalOptional(action)
	if err != nil {
		return errors.Wrap(err, "failed to encode final action")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&thoughtRow{}).
			Where("thought_id = ? AND agent_occurrence_id = ? AND final_action_json = ''", thoughtID, occurrenceID).
			Updates(map[string]any{
				"status":            string(status),
				"final_action_json": actionJSON,
				"updated_at":        toUnix(s.now(clk)),
			})
		if res.Error != nil {
			return errors.Wrapf(res.Error, "failed to finalize thought %s", thoughtID)
		}
		if res.RowsAffected == 1 {
			return nil
		}

		var n int64
		if err := tx.Model(&thoughtRow{}).
			Where("thought_id = ? AND agent_occurrence_id = ?", thoughtID, occurrenceID).
			Count(&n).Error; err != nil {
			return errors.Wrapf(err, "failed to finalize thought %s", thoughtID)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s (occurrence %s)", errors.ErrThoughtNotFound, thoughtID, occurrenceID)
		}
		return fmt.Errorf("%w: %s", errors.ErrFinalActionAlreadySet, thoughtID)
	})
}

func (s *SQLStore) thoughtQuery(ctx context.Context, filter ThoughtFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&thoughtRow{})
	if filter.OccurrenceID != "" {
		q = q.Where("agent_occurrence_id = ?", filter.OccurrenceID)
	}
	if filter.SourceTaskID != "" {
		q = q.Where("source_task_id = ?", filter.SourceTaskID)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", thoughtStatusStrings(filter.Statuses))
	}
	return q
}

// ListThoughts returns thoughts matching filter, oldest first.
func (s *SQLStore) ListThoughts(ctx context.Context, filter ThoughtFilter) ([]*domain.Thought, error) {
	q := s.thoughtQuery(ctx, filter).Order("created_at ASC").Order("thought_id ASC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var rows []thoughtRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list thoughts")
	}
	return thoughtsFromRows(rows)
}

// CountThoughts counts thoughts matching filter.
func (s *SQLStore) CountThoughts(ctx context.Context, filter ThoughtFilter) (int64, error) {
	var n int64
	if err := s.thoughtQuery(ctx, filter).Count(&n).Error; err != nil {
		return 0, errors.Wrap(err, "failed to count thoughts")
	}
	return n, nil
}

// OrphanThoughts returns thoughts whose source task is gone, created before the cutoff.
func (s *SQLStore) OrphanThoughts(ctx context.Context, createdBefore time.Time) ([]*domain.Thought, error) {
	var rows []thoughtRow
	err := s.db.WithContext(ctx).
		Where("created_at < ?", toUnix(createdBefore)).
		Where("NOT EXISTS (SELECT 1 FROM tasks t WHERE t.task_id = thoughts.source_task_id)").
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list orphan thoughts")
	}
	return thoughtsFromRows(rows)
}

// TransferThoughtOwnership moves a thought between occurrences. The context's
// occurrence id is rewritten too so it never disagrees with the row.
func (s *SQLStore) TransferThoughtOwnership(ctx context.Context, thoughtID, fromOccurrenceID, toOccurrenceID string, clk clock.Clock) error {
	if err := validateThoughtKey("transfer thought", thoughtID, fromOccurrenceID); err != nil {
		return err
	}
	if toOccurrenceID == "" {
		return fmt.Errorf("failed to transfer thought: target %w", errors.ErrMissingOccurrenceID)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row thoughtRow
		err := tx.Where("thought_id = ? AND agent_occurrence_id = ?", thoughtID, fromOccurrenceID).Take(&row).Error
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s (occurrence %s)", errors.ErrThoughtNotFound, thoughtID, fromOccurrenceID)
		}
		if err != nil {
			return errors.Wrapf(err, "failed to load thought %s", thoughtID)
		}

		thought, err := fromThoughtRow(&row)
		if err != nil {
			return err
		}
		fields := map[string]any{
			"agent_occurrence_id": toOccurrenceID,
			"updated_at":          toUnix(s.now(clk)),
		}
		if thought.Context != nil {
			thought.Context.AgentOccurrenceID = toOccurrenceID
			contextJSON, err := marshalOptional(thought.Context)
			if err != nil {
				return errors.Wrap(err, "failed to encode thought context")
			}
			fields["context_json"] = contextJSON
		}

		return tx.Model(&thoughtRow{}).
			Where("thought_id = ? AND agent_occurrence_id = ?", thoughtID, fromOccurrenceID).
			Updates(fields).Error
	})
}

// DeleteThought removes the thought owned by occurrenceID.
func (s *SQLStore) DeleteThought(ctx context.Context, thoughtID, occurrenceID string) error {
	if err := validateThoughtKey("delete thought", thoughtID, occurrenceID); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).
		Where("thought_id = ? AND agent_occurrence_id = ?", thoughtID, occurrenceID).
		Delete(&thoughtRow{})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "failed to delete thought %s", thoughtID)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s (occurrence %s)", errors.ErrThoughtNotFound, thoughtID, occurrenceID)
	}
	return nil
}

func thoughtsFromRows(rows []thoughtRow) ([]*domain.Thought, error) {
	thoughts := make([]*domain.Thought, 0, len(rows))
	for i := range rows {
		t, err := fromThoughtRow(&rows[i])
		if err != nil {
			return nil, err
		}
		thoughts = append(thoughts, t)
	}
	return thoughts, nil
}
