package store

import (
	"context"
	stderrors "errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/mrz1836/cortex/internal/domain"
	"github.com/mrz1836/cortex/internal/errors"
)

// AddCorrelation records a correlation. Re-adding the same id is an error.
func (s *SQLStore) AddCorrelation(ctx context.Context, corr *domain.Correlation) error {
	if corr == nil || corr.CorrelationID == "" {
		return fmt.Errorf("failed to add correlation: correlation ID %w", errors.ErrEmptyValue)
	}
	if corr.AgentOccurrenceID == "" {
		return fmt.Errorf("failed to add correlation: %w", errors.ErrMissingOccurrenceID)
	}
	createdAt := corr.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.clock.Now()
	}
	row := &correlationRow{
		CorrelationID:     corr.CorrelationID,
		TaskID:            corr.TaskID,
		ChannelID:         corr.ChannelID,
		AgentOccurrenceID: corr.AgentOccurrenceID,
		RequestType:       corr.RequestType,
		Status:            corr.Status,
		CreatedAt:         toUnix(createdAt),
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return errors.Wrapf(err, "failed to add correlation %s", corr.CorrelationID)
	}
	return nil
}

// GetCorrelation returns the correlation with the given id.
func (s *SQLStore) GetCorrelation(ctx context.Context, correlationID string) (*domain.Correlation, error) {
	if correlationID == "" {
		return nil, fmt.Errorf("failed to get correlation: correlation ID %w", errors.ErrEmptyValue)
	}
	var row correlationRow
	err := s.db.WithContext(ctx).Where("correlation_id = ?", correlationID).Take(&row).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", errors.ErrCorrelationNotFound, correlationID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get correlation %s", correlationID)
	}
	return &domain.Correlation{
		CorrelationID:     row.CorrelationID,
		TaskID:            row.TaskID,
		ChannelID:         row.ChannelID,
		AgentOccurrenceID: row.AgentOccurrenceID,
		RequestType:       row.RequestType,
		Status:            row.Status,
		CreatedAt:         fromUnix(row.CreatedAt),
	}, nil
}
