package cli

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/cortex/internal/constants"
	"github.com/mrz1836/cortex/internal/pipeline"
	"github.com/mrz1836/cortex/internal/processor"
)

// logMetrics reports processor metrics as debug log events.
type logMetrics struct {
	logger zerolog.Logger
}

var _ processor.Metrics = (*logMetrics)(nil)

func newLogMetrics(logger zerolog.Logger) *logMetrics {
	return &logMetrics{logger: logger.With().Str("component", "metrics").Logger()}
}

func (m *logMetrics) RoundCompleted(round, processed int, duration time.Duration) {
	if processed == 0 {
		return
	}
	m.logger.Debug().
		Int("round", round).
		Int("processed", processed).
		Dur("duration", duration).
		Msg("round completed")
}

func (m *logMetrics) ThoughtProcessed(thoughtID string, action constants.ActionType, status constants.ThoughtStatus, duration time.Duration) {
	m.logger.Debug().
		Str("thought_id", thoughtID).
		Str("action", action.String()).
		Str("status", status.String()).
		Dur("duration", duration).
		Msg("thought processed")
}

func (m *logMetrics) StageEntered(thoughtID string, stage pipeline.Stage) {
	m.logger.Trace().Str("thought_id", thoughtID).Str("stage", stage.String()).Msg("stage entered")
}
