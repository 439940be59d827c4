package handlers

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mrz1836/cortex/internal/constants"
	"github.com/mrz1836/cortex/internal/domain"
	"github.com/mrz1836/cortex/internal/logging"
)

// LoggingHandler records the action in the log and reports success. SPEAK asks
// for a follow-up so the task gets a chance to decide it is done.
type LoggingHandler struct {
	logger zerolog.Logger
}

// NewLoggingHandler creates a LoggingHandler.
func NewLoggingHandler(logger zerolog.Logger) *LoggingHandler {
	return &LoggingHandler{logger: logger.With().Str("component", "action_handler").Logger()}
}

// Handle implements contracts.ActionHandler.
func (h *LoggingHandler) Handle(ctx context.Context, thought *domain.Thought, action *domain.FinalAction) (*domain.HandlerResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.logger.Info().
		Str("thought_id", thought.ThoughtID).
		Str("task_id", thought.SourceTaskID).
		Str("action", action.ActionType.String()).
		Float64("confidence", action.Confidence).
		Str("content", logging.Preview(action.Param("content", thought.Content), 0)).
		Str("reasoning", logging.Preview(action.Reasoning, 0)).
		Msg("action handled")

	if e := h.logger.Debug(); e.Enabled() && len(action.ActionParams) > 0 {
		params := zerolog.Dict()
		for k, v := range action.ActionParams {
			params.Str(k, logging.SafeValue(k, v))
		}
		e.Str("thought_id", thought.ThoughtID).Dict("params", params).Msg("action parameters")
	}

	res := &domain.HandlerResult{
		Success: true,
		Message: fmt.Sprintf("%s handled", action.ActionType),
	}
	if action.ActionType == constants.ActionSpeak {
		res.FollowUpContent = fmt.Sprintf("Spoke on task %s: %q. Is the task complete?",
			thought.SourceTaskID, action.Param("content", thought.Content))
	}
	return res, nil
}

// NewDefaultRegistry returns a registry with a logging handler for every
// non-terminal action. Terminal actions are settled by the processor itself.
func NewDefaultRegistry(logger zerolog.Logger) *Registry {
	r := NewRegistry()
	h := NewLoggingHandler(logger)
	for _, a := range constants.AllActionTypes() {
		if a.IsTerminal() {
			continue
		}
		r.Register(a, h)
	}
	return r
}
