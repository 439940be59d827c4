package contracts

import (
	"context"

	"github.com/mrz1836/cortex/internal/domain"
)

// ContextBuilder assembles the context a thought is decided in. It runs in the
// build_context stage. The scheduler corrects the returned occurrence id, task
// id, round and depth from the thought itself.
type ContextBuilder interface {
	Build(ctx context.Context, thought *domain.Thought, task *domain.Task) (*domain.ThoughtContext, error)
}

// DecisionMaker is the decision layer. EvaluateThought runs in the
// perform_dmas stage and SelectAction in perform_aspdma. The scheduler never
// inspects how the action was chosen.
type DecisionMaker interface {
	EvaluateThought(ctx context.Context, thought *domain.Thought, thoughtCtx *domain.ThoughtContext) (*domain.DMAResults, error)
	SelectAction(ctx context.Context, thought *domain.Thought, thoughtCtx *domain.ThoughtContext, results *domain.DMAResults) (*domain.FinalAction, error)
}

// ActionHandler performs the side effect of a selected action. It runs between
// handler_start and handler_complete. A result with Success false, or an
// error, fails the thought.
type ActionHandler interface {
	Handle(ctx context.Context, thought *domain.Thought, action *domain.FinalAction) (*domain.HandlerResult, error)
}

// ActionHandlerFunc adapts a function to ActionHandler.
type ActionHandlerFunc func(ctx context.Context, thought *domain.Thought, action *domain.FinalAction) (*domain.HandlerResult, error)

// Handle calls f.
func (f ActionHandlerFunc) Handle(ctx context.Context, thought *domain.Thought, action *domain.FinalAction) (*domain.HandlerResult, error) {
	return f(ctx, thought, action)
}

// ThoughtProcessor drives one thought through the whole pipeline and returns
// the action it settled on. Lifecycle rituals use it to process their step
// thoughts outside the main loop.
type ThoughtProcessor interface {
	ProcessThought(ctx context.Context, thought *domain.Thought) (*domain.FinalAction, error)
}
