// Package decision provides a deterministic decision maker. It picks actions
// from thought content and lineage so the scheduler can be driven end to end
// without a model behind it.
package decision

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mrz1836/cortex/internal/constants"
	"github.com/mrz1836/cortex/internal/contracts"
	"github.com/mrz1836/cortex/internal/coordination"
	"github.com/mrz1836/cortex/internal/domain"
	"github.com/mrz1836/cortex/internal/errors"
)

// Content directives. A thought whose content contains one of these gets the
// matching action.
const (
	DirectiveReject   = "[reject]"
	DirectiveDefer    = "[defer]"
	DirectivePonder   = "[ponder]"
	DirectiveComplete = "[complete]"
	DirectiveFail     = "[fail]"
)

// Rule maps matching thoughts to an action.
type Rule struct {
	Name   string
	Match  func(*domain.Thought) bool
	Action constants.ActionType
}

// Option configures a Scripted decision maker.
type Option func(*Scripted)

// WithRules puts rules ahead of the built-in ones.
func WithRules(rules ...Rule) Option {
	return func(s *Scripted) {
		s.rules = append(append([]Rule{}, rules...), s.rules...)
	}
}

// Scripted is a rule-based contracts.DecisionMaker. The first matching rule
// wins; a thought that matches nothing speaks if it is a seed and completes
// its task otherwise.
type Scripted struct {
	rules  []Rule
	logger zerolog.Logger
}

// NewScripted creates a Scripted decision maker with the built-in rules.
func NewScripted(logger zerolog.Logger, opts ...Option) *Scripted {
	s := &Scripted{
		rules:  defaultRules(),
		logger: logger.With().Str("component", "decision").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func contains(directive string) func(*domain.Thought) bool {
	return func(t *domain.Thought) bool {
		return strings.Contains(strings.ToLower(t.Content), directive)
	}
}

func defaultRules() []Rule {
	shutdownPrefix := coordination.SharedTaskPrefix(constants.ShutdownTaskType)
	return []Rule{
		{Name: "reject directive", Match: contains(DirectiveReject), Action: constants.ActionReject},
		{Name: "defer directive", Match: contains(DirectiveDefer), Action: constants.ActionDefer},
		{Name: "ponder directive", Match: contains(DirectivePonder), Action: constants.ActionPonder},
		{Name: "complete directive", Match: contains(DirectiveComplete), Action: constants.ActionTaskComplete},
		{
			Name:   "shutdown consent",
			Match:  func(t *domain.Thought) bool { return strings.HasPrefix(t.SourceTaskID, shutdownPrefix) },
			Action: constants.ActionTaskComplete,
		},
		{
			Name:   "wakeup step",
			Match:  func(t *domain.Thought) bool { return coordination.IsRitualTaskID(t.SourceTaskID) },
			Action: constants.ActionSpeak,
		},
		{
			Name:   "follow-up",
			Match:  func(t *domain.Thought) bool { return t.ParentThoughtID != "" },
			Action: constants.ActionTaskComplete,
		},
	}
}

// EvaluateThought implements contracts.DecisionMaker. A [fail] directive
// makes it return ErrDecisionFailed.
func (s *Scripted) EvaluateThought(ctx context.Context, thought *domain.Thought, thoughtCtx *domain.ThoughtContext) (*domain.DMAResults, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if thought == nil {
		return nil, fmt.Errorf("failed to evaluate thought: thought %w", errors.ErrEmptyValue)
	}
	if strings.Contains(strings.ToLower(thought.Content), DirectiveFail) {
		return nil, fmt.Errorf("thought %s: %w: scripted failure", thought.ThoughtID, errors.ErrDecisionFailed)
	}

	round := thought.RoundNumber
	if thoughtCtx != nil {
		round = thoughtCtx.RoundNumber
	}
	return &domain.DMAResults{Summaries: map[string]string{
		"ethical":      "no concerns",
		"common_sense": "plausible",
		"domain":       fmt.Sprintf("round %d depth %d", round, thought.ThoughtDepth),
	}}, nil
}

// SelectAction implements contracts.DecisionMaker.
func (s *Scripted) SelectAction(ctx context.Context, thought *domain.Thought, _ *domain.ThoughtContext, _ *domain.DMAResults) (*domain.FinalAction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if thought == nil {
		return nil, fmt.Errorf("failed to select action: thought %w", errors.ErrEmptyValue)
	}

	rule := Rule{Name: "seed", Action: constants.ActionSpeak}
	for _, r := range s.rules {
		if r.Match != nil && r.Match(thought) {
			rule = r
			break
		}
	}

	action := &domain.FinalAction{
		ActionType: rule.Action,
		Confidence: 1,
		Reasoning:  "scripted: " + rule.Name,
	}
	switch rule.Action {
	case constants.ActionSpeak:
		action.ActionParams = map[string]string{"content": thought.Content}
	case constants.ActionReject:
		action.ActionParams = map[string]string{"reason": "content asked for rejection"}
	case constants.ActionDefer:
		action.ActionParams = map[string]string{"reason": "content asked for human input"}
	case constants.ActionPonder:
		action.ActionParams = map[string]string{"questions": "What else should be considered?"}
	case constants.ActionObserve, constants.ActionMemorize, constants.ActionRecall,
		constants.ActionForget, constants.ActionTool, constants.ActionTaskComplete:
	}

	s.logger.Debug().
		Str("thought_id", thought.ThoughtID).
		Str("action", action.ActionType.String()).
		Str("rule", rule.Name).
		Msg("action selected")
	return action, nil
}

// Compile-time check that Scripted implements DecisionMaker.
var _ contracts.DecisionMaker = (*Scripted)(nil)
