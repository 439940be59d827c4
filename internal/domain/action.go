package domain

import "github.com/mrz1836/cortex/internal/constants"

// FinalAction is the decision reached for a thought.
type FinalAction struct {
	ActionType   constants.ActionType `json:"action_type"`
	ActionParams map[string]string    `json:"action_params,omitempty"`
	Confidence   float64              `json:"confidence"`
	Reasoning    string               `json:"reasoning,omitempty"`
}

// Param returns the named parameter or fallback when it is missing or empty.
func (a *FinalAction) Param(name, fallback string) string {
	if a == nil || a.ActionParams == nil {
		return fallback
	}
	if v := a.ActionParams[name]; v != "" {
		return v
	}
	return fallback
}

// DMAResults is the opaque output of the perform_dmas stage, handed to
// action selection. The scheduler never inspects it.
type DMAResults struct {
	// Summaries holds one free-form summary per evaluator.
	Summaries map[string]string `json:"summaries,omitempty"`
}

// HandlerResult is what an action handler reports back to the scheduler.
type HandlerResult struct {
	// Success decides whether the thought ends COMPLETED or FAILED.
	Success bool `json:"success"`

	// FollowUpContent, when non-empty, asks the scheduler to create a follow-up thought.
	FollowUpContent string `json:"follow_up_content,omitempty"`

	// Message is a short description for logs.
	Message string `json:"message,omitempty"`
}
