// Package handlers provides the action handler registry and the logging
// handlers used by the run command.
package handlers

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mrz1836/cortex/internal/constants"
	"github.com/mrz1836/cortex/internal/contracts"
	"github.com/mrz1836/cortex/internal/domain"
	"github.com/mrz1836/cortex/internal/errors"
)

// Registry maps action types to their handlers.
// It provides thread-safe registration and lookup of handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[constants.ActionType]contracts.ActionHandler
}

// NewRegistry creates a new empty handler registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[constants.ActionType]contracts.ActionHandler),
	}
}

// Register adds a handler for an action type.
// If a handler already exists for the action, it is replaced.
func (r *Registry) Register(action constants.ActionType, h contracts.ActionHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[action] = h
}

// Get retrieves the handler for an action type.
// Returns ErrNoHandler if none is registered.
func (r *Registry) Get(action constants.ActionType) (contracts.ActionHandler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[action]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrNoHandler, action)
	}
	return h, nil
}

// Has checks if a handler is registered for the action.
func (r *Registry) Has(action constants.ActionType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[action]
	return ok
}

// Actions returns all registered action types, sorted.
func (r *Registry) Actions() []constants.ActionType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	actions := make([]constants.ActionType, 0, len(r.handlers))
	for a := range r.handlers {
		actions = append(actions, a)
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
	return actions
}

// Handle dispatches to the handler registered for the action type.
func (r *Registry) Handle(ctx context.Context, thought *domain.Thought, action *domain.FinalAction) (*domain.HandlerResult, error) {
	if action == nil {
		return nil, fmt.Errorf("failed to dispatch action: action %w", errors.ErrEmptyValue)
	}
	h, err := r.Get(action.ActionType)
	if err != nil {
		return nil, err
	}
	return h.Handle(ctx, thought, action)
}

// Compile-time check that Registry implements ActionHandler.
var _ contracts.ActionHandler = (*Registry)(nil)
