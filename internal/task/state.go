// Package task provides the task and thought lifecycle for CORTEX.
//
// This file implements the two state machines: task status and thought
// status. Every status change made by the scheduler goes through Transition
// or TransitionThought so an illegal move is rejected before it reaches the
// store.
//
// Import rules:
//   - CAN import: internal/clock, internal/constants, internal/domain, internal/errors, internal/store
//   - MUST NOT import: internal/processor, internal/lifecycle, internal/cli
package task

import (
	"fmt"

	"github.com/mrz1836/cortex/internal/constants"
	"github.com/mrz1836/cortex/internal/errors"
)

// ValidTaskTransitions defines all allowed task status transitions.
//
//	Pending  → Active, Completed, Failed, Deferred, Rejected
//	Active   → Completed, Failed, Deferred, Rejected
//	Deferred → Active, Pending
//
//nolint:gochecknoglobals // Exported for testing and read-only lookup table
var ValidTaskTransitions = map[constants.TaskStatus][]constants.TaskStatus{
	constants.TaskStatusPending: {
		constants.TaskStatusActive,
		constants.TaskStatusCompleted,
		constants.TaskStatusFailed,
		constants.TaskStatusDeferred,
		constants.TaskStatusRejected,
	},
	constants.TaskStatusActive: {
		constants.TaskStatusCompleted,
		constants.TaskStatusFailed,
		constants.TaskStatusDeferred,
		constants.TaskStatusRejected,
	},
	constants.TaskStatusDeferred: {
		constants.TaskStatusActive, // new information arrived
		constants.TaskStatusPending,
	},
}

// ValidThoughtTransitions defines all allowed thought status transitions.
//
//	Pending    → Processing, Failed, Deferred
//	Processing → Completed, Failed, Deferred, Pending
//
// Processing → Pending re-queues a thought whose stage was aborted.
//
//nolint:gochecknoglobals // Exported for testing and read-only lookup table
var ValidThoughtTransitions = map[constants.ThoughtStatus][]constants.ThoughtStatus{
	constants.ThoughtStatusPending: {
		constants.ThoughtStatusProcessing,
		constants.ThoughtStatusFailed,
		constants.ThoughtStatusDeferred,
	},
	constants.ThoughtStatusProcessing: {
		constants.ThoughtStatusCompleted,
		constants.ThoughtStatusFailed,
		constants.ThoughtStatusDeferred,
		constants.ThoughtStatusPending,
	},
}

//nolint:gochecknoglobals // Read-only lookup table for terminal state checks
var terminalTaskStatuses = map[constants.TaskStatus]bool{
	constants.TaskStatusCompleted: true,
	constants.TaskStatusFailed:    true,
	constants.TaskStatusRejected:  true,
}

//nolint:gochecknoglobals // Read-only lookup table for terminal state checks
var terminalThoughtStatuses = map[constants.ThoughtStatus]bool{
	constants.ThoughtStatusCompleted: true,
	constants.ThoughtStatusFailed:    true,
	constants.ThoughtStatusDeferred:  true,
}

// IsValidTaskTransition reports whether a task may move from one status to another.
// Same-status moves are never valid.
func IsValidTaskTransition(from, to constants.TaskStatus) bool {
	if from == to {
		return false
	}
	for _, target := range ValidTaskTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// IsValidThoughtTransition reports whether a thought may move from one status to another.
func IsValidThoughtTransition(from, to constants.ThoughtStatus) bool {
	if from == to {
		return false
	}
	for _, target := range ValidThoughtTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// IsTerminalTaskStatus returns true for Completed, Failed and Rejected.
// Deferred is not terminal: a deferred task can be reactivated.
func IsTerminalTaskStatus(status constants.TaskStatus) bool {
	return terminalTaskStatuses[status]
}

// IsTerminalThoughtStatus returns true for Completed, Failed and Deferred.
func IsTerminalThoughtStatus(status constants.ThoughtStatus) bool {
	return terminalThoughtStatuses[status]
}

// CheckTaskTransition returns errors.ErrInvalidTransition when the move is not allowed.
func CheckTaskTransition(from, to constants.TaskStatus) error {
	if !IsValidTaskTransition(from, to) {
		return fmt.Errorf("%w: task %s -> %s", errors.ErrInvalidTransition, from, to)
	}
	return nil
}

// CheckThoughtTransition returns errors.ErrInvalidTransition when the move is not allowed.
func CheckThoughtTransition(from, to constants.ThoughtStatus) error {
	if !IsValidThoughtTransition(from, to) {
		return fmt.Errorf("%w: thought %s -> %s", errors.ErrInvalidTransition, from, to)
	}
	return nil
}
