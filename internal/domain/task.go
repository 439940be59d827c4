// Package domain provides shared domain types for the CORTEX scheduler.
// These types are used across all internal packages to ensure consistent data structures.
//
// This package follows strict import rules:
//   - CAN import: internal/constants, standard library
//   - MUST NOT import: any other internal packages
//
// All JSON field names use snake_case.
package domain

import (
	"time"

	"github.com/mrz1836/cortex/internal/constants"
)

// Task represents a unit of work tracked to completion.
//
// Example JSON representation:
//
//	{
//	    "task_id": "task_6f1c...",
//	    "agent_occurrence_id": "occ-a",
//	    "channel_id": "discord-123",
//	    "description": "Answer the question in #general",
//	    "status": "active",
//	    "priority": 5,
//	    "created_at": "2026-10-18T10:00:00Z",
//	    "updated_at": "2026-10-18T10:00:02Z",
//	    "context": {"correlation_id": "corr-1", "channel_id": "discord-123"}
//	}
type Task struct {
	// TaskID is the globally unique identifier.
	TaskID string `json:"task_id"`

	// AgentOccurrenceID is the owning occurrence, or constants.SharedOccurrenceID
	// for cross-occurrence coordination tasks. Never empty.
	AgentOccurrenceID string `json:"agent_occurrence_id"`

	// ChannelID is the channel the work originated from.
	ChannelID string `json:"channel_id"`

	// Description is a human-readable summary of the work.
	Description string `json:"description"`

	// Status is the current lifecycle state.
	Status constants.TaskStatus `json:"status"`

	// Priority ranges from 0 (lowest) to 10 (highest).
	Priority int `json:"priority"`

	// ParentTaskID links step tasks to their root ritual task.
	ParentTaskID string `json:"parent_task_id,omitempty"`

	// Context carries correlation and origin data.
	Context *TaskContext `json:"context,omitempty"`

	// Outcome is set only once the task reaches a terminal status.
	Outcome *TaskOutcome `json:"outcome,omitempty"`

	// SignedBy, Signature and SignedAt carry an optional signature over the task.
	SignedBy  string     `json:"signed_by,omitempty"`
	Signature string     `json:"signature,omitempty"`
	SignedAt  *time.Time `json:"signed_at,omitempty"`

	// UpdatedInfoAvailable flags new external information that arrived after the
	// task became active. UpdatedInfoContent holds that information.
	UpdatedInfoAvailable bool   `json:"updated_info_available,omitempty"`
	UpdatedInfoContent   string `json:"updated_info_content,omitempty"`

	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the task was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// IsShared reports whether the task is a cross-occurrence coordination task.
func (t *Task) IsShared() bool {
	return t.AgentOccurrenceID == constants.SharedOccurrenceID
}

// TaskContext carries correlation and origin data for a task.
type TaskContext struct {
	CorrelationID     string `json:"correlation_id,omitempty"`
	ChannelID         string `json:"channel_id,omitempty"`
	UserID            string `json:"user_id,omitempty"`
	ParentTaskID      string `json:"parent_task_id,omitempty"`
	AgentOccurrenceID string `json:"agent_occurrence_id"`
}

// TaskOutcome records how a task ended.
type TaskOutcome struct {
	// Status mirrors the terminal task status at the time the outcome was written.
	Status constants.TaskStatus `json:"status"`

	// Summary is a short human-readable description of the result.
	Summary string `json:"summary,omitempty"`

	// Reason explains failures, deferrals and rejections.
	Reason string `json:"reason,omitempty"`

	// CompletedAt is when the terminal status was set.
	CompletedAt time.Time `json:"completed_at"`
}
