package domain

import (
	"time"

	"github.com/mrz1836/cortex/internal/constants"
)

// ThoughtContextSchemaVersion is the version of the ThoughtContext layout.
const ThoughtContextSchemaVersion = "1"

// Thought is one reasoning step belonging to exactly one Task.
type Thought struct {
	// ThoughtID is the unique identifier.
	ThoughtID string `json:"thought_id"`

	// SourceTaskID is the owning task.
	SourceTaskID string `json:"source_task_id"`

	// AgentOccurrenceID is inherited from the task at creation and never changes.
	AgentOccurrenceID string `json:"agent_occurrence_id"`

	// ParentThoughtID is empty for the seed thought of a task.
	ParentThoughtID string `json:"parent_thought_id,omitempty"`

	// ChannelID is copied from the task.
	ChannelID string `json:"channel_id"`

	ThoughtType constants.ThoughtType   `json:"thought_type"`
	Status      constants.ThoughtStatus `json:"status"`

	// RoundNumber is the processing round the thought belongs to.
	RoundNumber int `json:"round_number"`

	// ThoughtDepth is the pondering depth, capped at constants.MaxThoughtDepth.
	ThoughtDepth int `json:"thought_depth"`

	Content     string          `json:"content"`
	Context     *ThoughtContext `json:"context,omitempty"`
	PonderNotes []string        `json:"ponder_notes,omitempty"`

	// FinalAction is written once, together with the terminal status.
	FinalAction *FinalAction `json:"final_action,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ThoughtContext is the fixed, versioned context attached to a thought.
// It is derived data: the factory overwrites any field that disagrees with the
// thought it is attached to.
type ThoughtContext struct {
	SchemaVersion     string `json:"schema_version"`
	TaskID            string `json:"task_id"`
	ChannelID         string `json:"channel_id,omitempty"`
	CorrelationID     string `json:"correlation_id,omitempty"`
	RoundNumber       int    `json:"round_number"`
	Depth             int    `json:"depth"`
	ParentThoughtID   string `json:"parent_thought_id,omitempty"`
	AgentOccurrenceID string `json:"agent_occurrence_id"`

	// GuidanceMessageID is set when the thought answers a guidance request.
	GuidanceMessageID string `json:"guidance_message_id,omitempty"`

	// DeferralReason is set when the thought was deferred.
	DeferralReason string `json:"deferral_reason,omitempty"`
}
