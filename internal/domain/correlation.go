package domain

import "time"

// Correlation links an external request (message, API call) to the task it produced.
type Correlation struct {
	CorrelationID     string    `json:"correlation_id"`
	TaskID            string    `json:"task_id"`
	ChannelID         string    `json:"channel_id,omitempty"`
	AgentOccurrenceID string    `json:"agent_occurrence_id"`
	RequestType       string    `json:"request_type,omitempty"`
	Status            string    `json:"status,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}
