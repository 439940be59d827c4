package store

// taskRow is the tasks table. Timestamps are unix nanoseconds.
type taskRow struct {
	TaskID               string `gorm:"column:task_id;primaryKey"`
	AgentOccurrenceID    string `gorm:"column:agent_occurrence_id;not null"`
	ChannelID            string `gorm:"column:channel_id;not null;default:''"`
	Description          string `gorm:"column:description;not null;default:''"`
	Status               string `gorm:"column:status;not null"`
	Priority             int    `gorm:"column:priority;not null;default:0"`
	ParentTaskID         string `gorm:"column:parent_task_id;not null;default:''"`
	CorrelationID        string `gorm:"column:correlation_id;not null;default:''"`
	ContextJSON          string `gorm:"column:context_json;not null;default:''"`
	OutcomeJSON          string `gorm:"column:outcome_json;not null;default:''"`
	SignedBy             string `gorm:"column:signed_by;not null;default:''"`
	Signature            string `gorm:"column:signature;not null;default:''"`
	SignedAt             int64  `gorm:"column:signed_at;not null;default:0"`
	UpdatedInfoAvailable bool   `gorm:"column:updated_info_available;not null;default:false"`
	UpdatedInfoContent   string `gorm:"column:updated_info_content;not null;default:''"`
	CreatedAt            int64  `gorm:"column:created_at;not null;default:0"`
	UpdatedAt            int64  `gorm:"column:updated_at;not null;default:0"`
}

func (taskRow) TableName() string { return "tasks" }

// thoughtRow is the thoughts table.
type thoughtRow struct {
	ThoughtID         string `gorm:"column:thought_id;primaryKey"`
	SourceTaskID      string `gorm:"column:source_task_id;not null"`
	AgentOccurrenceID string `gorm:"column:agent_occurrence_id;not null"`
	ParentThoughtID   string `gorm:"column:parent_thought_id;not null;default:''"`
	ChannelID         string `gorm:"column:channel_id;not null;default:''"`
	ThoughtType       string `gorm:"column:thought_type;not null"`
	Status            string `gorm:"column:status;not null"`
	RoundNumber       int    `gorm:"column:round_number;not null;default:0"`
	ThoughtDepth      int    `gorm:"column:thought_depth;not null;default:0"`
	Content           string `gorm:"column:content;not null;default:''"`
	ContextJSON       string `gorm:"column:context_json;not null;default:''"`
	PonderNotesJSON   string `gorm:"column:ponder_notes_json;not null;default:''"`
	FinalActionJSON   string `gorm:"column:final_action_json;not null;default:''"`
	CreatedAt         int64  `gorm:"column:created_at;not null;default:0"`
	UpdatedAt         int64  `gorm:"column:updated_at;not null;default:0"`
}

func (thoughtRow) TableName() string { return "thoughts" }

// correlationRow is the correlations table.
type correlationRow struct {
	CorrelationID     string `gorm:"column:correlation_id;primaryKey"`
	TaskID            string `gorm:"column:task_id;not null;default:''"`
	ChannelID         string `gorm:"column:channel_id;not null;default:''"`
	AgentOccurrenceID string `gorm:"column:agent_occurrence_id;not null"`
	RequestType       string `gorm:"column:request_type;not null;default:''"`
	Status            string `gorm:"column:status;not null;default:''"`
	CreatedAt         int64  `gorm:"column:created_at;not null;default:0"`
}

func (correlationRow) TableName() string { return "correlations" }
