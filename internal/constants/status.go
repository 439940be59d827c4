package constants

// TaskStatus represents the state of a task in the CORTEX state machine.
// Status values use snake_case for JSON serialization compatibility.
type TaskStatus string

// Task status constants define the valid states a task can be in:
//
//	Pending → Active, Completed, Failed, Deferred, Rejected
//	Active → Completed, Failed, Deferred, Rejected
//	Deferred → Active, Pending
const (
	// TaskStatusPending indicates a task is queued but no occurrence has started it.
	TaskStatusPending TaskStatus = "pending"

	// TaskStatusActive indicates an occurrence is generating thoughts for the task.
	TaskStatusActive TaskStatus = "active"

	// TaskStatusCompleted indicates the task outcome is known and successful.
	TaskStatusCompleted TaskStatus = "completed"

	// TaskStatusFailed indicates the task could not be completed.
	TaskStatusFailed TaskStatus = "failed"

	// TaskStatusDeferred indicates the task was parked, usually for human input.
	TaskStatusDeferred TaskStatus = "deferred"

	// TaskStatusRejected indicates the agent declined the task.
	TaskStatusRejected TaskStatus = "rejected"
)

// String returns the string representation of the TaskStatus.
func (s TaskStatus) String() string {
	return string(s)
}

// ThoughtStatus represents the state of a single thought.
type ThoughtStatus string

// Thought status constants.
const (
	// ThoughtStatusPending indicates the thought is queued for the next round.
	ThoughtStatusPending ThoughtStatus = "pending"

	// ThoughtStatusProcessing indicates the thought occupies a pipeline stage.
	ThoughtStatusProcessing ThoughtStatus = "processing"

	// ThoughtStatusCompleted indicates a final action was selected and handled.
	ThoughtStatusCompleted ThoughtStatus = "completed"

	// ThoughtStatusFailed indicates processing errored or the handler failed.
	ThoughtStatusFailed ThoughtStatus = "failed"

	// ThoughtStatusDeferred indicates the thought was parked.
	ThoughtStatusDeferred ThoughtStatus = "deferred"
)

// String returns the string representation of the ThoughtStatus.
func (s ThoughtStatus) String() string {
	return string(s)
}

// ThoughtType classifies why a thought exists.
type ThoughtType string

// Thought type constants.
const (
	ThoughtTypeStandard    ThoughtType = "standard"
	ThoughtTypeFollowUp    ThoughtType = "follow_up"
	ThoughtTypeGuidance    ThoughtType = "guidance"
	ThoughtTypeMemory      ThoughtType = "memory"
	ThoughtTypeObservation ThoughtType = "observation"
	ThoughtTypePonder      ThoughtType = "ponder"
	ThoughtTypeDeferral    ThoughtType = "deferral"
)

// String returns the string representation of the ThoughtType.
func (t ThoughtType) String() string {
	return string(t)
}

// ActionType is the action selected for a thought by the decision layer.
type ActionType string

// Action type constants.
const (
	ActionSpeak        ActionType = "speak"
	ActionPonder       ActionType = "ponder"
	ActionObserve      ActionType = "observe"
	ActionMemorize     ActionType = "memorize"
	ActionRecall       ActionType = "recall"
	ActionForget       ActionType = "forget"
	ActionTool         ActionType = "tool"
	ActionDefer        ActionType = "defer"
	ActionReject       ActionType = "reject"
	ActionTaskComplete ActionType = "task_complete"
)

// String returns the string representation of the ActionType.
func (a ActionType) String() string {
	return string(a)
}

// IsTerminal reports whether the action ends the owning task rather than the thought.
func (a ActionType) IsTerminal() bool {
	switch a {
	case ActionDefer, ActionReject, ActionTaskComplete:
		return true
	case ActionSpeak, ActionPonder, ActionObserve, ActionMemorize, ActionRecall, ActionForget, ActionTool:
		return false
	}
	return false
}

// AllActionTypes returns every known action type in declaration order.
func AllActionTypes() []ActionType {
	return []ActionType{
		ActionSpeak, ActionPonder, ActionObserve, ActionMemorize, ActionRecall,
		ActionForget, ActionTool, ActionDefer, ActionReject, ActionTaskComplete,
	}
}
