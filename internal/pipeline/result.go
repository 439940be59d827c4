package pipeline

// Mode is the controller's stepping mode, orthogonal to paused/running.
type Mode string

// Controller modes.
const (
	ModeNormal     Mode = "normal"
	ModeSingleStep Mode = "single_step"
)

// RunState is the controller's run state.
type RunState string

// Controller run states.
const (
	RunStateRunning RunState = "running"
	RunStatePaused  RunState = "paused"
)

// StepResult describes what a single step released.
type StepResult struct {
	// PipelineEmpty is set when there was nothing in flight to release.
	PipelineEmpty bool `json:"pipeline_empty"`

	// NothingWaiting is set when thoughts are in flight but none is blocked at
	// a pause point yet.
	NothingWaiting bool `json:"nothing_waiting,omitempty"`

	ThoughtID string `json:"thought_id,omitempty"`
	TaskID    string `json:"task_id,omitempty"`

	// FromStage is where the thought was waiting.
	FromStage Stage `json:"from_stage,omitempty"`

	// ToStage is the stage it moves to next. Empty when it was at the last stage
	// and will leave the pipeline.
	ToStage Stage `json:"to_stage,omitempty"`

	// ThoughtsInFlight counts thoughts in the pipeline when the step was taken.
	ThoughtsInFlight int `json:"thoughts_in_flight"`
}

// ControllerSnapshot is a copy of the controller and pipeline state.
type ControllerSnapshot struct {
	RunState      RunState `json:"run_state"`
	Mode          Mode     `json:"mode"`
	EnabledStages []Stage  `json:"enabled_stages"`
	Aborted       []string `json:"aborted,omitempty"`
	Waiting       []string `json:"waiting,omitempty"`
	Pipeline      Snapshot `json:"pipeline"`
}
