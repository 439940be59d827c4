package task

import (
	"strings"

	"github.com/google/uuid"

	"github.com/mrz1836/cortex/internal/constants"
)

// NewTaskID returns a fresh task id of the form task_<uuid>.
func NewTaskID() string {
	return "task_" + uuid.NewString()
}

// NewThoughtID returns a fresh thought id of the form th_<kind>_<uuid>, where
// kind is the thought type (seed thoughts use "seed").
func NewThoughtID(kind string) string {
	if kind == "" {
		kind = string(constants.ThoughtTypeStandard)
	}
	return "th_" + kind + "_" + uuid.NewString()
}

// NewStepTaskID returns a step task id of the form {STEP}_{uuid}.
func NewStepTaskID(step string) string {
	return strings.ToUpper(step) + "_" + uuid.NewString()
}
