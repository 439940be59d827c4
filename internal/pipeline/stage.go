// Package pipeline tracks thoughts as they move through the fixed processing
// stages and provides the controller used to pause, single-step, drain and
// abort them.
//
// Import rules:
//   - CAN import: internal/clock, internal/errors, std lib
//   - MUST NOT import: internal/store, internal/processor, internal/cli
package pipeline

import (
	"fmt"

	"github.com/mrz1836/cortex/internal/errors"
)

// Stage is a named step point a thought passes through during processing.
type Stage string

// Pipeline stages in processing order.
const (
	StageFinalizeTasksQueue   Stage = "finalize_tasks_queue"
	StagePopulateThoughtQueue Stage = "populate_thought_queue"
	StageBuildContext         Stage = "build_context"
	StagePerformDMAs          Stage = "perform_dmas"
	StagePerformASPDMA        Stage = "perform_aspdma"
	StageActionSelection      Stage = "action_selection"
	StageHandlerStart         Stage = "handler_start"
	StageHandlerComplete      Stage = "handler_complete"
)

//nolint:gochecknoglobals // Fixed stage order
var stageOrder = []Stage{
	StageFinalizeTasksQueue,
	StagePopulateThoughtQueue,
	StageBuildContext,
	StagePerformDMAs,
	StagePerformASPDMA,
	StageActionSelection,
	StageHandlerStart,
	StageHandlerComplete,
}

// Stages returns every stage in processing order.
func Stages() []Stage {
	out := make([]Stage, len(stageOrder))
	copy(out, stageOrder)
	return out
}

// String returns the string representation of the Stage.
func (s Stage) String() string {
	return string(s)
}

// Index returns the position of s in the processing order, or -1.
func (s Stage) Index() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	return s.Index() >= 0
}

// NextStage returns the stage after s. The second value is false for the
// terminal stage and for unknown stages.
func NextStage(s Stage) (Stage, bool) {
	i := s.Index()
	if i < 0 || i == len(stageOrder)-1 {
		return "", false
	}
	return stageOrder[i+1], true
}

// ParseStage converts a stage name into a Stage.
func ParseStage(name string) (Stage, error) {
	s := Stage(name)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", errors.ErrUnknownStage, name)
	}
	return s, nil
}

// ParseStages converts a list of stage names. An empty list yields nil.
func ParseStages(names []string) ([]Stage, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]Stage, 0, len(names))
	for _, n := range names {
		s, err := ParseStage(n)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
