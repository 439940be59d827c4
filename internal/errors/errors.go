// Package errors provides centralized error handling for CORTEX.
//
// This package defines sentinel errors used for programmatic error categorization
// throughout the scheduler. All error types can be checked using errors.Is().
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import "errors"

// Validation errors. These are raised at construction time and the offending
// entity is never persisted.
var (
	// ErrMissingOccurrenceID indicates a task, thought or store call was made
	// without an agent occurrence id. There is no default occurrence.
	ErrMissingOccurrenceID = errors.New("agent occurrence id is required")

	// ErrEmptyValue indicates that a required value was empty.
	ErrEmptyValue = errors.New("value cannot be empty")

	// ErrValueOutOfRange indicates that a value is outside the allowed range.
	ErrValueOutOfRange = errors.New("value out of range")

	// ErrDepthExceeded indicates a thought would exceed the pondering depth ceiling.
	ErrDepthExceeded = errors.New("thought depth limit exceeded")

	// ErrRoundLimitExceeded indicates a follow-up chain ran past the round bound.
	ErrRoundLimitExceeded = errors.New("thought round limit exceeded")
)

// State and lookup errors.
var (
	// ErrInvalidTransition indicates an attempt to move a task or thought to a
	// status not reachable from its current status.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrFinalActionAlreadySet indicates a second attempt to record a thought's
	// final action. A thought decides exactly once.
	ErrFinalActionAlreadySet = errors.New("final action already recorded")

	// ErrTaskNotFound indicates the task does not exist in the given occurrence scope.
	ErrTaskNotFound = errors.New("task not found")

	// ErrThoughtNotFound indicates the thought does not exist in the given occurrence scope.
	ErrThoughtNotFound = errors.New("thought not found")

	// ErrCorrelationNotFound indicates no correlation matches the lookup.
	ErrCorrelationNotFound = errors.New("correlation not found")

	// ErrStoreUnavailable indicates the persistent store could not be reached.
	// This is the only class of error that stops the processing loop.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrNilStore indicates a component was constructed without a store.
	ErrNilStore = errors.New("store is nil")
)

// Pipeline control errors.
var (
	// ErrNotPaused indicates a control operation that requires a paused scheduler.
	ErrNotPaused = errors.New("processor is not paused")

	// ErrThoughtAborted indicates a thought was cancelled through the controller.
	ErrThoughtAborted = errors.New("thought aborted")

	// ErrThoughtNotInPipeline indicates the thought is not tracked by the pipeline.
	ErrThoughtNotInPipeline = errors.New("thought not in pipeline")

	// ErrUnknownStage indicates a stage name outside the fixed pipeline order.
	ErrUnknownStage = errors.New("unknown pipeline stage")
)

// Collaborator and lifecycle errors.
var (
	// ErrTaskWaitTimeout indicates a task did not reach a terminal status within
	// the allowed wait. The task has been force-failed.
	ErrTaskWaitTimeout = errors.New("task wait timeout")

	// ErrNoHandler indicates no action handler is registered for the selected action.
	ErrNoHandler = errors.New("no handler registered for action")

	// ErrHandlerFailed indicates an action handler reported failure.
	ErrHandlerFailed = errors.New("action handler failed")

	// ErrDecisionFailed indicates the decision layer could not select an action.
	ErrDecisionFailed = errors.New("decision failed")

	// ErrWakeupFailed indicates a wakeup step or the shared wakeup task failed.
	ErrWakeupFailed = errors.New("wakeup ritual failed")

	// ErrShutdownRejected indicates the agent rejected a shutdown request.
	ErrShutdownRejected = errors.New("shutdown rejected")

	// ErrOccurrenceLocked indicates another process already runs this occurrence.
	ErrOccurrenceLocked = errors.New("occurrence already running")
)

// Configuration and CLI errors.
var (
	// ErrConfigNil indicates that a nil config was passed to validation.
	ErrConfigNil = errors.New("config is nil")

	// ErrConfigInvalidOccurrence indicates an invalid occurrence configuration value.
	ErrConfigInvalidOccurrence = errors.New("invalid occurrence configuration")

	// ErrConfigInvalidStore indicates an invalid store configuration value.
	ErrConfigInvalidStore = errors.New("invalid store configuration")

	// ErrConfigInvalidScheduler indicates an invalid scheduler configuration value.
	ErrConfigInvalidScheduler = errors.New("invalid scheduler configuration")

	// ErrConfigInvalidPipeline indicates an invalid pipeline configuration value.
	ErrConfigInvalidPipeline = errors.New("invalid pipeline configuration")

	// ErrConfigInvalidMaintenance indicates an invalid maintenance configuration value.
	ErrConfigInvalidMaintenance = errors.New("invalid maintenance configuration")

	// ErrConfigInvalidLifecycle indicates an invalid wakeup or shutdown configuration value.
	ErrConfigInvalidLifecycle = errors.New("invalid lifecycle configuration")

	// ErrInvalidOutputFormat indicates an invalid output format was specified.
	ErrInvalidOutputFormat = errors.New("invalid output format")

	// ErrConflictingFlags indicates settings that cannot be combined, such as
	// verbose and quiet.
	ErrConflictingFlags = errors.New("conflicting flags")
)

// ExitCode2Error wraps an error to indicate exit code 2 should be used.
type ExitCode2Error struct {
	Err error
}

// NewExitCode2Error wraps an error to indicate exit code 2.
func NewExitCode2Error(err error) *ExitCode2Error {
	return &ExitCode2Error{Err: err}
}

// Error implements the error interface.
func (e *ExitCode2Error) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ExitCode2Error) Unwrap() error {
	return e.Err
}

// IsExitCode2Error checks if an error should result in exit code 2.
func IsExitCode2Error(err error) bool {
	var e *ExitCode2Error
	return errors.As(err, &e)
}

// IsValidation reports whether err belongs to the validation class. Validation
// errors are expected for bad input and never indicate a broken store.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrMissingOccurrenceID,
		ErrEmptyValue,
		ErrValueOutOfRange,
		ErrDepthExceeded,
		ErrRoundLimitExceeded,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
