package errors

import "errors"

// ErrorInfo holds user-facing message and suggested action for an error.
type ErrorInfo struct {
	// Message is the operator-friendly error description.
	Message string
	// Action is a suggested action to resolve the issue (empty if none).
	Action string
}

// errorEntry pairs a sentinel error with its user-facing info.
type errorEntry struct {
	err  error
	info ErrorInfo
}

// errorInfoEntries maps sentinel errors to operator messages.
// A slice rather than a map because wrapped errors need errors.Is traversal.
//
//nolint:gochecknoglobals // Pre-built mapping for efficiency
var errorInfoEntries = []errorEntry{
	// ===================
	// Validation
	// ===================
	{
		err: ErrMissingOccurrenceID,
		info: ErrorInfo{
			Message: "An agent occurrence id is required.",
			Action:  "Set occurrence.id in config or export CORTEX_OCCURRENCE_ID.",
		},
	},
	{
		err: ErrDepthExceeded,
		info: ErrorInfo{
			Message: "The thought reached the maximum pondering depth.",
			Action:  "The task has been deferred. Review it and provide guidance.",
		},
	},
	{
		err: ErrRoundLimitExceeded,
		info: ErrorInfo{
			Message: "The task produced too many follow-up thoughts.",
			Action:  "Raise scheduler.max_round_number or inspect the task for a loop.",
		},
	},

	// ===================
	// Store
	// ===================
	{
		err: ErrStoreUnavailable,
		info: ErrorInfo{
			Message: "The scheduler database could not be reached.",
			Action:  "Check store.path and file permissions, then retry.",
		},
	},
	{
		err: ErrTaskNotFound,
		info: ErrorInfo{
			Message: "The task was not found for this occurrence.",
			Action:  "Run 'cortex task list' to see tasks owned by this occurrence.",
		},
	},
	{
		err: ErrOccurrenceLocked,
		info: ErrorInfo{
			Message: "Another process is already running this occurrence.",
			Action:  "Stop the other process or start with a different --occurrence id.",
		},
	},

	// ===================
	// Pipeline control
	// ===================
	{
		err: ErrNotPaused,
		info: ErrorInfo{
			Message: "The processor must be paused for this operation.",
			Action:  "Pause processing first, then single-step.",
		},
	},
	{
		err: ErrTaskWaitTimeout,
		info: ErrorInfo{
			Message: "A task did not finish in time and was marked failed.",
			Action:  "Increase wakeup.step_timeout or check the decision layer.",
		},
	},
	{
		err: ErrWakeupFailed,
		info: ErrorInfo{
			Message: "The wakeup ritual did not complete.",
			Action:  "Inspect the wakeup step tasks with 'cortex task list --all'.",
		},
	},
	{
		err: ErrShutdownRejected,
		info: ErrorInfo{
			Message: "The agent rejected the shutdown request.",
			Action:  "Review the rejection reason in the task outcome.",
		},
	},

	// ===================
	// Configuration & CLI
	// ===================
	{
		err: ErrInvalidOutputFormat,
		info: ErrorInfo{
			Message: "Invalid output format.",
			Action:  "Use --output text or --output json.",
		},
	},
	{
		err: ErrConflictingFlags,
		info: ErrorInfo{
			Message: "Verbose and quiet cannot be combined.",
			Action:  "Drop -v/--verbose or -q/--quiet, including CORTEX_VERBOSE and CORTEX_QUIET.",
		},
	},
	{
		err: ErrConfigNil,
		info: ErrorInfo{
			Message: "Configuration is missing.",
		},
	},
}

//nolint:gochecknoglobals // Built once from errorInfoEntries
var errorInfoMap = buildErrorInfoMap()

// buildErrorInfoMap creates the fast-path lookup map from errorInfoEntries.
func buildErrorInfoMap() map[error]ErrorInfo {
	m := make(map[error]ErrorInfo, len(errorInfoEntries))
	for _, entry := range errorInfoEntries {
		m[entry.err] = entry.info
	}
	return m
}

// getErrorInfo looks up the ErrorInfo for a given error.
// Direct sentinels hit the map; wrapped errors fall back to errors.Is.
func getErrorInfo(err error) ErrorInfo {
	if info, ok := errorInfoMap[err]; ok {
		return info
	}

	for _, entry := range errorInfoEntries {
		if errors.Is(err, entry.err) {
			return entry.info
		}
	}

	return ErrorInfo{Message: err.Error()}
}

// UserMessage returns an operator-friendly message for common errors.
// For unrecognized errors, it returns the error's original message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return getErrorInfo(err).Message
}

// Actionable returns an operator-friendly message along with a suggested action.
// The action is empty when there is nothing sensible to suggest.
func Actionable(err error) (message, action string) {
	if err == nil {
		return "", ""
	}
	info := getErrorInfo(err)
	return info.Message, info.Action
}
