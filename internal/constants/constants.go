// Package constants provides centralized constant values used throughout CORTEX.
// This package is the single source of truth for all shared constants and MUST NOT
// import any other internal packages.
package constants

import "time"

// SharedOccurrenceID is the sentinel occurrence id carried by coordination tasks
// that every occurrence may read but only a claimant may populate.
const SharedOccurrenceID = "__shared__"

// DefaultOccurrenceID is the occurrence id used when none is configured.
const DefaultOccurrenceID = "default"

// Directory names and paths used by CORTEX for organizing data.
const (
	// CortexHome is the hidden directory name where CORTEX stores all its data.
	// This directory is created in the user's home directory.
	CortexHome = ".cortex"

	// LogsDir is the directory name where log files are stored.
	LogsDir = "logs"

	// LocksDir holds one lock file per running occurrence.
	LocksDir = "locks"

	// DatabaseFileName is the default sqlite file name inside CortexHome.
	DatabaseFileName = "cortex.db"
)

// Thought limits.
const (
	// MaxThoughtDepth is the hard ceiling on pondering depth.
	MaxThoughtDepth = 7

	// DefaultMaxRoundNumber bounds follow-up chains. Rounds above it are rejected.
	DefaultMaxRoundNumber = 50

	// MinTaskPriority and MaxTaskPriority bound Task.Priority.
	MinTaskPriority = 0
	MaxTaskPriority = 10
)

// Scheduler defaults.
const (
	// DefaultMaxActiveTasks caps the tasks an occurrence keeps active at once.
	DefaultMaxActiveTasks = 10

	// DefaultMaxActiveThoughts caps the thoughts pulled into a single round.
	DefaultMaxActiveThoughts = 10

	// DefaultBatchSize is the number of thoughts processed concurrently in a round.
	DefaultBatchSize = 5

	// DefaultRoundDelay is the pause between processing rounds.
	DefaultRoundDelay = 1 * time.Second

	// DefaultMaxTimingHistory is how many thought durations are kept for averaging.
	DefaultMaxTimingHistory = 100
)

// Maintenance windows.
const (
	// SharedTaskStaleAfter is the freshness window for unfinished shared tasks.
	// Older ones are presumed to belong to a crashed claimant.
	SharedTaskStaleAfter = 5 * time.Minute

	// DefaultStaleTaskAge is the age after which a non-shared unfinished task is
	// force-completed by the maintenance sweep.
	DefaultStaleTaskAge = 30 * time.Minute

	// OrphanGracePeriod protects freshly created thoughts from orphan cleanup.
	OrphanGracePeriod = 2 * time.Minute

	// DefaultCompletedRetention is how long completed tasks are kept.
	DefaultCompletedRetention = 7 * 24 * time.Hour
)

// Lifecycle ritual defaults.
const (
	// WakeupCompletionWindow is how far back a completed wakeup still counts.
	WakeupCompletionWindow = 24 * time.Hour

	// ShutdownCompletionWindow is how far back a completed shutdown still counts.
	ShutdownCompletionWindow = 1 * time.Hour

	// DefaultStepTimeout bounds the wait for a ritual step task.
	DefaultStepTimeout = 60 * time.Second

	// DefaultPollInterval is the poll period used while waiting on a task.
	DefaultPollInterval = 100 * time.Millisecond

	// DefaultWakeupMaxRounds gives up on a wakeup that makes no progress.
	DefaultWakeupMaxRounds = 20

	// DefaultShutdownMaxRounds bounds how often consent to stop is asked.
	DefaultShutdownMaxRounds = 5

	// DefaultShutdownTimeout bounds the whole shutdown ritual.
	DefaultShutdownTimeout = 60 * time.Second

	// SystemChannelID is the channel used by ritual tasks.
	SystemChannelID = "system"

	// CLIChannelID is the channel of tasks queued with `cortex task add`.
	CLIChannelID = "cli"

	// SystemTaskPriority is the priority of ritual tasks.
	SystemTaskPriority = 10
)

// Store settings.
const (
	// DefaultBusyTimeout is the sqlite busy timeout applied on open.
	DefaultBusyTimeout = 5 * time.Second
)

// Log rotation settings for the CLI log file.
const (
	// CLILogFileName is the global CLI log file located in ~/.cortex/logs/.
	CLILogFileName = "cortex.log"

	// LogMaxSizeMB is the size at which the log file is rotated.
	LogMaxSizeMB = 10

	// LogMaxBackups is the number of rotated files kept.
	LogMaxBackups = 5

	// LogMaxAgeDays is the maximum age of a rotated file.
	LogMaxAgeDays = 30

	// LogCompress enables gzip compression of rotated files.
	LogCompress = true
)

// Shared ritual task types. SharedTaskID upper-cases them into the id prefix.
const (
	WakeupTaskType   = "wakeup"
	ShutdownTaskType = "shutdown"
)

// Wakeup ritual steps, in execution order. Step task ids are {STEP}_{uuid}.
const (
	StepVerifyIdentity       = "VERIFY_IDENTITY"
	StepValidateIntegrity    = "VALIDATE_INTEGRITY"
	StepEvaluateResilience   = "EVALUATE_RESILIENCE"
	StepAcceptIncompleteness = "ACCEPT_INCOMPLETENESS"
	StepExpressGratitude     = "EXPRESS_GRATITUDE"
)
