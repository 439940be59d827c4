// Package config provides configuration management for CORTEX with layered precedence.
//
// Configuration sources are loaded in the following order (highest precedence first):
//  1. CLI flags (passed via LoadWithOverrides)
//  2. Environment variables (CORTEX_* prefix)
//  3. Project config (.cortex/config.yaml)
//  4. Global config (~/.cortex/config.yaml)
//  5. Built-in defaults
//
// Each higher level completely overrides the lower level for the same key.
//
// IMPORTANT: This package may import internal/constants and internal/errors,
// but MUST NOT import internal/domain or other internal packages.
package config

import "time"

// Config is the root configuration structure for CORTEX.
type Config struct {
	// Occurrence identifies this process among the occurrences sharing a store.
	Occurrence OccurrenceConfig `yaml:"occurrence" mapstructure:"occurrence"`

	// Store contains the sqlite settings.
	Store StoreConfig `yaml:"store" mapstructure:"store"`

	// Scheduler contains the processing loop limits.
	Scheduler SchedulerConfig `yaml:"scheduler" mapstructure:"scheduler"`

	// Pipeline contains the pause/step controls.
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`

	// Maintenance contains the recovery sweep windows.
	Maintenance MaintenanceConfig `yaml:"maintenance" mapstructure:"maintenance"`

	// Wakeup contains the wakeup ritual settings.
	Wakeup WakeupConfig `yaml:"wakeup" mapstructure:"wakeup"`

	// Shutdown contains the shutdown ritual settings.
	Shutdown ShutdownConfig `yaml:"shutdown" mapstructure:"shutdown"`
}

// OccurrenceConfig identifies the running occurrence.
type OccurrenceConfig struct {
	// ID is the agent occurrence id. Every row this process writes carries it.
	// Default: "default"
	ID string `yaml:"id" mapstructure:"id"`
}

// StoreConfig contains the sqlite store settings.
type StoreConfig struct {
	// Path is the database file. Empty means ~/.cortex/cortex.db.
	Path string `yaml:"path" mapstructure:"path"`

	// BusyTimeout is how long sqlite waits on a locked database.
	// Default: 5 seconds
	BusyTimeout time.Duration `yaml:"busy_timeout" mapstructure:"busy_timeout"`
}

// SchedulerConfig contains the processing loop limits.
type SchedulerConfig struct {
	// MaxActiveTasks caps the tasks kept ACTIVE at once.
	// Default: 10
	MaxActiveTasks int `yaml:"max_active_tasks" mapstructure:"max_active_tasks"`

	// MaxActiveThoughts caps the pending thoughts pulled into one round.
	// Default: 10
	MaxActiveThoughts int `yaml:"max_active_thoughts" mapstructure:"max_active_thoughts"`

	// BatchSize is how many thoughts of a round run concurrently.
	// Default: 5
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size"`

	// RoundDelay is the pause between rounds.
	// Default: 1 second
	RoundDelay time.Duration `yaml:"round_delay" mapstructure:"round_delay"`

	// MaxRoundNumber bounds follow-up chains; a longer chain defers its task.
	// Default: 50
	MaxRoundNumber int `yaml:"max_round_number" mapstructure:"max_round_number"`

	// MaxThoughtDepth bounds pondering, Valid range: 1-7.
	// Default: 7
	MaxThoughtDepth int `yaml:"max_thought_depth" mapstructure:"max_thought_depth"`
}

// PipelineConfig contains the pause/step controls.
type PipelineConfig struct {
	// EnabledStages are the stages where a paused pipeline stops.
	// Empty means every stage.
	EnabledStages []string `yaml:"enabled_stages" mapstructure:"enabled_stages"`

	// MaxTimingHistory bounds the durations kept for the average thought time.
	// Default: 100
	MaxTimingHistory int `yaml:"max_timing_history" mapstructure:"max_timing_history"`
}

// MaintenanceConfig contains the recovery sweep windows.
type MaintenanceConfig struct {
	// SharedTaskStaleAfter is the age after which an unfinished shared task is
	// presumed abandoned by a crashed claimant.
	// Default: 5 minutes
	SharedTaskStaleAfter time.Duration `yaml:"shared_task_stale_after" mapstructure:"shared_task_stale_after"`

	// StaleTaskAge is the age after which an unfinished ordinary task is force-completed.
	// Default: 30 minutes
	StaleTaskAge time.Duration `yaml:"stale_task_age" mapstructure:"stale_task_age"`

	// OrphanGrace protects fresh thoughts from orphan cleanup.
	// Default: 2 minutes
	OrphanGrace time.Duration `yaml:"orphan_grace" mapstructure:"orphan_grace"`

	// CompletedRetention is how long completed tasks are kept. Zero keeps them.
	// Default: 168 hours
	CompletedRetention time.Duration `yaml:"completed_retention" mapstructure:"completed_retention"`
}

// WakeupConfig contains the wakeup ritual settings.
type WakeupConfig struct {
	// Enabled runs the wakeup ritual before processing starts.
	// Default: true
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// CompletionWindow is how far back a completed wakeup still counts.
	// Default: 24 hours
	CompletionWindow time.Duration `yaml:"completion_window" mapstructure:"completion_window"`

	// StepTimeout bounds one step thought.
	// Default: 60 seconds
	StepTimeout time.Duration `yaml:"step_timeout" mapstructure:"step_timeout"`

	// PollInterval is the pause between wakeup rounds.
	// Default: 100 milliseconds
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`

	// MaxRounds gives up on wakeup after this many rounds. Zero means no limit.
	// Default: 20
	MaxRounds int `yaml:"max_rounds" mapstructure:"max_rounds"`
}

// ShutdownConfig contains the shutdown ritual settings.
type ShutdownConfig struct {
	// Enabled asks for consent before stopping.
	// Default: true
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// CompletionWindow is how far back a completed shutdown still counts.
	// Default: 1 hour
	CompletionWindow time.Duration `yaml:"completion_window" mapstructure:"completion_window"`

	// Timeout bounds the whole shutdown ritual.
	// Default: 60 seconds
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// MaxRounds gives up on consent after this many rounds.
	// Default: 5
	MaxRounds int `yaml:"max_rounds" mapstructure:"max_rounds"`
}
