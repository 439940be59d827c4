package config

import "github.com/mrz1836/cortex/internal/constants"

// DefaultConfig returns a Config with sensible default values.
// These defaults are used when no configuration file is present
// or when specific values are not set in config files.
func DefaultConfig() *Config {
	return &Config{
		Occurrence: OccurrenceConfig{
			ID: constants.DefaultOccurrenceID,
		},
		Store: StoreConfig{
			Path:        "",
			BusyTimeout: constants.DefaultBusyTimeout,
		},
		Scheduler: SchedulerConfig{
			MaxActiveTasks:    constants.DefaultMaxActiveTasks,
			MaxActiveThoughts: constants.DefaultMaxActiveThoughts,
			BatchSize:         constants.DefaultBatchSize,
			RoundDelay:        constants.DefaultRoundDelay,
			MaxRoundNumber:    constants.DefaultMaxRoundNumber,
			MaxThoughtDepth:   constants.MaxThoughtDepth,
		},
		Pipeline: PipelineConfig{
			EnabledStages:    []string{},
			MaxTimingHistory: constants.DefaultMaxTimingHistory,
		},
		Maintenance: MaintenanceConfig{
			SharedTaskStaleAfter: constants.SharedTaskStaleAfter,
			StaleTaskAge:         constants.DefaultStaleTaskAge,
			OrphanGrace:          constants.OrphanGracePeriod,
			CompletedRetention:   constants.DefaultCompletedRetention,
		},
		Wakeup: WakeupConfig{
			Enabled:          true,
			CompletionWindow: constants.WakeupCompletionWindow,
			StepTimeout:      constants.DefaultStepTimeout,
			PollInterval:     constants.DefaultPollInterval,
			MaxRounds:        constants.DefaultWakeupMaxRounds,
		},
		Shutdown: ShutdownConfig{
			Enabled:          true,
			CompletionWindow: constants.ShutdownCompletionWindow,
			Timeout:          constants.DefaultShutdownTimeout,
			MaxRounds:        constants.DefaultShutdownMaxRounds,
		},
	}
}
