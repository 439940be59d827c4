package config

import (
	"strings"
	"time"

	"github.com/mrz1836/cortex/internal/constants"
	"github.com/mrz1836/cortex/internal/errors"
)

// Validate checks the configuration for invalid or inconsistent values.
// It returns an error describing the first validation failure found.
//
// Validation rules:
//   - occurrence id must not be empty or the shared sentinel
//   - store busy timeout must not be negative
//   - scheduler limits must be positive, max_thought_depth at most 7
//   - pipeline stage names must not be blank
//   - maintenance windows must be positive (retention may be zero)
//   - ritual windows, timeouts and poll intervals must be positive
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.ErrConfigNil
	}

	if err := validateOccurrenceConfig(&cfg.Occurrence); err != nil {
		return err
	}
	if cfg.Store.BusyTimeout < 0 {
		return errors.Wrapf(errors.ErrConfigInvalidStore,
			"store.busy_timeout must not be negative, got %s", cfg.Store.BusyTimeout)
	}
	if err := validateSchedulerConfig(&cfg.Scheduler); err != nil {
		return err
	}
	if err := validatePipelineConfig(&cfg.Pipeline); err != nil {
		return err
	}
	if err := validateMaintenanceConfig(&cfg.Maintenance); err != nil {
		return err
	}
	return validateLifecycleConfig(&cfg.Wakeup, &cfg.Shutdown)
}

func validateOccurrenceConfig(cfg *OccurrenceConfig) error {
	id := strings.TrimSpace(cfg.ID)
	if id == "" {
		return errors.Wrap(errors.ErrConfigInvalidOccurrence, "occurrence.id must not be empty")
	}
	if id == constants.SharedOccurrenceID {
		return errors.Wrapf(errors.ErrConfigInvalidOccurrence,
			"occurrence.id %q is reserved for shared tasks", id)
	}
	return nil
}

func validateSchedulerConfig(cfg *SchedulerConfig) error {
	positive := []struct {
		key   string
		value int
	}{
		{"scheduler.max_active_tasks", cfg.MaxActiveTasks},
		{"scheduler.max_active_thoughts", cfg.MaxActiveThoughts},
		{"scheduler.batch_size", cfg.BatchSize},
		{"scheduler.max_round_number", cfg.MaxRoundNumber},
	}
	for _, p := range positive {
		if p.value < 1 {
			return errors.Wrapf(errors.ErrConfigInvalidScheduler, "%s must be positive, got %d", p.key, p.value)
		}
	}
	if cfg.MaxThoughtDepth < 1 || cfg.MaxThoughtDepth > constants.MaxThoughtDepth {
		return errors.Wrapf(errors.ErrConfigInvalidScheduler,
			"scheduler.max_thought_depth must be between 1 and %d, got %d", constants.MaxThoughtDepth, cfg.MaxThoughtDepth)
	}
	if cfg.RoundDelay < 0 {
		return errors.Wrapf(errors.ErrConfigInvalidScheduler,
			"scheduler.round_delay must not be negative, got %s", cfg.RoundDelay)
	}
	return nil
}

// validatePipelineConfig checks the shape of the pipeline section. Stage names
// are resolved against the known stages when the controller is built.
func validatePipelineConfig(cfg *PipelineConfig) error {
	for i, name := range cfg.EnabledStages {
		if strings.TrimSpace(name) == "" {
			return errors.Wrapf(errors.ErrConfigInvalidPipeline, "pipeline.enabled_stages[%d] is blank", i)
		}
	}
	if cfg.MaxTimingHistory < 1 {
		return errors.Wrapf(errors.ErrConfigInvalidPipeline,
			"pipeline.max_timing_history must be positive, got %d", cfg.MaxTimingHistory)
	}
	return nil
}

func validateMaintenanceConfig(cfg *MaintenanceConfig) error {
	windows := []struct {
		key   string
		value time.Duration
	}{
		{"maintenance.shared_task_stale_after", cfg.SharedTaskStaleAfter},
		{"maintenance.stale_task_age", cfg.StaleTaskAge},
		{"maintenance.orphan_grace", cfg.OrphanGrace},
	}
	for _, w := range windows {
		if w.value <= 0 {
			return errors.Wrapf(errors.ErrConfigInvalidMaintenance, "%s must be positive, got %s", w.key, w.value)
		}
	}
	if cfg.CompletedRetention < 0 {
		return errors.Wrapf(errors.ErrConfigInvalidMaintenance,
			"maintenance.completed_retention must not be negative, got %s", cfg.CompletedRetention)
	}
	return nil
}

func validateLifecycleConfig(wakeup *WakeupConfig, shutdown *ShutdownConfig) error {
	windows := []struct {
		key   string
		value time.Duration
	}{
		{"wakeup.completion_window", wakeup.CompletionWindow},
		{"wakeup.step_timeout", wakeup.StepTimeout},
		{"wakeup.poll_interval", wakeup.PollInterval},
		{"shutdown.completion_window", shutdown.CompletionWindow},
		{"shutdown.timeout", shutdown.Timeout},
	}
	for _, w := range windows {
		if w.value <= 0 {
			return errors.Wrapf(errors.ErrConfigInvalidLifecycle, "%s must be positive, got %s", w.key, w.value)
		}
	}
	if wakeup.MaxRounds < 0 {
		return errors.Wrapf(errors.ErrConfigInvalidLifecycle,
			"wakeup.max_rounds must not be negative, got %d", wakeup.MaxRounds)
	}
	if shutdown.MaxRounds < 1 {
		return errors.Wrapf(errors.ErrConfigInvalidLifecycle,
			"shutdown.max_rounds must be positive, got %d", shutdown.MaxRounds)
	}
	return nil
}
