package config

import (
	"context"
	stderrors "errors"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/mrz1836/cortex/internal/constants"
	"github.com/mrz1836/cortex/internal/errors"
)

// newViperInstance creates a new Viper instance with standard CORTEX configuration.
// This includes environment variable prefix (CORTEX_), key replacer, and defaults.
func newViperInstance() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// isConfigNotFoundError returns true if the error is a viper config file not found error.
func isConfigNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var configNotFoundErr viper.ConfigFileNotFoundError
	return stderrors.As(err, &configNotFoundErr)
}

// unmarshalAndValidate unmarshals viper config into Config struct and validates it.
func unmarshalAndValidate(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viperDecoderOption()); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := Validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

// Load reads configuration from all available sources with proper precedence.
// Configuration is loaded in the following order (highest precedence first):
//  1. Environment variables (CORTEX_* prefix)
//  2. Project config (.cortex/config.yaml)
//  3. Global config (~/.cortex/config.yaml)
//  4. Built-in defaults
//
// For CLI flag overrides, use LoadWithOverrides instead.
//
// Missing config files are not an error.
func Load(ctx context.Context) (*Config, error) {
	v := newViperInstance()

	if err := loadGlobalConfig(v); err != nil {
		return nil, err
	}
	if err := loadProjectConfig(v); err != nil {
		return nil, err
	}

	cfg, err := unmarshalAndValidate(v)
	if err != nil {
		return nil, err
	}

	logger := zerolog.Ctx(ctx).With().Str("component", "config").Logger()
	logger.Debug().
		Str("occurrence.id", cfg.Occurrence.ID).
		Int("scheduler.max_active_thoughts", cfg.Scheduler.MaxActiveThoughts).
		Int("scheduler.batch_size", cfg.Scheduler.BatchSize).
		Dur("scheduler.round_delay", cfg.Scheduler.RoundDelay).
		Msg("configuration loaded and unmarshaled")

	return cfg, nil
}

// loadGlobalConfig attempts to load the global config file (~/.cortex/config.yaml).
// Returns nil if the file doesn't exist or home directory cannot be determined.
func loadGlobalConfig(v *viper.Viper) error {
	globalConfigPath, err := GlobalConfigPath()
	if err != nil || !fileExists(globalConfigPath) {
		return nil
	}

	v.SetConfigFile(globalConfigPath)
	if err := v.ReadInConfig(); err != nil && !isConfigNotFoundError(err) {
		return errors.Wrap(err, "failed to read global config file")
	}
	return nil
}

// loadProjectConfig attempts to load the project config file (.cortex/config.yaml).
// Returns nil if the file doesn't exist.
func loadProjectConfig(v *viper.Viper) error {
	projectConfigPath := ProjectConfigPath()
	if !fileExists(projectConfigPath) {
		return nil
	}

	v.SetConfigFile(projectConfigPath)
	if err := v.MergeInConfig(); err != nil && !isConfigNotFoundError(err) {
		return errors.Wrap(err, "failed to read project config file")
	}
	return nil
}

// fileExists returns true if the file at path exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LoadWithOverrides loads configuration and applies CLI flag overrides.
// Only non-zero values in overrides are applied.
func LoadWithOverrides(ctx context.Context, overrides *Config) (*Config, error) {
	cfg, err := Load(ctx)
	if err != nil {
		return nil, err
	}

	if overrides != nil {
		applyOverrides(cfg, overrides)
	}

	if err := Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration after overrides")
	}
	return cfg, nil
}

// LoadFromPaths loads configuration from specific file paths for testing.
//
// projectConfigPath is the path to project-level config (higher priority).
// globalConfigPath is the path to global config (lower priority).
// Either path can be empty to skip that level.
func LoadFromPaths(_ context.Context, projectConfigPath, globalConfigPath string) (*Config, error) {
	v := newViperInstance()

	if globalConfigPath != "" {
		v.SetConfigFile(globalConfigPath)
		if err := v.ReadInConfig(); err != nil && !isConfigNotFoundError(err) && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to read global config: %s", globalConfigPath)
		}
	}

	if projectConfigPath != "" {
		v.SetConfigFile(projectConfigPath)
		if err := v.MergeInConfig(); err != nil && !isConfigNotFoundError(err) && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to read project config: %s", projectConfigPath)
		}
	}

	return unmarshalAndValidate(v)
}

// setDefaults configures all default values on the Viper instance.
// Keys must match the YAML tag names exactly, and every key needs a default
// so AutomaticEnv can see it.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("occurrence.id", d.Occurrence.ID)

	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.busy_timeout", d.Store.BusyTimeout.String())

	v.SetDefault("scheduler.max_active_tasks", d.Scheduler.MaxActiveTasks)
	v.SetDefault("scheduler.max_active_thoughts", d.Scheduler.MaxActiveThoughts)
	v.SetDefault("scheduler.batch_size", d.Scheduler.BatchSize)
	v.SetDefault("scheduler.round_delay", d.Scheduler.RoundDelay.String())
	v.SetDefault("scheduler.max_round_number", d.Scheduler.MaxRoundNumber)
	v.SetDefault("scheduler.max_thought_depth", d.Scheduler.MaxThoughtDepth)

	v.SetDefault("pipeline.enabled_stages", d.Pipeline.EnabledStages)
	v.SetDefault("pipeline.max_timing_history", d.Pipeline.MaxTimingHistory)

	v.SetDefault("maintenance.shared_task_stale_after", d.Maintenance.SharedTaskStaleAfter.String())
	v.SetDefault("maintenance.stale_task_age", d.Maintenance.StaleTaskAge.String())
	v.SetDefault("maintenance.orphan_grace", d.Maintenance.OrphanGrace.String())
	v.SetDefault("maintenance.completed_retention", d.Maintenance.CompletedRetention.String())

	v.SetDefault("wakeup.enabled", d.Wakeup.Enabled)
	v.SetDefault("wakeup.completion_window", d.Wakeup.CompletionWindow.String())
	v.SetDefault("wakeup.step_timeout", d.Wakeup.StepTimeout.String())
	v.SetDefault("wakeup.poll_interval", d.Wakeup.PollInterval.String())
	v.SetDefault("wakeup.max_rounds", d.Wakeup.MaxRounds)

	v.SetDefault("shutdown.enabled", d.Shutdown.Enabled)
	v.SetDefault("shutdown.completion_window", d.Shutdown.CompletionWindow.String())
	v.SetDefault("shutdown.timeout", d.Shutdown.Timeout.String())
	v.SetDefault("shutdown.max_rounds", d.Shutdown.MaxRounds)
}

// applyOverrides merges non-zero override values into the config.
//
// Boolean fields (Wakeup.Enabled, Shutdown.Enabled) cannot be overridden to
// false here. The CLI sets them directly when the flag was changed.
func applyOverrides(cfg, overrides *Config) {
	if overrides.Occurrence.ID != "" {
		cfg.Occurrence.ID = overrides.Occurrence.ID
	}
	if overrides.Store.Path != "" {
		cfg.Store.Path = overrides.Store.Path
	}
	if overrides.Store.BusyTimeout != 0 {
		cfg.Store.BusyTimeout = overrides.Store.BusyTimeout
	}
	applySchedulerOverrides(&cfg.Scheduler, &overrides.Scheduler)
	if len(overrides.Pipeline.EnabledStages) > 0 {
		cfg.Pipeline.EnabledStages = overrides.Pipeline.EnabledStages
	}
	if overrides.Wakeup.MaxRounds != 0 {
		cfg.Wakeup.MaxRounds = overrides.Wakeup.MaxRounds
	}
	if overrides.Shutdown.Timeout != 0 {
		cfg.Shutdown.Timeout = overrides.Shutdown.Timeout
	}
}

// applySchedulerOverrides applies scheduler overrides.
// This is extracted from applyOverrides to reduce cognitive complexity.
func applySchedulerOverrides(cfg, overrides *SchedulerConfig) {
	if overrides.MaxActiveTasks != 0 {
		cfg.MaxActiveTasks = overrides.MaxActiveTasks
	}
	if overrides.MaxActiveThoughts != 0 {
		cfg.MaxActiveThoughts = overrides.MaxActiveThoughts
	}
	if overrides.BatchSize != 0 {
		cfg.BatchSize = overrides.BatchSize
	}
	if overrides.RoundDelay != 0 {
		cfg.RoundDelay = overrides.RoundDelay
	}
	if overrides.MaxRoundNumber != 0 {
		cfg.MaxRoundNumber = overrides.MaxRoundNumber
	}
	if overrides.MaxThoughtDepth != 0 {
		cfg.MaxThoughtDepth = overrides.MaxThoughtDepth
	}
}

// viperDecoderOption returns the decoder options for Viper unmarshal.
// This configures mapstructure to handle time.Duration conversion from strings
// and comma separated stage lists from the environment.
func viperDecoderOption() viper.DecoderConfigOption {
	return viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	)
}
