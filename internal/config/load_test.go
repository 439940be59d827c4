package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/cortex/internal/constants"
	"github.com/mrz1836/cortex/internal/errors"
)

// isolate points the global directory and the working directory at fresh temp
// dirs and clears CORTEX_ variables from the environment.
func isolate(t *testing.T) (globalDir, projectDir string) {
	t.Helper()
	for _, env := range os.Environ() {
		key, _, _ := strings.Cut(env, "=")
		if strings.HasPrefix(key, "CORTEX_") {
			t.Setenv(key, "")
			require.NoError(t, os.Unsetenv(key))
		}
	}
	globalDir = t.TempDir()
	t.Setenv(constants.HomeEnvVar, globalDir)
	projectDir = t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(projectDir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return globalDir, projectDir
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoad_ReturnsDefaultsWhenNoConfigFile(t *testing.T) {
	isolate(t)

	cfg, err := Load(context.Background())
	require.NoError(t, err, "Load should not fail when no config file exists")
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_MergesGlobalAndProjectConfigs(t *testing.T) {
	globalDir, projectDir := isolate(t)

	writeConfig(t, filepath.Join(globalDir, "config.yaml"), `
occurrence:
  id: global-occ
scheduler:
  batch_size: 2
  round_delay: 3s
`)
	writeConfig(t, filepath.Join(projectDir, ".cortex", "config.yaml"), `
scheduler:
  batch_size: 4
`)

	cfg, err := Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "global-occ", cfg.Occurrence.ID, "global value survives")
	assert.Equal(t, 4, cfg.Scheduler.BatchSize, "project wins")
	assert.Equal(t, 3*time.Second, cfg.Scheduler.RoundDelay, "nested keys merge")
	assert.Equal(t, 10, cfg.Scheduler.MaxActiveThoughts, "defaults fill the rest")
}

func TestLoad_EnvVarOverridesConfigFile(t *testing.T) {
	_, projectDir := isolate(t)

	writeConfig(t, filepath.Join(projectDir, ".cortex", "config.yaml"), `
occurrence:
  id: from-file
wakeup:
  step_timeout: 10s
`)
	t.Setenv("CORTEX_OCCURRENCE_ID", "from-env")
	t.Setenv("CORTEX_WAKEUP_STEP_TIMEOUT", "2s")
	t.Setenv("CORTEX_PIPELINE_ENABLED_STAGES", "build_context,handler_start")

	cfg, err := Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Occurrence.ID)
	assert.Equal(t, 2*time.Second, cfg.Wakeup.StepTimeout)
	assert.Equal(t, []string{"build_context", "handler_start"}, cfg.Pipeline.EnabledStages)
}

func TestLoadWithOverrides(t *testing.T) {
	isolate(t)

	t.Run("applies non-zero values", func(t *testing.T) {
		cfg, err := LoadWithOverrides(context.Background(), &Config{
			Occurrence: OccurrenceConfig{ID: "cli"},
			Scheduler:  SchedulerConfig{BatchSize: 9, RoundDelay: 50 * time.Millisecond},
			Shutdown:   ShutdownConfig{Timeout: 5 * time.Second},
		})
		require.NoError(t, err)
		assert.Equal(t, "cli", cfg.Occurrence.ID)
		assert.Equal(t, 9, cfg.Scheduler.BatchSize)
		assert.Equal(t, 50*time.Millisecond, cfg.Scheduler.RoundDelay)
		assert.Equal(t, 10, cfg.Scheduler.MaxActiveThoughts)
		assert.Equal(t, 5*time.Second, cfg.Shutdown.Timeout)
		assert.True(t, cfg.Shutdown.Enabled, "bools are not overridden")
	})

	t.Run("nil overrides", func(t *testing.T) {
		cfg, err := LoadWithOverrides(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("invalid override is rejected", func(t *testing.T) {
		_, err := LoadWithOverrides(context.Background(), &Config{
			Occurrence: OccurrenceConfig{ID: constants.SharedOccurrenceID},
		})
		require.ErrorIs(t, err, errors.ErrConfigInvalidOccurrence)
	})
}

func TestLoadFromPaths(t *testing.T) {
	ctx := context.Background()
	isolate(t)
	dir := t.TempDir()

	global := filepath.Join(dir, "global.yaml")
	project := filepath.Join(dir, "project.yaml")
	writeConfig(t, global, `
maintenance:
  stale_task_age: 1h
  orphan_grace: 30s
shutdown:
  completion_window: 2h
`)
	writeConfig(t, project, `
maintenance:
  orphan_grace: 45s
`)

	t.Run("project overrides global", func(t *testing.T) {
		cfg, err := LoadFromPaths(ctx, project, global)
		require.NoError(t, err)
		assert.Equal(t, time.Hour, cfg.Maintenance.StaleTaskAge)
		assert.Equal(t, 45*time.Second, cfg.Maintenance.OrphanGrace)
		assert.Equal(t, 2*time.Hour, cfg.Shutdown.CompletionWindow)
	})

	t.Run("global only", func(t *testing.T) {
		cfg, err := LoadFromPaths(ctx, "", global)
		require.NoError(t, err)
		assert.Equal(t, 30*time.Second, cfg.Maintenance.OrphanGrace)
	})

	t.Run("missing files are skipped", func(t *testing.T) {
		cfg, err := LoadFromPaths(ctx, filepath.Join(dir, "nope.yaml"), "")
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.yaml")
		writeConfig(t, bad, "scheduler: [unclosed")
		_, err := LoadFromPaths(ctx, bad, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read project config")
	})

	t.Run("validation failure", func(t *testing.T) {
		invalid := filepath.Join(dir, "invalid.yaml")
		writeConfig(t, invalid, "scheduler:\n  max_thought_depth: 12\n")
		_, err := LoadFromPaths(ctx, invalid, "")
		require.ErrorIs(t, err, errors.ErrConfigInvalidScheduler)
	})
}
