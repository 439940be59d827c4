package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/cortex/internal/config"
	"github.com/mrz1836/cortex/internal/constants"
)

// isolate points CORTEX_HOME at a fresh directory, clears every other
// CORTEX_ variable and moves into an empty working directory so no real
// config is read. It returns the home directory.
func isolate(t *testing.T) string {
	t.Helper()

	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, constants.EnvPrefix+"_") {
			t.Setenv(key, "")
			require.NoError(t, os.Unsetenv(key))
		}
	}

	home := t.TempDir()
	t.Setenv(constants.HomeEnvVar, home)
	t.Setenv("NO_COLOR", "1")
	t.Setenv("CORTEX_WAKEUP_POLL_INTERVAL", "5ms")
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return home
}

// execute runs the root command with args and returns everything written to
// stdout and stderr.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd(&GlobalFlags{}, BuildInfo{Version: "test"})
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	CloseLogFile()
	return buf.String(), err
}

// writeGlobalConfig writes content to the global config file under home.
func writeGlobalConfig(t *testing.T, home, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(home, constants.GlobalConfigName), []byte(content), 0o600))
}

// newTestApp opens an app on a fresh database with fast ritual timings.
func newTestApp(t *testing.T) *app {
	t.Helper()
	isolate(t)

	cfg := config.DefaultConfig()
	cfg.Store.Path = filepath.Join(t.TempDir(), "cortex.db")
	cfg.Wakeup.PollInterval = 5 * time.Millisecond
	cfg.Wakeup.StepTimeout = 5 * time.Second
	cfg.Shutdown.Timeout = 10 * time.Second

	a, err := openApp(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}
