package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/cortex/internal/errors"
)

func TestRootCmd_Help(t *testing.T) {
	t.Parallel()

	cmd := newRootCmd(&GlobalFlags{}, BuildInfo{Version: "test"})
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "CORTEX")
	for _, want := range []string{"--output", "--verbose", "--quiet", "--occurrence", "--db", "--version"} {
		assert.Contains(t, output, want)
	}
	for _, sub := range []string{"run", "status", "task", "shared", "maintenance", "config"} {
		assert.Contains(t, output, sub)
	}
}

func TestRootCmd_Version(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		info           BuildInfo
		expectContains []string
	}{
		{
			name:           "full version info",
			info:           BuildInfo{Version: "1.0.0", Commit: "abc1234", Date: "2026-10-01"},
			expectContains: []string{"1.0.0", "abc1234", "2026-10-01"},
		},
		{
			name:           "default dev version",
			info:           BuildInfo{},
			expectContains: []string{"dev", "none", "unknown"},
		},
		{
			name:           "partial version info",
			info:           BuildInfo{Version: "2.0.0-beta"},
			expectContains: []string{"2.0.0-beta", "none", "unknown"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cmd := newRootCmd(&GlobalFlags{}, tt.info)
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetArgs([]string{"--version"})
			require.NoError(t, cmd.Execute())

			for _, want := range tt.expectContains {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestRootCmd_InvalidOutputFormat(t *testing.T) {
	isolate(t)

	_, err := execute(t, "-o", "xml", "config", "show")
	require.ErrorIs(t, err, errors.ErrInvalidOutputFormat)
	assert.Equal(t, ExitInvalidInput, ExitCodeForError(err))
}

func TestRootCmd_VerboseAndQuietExclusive(t *testing.T) {
	isolate(t)

	_, err := execute(t, "-v", "-q", "config", "show")
	require.Error(t, err)
	assert.Equal(t, ExitInvalidInput, ExitCodeForError(err))
}

func TestRootCmd_VerboseAndQuietFromEnvironment(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{"both from environment", map[string]string{"CORTEX_VERBOSE": "true", "CORTEX_QUIET": "true"}, nil},
		{"flag and environment", map[string]string{"CORTEX_QUIET": "true"}, []string{"-v"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := execute(t, append(tt.args, "config", "show")...)
			require.ErrorIs(t, err, errors.ErrConflictingFlags)
			assert.Equal(t, ExitInvalidInput, ExitCodeForError(err))
		})
	}
}

func TestRootCmd_OutputFromEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("CORTEX_OUTPUT", "json")

	out, err := execute(t, "-q", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, `"occurrence"`, "CORTEX_OUTPUT switches to JSON")
}

func TestFormatVersion(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1.2.3 (commit: abc, built: today)", formatVersion(BuildInfo{Version: "1.2.3", Commit: "abc", Date: "today"}))
	assert.Equal(t, "dev (commit: none, built: unknown)", formatVersion(BuildInfo{}))
}
