package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/cortex/internal/constants"
	"github.com/mrz1836/cortex/internal/logging"
)

func TestSelectLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		verbose, quiet bool
		want           zerolog.Level
	}{
		{"default", false, false, zerolog.InfoLevel},
		{"verbose", true, false, zerolog.DebugLevel},
		{"quiet", false, true, zerolog.WarnLevel},
		{"verbose wins", true, true, zerolog.DebugLevel},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, selectLevel(tt.verbose, tt.quiet))
		})
	}
}

func TestInitLoggerWithWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := InitLoggerWithWriter(false, false, &buf)

	logger.Debug().Msg("hidden")
	logger.Info().Str("task_id", "task_1").Msg("task created")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1, "debug is filtered at info level")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "task created", entry["event"])
	assert.Equal(t, "task_1", entry["task_id"])
	assert.Contains(t, entry, "ts")
}

func TestInitLoggerWithWriter_FlagsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := InitLoggerWithWriter(true, false, &buf)

	logger.Info().Msg("connecting with password: hunter2hunter2")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, true, entry["contains_filtered_data"])
}

func TestInitLogger_WritesLogFile(t *testing.T) {
	home := isolate(t)

	logger := InitLogger(false, true)
	logger.Warn().Str("occurrence_id", "default").Msg("written to disk")
	logger.Warn().Msg("login with password: hunter2hunter2")
	CloseLogFile()

	path, err := LogFilePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, constants.LogsDir, constants.CLILogFileName), path)

	data, err := os.ReadFile(path) // #nosec G304 -- test path
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to disk")
	assert.NotContains(t, string(data), "hunter2hunter2")
	assert.Contains(t, string(data), logging.RedactedValue)

	CloseLogFile()
}
