package logging

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLevel("chatty"))
	assert.Equal(t, "WARN", LevelWarn.String())
}

func TestLoggerWritesRunLogEventsAndSession(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer
	require.NoError(t, ReInit(LoggerConfig{
		LogDir:     dir,
		FileName:   "uninstall.log",
		Level:      LevelInfo,
		Console:    &console,
		EnableJSON: true,
	}))
	t.Cleanup(CloseLogger)

	assert.Equal(t, filepath.Join(dir, "uninstall.log"), LogFile())
	assert.Equal(t, dir, LogDir())

	Debug("hidden at info level")
	LogInstallFailed("7-Zip", "24.08", errors.New("exit status 1603"))

	summary := &SessionSummary{RunType: "install", ExitCode: 1}
	summary.Add(
		EntryResult{Name: "7-Zip", Action: "install", Status: StatusFailed, Error: "exit status 1603"},
		EntryResult{Name: "Git", Action: "install", Status: StatusSkipped},
	)
	require.NoError(t, EndSession(summary))
	CloseLogger()

	runLog, err := os.ReadFile(filepath.Join(dir, "uninstall.log"))
	require.NoError(t, err)
	assert.Contains(t, string(runLog), "Installation failed")
	assert.Contains(t, string(runLog), "7-Zip")
	assert.NotContains(t, string(runLog), "hidden at info level")
	assert.Contains(t, console.String(), "Installation failed")

	events, err := os.ReadFile(filepath.Join(dir, "events.jsonl"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(events)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"event_type":"install"`)
	assert.Contains(t, lines[0], `"status":"failed"`)

	raw, err := os.ReadFile(filepath.Join(dir, "session.yaml"))
	require.NoError(t, err)
	var got SessionSummary
	require.NoError(t, yaml.Unmarshal(raw, &got))
	assert.Equal(t, 1, got.ExitCode)
	assert.Equal(t, 1, got.Failures)
	assert.Equal(t, 1, got.Skipped)
	assert.Len(t, got.Entries, 2)
	assert.False(t, got.StartTime.IsZero())
}
