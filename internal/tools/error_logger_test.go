package tools

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdfblocks/pdfblocks/internal/testutil"
)

func newTestErrorLogger(t *testing.T) *ToolErrorLogger {
	t.Helper()

	l := &ToolErrorLogger{
		enabled: true,
		logger:  testutil.CreateTestLogger(),
		path:    filepath.Join(t.TempDir(), "tool-errors.log"),
	}
	require.NoError(t, l.reopen())
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func readLogLines(t *testing.T, path string) []string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func TestToolErrorLogger_LogToolError(t *testing.T) {
	l := newTestErrorLogger(t)

	l.LogToolError("read_pdf", map[string]any{"file_path": "missing.pdf"}, errors.New("tool execution failed"), "stdio")
	l.LogToolError("grep_pdf", nil, errors.New("pdfgrep exploded"), "http")

	lines := readLogLines(t, l.path)
	require.Len(t, lines, 2)

	var first ErrorLogEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "read_pdf", first.ToolName)
	assert.Equal(t, "tool execution failed", first.Error)
	assert.Equal(t, "stdio", first.Transport)
	assert.Equal(t, map[string]any{"file_path": "missing.pdf"}, first.Arguments)

	_, err := time.Parse(time.RFC3339, first.Timestamp)
	assert.NoError(t, err, "timestamp should be RFC3339")

	var second ErrorLogEntry
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "grep_pdf", second.ToolName)
	assert.Nil(t, second.Arguments)
}

func TestToolErrorLogger_Disabled(t *testing.T) {
	l := &ToolErrorLogger{}

	// Must be a no-op, not a panic, with no file attached
	l.LogToolError("read_pdf", nil, errors.New("boom"), "stdio")
	assert.False(t, l.IsEnabled())
	assert.Empty(t, l.LogFilePath())
	assert.NoError(t, l.Close())
}

func TestToolErrorLogger_RotationDropsExpiredEntries(t *testing.T) {
	l := newTestErrorLogger(t)

	oldEntry, err := json.Marshal(ErrorLogEntry{
		Timestamp: time.Now().Add(-errorLogRetention - 24*time.Hour).Format(time.RFC3339),
		ToolName:  "read_pdf",
		Error:     "ancient failure",
	})
	require.NoError(t, err)
	youngEntry, err := json.Marshal(ErrorLogEntry{
		Timestamp: time.Now().Add(-time.Hour).Format(time.RFC3339),
		ToolName:  "list_pdfs",
		Error:     "recent failure",
	})
	require.NoError(t, err)
	malformed := "not json at all"

	content := strings.Join([]string{string(oldEntry), string(youngEntry), malformed}, "\n") + "\n"
	require.NoError(t, os.WriteFile(l.path, []byte(content), 0o600))

	require.NoError(t, l.dropExpiredEntries())

	lines := readLogLines(t, l.path)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "recent failure")
	assert.Equal(t, malformed, lines[1], "unparseable lines survive rotation")
}

func TestToolErrorLogger_AppendsAfterRotation(t *testing.T) {
	l := newTestErrorLogger(t)

	require.NoError(t, l.dropExpiredEntries())
	l.LogToolError("read_pdf", nil, errors.New("after rotation"), "stdio")

	lines := readLogLines(t, l.path)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "after rotation")
}
