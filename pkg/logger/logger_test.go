package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLoggerTest(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	Initialize(Config{Level: level, Format: "json", Output: buf})
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })
	return buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestInfoWritesFieldsAndCaller(t *testing.T) {
	buf := setupLoggerTest(t, "info")

	Info("cart item added", map[string]interface{}{"session": "abc", "quantity": 2})

	entry := lastEntry(t, buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "cart item added", entry["message"])
	assert.Equal(t, "abc", entry["session"])
	assert.EqualValues(t, 2, entry["quantity"])
	assert.Contains(t, entry["caller"], "logger_test.go")
}

func TestErrorIncludesCause(t *testing.T) {
	buf := setupLoggerTest(t, "info")

	Error("persist failed", errors.New("disk full"))

	entry := lastEntry(t, buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "disk full", entry["error"])
}

func TestLevelFiltersDebug(t *testing.T) {
	buf := setupLoggerTest(t, "warn")

	Debug("hidden")
	Info("hidden too")
	assert.Empty(t, buf.String())

	Warn("shown")
	assert.Equal(t, "shown", lastEntry(t, buf)["message"])
}

func TestWithContextAddsFields(t *testing.T) {
	buf := setupLoggerTest(t, "debug")

	l := WithContext(map[string]interface{}{"component": "checkout"})
	l.Debug("state changed", map[string]interface{}{"state": "VALIDATING"})

	entry := lastEntry(t, buf)
	assert.Equal(t, "checkout", entry["component"])
	assert.Equal(t, "VALIDATING", entry["state"])
	assert.Contains(t, entry["caller"], "logger_test.go")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLogLevel("debug"))
	assert.Equal(t, zerolog.ErrorLevel, parseLogLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, parseLogLevel("nonsense"))
}
