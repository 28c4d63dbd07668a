package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withBuffer(t *testing.T, cfg Config) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := globalLogger
	globalLogger = NewWithWriter(&buf, cfg)
	t.Cleanup(func() { globalLogger = prev })
	return &buf
}

func TestContextFields(t *testing.T) {
	buf := withBuffer(t, Config{Level: "info", Format: "json"})

	ctx := ContextWithTrace(context.Background(), "trace-1", "span-1", "req-1")
	Info(ctx, "priced", "kind", "EURO_CALL")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "priced", entry["msg"])
	assert.Equal(t, "trace-1", entry["trace_id"])
	assert.Equal(t, "span-1", entry["span_id"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "EURO_CALL", entry["kind"])

	assert.Equal(t, "trace-1", TraceID(ctx))
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Empty(t, TraceID(context.Background()))
}

func TestLevelFiltering(t *testing.T) {
	buf := withBuffer(t, Config{Level: "warn", Format: "text"})

	Info(context.Background(), "hidden")
	Debug(context.Background(), "hidden")
	assert.Empty(t, buf.String())

	Error(context.Background(), "shown")
	assert.Contains(t, buf.String(), "msg=shown")
	assert.Contains(t, buf.String(), "level=ERROR")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "pricing.log")
	l, err := New(Config{Level: "info", Output: "file", FilePath: path, MaxSize: 1})
	require.NoError(t, err)
	assert.NotNil(t, l)
	assert.DirExists(t, filepath.Dir(path))
}
