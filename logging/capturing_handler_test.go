package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cellKey = "https://json-schema.org/draft/2020-12/schema"

func newCapturingLogger(collector *LogCollector, out *bytes.Buffer) *slog.Logger {
	underlying := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo})
	return slog.New(NewCapturingHandler(underlying, collector, cellKey))
}

func TestCapturingHandler_CapturesAndPassesThrough(t *testing.T) {
	collector := NewLogCollector()
	var out bytes.Buffer
	logger := newCapturingLogger(collector, &out)

	logger.Info("cell completed", "duration", 3*time.Second, "tests", int64(42))

	entries := collector.GetLogs(cellKey)
	require.Len(t, entries, 1)
	assert.Equal(t, "INFO", entries[0].Level)
	assert.Equal(t, "cell completed", entries[0].Message)
	assert.Equal(t, "3s", entries[0].Attributes["duration"])
	assert.Equal(t, int64(42), entries[0].Attributes["tests"])

	// The record still reached the wrapped handler.
	assert.Contains(t, out.String(), `"msg":"cell completed"`)
}

func TestCapturingHandler_CapturesBelowUnderlyingLevel(t *testing.T) {
	collector := NewLogCollector()
	var out bytes.Buffer
	logger := newCapturingLogger(collector, &out)

	logger.Debug("harness invocation details")

	// Captured even though the underlying handler filters debug out.
	entries := collector.GetLogs(cellKey)
	require.Len(t, entries, 1)
	assert.Equal(t, "DEBUG", entries[0].Level)
}

func TestCapturingHandler_WithAttrsPreservesCapture(t *testing.T) {
	collector := NewLogCollector()
	var out bytes.Buffer
	logger := newCapturingLogger(collector, &out).With("key", cellKey)

	logger.Warn("report failed validation", "reason", "truncated")

	entries := collector.GetLogs(cellKey)
	require.Len(t, entries, 1)
	assert.Equal(t, cellKey, entries[0].Attributes["key"])
	assert.Equal(t, "truncated", entries[0].Attributes["reason"])
}

func TestCapturingHandler_ErrorAttrsBecomeStrings(t *testing.T) {
	collector := NewLogCollector()
	var out bytes.Buffer
	logger := newCapturingLogger(collector, &out)

	logger.Error("matrix cell execution failed", "error", errors.New("tool crashed"))

	entries := collector.GetLogs(cellKey)
	require.Len(t, entries, 1)
	assert.Equal(t, "tool crashed", entries[0].Attributes["error"])
}

func TestCapturingHandler_GroupValues(t *testing.T) {
	collector := NewLogCollector()
	var out bytes.Buffer
	logger := newCapturingLogger(collector, &out)

	logger.Info("deployed", slog.Group("target", slog.String("name", "site"), slog.Int("files", 7)))

	entries := collector.GetLogs(cellKey)
	require.Len(t, entries, 1)
	group, ok := entries[0].Attributes["target"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "site", group["name"])
	assert.Equal(t, int64(7), group["files"])
}

func TestCapturingLoggerHook(t *testing.T) {
	collector := NewLogCollector()
	hook := NewCapturingLoggerHook(collector)
	base := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	hook.LoggerForCell(base, "cell-a").Info("from a")
	hook.LoggerForCell(base, "cell-b").Info("from b")

	assert.Len(t, collector.GetLogs("cell-a"), 1)
	assert.Len(t, collector.GetLogs("cell-b"), 1)
	assert.Equal(t, "from a", collector.GetLogs("cell-a")[0].Message)
}

func TestLogCollector_Concurrent(t *testing.T) {
	collector := NewLogCollector()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				collector.AddLog("shared", LogEntry{Message: "m"})
			}
		}()
	}
	wg.Wait()

	assert.Len(t, collector.GetLogs("shared"), 400)
}

func TestLogCollector_GetAllLogsIsACopy(t *testing.T) {
	collector := NewLogCollector()
	collector.AddLog("a", LogEntry{Message: "one"})

	all := collector.GetAllLogs()
	all["a"][0].Message = "mutated"
	all["b"] = []LogEntry{{Message: "injected"}}

	assert.Equal(t, "one", collector.GetLogs("a")[0].Message)
	assert.Nil(t, collector.GetLogs("b"))
}

func TestLogCollector_Clear(t *testing.T) {
	collector := NewLogCollector()
	collector.AddLog("a", LogEntry{Message: "one"})

	collector.Clear()

	assert.Empty(t, collector.GetAllLogs())
}

func TestLogCollector_UnknownScope(t *testing.T) {
	collector := NewLogCollector()
	assert.Nil(t, collector.GetLogs("never-logged"))
}
