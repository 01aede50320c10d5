package nlog_test

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/joeycumines/nlib/nlog"
	"github.com/stretchr/testify/require"
)

func TestWriterLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := nlog.NewWriterLogger(nlog.LevelWarn, &buf)

	require.False(t, l.IsEnabled(nlog.LevelDebug))
	require.True(t, l.IsEnabled(nlog.LevelWarn))

	l.Log(nlog.Entry{Level: nlog.LevelDebug, Category: "task", Message: "ignored"})
	require.Empty(t, buf.String())

	l.Log(nlog.Entry{Level: nlog.LevelWarn, Category: "task", Message: "slow tick", Fields: map[string]any{"n": 3}})
	require.Contains(t, buf.String(), "slow tick")
	require.Contains(t, buf.String(), "task")
	require.Contains(t, buf.String(), "n=3")
}

func TestWriterLoggerIncludesErrAndIDs(t *testing.T) {
	var buf bytes.Buffer
	l := nlog.NewWriterLogger(nlog.LevelError, &buf)
	l.Log(nlog.Entry{
		Level:    nlog.LevelError,
		Category: "resource",
		Message:  "load failed",
		ObjectID: 7,
		TaskID:   42,
		Err:      errors.New("disk error"),
	})
	out := buf.String()
	require.Contains(t, out, "object=7")
	require.Contains(t, out, "task=42")
	require.Contains(t, out, "err=disk error")
}

func TestGlobalLoggerDefaultsToNoOp(t *testing.T) {
	nlog.SetLogger(nil)
	require.NotPanics(t, func() {
		nlog.Info("task", "hello", nil)
	})
}

func TestGlobalLoggerRoutesThroughSetLogger(t *testing.T) {
	var buf bytes.Buffer
	nlog.SetLogger(nlog.NewWriterLogger(nlog.LevelInfo, &buf))
	defer nlog.SetLogger(nil)

	nlog.Debug("task", "should not appear", nil)
	nlog.Info("task", "scheduled", map[string]any{"priority": "high"})

	out := buf.String()
	require.NotContains(t, out, "should not appear")
	require.Contains(t, out, "scheduled")
	require.Contains(t, out, "priority=high")
}

func TestLogifaceAdapterEmitsThroughSlogHandler(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	adapter := nlog.NewLogifaceAdapter(handler)

	require.True(t, adapter.IsEnabled(nlog.LevelInfo))
	adapter.Log(nlog.Entry{
		Level:    nlog.LevelInfo,
		Category: "scheduler",
		Message:  "worker started",
		Fields:   map[string]any{"workers": 4},
	})

	out := buf.String()
	require.Contains(t, out, "worker started")
	require.Contains(t, out, "category=scheduler")
}
