package nlog

import (
	"log/slog"

	"github.com/joeycumines/logiface"
	islog "github.com/joeycumines/logiface-slog"
)

// LogifaceAdapter implements Logger on top of a chainable
// github.com/joeycumines/logiface Logger, so entries logged through the
// plain nlog.Logger interface also flow through logiface's builder
// pipeline (rate limiting, JSON/structured sinks, slog interop, ...).
// Callers who want the chainable logger.Info().Str(...).Log(...) API
// directly can still reach it via LogifaceAdapter.Logger.
type LogifaceAdapter struct {
	logger *logiface.Logger[*islog.Event]
}

// NewLogifaceAdapter builds a LogifaceAdapter whose sink is a slog.Handler,
// via the teacher's own logiface-slog bridge.
func NewLogifaceAdapter(handler slog.Handler) *LogifaceAdapter {
	return &LogifaceAdapter{
		logger: islog.L.New(islog.L.WithSlogHandler(handler)),
	}
}

// Logger exposes the underlying chainable logiface logger.
func (a *LogifaceAdapter) Logger() *logiface.Logger[*islog.Event] { return a.logger }

func toLogifaceLevel(level Level) logiface.Level {
	switch level {
	case LevelDebug:
		return logiface.LevelDebug
	case LevelInfo:
		return logiface.LevelInformational
	case LevelWarn:
		return logiface.LevelWarning
	case LevelError:
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}

// IsEnabled reports whether level would reach the underlying logiface sink.
func (a *LogifaceAdapter) IsEnabled(level Level) bool {
	return toLogifaceLevel(level) <= a.logger.Level()
}

// Log translates entry into a logiface builder chain and emits it.
func (a *LogifaceAdapter) Log(entry Entry) {
	b := a.logger.Build(toLogifaceLevel(entry.Level))
	if b == nil {
		return
	}
	if entry.Category != "" {
		b = b.Str("category", entry.Category)
	}
	if entry.ObjectID != 0 {
		b = b.Uint64("object", entry.ObjectID)
	}
	if entry.TaskID != 0 {
		b = b.Uint64("task", entry.TaskID)
	}
	for k, v := range entry.Fields {
		b = b.Any(k, v)
	}
	if entry.Err != nil {
		b = b.Err(entry.Err)
	}
	b.Log(entry.Message)
}
