package logging

import (
	"context"
	"log/slog"
)

// Level is a numeric log severity understood by the webhook core.
type Level int

const (
	LevelError Level = 2
	LevelWarn  Level = 3
	LevelInfo  Level = 4
)

// Sink is the minimal logging capability the webhook core depends on.
type Sink interface {
	Log(level Level, message string)
}

// SlogSink adapts slog.Logger to Sink.
type SlogSink struct {
	logger *slog.Logger
}

// NewSink wraps logger and tags every record with the service name.
// Params: base slog logger (nil discards) and service label.
// Returns: sink bound to the service.
func NewSink(logger *slog.Logger, service string) *SlogSink {
	if logger == nil {
		logger = slog.New(discardHandler{})
	}
	return &SlogSink{logger: logger.With("service", service)}
}

// With returns a sink that adds attributes to every record.
// Params: slog key/value pairs.
// Returns: derived sink.
func (s *SlogSink) With(args ...any) *SlogSink {
	return &SlogSink{logger: s.logger.With(args...)}
}

// Log writes message at the slog level matching level.
// Params: core level and message text.
// Returns: nothing.
func (s *SlogSink) Log(level Level, message string) {
	s.logger.Log(context.Background(), level.slog(), message)
}

// slog maps core levels onto slog levels; unknown levels log as debug.
func (l Level) slog() slog.Level {
	switch l {
	case LevelError:
		return slog.LevelError
	case LevelWarn:
		return slog.LevelWarn
	case LevelInfo:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// Discard returns a sink that drops everything.
// Params: none.
// Returns: no-op sink.
func Discard() Sink {
	return NewSink(nil, "")
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
