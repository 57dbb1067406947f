package logger

import (
	"io"
	"log/slog"
	"strings"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) slogLevel() slog.Level {
	switch l {
	case DEBUG:
		return slog.LevelDebug
	case WARN:
		return slog.LevelWarn
	case ERROR:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel maps a level name to a Level, case-insensitively. Unknown
// names map to INFO.
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

type Logger struct {
	sl *slog.Logger
}

// NewWithWriter creates a logger writing to w; format is "text" or "json".
func NewWithWriter(level, format string, w io.Writer) *Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{Level: lvl.slogLevel()}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{sl: slog.New(handler)}
}

// Nop discards everything.
func Nop() *Logger {
	return NewWithWriter("error", "text", io.Discard)
}

// With returns a logger that adds the given attributes to every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{sl: l.sl.With(args...)}
}

// Slog exposes the underlying logger, e.g. for slog.SetDefault.
func (l *Logger) Slog() *slog.Logger {
	return l.sl
}

func (l *Logger) Debug(msg string, args ...any) {
	l.sl.Debug(msg, args...)
}

func (l *Logger) Info(msg string, args ...any) {
	l.sl.Info(msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.sl.Warn(msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.sl.Error(msg, args...)
}
