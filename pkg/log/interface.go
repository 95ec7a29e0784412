// Package log provides the structured logging interface used across losocv.
//
// The interface is slog-compatible: messages carry alternating key-value
// fields, and contextual loggers are derived with With. The production
// backend is zerolog (see NewZerologLogger); tests capture output with
// TestLogger; library types default to NopLogger until a logger is injected.
//
// Example usage:
//
//	logger := log.NewZerologLogger(os.Stderr, log.LevelInfo, log.FormatConsole).With(
//	    log.RunIDKey, runID,
//	    log.NormKey, "global",
//	)
//	logger.Info("fold finished",
//	    log.FoldKey, 3,
//	    log.SubjectKey, "S07",
//	    log.AccuracyKey, 0.81,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
type Logger interface {
	// Debug logs a debug-level message with optional key-value fields.
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional key-value fields.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional key-value fields.
	Warn(msg string, fields ...any)

	// Error logs an error-level message. If the first field is an error it is
	// logged under the "error" key together with its stack trace, and the
	// remaining fields are key-value pairs:
	//
	//	logger.Error("evaluation failed", err, log.FoldKey, 4)
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits log records at the given level.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4 // Detailed diagnostic information
	LevelInfo  Level = 0  // General operational information
	LevelWarn  Level = 4  // Warning conditions
	LevelError Level = 8  // Error conditions
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider creates and configures loggers.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger tagged with a component name.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for all loggers created by this provider.
	SetLevel(level Level)
}
