package log

import "context"

// NopLogger discards every record. It is the default logger of library types.
type NopLogger struct{}

// Nop returns a Logger that discards everything.
func Nop() Logger { return NopLogger{} }

func (NopLogger) Debug(string, ...any)                {}
func (NopLogger) Info(string, ...any)                 {}
func (NopLogger) Warn(string, ...any)                 {}
func (NopLogger) Error(string, ...any)                {}
func (n NopLogger) With(...any) Logger                { return n }
func (NopLogger) Enabled(context.Context, Level) bool { return false }
