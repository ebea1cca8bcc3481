package ldaprecord

import (
	"time"

	"go.uber.org/zap"
)

// Logger receives structured events from connection-level operations.
type Logger interface {
	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

// NopLogger discards all events. It is the default when no logger is
// configured.
func NopLogger() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Debug(string, map[string]any) {}
func (nopLogger) Info(string, map[string]any)  {}
func (nopLogger) Warn(string, map[string]any)  {}
func (nopLogger) Error(string, map[string]any) {}

// NewZapLogger adapts a zap logger to the Logger interface.
func NewZapLogger(l *zap.Logger) Logger {
	return &zapLogger{logger: l}
}

type zapLogger struct {
	logger *zap.Logger
}

func (z *zapLogger) Debug(msg string, fields map[string]any) {
	z.logger.Debug(msg, zapFields(fields)...)
}

func (z *zapLogger) Info(msg string, fields map[string]any) {
	z.logger.Info(msg, zapFields(fields)...)
}

func (z *zapLogger) Warn(msg string, fields map[string]any) {
	z.logger.Warn(msg, zapFields(fields)...)
}

func (z *zapLogger) Error(msg string, fields map[string]any) {
	z.logger.Error(msg, zapFields(fields)...)
}

func zapFields(fields map[string]any) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}

// logOperation logs the start and outcome of an operation with timing.
func logOperation(l Logger, operation string, fields map[string]any, fn func() error) error {
	start := time.Now()

	if fields == nil {
		fields = make(map[string]any)
	}
	fields["operation"] = operation

	l.Debug("starting operation", fields)

	err := fn()

	fields["duration_ms"] = time.Since(start).Milliseconds()

	if err != nil {
		fields["error"] = err.Error()
		l.Error("operation failed", fields)
	} else {
		l.Debug("operation completed", fields)
	}

	return err
}
