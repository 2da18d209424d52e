package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// convertToZapFields converts error and additional field maps into Zap's structured logging fields.
//
// If multiple fields maps contain the same key, the later maps will override earlier ones.
func (l *LoggerClient) convertToZapFields(err error, fields ...map[string]interface{}) []zap.Field {
	merged := make(map[string]interface{})
	for _, fieldMap := range fields {
		for key, value := range fieldMap {
			merged[key] = value
		}
	}

	zapFields := make([]zap.Field, 0, len(merged)+1)
	if err != nil {
		zapFields = append(zapFields, zap.Error(err))
	}
	for key, value := range merged {
		zapFields = append(zapFields, zap.Any(key, value))
	}
	return zapFields
}

// traceFields extracts trace_id and span_id from the span stored in ctx.
// It returns nil when tracing is disabled or ctx carries no valid span.
func (l *LoggerClient) traceFields(ctx context.Context) map[string]interface{} {
	if !l.tracingEnabled || ctx == nil {
		return nil
	}
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return nil
	}
	return map[string]interface{}{
		"trace_id": spanCtx.TraceID().String(),
		"span_id":  spanCtx.SpanID().String(),
	}
}

func (l *LoggerClient) withTrace(ctx context.Context, fields []map[string]interface{}) []map[string]interface{} {
	if tf := l.traceFields(ctx); tf != nil {
		return append(fields, tf)
	}
	return fields
}

// Info logs an informational message, along with an optional error and structured fields.
//
// Example:
//
//	logger.Info("User logged in successfully", nil, map[string]interface{}{
//	    "user_id": 12345,
//	})
func (l *LoggerClient) Info(msg string, err error, fields ...map[string]interface{}) {
	l.Zap.Info(msg, l.convertToZapFields(err, fields...)...)
}

// Debug logs a debug-level message, useful for development and troubleshooting.
func (l *LoggerClient) Debug(msg string, err error, fields ...map[string]interface{}) {
	l.Zap.Debug(msg, l.convertToZapFields(err, fields...)...)
}

// Warn logs a warning message, indicating potential issues that aren't necessarily errors.
func (l *LoggerClient) Warn(msg string, err error, fields ...map[string]interface{}) {
	l.Zap.Warn(msg, l.convertToZapFields(err, fields...)...)
}

// Error logs an error message, including details of the error and additional context fields.
//
// Example:
//
//	if err != nil {
//	    logger.Error("Failed to connect to broker", err, map[string]interface{}{
//	        "attempt": 3,
//	    })
//	}
func (l *LoggerClient) Error(msg string, err error, fields ...map[string]interface{}) {
	l.Zap.Error(msg, l.convertToZapFields(err, fields...)...)
}

// Fatal logs a critical error message and terminates the application.
// This method will call os.Exit(1) after logging the message.
func (l *LoggerClient) Fatal(msg string, err error, fields ...map[string]interface{}) {
	l.Zap.Fatal(msg, l.convertToZapFields(err, fields...)...)
}

// DebugWithContext is Debug plus trace correlation fields taken from ctx.
func (l *LoggerClient) DebugWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	l.Zap.Debug(msg, l.convertToZapFields(err, l.withTrace(ctx, fields)...)...)
}

// InfoWithContext is Info plus trace correlation fields taken from ctx.
func (l *LoggerClient) InfoWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	l.Zap.Info(msg, l.convertToZapFields(err, l.withTrace(ctx, fields)...)...)
}

// WarnWithContext is Warn plus trace correlation fields taken from ctx.
func (l *LoggerClient) WarnWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	l.Zap.Warn(msg, l.convertToZapFields(err, l.withTrace(ctx, fields)...)...)
}

// ErrorWithContext is Error plus trace correlation fields taken from ctx.
func (l *LoggerClient) ErrorWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	l.Zap.Error(msg, l.convertToZapFields(err, l.withTrace(ctx, fields)...)...)
}
