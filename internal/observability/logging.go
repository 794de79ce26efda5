package observability

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the interface for structured logging.
//
// Critical is reserved for security violations. zap has no dedicated level
// for it, so entries are written at error level with severity=critical.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Critical(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)
	With(fields ...Field) Logger
	WithContext(ctx context.Context) Logger
	Sync() error
}

// Field represents a log field.
type Field = zap.Field

// Field constructors for convenience.
var (
	String   = zap.String
	Strings  = zap.Strings
	Int      = zap.Int
	Int64    = zap.Int64
	Float64  = zap.Float64
	Bool     = zap.Bool
	Error    = zap.Error
	Any      = zap.Any
	Duration = zap.Duration
	Time     = zap.Time
)

// SeverityKey is the field that carries the severity of Critical entries.
const SeverityKey = "severity"

// SeverityCritical is the SeverityKey value written by Critical.
const SeverityCritical = "critical"

// Log formats and outputs understood by NewLogger.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
	OutputStdout  = "stdout"
	OutputStderr  = "stderr"
)

// LogConfig represents logging configuration. Output is stdout, stderr or
// a file path.
type LogConfig struct {
	Level  string
	Format string
	Output string
}

// DefaultLogConfig returns default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:  "info",
		Format: FormatJSON,
		Output: OutputStdout,
	}
}

// zapLogger implements Logger using zap.
type zapLogger struct {
	logger *zap.Logger
}

var (
	globalLogger Logger
	globalMu     sync.RWMutex
)

// NewLogger creates a new logger with the given configuration.
func NewLogger(cfg LogConfig) (Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	sink, err := openSink(cfg.Output)
	if err != nil {
		return nil, fmt.Errorf("failed to open log output %q: %w", cfg.Output, err)
	}

	core := zapcore.NewCore(newEncoder(cfg.Format), sink, level)
	return NewLoggerFromZap(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))), nil
}

func newEncoder(format string) zapcore.Encoder {
	ec := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	if format == FormatConsole {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}

// openSink resolves an output name. Anything other than stdout or stderr
// is opened as a file in append mode.
func openSink(output string) (zapcore.WriteSyncer, error) {
	switch output {
	case "", OutputStdout:
		return zapcore.Lock(os.Stdout), nil
	case OutputStderr:
		return zapcore.Lock(os.Stderr), nil
	}

	ws, _, err := zap.Open(output)
	return ws, err
}

// NewLoggerFromZap wraps an existing zap logger. Tests use it with
// zaptest/observer to inspect emitted entries.
func NewLoggerFromZap(logger *zap.Logger) Logger {
	return &zapLogger{logger: logger}
}

// parseLevel parses a log level string.
func parseLevel(level string) (zapcore.Level, error) {
	var l zapcore.Level
	err := l.UnmarshalText([]byte(level))
	return l, err
}

// Debug logs a debug message.
func (l *zapLogger) Debug(msg string, fields ...Field) {
	l.logger.Debug(msg, fields...)
}

// Info logs an info message.
func (l *zapLogger) Info(msg string, fields ...Field) {
	l.logger.Info(msg, fields...)
}

// Warn logs a warning message.
func (l *zapLogger) Warn(msg string, fields ...Field) {
	l.logger.Warn(msg, fields...)
}

// Error logs an error message.
func (l *zapLogger) Error(msg string, fields ...Field) {
	l.logger.Error(msg, fields...)
}

// Critical logs a security-critical message.
func (l *zapLogger) Critical(msg string, fields ...Field) {
	l.logger.Error(msg, append([]Field{String(SeverityKey, SeverityCritical)}, fields...)...)
}

// Fatal logs a fatal message and exits.
func (l *zapLogger) Fatal(msg string, fields ...Field) {
	l.logger.Fatal(msg, fields...)
}

// With returns a logger with additional fields.
func (l *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{logger: l.logger.With(fields...)}
}

// WithContext returns a logger with context fields (request ID, trace ID).
func (l *zapLogger) WithContext(ctx context.Context) Logger {
	fields := extractContextFields(ctx)
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}

// Sync flushes any buffered log entries.
func (l *zapLogger) Sync() error {
	return l.logger.Sync()
}

// RequestFields returns the method, path and query fields that gate and
// access log entries share.
func RequestFields(method, path, query string) []Field {
	return []Field{
		String("method", method),
		String("path", path),
		String("query", query),
	}
}

// Context keys for logging.
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	traceIDKey   contextKey = "trace_id"
	spanIDKey    contextKey = "span_id"
)

// extractContextFields extracts logging fields from context.
func extractContextFields(ctx context.Context) []Field {
	var fields []Field

	if requestID, ok := ctx.Value(requestIDKey).(string); ok && requestID != "" {
		fields = append(fields, String("request_id", requestID))
	}

	if traceID, ok := ctx.Value(traceIDKey).(string); ok && traceID != "" {
		fields = append(fields, String("trace_id", traceID))
	}

	if spanID, ok := ctx.Value(spanIDKey).(string); ok && spanID != "" {
		fields = append(fields, String("span_id", spanID))
	}

	return fields
}

// ContextWithRequestID adds a request ID to the context.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// ContextWithTraceID adds a trace ID to the context.
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFromContext extracts the trace ID from context.
func TraceIDFromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(traceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// ContextWithSpanID adds a span ID to the context.
func ContextWithSpanID(ctx context.Context, spanID string) context.Context {
	return context.WithValue(ctx, spanIDKey, spanID)
}

// SpanIDFromContext extracts the span ID from context.
func SpanIDFromContext(ctx context.Context) string {
	if spanID, ok := ctx.Value(spanIDKey).(string); ok {
		return spanID
	}
	return ""
}

// SetGlobalLogger sets the global logger instance.
func SetGlobalLogger(logger Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = logger
}

// GetGlobalLogger returns the global logger instance.
func GetGlobalLogger() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLogger == nil {
		logger, _ := NewLogger(DefaultLogConfig())
		return logger
	}
	return globalLogger
}

// NopLogger returns a logger that discards all output.
func NopLogger() Logger {
	return &zapLogger{logger: zap.NewNop()}
}
