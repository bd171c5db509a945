// Package logging provides the structured logger used throughout the
// daemon. The public surface (Field, Logger, WithFields/WithContext) keeps
// the shape the rest of the codebase is written against; the sink
// underneath is charmbracelet/log rather than a hand-rolled formatter.
package logging

import (
	"context"
	"io"
	"os"
	"time"

	charmlog "github.com/charmbracelet/log"

	daemonerrors "github.com/archmcp/mcpd/pkg/errors"
)

// Level represents the severity of a log message.
type Level int

const (
	DebugLevel Level = iota - 1
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

func (l Level) charm() charmlog.Level {
	switch l {
	case DebugLevel:
		return charmlog.DebugLevel
	case WarnLevel:
		return charmlog.WarnLevel
	case ErrorLevel:
		return charmlog.ErrorLevel
	case FatalLevel:
		return charmlog.FatalLevel
	default:
		return charmlog.InfoLevel
	}
}

// Field is a key-value pair attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}

func String(key, value string) Field            { return Field{key, value} }
func Int(key string, value int) Field           { return Field{key, value} }
func Bool(key string, value bool) Field         { return Field{key, value} }
func ErrorField(err error) Field                { return Field{"error", err} }
func Duration(key string, v time.Duration) Field { return Field{key, v} }
func Any(key string, value interface{}) Field   { return Field{key, value} }

// Logger is the structured logger interface the rest of the daemon depends
// on: leveled output (debug|info|warn|error) plus a dedicated audit
// stream.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	// Audit emits a structured audit record, distinct from the ordinary
	// leveled stream, through whatever sink this logger was built with.
	Audit(operationName string, details map[string]interface{})

	WithFields(fields ...Field) Logger
	WithContext(ctx context.Context) Logger
	WithError(err error) Logger

	SetLevel(level Level)
	GetLevel() Level
}

type charmLogger struct {
	l      *charmlog.Logger
	audit  *charmlog.Logger
	fields []Field
}

// New creates a Logger writing leveled output to out (stdout if nil) and
// audit records to auditOut (discarded if nil).
func New(out io.Writer, auditOut io.Writer) Logger {
	if out == nil {
		out = os.Stdout
	}
	l := charmlog.NewWithOptions(out, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})

	var a *charmlog.Logger
	if auditOut != nil {
		a = charmlog.NewWithOptions(auditOut, charmlog.Options{
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Formatter:       charmlog.JSONFormatter,
		})
	}

	return &charmLogger{l: l, audit: a}
}

func (c *charmLogger) withFields() []interface{} {
	kv := make([]interface{}, 0, len(c.fields)*2)
	for _, f := range c.fields {
		kv = append(kv, f.Key, f.Value)
	}
	return kv
}

func (c *charmLogger) Debug(msg string, fields ...Field) { c.log(charmlog.DebugLevel, msg, fields) }
func (c *charmLogger) Info(msg string, fields ...Field)  { c.log(charmlog.InfoLevel, msg, fields) }
func (c *charmLogger) Warn(msg string, fields ...Field)  { c.log(charmlog.WarnLevel, msg, fields) }
func (c *charmLogger) Error(msg string, fields ...Field) { c.log(charmlog.ErrorLevel, msg, fields) }
func (c *charmLogger) Fatal(msg string, fields ...Field) { c.log(charmlog.FatalLevel, msg, fields) }

func (c *charmLogger) log(level charmlog.Level, msg string, fields []Field) {
	kv := c.withFields()
	for _, f := range fields {
		kv = append(kv, f.Key, f.Value)
	}
	c.l.Log(level, msg, kv...)
	if level == charmlog.FatalLevel {
		os.Exit(1)
	}
}

func (c *charmLogger) Audit(operationName string, details map[string]interface{}) {
	if c.audit == nil {
		return
	}
	kv := c.withFields()
	kv = append(kv, "operation", operationName)
	for k, v := range details {
		kv = append(kv, k, v)
	}
	c.audit.Info("audit", kv...)
}

func (c *charmLogger) WithFields(fields ...Field) Logger {
	merged := make([]Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &charmLogger{l: c.l, audit: c.audit, fields: merged}
}

func (c *charmLogger) WithContext(ctx context.Context) Logger {
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		return c.WithFields(String("request_id", requestID))
	}
	return c
}

func (c *charmLogger) WithError(err error) Logger {
	fields := []Field{ErrorField(err)}
	if de, ok := daemonerrors.As(err); ok {
		fields = append(fields,
			Int("error_code", de.Code()),
			String("error_category", string(de.Category())),
			String("error_severity", string(de.Severity())),
		)
		if ctx := de.Context(); ctx != nil {
			if ctx.RequestID != "" {
				fields = append(fields, String("request_id", ctx.RequestID))
			}
			if ctx.Component != "" {
				fields = append(fields, String("component", ctx.Component))
			}
			if ctx.Operation != "" {
				fields = append(fields, String("operation", ctx.Operation))
			}
		}
	}
	return c.WithFields(fields...)
}

func (c *charmLogger) SetLevel(level Level) { c.l.SetLevel(level.charm()) }
func (c *charmLogger) GetLevel() Level {
	switch c.l.GetLevel() {
	case charmlog.DebugLevel:
		return DebugLevel
	case charmlog.WarnLevel:
		return WarnLevel
	case charmlog.ErrorLevel:
		return ErrorLevel
	case charmlog.FatalLevel:
		return FatalLevel
	default:
		return InfoLevel
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

// ContextWithRequestID returns a context carrying a request id for logging.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the request id set by ContextWithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}
