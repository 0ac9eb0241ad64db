// Package telemetry wires the core's logging, tracing, and metrics onto the
// OpenTelemetry SDK, following the same global-provider pattern the rest of
// the ambient stack uses.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
)

const systemName = "a2acore"

var otelLogger = global.GetLoggerProvider().Logger(systemName)

// Severity mirrors the handful of levels the core actually emits at.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarn
	SeverityError
)

func (s Severity) otelSeverity() log.Severity {
	switch s {
	case SeverityWarn:
		return log.SeverityWarn
	case SeverityError:
		return log.SeverityError
	default:
		return log.SeverityInfo
	}
}

// Emit logs event with the given severity and key/value attributes. Values
// are converted with a best-effort mapping (string, bool, int, int64 and
// float64 pass through; everything else is formatted with %v).
func Emit(ctx context.Context, sev Severity, event string, kvs ...KV) {
	record := log.Record{}
	record.SetEventName(event)
	record.SetSeverity(sev.otelSeverity())
	attrs := make([]log.KeyValue, 0, len(kvs))
	for _, kv := range kvs {
		attrs = append(attrs, log.KeyValue{Key: kv.Key, Value: toLogValue(kv.Value)})
	}
	record.AddAttributes(attrs...)
	otelLogger.Emit(ctx, record)
}

// Info emits an informational event.
func Info(ctx context.Context, event string, kvs ...KV) { Emit(ctx, SeverityInfo, event, kvs...) }

// Warn emits a warning event — non-fatal failures the caller tolerates
// (push-notification failures, transient storage errors, replication
// send-side failures).
func Warn(ctx context.Context, event string, kvs ...KV) { Emit(ctx, SeverityWarn, event, kvs...) }

// Error emits an error event — permanent failures such as a failed task
// save or a failed or panicking executor.
func Error(ctx context.Context, event string, kvs ...KV) { Emit(ctx, SeverityError, event, kvs...) }

// KV is a single structured logging attribute.
type KV struct {
	Key   string
	Value any
}

// Str, Err, and other constructors keep call sites terse.
func Str(key, val string) KV { return KV{key, val} }
func Err(err error) KV {
	if err == nil {
		return KV{"error", ""}
	}
	return KV{"error", err.Error()}
}
func Bool(key string, val bool) KV { return KV{key, val} }
func Int(key string, val int) KV   { return KV{key, val} }

func toLogValue(v any) log.Value {
	switch val := v.(type) {
	case nil:
		return log.Value{}
	case string:
		return log.StringValue(val)
	case bool:
		return log.BoolValue(val)
	case int:
		return log.IntValue(val)
	case int64:
		return log.Int64Value(val)
	case float64:
		return log.Float64Value(val)
	default:
		return log.StringValue(fmt.Sprintf("%v", val))
	}
}
