package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter(systemName)

// Metrics groups the instruments the core reports against the currently
// registered global MeterProvider.
type Metrics struct {
	QueueDepth     metric.Int64UpDownCounter
	TasksFinalized metric.Int64Counter
	PushOutcomes   metric.Int64Counter
	ReplicationLag metric.Float64Histogram
}

// NewMetrics creates the core's instrument set. Safe to call once per
// process; instruments read from whatever MeterProvider is globally
// registered at call time.
func NewMetrics() (*Metrics, error) {
	queueDepth, err := meter.Int64UpDownCounter("a2acore.eventqueue.depth",
		metric.WithDescription("number of events buffered across active child queues"))
	if err != nil {
		return nil, err
	}
	tasksFinalized, err := meter.Int64Counter("a2acore.tasks.finalized",
		metric.WithDescription("count of tasks reaching a final state, by state"))
	if err != nil {
		return nil, err
	}
	pushOutcomes, err := meter.Int64Counter("a2acore.push.outcomes",
		metric.WithDescription("push-notification delivery attempts, by outcome"))
	if err != nil {
		return nil, err
	}
	replicationLag, err := meter.Float64Histogram("a2acore.replication.lag_seconds",
		metric.WithDescription("duration of a replication send call, as observed by the async dispatch job"))
	if err != nil {
		return nil, err
	}
	return &Metrics{
		QueueDepth:     queueDepth,
		TasksFinalized: tasksFinalized,
		PushOutcomes:   pushOutcomes,
		ReplicationLag: replicationLag,
	}, nil
}

// RecordTaskFinalized increments the finalized-tasks counter for state.
func (m *Metrics) RecordTaskFinalized(ctx context.Context, state string) {
	if m == nil {
		return
	}
	m.TasksFinalized.Add(ctx, 1, metric.WithAttributes(attribute.String("state", state)))
}

// RecordPushOutcome increments the push-outcomes counter for outcome
// ("delivered" or "failed").
func (m *Metrics) RecordPushOutcome(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.PushOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordReplicationLag records the time a replication.Send call took, in
// seconds, as observed from the async dispatch job that issued it.
func (m *Metrics) RecordReplicationLag(ctx context.Context, seconds float64) {
	if m == nil {
		return
	}
	m.ReplicationLag.Record(ctx, seconds)
}
