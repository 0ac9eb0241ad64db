package eventqueue

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/a2aserver/a2acore/a2a"
	"github.com/a2aserver/a2acore/internal/telemetry"
)

// Reducer is the narrow slice of TaskStateProcessor the bus needs: reduce
// an event into task state without persisting it.
type Reducer interface {
	ProcessEvent(ctx context.Context, event a2a.Event, initialMessage *a2a.Message) *a2a.Task
}

// Persister is the narrow slice of taskstore.TaskStore the bus needs.
type Persister interface {
	Save(ctx context.Context, task *a2a.Task, isReplicated bool) error
}

// PushNotifier is the narrow slice of the push-notification sender the bus
// needs: best-effort, never blocking the bus.
type PushNotifier interface {
	NotifyEvent(ctx context.Context, task *a2a.Task, event a2a.Event)
}

// ReplicationSender is the outbound half of the replicated-queue bridge
// (C7): a narrow interface so this package never imports the replication
// package, avoiding an import cycle with its inbound callback path.
type ReplicationSender interface {
	Send(ctx context.Context, item a2a.ReplicatedEventQueueItem) error
}

// FinalizedListener is notified exactly once per task lifecycle, when the
// task first reaches a final state on this node.
type FinalizedListener func(ctx context.Context, task *a2a.Task)

// MainEventBus is the single logical dispatcher (C4's MainEventBusProcessor)
// that receives events from every active main queue and fans each out to
// child queues, persistence, push notification, and replication. Fan-out
// and persistence happen synchronously within MainQueue.Write, which keeps
// per-task ordering trivial: there is no separate goroutine racing the
// producer for those two steps. Push delivery and replication send are
// off-thread work per §4.6/§5 — the producer must never block on an HTTP
// round trip or a raft commit — so dispatch hands them to a bounded
// asyncPool instead of calling them inline. A persistence failure is
// logged and fanned out to the task's taps as a status-update event that
// keeps the task's current state and carries the error text under the
// "error" metadata key; no separate error event kind is emitted. A
// replication send failure is only logged. Neither failure makes Write
// return an error.
type MainEventBus struct {
	reducer     Reducer
	persister   Persister
	pusher      PushNotifier
	replication ReplicationSender
	onFinalized FinalizedListener
	manager     *QueueManager
	metrics     *telemetry.Metrics
	async       *asyncPool
}

// WithMetrics records queue-depth and task-finalization instruments
// against m. Optional; a nil bus metrics field is a no-op.
func (b *MainEventBus) WithMetrics(m *telemetry.Metrics) *MainEventBus {
	b.metrics = m
	return b
}

// SetManager lets the bus evict a main queue from its manager once fully
// drained, so the manager's map doesn't grow unbounded. Called once during
// wiring, after NewQueueManager(bus, ...).
func (b *MainEventBus) SetManager(m *QueueManager) {
	b.manager = m
}

// NewMainEventBus constructs a bus. pusher and replication may be nil
// (no-op); reducer and persister are required. The bus owns a fixed-size
// worker pool (defaultAsyncWorkers goroutines, defaultAsyncQueueDepth
// pending jobs) for push delivery and replication send; Close stops it.
func NewMainEventBus(reducer Reducer, persister Persister, pusher PushNotifier, replication ReplicationSender) *MainEventBus {
	return &MainEventBus{
		reducer:     reducer,
		persister:   persister,
		pusher:      pusher,
		replication: replication,
		async:       newAsyncPool(defaultAsyncWorkers, defaultAsyncQueueDepth),
	}
}

// Close stops accepting new off-thread jobs and waits for in-flight push
// and replication work to finish. Safe to call once during shutdown.
func (b *MainEventBus) Close() {
	b.async.close()
}

const (
	defaultAsyncWorkers    = 8
	defaultAsyncQueueDepth = 1024
)

// asyncPool is a small bounded worker pool: a fixed number of goroutines
// drain a buffered job channel. Submitting to a full pool blocks the
// caller briefly rather than growing without bound — the same bounded-
// backpressure posture the child tap queues use, applied to off-thread
// dispatch work instead of to subscriber delivery.
type asyncPool struct {
	jobs chan func()
	wg   sync.WaitGroup
	once sync.Once
}

func newAsyncPool(workers, queueDepth int) *asyncPool {
	p := &asyncPool{jobs: make(chan func(), queueDepth)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				job()
			}
		}()
	}
	return p
}

// submit enqueues job to run on a worker goroutine. It never runs job
// inline, so the caller (MainQueue.Write's goroutine) returns without
// waiting on whatever job does.
func (p *asyncPool) submit(job func()) {
	p.jobs <- job
}

func (p *asyncPool) close() {
	p.once.Do(func() {
		close(p.jobs)
	})
	p.wg.Wait()
}

// OnFinalized registers the callback invoked exactly once per task when it
// first reaches a final state.
func (b *MainEventBus) OnFinalized(fn FinalizedListener) {
	b.onFinalized = fn
}

// dispatch is MainQueue.Write's implementation: fan out to children,
// persist, then hand push delivery and replication send to the async
// pool, and drive the OPEN->DRAINING->CLOSED transition. Per §4.6 the
// sender must never block on push or replication, so neither call runs
// on this goroutine.
func (b *MainEventBus) dispatch(ctx context.Context, q *MainQueue, event a2a.Event) error {
	if err := q.fanOut(ctx, event); err != nil {
		return err
	}
	b.recordQueueDepth(ctx, q)

	task := b.reducer.ProcessEvent(ctx, event, nil)
	if task != nil {
		if err := b.persist(ctx, q, task, false); err != nil {
			// persist already logged the error and fanned out a status-update
			// event carrying it; push, replication and finalization are
			// skipped for this event.
			return nil
		}
	}

	b.dispatchAsync(ctx, q, event, task)

	if isFinalEvent(event, task) {
		b.finalize(ctx, q, task)
	}
	return nil
}

// dispatchAsync submits push delivery and replication send to the bus's
// worker pool. Both jobs run with a detached context (context.WithoutCancel)
// so a request's own cancellation can't cut short a send the rest of the
// cluster, or a subscriber's push endpoint, still needs to observe.
func (b *MainEventBus) dispatchAsync(ctx context.Context, q *MainQueue, event a2a.Event, task *a2a.Task) {
	bgCtx := context.WithoutCancel(ctx)

	if b.pusher != nil && task != nil {
		pusher, taskID := b.pusher, q.taskID
		b.async.submit(func() {
			spanCtx, span := telemetry.StartSpan(bgCtx, "push.notify", trace.SpanKindClient)
			defer span.End()
			span.SetAttributes(attribute.String("taskId", string(taskID)))
			pusher.NotifyEvent(spanCtx, task, event)
		})
	}

	if b.replication != nil {
		replication, taskID := b.replication, q.taskID
		item := a2a.ReplicatedEventQueueItem{TaskID: taskID, Event: event}
		b.async.submit(func() {
			start := time.Now()
			spanCtx, span := telemetry.StartSpan(bgCtx, "replication.send", trace.SpanKindProducer)
			defer span.End()
			err := replication.Send(spanCtx, item)
			b.recordReplicationLag(spanCtx, start)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				telemetry.Warn(spanCtx, "replication.send_failed", telemetry.Str("taskId", string(taskID)), telemetry.Err(err))
			}
		})
	}
}

func (b *MainEventBus) recordReplicationLag(ctx context.Context, start time.Time) {
	if b.metrics == nil {
		return
	}
	b.metrics.RecordReplicationLag(ctx, time.Since(start).Seconds())
}

// recordQueueDepth reports the change in q's total buffered-event count
// since the last dispatch, keeping the queue-depth UpDownCounter an
// accurate running total of events buffered across every live child tap.
func (b *MainEventBus) recordQueueDepth(ctx context.Context, q *MainQueue) {
	if b.metrics == nil {
		return
	}
	if delta := q.depthDelta(); delta != 0 {
		b.metrics.QueueDepth.Add(ctx, delta)
	}
}

func isFinalEvent(event a2a.Event, task *a2a.Task) bool {
	if status, ok := event.(*a2a.TaskStatusUpdateEvent); ok && status.Final {
		return true
	}
	return task != nil && task.Status.State.IsFinal()
}

// finalize transitions the main to DRAINING (idempotent via the per-main
// `finalized` flag) and, on the first observation, fans out the poison
// pill and then completes every tap.
func (b *MainEventBus) finalize(ctx context.Context, q *MainQueue, task *a2a.Task) {
	if !q.observeFinal() {
		return
	}
	if b.onFinalized != nil && task != nil {
		b.onFinalized(ctx, task)
	}
	if b.metrics != nil && task != nil {
		b.metrics.RecordTaskFinalized(ctx, string(task.Status.State))
	}
	_ = q.fanOut(ctx, &a2a.QueueClosedEvent{TaskID: q.taskID})
	q.closeDrained()
	if b.manager != nil {
		b.manager.Evict(q.taskID)
	}
}

// publishClosed is used by MainQueue.Close(immediate=false): it fans out
// the poison pill through the normal synchronous path without a
// preceding task event (used for an out-of-band drain request).
func (b *MainEventBus) publishClosed(ctx context.Context, q *MainQueue) {
	_ = q.fanOut(ctx, &a2a.QueueClosedEvent{TaskID: q.taskID})
	q.closeDrained()
	if b.manager != nil {
		b.manager.Evict(q.taskID)
	}
}

// persist saves task. A storage/serialization failure is logged and fanned
// out to q's taps as a status-update event carrying the error text in its
// metadata, then returned to the caller, which does not propagate it to
// the producer.
func (b *MainEventBus) persist(ctx context.Context, q *MainQueue, task *a2a.Task, isReplicated bool) error {
	ctx, span := telemetry.StartSpan(ctx, "taskstore.save", trace.SpanKindInternal)
	span.SetAttributes(attribute.String("taskId", string(q.taskID)), attribute.Bool("replicated", isReplicated))
	err := b.persister.Save(ctx, task, isReplicated)
	if err == nil {
		span.End()
		return nil
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.End()
	aerr, _ := err.(*a2a.Error)
	if aerr != nil && aerr.Transient {
		telemetry.Warn(ctx, "taskstore.save_failed_transient", telemetry.Str("taskId", string(q.taskID)), telemetry.Err(err))
	} else {
		telemetry.Error(ctx, "taskstore.save_failed", telemetry.Str("taskId", string(q.taskID)), telemetry.Err(err))
	}
	internalEvent := &a2a.TaskStatusUpdateEvent{
		TaskID:    q.taskID,
		ContextID: task.ContextID,
		Status:    a2a.NewTaskStatus(task.Status.State, nil),
		Metadata:  map[string]any{"error": err.Error()},
	}
	_ = q.fanOut(ctx, internalEvent)
	return err
}

// InjectReplicated feeds a replicated item into this node's local bus
// without re-persisting (isReplicated=true) and without re-broadcasting
// to the replication bus (avoiding echo). Wiring code (outside this
// package) calls this from a replication strategy's receive path. A
// redelivered item against an already-closed main is a no-op — the same
// guard Write applies locally — so an at-least-once replication
// transport can retry without double-applying or panicking on a
// completed tap.
func (b *MainEventBus) InjectReplicated(ctx context.Context, q *MainQueue, item a2a.ReplicatedEventQueueItem) error {
	if q.IsClosed() {
		return nil
	}
	if item.ClosedEvent {
		if q.observeFinal() {
			_ = q.fanOut(ctx, &a2a.QueueClosedEvent{TaskID: q.taskID})
			q.closeDrained()
			if b.manager != nil {
				b.manager.Evict(q.taskID)
			}
		}
		return nil
	}
	if err := q.fanOut(ctx, item.Event); err != nil {
		return err
	}
	task := b.reducer.ProcessEvent(ctx, item.Event, nil)
	if task == nil {
		return nil
	}
	if err := b.persist(ctx, q, task, true); err != nil {
		return nil
	}
	if isFinalEvent(item.Event, task) {
		b.finalize(ctx, q, task)
	}
	return nil
}
