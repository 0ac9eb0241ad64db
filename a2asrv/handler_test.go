package a2asrv

import (
	"context"
	"testing"
	"time"

	"github.com/a2aserver/a2acore/a2a"
	"github.com/a2aserver/a2acore/a2asrv/eventqueue"
	"github.com/a2aserver/a2acore/a2asrv/taskstore"
)

// authThenResumeExecutor emits AUTH_REQUIRED immediately, then blocks until
// resume is signaled, at which point it emits an artifact and a final
// COMPLETED status — modeling an executor that needs out-of-band
// credentials before it can finish the task.
type authThenResumeExecutor struct {
	resume chan struct{}
}

func newAuthThenResumeExecutor() *authThenResumeExecutor {
	return &authThenResumeExecutor{resume: make(chan struct{})}
}

func (e *authThenResumeExecutor) Execute(ctx context.Context, reqCtx *RequestContext, queue eventqueue.Queue) error {
	auth := &a2a.TaskStatusUpdateEvent{
		TaskID:    reqCtx.TaskID,
		ContextID: reqCtx.ContextID,
		Status:    a2a.NewTaskStatus(a2a.TaskStateAuthRequired, nil),
	}
	if err := queue.Write(ctx, auth); err != nil {
		return err
	}

	select {
	case <-e.resume:
	case <-ctx.Done():
		return ctx.Err()
	}

	artifact, err := a2a.NewArtifact(a2a.NewTextPart("done", nil))
	if err != nil {
		return err
	}
	if err := queue.Write(ctx, &a2a.TaskArtifactUpdateEvent{TaskID: reqCtx.TaskID, ContextID: reqCtx.ContextID, Artifact: artifact}); err != nil {
		return err
	}
	return queue.Write(ctx, &a2a.TaskStatusUpdateEvent{
		TaskID:    reqCtx.TaskID,
		ContextID: reqCtx.ContextID,
		Status:    a2a.NewTaskStatus(a2a.TaskStateCompleted, nil),
		Final:     true,
	})
}

func (e *authThenResumeExecutor) Cancel(ctx context.Context, reqCtx *RequestContext, queue eventqueue.Queue) error {
	return nil
}

// TestOnMessageSendReturnsOnAuthRequiredAndLeavesQueueOpen exercises the
// AUTH_REQUIRED snapshot-and-leave-queue-open scenario: OnMessageSend must
// return as soon as AUTH_REQUIRED is observed, without waiting for the
// executor to finish, and a later subscriber must still see the
// executor's eventual completion.
func TestOnMessageSendReturnsOnAuthRequiredAndLeavesQueueOpen(t *testing.T) {
	proc := NewTaskStateProcessor()
	store := taskstore.NewInMemoryStore()
	bus := eventqueue.NewMainEventBus(proc, store, nil, nil)
	queues := eventqueue.NewQueueManager(bus, eventqueue.DefaultBufferSize)
	bus.SetManager(queues)

	executor := newAuthThenResumeExecutor()
	handler := NewRequestHandler(proc, store, queues, executor, WithConsumeTimeout(time.Second))

	msg, err := a2a.NewMessage(a2a.RoleUser, a2a.NewTextPart("hi", nil))
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	result, err := handler.OnMessageSend(ctx, &ServerCallContext{}, a2a.MessageSendParams{Message: msg})
	if err != nil {
		t.Fatalf("OnMessageSend: %v", err)
	}
	task, ok := result.(*a2a.Task)
	if !ok {
		t.Fatalf("expected *a2a.Task snapshot, got %T", result)
	}
	if task.Status.State != a2a.TaskStateAuthRequired {
		t.Fatalf("expected AUTH_REQUIRED snapshot, got %s", task.Status.State)
	}

	mainQueue := queues.Get(task.ID)
	if mainQueue == nil {
		t.Fatal("expected main queue to remain registered after AUTH_REQUIRED")
	}
	if mainQueue.IsClosed() {
		t.Fatal("expected main queue to stay open after AUTH_REQUIRED")
	}

	tap := mainQueue.Tap()
	if tap == nil {
		t.Fatal("expected to be able to tap the still-open main queue")
	}
	defer tap.Unsubscribe()

	close(executor.resume)

	readCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	var kinds []a2a.EventKind
	for {
		event, ok, err := tap.Read(readCtx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if !ok {
			break
		}
		kinds = append(kinds, event.Kind())
	}
	want := []a2a.EventKind{a2a.EventKindArtifactUpdate, a2a.EventKindStatusUpdate, a2a.EventKindQueueClosed}
	if len(kinds) != len(want) {
		t.Fatalf("expected %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("position %d: expected %v, got %v", i, want[i], kinds[i])
		}
	}
}

// blockUntilCanceledExecutor simulates a long-running executor: Execute
// blocks until its context is done, Cancel writes the final CANCELED
// status the caller is waiting on.
type blockUntilCanceledExecutor struct{}

func (blockUntilCanceledExecutor) Execute(ctx context.Context, reqCtx *RequestContext, queue eventqueue.Queue) error {
	<-ctx.Done()
	return ctx.Err()
}

func (blockUntilCanceledExecutor) Cancel(ctx context.Context, reqCtx *RequestContext, queue eventqueue.Queue) error {
	return queue.Write(ctx, &a2a.TaskStatusUpdateEvent{
		TaskID: reqCtx.TaskID,
		Status: a2a.NewTaskStatus(a2a.TaskStateCanceled, nil),
		Final:  true,
	})
}

// TestOnCancelTaskReturnsOnceFinalStatusObserved is the cancellation
// liveness scenario: OnCancelTask must return the final CANCELED task
// within the configured cancel timeout once the executor's Cancel writes
// the final status. Execute is never started in this test.
func TestOnCancelTaskReturnsOnceFinalStatusObserved(t *testing.T) {
	proc := NewTaskStateProcessor()
	store := taskstore.NewInMemoryStore()
	bus := eventqueue.NewMainEventBus(proc, store, nil, nil)
	queues := eventqueue.NewQueueManager(bus, eventqueue.DefaultBufferSize)
	bus.SetManager(queues)

	handler := NewRequestHandler(proc, store, queues, blockUntilCanceledExecutor{}, WithCancelTimeout(time.Second))

	taskID, contextID := a2a.NewTaskID(), a2a.NewContextID()
	proc.ProcessEvent(context.Background(), &a2a.TaskStatusUpdateEvent{
		TaskID: taskID, ContextID: contextID, Status: a2a.NewTaskStatus(a2a.TaskStateWorking, nil),
	}, nil)

	queues.GetOrCreateMain(taskID)

	done := make(chan struct{})
	var (
		final *a2a.Task
		err   error
	)
	go func() {
		final, err = handler.OnCancelTask(context.Background(), &ServerCallContext{}, a2a.TaskIDParams{TaskID: taskID})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected OnCancelTask to return within the cancel timeout")
	}
	if err != nil {
		t.Fatalf("OnCancelTask: %v", err)
	}
	if final.Status.State != a2a.TaskStateCanceled {
		t.Fatalf("expected CANCELED, got %s", final.Status.State)
	}
}

// TestInjectReplicatedAppliesOnceAndIsIdempotent covers the replicated-
// completion scenario and the replication-idempotence invariant: a
// replicated final-status item must reach local subscribers without a
// second local persist, and delivering it twice must not double-apply.
func TestInjectReplicatedAppliesOnceAndIsIdempotent(t *testing.T) {
	proc := NewTaskStateProcessor()
	store := &countingStore{InMemoryStore: taskstore.NewInMemoryStore()}
	bus := eventqueue.NewMainEventBus(proc, store, nil, nil)
	queues := eventqueue.NewQueueManager(bus, eventqueue.DefaultBufferSize)
	bus.SetManager(queues)

	taskID, contextID := a2a.NewTaskID(), a2a.NewContextID()
	mainQueue := queues.GetOrCreateMain(taskID)
	tap := mainQueue.Tap()
	defer tap.Unsubscribe()

	ctx := context.Background()
	item := a2a.ReplicatedEventQueueItem{
		TaskID: taskID,
		Event: &a2a.TaskStatusUpdateEvent{
			TaskID: taskID, ContextID: contextID,
			Status: a2a.NewTaskStatus(a2a.TaskStateCompleted, nil),
			Final:  true,
		},
	}
	if err := bus.InjectReplicated(ctx, mainQueue, item); err != nil {
		t.Fatalf("first InjectReplicated: %v", err)
	}

	// A replication strategy may redeliver: InjectReplicated against the
	// same already-closed main must not persist again or re-fan-out, since
	// InjectReplicated returns early once the main is closed (§8
	// replication idempotence).
	if err := bus.InjectReplicated(ctx, mainQueue, item); err != nil {
		t.Fatalf("redelivered InjectReplicated: %v", err)
	}

	if got := store.saves; got != 1 {
		t.Fatalf("expected exactly one replicated save, got %d", got)
	}
	if !store.lastReplicated {
		t.Fatal("expected InjectReplicated to persist with isReplicated=true")
	}

	var kinds []a2a.EventKind
	readCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	for {
		event, ok, err := tap.Read(readCtx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if !ok {
			break
		}
		kinds = append(kinds, event.Kind())
	}
	want := []a2a.EventKind{a2a.EventKindStatusUpdate, a2a.EventKindQueueClosed}
	if len(kinds) != len(want) {
		t.Fatalf("expected %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("position %d: expected %v, got %v", i, want[i], kinds[i])
		}
	}

	if manager := queues; manager.Get(taskID) != nil {
		t.Fatal("expected main queue evicted from manager after replicated finalization")
	}
}

// countingStore wraps InMemoryStore to record save counts and the
// isReplicated flag of the last call, without changing persistence
// semantics.
type countingStore struct {
	*taskstore.InMemoryStore
	saves          int
	lastReplicated bool
}

func (s *countingStore) Save(ctx context.Context, task *a2a.Task, isReplicated bool) error {
	s.saves++
	s.lastReplicated = isReplicated
	return s.InMemoryStore.Save(ctx, task, isReplicated)
}
