package eventqueue

import (
	"context"
	"testing"
	"time"

	"github.com/a2aserver/a2acore/a2a"
)

type fakePersister struct{ saved []*a2a.Task }

func (f *fakePersister) Save(ctx context.Context, task *a2a.Task, isReplicated bool) error {
	f.saved = append(f.saved, task.Clone())
	return nil
}

func newTestBus() (*MainEventBus, *QueueManager, *fakePersister) {
	proc := newFakeReducer()
	persister := &fakePersister{}
	bus := NewMainEventBus(proc, persister, nil, nil)
	manager := NewQueueManager(bus, 4)
	bus.SetManager(manager)
	return bus, manager, persister
}

// fakeReducer is a tiny local reducer sufficient to drive the bus: the
// real TaskStateProcessor lives in a2asrv, and importing it here would
// create an import cycle (a2asrv imports eventqueue).
type fakeReducer struct {
	tasks map[a2a.TaskID]*a2a.Task
}

func newFakeReducer() *fakeReducer { return &fakeReducer{tasks: map[a2a.TaskID]*a2a.Task{}} }

func (r *fakeReducer) ProcessEvent(ctx context.Context, event a2a.Event, initialMessage *a2a.Message) *a2a.Task {
	switch e := event.(type) {
	case *a2a.TaskStatusUpdateEvent:
		task, ok := r.tasks[e.TaskID]
		if !ok {
			task = a2a.NewTask(e.TaskID, e.ContextID, initialMessage)
		}
		task.Status = e.Status
		r.tasks[e.TaskID] = task
		return task.Clone()
	case *a2a.TaskArtifactUpdateEvent:
		task, ok := r.tasks[e.TaskID]
		if !ok {
			task = a2a.NewTask(e.TaskID, e.ContextID, initialMessage)
		}
		task.Artifacts = append(task.Artifacts, e.Artifact)
		r.tasks[e.TaskID] = task
		return task.Clone()
	default:
		return nil
	}
}

func TestFIFOFanOutAcrossSubscribers(t *testing.T) {
	bus, manager, _ := newTestBus()
	taskID, contextID := a2a.NewTaskID(), a2a.NewContextID()

	main := manager.getOrCreate(taskID)
	tapA := main.Tap()
	tapB := main.Tap()

	ctx := context.Background()
	events := []a2a.Event{
		&a2a.TaskStatusUpdateEvent{TaskID: taskID, ContextID: contextID, Status: a2a.NewTaskStatus(a2a.TaskStateWorking, nil)},
		&a2a.TaskArtifactUpdateEvent{TaskID: taskID, ContextID: contextID, Artifact: mustArtifact(t, "a1")},
		&a2a.TaskStatusUpdateEvent{TaskID: taskID, ContextID: contextID, Status: a2a.NewTaskStatus(a2a.TaskStateCompleted, nil), Final: true},
	}

	done := make(chan struct{})
	go func() {
		for _, e := range events {
			if err := main.Write(ctx, e); err != nil {
				t.Errorf("write failed: %v", err)
			}
		}
		close(done)
	}()
	<-done

	for name, tap := range map[string]*EventQueue{"A": tapA, "B": tapB} {
		var got []a2a.EventKind
		for {
			e, ok, err := tap.Read(ctx)
			if err != nil {
				t.Fatalf("%s: read error: %v", name, err)
			}
			if !ok {
				break
			}
			got = append(got, e.Kind())
		}
		want := []a2a.EventKind{a2a.EventKindStatusUpdate, a2a.EventKindArtifactUpdate, a2a.EventKindStatusUpdate, a2a.EventKindQueueClosed}
		if len(got) != len(want) {
			t.Fatalf("%s: expected %d events, got %d: %v", name, len(want), len(got), got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("%s: position %d: expected %v got %v", name, i, want[i], got[i])
			}
		}
	}
}

func mustArtifact(t *testing.T, id string) a2a.Artifact {
	t.Helper()
	art, err := a2a.NewArtifact(a2a.NewTextPart("hi", nil))
	if err != nil {
		t.Fatal(err)
	}
	art.ArtifactID = a2a.ArtifactID(id)
	return art
}

func TestMainQueueClosesAfterFinalEvent(t *testing.T) {
	bus, manager, persister := newTestBus()
	_ = bus
	taskID, contextID := a2a.NewTaskID(), a2a.NewContextID()
	main := manager.getOrCreate(taskID)
	tap := main.Tap()
	ctx := context.Background()

	final := &a2a.TaskStatusUpdateEvent{TaskID: taskID, ContextID: contextID, Status: a2a.NewTaskStatus(a2a.TaskStateCompleted, nil), Final: true}
	if err := main.Write(ctx, final); err != nil {
		t.Fatal(err)
	}

	_, ok, err := tap.Read(ctx)
	if err != nil || !ok {
		t.Fatalf("expected status event, got ok=%v err=%v", ok, err)
	}
	_, ok, err = tap.Read(ctx)
	if err != nil || !ok {
		t.Fatalf("expected QueueClosedEvent, got ok=%v err=%v", ok, err)
	}
	_, ok, _ = tap.Read(ctx)
	if ok {
		t.Fatal("expected tap to complete after QueueClosedEvent")
	}
	if !main.IsClosed() {
		t.Fatal("expected main queue to be closed")
	}
	if len(persister.saved) != 1 {
		t.Fatalf("expected exactly one save, got %d", len(persister.saved))
	}
	if manager.Get(taskID) != nil {
		t.Fatal("expected main queue evicted from manager after close")
	}
}

func TestDuplicateFinalizationIsIdempotent(t *testing.T) {
	_, manager, _ := newTestBus()
	taskID, contextID := a2a.NewTaskID(), a2a.NewContextID()
	main := manager.getOrCreate(taskID)
	tap := main.Tap()
	ctx := context.Background()

	first := main.observeFinal()
	second := main.observeFinal()
	if !first || second {
		t.Fatalf("expected exactly one observeFinal to return true, got first=%v second=%v", first, second)
	}
	_ = contextID
	_ = tap
}

func TestTapUnsubscribeReleasesBlockedProducer(t *testing.T) {
	bus, manager, _ := newTestBus()
	_ = bus
	taskID, contextID := a2a.NewTaskID(), a2a.NewContextID()
	main := manager.getOrCreate(taskID)
	slow := main.Tap()

	ctx := context.Background()
	for i := 0; i < main.bufferSize; i++ {
		e := &a2a.TaskStatusUpdateEvent{TaskID: taskID, ContextID: contextID, Status: a2a.NewTaskStatus(a2a.TaskStateWorking, nil)}
		if err := main.Write(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	writeDone := make(chan error, 1)
	go func() {
		e := &a2a.TaskStatusUpdateEvent{TaskID: taskID, ContextID: contextID, Status: a2a.NewTaskStatus(a2a.TaskStateWorking, nil)}
		writeDone <- main.Write(ctx, e)
	}()

	select {
	case <-writeDone:
		t.Fatal("expected producer to block on a full tap buffer")
	case <-time.After(50 * time.Millisecond):
	}

	slow.Unsubscribe()

	select {
	case err := <-writeDone:
		if err != nil {
			t.Fatalf("unexpected error after unsubscribe: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("expected producer write to complete within bounded time after unsubscribe")
	}
}
