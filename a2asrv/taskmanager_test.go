package a2asrv

import (
	"context"
	"testing"
	"time"

	"github.com/a2aserver/a2acore/a2a"
	"github.com/a2aserver/a2acore/a2asrv/taskstore"
)

func TestTaskManagerProcessEventAdoptsUnboundID(t *testing.T) {
	proc := NewTaskStateProcessor()
	store := taskstore.NewInMemoryStore()
	mgr := NewTaskManager(proc, store, "", "", nil)

	taskID, contextID := a2a.TaskID("t1"), a2a.NewContextID()
	event := &a2a.TaskStatusUpdateEvent{TaskID: taskID, ContextID: contextID, Status: a2a.NewTaskStatus(a2a.TaskStateWorking, nil)}

	task, err := mgr.ProcessEvent(context.Background(), event)
	if err != nil {
		t.Fatal(err)
	}
	if task.ID != taskID {
		t.Fatalf("expected adopted task id %q, got %q", taskID, task.ID)
	}
	if mgr.TaskID() != taskID {
		t.Fatalf("expected manager to bind task id, got %q", mgr.TaskID())
	}
}

func TestTaskManagerProcessEventRejectsMismatchedID(t *testing.T) {
	proc := NewTaskStateProcessor()
	store := taskstore.NewInMemoryStore()
	mgr := NewTaskManager(proc, store, a2a.TaskID("bound"), a2a.NewContextID(), nil)

	event := &a2a.TaskStatusUpdateEvent{TaskID: "other", Status: a2a.NewTaskStatus(a2a.TaskStateWorking, nil)}
	if _, err := mgr.ProcessEvent(context.Background(), event); err == nil {
		t.Fatal("expected mismatched task id to error")
	}
}

func TestTaskManagerGetTaskFallsBackToStore(t *testing.T) {
	proc := NewTaskStateProcessor()
	store := taskstore.NewInMemoryStore()
	ctx := context.Background()

	taskID := a2a.TaskID("t1")
	task := a2a.NewTask(taskID, a2a.NewContextID(), nil)
	task.Status = a2a.NewTaskStatus(a2a.TaskStateCompleted, nil)
	if err := store.Save(ctx, task, false); err != nil {
		t.Fatal(err)
	}
	proc.RemoveTask(taskID) // simulate processor having evicted it

	mgr := NewTaskManager(proc, store, taskID, task.ContextID, nil)
	got, err := mgr.GetTask(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != taskID {
		t.Fatalf("expected fallback task %q, got %q", taskID, got.ID)
	}
}

func TestTaskManagerUpdateWithMessageRequiresBoundID(t *testing.T) {
	proc := NewTaskStateProcessor()
	store := taskstore.NewInMemoryStore()
	mgr := NewTaskManager(proc, store, "", "", nil)

	msg, err := a2a.NewMessage(a2a.RoleUser, a2a.NewTextPart("hi", nil))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.UpdateWithMessage(context.Background(), msg); err == nil {
		t.Fatal("expected error for unbound task id")
	}
}

func TestEvictFinalizedOlderThanRespectsWindowAndDrainedCheck(t *testing.T) {
	proc := NewTaskStateProcessor()
	ctx := context.Background()
	taskID := a2a.TaskID("t1")

	proc.ProcessEvent(ctx, &a2a.TaskStatusUpdateEvent{TaskID: taskID, Status: a2a.NewTaskStatus(a2a.TaskStateCompleted, nil), Final: true}, nil)

	proc.EvictFinalizedOlderThan(time.Hour, func(a2a.TaskID) bool { return true })
	if proc.GetTask(taskID) == nil {
		t.Fatal("expected task to survive sweep within the grace window")
	}

	proc.EvictFinalizedOlderThan(0, func(a2a.TaskID) bool { return false })
	if proc.GetTask(taskID) == nil {
		t.Fatal("expected task to survive sweep while not drained")
	}

	proc.EvictFinalizedOlderThan(0, func(a2a.TaskID) bool { return true })
	if proc.GetTask(taskID) != nil {
		t.Fatal("expected task to be evicted once past window and drained")
	}
}
