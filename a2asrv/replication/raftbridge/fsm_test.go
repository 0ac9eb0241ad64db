package raftbridge

import (
	"encoding/json"
	"testing"

	"github.com/hashicorp/raft"

	"github.com/a2aserver/a2acore/a2a"
)

func TestFSMApplyForwardsDecodedItem(t *testing.T) {
	taskID := a2a.TaskID("t1")
	item := a2a.ReplicatedEventQueueItem{
		TaskID: taskID,
		Event:  &a2a.TaskStatusUpdateEvent{TaskID: taskID, Status: a2a.NewTaskStatus(a2a.TaskStateWorking, nil)},
	}
	data, err := json.Marshal(item)
	if err != nil {
		t.Fatal(err)
	}

	var got a2a.ReplicatedEventQueueItem
	fsm := NewFSM(func(i a2a.ReplicatedEventQueueItem) { got = i })

	if ret := fsm.Apply(&raft.Log{Index: 1, Data: data}); ret != nil {
		t.Fatalf("unexpected apply error: %v", ret)
	}
	if got.TaskID != taskID {
		t.Fatalf("expected forwarded taskID %q, got %q", taskID, got.TaskID)
	}
	if got.Event.Kind() != a2a.EventKindStatusUpdate {
		t.Fatalf("expected status-update kind, got %v", got.Event.Kind())
	}
}

func TestFSMApplyDropsMalformedEntry(t *testing.T) {
	called := false
	fsm := NewFSM(func(a2a.ReplicatedEventQueueItem) { called = true })

	ret := fsm.Apply(&raft.Log{Index: 1, Data: []byte("not json")})
	if ret == nil {
		t.Fatal("expected an error for a malformed log entry")
	}
	if called {
		t.Fatal("expected receiver not to be called for a malformed entry")
	}
}

func TestFSMSnapshotPersistClosesSink(t *testing.T) {
	fsm := NewFSM(nil)
	snap, err := fsm.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	sink := &fakeSnapshotSink{}
	if err := snap.Persist(sink); err != nil {
		t.Fatal(err)
	}
	if !sink.closed {
		t.Fatal("expected sink to be closed on successful persist")
	}
}

type fakeSnapshotSink struct {
	buf    []byte
	closed bool
}

func (s *fakeSnapshotSink) Write(p []byte) (int, error) { s.buf = append(s.buf, p...); return len(p), nil }
func (s *fakeSnapshotSink) Close() error                { s.closed = true; return nil }
func (s *fakeSnapshotSink) ID() string                  { return "test" }
func (s *fakeSnapshotSink) Cancel() error               { return nil }
