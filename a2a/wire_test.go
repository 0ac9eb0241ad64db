package a2a

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReplicatedEventQueueItemRoundTrip(t *testing.T) {
	taskID := TaskID("t-1")
	ctxID := ContextID("c-1")

	cases := []struct {
		name string
		item ReplicatedEventQueueItem
	}{
		{
			name: "status-update",
			item: ReplicatedEventQueueItem{
				TaskID: taskID,
				Event: &TaskStatusUpdateEvent{
					TaskID: taskID, ContextID: ctxID,
					Status: NewTaskStatus(TaskStateWorking, nil),
					Final:  false,
				},
			},
		},
		{
			name: "artifact-update",
			item: ReplicatedEventQueueItem{
				TaskID: taskID,
				Event: &TaskArtifactUpdateEvent{
					TaskID: taskID, ContextID: ctxID,
					Artifact: Artifact{ArtifactID: "a-1", Parts: []Part{NewTextPart("hi", nil)}},
					Append:   true,
				},
			},
		},
		{
			name: "queue-closed",
			item: ReplicatedEventQueueItem{TaskID: taskID, Event: &QueueClosedEvent{TaskID: taskID}, ClosedEvent: true},
		},
		{
			name: "task-snapshot",
			item: ReplicatedEventQueueItem{TaskID: taskID, Event: NewTask(taskID, ctxID, nil)},
		},
		{
			name: "message",
			item: ReplicatedEventQueueItem{TaskID: taskID, Event: mustMessage(t)},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.item)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			var got ReplicatedEventQueueItem
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.Event.Kind() != tc.item.Event.Kind() {
				t.Fatalf("kind mismatch: want %v got %v", tc.item.Event.Kind(), got.Event.Kind())
			}
			if diff := cmp.Diff(tc.item.Event, got.Event); diff != "" {
				t.Fatalf("round-trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func mustMessage(t *testing.T) *Message {
	t.Helper()
	msg, err := NewMessage(RoleAgent, NewTextPart("reply", nil))
	if err != nil {
		t.Fatal(err)
	}
	return msg
}
