package a2a

import (
	"encoding/json"
	"fmt"
)

// wireEnvelope is the canonical on-the-wire shape for a polymorphic Event:
// a single JSON object with a "kind" discriminator. Status-update,
// artifact-update and queue-closed events have their own fields beside
// "kind"; a task or a message is nested under a "task" or "message" field.
// This is what ReplicatedEventQueueItem.Event round trips through (§6
// replication wire format).
type wireEnvelope struct {
	Kind      EventKind       `json:"kind"`
	TaskID    TaskID          `json:"taskId,omitempty"`
	ContextID ContextID       `json:"contextId,omitempty"`
	Status    *TaskStatus     `json:"status,omitempty"`
	Final     *bool           `json:"final,omitempty"`
	Artifact  *Artifact       `json:"artifact,omitempty"`
	Append    *bool           `json:"append,omitempty"`
	LastChunk *bool           `json:"lastChunk,omitempty"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
	Message   *Message        `json:"message,omitempty"`
	Task      *Task           `json:"task,omitempty"`
}

// EncodeEvent serializes an Event into its canonical tagged wire form.
func EncodeEvent(e Event) ([]byte, error) {
	env := wireEnvelope{Kind: e.Kind()}
	switch v := e.(type) {
	case *Task:
		env.Task = v
	case *Message:
		env.Message = v
	case *TaskStatusUpdateEvent:
		env.TaskID = v.TaskID
		env.ContextID = v.ContextID
		env.Status = &v.Status
		env.Final = &v.Final
		env.Metadata = v.Metadata
	case *TaskArtifactUpdateEvent:
		env.TaskID = v.TaskID
		env.ContextID = v.ContextID
		env.Artifact = &v.Artifact
		env.Append = &v.Append
		env.LastChunk = &v.LastChunk
		env.Metadata = v.Metadata
	case *QueueClosedEvent:
		env.TaskID = v.TaskID
	default:
		return nil, InvalidParamsError(fmt.Sprintf("unknown event type %T", e))
	}
	return json.Marshal(env)
}

// DecodeEvent deserializes an Event from its canonical tagged wire form,
// dispatching on the "kind" discriminator (never reflection).
func DecodeEvent(data []byte) (Event, error) {
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}
	switch env.Kind {
	case EventKindTask:
		if env.Task == nil {
			return nil, InvalidParamsError("task event missing task field")
		}
		return env.Task, nil
	case EventKindMessage:
		if env.Message == nil {
			return nil, InvalidParamsError("message event missing message field")
		}
		return env.Message, nil
	case EventKindStatusUpdate:
		ev := &TaskStatusUpdateEvent{
			TaskID:    env.TaskID,
			ContextID: env.ContextID,
			Metadata:  env.Metadata,
		}
		if env.Status != nil {
			ev.Status = *env.Status
		}
		if env.Final != nil {
			ev.Final = *env.Final
		}
		return ev, nil
	case EventKindArtifactUpdate:
		ev := &TaskArtifactUpdateEvent{
			TaskID:    env.TaskID,
			ContextID: env.ContextID,
			Metadata:  env.Metadata,
		}
		if env.Artifact != nil {
			ev.Artifact = *env.Artifact
		}
		if env.Append != nil {
			ev.Append = *env.Append
		}
		if env.LastChunk != nil {
			ev.LastChunk = *env.LastChunk
		}
		return ev, nil
	case EventKindQueueClosed:
		return &QueueClosedEvent{TaskID: env.TaskID}, nil
	default:
		return nil, InvalidParamsError(fmt.Sprintf("unknown event kind %q", env.Kind))
	}
}

// MarshalJSON implements the §6 replication wire format:
// { "taskId": ..., "event": <tagged event>, "closedEvent": ... }.
func (item ReplicatedEventQueueItem) MarshalJSON() ([]byte, error) {
	eventJSON, err := EncodeEvent(item.Event)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		TaskID      TaskID          `json:"taskId"`
		Event       json.RawMessage `json:"event"`
		ClosedEvent bool            `json:"closedEvent"`
	}{
		TaskID:      item.TaskID,
		Event:       eventJSON,
		ClosedEvent: item.ClosedEvent,
	})
}

// UnmarshalJSON implements the §6 replication wire format.
func (item *ReplicatedEventQueueItem) UnmarshalJSON(data []byte) error {
	var raw struct {
		TaskID      TaskID          `json:"taskId"`
		Event       json.RawMessage `json:"event"`
		ClosedEvent bool            `json:"closedEvent"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode replicated item: %w", err)
	}
	ev, err := DecodeEvent(raw.Event)
	if err != nil {
		return err
	}
	item.TaskID = raw.TaskID
	item.Event = ev
	item.ClosedEvent = raw.ClosedEvent
	return nil
}
