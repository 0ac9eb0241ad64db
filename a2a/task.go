package a2a

import "time"

// TaskState is the task's position in its lifecycle.
type TaskState string

const (
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateInputRequired TaskState = "input-required"
	TaskStateAuthRequired  TaskState = "auth-required"
	TaskStateCompleted     TaskState = "completed"
	TaskStateCanceled      TaskState = "canceled"
	TaskStateFailed        TaskState = "failed"
	TaskStateRejected      TaskState = "rejected"
	TaskStateUnknown       TaskState = "unknown"
)

// IsFinal reports whether state is one of the five final states a task
// cannot leave.
func (s TaskState) IsFinal() bool {
	switch s {
	case TaskStateCompleted, TaskStateCanceled, TaskStateFailed, TaskStateRejected, TaskStateUnknown:
		return true
	default:
		return false
	}
}

// TaskStatus is a task's current state, optional accompanying message, and
// UTC millisecond-precision timestamp.
type TaskStatus struct {
	State     TaskState
	Message   *Message
	Timestamp time.Time
}

// NewTaskStatus constructs a TaskStatus whose Timestamp is always now()
// (UTC, truncated to millisecond precision).
func NewTaskStatus(state TaskState, msg *Message) TaskStatus {
	return TaskStatus{
		State:     state,
		Message:   msg,
		Timestamp: nowMillis(),
	}
}

func nowMillis() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// Task is the durable unit of work this core tracks: identity (id,
// contextId), status, ordered message history, ordered artifacts, and
// opaque metadata.
type Task struct {
	ID        TaskID
	ContextID ContextID
	Status    TaskStatus
	History   []Message
	Artifacts []Artifact
	Metadata  map[string]any
}

// NewTask constructs a freshly submitted Task.
func NewTask(id TaskID, contextID ContextID, initialMessage *Message) *Task {
	var history []Message
	if initialMessage != nil {
		history = []Message{initialMessage.Clone()}
	}
	return &Task{
		ID:        id,
		ContextID: contextID,
		Status:    NewTaskStatus(TaskStateSubmitted, nil),
		History:   history,
	}
}

func (t *Task) GetTaskID() TaskID       { return t.ID }
func (t *Task) GetContextID() ContextID { return t.ContextID }
func (*Task) Kind() EventKind           { return EventKindTask }

// Clone returns a defensive deep copy of t.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	cp := *t
	if t.Status.Message != nil {
		m := t.Status.Message.Clone()
		cp.Status.Message = &m
	}
	if t.History != nil {
		cp.History = make([]Message, len(t.History))
		for i, m := range t.History {
			cp.History[i] = m.Clone()
		}
	}
	if t.Artifacts != nil {
		cp.Artifacts = make([]Artifact, len(t.Artifacts))
		for i, a := range t.Artifacts {
			cp.Artifacts[i] = a.Clone()
		}
	}
	cp.Metadata = CloneMetadata(t.Metadata)
	return &cp
}

// FindArtifact returns the index of the artifact with the given id, or -1.
func (t *Task) FindArtifact(id ArtifactID) int {
	for i, a := range t.Artifacts {
		if a.ArtifactID == id {
			return i
		}
	}
	return -1
}
