package a2a

// EventKind discriminates the closed set of event kinds the core reduces,
// and doubles as the wire "kind" tag (§6) for replication round-trips.
type EventKind string

const (
	EventKindTask           EventKind = "task"
	EventKindMessage        EventKind = "message"
	EventKindStatusUpdate   EventKind = "status-update"
	EventKindArtifactUpdate EventKind = "artifact-update"
	EventKindQueueClosed    EventKind = "queue-closed"
)

// Event is implemented by every value the core's queues and processor
// accept: *Task, *Message, *TaskStatusUpdateEvent, *TaskArtifactUpdateEvent,
// *QueueClosedEvent. Dispatch is an exhaustive type switch on Kind(),
// never reflection.
type Event interface {
	Kind() EventKind
}

// TaskStatusUpdateEvent reports a task's status transition.
type TaskStatusUpdateEvent struct {
	TaskID    TaskID
	ContextID ContextID
	Status    TaskStatus
	Final     bool
	Metadata  map[string]any
}

func (*TaskStatusUpdateEvent) Kind() EventKind { return EventKindStatusUpdate }
func (e *TaskStatusUpdateEvent) GetTaskID() TaskID       { return e.TaskID }
func (e *TaskStatusUpdateEvent) GetContextID() ContextID { return e.ContextID }

// NewStatusUpdateEvent constructs a TaskStatusUpdateEvent for task,
// deriving Final from state.IsFinal() per invariant 5.
func NewStatusUpdateEvent(task TaskInfoProvider, state TaskState, msg *Message) *TaskStatusUpdateEvent {
	return &TaskStatusUpdateEvent{
		TaskID:    task.GetTaskID(),
		ContextID: task.GetContextID(),
		Status:    NewTaskStatus(state, msg),
		Final:     state.IsFinal(),
	}
}

// TaskArtifactUpdateEvent reports a new or updated artifact.
type TaskArtifactUpdateEvent struct {
	TaskID    TaskID
	ContextID ContextID
	Artifact  Artifact
	Append    bool
	LastChunk bool
	Metadata  map[string]any
}

func (*TaskArtifactUpdateEvent) Kind() EventKind { return EventKindArtifactUpdate }
func (e *TaskArtifactUpdateEvent) GetTaskID() TaskID       { return e.TaskID }
func (e *TaskArtifactUpdateEvent) GetContextID() ContextID { return e.ContextID }

// NewArtifactEvent constructs a TaskArtifactUpdateEvent for a brand new
// artifact (Append=false, fresh ArtifactID).
func NewArtifactEvent(task TaskInfoProvider, parts ...Part) *TaskArtifactUpdateEvent {
	art, err := NewArtifact(parts...)
	if err != nil {
		panic(err)
	}
	return &TaskArtifactUpdateEvent{
		TaskID:    task.GetTaskID(),
		ContextID: task.GetContextID(),
		Artifact:  art,
		Append:    false,
	}
}

// NewArtifactUpdateEvent constructs a TaskArtifactUpdateEvent appending
// parts onto the artifact identified by id (Append=true).
func NewArtifactUpdateEvent(task TaskInfoProvider, id ArtifactID, parts ...Part) *TaskArtifactUpdateEvent {
	return &TaskArtifactUpdateEvent{
		TaskID:    task.GetTaskID(),
		ContextID: task.GetContextID(),
		Artifact: Artifact{
			ArtifactID: id,
			Parts:      CloneParts(parts),
		},
		Append: true,
	}
}

// QueueClosedEvent is the internal poison pill signaling end-of-stream for
// a task's main queue. It is never constructed by an AgentExecutor.
type QueueClosedEvent struct {
	TaskID TaskID
}

func (*QueueClosedEvent) Kind() EventKind { return EventKindQueueClosed }

// PushNotificationConfig describes a webhook a task's events should be
// delivered to.
type PushNotificationConfig struct {
	ID          string
	URL         string
	Token       string
	EventFilter []EventKind // empty means "all kinds"
}

// Matches reports whether kind passes this config's event filter.
func (c PushNotificationConfig) Matches(kind EventKind) bool {
	if len(c.EventFilter) == 0 {
		return true
	}
	for _, k := range c.EventFilter {
		if k == kind {
			return true
		}
	}
	return false
}

// ReplicatedEventQueueItem is the unit of work sent across the replication
// bus: a task id, the wrapped event, and a poison-pill flag.
type ReplicatedEventQueueItem struct {
	TaskID      TaskID
	Event       Event
	ClosedEvent bool
}
