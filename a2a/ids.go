// Package a2a defines the entity model shared by every A2A server core
// component: tasks, messages, parts, artifacts, and the events the core
// reduces them from.
package a2a

import "github.com/google/uuid"

// TaskID identifies a Task. Distinct from ContextID so the two are never
// confused at compile time.
type TaskID string

// ContextID groups related tasks (e.g. a conversation) together.
type ContextID string

// MessageID identifies a Message, caller-supplied or generated.
type MessageID string

// ArtifactID identifies an Artifact within a task.
type ArtifactID string

// NewTaskID generates a fresh, globally unique task id.
func NewTaskID() TaskID {
	return TaskID("task-" + uuid.NewString())
}

// NewContextID generates a fresh, globally unique context id.
func NewContextID() ContextID {
	return ContextID("ctx-" + uuid.NewString())
}

// NewMessageID generates a fresh, globally unique message id.
func NewMessageID() MessageID {
	return MessageID("msg-" + uuid.NewString())
}

// NewArtifactID generates a fresh, globally unique artifact id.
func NewArtifactID() ArtifactID {
	return ArtifactID("artifact-" + uuid.NewString())
}

// TaskInfoProvider is implemented by anything carrying a task/context id
// pair — Task itself and the request contexts that construct events before
// a Task exists in the processor.
type TaskInfoProvider interface {
	GetTaskID() TaskID
	GetContextID() ContextID
}
