package a2asrv

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/a2aserver/a2acore/a2a"
	"github.com/a2aserver/a2acore/internal/telemetry"
)

// TaskStateProcessor is the pure in-memory reducer of events into task
// state (C2). It performs no I/O and never returns an error except on
// programmer misuse; unknown event kinds are logged and otherwise ignored.
type TaskStateProcessor struct {
	mu          sync.RWMutex
	tasks       map[a2a.TaskID]*a2a.Task
	lastTouched map[a2a.TaskID]time.Time
}

// NewTaskStateProcessor returns an empty processor. Construct one per
// isolated server instance — it holds no package-level state.
func NewTaskStateProcessor() *TaskStateProcessor {
	return &TaskStateProcessor{
		tasks:       make(map[a2a.TaskID]*a2a.Task),
		lastTouched: make(map[a2a.TaskID]time.Time),
	}
}

// ProcessEvent reduces event into the processor's task state and returns
// the resulting snapshot, or nil if the event carries no task-relevant
// state (an unknown kind, or a bare *a2a.Message).
//
// initialMessage seeds history when a status-update arrives for a task id
// the processor has not seen yet.
func (p *TaskStateProcessor) ProcessEvent(ctx context.Context, event a2a.Event, initialMessage *a2a.Message) *a2a.Task {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e := event.(type) {
	case *a2a.Task:
		cp := e.Clone()
		p.tasks[cp.ID] = cp
		p.touchLocked(cp.ID)
		return cp.Clone()

	case *a2a.TaskStatusUpdateEvent:
		task := p.getOrCreateLocked(e.TaskID, e.ContextID, initialMessage)
		if task.Status.Message != nil && !messagesEqual(task.Status.Message, e.Status.Message) {
			task.History = append(task.History, *task.Status.Message)
		}
		task.Status = e.Status
		task.Metadata = a2a.MergeMetadata(task.Metadata, e.Metadata)
		p.tasks[e.TaskID] = task
		p.touchLocked(e.TaskID)
		return task.Clone()

	case *a2a.TaskArtifactUpdateEvent:
		task := p.getOrCreateLocked(e.TaskID, e.ContextID, initialMessage)
		idx := task.FindArtifact(e.Artifact.ArtifactID)
		switch {
		case idx < 0:
			task.Artifacts = append(task.Artifacts, e.Artifact.Clone())
		case e.Append:
			merged := task.Artifacts[idx]
			merged.Parts = append(append([]a2a.Part(nil), merged.Parts...), a2a.CloneParts(e.Artifact.Parts)...)
			task.Artifacts[idx] = merged
		default:
			task.Artifacts[idx] = e.Artifact.Clone()
		}
		task.Metadata = a2a.MergeMetadata(task.Metadata, e.Metadata)
		p.tasks[e.TaskID] = task
		p.touchLocked(e.TaskID)
		return task.Clone()

	case *a2a.Message:
		return nil

	case *a2a.QueueClosedEvent:
		return nil

	default:
		telemetry.Warn(ctx, "processor.unknown_event_kind", telemetry.Str("kind", string(event.Kind())))
		return nil
	}
}

// messagesEqual reports whether a and b represent the same status message,
// so that re-applying a status-update carrying the message already pending
// does not duplicate it in history (history-message idempotence).
func messagesEqual(a, b *a2a.Message) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.MessageID != "" || b.MessageID != "" {
		return a.MessageID == b.MessageID
	}
	return reflect.DeepEqual(a, b)
}

// getOrCreateLocked must be called with p.mu held.
func (p *TaskStateProcessor) getOrCreateLocked(id a2a.TaskID, contextID a2a.ContextID, initialMessage *a2a.Message) *a2a.Task {
	if task, ok := p.tasks[id]; ok {
		return task
	}
	task := a2a.NewTask(id, contextID, initialMessage)
	p.tasks[id] = task
	return task
}

// AddMessageToHistory appends message to the task's history, first
// flushing any pending status message per invariant 2. Returns
// TaskNotFoundError if the task doesn't exist.
func (p *TaskStateProcessor) AddMessageToHistory(taskID a2a.TaskID, message a2a.Message) (*a2a.Task, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	task, ok := p.tasks[taskID]
	if !ok {
		return nil, a2a.TaskNotFoundError(taskID)
	}
	if task.Status.Message != nil {
		task.History = append(task.History, *task.Status.Message)
		task.Status.Message = nil
	}
	task.History = append(task.History, message.Clone())
	return task.Clone(), nil
}

// GetTask returns a defensive copy of the task state for id, or nil.
func (p *TaskStateProcessor) GetTask(taskID a2a.TaskID) *a2a.Task {
	p.mu.RLock()
	defer p.mu.RUnlock()
	task, ok := p.tasks[taskID]
	if !ok {
		return nil
	}
	return task.Clone()
}

// SetTask installs task as the processor's authoritative state for its id,
// replacing anything previously held.
func (p *TaskStateProcessor) SetTask(task *a2a.Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks[task.ID] = task.Clone()
}

// RemoveTask evicts a task's in-memory state, typically called once it has
// reached a final state and been persisted.
func (p *TaskStateProcessor) RemoveTask(taskID a2a.TaskID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.tasks, taskID)
	delete(p.lastTouched, taskID)
}

// touchLocked records the current time as taskID's last-touched timestamp.
// Must be called with p.mu held.
func (p *TaskStateProcessor) touchLocked(taskID a2a.TaskID) {
	p.lastTouched[taskID] = time.Now()
}

// EvictFinalizedOlderThan removes every task whose state is final, whose
// last-touched time is older than window, and for which isDrained reports
// no live child subscribers remain. Used by the periodic grace-period
// sweep (SPEC_FULL.md §12).
func (p *TaskStateProcessor) EvictFinalizedOlderThan(window time.Duration, isDrained func(a2a.TaskID) bool) {
	cutoff := time.Now().Add(-window)
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, task := range p.tasks {
		if !task.Status.State.IsFinal() {
			continue
		}
		touched, ok := p.lastTouched[id]
		if ok && touched.After(cutoff) {
			continue
		}
		if isDrained != nil && !isDrained(id) {
			continue
		}
		delete(p.tasks, id)
		delete(p.lastTouched, id)
	}
}
