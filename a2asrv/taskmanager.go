package a2asrv

import (
	"context"
	"sync"
	"time"

	"github.com/a2aserver/a2acore/a2a"
	"github.com/a2aserver/a2acore/a2asrv/eventqueue"
	"github.com/a2aserver/a2acore/a2asrv/taskstore"
)

// TaskManager binds a single request to its task (C9). It holds the
// shared TaskStateProcessor, a TaskStateProvider fallback for tasks the
// processor has evicted, the initial message, and the task/context id
// pair, which are nullable until the first event carries them.
type TaskManager struct {
	processor *TaskStateProcessor
	store     taskstore.TaskStateProvider

	mu             sync.Mutex
	taskID         a2a.TaskID
	contextID      a2a.ContextID
	initialMessage *a2a.Message
}

// NewTaskManager constructs a manager for one request. taskID/contextID
// may be empty if the first event will carry them.
func NewTaskManager(processor *TaskStateProcessor, store taskstore.TaskStateProvider, taskID a2a.TaskID, contextID a2a.ContextID, initialMessage *a2a.Message) *TaskManager {
	return &TaskManager{
		processor:      processor,
		store:          store,
		taskID:         taskID,
		contextID:      contextID,
		initialMessage: initialMessage,
	}
}

// TaskID returns the manager's bound task id, which may be empty if no
// event has arrived yet.
func (m *TaskManager) TaskID() a2a.TaskID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.taskID
}

// ProcessEvent validates event's ids against the manager's bound ids
// (adopting them if unbound) and delegates reduction to the shared
// processor. It never persists.
func (m *TaskManager) ProcessEvent(ctx context.Context, event a2a.Event) (*a2a.Task, error) {
	info, ok := event.(a2a.TaskInfoProvider)
	if ok {
		if err := m.bindOrValidate(info.GetTaskID(), info.GetContextID()); err != nil {
			return nil, err
		}
	}
	return m.processor.ProcessEvent(ctx, event, m.initialMessage), nil
}

// ProcessAndSave reduces event and persists the resulting task snapshot.
func (m *TaskManager) ProcessAndSave(ctx context.Context, event a2a.Event, persister eventqueue.Persister) (*a2a.Task, error) {
	task, err := m.ProcessEvent(ctx, event)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, nil
	}
	if err := persister.Save(ctx, task, false); err != nil {
		return nil, err
	}
	return task, nil
}

// UpdateWithMessage appends message to the bound task's history via the
// shared processor, without persisting.
func (m *TaskManager) UpdateWithMessage(ctx context.Context, message *a2a.Message) (*a2a.Task, error) {
	m.mu.Lock()
	taskID := m.taskID
	m.mu.Unlock()
	if taskID == "" {
		return nil, a2a.InvalidRequestError("task manager has no bound task id yet")
	}
	return m.processor.AddMessageToHistory(taskID, *message)
}

// GetTask returns the bound task's current snapshot, preferring the
// shared processor's in-memory state and falling back to the durable
// store if the processor has evicted it (§4.9).
func (m *TaskManager) GetTask(ctx context.Context) (*a2a.Task, error) {
	m.mu.Lock()
	taskID := m.taskID
	m.mu.Unlock()
	if taskID == "" {
		return nil, a2a.InvalidRequestError("task manager has no bound task id yet")
	}
	if task := m.processor.GetTask(taskID); task != nil {
		return task, nil
	}
	return m.store.Get(ctx, taskID)
}

func (m *TaskManager) bindOrValidate(taskID a2a.TaskID, contextID a2a.ContextID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.taskID == "" {
		m.taskID = taskID
		m.contextID = contextID
		return nil
	}
	if taskID != "" && taskID != m.taskID {
		return a2a.InvalidRequestError("event task id " + string(taskID) + " does not match bound task id " + string(m.taskID))
	}
	return nil
}

// GraceSweepConfig configures the periodic eviction of finalized,
// childless TaskStateProcessor entries (SPEC_FULL.md §12 resolution of
// the orphaned in-memory state open question).
type GraceSweepConfig struct {
	// Window is how long a finalized task is kept in the processor's
	// in-memory map after its last main queue closed, before being
	// evicted. Callers reading the task after eviction fall back to the
	// durable store via GetTask.
	Window time.Duration
	// Interval is how often the sweep runs.
	Interval time.Duration
}

// DefaultGraceSweepConfig matches the teacher-pack's own cleanup-sweep
// cadence order of magnitude (minutes, not seconds) for periodic
// registry maintenance.
func DefaultGraceSweepConfig() GraceSweepConfig {
	return GraceSweepConfig{Window: 10 * time.Minute, Interval: time.Minute}
}

// RunGraceSweep blocks, evicting finalized tasks whose last-touched time
// is older than cfg.Window, until ctx is canceled. isDrained reports
// whether a task's main queue has no live child subscribers left; it is
// supplied by wiring code that holds the QueueManager.
func RunGraceSweep(ctx context.Context, processor *TaskStateProcessor, cfg GraceSweepConfig, isDrained func(a2a.TaskID) bool) {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultGraceSweepConfig().Interval
	}
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			processor.EvictFinalizedOlderThan(cfg.Window, isDrained)
		}
	}
}
