package eventqueue

import (
	"context"
	"sync"

	"github.com/a2aserver/a2acore/a2a"
)

// QueueManager maps taskId to its MainQueue. All mutation goes through a
// single mutex-guarded map with per-key atomic create-or-get, matching the
// "shared resources" model of §5: the main bus itself is not a shared
// mutable structure, only this map is.
type QueueManager struct {
	bus        *MainEventBus
	bufferSize int

	mu    sync.Mutex
	mains map[a2a.TaskID]*MainQueue
}

// NewQueueManager constructs a manager dispatching through bus. bufferSize
// configures new main queues' per-tap buffer bound (DefaultBufferSize if
// <= 0).
func NewQueueManager(bus *MainEventBus, bufferSize int) *QueueManager {
	return &QueueManager{
		bus:        bus,
		bufferSize: bufferSize,
		mains:      make(map[a2a.TaskID]*MainQueue),
	}
}

// CreateOrTap lazily creates the main queue for taskID if absent, and
// returns a fresh tap for a new subscriber.
func (m *QueueManager) CreateOrTap(taskID a2a.TaskID) *EventQueue {
	mq := m.getOrCreate(taskID)
	return mq.Tap()
}

// GetOrCreateMain lazily creates the main queue for taskID if absent and
// returns its producer-side handle, for a caller (the request handler)
// that needs to hand a Queue to an AgentExecutor.
func (m *QueueManager) GetOrCreateMain(taskID a2a.TaskID) *MainQueue {
	return m.getOrCreate(taskID)
}

// Tap opens a new tap on an existing main queue, or nil if the task has no
// main queue (never created, or already closed and evicted).
func (m *QueueManager) Tap(taskID a2a.TaskID) *EventQueue {
	m.mu.Lock()
	mq := m.mains[taskID]
	m.mu.Unlock()
	if mq == nil {
		return nil
	}
	return mq.Tap()
}

// Get returns the producer-side MainQueue for taskID, or nil.
func (m *QueueManager) Get(taskID a2a.TaskID) *MainQueue {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mains[taskID]
}

func (m *QueueManager) getOrCreate(taskID a2a.TaskID) *MainQueue {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mq, ok := m.mains[taskID]; ok {
		return mq
	}
	mq := newMainQueue(taskID, m.bus, m.bufferSize)
	m.mains[taskID] = mq
	return mq
}

// Close closes the main queue for taskID (and all its taps) and evicts it
// from the manager.
func (m *QueueManager) Close(ctx context.Context, taskID a2a.TaskID, immediate bool) {
	m.mu.Lock()
	mq, ok := m.mains[taskID]
	delete(m.mains, taskID)
	m.mu.Unlock()
	if !ok {
		return
	}
	mq.Close(ctx, immediate)
}

// Evict removes a fully-closed main queue from the manager without
// affecting its state; called by the bus after natural finalization
// drains a main so the manager's map doesn't grow unbounded.
func (m *QueueManager) Evict(taskID a2a.TaskID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.mains, taskID)
}
