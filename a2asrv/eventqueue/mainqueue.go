package eventqueue

import (
	"context"
	"sync"

	"github.com/a2aserver/a2acore/a2a"
)

type mainState int

const (
	stateOpen mainState = iota
	stateDraining
	stateClosed
)

// MainQueue is the single-producer queue owned by a task's executor. It
// implements Queue for the producer side; subscribers obtain a read-only
// EventQueue via Tap. State machine: OPEN -> DRAINING (terminal event
// observed) -> CLOSED (all children have received QueueClosedEvent), or
// OPEN/DRAINING -> CLOSED directly via immediate Close.
type MainQueue struct {
	taskID     a2a.TaskID
	bus        *MainEventBus
	bufferSize int

	mu        sync.Mutex
	state     mainState
	finalized bool
	taps      map[int]*EventQueue
	nextTapID int
	lastDepth int64
}

func newMainQueue(taskID a2a.TaskID, bus *MainEventBus, bufferSize int) *MainQueue {
	return &MainQueue{
		taskID:     taskID,
		bus:        bus,
		bufferSize: bufferSize,
		taps:       make(map[int]*EventQueue),
	}
}

// Write submits event for dispatch. It is the Queue implementation an
// AgentExecutor writes to.
func (q *MainQueue) Write(ctx context.Context, event a2a.Event) error {
	q.mu.Lock()
	closed := q.state == stateClosed
	q.mu.Unlock()
	if closed {
		return a2a.InvalidRequestError("main queue for task " + string(q.taskID) + " is closed")
	}
	return q.bus.dispatch(ctx, q, event)
}

// Tap opens a new subscriber view on this main queue, or returns nil if
// the main has already closed.
func (q *MainQueue) Tap() *EventQueue {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state == stateClosed {
		return nil
	}
	tap := newEventQueue(q.bufferSize)
	id := q.nextTapID
	q.nextTapID++
	tap.parent = q
	tap.id = id
	q.taps[id] = tap
	return tap
}

func (q *MainQueue) removeTap(id int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.taps, id)
}

// depthDelta reports the change in total buffered events across all live
// child taps since the last call, updating the bookkeeping baseline used
// to report the queue-depth UpDownCounter as a running total rather than
// a raw per-call sample.
func (q *MainQueue) depthDelta() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	var total int64
	for _, t := range q.taps {
		total += int64(len(t.buf))
	}
	delta := total - q.lastDepth
	q.lastDepth = total
	return delta
}

func (q *MainQueue) snapshotTaps() []*EventQueue {
	q.mu.Lock()
	defer q.mu.Unlock()
	taps := make([]*EventQueue, 0, len(q.taps))
	for _, t := range q.taps {
		taps = append(taps, t)
	}
	return taps
}

// fanOut pushes event to every currently-tapped child queue, in
// registration order irrelevant (fan-out is unordered across
// subscribers; FIFO is per-subscriber). Blocks under backpressure.
func (q *MainQueue) fanOut(ctx context.Context, event a2a.Event) error {
	for _, tap := range q.snapshotTaps() {
		if err := tap.push(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// observeFinal reports whether this call is the first to observe the task
// as final, transitioning OPEN/DRAINING state. Idempotent per-main
// `finalized` flag per §4.4.
func (q *MainQueue) observeFinal() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.finalized {
		return false
	}
	q.finalized = true
	if q.state == stateOpen {
		q.state = stateDraining
	}
	return true
}

// closeDrained completes every tap after the QueueClosedEvent has been
// fanned out, and marks the main CLOSED.
func (q *MainQueue) closeDrained() {
	q.mu.Lock()
	q.state = stateClosed
	taps := make([]*EventQueue, 0, len(q.taps))
	for _, t := range q.taps {
		taps = append(taps, t)
	}
	q.mu.Unlock()
	for _, t := range taps {
		t.complete()
	}
}

// Close implements QueueManager's close(taskId, immediate): immediate
// drops pending events for all children; non-immediate drains them by
// enqueuing a QueueClosedEvent through the normal path first.
func (q *MainQueue) Close(ctx context.Context, immediate bool) {
	if immediate {
		q.mu.Lock()
		q.state = stateClosed
		taps := make([]*EventQueue, 0, len(q.taps))
		for _, t := range q.taps {
			taps = append(taps, t)
		}
		q.mu.Unlock()
		for _, t := range taps {
			t.dropAndComplete()
		}
		return
	}
	if q.observeFinal() {
		q.bus.publishClosed(ctx, q)
	}
}

// IsClosed reports whether this main has fully closed.
func (q *MainQueue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state == stateClosed
}

var _ Queue = (*MainQueue)(nil)
