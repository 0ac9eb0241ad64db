// Package eventqueue is the event-queue system (C4): a main queue per
// task owned by its executor, fanning out to N per-subscriber child
// queues ("taps") with bounded backpressure buffers and poison-pill
// closure semantics.
package eventqueue

import (
	"context"
	"sync"

	"github.com/a2aserver/a2acore/a2a"
)

// DefaultBufferSize is the default bound on a child queue's buffer.
const DefaultBufferSize = 1024

// Queue is the single-producer write side an AgentExecutor is handed.
// Implementations must not drop events; Write blocks under backpressure
// rather than losing an event.
type Queue interface {
	Write(ctx context.Context, event a2a.Event) error
}

// EventQueue is a subscriber's read-only tap on a main queue: a bounded
// FIFO with a blocking producer and a context-cancelable consumer.
// The zero value is not usable; construct via MainQueue.Tap.
type EventQueue struct {
	buf       chan a2a.Event
	unsub     chan struct{}
	closeBuf  sync.Once
	unsubOnce sync.Once

	// parent/id let Unsubscribe remove this tap from its main queue's
	// child-registry in a single indexed operation, per the "subscribers
	// as registry indices" design note.
	parent *MainQueue
	id     int
}

func newEventQueue(bufferSize int) *EventQueue {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &EventQueue{
		buf:   make(chan a2a.Event, bufferSize),
		unsub: make(chan struct{}),
	}
}

// Read blocks until an event is available, the tap completes (ok=false,
// err=nil), or ctx is canceled.
func (q *EventQueue) Read(ctx context.Context) (event a2a.Event, ok bool, err error) {
	select {
	case e, open := <-q.buf:
		if !open {
			return nil, false, nil
		}
		return e, true, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// push enqueues an event for this tap, blocking under backpressure until
// ctx is done or the subscriber unsubscribes. Called only by the main
// bus's single dispatcher goroutine for this task.
func (q *EventQueue) push(ctx context.Context, event a2a.Event) error {
	select {
	case q.buf <- event:
		return nil
	case <-q.unsub:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// complete closes the buffer so a pending or future Read observes
// completion once already-buffered events are drained. Idempotent.
func (q *EventQueue) complete() {
	q.closeBuf.Do(func() { close(q.buf) })
}

// dropAndComplete discards buffered events and completes the tap
// immediately (close(taskId, immediate=true)). Idempotent; safe to call
// only from the single dispatcher goroutine owning this tap.
func (q *EventQueue) dropAndComplete() {
	q.closeBuf.Do(func() {
		for {
			select {
			case <-q.buf:
			default:
				close(q.buf)
				return
			}
		}
	})
}

// Unsubscribe releases this tap without affecting the main queue or other
// subscribers (cancellation liveness, §8): any producer currently blocked
// pushing to this tap returns immediately.
func (q *EventQueue) Unsubscribe() {
	q.unsubOnce.Do(func() { close(q.unsub) })
	if q.parent != nil {
		q.parent.removeTap(q.id)
	}
}
