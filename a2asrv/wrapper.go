package a2asrv

import (
	"context"
	"time"

	"github.com/a2aserver/a2acore/a2a"
	"github.com/a2aserver/a2acore/a2asrv/eventqueue"
)

// EventTransform rewrites an outbound event before it reaches the main
// queue. Returning nil drops the event.
type EventTransform func(ctx context.Context, event a2a.Event) a2a.Event

// transformingQueue decorates an eventqueue.Queue, applying transform to
// every event written through it (C8).
type transformingQueue struct {
	inner     eventqueue.Queue
	transform EventTransform
}

func (q *transformingQueue) Write(ctx context.Context, event a2a.Event) error {
	rewritten := q.transform(ctx, event)
	if rewritten == nil {
		return nil
	}
	return q.inner.Write(ctx, rewritten)
}

var _ eventqueue.Queue = (*transformingQueue)(nil)

// ExecutorWrapper decorates an AgentExecutor, substituting a queue that
// transforms the events Execute/Cancel write before they reach the inner
// queue. A wrapper
// only activates for a given request when its extension URI is requested
// (or pre-activated) in the call's ServerCallContext — Activates decides
// this per request.
type ExecutorWrapper struct {
	next         AgentExecutor
	extensionURI string
	alwaysOn     bool
	transform    EventTransform
}

// NewExecutorWrapper wraps next, applying transform to every event
// written to the queue whenever extensionURI is requested. An empty
// extensionURI means the wrapper always activates.
func NewExecutorWrapper(next AgentExecutor, extensionURI string, transform EventTransform) *ExecutorWrapper {
	return &ExecutorWrapper{
		next:         next,
		extensionURI: extensionURI,
		alwaysOn:     extensionURI == "",
		transform:    transform,
	}
}

// Activates reports whether this wrapper applies to call.
func (w *ExecutorWrapper) Activates(call *ServerCallContext) bool {
	return w.alwaysOn || call.ExtensionRequested(w.extensionURI)
}

// Execute implements AgentExecutor, substituting a transformingQueue when
// this wrapper activates for reqCtx.Call.
func (w *ExecutorWrapper) Execute(ctx context.Context, reqCtx *RequestContext, queue eventqueue.Queue) error {
	if !w.Activates(reqCtx.Call) {
		return w.next.Execute(ctx, reqCtx, queue)
	}
	return w.next.Execute(ctx, reqCtx, &transformingQueue{inner: queue, transform: w.transform})
}

// Cancel implements AgentExecutor, applying the same substitution as Execute.
func (w *ExecutorWrapper) Cancel(ctx context.Context, reqCtx *RequestContext, queue eventqueue.Queue) error {
	if !w.Activates(reqCtx.Call) {
		return w.next.Cancel(ctx, reqCtx, queue)
	}
	return w.next.Cancel(ctx, reqCtx, &transformingQueue{inner: queue, transform: w.transform})
}

var _ AgentExecutor = (*ExecutorWrapper)(nil)

// StampTimestampTransform stamps a UTC timestamp into an event's metadata
// under key if not already present, leaving the event otherwise
// untouched. Events with no metadata-bearing shape pass through
// unchanged.
func StampTimestampTransform(key string) EventTransform {
	return func(ctx context.Context, event a2a.Event) a2a.Event {
		switch e := event.(type) {
		case *a2a.TaskStatusUpdateEvent:
			if _, ok := e.Metadata[key]; ok {
				return e
			}
			cp := *e
			cp.Metadata = a2a.MergeMetadata(e.Metadata, map[string]any{key: time.Now().UTC().Format(time.RFC3339Nano)})
			return &cp
		case *a2a.TaskArtifactUpdateEvent:
			if _, ok := e.Metadata[key]; ok {
				return e
			}
			cp := *e
			cp.Metadata = a2a.MergeMetadata(e.Metadata, map[string]any{key: time.Now().UTC().Format(time.RFC3339Nano)})
			return &cp
		default:
			return event
		}
	}
}

// AppendExtensionURITransform appends uri to an event's metadata under
// the "extensions" key if not already present, so downstream consumers
// can tell which negotiated extensions touched this event.
func AppendExtensionURITransform(uri string) EventTransform {
	return func(ctx context.Context, event a2a.Event) a2a.Event {
		switch e := event.(type) {
		case *a2a.TaskStatusUpdateEvent:
			cp := *e
			cp.Metadata = appendExtension(e.Metadata, uri)
			return &cp
		case *a2a.TaskArtifactUpdateEvent:
			cp := *e
			cp.Metadata = appendExtension(e.Metadata, uri)
			return &cp
		default:
			return event
		}
	}
}

func appendExtension(metadata map[string]any, uri string) map[string]any {
	const key = "extensions"
	existing, _ := metadata[key].([]string)
	for _, u := range existing {
		if u == uri {
			return metadata
		}
	}
	merged := make([]string, len(existing), len(existing)+1)
	copy(merged, existing)
	merged = append(merged, uri)
	out := a2a.MergeMetadata(metadata, map[string]any{key: merged})
	return out
}
