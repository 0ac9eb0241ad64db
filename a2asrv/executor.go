// Package a2asrv is the A2A server core: the task-state processor, the
// request handler that orchestrates agent execution, the task manager
// binding a request to its task, and the executor-wrapper decorator chain.
// The event queue system lives in the eventqueue subpackage; persistence in
// taskstore; push delivery in push; cross-node replication in replication.
package a2asrv

import (
	"context"

	"github.com/a2aserver/a2acore/a2a"
	"github.com/a2aserver/a2acore/a2asrv/eventqueue"
)

// AgentExecutor is the business-logic contract this core drives. It never
// persists anything; it only writes events to the queue it is given.
type AgentExecutor interface {
	// Execute runs the agent for reqCtx's message, writing events to queue
	// until the task reaches a terminal condition or ctx is canceled.
	Execute(ctx context.Context, reqCtx *RequestContext, queue eventqueue.Queue) error

	// Cancel requests cancellation of an in-flight execution for reqCtx's
	// task. Implementations are expected to eventually write a final
	// CANCELED status update to queue.
	Cancel(ctx context.Context, reqCtx *RequestContext, queue eventqueue.Queue) error
}

// RequestContext carries everything a single onMessageSend/onMessageSendStream
// invocation needs: the inbound message, resolved task/context ids, and the
// call context (user, tenant, headers, requested extensions).
type RequestContext struct {
	context.Context

	Message   *a2a.Message
	TaskID    a2a.TaskID
	ContextID a2a.ContextID
	Call      *ServerCallContext
}

// NewRequestContext constructs a RequestContext, generating a TaskID and
// ContextID if the message didn't supply them.
func NewRequestContext(ctx context.Context, msg *a2a.Message, call *ServerCallContext) *RequestContext {
	taskID := msg.TaskID
	if taskID == "" {
		taskID = a2a.NewTaskID()
	}
	contextID := msg.ContextID
	if contextID == "" {
		contextID = a2a.NewContextID()
	}
	return &RequestContext{
		Context:   ctx,
		Message:   msg,
		TaskID:    taskID,
		ContextID: contextID,
		Call:      call,
	}
}

// NewTaskRequestContext constructs a RequestContext for operations bound
// to an existing task that carry no inbound message (cancel, subscribe).
func NewTaskRequestContext(ctx context.Context, taskID a2a.TaskID, contextID a2a.ContextID, call *ServerCallContext) *RequestContext {
	return &RequestContext{
		Context:   ctx,
		TaskID:    taskID,
		ContextID: contextID,
		Call:      call,
	}
}

func (c *RequestContext) GetTaskID() a2a.TaskID       { return c.TaskID }
func (c *RequestContext) GetContextID() a2a.ContextID { return c.ContextID }

// WithContext returns a copy of c using ctx as its context.Context.
func (c *RequestContext) WithContext(ctx context.Context) *RequestContext {
	cp := *c
	cp.Context = ctx
	return &cp
}

var _ a2a.TaskInfoProvider = (*RequestContext)(nil)

// ServerCallContext is the per-request struct transports populate before
// invoking RequestHandler: user, tenant, requested headers/extensions, and
// the negotiated protocol version (§6).
type ServerCallContext struct {
	User                string
	Tenant              string
	ProtocolVersion     string
	RequestedExtensions []string
	Headers             map[string]string

	// Canceled is closed by the transport when the client disconnects, so
	// blocking consumers (§5 cancellation) can stop early.
	Canceled <-chan struct{}
}

// ExtensionRequested reports whether uri is among the extensions the
// caller requested via X-A2A-Extensions.
func (c *ServerCallContext) ExtensionRequested(uri string) bool {
	if c == nil {
		return false
	}
	for _, e := range c.RequestedExtensions {
		if e == uri {
			return true
		}
	}
	return false
}
