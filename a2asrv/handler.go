package a2asrv

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/a2aserver/a2acore/a2a"
	"github.com/a2aserver/a2acore/a2asrv/eventqueue"
	"github.com/a2aserver/a2acore/a2asrv/push"
	"github.com/a2aserver/a2acore/a2asrv/taskstore"
	"github.com/a2aserver/a2acore/internal/telemetry"
)

// Default timeouts (§5).
const (
	DefaultAgentTimeout   = 60 * time.Second
	DefaultConsumeTimeout = 30 * time.Second
	DefaultCancelTimeout  = 30 * time.Second
)

// ResubscribeFallback controls OnSubscribeToTask's behavior when a task is
// finalized and its main queue has already closed (SPEC_FULL.md §12).
type ResubscribeFallback int

const (
	// ResubscribeTaskNotFound returns a TaskNotFound error (no history
	// replay is contracted by §4.5).
	ResubscribeTaskNotFound ResubscribeFallback = iota
	// ResubscribeReplayFromStore fabricates a synthetic Task snapshot
	// event from the durable store, followed by QueueClosedEvent.
	ResubscribeReplayFromStore
)

// RequestHandler is the entry point exposed to transports (C5). Every
// operation takes a *ServerCallContext carrying user/tenant/headers/
// requested extensions, per §4.5.
type RequestHandler struct {
	processor *TaskStateProcessor
	store     taskstore.TaskStateProvider
	queues    *eventqueue.QueueManager
	executor  AgentExecutor
	pushCfgs  push.CRUDStore
	agentCard a2a.AgentCard

	agentTimeout        time.Duration
	consumeTimeout      time.Duration
	cancelTimeout       time.Duration
	resubscribeFallback ResubscribeFallback

	locks taskLockRegistry
}

// HandlerOption customizes a RequestHandler.
type HandlerOption func(*RequestHandler)

func WithAgentTimeout(d time.Duration) HandlerOption   { return func(h *RequestHandler) { h.agentTimeout = d } }
func WithConsumeTimeout(d time.Duration) HandlerOption { return func(h *RequestHandler) { h.consumeTimeout = d } }
func WithCancelTimeout(d time.Duration) HandlerOption  { return func(h *RequestHandler) { h.cancelTimeout = d } }
func WithResubscribeFallback(f ResubscribeFallback) HandlerOption {
	return func(h *RequestHandler) { h.resubscribeFallback = f }
}
func WithPushConfigStore(store push.CRUDStore) HandlerOption {
	return func(h *RequestHandler) { h.pushCfgs = store }
}
func WithAgentCard(card a2a.AgentCard) HandlerOption {
	return func(h *RequestHandler) { h.agentCard = card }
}

// NewRequestHandler constructs a handler wired to the shared processor,
// durable store, queue manager, and the agent executor it drives.
func NewRequestHandler(processor *TaskStateProcessor, store taskstore.TaskStateProvider, queues *eventqueue.QueueManager, executor AgentExecutor, opts ...HandlerOption) *RequestHandler {
	h := &RequestHandler{
		processor:      processor,
		store:          store,
		queues:         queues,
		executor:       executor,
		agentTimeout:   DefaultAgentTimeout,
		consumeTimeout: DefaultConsumeTimeout,
		cancelTimeout:  DefaultCancelTimeout,
		locks:          newTaskLockRegistry(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// OnMessageSend looks up or creates the main queue for params' task,
// submits the executor on a background worker, and consumes events until
// a terminal condition (§4.5): final state, AUTH_REQUIRED, INPUT_REQUIRED,
// or a bare Message. On AUTH_REQUIRED/INPUT_REQUIRED the main queue is
// left open and the executor keeps running; only this request's tap is
// released.
func (h *RequestHandler) OnMessageSend(ctx context.Context, call *ServerCallContext, params a2a.MessageSendParams) (a2a.Event, error) {
	reqCtx := NewRequestContext(ctx, params.Message, call)
	mainQueue := h.queues.GetOrCreateMain(reqCtx.TaskID)
	tap := mainQueue.Tap()
	if tap == nil {
		return nil, a2a.InvalidRequestError("task " + string(reqCtx.TaskID) + " queue is already closed")
	}
	defer tap.Unsubscribe()

	h.dispatch(reqCtx, mainQueue)

	mgr := NewTaskManager(h.processor, h.store, reqCtx.TaskID, reqCtx.ContextID, params.Message)
	result, err := h.consumeUntilTerminal(ctx, tap, mgr)
	if task, ok := result.(*a2a.Task); ok && err == nil && params.HistoryLength > 0 && len(task.History) > params.HistoryLength {
		task.History = task.History[len(task.History)-params.HistoryLength:]
	}
	return result, err
}

// OnMessageSendStream mirrors OnMessageSend's submission but returns a
// lazy stream backed by a fresh child tap, completing when
// QueueClosedEvent arrives or the caller stops ranging over it.
func (h *RequestHandler) OnMessageSendStream(ctx context.Context, call *ServerCallContext, params a2a.MessageSendParams) iter.Seq2[a2a.Event, error] {
	reqCtx := NewRequestContext(ctx, params.Message, call)
	mainQueue := h.queues.GetOrCreateMain(reqCtx.TaskID)
	tap := mainQueue.Tap()
	if tap == nil {
		return func(yield func(a2a.Event, error) bool) {
			yield(nil, a2a.InvalidRequestError("task "+string(reqCtx.TaskID)+" queue is already closed"))
		}
	}
	h.dispatch(reqCtx, mainQueue)
	return streamTap(ctx, tap)
}

// OnSubscribeToTask opens a tap on an existing main queue. If the task has
// already finalized and its main queue closed, behavior follows
// ResubscribeFallback.
func (h *RequestHandler) OnSubscribeToTask(ctx context.Context, call *ServerCallContext, params a2a.TaskIDParams) (iter.Seq2[a2a.Event, error], error) {
	if mainQueue := h.queues.Get(params.TaskID); mainQueue != nil {
		if tap := mainQueue.Tap(); tap != nil {
			return streamTap(ctx, tap), nil
		}
	}

	finalized, err := h.store.IsTaskFinalized(ctx, params.TaskID)
	if err != nil {
		return nil, err
	}
	if !finalized {
		return nil, a2a.TaskNotFoundError(params.TaskID)
	}
	if h.resubscribeFallback != ResubscribeReplayFromStore {
		return nil, a2a.TaskNotFoundError(params.TaskID)
	}
	task, err := h.store.Get(ctx, params.TaskID)
	if err != nil {
		return nil, err
	}
	return replaySnapshot(task), nil
}

// OnCancelTask invokes executor.Cancel on the task's main queue and awaits
// a final status with a configurable timeout.
func (h *RequestHandler) OnCancelTask(ctx context.Context, call *ServerCallContext, params a2a.TaskIDParams) (*a2a.Task, error) {
	mainQueue := h.queues.Get(params.TaskID)
	if mainQueue == nil {
		return nil, a2a.TaskNotFoundError(params.TaskID)
	}
	task := h.processor.GetTask(params.TaskID)
	if task == nil {
		var err error
		task, err = h.store.Get(ctx, params.TaskID)
		if err != nil {
			return nil, err
		}
	}
	if task.Status.State.IsFinal() {
		return nil, a2a.TaskNotCancelableError(params.TaskID)
	}

	tap := mainQueue.Tap()
	if tap == nil {
		return nil, a2a.TaskNotCancelableError(params.TaskID)
	}
	defer tap.Unsubscribe()

	timeoutCtx, cancel := context.WithTimeout(ctx, h.cancelTimeout)
	defer cancel()

	reqCtx := NewTaskRequestContext(timeoutCtx, params.TaskID, task.ContextID, call)

	var final *a2a.Task
	g, gctx := errgroup.WithContext(timeoutCtx)
	g.Go(func() error {
		return h.executor.Cancel(gctx, reqCtx, mainQueue)
	})
	g.Go(func() error {
		for {
			event, ok, err := tap.Read(gctx)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			if status, isStatus := event.(*a2a.TaskStatusUpdateEvent); isStatus && status.Status.State.IsFinal() {
				final = h.processor.GetTask(params.TaskID)
				return nil
			}
		}
	})
	if err := g.Wait(); err != nil {
		return nil, a2a.InternalErrorFrom(err, true)
	}
	if final == nil {
		return nil, a2a.InternalErrorFrom(fmt.Errorf("cancel of task %q timed out before a final status was observed", params.TaskID), true)
	}
	return final, nil
}

// OnGetTask delegates to the durable store, truncating history to
// params.HistoryLength if set.
func (h *RequestHandler) OnGetTask(ctx context.Context, params a2a.TaskQueryParams) (*a2a.Task, error) {
	task, err := h.store.Get(ctx, params.TaskID)
	if err != nil {
		return nil, err
	}
	if params.HistoryLength > 0 && len(task.History) > params.HistoryLength {
		task.History = task.History[len(task.History)-params.HistoryLength:]
	}
	return task, nil
}

// OnListTasks delegates to the durable store's filtered/paginated listing.
func (h *RequestHandler) OnListTasks(ctx context.Context, params a2a.ListTasksParams) (taskstore.ListResult, error) {
	return h.store.List(ctx, taskstore.ListParams{
		ContextID:        params.ContextID,
		State:            params.State,
		HistoryLength:    params.HistoryLength,
		IncludeArtifacts: params.IncludeArtifacts,
		PageSize:         params.PageSize,
		PageToken:        params.PageToken,
	})
}

// GetAgentCard returns the public, unauthenticated agent card.
func (h *RequestHandler) GetAgentCard(ctx context.Context) a2a.AgentCard {
	return h.agentCard
}

// SetPushNotificationConfig, GetPushNotificationConfig,
// DeletePushNotificationConfig, and ListPushNotificationConfigs are thin
// delegations to C6's config registry (§4.5). They return
// PushNotificationNotSupportedError when no config store is wired.
func (h *RequestHandler) SetPushNotificationConfig(ctx context.Context, taskID a2a.TaskID, cfg a2a.PushNotificationConfig) error {
	if h.pushCfgs == nil {
		return a2a.PushNotificationNotSupportedError()
	}
	return h.pushCfgs.Set(ctx, taskID, cfg)
}

func (h *RequestHandler) GetPushNotificationConfig(ctx context.Context, taskID a2a.TaskID, configID string) (a2a.PushNotificationConfig, error) {
	if h.pushCfgs == nil {
		return a2a.PushNotificationConfig{}, a2a.PushNotificationNotSupportedError()
	}
	return h.pushCfgs.Get(ctx, taskID, configID)
}

func (h *RequestHandler) DeletePushNotificationConfig(ctx context.Context, taskID a2a.TaskID, configID string) error {
	if h.pushCfgs == nil {
		return a2a.PushNotificationNotSupportedError()
	}
	return h.pushCfgs.Delete(ctx, taskID, configID)
}

func (h *RequestHandler) ListPushNotificationConfigs(ctx context.Context, taskID a2a.TaskID) ([]a2a.PushNotificationConfig, error) {
	if h.pushCfgs == nil {
		return nil, a2a.PushNotificationNotSupportedError()
	}
	return h.pushCfgs.ListConfigs(ctx, taskID)
}

// dispatch submits the executor on a background worker, routed through a
// per-task lock so at most one worker drives a given task's main queue at
// a time (§5 producers-per-task). The worker's context is decoupled from
// the request's so AUTH_REQUIRED/INPUT_REQUIRED returns don't cancel an
// executor still expected to keep running.
func (h *RequestHandler) dispatch(reqCtx *RequestContext, queue eventqueue.Queue) {
	bg := &RequestContext{
		Context:   context.WithoutCancel(reqCtx.Context),
		Message:   reqCtx.Message,
		TaskID:    reqCtx.TaskID,
		ContextID: reqCtx.ContextID,
		Call:      reqCtx.Call,
	}
	go h.runExecutor(bg, queue)
}

func (h *RequestHandler) runExecutor(reqCtx *RequestContext, queue eventqueue.Queue) {
	unlock := h.locks.lock(reqCtx.TaskID)
	defer unlock()

	defer func() {
		if r := recover(); r != nil {
			telemetry.Error(reqCtx.Context, "executor.panic", telemetry.Str("taskId", string(reqCtx.TaskID)), telemetry.Err(fmt.Errorf("%v", r)))
			h.emitFailed(reqCtx)
		}
	}()

	timeoutCtx, cancel := context.WithTimeout(reqCtx.Context, h.agentTimeout)
	defer cancel()

	spanCtx, span := telemetry.StartSpan(timeoutCtx, "executor.execute", trace.SpanKindInternal)
	span.SetAttributes(attribute.String("taskId", string(reqCtx.TaskID)))
	defer span.End()

	if err := h.executor.Execute(spanCtx, reqCtx.WithContext(spanCtx), queue); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		telemetry.Error(reqCtx.Context, "executor.failed", telemetry.Str("taskId", string(reqCtx.TaskID)), telemetry.Err(err))
		h.emitFailed(reqCtx)
	}
}

func (h *RequestHandler) emitFailed(reqCtx *RequestContext) {
	mainQueue := h.queues.Get(reqCtx.TaskID)
	if mainQueue == nil {
		return
	}
	_ = mainQueue.Write(context.Background(), &a2a.TaskStatusUpdateEvent{
		TaskID:    reqCtx.TaskID,
		ContextID: reqCtx.ContextID,
		Status:    a2a.NewTaskStatus(a2a.TaskStateFailed, nil),
		Final:     true,
	})
}

// consumeUntilTerminal reads tap until a terminal condition is observed
// or the queue closes, returning the corresponding result.
func (h *RequestHandler) consumeUntilTerminal(ctx context.Context, tap *eventqueue.EventQueue, mgr *TaskManager) (a2a.Event, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, h.consumeTimeout)
	defer cancel()

	for {
		event, ok, err := tap.Read(timeoutCtx)
		if err != nil {
			return nil, a2a.InternalErrorFrom(err, true)
		}
		if !ok {
			return mgr.GetTask(ctx)
		}
		switch e := event.(type) {
		case *a2a.Message:
			return e, nil
		case *a2a.TaskStatusUpdateEvent:
			if isPausedOrFinal(e.Status.State) {
				return mgr.GetTask(ctx)
			}
		}
	}
}

func isPausedOrFinal(state a2a.TaskState) bool {
	return state == a2a.TaskStateAuthRequired || state == a2a.TaskStateInputRequired || state.IsFinal()
}

// streamTap adapts an eventqueue.EventQueue into a lazy iter.Seq2,
// unsubscribing once the caller stops ranging or the tap completes.
func streamTap(ctx context.Context, tap *eventqueue.EventQueue) iter.Seq2[a2a.Event, error] {
	return func(yield func(a2a.Event, error) bool) {
		defer tap.Unsubscribe()
		for {
			event, ok, err := tap.Read(ctx)
			if err != nil {
				yield(nil, err)
				return
			}
			if !ok {
				return
			}
			if !yield(event, nil) {
				return
			}
		}
	}
}

// replaySnapshot fabricates a single synthetic Task event followed by
// QueueClosedEvent, the ResubscribeReplayFromStore fallback (§12).
func replaySnapshot(task *a2a.Task) iter.Seq2[a2a.Event, error] {
	return func(yield func(a2a.Event, error) bool) {
		if !yield(task, nil) {
			return
		}
		yield(&a2a.QueueClosedEvent{TaskID: task.ID}, nil)
	}
}

// taskLockRegistry serializes executor dispatch per task id, matching
// §5's "routed to stable workers" requirement via mutual exclusion rather
// than a literal hash-routed pool.
type taskLockRegistry struct {
	mu    sync.Mutex
	locks map[a2a.TaskID]*sync.Mutex
}

func newTaskLockRegistry() taskLockRegistry {
	return taskLockRegistry{locks: make(map[a2a.TaskID]*sync.Mutex)}
}

func (r *taskLockRegistry) lock(id a2a.TaskID) func() {
	r.mu.Lock()
	l, ok := r.locks[id]
	if !ok {
		l = &sync.Mutex{}
		r.locks[id] = l
	}
	r.mu.Unlock()
	l.Lock()
	return l.Unlock
}
