package main

import (
	"context"
	"fmt"
	"time"

	"github.com/a2aserver/a2acore/a2a"
	"github.com/a2aserver/a2acore/a2asrv"
	"github.com/a2aserver/a2acore/a2asrv/eventqueue"
)

// echoExecutor is the example agent this harness drives (C11): it emits
// WORKING, then echoes the inbound message's text back as a single
// artifact, then COMPLETED. It exists to exercise the full request/event
// lifecycle end to end, not to demonstrate agent-authoring patterns —
// real agents are supplied by the embedding application.
type echoExecutor struct{}

func (echoExecutor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	working := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateWorking, nil)
	if err := queue.Write(ctx, working); err != nil {
		return err
	}

	text := extractText(reqCtx.Message)
	part := a2a.NewTextPart(fmt.Sprintf("echo: %s", text), nil)
	artifact, err := a2a.NewArtifact(part)
	if err != nil {
		return err
	}
	artifactEvent := &a2a.TaskArtifactUpdateEvent{
		TaskID:    reqCtx.TaskID,
		ContextID: reqCtx.ContextID,
		Artifact:  artifact,
		LastChunk: true,
	}
	if err := queue.Write(ctx, artifactEvent); err != nil {
		return err
	}

	// A small delay so streaming demos can observe WORKING before
	// COMPLETED rather than collapsing both into one read.
	select {
	case <-time.After(50 * time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}

	completed := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCompleted, nil)
	return queue.Write(ctx, completed)
}

func (echoExecutor) Cancel(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	canceled := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCanceled, nil)
	return queue.Write(ctx, canceled)
}

func extractText(msg *a2a.Message) string {
	if msg == nil {
		return ""
	}
	for _, p := range msg.Parts {
		if tp, ok := p.(a2a.TextPart); ok {
			return tp.Text
		}
	}
	return ""
}

var _ a2asrv.AgentExecutor = echoExecutor{}
