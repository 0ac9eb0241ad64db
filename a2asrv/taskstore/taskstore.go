// Package taskstore defines the persistence contract the core uses to
// durably store tasks and answer liveness queries, plus an in-memory
// reference implementation. The gorm/sqlite-backed implementation lives in
// the sqlstore subpackage.
package taskstore

import (
	"context"
	"time"

	"github.com/a2aserver/a2acore/a2a"
)

// TaskStore persists tasks and answers filtered/paginated listing queries.
// The isReplicated flag on Save suppresses re-publication of a
// "finalized" signal that would otherwise loop back through the
// replication bus.
type TaskStore interface {
	Save(ctx context.Context, task *a2a.Task, isReplicated bool) error
	Get(ctx context.Context, taskID a2a.TaskID) (*a2a.Task, error)
	Delete(ctx context.Context, taskID a2a.TaskID) error
	List(ctx context.Context, params ListParams) (ListResult, error)
}

// TaskStateProvider extends TaskStore with the liveness queries C4 uses to
// decide queue closure.
type TaskStateProvider interface {
	TaskStore
	IsTaskActive(ctx context.Context, taskID a2a.TaskID) (bool, error)
	IsTaskFinalized(ctx context.Context, taskID a2a.TaskID) (bool, error)
}

// ListParams filters and paginates a List call.
type ListParams struct {
	ContextID            a2a.ContextID
	State                a2a.TaskState
	StatusTimestampAfter time.Time

	// HistoryLength, when > 0, truncates each returned task's History to
	// its most recent N messages.
	HistoryLength int
	// IncludeArtifacts, when false, strips artifacts from returned tasks.
	IncludeArtifacts bool

	PageSize  int
	PageToken string
}

// ListResult is one page of a List call.
type ListResult struct {
	Tasks         []*a2a.Task
	NextPageToken string
	// TotalCount is the full unfiltered-by-pagination match count; -1 if
	// the backend didn't compute it.
	TotalCount int
}

func applyProjection(task *a2a.Task, params ListParams) *a2a.Task {
	cp := task.Clone()
	if params.HistoryLength > 0 && len(cp.History) > params.HistoryLength {
		cp.History = cp.History[len(cp.History)-params.HistoryLength:]
	}
	if !params.IncludeArtifacts {
		cp.Artifacts = nil
	}
	return cp
}

func matchesFilter(task *a2a.Task, params ListParams) bool {
	if params.ContextID != "" && task.ContextID != params.ContextID {
		return false
	}
	if params.State != "" && task.Status.State != params.State {
		return false
	}
	if !params.StatusTimestampAfter.IsZero() && !task.Status.Timestamp.After(params.StatusTimestampAfter) {
		return false
	}
	return true
}
