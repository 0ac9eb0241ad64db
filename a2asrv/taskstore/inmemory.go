package taskstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/a2aserver/a2acore/a2a"
)

// InMemoryStore is the mandatory reference TaskStore: a concurrent map,
// defensively copied on every read, with keyset pagination over a sorted
// snapshot located by binary search.
type InMemoryStore struct {
	mu    sync.RWMutex
	tasks map[a2a.TaskID]*a2a.Task
}

// NewInMemoryStore returns an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{tasks: make(map[a2a.TaskID]*a2a.Task)}
}

func (s *InMemoryStore) Save(ctx context.Context, task *a2a.Task, isReplicated bool) error {
	if task == nil {
		return a2a.InvalidParamsError("task must not be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task.Clone()
	return nil
}

func (s *InMemoryStore) Get(ctx context.Context, taskID a2a.TaskID) (*a2a.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return nil, a2a.TaskNotFoundError(taskID)
	}
	return task.Clone(), nil
}

func (s *InMemoryStore) Delete(ctx context.Context, taskID a2a.TaskID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, taskID)
	return nil
}

func (s *InMemoryStore) IsTaskActive(ctx context.Context, taskID a2a.TaskID) (bool, error) {
	task, err := s.Get(ctx, taskID)
	if a2a.IsTaskNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !task.Status.State.IsFinal(), nil
}

func (s *InMemoryStore) IsTaskFinalized(ctx context.Context, taskID a2a.TaskID) (bool, error) {
	task, err := s.Get(ctx, taskID)
	if a2a.IsTaskNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return task.Status.State.IsFinal(), nil
}

// List implements the §4.3 listing contract: filter, order by
// (status.timestamp desc, id asc), then paginate from an opaque keyset
// token located by binary search over a sorted snapshot.
func (s *InMemoryStore) List(ctx context.Context, params ListParams) (ListResult, error) {
	s.mu.RLock()
	snapshot := make([]*a2a.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if matchesFilter(t, params) {
			snapshot = append(snapshot, t)
		}
	}
	s.mu.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool {
		ti, tj := snapshot[i], snapshot[j]
		mi, mj := ti.Status.Timestamp.UnixMilli(), tj.Status.Timestamp.UnixMilli()
		if mi != mj {
			return mi > mj
		}
		return ti.ID < tj.ID
	})

	start := 0
	if params.PageToken != "" {
		tok, err := decodePageToken(params.PageToken)
		if err != nil {
			return ListResult{}, a2a.InvalidParamsError(fmt.Sprintf("invalid page token: %v", err))
		}
		start = sort.Search(len(snapshot), func(i int) bool {
			t := snapshot[i]
			return tok.after(t.Status.Timestamp.UnixMilli(), t.ID)
		})
	}

	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = len(snapshot) - start
	}
	end := start + pageSize
	if end > len(snapshot) {
		end = len(snapshot)
	}
	if start > len(snapshot) {
		start = len(snapshot)
	}

	page := snapshot[start:end]
	result := ListResult{
		Tasks:      make([]*a2a.Task, len(page)),
		TotalCount: len(snapshot),
	}
	for i, t := range page {
		result.Tasks[i] = applyProjection(t, params)
	}
	if end < len(snapshot) {
		last := snapshot[end-1]
		result.NextPageToken = encodePageToken(last.Status.Timestamp.UnixMilli(), last.ID)
	}
	return result, nil
}

var (
	_ TaskStore         = (*InMemoryStore)(nil)
	_ TaskStateProvider = (*InMemoryStore)(nil)
)
