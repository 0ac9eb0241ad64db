package taskstore

import (
	"context"
	"testing"
	"time"

	"github.com/a2aserver/a2acore/a2a"
)

func mkTask(t *testing.T, id string, ts time.Time, state a2a.TaskState) *a2a.Task {
	t.Helper()
	task := a2a.NewTask(a2a.TaskID(id), a2a.NewContextID(), nil)
	task.Status = a2a.TaskStatus{State: state, Timestamp: ts}
	return task
}

func TestInMemoryStoreSaveGetDelete(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	task := mkTask(t, "t1", time.Now().UTC(), a2a.TaskStateWorking)

	if err := s.Save(ctx, task, false); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != task.ID {
		t.Fatalf("mismatched id: %v", got.ID)
	}

	if err := s.Delete(ctx, task.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, task.ID); !a2a.IsTaskNotFound(err) {
		t.Fatalf("expected TaskNotFoundError after delete, got %v", err)
	}
}

func TestInMemoryStoreIsTaskActiveFinalized(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	working := mkTask(t, "t1", time.Now().UTC(), a2a.TaskStateWorking)
	done := mkTask(t, "t2", time.Now().UTC(), a2a.TaskStateCompleted)
	s.Save(ctx, working, false)
	s.Save(ctx, done, false)

	if active, _ := s.IsTaskActive(ctx, working.ID); !active {
		t.Fatal("expected working task to be active")
	}
	if finalized, _ := s.IsTaskFinalized(ctx, working.ID); finalized {
		t.Fatal("expected working task to not be finalized")
	}
	if finalized, _ := s.IsTaskFinalized(ctx, done.ID); !finalized {
		t.Fatal("expected completed task to be finalized")
	}

	if active, err := s.IsTaskActive(ctx, a2a.TaskID("missing")); active || err != nil {
		t.Fatalf("expected (false, nil) for missing task, got (%v, %v)", active, err)
	}
}

// TestInMemoryStoreListPaginationClosure implements end-to-end scenario 6:
// five tasks with descending timestamps, pageSize=2, pages concatenate to
// the full sorted set with no duplicates or gaps.
func TestInMemoryStoreListPaginationClosure(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	ids := []string{"i1", "i2", "i3", "i4", "i5"}
	for i, id := range ids {
		ts := base.Add(-time.Duration(i) * time.Second)
		s.Save(ctx, mkTask(t, id, ts, a2a.TaskStateWorking), false)
	}

	var seen []a2a.TaskID
	token := ""
	for {
		res, err := s.List(ctx, ListParams{PageSize: 2, PageToken: token})
		if err != nil {
			t.Fatal(err)
		}
		for _, task := range res.Tasks {
			seen = append(seen, task.ID)
		}
		if res.NextPageToken == "" {
			break
		}
		token = res.NextPageToken
	}

	if len(seen) != len(ids) {
		t.Fatalf("expected %d tasks across pages, got %d: %v", len(ids), len(seen), seen)
	}
	seenSet := make(map[a2a.TaskID]bool)
	for i, id := range seen {
		if seenSet[id] {
			t.Fatalf("duplicate id %v at position %d", id, i)
		}
		seenSet[id] = true
		if string(id) != ids[i] {
			t.Fatalf("expected order %v at position %d, got %v", ids[i], i, id)
		}
	}
}

func TestInMemoryStoreListFiltersByContextAndState(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	base := time.Now().UTC()

	matching := mkTask(t, "m1", base, a2a.TaskStateWorking)
	matching.ContextID = a2a.ContextID("ctx-a")
	other := mkTask(t, "m2", base.Add(-time.Second), a2a.TaskStateCompleted)
	other.ContextID = a2a.ContextID("ctx-b")

	s.Save(ctx, matching, false)
	s.Save(ctx, other, false)

	res, err := s.List(ctx, ListParams{ContextID: "ctx-a"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Tasks) != 1 || res.Tasks[0].ID != matching.ID {
		t.Fatalf("expected only matching task, got %+v", res.Tasks)
	}
}

func TestInMemoryStoreListHistoryProjection(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	task := mkTask(t, "t1", time.Now().UTC(), a2a.TaskStateWorking)
	for i := 0; i < 5; i++ {
		msg, _ := a2a.NewMessage(a2a.RoleUser, a2a.NewTextPart("x", nil))
		task.History = append(task.History, *msg)
	}
	art, _ := a2a.NewArtifact(a2a.NewTextPart("y", nil))
	task.Artifacts = append(task.Artifacts, art)
	s.Save(ctx, task, false)

	res, err := s.List(ctx, ListParams{HistoryLength: 2, IncludeArtifacts: false})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Tasks[0].History) != 2 {
		t.Fatalf("expected history truncated to 2, got %d", len(res.Tasks[0].History))
	}
	if res.Tasks[0].Artifacts != nil {
		t.Fatalf("expected artifacts stripped, got %+v", res.Tasks[0].Artifacts)
	}
}
