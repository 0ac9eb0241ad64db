package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/a2aserver/a2acore/a2a"
	"github.com/a2aserver/a2acore/a2asrv/taskstore"
)

func TestStoreSaveGetRoundTrip(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	msg, _ := a2a.NewMessage(a2a.RoleUser, a2a.NewTextPart("hello", nil))
	task := a2a.NewTask(a2a.NewTaskID(), a2a.NewContextID(), msg)
	task.Status = a2a.TaskStatus{State: a2a.TaskStateWorking, Timestamp: time.Now().UTC().Truncate(time.Millisecond)}
	art, _ := a2a.NewArtifact(a2a.NewTextPart("result", nil))
	task.Artifacts = append(task.Artifacts, art)

	if err := store.Save(ctx, task, false); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status.State != a2a.TaskStateWorking {
		t.Fatalf("expected WORKING, got %s", got.Status.State)
	}
	if len(got.History) != 1 || len(got.Artifacts) != 1 {
		t.Fatalf("expected round-tripped history/artifacts, got %+v", got)
	}
	if got.Artifacts[0].Parts[0].(a2a.TextPart).Text != "result" {
		t.Fatalf("expected artifact text preserved, got %+v", got.Artifacts[0])
	}
}

func TestStoreGetMissingReturnsTaskNotFound(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	_, err = store.Get(context.Background(), a2a.TaskID("missing"))
	if !a2a.IsTaskNotFound(err) {
		t.Fatalf("expected TaskNotFoundError, got %v", err)
	}
}

func TestStoreListPagination(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	for i, id := range []string{"i1", "i2", "i3"} {
		task := a2a.NewTask(a2a.TaskID(id), a2a.NewContextID(), nil)
		task.Status = a2a.TaskStatus{State: a2a.TaskStateWorking, Timestamp: base.Add(-time.Duration(i) * time.Second)}
		if err := store.Save(ctx, task, false); err != nil {
			t.Fatal(err)
		}
	}

	var seen []a2a.TaskID
	token := ""
	for {
		res, err := store.List(ctx, taskstore.ListParams{PageSize: 2, PageToken: token})
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

	want := []a2a.TaskID{"i1", "i2", "i3"}
	if len(seen) != len(want) {
		t.Fatalf("expected %d tasks, got %d: %v", len(want), len(seen), seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("position %d: expected %v got %v", i, want[i], seen[i])
		}
	}
}
