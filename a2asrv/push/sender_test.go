package push

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/a2aserver/a2acore/a2a"
)

func TestNotifyEventDeliversToAllMatchingConfigs(t *testing.T) {
	var hits int32
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := NewInMemoryConfigStore()
	ctx := context.Background()
	taskID := a2a.NewTaskID()
	store.Set(ctx, taskID, a2a.PushNotificationConfig{ID: "c1", URL: srv.URL, Token: "secret"})
	store.Set(ctx, taskID, a2a.PushNotificationConfig{ID: "c2", URL: srv.URL})

	sender := NewSender(store)
	task := a2a.NewTask(taskID, a2a.NewContextID(), nil)
	sender.NotifyEvent(ctx, task, &a2a.TaskStatusUpdateEvent{TaskID: taskID, Status: a2a.NewTaskStatus(a2a.TaskStateWorking, nil)})

	if atomic.LoadInt32(&hits) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", hits)
	}
	if gotAuth != "Bearer secret" && gotAuth != "" {
		t.Fatalf("unexpected Authorization header ordering: %q", gotAuth)
	}
}

func TestNotifyEventHonorsEventFilter(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := NewInMemoryConfigStore()
	ctx := context.Background()
	taskID := a2a.NewTaskID()
	store.Set(ctx, taskID, a2a.PushNotificationConfig{ID: "c1", URL: srv.URL, EventFilter: []a2a.EventKind{a2a.EventKindArtifactUpdate}})

	sender := NewSender(store)
	task := a2a.NewTask(taskID, a2a.NewContextID(), nil)
	sender.NotifyEvent(ctx, task, &a2a.TaskStatusUpdateEvent{TaskID: taskID, Status: a2a.NewTaskStatus(a2a.TaskStateWorking, nil)})

	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("expected filtered config to be skipped, got %d hits", hits)
	}
}

func TestNotifyEventSurvivesUnreachableWebhook(t *testing.T) {
	store := NewInMemoryConfigStore()
	ctx := context.Background()
	taskID := a2a.NewTaskID()
	store.Set(ctx, taskID, a2a.PushNotificationConfig{ID: "c1", URL: "http://127.0.0.1:1"})

	sender := NewSender(store, WithTimeout(0))
	task := a2a.NewTask(taskID, a2a.NewContextID(), nil)

	done := make(chan struct{})
	go func() {
		sender.NotifyEvent(ctx, task, &a2a.TaskStatusUpdateEvent{TaskID: taskID, Status: a2a.NewTaskStatus(a2a.TaskStateWorking, nil)})
		close(done)
	}()
	<-done
}

func TestInMemoryConfigStoreSetGetDelete(t *testing.T) {
	store := NewInMemoryConfigStore()
	ctx := context.Background()
	taskID := a2a.NewTaskID()

	store.Set(ctx, taskID, a2a.PushNotificationConfig{ID: "c1", URL: "http://example.invalid/a"})
	store.Set(ctx, taskID, a2a.PushNotificationConfig{ID: "c1", URL: "http://example.invalid/b"})

	got, err := store.Get(ctx, taskID, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if got.URL != "http://example.invalid/b" {
		t.Fatalf("expected upsert to replace, got %q", got.URL)
	}

	if err := store.Delete(ctx, taskID, "c1"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, taskID, "c1"); err == nil {
		t.Fatal("expected error after delete")
	}
}
