package a2a

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewMessageRejectsEmptyParts(t *testing.T) {
	_, err := NewMessage(RoleUser)
	if err == nil {
		t.Fatal("expected error for empty parts")
	}
	if !hasCode(err, CodeInvalidParams) {
		t.Fatalf("expected invalid-params error, got %v", err)
	}
}

func TestMessageCloneIsDefensive(t *testing.T) {
	part := NewTextPart("hello", map[string]any{"k": "v"})
	msg, err := NewMessage(RoleUser, part)
	if err != nil {
		t.Fatal(err)
	}
	clone := msg.Clone()
	clone.Parts[0] = NewTextPart("mutated", nil)
	if msg.Parts[0].(TextPart).Text != "hello" {
		t.Fatalf("original message mutated through clone: %v", msg.Parts[0])
	}
}

func TestArtifactAppendCorrectness(t *testing.T) {
	p1 := NewTextPart("P1", nil)
	p2 := NewTextPart("P2", nil)
	art, err := NewArtifact(p1)
	if err != nil {
		t.Fatal(err)
	}
	appended := art.appendParts([]Part{p2})
	if len(appended.Parts) != 2 {
		t.Fatalf("expected 2 parts after append, got %d", len(appended.Parts))
	}
	if diff := cmp.Diff([]Part{p1, p2}, appended.Parts); diff != "" {
		t.Fatalf("append mismatch (-want +got):\n%s", diff)
	}
	if len(art.Parts) != 1 {
		t.Fatalf("original artifact mutated by append, has %d parts", len(art.Parts))
	}

	q := NewTextPart("Q", nil)
	replaced := Artifact{ArtifactID: art.ArtifactID, Parts: []Part{q}}
	if len(replaced.Parts) != 1 || replaced.Parts[0].(TextPart).Text != "Q" {
		t.Fatalf("replace did not yield exactly [Q]: %v", replaced.Parts)
	}
}

func TestTaskStateIsFinal(t *testing.T) {
	final := []TaskState{TaskStateCompleted, TaskStateCanceled, TaskStateFailed, TaskStateRejected, TaskStateUnknown}
	for _, s := range final {
		if !s.IsFinal() {
			t.Errorf("%s should be final", s)
		}
	}
	transitional := []TaskState{TaskStateSubmitted, TaskStateWorking, TaskStateInputRequired, TaskStateAuthRequired}
	for _, s := range transitional {
		if s.IsFinal() {
			t.Errorf("%s should not be final", s)
		}
	}
}

func TestNewTaskStatusFillsTimestamp(t *testing.T) {
	status := NewTaskStatus(TaskStateWorking, nil)
	if status.Timestamp.IsZero() {
		t.Fatal("expected timestamp to be filled")
	}
	if status.Timestamp.Location() != nil && status.Timestamp.UTC() != status.Timestamp {
		t.Fatalf("expected UTC timestamp, got %v", status.Timestamp)
	}
}

func TestTaskCloneIsDefensive(t *testing.T) {
	task := NewTask(NewTaskID(), NewContextID(), nil)
	art, _ := NewArtifact(NewTextPart("x", nil))
	task.Artifacts = append(task.Artifacts, art)

	clone := task.Clone()
	clone.Artifacts[0].Parts[0] = NewTextPart("mutated", nil)

	if task.Artifacts[0].Parts[0].(TextPart).Text != "x" {
		t.Fatalf("original task mutated through clone")
	}
}

func TestIsTaskNotFound(t *testing.T) {
	err := TaskNotFoundError(TaskID("t-1"))
	if !IsTaskNotFound(err) {
		t.Fatal("expected IsTaskNotFound true")
	}
	if IsTaskNotCancelable(err) {
		t.Fatal("expected IsTaskNotCancelable false")
	}
}
