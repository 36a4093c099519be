package queue

import (
	"testing"
	"time"

	"github.com/hibiken/asynq"
)

func TestRecalculateProgressTaskRoundTrip(t *testing.T) {
	payload := RecalculateProgressPayload{
		StudentID:   "student-1",
		SubjectID:   "subject-1",
		Reason:      ReasonGrade,
		RequestedAt: time.Now().UTC(),
	}

	task, err := NewRecalculateProgressTask(payload)
	if err != nil {
		t.Fatalf("NewRecalculateProgressTask returned error: %v", err)
	}
	if task.Type() != TypeRecalculateProgress {
		t.Fatalf("expected type %q, got %q", TypeRecalculateProgress, task.Type())
	}

	parsed, err := ParseRecalculateProgressPayload(task)
	if err != nil {
		t.Fatalf("ParseRecalculateProgressPayload returned error: %v", err)
	}
	if parsed.StudentID != payload.StudentID || parsed.SubjectID != payload.SubjectID {
		t.Fatalf("unexpected payload %+v", parsed)
	}
	if parsed.Reason != ReasonGrade {
		t.Fatalf("expected reason %q, got %q", ReasonGrade, parsed.Reason)
	}
}

func TestRecalculateProgressTaskRequiresIDs(t *testing.T) {
	if _, err := NewRecalculateProgressTask(RecalculateProgressPayload{StudentID: "s"}); err == nil {
		t.Fatal("expected error for missing subject_id")
	}
	if _, err := ParseRecalculateProgressPayload(asynq.NewTask(TypeRecalculateProgress, []byte(`{"student_id":"s"}`))); err == nil {
		t.Fatal("expected error for payload without subject_id")
	}
	if _, err := ParseRecalculateProgressPayload(asynq.NewTask(TypeRecalculateProgress, []byte(`{`))); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
