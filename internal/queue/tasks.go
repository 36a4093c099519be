package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
)

const TypeRecalculateProgress = "progress:recalculate"

// Reasons recorded on a recalculation request.
const (
	ReasonSubmission   = "submission"
	ReasonGrade        = "grade"
	ReasonMaterialView = "material_view"
)

type RecalculateProgressPayload struct {
	StudentID   string    `json:"student_id"`
	SubjectID   string    `json:"subject_id"`
	Reason      string    `json:"reason,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

func NewRecalculateProgressTask(payload RecalculateProgressPayload) (*asynq.Task, error) {
	if strings.TrimSpace(payload.StudentID) == "" || strings.TrimSpace(payload.SubjectID) == "" {
		return nil, fmt.Errorf("student_id and subject_id are required")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal progress payload: %w", err)
	}
	return asynq.NewTask(TypeRecalculateProgress, body), nil
}

func ParseRecalculateProgressPayload(task *asynq.Task) (RecalculateProgressPayload, error) {
	var payload RecalculateProgressPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return RecalculateProgressPayload{}, fmt.Errorf("unmarshal progress payload: %w", err)
	}
	if payload.StudentID == "" || payload.SubjectID == "" {
		return RecalculateProgressPayload{}, fmt.Errorf("progress payload is missing student_id or subject_id")
	}
	return payload, nil
}
