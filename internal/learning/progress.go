package learning

import (
	"context"
	"fmt"

	"github.com/dunamismax/smartlearn/internal/domain"
	"github.com/dunamismax/smartlearn/internal/queue"
)

type ProgressUpdate struct {
	Progress      domain.CourseProgress
	JustCompleted bool
}

// Recalculate rebuilds a student's progress in one subject from the stored
// submissions, grades and material views.
func (s *Service) Recalculate(ctx context.Context, studentID, subjectID string) (ProgressUpdate, error) {
	enrollment, ok, err := s.store.GetEnrollment(ctx, studentID, subjectID)
	if err != nil {
		return ProgressUpdate{}, fmt.Errorf("load enrollment: %w", err)
	}
	if !ok {
		return ProgressUpdate{}, notFound("enrollment for student "+studentID+" in subject", subjectID)
	}

	assignments, err := s.store.ListAssignmentsBySubject(ctx, enrollment.SubjectID)
	if err != nil {
		return ProgressUpdate{}, fmt.Errorf("list assignments: %w", err)
	}
	submissions, err := s.submissionsByAssignment(ctx, studentID)
	if err != nil {
		return ProgressUpdate{}, err
	}
	passed := 0
	for _, a := range assignments {
		var sub *domain.Submission
		if found, ok := submissions[a.ID]; ok {
			sub = &found
		}
		if domain.NewAssignmentProgress(a, sub).IsPassed {
			passed++
		}
	}

	materials, err := s.store.ListMaterialsBySubject(ctx, enrollment.SubjectID)
	if err != nil {
		return ProgressUpdate{}, fmt.Errorf("list materials: %w", err)
	}
	viewed, err := s.store.CountMaterialViews(ctx, studentID, enrollment.SubjectID)
	if err != nil {
		return ProgressUpdate{}, fmt.Errorf("count material views: %w", err)
	}

	progress, existed, err := s.store.GetProgress(ctx, studentID, enrollment.SubjectID)
	if err != nil {
		return ProgressUpdate{}, fmt.Errorf("load progress: %w", err)
	}
	if !existed {
		progress = domain.CourseProgress{StudentID: studentID, SubjectID: enrollment.SubjectID}
	}
	wasCompleted := progress.IsCompleted

	progress.AssignmentsCompleted = passed
	progress.TotalAssignments = len(assignments)
	progress.MaterialsViewed = viewed
	progress.TotalMaterials = len(materials)
	progress.Calculate(s.clock())

	if err := s.store.SaveProgress(ctx, progress); err != nil {
		return ProgressUpdate{}, fmt.Errorf("save progress: %w", err)
	}
	return ProgressUpdate{
		Progress:      progress,
		JustCompleted: progress.IsCompleted && !wasCompleted,
	}, nil
}

// Progress returns the stored progress, computing it on first access.
func (s *Service) Progress(ctx context.Context, actor domain.User, subjectID string) (domain.CourseProgress, error) {
	if _, err := s.enrollmentOf(ctx, actor.ID, subjectID); err != nil {
		return domain.CourseProgress{}, err
	}
	progress, ok, err := s.store.GetProgress(ctx, actor.ID, subjectID)
	if err != nil {
		return domain.CourseProgress{}, fmt.Errorf("load progress: %w", err)
	}
	if ok {
		return progress, nil
	}
	update, err := s.Recalculate(ctx, actor.ID, subjectID)
	if err != nil {
		return domain.CourseProgress{}, err
	}
	return update.Progress, nil
}

// requestProgress hands recalculation to the worker queue. Without a queue,
// or when enqueueing fails, the work runs inline so progress never goes stale.
func (s *Service) requestProgress(ctx context.Context, studentID, subjectID, reason string) {
	if s.progress != nil {
		payload := queue.RecalculateProgressPayload{
			StudentID:   studentID,
			SubjectID:   subjectID,
			Reason:      reason,
			RequestedAt: s.clock(),
		}
		info, err := s.progress.EnqueueRecalculateProgress(ctx, payload)
		if err == nil {
			s.logger.Printf("progress recalculation queued student_id=%s subject_id=%s reason=%s task_id=%s", studentID, subjectID, reason, info.ID)
			return
		}
		s.logger.Printf("progress enqueue failed student_id=%s subject_id=%s reason=%s err=%v", studentID, subjectID, reason, err)
	}

	if _, err := s.Recalculate(ctx, studentID, subjectID); err != nil {
		s.logger.Printf("progress recalculation failed student_id=%s subject_id=%s reason=%s err=%v", studentID, subjectID, reason, err)
	}
}
