package learning

import (
	"context"
	"fmt"

	"github.com/dunamismax/smartlearn/internal/domain"
)

type StudentDashboard struct {
	Enrollments       []EnrolledSubject
	Page              domain.Page
	AvailableSubjects int
	Urgent            []domain.UrgentSubject
}

// StudentDashboard summarizes the actor's enrollments and flags subjects with
// unsubmitted assignments due within the next two days.
func (s *Service) StudentDashboard(ctx context.Context, actor domain.User, page string) (StudentDashboard, error) {
	enrollments, err := s.store.ListEnrollmentsByStudent(ctx, actor.ID)
	if err != nil {
		return StudentDashboard{}, fmt.Errorf("list enrollments: %w", err)
	}
	total, err := s.store.CountSubjects(ctx)
	if err != nil {
		return StudentDashboard{}, fmt.Errorf("count subjects: %w", err)
	}

	visible, pg := domain.PageSlice(enrollments, page, enrollmentsPageSize)
	items, err := s.enrolledSubjects(ctx, visible)
	if err != nil {
		return StudentDashboard{}, err
	}

	urgent, err := s.urgentSubjects(ctx, actor.ID, enrollments)
	if err != nil {
		return StudentDashboard{}, err
	}

	available := total - len(enrollments)
	if available < 0 {
		available = 0
	}
	return StudentDashboard{
		Enrollments:       items,
		Page:              pg,
		AvailableSubjects: available,
		Urgent:            urgent,
	}, nil
}

func (s *Service) urgentSubjects(ctx context.Context, studentID string, enrollments []domain.Enrollment) ([]domain.UrgentSubject, error) {
	submissions, err := s.submissionsByAssignment(ctx, studentID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	var out []domain.UrgentSubject
	for _, enrollment := range enrollments {
		assignments, err := s.store.ListAssignmentsBySubject(ctx, enrollment.SubjectID)
		if err != nil {
			return nil, fmt.Errorf("list assignments: %w", err)
		}

		entry := domain.UrgentSubject{SubjectID: enrollment.SubjectID}
		for _, a := range assignments {
			if a.CreatedAt.Before(enrollment.DateEnrolled) {
				continue
			}
			if _, done := submissions[a.ID]; done {
				continue
			}
			if !a.DueWithin(now, domain.DueSoonWindow) {
				continue
			}
			entry.TotalCount++
			if a.DueWithin(now, domain.UrgentWindow) {
				entry.VeryUrgentCount++
			}
		}
		if entry.TotalCount == 0 {
			continue
		}

		subject, ok, err := s.store.GetSubject(ctx, enrollment.SubjectID)
		if err != nil {
			return nil, fmt.Errorf("load subject: %w", err)
		}
		if !ok {
			continue
		}
		entry.SubjectTitle = subject.Title
		out = append(out, entry)
	}
	return out, nil
}
