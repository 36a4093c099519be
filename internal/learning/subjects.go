package learning

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dunamismax/smartlearn/internal/access"
	"github.com/dunamismax/smartlearn/internal/domain"
	"github.com/dunamismax/smartlearn/internal/id"
)

type SubjectInput struct {
	Title       string `json:"title" validate:"required,notblank,max=200"`
	Description string `json:"description" validate:"max=5000"`
}

type TeacherSubjects struct {
	Items []domain.SubjectSummary
	Page  domain.Page
	Stats domain.TeacherStats
}

type CatalogParams struct {
	Search    string
	Available bool
	Popular   bool
	Page      string
}

type Catalog struct {
	Items []domain.SubjectSummary
	Page  domain.Page
	// Enrolled holds the ids of listed subjects the caller is enrolled in.
	Enrolled map[string]bool
}

type EnrolledSubject struct {
	Subject    domain.Subject
	Enrollment domain.Enrollment
	Progress   *domain.CourseProgress
}

type EnrolledStudent struct {
	Student    domain.User
	Enrollment domain.Enrollment
}

// SubjectOverview is the teacher's view of one of their subjects.
type SubjectOverview struct {
	Subject                    domain.Subject
	Assignments                []domain.Assignment
	AssignmentsPage            domain.Page
	Students                   []EnrolledStudent
	StudentsPage               domain.Page
	Materials                  []domain.ClassMaterial
	TotalAssignments           int
	AssignmentsWithSubmissions int
}

func (s *Service) CreateSubject(ctx context.Context, actor domain.User, in SubjectInput) (domain.Subject, error) {
	if err := access.Require(actor, access.ManageSubjects); err != nil {
		return domain.Subject{}, err
	}
	if err := s.validate.Struct(in); err != nil {
		return domain.Subject{}, err
	}

	subject := domain.Subject{
		ID:          id.New(),
		TeacherID:   actor.ID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   s.clock(),
	}
	if err := s.store.CreateSubject(ctx, subject); err != nil {
		return domain.Subject{}, fmt.Errorf("create subject: %w", err)
	}
	return subject, nil
}

func (s *Service) UpdateSubject(ctx context.Context, actor domain.User, subjectID string, in SubjectInput) (domain.Subject, error) {
	if err := access.Require(actor, access.ManageSubjects); err != nil {
		return domain.Subject{}, err
	}
	if err := s.validate.Struct(in); err != nil {
		return domain.Subject{}, err
	}

	subject, err := s.loadSubject(ctx, subjectID)
	if err != nil {
		return domain.Subject{}, err
	}
	if err := access.RequireSubjectOwner(actor, subject); err != nil {
		return domain.Subject{}, err
	}

	subject.Title = strings.TrimSpace(in.Title)
	subject.Description = strings.TrimSpace(in.Description)
	if err := s.store.UpdateSubject(ctx, subject); err != nil {
		return domain.Subject{}, fmt.Errorf("update subject: %w", err)
	}
	return subject, nil
}

func (s *Service) DeleteSubject(ctx context.Context, actor domain.User, subjectID string) error {
	if err := access.Require(actor, access.ManageSubjects); err != nil {
		return err
	}
	subject, err := s.loadSubject(ctx, subjectID)
	if err != nil {
		return err
	}
	if err := access.RequireSubjectOwner(actor, subject); err != nil {
		return err
	}
	keys, err := s.subjectObjectKeys(ctx, subject.ID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSubject(ctx, subject.ID); err != nil {
		return fmt.Errorf("delete subject: %w", err)
	}
	for _, key := range keys {
		s.removeObject(ctx, key)
	}
	s.logger.Printf("subject deleted subject_id=%s by=%s objects=%d", subject.ID, actor.ID, len(keys))
	return nil
}

// subjectObjectKeys collects every stored file hanging off a subject:
// assignment attachments, submission files and material files.
func (s *Service) subjectObjectKeys(ctx context.Context, subjectID string) ([]string, error) {
	var keys []string
	assignments, err := s.store.ListAssignmentsBySubject(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	for _, a := range assignments {
		if a.AttachmentKey != "" {
			keys = append(keys, a.AttachmentKey)
		}
		submissions, err := s.store.ListSubmissionsByAssignment(ctx, a.ID)
		if err != nil {
			return nil, fmt.Errorf("list submissions: %w", err)
		}
		for _, sub := range submissions {
			if sub.FileKey != "" {
				keys = append(keys, sub.FileKey)
			}
		}
	}

	materials, err := s.store.ListMaterialsBySubject(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	for _, m := range materials {
		if m.FileKey != "" {
			keys = append(keys, m.FileKey)
		}
	}
	return keys, nil
}

func (s *Service) Subject(ctx context.Context, subjectID string) (domain.Subject, error) {
	return s.loadSubject(ctx, subjectID)
}

// TeacherSubjects lists the actor's subjects newest first, with enrollment
// counts and aggregate stats.
func (s *Service) TeacherSubjects(ctx context.Context, actor domain.User, page string) (TeacherSubjects, error) {
	if err := access.Require(actor, access.ManageSubjects); err != nil {
		return TeacherSubjects{}, err
	}

	subjects, err := s.store.ListSubjectsByTeacher(ctx, actor.ID)
	if err != nil {
		return TeacherSubjects{}, fmt.Errorf("list teacher subjects: %w", err)
	}
	totalStudents, err := s.store.CountEnrollmentsByTeacher(ctx, actor.ID)
	if err != nil {
		return TeacherSubjects{}, fmt.Errorf("count teacher enrollments: %w", err)
	}

	visible, pg := domain.PageSlice(subjects, page, teacherSubjectsPageSize)
	items := make([]domain.SubjectSummary, 0, len(visible))
	for _, subject := range visible {
		enrollments, err := s.store.ListEnrollmentsBySubject(ctx, subject.ID)
		if err != nil {
			return TeacherSubjects{}, fmt.Errorf("list subject enrollments: %w", err)
		}
		items = append(items, domain.SubjectSummary{
			Subject:         subject,
			TeacherUsername: actor.Username,
			TeacherName:     actor.DisplayName(),
			EnrollmentCount: len(enrollments),
		})
	}

	return TeacherSubjects{
		Items: items,
		Page:  pg,
		Stats: domain.NewTeacherStats(totalStudents, len(subjects)),
	}, nil
}

func (s *Service) SubjectOverview(ctx context.Context, actor domain.User, subjectID, assignmentPage, studentPage string) (SubjectOverview, error) {
	subject, err := s.loadSubject(ctx, subjectID)
	if err != nil {
		return SubjectOverview{}, err
	}
	if err := access.RequireSubjectOwner(actor, subject); err != nil {
		return SubjectOverview{}, err
	}

	assignments, err := s.store.ListAssignmentsBySubject(ctx, subject.ID)
	if err != nil {
		return SubjectOverview{}, fmt.Errorf("list assignments: %w", err)
	}
	withSubmissions := 0
	for _, a := range assignments {
		subs, err := s.store.ListSubmissionsByAssignment(ctx, a.ID)
		if err != nil {
			return SubjectOverview{}, fmt.Errorf("list submissions: %w", err)
		}
		if len(subs) > 0 {
			withSubmissions++
		}
	}

	enrollments, err := s.store.ListEnrollmentsBySubject(ctx, subject.ID)
	if err != nil {
		return SubjectOverview{}, fmt.Errorf("list enrollments: %w", err)
	}
	enrollmentPage, studentsPg := domain.PageSlice(enrollments, studentPage, subjectStudentsSize)
	students := make([]EnrolledStudent, 0, len(enrollmentPage))
	for _, enrollment := range enrollmentPage {
		student, ok, err := s.store.GetUser(ctx, enrollment.StudentID)
		if err != nil {
			return SubjectOverview{}, fmt.Errorf("load student: %w", err)
		}
		if !ok {
			continue
		}
		students = append(students, EnrolledStudent{Student: student, Enrollment: enrollment})
	}

	materials, err := s.store.ListMaterialsBySubject(ctx, subject.ID)
	if err != nil {
		return SubjectOverview{}, fmt.Errorf("list materials: %w", err)
	}

	assignmentItems, assignmentsPg := domain.PageSlice(assignments, assignmentPage, subjectAssignmentsSize)
	return SubjectOverview{
		Subject:                    subject,
		Assignments:                assignmentItems,
		AssignmentsPage:            assignmentsPg,
		Students:                   students,
		StudentsPage:               studentsPg,
		Materials:                  materials,
		TotalAssignments:           len(assignments),
		AssignmentsWithSubmissions: withSubmissions,
	}, nil
}

// Catalog searches all subjects. Available hides subjects the caller is
// already enrolled in and Popular orders by enrollment count.
func (s *Service) Catalog(ctx context.Context, actor domain.User, params CatalogParams) (Catalog, error) {
	query := domain.CatalogQuery{
		Search:  strings.TrimSpace(params.Search),
		Popular: params.Popular,
	}
	if params.Available {
		query.AvailableFor = actor.ID
	}

	subjects, err := s.store.SearchCatalog(ctx, query)
	if err != nil {
		return Catalog{}, fmt.Errorf("search catalog: %w", err)
	}
	items, pg := domain.PageSlice(subjects, params.Page, catalogPageSize)

	enrolled := make(map[string]bool)
	enrollments, err := s.store.ListEnrollmentsByStudent(ctx, actor.ID)
	if err != nil {
		return Catalog{}, fmt.Errorf("list enrollments: %w", err)
	}
	for _, enrollment := range enrollments {
		enrolled[enrollment.SubjectID] = true
	}

	return Catalog{Items: items, Page: pg, Enrolled: enrolled}, nil
}

func (s *Service) Popular(ctx context.Context, limit int) ([]domain.SubjectSummary, error) {
	if limit <= 0 {
		limit = defaultPopularLimit
	}
	subjects, err := s.store.PopularSubjects(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("popular subjects: %w", err)
	}
	return subjects, nil
}

// Enroll is idempotent: enrolling twice returns the original enrollment with
// created=false.
func (s *Service) Enroll(ctx context.Context, actor domain.User, subjectID string) (domain.Enrollment, bool, error) {
	if err := access.Require(actor, access.Enroll); err != nil {
		return domain.Enrollment{}, false, err
	}
	if _, err := s.loadSubject(ctx, subjectID); err != nil {
		return domain.Enrollment{}, false, err
	}

	enrollment, created, err := s.store.Enroll(ctx, domain.Enrollment{
		StudentID:    actor.ID,
		SubjectID:    subjectID,
		DateEnrolled: s.clock(),
	})
	if err != nil {
		return domain.Enrollment{}, false, fmt.Errorf("enroll: %w", err)
	}
	if created {
		s.logger.Printf("student enrolled student_id=%s subject_id=%s", actor.ID, subjectID)
	}
	return enrollment, created, nil
}

func (s *Service) Unenroll(ctx context.Context, actor domain.User, subjectID string) error {
	if err := access.Require(actor, access.Enroll); err != nil {
		return err
	}
	if err := s.store.Unenroll(ctx, actor.ID, subjectID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return notFound("enrollment in subject", subjectID)
		}
		return fmt.Errorf("unenroll: %w", err)
	}
	s.logger.Printf("student unenrolled student_id=%s subject_id=%s", actor.ID, subjectID)
	return nil
}

// Enrollments lists the actor's subjects, most recently enrolled first.
func (s *Service) Enrollments(ctx context.Context, actor domain.User, page string) ([]EnrolledSubject, domain.Page, error) {
	enrollments, err := s.store.ListEnrollmentsByStudent(ctx, actor.ID)
	if err != nil {
		return nil, domain.Page{}, fmt.Errorf("list enrollments: %w", err)
	}

	visible, pg := domain.PageSlice(enrollments, page, enrollmentsPageSize)
	items, err := s.enrolledSubjects(ctx, visible)
	if err != nil {
		return nil, domain.Page{}, err
	}
	return items, pg, nil
}

func (s *Service) enrolledSubjects(ctx context.Context, enrollments []domain.Enrollment) ([]EnrolledSubject, error) {
	items := make([]EnrolledSubject, 0, len(enrollments))
	for _, enrollment := range enrollments {
		subject, ok, err := s.store.GetSubject(ctx, enrollment.SubjectID)
		if err != nil {
			return nil, fmt.Errorf("load subject: %w", err)
		}
		if !ok {
			continue
		}
		item := EnrolledSubject{Subject: subject, Enrollment: enrollment}
		progress, ok, err := s.store.GetProgress(ctx, enrollment.StudentID, enrollment.SubjectID)
		if err != nil {
			return nil, fmt.Errorf("load progress: %w", err)
		}
		if ok {
			item.Progress = &progress
		}
		items = append(items, item)
	}
	return items, nil
}
