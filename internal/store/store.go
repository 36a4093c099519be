package store

import (
	"context"
	"errors"
	"strings"

	"github.com/dunamismax/smartlearn/internal/config"
	"github.com/dunamismax/smartlearn/internal/domain"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

type UserStore interface {
	CreateUser(ctx context.Context, user domain.User) error
	GetUser(ctx context.Context, id string) (domain.User, bool, error)
	GetUserByUsername(ctx context.Context, username string) (domain.User, bool, error)
	UpdateUser(ctx context.Context, user domain.User) error
}

type CourseStore interface {
	CreateSubject(ctx context.Context, subject domain.Subject) error
	GetSubject(ctx context.Context, id string) (domain.Subject, bool, error)
	UpdateSubject(ctx context.Context, subject domain.Subject) error
	DeleteSubject(ctx context.Context, id string) error
	ListSubjectsByTeacher(ctx context.Context, teacherID string) ([]domain.Subject, error)
	SearchCatalog(ctx context.Context, query domain.CatalogQuery) ([]domain.SubjectSummary, error)
	PopularSubjects(ctx context.Context, limit int) ([]domain.SubjectSummary, error)
	CountSubjects(ctx context.Context) (int, error)

	// Enroll is get-or-create; created is false when the enrollment existed.
	Enroll(ctx context.Context, enrollment domain.Enrollment) (stored domain.Enrollment, created bool, err error)
	Unenroll(ctx context.Context, studentID, subjectID string) error
	GetEnrollment(ctx context.Context, studentID, subjectID string) (domain.Enrollment, bool, error)
	ListEnrollmentsByStudent(ctx context.Context, studentID string) ([]domain.Enrollment, error)
	ListEnrollmentsBySubject(ctx context.Context, subjectID string) ([]domain.Enrollment, error)
	CountEnrollmentsByTeacher(ctx context.Context, teacherID string) (int, error)
}

type CourseworkStore interface {
	CreateAssignment(ctx context.Context, assignment domain.Assignment) error
	GetAssignment(ctx context.Context, id string) (domain.Assignment, bool, error)
	ListAssignmentsBySubject(ctx context.Context, subjectID string) ([]domain.Assignment, error)

	CreateSubmission(ctx context.Context, submission domain.Submission) error
	GetSubmission(ctx context.Context, id string) (domain.Submission, bool, error)
	ListSubmissionsByAssignment(ctx context.Context, assignmentID string) ([]domain.Submission, error)
	ListSubmissionsByStudent(ctx context.Context, studentID string) ([]domain.Submission, error)
	GradeSubmission(ctx context.Context, id string, grade float64, feedback string) (domain.Submission, error)

	CreateMaterial(ctx context.Context, material domain.ClassMaterial) error
	GetMaterial(ctx context.Context, id string) (domain.ClassMaterial, bool, error)
	UpdateMaterial(ctx context.Context, material domain.ClassMaterial) error
	DeleteMaterial(ctx context.Context, id string) error
	ListMaterialsBySubject(ctx context.Context, subjectID string) ([]domain.ClassMaterial, error)
	RecordMaterialView(ctx context.Context, view domain.MaterialView) (created bool, err error)
	CountMaterialViews(ctx context.Context, studentID, subjectID string) (int, error)
}

type ProgressStore interface {
	SaveProgress(ctx context.Context, progress domain.CourseProgress) error
	GetProgress(ctx context.Context, studentID, subjectID string) (domain.CourseProgress, bool, error)
}

// Store is everything the application persists.
type Store interface {
	UserStore
	CourseStore
	CourseworkStore
	ProgressStore
	Close() error
}

// Open returns a PostgresStore for a configured DSN and a MemoryStore
// otherwise.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return NewMemoryStore(), nil
	}
	pg, err := NewPostgresStore(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return pg, nil
}
