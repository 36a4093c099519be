// Package learning holds the application operations: accounts, subjects,
// enrollments, coursework, dashboards and progress. Every mutating
// operation validates its input and checks access before touching a store.
package learning

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/dunamismax/smartlearn/internal/domain"
	"github.com/dunamismax/smartlearn/internal/id"
	"github.com/dunamismax/smartlearn/internal/imaging"
	"github.com/dunamismax/smartlearn/internal/queue"
	"github.com/dunamismax/smartlearn/internal/store"
	"github.com/hibiken/asynq"
)

const (
	picturePrefix    = "profile_pictures"
	assignmentPrefix = "assignments"
	submissionPrefix = "submissions"
	materialPrefix   = "class_materials"

	teacherSubjectsPageSize = 6
	catalogPageSize         = 10
	enrollmentsPageSize     = 5
	assignmentsPageSize     = 10
	subjectAssignmentsSize  = 4
	subjectStudentsSize     = 10
	submissionsPageSize     = 15
	defaultPopularLimit     = 4
)

type ImageNormalizer interface {
	Normalize(name string, data []byte) imaging.Result
}

type ObjectStorage interface {
	WriteObject(ctx context.Context, objectKey string, data []byte, contentType string) error
	RemoveObject(ctx context.Context, objectKey string) error
	ObjectExists(ctx context.Context, objectKey string) (bool, error)
	PresignedGetURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
}

type ProgressEnqueuer interface {
	EnqueueRecalculateProgress(ctx context.Context, payload queue.RecalculateProgressPayload) (*asynq.TaskInfo, error)
}

type Deps struct {
	Logger     *log.Logger
	Store      store.Store
	Normalizer ImageNormalizer
	Objects    ObjectStorage
	// Progress is optional. Without it recalculation runs inline.
	Progress  ProgressEnqueuer
	URLExpiry time.Duration
	Now       func() time.Time
}

type Service struct {
	logger     *log.Logger
	store      store.Store
	normalizer ImageNormalizer
	objects    ObjectStorage
	pictures   imaging.ObjectStoreEmitter
	progress   ProgressEnqueuer
	validate   *inputValidator
	urlExpiry  time.Duration
	now        func() time.Time
}

// Upload is a file attached to a request.
type Upload struct {
	Name        string
	Data        []byte
	ContentType string
}

func NewService(deps Deps) (*Service, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.Normalizer == nil {
		return nil, fmt.Errorf("image normalizer is required")
	}
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	if deps.Objects == nil {
		deps.Objects = unavailableObjects{}
	}
	if deps.URLExpiry <= 0 {
		deps.URLExpiry = 15 * time.Minute
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &Service{
		logger:     deps.Logger,
		store:      deps.Store,
		normalizer: deps.Normalizer,
		objects:    deps.Objects,
		pictures:   imaging.ObjectStoreEmitter{Storage: deps.Objects, Prefix: picturePrefix},
		progress:   deps.Progress,
		validate:   newInputValidator(),
		urlExpiry:  deps.URLExpiry,
		now:        deps.Now,
	}, nil
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

type unavailableObjects struct{}

func (unavailableObjects) WriteObject(context.Context, string, []byte, string) error {
	return ErrUnavailable
}

func (unavailableObjects) RemoveObject(context.Context, string) error {
	return ErrUnavailable
}

func (unavailableObjects) ObjectExists(context.Context, string) (bool, error) {
	return false, ErrUnavailable
}

func (unavailableObjects) PresignedGetURL(context.Context, string, time.Duration) (string, error) {
	return "", ErrUnavailable
}

func (s *Service) loadUser(ctx context.Context, userID string) (domain.User, error) {
	user, ok, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("load user %s: %w", userID, err)
	}
	if !ok {
		return domain.User{}, notFound("user", userID)
	}
	return user, nil
}

func (s *Service) loadSubject(ctx context.Context, subjectID string) (domain.Subject, error) {
	subject, ok, err := s.store.GetSubject(ctx, subjectID)
	if err != nil {
		return domain.Subject{}, fmt.Errorf("load subject %s: %w", subjectID, err)
	}
	if !ok {
		return domain.Subject{}, notFound("subject", subjectID)
	}
	return subject, nil
}

func (s *Service) loadAssignment(ctx context.Context, assignmentID string) (domain.Assignment, error) {
	assignment, ok, err := s.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("load assignment %s: %w", assignmentID, err)
	}
	if !ok {
		return domain.Assignment{}, notFound("assignment", assignmentID)
	}
	return assignment, nil
}

func (s *Service) loadMaterial(ctx context.Context, materialID string) (domain.ClassMaterial, error) {
	material, ok, err := s.store.GetMaterial(ctx, materialID)
	if err != nil {
		return domain.ClassMaterial{}, fmt.Errorf("load material %s: %w", materialID, err)
	}
	if !ok {
		return domain.ClassMaterial{}, notFound("material", materialID)
	}
	return material, nil
}

// enrollmentOf returns the student's enrollment or ErrForbidden.
func (s *Service) enrollmentOf(ctx context.Context, studentID, subjectID string) (domain.Enrollment, error) {
	enrollment, ok, err := s.store.GetEnrollment(ctx, studentID, subjectID)
	if err != nil {
		return domain.Enrollment{}, fmt.Errorf("load enrollment: %w", err)
	}
	if !ok {
		return domain.Enrollment{}, forbidden("not enrolled in subject " + subjectID)
	}
	return enrollment, nil
}

// storeUpload writes an attachment under prefix/owner and returns its key.
// A nil or empty upload stores nothing.
func (s *Service) storeUpload(ctx context.Context, prefix, ownerID string, up *Upload) (string, error) {
	if up == nil || len(up.Data) == 0 {
		return "", nil
	}

	contentType := strings.TrimSpace(up.ContentType)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(up.Data)
	}

	key := path.Join(prefix, cleanKeyPart(ownerID), id.Token()+"-"+cleanKeyPart(path.Base(up.Name)))
	if err := s.objects.WriteObject(ctx, key, up.Data, contentType); err != nil {
		return "", fmt.Errorf("store upload %s: %w", key, err)
	}
	return key, nil
}

func (s *Service) removeObject(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.objects.RemoveObject(ctx, key); err != nil && !errors.Is(err, ErrUnavailable) {
		s.logger.Printf("object removal failed key=%s err=%v", key, err)
	}
}

func cleanKeyPart(in string) string {
	in = strings.TrimSpace(in)
	if in == "" || in == "." || in == "/" {
		return "file"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, in)
}
