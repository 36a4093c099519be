package learning

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dunamismax/smartlearn/internal/domain"
	"github.com/dunamismax/smartlearn/internal/imaging"
	"github.com/dunamismax/smartlearn/internal/queue"
	"github.com/dunamismax/smartlearn/internal/store"
	"github.com/hibiken/asynq"
)

type fakeNormalizer struct {
	passthrough bool
}

func (f fakeNormalizer) Normalize(name string, data []byte) imaging.Result {
	if f.passthrough {
		return imaging.Result{Name: name, Data: data, Fallback: errors.New("decode failed")}
	}
	return imaging.Result{
		Name:       imaging.DerivedName(name),
		Data:       []byte("jpeg-bytes"),
		Normalized: true,
		Width:      500,
		Height:     250,
		Quality:    85,
		Passes:     1,
	}
}

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	removed []string
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: make(map[string][]byte)}
}

func (f *fakeObjects) WriteObject(_ context.Context, key string, data []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = append([]byte(nil), data...)
	return nil
}

func (f *fakeObjects) RemoveObject(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.removed = append(f.removed, key)
	return nil
}

func (f *fakeObjects) ObjectExists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeObjects) PresignedGetURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://objects.test/" + key, nil
}

type fakeEnqueuer struct {
	mu       sync.Mutex
	payloads []queue.RecalculateProgressPayload
	err      error
}

func (f *fakeEnqueuer) EnqueueRecalculateProgress(_ context.Context, payload queue.RecalculateProgressPayload) (*asynq.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.payloads = append(f.payloads, payload)
	return &asynq.TaskInfo{ID: "task-1", Queue: "default"}, nil
}

type fixture struct {
	svc     *Service
	store   *store.MemoryStore
	objects *fakeObjects
	now     time.Time
}

func newFixture(t *testing.T, progress ProgressEnqueuer) *fixture {
	t.Helper()

	f := &fixture{
		store:   store.NewMemoryStore(),
		objects: newFakeObjects(),
		now:     time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	svc, err := NewService(Deps{
		Logger:     log.New(io.Discard, "", 0),
		Store:      f.store,
		Normalizer: fakeNormalizer{},
		Objects:    f.objects,
		Progress:   progress,
		Now:        func() time.Time { return f.now },
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	f.svc = svc
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *fixture) register(t *testing.T, username, role string) domain.User {
	t.Helper()
	user, err := f.svc.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "correct-horse",
		Role:     role,
	})
	if err != nil {
		t.Fatalf("Register(%s) error = %v", username, err)
	}
	return user
}

func (f *fixture) subject(t *testing.T, teacher domain.User, title string) domain.Subject {
	t.Helper()
	subject, err := f.svc.CreateSubject(context.Background(), teacher, SubjectInput{Title: title})
	if err != nil {
		t.Fatalf("CreateSubject(%s) error = %v", title, err)
	}
	return subject
}

func (f *fixture) enroll(t *testing.T, student domain.User, subject domain.Subject) {
	t.Helper()
	if _, _, err := f.svc.Enroll(context.Background(), student, subject.ID); err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}
}

func (f *fixture) assignment(t *testing.T, teacher domain.User, subject domain.Subject, title string, due time.Duration) domain.Assignment {
	t.Helper()
	a, err := f.svc.CreateAssignment(context.Background(), teacher, subject.ID, AssignmentInput{
		Title:       title,
		Description: "read chapter one",
		DueDate:     f.now.Add(due),
	}, nil)
	if err != nil {
		t.Fatalf("CreateAssignment(%s) error = %v", title, err)
	}
	return a
}

func longAnswer() string {
	return strings.Repeat("a", domain.MinAnswerLength)
}

func TestNewServiceRequiresStoreAndNormalizer(t *testing.T) {
	if _, err := NewService(Deps{Normalizer: fakeNormalizer{}}); err == nil {
		t.Fatalf("expected error without store")
	}
	if _, err := NewService(Deps{Store: store.NewMemoryStore()}); err == nil {
		t.Fatalf("expected error without normalizer")
	}
}

func TestRegisterDemotesAdminAndRejectsDuplicates(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	user := f.register(t, "ada", domain.RoleAdmin)
	if user.Role != domain.RoleStudent {
		t.Fatalf("expected non-superuser admin request to be demoted, got %q", user.Role)
	}
	if !user.IsActive {
		t.Fatalf("expected new account to be active")
	}

	_, err := f.svc.Register(ctx, RegisterInput{Username: "ADA", Password: "correct-horse"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for case-insensitive duplicate, got %v", err)
	}
}

func TestRegisterValidationReportsJSONFieldNames(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Register(context.Background(), RegisterInput{Username: "  ", Password: "short"})
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if _, ok := verr.Fields["username"]; !ok {
		t.Fatalf("expected username field error, got %v", verr.Fields)
	}
	if _, ok := verr.Fields["password"]; !ok {
		t.Fatalf("expected password field error, got %v", verr.Fields)
	}
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	user := f.register(t, "grace", domain.RoleTeacher)

	got, err := f.svc.Authenticate(ctx, LoginInput{Username: "grace", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("expected user %s, got %s", user.ID, got.ID)
	}

	if _, err := f.svc.Authenticate(ctx, LoginInput{Username: "grace", Password: "wrong-password"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for bad password, got %v", err)
	}
	if _, err := f.svc.Authenticate(ctx, LoginInput{Username: "nobody", Password: "correct-horse"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unknown user, got %v", err)
	}
}

func TestUploadProfilePictureReplacesPrevious(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	user := f.register(t, "linus", domain.RoleStudent)

	first, err := f.svc.UploadProfilePicture(ctx, user, "me.png", []byte("png"))
	if err != nil {
		t.Fatalf("UploadProfilePicture() error = %v", err)
	}
	if !first.Normalized || first.ContentType != "image/jpeg" {
		t.Fatalf("expected normalized jpeg, got %+v", first)
	}
	if !strings.HasPrefix(first.Key, picturePrefix+"/") || !strings.HasSuffix(first.Key, "me_compressed.jpg") {
		t.Fatalf("unexpected key %q", first.Key)
	}

	second, err := f.svc.UploadProfilePicture(ctx, user, "me.png", []byte("png"))
	if err != nil {
		t.Fatalf("UploadProfilePicture() second error = %v", err)
	}
	if second.Key == first.Key {
		t.Fatalf("expected a fresh key per upload")
	}
	if exists, _ := f.objects.ObjectExists(ctx, first.Key); exists {
		t.Fatalf("expected previous picture %s to be removed", first.Key)
	}

	url, err := f.svc.ProfilePictureURL(ctx, user.ID)
	if err != nil {
		t.Fatalf("ProfilePictureURL() error = %v", err)
	}
	if url != "https://objects.test/"+second.Key {
		t.Fatalf("unexpected url %q", url)
	}
}

func TestUploadProfilePictureStoresPassthrough(t *testing.T) {
	f := newFixture(t, nil)
	f.svc.normalizer = fakeNormalizer{passthrough: true}
	user := f.register(t, "ken", domain.RoleStudent)

	pic, err := f.svc.UploadProfilePicture(context.Background(), user, "notes.txt", []byte("not an image"))
	if err != nil {
		t.Fatalf("UploadProfilePicture() error = %v", err)
	}
	if pic.Normalized {
		t.Fatalf("expected passthrough result")
	}
	if got := f.objects.objects[pic.Key]; string(got) != "not an image" {
		t.Fatalf("expected original bytes stored, got %q", got)
	}
}

func TestSubjectOwnershipIsEnforced(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	owner := f.register(t, "owner", domain.RoleTeacher)
	other := f.register(t, "other", domain.RoleTeacher)
	student := f.register(t, "student", domain.RoleStudent)

	if _, err := f.svc.CreateSubject(ctx, student, SubjectInput{Title: "Algebra"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected student CreateSubject to be forbidden, got %v", err)
	}

	subject := f.subject(t, owner, "Algebra")
	if _, err := f.svc.UpdateSubject(ctx, other, subject.ID, SubjectInput{Title: "Stolen"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected non-owner update to be forbidden, got %v", err)
	}
	if err := f.svc.DeleteSubject(ctx, other, subject.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected non-owner delete to be forbidden, got %v", err)
	}

	updated, err := f.svc.UpdateSubject(ctx, owner, subject.ID, SubjectInput{Title: "  Algebra II  "})
	if err != nil {
		t.Fatalf("UpdateSubject() error = %v", err)
	}
	if updated.Title != "Algebra II" {
		t.Fatalf("expected trimmed title, got %q", updated.Title)
	}
}

func TestEnrollIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	teacher := f.register(t, "teacher", domain.RoleTeacher)
	student := f.register(t, "student", domain.RoleStudent)
	subject := f.subject(t, teacher, "Biology")

	first, created, err := f.svc.Enroll(ctx, student, subject.ID)
	if err != nil || !created {
		t.Fatalf("Enroll() = created %t err %v", created, err)
	}
	f.advance(time.Hour)
	second, created, err := f.svc.Enroll(ctx, student, subject.ID)
	if err != nil || created {
		t.Fatalf("second Enroll() = created %t err %v", created, err)
	}
	if !second.DateEnrolled.Equal(first.DateEnrolled) {
		t.Fatalf("expected original enrollment date to be kept")
	}

	if err := f.svc.Unenroll(ctx, student, subject.ID); err != nil {
		t.Fatalf("Unenroll() error = %v", err)
	}
	if err := f.svc.Unenroll(ctx, student, subject.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second Unenroll, got %v", err)
	}
}

func TestSubmitRules(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	teacher := f.register(t, "teacher", domain.RoleTeacher)
	student := f.register(t, "student", domain.RoleStudent)
	outsider := f.register(t, "outsider", domain.RoleStudent)
	subject := f.subject(t, teacher, "Chemistry")
	f.enroll(t, student, subject)
	a := f.assignment(t, teacher, subject, "Lab report", 72*time.Hour)

	if _, err := f.svc.Submit(ctx, outsider, a.ID, SubmissionInput{Answer: longAnswer()}, nil); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected unenrolled submit to be forbidden, got %v", err)
	}
	if _, err := f.svc.Submit(ctx, student, a.ID, SubmissionInput{Answer: "too short"}, nil); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected short answer to be invalid, got %v", err)
	}

	sub, err := f.svc.Submit(ctx, student, a.ID, SubmissionInput{Comment: "done"}, &Upload{Name: "report.pdf", Data: []byte("%PDF-1.4")})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !strings.HasPrefix(sub.FileKey, submissionPrefix+"/"+a.ID+"/") {
		t.Fatalf("unexpected file key %q", sub.FileKey)
	}

	if _, err := f.svc.Submit(ctx, student, a.ID, SubmissionInput{Answer: longAnswer()}, nil); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on resubmission, got %v", err)
	}
}

func TestGradeUpdatesProgressInline(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	teacher := f.register(t, "teacher", domain.RoleTeacher)
	other := f.register(t, "other", domain.RoleTeacher)
	student := f.register(t, "student", domain.RoleStudent)
	subject := f.subject(t, teacher, "Physics")
	f.enroll(t, student, subject)
	a := f.assignment(t, teacher, subject, "Forces", 72*time.Hour)

	material, err := f.svc.UploadMaterial(ctx, teacher, subject.ID, MaterialInput{Title: "Slides", ExternalLink: "https://example.com/slides"}, nil)
	if err != nil {
		t.Fatalf("UploadMaterial() error = %v", err)
	}

	sub, err := f.svc.Submit(ctx, student, a.ID, SubmissionInput{Answer: longAnswer()}, nil)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if _, err := f.svc.Grade(ctx, other, sub.ID, GradeInput{Grade: 90}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected non-owner grade to be forbidden, got %v", err)
	}
	if _, err := f.svc.Grade(ctx, teacher, sub.ID, GradeInput{Grade: 0}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected grade below minimum to be invalid, got %v", err)
	}

	if _, err := f.svc.Grade(ctx, teacher, sub.ID, GradeInput{Grade: 80, Feedback: "good"}); err != nil {
		t.Fatalf("Grade() error = %v", err)
	}
	progress, err := f.svc.Progress(ctx, student, subject.ID)
	if err != nil {
		t.Fatalf("Progress() error = %v", err)
	}
	if progress.Percentage != 70 || progress.AssignmentsCompleted != 1 || progress.IsCompleted {
		t.Fatalf("unexpected progress after grade: %+v", progress)
	}

	created, err := f.svc.MarkMaterialViewed(ctx, student, material.ID)
	if err != nil || !created {
		t.Fatalf("MarkMaterialViewed() = %t, %v", created, err)
	}
	created, err = f.svc.MarkMaterialViewed(ctx, student, material.ID)
	if err != nil || created {
		t.Fatalf("repeat MarkMaterialViewed() = %t, %v", created, err)
	}

	progress, err = f.svc.Progress(ctx, student, subject.ID)
	if err != nil {
		t.Fatalf("Progress() error = %v", err)
	}
	if progress.Percentage != 100 || !progress.IsCompleted || progress.CompletionDate == nil {
		t.Fatalf("expected completed course, got %+v", progress)
	}
}

func TestFailingGradeDoesNotCountAsCompleted(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	teacher := f.register(t, "teacher", domain.RoleTeacher)
	student := f.register(t, "student", domain.RoleStudent)
	subject := f.subject(t, teacher, "History")
	f.enroll(t, student, subject)
	a := f.assignment(t, teacher, subject, "Essay", 72*time.Hour)

	sub, err := f.svc.Submit(ctx, student, a.ID, SubmissionInput{Answer: longAnswer()}, nil)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if _, err := f.svc.Grade(ctx, teacher, sub.ID, GradeInput{Grade: 40}); err != nil {
		t.Fatalf("Grade() error = %v", err)
	}

	update, err := f.svc.Recalculate(ctx, student.ID, subject.ID)
	if err != nil {
		t.Fatalf("Recalculate() error = %v", err)
	}
	if update.Progress.AssignmentsCompleted != 0 || update.Progress.Percentage != 0 {
		t.Fatalf("expected failing grade not to count, got %+v", update.Progress)
	}
}

func TestRecalculateWithMaterialsOnly(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	teacher := f.register(t, "teacher", domain.RoleTeacher)
	student := f.register(t, "student", domain.RoleStudent)
	subject := f.subject(t, teacher, "Art")
	f.enroll(t, student, subject)

	material, err := f.svc.UploadMaterial(ctx, teacher, subject.ID, MaterialInput{Title: "Palette"}, nil)
	if err != nil {
		t.Fatalf("UploadMaterial() error = %v", err)
	}
	if _, err := f.store.RecordMaterialView(ctx, domain.MaterialView{StudentID: student.ID, MaterialID: material.ID, SubjectID: subject.ID, ViewedAt: f.now}); err != nil {
		t.Fatalf("RecordMaterialView() error = %v", err)
	}

	// No assignments: materials alone cap progress at the material weight.
	update, err := f.svc.Recalculate(ctx, student.ID, subject.ID)
	if err != nil {
		t.Fatalf("Recalculate() error = %v", err)
	}
	if update.Progress.Percentage != 30 || update.JustCompleted {
		t.Fatalf("unexpected update %+v", update)
	}

	if _, err := f.svc.Recalculate(ctx, "missing", subject.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound without enrollment, got %v", err)
	}
}

func TestProgressIsQueuedWhenEnqueuerConfigured(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	f := newFixture(t, enqueuer)
	ctx := context.Background()
	teacher := f.register(t, "teacher", domain.RoleTeacher)
	student := f.register(t, "student", domain.RoleStudent)
	subject := f.subject(t, teacher, "Music")
	f.enroll(t, student, subject)
	a := f.assignment(t, teacher, subject, "Scales", 72*time.Hour)

	if _, err := f.svc.Submit(ctx, student, a.ID, SubmissionInput{Answer: longAnswer()}, nil); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(enqueuer.payloads) != 1 {
		t.Fatalf("expected 1 queued recalculation, got %d", len(enqueuer.payloads))
	}
	got := enqueuer.payloads[0]
	if got.StudentID != student.ID || got.SubjectID != subject.ID || got.Reason != queue.ReasonSubmission {
		t.Fatalf("unexpected payload %+v", got)
	}
	if _, ok, _ := f.store.GetProgress(ctx, student.ID, subject.ID); ok {
		t.Fatalf("expected no inline recalculation when the queue accepted the task")
	}
}

func TestProgressFallsBackInlineWhenEnqueueFails(t *testing.T) {
	f := newFixture(t, &fakeEnqueuer{err: errors.New("redis down")})
	ctx := context.Background()
	teacher := f.register(t, "teacher", domain.RoleTeacher)
	student := f.register(t, "student", domain.RoleStudent)
	subject := f.subject(t, teacher, "Drama")
	f.enroll(t, student, subject)
	a := f.assignment(t, teacher, subject, "Monologue", 72*time.Hour)

	if _, err := f.svc.Submit(ctx, student, a.ID, SubmissionInput{Answer: longAnswer()}, nil); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	progress, ok, err := f.store.GetProgress(ctx, student.ID, subject.ID)
	if err != nil || !ok {
		t.Fatalf("expected inline progress, ok=%t err=%v", ok, err)
	}
	if progress.TotalAssignments != 1 {
		t.Fatalf("unexpected progress %+v", progress)
	}
}

func TestStudentSubjectFiltersAndCategorizes(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	teacher := f.register(t, "teacher", domain.RoleTeacher)
	student := f.register(t, "student", domain.RoleStudent)
	subject := f.subject(t, teacher, "Geography")

	f.assignment(t, teacher, subject, "Before enrollment", 72*time.Hour)
	f.advance(time.Minute)
	f.enroll(t, student, subject)

	f.assignment(t, teacher, subject, "Far future", 120*24*time.Hour)
	pending := f.assignment(t, teacher, subject, "Maps", 72*time.Hour)
	overdue := f.assignment(t, teacher, subject, "Rivers", time.Hour)
	done := f.assignment(t, teacher, subject, "Capitals", 72*time.Hour)
	if _, err := f.svc.Submit(ctx, student, done.ID, SubmissionInput{Answer: longAnswer()}, nil); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	f.advance(2 * time.Hour)

	view, err := f.svc.StudentSubject(ctx, student, subject.ID, "", "1")
	if err != nil {
		t.Fatalf("StudentSubject() error = %v", err)
	}
	if view.Tab != domain.TabPending {
		t.Fatalf("expected default pending tab, got %q", view.Tab)
	}
	if view.Pending != 1 || view.Submitted != 1 || view.Overdue != 1 {
		t.Fatalf("unexpected counts pending=%d submitted=%d overdue=%d", view.Pending, view.Submitted, view.Overdue)
	}
	if len(view.Items) != 1 || view.Items[0].ID != pending.ID {
		t.Fatalf("unexpected pending items %+v", view.Items)
	}

	view, err = f.svc.StudentSubject(ctx, student, subject.ID, domain.TabOverdue, "")
	if err != nil {
		t.Fatalf("StudentSubject(overdue) error = %v", err)
	}
	if len(view.Items) != 1 || view.Items[0].ID != overdue.ID || !view.Items[0].Overdue {
		t.Fatalf("unexpected overdue items %+v", view.Items)
	}
}

func TestMaterialsVisibleSinceEnrollment(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	teacher := f.register(t, "teacher", domain.RoleTeacher)
	student := f.register(t, "student", domain.RoleStudent)
	subject := f.subject(t, teacher, "Poetry")

	old, err := f.svc.UploadMaterial(ctx, teacher, subject.ID, MaterialInput{Title: "Old notes"}, &Upload{Name: "old.txt", Data: []byte("old")})
	if err != nil {
		t.Fatalf("UploadMaterial() error = %v", err)
	}
	f.advance(time.Minute)
	f.enroll(t, student, subject)
	f.advance(time.Minute)
	fresh, err := f.svc.UploadMaterial(ctx, teacher, subject.ID, MaterialInput{Title: "New notes"}, nil)
	if err != nil {
		t.Fatalf("UploadMaterial() error = %v", err)
	}

	all, err := f.svc.SubjectMaterials(ctx, teacher, subject.ID)
	if err != nil || len(all) != 2 {
		t.Fatalf("teacher SubjectMaterials() = %d items, err %v", len(all), err)
	}
	visible, err := f.svc.SubjectMaterials(ctx, student, subject.ID)
	if err != nil {
		t.Fatalf("student SubjectMaterials() error = %v", err)
	}
	if len(visible) != 1 || visible[0].ID != fresh.ID {
		t.Fatalf("expected only the material published after enrollment, got %+v", visible)
	}

	if _, err := f.svc.MarkMaterialViewed(ctx, f.register(t, "stranger", domain.RoleStudent), old.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected unenrolled view to be forbidden, got %v", err)
	}

	if err := f.svc.DeleteMaterial(ctx, teacher, old.ID); err != nil {
		t.Fatalf("DeleteMaterial() error = %v", err)
	}
	if exists, _ := f.objects.ObjectExists(ctx, old.FileKey); exists {
		t.Fatalf("expected material file %s to be removed", old.FileKey)
	}
}

func TestDeleteSubjectRemovesStoredFiles(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	teacher := f.register(t, "teacher", domain.RoleTeacher)
	student := f.register(t, "student", domain.RoleStudent)
	subject := f.subject(t, teacher, "Sculpture")
	keep := f.subject(t, teacher, "Pottery")
	f.enroll(t, student, subject)

	assignment, err := f.svc.CreateAssignment(ctx, teacher, subject.ID, AssignmentInput{
		Title:       "Clay study",
		Description: "model a hand",
		DueDate:     f.now.Add(72 * time.Hour),
	}, &Upload{Name: "brief.pdf", Data: []byte("brief")})
	if err != nil {
		t.Fatalf("CreateAssignment() error = %v", err)
	}
	submission, err := f.svc.Submit(ctx, student, assignment.ID, SubmissionInput{}, &Upload{Name: "hand.jpg", Data: []byte("photo")})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	material, err := f.svc.UploadMaterial(ctx, teacher, subject.ID, MaterialInput{Title: "Tools"}, &Upload{Name: "tools.txt", Data: []byte("tools")})
	if err != nil {
		t.Fatalf("UploadMaterial() error = %v", err)
	}
	other, err := f.svc.UploadMaterial(ctx, teacher, keep.ID, MaterialInput{Title: "Kilns"}, &Upload{Name: "kilns.txt", Data: []byte("kilns")})
	if err != nil {
		t.Fatalf("UploadMaterial() error = %v", err)
	}

	if err := f.svc.DeleteSubject(ctx, teacher, subject.ID); err != nil {
		t.Fatalf("DeleteSubject() error = %v", err)
	}

	for _, key := range []string{assignment.AttachmentKey, submission.FileKey, material.FileKey} {
		if key == "" {
			t.Fatal("expected every upload to be stored under a key")
		}
		if exists, _ := f.objects.ObjectExists(ctx, key); exists {
			t.Fatalf("expected %s to be removed with the subject", key)
		}
	}
	if exists, _ := f.objects.ObjectExists(ctx, other.FileKey); !exists {
		t.Fatalf("expected %s of another subject to survive", other.FileKey)
	}
}

func TestMaterialInputRejectsBadURL(t *testing.T) {
	f := newFixture(t, nil)
	teacher := f.register(t, "teacher", domain.RoleTeacher)
	subject := f.subject(t, teacher, "Film")

	_, err := f.svc.UploadMaterial(context.Background(), teacher, subject.ID, MaterialInput{Title: "Trailer", VideoURL: "not a url"}, nil)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if _, ok := verr.Fields["video_url"]; !ok {
		t.Fatalf("expected video_url error, got %v", verr.Fields)
	}
}

func TestAssignmentSubmissionsTabs(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	teacher := f.register(t, "teacher", domain.RoleTeacher)
	alice := f.register(t, "first", domain.RoleStudent)
	bob := f.register(t, "second", domain.RoleStudent)
	subject := f.subject(t, teacher, "Logic")
	f.enroll(t, alice, subject)
	f.enroll(t, bob, subject)
	a := f.assignment(t, teacher, subject, "Proofs", 72*time.Hour)

	first, err := f.svc.Submit(ctx, alice, a.ID, SubmissionInput{Answer: longAnswer()}, nil)
	if err != nil {
		t.Fatalf("Submit(first) error = %v", err)
	}
	f.advance(time.Minute)
	if _, err := f.svc.Submit(ctx, bob, a.ID, SubmissionInput{Answer: longAnswer()}, nil); err != nil {
		t.Fatalf("Submit(second) error = %v", err)
	}

	list, err := f.svc.AssignmentSubmissions(ctx, teacher, a.ID, "", "")
	if err != nil {
		t.Fatalf("AssignmentSubmissions() error = %v", err)
	}
	if list.Tab != TabNotGraded || list.NotGradedCount != 2 || list.GradedCount != 0 {
		t.Fatalf("unexpected list %+v", list)
	}
	if list.Items[0].Submission.ID != first.ID || list.Items[0].StudentUsername != "first" {
		t.Fatalf("expected earliest submission first, got %+v", list.Items[0])
	}

	if _, err := f.svc.Grade(ctx, teacher, first.ID, GradeInput{Grade: 75}); err != nil {
		t.Fatalf("Grade() error = %v", err)
	}
	list, err = f.svc.AssignmentSubmissions(ctx, teacher, a.ID, TabGraded, "")
	if err != nil {
		t.Fatalf("AssignmentSubmissions(graded) error = %v", err)
	}
	if list.GradedCount != 1 || len(list.Items) != 1 || list.Items[0].Submission.ID != first.ID {
		t.Fatalf("unexpected graded list %+v", list)
	}

	if _, err := f.svc.AssignmentSubmissions(ctx, alice, a.ID, "", ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected student listing to be forbidden, got %v", err)
	}
}

func TestStudentDashboardFlagsUrgentSubjects(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	teacher := f.register(t, "teacher", domain.RoleTeacher)
	student := f.register(t, "student", domain.RoleStudent)
	urgent := f.subject(t, teacher, "Urgent")
	calm := f.subject(t, teacher, "Calm")
	f.subject(t, teacher, "Not enrolled")
	f.enroll(t, student, urgent)
	f.enroll(t, student, calm)

	f.assignment(t, teacher, urgent, "Tonight", 12*time.Hour)
	f.assignment(t, teacher, urgent, "Tomorrow", 36*time.Hour)
	submitted := f.assignment(t, teacher, urgent, "Already done", 6*time.Hour)
	f.assignment(t, teacher, calm, "Next week", 7*24*time.Hour)
	if _, err := f.svc.Submit(ctx, student, submitted.ID, SubmissionInput{Answer: longAnswer()}, nil); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	dash, err := f.svc.StudentDashboard(ctx, student, "")
	if err != nil {
		t.Fatalf("StudentDashboard() error = %v", err)
	}
	if dash.AvailableSubjects != 1 {
		t.Fatalf("expected 1 available subject, got %d", dash.AvailableSubjects)
	}
	if len(dash.Enrollments) != 2 {
		t.Fatalf("expected 2 enrollments, got %d", len(dash.Enrollments))
	}
	if len(dash.Urgent) != 1 {
		t.Fatalf("expected 1 urgent subject, got %+v", dash.Urgent)
	}
	got := dash.Urgent[0]
	if got.SubjectID != urgent.ID || got.TotalCount != 2 || got.VeryUrgentCount != 1 {
		t.Fatalf("unexpected urgent entry %+v", got)
	}
}

func TestSetRoleAndActive(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	admin := domain.User{ID: "root", Username: "root", IsSuperuser: true, IsActive: true}
	user := f.register(t, "member", domain.RoleStudent)

	if _, err := f.svc.SetRole(ctx, user, user.ID, domain.RoleTeacher); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected student SetRole to be forbidden, got %v", err)
	}
	if _, err := f.svc.SetRole(ctx, admin, user.ID, domain.RoleAdmin); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected admin role on non-superuser to be invalid, got %v", err)
	}
	updated, err := f.svc.SetRole(ctx, admin, user.ID, "Teacher")
	if err != nil {
		t.Fatalf("SetRole() error = %v", err)
	}
	if updated.Role != domain.RoleTeacher {
		t.Fatalf("expected teacher role, got %q", updated.Role)
	}

	if _, err := f.svc.SetActive(ctx, admin, admin.ID, false); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected self deactivation to be invalid, got %v", err)
	}
	deactivated, err := f.svc.SetActive(ctx, admin, user.ID, false)
	if err != nil || deactivated.IsActive {
		t.Fatalf("SetActive() = %+v, %v", deactivated, err)
	}
	if _, err := f.svc.Authenticate(ctx, LoginInput{Username: "member", Password: "correct-horse"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected deactivated login to fail, got %v", err)
	}
}
