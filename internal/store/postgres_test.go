package store

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/dunamismax/smartlearn/internal/domain"
	"github.com/dunamismax/smartlearn/internal/id"
)

// openTestPostgres connects to SMARTLEARN_TEST_POSTGRES_DSN and skips the
// test when it is unset. Every row the test creates carries tag so runs can
// share a database.
func openTestPostgres(t *testing.T) (*PostgresStore, string) {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("SMARTLEARN_TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("SMARTLEARN_TEST_POSTGRES_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := NewPostgresStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}

	tag := "pgtest" + id.Token()
	t.Cleanup(func() {
		ctx := context.Background()
		_, _ = s.db.ExecContext(ctx, `DELETE FROM subjects WHERE title LIKE '%' || $1 || '%'`, tag)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM users WHERE username LIKE $1 || '%'`, tag)
		_ = s.Close()
	})
	return s, tag
}

func createPGUser(t *testing.T, s *PostgresStore, tag, name, role string) domain.User {
	t.Helper()
	now := time.Now().UTC()
	user := domain.User{
		ID:        id.New(),
		Username:  tag + name,
		Email:     tag + name + "@example.com",
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := user.SetPassword("correct-horse"); err != nil {
		t.Fatalf("SetPassword() error = %v", err)
	}
	if err := s.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser(%s) error = %v", name, err)
	}
	return user
}

func createPGSubject(t *testing.T, s *PostgresStore, teacher domain.User, title string, createdAt time.Time) domain.Subject {
	t.Helper()
	subject := domain.Subject{ID: id.New(), TeacherID: teacher.ID, Title: title, CreatedAt: createdAt}
	if err := s.CreateSubject(context.Background(), subject); err != nil {
		t.Fatalf("CreateSubject(%s) error = %v", title, err)
	}
	return subject
}

func taggedIDs(items []domain.SubjectSummary, tag string) []string {
	var out []string
	for _, item := range items {
		if strings.Contains(item.Title, tag) {
			out = append(out, item.ID)
		}
	}
	return out
}

func TestPostgresSearchCatalogEscapesWildcards(t *testing.T) {
	s, tag := openTestPostgres(t)
	ctx := context.Background()
	teacher := createPGUser(t, s, tag, "teacher", domain.RoleTeacher)
	base := time.Now().UTC().Truncate(time.Second)

	percent := createPGSubject(t, s, teacher, "100% Chemistry "+tag, base)
	createPGSubject(t, s, teacher, "1000 Chemistry "+tag, base.Add(time.Second))
	underscore := createPGSubject(t, s, teacher, "lab_notes "+tag, base.Add(2*time.Second))
	createPGSubject(t, s, teacher, "labXnotes "+tag, base.Add(3*time.Second))

	got, err := s.SearchCatalog(ctx, domain.CatalogQuery{Search: "100%"})
	if err != nil {
		t.Fatalf("SearchCatalog() error = %v", err)
	}
	if ids := taggedIDs(got, tag); len(ids) != 1 || ids[0] != percent.ID {
		t.Fatalf("expected %% to match literally, got %v", ids)
	}

	got, err = s.SearchCatalog(ctx, domain.CatalogQuery{Search: "LAB_NOTES"})
	if err != nil {
		t.Fatalf("SearchCatalog() error = %v", err)
	}
	if ids := taggedIDs(got, tag); len(ids) != 1 || ids[0] != underscore.ID {
		t.Fatalf("expected case-insensitive literal _ match, got %v", ids)
	}

	got, err = s.SearchCatalog(ctx, domain.CatalogQuery{Search: teacher.Username})
	if err != nil {
		t.Fatalf("SearchCatalog() error = %v", err)
	}
	if ids := taggedIDs(got, tag); len(ids) != 4 {
		t.Fatalf("expected teacher username to match all four subjects, got %v", ids)
	}
}

func TestPostgresSearchCatalogAvailableAndPopular(t *testing.T) {
	s, tag := openTestPostgres(t)
	ctx := context.Background()
	teacher := createPGUser(t, s, tag, "teacher", domain.RoleTeacher)
	sam := createPGUser(t, s, tag, "sam", domain.RoleStudent)
	kim := createPGUser(t, s, tag, "kim", domain.RoleStudent)
	base := time.Now().UTC().Truncate(time.Second)

	older := createPGSubject(t, s, teacher, "Geometry "+tag, base)
	newer := createPGSubject(t, s, teacher, "Algebra "+tag, base.Add(time.Minute))

	for _, student := range []domain.User{sam, kim} {
		if _, created, err := s.Enroll(ctx, domain.Enrollment{StudentID: student.ID, SubjectID: older.ID, DateEnrolled: base}); err != nil || !created {
			t.Fatalf("Enroll(%s) created=%v err=%v", student.Username, created, err)
		}
	}
	if _, created, err := s.Enroll(ctx, domain.Enrollment{StudentID: sam.ID, SubjectID: older.ID, DateEnrolled: base}); err != nil || created {
		t.Fatalf("expected repeat enrollment to be a no-op, created=%v err=%v", created, err)
	}

	got, err := s.SearchCatalog(ctx, domain.CatalogQuery{Search: tag})
	if err != nil {
		t.Fatalf("SearchCatalog() error = %v", err)
	}
	if ids := taggedIDs(got, tag); len(ids) != 2 || ids[0] != newer.ID {
		t.Fatalf("expected newest first by default, got %v", ids)
	}

	got, err = s.SearchCatalog(ctx, domain.CatalogQuery{Search: tag, Popular: true})
	if err != nil {
		t.Fatalf("SearchCatalog(popular) error = %v", err)
	}
	if ids := taggedIDs(got, tag); len(ids) != 2 || ids[0] != older.ID {
		t.Fatalf("expected most enrolled first, got %v", ids)
	}
	if got[0].EnrollmentCount != 2 {
		t.Fatalf("expected enrollment count 2, got %d", got[0].EnrollmentCount)
	}

	got, err = s.SearchCatalog(ctx, domain.CatalogQuery{Search: tag, AvailableFor: sam.ID})
	if err != nil {
		t.Fatalf("SearchCatalog(available) error = %v", err)
	}
	if ids := taggedIDs(got, tag); len(ids) != 1 || ids[0] != newer.ID {
		t.Fatalf("expected enrolled subject to be excluded, got %v", ids)
	}
}

func TestPostgresRecordMaterialViewOnce(t *testing.T) {
	s, tag := openTestPostgres(t)
	ctx := context.Background()
	teacher := createPGUser(t, s, tag, "teacher", domain.RoleTeacher)
	student := createPGUser(t, s, tag, "student", domain.RoleStudent)
	now := time.Now().UTC().Truncate(time.Second)
	subject := createPGSubject(t, s, teacher, "Optics "+tag, now)

	material := domain.ClassMaterial{ID: id.New(), SubjectID: subject.ID, TeacherID: teacher.ID, Title: "Lenses", CreatedAt: now}
	if err := s.CreateMaterial(ctx, material); err != nil {
		t.Fatalf("CreateMaterial() error = %v", err)
	}

	view := domain.MaterialView{StudentID: student.ID, MaterialID: material.ID, SubjectID: subject.ID, ViewedAt: now}
	created, err := s.RecordMaterialView(ctx, view)
	if err != nil || !created {
		t.Fatalf("first RecordMaterialView() created=%v err=%v", created, err)
	}
	view.ViewedAt = now.Add(time.Hour)
	created, err = s.RecordMaterialView(ctx, view)
	if err != nil || created {
		t.Fatalf("expected repeat view to be ignored, created=%v err=%v", created, err)
	}

	n, err := s.CountMaterialViews(ctx, student.ID, subject.ID)
	if err != nil {
		t.Fatalf("CountMaterialViews() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 view, got %d", n)
	}
}
