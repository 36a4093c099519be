package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/dunamismax/smartlearn/internal/domain"
)

type MemoryStore struct {
	mu          sync.RWMutex
	users       map[string]domain.User
	subjects    map[string]domain.Subject
	enrollments map[enrollmentKey]domain.Enrollment
	assignments map[string]domain.Assignment
	submissions map[string]domain.Submission
	materials   map[string]domain.ClassMaterial
	views       map[viewKey]domain.MaterialView
	progress    map[enrollmentKey]domain.CourseProgress
}

type enrollmentKey struct {
	studentID string
	subjectID string
}

type viewKey struct {
	studentID  string
	materialID string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[string]domain.User),
		subjects:    make(map[string]domain.Subject),
		enrollments: make(map[enrollmentKey]domain.Enrollment),
		assignments: make(map[string]domain.Assignment),
		submissions: make(map[string]domain.Submission),
		materials:   make(map[string]domain.ClassMaterial),
		views:       make(map[viewKey]domain.MaterialView),
		progress:    make(map[enrollmentKey]domain.CourseProgress),
	}
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) CreateUser(_ context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return ErrConflict
	}
	for _, existing := range s.users {
		if strings.EqualFold(existing.Username, user.Username) {
			return ErrConflict
		}
		if user.Email != "" && strings.EqualFold(existing.Email, user.Email) {
			return ErrConflict
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (domain.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	return user, ok, nil
}

func (s *MemoryStore) GetUserByUsername(_ context.Context, username string) (domain.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if strings.EqualFold(user.Username, username) {
			return user, true, nil
		}
	}
	return domain.User{}, false, nil
}

func (s *MemoryStore) UpdateUser(_ context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return ErrNotFound
	}
	s.users[user.ID] = user
	return nil
}

func (s *MemoryStore) CreateSubject(_ context.Context, subject domain.Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subjects[subject.ID]; ok {
		return ErrConflict
	}
	s.subjects[subject.ID] = subject
	return nil
}

func (s *MemoryStore) GetSubject(_ context.Context, id string) (domain.Subject, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subject, ok := s.subjects[id]
	return subject, ok, nil
}

func (s *MemoryStore) UpdateSubject(_ context.Context, subject domain.Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subjects[subject.ID]; !ok {
		return ErrNotFound
	}
	s.subjects[subject.ID] = subject
	return nil
}

// DeleteSubject removes the subject and everything hanging off it.
func (s *MemoryStore) DeleteSubject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subjects[id]; !ok {
		return ErrNotFound
	}
	delete(s.subjects, id)

	for key := range s.enrollments {
		if key.subjectID == id {
			delete(s.enrollments, key)
		}
	}
	for key := range s.progress {
		if key.subjectID == id {
			delete(s.progress, key)
		}
	}
	for aid, a := range s.assignments {
		if a.SubjectID != id {
			continue
		}
		delete(s.assignments, aid)
		for sid, sub := range s.submissions {
			if sub.AssignmentID == aid {
				delete(s.submissions, sid)
			}
		}
	}
	for mid, m := range s.materials {
		if m.SubjectID == id {
			delete(s.materials, mid)
		}
	}
	for key, v := range s.views {
		if v.SubjectID == id {
			delete(s.views, key)
		}
	}
	return nil
}

func (s *MemoryStore) ListSubjectsByTeacher(_ context.Context, teacherID string) ([]domain.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Subject, 0)
	for _, subject := range s.subjects {
		if subject.TeacherID == teacherID {
			out = append(out, subject)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) SearchCatalog(_ context.Context, query domain.CatalogQuery) ([]domain.SubjectSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(query.Search))
	out := make([]domain.SubjectSummary, 0)
	for _, subject := range s.subjects {
		if query.AvailableFor != "" {
			if _, enrolled := s.enrollments[enrollmentKey{query.AvailableFor, subject.ID}]; enrolled {
				continue
			}
		}
		summary := s.summarizeLocked(subject)
		if needle != "" && !matchesCatalog(summary, s.users[subject.TeacherID], needle) {
			continue
		}
		out = append(out, summary)
	}

	sortSummaries(out, query.Popular)
	return out, nil
}

func (s *MemoryStore) PopularSubjects(_ context.Context, limit int) ([]domain.SubjectSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.SubjectSummary, 0, len(s.subjects))
	for _, subject := range s.subjects {
		out = append(out, s.summarizeLocked(subject))
	}
	sortSummaries(out, true)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) CountSubjects(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subjects), nil
}

func (s *MemoryStore) summarizeLocked(subject domain.Subject) domain.SubjectSummary {
	teacher := s.users[subject.TeacherID]
	count := 0
	for key := range s.enrollments {
		if key.subjectID == subject.ID {
			count++
		}
	}
	return domain.SubjectSummary{
		Subject:         subject,
		TeacherUsername: teacher.Username,
		TeacherName:     teacher.DisplayName(),
		EnrollmentCount: count,
	}
}

func matchesCatalog(summary domain.SubjectSummary, teacher domain.User, needle string) bool {
	fields := []string{
		summary.Title,
		summary.Description,
		teacher.Username,
		teacher.FirstName,
		teacher.LastName,
	}
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func sortSummaries(items []domain.SubjectSummary, popular bool) {
	sort.SliceStable(items, func(i, j int) bool {
		if popular && items[i].EnrollmentCount != items[j].EnrollmentCount {
			return items[i].EnrollmentCount > items[j].EnrollmentCount
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}

func (s *MemoryStore) Enroll(_ context.Context, enrollment domain.Enrollment) (domain.Enrollment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subjects[enrollment.SubjectID]; !ok {
		return domain.Enrollment{}, false, ErrNotFound
	}
	key := enrollmentKey{enrollment.StudentID, enrollment.SubjectID}
	if existing, ok := s.enrollments[key]; ok {
		return existing, false, nil
	}
	s.enrollments[key] = enrollment
	return enrollment, true, nil
}

func (s *MemoryStore) Unenroll(_ context.Context, studentID, subjectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := enrollmentKey{studentID, subjectID}
	if _, ok := s.enrollments[key]; !ok {
		return ErrNotFound
	}
	delete(s.enrollments, key)
	delete(s.progress, key)
	return nil
}

func (s *MemoryStore) GetEnrollment(_ context.Context, studentID, subjectID string) (domain.Enrollment, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	enrollment, ok := s.enrollments[enrollmentKey{studentID, subjectID}]
	return enrollment, ok, nil
}

func (s *MemoryStore) ListEnrollmentsByStudent(_ context.Context, studentID string) ([]domain.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Enrollment, 0)
	for key, enrollment := range s.enrollments {
		if key.studentID == studentID {
			out = append(out, enrollment)
		}
	}
	sortEnrollments(out)
	return out, nil
}

func (s *MemoryStore) ListEnrollmentsBySubject(_ context.Context, subjectID string) ([]domain.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Enrollment, 0)
	for key, enrollment := range s.enrollments {
		if key.subjectID == subjectID {
			out = append(out, enrollment)
		}
	}
	sortEnrollments(out)
	return out, nil
}

func (s *MemoryStore) CountEnrollmentsByTeacher(_ context.Context, teacherID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for key := range s.enrollments {
		if s.subjects[key.subjectID].TeacherID == teacherID {
			count++
		}
	}
	return count, nil
}

func sortEnrollments(items []domain.Enrollment) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].DateEnrolled.After(items[j].DateEnrolled)
	})
}

func (s *MemoryStore) CreateAssignment(_ context.Context, assignment domain.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subjects[assignment.SubjectID]; !ok {
		return ErrNotFound
	}
	if _, ok := s.assignments[assignment.ID]; ok {
		return ErrConflict
	}
	s.assignments[assignment.ID] = assignment
	return nil
}

func (s *MemoryStore) GetAssignment(_ context.Context, id string) (domain.Assignment, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	assignment, ok := s.assignments[id]
	return assignment, ok, nil
}

func (s *MemoryStore) ListAssignmentsBySubject(_ context.Context, subjectID string) ([]domain.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Assignment, 0)
	for _, assignment := range s.assignments {
		if assignment.SubjectID == subjectID {
			out = append(out, assignment)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) CreateSubmission(_ context.Context, submission domain.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.assignments[submission.AssignmentID]; !ok {
		return ErrNotFound
	}
	for _, existing := range s.submissions {
		if existing.AssignmentID == submission.AssignmentID && existing.StudentID == submission.StudentID {
			return ErrConflict
		}
	}
	s.submissions[submission.ID] = submission
	return nil
}

func (s *MemoryStore) GetSubmission(_ context.Context, id string) (domain.Submission, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	submission, ok := s.submissions[id]
	return submission, ok, nil
}

func (s *MemoryStore) ListSubmissionsByAssignment(_ context.Context, assignmentID string) ([]domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Submission, 0)
	for _, submission := range s.submissions {
		if submission.AssignmentID == assignmentID {
			out = append(out, submission)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out, nil
}

func (s *MemoryStore) ListSubmissionsByStudent(_ context.Context, studentID string) ([]domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Submission, 0)
	for _, submission := range s.submissions {
		if submission.StudentID == studentID {
			out = append(out, submission)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out, nil
}

func (s *MemoryStore) GradeSubmission(_ context.Context, id string, grade float64, feedback string) (domain.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	submission, ok := s.submissions[id]
	if !ok {
		return domain.Submission{}, ErrNotFound
	}
	submission.Grade = &grade
	submission.Feedback = feedback
	s.submissions[id] = submission
	return submission, nil
}

func (s *MemoryStore) CreateMaterial(_ context.Context, material domain.ClassMaterial) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subjects[material.SubjectID]; !ok {
		return ErrNotFound
	}
	if _, ok := s.materials[material.ID]; ok {
		return ErrConflict
	}
	s.materials[material.ID] = material
	return nil
}

func (s *MemoryStore) GetMaterial(_ context.Context, id string) (domain.ClassMaterial, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	material, ok := s.materials[id]
	return material, ok, nil
}

func (s *MemoryStore) UpdateMaterial(_ context.Context, material domain.ClassMaterial) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.materials[material.ID]; !ok {
		return ErrNotFound
	}
	s.materials[material.ID] = material
	return nil
}

func (s *MemoryStore) DeleteMaterial(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.materials[id]; !ok {
		return ErrNotFound
	}
	delete(s.materials, id)
	for key := range s.views {
		if key.materialID == id {
			delete(s.views, key)
		}
	}
	return nil
}

func (s *MemoryStore) ListMaterialsBySubject(_ context.Context, subjectID string) ([]domain.ClassMaterial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ClassMaterial, 0)
	for _, material := range s.materials {
		if material.SubjectID == subjectID {
			out = append(out, material)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) RecordMaterialView(_ context.Context, view domain.MaterialView) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.materials[view.MaterialID]; !ok {
		return false, ErrNotFound
	}
	key := viewKey{view.StudentID, view.MaterialID}
	if _, ok := s.views[key]; ok {
		return false, nil
	}
	s.views[key] = view
	return true, nil
}

func (s *MemoryStore) CountMaterialViews(_ context.Context, studentID, subjectID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for key, view := range s.views {
		if key.studentID == studentID && view.SubjectID == subjectID {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) SaveProgress(_ context.Context, progress domain.CourseProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress[enrollmentKey{progress.StudentID, progress.SubjectID}] = progress
	return nil
}

func (s *MemoryStore) GetProgress(_ context.Context, studentID, subjectID string) (domain.CourseProgress, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	progress, ok := s.progress[enrollmentKey{studentID, subjectID}]
	return progress, ok, nil
}

var _ Store = (*MemoryStore)(nil)
