package learning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dunamismax/smartlearn/internal/access"
	"github.com/dunamismax/smartlearn/internal/domain"
	"github.com/dunamismax/smartlearn/internal/id"
	"github.com/dunamismax/smartlearn/internal/queue"
)

const (
	TabGraded    = "graded"
	TabNotGraded = "not_graded"
)

type AssignmentInput struct {
	Title       string    `json:"title" validate:"required,notblank,max=255"`
	Description string    `json:"description" validate:"required,notblank"`
	DueDate     time.Time `json:"due_date" validate:"required"`
}

type SubmissionInput struct {
	Comment string `json:"comment" validate:"max=2000"`
	Answer  string `json:"answer"`
}

type GradeInput struct {
	Grade    float64 `json:"grade" validate:"gte=1"`
	Feedback string  `json:"feedback" validate:"max=5000"`
}

type MaterialInput struct {
	Title        string `json:"title" validate:"required,notblank,max=255"`
	Description  string `json:"description" validate:"max=5000"`
	VideoURL     string `json:"video_url" validate:"omitempty,url"`
	ExternalLink string `json:"external_link" validate:"omitempty,url"`
}

// StudentSubjectView is what an enrolled student sees for one subject.
type StudentSubjectView struct {
	Subject   domain.Subject
	Tab       string
	Items     []domain.AssignmentStatus
	Page      domain.Page
	Pending   int
	Submitted int
	Overdue   int
	Materials []domain.ClassMaterial
}

type SubmissionEntry struct {
	Submission      domain.Submission
	StudentUsername string
	StudentName     string
}

type SubmissionList struct {
	Assignment     domain.Assignment
	Tab            string
	Items          []SubmissionEntry
	Page           domain.Page
	GradedCount    int
	NotGradedCount int
}

func (s *Service) CreateAssignment(ctx context.Context, actor domain.User, subjectID string, in AssignmentInput, attachment *Upload) (domain.Assignment, error) {
	if err := access.Require(actor, access.ManageCoursework); err != nil {
		return domain.Assignment{}, err
	}
	if err := s.validate.Struct(in); err != nil {
		return domain.Assignment{}, err
	}

	subject, err := s.loadSubject(ctx, subjectID)
	if err != nil {
		return domain.Assignment{}, err
	}
	if err := access.RequireSubjectOwner(actor, subject); err != nil {
		return domain.Assignment{}, err
	}

	assignmentID := id.New()
	key, err := s.storeUpload(ctx, assignmentPrefix, assignmentID, attachment)
	if err != nil {
		return domain.Assignment{}, err
	}

	assignment := domain.Assignment{
		ID:            assignmentID,
		SubjectID:     subject.ID,
		TeacherID:     actor.ID,
		Title:         strings.TrimSpace(in.Title),
		Description:   strings.TrimSpace(in.Description),
		DueDate:       in.DueDate.UTC(),
		AttachmentKey: key,
		CreatedAt:     s.clock(),
	}
	if err := s.store.CreateAssignment(ctx, assignment); err != nil {
		s.removeObject(ctx, key)
		return domain.Assignment{}, fmt.Errorf("create assignment: %w", err)
	}
	return assignment, nil
}

func (s *Service) Assignment(ctx context.Context, actor domain.User, assignmentID string) (domain.Assignment, error) {
	assignment, err := s.loadAssignment(ctx, assignmentID)
	if err != nil {
		return domain.Assignment{}, err
	}
	if access.OwnsAssignment(actor, assignment) {
		return assignment, nil
	}
	if _, err := s.enrollmentOf(ctx, actor.ID, assignment.SubjectID); err != nil {
		return domain.Assignment{}, err
	}
	return assignment, nil
}

// StudentSubject categorizes the assignments a student can see into
// pending, submitted and overdue tabs. Only assignments created after the
// student enrolled and due within the visible horizon are shown.
func (s *Service) StudentSubject(ctx context.Context, actor domain.User, subjectID, tab, page string) (StudentSubjectView, error) {
	subject, err := s.loadSubject(ctx, subjectID)
	if err != nil {
		return StudentSubjectView{}, err
	}
	enrollment, err := s.enrollmentOf(ctx, actor.ID, subject.ID)
	if err != nil {
		return StudentSubjectView{}, err
	}

	now := s.clock()
	all, err := s.store.ListAssignmentsBySubject(ctx, subject.ID)
	if err != nil {
		return StudentSubjectView{}, fmt.Errorf("list assignments: %w", err)
	}
	visible := make([]domain.Assignment, 0, len(all))
	for _, a := range all {
		if a.CreatedAt.Before(enrollment.DateEnrolled) {
			continue
		}
		if a.DueDate.After(now.Add(domain.VisibleHorizon)) {
			continue
		}
		visible = append(visible, a)
	}

	submissions, err := s.submissionsByAssignment(ctx, actor.ID)
	if err != nil {
		return StudentSubjectView{}, err
	}
	board := domain.Categorize(visible, submissions, now)

	materials, err := s.visibleMaterials(ctx, subject.ID, enrollment)
	if err != nil {
		return StudentSubjectView{}, err
	}

	switch tab {
	case domain.TabSubmitted, domain.TabOverdue:
	default:
		tab = domain.TabPending
	}
	items, pg := domain.PageSlice(board.Tab(tab), page, assignmentsPageSize)

	return StudentSubjectView{
		Subject:   subject,
		Tab:       tab,
		Items:     items,
		Page:      pg,
		Pending:   len(board.Pending),
		Submitted: len(board.Submitted),
		Overdue:   len(board.Overdue),
		Materials: materials,
	}, nil
}

func (s *Service) submissionsByAssignment(ctx context.Context, studentID string) (map[string]domain.Submission, error) {
	subs, err := s.store.ListSubmissionsByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list student submissions: %w", err)
	}
	out := make(map[string]domain.Submission, len(subs))
	for _, sub := range subs {
		out[sub.AssignmentID] = sub
	}
	return out, nil
}

// Submit records a student's one and only submission for an assignment.
func (s *Service) Submit(ctx context.Context, actor domain.User, assignmentID string, in SubmissionInput, file *Upload) (domain.Submission, error) {
	if err := access.Require(actor, access.Submit); err != nil {
		return domain.Submission{}, err
	}
	if err := s.validate.Struct(in); err != nil {
		return domain.Submission{}, err
	}

	assignment, err := s.loadAssignment(ctx, assignmentID)
	if err != nil {
		return domain.Submission{}, err
	}
	if _, err := s.enrollmentOf(ctx, actor.ID, assignment.SubjectID); err != nil {
		return domain.Submission{}, err
	}

	existing, err := s.submissionsByAssignment(ctx, actor.ID)
	if err != nil {
		return domain.Submission{}, err
	}
	if _, ok := existing[assignment.ID]; ok {
		return domain.Submission{}, fmt.Errorf("assignment already submitted: %w", ErrConflict)
	}

	submission := domain.Submission{
		ID:           id.New(),
		AssignmentID: assignment.ID,
		StudentID:    actor.ID,
		SubmittedAt:  s.clock(),
		Comment:      strings.TrimSpace(in.Comment),
		Answer:       strings.TrimSpace(in.Answer),
	}
	hasFile := file != nil && len(file.Data) > 0
	if !hasFile && !submission.HasContent() {
		return domain.Submission{}, invalid("answer", fmt.Sprintf("provide a file or a written answer of at least %d characters", domain.MinAnswerLength))
	}

	key, err := s.storeUpload(ctx, submissionPrefix, assignment.ID, file)
	if err != nil {
		return domain.Submission{}, err
	}
	submission.FileKey = key

	if err := s.store.CreateSubmission(ctx, submission); err != nil {
		s.removeObject(ctx, key)
		if errors.Is(err, ErrConflict) {
			return domain.Submission{}, fmt.Errorf("assignment already submitted: %w", ErrConflict)
		}
		return domain.Submission{}, fmt.Errorf("create submission: %w", err)
	}

	s.logger.Printf("assignment submitted assignment_id=%s student_id=%s file=%t", assignment.ID, actor.ID, key != "")
	s.requestProgress(ctx, actor.ID, assignment.SubjectID, queue.ReasonSubmission)
	return submission, nil
}

func (s *Service) Grade(ctx context.Context, actor domain.User, submissionID string, in GradeInput) (domain.Submission, error) {
	if err := access.Require(actor, access.Grade); err != nil {
		return domain.Submission{}, err
	}
	if err := s.validate.Struct(in); err != nil {
		return domain.Submission{}, err
	}

	submission, ok, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("load submission: %w", err)
	}
	if !ok {
		return domain.Submission{}, notFound("submission", submissionID)
	}
	assignment, err := s.loadAssignment(ctx, submission.AssignmentID)
	if err != nil {
		return domain.Submission{}, err
	}
	if !access.OwnsAssignment(actor, assignment) {
		return domain.Submission{}, forbidden("only the assignment's teacher can grade it")
	}

	graded, err := s.store.GradeSubmission(ctx, submission.ID, in.Grade, strings.TrimSpace(in.Feedback))
	if err != nil {
		return domain.Submission{}, fmt.Errorf("grade submission: %w", err)
	}

	s.logger.Printf("submission graded submission_id=%s grade=%.1f by=%s", graded.ID, in.Grade, actor.ID)
	s.requestProgress(ctx, graded.StudentID, assignment.SubjectID, queue.ReasonGrade)
	return graded, nil
}

// AssignmentSubmissions lists submissions earliest first, split into graded
// and not graded tabs.
func (s *Service) AssignmentSubmissions(ctx context.Context, actor domain.User, assignmentID, tab, page string) (SubmissionList, error) {
	assignment, err := s.loadAssignment(ctx, assignmentID)
	if err != nil {
		return SubmissionList{}, err
	}
	if !access.OwnsAssignment(actor, assignment) {
		return SubmissionList{}, forbidden("only the assignment's teacher can list submissions")
	}

	subs, err := s.store.ListSubmissionsByAssignment(ctx, assignment.ID)
	if err != nil {
		return SubmissionList{}, fmt.Errorf("list submissions: %w", err)
	}
	var graded, notGraded []domain.Submission
	for _, sub := range subs {
		if sub.IsGraded() {
			graded = append(graded, sub)
		} else {
			notGraded = append(notGraded, sub)
		}
	}

	selected := notGraded
	if tab == TabGraded {
		selected = graded
	} else {
		tab = TabNotGraded
	}
	visible, pg := domain.PageSlice(selected, page, submissionsPageSize)

	items := make([]SubmissionEntry, 0, len(visible))
	for _, sub := range visible {
		entry := SubmissionEntry{Submission: sub}
		if student, ok, err := s.store.GetUser(ctx, sub.StudentID); err == nil && ok {
			entry.StudentUsername = student.Username
			entry.StudentName = student.DisplayName()
		}
		items = append(items, entry)
	}

	return SubmissionList{
		Assignment:     assignment,
		Tab:            tab,
		Items:          items,
		Page:           pg,
		GradedCount:    len(graded),
		NotGradedCount: len(notGraded),
	}, nil
}

func (s *Service) UploadMaterial(ctx context.Context, actor domain.User, subjectID string, in MaterialInput, file *Upload) (domain.ClassMaterial, error) {
	if err := access.Require(actor, access.ManageCoursework); err != nil {
		return domain.ClassMaterial{}, err
	}
	if err := s.validate.Struct(in); err != nil {
		return domain.ClassMaterial{}, err
	}

	subject, err := s.loadSubject(ctx, subjectID)
	if err != nil {
		return domain.ClassMaterial{}, err
	}
	if err := access.RequireSubjectOwner(actor, subject); err != nil {
		return domain.ClassMaterial{}, err
	}

	key, err := s.storeUpload(ctx, materialPrefix, subject.ID, file)
	if err != nil {
		return domain.ClassMaterial{}, err
	}

	material := domain.ClassMaterial{
		ID:           id.New(),
		SubjectID:    subject.ID,
		TeacherID:    actor.ID,
		Title:        strings.TrimSpace(in.Title),
		Description:  strings.TrimSpace(in.Description),
		FileKey:      key,
		VideoURL:     strings.TrimSpace(in.VideoURL),
		ExternalLink: strings.TrimSpace(in.ExternalLink),
		CreatedAt:    s.clock(),
	}
	if err := s.store.CreateMaterial(ctx, material); err != nil {
		s.removeObject(ctx, key)
		return domain.ClassMaterial{}, fmt.Errorf("create material: %w", err)
	}
	return material, nil
}

// UpdateMaterial edits a material. A new file replaces the stored one.
func (s *Service) UpdateMaterial(ctx context.Context, actor domain.User, materialID string, in MaterialInput, file *Upload) (domain.ClassMaterial, error) {
	if err := access.Require(actor, access.ManageCoursework); err != nil {
		return domain.ClassMaterial{}, err
	}
	if err := s.validate.Struct(in); err != nil {
		return domain.ClassMaterial{}, err
	}

	material, err := s.loadMaterial(ctx, materialID)
	if err != nil {
		return domain.ClassMaterial{}, err
	}
	if !access.OwnsMaterial(actor, material) {
		return domain.ClassMaterial{}, forbidden("only the material's teacher can edit it")
	}

	key, err := s.storeUpload(ctx, materialPrefix, material.SubjectID, file)
	if err != nil {
		return domain.ClassMaterial{}, err
	}
	previous := material.FileKey
	if key != "" {
		material.FileKey = key
	}
	material.Title = strings.TrimSpace(in.Title)
	material.Description = strings.TrimSpace(in.Description)
	material.VideoURL = strings.TrimSpace(in.VideoURL)
	material.ExternalLink = strings.TrimSpace(in.ExternalLink)

	if err := s.store.UpdateMaterial(ctx, material); err != nil {
		s.removeObject(ctx, key)
		return domain.ClassMaterial{}, fmt.Errorf("update material: %w", err)
	}
	if key != "" && previous != key {
		s.removeObject(ctx, previous)
	}
	return material, nil
}

func (s *Service) DeleteMaterial(ctx context.Context, actor domain.User, materialID string) error {
	if err := access.Require(actor, access.ManageCoursework); err != nil {
		return err
	}
	material, err := s.loadMaterial(ctx, materialID)
	if err != nil {
		return err
	}
	if !access.OwnsMaterial(actor, material) {
		return forbidden("only the material's teacher can delete it")
	}
	if err := s.store.DeleteMaterial(ctx, material.ID); err != nil {
		return fmt.Errorf("delete material: %w", err)
	}
	s.removeObject(ctx, material.FileKey)
	return nil
}

// SubjectMaterials returns every material to the subject's teacher and the
// materials published since enrollment to an enrolled student.
func (s *Service) SubjectMaterials(ctx context.Context, actor domain.User, subjectID string) ([]domain.ClassMaterial, error) {
	subject, err := s.loadSubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if access.OwnsSubject(actor, subject) {
		materials, err := s.store.ListMaterialsBySubject(ctx, subject.ID)
		if err != nil {
			return nil, fmt.Errorf("list materials: %w", err)
		}
		return materials, nil
	}

	enrollment, err := s.enrollmentOf(ctx, actor.ID, subject.ID)
	if err != nil {
		return nil, err
	}
	return s.visibleMaterials(ctx, subject.ID, enrollment)
}

func (s *Service) visibleMaterials(ctx context.Context, subjectID string, enrollment domain.Enrollment) ([]domain.ClassMaterial, error) {
	all, err := s.store.ListMaterialsBySubject(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	out := make([]domain.ClassMaterial, 0, len(all))
	for _, m := range all {
		if !m.CreatedAt.Before(enrollment.DateEnrolled) {
			out = append(out, m)
		}
	}
	return out, nil
}

// MarkMaterialViewed records the first time an enrolled student opens a
// material. Repeat views are not counted.
func (s *Service) MarkMaterialViewed(ctx context.Context, actor domain.User, materialID string) (bool, error) {
	if err := access.Require(actor, access.ViewMaterials); err != nil {
		return false, err
	}
	material, err := s.loadMaterial(ctx, materialID)
	if err != nil {
		return false, err
	}
	if _, err := s.enrollmentOf(ctx, actor.ID, material.SubjectID); err != nil {
		return false, err
	}

	created, err := s.store.RecordMaterialView(ctx, domain.MaterialView{
		StudentID:  actor.ID,
		MaterialID: material.ID,
		SubjectID:  material.SubjectID,
		ViewedAt:   s.clock(),
	})
	if err != nil {
		return false, fmt.Errorf("record material view: %w", err)
	}
	if created {
		s.requestProgress(ctx, actor.ID, material.SubjectID, queue.ReasonMaterialView)
	}
	return created, nil
}

// AttachmentURL returns a download link for a stored attachment key.
func (s *Service) AttachmentURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	return s.objects.PresignedGetURL(ctx, key, s.urlExpiry)
}
