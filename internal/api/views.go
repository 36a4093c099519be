package api

import (
	"time"

	"github.com/dunamismax/smartlearn/internal/domain"
	"github.com/dunamismax/smartlearn/internal/learning"
)

type userView struct {
	ID                string             `json:"id"`
	Username          string             `json:"username"`
	Email             string             `json:"email,omitempty"`
	Role              string             `json:"role"`
	IsActive          bool               `json:"is_active"`
	DisplayName       string             `json:"display_name"`
	FirstName         string             `json:"first_name,omitempty"`
	LastName          string             `json:"last_name,omitempty"`
	Bio               string             `json:"bio,omitempty"`
	Profession        string             `json:"profession,omitempty"`
	PhoneNumber       string             `json:"phone_number,omitempty"`
	Education         []domain.Education `json:"education,omitempty"`
	Expertise         []string           `json:"expertise,omitempty"`
	Interests         []string           `json:"interests,omitempty"`
	HasProfilePicture bool               `json:"has_profile_picture"`
	CreatedAt         time.Time          `json:"created_at"`
}

func newUserView(u domain.User) userView {
	return userView{
		ID:                u.ID,
		Username:          u.Username,
		Email:             u.Email,
		Role:              u.Role,
		IsActive:          u.IsActive,
		DisplayName:       u.DisplayName(),
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		Bio:               u.Bio,
		Profession:        u.Profession,
		PhoneNumber:       u.PhoneNumber,
		Education:         u.Education,
		Expertise:         u.Expertise,
		Interests:         u.Interests,
		HasProfilePicture: u.ProfilePictureKey != "",
		CreatedAt:         u.CreatedAt,
	}
}

type pageView struct {
	Number     int  `json:"number"`
	Size       int  `json:"size"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_previous"`
}

func newPageView(p domain.Page) pageView {
	return pageView{
		Number:     p.Number,
		Size:       p.Size,
		Total:      p.Total,
		TotalPages: p.Pages,
		HasNext:    p.Number < p.Pages,
		HasPrev:    p.Number > 1,
	}
}

type subjectView struct {
	ID              string    `json:"id"`
	TeacherID       string    `json:"teacher_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	TeacherUsername string    `json:"teacher_username,omitempty"`
	TeacherName     string    `json:"teacher_name,omitempty"`
	EnrollmentCount *int      `json:"enrollment_count,omitempty"`
	Enrolled        *bool     `json:"enrolled,omitempty"`
}

func newSubjectView(s domain.Subject) subjectView {
	return subjectView{
		ID:          s.ID,
		TeacherID:   s.TeacherID,
		Title:       s.Title,
		Description: s.Description,
		CreatedAt:   s.CreatedAt,
	}
}

func newSummaryView(s domain.SubjectSummary) subjectView {
	v := newSubjectView(s.Subject)
	v.TeacherUsername = s.TeacherUsername
	v.TeacherName = s.TeacherName
	count := s.EnrollmentCount
	v.EnrollmentCount = &count
	return v
}

func newSummaryViews(items []domain.SubjectSummary) []subjectView {
	out := make([]subjectView, 0, len(items))
	for _, item := range items {
		out = append(out, newSummaryView(item))
	}
	return out
}

type progressView struct {
	Percentage           int        `json:"percentage"`
	AssignmentsCompleted int        `json:"assignments_completed"`
	TotalAssignments     int        `json:"total_assignments"`
	MaterialsViewed      int        `json:"materials_viewed"`
	TotalMaterials       int        `json:"total_materials"`
	IsCompleted          bool       `json:"is_completed"`
	CompletionDate       *time.Time `json:"completion_date,omitempty"`
	LastActivity         time.Time  `json:"last_activity"`
}

func newProgressView(p domain.CourseProgress) progressView {
	return progressView{
		Percentage:           p.Percentage,
		AssignmentsCompleted: p.AssignmentsCompleted,
		TotalAssignments:     p.TotalAssignments,
		MaterialsViewed:      p.MaterialsViewed,
		TotalMaterials:       p.TotalMaterials,
		IsCompleted:          p.IsCompleted,
		CompletionDate:       p.CompletionDate,
		LastActivity:         p.LastActivity,
	}
}

type enrollmentView struct {
	Subject      subjectView   `json:"subject"`
	DateEnrolled time.Time     `json:"date_enrolled"`
	Progress     *progressView `json:"progress,omitempty"`
}

func newEnrollmentViews(items []learning.EnrolledSubject) []enrollmentView {
	out := make([]enrollmentView, 0, len(items))
	for _, item := range items {
		v := enrollmentView{
			Subject:      newSubjectView(item.Subject),
			DateEnrolled: item.Enrollment.DateEnrolled,
		}
		if item.Progress != nil {
			p := newProgressView(*item.Progress)
			v.Progress = &p
		}
		out = append(out, v)
	}
	return out
}

type assignmentView struct {
	ID            string    `json:"id"`
	SubjectID     string    `json:"subject_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	DueDate       time.Time `json:"due_date"`
	HasAttachment bool      `json:"has_attachment"`
	CreatedAt     time.Time `json:"created_at"`
}

func newAssignmentView(a domain.Assignment) assignmentView {
	return assignmentView{
		ID:            a.ID,
		SubjectID:     a.SubjectID,
		Title:         a.Title,
		Description:   a.Description,
		DueDate:       a.DueDate,
		HasAttachment: a.AttachmentKey != "",
		CreatedAt:     a.CreatedAt,
	}
}

func newAssignmentViews(items []domain.Assignment) []assignmentView {
	out := make([]assignmentView, 0, len(items))
	for _, item := range items {
		out = append(out, newAssignmentView(item))
	}
	return out
}

type assignmentStatusView struct {
	assignmentView
	Overdue    bool            `json:"overdue"`
	Urgent     bool            `json:"urgent"`
	Submission *submissionView `json:"submission,omitempty"`
}

type submissionView struct {
	ID              string    `json:"id"`
	AssignmentID    string    `json:"assignment_id"`
	StudentID       string    `json:"student_id"`
	StudentUsername string    `json:"student_username,omitempty"`
	StudentName     string    `json:"student_name,omitempty"`
	SubmittedAt     time.Time `json:"submitted_at"`
	HasFile         bool      `json:"has_file"`
	Comment         string    `json:"comment,omitempty"`
	Answer          string    `json:"answer,omitempty"`
	Grade           *float64  `json:"grade,omitempty"`
	Feedback        string    `json:"feedback,omitempty"`
}

func newSubmissionView(s domain.Submission) submissionView {
	return submissionView{
		ID:           s.ID,
		AssignmentID: s.AssignmentID,
		StudentID:    s.StudentID,
		SubmittedAt:  s.SubmittedAt,
		HasFile:      s.FileKey != "",
		Comment:      s.Comment,
		Answer:       s.Answer,
		Grade:        s.Grade,
		Feedback:     s.Feedback,
	}
}

type materialView struct {
	ID           string    `json:"id"`
	SubjectID    string    `json:"subject_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	HasFile      bool      `json:"has_file"`
	VideoURL     string    `json:"video_url,omitempty"`
	ExternalLink string    `json:"external_link,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func newMaterialView(m domain.ClassMaterial) materialView {
	return materialView{
		ID:           m.ID,
		SubjectID:    m.SubjectID,
		Title:        m.Title,
		Description:  m.Description,
		HasFile:      m.FileKey != "",
		VideoURL:     m.VideoURL,
		ExternalLink: m.ExternalLink,
		CreatedAt:    m.CreatedAt,
	}
}

func newMaterialViews(items []domain.ClassMaterial) []materialView {
	out := make([]materialView, 0, len(items))
	for _, item := range items {
		out = append(out, newMaterialView(item))
	}
	return out
}
