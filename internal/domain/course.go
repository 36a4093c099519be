package domain

import "time"

const (
	MaxSubjectTitleLength    = 200
	MaxAssignmentTitleLength = 255
)

type Subject struct {
	ID          string
	TeacherID   string
	Title       string
	Description string
	CreatedAt   time.Time
}

type Enrollment struct {
	StudentID    string
	SubjectID    string
	DateEnrolled time.Time
}

// SubjectSummary is a subject joined with its teacher and enrollment count.
type SubjectSummary struct {
	Subject
	TeacherUsername string
	TeacherName     string
	EnrollmentCount int
}

type CatalogQuery struct {
	Search string
	// AvailableFor excludes subjects this student is already enrolled in.
	AvailableFor string
	Popular      bool
}

type TeacherStats struct {
	TotalStudents   int
	ActiveCourses   int
	AverageStudents int
}

func NewTeacherStats(totalStudents, activeCourses int) TeacherStats {
	stats := TeacherStats{TotalStudents: totalStudents, ActiveCourses: activeCourses}
	if activeCourses > 0 {
		stats.AverageStudents = totalStudents / activeCourses
	}
	return stats
}
