package domain

import (
	"strings"
	"time"
)

const (
	MinAnswerLength = 200
	MinGrade        = 1.0

	UrgentWindow   = 24 * time.Hour
	DueSoonWindow  = 48 * time.Hour
	VisibleHorizon = 90 * 24 * time.Hour
)

type Assignment struct {
	ID            string
	SubjectID     string
	TeacherID     string
	Title         string
	Description   string
	DueDate       time.Time
	AttachmentKey string
	CreatedAt     time.Time
}

func (a Assignment) IsOverdue(now time.Time) bool {
	return a.DueDate.Before(now)
}

func (a Assignment) IsUrgent(now time.Time) bool {
	return a.DueDate.After(now) && a.DueDate.Sub(now) < UrgentWindow
}

// DueWithin reports whether the assignment is not yet overdue and due no
// later than now+window.
func (a Assignment) DueWithin(now time.Time, window time.Duration) bool {
	return a.DueDate.After(now) && !a.DueDate.After(now.Add(window))
}

type Submission struct {
	ID           string
	AssignmentID string
	StudentID    string
	SubmittedAt  time.Time
	FileKey      string
	Comment      string
	Answer       string
	Grade        *float64
	Feedback     string
}

func (s Submission) IsGraded() bool {
	return s.Grade != nil
}

// HasContent reports whether the submission carries a file or a written
// answer long enough to be accepted.
func (s Submission) HasContent() bool {
	if s.FileKey != "" {
		return true
	}
	return len([]rune(strings.TrimSpace(s.Answer))) >= MinAnswerLength
}

type ClassMaterial struct {
	ID           string
	SubjectID    string
	TeacherID    string
	Title        string
	Description  string
	FileKey      string
	VideoURL     string
	ExternalLink string
	CreatedAt    time.Time
}

type MaterialView struct {
	StudentID  string
	MaterialID string
	SubjectID  string
	ViewedAt   time.Time
}

const (
	TabPending   = "pending"
	TabSubmitted = "submitted"
	TabOverdue   = "overdue"
)

// AssignmentStatus pairs an assignment with the viewing student's submission.
type AssignmentStatus struct {
	Assignment
	Submission *Submission
	Overdue    bool
	Urgent     bool
}

type AssignmentBoard struct {
	Pending   []AssignmentStatus
	Submitted []AssignmentStatus
	Overdue   []AssignmentStatus
}

// Categorize splits assignments into pending, submitted and overdue buckets
// the way a student sees them.
func Categorize(assignments []Assignment, submissions map[string]Submission, now time.Time) AssignmentBoard {
	var board AssignmentBoard
	for _, a := range assignments {
		status := AssignmentStatus{
			Assignment: a,
			Overdue:    a.IsOverdue(now),
			Urgent:     a.IsUrgent(now),
		}
		if sub, ok := submissions[a.ID]; ok {
			sub := sub
			status.Submission = &sub
		}

		switch {
		case status.Submission != nil:
			board.Submitted = append(board.Submitted, status)
		case status.Overdue:
			board.Overdue = append(board.Overdue, status)
		default:
			board.Pending = append(board.Pending, status)
		}
	}
	return board
}

func (b AssignmentBoard) Tab(name string) []AssignmentStatus {
	switch name {
	case TabSubmitted:
		return b.Submitted
	case TabOverdue:
		return b.Overdue
	default:
		return b.Pending
	}
}

type UrgentSubject struct {
	SubjectID       string
	SubjectTitle    string
	TotalCount      int
	VeryUrgentCount int
}
