package domain

import "time"

const (
	DefaultPassingGrade = 50.0

	assignmentWeight = 0.7
	materialWeight   = 0.3
)

type CourseProgress struct {
	StudentID            string
	SubjectID            string
	AssignmentsCompleted int
	TotalAssignments     int
	MaterialsViewed      int
	TotalMaterials       int
	IsCompleted          bool
	CompletionDate       *time.Time
	Percentage           int
	LastActivity         time.Time
}

// Calculate recomputes Percentage as a 70/30 weighted blend of assignment
// and material completion and flips the completed flag when crossing 100.
func (p *CourseProgress) Calculate(now time.Time) {
	var assignmentPct, materialPct float64
	if p.TotalAssignments > 0 {
		assignmentPct = float64(p.AssignmentsCompleted) / float64(p.TotalAssignments) * 100
	}
	if p.TotalMaterials > 0 {
		materialPct = float64(p.MaterialsViewed) / float64(p.TotalMaterials) * 100
	}

	p.Percentage = int(assignmentPct*assignmentWeight + materialPct*materialWeight)

	switch {
	case p.Percentage >= 100 && !p.IsCompleted:
		p.IsCompleted = true
		completed := now
		p.CompletionDate = &completed
	case p.Percentage < 100 && p.IsCompleted:
		p.IsCompleted = false
		p.CompletionDate = nil
	}
	p.LastActivity = now
}

type AssignmentProgress struct {
	StudentID    string
	AssignmentID string
	SubjectID    string
	HasSubmitted bool
	IsGraded     bool
	Grade        *float64
	IsPassed     bool
	PassingGrade float64
	SubmittedAt  *time.Time
	GradedAt     *time.Time
}

func NewAssignmentProgress(a Assignment, sub *Submission) AssignmentProgress {
	p := AssignmentProgress{
		AssignmentID: a.ID,
		SubjectID:    a.SubjectID,
		PassingGrade: DefaultPassingGrade,
	}
	if sub != nil {
		p.StudentID = sub.StudentID
		p.HasSubmitted = true
		submittedAt := sub.SubmittedAt
		p.SubmittedAt = &submittedAt
		if sub.Grade != nil {
			p.IsGraded = true
			grade := *sub.Grade
			p.Grade = &grade
		}
	}
	p.UpdateStatus()
	return p
}

func (p *AssignmentProgress) UpdateStatus() {
	p.IsPassed = p.Grade != nil && *p.Grade > 0 && *p.Grade >= p.PassingGrade
}
