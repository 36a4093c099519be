package api

import (
	"net/http"
	"strconv"

	"github.com/dunamismax/smartlearn/internal/domain"
	"github.com/dunamismax/smartlearn/internal/learning"
)

func (s *Server) handleCreateSubject(w http.ResponseWriter, r *http.Request, actor domain.User) {
	var req learning.SubjectInput
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	subject, err := s.service.CreateSubject(r.Context(), actor, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSubjectView(subject))
}

func (s *Server) handleUpdateSubject(w http.ResponseWriter, r *http.Request, actor domain.User) {
	var req learning.SubjectInput
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	subject, err := s.service.UpdateSubject(r.Context(), actor, r.PathValue("id"), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSubjectView(subject))
}

func (s *Server) handleDeleteSubject(w http.ResponseWriter, r *http.Request, actor domain.User) {
	if err := s.service.DeleteSubject(r.Context(), actor, r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSubject(w http.ResponseWriter, r *http.Request, _ domain.User) {
	subject, err := s.service.Subject(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSubjectView(subject))
}

func (s *Server) handleTeacherSubjects(w http.ResponseWriter, r *http.Request, actor domain.User) {
	result, err := s.service.TeacherSubjects(r.Context(), actor, r.URL.Query().Get("page"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": newSummaryViews(result.Items),
		"page":  newPageView(result.Page),
		"stats": map[string]int{
			"total_students":   result.Stats.TotalStudents,
			"active_courses":   result.Stats.ActiveCourses,
			"average_students": result.Stats.AverageStudents,
		},
	})
}

func (s *Server) handleSubjectOverview(w http.ResponseWriter, r *http.Request, actor domain.User) {
	q := r.URL.Query()
	overview, err := s.service.SubjectOverview(r.Context(), actor, r.PathValue("id"), q.Get("assignments_page"), q.Get("students_page"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	students := make([]map[string]any, 0, len(overview.Students))
	for _, st := range overview.Students {
		students = append(students, map[string]any{
			"id":            st.Student.ID,
			"username":      st.Student.Username,
			"display_name":  st.Student.DisplayName(),
			"date_enrolled": st.Enrollment.DateEnrolled,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"subject":                      newSubjectView(overview.Subject),
		"assignments":                  newAssignmentViews(overview.Assignments),
		"assignments_page":             newPageView(overview.AssignmentsPage),
		"students":                     students,
		"students_page":                newPageView(overview.StudentsPage),
		"materials":                    newMaterialViews(overview.Materials),
		"total_assignments":            overview.TotalAssignments,
		"assignments_with_submissions": overview.AssignmentsWithSubmissions,
	})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request, actor domain.User) {
	q := r.URL.Query()
	catalog, err := s.service.Catalog(r.Context(), actor, learning.CatalogParams{
		Search:    q.Get("search"),
		Available: queryBool(r, "available"),
		Popular:   queryBool(r, "popular"),
		Page:      q.Get("page"),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	items := newSummaryViews(catalog.Items)
	for i := range items {
		enrolled := catalog.Enrolled[items[i].ID]
		items[i].Enrolled = &enrolled
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"page":  newPageView(catalog.Page),
	})
}

func (s *Server) handlePopular(w http.ResponseWriter, r *http.Request, _ domain.User) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	subjects, err := s.service.Popular(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": newSummaryViews(subjects)})
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request, actor domain.User) {
	enrollment, created, err := s.service.Enroll(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{
		"subject_id":    enrollment.SubjectID,
		"date_enrolled": enrollment.DateEnrolled,
		"created":       created,
	})
}

func (s *Server) handleUnenroll(w http.ResponseWriter, r *http.Request, actor domain.User) {
	if err := s.service.Unenroll(r.Context(), actor, r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEnrollments(w http.ResponseWriter, r *http.Request, actor domain.User) {
	items, page, err := s.service.Enrollments(r.Context(), actor, r.URL.Query().Get("page"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": newEnrollmentViews(items),
		"page":  newPageView(page),
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, actor domain.User) {
	dash, err := s.service.StudentDashboard(r.Context(), actor, r.URL.Query().Get("page"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	urgent := make([]map[string]any, 0, len(dash.Urgent))
	for _, u := range dash.Urgent {
		urgent = append(urgent, map[string]any{
			"subject_id":        u.SubjectID,
			"subject_title":     u.SubjectTitle,
			"total_count":       u.TotalCount,
			"very_urgent_count": u.VeryUrgentCount,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enrollments":        newEnrollmentViews(dash.Enrollments),
		"page":               newPageView(dash.Page),
		"available_subjects": dash.AvailableSubjects,
		"urgent":             urgent,
	})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request, actor domain.User) {
	progress, err := s.service.Progress(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newProgressView(progress))
}
