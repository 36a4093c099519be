package api

import (
	"net/http"

	"github.com/dunamismax/smartlearn/internal/domain"
	"github.com/dunamismax/smartlearn/internal/learning"
)

const (
	attachmentField = "attachment"
	fileField       = "file"
)

func (s *Server) handleCreateAssignment(w http.ResponseWriter, r *http.Request, actor domain.User) {
	var req learning.AssignmentInput
	upload, err := s.decodeRequest(w, r, &req, attachmentField)
	if err != nil {
		badRequest(w, err)
		return
	}
	assignment, err := s.service.CreateAssignment(r.Context(), actor, r.PathValue("id"), req, upload)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newAssignmentView(assignment))
}

func (s *Server) handleAssignment(w http.ResponseWriter, r *http.Request, actor domain.User) {
	assignment, err := s.service.Assignment(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAssignmentView(assignment))
}

func (s *Server) handleAssignmentAttachment(w http.ResponseWriter, r *http.Request, actor domain.User) {
	assignment, err := s.service.Assignment(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if assignment.AttachmentKey == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "assignment has no attachment"})
		return
	}
	url, err := s.service.AttachmentURL(r.Context(), assignment.AttachmentKey)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *Server) handleStudentSubject(w http.ResponseWriter, r *http.Request, actor domain.User) {
	q := r.URL.Query()
	view, err := s.service.StudentSubject(r.Context(), actor, r.PathValue("id"), q.Get("tab"), q.Get("page"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	items := make([]assignmentStatusView, 0, len(view.Items))
	for _, item := range view.Items {
		v := assignmentStatusView{
			assignmentView: newAssignmentView(item.Assignment),
			Overdue:        item.Overdue,
			Urgent:         item.Urgent,
		}
		if item.Submission != nil {
			sub := newSubmissionView(*item.Submission)
			v.Submission = &sub
		}
		items = append(items, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"subject": newSubjectView(view.Subject),
		"tab":     view.Tab,
		"items":   items,
		"page":    newPageView(view.Page),
		"counts": map[string]int{
			domain.TabPending:   view.Pending,
			domain.TabSubmitted: view.Submitted,
			domain.TabOverdue:   view.Overdue,
		},
		"materials": newMaterialViews(view.Materials),
	})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request, actor domain.User) {
	var req learning.SubmissionInput
	upload, err := s.decodeRequest(w, r, &req, fileField)
	if err != nil {
		badRequest(w, err)
		return
	}
	submission, err := s.service.Submit(r.Context(), actor, r.PathValue("id"), req, upload)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSubmissionView(submission))
}

func (s *Server) handleAssignmentSubmissions(w http.ResponseWriter, r *http.Request, actor domain.User) {
	q := r.URL.Query()
	list, err := s.service.AssignmentSubmissions(r.Context(), actor, r.PathValue("id"), q.Get("tab"), q.Get("page"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	items := make([]submissionView, 0, len(list.Items))
	for _, entry := range list.Items {
		v := newSubmissionView(entry.Submission)
		v.StudentUsername = entry.StudentUsername
		v.StudentName = entry.StudentName
		items = append(items, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"assignment": newAssignmentView(list.Assignment),
		"tab":        list.Tab,
		"items":      items,
		"page":       newPageView(list.Page),
		"counts": map[string]int{
			learning.TabGraded:    list.GradedCount,
			learning.TabNotGraded: list.NotGradedCount,
		},
	})
}

func (s *Server) handleGrade(w http.ResponseWriter, r *http.Request, actor domain.User) {
	var req learning.GradeInput
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	submission, err := s.service.Grade(r.Context(), actor, r.PathValue("id"), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSubmissionView(submission))
}

func (s *Server) handleSubjectMaterials(w http.ResponseWriter, r *http.Request, actor domain.User) {
	materials, err := s.service.SubjectMaterials(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": newMaterialViews(materials)})
}

func (s *Server) handleUploadMaterial(w http.ResponseWriter, r *http.Request, actor domain.User) {
	var req learning.MaterialInput
	upload, err := s.decodeRequest(w, r, &req, fileField)
	if err != nil {
		badRequest(w, err)
		return
	}
	material, err := s.service.UploadMaterial(r.Context(), actor, r.PathValue("id"), req, upload)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newMaterialView(material))
}

func (s *Server) handleUpdateMaterial(w http.ResponseWriter, r *http.Request, actor domain.User) {
	var req learning.MaterialInput
	upload, err := s.decodeRequest(w, r, &req, fileField)
	if err != nil {
		badRequest(w, err)
		return
	}
	material, err := s.service.UpdateMaterial(r.Context(), actor, r.PathValue("id"), req, upload)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newMaterialView(material))
}

func (s *Server) handleDeleteMaterial(w http.ResponseWriter, r *http.Request, actor domain.User) {
	if err := s.service.DeleteMaterial(r.Context(), actor, r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMaterialViewed(w http.ResponseWriter, r *http.Request, actor domain.User) {
	recorded, err := s.service.MarkMaterialViewed(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"recorded": recorded})
}
