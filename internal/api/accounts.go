package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/dunamismax/smartlearn/internal/domain"
	"github.com/dunamismax/smartlearn/internal/learning"
)

const pictureField = "profile_picture"

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      userView  `json:"user"`
}

func (s *Server) issueToken(w http.ResponseWriter, status int, user domain.User) {
	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, status, tokenResponse{Token: token, ExpiresAt: expiresAt, User: newUserView(user)})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req learning.RegisterInput
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	user, err := s.service.Register(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.issueToken(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req learning.LoginInput
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	user, err := s.service.Authenticate(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.issueToken(w, http.StatusOK, user)
}

func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request, actor domain.User) {
	writeJSON(w, http.StatusOK, newUserView(actor))
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request, actor domain.User) {
	var req learning.ProfileInput
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	user, err := s.service.UpdateProfile(r.Context(), actor, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserView(user))
}

func (s *Server) handleUploadPicture(w http.ResponseWriter, r *http.Request, actor domain.User) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		badRequest(w, errors.New("expected a multipart form with a profile_picture file"))
		return
	}
	upload, err := s.formFile(r, pictureField)
	if err != nil {
		badRequest(w, err)
		return
	}
	if upload == nil {
		badRequest(w, errors.New("profile_picture file is required"))
		return
	}

	pic, err := s.service.UploadProfilePicture(r.Context(), actor, upload.Name, upload.Data)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"key":          pic.Key,
		"content_type": pic.ContentType,
		"bytes":        pic.Bytes,
		"normalized":   pic.Normalized,
		"width":        pic.Width,
		"height":       pic.Height,
		"quality":      pic.Quality,
	})
}

func (s *Server) handlePictureURL(w http.ResponseWriter, r *http.Request, actor domain.User) {
	url, err := s.service.ProfilePictureURL(r.Context(), actor.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *Server) handleSetRole(w http.ResponseWriter, r *http.Request, actor domain.User) {
	var req struct {
		Role string `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	user, err := s.service.SetRole(r.Context(), actor, r.PathValue("id"), req.Role)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserView(user))
}

func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request, actor domain.User) {
	var req struct {
		IsActive *bool `json:"is_active"`
	}
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	if req.IsActive == nil {
		badRequest(w, errors.New("is_active is required"))
		return
	}
	user, err := s.service.SetActive(r.Context(), actor, r.PathValue("id"), *req.IsActive)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserView(user))
}
