package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/smartlearn/internal/auth"
	"github.com/dunamismax/smartlearn/internal/domain"
	"github.com/dunamismax/smartlearn/internal/learning"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const defaultMaxUploadSize = 10 << 20

type TokenIssuer interface {
	Issue(user domain.User) (string, time.Time, error)
	Verify(token string) (string, error)
}

type Options struct {
	Logger        *log.Logger
	Service       *learning.Service
	Tokens        TokenIssuer
	Metrics       *Metrics
	Tracer        trace.Tracer
	RateLimiter   RateLimiter
	MaxUploadSize int64
}

type Server struct {
	logger      *log.Logger
	service     *learning.Service
	tokens      TokenIssuer
	metrics     *Metrics
	tracer      trace.Tracer
	rateLimiter RateLimiter
	maxUpload   int64
	mux         *http.ServeMux
}

func NewServer(opts Options) (*Server, error) {
	if opts.Service == nil {
		return nil, fmt.Errorf("service is required")
	}
	if opts.Tokens == nil {
		return nil, fmt.Errorf("token issuer is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("smartlearn/api")
	}
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = defaultMaxUploadSize
	}

	s := &Server{
		logger:      opts.Logger,
		service:     opts.Service,
		tokens:      opts.Tokens,
		metrics:     opts.Metrics,
		tracer:      opts.Tracer,
		rateLimiter: opts.RateLimiter,
		maxUpload:   opts.MaxUploadSize,
		mux:         http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Handler wraps the routes in tracing, metrics and rate limiting, outermost
// first.
func (s *Server) Handler() http.Handler {
	return s.withTracing(s.metrics.withHTTPMetrics(s.withRateLimit(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())

	s.mux.HandleFunc("POST /v1/auth/register", s.handleRegister)
	s.mux.HandleFunc("POST /v1/auth/login", s.handleLogin)

	s.mux.HandleFunc("GET /v1/me", s.authed(s.handleMe))
	s.mux.HandleFunc("PATCH /v1/me", s.authed(s.handleUpdateProfile))
	s.mux.HandleFunc("PUT /v1/me/picture", s.authed(s.handleUploadPicture))
	s.mux.HandleFunc("GET /v1/me/picture", s.authed(s.handlePictureURL))
	s.mux.HandleFunc("GET /v1/me/dashboard", s.authed(s.handleDashboard))
	s.mux.HandleFunc("GET /v1/me/enrollments", s.authed(s.handleEnrollments))
	s.mux.HandleFunc("GET /v1/me/subjects", s.authed(s.handleTeacherSubjects))

	s.mux.HandleFunc("GET /v1/subjects", s.authed(s.handleCatalog))
	s.mux.HandleFunc("POST /v1/subjects", s.authed(s.handleCreateSubject))
	s.mux.HandleFunc("GET /v1/subjects/popular", s.authed(s.handlePopular))
	s.mux.HandleFunc("GET /v1/subjects/{id}", s.authed(s.handleSubject))
	s.mux.HandleFunc("PUT /v1/subjects/{id}", s.authed(s.handleUpdateSubject))
	s.mux.HandleFunc("DELETE /v1/subjects/{id}", s.authed(s.handleDeleteSubject))
	s.mux.HandleFunc("GET /v1/subjects/{id}/overview", s.authed(s.handleSubjectOverview))
	s.mux.HandleFunc("POST /v1/subjects/{id}/enrollment", s.authed(s.handleEnroll))
	s.mux.HandleFunc("DELETE /v1/subjects/{id}/enrollment", s.authed(s.handleUnenroll))
	s.mux.HandleFunc("GET /v1/subjects/{id}/progress", s.authed(s.handleProgress))
	s.mux.HandleFunc("GET /v1/subjects/{id}/assignments", s.authed(s.handleStudentSubject))
	s.mux.HandleFunc("POST /v1/subjects/{id}/assignments", s.authed(s.handleCreateAssignment))
	s.mux.HandleFunc("GET /v1/subjects/{id}/materials", s.authed(s.handleSubjectMaterials))
	s.mux.HandleFunc("POST /v1/subjects/{id}/materials", s.authed(s.handleUploadMaterial))

	s.mux.HandleFunc("GET /v1/assignments/{id}", s.authed(s.handleAssignment))
	s.mux.HandleFunc("GET /v1/assignments/{id}/attachment", s.authed(s.handleAssignmentAttachment))
	s.mux.HandleFunc("GET /v1/assignments/{id}/submissions", s.authed(s.handleAssignmentSubmissions))
	s.mux.HandleFunc("POST /v1/assignments/{id}/submissions", s.authed(s.handleSubmit))
	s.mux.HandleFunc("PUT /v1/submissions/{id}/grade", s.authed(s.handleGrade))

	s.mux.HandleFunc("PUT /v1/materials/{id}", s.authed(s.handleUpdateMaterial))
	s.mux.HandleFunc("DELETE /v1/materials/{id}", s.authed(s.handleDeleteMaterial))
	s.mux.HandleFunc("POST /v1/materials/{id}/views", s.authed(s.handleMaterialViewed))

	s.mux.HandleFunc("PUT /v1/admin/users/{id}/role", s.authed(s.handleSetRole))
	s.mux.HandleFunc("PUT /v1/admin/users/{id}/active", s.authed(s.handleSetActive))
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type authedHandler func(w http.ResponseWriter, r *http.Request, actor domain.User)

// authed resolves the bearer token to an active user before calling next.
func (s *Server) authed(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			return
		}
		userID, err := s.tokens.Verify(token)
		if err != nil {
			s.writeError(w, err)
			return
		}
		actor, err := s.service.User(r.Context(), userID)
		if err != nil {
			if errors.Is(err, learning.ErrNotFound) {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unknown account"})
				return
			}
			s.writeError(w, err)
			return
		}
		if !actor.IsActive {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "account deactivated"})
			return
		}
		next(w, r, actor)
	}
}

// callerID returns the user id carried by a valid bearer token, if any.
func (s *Server) callerID(r *http.Request) string {
	token, ok := auth.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		return ""
	}
	userID, err := s.tokens.Verify(token)
	if err != nil {
		return ""
	}
	return userID
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var verr *learning.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid input", "fields": verr.Fields})
	case errors.Is(err, learning.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, learning.ErrUnauthorized), errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
	case errors.Is(err, learning.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, learning.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, learning.ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, learning.ErrUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "object storage is unavailable"})
	default:
		s.logger.Printf("request failed err=%v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// decodeRequest reads a JSON body, or a multipart form whose "payload" field
// holds the JSON and whose fileField part holds an optional upload.
func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request, into any, fileField string) (*learning.Upload, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return nil, decodeJSON(r, into)
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		return nil, fmt.Errorf("invalid multipart body: %w", err)
	}
	if payload := r.FormValue("payload"); payload != "" {
		decoder := json.NewDecoder(strings.NewReader(payload))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(into); err != nil {
			return nil, fmt.Errorf("invalid JSON payload: %w", err)
		}
	}
	return s.formFile(r, fileField)
}

func (s *Server) formFile(r *http.Request, field string) (*learning.Upload, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", field, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", field, err)
	}
	return &learning.Upload{
		Name:        header.Filename,
		Data:        data,
		ContentType: header.Header.Get("Content-Type"),
	}, nil
}

func decodeJSON(r *http.Request, into any) error {
	const maxBodyBytes = 1 << 20
	limited := io.LimitReader(r.Body, maxBodyBytes)
	decoder := json.NewDecoder(limited)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON body: multiple JSON values are not allowed")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
}

func queryBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && v
}
