// Package sandbox is an in-process stand-in for the assignments and content
// backends. It serves the same routes and payload shapes so the client can be
// exercised locally and end to end.
package sandbox

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"Sahayak/internal/domain"
)

const maxUploadBytes = 25 << 20

// Options tune the simulated backend.
type Options struct {
	Secret    string
	Questions int

	// ProcessingPolls is how many status reads answer "processing" before
	// the job moves to pending_review.
	ProcessingPolls int

	// Immediate answers uploads with generated questions instead of a job id.
	Immediate bool
}

type job struct {
	id        string
	title     string
	teacherID string
	status    domain.JobStatus
	errMsg    string
	polls     int
	createdAt time.Time
	scheduled bool
}

type studentWork struct {
	id           string
	assignmentID string
	studentID    string
	size         int
	polls        int
}

// Server holds the simulated state.
type Server struct {
	opts     Options
	logger   *slog.Logger
	validate *validator.Validate

	mu      sync.Mutex
	jobs    map[string]*job
	work    map[string]*studentWork
	uploads map[string][]byte
}

// New builds a sandbox. Zero options get sensible defaults.
func New(opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ProcessingPolls < 0 {
		opts.ProcessingPolls = 0
	}
	if opts.Questions <= 0 {
		opts.Questions = 3
	}
	return &Server{
		opts:     opts,
		logger:   logger,
		validate: validator.New(),
		jobs:     make(map[string]*job),
		work:     make(map[string]*studentWork),
		uploads:  make(map[string][]byte),
	}
}

// Handler exposes the routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.logRequests)

	// Pre-signed uploads carry no bearer token.
	r.Put("/uploads/*", s.putUpload)

	r.Group(func(r chi.Router) {
		r.Use(requireToken(s.opts.Secret))

		r.Post("/assignments", s.createAssignment)
		r.Post("/assignments/schedule", s.scheduleAssignment)
		r.Get("/assignments/{assignmentId}", s.getAssignment)
		r.Post("/content/get-upload-url", s.uploadURL)
		r.Post("/submissions/upload", s.submitWork)
		r.Get("/submissions/{submissionId}", s.getSubmission)
	})

	return r
}

// Upload returns the bytes stored under key.
func (s *Server) Upload(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.uploads[key]
	return data, ok
}

// Scheduled reports whether an assignment was published.
func (s *Server) Scheduled(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	return ok && j.scheduled
}

type createRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Deadline    string `json:"deadline"`
	File        string `json:"file" validate:"required,startswith=data:"`
}

func (s *Server) createAssignment(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "title and a data URL file are required")
		return
	}
	content, err := decodeDataURL(req.File)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	claims := claimsFrom(r.Context())
	j := &job{
		id:        uuid.NewString(),
		title:     req.Title,
		teacherID: claims.UserID,
		status:    domain.JobProcessing,
		createdAt: time.Now(),
	}
	if len(content) == 0 {
		j.status = domain.JobFailed
		j.errMsg = "OCR error: document is empty"
	}

	s.mu.Lock()
	s.jobs[j.id] = j
	s.mu.Unlock()

	if s.opts.Immediate && j.status != domain.JobFailed {
		s.mu.Lock()
		j.status = domain.JobPendingReview
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"assignmentId":       j.id,
			"teacher_id":         j.teacherID,
			"generatedQuestions": camelQuestions(j.title, s.opts.Questions),
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":       string(domain.JobProcessing),
		"assignmentId": j.id,
		"teacher_id":   j.teacherID,
	})
}

func (s *Server) getAssignment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "assignmentId")

	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "assignment not found")
		return
	}
	if j.status == domain.JobProcessing {
		j.polls++
		if j.polls > s.opts.ProcessingPolls {
			j.status = domain.JobPendingReview
		}
	}
	snapshot := *j
	s.mu.Unlock()

	body := map[string]any{
		"assignment_id": snapshot.id,
		"status":        string(snapshot.status),
		"teacher_id":    snapshot.teacherID,
		"created_at":    snapshot.createdAt.UTC().Format(time.RFC3339),
	}
	switch {
	case snapshot.status == domain.JobFailed:
		body["error_message"] = snapshot.errMsg
	case snapshot.status.Succeeded():
		body["questions"] = snakeQuestions(snapshot.title, s.opts.Questions)
	}
	writeJSON(w, http.StatusOK, body)
}

type scheduleRequest struct {
	AssignmentID  string   `json:"assignment_id" validate:"required"`
	TeacherID     string   `json:"teacher_id" validate:"required"`
	DueDate       string   `json:"due_date" validate:"required"`
	Subject       string   `json:"subject"`
	ClassInfo     string   `json:"class_info"`
	StudentEmails []string `json:"student_emails" validate:"dive,email"`
}

func (s *Server) scheduleAssignment(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "assignment_id, teacher_id and due_date are required")
		return
	}

	s.mu.Lock()
	j, ok := s.jobs[req.AssignmentID]
	if ok {
		j.scheduled = true
		j.status = domain.JobCompleted
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "assignment not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"assignment_id":     req.AssignmentID,
		"students_notified": len(req.StudentEmails),
		"message":           fmt.Sprintf("Assignment scheduled for %s", req.ClassInfo),
	})
}

type uploadURLRequest struct {
	TeacherID   string `json:"teacherId"`
	FileName    string `json:"fileName" validate:"required"`
	ContentType string `json:"contentType"`
}

func (s *Server) uploadURL(w http.ResponseWriter, r *http.Request) {
	var req uploadURLRequest
	if err := readJSON(r, &req); err != nil || s.validate.Struct(req) != nil {
		writeError(w, http.StatusBadRequest, "fileName is required")
		return
	}
	teacher := req.TeacherID
	if teacher == "" {
		teacher = claimsFrom(r.Context()).UserID
	}
	key := fmt.Sprintf("content/%s/%s-%s", teacher, uuid.NewString(), strings.ReplaceAll(req.FileName, "/", "_"))

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"uploadUrl": fmt.Sprintf("%s://%s/uploads/%s", scheme, r.Host, key),
		"s3Key":     key,
	})
}

func (s *Server) putUpload(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read body")
		return
	}
	s.mu.Lock()
	s.uploads[key] = data
	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

// workMaxScore is the scale every sandbox submission is graded on.
const workMaxScore = 10

type submitWorkRequest struct {
	AssignmentID string `json:"assignmentId" validate:"required"`
	File         string `json:"file" validate:"required,startswith=data:"`
}

func (s *Server) submitWork(w http.ResponseWriter, r *http.Request) {
	var req submitWorkRequest
	if err := readJSON(r, &req); err != nil || s.validate.Struct(req) != nil {
		writeError(w, http.StatusBadRequest, "assignmentId and a data URL file are required")
		return
	}
	content, err := decodeDataURL(req.File)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sw := &studentWork{
		id:           uuid.NewString(),
		assignmentID: req.AssignmentID,
		studentID:    claimsFrom(r.Context()).UserID,
		size:         len(content),
	}
	s.mu.Lock()
	_, ok := s.jobs[req.AssignmentID]
	if ok {
		s.work[sw.id] = sw
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "assignment not found")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"submissionId": sw.id,
		"assignmentId": sw.assignmentID,
		"status":       string(domain.JobProcessing),
	})
}

// getSubmission grades a submission by its size once the processing polls
// are spent, so results are reproducible.
func (s *Server) getSubmission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "submissionId")

	s.mu.Lock()
	sw, ok := s.work[id]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "submission not found")
		return
	}
	sw.polls++
	graded := sw.polls > s.opts.ProcessingPolls
	snapshot := *sw
	s.mu.Unlock()

	body := map[string]any{
		"submission_id": snapshot.id,
		"assignment_id": snapshot.assignmentID,
		"student_id":    snapshot.studentID,
		"status":        string(domain.JobProcessing),
	}
	if graded {
		body["status"] = "graded"
		body["total_score"] = min(snapshot.size, workMaxScore)
		body["max_score"] = workMaxScore
		body["feedback"] = fmt.Sprintf("Graded %d bytes of work", snapshot.size)
	}
	writeJSON(w, http.StatusOK, body)
}

func decodeDataURL(value string) ([]byte, error) {
	_, payload, ok := strings.Cut(value, ";base64,")
	if !ok {
		return nil, fmt.Errorf("file must be a base64 data URL")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("file is not valid base64")
	}
	return data, nil
}

func snakeQuestions(title string, n int) []map[string]any {
	out := make([]map[string]any, n)
	for i := range out {
		out[i] = map[string]any{
			"question_number":  i + 1,
			"question_text":    fmt.Sprintf("%s: question %d", title, i+1),
			"suggested_answer": fmt.Sprintf("Answer %d", i+1),
			"max_score":        10,
		}
	}
	return out
}

func camelQuestions(title string, n int) []map[string]any {
	out := make([]map[string]any, n)
	for i := range out {
		out[i] = map[string]any{
			"questionId":      fmt.Sprintf("q%d", i+1),
			"questionText":    fmt.Sprintf("%s: question %d", title, i+1),
			"suggestedAnswer": fmt.Sprintf("Answer %d", i+1),
			"points":          "5",
		}
	}
	return out
}

func readJSON(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes*2)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.logger.Debug("sandbox request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}
