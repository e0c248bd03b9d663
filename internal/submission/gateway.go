// Package submission sends assignment documents to the backend and reads
// back either the generated questions or a job to poll.
package submission

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"Sahayak/internal/domain"
	"Sahayak/internal/infrastructure/transport"
	"Sahayak/internal/normalize"
)

const (
	submitPath = "/assignments"
	statusPath = "/assignments/"
)

var (
	jobIDKeys  = []string{"assignmentId", "jobId", "assignment_id", "job_id"}
	resultKeys = []string{"generatedQuestions", "questions", "results"}
)

// Sender is the transport surface the gateway needs.
type Sender interface {
	Send(ctx context.Context, method, path string, body any, opts ...transport.RequestOption) (*transport.Response, error)
}

// OutcomeKind tags a submission outcome.
type OutcomeKind int

const (
	OutcomeImmediate OutcomeKind = iota + 1
	OutcomePending
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeImmediate:
		return "immediate"
	case OutcomePending:
		return "pending"
	default:
		return "unknown"
	}
}

// Outcome is either Immediate (Questions set) or Pending (JobID set).
type Outcome struct {
	Kind         OutcomeKind
	JobID        string
	AssignmentID string
	TeacherID    string
	Questions    []domain.Question
}

// Gateway submits documents and fetches job status.
type Gateway struct {
	sender Sender
	logger *slog.Logger
}

// NewGateway wires a sender, normally the "assignments" transport client.
func NewGateway(sender Sender, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{sender: sender, logger: logger}
}

type submitPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Deadline    string `json:"deadline"`
	File        string `json:"file"`
}

// Submit encodes the resource and posts it. Transport and backend errors are
// returned as-is; a response with neither a job nor questions is a
// *MalformedResponseError.
func (g *Gateway) Submit(ctx context.Context, res domain.Resource, meta domain.Metadata) (Outcome, error) {
	payload := submitPayload{
		Title:       meta.Title,
		Description: meta.Description,
		Deadline:    meta.Deadline.UTC().Format(time.RFC3339),
		File:        DataURL(res.Filename, res.Content),
	}

	g.logger.Info("submit assignment", "filename", res.Filename, "bytes", len(res.Content), "title", meta.Title)

	resp, err := g.sender.Send(ctx, http.MethodPost, submitPath, payload)
	if err != nil {
		return Outcome{}, fmt.Errorf("submit assignment: %w", err)
	}

	outcome, err := ParseSubmitResponse(resp.Body)
	if err != nil {
		g.logger.Warn("unrecognized submit response", "error", err, "bytes", len(resp.Body))
		return Outcome{}, err
	}

	g.logger.Info("submit accepted", "outcome", outcome.Kind.String(), "job_id", outcome.JobID, "questions", len(outcome.Questions))
	return outcome, nil
}

// FetchStatus reads one status report for jobID.
func (g *Gateway) FetchStatus(ctx context.Context, jobID string) (domain.StatusReport, error) {
	resp, err := g.sender.Send(ctx, http.MethodGet, statusPath+url.PathEscape(jobID), nil)
	if err != nil {
		return domain.StatusReport{}, err
	}
	return ParseStatusResponse(jobID, resp.Body)
}

// ParseSubmitResponse interprets a submit answer.
func ParseSubmitResponse(body []byte) (Outcome, error) {
	doc, err := decodeObject(body)
	if err != nil {
		return Outcome{}, &MalformedResponseError{Reason: err.Error()}
	}
	inner := envelopeBody(doc)

	teacherID := firstString(doc, "teacher_id", "teacherId")
	if teacherID == "" && inner != nil {
		teacherID = firstString(inner, "teacher_id", "teacherId")
	}

	for _, m := range candidates(doc, inner) {
		status, _ := m["status"].(string)
		if !strings.EqualFold(status, string(domain.JobProcessing)) {
			continue
		}
		if id := firstString(m, jobIDKeys...); id != "" {
			return Outcome{Kind: OutcomePending, JobID: id, AssignmentID: id, TeacherID: teacherID}, nil
		}
	}

	for _, m := range candidates(doc, inner) {
		for _, key := range resultKeys {
			v, present := m[key]
			if !present || v == nil {
				continue
			}
			entries, ok := normalize.Entries(v)
			if !ok {
				continue
			}
			if len(entries) == 0 {
				return Outcome{}, &MalformedResponseError{Reason: "no questions generated from the document"}
			}
			return Outcome{
				Kind:         OutcomeImmediate,
				AssignmentID: firstString(doc, "assignmentId", "assignment_id"),
				TeacherID:    teacherID,
				Questions:    normalize.Normalize(entries),
			}, nil
		}
	}

	return Outcome{}, &MalformedResponseError{Reason: "response has neither a job id nor a question list"}
}

// ParseStatusResponse decodes a status answer. An unknown or missing status
// is reported as processing so the poller keeps waiting.
func ParseStatusResponse(jobID string, body []byte) (domain.StatusReport, error) {
	doc, err := decodeObject(body)
	if err != nil {
		return domain.StatusReport{}, &MalformedResponseError{Reason: err.Error()}
	}
	if inner := envelopeBody(doc); inner != nil && doc["status"] == nil {
		doc = inner
	}

	report := domain.StatusReport{
		JobID:        jobID,
		Status:       domain.JobStatus(strings.ToLower(firstString(doc, "status"))),
		ErrorMessage: firstString(doc, "error_message", "errorMessage", "error"),
		TeacherID:    firstString(doc, "teacher_id", "teacherId"),
	}
	if report.Status == "" {
		report.Status = domain.JobProcessing
	}
	for _, key := range append([]string{"questions"}, resultKeys...) {
		if entries, ok := normalize.Entries(doc[key]); ok && len(entries) > 0 {
			report.Questions = entries
			break
		}
	}
	return report, nil
}

// DataURL encodes content the way the backend expects uploaded files.
func DataURL(filename string, content []byte) string {
	return "data:" + MimeType(filename) + ";base64," + base64.StdEncoding.EncodeToString(content)
}

// MimeType guesses the document type from its extension.
func MimeType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		return mt
	}
	return "application/octet-stream"
}

// decodeObject accepts an object or a JSON string that holds one.
func decodeObject(body []byte) (map[string]any, error) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("invalid json: %v", err)
	}
	if s, ok := v.(string); ok {
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			return nil, fmt.Errorf("invalid json string: %v", err)
		}
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a json object, got %T", v)
	}
	return m, nil
}

// envelopeBody unwraps a proxy-style {"body": ...} envelope.
func envelopeBody(doc map[string]any) map[string]any {
	switch b := doc["body"].(type) {
	case map[string]any:
		return b
	case string:
		var inner map[string]any
		if err := json.Unmarshal([]byte(b), &inner); err == nil {
			return inner
		}
	}
	return nil
}

func candidates(doc, inner map[string]any) []map[string]any {
	if inner == nil {
		return []map[string]any{doc}
	}
	return []map[string]any{doc, inner}
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
