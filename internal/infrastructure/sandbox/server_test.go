package sandbox

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const testSecret = "sandbox-secret"

func newTestServer(t *testing.T, opts Options) (*Server, *httptest.Server, string) {
	t.Helper()
	opts.Secret = testSecret
	sb := New(opts, nil)
	srv := httptest.NewServer(sb.Handler())
	t.Cleanup(srv.Close)

	token, err := IssueToken(testSecret, "teacher-7", "t@example.com", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return sb, srv, token
}

func doJSON(t *testing.T, method, url, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func dataURL(content string) string {
	return "data:application/pdf;base64," + base64.StdEncoding.EncodeToString([]byte(content))
}

func TestRequiresValidToken(t *testing.T) {
	t.Parallel()

	_, srv, _ := newTestServer(t, Options{})

	if status, _ := doJSON(t, http.MethodGet, srv.URL+"/assignments/x", "", nil); status != http.StatusUnauthorized {
		t.Fatalf("missing token: status %d", status)
	}

	forged, err := IssueToken("other-secret", "t", "", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	status, body := doJSON(t, http.MethodGet, srv.URL+"/assignments/x", forged, nil)
	if status != http.StatusUnauthorized || body["message"] != "invalid token" {
		t.Fatalf("forged token: status %d body %v", status, body)
	}
}

func TestAssignmentLifecycle(t *testing.T) {
	t.Parallel()

	sb, srv, token := newTestServer(t, Options{ProcessingPolls: 2, Questions: 2})

	status, created := doJSON(t, http.MethodPost, srv.URL+"/assignments", token, map[string]any{
		"title": "Algebra",
		"file":  dataURL("%PDF-1.4"),
	})
	if status != http.StatusAccepted || created["status"] != "processing" {
		t.Fatalf("create: status %d body %v", status, created)
	}
	id, _ := created["assignmentId"].(string)
	if id == "" || created["teacher_id"] != "teacher-7" {
		t.Fatalf("unexpected create body %v", created)
	}

	for i := 0; i < 2; i++ {
		_, got := doJSON(t, http.MethodGet, srv.URL+"/assignments/"+id, token, nil)
		if got["status"] != "processing" {
			t.Fatalf("poll %d: expected processing, got %v", i+1, got["status"])
		}
	}
	_, got := doJSON(t, http.MethodGet, srv.URL+"/assignments/"+id, token, nil)
	if got["status"] != "pending_review" {
		t.Fatalf("expected pending_review, got %v", got)
	}
	if qs, _ := got["questions"].([]any); len(qs) != 2 {
		t.Fatalf("expected 2 questions, got %v", got["questions"])
	}

	status, sched := doJSON(t, http.MethodPost, srv.URL+"/assignments/schedule", token, map[string]any{
		"assignment_id":  id,
		"teacher_id":     "teacher-7",
		"due_date":       "2026-01-01T00:00:00Z",
		"class_info":     "7A",
		"student_emails": []string{"a@example.com", "b@example.com"},
	})
	if status != http.StatusOK || sched["students_notified"] != float64(2) {
		t.Fatalf("schedule: status %d body %v", status, sched)
	}
	if !sb.Scheduled(id) {
		t.Fatalf("assignment not marked scheduled")
	}
}

func TestEmptyDocumentFails(t *testing.T) {
	t.Parallel()

	_, srv, token := newTestServer(t, Options{})

	_, created := doJSON(t, http.MethodPost, srv.URL+"/assignments", token, map[string]any{
		"title": "Blank",
		"file":  dataURL(""),
	})
	id, _ := created["assignmentId"].(string)

	_, got := doJSON(t, http.MethodGet, srv.URL+"/assignments/"+id, token, nil)
	if got["status"] != "failed" || got["error_message"] == "" {
		t.Fatalf("expected failed job, got %v", got)
	}
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()

	_, srv, token := newTestServer(t, Options{})

	status, body := doJSON(t, http.MethodPost, srv.URL+"/assignments", token, map[string]any{
		"title": "No file",
		"file":  "plain text",
	})
	if status != http.StatusBadRequest || body["message"] == "" {
		t.Fatalf("expected 400 with message, got %d %v", status, body)
	}

	if status, _ := doJSON(t, http.MethodGet, srv.URL+"/assignments/unknown", token, nil); status != http.StatusNotFound {
		t.Fatalf("unknown id: status %d", status)
	}
}

func TestImmediateMode(t *testing.T) {
	t.Parallel()

	_, srv, token := newTestServer(t, Options{Immediate: true, Questions: 4})

	status, body := doJSON(t, http.MethodPost, srv.URL+"/assignments", token, map[string]any{
		"title": "Quiz",
		"file":  dataURL("doc"),
	})
	if status != http.StatusOK {
		t.Fatalf("status %d", status)
	}
	if qs, _ := body["generatedQuestions"].([]any); len(qs) != 4 {
		t.Fatalf("expected 4 generated questions, got %v", body)
	}
}

func TestPresignedUpload(t *testing.T) {
	t.Parallel()

	sb, srv, token := newTestServer(t, Options{})

	status, body := doJSON(t, http.MethodPost, srv.URL+"/content/get-upload-url", token, map[string]any{
		"fileName":    "notes.pdf",
		"contentType": "application/pdf",
	})
	if status != http.StatusOK {
		t.Fatalf("upload url: status %d", status)
	}
	uploadURL, _ := body["uploadUrl"].(string)
	key, _ := body["s3Key"].(string)
	if uploadURL == "" || key == "" {
		t.Fatalf("unexpected body %v", body)
	}

	req, err := http.NewRequest(http.MethodPut, uploadURL, bytes.NewReader([]byte("raw")))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put status %d", resp.StatusCode)
	}

	data, ok := sb.Upload(key)
	if !ok || string(data) != "raw" {
		t.Fatalf("upload not stored: ok=%v data=%q", ok, data)
	}
}

func TestStudentWorkIsGraded(t *testing.T) {
	t.Parallel()

	_, srv, token := newTestServer(t, Options{ProcessingPolls: 1, Immediate: true})

	_, created := doJSON(t, http.MethodPost, srv.URL+"/assignments", token, map[string]any{
		"title": "Fractions",
		"file":  dataURL("%PDF"),
	})
	assignmentID, _ := created["assignmentId"].(string)

	status, sub := doJSON(t, http.MethodPost, srv.URL+"/submissions/upload", token, map[string]any{
		"assignmentId": assignmentID,
		"file":         dataURL("answers"),
	})
	if status != http.StatusAccepted || sub["status"] != "processing" {
		t.Fatalf("submit: status %d body %v", status, sub)
	}
	id, _ := sub["submissionId"].(string)

	_, got := doJSON(t, http.MethodGet, srv.URL+"/submissions/"+id, token, nil)
	if got["status"] != "processing" {
		t.Fatalf("first read: expected processing, got %v", got)
	}
	_, got = doJSON(t, http.MethodGet, srv.URL+"/submissions/"+id, token, nil)
	if got["status"] != "graded" || got["total_score"] != float64(7) || got["max_score"] != float64(10) {
		t.Fatalf("second read: unexpected body %v", got)
	}
}

func TestStudentWorkRequiresKnownAssignment(t *testing.T) {
	t.Parallel()

	_, srv, token := newTestServer(t, Options{})

	status, _ := doJSON(t, http.MethodPost, srv.URL+"/submissions/upload", token, map[string]any{
		"assignmentId": "missing",
		"file":         dataURL("answers"),
	})
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
	if status, _ := doJSON(t, http.MethodGet, srv.URL+"/submissions/nope", token, nil); status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown submission, got %d", status)
	}
	if status, _ := doJSON(t, http.MethodPost, srv.URL+"/submissions/upload", token, map[string]any{"assignmentId": "x"}); status != http.StatusBadRequest {
		t.Fatalf("expected 400 without file, got %d", status)
	}
}
