package submission

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"Sahayak/internal/domain"
)

const (
	studentUploadPath = "/submissions/upload"
	studentResultPath = "/submissions/"
)

var submissionIDKeys = []string{"submissionId", "submission_id", "id"}

type studentPayload struct {
	AssignmentID string `json:"assignmentId"`
	File         string `json:"file"`
}

// SubmitWork uploads a student's answer sheet as a data URL.
func (g *Gateway) SubmitWork(ctx context.Context, assignmentID string, res domain.Resource) (domain.StudentSubmission, error) {
	g.logger.Info("submit student work", "assignment_id", assignmentID, "filename", res.Filename, "bytes", len(res.Content))

	resp, err := g.sender.Send(ctx, http.MethodPost, studentUploadPath, studentPayload{
		AssignmentID: assignmentID,
		File:         DataURL(res.Filename, res.Content),
	})
	if err != nil {
		return domain.StudentSubmission{}, fmt.Errorf("submit student work: %w", err)
	}

	sub, err := ParseStudentSubmission(resp.Body)
	if err != nil {
		return domain.StudentSubmission{}, err
	}
	if sub.AssignmentID == "" {
		sub.AssignmentID = assignmentID
	}
	return sub, nil
}

// SubmissionResult reads the grading state of one submission.
func (g *Gateway) SubmissionResult(ctx context.Context, submissionID string) (domain.StudentSubmission, error) {
	resp, err := g.sender.Send(ctx, http.MethodGet, studentResultPath+url.PathEscape(submissionID), nil)
	if err != nil {
		return domain.StudentSubmission{}, err
	}
	sub, err := ParseStudentSubmission(resp.Body)
	if err != nil {
		return domain.StudentSubmission{}, err
	}
	if sub.SubmissionID == "" {
		sub.SubmissionID = submissionID
	}
	return sub, nil
}

// ParseStudentSubmission accepts the same envelope shapes as the assignment
// endpoints. A body without any submission id or status is malformed.
func ParseStudentSubmission(body []byte) (domain.StudentSubmission, error) {
	doc, err := decodeObject(body)
	if err != nil {
		return domain.StudentSubmission{}, &MalformedResponseError{Reason: err.Error()}
	}
	if inner := envelopeBody(doc); inner != nil {
		doc = inner
	}

	sub := domain.StudentSubmission{
		SubmissionID: firstString(doc, submissionIDKeys...),
		AssignmentID: firstString(doc, "assignmentId", "assignment_id"),
		Status:       strings.ToLower(firstString(doc, "status")),
		Feedback:     firstString(doc, "feedback", "comments"),
		Score:        firstNumber(doc, "score", "total_score", "totalScore"),
		MaxScore:     firstNumber(doc, "max_score", "maxScore", "total_marks"),
	}
	if sub.SubmissionID == "" && sub.Status == "" {
		return domain.StudentSubmission{}, &MalformedResponseError{Reason: "response has neither a submission id nor a status"}
	}
	return sub, nil
}

func firstNumber(m map[string]any, keys ...string) float64 {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			return v
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f
			}
		}
	}
	return 0
}
