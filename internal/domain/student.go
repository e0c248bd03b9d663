package domain

// StudentSubmission is a student's answer sheet for an assignment and, once
// graded, its score.
type StudentSubmission struct {
	SubmissionID string  `json:"submissionId"`
	AssignmentID string  `json:"assignmentId"`
	Status       string  `json:"status"`
	Score        float64 `json:"score"`
	MaxScore     float64 `json:"maxScore"`
	Feedback     string  `json:"feedback,omitempty"`
}

// Graded reports whether a score is available.
func (s StudentSubmission) Graded() bool {
	return s.Status == "graded" || s.Status == "completed"
}
