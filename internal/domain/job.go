package domain

import "time"

// JobStatus is the status string the backend reports for an assignment job.
type JobStatus string

const (
	JobProcessing    JobStatus = "processing"
	JobPendingReview JobStatus = "pending_review"
	JobFailed        JobStatus = "failed"
	JobCompleted     JobStatus = "completed"
)

// Succeeded reports whether the status means questions are ready.
func (s JobStatus) Succeeded() bool {
	return s == JobPendingReview || s == JobCompleted
}

// Terminal reports whether the backend will no longer change the job.
func (s JobStatus) Terminal() bool {
	return s.Succeeded() || s == JobFailed
}

// Job is a backend-side unit of asynchronous work.
type Job struct {
	ID           string
	Status       JobStatus
	CreatedAt    time.Time
	ErrorMessage string
	TeacherID    string
	Questions    []Question
}

// StatusReport is one decoded status response for a job.
// Questions holds the raw entries; normalization happens downstream.
type StatusReport struct {
	JobID        string
	Status       JobStatus
	Questions    []map[string]any
	ErrorMessage string
	TeacherID    string
}

// LedgerEntry is the locally persisted history of a submitted job.
type LedgerEntry struct {
	JobID        string
	Title        string
	Filename     string
	Status       JobStatus
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
