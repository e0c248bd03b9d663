package domain

import "time"

// Resource is the local document handed to the submission gateway.
type Resource struct {
	Filename string
	Content  []byte
}

// Metadata describes the assignment being submitted.
type Metadata struct {
	Title       string
	Description string
	Deadline    time.Time
}

// Schedule is the publish request sent once an answer key is approved.
type Schedule struct {
	AssignmentID  string
	TeacherID     string
	Subject       string
	ClassName     string
	DueDate       time.Time
	StudentEmails []string
}

// ScheduleResult is what the backend reports after scheduling.
type ScheduleResult struct {
	AssignmentID     string
	StudentsNotified int
	Message          string
}
