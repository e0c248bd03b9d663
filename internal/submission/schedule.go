package submission

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"Sahayak/internal/domain"
)

const schedulePath = "/assignments/schedule"

type schedulePayload struct {
	AssignmentID  string   `json:"assignment_id"`
	TeacherID     string   `json:"teacher_id"`
	DueDate       string   `json:"due_date"`
	Subject       string   `json:"subject"`
	ClassInfo     string   `json:"class_info"`
	StudentEmails []string `json:"student_emails"`
}

// Schedule publishes an approved assignment to a class.
func (g *Gateway) Schedule(ctx context.Context, s domain.Schedule) (domain.ScheduleResult, error) {
	emails := s.StudentEmails
	if emails == nil {
		emails = []string{}
	}
	payload := schedulePayload{
		AssignmentID:  s.AssignmentID,
		TeacherID:     s.TeacherID,
		DueDate:       s.DueDate.UTC().Format(time.RFC3339),
		Subject:       s.Subject,
		ClassInfo:     s.ClassName,
		StudentEmails: emails,
	}

	g.logger.Info("schedule assignment", "assignment_id", s.AssignmentID, "class", s.ClassName, "students", len(emails))

	resp, err := g.sender.Send(ctx, http.MethodPost, schedulePath, payload)
	if err != nil {
		return domain.ScheduleResult{}, fmt.Errorf("schedule assignment: %w", err)
	}

	var body struct {
		StudentsNotified int    `json:"students_notified"`
		Message          string `json:"message"`
		AssignmentID     string `json:"assignment_id"`
	}
	if len(resp.Body) > 0 {
		if err := resp.Decode(&body); err != nil {
			return domain.ScheduleResult{}, &MalformedResponseError{Reason: err.Error()}
		}
	}
	if body.AssignmentID == "" {
		body.AssignmentID = s.AssignmentID
	}

	return domain.ScheduleResult{
		AssignmentID:     body.AssignmentID,
		StudentsNotified: body.StudentsNotified,
		Message:          body.Message,
	}, nil
}
