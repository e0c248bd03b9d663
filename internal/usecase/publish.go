package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"Sahayak/internal/domain"
)

// PublishRequest schedules an approved assignment for a class.
type PublishRequest struct {
	AssignmentID string    `validate:"required"`
	Subject      string    `validate:"required"`
	ClassName    string    `validate:"required"`
	DueDate      time.Time `validate:"required"`
	TeacherID    string
}

// Publish sends the assignment to every student on the class roster.
func (s *AssignmentService) Publish(ctx context.Context, req PublishRequest) (domain.ScheduleResult, error) {
	if err := s.validate.Struct(req); err != nil {
		s.notify(ctx, domain.Notification{Level: domain.LevelError, Title: "Failed to publish assignment", Detail: "Assignment, subject, class and due date are required.", JobID: req.AssignmentID})
		return domain.ScheduleResult{}, fmt.Errorf("invalid publish request: %w", err)
	}

	teacherID, err := s.resolveTeacher(ctx, req)
	if err != nil {
		s.notify(ctx, domain.Notification{Level: domain.LevelError, Title: "Failed to publish assignment", Detail: describe(err), JobID: req.AssignmentID})
		return domain.ScheduleResult{}, err
	}

	result, err := s.gateway.Schedule(ctx, domain.Schedule{
		AssignmentID:  req.AssignmentID,
		TeacherID:     teacherID,
		Subject:       req.Subject,
		ClassName:     req.ClassName,
		DueDate:       req.DueDate,
		StudentEmails: s.students(req.ClassName),
	})
	if err != nil {
		s.logger.Error("publish failed", "assignment_id", req.AssignmentID, "error", err)
		s.notify(ctx, domain.Notification{Level: domain.LevelError, Title: "Failed to publish assignment", Detail: describe(err), JobID: req.AssignmentID})
		return domain.ScheduleResult{}, err
	}

	if s.ledger != nil {
		if uErr := s.ledger.UpdateStatus(ctx, req.AssignmentID, domain.JobCompleted, ""); uErr != nil {
			s.logger.Warn("ledger update failed", "job_id", req.AssignmentID, "error", uErr)
		}
	}
	s.notify(ctx, domain.Notification{
		Level:  domain.LevelSuccess,
		Title:  "Assignment published successfully!",
		Detail: fmt.Sprintf("%d students notified.", result.StudentsNotified),
		JobID:  req.AssignmentID,
	})
	return result, nil
}

func (s *AssignmentService) resolveTeacher(ctx context.Context, req PublishRequest) (string, error) {
	if id := strings.TrimSpace(req.TeacherID); id != "" {
		return id, nil
	}
	if ident := s.session.Identity(); ident != nil && ident.UserID != "" {
		return ident.UserID, nil
	}
	report, err := s.gateway.FetchStatus(ctx, req.AssignmentID)
	if err != nil {
		return "", fmt.Errorf("fetch assignment %s: %w", req.AssignmentID, err)
	}
	if report.TeacherID == "" {
		return "", ErrTeacherUnknown
	}
	return report.TeacherID, nil
}

// students looks the class up case-insensitively in the configured roster.
func (s *AssignmentService) students(className string) []string {
	if emails, ok := s.roster[className]; ok {
		return emails
	}
	for name, emails := range s.roster {
		if strings.EqualFold(name, className) {
			return emails
		}
	}
	return nil
}
