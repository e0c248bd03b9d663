package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"Sahayak/internal/domain"
	"Sahayak/internal/ports"
)

// WorkRequest is a student's answer sheet for one assignment.
type WorkRequest struct {
	AssignmentID string `validate:"required"`
	Filename     string `validate:"required"`
	Content      []byte `validate:"required"`
}

// StudentService submits student work and reads back grades.
type StudentService struct {
	gateway  ports.SubmissionGateway
	notifier ports.Notifier
	logger   *slog.Logger
	validate *validator.Validate
}

// NewStudentService wires the student workflow.
func NewStudentService(gateway ports.SubmissionGateway, notifier ports.Notifier, logger *slog.Logger) *StudentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &StudentService{
		gateway:  gateway,
		notifier: notifier,
		logger:   logger.With("component", "students"),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Submit uploads the work. Failures are notified once and returned.
func (s *StudentService) Submit(ctx context.Context, req WorkRequest) (domain.StudentSubmission, error) {
	if err := s.validate.Struct(req); err != nil {
		s.notify(ctx, domain.Notification{Level: domain.LevelError, Title: "Failed to submit work", Detail: "An assignment id and a non-empty document are required."})
		return domain.StudentSubmission{}, fmt.Errorf("invalid submission: %w", err)
	}
	if _, ok := allowedExtensions[strings.ToLower(filepath.Ext(req.Filename))]; !ok {
		s.notify(ctx, domain.Notification{Level: domain.LevelError, Title: "Unsupported file", Detail: "Please upload a PDF or Word document."})
		return domain.StudentSubmission{}, ErrUnsupportedFile
	}

	sub, err := s.gateway.SubmitWork(ctx, req.AssignmentID, domain.Resource{Filename: req.Filename, Content: req.Content})
	if err != nil {
		s.logger.Error("submit failed", "assignment_id", req.AssignmentID, "error", err)
		s.notify(ctx, domain.Notification{Level: domain.LevelError, Title: "Failed to submit work", Detail: describe(err)})
		return domain.StudentSubmission{}, err
	}

	s.logger.Info("work submitted", "assignment_id", req.AssignmentID, "submission_id", sub.SubmissionID)
	s.notify(ctx, domain.Notification{
		Level:  domain.LevelSuccess,
		Title:  "Work submitted",
		Detail: "Your answers were received and will be graded shortly.",
		JobID:  sub.SubmissionID,
	})
	return sub, nil
}

// Result reads the grading state of a submission.
func (s *StudentService) Result(ctx context.Context, submissionID string) (domain.StudentSubmission, error) {
	if strings.TrimSpace(submissionID) == "" {
		return domain.StudentSubmission{}, fmt.Errorf("submission id is required")
	}
	sub, err := s.gateway.SubmissionResult(ctx, submissionID)
	if err != nil {
		return domain.StudentSubmission{}, fmt.Errorf("submission %s: %w", submissionID, err)
	}
	if sub.Graded() {
		s.notify(ctx, domain.Notification{
			Level:  domain.LevelSuccess,
			Title:  "Work graded",
			Detail: fmt.Sprintf("Score %g out of %g.", sub.Score, sub.MaxScore),
			JobID:  sub.SubmissionID,
		})
	}
	return sub, nil
}

func (s *StudentService) notify(ctx context.Context, n domain.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(context.WithoutCancel(ctx), n); err != nil {
		s.logger.Warn("notification failed", "title", n.Title, "error", err)
	}
}
