package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"Sahayak/internal/domain"
	"Sahayak/internal/normalize"
	"Sahayak/internal/poller"
	"Sahayak/internal/ports"
	"Sahayak/internal/session"
	"Sahayak/internal/submission"
)

const defaultDeadlineOffset = 7 * 24 * time.Hour

var allowedExtensions = map[string]struct{}{
	".pdf":  {},
	".doc":  {},
	".docx": {},
}

// ErrUnsupportedFile rejects documents the backend cannot read.
var ErrUnsupportedFile = errors.New("please upload a PDF or Word document")

// ErrTeacherUnknown means no teacher id could be found for a publish.
var ErrTeacherUnknown = errors.New("failed to retrieve teacher information")

// AssignmentDeps wires all driven adapters into the assignment workflow.
type AssignmentDeps struct {
	Gateway  ports.AssignmentGateway
	Poller   ports.JobPoller
	Ledger   ports.JobLedger
	Notifier ports.Notifier
	Session  *session.Session
	Roster   map[string][]string
	Logger   *slog.Logger
	Now      func() time.Time
}

// AssignmentService implements upload, polling and publishing of assignments.
type AssignmentService struct {
	gateway  ports.AssignmentGateway
	poller   ports.JobPoller
	ledger   ports.JobLedger
	notifier ports.Notifier
	session  *session.Session
	roster   map[string][]string
	logger   *slog.Logger
	now      func() time.Time
	validate *validator.Validate
}

// NewAssignmentService constructs the workflow component.
func NewAssignmentService(deps AssignmentDeps) *AssignmentService {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &AssignmentService{
		gateway:  deps.Gateway,
		poller:   deps.Poller,
		ledger:   deps.Ledger,
		notifier: deps.Notifier,
		session:  deps.Session,
		roster:   deps.Roster,
		logger:   deps.Logger,
		now:      deps.Now,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// UploadRequest is one document upload from a teacher.
type UploadRequest struct {
	Filename  string `validate:"required"`
	Content   []byte `validate:"required,min=1"`
	Title     string
	Subject   string
	ClassName string
	Deadline  time.Time
}

// UploadResult is the answer key produced for an upload.
type UploadResult struct {
	AssignmentID string
	TeacherID    string
	Immediate    bool
	State        poller.State
	Questions    []domain.Question
}

// Upload submits a document and waits for its answer key. Every terminal
// failure is reported through the notifier exactly once and returned.
// If ctx ends while polling, the poll is cancelled and nothing is notified.
func (s *AssignmentService) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	if err := s.validate.Struct(req); err != nil {
		s.notify(ctx, domain.Notification{Level: domain.LevelError, Title: "Failed to upload assignment", Detail: "A non-empty document is required."})
		return UploadResult{}, fmt.Errorf("invalid upload: %w", err)
	}
	if _, ok := allowedExtensions[strings.ToLower(filepath.Ext(req.Filename))]; !ok {
		s.notify(ctx, domain.Notification{Level: domain.LevelError, Title: "Unsupported file", Detail: "Please upload a PDF or Word document."})
		return UploadResult{}, ErrUnsupportedFile
	}

	meta := s.metadata(req)
	outcome, err := s.gateway.Submit(ctx, domain.Resource{Filename: req.Filename, Content: req.Content}, meta)
	if err != nil {
		s.logger.Error("upload failed", "filename", req.Filename, "error", err)
		s.notify(ctx, domain.Notification{Level: domain.LevelError, Title: "Failed to upload assignment", Detail: describe(err)})
		return UploadResult{}, err
	}

	if outcome.Kind == submission.OutcomeImmediate {
		id := outcome.AssignmentID
		s.record(ctx, domain.LedgerEntry{JobID: id, Title: meta.Title, Filename: req.Filename, Status: domain.JobPendingReview})
		s.notify(ctx, domain.Notification{
			Level:  domain.LevelSuccess,
			Title:  "Assignment processed!",
			Detail: fmt.Sprintf("Generated %d questions", len(outcome.Questions)),
			JobID:  id,
		})
		return UploadResult{
			AssignmentID: id,
			TeacherID:    outcome.TeacherID,
			Immediate:    true,
			State:        poller.StateSucceeded,
			Questions:    outcome.Questions,
		}, nil
	}

	s.record(ctx, domain.LedgerEntry{JobID: outcome.JobID, Title: meta.Title, Filename: req.Filename, Status: domain.JobProcessing})
	s.notify(ctx, domain.Notification{Level: domain.LevelInfo, Title: "Assignment uploaded!", Detail: "Generating questions...", JobID: outcome.JobID})

	result, err := s.await(ctx, outcome.JobID)
	if result.TeacherID == "" {
		result.TeacherID = outcome.TeacherID
	}
	return result, err
}

// Resume re-polls every job the ledger still considers in progress.
func (s *AssignmentService) Resume(ctx context.Context) ([]UploadResult, error) {
	if s.ledger == nil {
		return nil, nil
	}
	entries, err := s.ledger.Unresolved(ctx)
	if err != nil {
		return nil, fmt.Errorf("load unresolved jobs: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	s.logger.Info("resuming jobs", "count", len(entries))

	results := make([]UploadResult, len(entries))
	errs := make([]error, len(entries))
	var wg sync.WaitGroup
	for i, entry := range entries {
		wg.Add(1)
		go func(i int, jobID string) {
			defer wg.Done()
			results[i], errs[i] = s.await(ctx, jobID)
		}(i, entry.JobID)
	}
	wg.Wait()

	return results, errors.Join(errs...)
}

// Status performs one status check without polling.
func (s *AssignmentService) Status(ctx context.Context, jobID string) (domain.Job, error) {
	report, err := s.gateway.FetchStatus(ctx, jobID)
	if err != nil {
		return domain.Job{}, err
	}
	return domain.Job{
		ID:           jobID,
		Status:       report.Status,
		ErrorMessage: report.ErrorMessage,
		TeacherID:    report.TeacherID,
		Questions:    normalize.Normalize(report.Questions),
	}, nil
}

func (s *AssignmentService) await(ctx context.Context, jobID string) (UploadResult, error) {
	h := s.poller.Start(ctx, jobID, nil)
	res, err := h.Wait(ctx)
	if err != nil {
		h.Cancel()
		// The loop may observe ctx first and report ErrCancelled.
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		s.logger.Info("stopped waiting for job", "job_id", jobID, "reason", err)
		return UploadResult{AssignmentID: jobID, State: poller.StateCancelled}, err
	}

	status, msg := ledgerStatus(res)
	if s.ledger != nil {
		// Use a fresh context so a finished job is recorded even if ctx is ending.
		if uErr := s.ledger.UpdateStatus(context.WithoutCancel(ctx), jobID, status, msg); uErr != nil {
			s.logger.Warn("ledger update failed", "job_id", jobID, "error", uErr)
		}
	}
	s.notify(ctx, resolutionNotice(res))

	return UploadResult{
		AssignmentID: jobID,
		TeacherID:    res.TeacherID,
		State:        res.State,
		Questions:    res.Questions,
	}, res.Err
}

func (s *AssignmentService) metadata(req UploadRequest) domain.Metadata {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(req.Filename), filepath.Ext(req.Filename))
	}
	deadline := req.Deadline
	if deadline.IsZero() {
		deadline = s.now().Add(defaultDeadlineOffset)
	}
	return domain.Metadata{
		Title:       title,
		Description: fmt.Sprintf("Assignment for %s - %s", orGeneral(req.Subject), orGeneral(req.ClassName)),
		Deadline:    deadline,
	}
}

func (s *AssignmentService) record(ctx context.Context, entry domain.LedgerEntry) {
	if s.ledger == nil || entry.JobID == "" {
		return
	}
	now := s.now()
	entry.CreatedAt, entry.UpdatedAt = now, now
	if err := s.ledger.Record(ctx, entry); err != nil {
		s.logger.Warn("ledger record failed", "job_id", entry.JobID, "error", err)
	}
}

func (s *AssignmentService) notify(ctx context.Context, n domain.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(context.WithoutCancel(ctx), n); err != nil {
		s.logger.Warn("notification failed", "title", n.Title, "error", err)
	}
}

func orGeneral(s string) string {
	if strings.TrimSpace(s) == "" {
		return "General"
	}
	return s
}
