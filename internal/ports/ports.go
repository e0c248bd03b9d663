package ports

import (
	"context"
	"time"

	"Sahayak/internal/domain"
	"Sahayak/internal/infrastructure/transport"
	"Sahayak/internal/poller"
	"Sahayak/internal/submission"
)

// AssignmentGateway is the assignments backend.
type AssignmentGateway interface {
	Submit(ctx context.Context, res domain.Resource, meta domain.Metadata) (submission.Outcome, error)
	FetchStatus(ctx context.Context, jobID string) (domain.StatusReport, error)
	Schedule(ctx context.Context, s domain.Schedule) (domain.ScheduleResult, error)
}

// SubmissionGateway is the student side of the assignments backend.
type SubmissionGateway interface {
	SubmitWork(ctx context.Context, assignmentID string, res domain.Resource) (domain.StudentSubmission, error)
	SubmissionResult(ctx context.Context, submissionID string) (domain.StudentSubmission, error)
}

// JobPoller starts status polls.
type JobPoller interface {
	Start(ctx context.Context, jobID string, onResolve func(poller.Resolution)) *poller.Handle
}

// JobLedger keeps a local history of submitted jobs so timed-out ones can be
// resumed later.
type JobLedger interface {
	Record(ctx context.Context, entry domain.LedgerEntry) error
	UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, errMsg string) error
	Unresolved(ctx context.Context) ([]domain.LedgerEntry, error)
}

// Notifier delivers human-readable messages (console, Telegram, etc.).
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// Sender issues requests to one backend.
type Sender interface {
	Send(ctx context.Context, method, path string, body any, opts ...transport.RequestOption) (*transport.Response, error)
}

// Scheduler controls when recurring work executes.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
