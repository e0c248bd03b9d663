package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"Sahayak/internal/config"
	"Sahayak/internal/infrastructure/notify"
	"Sahayak/internal/infrastructure/sandbox"
	"Sahayak/internal/infrastructure/scheduler"
	"Sahayak/internal/infrastructure/storage"
	"Sahayak/internal/infrastructure/telegram"
	"Sahayak/internal/infrastructure/transport"
	"Sahayak/internal/logging"
	"Sahayak/internal/poller"
	"Sahayak/internal/ports"
	"Sahayak/internal/session"
	"Sahayak/internal/submission"
	"Sahayak/internal/usecase"
)

const (
	backendAssignments = "assignments"
	backendContent     = "content"
)

var (
	_ ports.AssignmentGateway = (*submission.Gateway)(nil)
	_ ports.SubmissionGateway = (*submission.Gateway)(nil)
	_ ports.JobPoller         = (*poller.Poller)(nil)
	_ ports.Sender            = (*transport.Client)(nil)
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg         config.Config
	logger      *slog.Logger
	ledger      *storage.Ledger
	poller      *poller.Poller
	assignments *usecase.AssignmentService
	students    *usecase.StudentService
	content     *usecase.ContentUploader
	watcher     *usecase.Watcher
}

// New builds the client: transport per backend, gateway, poller, ledger and
// notifiers. Notifications are printed to out.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger, out io.Writer) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, AddSource: cfg.Logging.AddSource})
	}

	sess := session.New(cfg.Session.Token)

	registry := transport.NewRegistry()
	for name, backend := range map[string]config.BackendConfig{
		backendAssignments: cfg.Backends.Assignments,
		backendContent:     cfg.Backends.Content,
	} {
		registry.Register(transport.NewClient(name, backend.BaseURL, backend.Timeout, sess, nil,
			baseLogger.With("component", "transport."+name)))
	}
	assignmentsClient, err := registry.Resolve(backendAssignments)
	if err != nil {
		return nil, err
	}
	contentClient, err := registry.Resolve(backendContent)
	if err != nil {
		return nil, err
	}

	ledger, err := storage.Open(ctx, cfg.Ledger.DSN, baseLogger.With("component", "ledger"))
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	gateway := submission.NewGateway(assignmentsClient, baseLogger.With("component", "gateway"))
	jobPoller := poller.New(gateway,
		poller.WithInterval(cfg.Polling.Interval),
		poller.WithMaxAttempts(cfg.Polling.MaxAttempts),
		poller.WithLogger(baseLogger.With("component", "poller")),
	)

	sinks := notify.Multi{notify.NewConsole(out)}
	if cfg.Notifications.Telegram.Enabled() {
		sinks = append(sinks, telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID))
	}

	assignments := usecase.NewAssignmentService(usecase.AssignmentDeps{
		Gateway:  gateway,
		Poller:   jobPoller,
		Ledger:   ledger,
		Notifier: sinks,
		Session:  sess,
		Roster:   cfg.Roster,
		Logger:   baseLogger.With("component", "assignments"),
	})

	var driver ports.Scheduler = scheduler.NewIntervalScheduler(cfg.Watch.Interval)

	return &Application{
		cfg:         cfg,
		logger:      baseLogger,
		ledger:      ledger,
		poller:      jobPoller,
		assignments: assignments,
		students:    usecase.NewStudentService(gateway, sinks, baseLogger),
		content:     usecase.NewContentUploader(contentClient, baseLogger.With("component", "content")),
		watcher:     usecase.NewWatcher(driver, assignments, baseLogger.With("component", "watcher")),
	}, nil
}

// Assignments exposes the upload, status, resume and publish operations.
func (a *Application) Assignments() *usecase.AssignmentService {
	return a.assignments
}

// Students exposes work submission and grade lookup.
func (a *Application) Students() *usecase.StudentService {
	return a.students
}

// Content exposes the pre-signed content uploader.
func (a *Application) Content() *usecase.ContentUploader {
	return a.content
}

// Ledger exposes the local job history.
func (a *Application) Ledger() *storage.Ledger {
	return a.ledger
}

// Watch resumes unfinished jobs periodically until ctx ends.
func (a *Application) Watch(ctx context.Context) error {
	if err := a.watcher.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.watcher.Stop(stopCtx)
}

// Close cancels outstanding polls and releases the ledger.
func (a *Application) Close() error {
	a.poller.CancelAll()
	return a.ledger.Close()
}

// RunSandbox serves the local stand-in backend until ctx ends.
func RunSandbox(ctx context.Context, cfg config.SandboxConfig, logger *slog.Logger) error {
	sb := sandbox.New(sandbox.Options{
		Secret:          cfg.Secret,
		ProcessingPolls: cfg.ProcessingPolls,
		Immediate:       cfg.Immediate,
		Questions:       cfg.Questions,
	}, logger.With("component", "sandbox"))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           sb.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	token, err := sandbox.IssueToken(cfg.Secret, "sandbox-teacher", "teacher@sandbox.local", 24*time.Hour)
	if err != nil {
		return fmt.Errorf("issue sandbox token: %w", err)
	}
	logger.Info("sandbox listening", "addr", cfg.Addr, "token", token)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
