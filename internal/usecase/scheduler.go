package usecase

import (
	"context"
	"log/slog"
	"time"

	"Sahayak/internal/ports"
)

// Resumer re-polls unfinished jobs.
type Resumer interface {
	Resume(ctx context.Context) ([]UploadResult, error)
}

// Watcher periodically resumes jobs the ledger still lists as processing.
type Watcher struct {
	driver  ports.Scheduler
	resumer Resumer
	logger  *slog.Logger
}

// NewWatcher pairs a scheduler driver with the resume use case.
func NewWatcher(driver ports.Scheduler, resumer Resumer, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{driver: driver, resumer: resumer, logger: logger}
}

// Start registers the resume sweep with the driver.
func (w *Watcher) Start(ctx context.Context) error {
	if w.driver == nil || w.resumer == nil {
		return nil
	}

	job := func(trigger time.Time) {
		results, err := w.resumer.Resume(ctx)
		if err != nil {
			w.logger.Warn("resume sweep finished with errors", "trigger", trigger, "jobs", len(results), "error", err)
			return
		}
		w.logger.Info("resume sweep finished", "trigger", trigger, "jobs", len(results))
	}

	return w.driver.Start(ctx, job)
}

// Stop tears down the underlying driver.
func (w *Watcher) Stop(ctx context.Context) error {
	if w.driver == nil {
		return nil
	}
	return w.driver.Stop(ctx)
}
