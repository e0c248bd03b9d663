package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"Sahayak/internal/domain"
	"Sahayak/internal/ports"
)

const jobsTable = "assignment_jobs"

const schema = `CREATE TABLE IF NOT EXISTS assignment_jobs (
	job_id        TEXT PRIMARY KEY,
	title         TEXT NOT NULL DEFAULT '',
	filename      TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	created_at    BIGINT NOT NULL,
	updated_at    BIGINT NOT NULL
)`

const statusIndex = `CREATE INDEX IF NOT EXISTS assignment_jobs_status_idx ON assignment_jobs (status)`

var jobColumns = []string{"job_id", "title", "filename", "status", "error_message", "created_at", "updated_at"}

// Ledger persists submitted jobs in Postgres or an embedded SQLite file.
type Ledger struct {
	db     *sql.DB
	sb     sq.StatementBuilderType
	now    func() time.Time
	logger *slog.Logger
}

var _ ports.JobLedger = (*Ledger)(nil)

// Driver picks the database/sql driver for a DSN. postgres:// URLs go to
// lib/pq; everything else is treated as a SQLite path.
func Driver(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	return "sqlite"
}

// Open connects to dsn and ensures the schema exists.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	driver := Driver(dsn)
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s ledger: %w", driver, err)
	}
	if driver == "sqlite" {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	}

	l := NewLedger(db, driver, logger)
	if err := l.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("ledger ready", "driver", driver)
	return l, nil
}

// NewLedger wraps an already opened database.
func NewLedger(db *sql.DB, driver string, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	sb := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if driver == "postgres" {
		sb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return &Ledger{db: db, sb: sb, now: time.Now, logger: logger}
}

// Close releases the underlying pool.
func (l *Ledger) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

func (l *Ledger) migrate(ctx context.Context) error {
	for _, stmt := range []string{schema, statusIndex} {
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate ledger: %w", err)
		}
	}
	return nil
}

// Record upserts a job. created_at is kept from the first insert.
func (l *Ledger) Record(ctx context.Context, entry domain.LedgerEntry) error {
	if l.db == nil {
		return nil
	}
	now := l.now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = now
	}

	query, args, err := l.sb.Insert(jobsTable).
		Columns(jobColumns...).
		Values(entry.JobID, entry.Title, entry.Filename, string(entry.Status), entry.ErrorMessage,
			entry.CreatedAt.UnixMilli(), entry.UpdatedAt.UnixMilli()).
		Suffix(`ON CONFLICT (job_id) DO UPDATE
              SET title = EXCLUDED.title,
                  filename = EXCLUDED.filename,
                  status = EXCLUDED.status,
                  error_message = EXCLUDED.error_message,
                  updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := l.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert job %s: %w", entry.JobID, err)
	}
	return nil
}

// UpdateStatus moves a recorded job to status. Unknown jobs are ignored.
func (l *Ledger) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, errMsg string) error {
	if l.db == nil {
		return nil
	}
	query, args, err := l.sb.Update(jobsTable).
		Set("status", string(status)).
		Set("error_message", errMsg).
		Set("updated_at", l.now().UnixMilli()).
		Where(sq.Eq{"job_id": jobID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	res, err := l.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job %s: %w", jobID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		l.logger.Debug("status update for unknown job", "job_id", jobID, "status", string(status))
	}
	return nil
}

// Get returns one job, or ok=false when it was never recorded.
func (l *Ledger) Get(ctx context.Context, jobID string) (domain.LedgerEntry, bool, error) {
	entries, err := l.list(ctx, sq.Eq{"job_id": jobID})
	if err != nil {
		return domain.LedgerEntry{}, false, err
	}
	if len(entries) == 0 {
		return domain.LedgerEntry{}, false, nil
	}
	return entries[0], true, nil
}

// Unresolved lists jobs still processing, oldest first.
func (l *Ledger) Unresolved(ctx context.Context) ([]domain.LedgerEntry, error) {
	return l.list(ctx, sq.Eq{"status": string(domain.JobProcessing)})
}

// All lists every recorded job, oldest first.
func (l *Ledger) All(ctx context.Context) ([]domain.LedgerEntry, error) {
	return l.list(ctx, nil)
}

func (l *Ledger) list(ctx context.Context, where sq.Sqlizer) ([]domain.LedgerEntry, error) {
	if l.db == nil {
		return nil, nil
	}
	b := l.sb.Select(jobColumns...).From(jobsTable).OrderBy("created_at", "job_id")
	if where != nil {
		b = b.Where(where)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}

	var result []domain.LedgerEntry
	for rows.Next() {
		var (
			e                domain.LedgerEntry
			status           string
			created, updated int64
		)
		if err := rows.Scan(&e.JobID, &e.Title, &e.Filename, &status, &e.ErrorMessage, &created, &updated); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan job: %w", err)
		}
		e.Status = domain.JobStatus(status)
		e.CreatedAt = time.UnixMilli(created)
		e.UpdatedAt = time.UnixMilli(updated)
		result = append(result, e)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return result, nil
}
