// Package poller watches backend jobs until they finish, fail or run out of
// attempts.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"Sahayak/internal/domain"
	"Sahayak/internal/normalize"
)

const (
	DefaultInterval    = 5 * time.Second
	DefaultMaxAttempts = 20
	unknownFailure     = "Unknown error"
)

// StatusFetcher reads one status report for a job.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, jobID string) (domain.StatusReport, error)
}

// Ticker drives the attempt cadence.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the time between attempts.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithMaxAttempts sets the attempt budget.
func WithMaxAttempts(n int) Option {
	return func(p *Poller) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithTicker replaces the ticker factory.
func WithTicker(f func(time.Duration) Ticker) Option {
	return func(p *Poller) {
		if f != nil {
			p.newTicker = f
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

// Poller runs at most one poll loop per job id.
type Poller struct {
	fetcher     StatusFetcher
	interval    time.Duration
	maxAttempts int
	newTicker   func(time.Duration) Ticker
	logger      *slog.Logger

	mu     sync.Mutex
	active map[string]*Handle
}

// New builds a poller with the default 5s cadence and 20 attempts.
func New(fetcher StatusFetcher, opts ...Option) *Poller {
	p := &Poller{
		fetcher:     fetcher,
		interval:    DefaultInterval,
		maxAttempts: DefaultMaxAttempts,
		newTicker:   newTimeTicker,
		logger:      slog.Default(),
		active:      map[string]*Handle{},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// MaxAttempts returns the configured attempt budget.
func (p *Poller) MaxAttempts() int {
	return p.maxAttempts
}

// Start begins polling jobID, cancelling any poll already running for it.
// onResolve, if set, is called exactly once with the terminal resolution and
// never when the handle is cancelled.
func (p *Poller) Start(ctx context.Context, jobID string, onResolve func(Resolution)) *Handle {
	loopCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		id:        uuid.NewString(),
		jobID:     jobID,
		state:     StatePolling,
		done:      make(chan struct{}),
		cancelFn:  cancel,
		onResolve: onResolve,
		release:   p.release,
	}

	p.mu.Lock()
	if old := p.active[jobID]; old != nil {
		old.stop()
		p.logger.Info("replacing active poll", "job_id", jobID, "old_handle", old.id, "new_handle", h.id)
	}
	p.active[jobID] = h
	p.mu.Unlock()

	p.logger.Info("poll started", "job_id", jobID, "handle", h.id, "interval", p.interval, "max_attempts", p.maxAttempts)
	go p.run(loopCtx, h)
	return h
}

// Active reports whether a poll is running for jobID.
func (p *Poller) Active(jobID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.active[jobID]
	return ok
}

// Cancel stops the poll for jobID, if any.
func (p *Poller) Cancel(jobID string) bool {
	p.mu.Lock()
	h := p.active[jobID]
	p.mu.Unlock()
	if h == nil {
		return false
	}
	h.Cancel()
	return true
}

// CancelAll stops every running poll.
func (p *Poller) CancelAll() {
	p.mu.Lock()
	handles := make([]*Handle, 0, len(p.active))
	for _, h := range p.active {
		handles = append(handles, h)
	}
	p.mu.Unlock()
	for _, h := range handles {
		h.Cancel()
	}
}

func (p *Poller) release(h *Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active[h.jobID] == h {
		delete(p.active, h.jobID)
	}
}

type attempt struct {
	n      int
	report domain.StatusReport
	err    error
}

func (p *Poller) run(ctx context.Context, h *Handle) {
	ticker := p.newTicker(p.interval)
	defer ticker.Stop()
	tick := ticker.C()

	// Buffered so late attempts never block once the loop has returned.
	results := make(chan attempt, p.maxAttempts)
	// In-flight requests are not aborted on cancel; their results are dropped.
	fetchCtx := context.WithoutCancel(ctx)

	issued, received := 0, 0
	var lastErr error

	issue := func() {
		issued++
		n := issued
		go func() {
			report, err := p.fetcher.FetchStatus(fetchCtx, h.jobID)
			results <- attempt{n: n, report: report, err: err}
		}()
		if issued >= p.maxAttempts {
			ticker.Stop()
			tick = nil
		}
	}

	issue()
	for {
		select {
		case <-ctx.Done():
			if h.stop() {
				p.release(h)
				p.logger.Info("poll abandoned", "job_id", h.jobID, "handle", h.id, "reason", ctx.Err())
			}
			return
		case <-tick:
			issue()
		case a := <-results:
			received++
			if h.State() != StatePolling {
				return
			}
			if res, ok := p.evaluate(h, a, received, &lastErr); ok {
				if h.resolve(res) {
					p.release(h)
					p.logger.Info("poll resolved", "job_id", h.jobID, "handle", h.id, "state", res.State.String(), "attempts", res.Attempts)
				}
				return
			}
		}
	}
}

// evaluate applies the terminal conditions in priority order: explicit
// failure, success with questions, exhausted budget.
func (p *Poller) evaluate(h *Handle, a attempt, received int, lastErr *error) (Resolution, bool) {
	if a.err != nil {
		*lastErr = a.err
		p.logger.Warn("poll attempt failed", "job_id", h.jobID, "attempt", a.n, "max_attempts", p.maxAttempts, "error", a.err)
	} else {
		p.logger.Debug("poll attempt", "job_id", h.jobID, "attempt", a.n, "status", string(a.report.Status), "questions", len(a.report.Questions))
		if a.report.TeacherID != "" {
			h.setTeacherID(a.report.TeacherID)
		}

		switch {
		case a.report.Status == domain.JobFailed:
			msg := a.report.ErrorMessage
			if msg == "" {
				msg = unknownFailure
			}
			return Resolution{
				JobID:     h.jobID,
				State:     StateFailed,
				Message:   msg,
				Attempts:  a.n,
				TeacherID: h.teacherID(),
				Err:       &JobFailedError{JobID: h.jobID, Message: msg},
			}, true
		case a.report.Status.Succeeded() && len(a.report.Questions) > 0:
			return Resolution{
				JobID:     h.jobID,
				State:     StateSucceeded,
				Questions: normalize.Normalize(a.report.Questions),
				Attempts:  a.n,
				TeacherID: h.teacherID(),
			}, true
		}
	}

	if received >= p.maxAttempts {
		return Resolution{
			JobID:     h.jobID,
			State:     StateTimedOut,
			Attempts:  received,
			TeacherID: h.teacherID(),
			Err:       &JobTimedOutError{JobID: h.jobID, Attempts: received, LastErr: *lastErr},
		}, true
	}
	return Resolution{}, false
}
