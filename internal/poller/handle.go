package poller

import (
	"context"
	"sync"

	"Sahayak/internal/domain"
)

// State is the lifecycle of one poll.
type State int

const (
	StateIdle State = iota
	StatePolling
	StateSucceeded
	StateFailed
	StateTimedOut
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateTimedOut || s == StateCancelled
}

// Resolution is the terminal outcome of a poll. Err is nil only on success.
// Attempts is the sequence number of the attempt that decided the outcome;
// for a timeout it equals the attempt budget.
type Resolution struct {
	JobID     string
	State     State
	Questions []domain.Question
	TeacherID string
	Message   string
	Attempts  int
	Err       error
}

// Handle controls one poll loop.
type Handle struct {
	id        string
	jobID     string
	cancelFn  context.CancelFunc
	onResolve func(Resolution)
	release   func(*Handle)

	mu      sync.Mutex
	state   State
	res     Resolution
	teacher string
	done    chan struct{}
}

// ID is unique per Start call.
func (h *Handle) ID() string { return h.id }

// JobID is the job being polled.
func (h *Handle) JobID() string { return h.jobID }

// Done is closed once the poll resolved or was cancelled.
func (h *Handle) Done() <-chan struct{} { return h.done }

// State returns the current state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Result returns the resolution once the poll reached a terminal outcome.
// ok is false while polling and after cancellation.
func (h *Handle) Result() (Resolution, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StatePolling || h.state == StateCancelled {
		return Resolution{}, false
	}
	return h.res, true
}

// Cancel halts polling. No resolution is delivered afterwards.
func (h *Handle) Cancel() {
	if h.stop() && h.release != nil {
		h.release(h)
	}
}

// Wait blocks until the poll finishes or ctx ends. A cancelled poll yields
// ErrCancelled; ctx ending yields ctx.Err() and leaves the poll running.
func (h *Handle) Wait(ctx context.Context) (Resolution, error) {
	select {
	case <-h.done:
	case <-ctx.Done():
		return Resolution{}, ctx.Err()
	}
	res, ok := h.Result()
	if !ok {
		return Resolution{}, ErrCancelled
	}
	return res, nil
}

// stop moves a polling handle to cancelled. It reports whether it did.
func (h *Handle) stop() bool {
	h.mu.Lock()
	if h.state != StatePolling {
		h.mu.Unlock()
		return false
	}
	h.state = StateCancelled
	close(h.done)
	h.mu.Unlock()
	h.cancelFn()
	return true
}

// resolve records the terminal outcome and delivers it once.
func (h *Handle) resolve(res Resolution) bool {
	h.mu.Lock()
	if h.state != StatePolling {
		h.mu.Unlock()
		return false
	}
	h.state = res.State
	h.res = res
	close(h.done)
	h.mu.Unlock()

	h.cancelFn()
	if h.onResolve != nil {
		h.onResolve(res)
	}
	return true
}

func (h *Handle) setTeacherID(id string) {
	h.mu.Lock()
	h.teacher = id
	h.mu.Unlock()
}

func (h *Handle) teacherID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.teacher
}
