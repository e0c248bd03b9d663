package poller

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"Sahayak/internal/domain"
	"Sahayak/internal/infrastructure/transport"
)

// scriptedFetcher answers the n-th call (1-based) with script(n).
type scriptedFetcher struct {
	calls  int32
	script func(n int) (domain.StatusReport, error)
}

func (f *scriptedFetcher) FetchStatus(_ context.Context, jobID string) (domain.StatusReport, error) {
	n := int(atomic.AddInt32(&f.calls, 1))
	r, err := f.script(n)
	r.JobID = jobID
	return r, err
}

func (f *scriptedFetcher) Calls() int {
	return int(atomic.LoadInt32(&f.calls))
}

func processing() (domain.StatusReport, error) {
	return domain.StatusReport{Status: domain.JobProcessing}, nil
}

func newFastPoller(f StatusFetcher, max int) *Poller {
	return New(f, WithInterval(time.Millisecond), WithMaxAttempts(max))
}

func waitResolution(t *testing.T, h *Handle) Resolution {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := h.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait error: %v", err)
	}
	return res
}

func TestPollerSucceedsAfterProcessing(t *testing.T) {
	t.Parallel()

	f := &scriptedFetcher{script: func(n int) (domain.StatusReport, error) {
		if n < 4 {
			return processing()
		}
		return domain.StatusReport{
			Status: domain.JobPendingReview,
			Questions: []map[string]any{{
				"question_number": "1", "question_text": "Q?", "suggested_answer": "A", "max_score": float64(5),
			}},
		}, nil
	}}

	var delivered int32
	p := newFastPoller(f, 20)
	h := p.Start(context.Background(), "A1", func(Resolution) { atomic.AddInt32(&delivered, 1) })
	res := waitResolution(t, h)

	if res.State != StateSucceeded || res.Err != nil {
		t.Fatalf("unexpected resolution: %+v", res)
	}
	want := []domain.Question{{ID: "1", Question: "Q?", Answer: "A", Points: 5}}
	if !reflect.DeepEqual(res.Questions, want) {
		t.Fatalf("got %+v, want %+v", res.Questions, want)
	}
	if atomic.LoadInt32(&delivered) != 1 {
		t.Fatalf("expected one delivery, got %d", delivered)
	}
	if p.Active("A1") {
		t.Fatal("resolved poll should not stay active")
	}
}

func TestPollerFailsImmediately(t *testing.T) {
	t.Parallel()

	f := &scriptedFetcher{script: func(int) (domain.StatusReport, error) {
		return domain.StatusReport{Status: domain.JobFailed, ErrorMessage: "OCR error"}, nil
	}}

	h := newFastPoller(f, 20).Start(context.Background(), "J", nil)
	res := waitResolution(t, h)

	if res.State != StateFailed || res.Message != "OCR error" {
		t.Fatalf("unexpected resolution: %+v", res)
	}
	var jf *JobFailedError
	if !errors.As(res.Err, &jf) || jf.Message != "OCR error" {
		t.Fatalf("expected JobFailedError, got %v", res.Err)
	}
	if res.Attempts >= 20 {
		t.Fatalf("failure should not wait for the budget, attempts=%d", res.Attempts)
	}
}

func TestPollerFailedWithoutMessage(t *testing.T) {
	t.Parallel()

	f := &scriptedFetcher{script: func(int) (domain.StatusReport, error) {
		return domain.StatusReport{Status: domain.JobFailed}, nil
	}}
	res := waitResolution(t, newFastPoller(f, 3).Start(context.Background(), "J", nil))
	if res.State != StateFailed || res.Message != unknownFailure {
		t.Fatalf("unexpected resolution: %+v", res)
	}
}

func TestPollerTimesOutAfterBudget(t *testing.T) {
	t.Parallel()

	f := &scriptedFetcher{script: func(int) (domain.StatusReport, error) { return processing() }}
	res := waitResolution(t, newFastPoller(f, 20).Start(context.Background(), "J", nil))

	if res.State != StateTimedOut || res.Attempts != 20 {
		t.Fatalf("unexpected resolution: %+v", res)
	}
	var to *JobTimedOutError
	if !errors.As(res.Err, &to) || to.LastErr != nil {
		t.Fatalf("expected clean JobTimedOutError, got %v", res.Err)
	}
	if f.Calls() != 20 {
		t.Fatalf("expected 20 attempts, got %d", f.Calls())
	}
}

func TestPollerToleratesTransportErrors(t *testing.T) {
	t.Parallel()

	f := &scriptedFetcher{script: func(n int) (domain.StatusReport, error) {
		if n < 20 {
			return domain.StatusReport{}, &transport.TransportError{Method: "GET", URL: "/x", Err: errors.New("connection reset")}
		}
		return domain.StatusReport{Status: domain.JobCompleted, Questions: []map[string]any{{"id": "1"}}}, nil
	}}

	res := waitResolution(t, newFastPoller(f, 20).Start(context.Background(), "J", nil))
	if res.State != StateSucceeded {
		t.Fatalf("expected success on last attempt, got %+v", res)
	}
}

func TestPollerTransportErrorOnLastAttemptTimesOut(t *testing.T) {
	t.Parallel()

	boom := &transport.TransportError{Method: "GET", URL: "/x", Kind: transport.ErrTimeout}
	f := &scriptedFetcher{script: func(int) (domain.StatusReport, error) { return domain.StatusReport{}, boom }}

	res := waitResolution(t, newFastPoller(f, 5).Start(context.Background(), "J", nil))
	if res.State != StateTimedOut {
		t.Fatalf("unexpected resolution: %+v", res)
	}
	if !errors.Is(res.Err, transport.ErrTimeout) {
		t.Fatalf("timed out error should carry last transport error, got %v", res.Err)
	}
}

func TestPollerSuccessNeedsQuestions(t *testing.T) {
	t.Parallel()

	f := &scriptedFetcher{script: func(int) (domain.StatusReport, error) {
		return domain.StatusReport{Status: domain.JobPendingReview}, nil
	}}
	res := waitResolution(t, newFastPoller(f, 3).Start(context.Background(), "J", nil))
	if res.State != StateTimedOut {
		t.Fatalf("empty success should keep polling until budget, got %+v", res)
	}
}

func TestPollerCapturesTeacherID(t *testing.T) {
	t.Parallel()

	f := &scriptedFetcher{script: func(n int) (domain.StatusReport, error) {
		if n == 1 {
			return domain.StatusReport{Status: domain.JobProcessing, TeacherID: "T-1"}, nil
		}
		return domain.StatusReport{Status: domain.JobPendingReview, Questions: []map[string]any{{}}}, nil
	}}
	res := waitResolution(t, newFastPoller(f, 5).Start(context.Background(), "J", nil))
	if res.TeacherID != "T-1" {
		t.Fatalf("expected teacher id, got %+v", res)
	}
}

func TestPollerRestartKeepsSinglePoll(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	f := &scriptedFetcher{script: func(int) (domain.StatusReport, error) {
		<-gate
		return domain.StatusReport{Status: domain.JobPendingReview, Questions: []map[string]any{{"id": "1"}}}, nil
	}}

	var delivered int32
	onResolve := func(Resolution) { atomic.AddInt32(&delivered, 1) }

	p := New(f, WithInterval(time.Hour), WithMaxAttempts(20))
	first := p.Start(context.Background(), "J", onResolve)
	second := p.Start(context.Background(), "J", onResolve)

	if first.State() != StateCancelled {
		t.Fatalf("first handle should be cancelled, got %s", first.State())
	}
	select {
	case <-first.Done():
	default:
		t.Fatal("cancelled handle should be done")
	}

	close(gate)
	res := waitResolution(t, second)
	if res.State != StateSucceeded {
		t.Fatalf("unexpected resolution: %+v", res)
	}

	// Give the first loop's in-flight attempt time to land and be dropped.
	time.Sleep(20 * time.Millisecond)
	if got := atomic.LoadInt32(&delivered); got != 1 {
		t.Fatalf("expected exactly one resolution, got %d", got)
	}
	if _, err := first.Wait(context.Background()); !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled from first handle, got %v", err)
	}
}

func TestPollerCancelDeliversNothing(t *testing.T) {
	t.Parallel()

	f := &scriptedFetcher{script: func(int) (domain.StatusReport, error) { return processing() }}

	var delivered int32
	p := New(f, WithInterval(5*time.Millisecond), WithMaxAttempts(1000))
	h := p.Start(context.Background(), "J", func(Resolution) { atomic.AddInt32(&delivered, 1) })

	time.Sleep(20 * time.Millisecond)
	h.Cancel()
	calls := f.Calls()
	time.Sleep(30 * time.Millisecond)

	if f.Calls() > calls+1 {
		t.Fatalf("attempts kept coming after cancel: %d -> %d", calls, f.Calls())
	}
	if atomic.LoadInt32(&delivered) != 0 {
		t.Fatal("cancelled poll must not deliver a resolution")
	}
	if p.Active("J") {
		t.Fatal("cancelled poll should not be active")
	}
	if h.State() != StateCancelled {
		t.Fatalf("unexpected state %s", h.State())
	}
}

func TestPollerParentContextAbandons(t *testing.T) {
	t.Parallel()

	f := &scriptedFetcher{script: func(int) (domain.StatusReport, error) { return processing() }}
	p := New(f, WithInterval(time.Millisecond), WithMaxAttempts(1000))

	ctx, cancel := context.WithCancel(context.Background())
	h := p.Start(ctx, "J", nil)
	cancel()

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("poll did not stop after parent context ended")
	}
	if h.State() != StateCancelled {
		t.Fatalf("unexpected state %s", h.State())
	}
}

// slowFetcher tracks how many requests overlap.
type slowFetcher struct {
	mu       sync.Mutex
	inflight int
	peak     int
	delay    time.Duration
}

func (f *slowFetcher) FetchStatus(context.Context, string) (domain.StatusReport, error) {
	f.mu.Lock()
	f.inflight++
	if f.inflight > f.peak {
		f.peak = f.inflight
	}
	f.mu.Unlock()

	time.Sleep(f.delay)

	f.mu.Lock()
	f.inflight--
	f.mu.Unlock()
	return domain.StatusReport{Status: domain.JobProcessing}, nil
}

func TestPollerCadenceIgnoresLatency(t *testing.T) {
	t.Parallel()

	f := &slowFetcher{delay: 50 * time.Millisecond}
	res := waitResolution(t, New(f, WithInterval(2*time.Millisecond), WithMaxAttempts(5)).Start(context.Background(), "J", nil))

	if res.State != StateTimedOut || res.Attempts != 5 {
		t.Fatalf("unexpected resolution: %+v", res)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.peak < 2 {
		t.Fatalf("attempts should not wait for slow responses, peak in flight = %d", f.peak)
	}
}

type manualTicker struct {
	ch      chan time.Time
	stopped int32
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               { atomic.StoreInt32(&m.stopped, 1) }

func TestPollerUsesInjectedTicker(t *testing.T) {
	t.Parallel()

	mt := &manualTicker{ch: make(chan time.Time)}
	f := &scriptedFetcher{script: func(int) (domain.StatusReport, error) { return processing() }}
	p := New(f, WithTicker(func(time.Duration) Ticker { return mt }), WithMaxAttempts(3))
	h := p.Start(context.Background(), "J", nil)

	mt.ch <- time.Now()
	mt.ch <- time.Now()

	res := waitResolution(t, h)
	if res.State != StateTimedOut || f.Calls() != 3 {
		t.Fatalf("unexpected resolution %+v after %d calls", res, f.Calls())
	}
	if atomic.LoadInt32(&mt.stopped) != 1 {
		t.Fatal("ticker should be stopped")
	}
}

func TestStateTerminal(t *testing.T) {
	t.Parallel()

	if StatePolling.Terminal() || StateIdle.Terminal() {
		t.Fatal("idle/polling are not terminal")
	}
	for _, s := range []State{StateSucceeded, StateFailed, StateTimedOut, StateCancelled} {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
}

// gatedFetcher holds every call before the last one until release is closed
// and answers those with a transport error.
type gatedFetcher struct {
	calls   int32
	last    int
	entered chan int
	release chan struct{}
}

func (f *gatedFetcher) FetchStatus(_ context.Context, jobID string) (domain.StatusReport, error) {
	n := int(atomic.AddInt32(&f.calls, 1))
	f.entered <- n
	if n < f.last {
		<-f.release
		return domain.StatusReport{}, &transport.TransportError{Method: "GET", URL: jobID, Kind: transport.ErrTimeout}
	}
	return domain.StatusReport{
		Status:    domain.JobPendingReview,
		Questions: []map[string]any{{"question": "Q"}},
	}, nil
}

func TestPollerReportsDecidingAttemptNumber(t *testing.T) {
	t.Parallel()

	f := &gatedFetcher{last: 3, entered: make(chan int, 3), release: make(chan struct{})}
	defer close(f.release)

	mt := &manualTicker{ch: make(chan time.Time)}
	p := New(f, WithTicker(func(time.Duration) Ticker { return mt }), WithMaxAttempts(3))
	h := p.Start(context.Background(), "J", nil)

	// Tick only once the previous attempt is in flight so call order matches
	// attempt numbering.
	<-f.entered
	mt.ch <- time.Now()
	<-f.entered
	mt.ch <- time.Now()
	<-f.entered

	res := waitResolution(t, h)
	if res.State != StateSucceeded {
		t.Fatalf("unexpected state %s", res.State)
	}
	if res.Attempts != 3 {
		t.Fatalf("attempts = %d, want the deciding attempt 3", res.Attempts)
	}
}
