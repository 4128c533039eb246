package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ccruz0/crypto-2.0-sub010/internal/alert"
	"github.com/ccruz0/crypto-2.0-sub010/internal/breaker"
	"github.com/ccruz0/crypto-2.0-sub010/internal/config"
	"github.com/ccruz0/crypto-2.0-sub010/internal/marketdata"
	"github.com/ccruz0/crypto-2.0-sub010/internal/signal"
	"github.com/ccruz0/crypto-2.0-sub010/internal/throttle"
)

type scriptedSource struct {
	mu        sync.Mutex
	price     decimal.Decimal
	recommend map[signal.Side]bool
	err       error
}

func (s *scriptedSource) Read(_ context.Context, _ string, side signal.Side) (marketdata.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return marketdata.Quote{}, s.err
	}
	return marketdata.Quote{Price: s.price, Recommended: s.recommend[side], At: time.Now()}, nil
}

type countingExecutor struct {
	mu    sync.Mutex
	calls []signal.Alert
}

func (e *countingExecutor) ExecuteAlert(_ context.Context, a signal.Alert, _ config.Instrument) []breaker.Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, a)
	return []breaker.Outcome{{Decision: breaker.Accepted}}
}

func (e *countingExecutor) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

func testStore() *config.Store {
	return config.NewStore([]config.Instrument{
		{Symbol: "ABCUSD", Enabled: true, Quantity: "0.5", TakeProfitPct: "1", StopLossPct: "1", Strategy: "rsi-1h", PlaceProtected: true},
		{Symbol: "OFFUSD", Enabled: false, Quantity: "1", TakeProfitPct: "1", StopLossPct: "1"},
	}, nil)
}

func newTestScheduler(t *testing.T, source marketdata.Source, exec Executor, opts Options) (*Scheduler, *alert.History, chan Summary) {
	t.Helper()
	history := alert.NewHistory(8)
	summaries := make(chan Summary, 16)
	opts.OnSummary = func(s Summary) {
		select {
		case summaries <- s:
		default:
		}
	}
	sched := New(testStore(), source, throttle.NewLedger(), history, exec, zerolog.Nop(), opts)
	return sched, history, summaries
}

func TestStartDisabledDoesNothing(t *testing.T) {
	source := &scriptedSource{price: decimal.NewFromInt(10)}
	sched, _, _ := newTestScheduler(t, source, nil, Options{Enabled: false, Interval: 10 * time.Millisecond})

	if err := sched.Start(context.Background()); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
	if sched.State() != StateIdle {
		t.Fatalf("disabled scheduler must stay idle, got %s", sched.State())
	}
}

func TestDoubleStartRejected(t *testing.T) {
	source := &scriptedSource{price: decimal.NewFromInt(10)}
	sched, _, _ := newTestScheduler(t, source, nil, Options{Enabled: true, Interval: time.Hour})
	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	defer sched.Stop()
	if err := sched.Start(context.Background()); !errors.Is(err, ErrNotIdle) {
		t.Fatalf("expected ErrNotIdle, got %v", err)
	}
}

func TestCycleEmitsAlertAndInvokesExecutor(t *testing.T) {
	source := &scriptedSource{
		price:     decimal.RequireFromString("10.00"),
		recommend: map[signal.Side]bool{signal.Buy: true},
	}
	exec := &countingExecutor{}
	sched, history, summaries := newTestScheduler(t, source, exec, Options{Enabled: true, Interval: 20 * time.Millisecond})

	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	var first Summary
	select {
	case first = <-summaries:
	case <-time.After(2 * time.Second):
		t.Fatalf("no cycle summary produced")
	}
	if first.Cycle != 1 {
		t.Fatalf("expected first ordinal 1, got %d", first.Cycle)
	}
	if first.Processed != 1 {
		t.Fatalf("disabled instruments must not be processed, got %d", first.Processed)
	}
	if first.EmittedBuy != 1 || first.EmittedSell != 0 {
		t.Fatalf("expected one BUY alert, got %+v", first)
	}
	if first.NextRunAt.IsZero() {
		t.Fatalf("summary must schedule the next run")
	}

	// Second cycle falls inside the throttle window: denied, nothing new placed.
	var second Summary
	select {
	case second = <-summaries:
	case <-time.After(2 * time.Second):
		t.Fatalf("no second summary produced")
	}
	if second.Throttled != 1 || second.EmittedBuy != 0 {
		t.Fatalf("expected second cycle throttled, got %+v", second)
	}

	sched.Stop()
	if sched.State() != StateStopped {
		t.Fatalf("expected Stopped, got %s", sched.State())
	}

	if got := len(history.Snapshot()); got != 1 {
		t.Fatalf("expected exactly one delivered alert, got %d", got)
	}
	if exec.count() != 1 {
		t.Fatalf("expected exactly one pipeline invocation, got %d", exec.count())
	}
}

func TestReadErrorsAreCountedNotFatal(t *testing.T) {
	source := &scriptedSource{err: marketdata.ErrStale}
	sched, _, summaries := newTestScheduler(t, source, nil, Options{Enabled: true, Interval: 20 * time.Millisecond})
	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer sched.Stop()

	select {
	case s := <-summaries:
		if s.ReadErrors != 2 {
			t.Fatalf("expected one read error per side, got %d", s.ReadErrors)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no summary produced")
	}
}
