// Package scheduler runs the fixed-interval signal cycle: read market data,
// consult the throttle ledger, deliver admitted alerts, and hand them to the
// execution pipeline.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ccruz0/crypto-2.0-sub010/internal/alert"
	"github.com/ccruz0/crypto-2.0-sub010/internal/breaker"
	"github.com/ccruz0/crypto-2.0-sub010/internal/config"
	"github.com/ccruz0/crypto-2.0-sub010/internal/marketdata"
	"github.com/ccruz0/crypto-2.0-sub010/internal/metrics"
	"github.com/ccruz0/crypto-2.0-sub010/internal/signal"
	"github.com/ccruz0/crypto-2.0-sub010/internal/throttle"
)

// State is the scheduler lifecycle position. A disabled configuration keeps
// the scheduler in Idle so "not running" stays distinguishable from "running
// but doing nothing".
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

var (
	// ErrDisabled reports that the engine flag prevents the loop from starting.
	ErrDisabled = errors.New("scheduler disabled by configuration")
	// ErrNotIdle reports a second Start without a restart in between.
	ErrNotIdle = errors.New("scheduler already started")
)

// Executor places protective orders for an admitted alert.
type Executor interface {
	ExecuteAlert(ctx context.Context, a signal.Alert, inst config.Instrument) []breaker.Outcome
}

// Summary is the one record emitted after every cycle.
type Summary struct {
	Cycle       uint64
	Processed   int
	EmittedBuy  int
	EmittedSell int
	Throttled   int
	ReadErrors  int
	NextRunAt   time.Time
}

// Options tunes the cycle loop.
type Options struct {
	Interval    time.Duration
	Enabled     bool
	MaxParallel int
	OnSummary   func(Summary)
}

// Scheduler owns the polling loop.
type Scheduler struct {
	store    *config.Store
	source   marketdata.Source
	ledger   *throttle.Ledger
	notifier alert.Notifier
	executor Executor
	log      zerolog.Logger
	opts     Options

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}

	cycle atomic.Uint64
	now   func() time.Time
}

// New wires a scheduler. executor may be nil for alert-only (dry) runs.
func New(store *config.Store, source marketdata.Source, ledger *throttle.Ledger, notifier alert.Notifier, executor Executor, log zerolog.Logger, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = 15 * time.Second
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 4
	}
	return &Scheduler{
		store:    store,
		source:   source,
		ledger:   ledger,
		notifier: notifier,
		executor: executor,
		log:      log,
		opts:     opts,
		now:      time.Now,
	}
}

// State reports the current lifecycle position.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start launches the loop. When the engine is disabled the loop never begins
// and the state stays Idle.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opts.Enabled {
		s.log.Warn().Msg("engine disabled, scheduler not starting")
		return ErrDisabled
	}
	if s.state != StateIdle {
		return ErrNotIdle
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.state = StateRunning
	go s.loop(runCtx)
	s.log.Info().Dur("interval", s.opts.Interval).Msg("scheduler started")
	return nil
}

// Stop ends the loop, letting the current cycle's in-flight admits finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.state = StateStopped
		s.mu.Unlock()
		close(s.done)
	}()

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

type cycleStats struct {
	mu          sync.Mutex
	processed   int
	emittedBuy  int
	emittedSell int
	throttled   int
	readErrors  int
}

func (s *Scheduler) runCycle(ctx context.Context) {
	ordinal := s.cycle.Add(1)
	stats := &cycleStats{}

	sem := make(chan struct{}, s.opts.MaxParallel)
	var wg sync.WaitGroup
	for _, inst := range s.store.Instruments() {
		if !inst.Enabled {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(inst config.Instrument) {
			defer wg.Done()
			defer func() { <-sem }()
			s.evaluateInstrument(ctx, inst, stats)
		}(inst)
	}
	wg.Wait()

	metrics.CyclesTotal.Inc()
	summary := Summary{
		Cycle:       ordinal,
		Processed:   stats.processed,
		EmittedBuy:  stats.emittedBuy,
		EmittedSell: stats.emittedSell,
		Throttled:   stats.throttled,
		ReadErrors:  stats.readErrors,
		NextRunAt:   s.now().Add(s.opts.Interval),
	}
	s.log.Info().
		Uint64("cycle", summary.Cycle).
		Int("processed", summary.Processed).
		Int("emitted_buy", summary.EmittedBuy).
		Int("emitted_sell", summary.EmittedSell).
		Int("throttled", summary.Throttled).
		Int("read_errors", summary.ReadErrors).
		Time("next_run_at", summary.NextRunAt).
		Msg("cycle summary")
	if s.opts.OnSummary != nil {
		s.opts.OnSummary(summary)
	}
}

func (s *Scheduler) evaluateInstrument(ctx context.Context, inst config.Instrument, stats *cycleStats) {
	stats.mu.Lock()
	stats.processed++
	stats.mu.Unlock()

	for _, side := range signal.Sides {
		quote, err := s.source.Read(ctx, inst.Symbol, side)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", inst.Symbol).Str("side", string(side)).Msg("market data read failed")
			stats.mu.Lock()
			stats.readErrors++
			stats.mu.Unlock()
			continue
		}
		if !quote.Recommended {
			continue
		}

		cand := signal.Candidate{
			Symbol:      inst.Symbol,
			Side:        side,
			Price:       quote.Price,
			Recommended: true,
			At:          s.now(),
		}
		dec := s.ledger.Evaluate(cand)
		if !dec.Admit {
			// Expected steady-state behavior, informational only.
			rec, _ := s.ledger.Snapshot(inst.Symbol, side)
			s.log.Info().
				Str("symbol", inst.Symbol).
				Str("side", string(side)).
				Str("reason", dec.Reason).
				Str("baseline_price", rec.BaselinePrice.String()).
				Msg("alert throttled")
			metrics.AlertsThrottled.WithLabelValues(inst.Symbol, string(side)).Inc()
			stats.mu.Lock()
			stats.throttled++
			stats.mu.Unlock()
			continue
		}

		a := signal.Alert{
			Symbol:   inst.Symbol,
			Side:     side,
			Price:    cand.Price,
			Strategy: inst.Strategy,
			At:       cand.At,
		}
		metrics.AlertsTotal.WithLabelValues(a.Symbol, string(a.Side)).Inc()
		stats.mu.Lock()
		if side == signal.Buy {
			stats.emittedBuy++
		} else {
			stats.emittedSell++
		}
		stats.mu.Unlock()

		// Admitted work must survive a Stop: the delivery and submission run
		// on a detached context so an exchange call is never aborted with an
		// unknown result.
		detached := context.WithoutCancel(ctx)
		_ = s.notifier.Notify(detached, a)
		if s.executor != nil && inst.PlaceProtected {
			s.executor.ExecuteAlert(detached, a, inst)
		}
	}
}
