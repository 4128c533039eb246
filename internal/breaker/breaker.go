// Package breaker wraps outbound exchange calls with classification-driven
// retries and a per-category circuit. The classifier is consulted before any
// retry decision; nothing here retries blindly.
package breaker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ccruz0/crypto-2.0-sub010/internal/exchange"
	"github.com/ccruz0/crypto-2.0-sub010/internal/metrics"
)

// Decision tags the terminal result of one guarded call.
type Decision string

const (
	// Accepted means the venue acknowledged the operation.
	Accepted Decision = "ACCEPTED"
	// Rejected means the venue permanently refused it; retrying reproduces the failure.
	Rejected Decision = "REJECTED"
	// Failed means transient failures exhausted the attempt cap.
	Failed Decision = "FAILED"
	// Blocked means an account/administrative condition stops this category until a human acts.
	Blocked Decision = "BLOCKED"
)

// Outcome is the typed result of Call. Never persisted beyond logging; the
// caller decides what to do with it.
type Outcome struct {
	Decision       Decision
	Code           exchange.Code
	OperatorAction string
	Attempts       int
	Err            error
}

// State is the lifecycle position of one category's circuit.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

const (
	defaultMaxAttempts  = 4
	defaultBaseBackoff  = 500 * time.Millisecond
	defaultMaxBackoff   = 8 * time.Second
	defaultCoolDown     = 2 * time.Minute
	maxCoolDown         = 30 * time.Minute
	failureRunThreshold = 3
)

type circuit struct {
	state      State
	openUntil  time.Time
	window     time.Duration
	failureRun int
	lastCode   exchange.Code
	lastAction string
}

// Controller guards exchange calls per operation category.
type Controller struct {
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	coolDown    time.Duration
	log         zerolog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	circuits *circuitTable
}

// Option tunes a Controller.
type Option func(*Controller)

// WithMaxAttempts caps retries per call, minimum one attempt.
func WithMaxAttempts(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithBackoff overrides the base and ceiling backoff durations.
func WithBackoff(base, max time.Duration) Option {
	return func(c *Controller) {
		if base > 0 {
			c.baseBackoff = base
		}
		if max > 0 {
			c.maxBackoff = max
		}
	}
}

// WithCoolDown overrides the initial circuit-open window.
func WithCoolDown(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.coolDown = d
		}
	}
}

// NewController builds a Controller with bounded defaults.
func NewController(log zerolog.Logger, opts ...Option) *Controller {
	c := &Controller{
		maxAttempts: defaultMaxAttempts,
		baseBackoff: defaultBaseBackoff,
		maxBackoff:  defaultMaxBackoff,
		coolDown:    defaultCoolDown,
		log:         log,
		now:         time.Now,
		sleep:       sleepCtx,
		circuits:    newCircuitTable(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CircuitState reports the category's current state, advancing Open to
// HalfOpen when the cool-down has elapsed.
func (c *Controller) CircuitState(category string) State {
	cb := c.circuits.get(category)
	cb.mu.Lock()
	defer cb.mu.Unlock()
	c.advanceLocked(category, &cb.circuit)
	return cb.circuit.state
}

// advanceLocked moves Open→HalfOpen once the window expires.
func (c *Controller) advanceLocked(category string, cir *circuit) {
	if cir.state == StateOpen && !c.now().Before(cir.openUntil) {
		cir.state = StateHalfOpen
		metrics.CircuitOpen.WithLabelValues(category).Set(0)
		c.log.Info().Str("category", category).Msg("circuit half-open, allowing one trial call")
	}
}

// Call runs thunk under the category's circuit. Retryable failures are
// retried with exponential backoff up to the attempt cap; the backoff sleeps
// suspend only this call, never the rest of the engine.
func (c *Controller) Call(ctx context.Context, category string, thunk func(context.Context) error) Outcome {
	cb := c.circuits.get(category)

	cb.mu.Lock()
	c.advanceLocked(category, &cb.circuit)
	switch cb.circuit.state {
	case StateOpen:
		out := Outcome{
			Decision:       Blocked,
			Code:           cb.circuit.lastCode,
			OperatorAction: cb.circuit.lastAction,
		}
		cb.mu.Unlock()
		c.log.Warn().Str("category", category).Int("code", int(out.Code)).Msg("circuit open, short-circuiting call")
		return out
	case StateHalfOpen:
		// Exactly one trial call probes the venue; peers stay blocked.
		if cb.trialInFlight {
			out := Outcome{Decision: Blocked, Code: cb.circuit.lastCode, OperatorAction: cb.circuit.lastAction}
			cb.mu.Unlock()
			return out
		}
		cb.trialInFlight = true
	}
	halfOpenTrial := cb.circuit.state == StateHalfOpen
	cb.mu.Unlock()

	attempts := 0
	for {
		attempts++
		err := thunk(ctx)
		if err == nil {
			c.recordSuccess(category, cb)
			return Outcome{Decision: Accepted, Attempts: attempts}
		}

		code := exchange.CodeOf(err)
		switch exchange.Classify(code) {
		case exchange.ClassNonRetryable:
			c.recordFailure(category, cb, code, "", halfOpenTrial, false)
			return Outcome{Decision: Rejected, Code: code, Attempts: attempts, Err: err}

		case exchange.ClassBlocked:
			action := exchange.OperatorAction(code)
			c.recordFailure(category, cb, code, action, halfOpenTrial, true)
			return Outcome{Decision: Blocked, Code: code, OperatorAction: action, Attempts: attempts, Err: err}

		default: // retryable
			if attempts >= c.maxAttempts {
				c.recordFailure(category, cb, code, "", halfOpenTrial, true)
				return Outcome{Decision: Failed, Code: code, Attempts: attempts, Err: err}
			}
			metrics.ExchangeRetries.WithLabelValues(category).Inc()
			backoff := c.backoffFor(attempts)
			c.log.Debug().Str("category", category).Int("code", int(code)).Dur("backoff", backoff).Int("attempt", attempts).Msg("transient failure, backing off")
			if sleepErr := c.sleep(ctx, backoff); sleepErr != nil {
				c.recordFailure(category, cb, code, "", halfOpenTrial, false)
				return Outcome{Decision: Failed, Code: code, Attempts: attempts, Err: sleepErr}
			}
		}
	}
}

func (c *Controller) backoffFor(attempt int) time.Duration {
	backoff := c.baseBackoff << (attempt - 1)
	if backoff > c.maxBackoff || backoff <= 0 {
		backoff = c.maxBackoff
	}
	return backoff
}

func (c *Controller) recordSuccess(category string, cb *guardedCircuit) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.trialInFlight = false
	if cb.circuit.state != StateClosed {
		c.log.Info().Str("category", category).Msg("circuit closed")
	}
	cb.circuit = circuit{state: StateClosed}
	metrics.CircuitOpen.WithLabelValues(category).Set(0)
}

// recordFailure updates the failure run and trips the circuit when warranted.
// trip forces an immediate open (blocked codes, exhausted retries); otherwise
// a run of consecutive failures opens it.
func (c *Controller) recordFailure(category string, cb *guardedCircuit, code exchange.Code, action string, halfOpenTrial, trip bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.trialInFlight = false
	cir := &cb.circuit
	cir.lastCode = code
	if action != "" {
		cir.lastAction = action
	}
	cir.failureRun++

	if halfOpenTrial {
		// Failed trial: reopen with an extended window.
		cir.window *= 2
		if cir.window > maxCoolDown {
			cir.window = maxCoolDown
		}
		c.openLocked(category, cir)
		return
	}
	if trip || cir.failureRun >= failureRunThreshold {
		if cir.window == 0 {
			cir.window = c.coolDown
		}
		c.openLocked(category, cir)
	}
}

func (c *Controller) openLocked(category string, cir *circuit) {
	cir.state = StateOpen
	cir.openUntil = c.now().Add(cir.window)
	cir.failureRun = 0
	metrics.CircuitOpen.WithLabelValues(category).Set(1)
	c.log.Warn().
		Str("category", category).
		Int("code", int(cir.lastCode)).
		Time("until", cir.openUntil).
		Str("operator_action", cir.lastAction).
		Msg("circuit opened")
}
