// Package throttle decides, per instrument and side, whether a raw signal may
// become an alert right now. One record exists per (symbol, side); a record
// mutates only on an admitted decision.
package throttle

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ccruz0/crypto-2.0-sub010/internal/signal"
)

// Window is the fixed minimum interval between two admitted alerts on the
// same (symbol, side). Deliberately a constant: operators change instrument
// settings, never the cadence contract.
const Window = 60 * time.Second

// Record is the persistent throttle state for one (symbol, side).
type Record struct {
	LastSentAt    time.Time
	BaselinePrice decimal.Decimal
	PendingBypass bool
}

// Decision is the outcome of evaluating one candidate.
type Decision struct {
	Admit    bool
	Bypassed bool
	Reason   string
}

type entry struct {
	mu  sync.Mutex
	rec Record
}

// Ledger owns the throttle records. Each key has its own critical section so
// instruments never contend with each other; the outer mutex only guards the
// key table itself.
type Ledger struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

// NewLedger returns an empty ledger using the wall clock.
func NewLedger() *Ledger {
	return &Ledger{entries: make(map[string]*entry), now: time.Now}
}

func key(symbol string, side signal.Side) string {
	return symbol + "|" + string(side)
}

func (l *Ledger) entryFor(symbol string, side signal.Side) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := key(symbol, side)
	e, ok := l.entries[k]
	if !ok {
		e = &entry{}
		l.entries[k] = e
	}
	return e
}

// Evaluate atomically decides whether the candidate may fire and, on admit,
// advances the side's record to the candidate's time and price. A denied
// candidate leaves the record untouched.
func (l *Ledger) Evaluate(cand signal.Candidate) Decision {
	e := l.entryFor(cand.Symbol, cand.Side)
	e.mu.Lock()
	defer e.mu.Unlock()

	now := cand.At
	if now.IsZero() {
		now = l.now()
	}

	switch {
	case e.rec.PendingBypass:
		e.rec = Record{LastSentAt: now, BaselinePrice: cand.Price}
		return Decision{Admit: true, Bypassed: true, Reason: "config change bypass"}

	case e.rec.LastSentAt.IsZero():
		e.rec = Record{LastSentAt: now, BaselinePrice: cand.Price}
		return Decision{Admit: true, Reason: "first alert for side"}

	default:
		elapsed := now.Sub(e.rec.LastSentAt)
		if elapsed < Window {
			return Decision{
				Admit:  false,
				Reason: fmt.Sprintf("cooldown not met (elapsed %s < window %s)", elapsed.Truncate(time.Second), Window),
			}
		}
		e.rec.LastSentAt = now
		e.rec.BaselinePrice = cand.Price
		return Decision{Admit: true, Reason: "window elapsed"}
	}
}

// RequestBypass marks the side so its next candidate is admitted regardless
// of the window. The flag is consumed by exactly one admit.
func (l *Ledger) RequestBypass(symbol string, side signal.Side) {
	e := l.entryFor(symbol, side)
	e.mu.Lock()
	e.rec.PendingBypass = true
	e.mu.Unlock()
}

// Snapshot returns a copy of the side's record and whether one exists yet.
func (l *Ledger) Snapshot(symbol string, side signal.Side) (Record, bool) {
	e := l.entryFor(symbol, side)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec, !e.rec.LastSentAt.IsZero() || e.rec.PendingBypass
}
