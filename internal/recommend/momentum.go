// Package recommend supplies raw buy/sell recommendations from recent price
// movement. It sits behind the market data Recommender interface so richer
// signal sources can replace it without touching the engine.
package recommend

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ccruz0/crypto-2.0-sub010/internal/signal"
)

const minSpacing = time.Second

type point struct {
	price decimal.Decimal
	at    time.Time
}

type series struct {
	points []point
}

// Momentum recommends a side when percent change over a lookback window
// crosses a threshold: BUY on an up-move, SELL on a down-move.
type Momentum struct {
	threshold decimal.Decimal
	window    time.Duration
	now       func() time.Time

	mu           sync.Mutex
	observations map[string]*series
}

// NewMomentum builds a momentum recommender. thresholdPct is the absolute
// percent change that arms a side; non-positive inputs fall back to defaults.
func NewMomentum(thresholdPct decimal.Decimal, window time.Duration) *Momentum {
	if thresholdPct.Sign() <= 0 {
		thresholdPct = decimal.RequireFromString("0.5")
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &Momentum{
		threshold:    thresholdPct.Div(decimal.NewFromInt(100)),
		window:       window,
		now:          time.Now,
		observations: make(map[string]*series),
	}
}

// Recommend records the price observation and reports whether the side's
// momentum condition holds right now.
func (m *Momentum) Recommend(symbol string, side signal.Side, price decimal.Decimal) bool {
	if symbol == "" || price.Sign() <= 0 {
		return false
	}
	now := m.now()

	m.mu.Lock()
	s := m.observations[symbol]
	if s == nil {
		s = &series{}
		m.observations[symbol] = s
	}
	s.observe(point{price: price, at: now}, m.window)
	oldest, latest, ok := s.bounds()
	m.mu.Unlock()

	if !ok || oldest.price.Sign() <= 0 {
		return false
	}
	change := latest.price.Sub(oldest.price).Div(oldest.price)
	if side == signal.Buy {
		return change.GreaterThanOrEqual(m.threshold)
	}
	return change.LessThanOrEqual(m.threshold.Neg())
}

// observe appends the point, collapsing near-simultaneous reads (both sides
// of one cycle) into a single observation, and trims past the window.
func (s *series) observe(p point, window time.Duration) {
	if n := len(s.points); n > 0 && p.at.Sub(s.points[n-1].at) < minSpacing {
		s.points[n-1] = p
	} else {
		s.points = append(s.points, p)
	}
	cutoff := p.at.Add(-window)
	idx := 0
	for i, existing := range s.points {
		if existing.at.After(cutoff) {
			idx = i
			break
		}
		idx = i + 1
	}
	if idx > 0 && idx <= len(s.points) {
		s.points = s.points[idx:]
	}
}

func (s *series) bounds() (point, point, bool) {
	if len(s.points) < 2 {
		return point{}, point{}, false
	}
	return s.points[0], s.points[len(s.points)-1], true
}
