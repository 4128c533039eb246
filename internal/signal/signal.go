// Package signal standardizes payloads shared between market data, throttling, and execution layers.
package signal

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side identifies the direction of a recommendation or order.
type Side string

const (
	// Buy marks long-side signals and orders.
	Buy Side = "BUY"
	// Sell marks short-side signals and orders.
	Sell Side = "SELL"
)

// Sides lists both directions in a stable order for iteration.
var Sides = []Side{Buy, Sell}

// Candidate is one cycle's raw signal for a single instrument side.
// Consumed immediately by the throttle ledger, never persisted.
type Candidate struct {
	Symbol      string
	Side        Side
	Price       decimal.Decimal
	Recommended bool
	At          time.Time
}

// Alert is an admitted candidate on its way to delivery and order placement.
type Alert struct {
	Symbol   string
	Side     Side
	Price    decimal.Decimal
	Strategy string
	At       time.Time
}
