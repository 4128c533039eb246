// Package risk encodes guard-rails on how much notional a single protective
// order may carry.
package risk

import "github.com/shopspring/decimal"

// Limits caps per-order exposure. A zero cap disables the check.
type Limits struct {
	MaxNotionalPerOrder decimal.Decimal
}

// Allow reports whether an order of the given notional may be submitted.
func (l Limits) Allow(notional decimal.Decimal) bool {
	if l.MaxNotionalPerOrder.Sign() <= 0 {
		return true
	}
	return notional.LessThanOrEqual(l.MaxNotionalPerOrder)
}
