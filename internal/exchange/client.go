package exchange

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/ccruz0/crypto-2.0-sub010/internal/signal"
)

// OrderKind selects the protective order type.
type OrderKind string

const (
	// KindTakeProfitLimit exits a position at a favorable trigger.
	KindTakeProfitLimit OrderKind = "TAKE_PROFIT_LIMIT"
	// KindStopLimit exits a position at a protective trigger.
	KindStopLimit OrderKind = "STOP_LOSS_LIMIT"
)

// Order is a fully formatted placement request. Price, Quantity, and
// TriggerCondition are wire-format strings already quantized to the
// instrument's filters.
type Order struct {
	Symbol           string
	Side             signal.Side
	Kind             OrderKind
	Price            string
	Quantity         string
	TriggerCondition string
	ClientOrderID    string
}

// Ack is the venue's acknowledgment of an accepted order.
type Ack struct {
	OrderID       int64
	ClientOrderID string
}

// OrderPlacer submits formatted orders to the venue. Failures carry an
// *APIError when the venue replied with a structured code.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, order Order) (Ack, error)
}

// Meta holds the per-instrument filters the quantizer needs.
type Meta struct {
	TickSize decimal.Decimal
	StepSize decimal.Decimal
}

// MetaSource resolves instrument filters.
type MetaSource interface {
	InstrumentMeta(ctx context.Context, symbol string) (Meta, error)
}
