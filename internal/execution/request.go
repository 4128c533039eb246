// Package execution turns admitted alerts into exchange-ready protective
// orders and shepherds them through the retry/circuit controller.
package execution

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ccruz0/crypto-2.0-sub010/internal/config"
	"github.com/ccruz0/crypto-2.0-sub010/internal/exchange"
	"github.com/ccruz0/crypto-2.0-sub010/internal/quant"
	"github.com/ccruz0/crypto-2.0-sub010/internal/signal"
)

var hundred = decimal.NewFromInt(100)

// Request is one protective order before quantization. Raw values are exact
// decimals; the pipeline fills in wire-format fields during Execute.
type Request struct {
	Symbol      string
	Side        signal.Side
	Kind        exchange.OrderKind
	RawPrice    decimal.Decimal
	RawQuantity decimal.Decimal
	Trigger     quant.TriggerDirection
}

// BuildProtective derives the TP and SL order pair for an admitted alert.
// A BUY alert is protected by SELL orders above (take profit) and below
// (stop loss) the alert price; a SELL alert mirrors that.
func BuildProtective(a signal.Alert, inst config.Instrument) ([]Request, error) {
	qty, err := quant.NormalizeDecimalString(inst.Quantity)
	if err != nil {
		return nil, fmt.Errorf("quantity for %s: %w", inst.Symbol, err)
	}
	tpPct, err := quant.NormalizeDecimalString(inst.TakeProfitPct)
	if err != nil {
		return nil, fmt.Errorf("take profit pct for %s: %w", inst.Symbol, err)
	}
	slPct, err := quant.NormalizeDecimalString(inst.StopLossPct)
	if err != nil {
		return nil, fmt.Errorf("stop loss pct for %s: %w", inst.Symbol, err)
	}

	tpOffset := a.Price.Mul(tpPct).Div(hundred)
	slOffset := a.Price.Mul(slPct).Div(hundred)

	if a.Side == signal.Buy {
		return []Request{
			{
				Symbol:      a.Symbol,
				Side:        signal.Sell,
				Kind:        exchange.KindTakeProfitLimit,
				RawPrice:    a.Price.Add(tpOffset),
				RawQuantity: qty,
				Trigger:     quant.TriggerAbove,
			},
			{
				Symbol:      a.Symbol,
				Side:        signal.Sell,
				Kind:        exchange.KindStopLimit,
				RawPrice:    a.Price.Sub(slOffset),
				RawQuantity: qty,
				Trigger:     quant.TriggerBelow,
			},
		}, nil
	}
	return []Request{
		{
			Symbol:      a.Symbol,
			Side:        signal.Buy,
			Kind:        exchange.KindTakeProfitLimit,
			RawPrice:    a.Price.Sub(tpOffset),
			RawQuantity: qty,
			Trigger:     quant.TriggerBelow,
		},
		{
			Symbol:      a.Symbol,
			Side:        signal.Buy,
			Kind:        exchange.KindStopLimit,
			RawPrice:    a.Price.Add(slOffset),
			RawQuantity: qty,
			Trigger:     quant.TriggerAbove,
		},
	}, nil
}
