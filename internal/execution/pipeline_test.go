package execution

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ccruz0/crypto-2.0-sub010/internal/breaker"
	"github.com/ccruz0/crypto-2.0-sub010/internal/config"
	"github.com/ccruz0/crypto-2.0-sub010/internal/exchange"
	"github.com/ccruz0/crypto-2.0-sub010/internal/quant"
	"github.com/ccruz0/crypto-2.0-sub010/internal/risk"
	"github.com/ccruz0/crypto-2.0-sub010/internal/signal"
)

func d(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad fixture %q: %v", s, err)
	}
	return v
}

func testMetaSource(t *testing.T) exchange.StaticMeta {
	t.Helper()
	return exchange.StaticMeta{
		"ABCUSD": {TickSize: d(t, "0.0001"), StepSize: d(t, "0.001")},
	}
}

func testInstrument() config.Instrument {
	return config.Instrument{
		Symbol:         "ABCUSD",
		Enabled:        true,
		Quantity:       "0.5",
		TakeProfitPct:  "2",
		StopLossPct:    "1",
		Strategy:       "rsi-1h",
		PlaceProtected: true,
	}
}

func testPipeline(t *testing.T, placer exchange.OrderPlacer, limits risk.Limits) *Pipeline {
	t.Helper()
	ctrl := breaker.NewController(zerolog.Nop(), breaker.WithBackoff(time.Millisecond, time.Millisecond))
	return NewPipeline(testMetaSource(t), placer, ctrl, limits, zerolog.Nop(), nil)
}

func TestBuildProtectiveForBuyAlert(t *testing.T) {
	a := signal.Alert{Symbol: "ABCUSD", Side: signal.Buy, Price: d(t, "100"), At: time.Now()}
	reqs, err := BuildProtective(a, testInstrument())
	if err != nil {
		t.Fatalf("BuildProtective returned error: %v", err)
	}
	if len(reqs) != 2 {
		t.Fatalf("expected TP and SL legs, got %d", len(reqs))
	}

	tp, sl := reqs[0], reqs[1]
	if tp.Kind != exchange.KindTakeProfitLimit || sl.Kind != exchange.KindStopLimit {
		t.Fatalf("unexpected kinds: %s, %s", tp.Kind, sl.Kind)
	}
	if tp.Side != signal.Sell || sl.Side != signal.Sell {
		t.Fatalf("BUY alert must be protected by SELL orders")
	}
	if tp.RawPrice.String() != "102" {
		t.Fatalf("expected TP at 102, got %s", tp.RawPrice)
	}
	if sl.RawPrice.String() != "99" {
		t.Fatalf("expected SL at 99, got %s", sl.RawPrice)
	}
	if tp.Trigger != quant.TriggerAbove || sl.Trigger != quant.TriggerBelow {
		t.Fatalf("unexpected trigger directions")
	}
}

func TestBuildProtectiveForSellAlert(t *testing.T) {
	a := signal.Alert{Symbol: "ABCUSD", Side: signal.Sell, Price: d(t, "100"), At: time.Now()}
	reqs, err := BuildProtective(a, testInstrument())
	if err != nil {
		t.Fatalf("BuildProtective returned error: %v", err)
	}
	tp, sl := reqs[0], reqs[1]
	if tp.Side != signal.Buy || sl.Side != signal.Buy {
		t.Fatalf("SELL alert must be protected by BUY orders")
	}
	if tp.RawPrice.String() != "98" || sl.RawPrice.String() != "101" {
		t.Fatalf("unexpected protective prices: %s, %s", tp.RawPrice, sl.RawPrice)
	}
	if tp.Trigger != quant.TriggerBelow || sl.Trigger != quant.TriggerAbove {
		t.Fatalf("unexpected trigger directions")
	}
}

func TestBuildProtectiveRejectsBadQuantity(t *testing.T) {
	inst := testInstrument()
	inst.Quantity = "lots"
	a := signal.Alert{Symbol: "ABCUSD", Side: signal.Buy, Price: d(t, "100")}
	if _, err := BuildProtective(a, inst); err == nil {
		t.Fatalf("expected error for malformed quantity")
	}
}

func TestExecuteQuantizesAndSubmits(t *testing.T) {
	placer := exchange.NewStubPlacer()
	p := testPipeline(t, placer, risk.Limits{})

	req := Request{
		Symbol:      "ABCUSD",
		Side:        signal.Sell,
		Kind:        exchange.KindTakeProfitLimit,
		RawPrice:    d(t, "0.142805123"),
		RawQuantity: d(t, "0.5"),
		Trigger:     quant.TriggerAbove,
	}
	out := p.Execute(context.Background(), req)
	if out.Decision != breaker.Accepted {
		t.Fatalf("expected Accepted, got %+v", out)
	}

	orders := placer.Orders()
	if len(orders) != 1 {
		t.Fatalf("expected one order, got %d", len(orders))
	}
	got := orders[0]
	if got.Price != "0.1428" {
		t.Fatalf("expected quantized price 0.1428, got %s", got.Price)
	}
	if got.Quantity != "0.5" {
		t.Fatalf("expected quantity 0.5, got %s", got.Quantity)
	}
	if got.TriggerCondition != ">=0.1428" {
		t.Fatalf("unexpected trigger condition: %s", got.TriggerCondition)
	}
	if got.ClientOrderID == "" {
		t.Fatalf("expected client order ID")
	}
}

func TestExecuteAbortsWithoutMetadata(t *testing.T) {
	placer := exchange.NewStubPlacer()
	p := testPipeline(t, placer, risk.Limits{})

	req := Request{
		Symbol:      "UNKNOWNUSD",
		Side:        signal.Sell,
		Kind:        exchange.KindStopLimit,
		RawPrice:    d(t, "10"),
		RawQuantity: d(t, "1"),
	}
	out := p.Execute(context.Background(), req)
	if out.Decision != breaker.Failed {
		t.Fatalf("expected Failed on missing metadata, got %s", out.Decision)
	}
	if len(placer.Orders()) != 0 {
		t.Fatalf("must not guess tick sizes and submit")
	}
}

func TestExecuteRespectsRiskCap(t *testing.T) {
	placer := exchange.NewStubPlacer()
	p := testPipeline(t, placer, risk.Limits{MaxNotionalPerOrder: d(t, "1")})

	req := Request{
		Symbol:      "ABCUSD",
		Side:        signal.Sell,
		Kind:        exchange.KindTakeProfitLimit,
		RawPrice:    d(t, "100"),
		RawQuantity: d(t, "1"),
	}
	out := p.Execute(context.Background(), req)
	if out.Decision != breaker.Rejected {
		t.Fatalf("expected Rejected over cap, got %s", out.Decision)
	}
	if len(placer.Orders()) != 0 {
		t.Fatalf("capped order must not reach the venue")
	}
}

func TestExecutePriceFormatFallbackIsSingleShot(t *testing.T) {
	placer := exchange.NewStubPlacer()
	placer.FailWith(&exchange.APIError{Code: exchange.CodeBadPrecision, Message: "precision over the maximum"})
	p := testPipeline(t, placer, risk.Limits{})

	req := Request{
		Symbol:      "ABCUSD",
		Side:        signal.Sell,
		Kind:        exchange.KindTakeProfitLimit,
		RawPrice:    d(t, "0.14"),
		RawQuantity: d(t, "0.5"),
		Trigger:     quant.TriggerAbove,
	}
	out := p.Execute(context.Background(), req)
	if out.Decision != breaker.Accepted {
		t.Fatalf("expected fallback submission to be accepted, got %+v", out)
	}

	orders := placer.Orders()
	if len(orders) != 1 {
		t.Fatalf("expected exactly one accepted order, got %d", len(orders))
	}
	if orders[0].Price != "0.1400" {
		t.Fatalf("expected padded price 0.1400, got %s", orders[0].Price)
	}
}

type memorySink struct {
	records []Record
}

func (m *memorySink) Record(rec Record) { m.records = append(m.records, rec) }

func TestExecutePriceFormatFallbackRecordsPaddedValues(t *testing.T) {
	placer := exchange.NewStubPlacer()
	placer.FailWith(&exchange.APIError{Code: exchange.CodeBadPrecision, Message: "precision over the maximum"})
	sink := &memorySink{}
	ctrl := breaker.NewController(zerolog.Nop(), breaker.WithBackoff(time.Millisecond, time.Millisecond))
	p := NewPipeline(testMetaSource(t), placer, ctrl, risk.Limits{}, zerolog.Nop(), sink)

	req := Request{
		Symbol:      "ABCUSD",
		Side:        signal.Sell,
		Kind:        exchange.KindTakeProfitLimit,
		RawPrice:    d(t, "0.14"),
		RawQuantity: d(t, "0.5"),
		Trigger:     quant.TriggerAbove,
	}
	if out := p.Execute(context.Background(), req); out.Decision != breaker.Accepted {
		t.Fatalf("expected fallback submission to be accepted, got %+v", out)
	}

	if len(sink.records) != 1 {
		t.Fatalf("expected one terminal record, got %d", len(sink.records))
	}
	rec := sink.records[0]
	// The record must show what the venue accepted, not the first attempt.
	if rec.Price != "0.1400" {
		t.Fatalf("terminal record price = %s, want padded 0.1400", rec.Price)
	}
	if rec.Quantity != "0.500" {
		t.Fatalf("terminal record quantity = %s, want padded 0.500", rec.Quantity)
	}
}

func TestExecutePriceFormatFallbackGivesUpAfterSecondRejection(t *testing.T) {
	placer := exchange.NewStubPlacer()
	placer.FailWith(
		&exchange.APIError{Code: exchange.CodeBadPrecision, Message: "precision over the maximum"},
		&exchange.APIError{Code: exchange.CodeBadPrecision, Message: "precision over the maximum"},
	)
	p := testPipeline(t, placer, risk.Limits{})

	req := Request{
		Symbol:      "ABCUSD",
		Side:        signal.Sell,
		Kind:        exchange.KindTakeProfitLimit,
		RawPrice:    d(t, "0.14"),
		RawQuantity: d(t, "0.5"),
	}
	out := p.Execute(context.Background(), req)
	if out.Decision != breaker.Rejected {
		t.Fatalf("expected terminal rejection after single fallback, got %s", out.Decision)
	}
	if len(placer.Orders()) != 0 {
		t.Fatalf("expected no accepted orders")
	}
}

func TestExecuteSurfacesBlockedWithOperatorAction(t *testing.T) {
	placer := exchange.NewStubPlacer()
	placer.FailWith(&exchange.APIError{Code: exchange.CodeTradingDisabled, Message: "trading disabled"})
	p := testPipeline(t, placer, risk.Limits{})

	req := Request{
		Symbol:      "ABCUSD",
		Side:        signal.Sell,
		Kind:        exchange.KindStopLimit,
		RawPrice:    d(t, "10"),
		RawQuantity: d(t, "0.5"),
		Trigger:     quant.TriggerBelow,
	}
	out := p.Execute(context.Background(), req)
	if out.Decision != breaker.Blocked {
		t.Fatalf("expected Blocked, got %s", out.Decision)
	}
	if out.OperatorAction == "" {
		t.Fatalf("blocked outcome must carry an operator action")
	}
}

func TestExecuteAlertPlacesBothLegs(t *testing.T) {
	placer := exchange.NewStubPlacer()
	p := testPipeline(t, placer, risk.Limits{})

	a := signal.Alert{Symbol: "ABCUSD", Side: signal.Buy, Price: d(t, "0.1428"), Strategy: "rsi-1h", At: time.Now()}
	outcomes := p.ExecuteAlert(context.Background(), a, testInstrument())
	if len(outcomes) != 2 {
		t.Fatalf("expected two leg outcomes, got %d", len(outcomes))
	}
	for i, out := range outcomes {
		if out.Decision != breaker.Accepted {
			t.Fatalf("leg %d not accepted: %+v", i, out)
		}
	}
	if len(placer.Orders()) != 2 {
		t.Fatalf("expected TP and SL orders, got %d", len(placer.Orders()))
	}
}
