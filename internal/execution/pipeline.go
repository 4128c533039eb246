package execution

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ccruz0/crypto-2.0-sub010/internal/breaker"
	"github.com/ccruz0/crypto-2.0-sub010/internal/config"
	"github.com/ccruz0/crypto-2.0-sub010/internal/exchange"
	"github.com/ccruz0/crypto-2.0-sub010/internal/metrics"
	"github.com/ccruz0/crypto-2.0-sub010/internal/quant"
	"github.com/ccruz0/crypto-2.0-sub010/internal/risk"
	"github.com/ccruz0/crypto-2.0-sub010/internal/signal"
)

// CategoryPlaceTPSL is the circuit category guarding protective order placement.
const CategoryPlaceTPSL = "place_tpsl"

// Pipeline quantizes, formats, and submits protective orders. Submissions for
// the same (symbol, side) are serialized; different instruments proceed
// concurrently.
type Pipeline struct {
	meta   exchange.MetaSource
	placer exchange.OrderPlacer
	ctrl   *breaker.Controller
	limits risk.Limits
	log    zerolog.Logger
	sink   Sink

	mu   sync.Mutex
	keys map[string]*sync.Mutex
}

// NewPipeline wires the pipeline's collaborators. sink may be nil.
func NewPipeline(meta exchange.MetaSource, placer exchange.OrderPlacer, ctrl *breaker.Controller, limits risk.Limits, log zerolog.Logger, sink Sink) *Pipeline {
	return &Pipeline{
		meta:   meta,
		placer: placer,
		ctrl:   ctrl,
		limits: limits,
		log:    log,
		sink:   sink,
		keys:   make(map[string]*sync.Mutex),
	}
}

func (p *Pipeline) keyLock(symbol string, side signal.Side) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := symbol + "|" + string(side)
	m, ok := p.keys[k]
	if !ok {
		m = &sync.Mutex{}
		p.keys[k] = m
	}
	return m
}

// ExecuteAlert builds and submits the alert's protective order pair. Legs for
// the same key run serially so a retried earlier order can never race a newer
// one.
func (p *Pipeline) ExecuteAlert(ctx context.Context, a signal.Alert, inst config.Instrument) []breaker.Outcome {
	requests, err := BuildProtective(a, inst)
	if err != nil {
		p.log.Error().Err(err).Str("symbol", a.Symbol).Msg("cannot build protective orders")
		return []breaker.Outcome{{Decision: breaker.Rejected, Err: err}}
	}
	outcomes := make([]breaker.Outcome, 0, len(requests))
	for _, req := range requests {
		outcomes = append(outcomes, p.Execute(ctx, req))
	}
	return outcomes
}

// Execute submits one protective order and returns its terminal outcome.
func (p *Pipeline) Execute(ctx context.Context, req Request) breaker.Outcome {
	lock := p.keyLock(req.Symbol, req.Side)
	lock.Lock()
	defer lock.Unlock()

	meta, err := p.meta.InstrumentMeta(ctx, req.Symbol)
	if err != nil {
		out := breaker.Outcome{Decision: breaker.Failed, Err: err}
		p.logTerminal(req, exchange.Order{}, out, "metadata unavailable")
		return out
	}

	order, notional, err := p.format(req, meta, false)
	if err != nil {
		out := breaker.Outcome{Decision: breaker.Rejected, Err: err}
		p.logTerminal(req, order, out, "quantization failed")
		return out
	}
	if !p.limits.Allow(notional) {
		out := breaker.Outcome{Decision: breaker.Rejected}
		p.logTerminal(req, order, out, "notional over risk cap")
		return out
	}

	out := p.submit(ctx, order)

	// A price-format rejection gets exactly one alternate formatting attempt:
	// the same quantized values padded to the filter's full precision.
	if out.Decision == breaker.Rejected && out.Code == exchange.CodeBadPrecision {
		padded, _, ferr := p.format(req, meta, true)
		if ferr == nil {
			p.log.Warn().
				Str("symbol", req.Symbol).
				Str("price", order.Price).
				Str("padded_price", padded.Price).
				Msg("price format rejected, retrying once with padded formatting")
			out = p.submit(ctx, padded)
			// The terminal record must carry the strings the venue judged.
			order = padded
		}
	}

	reason := ""
	if out.Err != nil {
		reason = out.Err.Error()
	}
	p.logTerminal(req, order, out, reason)
	return out
}

// format quantizes the request against the instrument filters and renders
// wire-format fields. padded selects the alternate fixed-width rendering.
func (p *Pipeline) format(req Request, meta exchange.Meta, padded bool) (exchange.Order, decimal.Decimal, error) {
	price, err := quant.QuantizePrice(req.RawPrice, meta.TickSize)
	if err != nil {
		return exchange.Order{}, decimal.Decimal{}, err
	}
	if err := quant.ValidatePriceTick(price, meta.TickSize); err != nil {
		return exchange.Order{}, decimal.Decimal{}, err
	}
	qty, err := quant.QuantizeQuantity(req.RawQuantity, meta.StepSize)
	if err != nil {
		return exchange.Order{}, decimal.Decimal{}, err
	}
	if err := quant.ValidateQtyStep(qty, meta.StepSize); err != nil {
		return exchange.Order{}, decimal.Decimal{}, err
	}

	priceStr := quant.Format(price)
	qtyStr := quant.Format(qty)
	if padded {
		priceStr = quant.FormatFixed(price, meta.TickSize)
		qtyStr = quant.FormatFixed(qty, meta.StepSize)
	}

	trigger := quant.FormatTriggerCondition(req.Trigger, price)
	order := exchange.Order{
		Symbol:           req.Symbol,
		Side:             req.Side,
		Kind:             req.Kind,
		Price:            priceStr,
		Quantity:         qtyStr,
		TriggerCondition: trigger,
		ClientOrderID:    uuid.NewString(),
	}
	return order, price.Mul(qty), nil
}

func (p *Pipeline) submit(ctx context.Context, order exchange.Order) breaker.Outcome {
	return p.ctrl.Call(ctx, CategoryPlaceTPSL, func(ctx context.Context) error {
		_, err := p.placer.PlaceOrder(ctx, order)
		return err
	})
}

// logTerminal emits the single structured line every terminal outcome gets
// and forwards it to the sink. Raw and quantized values are both included;
// credentials never are.
func (p *Pipeline) logTerminal(req Request, order exchange.Order, out breaker.Outcome, reason string) {
	rec := Record{
		At:             time.Now(),
		Symbol:         req.Symbol,
		Side:           string(req.Side),
		Kind:           string(req.Kind),
		Decision:       string(out.Decision),
		Code:           int(out.Code),
		RawPrice:       quant.Format(req.RawPrice),
		Price:          order.Price,
		RawQuantity:    quant.Format(req.RawQuantity),
		Quantity:       order.Quantity,
		OperatorAction: out.OperatorAction,
		Reason:         reason,
	}

	evt := p.log.Info()
	if out.Decision != breaker.Accepted {
		evt = p.log.Error()
	}
	evt.
		Str("symbol", rec.Symbol).
		Str("side", rec.Side).
		Str("kind", rec.Kind).
		Str("decision", rec.Decision).
		Int("code", rec.Code).
		Str("raw_price", rec.RawPrice).
		Str("price", rec.Price).
		Str("raw_quantity", rec.RawQuantity).
		Str("quantity", rec.Quantity).
		Str("operator_action", rec.OperatorAction).
		Str("reason", rec.Reason).
		Msg("order outcome")

	metrics.OrdersTotal.WithLabelValues(rec.Symbol, rec.Side, rec.Decision).Inc()
	if p.sink != nil {
		p.sink.Record(rec)
	}
}
