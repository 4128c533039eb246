// Package marketdata supplies the engine's synchronous read of current price
// and raw recommendation per instrument side, backed by a pluggable tick
// provider.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ccruz0/crypto-2.0-sub010/internal/signal"
)

const (
	// ProviderStub emits deterministic synthetic ticks (useful for tests/offline work).
	ProviderStub = "stub"
	// ProviderBinance streams live trades from Binance public websockets.
	ProviderBinance = "binance"
)

// ErrStale reports that no sufficiently recent tick exists for a symbol.
var ErrStale = errors.New("market data stale")

// Quote is one side's view of an instrument at read time.
type Quote struct {
	Price       decimal.Decimal
	Recommended bool
	At          time.Time
}

// Source is the engine's synchronous market data read.
type Source interface {
	Read(ctx context.Context, symbol string, side signal.Side) (Quote, error)
}

// Recommender supplies the raw buy/sell recommendation for a side. Indicator
// math lives behind this interface, outside the engine.
type Recommender interface {
	Recommend(symbol string, side signal.Side, price decimal.Decimal) bool
}

// RecommenderFunc adapts a function to the Recommender interface.
type RecommenderFunc func(symbol string, side signal.Side, price decimal.Decimal) bool

// Recommend calls the wrapped function.
func (f RecommenderFunc) Recommend(symbol string, side signal.Side, price decimal.Decimal) bool {
	return f(symbol, side, price)
}

type lastTick struct {
	price decimal.Decimal
	at    time.Time
}

const (
	defaultMaxAge    = 30 * time.Second
	defaultWSBaseURL = "wss://stream.binance.com:9443"
)

// Feed caches the latest tick per symbol from the configured provider and
// serves Reads against that cache.
type Feed struct {
	provider  string
	symbols   []string
	log       zerolog.Logger
	rec       Recommender
	wsBaseURL string
	maxAge    time.Duration
	now       func() time.Time

	mu   sync.RWMutex
	last map[string]lastTick
}

// Option configures Feed construction parameters.
type Option func(*Feed)

// WithMaxAge overrides how old a cached tick may be before Reads fail stale.
func WithMaxAge(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.maxAge = d
		}
	}
}

// WithWSBaseURL overrides the websocket endpoint for the live provider.
func WithWSBaseURL(u string) Option {
	return func(f *Feed) {
		if u != "" {
			f.wsBaseURL = strings.TrimSuffix(u, "/")
		}
	}
}

// NewFeed constructs a feed backed by the requested provider.
func NewFeed(provider string, symbols []string, rec Recommender, log zerolog.Logger, opts ...Option) *Feed {
	if provider == "" {
		provider = ProviderStub
	}
	f := &Feed{
		provider:  strings.ToLower(provider),
		log:       log,
		rec:       rec,
		wsBaseURL: defaultWSBaseURL,
		maxAge:    defaultMaxAge,
		now:       time.Now,
		last:      make(map[string]lastTick),
	}
	f.setSymbols(symbols)
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Feed) setSymbols(symbols []string) {
	unique := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		unique[sym] = struct{}{}
	}
	f.symbols = f.symbols[:0]
	for sym := range unique {
		f.symbols = append(f.symbols, sym)
	}
	sort.Strings(f.symbols)
}

// Run keeps the tick cache fresh until the context is canceled.
func (f *Feed) Run(ctx context.Context) error {
	switch f.provider {
	case ProviderBinance:
		return f.runBinance(ctx)
	default:
		return f.runStub(ctx)
	}
}

func (f *Feed) record(symbol string, price decimal.Decimal, at time.Time) {
	f.mu.Lock()
	f.last[symbol] = lastTick{price: price, at: at}
	f.mu.Unlock()
}

// Read returns the cached price and the side's raw recommendation, or
// ErrStale when no recent enough tick exists.
func (f *Feed) Read(_ context.Context, symbol string, side signal.Side) (Quote, error) {
	f.mu.RLock()
	tick, ok := f.last[symbol]
	f.mu.RUnlock()
	if !ok {
		return Quote{}, fmt.Errorf("%w: no tick for %s yet", ErrStale, symbol)
	}
	age := f.now().Sub(tick.at)
	if age > f.maxAge {
		return Quote{}, fmt.Errorf("%w: %s tick is %s old", ErrStale, symbol, age.Truncate(time.Second))
	}
	recommended := false
	if f.rec != nil {
		recommended = f.rec.Recommend(symbol, side, tick.price)
	}
	return Quote{Price: tick.price, Recommended: recommended, At: tick.at}, nil
}

func (f *Feed) runStub(ctx context.Context) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	px := decimal.NewFromInt(100)
	step := decimal.RequireFromString("0.1")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ts := <-ticker.C:
			px = px.Add(step)
			for _, s := range f.symbols {
				f.record(s, px, ts)
			}
		}
	}
}
