// Binary dryrun exercises the full engine against synthetic ticks and a stub
// venue. Nothing leaves the process; useful for offline verification.
package main

import (
	"context"
	"flag"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ccruz0/crypto-2.0-sub010/internal/alert"
	"github.com/ccruz0/crypto-2.0-sub010/internal/breaker"
	"github.com/ccruz0/crypto-2.0-sub010/internal/config"
	"github.com/ccruz0/crypto-2.0-sub010/internal/exchange"
	"github.com/ccruz0/crypto-2.0-sub010/internal/execution"
	"github.com/ccruz0/crypto-2.0-sub010/internal/marketdata"
	"github.com/ccruz0/crypto-2.0-sub010/internal/metrics"
	"github.com/ccruz0/crypto-2.0-sub010/internal/risk"
	"github.com/ccruz0/crypto-2.0-sub010/internal/scheduler"
	"github.com/ccruz0/crypto-2.0-sub010/internal/signal"
	"github.com/ccruz0/crypto-2.0-sub010/internal/throttle"
	"github.com/ccruz0/crypto-2.0-sub010/internal/util"
)

func main() {
	interval := flag.Duration("interval", 2*time.Second, "cycle interval")
	flag.Parse()

	log := util.NewLogger("debug")
	_ = metrics.Serve(":9109")

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Alternate recommendations so both sides fire over a run.
	flips := 0
	rec := marketdata.RecommenderFunc(func(_ string, side signal.Side, _ decimal.Decimal) bool {
		flips++
		if flips%2 == 0 {
			return side == signal.Buy
		}
		return side == signal.Sell
	})

	feed := marketdata.NewFeed(marketdata.ProviderStub, []string{"ABCUSD"}, rec, util.Component(log, "marketdata"))
	go func() { _ = feed.Run(ctx) }()

	tick := decimal.RequireFromString("0.01")
	step := decimal.RequireFromString("0.001")
	meta := exchange.StaticMeta{"ABCUSD": {TickSize: tick, StepSize: step}}
	placer := exchange.NewStubPlacer()
	ctrl := breaker.NewController(util.Component(log, "breaker"))
	pipeline := execution.NewPipeline(meta, placer, ctrl, risk.Limits{}, util.Component(log, "execution"), nil)

	ledger := throttle.NewLedger()
	store := config.NewStore([]config.Instrument{{
		Symbol:         "ABCUSD",
		Enabled:        true,
		Quantity:       "0.5",
		TakeProfitPct:  "1.5",
		StopLossPct:    "0.75",
		Strategy:       "stub",
		PlaceProtected: true,
	}}, nil)

	notifier := alert.NewFanout(util.Component(log, "alert"),
		alert.NewConsoleNotifier(os.Stdout),
		alert.NewLogNotifier(util.Component(log, "alert")),
	)

	sched := scheduler.New(store, feed, ledger, notifier, pipeline, util.Component(log, "scheduler"), scheduler.Options{
		Enabled:  true,
		Interval: *interval,
		OnSummary: func(s scheduler.Summary) {
			log.Info().Uint64("cycle", s.Cycle).Int("orders_placed", len(placer.Orders())).Msg("dryrun progress")
		},
	})
	if err := sched.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("start scheduler")
	}

	<-ctx.Done()
	sched.Stop()
	log.Info().Int("orders_placed", len(placer.Orders())).Msg("dryrun finished")
}
