// Binary engine runs the live signal engine against a real exchange.
package main

import (
	"context"
	"flag"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/ccruz0/crypto-2.0-sub010/internal/alert"
	"github.com/ccruz0/crypto-2.0-sub010/internal/breaker"
	"github.com/ccruz0/crypto-2.0-sub010/internal/config"
	"github.com/ccruz0/crypto-2.0-sub010/internal/exchange"
	"github.com/ccruz0/crypto-2.0-sub010/internal/execution"
	"github.com/ccruz0/crypto-2.0-sub010/internal/marketdata"
	"github.com/ccruz0/crypto-2.0-sub010/internal/metrics"
	"github.com/ccruz0/crypto-2.0-sub010/internal/quant"
	"github.com/ccruz0/crypto-2.0-sub010/internal/recommend"
	"github.com/ccruz0/crypto-2.0-sub010/internal/risk"
	"github.com/ccruz0/crypto-2.0-sub010/internal/scheduler"
	"github.com/ccruz0/crypto-2.0-sub010/internal/signal"
	"github.com/ccruz0/crypto-2.0-sub010/internal/throttle"
	"github.com/ccruz0/crypto-2.0-sub010/internal/util"
)

func main() {
	configPath := flag.String("config", "internal/config/config.yaml", "path to the YAML configuration")
	outcomesPath := flag.String("outcomes", "data/outcomes.jsonl", "path for the JSONL outcome record")
	flag.Parse()

	// Credentials come from the environment; .env is optional sugar for dev.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		boot := util.NewLogger("info")
		boot.Fatal().Err(err).Msg("load config")
	}
	log := util.NewLogger(cfg.App.LogLevel)

	_ = metrics.Serve(cfg.App.MetricsAddr)
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

	apiKey := os.Getenv(cfg.Exchange.APIKeyEnv)
	apiSecret := os.Getenv(cfg.Exchange.APISecretEnv)
	if apiKey == "" || apiSecret == "" {
		log.Fatal().
			Str("key_env", cfg.Exchange.APIKeyEnv).
			Str("secret_env", cfg.Exchange.APISecretEnv).
			Msg("exchange credentials missing from environment")
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := exchange.NewRESTClient(cfg.Exchange.RESTBaseURL, apiKey, apiSecret, cfg.Exchange.RecvWindowMs, util.Component(log, "exchange"))
	metaCache := exchange.NewMetaCache(client, time.Hour)
	ctrl := breaker.NewController(util.Component(log, "breaker"))

	maxNotional, err := quant.NormalizeDecimalString(cfg.Risk.MaxNotionalPerOrder)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid risk.max_notional_per_order")
	}

	recorder, err := execution.NewJSONLRecorder(*outcomesPath)
	if err != nil {
		log.Fatal().Err(err).Msg("open outcome recorder")
	}
	defer recorder.Close()

	pipeline := execution.NewPipeline(
		metaCache,
		client,
		ctrl,
		risk.Limits{MaxNotionalPerOrder: maxNotional},
		util.Component(log, "execution"),
		recorder,
	)

	threshold := decimal.Zero
	if cfg.Engine.MomentumThresholdPct != "" {
		threshold, err = quant.NormalizeDecimalString(cfg.Engine.MomentumThresholdPct)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid engine.momentum_threshold_pct")
		}
	}
	momentum := recommend.NewMomentum(threshold, time.Duration(cfg.Engine.MomentumWindowSecs)*time.Second)

	ledger := throttle.NewLedger()
	store := config.NewStore(cfg.Instruments, func(symbol string) {
		ledger.RequestBypass(symbol, signal.Buy)
		ledger.RequestBypass(symbol, signal.Sell)
		log.Info().Str("symbol", symbol).Msg("config change, throttle bypass armed")
	})

	// SIGHUP re-reads the YAML and diffs it into the store, which arms the
	// throttle bypass for every symbol whose alert settings changed.
	hup := make(chan os.Signal, 1)
	ossignal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			next, err := config.Load(*configPath)
			if err != nil {
				log.Error().Err(err).Str("path", *configPath).Msg("config reload failed, keeping previous settings")
				continue
			}
			store.Reload(next.Instruments)
			log.Info().Int("instruments", len(next.Instruments)).Msg("config reloaded")
		}
	}()

	feed := marketdata.NewFeed(
		marketdata.ProviderBinance,
		store.Symbols(),
		momentum,
		util.Component(log, "marketdata"),
		marketdata.WithWSBaseURL(cfg.Exchange.WSBaseURL),
		marketdata.WithMaxAge(time.Duration(cfg.Engine.MaxDataAgeMs)*time.Millisecond),
	)
	go func() {
		if err := feed.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("market data feed stopped")
			cancel()
		}
	}()

	history := alert.NewHistory(256)
	notifier := alert.NewFanout(util.Component(log, "alert"),
		alert.NewLogNotifier(util.Component(log, "alert")),
		history,
	)

	sched := scheduler.New(store, feed, ledger, notifier, pipeline, util.Component(log, "scheduler"), scheduler.Options{
		Enabled:     cfg.Engine.Enabled,
		Interval:    time.Duration(cfg.Engine.CycleIntervalMs) * time.Millisecond,
		MaxParallel: cfg.Engine.MaxParallel,
	})
	if err := sched.Start(ctx); err != nil {
		if err == scheduler.ErrDisabled {
			log.Warn().Msg("engine disabled, exiting")
			return
		}
		log.Fatal().Err(err).Msg("start scheduler")
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")
	sched.Stop()
}
