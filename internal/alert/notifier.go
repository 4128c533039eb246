// Package alert delivers admitted signals to operator-facing channels and
// keeps an in-memory history for diagnostics. Delivery failures are logged
// and never roll an admitted decision back.
package alert

import (
	"context"
	"fmt"
	"io"

	"github.com/logrusorgru/aurora"
	"github.com/rs/zerolog"

	"github.com/ccruz0/crypto-2.0-sub010/internal/signal"
)

// Notifier pushes one alert to a delivery channel.
type Notifier interface {
	Notify(ctx context.Context, a signal.Alert) error
}

// LogNotifier emits alerts as structured log lines.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier wraps the given logger.
func NewLogNotifier(log zerolog.Logger) *LogNotifier { return &LogNotifier{log: log} }

// Notify writes one structured alert record.
func (n *LogNotifier) Notify(_ context.Context, a signal.Alert) error {
	n.log.Info().
		Str("symbol", a.Symbol).
		Str("side", string(a.Side)).
		Str("price", a.Price.String()).
		Str("strategy", a.Strategy).
		Time("at", a.At).
		Msg("alert")
	return nil
}

// ConsoleNotifier prints colored alerts for interactive runs: BUY green,
// SELL red.
type ConsoleNotifier struct {
	out io.Writer
}

// NewConsoleNotifier writes alerts to out.
func NewConsoleNotifier(out io.Writer) *ConsoleNotifier { return &ConsoleNotifier{out: out} }

// Notify renders one alert line.
func (n *ConsoleNotifier) Notify(_ context.Context, a signal.Alert) error {
	side := aurora.Bold(aurora.Green(string(a.Side)))
	if a.Side == signal.Sell {
		side = aurora.Bold(aurora.Red(string(a.Side)))
	}
	_, err := fmt.Fprintf(n.out, "%s %s @ %s (%s)\n", side, a.Symbol, a.Price.String(), a.Strategy)
	return err
}

// Fanout delivers to every notifier, logging individual failures. It always
// reports success upward so a broken channel cannot un-admit an alert.
type Fanout struct {
	notifiers []Notifier
	log       zerolog.Logger
}

// NewFanout builds a fan-out over the given notifiers.
func NewFanout(log zerolog.Logger, notifiers ...Notifier) *Fanout {
	return &Fanout{notifiers: notifiers, log: log}
}

// Notify fans the alert out to every channel.
func (f *Fanout) Notify(ctx context.Context, a signal.Alert) error {
	for _, n := range f.notifiers {
		if err := n.Notify(ctx, a); err != nil {
			f.log.Error().Err(err).Str("symbol", a.Symbol).Str("side", string(a.Side)).Msg("alert delivery failed")
		}
	}
	return nil
}
