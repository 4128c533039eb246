package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "signal_cycles_total", Help: "Completed signal evaluation cycles"},
	)
	AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "alerts_total", Help: "Alerts admitted and delivered"},
		[]string{"symbol", "side"},
	)
	AlertsThrottled = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "alerts_throttled_total", Help: "Alert candidates denied by the throttle window"},
		[]string{"symbol", "side"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_total", Help: "Terminal order execution outcomes"},
		[]string{"symbol", "side", "decision"},
	)
	ExchangeRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "exchange_retries_total", Help: "Retried exchange calls"},
		[]string{"category"},
	)
	CircuitOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "circuit_open", Help: "1 while the category's circuit is open"},
		[]string{"category"},
	)
)

func init() {
	prometheus.MustRegister(CyclesTotal, AlertsTotal, AlertsThrottled, OrdersTotal, ExchangeRetries, CircuitOpen)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
