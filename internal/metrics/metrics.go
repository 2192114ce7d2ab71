// FILE: metrics.go
// Package metrics – Prometheus metrics for the arbitrage engine:
// package-level vars registered in init(), small setter/incrementer
// helper functions, served by promhttp.Handler() at /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	CycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "arb_cycle_duration_seconds",
		Help:    "Duration of one coordinator Step cycle.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms .. ~1s
	})

	HedgeDeltaBase = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arb_hedge_delta_base",
		Help: "Signed hedge imbalance in base units that triggered the most recent hedge rebalance order.",
	}, []string{"symbol"})

	SignalTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_signal_total",
		Help: "Count of signal gate verdicts.",
	}, []string{"verdict"})

	TransfersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_transfers_total",
		Help: "Count of inter-venue transfers by asset and result.",
	}, []string{"asset", "result"})

	RealizedPnl = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arb_realized_pnl_usdt",
		Help: "Cumulative realized PnL (net of fees) per leg role.",
	}, []string{"role"})

	OrdersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_orders_total",
		Help: "Count of orders placed per leg role and side.",
	}, []string{"role", "side"})

	OutOfOrderUpdates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_out_of_order_updates_total",
		Help: "Count of dropped out-of-order order updates per leg role.",
	}, []string{"role"})
)

func init() {
	prometheus.MustRegister(
		CycleDuration,
		HedgeDeltaBase,
		SignalTotal,
		TransfersTotal,
		RealizedPnl,
		OrdersTotal,
		OutOfOrderUpdates,
	)
}

func ObserveCycleDuration(seconds float64) { CycleDuration.Observe(seconds) }
func SetHedgeDelta(symbol string, delta float64) { HedgeDeltaBase.WithLabelValues(symbol).Set(delta) }
func IncSignal(verdict string)                   { SignalTotal.WithLabelValues(verdict).Inc() }
func IncTransfer(asset, result string)           { TransfersTotal.WithLabelValues(asset, result).Inc() }
func SetRealizedPnl(role string, pnl float64)    { RealizedPnl.WithLabelValues(role).Set(pnl) }
func IncOrder(role, side string)                 { OrdersTotal.WithLabelValues(role, side).Inc() }
func IncOutOfOrder(role string)                  { OutOfOrderUpdates.WithLabelValues(role).Inc() }
