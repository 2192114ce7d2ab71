// Package hedge implements the Hedge Rebalancer (component E): pure
// delta computation over a snapshot of leg quantities, used by the
// coordinator to decide whether and in which direction to issue a
// compensating market order on the hedge venue.
package hedge

import "math"

// Delta computes the signed imbalance between the long legs (plus any
// in-flight base-asset transfer quantity — quote-asset transfers do
// not count, per §9 of SPEC_FULL.md) and the hedge leg's held quantity.
// A positive delta means the hedge is under-short (more long exposure
// than hedge coverage); a negative delta means it is over-short.
func Delta(longLegQtys []float64, inFlightBaseTransferQty, hedgeQty float64) float64 {
	sum := inFlightBaseTransferQty
	for _, q := range longLegQtys {
		sum += q
	}
	return sum - hedgeQty
}

// NeedsRebalance reports whether |delta| exceeds the hedge venue's
// minimum base quantity — below that, a correction would be rejected
// by the exchange or would churn fees for no effect.
func NeedsRebalance(delta, hedgeMinBaseQty float64) bool {
	return math.Abs(delta) > hedgeMinBaseQty
}

// Correction returns the side and quantity of the market order needed
// to restore delta neutrality: SELL when delta > 0 (too much long
// exposure, hedge needs to grow short), BUY when delta < 0.
type Correction struct {
	Sell bool
	Qty  float64
}

func ComputeCorrection(delta float64) Correction {
	return Correction{Sell: delta > 0, Qty: math.Abs(delta)}
}
