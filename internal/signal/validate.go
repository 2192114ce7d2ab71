package signal

import "math"

// ValidateEntry independently checks the gate's ENTER verdict against
// the profitability formula:
//
//	net_edge = |opportunity| - total_spread_cost - round_trip_fees >= min_profit_margin
//
// AND the currently executing spread must stay within
// max_acceptable_spread * multiplier, where multiplier relaxes to 2x
// when the opportunity exceeds 1.5x its historical mean (the engine
// tolerates more slippage when the dislocation is unusually large,
// since the edge comfortably covers it).
func ValidateEntry(opportunity, totalSpreadCost, roundTripFees, minProfitMargin, currentSpread, maxAcceptableSpread, historicalMean float64) (ok bool, netEdge float64) {
	netEdge = math.Abs(opportunity) - totalSpreadCost - roundTripFees
	if netEdge < minProfitMargin {
		return false, netEdge
	}
	multiplier := 1.0
	if math.Abs(historicalMean) > 1e-12 && math.Abs(opportunity) > 1.5*math.Abs(historicalMean) {
		multiplier = 2.0
	}
	if math.Abs(currentSpread) > maxAcceptableSpread*multiplier {
		return false, netEdge
	}
	return true, netEdge
}

// ValidateExit independently checks the gate's EXIT verdict:
//
//	exit_edge = current - max_25pct_historical >= min_profit_margin * 0.5
//
// and permits up to 1.5x the normal spread tolerance, since capital
// preservation on exit takes precedence over marginal optimization.
func ValidateExit(currentSpread, max25pctHistorical, minProfitMargin, maxAcceptableSpread float64) (ok bool, exitEdge float64) {
	exitEdge = currentSpread - max25pctHistorical
	if exitEdge < minProfitMargin*0.5 {
		return false, exitEdge
	}
	if math.Abs(currentSpread) > maxAcceptableSpread*1.5 {
		return false, exitEdge
	}
	return true, exitEdge
}

// RoundTripFees sums, over every leg used in one full arbitrage cycle,
// that leg's taker fee counted twice (once to open, once to unwind) —
// the single uniform definition this implementation adopts per §9 of
// SPEC_FULL.md to resolve the source's inconsistent formulas across
// its two- and three-leg strategy variants.
func RoundTripFees(takerFeesPerLeg []float64) float64 {
	sum := 0.0
	for _, f := range takerFeesPerLeg {
		sum += f
	}
	return sum * 2
}
