package signal

import (
	"math"
	"sort"
)

// RollingAnalyzer is a reference Analyzer computing spread percentiles
// and a mean/stdev "distance from typical" ratio over the caller-owned
// history window, grounded on original_source's strategy layer, which
// drives the 1.5x/2x tolerance multipliers from exactly these
// statistics. It is supplied so the coordinator can run end-to-end
// without an external analyzer, but satisfies the same Analyzer
// interface any real one would. The coordinator owns the window itself
// (bounded per its HistoryWindow config and passed into Evaluate on
// every call), so this analyzer holds no state of its own.
type RollingAnalyzer struct {
	// EnterThreshold/ExitThreshold are expressed as multiples of the
	// magnitude of the historical mean spread; crossing them is what flips the
	// verdict away from HOLD. They are deliberately conservative
	// defaults the coordinator's own profitability validation narrows
	// further.
	EnterThreshold float64
	ExitThreshold  float64
}

// NewRollingAnalyzer builds an analyzer with the default enter/exit
// thresholds.
func NewRollingAnalyzer() *RollingAnalyzer {
	return &RollingAnalyzer{
		EnterThreshold: 1.5,
		ExitThreshold:  0.5,
	}
}

// Evaluate computes percentile/mean/stdev statistics over history and
// decides ENTER/EXIT/HOLD by comparing |current| against the mean
// historical spread magnitude, scaled by EnterThreshold/ExitThreshold.
// The coordinator's own profitability validation (signal.ValidateEntry
// / ValidateExit) is the authoritative gate on top of this verdict;
// this analyzer only needs to be directionally reasonable.
func (r *RollingAnalyzer) Evaluate(history []float64, current float64) Result {
	stats := computeStats(history, current)

	meanAbs := math.Abs(stats.Mean)
	absCurrent := math.Abs(current)

	verdict := Hold
	switch {
	case absCurrent >= meanAbs*r.EnterThreshold && meanAbs > 0:
		verdict = Enter
	case absCurrent <= meanAbs*r.ExitThreshold:
		verdict = Exit
	}
	return Result{Verdict: verdict, Stats: stats}
}

func computeStats(history []float64, current float64) Stats {
	n := len(history)
	if n == 0 {
		return Stats{Current: current}
	}
	sorted := make([]float64, n)
	copy(sorted, history)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range history {
		sum += v
	}
	mean := sum / float64(n)

	variance := 0.0
	for _, v := range history {
		d := v - mean
		variance += d * d
	}
	variance /= float64(n)

	return Stats{
		P25:     percentile(sorted, 0.25),
		P50:     percentile(sorted, 0.50),
		P75:     percentile(sorted, 0.75),
		Mean:    mean,
		StdDev:  math.Sqrt(variance),
		Current: current,
		Samples: n,
	}
}

// percentile uses linear interpolation between closest ranks, matching
// the conventional definition used for trading-spread percentiles.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	idx := p * float64(n-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
