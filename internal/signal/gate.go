// Package signal implements the Signal Gate (component F): given
// historical and current cross-venue spread series it returns
// ENTER/EXIT/HOLD plus statistical summaries, and exposes the
// coordinator's independent profitability validation formulas that run
// on top of the gate's verdict.
package signal

// Verdict is the gate's trade/no-trade recommendation.
type Verdict int

const (
	Hold Verdict = iota
	Enter
	Exit
)

func (v Verdict) String() string {
	switch v {
	case Enter:
		return "ENTER"
	case Exit:
		return "EXIT"
	default:
		return "HOLD"
	}
}

// Stats summarizes a historical spread distribution plus the current
// observation, consumed both by the gate's own ENTER/EXIT decision and
// by the coordinator's profitability validation.
type Stats struct {
	P25     float64
	P50     float64
	P75     float64
	Mean    float64
	StdDev  float64
	Current float64
	Samples int
}

// Result is what the gate returns for one evaluation.
type Result struct {
	Verdict Verdict
	Stats   Stats
}

// MinHistoryPoints is the minimum number of historical samples the gate
// requires before it will return anything other than HOLD.
const MinHistoryPoints = 50

// Analyzer is the pure-function external collaborator the distilled
// spec treats as out of scope; RollingAnalyzer below is a reference
// implementation satisfying it so the coordinator is runnable without
// an external analyzer.
type Analyzer interface {
	// Evaluate returns ENTER/EXIT/HOLD plus the distribution statistics
	// for the given historical series and the current spread reading.
	Evaluate(history []float64, current float64) Result
}

// Gate wraps an Analyzer with the fewer-than-MinHistoryPoints HOLD
// floor, so a misconfigured or slow-to-warm analyzer can never produce
// a trade recommendation on thin data.
type Gate struct {
	analyzer Analyzer
}

// NewGate constructs a Gate around the given Analyzer.
func NewGate(a Analyzer) *Gate { return &Gate{analyzer: a} }

// Evaluate enforces the minimum-history floor before delegating to the
// wrapped Analyzer.
func (g *Gate) Evaluate(history []float64, current float64) Result {
	if len(history) < MinHistoryPoints {
		return Result{Verdict: Hold, Stats: Stats{Current: current, Samples: len(history)}}
	}
	return g.analyzer.Evaluate(history, current)
}
