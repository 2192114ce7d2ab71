package signal

import "testing"

func TestGate_HoldsBelowMinHistory(t *testing.T) {
	g := NewGate(NewRollingAnalyzer())
	history := make([]float64, 49)
	for i := range history {
		history[i] = 0.001
	}
	res := g.Evaluate(history, 0.01)
	if res.Verdict != Hold {
		t.Fatalf("expected HOLD with <50 points, got %v", res.Verdict)
	}
}

func TestGate_EntersAboveThreshold(t *testing.T) {
	ra := NewRollingAnalyzer()
	history := make([]float64, 60)
	for i := range history {
		history[i] = 0.002
	}
	g := NewGate(ra)
	res := g.Evaluate(history, 0.01) // far above 1.5x mean(0.002)
	if res.Verdict != Enter {
		t.Fatalf("expected ENTER, got %v with stats %+v", res.Verdict, res.Stats)
	}
}

func TestValidateEntry_RejectsBelowMinProfitMargin(t *testing.T) {
	ok, edge := ValidateEntry(0.003, 0.0005, 0.001, 0.002, 0.003, 0.01, 0.001)
	if ok {
		t.Fatalf("expected rejection, net_edge=%v", edge)
	}
}

func TestValidateEntry_AcceptsAndRelaxesMultiplier(t *testing.T) {
	// opportunity = 0.01, historicalMean = 0.002 -> opportunity > 1.5x mean -> multiplier 2x
	ok, edge := ValidateEntry(0.01, 0.0005, 0.0005, 0.001, 0.015, 0.01, 0.002)
	if !ok {
		t.Fatalf("expected acceptance with relaxed multiplier, edge=%v", edge)
	}
	// without relaxation (currentSpread 0.015 > maxAcceptableSpread*1) it would fail
	ok2, _ := ValidateEntry(0.01, 0.0005, 0.0005, 0.001, 0.015, 0.01, 100) // historicalMean huge -> multiplier stays 1
	if ok2 {
		t.Fatalf("expected rejection without multiplier relaxation")
	}
}

func TestValidateExit_HalfMarginAndWiderTolerance(t *testing.T) {
	// edge = 0.0025-0.001 = 0.0015: below the full 0.002 margin, above half of it
	ok, edge := ValidateExit(0.0025, 0.001, 0.002, 0.01)
	if !ok {
		t.Fatalf("expected exit acceptance, edge=%v", edge)
	}
	ok2, _ := ValidateExit(0.02, 0.001, 0.002, 0.01) // 0.02 > 0.01*1.5
	if ok2 {
		t.Fatalf("expected rejection beyond 1.5x tolerance")
	}
}
