package hedge

import "testing"

func TestDelta_PositivelyUnderhedged(t *testing.T) {
	d := Delta([]float64{10, 5}, 0, 12)
	if d != 3 {
		t.Fatalf("delta = %v, want 3", d)
	}
}

func TestDelta_IncludesInFlightBaseTransfer(t *testing.T) {
	d := Delta([]float64{10}, 2, 12)
	if d != 0 {
		t.Fatalf("delta = %v, want 0", d)
	}
}

func TestNeedsRebalance_BelowMinIsIgnored(t *testing.T) {
	if NeedsRebalance(0.00005, 0.0001) {
		t.Fatalf("expected no rebalance for delta below venue minimum")
	}
	if !NeedsRebalance(0.01, 0.0001) {
		t.Fatalf("expected rebalance for delta above venue minimum")
	}
}

func TestComputeCorrection_SignDeterminesSide(t *testing.T) {
	c := ComputeCorrection(3)
	if !c.Sell || c.Qty != 3 {
		t.Fatalf("positive delta should sell to grow short, got %+v", c)
	}
	c = ComputeCorrection(-2)
	if c.Sell || c.Qty != 2 {
		t.Fatalf("negative delta should buy to shrink short, got %+v", c)
	}
}
