package position

import (
	"math"
	"testing"

	"github.com/dasein108/cex-arbitrage-sub002/internal/market"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestUpdate_FirstEntry(t *testing.T) {
	d := &Data{}
	ch := d.Update(market.Buy, 1.0, 100, 0.001)
	if !almostEqual(d.Qty, 1.0) || !almostEqual(d.Price, 100) || d.Side != market.Buy {
		t.Fatalf("unexpected state: %+v", d)
	}
	if ch.HasPnl {
		t.Fatalf("first entry must not realize pnl")
	}
}

func TestUpdate_SameSideWeightedAverage(t *testing.T) {
	d := &Data{}
	d.Update(market.Buy, 1.0, 100, 0)
	d.Update(market.Buy, 1.0, 120, 0)
	wantPrice := (100*1.0 + 120*1.0) / 2.0
	if !almostEqual(d.Price, wantPrice) {
		t.Fatalf("avg price = %v, want %v", d.Price, wantPrice)
	}
	if !almostEqual(d.Qty, 2.0) {
		t.Fatalf("qty = %v, want 2.0", d.Qty)
	}
}

// S3: side reversal. Existing BUY 1.0 @ 100, receive SELL 1.5 @ 110.
func TestUpdate_SideReversal(t *testing.T) {
	d := &Data{}
	d.Update(market.Buy, 1.0, 100, 0)
	ch := d.Update(market.Sell, 1.5, 110, 0)

	if d.Side != market.Sell {
		t.Fatalf("side = %v, want SELL", d.Side)
	}
	if !almostEqual(d.Qty, 0.5) {
		t.Fatalf("qty = %v, want 0.5", d.Qty)
	}
	if !almostEqual(d.Price, 110) {
		t.Fatalf("price = %v, want 110", d.Price)
	}
	if !ch.HasPnl || !almostEqual(ch.RealizedPnl, 10.0) {
		t.Fatalf("realized pnl = %v, want +10", ch.RealizedPnl)
	}
}

func TestUpdate_OppositeSideReduceKeepsPrice(t *testing.T) {
	d := &Data{}
	d.Update(market.Buy, 2.0, 100, 0)
	ch := d.Update(market.Sell, 0.5, 110, 0)
	if !almostEqual(d.Price, 100) {
		t.Fatalf("price changed on reduce: %v", d.Price)
	}
	if !almostEqual(d.Qty, 1.5) {
		t.Fatalf("qty = %v, want 1.5", d.Qty)
	}
	if !ch.HasPnl || !almostEqual(ch.RealizedPnl, 5.0) {
		t.Fatalf("realized pnl = %v, want 5", ch.RealizedPnl)
	}
}

func TestUpdate_FullClose(t *testing.T) {
	d := &Data{}
	d.Update(market.Buy, 1.0, 100, 0)
	d.Update(market.Sell, 1.0, 105, 0)
	if d.HasPosition() {
		t.Fatalf("position should be fully closed")
	}
	if d.Side != market.None || d.Price != 0 {
		t.Fatalf("invariant violated on full close: %+v", d)
	}
}

func TestInvariant_QtyZeroImpliesSideNoneAndPriceZero(t *testing.T) {
	d := &Data{}
	if d.HasPosition() || d.Side != market.None || d.Price != 0 {
		t.Fatalf("zero-value position violates invariant")
	}
}

func TestSignedFilledMatchesQtyWhenNeverFlipped(t *testing.T) {
	d := &Data{}
	d.Update(market.Buy, 1.0, 100, 0)
	d.Update(market.Buy, 0.5, 110, 0)
	d.Update(market.Sell, 0.3, 120, 0)
	if !almostEqual(d.SignedFilled(), d.Qty) {
		t.Fatalf("signed filled %v != qty %v", d.SignedFilled(), d.Qty)
	}
}

func TestIsFulfilled_MinQtyTolerance(t *testing.T) {
	d := &Data{TargetQty: 1.0}
	d.Update(market.Buy, 0.999, 100, 0)
	if !d.IsFulfilled(0.002) {
		t.Fatalf("expected fulfilled within tolerance")
	}
	if d.IsFulfilled(0.0005) {
		t.Fatalf("expected not fulfilled outside tolerance")
	}
}

func TestReset(t *testing.T) {
	d := &Data{}
	d.Update(market.Buy, 1.0, 100, 0.001)
	d.Reset(2.0, false)
	if d.HasPosition() || d.TargetQty != 2.0 {
		t.Fatalf("reset did not clear position: %+v", d)
	}
	if d.PnL.TotalEntryQty == 0 {
		t.Fatalf("expected pnl history preserved across role-flip reset")
	}
}
