package pnl

import (
	"math"
	"testing"

	"github.com/dasein108/cex-arbitrage-sub002/internal/market"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestAddEntry_WeightedAverage(t *testing.T) {
	var tr Tracker
	tr.AddEntry(100, 1, market.Buy, 0)
	tr.AddEntry(200, 1, market.Buy, 0)
	if !almostEqual(tr.AvgEntryPrice, 150) {
		t.Fatalf("avg entry price = %v, want 150", tr.AvgEntryPrice)
	}
	if !almostEqual(tr.TotalEntryQty, 2) {
		t.Fatalf("total entry qty = %v, want 2", tr.TotalEntryQty)
	}
}

func TestAddExit_RealizesLongPnl(t *testing.T) {
	var tr Tracker
	tr.AddEntry(100, 2, market.Buy, 0.001)
	tr.AddExit(110, 2, 0.001)

	// gross = (110-100)*2 = 20; fees = 100*2*0.001 + 110*2*0.001 = 0.2+0.22=0.42
	if !almostEqual(tr.PnlUsdtNet(), 20-0.42) {
		t.Fatalf("net pnl = %v, want %v", tr.PnlUsdtNet(), 20-0.42)
	}
}

func TestAddExit_RealizesShortPnl(t *testing.T) {
	var tr Tracker
	tr.AddEntry(100, 1, market.Sell, 0)
	tr.AddExit(90, 1, 0)
	if !almostEqual(tr.PnlUsdtNet(), 10) {
		t.Fatalf("net pnl = %v, want 10", tr.PnlUsdtNet())
	}
}

func TestPercentClosed(t *testing.T) {
	var tr Tracker
	tr.AddEntry(100, 4, market.Buy, 0)
	tr.AddExit(105, 1, 0)
	if !almostEqual(tr.PercentClosed(), 25) {
		t.Fatalf("percent closed = %v, want 25", tr.PercentClosed())
	}
	if !almostEqual(tr.UnrealizedQty(), 3) {
		t.Fatalf("unrealized qty = %v, want 3", tr.UnrealizedQty())
	}
}

func TestCalculateUnrealized_MarksOpenQtyToMarket(t *testing.T) {
	var tr Tracker
	tr.AddEntry(100, 2, market.Buy, 0)
	got := tr.CalculateUnrealized(110, 0.001)
	// gross = (110-100)*2 = 20, est fees = 100*2*0.001 + 110*2*0.001 = 0.42
	want := 20 - 0.42
	if !almostEqual(got, want) {
		t.Fatalf("unrealized = %v, want %v", got, want)
	}
}

func TestReset_ClearsEverything(t *testing.T) {
	var tr Tracker
	tr.AddEntry(100, 1, market.Buy, 0.001)
	tr.AddExit(110, 1, 0.001)
	tr.Reset()
	if tr.PnlUsdtNet() != 0 || tr.TotalEntryQty != 0 || tr.Side != market.None {
		t.Fatalf("tracker not fully reset: %+v", tr)
	}
}

// CachedInvalidationBit: a stale cached value must never be returned
// after a mutation — the invalidation bit must clear on every AddEntry
// and AddExit.
func TestCacheInvalidatesOnEveryMutation(t *testing.T) {
	var tr Tracker
	tr.AddEntry(100, 1, market.Buy, 0)
	_ = tr.PnlPct() // forces a recalculate, caching cacheValid=true
	tr.AddEntry(100, 1, market.Buy, 0)
	if tr.cacheValid {
		t.Fatalf("cache still marked valid immediately after a mutating call")
	}
}
