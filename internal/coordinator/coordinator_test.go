package coordinator

import (
	"context"
	"testing"

	"github.com/dasein108/cex-arbitrage-sub002/internal/config"
	"github.com/dasein108/cex-arbitrage-sub002/internal/exchange"
	"github.com/dasein108/cex-arbitrage-sub002/internal/signal"
	"github.com/dasein108/cex-arbitrage-sub002/internal/transfer"
	"github.com/dasein108/cex-arbitrage-sub002/internal/venue/mock"
)

// fixedAnalyzer always returns the configured verdict, letting a test
// drive the coordinator past the gate's minimum-history floor
// deterministically instead of engineering realistic sample series.
type fixedAnalyzer struct {
	verdict signal.Verdict
}

func (f fixedAnalyzer) Evaluate(history []float64, current float64) signal.Result {
	return signal.Result{Verdict: f.verdict, Stats: signal.Stats{Current: current, Samples: len(history)}}
}

func seededHistory() []float64 {
	h := make([]float64, signal.MinHistoryPoints)
	for i := range h {
		h[i] = 0.0001
	}
	return h
}

func threeLegConfig() *config.Config {
	return &config.Config{
		SymbolBase:          "BTC",
		SymbolQuote:         "USDT",
		TotalQuantity:       1.0,
		OrderQty:            1.0,
		MinProfitMargin:     -1, // accept any edge so the test isolates mechanics, not the formula
		MaxAcceptableSpread: 10,
		HistoryWindow:       500,
		Legs: map[string]config.LegSettings{
			RoleSource: {Venue: "source-ex", UseMarket: true},
			RoleDest:   {Venue: "dest-ex", UseMarket: true},
			RoleHedge:  {Venue: "hedge-ex", UseMarket: true, IsFutures: true},
		},
	}
}

func newThreeLegCoordinator(t *testing.T, verdict signal.Verdict) (*Coordinator, map[string]*mock.Handle) {
	t.Helper()
	source := mock.New("source-ex", false)
	dest := mock.New("dest-ex", false)
	hedgeH := mock.New("hedge-ex", true)
	for _, h := range []*mock.Handle{source, dest, hedgeH} {
		h.SetBook(100, 10, 100.1, 10)
	}

	c, err := New(Deps{
		Config: threeLegConfig(),
		Handles: map[string]exchange.Handle{
			RoleSource: source,
			RoleDest:   dest,
			RoleHedge:  hedgeH,
		},
		Analyzer:    fixedAnalyzer{verdict: verdict},
		SeedHistory: map[string][]float64{RoleSource: seededHistory(), RoleDest: seededHistory()},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return c, map[string]*mock.Handle{RoleSource: source, RoleDest: dest, RoleHedge: hedgeH}
}

// TestStep_AccumulateThenHedgeRebalances covers S1/S6: an ENTER verdict
// places an accumulating order on the source leg, and the rebalance
// step that follows in the same cycle brings the hedge leg's short
// back in line with it.
func TestStep_AccumulateThenHedgeRebalances(t *testing.T) {
	c, _ := newThreeLegCoordinator(t, signal.Enter)

	if err := c.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}

	sourceData := c.managers[RoleSource].Data()
	if sourceData.Qty <= 0 {
		t.Fatalf("expected source leg to accumulate, qty=%v", sourceData.Qty)
	}

	hedgeData := c.managers[RoleHedge].Data()
	if hedgeData.Qty <= 0 {
		t.Fatalf("expected hedge leg to have rebalanced to cover the new source qty, qty=%v", hedgeData.Qty)
	}
}

// TestTransferFlow_BaseCompletionFlipsRoleAndSeedsDest covers S5: once
// a base-asset transfer is marked complete, the dest leg inherits the
// transferred qty/price and the coordinator's active role flips to
// dest, while the source leg is cleared.
func TestTransferFlow_BaseCompletionFlipsRoleAndSeedsDest(t *testing.T) {
	c, _ := newThreeLegCoordinator(t, signal.Hold)

	c.managers[RoleSource].Data().Qty = 2
	c.managers[RoleSource].Data().Price = 100

	req := &transfer.Request{Asset: "BTC", FromVenue: "source-ex", ToVenue: "dest-ex", Qty: 2, BuyPrice: 100}
	c.completeBaseTransfer(req)

	if c.currentRole != RoleDest {
		t.Fatalf("current role = %s, want dest", c.currentRole)
	}
	destData := c.managers[RoleDest].Data()
	if destData.Qty != 2 || destData.Price != 100 {
		t.Fatalf("dest leg not seeded from transfer: %+v", destData)
	}
	if c.managers[RoleSource].Data().Qty != 0 {
		t.Fatalf("source leg should be cleared after handoff, qty=%v", c.managers[RoleSource].Data().Qty)
	}
	if c.transferReq != nil {
		t.Fatalf("transfer request should be cleared after completion handling")
	}
}

// TestTransferFlow_QuoteCompletionResetsCycle covers the other half of
// S5: a completed quote-asset transfer closes the cycle out entirely
// and flips the role back to source.
func TestTransferFlow_QuoteCompletionResetsCycle(t *testing.T) {
	c, _ := newThreeLegCoordinator(t, signal.Hold)
	c.currentRole = RoleDest
	c.managers[RoleDest].Data().Qty = 3
	c.managers[RoleDest].Data().Price = 101

	req := &transfer.Request{Asset: "USDT", FromVenue: "dest-ex", ToVenue: "source-ex", Qty: 303, BuyPrice: 101}
	c.completeQuoteTransfer(req)

	if c.currentRole != RoleSource {
		t.Fatalf("current role = %s, want source", c.currentRole)
	}
	if c.managers[RoleDest].Data().Qty != 0 {
		t.Fatalf("dest leg should reset to zero after cycle close, qty=%v", c.managers[RoleDest].Data().Qty)
	}
	if c.managers[RoleSource].Data().TargetQty != c.cfg.TotalQuantity {
		t.Fatalf("source leg should re-arm TargetQty for the next cycle")
	}
}
