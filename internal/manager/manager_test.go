package manager

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/dasein108/cex-arbitrage-sub002/internal/market"
	"github.com/dasein108/cex-arbitrage-sub002/internal/position"
	"github.com/dasein108/cex-arbitrage-sub002/internal/venue/mock"
)

func newTestManager(t *testing.T) (*Manager, *mock.Handle) {
	t.Helper()
	h := mock.New("V1", false)
	h.FillImmediately = false
	d := &position.Data{}
	m := New("source", h, d, nil, nil, nil)
	if err := m.Init(context.Background(), market.Symbol{Base: "BTC", Quote: "USDT"}, 1.0); err != nil {
		t.Fatalf("init: %v", err)
	}
	return m, h
}

// S2: out-of-order WebSocket update. Place SELL 1.0 @ 100. Receive
// update filled=0.3 ts=T1, then filled=0.2 ts=T2>T1 (decreasing filled
// qty): the second update must be dropped; qty stays at 0.3.
func TestSyncWithExchange_OutOfOrderDropped(t *testing.T) {
	m, h := newTestManager(t)
	order, err := m.PlaceOrder(context.Background(), market.Sell, 1.0, 100, false)
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	t1 := time.Now()
	h.Fill(order.ID, 0.3, market.StatusPartial, t1)
	if err := m.SyncWithExchange(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if got := m.Data().Qty; got != 0.3 {
		t.Fatalf("qty after first update = %v, want 0.3", got)
	}

	t2 := t1.Add(time.Second)
	h.Fill(order.ID, 0.2, market.StatusPartial, t2) // decreasing filled qty
	if err := m.SyncWithExchange(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if got := m.Data().Qty; got != 0.3 {
		t.Fatalf("qty after out-of-order update = %v, want unchanged 0.3", got)
	}
}

// S4: insufficient balance. target_qty=1.0, qty=0.3 already filled;
// next order of 0.7 fails with insufficient balance; qty snaps to
// target_qty (whatever the reloaded balance says) and last_order clears.
func TestPlaceOrder_InsufficientBalanceSnapsToTarget(t *testing.T) {
	m, h := newTestManager(t)
	m.Data().TargetQty = 1.0
	m.Data().Qty = 0.3
	m.Data().Side = market.Buy

	h.SetPositionOrBalance(0.5, 0) // simulate a real available balance below target
	h.NextInsufficientBalance = true

	_, err := m.PlaceOrder(context.Background(), market.Buy, 0.7, 100, false)
	if err == nil {
		t.Fatalf("expected insufficient balance error")
	}
	if got := m.Data().Qty; got != 1.0 {
		t.Fatalf("qty after insufficient-balance snap = %v, want 1.0 (target_qty)", got)
	}
	if m.Data().LastOrder != nil {
		t.Fatalf("expected last_order cleared after insufficient balance")
	}
}

func TestCancelOrder_Idempotent(t *testing.T) {
	m, h := newTestManager(t)
	order, err := m.PlaceOrder(context.Background(), market.Buy, 1.0, 100, false)
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	_ = h

	first := m.CancelOrder(context.Background())
	if first == nil || first.Status != market.StatusCancelled {
		t.Fatalf("expected cancelled order, got %+v", first)
	}
	if m.Data().LastOrder != nil {
		t.Fatalf("expected last_order cleared after cancel")
	}

	second := m.CancelOrder(context.Background())
	if second != nil {
		t.Fatalf("second cancel on a cleared last_order should be a no-op, got %+v", second)
	}
	_ = order
}

// A trailing limit order's computed top±offset price must land on the
// symbol's tick grid, not an arbitrary float.
func TestPlaceTrailingLimitOrder_SnapsPriceToTick(t *testing.T) {
	m, h := newTestManager(t)
	h.SetBook(99.983, 10, 100.017, 10) // tick size 0.01 (mock.New default)

	order, err := m.PlaceTrailingLimitOrder(context.Background(), market.Buy, 1.0, 0, 0)
	if err != nil {
		t.Fatalf("place trailing limit: %v", err)
	}
	if math.Abs(order.Price-100.01) > 1e-9 {
		t.Fatalf("price = %v, want 100.01 (100.017 rounded down to the 0.01 tick grid)", order.Price)
	}
}

func TestPlaceOrder_RejectsWhileOrderInFlight(t *testing.T) {
	m, _ := newTestManager(t)
	if _, err := m.PlaceOrder(context.Background(), market.Buy, 1.0, 100, false); err != nil {
		t.Fatalf("first place: %v", err)
	}
	if _, err := m.PlaceOrder(context.Background(), market.Buy, 1.0, 100, false); err != ErrOrderInFlight {
		t.Fatalf("expected ErrOrderInFlight, got %v", err)
	}
}
