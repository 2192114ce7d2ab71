// Package manager implements the per-exchange Position Manager: it
// binds one position.Data to one exchange.Handle, reconciling local
// state with exchange-reported order/position/balance state every
// cycle. Follows a lock-around-mutate, release-around-I/O discipline
// with an atomic persistence hookup, generalized from one hardcoded
// broker to the capability-abstraction exchange.Handle.
package manager

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/dasein108/cex-arbitrage-sub002/internal/exchange"
	"github.com/dasein108/cex-arbitrage-sub002/internal/market"
	"github.com/dasein108/cex-arbitrage-sub002/internal/position"
	"github.com/dasein108/cex-arbitrage-sub002/internal/xlog"
)

const epsilon = 1e-8

// ErrOrderInFlight is returned by PlaceOrder when the leg already has a
// live last_order; callers must cancel first (trailing-limit logic
// does this for them).
var ErrOrderInFlight = errors.New("manager: order already in flight for this leg")

// SaveFunc persists a position snapshot after any mutation. Called
// synchronously from the single coordinator goroutine — no re-entrant
// saves.
type SaveFunc func(role string, snapshot position.Data)

// OnFilledFunc is invoked whenever PositionData.Update actually moved
// qty/price, after the save callback. Optional.
type OnFilledFunc func(role string, order market.Order, change position.Change)

// Manager binds one PositionData to one exchange.Handle under the
// given role (source/dest/hedge, or any caller-assigned label).
type Manager struct {
	role   string
	handle exchange.Handle
	data   *position.Data
	save   SaveFunc
	onFill OnFilledFunc
	log    xlog.Logger

	mu sync.Mutex

	symbolInfo market.SymbolInfo
	fees       market.Fees
}

// New constructs a Manager. data may be a freshly zeroed position.Data
// or one restored from a persisted ArbitrageContext; Init reconciles
// it against the exchange's authoritative state.
func New(role string, handle exchange.Handle, data *position.Data, save SaveFunc, onFill OnFilledFunc, log xlog.Logger) *Manager {
	if log == nil {
		log = xlog.Nop()
	}
	return &Manager{role: role, handle: handle, data: data, save: save, onFill: onFill, log: log}
}

func (m *Manager) Role() string          { return m.role }
func (m *Manager) IsFutures() bool       { return m.handle.IsFutures() }
func (m *Manager) Data() *position.Data  { return m.data }
func (m *Manager) SymbolInfo() market.SymbolInfo { return m.symbolInfo }
func (m *Manager) Fees() market.Fees     { return m.fees }

// Init loads symbol info and fees, seeds the position from the
// exchange's authoritative balance/position, infers price from the
// current book when the exchange reports a non-zero qty but no entry
// price, and resumes tracking any previously-persisted in-flight
// order.
func (m *Manager) Init(ctx context.Context, symbol market.Symbol, defaultTargetQty float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.handle.Init(ctx, symbol); err != nil {
		return err
	}
	info, err := m.handle.GetSymbolInfo(ctx)
	if err != nil {
		return err
	}
	fees, err := m.handle.GetFees(ctx)
	if err != nil {
		return err
	}
	m.symbolInfo = info
	m.fees = fees
	m.data.Symbol = symbol

	qty, entryPrice, err := m.handle.GetPositionOrBalance(ctx)
	if err != nil {
		return err
	}
	side := market.Buy
	absQty := qty
	if m.handle.IsFutures() && qty < 0 {
		side = market.Sell
		absQty = -qty
	}
	m.data.Qty = absQty
	if absQty > epsilon {
		m.data.Side = side
		if entryPrice > epsilon {
			m.data.Price = entryPrice
		} else {
			bt := m.handle.LatestBookTicker()
			if side == market.Buy {
				m.data.Price = bt.AskPrice
			} else {
				m.data.Price = bt.BidPrice
			}
		}
	}
	if m.data.TargetQty <= epsilon {
		m.data.TargetQty = defaultTargetQty
	}

	if m.data.LastOrder != nil {
		order, err := m.handle.FetchOrder(ctx, m.data.LastOrder.ID)
		if err != nil {
			if errors.Is(err, exchange.ErrOrderNotFound) {
				m.log.Warn("[%s] restored last_order %s not found on venue; clearing", m.role, m.data.LastOrder.ID)
				m.data.LastOrder = nil
			} else {
				return err
			}
		} else {
			m.trackOrderExecutionLocked(order)
		}
	}
	return nil
}

// PlaceOrder forwards to the exchange handle. On insufficient balance
// it snaps qty to target_qty (when the leg has a target) so the leg
// reads as fulfilled instead of retrying, reloads the balance from the
// venue and logs it, clears last_order unconditionally since the
// rejected order never started executing, and returns the wrapped
// error. On other failures it logs and returns the error with a nil
// order.
func (m *Manager) PlaceOrder(ctx context.Context, side market.Side, qty, price float64, isMarket bool) (*market.Order, error) {
	m.mu.Lock()
	if m.data.LastOrder != nil && !m.data.LastOrder.Status.IsTerminal() {
		m.mu.Unlock()
		return nil, ErrOrderInFlight
	}
	m.mu.Unlock()

	order, err := m.handle.PlaceOrder(ctx, side, qty, price, isMarket)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		if errors.Is(err, exchange.ErrInsufficientBalance) {
			m.log.Warn("[%s] insufficient balance placing %v %.8f @ %.8f; snapping qty to target %.8f", m.role, side, qty, price, m.data.TargetQty)
			if balQty, _, balErr := m.handle.GetPositionOrBalance(ctx); balErr == nil {
				m.log.Info("[%s] reloaded balance after insufficient-balance rejection: %.8f", m.role, balQty)
			}
			if m.data.TargetQty > epsilon {
				m.data.Qty = m.data.TargetQty
			}
			m.data.LastOrder = nil
			return nil, err
		}
		m.log.Error("[%s] place_order failed: %v", m.role, err)
		return nil, err
	}

	m.log.Info("[%s] placed %v qty=%.8f price=%.8f market=%v id=%s", m.role, side, qty, price, isMarket, order.ID)
	m.trackOrderExecutionLocked(order)
	return order, nil
}

// trackOrderExecutionLocked must be called with mu held. It rejects
// out-of-order updates (older timestamp, decreasing filled qty, or a
// done->not-done transition), computes the incremental fill since the
// previously tracked snapshot of the same order id, applies it to the
// position, and fires the save/onFill callbacks when something
// actually changed.
func (m *Manager) trackOrderExecutionLocked(order *market.Order) {
	prevFilled := 0.0
	if prev := m.data.LastOrder; prev != nil && prev.ID == order.ID {
		if order.Timestamp.Before(prev.Timestamp) {
			m.log.Trace("[%s] dropping out-of-order update (stale timestamp) for %s", m.role, order.ID)
			return
		}
		if order.FilledQty < prev.FilledQty-epsilon {
			m.log.Trace("[%s] dropping out-of-order update (decreasing filled qty) for %s", m.role, order.ID)
			return
		}
		if prev.Status.IsTerminal() && !order.Status.IsTerminal() {
			m.log.Trace("[%s] dropping out-of-order update (done->not-done) for %s", m.role, order.ID)
			return
		}
		prevFilled = prev.FilledQty
	}

	fillDelta := order.FilledQty - prevFilled
	if fillDelta > epsilon {
		change := m.data.Update(order.Side, fillDelta, order.Price, m.fees.TakerRate)
		if change.IsChanged() {
			if m.save != nil {
				m.save(m.role, *m.data)
			}
			if m.onFill != nil {
				m.onFill(m.role, *order, change)
			}
		}
	}

	if order.Status.IsTerminal() {
		m.data.LastOrder = nil
	} else {
		cp := *order
		m.data.LastOrder = &cp
	}
}

// SyncWithExchange fetches the current state of last_order (if any)
// and routes it through the same tracking path as a streamed update.
func (m *Manager) SyncWithExchange(ctx context.Context) error {
	m.mu.Lock()
	lo := m.data.LastOrder
	m.mu.Unlock()
	if lo == nil {
		return nil
	}

	order, err := m.handle.FetchOrder(ctx, lo.ID)
	if err != nil {
		if errors.Is(err, exchange.ErrOrderNotFound) {
			m.mu.Lock()
			m.log.Warn("[%s] last_order %s vanished from venue; clearing", m.role, lo.ID)
			m.data.LastOrder = nil
			m.mu.Unlock()
			return nil
		}
		m.log.Warn("[%s] sync fetch_order error (will retry next cycle): %v", m.role, err)
		return nil
	}

	m.mu.Lock()
	m.trackOrderExecutionLocked(order)
	m.mu.Unlock()
	return nil
}

// CancelOrder is idempotent and never returns an error: any exchange
// failure is logged and resolved by falling back to FetchOrder as the
// authoritative ground truth, matching the "never raises" contract.
func (m *Manager) CancelOrder(ctx context.Context) *market.Order {
	m.mu.Lock()
	lo := m.data.LastOrder
	m.mu.Unlock()
	if lo == nil {
		return nil
	}

	order, err := m.handle.CancelOrder(ctx, lo.ID)
	if err != nil {
		fetched, ferr := m.handle.FetchOrder(ctx, lo.ID)
		if ferr != nil {
			m.log.Warn("[%s] cancel and fetch both failed for %s: cancel=%v fetch=%v", m.role, lo.ID, err, ferr)
			m.mu.Lock()
			m.data.LastOrder = nil
			m.mu.Unlock()
			return nil
		}
		order = fetched
	}

	m.mu.Lock()
	m.trackOrderExecutionLocked(order)
	m.mu.Unlock()
	return order
}

// PlaceTrailingLimitOrder cancels a drifted resting order and either
// returns it (if the cancel race revealed a fill — the caller must
// hedge that) or places a fresh limit offset from the current top.
// offsetFraction and trailFraction are expressed as plain fractions
// (0.001 == 0.1%), not percent.
func (m *Manager) PlaceTrailingLimitOrder(ctx context.Context, side market.Side, qty, offsetFraction, trailFraction float64) (*market.Order, error) {
	m.mu.Lock()
	lo := m.data.LastOrder
	top := m.topPriceLocked(side)
	m.mu.Unlock()

	if lo != nil {
		drift := 0.0
		if top > epsilon {
			drift = math.Abs(lo.Price-top) / top
		}
		if drift <= trailFraction {
			return nil, nil // still acceptably close to top; leave resting
		}
		cancelled := m.CancelOrder(ctx)
		if cancelled != nil && cancelled.Status == market.StatusFilled {
			return cancelled, nil // caller must hedge this fill
		}
		// fall through to place a fresh order at the new top
	}

	if top <= epsilon {
		return nil, errors.New("manager: no book top available for trailing limit")
	}
	var price float64
	if side == market.Buy {
		price = m.symbolInfo.RoundToTick(top*(1-offsetFraction), false)
	} else {
		price = m.symbolInfo.RoundToTick(top*(1+offsetFraction), true)
	}
	return m.PlaceOrder(ctx, side, qty, price, false)
}

func (m *Manager) topPriceLocked(side market.Side) float64 {
	bt := m.handle.LatestBookTicker()
	if side == market.Sell {
		return bt.BidPrice
	}
	return bt.AskPrice
}
