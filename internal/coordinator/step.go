package coordinator

import (
	"context"
	"time"

	"github.com/dasein108/cex-arbitrage-sub002/internal/config"
	"github.com/dasein108/cex-arbitrage-sub002/internal/hedge"
	"github.com/dasein108/cex-arbitrage-sub002/internal/manager"
	"github.com/dasein108/cex-arbitrage-sub002/internal/market"
	"github.com/dasein108/cex-arbitrage-sub002/internal/metrics"
	"github.com/dasein108/cex-arbitrage-sub002/internal/signal"
)

// Step runs one full cycle (§4.3): poll any in-flight transfer, sync
// every leg with its exchange in parallel, evaluate the signal gate
// over the active venue pair's spread, place or trail the active leg's
// order when the gate and the independent profitability validation
// agree, rebalance the hedge leg, and trigger an inter-venue transfer
// once the active leg is fulfilled.
func (c *Coordinator) Step(ctx context.Context) error {
	start := timeNow()
	defer func() { metrics.ObserveCycleDuration(timeNow().Sub(start).Seconds()) }()

	c.mu.Lock()
	status := c.status
	c.mu.Unlock()
	if status != StatusActive {
		return nil
	}

	c.pollTransfer(ctx)
	c.syncAll(ctx)

	spread := c.activeSpread()
	c.maybeRecordHistory(spread)

	history := c.activeHistoryLocked()
	result := c.gate.Evaluate(history, spread)
	metrics.IncSignal(result.Verdict.String())

	c.driveActiveLeg(ctx, result, spread)
	c.rebalanceHedge(ctx)
	c.maybeTriggerTransfer(ctx)

	return nil
}

// timeNow is a seam so cycle-duration measurement and history cadence
// gating do not call time.Now() directly; production callers get the
// real clock.
var timeNow = time.Now

func (c *Coordinator) syncAll(ctx context.Context) {
	fns := make([]func() error, 0, len(c.managers))
	for _, m := range c.managers {
		m := m
		fns = append(fns, func() error { return m.SyncWithExchange(ctx) })
	}
	runParallel(fns...)
}

// activeSpread returns the current spread between the leg accumulating
// this cycle (source, or dest once the role has flipped) and the hedge
// venue, expressed as (activeMid - hedgeMid) / hedgeMid.
func (c *Coordinator) activeSpread() float64 {
	active := c.activeRoleLocked()
	activeHandle := c.handles[active]
	hedgeHandle := c.handles[RoleHedge]
	if activeHandle == nil || hedgeHandle == nil {
		return 0
	}
	activeMid := activeHandle.LatestBookTicker().Mid()
	hedgeMid := hedgeHandle.LatestBookTicker().Mid()
	if hedgeMid <= 0 {
		return 0
	}
	return (activeMid - hedgeMid) / hedgeMid
}

func (c *Coordinator) activeRoleLocked() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentRole
}

// maybeRecordHistory appends the current spread observation to the
// active role's history slice, gated by SpreadHistoryCadenceMin so the
// gate's window spans a meaningful time horizon rather than every
// sub-second cycle.
func (c *Coordinator) maybeRecordHistory(spread float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cadence := time.Duration(c.cfg.SpreadHistoryCadenceMin) * time.Minute
	if cadence > 0 && !c.lastHistoryUpdate.IsZero() && timeNow().Sub(c.lastHistoryUpdate) < cadence {
		return
	}
	c.lastHistoryUpdate = timeNow()

	if c.currentRole == RoleDest {
		c.spreadHistoryDD = appendBounded(c.spreadHistoryDD, spread, c.cfg.HistoryWindow)
	} else {
		c.spreadHistorySD = appendBounded(c.spreadHistorySD, spread, c.cfg.HistoryWindow)
	}
}

func appendBounded(series []float64, v float64, max int) []float64 {
	series = append(series, v)
	if max > 0 && len(series) > max {
		series = series[len(series)-max:]
	}
	return series
}

func (c *Coordinator) activeHistoryLocked() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.currentRole == RoleDest {
		return append([]float64(nil), c.spreadHistoryDD...)
	}
	return append([]float64(nil), c.spreadHistorySD...)
}

// driveActiveLeg places, trails, or holds the active leg's order
// depending on the gate's verdict and the coordinator's own
// profitability validation, which is authoritative: a gate ENTER/EXIT
// that fails validation is treated as HOLD.
func (c *Coordinator) driveActiveLeg(ctx context.Context, result signal.Result, spread float64) {
	active := c.activeRoleLocked()
	m, ok := c.managers[active]
	if !ok {
		return
	}
	leg := c.cfg.Legs[active]
	info := m.SymbolInfo()
	totalSpreadCost := c.totalSpreadCost()

	switch result.Verdict {
	case signal.Enter:
		validated, _ := signal.ValidateEntry(spread, totalSpreadCost, c.roundTripFees, c.cfg.MinProfitMargin,
			spread, c.cfg.MaxAcceptableSpread, result.Stats.Mean)
		if !validated {
			return
		}
		c.placeAccumulatingOrder(ctx, m, leg, info)

	case signal.Exit:
		validated, _ := signal.ValidateExit(spread, result.Stats.P75, c.cfg.MinProfitMargin, c.cfg.MaxAcceptableSpread)
		if !validated {
			return
		}
		c.placeReleasingOrder(ctx, m, leg, info)

	default:
		c.maintainOrder(ctx, m, leg)
	}
}

// totalSpreadCost sums the live bid/ask relative spread across every
// leg's own venue, the execution-cost term in the entry validation
// formula.
func (c *Coordinator) totalSpreadCost() float64 {
	sum := 0.0
	for _, h := range c.handles {
		bt := h.LatestBookTicker()
		if bt.Mid() <= 0 {
			continue
		}
		sum += (bt.AskPrice - bt.BidPrice) / bt.Mid()
	}
	return sum
}

func (c *Coordinator) placeAccumulatingOrder(ctx context.Context, m *manager.Manager, leg config.LegSettings, info market.SymbolInfo) {
	data := m.Data()
	remaining := data.RemainingQty(info.MinBaseQty)
	if remaining <= 0 {
		return
	}
	qty := c.cfg.OrderQty
	if qty <= 0 || qty > remaining {
		qty = remaining
	}
	qty = info.RoundToContracts(qty)
	if leg.UseMarket {
		if _, err := m.PlaceOrder(ctx, market.Buy, qty, 0, true); err != nil {
			c.log.Warn("[%s] accumulate market order failed: %v", m.Role(), err)
		}
		return
	}
	offset := relFraction(float64(leg.TickOffset)*info.TickSize, data.Price)
	trail := relFraction(float64(leg.TickTolerance)*info.TickSize, data.Price)
	if _, err := m.PlaceTrailingLimitOrder(ctx, market.Buy, qty, offset, trail); err != nil {
		c.log.Warn("[%s] accumulate trailing limit failed: %v", m.Role(), err)
	}
}

func (c *Coordinator) placeReleasingOrder(ctx context.Context, m *manager.Manager, leg config.LegSettings, info market.SymbolInfo) {
	data := m.Data()
	if !data.HasPosition() {
		return
	}
	qty := c.cfg.OrderQty
	if qty <= 0 || qty > data.Qty {
		qty = data.Qty
	}
	qty = info.RoundToContracts(qty)
	side := data.Side.Opposite()
	if leg.UseMarket {
		if _, err := m.PlaceOrder(ctx, side, qty, 0, true); err != nil {
			c.log.Warn("[%s] release market order failed: %v", m.Role(), err)
		}
		return
	}
	offset := relFraction(float64(leg.TickOffset)*info.TickSize, data.Price)
	trail := relFraction(float64(leg.TickTolerance)*info.TickSize, data.Price)
	if _, err := m.PlaceTrailingLimitOrder(ctx, side, qty, offset, trail); err != nil {
		c.log.Warn("[%s] release trailing limit failed: %v", m.Role(), err)
	}
}

// maintainOrder re-pegs a resting limit order that has drifted too far
// from the current top, without changing the gate's HOLD decision into
// a fresh order placement.
func (c *Coordinator) maintainOrder(ctx context.Context, m *manager.Manager, leg config.LegSettings) {
	data := m.Data()
	if data.LastOrder == nil || leg.UseMarket {
		return
	}
	info := m.SymbolInfo()
	trail := relFraction(float64(leg.TickTolerance)*info.TickSize, data.Price)
	offset := relFraction(float64(leg.TickOffset)*info.TickSize, data.Price)
	side := data.LastOrder.Side
	qty := data.LastOrder.RequestedQty - data.LastOrder.FilledQty
	if qty <= 0 {
		return
	}
	if _, err := m.PlaceTrailingLimitOrder(ctx, side, qty, offset, trail); err != nil {
		c.log.Warn("[%s] maintain trailing limit failed: %v", m.Role(), err)
	}
}

func relFraction(absolute, price float64) float64 {
	if price <= 0 {
		return 0
	}
	return absolute / price
}

// rebalanceHedge computes the long-leg imbalance and, if it exceeds the
// hedge venue's minimum tradable quantity, issues a single compensating
// market order (§4.4).
func (c *Coordinator) rebalanceHedge(ctx context.Context) {
	hedgeMgr, ok := c.managers[RoleHedge]
	if !ok {
		return
	}

	longQtys := make([]float64, 0, 2)
	if sm, ok := c.managers[RoleSource]; ok {
		longQtys = append(longQtys, sm.Data().Qty)
	}
	if dm, ok := c.managers[RoleDest]; ok {
		longQtys = append(longQtys, dm.Data().Qty)
	}

	c.mu.Lock()
	inFlightBase := 0.0
	if c.transferReq != nil && c.transferReq.InProgress && c.transferReq.Asset == c.cfg.Symbol().Base {
		inFlightBase = c.transferReq.Qty
	}
	c.mu.Unlock()

	delta := hedge.Delta(longQtys, inFlightBase, hedgeMgr.Data().Qty)
	info := hedgeMgr.SymbolInfo()
	if !hedge.NeedsRebalance(delta, info.MinBaseQty) {
		return
	}

	corr := hedge.ComputeCorrection(delta)
	side := market.Buy
	if corr.Sell {
		side = market.Sell
	}
	if _, err := hedgeMgr.PlaceOrder(ctx, side, info.RoundToContracts(corr.Qty), 0, true); err != nil {
		c.log.Warn("[hedge] rebalance order failed: %v", err)
	} else {
		metrics.SetHedgeDelta(c.cfg.Symbol().String(), delta)
	}
}
