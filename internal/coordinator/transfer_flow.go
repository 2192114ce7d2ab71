package coordinator

import (
	"context"
	"fmt"

	"github.com/dasein108/cex-arbitrage-sub002/internal/alert"
	"github.com/dasein108/cex-arbitrage-sub002/internal/market"
	"github.com/dasein108/cex-arbitrage-sub002/internal/metrics"
	"github.com/dasein108/cex-arbitrage-sub002/internal/transfer"
)

// pollTransfer polls the in-flight transfer (if any) for completion and,
// once complete, applies the role flip / position reseed / full-reset
// semantics resolved for the two transfer kinds (§9, §4.5): a base-asset
// transfer hands accumulation duties to the dest leg with PnL
// continuity; a quote-asset transfer closes out the cycle entirely.
func (c *Coordinator) pollTransfer(ctx context.Context) {
	c.mu.Lock()
	req := c.transferReq
	c.mu.Unlock()
	if req == nil || !req.InProgress {
		return
	}

	if err := c.transferMgr.UpdateTransferRequest(ctx, req); err != nil {
		c.log.Warn("transfer poll failed: %v", err)
		return
	}
	if !req.Completed {
		return
	}

	metrics.IncTransfer(req.Asset, "completed")
	if req.Asset == c.cfg.Symbol().Base {
		c.completeBaseTransfer(req)
	} else {
		c.completeQuoteTransfer(req)
	}
}

// completeBaseTransfer hands accumulation duties to the dest leg,
// seeding its entry price/qty from the transfer so the combined
// position's weighted-average PnL stays continuous across venues.
func (c *Coordinator) completeBaseTransfer(req *transfer.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dest, ok := c.managers[RoleDest]
	if !ok {
		c.transferReq = nil
		return
	}
	source := c.managers[RoleSource]

	destData := dest.Data()
	destData.Reset(req.Qty, false)
	destData.PnL = source.Data().PnL
	if change := destData.Update(market.Buy, req.Qty, req.BuyPrice, dest.Fees().TakerRate); change.IsChanged() {
		c.log.Info("[dest] seeded %.8f @ %.8f from completed transfer", req.Qty, req.BuyPrice)
	}

	source.Data().Reset(0, false)

	c.currentRole = RoleDest
	c.transferReq = nil
}

// completeQuoteTransfer closes out a full cycle: quote proceeds have
// returned to the source venue, so the cumulative realized PnL is
// logged, a cycle summary is pushed to the alert sink, and every leg
// resets for a brand-new accumulation cycle.
func (c *Coordinator) completeQuoteTransfer(req *transfer.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	totalNet := 0.0
	for role, m := range c.managers {
		data := m.Data()
		metrics.SetRealizedPnl(role, data.PnL.PnlUsdtNet())
		c.log.Info("[%s] cycle closed: realized net pnl=%.4f", role, data.PnL.PnlUsdtNet())
		totalNet += data.PnL.PnlUsdtNet()
		data.Reset(c.cfg.TotalQuantity, true)
	}
	summary := fmt.Sprintf("cycle closed for %s: realized net pnl=%.4f", c.cfg.Symbol(), totalNet)
	if err := c.sink.Notify(context.Background(), alert.LevelInfo, summary); err != nil {
		c.log.Warn("alert sink: %v", err)
	}
	if hedgeMgr, ok := c.managers[RoleHedge]; ok {
		hedgeMgr.Data().Reset(0, true)
	}

	c.currentRole = RoleSource
	c.transferReq = nil
}

// maybeTriggerTransfer initiates the next inter-venue transfer once the
// active leg has reached its target and no transfer is already
// in-flight. Two-leg spot-futures configurations have no dest venue and
// never transfer.
func (c *Coordinator) maybeTriggerTransfer(ctx context.Context) {
	if !c.threeLeg {
		return
	}

	c.mu.Lock()
	if c.transferReq != nil && c.transferReq.InProgress {
		c.mu.Unlock()
		return
	}
	role := c.currentRole
	c.mu.Unlock()

	switch role {
	case RoleSource:
		c.triggerTransfer(ctx, c.cfg.Symbol().Base, RoleSource, RoleDest)
	case RoleDest:
		c.triggerTransfer(ctx, c.cfg.Symbol().Quote, RoleDest, RoleSource)
	}
}

func (c *Coordinator) triggerTransfer(ctx context.Context, asset, fromRole, toRole string) {
	m, ok := c.managers[fromRole]
	if !ok {
		return
	}
	data := m.Data()
	info := m.SymbolInfo()
	if !data.IsFulfilled(info.MinBaseQty) {
		return
	}

	fromHandle, toHandle := c.handles[fromRole], c.handles[toRole]
	if fromHandle == nil || toHandle == nil {
		return
	}

	qty := data.Qty
	if asset == c.cfg.Symbol().Quote {
		qty = data.QuoteQty()
	}

	req, err := c.transferMgr.TransferAsset(ctx, asset, fromHandle.Name(), toHandle.Name(), qty, data.Price)
	if err != nil {
		c.log.Error("transfer initiation failed: %v", err)
		metrics.IncTransfer(asset, "failed")
		return
	}

	c.mu.Lock()
	c.transferReq = req
	c.mu.Unlock()
	c.log.Info("transfer initiated: %s qty=%.8f from=%s to=%s", asset, qty, fromHandle.Name(), toHandle.Name())
	metrics.IncTransfer(asset, "initiated")
}
