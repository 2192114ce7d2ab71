// Package position implements PositionData, the central mutable entity
// tracked by one Position Manager per exchange leg. It owns the
// weighted-average entry/exit pricing and the side-reversal logic
// described for the arbitrage engine's per-leg accounting, grounded on
// the Python original's PositionData.update state machine.
package position

import (
	"github.com/dasein108/cex-arbitrage-sub002/internal/market"
	"github.com/dasein108/cex-arbitrage-sub002/internal/pnl"
)

const epsilon = 1e-8

// Change describes the before/after of a single PositionData.Update
// call, plus any realized PnL produced by the portion of the update
// that closed existing exposure.
type Change struct {
	OldQty         float64
	OldPrice       float64
	NewQty         float64
	NewPrice       float64
	RealizedPnl    float64
	RealizedPnlNet float64
	HasPnl         bool
}

// IsChanged reports whether the update actually moved qty or price.
func (c Change) IsChanged() bool {
	return c.OldQty != c.NewQty || c.OldPrice != c.NewPrice
}

// Data is the per-leg position state. It must only be mutated through
// Update/Reset; every other field is safe to read directly since a
// PositionManager is the sole writer.
type Data struct {
	Qty         float64
	Price       float64
	Side        market.Side
	TargetQty   float64
	Symbol      market.Symbol
	FilledBuy   float64
	FilledSell  float64
	PnL         pnl.Tracker
	LastOrder   *market.Order
}

// HasPosition reports whether qty is non-trivially positive.
func (d *Data) HasPosition() bool { return d.Qty > epsilon }

// QuoteQty is the position's notional value in quote-asset terms.
func (d *Data) QuoteQty() float64 {
	if d.Price > epsilon {
		return d.Qty * d.Price
	}
	return 0
}

func (d *Data) filledAmount(side market.Side) *float64 {
	if side == market.Buy {
		return &d.FilledBuy
	}
	return &d.FilledSell
}

// Update applies a fill of the given side/quantity/price to the
// position, maintaining the weighted-average price on same-side adds
// and realizing PnL (with side reversal) on opposite-side fills.
//
//   - side == position.Side (or no existing position): entry, added to
//     the weighted average.
//   - side != position.Side: exit. If quantity < qty, the position is
//     reduced at the unchanged entry price. If quantity == qty, the
//     position closes fully. If quantity > qty, the position reverses:
//     the closed portion realizes PnL and the remainder opens a new
//     position at the new price on the new side.
func (d *Data) Update(side market.Side, quantity, price, feeRate float64) Change {
	*d.filledAmount(side) += quantity

	if quantity <= 0 {
		return Change{OldQty: d.Qty, OldPrice: d.Price, NewQty: d.Qty, NewPrice: d.Price}
	}

	// No existing position: always an entry.
	if !d.HasPosition() {
		d.Qty = quantity
		d.Price = price
		d.Side = side
		d.PnL.AddEntry(price, quantity, side, feeRate)
		return Change{OldQty: 0, OldPrice: 0, NewQty: quantity, NewPrice: price}
	}

	// Same side: add to position, update weighted average.
	if d.Side == side {
		oldQty, oldPrice := d.Qty, d.Price
		newQty := oldQty + quantity
		newPrice := (oldPrice*oldQty + price*quantity) / newQty
		d.Qty = newQty
		d.Price = newPrice
		d.PnL.AddEntry(price, quantity, side, feeRate)
		return Change{OldQty: oldQty, OldPrice: oldPrice, NewQty: newQty, NewPrice: newPrice}
	}

	// Opposite side: reduce, close, or reverse.
	oldQty, oldPrice := d.Qty, d.Price
	closeQty := quantity
	if d.Qty < closeQty {
		closeQty = d.Qty
	}

	var realizedGross, realizedNet float64
	if d.Side != market.None && oldPrice > epsilon {
		if d.Side == market.Buy {
			realizedGross = (price - oldPrice) * closeQty
		} else {
			realizedGross = (oldPrice - price) * closeQty
		}
		totalFees := 0.0
		if feeRate > 0 {
			totalFees = (oldPrice * closeQty * feeRate) + (price * closeQty * feeRate)
		}
		realizedNet = realizedGross - totalFees
	}
	d.PnL.AddExit(price, closeQty, feeRate)

	switch {
	case quantity < d.Qty-epsilon:
		// Reduce: qty shrinks, price unchanged.
		newQty := d.Qty - quantity
		d.Qty = newQty
		return Change{OldQty: oldQty, OldPrice: oldPrice, NewQty: newQty, NewPrice: oldPrice,
			RealizedPnl: realizedGross, RealizedPnlNet: realizedNet, HasPnl: true}

	case abs(quantity-d.Qty) < epsilon:
		// Close fully.
		d.Qty = 0
		d.Price = 0
		d.Side = market.None
		return Change{OldQty: oldQty, OldPrice: oldPrice, NewQty: 0, NewPrice: 0,
			RealizedPnl: realizedGross, RealizedPnlNet: realizedNet, HasPnl: true}

	default:
		// Reverse: remainder opens a new position on the opposite side.
		remaining := quantity - d.Qty
		d.Qty = remaining
		d.Price = price
		d.Side = side
		if remaining > 0 {
			d.PnL.AddEntry(price, remaining, side, feeRate)
		}
		return Change{OldQty: oldQty, OldPrice: oldPrice, NewQty: remaining, NewPrice: price,
			RealizedPnl: realizedGross, RealizedPnlNet: realizedNet, HasPnl: true}
	}
}

// IsFulfilled reports whether the leg has reached (within minBaseQty
// tolerance) its target quantity.
func (d *Data) IsFulfilled(minBaseQty float64) bool {
	if d.TargetQty <= epsilon {
		return false
	}
	delta := d.TargetQty - d.Qty
	return delta < minBaseQty
}

// RemainingQty is how much base quantity is left to reach TargetQty,
// floored to zero once within minBaseQty tolerance.
func (d *Data) RemainingQty(minBaseQty float64) float64 {
	if d.TargetQty <= epsilon {
		return 0
	}
	remaining := d.TargetQty - d.Qty
	if remaining < minBaseQty {
		return 0
	}
	return remaining
}

// Reset clears qty/side/price/filled amounts and re-arms TargetQty,
// optionally resetting PnL history as well (preserved across a role
// flip, cleared at the start of a brand new cycle).
func (d *Data) Reset(targetQty float64, resetPnl bool) {
	d.TargetQty = targetQty
	d.Qty = 0
	d.Price = 0
	d.Side = market.None
	d.FilledBuy = 0
	d.FilledSell = 0
	d.LastOrder = nil
	if resetPnl {
		d.PnL.Reset()
	}
}

// SignedFilled returns FilledBuy - FilledSell, which equals the
// signed position qty for any leg that never flipped side.
func (d *Data) SignedFilled() float64 { return d.FilledBuy - d.FilledSell }

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
