// Package market holds the pure, exchange-agnostic value types shared by
// every leg of the arbitrage engine: symbols, sides, orders, book tops,
// fees and symbol metadata. None of these types carry behavior beyond
// small accessors — they are snapshots exchanged between the venue
// capability layer and the position/coordinator layers.
package market

import "time"

// Side is the direction of an order or a position. The zero value None
// represents "no position" and must never be produced by an exchange
// update — only BUY and SELL cross the wire.
type Side int

const (
	None Side = iota
	Buy
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "NONE"
	}
}

// Opposite returns the other trading side. Opposite(None) is None.
func (s Side) Opposite() Side {
	switch s {
	case Buy:
		return Sell
	case Sell:
		return Buy
	default:
		return None
	}
}

// Symbol is a hashable (base, quote) pair, e.g. {"BTC", "USDT"}.
type Symbol struct {
	Base  string
	Quote string
}

func (s Symbol) String() string { return s.Base + "/" + s.Quote }

// OrderStatus mirrors the exchange-reported lifecycle of an order.
type OrderStatus int

const (
	StatusNew OrderStatus = iota
	StatusPartial
	StatusFilled
	StatusCancelled
	StatusExpired
	StatusRejected
)

func (s OrderStatus) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusPartial:
		return "partial"
	case StatusFilled:
		return "filled"
	case StatusCancelled:
		return "cancelled"
	case StatusExpired:
		return "expired"
	case StatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further fills can arrive for this status.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusExpired, StatusRejected:
		return true
	default:
		return false
	}
}

// Order is an external, immutable snapshot of exchange order state. The
// engine never mutates an Order in place; every update is a freshly
// fetched or streamed snapshot compared against the previously tracked
// one.
type Order struct {
	ID            string
	Symbol        Symbol
	Side          Side
	Price         float64
	RequestedQty  float64
	FilledQty     float64
	Status        OrderStatus
	Timestamp     time.Time
}

// BookTicker is the best bid/ask snapshot for a symbol on one venue,
// delivered by the public book-ticker feed.
type BookTicker struct {
	Symbol    Symbol
	BidPrice  float64
	BidQty    float64
	AskPrice  float64
	AskQty    float64
	Timestamp time.Time
}

// Mid returns the simple midpoint of bid and ask, or 0 if either side is
// missing.
func (b BookTicker) Mid() float64 {
	if b.BidPrice <= 0 || b.AskPrice <= 0 {
		return 0
	}
	return (b.BidPrice + b.AskPrice) / 2
}

// Fees are the maker/taker rates for one symbol on one venue, cached at
// initialization.
type Fees struct {
	MakerRate float64
	TakerRate float64
}

// SymbolInfo is exchange-reported trading metadata, cached at
// initialization.
type SymbolInfo struct {
	TickSize           float64
	MinBaseQty         float64
	MinQuoteQty        float64
	ContractMultiplier float64 // 1.0 for spot; >1 for futures contracts
}

// RoundToTick snaps price down to the nearest tick below it (for bids)
// or up (for asks), matching the exchange's price grid.
func (si SymbolInfo) RoundToTick(price float64, roundUp bool) float64 {
	if si.TickSize <= 0 {
		return price
	}
	n := price / si.TickSize
	if roundUp {
		return float64(int64(n+0.999999999)) * si.TickSize
	}
	return float64(int64(n)) * si.TickSize
}

// RoundToContracts snaps a base quantity down to the nearest multiple of
// the contract multiplier (futures only; a no-op when multiplier <= 1).
func (si SymbolInfo) RoundToContracts(qty float64) float64 {
	if si.ContractMultiplier <= 1 {
		return qty
	}
	n := qty / si.ContractMultiplier
	return float64(int64(n)) * si.ContractMultiplier
}
