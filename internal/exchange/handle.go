// Package exchange defines the capability abstraction the Position
// Manager and Transfer Manager consume instead of branching on
// concrete exchange type. It covers both spot and futures venues
// behind one fixed set of operations, branching only on IsFutures where a
// spot balance and a futures position genuinely diverge.
package exchange

import (
	"context"
	"errors"

	"github.com/dasein108/cex-arbitrage-sub002/internal/market"
)

// Sentinel errors the Position Manager and Transfer Manager branch on.
// Concrete venue adapters must wrap these with errors.Join/%w so
// errors.Is still matches.
var (
	ErrInsufficientBalance = errors.New("exchange: insufficient balance")
	ErrOrderNotFound       = errors.New("exchange: order not found")
)

// Handle is the fixed capability set a Position Manager binds to one
// venue through. Spot and futures adapters both satisfy it; callers
// branch only on IsFutures(), never on concrete type.
type Handle interface {
	// Name identifies the venue for logging and metrics labels.
	Name() string

	// IsFutures reports whether GetPositionOrBalance returns a signed
	// futures position (qty, entryPrice) or a spot base-asset balance
	// (qty, entryPrice==0).
	IsFutures() bool

	// Init loads symbol info and fees and opens the public/private
	// subscriptions. Must be called once before any other method.
	Init(ctx context.Context, symbol market.Symbol) error

	// BookTickers returns a channel of public book-ticker updates,
	// open for the lifetime of the handle.
	BookTickers() <-chan market.BookTicker

	// OrderUpdates returns a channel of private order-update
	// snapshots, open for the lifetime of the handle.
	OrderUpdates() <-chan market.Order

	// LatestBookTicker returns the most recently observed top of book,
	// a pure snapshot safe to read from any goroutine.
	LatestBookTicker() market.BookTicker

	// PlaceOrder submits a new order. On insufficient balance it
	// returns an error wrapping ErrInsufficientBalance and a nil
	// order.
	PlaceOrder(ctx context.Context, side market.Side, qty, price float64, isMarket bool) (*market.Order, error)

	// CancelOrder cancels an order by id. Idempotent: cancelling an
	// already-terminal order returns that terminal snapshot, not an
	// error, unless the venue has no record of the id at all (in
	// which case it wraps ErrOrderNotFound).
	CancelOrder(ctx context.Context, orderID string) (*market.Order, error)

	// FetchOrder is the authoritative lookup used to resolve timeouts
	// and races.
	FetchOrder(ctx context.Context, orderID string) (*market.Order, error)

	// GetPositionOrBalance returns the current signed position
	// (futures) or available base balance (spot), and the entry price
	// if known (0 for a fresh spot balance).
	GetPositionOrBalance(ctx context.Context) (qty float64, entryPrice float64, err error)

	// GetSymbolInfo returns cached tick/lot metadata.
	GetSymbolInfo(ctx context.Context) (market.SymbolInfo, error)

	// GetFees returns cached maker/taker rates.
	GetFees(ctx context.Context) (market.Fees, error)

	// SubmitWithdrawal begins an inter-venue transfer of asset,
	// returning a venue-assigned transfer id.
	SubmitWithdrawal(ctx context.Context, asset string, qty float64, toVenue string) (transferID string, err error)

	// GetWithdrawalStatus polls the status of a previously submitted
	// transfer.
	GetWithdrawalStatus(ctx context.Context, transferID string) (completed bool, err error)

	// Close releases any background subscriptions.
	Close() error
}
