// Package mock provides an in-memory exchange.Handle used by the test
// suite and by dry-run deployments: no network calls, deterministic
// simulated fills driven by whatever the test sets as the current book.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dasein108/cex-arbitrage-sub002/internal/exchange"
	"github.com/dasein108/cex-arbitrage-sub002/internal/market"
)

// Handle is a fully in-memory venue used for tests and dry-run mode.
// Exported fields let a test script it directly without ceremony.
type Handle struct {
	VenueName string
	Futures   bool

	mu           sync.Mutex
	book         market.BookTicker
	symbolInfo   market.SymbolInfo
	fees         market.Fees
	positionQty  float64
	positionAvg  float64
	orders       map[string]*market.Order
	bookCh       chan market.BookTicker
	orderCh      chan market.Order
	withdrawals  map[string]bool

	// FillImmediately, when true (the default), makes PlaceOrder
	// return an already-filled order at the requested price. Set to
	// false to simulate resting limit orders that a test later fills
	// via Fill().
	FillImmediately bool

	// NextInsufficientBalance, when true, makes the next PlaceOrder
	// call fail with exchange.ErrInsufficientBalance and is then reset
	// to false.
	NextInsufficientBalance bool
}

// New constructs a mock.Handle with sane defaults (1 tick = 0.01, spot,
// immediate fills).
func New(name string, futures bool) *Handle {
	return &Handle{
		VenueName:       name,
		Futures:         futures,
		orders:          make(map[string]*market.Order),
		withdrawals:     make(map[string]bool),
		bookCh:          make(chan market.BookTicker, 16),
		orderCh:         make(chan market.Order, 16),
		FillImmediately: true,
		symbolInfo: market.SymbolInfo{
			TickSize:           0.01,
			MinBaseQty:         0.0001,
			MinQuoteQty:        1,
			ContractMultiplier: 1,
		},
		fees: market.Fees{MakerRate: 0.0002, TakerRate: 0.0005},
	}
}

func (h *Handle) Name() string      { return h.VenueName }
func (h *Handle) IsFutures() bool   { return h.Futures }

func (h *Handle) Init(ctx context.Context, symbol market.Symbol) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.book.Symbol = symbol
	return nil
}

func (h *Handle) BookTickers() <-chan market.BookTicker { return h.bookCh }
func (h *Handle) OrderUpdates() <-chan market.Order     { return h.orderCh }

// SetBook updates the simulated top of book and publishes it on the
// BookTickers channel (non-blocking; drops if the buffer is full).
func (h *Handle) SetBook(bid, bidQty, ask, askQty float64) {
	h.mu.Lock()
	h.book.BidPrice, h.book.BidQty = bid, bidQty
	h.book.AskPrice, h.book.AskQty = ask, askQty
	h.book.Timestamp = time.Now()
	snap := h.book
	h.mu.Unlock()
	select {
	case h.bookCh <- snap:
	default:
	}
}

func (h *Handle) LatestBookTicker() market.BookTicker {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.book
}

// SetPositionOrBalance seeds the simulated balance/position, used to
// exercise Position Manager initialization.
func (h *Handle) SetPositionOrBalance(qty, entryPrice float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.positionQty, h.positionAvg = qty, entryPrice
}

func (h *Handle) PlaceOrder(ctx context.Context, side market.Side, qty, price float64, isMarket bool) (*market.Order, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.NextInsufficientBalance {
		h.NextInsufficientBalance = false
		return nil, exchange.ErrInsufficientBalance
	}

	status := market.StatusNew
	filled := 0.0
	if h.FillImmediately {
		status = market.StatusFilled
		filled = qty
	}
	o := &market.Order{
		ID:           uuid.New().String(),
		Symbol:       h.book.Symbol,
		Side:         side,
		Price:        price,
		RequestedQty: qty,
		FilledQty:    filled,
		Status:       status,
		Timestamp:    time.Now(),
	}
	h.orders[o.ID] = o
	return o, nil
}

// Fill advances a previously-resting order to a new filled quantity and
// publishes the update, used by tests that want to drive out-of-order
// or partial-fill scenarios explicitly.
func (h *Handle) Fill(orderID string, filledQty float64, status market.OrderStatus, ts time.Time) {
	h.mu.Lock()
	o, ok := h.orders[orderID]
	if !ok {
		h.mu.Unlock()
		return
	}
	cp := *o
	cp.FilledQty = filledQty
	cp.Status = status
	cp.Timestamp = ts
	h.orders[orderID] = &cp
	h.mu.Unlock()
	select {
	case h.orderCh <- cp:
	default:
	}
}

func (h *Handle) CancelOrder(ctx context.Context, orderID string) (*market.Order, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, ok := h.orders[orderID]
	if !ok {
		return nil, exchange.ErrOrderNotFound
	}
	if !o.Status.IsTerminal() {
		cp := *o
		cp.Status = market.StatusCancelled
		h.orders[orderID] = &cp
		o = &cp
	}
	return o, nil
}

func (h *Handle) FetchOrder(ctx context.Context, orderID string) (*market.Order, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, ok := h.orders[orderID]
	if !ok {
		return nil, exchange.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (h *Handle) GetPositionOrBalance(ctx context.Context) (float64, float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.positionQty, h.positionAvg, nil
}

func (h *Handle) GetSymbolInfo(ctx context.Context) (market.SymbolInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.symbolInfo, nil
}

func (h *Handle) GetFees(ctx context.Context) (market.Fees, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fees, nil
}

func (h *Handle) SubmitWithdrawal(ctx context.Context, asset string, qty float64, toVenue string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := uuid.New().String()
	h.withdrawals[id] = false
	return id, nil
}

// CompleteWithdrawal marks a previously submitted transfer as done,
// used by tests to drive the Transfer Manager's polling loop.
func (h *Handle) CompleteWithdrawal(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.withdrawals[id] = true
}

func (h *Handle) GetWithdrawalStatus(ctx context.Context, id string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	done, ok := h.withdrawals[id]
	if !ok {
		return false, exchange.ErrOrderNotFound
	}
	return done, nil
}

func (h *Handle) Close() error { return nil }
