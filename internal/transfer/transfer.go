// Package transfer implements the Transfer Manager (component G): the
// state machine for a single in-flight inter-venue asset transfer.
// Uses context-scoped calls, wrapped errors, and no panics throughout.
package transfer

import (
	"context"
	"fmt"

	"github.com/dasein108/cex-arbitrage-sub002/internal/exchange"
)

// Request tracks one inter-venue transfer of inventory from start to
// completion or failure.
type Request struct {
	Asset       string
	FromVenue   string
	ToVenue     string
	Qty         float64
	BuyPrice    float64 // entry price, carried across the transfer for PnL continuity
	InProgress  bool
	Completed   bool
	VenueTransferID string
}

// Manager submits and polls withdrawals across a set of venues keyed
// by name. It holds no position state of its own; the coordinator
// drives role flips and position reseeding off the Request it returns.
type Manager struct {
	handles map[string]exchange.Handle
}

// New constructs a transfer Manager over the given venue handles,
// keyed by exchange.Handle.Name().
func New(handles map[string]exchange.Handle) *Manager {
	return &Manager{handles: handles}
}

// TransferAsset submits a withdrawal on the source venue and returns a
// Request carrying the venue-assigned transfer id.
func (m *Manager) TransferAsset(ctx context.Context, asset, fromVenue, toVenue string, qty, buyPrice float64) (*Request, error) {
	h, ok := m.handles[fromVenue]
	if !ok {
		return nil, fmt.Errorf("transfer: unknown venue %q", fromVenue)
	}
	id, err := h.SubmitWithdrawal(ctx, asset, qty, toVenue)
	if err != nil {
		return nil, fmt.Errorf("transfer: submit withdrawal on %s: %w", fromVenue, err)
	}
	return &Request{
		Asset:           asset,
		FromVenue:       fromVenue,
		ToVenue:         toVenue,
		Qty:             qty,
		BuyPrice:        buyPrice,
		InProgress:      true,
		VenueTransferID: id,
	}, nil
}

// UpdateTransferRequest polls the source venue for completion and
// mutates InProgress/Completed in place. A poll error is transient and
// leaves the request unchanged; the caller decides, after repeated
// failures, whether to clear the transfer under a "log and clear,
// operator must reconcile" failure policy.
func (m *Manager) UpdateTransferRequest(ctx context.Context, req *Request) error {
	if req == nil || req.Completed {
		return nil
	}
	h, ok := m.handles[req.FromVenue]
	if !ok {
		return fmt.Errorf("transfer: unknown venue %q", req.FromVenue)
	}
	done, err := h.GetWithdrawalStatus(ctx, req.VenueTransferID)
	if err != nil {
		return fmt.Errorf("transfer: poll status on %s: %w", req.FromVenue, err)
	}
	if done {
		req.Completed = true
		req.InProgress = false
	}
	return nil
}
