// FILE: context.go
// Package coordinator implements the Arbitrage Coordinator (component
// D), the Hedge Rebalancer (component E, 4.4) and the glue that drives
// the Transfer Manager (component G) on role-flip. Follows a
// mutex/save-callback/start-stop discipline, generalized from one
// hardcoded broker to N role-keyed Position Managers over the
// exchange.Handle capability abstraction.
package coordinator

import (
	"encoding/json"

	"github.com/dasein108/cex-arbitrage-sub002/internal/config"
	"github.com/dasein108/cex-arbitrage-sub002/internal/market"
	"github.com/dasein108/cex-arbitrage-sub002/internal/position"
	"github.com/dasein108/cex-arbitrage-sub002/internal/transfer"
)

// Status is the coordinator's externally visible lifecycle state.
type Status int

const (
	StatusInactive Status = iota
	StatusActive
	StatusPaused
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusPaused:
		return "paused"
	case StatusStopped:
		return "stopped"
	default:
		return "inactive"
	}
}

// Role labels describe a leg's direction for the current cycle, not
// its venue: source accumulates, dest releases, hedge offsets.
const (
	RoleSource = "source"
	RoleDest   = "dest"
	RoleHedge  = "hedge"
)

// Context is the serializable ArbitrageContext snapshot from
// SPEC_FULL.md §3: everything needed to resume a coordinator across a
// restart without re-deriving state from the exchanges (though Start
// always reconciles against them regardless).
type Context struct {
	Symbol        market.Symbol                `json:"symbol"`
	TotalQuantity float64                      `json:"total_quantity"`
	OrderQty      float64                      `json:"order_qty"`
	CurrentRole   string                       `json:"current_role"`
	Positions     map[string]position.Data     `json:"positions"`
	LegSettings   map[string]config.LegSettings `json:"leg_settings"`
	Transfer      *transfer.Request            `json:"transfer,omitempty"`
	Status        Status                       `json:"status"`
}

// MarshalBinary/UnmarshalBinary let Context round-trip through the
// persist.Store's JSON envelope without the store needing to know its
// shape.
func (c Context) MarshalBinary() ([]byte, error) { return json.Marshal(c) }

func (c *Context) UnmarshalBinary(b []byte) error { return json.Unmarshal(b, c) }
