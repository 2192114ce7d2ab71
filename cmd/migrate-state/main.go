// Program migrate-state upgrades a legacy flat per-leg position snapshot
// (the schema used before positions were keyed by role) into the
// current coordinator.Context envelope persist.Store reads.
//
// Usage:
//
//	go run ./cmd/migrate-state -in legacy_state.json -out state.json
//	go run ./cmd/migrate-state -in legacy_state.json -inplace
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dasein108/cex-arbitrage-sub002/internal/coordinator"
	"github.com/dasein108/cex-arbitrage-sub002/internal/market"
	"github.com/dasein108/cex-arbitrage-sub002/internal/position"
)

// legacyState is the pre-role-keyed schema: one flat position plus a
// single symbol/target, with no per-role breakdown and no leg settings.
type legacyState struct {
	SymbolBase    string          `json:"symbol_base"`
	SymbolQuote   string          `json:"symbol_quote"`
	TotalQuantity float64         `json:"total_quantity"`
	OrderQty      float64         `json:"order_qty"`
	Qty           float64         `json:"qty"`
	Price         float64         `json:"price"`
	Side          string          `json:"side"`
	TargetQty     float64         `json:"target_qty"`
}

func main() {
	in := flag.String("in", "", "path to legacy state JSON")
	out := flag.String("out", "", "path to write migrated state JSON (ignored if -inplace)")
	inplace := flag.Bool("inplace", false, "overwrite input file in place (creates .bak)")
	role := flag.String("role", coordinator.RoleSource, "role the legacy flat position belongs to")
	flag.Parse()

	if *in == "" {
		exitf("missing -in <file>")
	}
	if !*inplace && *out == "" {
		exitf("either specify -out <file> or use -inplace")
	}

	raw, err := os.ReadFile(*in)
	if err != nil {
		exitf("read input: %v", err)
	}

	var legacy legacyState
	if err := json.Unmarshal(raw, &legacy); err != nil {
		exitf("parse legacy JSON: %v", err)
	}

	side := market.None
	switch legacy.Side {
	case "BUY":
		side = market.Buy
	case "SELL":
		side = market.Sell
	}

	ctx := coordinator.Context{
		Symbol:        market.Symbol{Base: legacy.SymbolBase, Quote: legacy.SymbolQuote},
		TotalQuantity: legacy.TotalQuantity,
		OrderQty:      legacy.OrderQty,
		CurrentRole:   *role,
		Positions: map[string]position.Data{
			*role: {
				Qty:       legacy.Qty,
				Price:     legacy.Price,
				Side:      side,
				TargetQty: legacy.TargetQty,
			},
		},
		Status: coordinator.StatusInactive,
	}

	outBytes, err := json.MarshalIndent(ctx, "", "  ")
	if err != nil {
		exitf("marshal migrated JSON: %v", err)
	}

	if *inplace {
		backup := *in + ".bak"
		if err := copyFile(*in, backup); err != nil {
			exitf("create backup: %v", err)
		}
		if err := os.WriteFile(*in, outBytes, 0o644); err != nil {
			exitf("write migrated state: %v", err)
		}
		fmt.Printf("Migrated in-place. Backup: %s\n", backup)
		return
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		exitf("ensure out dir: %v", err)
	}
	if err := os.WriteFile(*out, outBytes, 0o644); err != nil {
		exitf("write out: %v", err)
	}
	fmt.Printf("Migrated state written to: %s\n", *out)
}

func copyFile(src, dst string) error {
	b, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, b, 0o644)
}

func exitf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, "migrate-state: "+format+"\n", a...)
	os.Exit(1)
}
