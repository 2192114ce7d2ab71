// FILE: config.go
// Package config – runtime configuration for the arbitrage engine.
//
// Nested per-leg settings (venue, tick tolerance, tick offset,
// use-market) are loaded from a YAML/JSON file via spf13/viper, which
// 0xtitan6-polymarket-mm and thrasher-corp-gocryptotrader both lean on
// for exactly this kind of nested strategy configuration — a flat
// env-var-only config cannot express a map of per-leg settings
// without reinventing a delimiter convention. Scalar process knobs
// (port, state file, trace logging) keep a getEnv*-helper
// override-on-top-of-default convention, so an operator can still tune
// a single value via the shell without touching the config file.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/dasein108/cex-arbitrage-sub002/internal/market"
)

// LegSettings is the per-leg configuration named in SPEC_FULL.md §6:
// venue, tick tolerance before re-peg, tick offset from top, and
// whether the leg trades at market instead of resting limit orders.
type LegSettings struct {
	Venue         string  `mapstructure:"venue"`
	TickTolerance int     `mapstructure:"tick_tolerance"`
	TickOffset    int     `mapstructure:"tick_offset"`
	UseMarket     bool    `mapstructure:"use_market"`
	IsFutures     bool    `mapstructure:"is_futures"`
	TrailPct      float64 `mapstructure:"trail_pct"`

	// BookTickerWS, if set, is a WebSocket URL streaming this leg's
	// public book-ticker feed; the leg's handle consumes it directly
	// instead of relying on a locally seeded book. Left empty, the leg
	// runs fully in-memory (dry-run/test mode).
	BookTickerWS string `mapstructure:"book_ticker_ws"`
}

// Config is the fully resolved runtime configuration for one
// arbitrage-engine instance.
type Config struct {
	SymbolBase  string `mapstructure:"symbol_base"`
	SymbolQuote string `mapstructure:"symbol_quote"`

	TotalQuantity       float64 `mapstructure:"total_quantity"`
	OrderQty            float64 `mapstructure:"order_qty"`
	MinProfitMargin     float64 `mapstructure:"min_profit_margin"`
	MaxAcceptableSpread float64 `mapstructure:"max_acceptable_spread"`

	// Legs is keyed by role: "source", "dest", and (for the three-leg
	// configuration) "hedge". The two-leg spot-futures configuration
	// uses only "source" (spot) and "hedge" (futures).
	Legs map[string]LegSettings `mapstructure:"legs"`

	HistoryWindow int `mapstructure:"history_window"`

	Port      int    `mapstructure:"port"`
	StateFile string `mapstructure:"state_file"`
	DryRun    bool   `mapstructure:"dry_run"`
	LogTrace  bool   `mapstructure:"log_trace"`

	TransferPollIntervalSec int `mapstructure:"transfer_poll_interval_sec"`
	SpreadHistoryCadenceMin int `mapstructure:"spread_history_cadence_min"`
}

// Symbol returns the configured trading pair as a market.Symbol.
func (c Config) Symbol() market.Symbol {
	return market.Symbol{Base: c.SymbolBase, Quote: c.SymbolQuote}
}

func defaults() Config {
	return Config{
		MinProfitMargin:         0.001, // 0.1%
		MaxAcceptableSpread:     0.002, // 0.2%
		HistoryWindow:           500,
		Port:                    9090,
		StateFile:               "./arbengine_state.json",
		TransferPollIntervalSec: 30,
		SpreadHistoryCadenceMin: 5,
	}
}

// Load reads path (YAML or JSON, inferred by viper from its
// extension) into a Config seeded with defaults, then applies
// environment-variable overrides for the scalar, operator-tuned
// fields.
func Load(path string) (*Config, error) {
	cfg := defaults()

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)

	if cfg.SymbolBase == "" || cfg.SymbolQuote == "" {
		return nil, fmt.Errorf("config: symbol_base/symbol_quote are required")
	}
	if len(cfg.Legs) == 0 {
		return nil, fmt.Errorf("config: at least one leg must be configured")
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.Port = getEnvInt("PORT", cfg.Port)
	cfg.StateFile = getEnv("STATE_FILE", cfg.StateFile)
	cfg.DryRun = getEnvBool("DRY_RUN", cfg.DryRun)
	cfg.LogTrace = getEnvBool("LOG_TRACE", cfg.LogTrace)
	cfg.MinProfitMargin = getEnvFloat("MIN_PROFIT_MARGIN", cfg.MinProfitMargin)
	cfg.MaxAcceptableSpread = getEnvFloat("MAX_ACCEPTABLE_SPREAD", cfg.MaxAcceptableSpread)
	cfg.TotalQuantity = getEnvFloat("TOTAL_QUANTITY", cfg.TotalQuantity)
	cfg.OrderQty = getEnvFloat("ORDER_QTY", cfg.OrderQty)
}
