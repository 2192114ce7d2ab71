// Program arbengine runs the delta-neutral cross-exchange arbitrage
// coordinator as a standalone service.
//
// Boot sequence:
//  1. Load config from the path given by -config (YAML or JSON).
//  2. Wire one exchange.Handle per configured leg (internal/venue/wsbook):
//     order/balance/transfer simulation stays in-memory, while a leg with
//     a configured book_ticker_ws streams its live book over
//     internal/wsfeed. A full real exchange client remains a
//     caller-supplied concern (see internal/exchange.Handle).
//  3. Construct the coordinator and call Start.
//  4. Serve /healthz and /metrics on cfg.Port.
//  5. Drive Step on a ticker until SIGINT/SIGTERM, then Cleanup.
//
// Example:
//
//	go run ./cmd/arbengine -config ./config.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dasein108/cex-arbitrage-sub002/internal/config"
	"github.com/dasein108/cex-arbitrage-sub002/internal/coordinator"
	"github.com/dasein108/cex-arbitrage-sub002/internal/exchange"
	"github.com/dasein108/cex-arbitrage-sub002/internal/persist"
	"github.com/dasein108/cex-arbitrage-sub002/internal/venue/wsbook"
	"github.com/dasein108/cex-arbitrage-sub002/internal/xlog"
)

func main() {
	var configPath string
	var cycleSec int
	flag.StringVar(&configPath, "config", "./config.yaml", "Path to engine config (YAML or JSON)")
	flag.IntVar(&cycleSec, "cycle", 2, "Seconds between coordinator Step cycles")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := persist.EnsureMounted(cfg.StateFile, cfg.DryRun); err != nil {
		log.Fatalf("persist: %v", err)
	}

	logger := xlog.New(cfg.LogTrace)

	handles, err := wireHandles(cfg, logger)
	if err != nil {
		log.Fatalf("wire handles: %v", err)
	}

	coord, err := coordinator.New(coordinator.Deps{
		Config:  cfg,
		Handles: handles,
		Store:   persist.NewStore(cfg.StateFile),
		Log:     logger,
	})
	if err != nil {
		log.Fatalf("coordinator: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := coord.Start(ctx); err != nil {
		log.Fatalf("coordinator start: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: mux}
	go func() {
		log.Printf("serving metrics on :%d/metrics", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	runLoop(ctx, coord, time.Duration(cycleSec)*time.Second, logger)

	coord.Stop(context.Background())
	coord.Cleanup()

	shutdownCtx, c := context.WithTimeout(context.Background(), 2*time.Second)
	defer c()
	_ = srv.Shutdown(shutdownCtx)
}

func runLoop(ctx context.Context, coord *coordinator.Coordinator, interval time.Duration, log xlog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := coord.Step(ctx); err != nil {
				log.Error("step: %v", err)
			}
		}
	}
}

// wireHandles builds one exchange.Handle per configured leg. A leg
// with BookTickerWS set streams a live book ticker over wsbook (backed
// by wsfeed's reconnecting WebSocket subscriber) while still using the
// in-memory mock for order/balance/transfer simulation; a leg without
// one runs fully in-memory, which is enough to run the coordinator
// end-to-end in dry-run mode.
func wireHandles(cfg *config.Config, log xlog.Logger) (map[string]exchange.Handle, error) {
	handles := make(map[string]exchange.Handle, len(cfg.Legs))
	for role, leg := range cfg.Legs {
		if leg.Venue == "" {
			return nil, fmt.Errorf("leg %q: venue is required", role)
		}
		handles[role] = wsbook.New(leg.Venue, leg.IsFutures, leg.BookTickerWS, log)
	}
	return handles, nil
}
