package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dasein108/cex-arbitrage-sub002/internal/alert"
	"github.com/dasein108/cex-arbitrage-sub002/internal/config"
	"github.com/dasein108/cex-arbitrage-sub002/internal/exchange"
	"github.com/dasein108/cex-arbitrage-sub002/internal/manager"
	"github.com/dasein108/cex-arbitrage-sub002/internal/market"
	"github.com/dasein108/cex-arbitrage-sub002/internal/metrics"
	"github.com/dasein108/cex-arbitrage-sub002/internal/persist"
	"github.com/dasein108/cex-arbitrage-sub002/internal/position"
	"github.com/dasein108/cex-arbitrage-sub002/internal/signal"
	"github.com/dasein108/cex-arbitrage-sub002/internal/transfer"
	"github.com/dasein108/cex-arbitrage-sub002/internal/xlog"
)

// Coordinator owns every Position Manager for one symbol and drives
// the cycle loop described in SPEC_FULL.md §4.3. It supports both the
// two-leg spot-futures configuration (roles "source", "hedge") and the
// three-leg cross-exchange configuration (roles "source", "dest",
// "hedge").
type Coordinator struct {
	cfg         *config.Config
	managers    map[string]*manager.Manager
	handles     map[string]exchange.Handle // keyed by role, for direct book-ticker reads the Manager does not expose
	transferMgr *transfer.Manager
	gate        *signal.Gate
	store       *persist.Store
	sink        alert.Sink
	log         xlog.Logger

	mu                sync.Mutex
	currentRole        string
	status             Status
	transferReq        *transfer.Request
	spreadHistorySD    []float64 // source-venue vs hedge-venue spread history
	spreadHistoryDD    []float64 // dest-venue vs hedge-venue spread history (three-leg only)
	lastHistoryUpdate  time.Time
	roundTripFees      float64
	threeLeg           bool

	transferCancel context.CancelFunc
}

// Deps bundles the constructor's collaborators.
type Deps struct {
	Config      *config.Config
	Handles     map[string]exchange.Handle // keyed by role: source, dest (optional), hedge
	Analyzer    signal.Analyzer            // optional; defaults to signal.NewRollingAnalyzer
	Store       *persist.Store
	AlertSink   alert.Sink
	Log         xlog.Logger
	SeedHistory map[string][]float64 // optional warm-start for spread history, keyed "source"/"dest"
}

// New constructs a Coordinator. It does not contact any exchange; call
// Start for that.
func New(deps Deps) (*Coordinator, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("coordinator: config is required")
	}
	sourceHandle, ok := deps.Handles[RoleSource]
	if !ok {
		return nil, fmt.Errorf("coordinator: missing %q handle", RoleSource)
	}
	hedgeHandle, ok := deps.Handles[RoleHedge]
	if !ok {
		return nil, fmt.Errorf("coordinator: missing %q handle", RoleHedge)
	}
	destHandle, threeLeg := deps.Handles[RoleDest]

	log := deps.Log
	if log == nil {
		log = xlog.Nop()
	}
	analyzer := deps.Analyzer
	if analyzer == nil {
		analyzer = signal.NewRollingAnalyzer()
	}
	sink := deps.AlertSink
	if sink == nil {
		sink = alert.NewStdoutSink(log)
	}

	c := &Coordinator{
		cfg:         deps.Config,
		managers:    make(map[string]*manager.Manager),
		gate:        signal.NewGate(analyzer),
		store:       deps.Store,
		sink:        sink,
		log:         log,
		currentRole: RoleSource,
		status:      StatusInactive,
		threeLeg:    threeLeg,
	}

	roleHandles := map[string]exchange.Handle{RoleSource: sourceHandle, RoleHedge: hedgeHandle}
	if threeLeg {
		roleHandles[RoleDest] = destHandle
	}

	venueHandles := make(map[string]exchange.Handle, len(roleHandles))
	for role, h := range roleHandles {
		c.managers[role] = manager.New(role, h, &position.Data{}, c.saveCallback, c.onOrderFilled, log)
		venueHandles[h.Name()] = h
	}
	c.handles = roleHandles
	c.transferMgr = transfer.New(venueHandles)

	if seed, ok := deps.SeedHistory[RoleSource]; ok {
		c.spreadHistorySD = append([]float64(nil), seed...)
	}
	if seed, ok := deps.SeedHistory[RoleDest]; ok {
		c.spreadHistoryDD = append([]float64(nil), seed...)
	}
	return c, nil
}

// saveCallback is the explicit, closure-based persistence hook handed
// to every Position Manager at construction (§9: avoid mutable field
// injection post-hoc). It is serialized through the coordinator's own
// goroutine, so no re-entrant saves occur even though each manager
// could in principle call it independently — in practice only the one
// coordinator goroutine ever calls Manager methods.
func (c *Coordinator) saveCallback(role string, snapshot position.Data) {
	if c.store == nil {
		return
	}
	ctx := c.snapshotContextLocked()
	if err := c.store.Save(ctx); err != nil {
		c.log.Error("persist snapshot after %s update: %v", role, err)
	}
}

// onOrderFilled records metrics for every fill that actually changed a
// leg's position.
func (c *Coordinator) onOrderFilled(role string, order market.Order, change position.Change) {
	metrics.IncOrder(role, order.Side.String())
	if change.HasPnl {
		c.log.Info("[%s] realized pnl this fill: gross=%.4f net=%.4f", role, change.RealizedPnl, change.RealizedPnlNet)
	}
}

func (c *Coordinator) snapshotContextLocked() Context {
	positions := make(map[string]position.Data, len(c.managers))
	for role, m := range c.managers {
		positions[role] = *m.Data()
	}
	legSettings := make(map[string]config.LegSettings, len(c.cfg.Legs))
	for k, v := range c.cfg.Legs {
		legSettings[k] = v
	}
	return Context{
		Symbol:        c.cfg.Symbol(),
		TotalQuantity: c.cfg.TotalQuantity,
		OrderQty:      c.cfg.OrderQty,
		CurrentRole:   c.currentRole,
		Positions:     positions,
		LegSettings:   legSettings,
		Transfer:      c.transferReq,
		Status:        c.status,
	}
}

// Start runs the coordinator's start sequence (§4.3): parallel
// per-venue initialization, round-trip-fee computation, and restoring
// any persisted context (including an in-flight transfer). It does not
// start the Step loop; callers drive that (cmd/arbengine's runLoop
// calls Step on a ticker).
func (c *Coordinator) Start(ctx context.Context) error {
	var restored Context
	haveRestored := false
	if c.store != nil {
		ok, err := c.store.Load(&restored)
		if err != nil {
			c.log.Warn("failed to load persisted context, starting fresh: %v", err)
		} else if ok {
			haveRestored = true
		}
	}

	if haveRestored {
		for role, snap := range restored.Positions {
			if m, present := c.managers[role]; present {
				*m.Data() = snap
			}
		}
		c.transferReq = restored.Transfer
	}

	symbol := c.cfg.Symbol()
	errs := runParallel(c.initFns(ctx, symbol)...)
	for _, err := range errs {
		if err != nil {
			return fmt.Errorf("coordinator: start initialization failed: %w", err)
		}
	}

	if haveRestored {
		c.currentRole = restored.CurrentRole
	} else {
		c.currentRole = c.deriveInitialRole()
	}

	c.roundTripFees = c.computeRoundTripFees(ctx)

	if c.transferReq != nil && c.transferReq.InProgress {
		c.log.Info("resuming in-flight transfer of %s qty=%.8f from %s to %s",
			c.transferReq.Asset, c.transferReq.Qty, c.transferReq.FromVenue, c.transferReq.ToVenue)
	}

	c.status = StatusActive

	monitorCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.transferCancel = cancel
	c.mu.Unlock()
	go c.runTransferMonitor(monitorCtx)

	return nil
}

// transferMonitorInterval is how often runTransferMonitor polls an
// in-flight transfer independently of the caller's Step cadence, per
// §4.5/§5's background-monitor requirement.
const transferMonitorInterval = 30 * time.Second

// runTransferMonitor periodically polls an in-flight transfer for
// completion, on top of (not instead of) the per-Step poll Step itself
// performs, so a transfer still gets timely completion handling even if
// the host schedules Step cycles far apart. Stopped by Cleanup via
// transferCancel.
func (c *Coordinator) runTransferMonitor(ctx context.Context) {
	ticker := time.NewTicker(transferMonitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.pollTransfer(ctx)
		}
	}
}

func (c *Coordinator) initFns(ctx context.Context, symbol market.Symbol) []func() error {
	fns := make([]func() error, 0, len(c.managers))
	for role, m := range c.managers {
		role, m := role, m
		target := c.cfg.TotalQuantity
		if role == RoleDest {
			target = 0 // dest starts empty; it is armed when source first fulfills
		}
		if role == RoleHedge {
			target = 0 // hedge has no accumulation target; it only tracks rebalance qty
		}
		fns = append(fns, func() error { return m.Init(ctx, symbol, target) })
	}
	return fns
}

// deriveInitialRole defaults to source when both legs hold equal
// (including zero) inventory, per §4.3's tie-break.
func (c *Coordinator) deriveInitialRole() string {
	source := c.managers[RoleSource].Data()
	if !c.threeLeg {
		return RoleSource
	}
	dest := c.managers[RoleDest].Data()
	if dest.Qty > source.Qty {
		return RoleDest
	}
	return RoleSource
}

func (c *Coordinator) computeRoundTripFees(ctx context.Context) float64 {
	fees := make([]float64, 0, len(c.managers))
	for _, m := range c.managers {
		fees = append(fees, m.Fees().TakerRate)
	}
	return signal.RoundTripFees(fees)
}

// Pause cancels every manager's active order in parallel and marks the
// coordinator paused; Step is a no-op until Start is called again,
// which is the only method that sets the status back to active.
func (c *Coordinator) Pause(ctx context.Context) {
	c.cancelAllOrders(ctx)
	c.mu.Lock()
	c.status = StatusPaused
	c.mu.Unlock()
}

// Cancel cancels every manager's active order in parallel without
// changing the active/paused/stopped status.
func (c *Coordinator) Cancel(ctx context.Context) {
	c.cancelAllOrders(ctx)
}

// Stop cancels every manager's active order in parallel and marks the
// coordinator stopped.
func (c *Coordinator) Stop(ctx context.Context) {
	c.cancelAllOrders(ctx)
	c.mu.Lock()
	c.status = StatusStopped
	c.mu.Unlock()
}

func (c *Coordinator) cancelAllOrders(ctx context.Context) {
	fns := make([]func() error, 0, len(c.managers))
	for _, m := range c.managers {
		m := m
		fns = append(fns, func() error { m.CancelOrder(ctx); return nil })
	}
	runParallel(fns...)
}

// Cleanup stops the background transfer monitor goroutine started by
// Start and closes every exchange handle.
func (c *Coordinator) Cleanup() {
	c.mu.Lock()
	cancel := c.transferCancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	for role, h := range c.handles {
		if err := h.Close(); err != nil {
			c.log.Warn("[%s] close handle: %v", role, err)
		}
	}
}

// Status returns the coordinator's current lifecycle status.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// runParallel dispatches every fn concurrently and waits for all to
// finish, using a plain goroutine-plus-WaitGroup parallel-join idiom.
func runParallel(fns ...func() error) []error {
	errs := make([]error, len(fns))
	var wg sync.WaitGroup
	wg.Add(len(fns))
	for i, fn := range fns {
		i, fn := i, fn
		go func() {
			defer wg.Done()
			errs[i] = fn()
		}()
	}
	wg.Wait()
	return errs
}
