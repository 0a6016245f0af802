// Package engine is the central orchestrator of the arbitrage bot.
//
// It wires together all subsystems and drives the tick loop:
//
//  1. Session clock refreshes the profit threshold and poll cadence.
//  2. Rates builder snapshots quotes for the whole catalog in parallel.
//  3. Risk manager gates the tick (circuit breakers + session preference).
//  4. Cycle finder enumerates profitable cycles over the monitored currencies.
//  5. The best cycle is sized and executed leg by leg (or simulated in demo
//     mode), and the outcome feeds the performance ledger and loss streak.
//
// A single foreground loop owns all state transitions; the only parallelism
// is inside the snapshot fan-out. Cancellation stops the loop at the next
// suspension point, and the ledger is flushed on the way out.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"oanda-arb/internal/arb"
	"oanda-arb/internal/config"
	"oanda-arb/internal/perf"
	"oanda-arb/internal/rates"
	"oanda-arb/internal/risk"
	"oanda-arb/internal/session"
	"oanda-arb/pkg/types"
)

// Broker is the brokerage capability surface the engine drives.
type Broker interface {
	GetAccountBalance(ctx context.Context) float64
	GetInstruments(ctx context.Context) ([]types.Instrument, error)
	GetQuote(ctx context.Context, pair types.Pair) (types.Quote, error)
	PlaceMarketOrder(ctx context.Context, pair types.Pair, units float64) (types.Fill, error)
}

// Engine owns the trading loop and the lifecycle of every component.
type Engine struct {
	cfg     config.Config
	broker  Broker
	rates   *rates.Builder
	riskMgr *risk.Manager
	ledger  *perf.Ledger
	history *perf.History // nil when the durable sink is unavailable
	logger  *slog.Logger

	demo      bool
	monitor   []types.Currency
	pairs     []types.Pair
	threshold float64          // effective min profit, session-adjusted each tick
	now       func() time.Time // injectable for session-classification tests

	// execMu serializes the execution phase: at most one cycle in flight
	// system-wide. Snapshot and search do not hold it.
	execMu sync.Mutex
}

// New fetches the instrument catalog once, freezes the tradable universe,
// and wires all components. A failed catalog fetch is fatal: without it
// there is nothing to trade.
func New(ctx context.Context, cfg config.Config, broker Broker, demo bool, logger *slog.Logger) (*Engine, error) {
	instruments, err := broker.GetInstruments(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch instrument catalog: %w", err)
	}

	pairs := make([]types.Pair, 0, len(instruments))
	for _, in := range instruments {
		pair, err := types.ParsePair(in.Name)
		if err != nil {
			logger.Warn("skipping unparseable instrument", "name", in.Name)
			continue
		}
		pairs = append(pairs, pair)
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("instrument catalog has no tradable currency pairs")
	}

	var history *perf.History
	if cfg.DataDir != "" {
		history, err = perf.OpenHistory(filepath.Join(cfg.DataDir, "trades.db"))
		if err != nil {
			logger.Warn("trade history unavailable, continuing without it", "error", err)
			history = nil
		}
	}

	ledger := perf.NewLedger(logger, history)
	riskMgr := risk.NewManager(ctx, cfg, broker, ledger, logger)

	monitor := make([]types.Currency, 0, len(cfg.CurrenciesToMonitor))
	for _, c := range cfg.CurrenciesToMonitor {
		monitor = append(monitor, types.Currency(c))
	}

	e := &Engine{
		cfg:       cfg,
		broker:    broker,
		rates:     rates.NewBuilder(broker, pairs, cfg.VolatilityWindow, logger),
		riskMgr:   riskMgr,
		ledger:    ledger,
		history:   history,
		logger:    logger.With("component", "engine"),
		demo:      demo,
		monitor:   monitor,
		pairs:     pairs,
		threshold: cfg.MinProfitThreshold,
		now:       time.Now,
	}

	e.logger.Info("trader initialized",
		"pairs", len(pairs),
		"monitored_currencies", len(monitor),
		"demo", demo,
	)
	return e, nil
}

// Run drives the tick loop until ctx is cancelled or the configured maximum
// runtime elapses. The ledger is flushed before returning.
func (e *Engine) Run(ctx context.Context) error {
	start := time.Now()
	e.logger.Info("arbitrage loop started",
		"check_interval", e.cfg.CheckInterval,
		"max_runtime", e.cfg.MaxRuntime,
		"mode", modeLabel(e.demo),
	)
	defer e.flush()

	for ctx.Err() == nil {
		if e.cfg.MaxRuntime > 0 && time.Since(start) >= time.Duration(e.cfg.MaxRuntime)*time.Second {
			e.logger.Info("maximum runtime reached, stopping", "runtime", e.cfg.MaxRuntime)
			break
		}

		wait := e.tick(ctx)
		if !sleep(ctx, wait) {
			break
		}
	}

	if ctx.Err() != nil {
		e.logger.Info("arbitrage loop stopped by signal")
	}
	return nil
}

// tick runs one full pass of the pipeline and returns how long to sleep.
func (e *Engine) tick(ctx context.Context) time.Duration {
	sess := session.Classify(e.now())
	params := session.ParamsFor(sess, e.cfg.MinProfitThreshold)
	e.threshold = params.ProfitThreshold
	e.logger.Debug("strategy adjusted for session",
		"session", sess,
		"profit_threshold_pct", e.threshold*100,
		"interval", params.CheckInterval,
	)

	book, eff := e.rates.Snapshot(ctx)
	if ctx.Err() != nil {
		return 0
	}

	if !e.riskMgr.ShouldTradeNow(ctx, sess) {
		e.logger.Info("trading conditions not favorable, waiting", "session", sess)
		return 2 * e.baseInterval()
	}

	cycles := arb.FindAllCycles(eff, e.monitor, arb.DefaultMaxCycleLength, e.threshold)
	if len(cycles) == 0 {
		e.logger.Debug("no profitable cycles found", "edges", len(eff))
		e.logAnalytics(ctx, book)
		return params.CheckInterval
	}

	best := cycles[0]
	e.logger.Info("arbitrage opportunity found",
		"path", best.Path(),
		"profit_pct", best.EffectiveProfit*100,
		"candidates", len(cycles),
	)
	e.riskMgr.NoteOpportunity()

	size := e.riskMgr.PositionSize(ctx, best.EffectiveProfit*100, sess)

	e.execMu.Lock()
	defer e.execMu.Unlock()

	if e.demo {
		e.simulate(best)
		return 2 * e.baseInterval()
	}

	result, err := e.executeCycle(ctx, best, size)
	if err != nil {
		e.logger.Warn("trade failed", "path", best.Path(), "error", err)
	} else {
		e.logger.Info("trade complete",
			"profit", result.Profit,
			"profit_pct", result.ProfitPct*100,
		)
		e.analyzePerformance()
	}
	return 2 * e.baseInterval()
}

// analyzePerformance adapts the profit threshold to recent results: raise
// it while losing, lower it while winning cleanly. The session adjustment
// re-derives the threshold from config next tick, so this nudge only
// covers the remainder of the current cadence window.
func (e *Engine) analyzePerformance() {
	recent := e.ledger.Recent(5)
	if len(recent) == 0 {
		return
	}

	var profitSum, slippageSum float64
	for _, tr := range recent {
		profitSum += tr.ActualProfit
		slippageSum += tr.Slippage
	}
	avgProfit := profitSum / float64(len(recent))
	avgSlippage := slippageSum / float64(len(recent))

	e.logger.Info("performance analysis",
		"avg_profit_pct", avgProfit*100,
		"avg_slippage_pct", avgSlippage*100,
	)

	switch {
	case avgProfit < 0:
		e.threshold = min(0.005, e.threshold*1.2)
		e.logger.Info("raising profit threshold", "threshold_pct", e.threshold*100)
	case avgProfit > 0.002 && avgSlippage < 0.001:
		e.threshold = max(0.0008, e.threshold*0.9)
		e.logger.Info("lowering profit threshold", "threshold_pct", e.threshold*100)
	}
}

// logAnalytics surfaces advisory market diagnostics, debug level only:
// mid-price scans, spread quality, and the most volatile pair.
func (e *Engine) logAnalytics(ctx context.Context, book types.RateBook) {
	if !e.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}

	wide := 0
	for _, q := range book {
		if q.Spread > e.cfg.MaxSpreadThreshold {
			wide++
		}
	}
	if wide > 0 {
		e.logger.Debug("pairs quoting wide",
			"count", wide,
			"max_spread", e.cfg.MaxSpreadThreshold,
		)
	}

	var volPair types.Pair
	var volMax float64
	for _, p := range e.pairs {
		if v, ok := e.rates.Volatility(p); ok && v > volMax {
			volMax, volPair = v, p
		}
	}
	if volMax > 0 {
		e.logger.Debug("most volatile pair",
			"instrument", volPair.Instrument(),
			"volatility", volMax,
		)
	}
	if opps := arb.CrossRateOpportunities(book); len(opps) > 0 {
		top := opps[0]
		e.logger.Debug("cross-rate discrepancies",
			"count", len(opps),
			"best", fmt.Sprintf("%s->%s->%s", top.Base, top.Via, top.Quote),
			"discrepancy_pct", top.Discrepancy*100,
		)
	}
	if tris := arb.TriangularOpportunities(book, e.threshold); len(tris) > 0 {
		e.logger.Debug("mid-price triangles above threshold", "count", len(tris))
	}
}

// flush writes the session report and closes the durable sink.
func (e *Engine) flush() {
	metrics := e.ledger.Metrics()
	finalBalance := e.broker.GetAccountBalance(context.Background())
	e.logger.Info("trading session complete",
		"final_balance", finalBalance,
		"total_trades", metrics.TotalTrades,
		"win_rate", metrics.WinRate,
		"total_profit_pct", metrics.TotalProfit*100,
	)

	if path, err := perf.WriteReport(e.cfg.DataDir, metrics, e.ledger.All(), e.ledger.Start()); err != nil {
		e.logger.Warn("failed to write performance report", "error", err)
	} else {
		e.logger.Info("performance report saved", "path", path)
	}

	if e.history != nil {
		if err := e.history.Close(); err != nil {
			e.logger.Warn("failed to close trade history", "error", err)
		}
	}
}

// baseInterval is the configured cadence used for post-trade and
// unfavorable-condition back-off.
func (e *Engine) baseInterval() time.Duration {
	return time.Duration(e.cfg.CheckInterval) * time.Second
}

// sleep waits for d or until ctx is cancelled; false means cancelled.
func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func modeLabel(demo bool) string {
	if demo {
		return "demo"
	}
	return "live"
}
