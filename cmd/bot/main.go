// OANDA Arbitrage Bot — detects and executes triangular currency arbitrage
// against the OANDA v3 REST API.
//
// Architecture:
//
//	main.go              — entry point: flags, config, logger, signal handling
//	engine/engine.go     — orchestrator: session → snapshot → gates → search → execute
//	engine/executor.go   — sequential per-leg cycle execution with flow invariants
//	rates/snapshot.go    — parallel quote fetch, inverse synthesis, volatility tracking
//	arb/cycles.go        — depth-bounded DFS over the effective-rate graph
//	session/session.go   — UTC market-session clock and per-session strategy knobs
//	risk/manager.go      — position sizing, loss streaks, circuit breakers
//	perf/ledger.go       — trade ledger, aggregate metrics, SQLite history, reports
//	broker/client.go     — OANDA v3 REST client with rate limiting and retry
//
// How it makes money:
//
//	The bot snapshots bid/ask quotes for every tradable pair, derives the
//	rates a taker actually receives when crossing the spread, and searches
//	for closed currency loops whose rate product beats 1 plus fees. When a
//	loop clears the session-adjusted profit threshold, it is sized under
//	risk constraints and executed as a sequence of fill-or-kill market
//	orders — or simulated, in demo mode.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"oanda-arb/internal/broker"
	"oanda-arb/internal/config"
	"oanda-arb/internal/engine"
)

func main() {
	os.Exit(run())
}

func run() int {
	demo := flag.Bool("demo", false, "simulate trades instead of executing them")
	practice := flag.Bool("practice", false, "use the practice environment instead of live")
	configPath := flag.String("config", "config.json", "path to configuration file")
	interval := flag.Int("interval", 0, "check interval in seconds (overrides config)")
	runtime := flag.Int("runtime", 0, "maximum runtime in seconds (overrides config)")
	verbose := flag.Bool("verbose", false, "enable verbose logging")
	flag.Parse()

	// Credentials may live in a local .env file.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", *configPath)
		return 1
	}
	if *interval > 0 {
		cfg.CheckInterval = *interval
	}
	if *runtime > 0 {
		cfg.MaxRuntime = *runtime
	}
	if *practice {
		cfg.PracticeMode = true
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("missing credentials", "error", err)
		return 1
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	logger.Info("OANDA arbitrage trading system",
		"mode", map[bool]string{true: "demo", false: "live"}[*demo],
		"environment", map[bool]string{true: "practice", false: "production"}[cfg.PracticeMode],
		"check_interval", cfg.CheckInterval,
		"max_runtime", cfg.MaxRuntime,
	)

	client := broker.NewClient(*cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := engine.New(ctx, *cfg, client, *demo, logger)
	if err != nil {
		logger.Error("failed to initialize trader", "error", err)
		return 1
	}

	if err := eng.Run(ctx); err != nil {
		logger.Error("trading loop failed", "error", err)
		return 1
	}
	return 0
}
