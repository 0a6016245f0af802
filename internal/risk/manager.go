// Package risk sizes positions and enforces the safety circuit breakers.
//
// The manager owns the loss-streak state and the frozen starting balance,
// and evaluates three gates before any candidate trade:
//
//   - Consecutive-loss gate: stop after too many losses in a row
//   - Daily-loss gate:       stop once drawdown from the starting balance
//     exceeds the configured fraction
//   - Slippage gate:         stop when recent fills consistently execute
//     far from expectation
//
// A tripped breaker suppresses trading for the tick without terminating the
// process. On top of the breakers, ShouldTradeNow layers session
// preferences: illiquid sessions only trade while opportunities are fresh.
package risk

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"oanda-arb/internal/config"
	"oanda-arb/internal/session"
	"oanda-arb/pkg/types"
)

const (
	// minPositionSize is the floor on any computed position.
	minPositionSize = 100

	// maxPositionFraction caps any position at this share of the account.
	maxPositionFraction = 0.1

	// slippageWindow and slippageLimit define the slippage gate: the mean
	// slippage of the last slippageWindow trades must stay at or below the
	// limit. With fewer trades on record the gate passes.
	slippageWindow = 3
	slippageLimit  = 0.003

	// opportunityFreshness is how recently an opportunity must have been
	// seen for illiquid-session trading to proceed.
	opportunityFreshness = 300 * time.Second

	smallAccountMax  = 1_000
	mediumAccountMax = 10_000
)

// BalanceSource reads the current account balance, best-effort.
type BalanceSource interface {
	GetAccountBalance(ctx context.Context) float64
}

// TradeHistory exposes the recent trade records the slippage gate reads.
type TradeHistory interface {
	Recent(n int) []types.TradeRecord
}

// Manager holds risk state for one trading session. The control loop is the
// only writer; the mutex covers reads from reporting paths.
type Manager struct {
	cfg     config.Config
	balance BalanceSource
	history TradeHistory
	logger  *slog.Logger

	mu                sync.Mutex
	startingBalance   float64 // captured at construction, never mutated
	dailyLossLimit    float64
	consecutiveLosses int
	lastOpportunity   time.Time
}

// NewManager captures the starting balance and derives the daily loss limit.
func NewManager(ctx context.Context, cfg config.Config, balance BalanceSource, history TradeHistory, logger *slog.Logger) *Manager {
	starting := balance.GetAccountBalance(ctx)
	m := &Manager{
		cfg:             cfg,
		balance:         balance,
		history:         history,
		logger:          logger.With("component", "risk"),
		startingBalance: starting,
		dailyLossLimit:  starting * cfg.DailyLossLimitPct,
	}
	m.logger.Info("risk manager initialized",
		"starting_balance", starting,
		"daily_loss_limit", m.dailyLossLimit,
		"max_consecutive_losses", cfg.MaxConsecutiveLosses,
	)
	return m
}

// PositionSize computes the notional for a candidate cycle, in the cycle's
// starting currency. cycleQuality is the cycle's effective profit scaled by
// the caller (×100); it is scaled by a further ×10 here before clamping.
func (m *Manager) PositionSize(ctx context.Context, cycleQuality float64, sess session.Session) float64 {
	balance := m.balance.GetAccountBalance(ctx)

	var tier float64
	switch {
	case balance < smallAccountMax:
		tier = m.cfg.RiskPerTrade.SmallAccount
	case balance < mediumAccountMax:
		tier = m.cfg.RiskPerTrade.MediumAccount
	default:
		tier = m.cfg.RiskPerTrade.LargeAccount
	}

	sessionFactor := m.cfg.SessionMultipliers.For(string(sess))

	quality := cycleQuality * 10
	if quality < 0.5 {
		quality = 0.5
	} else if quality > 2.0 {
		quality = 2.0
	}

	m.mu.Lock()
	confidence := 1.0 - 0.2*float64(m.consecutiveLosses)
	m.mu.Unlock()
	if confidence < 0.5 {
		confidence = 0.5
	}

	size := balance * tier * sessionFactor * quality * confidence
	if size < minPositionSize {
		size = minPositionSize
	}
	if hardCap := balance * maxPositionFraction; size > hardCap {
		size = hardCap
	}
	return size
}

// CircuitBreakersOK evaluates the safety gates in order; the first tripped
// gate short-circuits to false.
func (m *Manager) CircuitBreakersOK(ctx context.Context) bool {
	m.mu.Lock()
	losses := m.consecutiveLosses
	m.mu.Unlock()

	if losses >= m.cfg.MaxConsecutiveLosses {
		m.logger.Warn("circuit breaker: consecutive losses", "losses", losses)
		return false
	}

	current := m.balance.GetAccountBalance(ctx)
	if dailyLoss := m.startingBalance - current; dailyLoss > m.dailyLossLimit {
		m.logger.Warn("circuit breaker: daily loss limit exceeded",
			"loss", dailyLoss, "limit", m.dailyLossLimit)
		return false
	}

	recent := m.history.Recent(slippageWindow)
	if len(recent) >= slippageWindow {
		var sum float64
		for _, tr := range recent {
			sum += tr.Slippage
		}
		// Compare the sum with limit·n rather than the mean with the limit:
		// for records sitting exactly at the limit the two sides round the
		// same way, while the mean can land one ulp above the limit.
		if limit := slippageLimit * float64(len(recent)); sum > limit {
			m.logger.Warn("circuit breaker: unusual slippage", "avg_slippage", sum/float64(len(recent)))
			return false
		}
	}

	return true
}

// ShouldTradeNow combines the circuit breakers with session preferences.
// Liquid sessions trade freely; tokyo and low-liquidity hours only trade
// while a recently seen opportunity suggests conditions are unusual.
func (m *Manager) ShouldTradeNow(ctx context.Context, sess session.Session) bool {
	if !m.CircuitBreakersOK(ctx) {
		return false
	}

	if sess.Liquid() {
		return true
	}

	m.mu.Lock()
	last := m.lastOpportunity
	m.mu.Unlock()
	return !last.IsZero() && time.Since(last) < opportunityFreshness
}

// NoteOpportunity marks that a profitable cycle was just observed.
func (m *Manager) NoteOpportunity() {
	m.mu.Lock()
	m.lastOpportunity = time.Now()
	m.mu.Unlock()
}

// RecordOutcome updates the loss streak: any profitable outcome resets it,
// anything else extends it.
func (m *Manager) RecordOutcome(profit float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if profit > 0 {
		m.consecutiveLosses = 0
		return
	}
	m.consecutiveLosses++
	m.logger.Warn("loss recorded", "consecutive_losses", m.consecutiveLosses)
}

// ConsecutiveLosses returns the current loss streak.
func (m *Manager) ConsecutiveLosses() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consecutiveLosses
}

// StartingBalance returns the balance captured at construction.
func (m *Manager) StartingBalance() float64 {
	return m.startingBalance
}
