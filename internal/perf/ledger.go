// Package perf tracks trading performance.
//
// The Ledger is the in-memory, append-only trade log the risk layer reads
// during circuit-breaker evaluation; aggregates are computed on demand.
// History (history.go) mirrors records into SQLite under the data directory
// as a best-effort durable sink, and report.go renders the end-of-session
// summary.
package perf

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"oanda-arb/pkg/types"
)

// Ledger is an append-only trade log safe for append-during-read: the
// control loop is the single writer, breaker evaluation and reporting read
// concurrently under the shared lock.
type Ledger struct {
	mu      sync.RWMutex
	trades  []types.TradeRecord
	start   time.Time
	history *History // optional durable sink, may be nil
	logger  *slog.Logger
}

// NewLedger creates a ledger. history may be nil to disable persistence.
func NewLedger(logger *slog.Logger, history *History) *Ledger {
	return &Ledger{
		start:   time.Now(),
		history: history,
		logger:  logger.With("component", "perf"),
	}
}

// Record appends a trade outcome, assigning an ID and timestamp when the
// caller left them empty. Persistence errors are logged, never propagated.
func (l *Ledger) Record(r types.TradeRecord) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}

	l.mu.Lock()
	l.trades = append(l.trades, r)
	l.mu.Unlock()

	if l.history != nil {
		if err := l.history.Insert(context.Background(), r); err != nil {
			l.logger.Warn("trade history insert failed", "trade_id", r.ID, "error", err)
		}
	}
}

// Recent returns up to n of the most recent trades, oldest first.
func (l *Ledger) Recent(n int) []types.TradeRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n > len(l.trades) {
		n = len(l.trades)
	}
	out := make([]types.TradeRecord, n)
	copy(out, l.trades[len(l.trades)-n:])
	return out
}

// All returns a copy of every recorded trade, oldest first.
func (l *Ledger) All() []types.TradeRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]types.TradeRecord, len(l.trades))
	copy(out, l.trades)
	return out
}

// Len returns the number of recorded trades.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.trades)
}

// Start returns when the ledger (and so the session) began.
func (l *Ledger) Start() time.Time {
	return l.start
}

// Metrics are aggregate performance numbers over the whole session.
type Metrics struct {
	TotalTrades      int
	ProfitableTrades int
	LossTrades       int
	WinRate          float64
	AvgProfit        float64 // mean over profitable trades
	AvgLoss          float64 // mean over non-positive trades
	AvgSlippage      float64 // mean over all trades
	TotalProfit      float64
}

// Metrics computes aggregates over all recorded trades. Zero-valued when
// the ledger is empty.
func (l *Ledger) Metrics() Metrics {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var m Metrics
	m.TotalTrades = len(l.trades)
	if m.TotalTrades == 0 {
		return m
	}

	var profitSum, lossSum, slippageSum float64
	for _, tr := range l.trades {
		if tr.ActualProfit > 0 {
			m.ProfitableTrades++
			profitSum += tr.ActualProfit
		} else {
			m.LossTrades++
			lossSum += tr.ActualProfit
		}
		slippageSum += tr.Slippage
		m.TotalProfit += tr.ActualProfit
	}

	m.WinRate = float64(m.ProfitableTrades) / float64(m.TotalTrades)
	if m.ProfitableTrades > 0 {
		m.AvgProfit = profitSum / float64(m.ProfitableTrades)
	}
	if m.LossTrades > 0 {
		m.AvgLoss = lossSum / float64(m.LossTrades)
	}
	m.AvgSlippage = slippageSum / float64(m.TotalTrades)
	return m
}
