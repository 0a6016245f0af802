package risk

import (
	"context"
	"log/slog"
	"math"
	"os"
	"testing"
	"time"

	"oanda-arb/internal/config"
	"oanda-arb/internal/session"
	"oanda-arb/pkg/types"
)

type fakeBalance struct {
	value float64
}

func (f *fakeBalance) GetAccountBalance(ctx context.Context) float64 {
	return f.value
}

type fakeHistory struct {
	trades []types.TradeRecord
}

func (f *fakeHistory) Recent(n int) []types.TradeRecord {
	if n > len(f.trades) {
		n = len(f.trades)
	}
	return f.trades[len(f.trades)-n:]
}

func testConfig() config.Config {
	return config.Config{
		MaxConsecutiveLosses: 3,
		DailyLossLimitPct:    0.05,
		RiskPerTrade: config.RiskTiers{
			SmallAccount:  0.01,
			MediumAccount: 0.02,
			LargeAccount:  0.03,
		},
		SessionMultipliers: config.SessionMultipliers{
			LondonNYOverlap:    1.2,
			TokyoLondonOverlap: 1.1,
			London:             1.0,
			NewYork:            1.0,
			Tokyo:              0.8,
			LowLiquidity:       0.5,
		},
	}
}

func newTestManager(balance float64, history *fakeHistory) (*Manager, *fakeBalance) {
	if history == nil {
		history = &fakeHistory{}
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	bal := &fakeBalance{value: balance}
	return NewManager(context.Background(), testConfig(), bal, history, logger), bal
}

func TestPositionSizeLargeAccount(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(50_000, nil)

	// tier 3%, session 1.2, quality clamped to 2.0, confidence 1.0:
	// 50 000 · 0.03 · 1.2 · 2.0 · 1.0 = 3 600, below the 5 000 cap.
	size := m.PositionSize(context.Background(), 1.0, session.LondonNYOverlap)
	if math.Abs(size-3600) > 1e-9 {
		t.Errorf("size = %v, want 3600", size)
	}
}

func TestPositionSizeQualityFloor(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(50_000, nil)

	// A tiny effective profit drives quality to the 0.5 floor:
	// 50 000 · 0.03 · 1.2 · 0.5 = 900, above the 100 floor.
	size := m.PositionSize(context.Background(), 0.0001, session.LondonNYOverlap)
	if math.Abs(size-900) > 1e-9 {
		t.Errorf("size = %v, want 900", size)
	}
}

func TestPositionSizeCap(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(5_000, nil)

	// 5 000 · 0.02 · 1.2 · 2.0 = 240 raw; the 10% cap is 500, floor 100.
	size := m.PositionSize(context.Background(), 1.0, session.LondonNYOverlap)
	if math.Abs(size-240) > 1e-9 {
		t.Errorf("size = %v, want 240", size)
	}

	// A small account's raw size falls under the minimum and gets floored.
	small, _ := newTestManager(900, nil)
	size = small.PositionSize(context.Background(), 0.0001, session.LowLiquidity)
	// 900 · 0.01 · 0.5 · 0.5 = 2.25 → floored to 100, but capped at 90.
	if math.Abs(size-90) > 1e-9 {
		t.Errorf("size = %v, want 90 (cap below floor)", size)
	}
}

func TestPositionSizeConfidenceDecay(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(50_000, nil)

	m.RecordOutcome(-0.001)
	m.RecordOutcome(-0.001)

	// confidence = 1 − 0.2·2 = 0.6 → 3 600 · 0.6 = 2 160.
	size := m.PositionSize(context.Background(), 1.0, session.LondonNYOverlap)
	if math.Abs(size-2160) > 1e-9 {
		t.Errorf("size = %v, want 2160", size)
	}
}

func TestConsecutiveLossGate(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(10_000, nil)

	for i := 0; i < 3; i++ {
		if !m.CircuitBreakersOK(context.Background()) {
			t.Fatalf("breaker tripped after %d losses, want 3", i)
		}
		m.RecordOutcome(-0.001)
	}

	if m.CircuitBreakersOK(context.Background()) {
		t.Error("breaker should trip after 3 consecutive losses")
	}
	if m.ShouldTradeNow(context.Background(), session.London) {
		t.Error("ShouldTradeNow should be false after 3 consecutive losses")
	}

	// A single win resets the streak.
	m.RecordOutcome(0.001)
	if m.ConsecutiveLosses() != 0 {
		t.Errorf("losses = %d after win, want 0", m.ConsecutiveLosses())
	}
	if !m.CircuitBreakersOK(context.Background()) {
		t.Error("breaker should clear after a win")
	}
}

func TestDailyLossGate(t *testing.T) {
	t.Parallel()
	m, bal := newTestManager(10_000, nil)

	// Limit is 10 000 · 0.05 = 500. Loss of exactly 500 passes (strictly
	// greater trips).
	bal.value = 9_500
	if !m.CircuitBreakersOK(context.Background()) {
		t.Error("breaker should pass at exactly the daily loss limit")
	}

	bal.value = 9_499
	if m.CircuitBreakersOK(context.Background()) {
		t.Error("breaker should trip past the daily loss limit")
	}

	// Starting balance stays frozen even as the live balance recovers.
	bal.value = 12_000
	if m.StartingBalance() != 10_000 {
		t.Errorf("starting balance = %v, want frozen 10 000", m.StartingBalance())
	}
	if !m.CircuitBreakersOK(context.Background()) {
		t.Error("breaker should pass when balance recovered")
	}
}

func TestSlippageGate(t *testing.T) {
	t.Parallel()

	slip := func(s float64) types.TradeRecord {
		return types.TradeRecord{Slippage: s}
	}

	// Fewer than three records → pass regardless of values.
	history := &fakeHistory{trades: []types.TradeRecord{slip(0.9), slip(0.9)}}
	m, _ := newTestManager(10_000, history)
	if !m.CircuitBreakersOK(context.Background()) {
		t.Error("slippage gate should pass with fewer than 3 records")
	}

	// Mean over the last three above 0.003 trips.
	history.trades = append(history.trades, slip(0.004), slip(0.004), slip(0.004))
	if m.CircuitBreakersOK(context.Background()) {
		t.Error("slippage gate should trip on high average slippage")
	}

	// Mean at the limit passes (gate is strictly greater-than).
	history.trades = []types.TradeRecord{slip(0.003), slip(0.003), slip(0.003)}
	if !m.CircuitBreakersOK(context.Background()) {
		t.Error("slippage gate should pass at exactly the limit")
	}
}

func TestShouldTradeNowSessions(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(10_000, nil)

	for _, s := range []session.Session{session.LondonNYOverlap, session.TokyoLondonOverlap, session.London, session.NewYork} {
		if !m.ShouldTradeNow(context.Background(), s) {
			t.Errorf("ShouldTradeNow(%s) = false, want true", s)
		}
	}

	// Illiquid sessions need a fresh opportunity.
	for _, s := range []session.Session{session.Tokyo, session.LowLiquidity} {
		if m.ShouldTradeNow(context.Background(), s) {
			t.Errorf("ShouldTradeNow(%s) = true without prior opportunity", s)
		}
	}

	m.NoteOpportunity()
	if !m.ShouldTradeNow(context.Background(), session.Tokyo) {
		t.Error("ShouldTradeNow(tokyo) = false right after an opportunity")
	}

	// A stale opportunity no longer qualifies.
	m.mu.Lock()
	m.lastOpportunity = time.Now().Add(-10 * time.Minute)
	m.mu.Unlock()
	if m.ShouldTradeNow(context.Background(), session.Tokyo) {
		t.Error("ShouldTradeNow(tokyo) = true with a stale opportunity")
	}
}

func TestRecordOutcomeStreak(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(10_000, nil)

	m.RecordOutcome(-0.001)
	m.RecordOutcome(0)
	if m.ConsecutiveLosses() != 2 {
		t.Errorf("losses = %d, want 2 (zero profit counts as loss)", m.ConsecutiveLosses())
	}
	m.RecordOutcome(0.0001)
	if m.ConsecutiveLosses() != 0 {
		t.Errorf("losses = %d after profit, want 0", m.ConsecutiveLosses())
	}
}
