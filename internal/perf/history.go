package perf

// history.go — durable trade history in SQLite (pure Go driver, no CGo).
// One row per trade, pruned on open so the file stays small across many
// sessions. Writes are best-effort: the ledger stays authoritative in
// memory and a failed insert never affects trading.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"oanda-arb/pkg/types"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS trades (
    id              TEXT PRIMARY KEY,
    recorded_at     DATETIME NOT NULL,
    expected_profit REAL     NOT NULL,
    actual_profit   REAL     NOT NULL,
    slippage        REAL     NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_at ON trades(recorded_at DESC);
`

// historyRetention is how long closed-session trades are kept.
const historyRetention = 30 * 24 * time.Hour

// History persists trade records to a SQLite file.
type History struct {
	db *sql.DB
}

// OpenHistory opens (or creates) the trade history database at path,
// applies the schema and prunes stale rows.
func OpenHistory(path string) (*History, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open trade history %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply trade history schema: %w", err)
	}

	h := &History{db: db}
	h.prune(context.Background())
	return h, nil
}

// Insert writes one trade record.
func (h *History) Insert(ctx context.Context, r types.TradeRecord) error {
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO trades (id, recorded_at, expected_profit, actual_profit, slippage)
		 VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.Timestamp.UTC(), r.ExpectedProfit, r.ActualProfit, r.Slippage,
	)
	if err != nil {
		return fmt.Errorf("insert trade %s: %w", r.ID, err)
	}
	return nil
}

// Count returns the number of stored trades.
func (h *History) Count(ctx context.Context) (int, error) {
	var n int
	if err := h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trades`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count trades: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (h *History) Close() error {
	return h.db.Close()
}

func (h *History) prune(ctx context.Context) {
	cutoff := time.Now().Add(-historyRetention).UTC()
	_, _ = h.db.ExecContext(ctx, `DELETE FROM trades WHERE recorded_at < ?`, cutoff)
}
