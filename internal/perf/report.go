package perf

// report.go renders the end-of-session performance report: a text summary
// plus a table of the most recent trades. The report is written atomically
// (tmp + rename) so a crash mid-flush never leaves a torn file behind.

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"oanda-arb/pkg/types"
)

// reportTrades caps how many recent trades the report table shows.
const reportTrades = 10

// WriteReport renders the session summary into dir and returns the file path.
func WriteReport(dir string, m Metrics, trades []types.TradeRecord, start time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	var sb strings.Builder
	renderReport(&sb, m, trades, start, time.Now())

	path := filepath.Join(dir, "summary_"+time.Now().Format("20060102_150405")+".txt")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(sb.String()), 0o600); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// Fprint renders the same report to an arbitrary writer (console summary
// on shutdown).
func Fprint(w io.Writer, m Metrics, trades []types.TradeRecord, start time.Time) {
	renderReport(w, m, trades, start, time.Now())
}

func renderReport(w io.Writer, m Metrics, trades []types.TradeRecord, start, end time.Time) {
	fmt.Fprintln(w, "Arbitrage Trading Session Report")
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintf(w, "Session: %s to %s (%s)\n\n",
		start.Format(time.RFC3339), end.Format(time.RFC3339), end.Sub(start).Round(time.Second))

	fmt.Fprintf(w, "Total trades:      %d\n", m.TotalTrades)
	fmt.Fprintf(w, "Profitable trades: %d (%.2f%%)\n", m.ProfitableTrades, m.WinRate*100)
	fmt.Fprintf(w, "Loss trades:       %d\n", m.LossTrades)
	fmt.Fprintf(w, "Average profit:    %.4f%%\n", m.AvgProfit*100)
	fmt.Fprintf(w, "Average loss:      %.4f%%\n", m.AvgLoss*100)
	fmt.Fprintf(w, "Average slippage:  %.4f%%\n", m.AvgSlippage*100)
	fmt.Fprintf(w, "Total profit:      %.4f%%\n\n", m.TotalProfit*100)

	if len(trades) == 0 {
		fmt.Fprintln(w, "No trades this session.")
		return
	}

	if len(trades) > reportTrades {
		trades = trades[len(trades)-reportTrades:]
	}

	fmt.Fprintf(w, "Last %d trades:\n", len(trades))
	table := tablewriter.NewWriter(w)
	table.Header("Time", "Expected", "Actual", "Slippage")
	for _, tr := range trades {
		table.Append(
			tr.Timestamp.Format("15:04:05"),
			fmt.Sprintf("%.4f%%", tr.ExpectedProfit*100),
			fmt.Sprintf("%.4f%%", tr.ActualProfit*100),
			fmt.Sprintf("%.4f%%", tr.Slippage*100),
		)
	}
	table.Render()
}
