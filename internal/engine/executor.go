package engine

// executor.go — sequential execution of one arbitrage cycle.
//
// Each leg converts the running amount into the next currency via a market
// order, re-pricing immediately before submission. Fills are irreversible:
// an abort mid-cycle leaves the preceding legs in place (unbalanced
// exposure), surfaces the attempt through a trade record when at least one
// leg completed, and extends the loss streak.

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"oanda-arb/pkg/types"
)

var (
	// ErrFlowBreak means the cycle's edges do not chain — an internal
	// invariant violation, not a market condition.
	ErrFlowBreak = errors.New("currency mismatch in trade sequence")

	// ErrPriceMissing means the pre-trade re-price failed.
	ErrPriceMissing = errors.New("price data unavailable")

	// ErrOrderRejected means the broker did not fill a leg order.
	ErrOrderRejected = errors.New("order rejected")

	// ErrFillInvalid means the broker reported a fill with a non-positive
	// price or zero units.
	ErrFillInvalid = errors.New("invalid execution details")
)

// demo-mode slippage distribution.
const (
	demoSlippageMean   = 0.001
	demoSlippageStddev = 0.0005
)

// LegResult records one completed leg of a cycle.
type LegResult struct {
	Pair   types.Pair
	Units  float64 // filled units
	Price  float64 // fill price
	Amount float64 // running amount after this leg, in Pair.Quote terms
}

// CycleResult summarizes a fully executed cycle.
type CycleResult struct {
	Legs           []LegResult
	StartingAmount float64
	FinalAmount    float64
	Profit         float64
	ProfitPct      float64 // fraction, not percentage points
}

// executeCycle runs the cycle's legs in strict order, maintaining the
// (currency, amount) flow invariant. On success it appends a trade record
// and updates the loss streak from the realized profit.
func (e *Engine) executeCycle(ctx context.Context, cycle types.Cycle, amount float64) (*CycleResult, error) {
	e.logger.Info("executing arbitrage cycle",
		"path", cycle.Path(),
		"expected_profit_pct", cycle.EffectiveProfit*100,
		"amount", amount,
	)

	result := &CycleResult{StartingAmount: amount}
	currency := cycle.Start()
	current := amount

	for _, edge := range cycle.Edges {
		if edge.Base != currency {
			// No trade record: nothing meaningful to attribute, and the
			// cycle itself is corrupt.
			e.logger.Error("currency flow broken",
				"expected", currency, "got", edge.Base, "path", cycle.Path())
			return nil, fmt.Errorf("%w: expected %s, got %s", ErrFlowBreak, currency, edge.Base)
		}

		quote, err := e.broker.GetQuote(ctx, edge)
		if err != nil {
			abortErr := fmt.Errorf("%w for %s: %v", ErrPriceMissing, edge, err)
			e.abortExecution(result, cycle, abortErr, false)
			return nil, abortErr
		}

		// Unit sizing follows the source convention: amounts starting in
		// USD are submitted as-is, everything else is divided by the mid.
		units := current
		if currency != "USD" {
			units = current / quote.Mid
		}
		units = math.Abs(units)

		fill, err := e.broker.PlaceMarketOrder(ctx, edge, units)
		if err != nil {
			abortErr := fmt.Errorf("%w for %s: %v", ErrOrderRejected, edge, err)
			e.abortExecution(result, cycle, abortErr, true)
			return nil, abortErr
		}
		if fill.Price <= 0 || fill.Units == 0 {
			abortErr := fmt.Errorf("%w for %s", ErrFillInvalid, edge)
			e.abortExecution(result, cycle, abortErr, true)
			return nil, abortErr
		}

		currency = edge.Quote
		current = fill.Units * fill.Price
		result.Legs = append(result.Legs, LegResult{
			Pair:   edge,
			Units:  fill.Units,
			Price:  fill.Price,
			Amount: current,
		})

		e.logger.Info("leg complete",
			"instrument", edge.Instrument(),
			"units", fill.Units,
			"price", fill.Price,
			"amount", current,
		)
	}

	result.FinalAmount = current
	result.Profit = current - amount
	result.ProfitPct = current/amount - 1

	e.ledger.Record(types.TradeRecord{
		ExpectedProfit: cycle.EffectiveProfit,
		ActualProfit:   result.ProfitPct,
		Slippage:       cycle.EffectiveProfit - result.ProfitPct,
	})
	e.riskMgr.RecordOutcome(result.Profit)

	return result, nil
}

// abortExecution handles a mid-cycle failure. Completed legs cannot be
// unwound, so when at least one leg filled the attempt is surfaced as a
// zero-profit trade record; the realized outcome in the stranded currency
// is unknowable at this point. Rejections and bad fills always extend the
// loss streak; a missing re-price does so only when it left exposure behind.
func (e *Engine) abortExecution(result *CycleResult, cycle types.Cycle, cause error, alwaysLoss bool) {
	e.logger.Warn("cycle execution aborted",
		"path", cycle.Path(),
		"legs_completed", len(result.Legs),
		"error", cause,
	)

	recorded := len(result.Legs) > 0
	if recorded {
		e.ledger.Record(types.TradeRecord{
			ExpectedProfit: cycle.EffectiveProfit,
			ActualProfit:   0,
			Slippage:       cycle.EffectiveProfit,
		})
	}
	if alwaysLoss || recorded {
		e.riskMgr.RecordOutcome(0)
	}
}

// simulate runs a demo-mode trade: no orders are placed, slippage is drawn
// from a normal distribution and the realized profit is floored at zero.
// The recorded slippage is the raw draw.
func (e *Engine) simulate(cycle types.Cycle) {
	expected := cycle.EffectiveProfit
	slippage := rand.NormFloat64()*demoSlippageStddev + demoSlippageMean
	actual := expected - slippage
	if actual < 0 {
		actual = 0
	}

	e.logger.Info("[demo] simulated trade",
		"path", cycle.Path(),
		"expected_pct", expected*100,
		"actual_pct", actual*100,
		"slippage_pct", slippage*100,
	)

	e.ledger.Record(types.TradeRecord{
		ExpectedProfit: expected,
		ActualProfit:   actual,
		Slippage:       slippage,
	})
	e.riskMgr.RecordOutcome(actual)
}
