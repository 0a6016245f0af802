// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the bot — currencies, instrument
// pairs, quotes, rate books, arbitrage cycles, and trade records. It has no
// dependencies on internal packages, so it can be imported by any layer.
package types

import (
	"fmt"
	"strings"
	"time"
)

// Currency is a three-letter uppercase currency tag, e.g. "USD".
// The core treats it as an opaque identifier.
type Currency string

// Pair is a directed currency pair: one unit of Quote priced in Base terms,
// traded under the broker instrument name "BASE_QUOTE".
type Pair struct {
	Base  Currency
	Quote Currency
}

// Instrument returns the broker-side instrument name, e.g. "EUR_USD".
func (p Pair) Instrument() string {
	return string(p.Base) + "_" + string(p.Quote)
}

// Reverse returns the pair with base and quote swapped.
func (p Pair) Reverse() Pair {
	return Pair{Base: p.Quote, Quote: p.Base}
}

func (p Pair) String() string {
	return p.Instrument()
}

// ParsePair parses a "BASE_QUOTE" instrument name.
func ParsePair(name string) (Pair, error) {
	base, quote, ok := strings.Cut(name, "_")
	if !ok || base == "" || quote == "" {
		return Pair{}, fmt.Errorf("invalid instrument name %q", name)
	}
	return Pair{Base: Currency(base), Quote: Currency(quote)}, nil
}

// Instrument is a tradable instrument from the broker catalog.
type Instrument struct {
	Name string
	Type string
}

// Quote is a bid/ask snapshot for one pair.
//
// Invariants: Bid ≤ Mid ≤ Ask, Spread = Ask − Bid ≥ 0, Mid > 0.
// Synthetic marks quotes derived by inverting a catalog quote for a pair
// the broker does not list directly.
type Quote struct {
	Bid       float64
	Ask       float64
	Mid       float64
	Spread    float64
	Time      time.Time
	Synthetic bool
}

// Inverse derives the synthetic quote for the reverse pair. Buying the
// reverse direction crosses the original spread, so bid and ask flip:
//
//	bid' = 1/ask, ask' = 1/bid, mid' = 1/mid, spread' = spread/(bid·ask)
//
// The timestamp is inherited from the source quote.
func (q Quote) Inverse() Quote {
	return Quote{
		Bid:       1.0 / q.Ask,
		Ask:       1.0 / q.Bid,
		Mid:       1.0 / q.Mid,
		Spread:    q.Spread / (q.Bid * q.Ask),
		Time:      q.Time,
		Synthetic: true,
	}
}

// RateBook maps pairs to their latest quotes for a single snapshot cycle.
// It holds both catalog and synthetic entries and is replaced wholesale
// each tick — never mutated in place during a search.
type RateBook map[Pair]Quote

// EffectiveRates maps each tradable direction to the rate a taker actually
// receives when crossing the spread: the ask for the catalog direction,
// 1/bid for a direction only reachable by inverting a catalog pair.
type EffectiveRates map[Pair]float64

// Fill is the executed portion of a market order.
type Fill struct {
	Price float64
	Units float64
}

// Cycle is a closed directed walk through the currency graph. Edges[0].Base
// is the start currency and Edges[len-1].Quote closes back to it.
type Cycle struct {
	Edges []Pair

	// ProfitRatio is the product of effective rates over all edges.
	ProfitRatio float64

	// EffectiveProfit is ProfitRatio − 1 minus per-leg transaction costs.
	EffectiveProfit float64
}

// Start returns the cycle's starting currency.
func (c Cycle) Start() Currency {
	if len(c.Edges) == 0 {
		return ""
	}
	return c.Edges[0].Base
}

// Path renders the cycle as "USD -> EUR -> GBP -> USD" for logging.
func (c Cycle) Path() string {
	if len(c.Edges) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, e := range c.Edges {
		sb.WriteString(string(e.Base))
		sb.WriteString(" -> ")
	}
	sb.WriteString(string(c.Edges[len(c.Edges)-1].Quote))
	return sb.String()
}

// TradeRecord is one completed (or simulated) arbitrage outcome. Profits and
// slippage are fractions of the starting notional, not percentages.
type TradeRecord struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	ExpectedProfit float64   `json:"expected_profit"`
	ActualProfit   float64   `json:"actual_profit"`
	Slippage       float64   `json:"slippage"`
}
