// Package rates builds per-tick exchange-rate snapshots.
//
// Each Snapshot fans out candle reads for the full catalog with bounded
// parallelism, synthesizes inverse quotes for directions the broker does not
// list, tracks a bounded mid-price history per pair for volatility, and
// derives the effective (spread-crossing) rates the cycle search runs on.
// The returned books are fresh values each tick; callers never see in-place
// mutation while a search is running.
package rates

import (
	"context"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	"oanda-arb/pkg/types"
)

// maxInFlight bounds concurrent quote fetches per snapshot.
const maxInFlight = 10

// minVolatilitySamples is how much history a pair needs before its
// volatility is considered meaningful.
const minVolatilitySamples = 5

// QuoteSource provides the latest quote for a catalog pair.
type QuoteSource interface {
	GetQuote(ctx context.Context, pair types.Pair) (types.Quote, error)
}

// Builder fetches quotes and assembles rate books. The history and
// volatility maps are owned by the control loop: Snapshot is called from a
// single goroutine and the parallel fetch joins before any state is touched.
type Builder struct {
	src     QuoteSource
	pairs   []types.Pair         // catalog order, drives the fetch fan-out
	catalog map[types.Pair]bool  // set view of pairs
	window  int                  // mid-price history length per pair

	history    map[types.Pair][]float64
	volatility map[types.Pair]float64
	logger     *slog.Logger
}

// NewBuilder creates a snapshot builder over the given catalog pairs.
func NewBuilder(src QuoteSource, pairs []types.Pair, window int, logger *slog.Logger) *Builder {
	catalog := make(map[types.Pair]bool, len(pairs))
	for _, p := range pairs {
		catalog[p] = true
	}
	return &Builder{
		src:        src,
		pairs:      pairs,
		catalog:    catalog,
		window:     window,
		history:    make(map[types.Pair][]float64),
		volatility: make(map[types.Pair]float64),
		logger:     logger.With("component", "rates"),
	}
}

// Snapshot fetches every catalog pair concurrently and returns the rate book
// plus the derived effective rates. Pairs whose fetch fails are silently
// absent — the search simply lacks those edges this tick.
func (b *Builder) Snapshot(ctx context.Context) (types.RateBook, types.EffectiveRates) {
	quotes := make([]*types.Quote, len(b.pairs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInFlight)
	for i, pair := range b.pairs {
		g.Go(func() error {
			q, err := b.src.GetQuote(gctx, pair)
			if err != nil {
				b.logger.Debug("quote fetch failed", "instrument", pair.Instrument(), "error", err)
				return nil
			}
			quotes[i] = &q
			return nil
		})
	}
	// Workers never return errors; Wait is the snapshot barrier.
	_ = g.Wait()

	book := make(types.RateBook, 2*len(b.pairs))
	for i, pair := range b.pairs {
		if quotes[i] == nil {
			continue
		}
		book[pair] = *quotes[i]
		b.observeMid(pair, quotes[i].Mid)
	}

	// Synthesize inverses for directions the catalog does not list.
	for _, pair := range b.pairs {
		q, ok := book[pair]
		if !ok {
			continue
		}
		inverse := pair.Reverse()
		if b.catalog[inverse] {
			continue
		}
		if _, exists := book[inverse]; exists {
			continue
		}
		book[inverse] = q.Inverse()
	}

	// Effective rates: ask when buying the catalog direction, 1/bid for the
	// reverse direction — but a catalog direction's own ask is authoritative.
	eff := make(types.EffectiveRates, len(book))
	for pair, q := range book {
		eff[pair] = q.Ask
		inverse := pair.Reverse()
		if !b.catalog[inverse] {
			eff[inverse] = 1.0 / q.Bid
		}
	}

	b.logger.Info("snapshot complete", "quotes", len(book), "edges", len(eff))
	return book, eff
}

// observeMid pushes a mid price into the pair's bounded history and refreshes
// its volatility once enough samples exist.
func (b *Builder) observeMid(pair types.Pair, mid float64) {
	h := append(b.history[pair], mid)
	if len(h) > b.window {
		h = h[len(h)-b.window:]
	}
	b.history[pair] = h

	if len(h) >= minVolatilitySamples {
		if m := mean(h); m != 0 {
			b.volatility[pair] = stddev(h) / m
		}
	}
}

// Volatility reports the pair's relative volatility (stdev/mean of recent
// mids). ok is false until enough history has accumulated.
func (b *Builder) Volatility(pair types.Pair) (float64, bool) {
	v, ok := b.volatility[pair]
	return v, ok
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the population standard deviation.
func stddev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	var sum float64
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}
