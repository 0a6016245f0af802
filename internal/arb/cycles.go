// Package arb detects profitable cycles in the directed exchange-rate graph.
//
// The core operation is FindCycles: a depth-bounded DFS over the effective
// rate book that enumerates closed walks of exactly maxLen edges from a start
// currency and scores them net of spread (already baked into the effective
// rates) and per-leg transaction cost.
package arb

import (
	"sort"

	"oanda-arb/pkg/types"
)

// FeePerLeg is the estimated execution cost per trade (commission +
// slippage), expressed as a fraction of notional.
const FeePerLeg = 0.0001

// DefaultMaxCycleLength bounds the search depth; triangles are the sweet
// spot between opportunity frequency and execution risk.
const DefaultMaxCycleLength = 3

// FindCycles enumerates profitable cycles of exactly maxLen edges starting
// and ending at start. Intermediate vertices are distinct from each other
// and from start. Only edges present in eff are traversed; a walk missing
// any edge is abandoned, never partially scored. Results are sorted by
// effective profit, best first, with a stable tie order.
func FindCycles(eff types.EffectiveRates, start types.Currency, maxLen int, minProfit float64) []types.Cycle {
	if len(eff) == 0 || maxLen < 2 {
		return nil
	}

	// Adjacency over the vertex set induced by the book's keys, with sorted
	// neighbor lists so enumeration order is deterministic.
	adj := make(map[types.Currency][]types.Currency)
	for pair := range eff {
		adj[pair.Base] = append(adj[pair.Base], pair.Quote)
	}
	for _, neighbors := range adj {
		sort.Slice(neighbors, func(i, j int) bool { return neighbors[i] < neighbors[j] })
	}

	var cycles []types.Cycle
	visited := map[types.Currency]bool{start: true}
	path := make([]types.Pair, 0, maxLen)

	var dfs func(current types.Currency, ratio float64, depth int)
	dfs = func(current types.Currency, ratio float64, depth int) {
		for _, next := range adj[current] {
			edge := types.Pair{Base: current, Quote: next}
			rate, ok := eff[edge]
			if !ok {
				continue
			}

			if next == start {
				// The start may only reappear as the terminal vertex.
				if depth == maxLen-1 {
					profitRatio := ratio * rate
					effective := profitRatio - 1.0 - FeePerLeg*float64(maxLen)
					if effective > minProfit {
						edges := make([]types.Pair, len(path), len(path)+1)
						copy(edges, path)
						edges = append(edges, edge)
						cycles = append(cycles, types.Cycle{
							Edges:           edges,
							ProfitRatio:     profitRatio,
							EffectiveProfit: effective,
						})
					}
				}
				continue
			}

			if depth == maxLen-1 || visited[next] {
				continue
			}

			visited[next] = true
			path = append(path, edge)
			dfs(next, ratio*rate, depth+1)
			path = path[:len(path)-1]
			delete(visited, next)
		}
	}
	dfs(start, 1.0, 0)

	sort.SliceStable(cycles, func(i, j int) bool {
		return cycles[i].EffectiveProfit > cycles[j].EffectiveProfit
	})
	return cycles
}

// FindAllCycles runs FindCycles for every start currency and merges the
// results into one list sorted by effective profit.
func FindAllCycles(eff types.EffectiveRates, starts []types.Currency, maxLen int, minProfit float64) []types.Cycle {
	var all []types.Cycle
	for _, start := range starts {
		all = append(all, FindCycles(eff, start, maxLen, minProfit)...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].EffectiveProfit > all[j].EffectiveProfit
	})
	return all
}
