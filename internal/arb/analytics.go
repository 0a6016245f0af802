package arb

// analytics.go holds advisory mid-price scans. Unlike FindCycles these do
// not account for spread or fees, so they overstate what is capturable;
// the engine surfaces them at debug level for operator insight only and
// never trades on them.

import (
	"math"
	"sort"

	"oanda-arb/pkg/types"
)

// CrossRateOpportunity is a discrepancy between a directly quoted rate and
// the cross rate implied by routing through an intermediate currency.
type CrossRateOpportunity struct {
	Base        types.Currency
	Via         types.Currency
	Quote       types.Currency
	DirectRate  float64
	CrossRate   float64
	Discrepancy float64 // |direct − cross| / direct
}

// crossRateThreshold is the minimum relative discrepancy worth reporting.
const crossRateThreshold = 0.0005

// CrossRateOpportunities scans every (base, via, quote) triplet where the
// book quotes both the direct pair and the two-leg route, and reports the
// relative gap between the direct mid and the implied cross rate.
func CrossRateOpportunities(book types.RateBook) []CrossRateOpportunity {
	var out []CrossRateOpportunity
	for first, q1 := range book {
		for second, q2 := range book {
			if second.Base != first.Quote || second.Quote == first.Base {
				continue
			}
			direct, ok := book[types.Pair{Base: first.Base, Quote: second.Quote}]
			if !ok || direct.Mid == 0 {
				continue
			}
			cross := q1.Mid * q2.Mid
			discrepancy := math.Abs(direct.Mid-cross) / direct.Mid
			if discrepancy > crossRateThreshold {
				out = append(out, CrossRateOpportunity{
					Base:        first.Base,
					Via:         first.Quote,
					Quote:       second.Quote,
					DirectRate:  direct.Mid,
					CrossRate:   cross,
					Discrepancy: discrepancy,
				})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Discrepancy > out[j].Discrepancy })
	return out
}

// TriangleOpportunity is a three-leg round trip whose mid-price product
// exceeds one by at least the requested margin.
type TriangleOpportunity struct {
	Pairs       [3]types.Pair
	ProfitRatio float64
}

// TriangularOpportunities scans every ordered currency triangle with all
// three legs quoted and returns those whose mid-price product beats
// 1 + minProfit, best first.
func TriangularOpportunities(book types.RateBook, minProfit float64) []TriangleOpportunity {
	currencies := make(map[types.Currency]bool)
	for pair := range book {
		currencies[pair.Base] = true
		currencies[pair.Quote] = true
	}

	var out []TriangleOpportunity
	for a := range currencies {
		for b := range currencies {
			if b == a {
				continue
			}
			for c := range currencies {
				if c == a || c == b {
					continue
				}
				legs := [3]types.Pair{
					{Base: a, Quote: b},
					{Base: b, Quote: c},
					{Base: c, Quote: a},
				}
				ratio := 1.0
				ok := true
				for _, leg := range legs {
					q, exists := book[leg]
					if !exists {
						ok = false
						break
					}
					ratio *= q.Mid
				}
				if ok && ratio > 1+minProfit {
					out = append(out, TriangleOpportunity{Pairs: legs, ProfitRatio: ratio})
				}
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ProfitRatio > out[j].ProfitRatio })
	return out
}
