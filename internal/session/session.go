// Package session maps UTC wall time to FX market sessions and derives the
// per-session strategy parameters: profit-threshold scaling and poll cadence.
package session

import "time"

// Session tags a wall-clock window by which major markets are open.
type Session string

const (
	LondonNYOverlap    Session = "london_ny_overlap"
	TokyoLondonOverlap Session = "tokyo_london_overlap"
	London             Session = "london"
	NewYork            Session = "new_york"
	Tokyo              Session = "tokyo"
	LowLiquidity       Session = "low_liquidity"
)

// Liquid reports whether the session is liquid enough to trade without
// extra selectivity.
func (s Session) Liquid() bool {
	switch s {
	case LondonNYOverlap, TokyoLondonOverlap, London, NewYork:
		return true
	}
	return false
}

// Classify maps a point in time to its market session. Overlaps win over
// single sessions; outside every major session the tag is low_liquidity.
func Classify(t time.Time) Session {
	hour := t.UTC().Hour()

	tokyoOpen := hour >= 0 && hour < 9
	londonOpen := hour >= 8 && hour < 16
	nyOpen := hour >= 13 && hour < 22

	switch {
	case londonOpen && nyOpen:
		return LondonNYOverlap
	case tokyoOpen && londonOpen:
		return TokyoLondonOverlap
	case londonOpen:
		return London
	case nyOpen:
		return NewYork
	case tokyoOpen:
		return Tokyo
	default:
		return LowLiquidity
	}
}

// Params are the session-adjusted strategy knobs for one tick.
type Params struct {
	ProfitThreshold float64       // effective minimum profit for this session
	CheckInterval   time.Duration // poll cadence
}

// ParamsFor scales the base profit threshold and picks the poll cadence for
// a session: aggressive during the London/NY overlap, conservative when
// liquidity is thin.
func ParamsFor(s Session, baseThreshold float64) Params {
	switch s {
	case LondonNYOverlap:
		return Params{ProfitThreshold: baseThreshold * 0.8, CheckInterval: 1 * time.Second}
	case TokyoLondonOverlap:
		return Params{ProfitThreshold: baseThreshold * 0.9, CheckInterval: 2 * time.Second}
	case London, NewYork:
		return Params{ProfitThreshold: baseThreshold, CheckInterval: 3 * time.Second}
	default: // Tokyo, LowLiquidity
		return Params{ProfitThreshold: baseThreshold * 1.5, CheckInterval: 5 * time.Second}
	}
}
