// ratelimit.go paces requests to the OANDA v3 API.
//
// OANDA enforces a hard cap of 120 requests per second per access token.
// Rather than maintaining a token pool, each endpoint category gets a Pacer
// that reserves departure slots on a shared timeline: every Wait claims the
// next free slot, pushes the timeline forward by the steady-state gap, and
// sleeps until its slot arrives. Idle time accrues a bounded slack so a
// snapshot fan-out can burst, then the pacer settles back to its rate.
//
// Category rates sum to 70 req/s, leaving headroom under the 120 req/s cap
// even when every category bursts through its slack at once.
package broker

import (
	"context"
	"sync"
	"time"
)

// Pacer spaces request departures on a reserved-slot timeline. Claiming a
// slot is a constant-time bookkeeping step under the mutex; the sleep
// happens outside it, so waiters queue in claim order without convoying.
type Pacer struct {
	mu    sync.Mutex
	gap   time.Duration // steady-state spacing between departures
	slack time.Duration // how far the timeline may lag behind now (burst allowance)
	next  time.Time     // earliest unclaimed departure slot
}

// NewPacer creates a pacer that admits perSecond requests in steady state
// and up to burst extra departures after an idle stretch.
func NewPacer(perSecond float64, burst int) *Pacer {
	gap := time.Duration(float64(time.Second) / perSecond)
	return &Pacer{
		gap:   gap,
		slack: time.Duration(burst) * gap,
		next:  time.Now().Add(-time.Duration(burst) * gap),
	}
}

// Wait claims the next departure slot and blocks until it arrives or ctx is
// cancelled. A cancelled waiter's slot is not reclaimed; the gap it leaves
// only slows the category down, never past the broker's limit.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	now := time.Now()
	if floor := now.Add(-p.slack); p.next.Before(floor) {
		p.next = floor
	}
	at := p.next
	p.next = at.Add(p.gap)
	p.mu.Unlock()

	wait := at.Sub(now)
	if wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// RateLimiter groups pacers by OANDA endpoint category. Each operation
// calls the matching pacer's Wait() before issuing the HTTP request, so a
// quote storm cannot starve order submission.
type RateLimiter struct {
	Quote   *Pacer // GET /instruments/{pair}/candles — snapshot reads
	Order   *Pacer // POST /orders, PUT /trades/{id}/close
	Account *Pacer // GET summary / instruments / openTrades
}

// NewRateLimiter sizes the pacers for the polling workload: quote fetches
// dominate (one per pair per tick, with a burst big enough to cover a full
// snapshot fan-out), everything else is sparse.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		Quote:   NewPacer(50, 30),
		Order:   NewPacer(10, 5),
		Account: NewPacer(10, 5),
	}
}
