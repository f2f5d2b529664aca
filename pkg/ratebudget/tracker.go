package ratebudget

import (
	"sync"
	"time"
)

// Budget is one observation of the upstream call quota, taken from the
// rate-limit metadata of a provider response.
type Budget struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Tracker records the most recent quota observation for the upstream
// provider. Pure bookkeeping: it never performs I/O itself.
type Tracker struct {
	mu       sync.Mutex
	budget   Budget
	observed bool
}

// NewTracker creates an empty tracker. Until the first observation the
// budget is treated as available.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Observe records a quota observation and updates the exported gauges.
func (t *Tracker) Observe(b Budget) {
	t.mu.Lock()
	t.budget = b
	t.observed = true
	t.mu.Unlock()

	RateRemaining.Set(float64(b.Remaining))
	RateLimit.Set(float64(b.Limit))
	if !b.ResetAt.IsZero() {
		RateReset.Set(float64(b.ResetAt.Unix()))
	}
}

// Remaining returns the last observed remaining call count.
func (t *Tracker) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.budget.Remaining
}

// Limit returns the last observed quota ceiling.
func (t *Tracker) Limit() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.budget.Limit
}

// ResetAt returns when the last observed budget replenishes.
func (t *Tracker) ResetAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.budget.ResetAt
}

// Snapshot returns the last observed budget and whether one exists.
func (t *Tracker) Snapshot() (Budget, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.budget, t.observed
}

// Exhausted reports whether the provider quota is spent at the given
// instant. A tracker with no observations yet is never exhausted, and a
// budget whose reset time has passed is considered replenished.
func (t *Tracker) Exhausted(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.observed || t.budget.Remaining > 0 {
		return false
	}
	if !t.budget.ResetAt.IsZero() && now.After(t.budget.ResetAt) {
		return false
	}
	return true
}
