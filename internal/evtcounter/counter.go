// Package evtcounter provides the optional, observability-only counters
// named in SPEC_FULL.md's "Configuration / build knobs" section: spin
// counts, retry counts, and byte totals that a caller may opt into without
// changing the tuple package's behavior in any way. A nil *Set disables all
// counting; every call site in the tuple package nil-checks before
// touching a counter, mirroring the tuple.h event_counter members that
// only exist under ENABLE_EVENT_COUNTERS.
package evtcounter

import "sync/atomic"

// Counter is a simple atomic running total.
type Counter struct {
	total atomic.Int64
}

// Add adds delta to the running total.
func (c *Counter) Add(delta int64) { c.total.Add(delta) }

// Value returns the current running total.
func (c *Counter) Value() int64 { return c.total.Load() }

// AvgCounter tracks a running count and sum so a mean can be derived
// without storing every sample, matching tuple.h's event_avg_counter.
type AvgCounter struct {
	count atomic.Int64
	sum   atomic.Int64
}

// Offer records one sample.
func (a *AvgCounter) Offer(sample int64) {
	a.count.Add(1)
	a.sum.Add(sample)
}

// Mean returns the running mean, or 0 if no samples have been offered.
func (a *AvgCounter) Mean() float64 {
	n := a.count.Load()
	if n == 0 {
		return 0
	}
	return float64(a.sum.Load()) / float64(n)
}

// Count returns the number of samples offered.
func (a *AvgCounter) Count() int64 { return a.count.Load() }

// Set is the full collection of counters a tuple may optionally report
// into. All fields are safe for concurrent use; a nil *Set is the default
// and costs nothing beyond a nil check at each call site.
type Set struct {
	Creates                       Counter
	LogicalDeletes                Counter
	PhysicalDeletes               Counter
	BytesAllocated                Counter
	BytesFreed                    Counter
	Spills                        Counter
	InplaceBufInsufficient        Counter
	InplaceBufInsufficientOnSpill Counter
	AvgStableVersionSpins         AvgCounter
	AvgLockAcquireSpins           AvgCounter
	AvgReadRetries                AvgCounter
	AvgSpillLen                   AvgCounter
}
