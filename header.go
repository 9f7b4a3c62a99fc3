package tuple

import (
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/cpu"
)

// Bit layout of the header word, least significant first:
//
//	[ locked | type | deleted | enqueued | latest | counter ]
//	[  0..1  | 1..2 |  2..3   |   3..4   |  4..5  |  5..32  ]
//
// counter wraps modulo 2^27 (bits 5..31). The enqueued bit is reserved and
// unused: its position is preserved and its value carried across updates,
// but nothing in this package reads or sets it. Do not repurpose it.
const (
	hdrLockedMask    uint32 = 0x1
	hdrTypeShift            = 1
	hdrTypeMask      uint32 = 0x1 << hdrTypeShift
	hdrDeletedShift         = 2
	hdrDeletedMask   uint32 = 0x1 << hdrDeletedShift
	hdrEnqueuedShift        = 3
	hdrEnqueuedMask  uint32 = 0x1 << hdrEnqueuedShift
	hdrLatestShift          = 4
	hdrLatestMask    uint32 = 0x1 << hdrLatestShift
	hdrCounterShift         = 5
	hdrCounterMask   uint32 = (^uint32(0) >> hdrCounterShift) << hdrCounterShift
)

// nodeType distinguishes a small node (no chain pointer, can only be a
// solitary head) from a big node (has a next pointer and can carry history).
type nodeType uint8

const (
	typeSmall nodeType = 0
	typeBig   nodeType = 1
)

func (t nodeType) bit() uint32 {
	if t == typeBig {
		return hdrTypeMask
	}
	return 0
}

// cacheLineSize is used to pad Header onto its own cache line, so that the
// lock/version traffic on one tuple's header never false-shares a cache
// line with a neighboring tuple's header.
const cacheLineSize = unsafe.Sizeof(cpu.CacheLinePad{})

// Header is the tuple's single atomic control word: lock bit, type bit,
// deleted bit, reserved enqueued bit, latest bit, and a 27-bit modification
// counter, all packed into one uint32 and mutated only through
// sync/atomic — there is no plain read or write of the backing word
// anywhere in this package, which is what gives the acquire/release
// semantics the optimistic reader protocol (§4C) depends on.
type Header struct {
	word atomic.Uint32
	_    [cacheLineSize - unsafe.Sizeof(atomic.Uint32{})]byte
}

func isLocked(v uint32) bool    { return v&hdrLockedMask != 0 }
func isBigType(v uint32) bool   { return v&hdrTypeMask != 0 }
func isDeleted(v uint32) bool   { return v&hdrDeletedMask != 0 }
func isEnqueued(v uint32) bool  { return v&hdrEnqueuedMask != 0 }
func isLatest(v uint32) bool    { return v&hdrLatestMask != 0 }
func counterOf(v uint32) uint32 { return (v & hdrCounterMask) >> hdrCounterShift }

func makeHeader(t nodeType, latest bool) uint32 {
	v := t.bit()
	if latest {
		v |= hdrLatestMask
	}
	return v
}

// enableSpin controls whether Lock and StableVersion actively spin with a
// CPU pause hint before falling back to a sleep-based backoff. Disabling it
// (for environments where active spinning is undesirable, e.g. a single
// logical CPU) degrades every contended wait straight to the sleep path.
const enableSpin = true

// delaySpin backs off a spin loop: while the active-spin budget allows it,
// it issues a CPU pause hint; once the runtime decides further spinning
// won't pay off, it sleeps briefly and resets the budget. Grounded on the
// identical backoff used by lock-free hash-map bucket locks elsewhere in
// the ecosystem, which borrows the same runtime hooks sync.Mutex itself
// uses for its adaptive spin.
func delaySpin(spins *int) {
	const yieldSleep = 500 * time.Microsecond
	if enableSpin && runtimeCanSpin(*spins) {
		runtimeDoSpin()
		*spins++
	} else {
		time.Sleep(yieldSleep)
		*spins = 0
	}
}

// Lock spins until the lock bit is clear, then CAS-acquires it. It returns
// the header value observed at acquisition (with the lock bit set), for
// callers that want to branch on the node's type without a second load. If
// counters is non-nil, the number of contended spin iterations taken to
// acquire the lock is reported to AvgLockAcquireSpins, matching tuple.h's
// lock() reporting to g_evt_avg_dbtuple_lock_acquire_spins.
func (h *Header) Lock(counters *Counters) uint32 {
	cur := h.word.Load()
	if !isLocked(cur) && h.word.CompareAndSwap(cur, cur|hdrLockedMask) {
		if counters != nil {
			counters.AvgLockAcquireSpins.Offer(0)
		}
		return cur | hdrLockedMask
	}
	spins := 0
	var attempts int64
	for {
		v := h.word.Load()
		if isLocked(v) {
			delaySpin(&spins)
			attempts++
			continue
		}
		if h.word.CompareAndSwap(v, v|hdrLockedMask) {
			if counters != nil {
				counters.AvgLockAcquireSpins.Offer(attempts)
			}
			return v | hdrLockedMask
		}
		delaySpin(&spins)
		attempts++
	}
}

// Unlock must be called only by the lock holder. It increments the
// modification counter (wrapping modulo 2^27) and clears the lock bit in a
// single release-store, which is the one write StableRead/CheckVersion pair
// against.
func (h *Header) Unlock() {
	v := h.word.Load()
	next := counterOf(v) + 1
	v &^= hdrCounterMask
	v |= (next << hdrCounterShift) & hdrCounterMask
	v &^= hdrLockedMask
	h.word.Store(v)
}

// StableVersion spin-reads the header until the lock bit is clear and
// returns that value. It never mutates the header and never blocks longer
// than the lock is actually held. If counters is non-nil, the number of
// contended spin iterations taken is reported to AvgStableVersionSpins,
// matching tuple.h's stable_version() reporting to
// g_evt_avg_dbtuple_stable_version_spins.
func (h *Header) StableVersion(counters *Counters) uint32 {
	spins := 0
	var attempts int64
	for {
		v := h.word.Load()
		if !isLocked(v) {
			if counters != nil {
				counters.AvgStableVersionSpins.Offer(attempts)
			}
			return v
		}
		delaySpin(&spins)
		attempts++
	}
}

// TryStableVersion is StableVersion bounded by a spin budget. It reports
// false if the header was still locked once the budget was exhausted,
// letting a caller that prefers a fast negative answer give up instead of
// waiting indefinitely.
func (h *Header) TryStableVersion(spins int) (uint32, bool) {
	v := h.word.Load()
	for isLocked(v) && spins > 0 {
		// A plain pause here (rather than delaySpin's sleep fallback) keeps
		// this bounded helper's latency predictable for callers that chose
		// it specifically to avoid an unbounded wait.
		procPause()
		v = h.word.Load()
		spins--
	}
	return v, !isLocked(v)
}

// CheckVersion reports whether the header is still exactly v — i.e.
// whether no writer has locked and unlocked this node since v was observed
// by StableVersion or TryStableVersion.
func (h *Header) CheckVersion(v uint32) bool {
	return h.word.Load() == v
}

// setLatest must be called only by the lock holder.
func (h *Header) setLatest(latest bool) {
	v := h.word.Load()
	if latest {
		v |= hdrLatestMask
	} else {
		v &^= hdrLatestMask
	}
	h.word.Store(v)
}

// markDeleted sets the deleted bit. Per the Header's contract (§4A), this
// is called exactly once, by Release or ReleaseNoRCU, without the lock
// held, because no
// concurrent writer is permitted once a node has been handed to the
// reclaimer.
func (h *Header) markDeleted() {
	v := h.word.Load()
	h.word.Store(v | hdrDeletedMask)
}
