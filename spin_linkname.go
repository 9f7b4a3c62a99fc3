package tuple

import _ "unsafe" // for go:linkname

// runtimeCanSpin and runtimeDoSpin reuse the same active-spin decision and
// CPU pause instruction that sync.Mutex itself uses, rather than
// reimplementing spin-iteration heuristics. This mirrors how production
// lock-free map implementations back their bucket spinlocks.

//go:linkname runtimeCanSpin sync.runtime_canSpin
//go:nosplit
func runtimeCanSpin(i int) bool

//go:linkname runtimeDoSpin sync.runtime_doSpin
//go:nosplit
func runtimeDoSpin()

// procPause issues a single CPU pause hint, for the bounded
// Header.TryStableVersion spin where a full delaySpin backoff (which may
// sleep) would defeat the caller's purpose of getting a fast answer.
//
//go:nosplit
func procPause() {
	runtimeDoSpin()
}
