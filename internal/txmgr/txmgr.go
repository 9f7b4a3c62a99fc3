// Package txmgr is a reference transaction manager: the minimum TID
// issuance and overwrite-eligibility policy the tuple package requires
// through tuple.OverwritePolicy (spec.md §6, "To the transaction manager").
// A real deployment's transaction manager would also assign commit
// ordering, detect write-write conflicts against other keys, and so on;
// none of that is this package's concern, or the tuple package's.
package txmgr

import (
	"sync/atomic"

	"sehlabs.com/tuple"
)

// TID is reserved, matching tuple.MinTID: the first transaction ID ever
// issued is 1.
const noSuchTransaction tuple.TID = tuple.MinTID

// Manager issues monotonically increasing transaction IDs and tracks the
// highest transaction ID reported finished, grounded on
// seh-mvcc-key-value-database/internal/db/tx.go's transactionState.
type Manager struct {
	latestID         atomic.Uint64
	oldestFinishedID atomic.Uint64
}

// Begin claims the next TID. It panics if the TID space is exhausted,
// matching the teacher's guard against wrapping back to noSuchTransaction
// — TID wraparound is an explicitly unhandled open question (see
// DESIGN.md).
func (m *Manager) Begin() tuple.TID {
	next := tuple.TID(m.latestID.Add(1))
	if next == noSuchTransaction {
		panic("txmgr: transaction ID sequence overflowed")
	}
	return next
}

// Finish records that id has completed, advancing the oldest-finished
// watermark if id is newer than what was previously recorded. It reports
// whether it advanced the watermark.
func (m *Manager) Finish(id tuple.TID) bool {
	if id == noSuchTransaction {
		return false
	}
	for {
		oldest := tuple.TID(m.oldestFinishedID.Load())
		if oldest >= id {
			return false
		}
		if m.oldestFinishedID.CompareAndSwap(uint64(oldest), uint64(id)) {
			return true
		}
	}
}

// Policy returns an OverwritePolicy bound to the given transaction's TID,
// allowing a write to overwrite a prior version in place when the prior
// version belongs to the same transaction (the writer is revising its own
// uncommitted write rather than superseding someone else's committed one),
// or when the prior version is the synthetic deleted placeholder AllocFirst
// leaves at tuple.MinTID: that placeholder was never anyone's write, so the
// first write to a fresh key must also overwrite it in place rather than
// spilling a never-committed version into the chain. A real transaction
// manager's policy would also consider whether oldTID's transaction
// aborted; this reference implementation only models these two cases,
// which is enough to drive every scenario in SPEC_FULL.md §8.
func (m *Manager) Policy(txID tuple.TID) tuple.OverwritePolicy {
	return tuple.OverwritePolicyFunc(func(oldTID, newTID tuple.TID) bool {
		return oldTID == txID || oldTID == tuple.MinTID
	})
}
