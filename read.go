package tuple

// NoLimit is a convenience maxLen value meaning "copy the whole payload",
// for callers with no particular buffer size constraint.
const NoLimit = MaxNodeSize

// stableSpinBudget bounds the derived boolean queries (IsLatestVersion's
// stable variant and LatestValueIsNil's stable variant), matching tuple.h's
// hardcoded budget of 16 spins before giving up with an "unknown" answer.
const stableSpinBudget = 16

// StableRead returns the version of the chain rooted at head visible to a
// reader with snapshot TID t: the newest version whose TID is <= t, or a
// synthetic "deleted at MinTID" result if the chain is walked to its tail
// without finding one.
//
// ok is false only in the stale-head case: head is no longer the chain's
// latest node (the index has moved on), and the caller must re-fetch the
// current head from the index and retry. Every other outcome reports ok
// true; when no version at or before t exists ("record doesn't exist"),
// the result is an empty payload at MinTID, per the tail-of-chain
// convention (see DESIGN.md).
//
// StableRead must not be called while the caller holds head's own lock: it
// spins on exactly that lock and would deadlock against itself.
func StableRead(head *Node, t TID, maxLen int) (ok bool, startTID TID, payload []byte) {
	assertf(maxLen > 0, "tuple: StableRead: maxLen must be positive")
	return stableReadAt(head, t, maxLen, true)
}

func stableReadAt(n *Node, t TID, maxLen int, requireLatest bool) (bool, TID, []byte) {
	var retries int64
	defer func() {
		if n.counters != nil && retries > 0 {
			n.counters.AvgReadRetries.Offer(retries)
		}
	}()
	for {
		v := n.hdr.StableVersion(n.counters)
		next := n.nextAt(v)
		found := n.version <= t

		var startTID TID
		var payload []byte
		if found {
			if requireLatest && !isLatest(v) {
				return false, 0, nil
			}
			startTID = n.version
			readLen := int(n.size)
			if readLen > maxLen {
				readLen = maxLen
			}
			payload = append([]byte(nil), n.payload()[:readLen]...)
		}

		if !n.hdr.CheckVersion(v) {
			retries++
			continue
		}

		if found {
			return true, startTID, payload
		}
		if next != nil {
			return stableReadAt(next, t, maxLen, false)
		}
		// Walked off the tail: the record is treated as existing, deleted,
		// since a chain is never truncated while any prior version remains
		// the newest satisfying version for a live reader.
		return true, MinTID, nil
	}
}

// IsLatestVersion reports, without any synchronization, whether n is
// currently the chain head and not behind t. Callers without their own
// synchronization should prefer StableIsLatestVersion.
func (n *Node) IsLatestVersion(t TID) bool {
	v := n.hdr.word.Load()
	return isLatest(v) && n.version <= t
}

// StableIsLatestVersion is IsLatestVersion bounded by a 16-spin budget: it
// returns false (an "unknown" answer a contending caller may treat as a
// reason to decide differently) rather than waiting indefinitely for a
// writer to unlock, and rather than retrying forever if the header keeps
// changing underneath it.
func (n *Node) StableIsLatestVersion(t TID) bool {
	v, ok := n.hdr.TryStableVersion(stableSpinBudget)
	if !ok {
		return false
	}
	result := isLatest(v) && n.version <= t
	if !result {
		return false
	}
	return n.hdr.CheckVersion(v)
}

// LatestValueIsNil reports, without any synchronization, whether n is the
// chain head and logically deleted (size 0) at its current version.
func (n *Node) LatestValueIsNil() bool {
	v := n.hdr.word.Load()
	return isLatest(v) && n.size == 0
}

// StableLatestValueIsNil is LatestValueIsNil bounded by the same 16-spin
// budget as StableIsLatestVersion.
func (n *Node) StableLatestValueIsNil() bool {
	v, ok := n.hdr.TryStableVersion(stableSpinBudget)
	if !ok {
		return false
	}
	result := isLatest(v) && n.size == 0
	if !result {
		return false
	}
	return n.hdr.CheckVersion(v)
}
