package tuple

// OverwritePolicy is the transaction manager's judgment of whether the
// prior version at oldTID may be discarded in favor of newTID — e.g.
// because they belong to the same transaction, or the prior version was
// never committed. The tuple package calls this exactly once per write and
// never interprets the TIDs itself; see internal/txmgr for a reference
// implementation.
type OverwritePolicy interface {
	CanOverwrite(oldTID, newTID TID) bool
}

// OverwritePolicyFunc adapts a plain function to OverwritePolicy.
type OverwritePolicyFunc func(oldTID, newTID TID) bool

// CanOverwrite implements OverwritePolicy.
func (f OverwritePolicyFunc) CanOverwrite(oldTID, newTID TID) bool { return f(oldTID, newTID) }

// WriteRecordAt installs a new version at TID t on n, which the caller must
// already hold locked, and which must already be the chain's latest node.
//
// It returns spilled, true iff a new non-latest node was pushed into the
// chain, and replacement, non-nil iff a new head node must replace n in the
// index (in which case n remains linked from replacement.Next() until
// reclamation, and the index update is the caller's responsibility — see
// §4D). Unlock must be called by the caller after WriteRecordAt returns, so
// that every field mutation it made is published by a single release-store.
func WriteRecordAt(n *Node, policy OverwritePolicy, t TID, value []byte) (spilled bool, replacement *Node) {
	assertf(n.IsLocked(), "tuple: WriteRecordAt: node is not locked")
	assertf(n.IsLatest(), "tuple: WriteRecordAt: node is not latest")

	sz := len(value)
	if sz > MaxNodeSize {
		panic("tuple: WriteRecordAt: value exceeds MaxNodeSize")
	}
	if sz == 0 && n.counters != nil {
		n.counters.LogicalDeletes.Add(1)
	}

	if policy.CanOverwrite(n.version, t) {
		if sz <= int(n.allocSize) {
			n.version = t
			n.size = uint32(sz)
			copy(n.buf, value)
			return false, nil
		}
		// Not enough room in place: the old version is wasteful to keep
		// around, but keeping it simplifies the reclamation path, so it's
		// kept in the chain anyway rather than special-cased away.
		rep := Alloc(t, value, n, true, n.counters)
		n.hdr.setLatest(false)
		if n.counters != nil {
			n.counters.InplaceBufInsufficient.Add(1)
		}
		return false, rep
	}

	// The prior version must be preserved: either spill it into the chain
	// (only possible for big nodes with room to overwrite in place) or
	// allocate a new head.
	if n.counters != nil {
		n.counters.Spills.Add(1)
		n.counters.AvgSpillLen.Offer(int64(n.size))
	}
	if n.IsBigType() && sz <= int(n.allocSize) {
		spill := Alloc(n.version, n.payload(), n.next, false, n.counters)
		n.next = spill
		n.version = t
		n.size = uint32(sz)
		copy(n.buf, value)
		return true, nil
	}

	rep := Alloc(t, value, n, true, n.counters)
	n.hdr.setLatest(false)
	if n.counters != nil {
		n.counters.InplaceBufInsufficientOnSpill.Add(1)
	}
	return true, rep
}
