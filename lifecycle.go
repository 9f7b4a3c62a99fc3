package tuple

import "sehlabs.com/tuple/internal/evtcounter"

// Counters is the optional, observability-only instrumentation a caller may
// attach to a chain at construction time. A nil *Counters disables all
// counting. See internal/evtcounter for field documentation.
type Counters = evtcounter.Set

// Reclaimer is the tuple package's only requirement of an external
// epoch/quiescent-state reclamation service: register a node and its
// destructor, to be invoked once no reader could still hold a reference to
// it. internal/reclaim ships a reference implementation.
type Reclaimer interface {
	RegisterForFree(n *Node, destroy func(*Node))
}

// AllocFirst creates an empty, deleted chain head: version MinTID, size 0,
// latest set, with requestedCapacity bytes of inline buffer (rounded up to
// a size class). This is the starting point for a brand-new key: every
// logical tuple begins life as a single deleted entry at MinTID (invariant:
// "each logical node starts with one deleted entry at MIN_TID").
func AllocFirst(big bool, requestedCapacity int, counters *Counters) *Node {
	t := typeSmall
	extra := 0
	if big {
		t = typeBig
		extra = bigNodePrefixExtra
	}
	allocSize := roundUpSize(requestedCapacity)
	n := newNode(t, true, MinTID, 0, uint32(allocSize), nil, counters)
	if counters != nil {
		counters.Creates.Add(1)
		counters.BytesAllocated.Add(int64(allocSize + nodePrefixSize + extra))
	}
	return n
}

// Alloc creates a populated node — always big, since only big nodes can
// ever be linked into a chain's next pointer. It is used both for a
// replacement head (set_latest = true) and for a spilled, non-latest node
// (set_latest = false).
func Alloc(version TID, value []byte, next *Node, setLatest bool, counters *Counters) *Node {
	size := len(value)
	if size > MaxNodeSize {
		panic("tuple: Alloc: value exceeds MaxNodeSize")
	}
	allocSize := roundUpSize(size)
	n := newNode(typeBig, setLatest, version, uint32(size), uint32(allocSize), next, counters)
	copy(n.buf, value)
	if counters != nil {
		counters.Creates.Add(1)
		counters.BytesAllocated.Add(int64(allocSize + nodePrefixSize + bigNodePrefixExtra))
	}
	return n
}

// destroyNode asserts the node is deleted and unlocked (in debug builds;
// see assert_debug.go), then drops its references so the backing buffer and any
// chain tail become eligible for ordinary garbage collection. There is no
// manual free() in Go: dropping the last reference after the reclaimer
// decides it's safe is this package's equivalent of tuple.h's deleter().
func destroyNode(n *Node) {
	assertf(n.IsDeleted(), "tuple: destroyNode: node is not deleted")
	assertf(!n.IsLocked(), "tuple: destroyNode: node is locked")
	if n.counters != nil {
		n.counters.PhysicalDeletes.Add(1)
		n.counters.BytesFreed.Add(int64(len(n.buf) + nodePrefixSize))
	}
	n.buf = nil
	n.next = nil
}

// Release marks n deleted and hands it to the reclaimer for deferred
// destruction. Release(nil, r) is a no-op, regardless of r.
func Release(n *Node, r Reclaimer) {
	if n == nil {
		return
	}
	n.hdr.markDeleted()
	r.RegisterForFree(n, destroyNode)
}

// ReleaseNoRCU synchronously destroys n. The caller asserts that no
// concurrent reader can possibly still hold a reference to n — this bypasses
// the reclaimer entirely and must never be used on a node still reachable
// from a live index entry.
func ReleaseNoRCU(n *Node) {
	if n == nil {
		return
	}
	n.hdr.markDeleted()
	destroyNode(n)
}

// GCChain walks head, head.Next(), head.Next().Next(), ... and releases
// every node individually to the reclaimer. The chain's pointer structure
// is left intact during the walk (each node's own next is read before that
// node is released), so the reclaimer's destroy callback — invoked later,
// once safe — is the only place a node's memory actually goes away.
//
// Correctness of this depends entirely on the reclaimer's contract: it must
// never destroy a node while it remains the newest version satisfying some
// live reader's snapshot TID (see the "tail-of-chain semantics" open
// question in DESIGN.md). This package cannot enforce that on its own; it
// is the reclaimer's responsibility, the same way spec.md documents it.
func GCChain(head *Node, r Reclaimer) {
	for n := head; n != nil; {
		next := n.Next()
		Release(n, r)
		n = next
	}
}
