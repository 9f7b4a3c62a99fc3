// Package reclaim is a reference epoch/quiescent-state reclamation service
// satisfying tuple.Reclaimer. The tuple package treats reclamation as an
// external collaborator (spec.md §1/§6): this package exists so the tuple
// package is actually exercisable end-to-end by this repository's tests and
// stress harness, the way an index or transaction manager would supply one
// in a real deployment.
//
// The algorithm: the global epoch is a monotonically increasing counter.
// Readers Enter() before touching a tuple chain and Exit() when done;
// between those calls they hold a Guard recording the epoch they entered
// at. Writers hand a node to RegisterForFree once it's unlinked from every
// path a new reader could discover it through; a retired node is only
// actually destroyed once every currently active Guard entered after the
// epoch the node was retired at (and, with no active Guard, once the global
// epoch has moved past it) — i.e. no guard that could have observed the
// node as live is still open.
package reclaim

import (
	"sync"
	"sync/atomic"

	"sehlabs.com/tuple"
)

type retiredEntry struct {
	node      *tuple.Node
	destroy   func(*tuple.Node)
	retiredAt uint64
}

// Domain is one reclamation domain: typically one per process, or one per
// shard if independent epoch advancement is desirable.
type Domain struct {
	globalEpoch  atomic.Uint64
	nextReaderID atomic.Uint64
	readers      sync.Map // readerID uint64 -> *readerState

	retiredMu sync.Mutex
	retired   []retiredEntry
}

type readerState struct {
	epoch  uint64
	active atomic.Bool
}

var _ tuple.Reclaimer = (*Domain)(nil)

// NewDomain creates an empty reclamation domain with its epoch starting at
// 1 (0 is reserved to mean "no epoch recorded").
func NewDomain() *Domain {
	d := &Domain{}
	d.globalEpoch.Store(1)
	return d
}

// Guard represents one reader's active epoch membership. It must be
// released with Exit once the reader is done traversing.
type Guard struct {
	domain   *Domain
	state    *readerState
	readerID uint64
}

// Enter begins a read, recording the current epoch. The returned Guard
// must be released with Exit.
func (d *Domain) Enter() *Guard {
	readerID := d.nextReaderID.Add(1)
	state := &readerState{epoch: d.globalEpoch.Load()}
	state.active.Store(true)
	d.readers.Store(readerID, state)
	return &Guard{domain: d, state: state, readerID: readerID}
}

// Exit ends a read, allowing the domain to reclaim nodes retired at or
// after this guard's entry epoch once this was the last such guard.
func (g *Guard) Exit() {
	if g == nil || g.state == nil {
		return
	}
	g.state.active.Store(false)
	g.domain.readers.Delete(g.readerID)
}

// Epoch returns the epoch this guard entered at.
func (g *Guard) Epoch() uint64 {
	if g == nil || g.state == nil {
		return 0
	}
	return g.state.epoch
}

// Advance bumps the global epoch and returns the new value. A writer that
// wants to force prompt reclamation of what it just retired can call this
// after unlinking a node from the index.
func (d *Domain) Advance() uint64 {
	return d.globalEpoch.Add(1)
}

// CurrentEpoch returns the domain's current global epoch.
func (d *Domain) CurrentEpoch() uint64 {
	return d.globalEpoch.Load()
}

// RegisterForFree implements tuple.Reclaimer: it stamps n with the current
// epoch and queues destroy for later invocation once Collect determines no
// active guard could still observe n.
func (d *Domain) RegisterForFree(n *tuple.Node, destroy func(*tuple.Node)) {
	if n == nil {
		return
	}
	at := d.globalEpoch.Load()
	d.retiredMu.Lock()
	d.retired = append(d.retired, retiredEntry{node: n, destroy: destroy, retiredAt: at})
	d.retiredMu.Unlock()
}

// minActiveEpoch returns the smallest entry epoch among currently active
// guards, or the current global epoch if none are active.
func (d *Domain) minActiveEpoch() uint64 {
	min := d.globalEpoch.Load()
	d.readers.Range(func(_, v any) bool {
		state := v.(*readerState)
		if state.active.Load() && state.epoch < min {
			min = state.epoch
		}
		return true
	})
	return min
}

// Collect destroys every retired node whose retirement epoch is strictly
// older than every currently active guard's entry epoch, and reports how
// many were destroyed. It is safe to call Collect concurrently with
// Enter/Exit/RegisterForFree from other goroutines, and safe to call it
// from a background goroutine on a timer as well as synchronously from
// tests.
func (d *Domain) Collect() int {
	safe := d.minActiveEpoch()

	d.retiredMu.Lock()
	kept := d.retired[:0]
	var toDestroy []retiredEntry
	for _, e := range d.retired {
		if e.retiredAt < safe {
			toDestroy = append(toDestroy, e)
		} else {
			kept = append(kept, e)
		}
	}
	d.retired = kept
	d.retiredMu.Unlock()

	for _, e := range toDestroy {
		e.destroy(e.node)
	}
	return len(toDestroy)
}

// PendingCount reports how many retired nodes are still awaiting
// destruction.
func (d *Domain) PendingCount() int {
	d.retiredMu.Lock()
	defer d.retiredMu.Unlock()
	return len(d.retired)
}
