// Package tuple implements the versioned record node ("tuple") that sits
// underneath a multi-version concurrency-control (MVCC) database index.
//
// A tuple is the per-key cell an index maps to: it holds a record's current
// payload and the head of an ordered, newest-first chain of prior versions.
// Readers take a consistent snapshot of a tuple without ever blocking on a
// writer, using the optimistic protocol in StableRead; writers overwrite or
// extend a tuple under a short lock embedded in the tuple's header word.
//
// This package does not decide transaction IDs, does not validate
// serializability, and does not know about any particular index shape — see
// OverwritePolicy and Reclaimer for the two external collaborators it
// requires. Reference implementations of both live in this module's
// internal/txmgr and internal/reclaim packages.
package tuple
