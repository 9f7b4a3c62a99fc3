// Package index is a reference key-to-tuple-chain index: the sharded map a
// real deployment would put in front of the tuple package, wiring it
// together with a transaction manager and a reclamation domain the way
// SPEC_FULL.md's "To the index" and "To the transaction manager" sections
// describe those collaborators. It is grounded on
// seh-mvcc-key-value-database/internal/db's ShardedStore and rwMutex,
// adapted so each shard's map holds a *tuple.Node chain head rather than
// that package's own recordVersion chain.
//
// Unlike the teacher's store, a write here is visible the instant it
// returns: tuple has no notion of an uncommitted, not-yet-visible version
// staged for later resolution, so WithinTransaction's commit flag only
// controls whether the transaction's ID is reported finished to the
// transaction manager, not whether its writes take effect. A deployment
// wanting deferred visibility would need to build that into its
// OverwritePolicy and the caller's discipline around WithinTransaction, not
// into this package.
package index

import (
	"context"
	"errors"
	"hash/maphash"

	"sehlabs.com/tuple"
	"sehlabs.com/tuple/internal/reclaim"
	"sehlabs.com/tuple/internal/txmgr"
)

type (
	// Key is the type of the primary record identifier used in the index.
	Key []byte
	// Value is the type of payload stored by each record in the index. A
	// zero-length Value is indistinguishable from a deleted record, since
	// that is how the tuple package itself represents a tombstone.
	Value []byte
)

// KeyShardProjection assigns a key to an opaque shard-selection value.
type KeyShardProjection func(Key) uint64

type shardedStoreOptions struct {
	initialHeadMapCapacity int
	keyShardProjection     KeyShardProjection
	nodeCapacity           int
	counters               *tuple.Counters
}

// ShardedStoreOption customizes a Store's behavior at construction.
type ShardedStoreOption func(*shardedStoreOptions) error

// WithInitialHeadMapCapacity establishes the positive number of keys per
// shard for which to allocate sufficient map capacity initially.
func WithInitialHeadMapCapacity(n int) ShardedStoreOption {
	return func(o *shardedStoreOptions) error {
		if n < 1 {
			return errors.New("initial head map capacity must be positive")
		}
		o.initialHeadMapCapacity = n
		return nil
	}
}

// WithKeyShardProjection establishes a deterministic, evenly distributed
// projection from key to shard.
func WithKeyShardProjection(p KeyShardProjection) ShardedStoreOption {
	return func(o *shardedStoreOptions) error {
		if p == nil {
			return errors.New("key shard projection must be non-nil")
		}
		o.keyShardProjection = p
		return nil
	}
}

// WithNodeCapacity establishes the inline buffer capacity requested for a
// key's first node (see tuple.AllocFirst). Replacement heads that
// tuple.WriteRecordAt allocates once a write outgrows that buffer are sized
// to the value they carry, not to this capacity.
func WithNodeCapacity(n int) ShardedStoreOption {
	return func(o *shardedStoreOptions) error {
		if n < 1 {
			return errors.New("node capacity must be positive")
		}
		o.nodeCapacity = n
		return nil
	}
}

// WithCounters attaches observability counters to every node the store
// allocates.
func WithCounters(c *tuple.Counters) ShardedStoreOption {
	return func(o *shardedStoreOptions) error {
		o.counters = c
		return nil
	}
}

type headShard struct {
	lock       rwMutex
	headsByKey map[string]*tuple.Node
}

// TODO(seh): Consider accepting this as a parameter, though we then can't fix the array size, and
// must work with a slice.
const shardDegree = 512

// Store indexes one tuple chain per key across a fixed number of shards,
// each independently locked, backed by a transaction manager for TID
// issuance and overwrite policy and a reclamation domain for deferred node
// destruction.
type Store struct {
	keyShardProjection KeyShardProjection
	txns               *txmgr.Manager
	reclaimer          *reclaim.Domain
	nodeCapacity       int
	counters           *tuple.Counters
	shards             [shardDegree]headShard
}

// NewShardedStore creates an empty Store ready to accept records, bound to
// the given transaction manager and reclamation domain.
func NewShardedStore(txns *txmgr.Manager, reclaimer *reclaim.Domain, opts ...ShardedStoreOption) (*Store, error) {
	seed := maphash.MakeSeed()
	options := shardedStoreOptions{
		keyShardProjection: func(k Key) uint64 {
			return maphash.Bytes(seed, k)
		},
		initialHeadMapCapacity: 50,
		nodeCapacity:           64,
	}
	for _, o := range opts {
		if err := o(&options); err != nil {
			return nil, err
		}
	}
	s := Store{
		keyShardProjection: options.keyShardProjection,
		txns:               txns,
		reclaimer:          reclaimer,
		nodeCapacity:       options.nodeCapacity,
		counters:           options.counters,
	}
	for i := range s.shards {
		s.shards[i].lock = makeLock()
		s.shards[i].headsByKey = make(map[string]*tuple.Node, options.initialHeadMapCapacity)
	}
	return &s, nil
}

func (s *Store) shardFor(k Key) *headShard {
	return &s.shards[s.keyShardProjection(k)%shardDegree]
}

func (s *Store) replaceHead(sh *headShard, k Key, replacement *tuple.Node) {
	sh.lock.Lock()
	sh.headsByKey[string(k)] = replacement
	sh.lock.Unlock()
}

// Transaction allows observing and mutating the index within one
// transaction's snapshot, grounded on db.Transaction's method set.
type Transaction interface {
	// Get retrieves the value visible to this transaction for the given
	// key, or ErrRecordDoesNotExist if no such value exists.
	Get(ctx context.Context, k Key) (Value, error)
	// Insert adds a value for a key with no value currently visible. It
	// returns ErrRecordExists if one is already visible.
	Insert(ctx context.Context, k Key, v Value) error
	// Update replaces the value for a key with a value currently visible.
	// It returns ErrRecordDoesNotExist if none is.
	Update(ctx context.Context, k Key, v Value) error
	// Upsert behaves like Insert if no value is currently visible for k, or
	// like Update otherwise.
	Upsert(ctx context.Context, k Key, v Value) error
	// Delete removes the value visible to this transaction for the given
	// key, reporting whether it removed one.
	Delete(ctx context.Context, k Key) (error, bool)
}

type storeTransaction struct {
	store  *Store
	txID   tuple.TID
	policy tuple.OverwritePolicy
}

var _ Transaction = (*storeTransaction)(nil)

// WithinTransaction claims a TID from the store's transaction manager, runs
// f against a Transaction bound to it, and reports the transaction finished
// to the manager once f returns, regardless of the commit flag f reports
// (see the package doc for why commit doesn't gate visibility here).
func (s *Store) WithinTransaction(ctx context.Context, f func(context.Context, Transaction) (commit bool, err error)) error {
	if f == nil {
		return errors.New("transaction-consuming function must be non-nil")
	}
	txID := s.txns.Begin()
	defer s.txns.Finish(txID)
	tx := &storeTransaction{store: s, txID: txID, policy: s.txns.Policy(txID)}
	_, err := f(ctx, tx)
	return err
}

func (t *storeTransaction) Get(ctx context.Context, k Key) (Value, error) {
	sh := t.store.shardFor(k)
	for {
		if !sh.lock.TryRLockUntil(ctx) {
			return nil, ctx.Err()
		}
		head, ok := sh.headsByKey[string(k)]
		sh.lock.RUnlock()
		if !ok {
			return nil, recordDoesNotExist(k)
		}
		stable, _, payload := tuple.StableRead(head, t.txID, tuple.NoLimit)
		if !stable {
			continue // head was replaced concurrently; refetch it from the shard
		}
		if len(payload) == 0 {
			return nil, recordDoesNotExist(k)
		}
		return Value(payload), nil
	}
}

var errHeadAlreadyPresent = errors.New("index: head already present")

func (t *storeTransaction) insertNewHead(ctx context.Context, sh *headShard, k Key, v Value) error {
	if !sh.lock.TryLockUntil(ctx) {
		return ctx.Err()
	}
	if _, ok := sh.headsByKey[string(k)]; ok {
		sh.lock.Unlock()
		return errHeadAlreadyPresent
	}
	head := tuple.AllocFirst(true, t.store.nodeCapacity, t.store.counters)
	head.Lock()
	_, replacement := tuple.WriteRecordAt(head, t.policy, t.txID, v)
	head.Unlock()
	if replacement != nil {
		head = replacement
	}
	sh.headsByKey[string(k)] = head
	sh.lock.Unlock()
	return nil
}

func (t *storeTransaction) Insert(ctx context.Context, k Key, v Value) error {
	if len(v) == 0 {
		return errors.New("index: cannot insert a zero-length value; tuple treats zero length as delete")
	}
	sh := t.store.shardFor(k)
	for {
		if !sh.lock.TryRLockUntil(ctx) {
			return ctx.Err()
		}
		head, ok := sh.headsByKey[string(k)]
		sh.lock.RUnlock()
		if !ok {
			err := t.insertNewHead(ctx, sh, k, v)
			if errors.Is(err, errHeadAlreadyPresent) {
				continue // someone else created the head first; go through the fast path
			}
			return err
		}
		head.Lock()
		if !head.IsLatest() {
			head.Unlock()
			continue // head was replaced concurrently
		}
		if head.Size() > 0 {
			head.Unlock()
			return recordExists(k)
		}
		_, replacement := tuple.WriteRecordAt(head, t.policy, t.txID, v)
		head.Unlock()
		if replacement != nil {
			t.store.replaceHead(sh, k, replacement)
		}
		return nil
	}
}

func (t *storeTransaction) Update(ctx context.Context, k Key, v Value) error {
	sh := t.store.shardFor(k)
	for {
		if !sh.lock.TryRLockUntil(ctx) {
			return ctx.Err()
		}
		head, ok := sh.headsByKey[string(k)]
		sh.lock.RUnlock()
		if !ok {
			return recordDoesNotExist(k)
		}
		head.Lock()
		if !head.IsLatest() {
			head.Unlock()
			continue
		}
		if head.Size() == 0 {
			head.Unlock()
			return recordDoesNotExist(k)
		}
		_, replacement := tuple.WriteRecordAt(head, t.policy, t.txID, v)
		head.Unlock()
		if replacement != nil {
			t.store.replaceHead(sh, k, replacement)
		}
		return nil
	}
}

func (t *storeTransaction) Upsert(ctx context.Context, k Key, v Value) error {
	for {
		err := t.Update(ctx, k, v)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrRecordDoesNotExist) {
			err = t.Insert(ctx, k, v)
			if err == nil {
				return nil
			}
			if errors.Is(err, ErrRecordExists) {
				continue
			}
		}
		return err
	}
}

func (t *storeTransaction) Delete(ctx context.Context, k Key) (error, bool) {
	sh := t.store.shardFor(k)
	for {
		if !sh.lock.TryRLockUntil(ctx) {
			return ctx.Err(), false
		}
		head, ok := sh.headsByKey[string(k)]
		sh.lock.RUnlock()
		if !ok {
			return nil, false
		}
		head.Lock()
		if !head.IsLatest() {
			head.Unlock()
			continue
		}
		if head.Size() == 0 {
			head.Unlock()
			return nil, false
		}
		_, replacement := tuple.WriteRecordAt(head, t.policy, t.txID, nil)
		head.Unlock()
		if replacement != nil {
			t.store.replaceHead(sh, k, replacement)
		}
		return nil, true
	}
}

// Compact removes every key whose head is both tombstoned (no visible
// value) and has no older history left to retain, releasing its sole
// remaining node to the reclamation domain. It returns the number of keys
// removed. This is the vacuum procedure the teacher's store.go left as a
// TODO; tuple's GCChain and the reclaim domain are what make it safe here.
func (s *Store) Compact() int {
	removed := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.lock.Lock()
		for k, head := range sh.headsByKey {
			if head.IsLocked() || head.Size() > 0 || head.Next() != nil {
				continue
			}
			delete(sh.headsByKey, k)
			tuple.GCChain(head, s.reclaimer)
			removed++
		}
		sh.lock.Unlock()
	}
	return removed
}
