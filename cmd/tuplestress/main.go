// Command tuplestress hammers an internal/index Store with concurrent writers
// and readers and reports the tuple package's observability counters,
// standing in for a unit test whose timeout budget a contention smoke test
// like this one doesn't fit: exercising "finite retries under contention" is
// a matter of running it and watching retry counts stay bounded, not
// something a single assertion can capture.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"sehlabs.com/tuple"
	"sehlabs.com/tuple/internal/index"
	"sehlabs.com/tuple/internal/reclaim"
	"sehlabs.com/tuple/internal/txmgr"
)

var (
	writerCount  int
	readerCount  int
	keyCount     int
	nodeCapacity int
	runDuration  time.Duration
	compactEvery time.Duration
)

func fatalf(format string, a ...any) {
	w := os.Stderr
	if _, err := fmt.Fprintf(w, format, a...); err == nil {
		fmt.Fprintln(w)
	}
	os.Exit(1)
}

func init() {
	flag.IntVar(&writerCount, "writers", 8, `Number of concurrent writer goroutines`)
	flag.IntVar(&readerCount, "readers", 8, `Number of concurrent reader goroutines`)
	flag.IntVar(&keyCount, "keys", 64, `Number of distinct keys contended over`)
	flag.IntVar(&nodeCapacity, "node-capacity", 32, `Requested inline buffer capacity per node`)
	flag.DurationVar(&runDuration, "duration", 5*time.Second, `How long to run before reporting and exiting`)
	flag.DurationVar(&compactEvery, "compact-interval", 500*time.Millisecond, `How often to run the index's vacuum pass`)
}

func keyFor(i int) index.Key { return index.Key(strconv.Itoa(i)) }

func runWriters(ctx context.Context, wg *sync.WaitGroup, store *index.Store, successes, conflicts *int64) {
	for i := 0; i < writerCount; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for ctx.Err() == nil {
				k := keyFor(rng.Intn(keyCount))
				v := index.Value(fmt.Sprintf("v%d", rng.Int63()))
				err := store.WithinTransaction(ctx, func(ctx context.Context, tx index.Transaction) (bool, error) {
					return true, tx.Upsert(ctx, k, v)
				})
				if err == nil {
					atomic.AddInt64(successes, 1)
				} else if ctx.Err() == nil {
					atomic.AddInt64(conflicts, 1)
				}
			}
		}(int64(i) + 1)
	}
}

func runReaders(ctx context.Context, wg *sync.WaitGroup, store *index.Store, reads, misses *int64) {
	for i := 0; i < readerCount; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for ctx.Err() == nil {
				k := keyFor(rng.Intn(keyCount))
				err := store.WithinTransaction(ctx, func(ctx context.Context, tx index.Transaction) (bool, error) {
					_, err := tx.Get(ctx, k)
					return false, err
				})
				atomic.AddInt64(reads, 1)
				if err != nil {
					atomic.AddInt64(misses, 1)
				}
			}
		}(int64(i) + 1000)
	}
}

func runCompactor(ctx context.Context, wg *sync.WaitGroup, store *index.Store, compacted *int64) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(compactEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				atomic.AddInt64(compacted, int64(store.Compact()))
			}
		}
	}()
}

func main() {
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	runCtx, stopRun := context.WithTimeout(ctx, runDuration)
	defer stopRun()

	var counters tuple.Counters
	reclaimDomain := reclaim.NewDomain()
	store, err := index.NewShardedStore(&txmgr.Manager{}, reclaimDomain,
		index.WithNodeCapacity(nodeCapacity),
		index.WithCounters(&counters),
	)
	if err != nil {
		fatalf("Failed to create index: %v", err)
	}

	var successes, conflicts, reads, misses, compacted int64
	var wg sync.WaitGroup
	runWriters(runCtx, &wg, store, &successes, &conflicts)
	runReaders(runCtx, &wg, store, &reads, &misses)
	runCompactor(runCtx, &wg, store, &compacted)

	wg.Wait()
	reclaimDomain.Advance()
	reclaimDomain.Collect()

	fmt.Printf("writes: %d succeeded, %d conflicted\n", successes, conflicts)
	fmt.Printf("reads: %d attempted, %d missed\n", reads, misses)
	fmt.Printf("compact: %d keys removed\n", compacted)
	fmt.Printf("spills: %d, in-place-overflow replacements: %d, spill-overflow replacements: %d\n",
		counters.Spills.Value(), counters.InplaceBufInsufficient.Value(), counters.InplaceBufInsufficientOnSpill.Value())
	fmt.Printf("avg read retries: %.3f (n=%d), avg lock spins: %.3f (n=%d)\n",
		counters.AvgReadRetries.Mean(), counters.AvgReadRetries.Count(),
		counters.AvgLockAcquireSpins.Mean(), counters.AvgLockAcquireSpins.Count())
	fmt.Printf("bytes allocated: %d, bytes freed: %d, pending reclamation: %d\n",
		counters.BytesAllocated.Value(), counters.BytesFreed.Value(), reclaimDomain.PendingCount())
}
