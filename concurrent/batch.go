// Package concurrent is an optional outer facade over the otherwise
// synchronous core: it runs a per-object filter or crypt step across many
// references at once, bounded by a semaphore, letting an outer layer
// offload CPU-bound work without the core itself needing to be
// concurrency-aware.
package concurrent

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/benoitkugler/pdfgraph/object"
)

// Work computes the result for one reference, e.g. decoding a stream's
// filter pipeline or decrypting its bytes. It must be safe to call from
// multiple goroutines concurrently as long as each call touches only its
// own ref's data.
type Work func(ref object.Reference) (object.Object, error)

// Batch runs fn once per entry in refs, running at most maxConcurrent
// calls at a time (maxConcurrent <= 0 defaults to runtime.NumCPU()).
// Every ref gets an attempt regardless of whether earlier ones failed;
// results and errs are keyed by reference and are disjoint — a ref
// appears in exactly one of them.
func Batch(ctx context.Context, refs []object.Reference, maxConcurrent int, fn Work) (results map[object.Reference]object.Object, errs map[object.Reference]error) {
	if maxConcurrent <= 0 {
		maxConcurrent = runtime.NumCPU()
	}
	sem := semaphore.NewWeighted(int64(maxConcurrent))

	results = make(map[object.Reference]object.Object, len(refs))
	errs = make(map[object.Reference]error)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, ref := range refs {
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			errs[ref] = fmt.Errorf("concurrent: acquiring slot for %s: %w", ref, err)
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(ref object.Reference) {
			defer wg.Done()
			defer sem.Release(1)

			obj, err := fn(ref)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs[ref] = err
				return
			}
			results[ref] = obj
		}(ref)
	}

	wg.Wait()
	return results, errs
}
