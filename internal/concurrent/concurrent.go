// Package concurrent implements the bounded worker fan-out and outer/inner
// concurrency split spec.md §5 describes: "each top-level request carries a
// concurrent target, split between outer parallelism (chunks within a
// subset, inner chunks within a shard) and inner parallelism (the chain's
// recommended concurrency for a single chunk) ... outer × inner ≤ target".
//
// No errgroup-style dependency appears anywhere in the corpus; fan-out here
// follows the plain sync.WaitGroup + bounded-channel idiom used throughout
// the pack (e.g. a worker pool draining a jobs channel and signalling
// completion via WaitGroup, as in arx-os-arxos's ParallelPipeline).
package concurrent

import (
	"context"
	"sync"
)

// Split computes an (outer, inner) pair with outer*inner <= target,
// favoring outer parallelism (one goroutine per chunk) up to the number of
// chunks, and handing any remaining budget to inner (per-chunk codec)
// parallelism (spec.md §5).
func Split(target, numChunks int) (outer, inner int) {
	if target <= 0 {
		target = 1
	}
	if numChunks <= 0 {
		numChunks = 1
	}
	outer = target
	if outer > numChunks {
		outer = numChunks
	}
	if outer < 1 {
		outer = 1
	}
	inner = target / outer
	if inner < 1 {
		inner = 1
	}
	return outer, inner
}

// ForEach runs fn(i) for i in [0, n) using at most concurrency goroutines,
// waiting for all to finish and returning the first non-nil error
// encountered (all goroutines still run to completion; this does not cancel
// in-flight work on first error, consistent with spec.md §5's "cancellation
// is by dropping the future" model, which this synchronous helper doesn't
// attempt to emulate).
func ForEach(ctx context.Context, concurrency, n int, fn func(ctx context.Context, i int) error) error {
	if n == 0 {
		return nil
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	if concurrency > n {
		concurrency = n
	}

	jobs := make(chan int)
	errs := make([]error, n)
	var wg sync.WaitGroup

	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				errs[i] = fn(ctx, i)
			}
		}()
	}

	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Gather is ForEach's value-returning counterpart: it collects one result
// per index alongside the first error, for fan-out work (e.g. decoding each
// inner chunk of a shard) whose individual outputs must be assembled by the
// caller afterward.
func Gather[T any](ctx context.Context, concurrency, n int, fn func(ctx context.Context, i int) (T, error)) ([]T, error) {
	results := make([]T, n)
	err := ForEach(ctx, concurrency, n, func(ctx context.Context, i int) error {
		r, err := fn(ctx, i)
		if err != nil {
			return err
		}
		results[i] = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
