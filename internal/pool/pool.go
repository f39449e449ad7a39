// Package pool runs independent tasks on a bounded set of goroutines.
package pool

import (
	"context"
	"sync"
)

// DefaultWorkers is used when a non-positive worker count is given.
const DefaultWorkers = 1

// Result summarizes a pool run.
type Result struct {
	Succeeded int
	Failed    int
	// Skipped counts items never started because the context was cancelled.
	Skipped int
	// LastErr is the most recently recorded task error.
	LastErr error
}

// Run calls task for each item with at most workers tasks in flight. Task
// failures are counted and do not stop the run; completion order is not
// defined. Cancelling ctx stops new tasks from being scheduled but does not
// interrupt running ones.
func Run[T any](ctx context.Context, workers int, items []T, task func(ctx context.Context, item T) error) Result {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	var (
		waitGroup sync.WaitGroup
		mutex     sync.Mutex
		result    Result
	)

	slots := make(chan struct{}, workers)

	skipped := 0

	for index, item := range items {
		if !acquire(ctx, slots) {
			skipped = len(items) - index

			break
		}

		waitGroup.Add(1)

		go func(item T) {
			defer waitGroup.Done()
			defer func() { <-slots }()

			err := task(ctx, item)

			mutex.Lock()
			defer mutex.Unlock()

			if err != nil {
				result.Failed++
				result.LastErr = err

				return
			}

			result.Succeeded++
		}(item)
	}

	waitGroup.Wait()

	result.Skipped = skipped

	return result
}

// acquire takes a worker slot unless ctx is done first.
func acquire(ctx context.Context, slots chan struct{}) bool {
	if ctx.Err() != nil {
		return false
	}

	select {
	case <-ctx.Done():
		return false
	case slots <- struct{}{}:
		return true
	}
}
