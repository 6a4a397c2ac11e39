package ecs

import (
	"context"
	"sync/atomic"

	"github.com/argus-labs/gecs/pkg/assert"
	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

// Executor runs data-parallel jobs. Every worker goroutine holds one queue slot for its whole
// lifetime, taken from a shared pool, so no two goroutines ever enqueue into the same slot.
//
// Jobs must not call ParallelFor or Do from inside fn: a worker already holds a slot and waiting
// for another one can deadlock when the pool is exhausted.
type Executor struct {
	workers int
	tokens  chan int // Free queue slots
}

// batchesPerWorker controls how finely ParallelFor splits its range.
const batchesPerWorker = 4

// NewExecutor creates an executor running at most workers goroutines over slots queue slots.
func NewExecutor(workers, slots int) *Executor {
	assert.That(workers > 0, "executor needs at least one worker")
	assert.That(slots > 0, "executor needs at least one slot")

	tokens := make(chan int, slots)
	for slot := range slots {
		tokens <- slot
	}
	return &Executor{workers: min(workers, slots), tokens: tokens}
}

// Workers returns the maximum number of goroutines a single ParallelFor uses.
func (e *Executor) Workers() int {
	return e.workers
}

// ParallelFor calls fn for every i in [0, n) from up to Workers goroutines. slot is the queue slot
// owned by the calling goroutine. The first error cancels the remaining work and is returned.
func (e *Executor) ParallelFor(ctx context.Context, n int, fn func(slot, i int) error) error {
	if n <= 0 {
		return nil
	}

	workers := min(e.workers, n)
	batch := max(1, n/(workers*batchesPerWorker))
	var next atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	for range workers {
		g.Go(func() error {
			slot, err := e.acquire(ctx)
			if err != nil {
				return err
			}
			defer e.release(slot)

			for {
				if err := ctx.Err(); err != nil {
					return eris.Wrap(err, "parallel for cancelled")
				}
				start := int(next.Add(int64(batch))) - batch
				if start >= n {
					return nil
				}
				for i := start; i < min(start+batch, n); i++ {
					if err := fn(slot, i); err != nil {
						return eris.Wrapf(err, "job failed at index %d", i)
					}
				}
			}
		})
	}
	return g.Wait()
}

// Do runs fn on the calling goroutine with an exclusive queue slot.
func (e *Executor) Do(ctx context.Context, fn func(slot int) error) error {
	slot, err := e.acquire(ctx)
	if err != nil {
		return err
	}
	defer e.release(slot)
	return fn(slot)
}

func (e *Executor) acquire(ctx context.Context) (int, error) {
	select {
	case slot := <-e.tokens:
		return slot, nil
	case <-ctx.Done():
		return 0, eris.Wrap(ctx.Err(), "waiting for a queue slot")
	}
}

func (e *Executor) release(slot int) {
	e.tokens <- slot
}
