package resilience

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Pool bounds how many CPU-bound operations run at once.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool creates a Pool running at most limit operations concurrently.
// A limit below 1 uses GOMAXPROCS.
func NewPool(limit int) *Pool {
	if limit < 1 {
		limit = runtime.GOMAXPROCS(0)
	}
	return &Pool{sem: semaphore.NewWeighted(int64(limit))}
}

// Run waits for a slot, runs fn and releases the slot. It returns ctx.Err()
// if ctx ends while waiting. A nil pool runs fn directly.
func (p *Pool) Run(ctx context.Context, fn func() error) error {
	if p == nil {
		return fn()
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn()
}
