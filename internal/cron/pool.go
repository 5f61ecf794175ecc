package cronrunner

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool bounds how many job handlers do blocking work at the same time.
type Pool struct {
	sem *semaphore.Weighted
}

func NewPool(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

// Run waits for a free slot, then runs fn and returns its error.
func (p *Pool) Run(ctx context.Context, fn func(context.Context) error) error {
	if p == nil || p.sem == nil {
		return fn(ctx)
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn(ctx)
}
