package usecase

import (
	"context"
	"runtime"
)

// WorkerPool bounds how many CPU-bound stages run at once.
type WorkerPool struct {
	slots chan struct{}
}

// NewWorkerPool returns a pool of size workers; size <= 0 means runtime.NumCPU().
func NewWorkerPool(size int) *WorkerPool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &WorkerPool{slots: make(chan struct{}, size)}
}

// Do runs fn once a slot is free. It gives up with ctx.Err() if ctx ends first.
func (p *WorkerPool) Do(ctx context.Context, fn func() error) error {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.slots }()
	return fn()
}

// Size returns the number of slots.
func (p *WorkerPool) Size() int { return cap(p.slots) }

// InUse returns the number of occupied slots.
func (p *WorkerPool) InUse() int { return len(p.slots) }
