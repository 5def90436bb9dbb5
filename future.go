//go:build !ios && !android && (amd64 || arm64)

package crtgo

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Future resolves once, when a resource has finished tearing down. Any
// number of goroutines may wait on it.
type Future struct {
	done     chan struct{}
	resolved atomic.Bool
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// complete resolves the future. It returns false if the future had already
// been resolved, in which case nothing changes.
func (f *Future) complete() bool {
	if !f.resolved.CompareAndSwap(false, true) {
		return false
	}
	close(f.done)
	return true
}

// Done returns a channel that is closed when the future resolves.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// IsDone reports whether the future has resolved.
func (f *Future) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the future resolves or ctx is done. Abandoning the wait
// does not cancel the teardown.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitAll waits for every future to resolve. It returns the context error
// if ctx ends first.
func WaitAll(ctx context.Context, futures ...*Future) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, f := range futures {
		if f == nil {
			continue
		}
		g.Go(func() error {
			return f.Wait(gctx)
		})
	}
	return g.Wait()
}
