// Package future provides the single-assignment result handle returned by
// the throttling engine for every queued request.
//
// A Handle settles exactly once: the first Complete or Fail wins and every
// later attempt is a no-op. This is what makes the timeout race safe — the
// timeout timer and the real completion may both try to settle, and
// whichever arrives first decides the observed outcome.
package future

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Handle is a single-assignment future for a result of type R.
// It is safe for concurrent use by any number of settlers and waiters.
type Handle[R any] struct {
	mu      sync.Mutex
	done    chan struct{}
	settled bool
	value   R
	err     error
}

// New creates an unresolved Handle.
func New[R any]() *Handle[R] {
	return &Handle[R]{done: make(chan struct{})}
}

// Complete resolves the handle with a value. Returns true if this call
// settled the handle, false if it was already settled.
func (h *Handle[R]) Complete(value R) bool {
	return h.settle(value, nil)
}

// Fail resolves the handle with an error. Returns true if this call
// settled the handle, false if it was already settled.
func (h *Handle[R]) Fail(err error) bool {
	var zero R
	return h.settle(zero, err)
}

func (h *Handle[R]) settle(value R, err error) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.settled {
		return false
	}
	h.settled = true
	h.value = value
	h.err = err
	close(h.done)
	return true
}

// Done returns a channel that is closed when the handle settles.
func (h *Handle[R]) Done() <-chan struct{} {
	return h.done
}

// Settled reports whether the handle has been resolved.
func (h *Handle[R]) Settled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.settled
}

// Wait blocks until the handle settles or the context is done.
// A context error does not settle the handle — the caller merely stops
// waiting; the request stays in flight.
func (h *Handle[R]) Wait(ctx context.Context) (R, error) {
	select {
	case <-h.done:
		return h.value, h.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

// Result returns the settled value and error. It must only be called
// after Done is closed; before that it returns zero values.
func (h *Handle[R]) Result() (R, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.value, h.err
}

// All waits for every handle and returns their values in order.
// The first failure cancels the remaining waits and is returned.
// Use this to join fan-out work with observable completion instead of
// detaching background goroutines.
func All[R any](ctx context.Context, handles ...*Handle[R]) ([]R, error) {
	results := make([]R, len(handles))

	g, ctx := errgroup.WithContext(ctx)
	for i, h := range handles {
		g.Go(func() error {
			v, err := h.Wait(ctx)
			if err != nil {
				return err
			}
			results[i] = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
