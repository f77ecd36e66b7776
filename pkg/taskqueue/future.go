package taskqueue

import (
	"context"
	"sync"
)

// Future is a single-settlement completion handle.
//
// An asynchronous callback returns a Future and settles it when its work
// finishes; the owning queue subscribes to the settlement to resume its
// bookkeeping. Task results are exposed through the same type.
type Future struct {
	mu      sync.Mutex
	done    chan struct{}
	settled bool
	err     error
	subs    []func(error)
}

// NewFuture creates an unsettled future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Settle resolves the future with the given error (nil means success).
// The first settlement wins; later calls are no-ops.
func (f *Future) Settle(err error) {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return
	}
	f.settled = true
	f.err = err
	subs := f.subs
	f.subs = nil
	close(f.done)
	f.mu.Unlock()

	for _, fn := range subs {
		fn(err)
	}
}

// Done returns a channel that is closed once the future settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Err returns the settlement error. It returns nil while the future is
// unsettled and after a successful settlement.
func (f *Future) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Await blocks until the future settles or ctx is done.
func (f *Future) Await(ctx context.Context) error {
	select {
	case <-f.done:
		return f.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// subscribe registers fn to run when the future settles. If the future has
// already settled, fn runs immediately on the calling goroutine.
func (f *Future) subscribe(fn func(error)) {
	f.mu.Lock()
	if f.settled {
		err := f.err
		f.mu.Unlock()
		fn(err)
		return
	}
	f.subs = append(f.subs, fn)
	f.mu.Unlock()
}
