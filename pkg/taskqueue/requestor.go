package taskqueue

import (
	"sync"
	"time"
)

// FlushRequestor asks the host environment to invoke the queue's Flush at
// the next appropriate opportunity. One requestor is built per queue, via a
// RequestorFactory, at construction time.
type FlushRequestor interface {
	// Request schedules an invocation of the flush callback. Requesting
	// while a request is already pending is a no-op. Implementations must
	// not invoke the callback synchronously from Request.
	Request()

	// Cancel retracts a pending request if it has not fired yet. Idempotent.
	Cancel()
}

// RequestorFactory builds a FlushRequestor bound to the given flush callback.
type RequestorFactory func(flush func()) FlushRequestor

// immediateRequestor invokes the flush on a fresh goroutine as soon as
// possible. This is the microtask-like variant: it is not clamped by any
// host timer and can starve other work under continuous scheduling
// pressure, which is why the scheduler pairs it with a clamp queue.
type immediateRequestor struct {
	flush func()
	mu    sync.Mutex
	gen   uint64
	armed bool
}

// NewImmediateRequestor returns a requestor that invokes flush on a new
// goroutine. It satisfies RequestorFactory.
func NewImmediateRequestor(flush func()) FlushRequestor {
	return &immediateRequestor{flush: flush}
}

func (r *immediateRequestor) Request() {
	r.mu.Lock()
	if r.armed {
		r.mu.Unlock()
		return
	}
	r.armed = true
	gen := r.gen
	r.mu.Unlock()

	go func() {
		r.mu.Lock()
		live := r.armed && r.gen == gen
		if live {
			r.armed = false
		}
		r.mu.Unlock()
		if live {
			r.flush()
		}
	}()
}

func (r *immediateRequestor) Cancel() {
	r.mu.Lock()
	if r.armed {
		r.armed = false
		r.gen++
	}
	r.mu.Unlock()
}

// timerRequestor invokes the flush after a fixed clamp interval, like a
// setTimeout-style macrotask. The clamp guarantees the host gets a chance
// to run between flushes.
type timerRequestor struct {
	flush func()
	clamp time.Duration
	mu    sync.Mutex
	timer *time.Timer
}

// NewTimerRequestor returns a factory for requestors that invoke flush
// after the given clamp interval has elapsed.
func NewTimerRequestor(clamp time.Duration) RequestorFactory {
	return func(flush func()) FlushRequestor {
		return &timerRequestor{flush: flush, clamp: clamp}
	}
}

// NewFrameRequestor returns a factory for requestors that invoke flush on a
// fixed frame cadence, like an animation-frame callback.
func NewFrameRequestor(interval time.Duration) RequestorFactory {
	return NewTimerRequestor(interval)
}

func (r *timerRequestor) Request() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		return
	}
	r.timer = time.AfterFunc(r.clamp, func() {
		r.mu.Lock()
		r.timer = nil
		r.mu.Unlock()
		r.flush()
	})
}

func (r *timerRequestor) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// ManualRequestor records flush requests without scheduling anything. The
// embedding host (or a test) observes Requested and invokes Flush itself,
// which makes queue behavior fully deterministic.
type ManualRequestor struct {
	mu        sync.Mutex
	requested bool
	requests  int
	cancels   int
}

// NewManualRequestor creates an unbound manual requestor. Pass its Bind
// method as the queue's RequestorFactory.
func NewManualRequestor() *ManualRequestor {
	return &ManualRequestor{}
}

// Bind satisfies RequestorFactory. The flush callback is ignored; the host
// drives Flush directly.
func (m *ManualRequestor) Bind(func()) FlushRequestor { return m }

func (m *ManualRequestor) Request() {
	m.mu.Lock()
	m.requested = true
	m.requests++
	m.mu.Unlock()
}

func (m *ManualRequestor) Cancel() {
	m.mu.Lock()
	if m.requested {
		m.requested = false
		m.cancels++
	}
	m.mu.Unlock()
}

// Requested reports whether a flush request is currently pending.
func (m *ManualRequestor) Requested() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requested
}

// Requests returns the total number of Request calls.
func (m *ManualRequestor) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests
}

// Cancels returns the number of requests that were retracted before firing.
func (m *ManualRequestor) Cancels() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancels
}
