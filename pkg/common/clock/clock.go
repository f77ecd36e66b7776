// Package clock supplies the monotonic time source used by task queues.
//
// The scheduler core never reads time.Now directly; a Clock is injected at
// queue construction. The System clock is the production implementation,
// while Virtual is a manually advanced clock for deterministic tests of
// delayed-task promotion.
package clock

import (
	"sync"
	"time"
)

// Clock supplies the current time to a task queue.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System returns the real wall clock.
func System() Clock { return systemClock{} }

// Virtual is a manually advanced clock. The zero value starts at the Unix
// epoch; use NewVirtual to start at a specific instant.
type Virtual struct {
	mu  sync.Mutex
	now time.Time
}

// NewVirtual creates a virtual clock starting at t.
func NewVirtual(t time.Time) *Virtual {
	return &Virtual{now: t}
}

// Now returns the virtual clock's current time.
func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

// Advance moves the clock forward by d. Negative durations are ignored;
// the clock is monotonic.
func (v *Virtual) Advance(d time.Duration) {
	if d < 0 {
		return
	}
	v.mu.Lock()
	v.now = v.now.Add(d)
	v.mu.Unlock()
}

// Set moves the clock to t if t is not before the current time.
func (v *Virtual) Set(t time.Time) {
	v.mu.Lock()
	if t.After(v.now) {
		v.now = t
	}
	v.mu.Unlock()
}
