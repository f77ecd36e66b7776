package taskqueue

import (
	"sync"
	"testing"
	"time"

	"github.com/vnykmshr/gosched/internal/testutil"
)

func TestImmediateRequestorFires(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	r := NewImmediateRequestor(func() {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	r.Request()
	testutil.Eventually(t, testutil.TestTimeout, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 1
	})
}

func TestImmediateRequestorCancel(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	r := NewImmediateRequestor(func() {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	r.Request()
	r.Cancel()
	r.Cancel()

	// A canceled request must not fire, even though its goroutine may
	// already be scheduled.
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	testutil.AssertEqual(t, calls, 0)
	mu.Unlock()

	// Cancel does not wedge the requestor.
	r.Request()
	testutil.Eventually(t, testutil.TestTimeout, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 1
	})
}

func TestTimerRequestorClamps(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	r := NewTimerRequestor(10 * time.Millisecond)(func() {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	start := time.Now()
	r.Request()
	r.Request() // dedup while armed

	testutil.Eventually(t, testutil.TestTimeout, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 1
	})
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Fatalf("flush fired after %v, before the clamp elapsed", elapsed)
	}
}

func TestTimerRequestorCancel(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	r := NewTimerRequestor(10 * time.Millisecond)(func() {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	r.Request()
	r.Cancel()

	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	testutil.AssertEqual(t, calls, 0)
	mu.Unlock()
}

func TestManualRequestorCounters(t *testing.T) {
	m := NewManualRequestor()
	r := m.Bind(nil)

	testutil.AssertEqual(t, m.Requested(), false)
	r.Request()
	r.Request()
	testutil.AssertEqual(t, m.Requested(), true)
	testutil.AssertEqual(t, m.Requests(), 2)

	r.Cancel()
	r.Cancel()
	testutil.AssertEqual(t, m.Requested(), false)
	testutil.AssertEqual(t, m.Cancels(), 1)
}
