package taskqueue

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/vnykmshr/gosched/pkg/common/clock"
	gserrors "github.com/vnykmshr/gosched/pkg/common/errors"
	"github.com/vnykmshr/gosched/pkg/metrics"
)

// Config holds configuration options for creating a TaskQueue.
type Config struct {
	// Clock supplies the queue's notion of "now". Defaults to the system
	// clock; tests inject a virtual clock for deterministic delay handling.
	Clock clock.Clock

	// Requestor builds the FlushRequestor through which the queue asks the
	// host to invoke Flush. Defaults to a timer requestor with a 4ms clamp.
	// NewImmediateRequestor is unclamped and should only be paired with a
	// Clamp queue, or delayed and in-flight async work re-flushes in a hot
	// loop.
	Requestor RequestorFactory

	// RejectPersistent rejects persistent tasks on this queue. The
	// scheduler sets it for the microtask tier, where recurring work would
	// starve the host.
	RejectPersistent bool

	// Clamp, if set, routes clamped flush requests through a preempt "poke"
	// task queued on the given host-clamped queue instead of this queue's
	// own requestor. Used by the scheduler to keep the microtask tier from
	// starving the host.
	Clamp *TaskQueue

	// Name labels this queue in metrics. Defaults to "taskqueue".
	Name string

	// Context is passed to task callbacks. Defaults to context.Background().
	Context context.Context

	// Metrics configures Prometheus instrumentation.
	Metrics metrics.Config
}

// TaskQueue sequences tasks at a single priority. It owns three intrusive
// lists (processing, pending, delayed), a LIFO pool of reusable tasks, and
// the flush bookkeeping that drives them.
//
// All methods are safe for concurrent use. Callbacks run with the queue
// unlocked, so a callback may queue further work on its own queue; it must
// not call Yield on its own queue.
type TaskQueue struct {
	mu sync.Mutex

	clock     clock.Clock
	requestor FlushRequestor
	ctx       context.Context
	name      string

	rejectPersistent bool

	clamp     *TaskQueue
	clampTask *Task

	processing taskList
	pending    taskList
	delayed    taskList

	pendingAsync int
	suspender    *Task

	pool []*Task

	yieldCh chan struct{}

	flushRequested bool
	flushing       bool

	metrics *metrics.Registry
}

// defaultClamp is the flush clamp for queues constructed without an
// explicit requestor, mirroring host setTimeout granularity.
const defaultClamp = 4 * time.Millisecond

// New creates a task queue with default configuration: system clock,
// timer-clamped flush requestor, persistent tasks allowed.
func New() *TaskQueue {
	return NewWithConfig(Config{})
}

// NewWithConfig creates a task queue with the given configuration.
func NewWithConfig(cfg Config) *TaskQueue {
	q := &TaskQueue{
		clock:            cfg.Clock,
		ctx:              cfg.Context,
		name:             cfg.Name,
		rejectPersistent: cfg.RejectPersistent,
		clamp:            cfg.Clamp,
	}
	if q.clock == nil {
		q.clock = clock.System()
	}
	if q.ctx == nil {
		q.ctx = context.Background()
	}
	if q.name == "" {
		q.name = "taskqueue"
	}

	factory := cfg.Requestor
	if factory == nil {
		factory = NewTimerRequestor(defaultClamp)
	}
	q.requestor = factory(q.Flush)

	if cfg.Metrics.Enabled {
		q.metrics = metrics.For(cfg.Metrics.Registry)
	}
	return q
}

func errCanceled(id uint64) error {
	return fmt.Errorf("task %d: %w", id, gserrors.ErrCanceled)
}

// QueueTask enqueues a callback with the given options and returns its
// handle. Validation fails fast, before any queue state changes.
func (q *TaskQueue) QueueTask(cb Callback, opts Options) (*Task, error) {
	if cb == nil {
		return nil, fmt.Errorf("%w: callback cannot be nil", gserrors.ErrInvalidConfiguration)
	}
	if opts.Delay < 0 {
		return nil, fmt.Errorf("%w: delay cannot be negative", gserrors.ErrInvalidConfiguration)
	}
	if opts.Preempt && opts.Delay > 0 {
		return nil, gserrors.ErrPreemptWithDelay
	}
	if opts.Preempt && opts.Persistent {
		return nil, gserrors.ErrPreemptPersistent
	}
	if opts.Persistent && q.rejectPersistent {
		return nil, gserrors.ErrPersistentNotAllowed
	}

	q.mu.Lock()
	if q.processing.size == 0 {
		q.requestFlushLocked()
	}
	now := q.clock.Now()

	var t *Task
	if opts.Reusable {
		t = q.poolPopLocked()
	}
	if t != nil {
		t.reuse(now, opts, cb)
	} else {
		t = newTask(q, now, opts, cb)
	}

	switch {
	case opts.Preempt:
		// Preempt tasks go to the front of the processing list, ahead of
		// anything already migrated but behind whatever is mid-run.
		q.processing.pushFront(t)
	case opts.Delay == 0:
		q.pending.pushBack(t)
	default:
		// Delayed insertion is at the tail; callers are expected to queue
		// delays in roughly ascending queueTime order.
		q.delayed.pushBack(t)
	}

	if q.metrics != nil {
		q.metrics.TasksQueued.WithLabelValues(q.name).Inc()
		q.updateDepthLocked()
	}
	q.mu.Unlock()
	return t, nil
}

// Flush runs one scheduling pass: it migrates due work into the processing
// list, drains it head-first, and re-requests a flush for whatever remains.
// The host invokes Flush in response to a flush request; calling it with no
// outstanding request is harmless.
func (q *TaskQueue) Flush() {
	q.mu.Lock()
	// The outstanding host request, if any, has fired.
	q.flushRequested = false
	if q.flushing {
		// A concurrent flush is mid-drain; its exit logic re-requests as
		// needed, so this invocation would only interleave torn state.
		q.mu.Unlock()
		return
	}
	q.flushing = true
	q.cancelClampTaskLocked()

	if q.suspender != nil {
		// No new work starts while a suspender is in flight; poll again.
		q.flushing = false
		q.requestFlushClampedLocked()
		q.mu.Unlock()
		return
	}

	start := time.Now()
	if q.metrics != nil {
		q.metrics.FlushesTotal.WithLabelValues(q.name).Inc()
	}

	q.processing.spliceBack(&q.pending)
	q.processing.spliceDuePrefix(&q.delayed, q.clock.Now())

	for q.processing.size > 0 {
		t := q.processing.head
		q.runLocked(t)
		if q.suspender == t {
			// Drain stops mid-list; remaining processing tasks wait for
			// the suspender to settle.
			q.flushing = false
			q.requestFlushClampedLocked()
			q.finishFlushMetricsLocked(start)
			q.mu.Unlock()
			return
		}
	}

	// Callbacks may have queued more work while the list drained.
	q.processing.spliceBack(&q.pending)
	q.processing.spliceDuePrefix(&q.delayed, q.clock.Now())

	if q.processing.size > 0 {
		q.requestFlushLocked()
	} else if q.delayed.size > 0 || q.pendingAsync > 0 {
		// Nothing runnable right now, but delayed eligibility or async
		// settlement needs to be re-checked.
		q.requestFlushClampedLocked()
	}
	q.signalYieldLocked()
	q.flushing = false
	q.finishFlushMetricsLocked(start)
	q.mu.Unlock()
}

// runLocked runs the head task t. The queue lock is held on entry and on
// exit, but released around the callback so the task can queue more work.
func (q *TaskQueue) runLocked(t *Task) {
	if t.Status() != StatusPending {
		panic(fmt.Sprintf("taskqueue: run of task %d in state %s", t.id, t.Status()))
	}
	q.processing.remove(t)
	t.setStatus(StatusRunning)
	cb := t.callback
	ctx := q.ctx
	if q.metrics != nil {
		q.metrics.TasksExecuted.WithLabelValues(q.name).Inc()
	}
	q.mu.Unlock()

	started := time.Now()
	fut, err := invoke(ctx, cb)

	if fut != nil && err == nil {
		// Async: record the suspension relationship before subscribing, so
		// an immediately settled future still finds consistent state.
		q.mu.Lock()
		t.startedTime = started
		if t.suspend {
			q.suspender = t
		} else {
			q.pendingAsync++
		}
		q.mu.Unlock()
		fut.subscribe(func(res error) {
			q.completeAsyncTask(t, res)
		})
		q.mu.Lock()
		return
	}

	q.mu.Lock()
	q.observeRunLocked(started)
	q.finishLocked(t, err)
}

// invoke runs the callback, converting panics into task errors.
func invoke(ctx context.Context, cb Callback) (fut *Future, err error) {
	defer func() {
		if r := recover(); r != nil {
			fut = nil
			err = fmt.Errorf("task panicked: %v\nstack trace:\n%s", r, debug.Stack())
		}
	}()
	return cb(ctx)
}

// finishLocked settles a task that is done running. Persistent tasks that
// are still running (not canceled mid-run) and did not fail are re-queued;
// everything else completes.
func (q *TaskQueue) finishLocked(t *Task, err error) {
	if t.persistent && t.Status() == StatusRunning && err == nil {
		q.resetPersistentTaskLocked(t)
		return
	}
	if t.Status() == StatusCanceled {
		// Canceled mid-run; the result was settled by Cancel.
		if t.reusable {
			q.poolPushLocked(t)
		}
		return
	}
	t.setStatus(StatusCompleted)
	t.callback = nil
	res := t.result
	if t.reusable {
		q.poolPushLocked(t)
	}
	if q.metrics != nil {
		if err != nil {
			q.metrics.TasksFailed.WithLabelValues(q.name).Inc()
		} else {
			q.metrics.TasksCompleted.WithLabelValues(q.name).Inc()
		}
	}
	res.Settle(err)
}

// resetPersistentTaskLocked re-links a persistent task after a run, with
// queueTime recomputed from the current time.
func (q *TaskQueue) resetPersistentTaskLocked(t *Task) {
	t.reset(q.clock.Now())
	if t.delay > 0 {
		q.delayed.pushBack(t)
	} else {
		q.pending.pushBack(t)
	}
}

// completeAsyncTask is the continuation registered on an asynchronous
// callback's future. It clears the suspension bookkeeping, finishes the
// task unless it was canceled in flight, and re-evaluates quiescence.
func (q *TaskQueue) completeAsyncTask(t *Task, err error) {
	q.mu.Lock()
	if t.suspend {
		if q.suspender != t {
			panic(fmt.Sprintf("taskqueue: completeAsyncTask: task %d is not the current suspender", t.id))
		}
		q.suspender = nil
	} else {
		q.pendingAsync--
	}
	q.observeRunLocked(t.startedTime)
	if t.Status() == StatusCanceled {
		// Bookkeeping only; the result settled at cancellation.
		if t.reusable {
			q.poolPushLocked(t)
		}
	} else {
		q.finishLocked(t, err)
	}
	q.signalYieldLocked()
	if q.isEmptyLocked() {
		q.cancelFlushLocked()
	}
	q.mu.Unlock()
}

// Take moves a task owned by another queue into this one, preserving its
// preempt/queueTime classification. The task must still be pending.
func (q *TaskQueue) Take(t *Task) error {
	src := t.lockOwner()
	if src == q {
		src.mu.Unlock()
		return nil
	}
	if t.Status() != StatusPending {
		src.mu.Unlock()
		return fmt.Errorf("take task %d: %w", t.id, gserrors.ErrNotPending)
	}
	src.removeLocked(t)
	if src.isEmptyLocked() {
		src.cancelFlushLocked()
	}
	src.signalYieldLocked()
	t.owner.Store(q)
	src.mu.Unlock()

	q.mu.Lock()
	if q.processing.size == 0 {
		q.requestFlushLocked()
	}
	switch {
	case t.preempt:
		q.processing.pushFront(t)
	case t.queueTime.After(q.clock.Now()):
		q.delayed.pushBack(t)
	default:
		q.pending.pushBack(t)
	}
	q.mu.Unlock()
	return nil
}

// Remove detaches a task from whichever of the three lists currently holds
// it, leaving it pending but unlinked. Removing a task that is not linked
// anywhere is an internal consistency violation and panics.
func (q *TaskQueue) Remove(t *Task) {
	q.mu.Lock()
	q.removeLocked(t)
	if q.isEmptyLocked() {
		q.cancelFlushLocked()
	}
	q.signalYieldLocked()
	q.mu.Unlock()
}

// removeLocked unlinks t using preempt/queueTime as fast-path hints before
// falling back to a scan of all three lists.
func (q *TaskQueue) removeLocked(t *Task) {
	switch {
	case t.preempt:
		if q.processing.contains(t) {
			q.processing.remove(t)
			return
		}
	case t.delay > 0:
		if q.delayed.contains(t) {
			q.delayed.remove(t)
			return
		}
	default:
		if q.pending.contains(t) {
			q.pending.remove(t)
			return
		}
	}
	for _, l := range []*taskList{&q.processing, &q.pending, &q.delayed} {
		if l.contains(t) {
			l.remove(t)
			return
		}
	}
	panic(fmt.Sprintf("taskqueue: task %d could not be found in any list", t.id))
}

// Yield blocks until the queue has no more finite work: no in-flight async
// tasks and nothing queued except persistent tasks. It returns immediately
// if the queue is already quiescent. Concurrent callers share a single
// waiter. Must not be called from a task callback on the same queue.
func (q *TaskQueue) Yield(ctx context.Context) error {
	q.mu.Lock()
	if !q.hasMoreFiniteWorkLocked() {
		q.mu.Unlock()
		return nil
	}
	if q.yieldCh == nil {
		q.yieldCh = make(chan struct{})
	}
	ch := q.yieldCh
	q.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *TaskQueue) signalYieldLocked() {
	if q.yieldCh != nil && !q.hasMoreFiniteWorkLocked() {
		close(q.yieldCh)
		q.yieldCh = nil
	}
}

func (q *TaskQueue) hasMoreFiniteWorkLocked() bool {
	if q.pendingAsync > 0 {
		return true
	}
	if q.suspender != nil && !q.suspender.persistent {
		return true
	}
	for _, l := range []*taskList{&q.processing, &q.pending, &q.delayed} {
		for t := l.head; t != nil; t = t.next {
			if !t.persistent {
				return true
			}
		}
	}
	return false
}

func (q *TaskQueue) isEmptyLocked() bool {
	return q.processing.size == 0 &&
		q.pending.size == 0 &&
		q.delayed.size == 0 &&
		q.pendingAsync == 0 &&
		q.suspender == nil
}

// Cancel retracts any in-flight flush request and clamp helper. Idempotent.
// Queued tasks are left in place; cancel them individually to drop work.
func (q *TaskQueue) Cancel() {
	q.mu.Lock()
	q.cancelFlushLocked()
	q.mu.Unlock()
}

func (q *TaskQueue) cancelFlushLocked() {
	if q.flushRequested {
		q.flushRequested = false
		q.requestor.Cancel()
	}
	q.cancelClampTaskLocked()
}

func (q *TaskQueue) requestFlushLocked() {
	q.cancelClampTaskLocked()
	if !q.flushRequested {
		q.flushRequested = true
		q.requestor.Request()
	}
}

// requestFlush is the poke-task entry point: it is invoked from a clamp
// queue's flush, with no queue locks held.
func (q *TaskQueue) requestFlush() {
	q.mu.Lock()
	q.requestFlushLocked()
	q.mu.Unlock()
}

// requestFlushClampedLocked requests a flush through a host-clamped
// mechanism. Queues with a clamp queue schedule a single preempt poke task
// there; everyone else relies on their own (already clamped) requestor.
func (q *TaskQueue) requestFlushClampedLocked() {
	if q.clamp == nil {
		q.requestFlushLocked()
		return
	}
	if q.clampTask != nil && q.clampTask.Status() == StatusPending {
		return
	}
	t, err := q.clamp.QueueTask(func(context.Context) (*Future, error) {
		q.requestFlush()
		return nil, nil
	}, Options{Preempt: true})
	if err != nil {
		// The clamp queue rejects only invalid options; a plain preempt
		// task is always valid.
		panic(fmt.Sprintf("taskqueue: clamped flush request failed: %v", err))
	}
	q.clampTask = t
}

func (q *TaskQueue) cancelClampTaskLocked() {
	if t := q.clampTask; t != nil {
		q.clampTask = nil
		if t.Status() == StatusPending {
			t.Cancel()
		}
	}
}

func (q *TaskQueue) poolPopLocked() *Task {
	n := len(q.pool)
	if n == 0 {
		return nil
	}
	t := q.pool[n-1]
	q.pool[n-1] = nil
	q.pool = q.pool[:n-1]
	return t
}

func (q *TaskQueue) poolPushLocked(t *Task) {
	t.prev = nil
	t.next = nil
	q.pool = append(q.pool, t)
}

// ProcessingSize returns the number of tasks in the processing list.
func (q *TaskQueue) ProcessingSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.processing.size
}

// PendingSize returns the number of tasks in the pending list.
func (q *TaskQueue) PendingSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.size
}

// DelayedSize returns the number of tasks in the delayed list.
func (q *TaskQueue) DelayedSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.delayed.size
}

// PendingAsyncCount returns the number of in-flight non-suspending
// asynchronous tasks.
func (q *TaskQueue) PendingAsyncCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pendingAsync
}

// IsEmpty reports whether the queue holds no tasks and no in-flight
// asynchronous work.
func (q *TaskQueue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.isEmptyLocked()
}

// IsSuspended reports whether a suspending task is currently blocking the
// queue.
func (q *TaskQueue) IsSuspended() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.suspender != nil
}

func (q *TaskQueue) countCanceledLocked() {
	if q.metrics != nil {
		q.metrics.TasksCanceled.WithLabelValues(q.name).Inc()
	}
}

func (q *TaskQueue) observeRunLocked(started time.Time) {
	if q.metrics != nil {
		q.metrics.TaskExecutionDuration.WithLabelValues(q.name).Observe(time.Since(started).Seconds())
	}
}

func (q *TaskQueue) finishFlushMetricsLocked(start time.Time) {
	if q.metrics == nil {
		return
	}
	q.metrics.FlushDuration.WithLabelValues(q.name).Observe(time.Since(start).Seconds())
	q.updateDepthLocked()
}

func (q *TaskQueue) updateDepthLocked() {
	q.metrics.QueueDepth.WithLabelValues(q.name, "processing").Set(float64(q.processing.size))
	q.metrics.QueueDepth.WithLabelValues(q.name, "pending").Set(float64(q.pending.size))
	q.metrics.QueueDepth.WithLabelValues(q.name, "delayed").Set(float64(q.delayed.size))
}

// EnableMetrics enables metrics collection for this queue.
func (q *TaskQueue) EnableMetrics(cfg metrics.Config) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !cfg.Enabled {
		q.metrics = nil
		return nil
	}
	q.metrics = metrics.For(cfg.Registry)
	return nil
}

// DisableMetrics disables metrics collection for this queue.
func (q *TaskQueue) DisableMetrics() {
	q.mu.Lock()
	q.metrics = nil
	q.mu.Unlock()
}

// MetricsEnabled returns true if metrics are currently enabled.
func (q *TaskQueue) MetricsEnabled() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.metrics != nil
}
