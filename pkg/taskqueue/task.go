package taskqueue

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// Status is the lifecycle state of a Task.
type Status uint32

const (
	// StatusPending means the task is queued and has not started.
	StatusPending Status = iota

	// StatusRunning means the task's callback has been invoked and, for
	// asynchronous callbacks, its future has not settled yet.
	StatusRunning

	// StatusCompleted means the task finished, successfully or with an error.
	StatusCompleted

	// StatusCanceled means the task was canceled before completing.
	StatusCanceled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("Status(%d)", uint32(s))
	}
}

// Callback is the unit of work owned by a Task.
//
// A callback either completes synchronously, returning (nil, err), or
// returns a Future it will settle later; the task then stays in
// StatusRunning until the future settles. If both a future and an error are
// returned, the error wins and the future is ignored.
type Callback func(ctx context.Context) (*Future, error)

// Options is the task options record. The zero value is the default: no
// delay, not preempt, not persistent, not reusable, not suspending.
type Options struct {
	// Delay is how long the task waits before becoming eligible to run.
	Delay time.Duration

	// Preempt inserts the task directly into the processing list, ahead of
	// pending and delayed work. Incompatible with Delay and Persistent.
	Preempt bool

	// Persistent re-queues the task after each run until it is canceled.
	Persistent bool

	// Reusable returns the Task object to a queue-local pool after
	// completion or cancellation, so a later reusable QueueTask call can
	// recycle it instead of allocating.
	Reusable bool

	// Suspend blocks the entire owning queue while the task's asynchronous
	// callback is in flight. Has no effect on synchronous callbacks.
	Suspend bool
}

var taskID atomic.Uint64

// Task is a single schedulable unit of work. Tasks are created by
// TaskQueue.QueueTask and recycled through the queue's pool when reusable.
//
// The prev/next links are intrusive: a task is owned by exactly one of the
// queue's three lists (or no list) at any instant, and the links are only
// valid while linked.
type Task struct {
	id    uint64
	prev  *Task
	next  *Task
	owner atomic.Pointer[TaskQueue]

	status atomic.Uint32

	createdTime time.Time
	queueTime   time.Time
	startedTime time.Time
	delay       time.Duration

	preempt    bool
	persistent bool
	reusable   bool
	suspend    bool

	callback Callback
	result   *Future
}

func newTask(q *TaskQueue, now time.Time, opts Options, cb Callback) *Task {
	t := &Task{
		id:          taskID.Add(1),
		createdTime: now,
		queueTime:   now.Add(opts.Delay),
		delay:       opts.Delay,
		preempt:     opts.Preempt,
		persistent:  opts.Persistent,
		reusable:    opts.Reusable,
		suspend:     opts.Suspend,
		callback:    cb,
		result:      NewFuture(),
	}
	t.owner.Store(q)
	return t
}

// reuse reinitializes a pooled task. Only valid on a completed or canceled
// task; the id is retained across reuses.
func (t *Task) reuse(now time.Time, opts Options, cb Callback) {
	if s := t.Status(); s != StatusCompleted && s != StatusCanceled {
		panic(fmt.Sprintf("taskqueue: reuse of task %d in state %s", t.id, s))
	}
	t.createdTime = now
	t.queueTime = now.Add(opts.Delay)
	t.delay = opts.Delay
	t.preempt = opts.Preempt
	t.persistent = opts.Persistent
	t.reusable = opts.Reusable
	t.suspend = opts.Suspend
	t.callback = cb
	t.result = NewFuture()
	t.setStatus(StatusPending)
}

// reset recomputes queueTime from the current time plus the original delay
// and returns a persistent task to pending.
func (t *Task) reset(now time.Time) {
	t.queueTime = now.Add(t.delay)
	t.setStatus(StatusPending)
}

func (t *Task) setStatus(s Status) { t.status.Store(uint32(s)) }

// ID returns the task's unique, monotonically assigned identifier.
func (t *Task) ID() uint64 { return t.id }

// Status returns the task's current lifecycle state.
func (t *Task) Status() Status { return Status(t.status.Load()) }

// CreatedTime returns when the task was created or last recycled.
func (t *Task) CreatedTime() time.Time {
	q := t.lockOwner()
	defer q.mu.Unlock()
	return t.createdTime
}

// QueueTime returns when the task becomes eligible to run. It equals
// CreatedTime plus the delay and is only recomputed by persistent resets
// and pool recycling, both of which happen under the owner queue's lock.
func (t *Task) QueueTime() time.Time {
	q := t.lockOwner()
	defer q.mu.Unlock()
	return t.queueTime
}

// Done returns a channel closed when the task completes or is canceled.
// The handle is only valid until a reusable task is recycled.
func (t *Task) Done() <-chan struct{} { return t.result.Done() }

// Err returns the task's terminal error: nil on success, ErrCanceled after
// cancellation, or the callback's error. Nil while the task has not settled.
func (t *Task) Err() error { return t.result.Err() }

// Await blocks until the task settles or ctx is done.
func (t *Task) Await(ctx context.Context) error { return t.result.Await(ctx) }

// Cancel cancels the task. Canceling a pending task unlinks it from its
// queue immediately; canceling a running task marks it canceled (clearing
// persistence) while any in-flight asynchronous work settles on its own.
// Returns false, without side effects, if the task already finished.
func (t *Task) Cancel() bool {
	q := t.lockOwner()
	switch t.Status() {
	case StatusPending:
		q.removeLocked(t)
		t.setStatus(StatusCanceled)
		t.callback = nil
		res := t.result
		if t.reusable {
			q.poolPushLocked(t)
		}
		if q.isEmptyLocked() {
			q.cancelFlushLocked()
		}
		q.signalYieldLocked()
		q.countCanceledLocked()
		q.mu.Unlock()
		res.Settle(errCanceled(t.id))
		return true
	case StatusRunning:
		// In-flight async work (or a persistent task mid-run). The queue
		// stays suspended, if suspending, until the original future
		// settles; completeAsyncTask then does bookkeeping only.
		t.persistent = false
		t.setStatus(StatusCanceled)
		res := t.result
		q.countCanceledLocked()
		q.mu.Unlock()
		res.Settle(errCanceled(t.id))
		return true
	default:
		q.mu.Unlock()
		return false
	}
}

// lockOwner locks the queue that currently owns the task, rechecking
// ownership after acquiring the lock since Take can migrate a task between
// queues.
func (t *Task) lockOwner() *TaskQueue {
	for {
		q := t.owner.Load()
		q.mu.Lock()
		if t.owner.Load() == q {
			return q
		}
		q.mu.Unlock()
	}
}

// taskList is an intrusive doubly-linked list with cached head/tail and
// size. A task is owned by at most one list at a time.
type taskList struct {
	head *Task
	tail *Task
	size int
}

func (l *taskList) pushFront(t *Task) {
	t.prev = nil
	t.next = l.head
	if l.head == nil {
		l.tail = t
	} else {
		l.head.prev = t
	}
	l.head = t
	l.size++
}

func (l *taskList) pushBack(t *Task) {
	t.prev = l.tail
	t.next = nil
	if l.tail == nil {
		l.head = t
	} else {
		l.tail.next = t
	}
	l.tail = t
	l.size++
}

func (l *taskList) remove(t *Task) {
	if t.prev == nil {
		l.head = t.next
	} else {
		t.prev.next = t.next
	}
	if t.next == nil {
		l.tail = t.prev
	} else {
		t.next.prev = t.prev
	}
	t.prev = nil
	t.next = nil
	l.size--
}

func (l *taskList) contains(t *Task) bool {
	for cur := l.head; cur != nil; cur = cur.next {
		if cur == t {
			return true
		}
	}
	return false
}

// spliceBack moves the entire contents of src to the back of l in O(1).
func (l *taskList) spliceBack(src *taskList) {
	if src.size == 0 {
		return
	}
	if l.tail == nil {
		l.head = src.head
	} else {
		l.tail.next = src.head
		src.head.prev = l.tail
	}
	l.tail = src.tail
	l.size += src.size
	src.head = nil
	src.tail = nil
	src.size = 0
}

// spliceDuePrefix moves the maximal prefix of src whose queueTime is not
// after now to the back of l, preserving relative order. Promotion scans a
// contiguous prefix only: a short delay queued after a long one stays
// behind it (see the package docs on delayed-task ordering).
func (l *taskList) spliceDuePrefix(src *taskList, now time.Time) {
	if src.size == 0 || src.head.queueTime.After(now) {
		return
	}
	last := src.head
	n := 1
	for last.next != nil && !last.next.queueTime.After(now) {
		last = last.next
		n++
	}
	rest := last.next

	if l.tail == nil {
		l.head = src.head
	} else {
		l.tail.next = src.head
		src.head.prev = l.tail
	}
	l.tail = last
	last.next = nil
	l.size += n

	src.head = rest
	if rest == nil {
		src.tail = nil
	} else {
		rest.prev = nil
	}
	src.size -= n
}
