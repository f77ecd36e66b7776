/*
Package taskqueue implements a priority-agnostic cooperative task queue: an
ordered set of schedulable units of work sequenced on top of a host
environment's timer primitives.

A TaskQueue owns three intrusive doubly-linked lists. Pending holds work
that is eligible to run at the next flush, delayed holds work whose
queueTime has not arrived, and processing holds work being drained by the
current flush. A flush is one scheduling pass: the host environment invokes
Flush in response to a flush request, the queue migrates due work forward,
runs the processing list head-first, and re-requests a flush for whatever
remains.

Basic usage:

	q := taskqueue.New()

	task, err := q.QueueTask(func(ctx context.Context) (*taskqueue.Future, error) {
		// do work
		return nil, nil
	}, taskqueue.Options{})
	if err != nil {
		log.Fatal(err)
	}

	if err := task.Await(ctx); err != nil {
		log.Printf("task failed: %v", err)
	}

Task options:

  - Delay: the task waits in the delayed list until its queueTime arrives.
    Delayed insertion is at the tail and promotion scans a contiguous due
    prefix from the head, so callers are expected to queue delays in
    roughly ascending order; a short delay queued after a long one is not
    promoted until the long one is also due. This is a known, deliberate
    limitation.
  - Preempt: the task joins the processing list directly and runs ahead of
    pending and delayed work (but after whatever is already running).
  - Persistent: the task re-queues itself after each run, with queueTime
    recomputed from the current time, until it is canceled.
  - Reusable: the Task object returns to a queue-local LIFO pool on
    completion, and a later reusable QueueTask call recycles it.
  - Suspend: if the callback is asynchronous, the entire queue blocks until
    its future settles; no other task on the queue runs in between.

Asynchronous callbacks return a Future and settle it when their work
finishes. A non-suspending asynchronous task runs out of band while the
queue keeps draining; Yield blocks until all such work has settled and only
persistent tasks remain.

The host environment boundary is the FlushRequestor: immediate
(microtask-like), timer-clamped (macrotask-like), and frame-cadence
variants are provided, plus a ManualRequestor for hosts and tests that
drive Flush themselves. The scheduler package composes one queue per
priority tier and wires the microtask tier's clamped flushes through the
macrotask tier so continuous microtask pressure cannot starve the host.
*/
package taskqueue
