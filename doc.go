/*
Package gosched provides a cooperative task scheduler for Go: priority-
ordered task queues that sequence synchronous and asynchronous units of
work on top of a host environment's timer primitives.

Task queues (pkg/taskqueue):
  - taskqueue: intrusive-list task queue with preemption, delayed
    scheduling, persistent tasks, task pooling, suspension, and quiescence
    detection (Yield)

Scheduling (pkg/scheduler):
  - scheduler: one queue per priority tier (micro/render/macro/post-render),
    cross-queue clamping, cron-driven recurring tasks

Support (pkg/common, pkg/metrics):
  - clock: injectable time source with a virtual clock for tests
  - errors: shared sentinel errors
  - metrics: Prometheus instrumentation

Example usage:

	import (
		"github.com/vnykmshr/gosched/pkg/scheduler"
		"github.com/vnykmshr/gosched/pkg/taskqueue"
	)

	s := scheduler.New()
	task, _ := s.QueueMacroTask(work, taskqueue.Options{})
	_ = task.Await(ctx)
*/
package gosched
