/*
Package metrics provides Prometheus instrumentation for gosched components.

Task queues and the scheduler record task lifecycle counters, flush
statistics, and per-list queue depth through a shared Registry. Metrics are
disabled unless a queue or scheduler is constructed with an enabled
metrics.Config.

# Quick Start

Enable metrics when constructing a scheduler and expose them via HTTP:

	s := scheduler.NewWithConfig(scheduler.Config{
		Metrics: metrics.Config{Enabled: true},
	})

	http.Handle("/metrics", promhttp.Handler())
	log.Fatal(http.ListenAndServe(":8080", nil))

# Custom Registry

Use a custom Prometheus registry for isolation. Instruments register once
per registerer; For memoizes the Registry so components sharing a
registerer share instruments and distinguish their series by label:

	reg := prometheus.NewRegistry()
	s := scheduler.NewWithConfig(scheduler.Config{
		Metrics: metrics.Config{Enabled: true, Registry: reg},
	})

# Available Metrics

  - gosched_taskqueue_tasks_queued_total: tasks queued, by queue
  - gosched_taskqueue_tasks_executed_total: task runs, including persistent re-runs
  - gosched_taskqueue_tasks_completed_total: successful completions
  - gosched_taskqueue_tasks_failed_total: failed tasks
  - gosched_taskqueue_tasks_canceled_total: canceled tasks
  - gosched_taskqueue_task_duration_seconds: task run duration, measured to settlement for asynchronous tasks
  - gosched_taskqueue_flush_duration_seconds: time per flush pass
  - gosched_taskqueue_flushes_total: flush passes
  - gosched_taskqueue_queue_depth: tasks per list (processing/pending/delayed)

The "queue" label carries the queue name; the scheduler names its queues
after their priority tier (micro, render, macro, postrender).
*/
package metrics
