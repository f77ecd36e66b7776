/*
Package scheduler composes one cooperative task queue per priority tier and
exposes typed entry points for each.

Four tiers are provided, from most to least urgent:

  - PriorityMicroTask: flushed as soon as possible, not clamped by any host
    timer. Persistent tasks are rejected here.
  - PriorityRender: flushed on a frame cadence (~60Hz).
  - PriorityMacroTask: flushed through a clamped timer, like setTimeout.
  - PriorityPostRender: flushed on a frame cadence, after macrotasks.

Basic usage:

	s := scheduler.New()

	task, err := s.QueueMacroTask(func(ctx context.Context) (*taskqueue.Future, error) {
		// do work
		return nil, nil
	}, taskqueue.Options{})
	if err != nil {
		log.Fatal(err)
	}
	if err := task.Await(ctx); err != nil {
		log.Printf("task failed: %v", err)
	}

	// Wait for the tier to drain.
	if err := s.Yield(ctx, scheduler.PriorityMacroTask); err != nil {
		log.Fatal(err)
	}

Cross-queue clamping: when the microtask queue must guarantee forward
progress without starving the host (delayed tasks waiting, async work in
flight), it does not spin on its own unclamped requestor. Instead it queues
a single preempt "poke" task on the macrotask queue whose only effect is to
re-request a microtask flush. The poke is tracked per queue and replaced,
never duplicated.

Recurring work: persistent tasks (taskqueue.Options.Persistent) re-run on a
fixed delay until canceled; QueueCronTask layers cron-expression scheduling
on top of the macrotask tier using robfig/cron.
*/
package scheduler
