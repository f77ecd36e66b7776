package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vnykmshr/gosched/pkg/taskqueue"
)

// CronTask is a recurring macrotask driven by a cron schedule. Unlike a
// persistent task, whose cadence is a fixed delay, a cron task re-queues
// itself with a fresh delay computed from the schedule after each run.
type CronTask struct {
	s  *Scheduler
	cb taskqueue.Callback

	schedule cron.Schedule

	mu       sync.Mutex
	current  *taskqueue.Task
	canceled bool
}

// QueueCronTask queues cb to run on the macrotask tier according to the
// given cron expression (standard five-field syntax, plus descriptors like
// "@hourly" and "@every 5m").
func (s *Scheduler) QueueCronTask(spec string, cb taskqueue.Callback) (*CronTask, error) {
	if cb == nil {
		return nil, fmt.Errorf("cron task callback cannot be nil")
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	ct := &CronTask{s: s, cb: cb, schedule: schedule}
	ct.mu.Lock()
	err = ct.scheduleNextLocked()
	ct.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return ct, nil
}

func (ct *CronTask) scheduleNextLocked() error {
	now := ct.s.Now()
	delay := ct.schedule.Next(now).Sub(now)
	if delay < 0 {
		delay = 0
	}
	t, err := ct.s.QueueMacroTask(ct.run, taskqueue.Options{Delay: delay})
	if err != nil {
		return err
	}
	ct.current = t
	return nil
}

// run executes one cron occurrence and chains the next one. Asynchronous
// callbacks re-queue only after their future settles, so occurrences never
// overlap.
func (ct *CronTask) run(ctx context.Context) (*taskqueue.Future, error) {
	fut, err := ct.cb(ctx)
	if fut == nil || err != nil {
		ct.reschedule()
		return nil, err
	}
	next := taskqueue.NewFuture()
	go func() {
		<-fut.Done()
		ct.reschedule()
		next.Settle(fut.Err())
	}()
	return next, nil
}

func (ct *CronTask) reschedule() {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	if ct.canceled {
		return
	}
	// Queueing can only fail on invalid options, which a delay-only task
	// never has.
	_ = ct.scheduleNextLocked()
}

// Next returns the queue time of the next scheduled occurrence, or the zero
// time after cancellation.
func (ct *CronTask) Next() time.Time {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	if ct.canceled || ct.current == nil {
		return time.Time{}
	}
	return ct.current.QueueTime()
}

// Cancel stops the chain. The currently queued occurrence is canceled; a
// run already in progress finishes but does not re-queue.
func (ct *CronTask) Cancel() {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	if ct.canceled {
		return
	}
	ct.canceled = true
	if ct.current != nil {
		ct.current.Cancel()
		ct.current = nil
	}
}
