package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/vnykmshr/gosched/internal/testutil"
	"github.com/vnykmshr/gosched/pkg/taskqueue"
)

func TestQueueCronTaskValidation(t *testing.T) {
	s, _ := newManualScheduler()

	ct, err := s.QueueCronTask("not a cron spec", noop)
	testutil.AssertError(t, err)
	if ct != nil {
		t.Fatal("expected nil cron task")
	}

	_, err = s.QueueCronTask("@every 1s", nil)
	testutil.AssertError(t, err)
}

func TestCronTaskRunsOnSchedule(t *testing.T) {
	s, vc := newManualScheduler()
	macro := s.Queue(PriorityMacroTask)

	runs := 0
	ct, err := s.QueueCronTask("@every 1s", func(context.Context) (*taskqueue.Future, error) {
		runs++
		return nil, nil
	})
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, ct.Next(), vc.Now().Add(time.Second))

	// Not due yet.
	macro.Flush()
	testutil.AssertEqual(t, runs, 0)

	vc.Advance(time.Second)
	macro.Flush()
	testutil.AssertEqual(t, runs, 1)

	// The run chained the next occurrence.
	testutil.AssertEqual(t, ct.Next(), vc.Now().Add(time.Second))

	vc.Advance(time.Second)
	macro.Flush()
	testutil.AssertEqual(t, runs, 2)

	ct.Cancel()
	testutil.AssertEqual(t, ct.Next(), time.Time{})

	vc.Advance(time.Second)
	macro.Flush()
	testutil.AssertEqual(t, runs, 2)
}

func TestCronTaskAsyncDoesNotOverlap(t *testing.T) {
	s, vc := newManualScheduler()
	macro := s.Queue(PriorityMacroTask)

	fut := taskqueue.NewFuture()
	runs := 0
	ct, err := s.QueueCronTask("@every 1s", func(context.Context) (*taskqueue.Future, error) {
		runs++
		return fut, nil
	})
	testutil.AssertNoError(t, err)

	vc.Advance(time.Second)
	macro.Flush()
	testutil.AssertEqual(t, runs, 1)

	// The occurrence is still in flight; nothing new is scheduled even as
	// the schedule comes due again.
	vc.Advance(2 * time.Second)
	macro.Flush()
	testutil.AssertEqual(t, runs, 1)

	inFlight := ct.Next()
	fut.Settle(nil)
	testutil.Eventually(t, testutil.TestTimeout, func() bool {
		return ct.Next().After(inFlight)
	})

	vc.Advance(time.Second)
	testutil.Eventually(t, testutil.TestTimeout, func() bool {
		macro.Flush()
		return runs == 2
	})

	ct.Cancel()
}

func TestCronTaskCancelIsIdempotent(t *testing.T) {
	s, _ := newManualScheduler()

	ct, err := s.QueueCronTask("@hourly", noop)
	testutil.AssertNoError(t, err)

	ct.Cancel()
	ct.Cancel()
	testutil.AssertEqual(t, ct.Next(), time.Time{})
	testutil.AssertEqual(t, s.Queue(PriorityMacroTask).IsEmpty(), true)
}
