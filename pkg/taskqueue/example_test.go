package taskqueue_test

import (
	"context"
	"fmt"
	"time"

	"github.com/vnykmshr/gosched/pkg/common/clock"
	"github.com/vnykmshr/gosched/pkg/taskqueue"
)

// A manually driven queue: the host observes flush requests and invokes
// Flush itself, so execution order is fully deterministic.
func Example() {
	requestor := taskqueue.NewManualRequestor()
	q := taskqueue.NewWithConfig(taskqueue.Config{Requestor: requestor.Bind})

	say := func(s string) taskqueue.Callback {
		return func(context.Context) (*taskqueue.Future, error) {
			fmt.Println(s)
			return nil, nil
		}
	}

	q.QueueTask(say("second"), taskqueue.Options{})
	q.QueueTask(say("third"), taskqueue.Options{})
	q.QueueTask(say("first"), taskqueue.Options{Preempt: true})

	if requestor.Requested() {
		q.Flush()
	}

	// Output:
	// first
	// second
	// third
}

func ExampleTaskQueue_QueueTask_delayed() {
	vc := clock.NewVirtual(time.Unix(0, 0))
	requestor := taskqueue.NewManualRequestor()
	q := taskqueue.NewWithConfig(taskqueue.Config{Clock: vc, Requestor: requestor.Bind})

	q.QueueTask(func(context.Context) (*taskqueue.Future, error) {
		fmt.Println("delayed work ran")
		return nil, nil
	}, taskqueue.Options{Delay: time.Second})

	q.Flush()
	fmt.Println("not due yet")

	vc.Advance(time.Second)
	q.Flush()

	// Output:
	// not due yet
	// delayed work ran
}

func ExampleTask_Await() {
	requestor := taskqueue.NewManualRequestor()
	q := taskqueue.NewWithConfig(taskqueue.Config{Requestor: requestor.Bind})

	fut := taskqueue.NewFuture()
	task, _ := q.QueueTask(func(context.Context) (*taskqueue.Future, error) {
		return fut, nil
	}, taskqueue.Options{})

	q.Flush()
	fmt.Println("status after flush:", task.Status())

	fut.Settle(nil)
	_ = task.Await(context.Background())
	fmt.Println("status after settle:", task.Status())

	// Output:
	// status after flush: running
	// status after settle: completed
}
