package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/vnykmshr/gosched/pkg/common/clock"
	"github.com/vnykmshr/gosched/pkg/metrics"
	"github.com/vnykmshr/gosched/pkg/taskqueue"
)

// Priority identifies one of the scheduler's task queue tiers, ordered from
// most to least urgent.
type Priority int

const (
	// PriorityMicroTask is the non-clamped "as soon as possible" tier.
	// Persistent tasks are rejected here; clamped flushes are routed
	// through the macrotask tier to avoid starving the host.
	PriorityMicroTask Priority = iota

	// PriorityRender runs on a frame cadence, ahead of macrotasks.
	PriorityRender

	// PriorityMacroTask is the host-clamped, setTimeout-like tier.
	PriorityMacroTask

	// PriorityPostRender runs on a frame cadence, after macrotasks.
	PriorityPostRender

	numPriorities
)

func (p Priority) String() string {
	switch p {
	case PriorityMicroTask:
		return "micro"
	case PriorityRender:
		return "render"
	case PriorityMacroTask:
		return "macro"
	case PriorityPostRender:
		return "postrender"
	default:
		return fmt.Sprintf("Priority(%d)", int(p))
	}
}

// The default host granularities per tier. The macrotask clamp mirrors the
// 4ms minimum of HTML setTimeout; the frame tiers run at ~60Hz.
const (
	defaultMacroClamp    = 4 * time.Millisecond
	defaultFrameInterval = time.Second / 60
)

// Config holds scheduler configuration.
type Config struct {
	// Clock is shared by all queues. Defaults to the system clock.
	Clock clock.Clock

	// Requestors overrides the FlushRequestor factory per tier. Tiers not
	// present use the defaults: immediate for microtasks, a frame cadence
	// for render/post-render, a clamped timer for macrotasks.
	Requestors map[Priority]taskqueue.RequestorFactory

	// Context is passed to task callbacks. Defaults to context.Background().
	Context context.Context

	// Metrics configures Prometheus instrumentation for all queues.
	Metrics metrics.Config
}

// Scheduler owns one TaskQueue per priority tier and forwards typed
// convenience calls to the matching queue.
type Scheduler struct {
	clock  clock.Clock
	queues [numPriorities]*taskqueue.TaskQueue
}

// New creates a scheduler with default configuration.
func New() *Scheduler {
	return NewWithConfig(Config{})
}

// NewWithConfig creates a scheduler with custom configuration.
func NewWithConfig(cfg Config) *Scheduler {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.System()
	}

	factory := func(p Priority, dflt taskqueue.RequestorFactory) taskqueue.RequestorFactory {
		if f, ok := cfg.Requestors[p]; ok {
			return f
		}
		return dflt
	}

	s := &Scheduler{clock: clk}

	queueCfg := func(p Priority, dflt taskqueue.RequestorFactory) taskqueue.Config {
		return taskqueue.Config{
			Clock:     clk,
			Requestor: factory(p, dflt),
			Name:      p.String(),
			Context:   cfg.Context,
			Metrics:   cfg.Metrics,
		}
	}

	// The macrotask queue is built first; the microtask tier clamps
	// through it.
	macro := queueCfg(PriorityMacroTask, taskqueue.NewTimerRequestor(defaultMacroClamp))
	s.queues[PriorityMacroTask] = taskqueue.NewWithConfig(macro)

	micro := queueCfg(PriorityMicroTask, taskqueue.NewImmediateRequestor)
	micro.RejectPersistent = true
	micro.Clamp = s.queues[PriorityMacroTask]
	s.queues[PriorityMicroTask] = taskqueue.NewWithConfig(micro)

	render := queueCfg(PriorityRender, taskqueue.NewFrameRequestor(defaultFrameInterval))
	s.queues[PriorityRender] = taskqueue.NewWithConfig(render)

	post := queueCfg(PriorityPostRender, taskqueue.NewFrameRequestor(defaultFrameInterval))
	s.queues[PriorityPostRender] = taskqueue.NewWithConfig(post)

	return s
}

// Now returns the scheduler's shared clock reading.
func (s *Scheduler) Now() time.Time {
	return s.clock.Now()
}

// Queue returns the task queue for the given priority tier.
func (s *Scheduler) Queue(p Priority) *taskqueue.TaskQueue {
	if p < 0 || p >= numPriorities {
		panic(fmt.Sprintf("scheduler: invalid priority %d", int(p)))
	}
	return s.queues[p]
}

// QueueTask enqueues a callback on the given priority tier.
func (s *Scheduler) QueueTask(p Priority, cb taskqueue.Callback, opts taskqueue.Options) (*taskqueue.Task, error) {
	return s.Queue(p).QueueTask(cb, opts)
}

// QueueMicroTask enqueues a callback on the microtask tier.
func (s *Scheduler) QueueMicroTask(cb taskqueue.Callback, opts taskqueue.Options) (*taskqueue.Task, error) {
	return s.queues[PriorityMicroTask].QueueTask(cb, opts)
}

// QueueRenderTask enqueues a callback on the render tier.
func (s *Scheduler) QueueRenderTask(cb taskqueue.Callback, opts taskqueue.Options) (*taskqueue.Task, error) {
	return s.queues[PriorityRender].QueueTask(cb, opts)
}

// QueueMacroTask enqueues a callback on the macrotask tier.
func (s *Scheduler) QueueMacroTask(cb taskqueue.Callback, opts taskqueue.Options) (*taskqueue.Task, error) {
	return s.queues[PriorityMacroTask].QueueTask(cb, opts)
}

// QueuePostRenderTask enqueues a callback on the post-render tier.
func (s *Scheduler) QueuePostRenderTask(cb taskqueue.Callback, opts taskqueue.Options) (*taskqueue.Task, error) {
	return s.queues[PriorityPostRender].QueueTask(cb, opts)
}

// Yield blocks until the given tier has no more finite work.
func (s *Scheduler) Yield(ctx context.Context, p Priority) error {
	return s.Queue(p).Yield(ctx)
}

// YieldAll yields each tier once, in priority order. Work queued onto an
// earlier tier by a later tier's task may require another call.
func (s *Scheduler) YieldAll(ctx context.Context) error {
	for p := PriorityMicroTask; p < numPriorities; p++ {
		if err := s.queues[p].Yield(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Cancel retracts in-flight flush requests on every tier. Idempotent.
func (s *Scheduler) Cancel() {
	for _, q := range s.queues {
		q.Cancel()
	}
}
