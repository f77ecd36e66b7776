// Package metrics provides Prometheus instrumentation for gosched components.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for gosched components.
type Registry struct {
	// Task lifecycle
	TasksQueued    *prometheus.CounterVec
	TasksExecuted  *prometheus.CounterVec
	TasksCompleted *prometheus.CounterVec
	TasksFailed    *prometheus.CounterVec
	TasksCanceled  *prometheus.CounterVec

	// Timings
	TaskExecutionDuration *prometheus.HistogramVec
	FlushDuration         *prometheus.HistogramVec

	// Queue state
	FlushesTotal *prometheus.CounterVec
	QueueDepth   *prometheus.GaugeVec
}

// DefaultRegistry is the default metrics registry used by gosched components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

var (
	registriesMu sync.Mutex
	registries   map[prometheus.Registerer]*Registry
)

// For returns the Registry bound to reg, creating and caching it on first
// use. Instruments can only be registered once per Registerer; components
// sharing a Registerer share the instruments and distinguish their series
// by label. A nil reg maps to DefaultRegistry.
func For(reg prometheus.Registerer) *Registry {
	if reg == nil || reg == prometheus.DefaultRegisterer {
		return DefaultRegistry
	}
	registriesMu.Lock()
	defer registriesMu.Unlock()
	if r, ok := registries[reg]; ok {
		return r
	}
	if registries == nil {
		registries = make(map[prometheus.Registerer]*Registry)
	}
	r := NewRegistry(reg)
	registries[reg] = r
	return r
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		TasksQueued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gosched",
				Subsystem: "taskqueue",
				Name:      "tasks_queued_total",
				Help:      "Total number of tasks queued",
			},
			[]string{"queue"},
		),

		TasksExecuted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gosched",
				Subsystem: "taskqueue",
				Name:      "tasks_executed_total",
				Help:      "Total number of task runs, including persistent re-runs",
			},
			[]string{"queue"},
		),

		TasksCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gosched",
				Subsystem: "taskqueue",
				Name:      "tasks_completed_total",
				Help:      "Total number of tasks completed successfully",
			},
			[]string{"queue"},
		),

		TasksFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gosched",
				Subsystem: "taskqueue",
				Name:      "tasks_failed_total",
				Help:      "Total number of tasks that failed",
			},
			[]string{"queue"},
		),

		TasksCanceled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gosched",
				Subsystem: "taskqueue",
				Name:      "tasks_canceled_total",
				Help:      "Total number of tasks canceled before completion",
			},
			[]string{"queue"},
		),

		TaskExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gosched",
				Subsystem: "taskqueue",
				Name:      "task_duration_seconds",
				Help:      "Time from task start to completion, including asynchronous settlement",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"queue"},
		),

		FlushDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gosched",
				Subsystem: "taskqueue",
				Name:      "flush_duration_seconds",
				Help:      "Time spent in a single flush pass",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"queue"},
		),

		FlushesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gosched",
				Subsystem: "taskqueue",
				Name:      "flushes_total",
				Help:      "Total number of flush passes",
			},
			[]string{"queue"},
		),

		QueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "gosched",
				Subsystem: "taskqueue",
				Name:      "queue_depth",
				Help:      "Number of tasks per queue list",
			},
			[]string{"queue", "list"},
		),
	}
}
