package pool

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "handoff"
	metricsSubsystem = "pool"
)

// metrics holds the pool's counters. Gauges are sampled from the core on
// scrape.
type metrics struct {
	tasks    prometheus.Counter
	failures prometheus.Counter
	panics   prometheus.Counter
	standIns prometheus.Counter
	handoffs prometheus.Counter
	retired  prometheus.Counter
}

// newMetrics registers collectors for c with reg, labelled by pool name.
// Without a registerer the collectors are private to the pool.
func newMetrics(reg prometheus.Registerer, name string, c *core) *metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"pool": name}, reg))

	counter := func(name, help string) prometheus.Counter {
		return f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      name,
			Help:      help,
		})
	}
	gauge := func(name, help string, fn func() float64) {
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      name,
			Help:      help,
		}, fn)
	}

	gauge("workers", "Live workers, parked ones included.", func() float64 {
		return float64(c.liveCount())
	})
	gauge("blocked_workers", "Workers parked on an alarm.", func() float64 {
		return float64(c.blockedCount())
	})
	gauge("pending_resumptions", "Released workers waiting for a hand-off.", func() float64 {
		return float64(c.pendingCount.Load())
	})
	gauge("queued_tasks", "Tasks waiting for a worker.", func() float64 {
		return float64(c.tasks.Len())
	})

	return &metrics{
		tasks:    counter("tasks_total", "Tasks taken off the queue."),
		failures: counter("task_failures_total", "Tasks that finished with an error."),
		panics:   counter("task_panics_total", "Tasks that panicked."),
		standIns: counter("stand_ins_total", "Workers spawned to cover a parked worker."),
		handoffs: counter("handoffs_total", "Parked workers resumed by a retiring worker."),
		retired:  counter("retired_workers_total", "Workers that exited."),
	}
}
