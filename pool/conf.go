package pool

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/utkarsh5026/handoff/internal/algorithms"
)

// BackoffType selects how retry delays grow.
type BackoffType = algorithms.Kind

const (
	// BackoffExponential doubles the delay after every failed attempt (default).
	BackoffExponential = algorithms.Exponential
	// BackoffJittered adds a random spread to the exponential delay.
	BackoffJittered = algorithms.Jittered
	// BackoffDecorrelated draws each delay between the initial delay and
	// three times the previous one.
	BackoffDecorrelated = algorithms.Decorrelated
)

const defaultPoolName = "default"

// WorkerPoolOption is a functional option for configuring the worker pool.
type WorkerPoolOption func(*workerPoolConfig)

type workerPoolConfig struct {
	workerCount int
	maxWorkers  int
	maxAttempts int
	backoff     algorithms.Config
	rateLimiter *rate.Limiter
	pinThreads  bool

	name       string
	logger     *zap.Logger
	registerer prometheus.Registerer

	beforeTaskStart func(ctx context.Context)
	onTaskEnd       func(ctx context.Context, err error)
}

func newConfig(opts []WorkerPoolOption) workerPoolConfig {
	cfg := workerPoolConfig{
		workerCount: runtime.GOMAXPROCS(0),
		maxAttempts: 1,
		name:        defaultPoolName,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.workerCount < 1 {
		cfg.workerCount = 1
	}
	if cfg.maxWorkers > 0 && cfg.maxWorkers < cfg.workerCount {
		cfg.maxWorkers = cfg.workerCount
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	return cfg
}

// WithWorkerCount sets the number of workers the pool keeps running.
// If not specified, defaults to runtime.GOMAXPROCS(0).
func WithWorkerCount(count int) WorkerPoolOption {
	return func(cfg *workerPoolConfig) {
		if count > 0 {
			cfg.workerCount = count
		}
	}
}

// WithMaxWorkers caps the number of live workers, parked ones included.
// Once the cap is reached a parking worker gets no stand-in, so throughput
// can stall until a Buzz. Values below the worker count are raised to it.
// Zero, the default, means no cap.
func WithMaxWorkers(limit int) WorkerPoolOption {
	return func(cfg *workerPoolConfig) {
		if limit > 0 {
			cfg.maxWorkers = limit
		}
	}
}

// WithRetryPolicy retries a failing task up to maxAttempts times in total.
// initialDelay is the wait before the first retry; later waits follow the
// configured backoff. Panics are never retried.
func WithRetryPolicy(maxAttempts int, initialDelay time.Duration) WorkerPoolOption {
	return func(cfg *workerPoolConfig) {
		if maxAttempts > 0 {
			cfg.maxAttempts = maxAttempts
		}
		if initialDelay > 0 {
			cfg.backoff.Base = initialDelay
		}
	}
}

// WithBackoff picks the retry delay algorithm. maxDelay caps a single wait
// (zero means uncapped). jitter is only used by BackoffJittered and is
// clamped to [0, 1].
func WithBackoff(kind BackoffType, maxDelay time.Duration, jitter float64) WorkerPoolOption {
	return func(cfg *workerPoolConfig) {
		cfg.backoff.Kind = kind
		if maxDelay > 0 {
			cfg.backoff.Max = maxDelay
		}
		cfg.backoff.Jitter = jitter
	}
}

// WithRateLimit bounds how fast tasks start across the whole pool.
//
// Example:
//
//	WithRateLimit(10, 5) // 10 tasks/sec with a burst of 5
func WithRateLimit(tasksPerSecond float64, burst int) WorkerPoolOption {
	return func(cfg *workerPoolConfig) {
		if tasksPerSecond > 0 && burst > 0 {
			cfg.rateLimiter = rate.NewLimiter(rate.Limit(tasksPerSecond), burst)
		}
	}
}

// WithThreadAffinity locks every worker to its own OS thread and, on
// Linux, pins that thread to a CPU.
func WithThreadAffinity() WorkerPoolOption {
	return func(cfg *workerPoolConfig) {
		cfg.pinThreads = true
	}
}

// WithName labels the pool in logs and metrics.
func WithName(name string) WorkerPoolOption {
	return func(cfg *workerPoolConfig) {
		if name != "" {
			cfg.name = name
		}
	}
}

// WithLogger sets the logger for worker lifecycle events.
func WithLogger(logger *zap.Logger) WorkerPoolOption {
	return func(cfg *workerPoolConfig) {
		cfg.logger = logger
	}
}

// WithMetrics registers the pool's collectors with reg. Pools sharing a
// registerer need distinct names.
func WithMetrics(reg prometheus.Registerer) WorkerPoolOption {
	return func(cfg *workerPoolConfig) {
		cfg.registerer = reg
	}
}

// WithBeforeTaskStart runs fn on the worker right before each task.
// WorkerID(ctx) identifies the worker.
func WithBeforeTaskStart(fn func(ctx context.Context)) WorkerPoolOption {
	return func(cfg *workerPoolConfig) {
		cfg.beforeTaskStart = fn
	}
}

// WithOnTaskEnd runs fn after each task with the task's final error.
func WithOnTaskEnd(fn func(ctx context.Context, err error)) WorkerPoolOption {
	return func(cfg *workerPoolConfig) {
		cfg.onTaskEnd = fn
	}
}
