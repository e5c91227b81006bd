// Package pool provides a worker pool for CPU-bound work whose
// concurrency survives tasks that block.
//
// The primary type is WorkerPool, a set of worker goroutines fed from a
// FIFO task queue. Batches are scattered with Map and gathered through a
// JoinHandle, which returns one Result per input in input order with
// panics and errors isolated per item.
//
// # Basic Usage
//
//	ctx := context.Background()
//	wp := pool.New(4)
//	results, err := pool.Map(ctx, wp, []int{1, 2, 3, 4, 5}, func(ctx context.Context, x int) (int, error) {
//	    return x * x, nil
//	}).Join(ctx)
//	// results[i].Value: 1, 4, 9, 16, 25
//
// # Blocking Inside a Worker
//
// A task that has to wait for something outside the pool waits on an
// Alarm with the context it was given:
//
//	alarm := pool.NewAlarm()
//	wp.Go(ctx, func(ctx context.Context) error {
//	    return alarm.Set(ctx) // this worker parks, a stand-in takes its place
//	})
//	...
//	alarm.Buzz()
//
// While the task is parked the pool spawns a stand-in worker, so the
// number of workers free to run tasks stays at the pool's size. After
// Buzz the parked worker waits until some worker finishing its current
// task retires in its favour, which brings the pool back to its size.
// JoinHandle.Join waits the same way, so a task may Map a nested batch
// and join it even on a pool with a single worker.
//
// # Self-Lookup
//
// FromContext returns the pool running the current task, and WorkerID
// identifies the worker:
//
//	wp.Go(ctx, func(ctx context.Context) error {
//	    self, _ := pool.FromContext(ctx)
//	    _, err := pool.Map(ctx, self, parts, process).Join(ctx)
//	    return err
//	})
//
// # Retry Logic and Rate Limiting
//
//	wp := pool.NewWorkerPool(
//	    pool.WithWorkerCount(8),
//	    pool.WithRetryPolicy(3, 50*time.Millisecond),
//	    pool.WithBackoff(pool.BackoffJittered, time.Second, 0.2),
//	    pool.WithRateLimit(100, 10),
//	)
//
// # Observability
//
// WithLogger takes a *zap.Logger for worker lifecycle events, and
// WithMetrics registers Prometheus gauges and counters labelled with the
// pool's name.
//
// # Lifetime
//
// There is no Close. Queued tasks keep their pool alive; once the handle
// is unreachable and the queue is empty, idle workers exit.
package pool
