package pool

import "context"

type scopeKey struct{}

// scope is what a worker attaches to the context of the task it runs.
type scope struct {
	pool   *WorkerPool
	worker *worker
}

func withScope(ctx context.Context, wp *WorkerPool, w *worker) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope{pool: wp, worker: w})
}

func scopeFrom(ctx context.Context) (scope, bool) {
	if ctx == nil {
		return scope{}, false
	}
	s, ok := ctx.Value(scopeKey{}).(scope)
	return s, ok
}

// FromContext returns the pool whose worker is running the task that owns
// ctx. It reports false outside of pool tasks.
//
// A task context must not be handed to other goroutines that outlive or
// run beside the task; parking through it from elsewhere is treated as a
// plain wait.
func FromContext(ctx context.Context) (*WorkerPool, bool) {
	s, ok := scopeFrom(ctx)
	if !ok {
		return nil, false
	}
	return s.pool, true
}

// WorkerID returns the identity of the worker running the task that owns ctx.
func WorkerID(ctx context.Context) (uint64, bool) {
	s, ok := scopeFrom(ctx)
	if !ok {
		return 0, false
	}
	return s.worker.id, true
}
