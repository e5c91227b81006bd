package pool

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Map submits one task per input and returns a handle to their results.
// Each task runs fn under the pool's policy; a panic or error stays in
// that item's Result. Items that have not started when ctx is done get
// ctx.Err() as their error.
//
// Map may be called from inside a pool task with that task's ctx, and the
// nested batch can be joined there.
func Map[T, R any](ctx context.Context, wp *WorkerPool, inputs []T, fn ProcessFunc[T, R]) *JoinHandle[R] {
	h := newJoinHandle[R](len(inputs))
	for i, input := range inputs {
		wp.submit(&task{
			ctx: ctx,
			run: func(ctx context.Context) {
				var value R
				err := wp.c.invoke(ctx, func(ctx context.Context) error {
					v, err := fn(ctx, input)
					value = v
					return err
				})
				h.store(Result[R]{Value: value, Error: err, Index: i})
			},
		})
	}
	return h
}

// Submit runs a single task and returns a handle to its one result.
func Submit[R any](ctx context.Context, wp *WorkerPool, fn func(ctx context.Context) (R, error)) *JoinHandle[R] {
	return Map(ctx, wp, []struct{}{{}}, func(ctx context.Context, _ struct{}) (R, error) {
		return fn(ctx)
	})
}

// Go runs fn on the pool without waiting for it. Errors and panics are
// logged and counted.
func (wp *WorkerPool) Go(ctx context.Context, fn func(ctx context.Context) error) {
	c := wp.c
	wp.submit(&task{
		ctx: ctx,
		run: func(ctx context.Context) {
			err := c.invoke(ctx, fn)
			switch {
			case err == nil:
			case errors.Is(err, ErrTaskPanicked):
				c.log.Warn("task panicked", zap.Error(err))
			default:
				c.log.Debug("task failed", zap.Error(err))
			}
		},
	})
}
