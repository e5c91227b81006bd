package pool

import (
	"context"
	"errors"
)

// ProcessFunc defines how a single input is processed by a batch task.
//
// Type parameters:
//   - T: The type of input
//   - R: The type of result produced
type ProcessFunc[T any, R any] func(ctx context.Context, input T) (R, error)

// Result is the outcome of one batch item.
//
// Fields:
//   - Value: The produced value (only meaningful if Error is nil)
//   - Error: The task's error, a *PanicError if it panicked, or the caller's
//     context error if the batch was cancelled before the item started
//   - Index: The item's position in the input slice
type Result[R any] struct {
	Value R
	Error error
	Index int
}

// Values unpacks results into their values and the joined errors.
func Values[R any](results []Result[R]) ([]R, error) {
	values := make([]R, len(results))
	var errs []error
	for i, r := range results {
		values[i] = r.Value
		if r.Error != nil {
			errs = append(errs, r.Error)
		}
	}
	return values, errors.Join(errs...)
}

// task is one unit of work on the pool queue. owner keeps the pool
// handle reachable while work is outstanding.
type task struct {
	ctx   context.Context
	owner *WorkerPool
	run   func(ctx context.Context)
}
