package pool

import (
	"context"
	"sync"
)

// JoinHandle collects the results of a batch submitted with Map or Submit.
//
// Results are stored by input index, so Join returns them in input order
// whatever order the tasks finished in. Join waits through an Alarm:
// joining from inside a pool task parks the worker and keeps the pool's
// concurrency intact, which is what makes nested batches on a small pool
// complete.
type JoinHandle[R any] struct {
	mu      sync.Mutex
	results []Result[R]
	filled  []bool
	size    int
	count   int
	drained bool

	done Alarm
}

func newJoinHandle[R any](size int) *JoinHandle[R] {
	h := &JoinHandle[R]{
		results: make([]Result[R], size),
		filled:  make([]bool, size),
		size:    size,
	}
	if size == 0 {
		h.done.Buzz()
	}
	return h
}

// store records the result for r.Index and releases joiners once every
// index is filled.
func (h *JoinHandle[R]) store(r Result[R]) {
	h.mu.Lock()
	if r.Index < 0 || r.Index >= h.size || h.filled[r.Index] {
		h.mu.Unlock()
		invariant("result %d stored twice or out of range", r.Index)
	}
	h.results[r.Index] = r
	h.filled[r.Index] = true
	h.count++
	finished := h.count == h.size
	h.mu.Unlock()

	if finished {
		h.done.Buzz()
	}
}

// Join blocks until every result is in and returns them ordered by input
// index. The results can be drained once; later calls return
// ErrAlreadyJoined. If ctx ends first Join returns ctx.Err() and the
// results stay available to a later Join.
func (h *JoinHandle[R]) Join(ctx context.Context) ([]Result[R], error) {
	for {
		h.mu.Lock()
		if h.drained {
			h.mu.Unlock()
			return nil, ErrAlreadyJoined
		}
		if h.count == h.size {
			out := h.results
			h.results, h.filled = nil, nil
			h.drained = true
			h.mu.Unlock()
			return out, nil
		}
		h.mu.Unlock()

		if err := h.done.Set(ctx); err != nil {
			return nil, err
		}
	}
}

// IsFinished reports, without blocking, whether every result is in.
func (h *JoinHandle[R]) IsFinished() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count == h.size
}

// Len returns the number of results the batch will produce.
func (h *JoinHandle[R]) Len() int { return h.size }

// Completed returns how many results are in so far.
func (h *JoinHandle[R]) Completed() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}
