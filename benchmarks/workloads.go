// Package benchmarks measures pool throughput and the cost of parking.
package benchmarks

import (
	"context"
	"math"

	"github.com/utkarsh5026/handoff/pool"
)

// cpuBoundWork spins for iterations rounds of floating point work.
func cpuBoundWork(iterations int) pool.ProcessFunc[int, float64] {
	return func(_ context.Context, task int) (float64, error) {
		acc := float64(task)
		for i := range iterations {
			acc += math.Sqrt(float64(i)) * math.Sin(acc)
		}
		return acc, nil
	}
}

// parkingWork waits on gate before doing a small amount of work, so every
// task parks its worker once.
func parkingWork(gate *pool.Alarm) pool.ProcessFunc[int, int] {
	return func(ctx context.Context, task int) (int, error) {
		if err := gate.Set(ctx); err != nil {
			return 0, err
		}
		return task * 2, nil
	}
}

// fanOut sums 0..n-1 by splitting the range in halves down to leaf size,
// each half a nested batch on the enclosing pool.
func fanOut(leaf int) pool.ProcessFunc[[2]int, int] {
	var split pool.ProcessFunc[[2]int, int]
	split = func(ctx context.Context, r [2]int) (int, error) {
		lo, hi := r[0], r[1]
		if hi-lo <= leaf {
			sum := 0
			for i := lo; i < hi; i++ {
				sum += i
			}
			return sum, nil
		}

		wp, ok := pool.FromContext(ctx)
		if !ok {
			return 0, nil
		}
		mid := lo + (hi-lo)/2
		results, err := pool.Map(ctx, wp, [][2]int{{lo, mid}, {mid, hi}}, split).Join(ctx)
		if err != nil {
			return 0, err
		}
		values, err := pool.Values(results)
		if err != nil {
			return 0, err
		}
		return values[0] + values[1], nil
	}
	return split
}

func makeInputs(n int) []int {
	inputs := make([]int, n)
	for i := range inputs {
		inputs[i] = i
	}
	return inputs
}
