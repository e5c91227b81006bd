package pool

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	waitFor = 5 * time.Second
	tick    = 5 * time.Millisecond
)

func square(_ context.Context, x int) (int, error) {
	return x * x, nil
}

func TestWorkerPool_NewSpawnsWorkers(t *testing.T) {
	tests := []struct {
		name string
		wp   *WorkerPool
		want int
	}{
		{"explicit count", New(3), 3},
		{"option", NewWorkerPool(WithWorkerCount(5)), 5},
		{"default is GOMAXPROCS", NewWorkerPool(), runtime.GOMAXPROCS(0)},
		{"non-positive count ignored", New(0), runtime.GOMAXPROCS(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.wp.Size())
			require.Equal(t, tt.want, tt.wp.Workers())
			require.Zero(t, tt.wp.Blocked())
			require.Zero(t, tt.wp.Pending())
			require.Equal(t, tt.want, tt.wp.Active())
			require.Equal(t, defaultPoolName, tt.wp.Name())
		})
	}
}

func TestMap_Squares(t *testing.T) {
	ctx := context.Background()
	wp := New(4)

	results, err := Map(ctx, wp, []int{1, 2, 3, 4, 5}, square).Join(ctx)
	require.NoError(t, err)

	values, err := Values(results)
	require.NoError(t, err)
	require.Equal(t, []int{1, 4, 9, 16, 25}, values)
	for i, r := range results {
		require.Equal(t, i, r.Index)
	}
}

func TestMap_PanicIsIsolated(t *testing.T) {
	ctx := context.Background()
	wp := New(2)

	results, err := Map(ctx, wp, []int{1, 2, 3}, func(_ context.Context, x int) (int, error) {
		if x == 2 {
			panic("boom")
		}
		return x, nil
	}).Join(ctx)
	require.NoError(t, err)
	require.Len(t, results, 3)

	require.NoError(t, results[0].Error)
	require.Equal(t, 1, results[0].Value)
	require.NoError(t, results[2].Error)
	require.Equal(t, 3, results[2].Value)

	require.ErrorIs(t, results[1].Error, ErrTaskPanicked)
	var pe *PanicError
	require.ErrorAs(t, results[1].Error, &pe)
	require.Equal(t, "boom", pe.Value)
	require.NotEmpty(t, pe.Stack)

	// The panicking worker keeps serving.
	require.Equal(t, 2, wp.Workers())
	more, err := Map(ctx, wp, []int{6}, square).Join(ctx)
	require.NoError(t, err)
	require.Equal(t, 36, more[0].Value)
}

func TestMap_PanicWithErrorUnwraps(t *testing.T) {
	ctx := context.Background()
	sentinel := errors.New("bad input")

	results, err := Map(ctx, New(1), []int{1}, func(context.Context, int) (int, error) {
		panic(sentinel)
	}).Join(ctx)
	require.NoError(t, err)
	require.ErrorIs(t, results[0].Error, ErrTaskPanicked)
	require.ErrorIs(t, results[0].Error, sentinel)
}

func TestMap_OrderSurvivesReversedCompletion(t *testing.T) {
	ctx := context.Background()
	const n = 8
	wp := New(n)

	inputs := make([]int, n)
	for i := range inputs {
		inputs[i] = i
	}

	results, err := Map(ctx, wp, inputs, func(_ context.Context, x int) (int, error) {
		time.Sleep(time.Duration(n-x) * 5 * time.Millisecond)
		return x * 10, nil
	}).Join(ctx)
	require.NoError(t, err)

	for i, r := range results {
		require.Equal(t, i, r.Index)
		require.Equal(t, i*10, r.Value)
	}
}

func TestMap_ErrorsStayPerItem(t *testing.T) {
	ctx := context.Background()
	errOdd := errors.New("odd")

	results, err := Map(ctx, New(3), []int{1, 2, 3, 4}, func(_ context.Context, x int) (int, error) {
		if x%2 == 1 {
			return 0, errOdd
		}
		return x, nil
	}).Join(ctx)
	require.NoError(t, err)

	_, err = Values(results)
	require.ErrorIs(t, err, errOdd)
	require.ErrorIs(t, results[0].Error, errOdd)
	require.NoError(t, results[1].Error)
	require.Equal(t, 4, results[3].Value)
}

func TestMap_EmptyBatch(t *testing.T) {
	ctx := context.Background()
	h := Map(ctx, New(1), []int{}, square)

	require.True(t, h.IsFinished())
	require.Zero(t, h.Len())
	results, err := h.Join(ctx)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestMap_CancelledContextSkipsItems(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	results, err := Map(ctx, New(2), []int{1, 2, 3}, func(_ context.Context, x int) (int, error) {
		calls.Add(1)
		return x, nil
	}).Join(context.Background())
	require.NoError(t, err)

	require.Zero(t, calls.Load())
	for _, r := range results {
		require.ErrorIs(t, r.Error, context.Canceled)
	}
}

func TestWorkerPool_ConcurrencyConservation(t *testing.T) {
	ctx := context.Background()
	const workers = 4
	wp := New(workers)

	var running, peak atomic.Int32
	inputs := make([]int, 64)
	_, err := Map(ctx, wp, inputs, func(context.Context, int) (int, error) {
		cur := running.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		running.Add(-1)
		return 0, nil
	}).Join(ctx)
	require.NoError(t, err)

	require.LessOrEqual(t, peak.Load(), int32(workers))
	require.Equal(t, workers, wp.Workers())
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()
	h := Submit(ctx, New(1), func(context.Context) (string, error) {
		return "done", nil
	})

	results, err := h.Join(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "done", results[0].Value)
}

func TestWorkerPool_Go(t *testing.T) {
	ctx := context.Background()
	wp := New(2)

	done := make(chan struct{})
	wp.Go(ctx, func(context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("Go task never ran")
	}
}

func TestWorkerPool_RetryPolicy(t *testing.T) {
	ctx := context.Background()
	errFlaky := errors.New("flaky")

	t.Run("retries until success", func(t *testing.T) {
		var attempts atomic.Int32
		wp := NewWorkerPool(WithWorkerCount(1), WithRetryPolicy(3, time.Millisecond))

		results, err := Submit(ctx, wp, func(context.Context) (int, error) {
			if attempts.Add(1) < 3 {
				return 0, errFlaky
			}
			return 42, nil
		}).Join(ctx)
		require.NoError(t, err)
		require.NoError(t, results[0].Error)
		require.Equal(t, 42, results[0].Value)
		require.Equal(t, int32(3), attempts.Load())
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		var attempts atomic.Int32
		wp := NewWorkerPool(
			WithWorkerCount(1),
			WithRetryPolicy(2, time.Millisecond),
			WithBackoff(BackoffDecorrelated, 5*time.Millisecond, 0),
		)

		results, err := Submit(ctx, wp, func(context.Context) (int, error) {
			attempts.Add(1)
			return 0, errFlaky
		}).Join(ctx)
		require.NoError(t, err)
		require.ErrorIs(t, results[0].Error, errFlaky)
		require.Equal(t, int32(2), attempts.Load())
	})

	t.Run("panics are not retried", func(t *testing.T) {
		var attempts atomic.Int32
		wp := NewWorkerPool(WithWorkerCount(1), WithRetryPolicy(5, time.Millisecond))

		results, err := Submit(ctx, wp, func(context.Context) (int, error) {
			attempts.Add(1)
			panic("no retry")
		}).Join(ctx)
		require.NoError(t, err)
		require.ErrorIs(t, results[0].Error, ErrTaskPanicked)
		require.Equal(t, int32(1), attempts.Load())
	})
}

func TestWorkerPool_RateLimit(t *testing.T) {
	ctx := context.Background()
	wp := NewWorkerPool(WithWorkerCount(4), WithRateLimit(20, 1))

	start := time.Now()
	_, err := Map(ctx, wp, []int{1, 2, 3, 4, 5}, square).Join(ctx)
	require.NoError(t, err)

	// Four tokens refill at 50ms each after the initial burst.
	require.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestWorkerPool_Hooks(t *testing.T) {
	ctx := context.Background()
	var started, ended, failed, identified atomic.Int32

	wp := NewWorkerPool(
		WithWorkerCount(2),
		WithBeforeTaskStart(func(ctx context.Context) {
			started.Add(1)
			if _, ok := WorkerID(ctx); ok {
				identified.Add(1)
			}
		}),
		WithOnTaskEnd(func(_ context.Context, err error) {
			ended.Add(1)
			if err != nil {
				failed.Add(1)
			}
		}),
	)

	_, err := Map(ctx, wp, []int{1, 2, 3, 4}, func(_ context.Context, x int) (int, error) {
		if x == 4 {
			return 0, errors.New("four")
		}
		return x, nil
	}).Join(ctx)
	require.NoError(t, err)

	require.Equal(t, int32(4), started.Load())
	require.Equal(t, int32(4), identified.Load())
	require.Equal(t, int32(4), ended.Load())
	require.Equal(t, int32(1), failed.Load())
}

func TestWorkerPool_HookPanicBecomesResultError(t *testing.T) {
	ctx := context.Background()
	wp := NewWorkerPool(
		WithWorkerCount(1),
		WithBeforeTaskStart(func(context.Context) { panic("hook") }),
	)

	results, err := Map(ctx, wp, []int{1}, square).Join(ctx)
	require.NoError(t, err)
	require.ErrorIs(t, results[0].Error, ErrTaskPanicked)
}

func TestWorkerPool_ThreadAffinity(t *testing.T) {
	ctx := context.Background()
	wp := NewWorkerPool(WithWorkerCount(2), WithThreadAffinity())

	results, err := Map(ctx, wp, []int{1, 2, 3}, square).Join(ctx)
	require.NoError(t, err)
	values, err := Values(results)
	require.NoError(t, err)
	require.Equal(t, []int{1, 4, 9}, values)
}

func TestWorkerPool_ReleasesWorkersWhenUnreachable(t *testing.T) {
	c := func() *core {
		wp := New(3)
		return wp.c
	}()

	require.Eventually(t, func() bool {
		runtime.GC()
		return c.liveCount() == 0
	}, waitFor, 20*time.Millisecond)
	require.True(t, c.tasks.Closed())
}

func TestWorkerPool_StaysAliveWhileTasksQueued(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	h := func() *JoinHandle[int] {
		wp := New(1)
		return Map(ctx, wp, []int{1, 2, 3}, func(_ context.Context, x int) (int, error) {
			<-release
			return x, nil
		})
	}()

	runtime.GC()
	runtime.GC()
	close(release)

	results, err := h.Join(ctx)
	require.NoError(t, err)
	require.Len(t, results, 3)
}

func TestInvariant_DuplicateResultPanics(t *testing.T) {
	h := newJoinHandle[int](1)
	h.store(Result[int]{Index: 0})

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		require.ErrorIs(t, err, ErrInvariant)
	}()
	h.store(Result[int]{Index: 0})
}

func TestRecovered_ReraisesInvariant(t *testing.T) {
	require.Panics(t, func() {
		_ = protect(func() error {
			invariant("torn state")
			return nil
		})
	})
}
