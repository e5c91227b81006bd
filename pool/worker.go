package pool

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/utkarsh5026/handoff/internal/algorithms"
	"github.com/utkarsh5026/handoff/internal/cpu"
)

type worker struct {
	id   uint64
	core *core
	done chan struct{}

	// parked is set while the worker's task waits on an alarm.
	parked atomic.Bool
}

// run is the worker loop: hand off to a released worker if one is
// pending, otherwise take the next task.
func (w *worker) run() {
	c := w.core
	defer close(w.done)
	defer c.metrics.retired.Inc()

	if c.cfg.pinThreads {
		unlock, err := cpu.Pin(int(w.id % (1 << 31)))
		defer unlock()
		if err != nil {
			c.log.Debug("cpu pinning failed", zap.Uint64("worker", w.id), zap.Error(err))
		}
	}

	for {
		if c.pendingCount.Load()+c.surplus.Load() > 0 && c.claim(w) {
			return
		}

		t, ok, err := c.tasks.PopOrWake()
		if err != nil {
			c.mu.Lock()
			c.removeSelf(w)
			c.mu.Unlock()
			c.log.Debug("worker exiting", zap.Uint64("worker", w.id))
			return
		}
		if !ok {
			continue
		}
		c.execute(w, t)
	}
}

// execute runs one task. Task bodies recover their own panics; this
// boundary only guards what runs around them.
func (c *core) execute(w *worker, t *task) {
	defer func() {
		if r := recover(); r != nil {
			err := recovered(r)
			c.metrics.panics.Inc()
			c.log.Error("task escaped its recovery boundary",
				zap.Uint64("worker", w.id), zap.Error(err))
		}
	}()

	c.metrics.tasks.Inc()
	t.run(withScope(t.ctx, t.owner, w))
}

// invoke runs fn under the pool's task policy: cancellation check, rate
// limit, hooks, retries and panic recovery.
func (c *core) invoke(ctx context.Context, fn func(context.Context) error) error {
	err := protect(func() error { return c.start(ctx, fn) })

	if c.cfg.onTaskEnd != nil {
		herr := protect(func() error {
			c.cfg.onTaskEnd(ctx, err)
			return nil
		})
		if err == nil {
			err = herr
		}
	}

	if err != nil {
		c.metrics.failures.Inc()
		if errors.Is(err, ErrTaskPanicked) {
			c.metrics.panics.Inc()
		}
	}
	return err
}

func (c *core) start(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.cfg.rateLimiter != nil {
		if err := c.cfg.rateLimiter.Wait(ctx); err != nil {
			return err
		}
	}
	if c.cfg.beforeTaskStart != nil {
		c.cfg.beforeTaskStart(ctx)
	}
	return c.withRetry(ctx, fn)
}

// protect converts a panic in fn into a *PanicError.
func protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
	}()
	return fn()
}

func (c *core) withRetry(ctx context.Context, fn func(context.Context) error) error {
	var (
		err     error
		backoff algorithms.Strategy
	)
	for attempt := range c.cfg.maxAttempts {
		if attempt > 0 {
			if backoff == nil {
				backoff = algorithms.New(c.cfg.backoff)
			}
			if err := sleep(ctx, backoff.Delay(attempt-1)); err != nil {
				return err
			}
		}

		if err = fn(ctx); err == nil || ctx.Err() != nil {
			return err
		}
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
