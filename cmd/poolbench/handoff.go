package main

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/utkarsh5026/handoff/pool"
)

func newHandoffCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "handoff",
		Short: "Park workers on an alarm, keep computing, then release them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHandoff(cmd.Context(), a, handoffOptions{
				parked:   a.v.GetInt("parked"),
				work:     a.v.GetInt("work"),
				buzzers:  a.v.GetInt("buzzers"),
				hold:     a.v.GetDuration("hold"),
				deadline: a.v.GetDuration("deadline"),
			})
		},
	}
	cmd.Flags().Int("parked", 0, "tasks that park on the alarm (0 = pool size)")
	cmd.Flags().Int("work", 0, "CPU tasks run while others are parked (0 = 8x pool size)")
	cmd.Flags().Int("buzzers", 3, "goroutines racing to buzz the alarm")
	cmd.Flags().Duration("hold", 100*time.Millisecond, "how long buzzers wait before releasing")
	cmd.Flags().Duration("deadline", 10*time.Second, "give up waiting for the pool to settle after this long")
	return cmd
}

type handoffOptions struct {
	parked   int
	work     int
	buzzers  int
	hold     time.Duration
	deadline time.Duration
}

func runHandoff(ctx context.Context, a *app, opts handoffOptions) error {
	wp := a.newPool("handoff")
	if opts.parked <= 0 {
		opts.parked = wp.Size()
	}
	if opts.work <= 0 {
		opts.work = 8 * wp.Size()
	}
	ctx, cancel := context.WithTimeout(ctx, opts.deadline)
	defer cancel()

	snaps := []poolSnapshot{snapshot("idle", wp)}

	alarm := pool.NewAlarm()
	parked := pool.Map(ctx, wp, make([]int, opts.parked), func(ctx context.Context, _ int) (int, error) {
		id, _ := pool.WorkerID(ctx)
		if err := alarm.Set(ctx); err != nil {
			return 0, err
		}
		return int(id), nil
	})
	if err := settle(ctx, func() bool { return wp.Blocked() == opts.parked }); err != nil {
		return fmt.Errorf("waiting for %d workers to park: %w", opts.parked, err)
	}
	snaps = append(snaps, snapshot("parked", wp))

	bar := makeProgressBar(opts.work, "Computing while parked")
	work, err := pool.Map(ctx, wp, make([]int, opts.work), func(_ context.Context, i int) (float64, error) {
		defer func() { _ = bar.Add(1) }()
		acc := 0.0
		for j := range 200_000 {
			acc += math.Sqrt(float64(j + i))
		}
		return acc, nil
	}).Join(ctx)
	if err != nil {
		return err
	}
	_ = bar.Finish()
	if _, err := pool.Values(work); err != nil {
		return err
	}
	snaps = append(snaps, snapshot("work done", wp))

	g, gctx := errgroup.WithContext(ctx)
	for range opts.buzzers {
		g.Go(func() error {
			select {
			case <-time.After(opts.hold):
				alarm.Buzz()
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	snaps = append(snaps, snapshot("buzzed", wp))

	resumed, err := parked.Join(ctx)
	if err != nil {
		return err
	}
	if _, err := pool.Values(resumed); err != nil {
		return err
	}
	if err := settle(ctx, func() bool {
		return wp.Workers() == wp.Size() && wp.Pending() == 0
	}); err != nil {
		return fmt.Errorf("waiting for hand-offs: %w", err)
	}
	snaps = append(snaps, snapshot("resumed", wp))

	_, _ = bold.Printf("Parked %d of %d workers and ran %d tasks meanwhile\n", opts.parked, wp.Size(), opts.work)
	return renderSnapshots(snaps)
}

// settle polls cond until it holds or ctx ends.
func settle(ctx context.Context, cond func() bool) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for !cond() {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
