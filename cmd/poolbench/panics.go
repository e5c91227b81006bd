package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/utkarsh5026/handoff/pool"
)

func newPanicsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "panics",
		Short: "Show that a panicking task fails only its own result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPanics(cmd.Context(), a, a.v.GetInt("count"), a.v.GetInt("every"))
		},
	}
	cmd.Flags().Int("count", 6, "number of inputs")
	cmd.Flags().Int("every", 3, "panic on every n-th input")
	return cmd
}

func runPanics(ctx context.Context, a *app, count, every int) error {
	if every <= 0 {
		return fmt.Errorf("every must be > 0, got %d", every)
	}
	wp := a.newPool("panics")

	inputs := make([]int, count)
	labels := make([]string, count)
	for i := range inputs {
		inputs[i] = i + 1
		labels[i] = strconv.Itoa(i + 1)
	}

	results, err := pool.Map(ctx, wp, inputs, func(_ context.Context, x int) (int, error) {
		if x%every == 0 {
			panic(fmt.Sprintf("input %d is cursed", x))
		}
		return x * 10, nil
	}).Join(ctx)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Error != nil {
			failed++
		}
	}
	_, _ = bold.Printf("%d of %d tasks panicked; %d workers still live\n", failed, count, wp.Workers())
	return renderResults(labels, results)
}
