package main

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/utkarsh5026/handoff/pool"
)

func newSquaresCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "squares",
		Short: "Square 1..n on the pool and print results in input order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSquares(cmd.Context(), a, a.v.GetInt("count"))
		},
	}
	cmd.Flags().Int("count", 5, "number of inputs")
	return cmd
}

func runSquares(ctx context.Context, a *app, count int) error {
	wp := a.newPool("squares")

	inputs := make([]int, count)
	labels := make([]string, count)
	for i := range inputs {
		inputs[i] = i + 1
		labels[i] = strconv.Itoa(i + 1)
	}

	results, err := pool.Map(ctx, wp, inputs, func(_ context.Context, x int) (int, error) {
		return x * x, nil
	}).Join(ctx)
	if err != nil {
		return err
	}

	_, _ = bold.Printf("Squared %d inputs on %d workers\n", count, wp.Size())
	return renderResults(labels, results)
}
