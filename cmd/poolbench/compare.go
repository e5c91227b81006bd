package main

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"os"
	"runtime"
	"slices"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/utkarsh5026/handoff/pool"
)

func newCompareCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Time pool.Map against errgroup and a sequential loop",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCompare(cmd.Context(), a, compareOptions{
				tasks:      a.v.GetInt("tasks"),
				spin:       a.v.GetInt("spin"),
				iterations: a.v.GetInt("iterations"),
				nested:     a.v.GetBool("nested"),
			})
		},
	}
	cmd.Flags().Int("tasks", 256, "tasks per run")
	cmd.Flags().Int("spin", 50_000, "loop iterations of CPU work per task")
	cmd.Flags().Int("iterations", 3, "timed runs per strategy")
	cmd.Flags().Bool("nested", false, "split the batch into nested Map calls inside the pool")
	return cmd
}

type compareOptions struct {
	tasks      int
	spin       int
	iterations int
	nested     bool
}

type strategyResult struct {
	Name  string
	Mean  time.Duration
	Best  time.Duration
	Check float64
}

type strategy struct {
	name string
	run  func(ctx context.Context, inputs []int) (float64, error)
}

func spinWork(spin int) pool.ProcessFunc[int, float64] {
	return func(_ context.Context, x int) (float64, error) {
		acc := float64(x)
		for i := range spin {
			acc += math.Sin(float64(i)) * math.Cos(acc)
		}
		return acc, nil
	}
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

func runCompare(ctx context.Context, a *app, opts compareOptions) error {
	if opts.tasks <= 0 || opts.iterations <= 0 {
		return fmt.Errorf("tasks and iterations must be > 0")
	}

	work := spinWork(opts.spin)
	inputs := make([]int, opts.tasks)
	for i := range inputs {
		inputs[i] = i
	}

	wp := a.newPool("compare")
	strategies := []strategy{
		{name: "pool.Map", run: func(ctx context.Context, in []int) (float64, error) {
			if opts.nested {
				return nestedMap(ctx, wp, in, work)
			}
			results, err := pool.Map(ctx, wp, in, work).Join(ctx)
			if err != nil {
				return 0, err
			}
			values, err := pool.Values(results)
			return sum(values), err
		}},
		{name: "errgroup", run: func(ctx context.Context, in []int) (float64, error) {
			out := make([]float64, len(in))
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(runtime.GOMAXPROCS(0))
			for i, x := range in {
				g.Go(func() error {
					v, err := work(gctx, x)
					out[i] = v
					return err
				})
			}
			err := g.Wait()
			return sum(out), err
		}},
		{name: "sequential", run: func(ctx context.Context, in []int) (float64, error) {
			total := 0.0
			for _, x := range in {
				v, err := work(ctx, x)
				if err != nil {
					return 0, err
				}
				total += v
			}
			return total, nil
		}},
	}

	bar := makeProgressBar(len(strategies)*opts.iterations, "Running strategies")
	results := make([]strategyResult, 0, len(strategies))
	for _, s := range strategies {
		res := strategyResult{Name: s.name, Best: time.Duration(math.MaxInt64)}
		var total time.Duration
		for range opts.iterations {
			start := time.Now()
			check, err := s.run(ctx, inputs)
			elapsed := time.Since(start)
			if err != nil {
				_, _ = red.Printf("Error running %s: %v\n", s.name, err)
				return err
			}
			total += elapsed
			res.Best = min(res.Best, elapsed)
			res.Check = check
			_ = bar.Add(1)
		}
		res.Mean = total / time.Duration(opts.iterations)
		results = append(results, res)
	}
	_ = bar.Finish()

	return renderComparison(results, wp.Size())
}

// nestedMap splits inputs in two nested batches run from inside the pool.
func nestedMap(ctx context.Context, wp *pool.WorkerPool, inputs []int, work pool.ProcessFunc[int, float64]) (float64, error) {
	mid := len(inputs) / 2
	halves := [][]int{inputs[:mid], inputs[mid:]}

	results, err := pool.Map(ctx, wp, halves, func(ctx context.Context, part []int) (float64, error) {
		self, _ := pool.FromContext(ctx)
		inner, err := pool.Map(ctx, self, part, work).Join(ctx)
		if err != nil {
			return 0, err
		}
		values, err := pool.Values(inner)
		return sum(values), err
	}).Join(ctx)
	if err != nil {
		return 0, err
	}
	values, err := pool.Values(results)
	return sum(values), err
}

func renderComparison(results []strategyResult, workers int) error {
	slices.SortFunc(results, func(a, b strategyResult) int {
		return cmp.Compare(a.Mean, b.Mean)
	})
	fastest := results[0].Mean

	fmt.Println()
	_, _ = bold.Printf("Throughput on %d workers (GOMAXPROCS=%d)\n", workers, runtime.GOMAXPROCS(0))
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Rank", "Strategy", "Mean", "Best", "vs Fastest", "Checksum")
	for i, r := range results {
		ratio := "baseline"
		if i > 0 && fastest > 0 {
			ratio = fmt.Sprintf("%.2fx slower", float64(r.Mean)/float64(fastest))
		}
		_ = table.Append(
			fmt.Sprintf("%d", i+1),
			r.Name,
			r.Mean.Round(time.Microsecond).String(),
			r.Best.Round(time.Microsecond).String(),
			ratio,
			fmt.Sprintf("%.4g", r.Check),
		)
	}
	return table.Render()
}
