package pool_test

import (
	"context"
	"fmt"

	"github.com/utkarsh5026/handoff/pool"
)

func ExampleMap() {
	ctx := context.Background()
	wp := pool.New(4)

	results, err := pool.Map(ctx, wp, []int{1, 2, 3, 4, 5}, func(_ context.Context, x int) (int, error) {
		return x * x, nil
	}).Join(ctx)
	if err != nil {
		fmt.Println(err)
		return
	}

	for _, r := range results {
		fmt.Print(r.Value, " ")
	}
	fmt.Println()
	// Output: 1 4 9 16 25
}

func ExampleAlarm() {
	ctx := context.Background()
	wp := pool.New(1)
	ready := pool.NewAlarm()

	waiting := pool.Submit(ctx, wp, func(ctx context.Context) (string, error) {
		if err := ready.Set(ctx); err != nil {
			return "", err
		}
		return "released", nil
	})

	// The parked task does not hold up the pool's only slot.
	other, _ := pool.Submit(ctx, wp, func(context.Context) (string, error) {
		return "ran while parked", nil
	}).Join(ctx)
	fmt.Println(other[0].Value)

	ready.Buzz()
	res, _ := waiting.Join(ctx)
	fmt.Println(res[0].Value)
	// Output:
	// ran while parked
	// released
}
