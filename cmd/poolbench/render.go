package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/schollz/progressbar/v3"

	"github.com/utkarsh5026/handoff/pool"
)

func makeProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(50),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

// poolSnapshot is the pool's bookkeeping at one moment of a scenario.
type poolSnapshot struct {
	Phase   string
	Workers int
	Active  int
	Blocked int
	Pending int
	Queued  int
}

func snapshot(phase string, wp *pool.WorkerPool) poolSnapshot {
	return poolSnapshot{
		Phase:   phase,
		Workers: wp.Workers(),
		Active:  wp.Active(),
		Blocked: wp.Blocked(),
		Pending: wp.Pending(),
		Queued:  wp.Queued(),
	}
}

func renderSnapshots(snaps []poolSnapshot) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Phase", "Workers", "Active", "Blocked", "Pending", "Queued")
	for _, s := range snaps {
		_ = table.Append(
			s.Phase,
			strconv.Itoa(s.Workers),
			strconv.Itoa(s.Active),
			strconv.Itoa(s.Blocked),
			strconv.Itoa(s.Pending),
			strconv.Itoa(s.Queued),
		)
	}
	return table.Render()
}

// outcome renders a result's status cell.
func outcome[R any](r pool.Result[R]) string {
	if r.Error != nil {
		return red.Sprint("failed")
	}
	return green.Sprint("ok")
}

func renderResults[R any](inputs []string, results []pool.Result[R]) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Index", "Input", "Status", "Value", "Error")
	for i, r := range results {
		errText := ""
		if r.Error != nil {
			errText = firstLine(r.Error.Error())
		}
		_ = table.Append(
			strconv.Itoa(r.Index),
			inputs[i],
			outcome(r),
			fmt.Sprint(r.Value),
			errText,
		)
	}
	return table.Render()
}

func renderMetrics(g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	type row struct{ name, pool, value string }
	var rows []row
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			name := ""
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "pool" {
					name = lp.GetValue()
				}
			}
			v := m.GetGauge().GetValue() + m.GetCounter().GetValue()
			rows = append(rows, row{mf.GetName(), name, strconv.FormatFloat(v, 'f', -1, 64)})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].pool != rows[j].pool {
			return rows[i].pool < rows[j].pool
		}
		return rows[i].name < rows[j].name
	})

	fmt.Println()
	_, _ = bold.Println("Pool metrics")
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Pool", "Metric", "Value")
	for _, r := range rows {
		_ = table.Append(r.pool, r.name, r.value)
	}
	return table.Render()
}

func firstLine(s string) string {
	for i, c := range s {
		if c == '\n' {
			return s[:i]
		}
	}
	return s
}
