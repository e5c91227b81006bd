// Command poolbench drives the handoff worker pool through its main
// behaviours: ordered scatter/gather, panic isolation, parking with
// hand-off, and throughput against simpler strategies.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "0.1.0"

var (
	bold  = color.New(color.Bold)
	red   = color.New(color.FgRed)
	green = color.New(color.FgGreen)
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(viper.New()).ExecuteContext(ctx)
	stop()
	if err != nil {
		_, _ = red.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	app := &app{v: v}

	root := &cobra.Command{
		Use:           "poolbench",
		Short:         "Exercise the handoff worker pool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			app.teardown()
		},
	}

	flags := root.PersistentFlags()
	flags.Int("workers", 0, "pool size (0 = GOMAXPROCS after quota detection)")
	flags.Int("max-workers", 0, "cap on live workers including stand-ins (0 = none)")
	flags.String("log-level", "warn", "log level: debug, info, warn, error")
	flags.Bool("metrics", false, "print pool metrics after the run")
	flags.Bool("pin", false, "pin workers to CPUs")

	root.AddCommand(
		newSquaresCmd(app),
		newPanicsCmd(app),
		newHandoffCmd(app),
		newCompareCmd(app),
	)
	return root
}
