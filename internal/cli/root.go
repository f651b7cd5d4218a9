package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

// NewRootCmd builds the stopwatch command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "stopwatch",
		Short:   "Per-timer latency statistics with distributions and moving averages",
		Version: version,
		Long: `Stopwatch accumulates statistics for named timers: hit and error counts,
min/max/average/standard deviation, concurrency, a bucketed time distribution
and HDR latency percentiles. Events can be replayed from a JSON lines file or
generated by a concurrent simulation, and reported as a table, JSON or YAML.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			// If no subcommand is provided, print help
			cmd.Help()
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "Configuration file (YAML or JSON)")
	root.PersistentFlags().StringP("format", "f", "table", "Report format (table, json, yaml)")
	root.PersistentFlags().Bool("no-color", false, "Disable colored output")
	root.PersistentFlags().String("log-level", "", "Override the configured log level")

	root.AddCommand(newReplayCmd())
	root.AddCommand(newSimulateCmd())
	root.AddCommand(newSchemaCmd())

	return root
}

// Execute runs the root command until it finishes or the process is interrupted.
// This is called by main.main().
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
