package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/stopwatch/internal/output"
	"github.com/wesleyorama2/stopwatch/internal/replay"
)

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <events.jsonl>",
		Short: "Replay recorded timing events and report the statistics",
		Long: `Feed a JSON lines file of timing events through the timers and print a report.
Use "-" to read from standard input.

Each line is one event:
  {"timer": "db.query", "at": "2024-01-01T10:00:00Z", "elapsed": "12ms", "error": false}

"elapsed" is a duration string or a number of milliseconds. Whenever the event
time crosses a period boundary, every timer delivers a snapshot to its
moving-average window.`,
		Args: cobra.ExactArgs(1),
		RunE: runReplay,
	}

	cmd.Flags().Duration("period", 0, "Moving-average period (default: from config)")

	return cmd
}

func runReplay(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd, "replay")
	if err != nil {
		return err
	}

	period := s.cfg.Period.Duration()
	if p, _ := cmd.Flags().GetDuration("period"); p > 0 {
		period = p
	}

	var in io.Reader
	if args[0] == "-" {
		in = cmd.InOrStdin()
	} else {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open events file: %w", err)
		}
		defer f.Close()
		in = f
	}

	// One idle period per retained snapshot is enough to flush every window.
	rp := replay.New(s.group, period, s.logger, replay.WithMaxIdlePeriods(s.cfg.Window+1))
	res, err := rp.Run(cmd.Context(), in)
	if err != nil {
		return fmt.Errorf("replay failed: %w", err)
	}

	if s.format == output.FormatTable {
		fmt.Fprintf(cmd.OutOrStdout(), "Replayed %d events over %d periods (%s to %s)\n\n",
			res.Events, res.Periods, res.First.Format("15:04:05"), res.Last.Format("15:04:05"))
	}

	return s.report(cmd)
}
