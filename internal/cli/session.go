package cli

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/stopwatch/internal/config"
	"github.com/wesleyorama2/stopwatch/internal/logging"
	"github.com/wesleyorama2/stopwatch/internal/movingavg"
	"github.com/wesleyorama2/stopwatch/internal/output"
	"github.com/wesleyorama2/stopwatch/internal/timer"
)

// session holds everything a command needs to record and report timers.
type session struct {
	cfg     *config.Config
	logger  zerolog.Logger
	group   *timer.Group
	windows *windowSet
	format  output.Format
	noColor bool
}

// newSession loads the configuration named by the persistent flags and builds
// a timer group whose timers each feed a moving-average window.
func newSession(cmd *cobra.Command, module string) (*session, error) {
	configFile, _ := cmd.Flags().GetString("config")
	formatName, _ := cmd.Flags().GetString("format")
	noColor, _ := cmd.Flags().GetBool("no-color")
	logLevel, _ := cmd.Flags().GetString("log-level")

	format, err := output.ParseFormat(formatName)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logger, err := logging.ConfigureLog(cfg.Logging.File, cfg.Logging.Level, module, cfg.Logging.Pretty)
	if err != nil {
		return nil, fmt.Errorf("error configuring logger: %w", err)
	}

	ranges, err := cfg.RangeConfig()
	if err != nil {
		return nil, fmt.Errorf("error building ranges: %w", err)
	}

	windows := newWindowSet(cfg.Window)
	group := timer.NewGroup(cfg.Name, ranges,
		timer.WithGroupLogger(logger),
		timer.WithGroupLatencyConfig(cfg.TimerLatencyConfig()),
		timer.WithSinkFactory(windows.create),
	)

	if !noColor {
		noColor = !output.ShouldColor(cmd.OutOrStdout())
	}

	return &session{
		cfg:     cfg,
		logger:  logger,
		group:   group,
		windows: windows,
		format:  format,
		noColor: noColor,
	}, nil
}

// report renders the group to the command's output.
func (s *session) report(cmd *cobra.Command) error {
	return output.Render(cmd.OutOrStdout(), output.NewReport(s.group, s.windows.lookup), s.format, s.noColor)
}

// windowSet creates and remembers one moving-average window per timer.
type windowSet struct {
	mu      sync.Mutex
	periods int
	windows map[string]*movingavg.Window
}

func newWindowSet(periods int) *windowSet {
	return &windowSet{periods: periods, windows: make(map[string]*movingavg.Window)}
}

func (ws *windowSet) create(name string) timer.MovingAverageSink {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	w := movingavg.NewWindow(ws.periods)
	ws.windows[name] = w
	return w
}

func (ws *windowSet) lookup(name string) (*movingavg.Window, bool) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	w, ok := ws.windows[name]
	return w, ok
}
