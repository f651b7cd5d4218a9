package cli

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/stopwatch/internal/export"
	"github.com/wesleyorama2/stopwatch/internal/pacer"
	"github.com/wesleyorama2/stopwatch/internal/scheduler"
	"github.com/wesleyorama2/stopwatch/internal/timer"
)

// simulation describes a synthetic workload.
type simulation struct {
	Timers     []string
	Workers    int
	Iterations int
	Mean       time.Duration
	ErrorRate  float64
	Realtime   bool
	Seed       uint64

	// Rate caps operations per second across all workers; zero is unpaced
	Rate float64
}

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Record a synthetic concurrent workload and report the statistics",
		Long: `Run concurrent workers that time random operations against the configured
timers. Elapsed times are exponentially distributed around --mean and a
fraction --error-rate of operations fail. --rate spaces operations evenly
across all workers.

While the simulation runs, a scheduler delivers a moving-average period every
configured period. With --listen the timers are exposed in Prometheus format
at /metrics.

Example:
  stopwatch simulate --timers db.query,cache.get --workers 16 --iterations 5000 \
    --mean 20ms --error-rate 0.02 --realtime --listen :9090`,
		Args: cobra.NoArgs,
		RunE: runSimulate,
	}

	cmd.Flags().StringSlice("timers", []string{"db.query", "cache.get", "http.call"}, "Timer names")
	cmd.Flags().IntP("workers", "w", 8, "Number of concurrent workers")
	cmd.Flags().IntP("iterations", "n", 1000, "Operations per worker")
	cmd.Flags().Duration("mean", 20*time.Millisecond, "Mean elapsed time")
	cmd.Flags().Float64("error-rate", 0.05, "Fraction of operations that fail (0.0 to 1.0)")
	cmd.Flags().Bool("realtime", false, "Sleep for each elapsed time instead of recording it instantly")
	cmd.Flags().Float64("rate", 0, "Operations per second across all workers (0 is unlimited)")
	cmd.Flags().Uint64("seed", 0, "Random seed (0 picks one from the clock)")
	cmd.Flags().String("listen", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().Duration("period", 0, "Moving-average period (default: from config)")

	return cmd
}

func runSimulate(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd, "simulate")
	if err != nil {
		return err
	}

	sim, err := simulationFromFlags(cmd)
	if err != nil {
		return err
	}

	period := s.cfg.Period.Duration()
	if p, _ := cmd.Flags().GetDuration("period"); p > 0 {
		period = p
	}

	ctx := cmd.Context()

	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		_, stop, err := serveMetrics(listen, s.group, s.logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	sched := scheduler.New(period, s.group, s.logger)
	sched.Start(ctx)

	start := time.Now()
	sim.run(ctx, s.group)
	sched.Stop()

	s.logger.Info().
		Dur("took", time.Since(start)).
		Int64("periods", sched.Periods()).
		Msg("simulation finished")

	if err := ctx.Err(); err != nil {
		return err
	}
	return s.report(cmd)
}

func simulationFromFlags(cmd *cobra.Command) (*simulation, error) {
	sim := &simulation{}
	sim.Timers, _ = cmd.Flags().GetStringSlice("timers")
	sim.Workers, _ = cmd.Flags().GetInt("workers")
	sim.Iterations, _ = cmd.Flags().GetInt("iterations")
	sim.Mean, _ = cmd.Flags().GetDuration("mean")
	sim.ErrorRate, _ = cmd.Flags().GetFloat64("error-rate")
	sim.Realtime, _ = cmd.Flags().GetBool("realtime")
	sim.Seed, _ = cmd.Flags().GetUint64("seed")
	sim.Rate, _ = cmd.Flags().GetFloat64("rate")

	if err := sim.validate(); err != nil {
		return nil, err
	}
	if sim.Seed == 0 {
		sim.Seed = uint64(time.Now().UnixNano())
	}
	return sim, nil
}

func (sim *simulation) validate() error {
	switch {
	case len(sim.Timers) == 0:
		return errors.New("at least one timer is required")
	case sim.Workers < 1:
		return errors.New("workers must be at least 1")
	case sim.Iterations < 0:
		return errors.New("iterations must not be negative")
	case sim.Mean < 0:
		return errors.New("mean must not be negative")
	case sim.ErrorRate < 0 || sim.ErrorRate > 1:
		return fmt.Errorf("error-rate must be between 0 and 1, got %v", sim.ErrorRate)
	case sim.Rate < 0:
		return errors.New("rate must not be negative")
	}
	return nil
}

// run starts the workers and waits for them. Cancelling ctx stops every
// worker after its current operation.
func (sim *simulation) run(ctx context.Context, g *timer.Group) {
	var p *pacer.Pacer
	if sim.Rate > 0 {
		p = pacer.New(sim.Rate)
	}

	var wg sync.WaitGroup
	for w := 0; w < sim.Workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			sim.worker(ctx, g, p, rand.New(rand.NewPCG(sim.Seed, uint64(worker))))
		}(w)
	}
	wg.Wait()
}

func (sim *simulation) worker(ctx context.Context, g *timer.Group, p *pacer.Pacer, rng *rand.Rand) {
	for i := 0; i < sim.Iterations; i++ {
		if ctx.Err() != nil {
			return
		}
		if p != nil {
			if err := p.Wait(ctx); err != nil {
				return
			}
		}

		a := g.Timer(sim.Timers[rng.IntN(len(sim.Timers))])
		elapsed := time.Duration(rng.ExpFloat64() * float64(sim.Mean))
		failed := rng.Float64() < sim.ErrorRate

		start := time.Now()
		a.RecordStart(start)
		if sim.Realtime {
			select {
			case <-ctx.Done():
			case <-time.After(elapsed):
			}
			elapsed = time.Since(start)
		}
		a.RecordStop(start.Add(elapsed), elapsed, failed)
	}
}

// serveMetrics exposes the group on addr/metrics. It returns the bound
// address and a function that shuts the server down.
func serveMetrics(addr string, g *timer.Group, logger zerolog.Logger) (string, func(), error) {
	registry := export.NewRegistry(g)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.InstrumentMetricHandler(registry, promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("failed to serve metrics on %s: %w", addr, err)
	}

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()

	bound := ln.Addr().String()
	logger.Info().Str("address", bound).Msg("serving metrics on /metrics")

	return bound, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Warn().Err(err).Msg("metrics server shutdown failed")
		}
	}, nil
}
