// Package scheduler delivers period boundaries to timers on a fixed interval.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// PeriodNotifier receives period boundaries. *timer.Group and
// *timer.Accumulator both satisfy it.
type PeriodNotifier interface {
	NotifyPeriodChange()
}

// Scheduler calls NotifyPeriodChange on every tick of its interval.
//
// It runs a single background goroutine, so notifications never overlap.
type Scheduler struct {
	interval time.Duration
	notifier PeriodNotifier
	logger   zerolog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	periods int64
}

// New creates a scheduler. A non-positive interval defaults to one minute.
func New(interval time.Duration, notifier PeriodNotifier, logger zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		interval: interval,
		notifier: notifier,
		logger:   logger,
	}
}

// Start begins delivering periods until ctx is done or Stop is called.
// Calling Start on a running scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go s.run(runCtx)

	s.logger.Debug().Dur("interval", s.interval).Msg("period scheduler started")
}

// run runs the background period loop.
func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	s.notifier.NotifyPeriodChange()

	s.mu.Lock()
	s.periods++
	n := s.periods
	s.mu.Unlock()

	s.logger.Debug().Int64("period", n).Msg("period delivered")
}

// Stop stops the scheduler and delivers one final period so the sink sees
// the state at shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()

	s.tick()
	s.logger.Debug().Int64("periods", s.Periods()).Msg("period scheduler stopped")
}

// Periods returns the number of periods delivered so far.
func (s *Scheduler) Periods() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.periods
}

// IsRunning reports whether the scheduler is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
