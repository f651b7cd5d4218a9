package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/stopwatch/internal/movingavg"
	"github.com/wesleyorama2/stopwatch/internal/timer"
)

type countingNotifier struct {
	n atomic.Int64
}

func (c *countingNotifier) NotifyPeriodChange() { c.n.Add(1) }

func TestScheduler_DeliversPeriods(t *testing.T) {
	n := &countingNotifier{}
	s := New(10*time.Millisecond, n, zerolog.Nop())

	s.Start(context.Background())
	assert.True(t, s.IsRunning())

	require.Eventually(t, func() bool { return n.n.Load() >= 3 }, time.Second, 5*time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())

	delivered := n.n.Load()
	assert.Equal(t, delivered, s.Periods())

	// No more ticks after Stop.
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, delivered, n.n.Load())
}

func TestScheduler_StopDeliversFinalPeriod(t *testing.T) {
	n := &countingNotifier{}
	s := New(time.Hour, n, zerolog.Nop())

	s.Start(context.Background())
	s.Stop()

	assert.Equal(t, int64(1), n.n.Load())
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	n := &countingNotifier{}
	s := New(time.Second, n, zerolog.Nop())

	assert.NotPanics(t, s.Stop)
	assert.Equal(t, int64(0), n.n.Load())
}

func TestScheduler_StartTwice(t *testing.T) {
	n := &countingNotifier{}
	s := New(time.Hour, n, zerolog.Nop())

	s.Start(context.Background())
	s.Start(context.Background())
	s.Stop()

	assert.Equal(t, int64(1), n.n.Load())
}

func TestScheduler_ContextCancel(t *testing.T) {
	n := &countingNotifier{}
	s := New(5*time.Millisecond, n, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	time.Sleep(20 * time.Millisecond)
	before := n.n.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, before, n.n.Load())

	s.Stop()
}

func TestScheduler_DefaultInterval(t *testing.T) {
	s := New(0, &countingNotifier{}, zerolog.Nop())
	assert.Equal(t, time.Minute, s.interval)
}

func TestScheduler_FeedsGroupWindows(t *testing.T) {
	windows := map[string]*movingavg.Window{}
	g := timer.NewGroup("api", nil, timer.WithSinkFactory(func(name string) timer.MovingAverageSink {
		w := movingavg.NewWindow(10)
		windows[name] = w
		return w
	}))

	a := g.Timer("login")
	now := time.Now()
	a.RecordStart(now)
	a.RecordStop(now, time.Millisecond, false)

	s := New(time.Hour, g, zerolog.Nop())
	s.Start(context.Background())
	s.Stop()

	require.Contains(t, windows, "login")
	latest, ok := windows["login"].Latest()
	require.True(t, ok)
	assert.Equal(t, int64(1), latest.Hits)
}
