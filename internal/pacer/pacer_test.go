package pacer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestNew_DefaultRate(t *testing.T) {
	tests := []struct {
		name string
		rate float64
		want float64
	}{
		{"positive rate", 100, 100},
		{"zero rate defaults to 1", 0, 1},
		{"negative rate defaults to 1", -10, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.rate).Rate())
		})
	}
}

func TestPacer_Spacing(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	p := newWithClock(100, clock.Now)

	first := p.Next()
	assert.Equal(t, clock.Now(), first, "first slot is immediate")

	second := p.Next()
	assert.Equal(t, 10*time.Millisecond, second.Sub(first))

	// Waking at the reserved slot must not grant an extra immediate slot.
	clock.Advance(10 * time.Millisecond)
	third := p.Next()
	assert.Equal(t, 10*time.Millisecond, third.Sub(second))

	assert.Equal(t, int64(3), p.Scheduled())
}

func TestPacer_NoBurstAfterStall(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	p := newWithClock(10, clock.Now)
	p.Next()

	clock.Advance(5 * time.Second)
	now := clock.Now()

	assert.Equal(t, now, p.Next(), "one banked slot is immediate")
	assert.Equal(t, 100*time.Millisecond, p.Next().Sub(now))
}

func TestPacer_WaitRespectsContext(t *testing.T) {
	p := New(1)
	p.Next()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestPacer_BackToBackCallsQueue(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	p := newWithClock(100, clock.Now)
	start := clock.Now()

	var offsets []time.Duration
	for i := 0; i < 5; i++ {
		offsets = append(offsets, p.Next().Sub(start))
	}

	assert.Equal(t, []time.Duration{
		0,
		10 * time.Millisecond,
		20 * time.Millisecond,
		30 * time.Millisecond,
		40 * time.Millisecond,
	}, offsets)
}

func TestPacer_ConcurrentSlotsAreDistinct(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	p := newWithClock(1000, clock.Now)

	var (
		mu    sync.Mutex
		slots = map[time.Time]int{}
		wg    sync.WaitGroup
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				next := p.Next()
				mu.Lock()
				slots[next]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(40), p.Scheduled())
	assert.Len(t, slots, 40, "every caller gets its own slot")

	var latest time.Time
	for s := range slots {
		if s.After(latest) {
			latest = s
		}
	}
	assert.Equal(t, 39*time.Millisecond, latest.Sub(clock.Now()))
}
