// Package pacer spaces operations evenly at a target rate.
package pacer

import (
	"context"
	"sync"
	"time"
)

// Pacer is a leaky bucket: it keeps a virtual drip time that advances at a
// fixed rate, and Next returns when the next operation may start. Callers
// that fall behind schedule start immediately, but never more than one
// operation is banked, so a stalled consumer does not cause a burst.
//
// A Pacer is safe for concurrent use; concurrent callers share the rate.
type Pacer struct {
	mu          sync.Mutex
	rate        float64 // operations per second
	lastDrip    time.Time
	accumulated float64
	now         func() time.Time
	scheduled   int64
}

// New creates a pacer for rate operations per second. A non-positive rate
// defaults to 1. The first operation may start immediately.
func New(rate float64) *Pacer {
	return newWithClock(rate, time.Now)
}

func newWithClock(rate float64, now func() time.Time) *Pacer {
	if rate <= 0 {
		rate = 1
	}
	return &Pacer{
		rate:        rate,
		lastDrip:    now(),
		accumulated: 1,
		now:         now,
	}
}

// Next reserves the next slot and returns its start time, which is in the
// past or present when the caller is behind schedule.
func (p *Pacer) Next() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	p.scheduled++

	// A slot is already reserved in the future: queue behind it.
	if p.lastDrip.After(now) {
		p.lastDrip = p.lastDrip.Add(p.interval())
		return p.lastDrip
	}

	p.accumulated += now.Sub(p.lastDrip).Seconds() * p.rate
	if p.accumulated > 1 {
		p.accumulated = 1
	}

	if p.accumulated >= 1 {
		p.accumulated--
		p.lastDrip = now
		return now
	}

	wait := (1 - p.accumulated) / p.rate
	p.accumulated = 0

	// lastDrip moves to the reserved slot so waking up at it does not count
	// the wait twice.
	next := now.Add(time.Duration(wait * float64(time.Second)))
	p.lastDrip = next
	return next
}

func (p *Pacer) interval() time.Duration {
	return time.Duration(float64(time.Second) / p.rate)
}

// Wait blocks until the next slot or until ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	d := time.Until(p.Next())
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Rate returns the target rate in operations per second.
func (p *Pacer) Rate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate
}

// Scheduled returns how many slots have been handed out.
func (p *Pacer) Scheduled() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scheduled
}
