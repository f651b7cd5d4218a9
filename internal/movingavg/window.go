// Package movingavg folds periodic timer snapshots into a moving window.
package movingavg

import (
	"sync"
	"time"

	"github.com/wesleyorama2/stopwatch/internal/timer"
)

// DefaultPeriods is the window length used when NewWindow gets a non-positive size.
const DefaultPeriods = 15

// Window keeps the most recent snapshots of one timer in a ring buffer and
// reports statistics over the periods between them.
//
// Snapshots are cumulative, so a window of N periods retains N+1 snapshots:
// the oldest one is the baseline for the first period.
//
// Window implements timer.MovingAverageSink and is safe for concurrent use.
type Window struct {
	mu        sync.RWMutex
	snapshots []timer.Snapshot
	head      int // Next write position
	count     int // Current number of snapshots
	capacity  int
}

// WindowStats summarizes the periods held by a Window.
type WindowStats struct {
	// Periods is the number of complete periods in the window
	Periods int `json:"periods" yaml:"periods"`

	// Hits and Errors are the operations started during the window
	Hits   int64 `json:"hits" yaml:"hits"`
	Errors int64 `json:"errors" yaml:"errors"`

	// TotalTime is the elapsed time accumulated during the window
	TotalTime time.Duration `json:"totalTime" yaml:"totalTime"`

	// AverageTime is TotalTime / Hits, truncated
	AverageTime time.Duration `json:"averageTime" yaml:"averageTime"`

	// HitsPerPeriod is the mean number of hits per period
	HitsPerPeriod float64 `json:"hitsPerPeriod" yaml:"hitsPerPeriod"`

	// ErrorRate is Errors / Hits (0.0 to 1.0)
	ErrorRate float64 `json:"errorRate" yaml:"errorRate"`

	// MaxThreads is the highest concurrency reported by any snapshot in the window
	MaxThreads int64 `json:"maxThreads" yaml:"maxThreads"`
}

// NewWindow creates a window covering the given number of periods.
func NewWindow(periods int) *Window {
	if periods <= 0 {
		periods = DefaultPeriods
	}

	return &Window{
		snapshots: make([]timer.Snapshot, periods+1),
		capacity:  periods + 1,
	}
}

// AddSnapshot implements timer.MovingAverageSink.
func (w *Window) AddSnapshot(s timer.Snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.snapshots[w.head] = s
	w.head = (w.head + 1) % w.capacity
	if w.count < w.capacity {
		w.count++
	}
}

// Snapshots returns the retained snapshots in chronological order.
func (w *Window) Snapshots() []timer.Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.ordered()
}

// ordered must be called with mu held.
func (w *Window) ordered() []timer.Snapshot {
	if w.count == 0 {
		return nil
	}

	result := make([]timer.Snapshot, w.count)
	start := 0
	if w.count == w.capacity {
		// Buffer is full - oldest entry sits at head
		start = w.head
	}
	for i := 0; i < w.count; i++ {
		result[i] = w.snapshots[(start+i)%w.capacity]
	}
	return result
}

// Latest returns the most recent snapshot, or false if none.
func (w *Window) Latest() (timer.Snapshot, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.count == 0 {
		return timer.Snapshot{}, false
	}
	idx := (w.head - 1 + w.capacity) % w.capacity
	return w.snapshots[idx], true
}

// Count returns the number of snapshots retained.
func (w *Window) Count() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.count
}

// Reset discards all snapshots.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.snapshots = make([]timer.Snapshot, w.capacity)
	w.head = 0
	w.count = 0
}

// Stats computes the window statistics from consecutive snapshot deltas.
//
// If hits went down between two snapshots the accumulator was reset in
// between; that period is counted from the later snapshot's absolute values.
func (w *Window) Stats() WindowStats {
	w.mu.RLock()
	snaps := w.ordered()
	w.mu.RUnlock()

	var stats WindowStats
	if len(snaps) == 0 {
		return stats
	}

	for _, s := range snaps {
		if s.MaxThreads > stats.MaxThreads {
			stats.MaxThreads = s.MaxThreads
		}
	}

	for i := 1; i < len(snaps); i++ {
		prev, cur := snaps[i-1], snaps[i]
		if restarted(prev, cur) {
			stats.Hits += cur.Hits
			stats.Errors += cur.Errors
			stats.TotalTime += cur.TotalTime
		} else {
			stats.Hits += cur.Hits - prev.Hits
			stats.Errors += cur.Errors - prev.Errors
			stats.TotalTime += cur.TotalTime - prev.TotalTime
		}
		stats.Periods++
	}

	if stats.Periods > 0 {
		stats.HitsPerPeriod = float64(stats.Hits) / float64(stats.Periods)
	}
	if stats.Hits > 0 {
		stats.AverageTime = stats.TotalTime / time.Duration(stats.Hits)
		stats.ErrorRate = float64(stats.Errors) / float64(stats.Hits)
	}

	return stats
}

// restarted reports whether the accumulator was reset between prev and cur,
// in which case cur counts from zero. A reset followed by at least as many
// hits is still caught by a changed first access or a shrinking total.
func restarted(prev, cur timer.Snapshot) bool {
	if cur.Hits < prev.Hits || cur.Errors < prev.Errors || cur.TotalTime < prev.TotalTime {
		return true
	}
	if prev.FirstAccess != nil && (cur.FirstAccess == nil || !cur.FirstAccess.Equal(*prev.FirstAccess)) {
		return true
	}
	return false
}
