package timer

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Listener is notified after every completed stop.
//
// TimerStopped runs on the goroutine that called RecordStop, after the
// accumulator's lock has been released. It may call Snapshot or any accessor.
type Listener interface {
	TimerStopped(a *Accumulator)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(a *Accumulator)

// TimerStopped calls f(a).
func (f ListenerFunc) TimerStopped(a *Accumulator) { f(a) }

// MovingAverageSink receives one snapshot per period.
type MovingAverageSink interface {
	AddSnapshot(s Snapshot)
}

// LatencyConfig configures the HDR histogram used for percentile estimates.
type LatencyConfig struct {
	// Min is the smallest trackable latency (default: 1µs)
	Min time.Duration

	// Max is the largest trackable latency (default: 1h)
	Max time.Duration

	// SignificantFigures is the HDR precision, 1 to 5 (default: 3)
	SignificantFigures int
}

// DefaultLatencyConfig returns the default percentile histogram configuration.
func DefaultLatencyConfig() LatencyConfig {
	return LatencyConfig{
		Min:                time.Microsecond,
		Max:                time.Hour,
		SignificantFigures: 3,
	}
}

func (c LatencyConfig) withDefaults() LatencyConfig {
	def := DefaultLatencyConfig()
	if c.Min < time.Microsecond {
		c.Min = def.Min
	}
	if c.Max <= c.Min {
		c.Max = def.Max
	}
	if c.SignificantFigures < 1 || c.SignificantFigures > 5 {
		c.SignificantFigures = def.SignificantFigures
	}
	return c
}

// Option configures an Accumulator.
type Option func(*Accumulator)

// WithListener sets the listener notified after each stop.
func WithListener(l Listener) Option {
	return func(a *Accumulator) { a.listener = l }
}

// WithSink sets the sink that receives a snapshot on each period change.
func WithSink(s MovingAverageSink) Option {
	return func(a *Accumulator) { a.sink = s }
}

// WithLatencyConfig overrides the percentile histogram configuration.
func WithLatencyConfig(c LatencyConfig) Option {
	return func(a *Accumulator) { a.latencyCfg = c.withDefaults() }
}

// Accumulator collects statistics for a single named timer.
//
// # Thread Safety
//
// All mutation and the copy phase of Snapshot run under one mutex per
// accumulator. Nothing inside the critical sections blocks or allocates
// except a rebind, which reallocates the distribution.
//
// Callers must pair every RecordStart with a RecordStop and pass non-negative
// elapsed values. Neither is checked; violating them skews the statistics
// (for example a negative current caller count) but never panics.
type Accumulator struct {
	name       string
	source     RangeSource
	listener   Listener
	sink       MovingAverageSink
	latencyCfg LatencyConfig

	mu sync.Mutex

	hits   int64
	errors int64

	totalTime    time.Duration
	sumOfSquares float64 // nanoseconds squared

	minTime time.Duration
	maxTime time.Duration
	hasData bool

	currentThreads          int64
	maxThreads              int64
	totalThreadsDuringStart int64

	firstAccess    time.Time
	lastAccess     time.Time
	hasFirstAccess bool
	hasLastAccess  bool

	histogram  []int64
	underRange int64
	overRange  int64
	rangeTotal time.Duration // elapsed time counted since the range was bound
	boundRange *RangeConfig
	bound      bool

	// HDR histogram RecordValue is not thread-safe; guarded by mu.
	latency *hdrhistogram.Histogram

	// periodMu orders sink deliveries without holding mu while the sink runs.
	periodMu sync.Mutex
}

// NewAccumulator creates an accumulator bound to the RangeConfig source
// currently yields. A nil source disables the distribution.
func NewAccumulator(name string, source RangeSource, opts ...Option) *Accumulator {
	a := &Accumulator{
		name:       name,
		source:     source,
		latencyCfg: DefaultLatencyConfig(),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.latency = hdrhistogram.New(
		a.latencyCfg.Min.Microseconds(),
		a.latencyCfg.Max.Microseconds(),
		a.latencyCfg.SignificantFigures,
	)
	a.rebind(a.currentRange())

	return a
}

// Name returns the timer name.
func (a *Accumulator) Name() string {
	return a.name
}

// RecordStart records the start of a timed operation at now.
func (a *Accumulator) RecordStart(now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.currentThreads++
	a.hits++
	a.totalThreadsDuringStart += a.currentThreads
	a.lastAccess = now
	a.hasLastAccess = true

	if a.currentThreads > a.maxThreads {
		a.maxThreads = a.currentThreads
	}
	if !a.hasFirstAccess {
		a.firstAccess = now
		a.hasFirstAccess = true
	}
}

// RecordStop records the end of a timed operation that took elapsed.
//
// The listener, if any, is notified once after the update is visible.
func (a *Accumulator) RecordStop(now time.Time, elapsed time.Duration, isError bool) {
	a.recordStop(now, elapsed, isError)

	if a.listener != nil {
		a.listener.TimerStopped(a)
	}
}

func (a *Accumulator) recordStop(now time.Time, elapsed time.Duration, isError bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.currentThreads--
	a.totalTime += elapsed
	a.sumOfSquares += float64(elapsed) * float64(elapsed)
	a.lastAccess = now
	a.hasLastAccess = true

	if isError {
		a.errors++
	}

	if !a.hasData {
		a.minTime = elapsed
		a.maxTime = elapsed
		a.hasData = true
	} else {
		if elapsed > a.maxTime {
			a.maxTime = elapsed
		}
		if elapsed < a.minTime {
			a.minTime = elapsed
		}
	}

	// The source is read under mu so a stop can never rebind to a
	// configuration older than one another stop already bound.
	if current := a.currentRange(); !a.bound || current != a.boundRange {
		a.rebind(current)
	}

	if a.boundRange != nil {
		a.rangeTotal += elapsed
		switch placement, idx := a.boundRange.Classify(elapsed); placement {
		case Under:
			a.underRange++
		case Over:
			a.overRange++
		default:
			a.histogram[idx]++
		}
	}

	a.recordLatency(elapsed)
}

// recordLatency feeds the percentile histogram, clamped to its range.
// Must be called with mu held.
func (a *Accumulator) recordLatency(elapsed time.Duration) {
	micros := elapsed.Microseconds()
	if lo := a.latencyCfg.Min.Microseconds(); micros < lo {
		micros = lo
	}
	if hi := a.latencyCfg.Max.Microseconds(); micros > hi {
		micros = hi
	}
	// Only fails for values outside the trackable range, which the clamp rules out.
	_ = a.latency.RecordValue(micros)
}

// rebind attaches the distribution to r with all counts zeroed.
// Must be called with mu held, or before the accumulator is shared.
func (a *Accumulator) rebind(r *RangeConfig) {
	a.boundRange = r
	a.bound = true
	a.underRange = 0
	a.overRange = 0
	a.rangeTotal = 0

	if r == nil {
		a.histogram = nil
		return
	}
	a.histogram = make([]int64, r.IntervalCount())
}

func (a *Accumulator) currentRange() *RangeConfig {
	if a.source == nil {
		return nil
	}
	return a.source.Range()
}

// Reset restores the accumulator to its initial state.
//
// The distribution is dropped and rebuilt on the next RecordStop against
// whatever RangeConfig is current then.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.hits = 0
	a.errors = 0
	a.totalTime = 0
	a.sumOfSquares = 0
	a.minTime = 0
	a.maxTime = 0
	a.hasData = false
	a.currentThreads = 0
	a.maxThreads = 0
	a.totalThreadsDuringStart = 0
	a.firstAccess = time.Time{}
	a.lastAccess = time.Time{}
	a.hasFirstAccess = false
	a.hasLastAccess = false

	a.histogram = nil
	a.underRange = 0
	a.overRange = 0
	a.rangeTotal = 0
	a.boundRange = nil
	a.bound = false

	a.latency.Reset()
}

// NotifyPeriodChange takes a snapshot and hands it to the sink.
//
// It is meant to be called by a scheduler at period boundaries. Concurrent
// calls deliver to the sink one at a time.
func (a *Accumulator) NotifyPeriodChange() {
	a.periodMu.Lock()
	defer a.periodMu.Unlock()

	snap := a.Snapshot()
	if a.sink != nil {
		a.sink.AddSnapshot(snap)
	}
}

// Hits returns the number of started operations.
func (a *Accumulator) Hits() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hits
}

// Errors returns the number of operations stopped with an error.
func (a *Accumulator) Errors() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.errors
}

// TotalTime returns the sum of all elapsed values.
func (a *Accumulator) TotalTime() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totalTime
}

// SumOfSquares returns the sum of squared elapsed values in nanoseconds².
func (a *Accumulator) SumOfSquares() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sumOfSquares
}

// MinTime returns the smallest elapsed value, or false if none was recorded.
func (a *Accumulator) MinTime() (time.Duration, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.minTime, a.hasData
}

// MaxTime returns the largest elapsed value, or false if none was recorded.
func (a *Accumulator) MaxTime() (time.Duration, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.maxTime, a.hasData
}

// CurrentThreads returns the number of operations currently in flight.
func (a *Accumulator) CurrentThreads() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentThreads
}

// MaxThreads returns the highest number of concurrent operations seen.
func (a *Accumulator) MaxThreads() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.maxThreads
}

// TotalThreadsDuringStart returns the sum of in-flight counts seen at each start.
func (a *Accumulator) TotalThreadsDuringStart() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totalThreadsDuringStart
}

// FirstAccess returns the time of the first start, or false if none.
func (a *Accumulator) FirstAccess() (time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.firstAccess, a.hasFirstAccess
}

// LastAccess returns the time of the latest start or stop, or false if none.
func (a *Accumulator) LastAccess() (time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastAccess, a.hasLastAccess
}

// Distribution returns a copy of the bucket counts. It is empty, not
// zero-filled, when no RangeConfig is bound.
func (a *Accumulator) Distribution() []int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]int64, len(a.histogram))
	copy(out, a.histogram)
	return out
}

// UnderRange returns the number of values below the lowest bucket.
func (a *Accumulator) UnderRange() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.underRange
}

// OverRange returns the number of values at or above the highest bucket.
func (a *Accumulator) OverRange() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.overRange
}

// AverageTime returns the truncated mean elapsed time.
func (a *Accumulator) AverageTime() time.Duration {
	a.mu.Lock()
	hits, total := a.hits, a.totalTime
	a.mu.Unlock()
	return averageTime(hits, total)
}

// AverageThreads returns the truncated mean in-flight count seen at start.
func (a *Accumulator) AverageThreads() int64 {
	a.mu.Lock()
	hits, total := a.hits, a.totalThreadsDuringStart
	a.mu.Unlock()
	return averageThreads(hits, total)
}

// StdDevTime returns the sample standard deviation of elapsed time.
func (a *Accumulator) StdDevTime() time.Duration {
	a.mu.Lock()
	hits, total, sumSq := a.hits, a.totalTime, a.sumOfSquares
	a.mu.Unlock()
	return stdDevTime(hits, total, sumSq)
}
