package timer

import (
	"math"
	"slices"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Snapshot is an immutable point-in-time copy of an accumulator.
//
// A Snapshot owns every value it holds; the distribution slice is never
// shared with the live accumulator. Range is shared, but RangeConfig is
// immutable.
type Snapshot struct {
	// Name is the timer name
	Name string `json:"name" yaml:"name"`

	// Hits is the number of started operations
	Hits int64 `json:"hits" yaml:"hits"`

	// Errors is the number of operations stopped with an error
	Errors int64 `json:"errors" yaml:"errors"`

	// TotalTime is the sum of all elapsed values
	TotalTime time.Duration `json:"totalTime" yaml:"totalTime"`

	// SumOfSquares is the sum of squared elapsed values in nanoseconds²
	SumOfSquares float64 `json:"sumOfSquares" yaml:"sumOfSquares"`

	// MinTime and MaxTime are only meaningful when HasData is true
	MinTime time.Duration `json:"minTime" yaml:"minTime"`
	MaxTime time.Duration `json:"maxTime" yaml:"maxTime"`
	HasData bool          `json:"hasData" yaml:"hasData"`

	CurrentThreads          int64 `json:"currentThreads" yaml:"currentThreads"`
	MaxThreads              int64 `json:"maxThreads" yaml:"maxThreads"`
	TotalThreadsDuringStart int64 `json:"totalThreadsDuringStart" yaml:"totalThreadsDuringStart"`

	// FirstAccess and LastAccess are nil until the timer is first used
	FirstAccess *time.Time `json:"firstAccess,omitempty" yaml:"firstAccess,omitempty"`
	LastAccess  *time.Time `json:"lastAccess,omitempty" yaml:"lastAccess,omitempty"`

	// Histogram holds one count per bucket of Range; empty without a range
	Histogram  []int64 `json:"histogram" yaml:"histogram"`
	UnderRange int64   `json:"underRange" yaml:"underRange"`
	OverRange  int64   `json:"overRange" yaml:"overRange"`

	// RangeTotalTime is the elapsed time of the stops counted in the
	// distribution; it restarts whenever the range is rebound
	RangeTotalTime time.Duration `json:"rangeTotalTime" yaml:"rangeTotalTime"`

	// Range is the configuration Histogram was counted against, or nil
	Range *RangeConfig `json:"-" yaml:"-"`

	// AverageTime is TotalTime / Hits, truncated
	AverageTime time.Duration `json:"averageTime" yaml:"averageTime"`

	// AverageThreads is TotalThreadsDuringStart / Hits, truncated
	AverageThreads int64 `json:"averageThreads" yaml:"averageThreads"`

	// StdDevTime is the sample standard deviation of elapsed time
	StdDevTime time.Duration `json:"stdDevTime" yaml:"stdDevTime"`

	// ErrorRate is Errors / Hits (0.0 to 1.0)
	ErrorRate float64 `json:"errorRate" yaml:"errorRate"`

	// Latency contains percentile estimates
	Latency LatencyPercentiles `json:"latency" yaml:"latency"`
}

// LatencyPercentiles contains HDR histogram percentile estimates.
type LatencyPercentiles struct {
	P50 time.Duration `json:"p50" yaml:"p50"`
	P90 time.Duration `json:"p90" yaml:"p90"`
	P95 time.Duration `json:"p95" yaml:"p95"`
	P99 time.Duration `json:"p99" yaml:"p99"`
}

// Snapshot returns a consistent copy of the accumulator with derived
// statistics. Only the copy runs under the lock.
func (a *Accumulator) Snapshot() Snapshot {
	a.mu.Lock()
	s := Snapshot{
		Name:                    a.name,
		Hits:                    a.hits,
		Errors:                  a.errors,
		TotalTime:               a.totalTime,
		SumOfSquares:            a.sumOfSquares,
		MinTime:                 a.minTime,
		MaxTime:                 a.maxTime,
		HasData:                 a.hasData,
		CurrentThreads:          a.currentThreads,
		MaxThreads:              a.maxThreads,
		TotalThreadsDuringStart: a.totalThreadsDuringStart,
		Histogram:               make([]int64, len(a.histogram)),
		UnderRange:              a.underRange,
		OverRange:               a.overRange,
		RangeTotalTime:          a.rangeTotal,
		Range:                   a.boundRange,
	}
	copy(s.Histogram, a.histogram)
	if a.hasFirstAccess {
		t := a.firstAccess
		s.FirstAccess = &t
	}
	if a.hasLastAccess {
		t := a.lastAccess
		s.LastAccess = &t
	}
	// Export copies the counts; rebuilding the histogram from them happens
	// after unlock so readers do not hold up recording.
	var exported *hdrhistogram.Snapshot
	if a.hasData {
		exported = a.latency.Export()
	}
	a.mu.Unlock()

	var latency *hdrhistogram.Histogram
	if exported != nil {
		latency = hdrhistogram.Import(exported)
	}

	s.AverageTime = averageTime(s.Hits, s.TotalTime)
	s.AverageThreads = averageThreads(s.Hits, s.TotalThreadsDuringStart)
	s.StdDevTime = stdDevTime(s.Hits, s.TotalTime, s.SumOfSquares)
	if s.Hits > 0 {
		s.ErrorRate = float64(s.Errors) / float64(s.Hits)
	}
	if latency != nil {
		s.Latency = LatencyPercentiles{
			P50: time.Duration(latency.ValueAtQuantile(50)) * time.Microsecond,
			P90: time.Duration(latency.ValueAtQuantile(90)) * time.Microsecond,
			P95: time.Duration(latency.ValueAtQuantile(95)) * time.Microsecond,
			P99: time.Duration(latency.ValueAtQuantile(99)) * time.Microsecond,
		}
	}

	return s
}

// Distribution returns a copy of the bucket counts.
func (s Snapshot) Distribution() []int64 {
	out := make([]int64, len(s.Histogram))
	copy(out, s.Histogram)
	return out
}

// RangeHits returns the number of stops counted against the bound range.
func (s Snapshot) RangeHits() int64 {
	total := s.UnderRange + s.OverRange
	for _, c := range s.Histogram {
		total += c
	}
	return total
}

// Equal reports whether s and o hold the same values. Range is compared by
// identity.
func (s Snapshot) Equal(o Snapshot) bool {
	return s.Name == o.Name &&
		s.Hits == o.Hits &&
		s.Errors == o.Errors &&
		s.TotalTime == o.TotalTime &&
		s.SumOfSquares == o.SumOfSquares &&
		s.MinTime == o.MinTime &&
		s.MaxTime == o.MaxTime &&
		s.HasData == o.HasData &&
		s.CurrentThreads == o.CurrentThreads &&
		s.MaxThreads == o.MaxThreads &&
		s.TotalThreadsDuringStart == o.TotalThreadsDuringStart &&
		timesEqual(s.FirstAccess, o.FirstAccess) &&
		timesEqual(s.LastAccess, o.LastAccess) &&
		slices.Equal(s.Histogram, o.Histogram) &&
		s.UnderRange == o.UnderRange &&
		s.OverRange == o.OverRange &&
		s.RangeTotalTime == o.RangeTotalTime &&
		s.Range == o.Range &&
		s.AverageTime == o.AverageTime &&
		s.AverageThreads == o.AverageThreads &&
		s.StdDevTime == o.StdDevTime &&
		s.ErrorRate == o.ErrorRate &&
		s.Latency == o.Latency
}

func timesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// averageTime uses truncating integer division; 0 without hits.
func averageTime(hits int64, total time.Duration) time.Duration {
	if hits == 0 {
		return 0
	}
	return total / time.Duration(hits)
}

func averageThreads(hits, total int64) int64 {
	if hits == 0 {
		return 0
	}
	return total / hits
}

// stdDevTime computes sqrt((sumSq - total²/n) / max(n-1, 1)). Rounding can
// push the numerator slightly below zero when the variance is ~0; that is
// clamped to zero.
func stdDevTime(hits int64, total time.Duration, sumOfSquares float64) time.Duration {
	if hits == 0 {
		return 0
	}

	n := float64(hits)
	t := float64(total)
	numerator := sumOfSquares - (t*t)/n
	if numerator <= 0 || math.IsNaN(numerator) {
		return 0
	}

	denominator := math.Max(n-1, 1)
	return time.Duration(math.Sqrt(numerator / denominator))
}
