package timer

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrInvalidRange is returned when range boundaries cannot form buckets.
var ErrInvalidRange = errors.New("invalid range boundaries")

// Placement describes where an elapsed value falls relative to a RangeConfig.
type Placement int

const (
	// Under means the value is below the lowest boundary
	Under Placement = iota

	// InRange means the value falls inside one of the buckets
	InRange

	// Over means the value is at or above the highest boundary
	Over
)

// String returns the placement name.
func (p Placement) String() string {
	switch p {
	case Under:
		return "under"
	case InRange:
		return "in-range"
	case Over:
		return "over"
	default:
		return fmt.Sprintf("placement(%d)", int(p))
	}
}

// RangeConfig partitions the elapsed-time axis into ordered buckets.
//
// N+1 strictly increasing boundaries define N buckets; bucket i covers
// [bounds[i], bounds[i+1]). Values below the first boundary are "under" the
// range, values at or above the last one are "over" it.
//
// A RangeConfig is immutable. Its pointer is its identity: accumulators
// compare pointers, never contents, to notice a swapped configuration.
type RangeConfig struct {
	bounds []time.Duration
}

// NewRangeConfig creates a RangeConfig from ascending boundaries.
func NewRangeConfig(bounds ...time.Duration) (*RangeConfig, error) {
	if len(bounds) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 boundaries, got %d", ErrInvalidRange, len(bounds))
	}
	for i := 1; i < len(bounds); i++ {
		if bounds[i] <= bounds[i-1] {
			return nil, fmt.Errorf("%w: boundary %d (%v) is not greater than %v",
				ErrInvalidRange, i, bounds[i], bounds[i-1])
		}
	}

	owned := make([]time.Duration, len(bounds))
	copy(owned, bounds)
	return &RangeConfig{bounds: owned}, nil
}

// MustRangeConfig is like NewRangeConfig but panics on invalid boundaries.
func MustRangeConfig(bounds ...time.Duration) *RangeConfig {
	r, err := NewRangeConfig(bounds...)
	if err != nil {
		panic(err)
	}
	return r
}

// IntervalCount returns the number of buckets.
func (r *RangeConfig) IntervalCount() int {
	return len(r.bounds) - 1
}

// Interval returns the lower (inclusive) and upper (exclusive) bound of bucket i.
func (r *RangeConfig) Interval(i int) (lower, upper time.Duration) {
	return r.bounds[i], r.bounds[i+1]
}

// Bounds returns a copy of the boundaries.
func (r *RangeConfig) Bounds() []time.Duration {
	out := make([]time.Duration, len(r.bounds))
	copy(out, r.bounds)
	return out
}

// Classify places elapsed relative to the buckets. The returned index is only
// meaningful for InRange.
func (r *RangeConfig) Classify(elapsed time.Duration) (Placement, int) {
	last := len(r.bounds) - 1
	if elapsed < r.bounds[0] {
		return Under, -1
	}
	if elapsed >= r.bounds[last] {
		return Over, -1
	}

	// First boundary strictly greater than elapsed closes the bucket.
	idx := sort.Search(last+1, func(i int) bool {
		return r.bounds[i] > elapsed
	})
	return InRange, idx - 1
}

// RangeSource supplies the RangeConfig an accumulator should bind to.
// Range may return nil, which disables the distribution. It is called with
// the accumulator's lock held, so it must be cheap and must not call back
// into the accumulator.
type RangeSource interface {
	Range() *RangeConfig
}

type staticRange struct {
	r *RangeConfig
}

func (s staticRange) Range() *RangeConfig { return s.r }

// StaticRange returns a RangeSource that always yields r.
func StaticRange(r *RangeConfig) RangeSource {
	return staticRange{r: r}
}
