package timer

import (
	"testing"
	"time"
)

// =============================================================================
// Accumulator Benchmarks
// =============================================================================

// BenchmarkAccumulator_StartStop measures one paired start/stop on a single
// goroutine.
func BenchmarkAccumulator_StartStop(b *testing.B) {
	a := NewAccumulator("bench", StaticRange(MustRangeConfig(0, time.Millisecond, 10*time.Millisecond, 100*time.Millisecond)))
	elapsed := []time.Duration{
		500 * time.Microsecond,
		5 * time.Millisecond,
		50 * time.Millisecond,
		500 * time.Millisecond,
	}
	now := time.Now()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		a.RecordStart(now)
		a.RecordStop(now, elapsed[i%len(elapsed)], false)
	}
}

// BenchmarkAccumulator_StartStop_Parallel measures contention on one
// accumulator.
func BenchmarkAccumulator_StartStop_Parallel(b *testing.B) {
	a := NewAccumulator("bench", StaticRange(MustRangeConfig(0, time.Millisecond, 10*time.Millisecond)))
	now := time.Now()

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			a.RecordStart(now)
			a.RecordStop(now, 2*time.Millisecond, false)
		}
	})
}

// BenchmarkAccumulator_Snapshot measures the copy and derivation cost.
func BenchmarkAccumulator_Snapshot(b *testing.B) {
	a := NewAccumulator("bench", StaticRange(MustRangeConfig(0, time.Millisecond, 10*time.Millisecond)))
	now := time.Now()
	for i := 0; i < 10000; i++ {
		a.RecordStart(now)
		a.RecordStop(now, time.Duration(i)*time.Microsecond, false)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = a.Snapshot()
	}
}
