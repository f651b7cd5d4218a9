// Package timer accumulates statistics for named timers.
//
// An Accumulator records paired start/stop events from any number of
// goroutines and keeps running aggregates: hit and error counts, min/max/total
// elapsed time, the sum of squares for the standard deviation, concurrent
// caller counts, first/last access times and a bucketed time distribution.
//
// # Basic Usage
//
//	ranges, _ := timer.NewRangeConfig(0, 10*time.Millisecond, 100*time.Millisecond, time.Second)
//	group := timer.NewGroup("api", ranges)
//
//	t := group.Timer("GET /users")
//	start := time.Now()
//	t.RecordStart(start)
//	err := handle()
//	end := time.Now()
//	t.RecordStop(end, end.Sub(start), err != nil)
//
//	snap := t.Snapshot()
//	fmt.Printf("avg=%v stddev=%v p95=%v\n", snap.AverageTime, snap.StdDevTime, snap.Latency.P95)
//
// Elapsed time is always supplied by the caller; the package never reads the
// clock on its own.
//
// # Bucket Ranges
//
// The distribution is defined by a RangeConfig obtained from a RangeSource on
// every stop. The source may swap its RangeConfig at runtime (Group.SetRange);
// accumulators detect the change by pointer identity and start a fresh, zeroed
// distribution on their next stop.
//
// # Thread Safety
//
// Each Accumulator guards its state with one mutex. Snapshot copies state
// under that mutex and derives averages after releasing it. Listeners are
// called after the mutex is released, so a listener may call Snapshot.
package timer
