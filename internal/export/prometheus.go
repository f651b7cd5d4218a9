// Package export exposes timer statistics to Prometheus.
package export

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/wesleyorama2/stopwatch/internal/timer"
)

const namespace = "stopwatch"

// SnapshotSource yields the snapshots to export. *timer.Group satisfies it.
type SnapshotSource interface {
	Name() string
	Snapshots() []timer.Snapshot
}

// Collector implements prometheus.Collector over a group of timers.
//
// Every scrape takes fresh snapshots, so the exported values are consistent
// per timer but not across timers.
type Collector struct {
	source SnapshotSource

	hits          *prometheus.Desc
	errors        *prometheus.Desc
	totalTime     *prometheus.Desc
	minTime       *prometheus.Desc
	maxTime       *prometheus.Desc
	avgTime       *prometheus.Desc
	stdDevTime    *prometheus.Desc
	activeCallers *prometheus.Desc
	maxCallers    *prometheus.Desc
	duration      *prometheus.Desc
}

// NewCollector creates a collector for source.
func NewCollector(source SnapshotSource) *Collector {
	labels := []string{"group", "timer"}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "timer", name), help, labels, nil)
	}

	return &Collector{
		source:        source,
		hits:          desc("hits_total", "Number of started operations."),
		errors:        desc("errors_total", "Number of operations that ended with an error."),
		totalTime:     desc("time_seconds_total", "Sum of elapsed time."),
		minTime:       desc("min_seconds", "Smallest elapsed time."),
		maxTime:       desc("max_seconds", "Largest elapsed time."),
		avgTime:       desc("avg_seconds", "Mean elapsed time."),
		stdDevTime:    desc("stddev_seconds", "Sample standard deviation of elapsed time."),
		activeCallers: desc("active_callers", "Operations currently in flight."),
		maxCallers:    desc("max_callers", "Highest number of concurrent operations."),
		duration:      desc("duration_seconds", "Distribution of elapsed time since the current range was bound."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.errors
	ch <- c.totalTime
	ch <- c.minTime
	ch <- c.maxTime
	ch <- c.avgTime
	ch <- c.stdDevTime
	ch <- c.activeCallers
	ch <- c.maxCallers
	ch <- c.duration
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	group := c.source.Name()

	for _, s := range c.source.Snapshots() {
		lv := []string{group, s.Name}

		ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.Hits), lv...)
		ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(s.Errors), lv...)
		ch <- prometheus.MustNewConstMetric(c.totalTime, prometheus.CounterValue, s.TotalTime.Seconds(), lv...)
		ch <- prometheus.MustNewConstMetric(c.avgTime, prometheus.GaugeValue, s.AverageTime.Seconds(), lv...)
		ch <- prometheus.MustNewConstMetric(c.stdDevTime, prometheus.GaugeValue, s.StdDevTime.Seconds(), lv...)
		ch <- prometheus.MustNewConstMetric(c.activeCallers, prometheus.GaugeValue, float64(s.CurrentThreads), lv...)
		ch <- prometheus.MustNewConstMetric(c.maxCallers, prometheus.GaugeValue, float64(s.MaxThreads), lv...)

		if s.HasData {
			ch <- prometheus.MustNewConstMetric(c.minTime, prometheus.GaugeValue, s.MinTime.Seconds(), lv...)
			ch <- prometheus.MustNewConstMetric(c.maxTime, prometheus.GaugeValue, s.MaxTime.Seconds(), lv...)
		}

		if s.Range != nil {
			count, sum, buckets := cumulativeBuckets(s)
			ch <- prometheus.MustNewConstHistogram(c.duration, count, sum, buckets, lv...)
		}
	}
}

// cumulativeBuckets converts a snapshot distribution into Prometheus "le"
// buckets keyed by each bucket's upper bound. Under-range values are below
// every bound; over-range values only appear in the implicit +Inf bucket.
func cumulativeBuckets(s timer.Snapshot) (count uint64, sum float64, buckets map[float64]uint64) {
	buckets = make(map[float64]uint64, len(s.Histogram))

	running := uint64(s.UnderRange)
	for i, c := range s.Histogram {
		running += uint64(c)
		_, upper := s.Range.Interval(i)
		buckets[upper.Seconds()] = running
	}

	count = running + uint64(s.OverRange)
	sum = s.RangeTotalTime.Seconds()
	return count, sum, buckets
}

// NewRegistry returns a registry with the Go and process collectors and a
// Collector for source.
func NewRegistry(source SnapshotSource) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		NewCollector(source),
	)
	return registry
}
