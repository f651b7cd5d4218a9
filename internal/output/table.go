package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/wesleyorama2/stopwatch/internal/timer"
)

const barWidth = 24

// TableFormatter renders a Report for the terminal.
type TableFormatter struct {
	scheme *ColorScheme
}

// NewTableFormatter creates a formatter using the given color scheme.
func NewTableFormatter(scheme *ColorScheme) *TableFormatter {
	if scheme == nil {
		scheme = DefaultColorScheme()
	}
	return &TableFormatter{scheme: scheme}
}

// Format renders the whole report.
func (f *TableFormatter) Format(r Report) string {
	var buf strings.Builder

	title := fmt.Sprintf("Timer group: %s (%d timers)", r.Group, len(r.Timers))
	buf.WriteString(f.scheme.Title.Sprint(title))
	buf.WriteString("\n")
	buf.WriteString(f.scheme.Dim.Sprint(strings.Repeat("─", len([]rune(title)))))
	buf.WriteString("\n")

	if len(r.Timers) == 0 {
		buf.WriteString("  no timers recorded\n")
		return buf.String()
	}

	for i, t := range r.Timers {
		if i > 0 {
			buf.WriteString("\n")
		}
		f.formatTimer(&buf, t)
	}
	return buf.String()
}

func (f *TableFormatter) formatTimer(buf *strings.Builder, t TimerReport) {
	s := t.Snapshot
	buf.WriteString(f.scheme.Timer.Sprint(s.Name))
	buf.WriteString("\n")

	f.row(buf, "Hits", formatNumber(s.Hits))
	f.row(buf, "Errors", fmt.Sprintf("%s %s",
		formatNumber(s.Errors),
		f.scheme.rate(s.ErrorRate).Sprintf("(%.1f%%)", s.ErrorRate*100)))
	f.row(buf, "Callers", fmt.Sprintf("active %d  max %d  avg %d",
		s.CurrentThreads, s.MaxThreads, s.AverageThreads))

	if !s.HasData {
		f.row(buf, "Time", f.scheme.Dim.Sprint("no completed operations"))
	} else {
		f.row(buf, "Time", fmt.Sprintf("total %s  avg %s  min %s  max %s  stddev %s",
			formatDuration(s.TotalTime),
			formatDuration(s.AverageTime),
			formatDuration(s.MinTime),
			formatDuration(s.MaxTime),
			formatDuration(s.StdDevTime)))
		f.row(buf, "Latency", fmt.Sprintf("p50 %s  p90 %s  p95 %s  p99 %s",
			formatDuration(s.Latency.P50),
			formatDuration(s.Latency.P90),
			formatDuration(s.Latency.P95),
			formatDuration(s.Latency.P99)))
	}

	if s.FirstAccess != nil && s.LastAccess != nil {
		f.row(buf, "Active", fmt.Sprintf("%s to %s",
			s.FirstAccess.Format(time.RFC3339), s.LastAccess.Format(time.RFC3339)))
	}

	if len(t.Buckets) > 0 {
		f.formatDistribution(buf, s, t.Buckets)
	}

	if t.Window != nil {
		w := t.Window
		f.row(buf, "Window", fmt.Sprintf("%d periods  hits %s  avg %s  %.1f hits/period  errors %s",
			w.Periods,
			formatNumber(w.Hits),
			formatDuration(w.AverageTime),
			w.HitsPerPeriod,
			f.scheme.rate(w.ErrorRate).Sprintf("%.1f%%", w.ErrorRate*100)))
	}
}

func (f *TableFormatter) formatDistribution(buf *strings.Builder, s timer.Snapshot, bs []Bucket) {
	buf.WriteString("  ")
	buf.WriteString(f.scheme.Label.Sprint("Distribution"))
	buf.WriteString("\n")

	labels := make([]string, 0, len(bs)+2)
	lower, _ := s.Range.Interval(0)
	_, upper := s.Range.Interval(len(bs) - 1)
	under := "< " + formatDuration(lower)
	over := ">= " + formatDuration(upper)

	labels = append(labels, under)
	for _, b := range bs {
		labels = append(labels, b.Label)
	}
	labels = append(labels, over)

	width := 0
	for _, l := range labels {
		if n := len([]rune(l)); n > width {
			width = n
		}
	}

	peak := max(s.UnderRange, s.OverRange)
	for _, b := range bs {
		peak = max(peak, b.Count)
	}

	line := func(label string, count int64, c func(int64) string) {
		buf.WriteString(fmt.Sprintf("    %-*s %10s  %s\n", width, label, formatNumber(count), c(count)))
	}
	bar := func(count int64) string {
		if peak == 0 || count == 0 {
			return ""
		}
		n := int(count * barWidth / peak)
		if n == 0 {
			n = 1
		}
		return f.scheme.Bar.Sprint(strings.Repeat("█", n))
	}

	line(under, s.UnderRange, bar)
	for _, b := range bs {
		line(b.Label, b.Count, bar)
	}
	line(over, s.OverRange, bar)
}

func (f *TableFormatter) row(buf *strings.Builder, label, value string) {
	buf.WriteString(fmt.Sprintf("  %s %s\n", f.scheme.Label.Sprintf("%-8s", label), value))
}

// formatDuration rounds d to a precision that suits its magnitude.
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Second:
		return d.Round(time.Millisecond).String()
	case d >= time.Millisecond:
		return d.Round(time.Microsecond).String()
	default:
		return d.String()
	}
}

// formatNumber formats a number with thousands separators.
func formatNumber(n int64) string {
	str := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(str, "-")
	if neg {
		str = str[1:]
	}
	if len(str) <= 3 {
		if neg {
			return "-" + str
		}
		return str
	}

	// Add thousands separators
	var result strings.Builder
	if neg {
		result.WriteString("-")
	}
	offset := len(str) % 3
	if offset > 0 {
		result.WriteString(str[:offset])
	}
	for i := offset; i < len(str); i += 3 {
		if i > 0 {
			result.WriteString(",")
		}
		result.WriteString(str[i : i+3])
	}
	return result.String()
}
