// Package output renders timer statistics as a table, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/stopwatch/internal/movingavg"
	"github.com/wesleyorama2/stopwatch/internal/timer"
)

// Format represents the available output formats
type Format string

const (
	// FormatTable is the default human-readable format
	FormatTable Format = "table"
	// FormatJSON outputs in JSON format
	FormatJSON Format = "json"
	// FormatYAML outputs in YAML format
	FormatYAML Format = "yaml"
)

// ParseFormat converts a format name. "text" is accepted as an alias for table.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "table", "text":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", name)
	}
}

// Report is the rendered view of a timer group.
type Report struct {
	Group  string        `json:"group" yaml:"group"`
	Timers []TimerReport `json:"timers" yaml:"timers"`
}

// TimerReport is one timer's snapshot with labelled buckets and, when the
// timer feeds a moving-average window, the window statistics.
type TimerReport struct {
	timer.Snapshot `yaml:",inline"`

	Buckets []Bucket               `json:"buckets,omitempty" yaml:"buckets,omitempty"`
	Window  *movingavg.WindowStats `json:"window,omitempty" yaml:"window,omitempty"`
}

// Bucket is one interval of the distribution.
type Bucket struct {
	Label string        `json:"label" yaml:"label"`
	Lower time.Duration `json:"lower" yaml:"lower"`
	Upper time.Duration `json:"upper" yaml:"upper"`
	Count int64         `json:"count" yaml:"count"`
}

// WindowLookup returns the moving-average window of a timer, if it has one.
type WindowLookup func(timer string) (*movingavg.Window, bool)

// NewReport snapshots every timer of g. windows may be nil.
func NewReport(g *timer.Group, windows WindowLookup) Report {
	snaps := g.Snapshots()
	r := Report{Group: g.Name(), Timers: make([]TimerReport, 0, len(snaps))}

	for _, s := range snaps {
		tr := TimerReport{Snapshot: s, Buckets: buckets(s)}
		if windows != nil {
			if w, ok := windows(s.Name); ok {
				stats := w.Stats()
				tr.Window = &stats
			}
		}
		r.Timers = append(r.Timers, tr)
	}
	return r
}

func buckets(s timer.Snapshot) []Bucket {
	if s.Range == nil {
		return nil
	}

	out := make([]Bucket, len(s.Histogram))
	for i, c := range s.Histogram {
		lower, upper := s.Range.Interval(i)
		out[i] = Bucket{
			Label: fmt.Sprintf("[%s, %s)", formatDuration(lower), formatDuration(upper)),
			Lower: lower,
			Upper: upper,
			Count: c,
		}
	}
	return out
}

// Render writes r to w in the given format.
func Render(w io.Writer, r Report, format Format, noColor bool) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode JSON report: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode YAML report: %w", err)
		}
		return enc.Close()
	case FormatTable, "":
		scheme := DefaultColorScheme()
		if noColor {
			scheme = NoColorScheme()
		}
		_, err := io.WriteString(w, NewTableFormatter(scheme).Format(r))
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
