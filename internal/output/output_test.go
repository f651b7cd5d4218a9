package output

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/stopwatch/internal/movingavg"
	"github.com/wesleyorama2/stopwatch/internal/timer"
)

func sampleGroup() (*timer.Group, map[string]*movingavg.Window) {
	windows := map[string]*movingavg.Window{}
	g := timer.NewGroup("checkout",
		timer.MustRangeConfig(0, 100*time.Millisecond, 200*time.Millisecond),
		timer.WithSinkFactory(func(name string) timer.MovingAverageSink {
			w := movingavg.NewWindow(3)
			windows[name] = w
			return w
		}))

	a := g.Timer("db.query")
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, e := range []time.Duration{50 * time.Millisecond, 150 * time.Millisecond, 250 * time.Millisecond} {
		a.RecordStart(now)
		a.RecordStop(now.Add(e), e, e == 250*time.Millisecond)
	}
	g.Timer("idle")
	g.NotifyPeriodChange()

	return g, windows
}

func lookup(windows map[string]*movingavg.Window) WindowLookup {
	return func(name string) (*movingavg.Window, bool) {
		w, ok := windows[name]
		return w, ok
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: FormatTable},
		{in: "table", want: FormatTable},
		{in: "TEXT", want: FormatTable},
		{in: "json", want: FormatJSON},
		{in: "yml", want: FormatYAML},
		{in: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewReport(t *testing.T) {
	g, windows := sampleGroup()
	r := NewReport(g, lookup(windows))

	assert.Equal(t, "checkout", r.Group)
	require.Len(t, r.Timers, 2)

	db := r.Timers[0]
	assert.Equal(t, "db.query", db.Name)
	require.Len(t, db.Buckets, 2)
	assert.Equal(t, "[0s, 100ms)", db.Buckets[0].Label)
	assert.Equal(t, int64(1), db.Buckets[0].Count)
	assert.Equal(t, 200*time.Millisecond, db.Buckets[1].Upper)
	require.NotNil(t, db.Window)
	assert.Equal(t, 0, db.Window.Periods)

	assert.Equal(t, "idle", r.Timers[1].Name)
	assert.False(t, r.Timers[1].HasData)
}

func TestNewReport_NoWindows(t *testing.T) {
	g, _ := sampleGroup()
	r := NewReport(g, nil)
	for _, tr := range r.Timers {
		assert.Nil(t, tr.Window)
	}
}

func TestRender_Table(t *testing.T) {
	g, windows := sampleGroup()

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, NewReport(g, lookup(windows)), FormatTable, true))
	out := buf.String()

	assert.Contains(t, out, "Timer group: checkout (2 timers)")
	assert.Contains(t, out, "db.query")
	assert.Contains(t, out, "(33.3%)")
	assert.Contains(t, out, "avg 150ms")
	assert.Contains(t, out, "stddev 100ms")
	assert.Contains(t, out, "[100ms, 200ms)")
	assert.Contains(t, out, ">= 200ms")
	assert.Contains(t, out, "< 0s")
	assert.Contains(t, out, "no completed operations")
	assert.NotContains(t, out, "\x1b[")
}

func TestRender_TableEmptyGroup(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, NewReport(timer.NewGroup("empty", nil), nil), FormatTable, true))
	assert.Contains(t, buf.String(), "no timers recorded")
}

func TestRender_JSON(t *testing.T) {
	g, windows := sampleGroup()

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, NewReport(g, lookup(windows)), FormatJSON, true))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "checkout", decoded["group"])

	timers := decoded["timers"].([]interface{})
	db := timers[0].(map[string]interface{})
	assert.Equal(t, "db.query", db["name"])
	assert.Equal(t, 3.0, db["hits"])
	assert.Equal(t, []interface{}{1.0, 1.0}, db["histogram"])
	assert.Contains(t, db, "buckets")
	assert.Contains(t, db, "window")
	assert.NotContains(t, db, "Range")
}

func TestRender_YAML(t *testing.T) {
	g, _ := sampleGroup()

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, NewReport(g, nil), FormatYAML, true))

	var decoded struct {
		Group  string `yaml:"group"`
		Timers []struct {
			Name        string `yaml:"name"`
			Hits        int64  `yaml:"hits"`
			AverageTime string `yaml:"averageTime"`
		} `yaml:"timers"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "checkout", decoded.Group)
	require.Len(t, decoded.Timers, 2)
	assert.Equal(t, int64(3), decoded.Timers[0].Hits)
	assert.Equal(t, "150ms", decoded.Timers[0].AverageTime)
}

func TestRender_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Render(&buf, Report{}, Format("xml"), true))
}

func TestColorSchemes(t *testing.T) {
	scheme := DefaultColorScheme()
	for _, c := range scheme.all() {
		require.NotNil(t, c)
	}
	assert.Contains(t, scheme.Bad.Sprint("x"), "\x1b[")

	plain := NoColorScheme()
	assert.Equal(t, "x", plain.Bad.Sprint("x"))

	assert.Same(t, plain.Good, plain.rate(0))
	assert.Same(t, plain.Warn, plain.rate(0.01))
	assert.Same(t, plain.Bad, plain.rate(0.5))
}

func TestShouldColor(t *testing.T) {
	var buf bytes.Buffer

	t.Setenv("NO_COLOR", "")
	t.Setenv("FORCE_COLOR", "")
	assert.False(t, ShouldColor(&buf))

	t.Setenv("FORCE_COLOR", "1")
	assert.True(t, ShouldColor(&buf))

	t.Setenv("NO_COLOR", "1")
	assert.False(t, ShouldColor(&buf))
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{750 * time.Nanosecond, "750ns"},
		{2500 * time.Microsecond, "2.5ms"},
		{150 * time.Millisecond, "150ms"},
		{1234567 * time.Microsecond, "1.235s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.in))
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-12345, "-12,345"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatNumber(tt.in))
	}
}
