package replay

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/stopwatch/internal/movingavg"
	"github.com/wesleyorama2/stopwatch/internal/timer"
)

func TestParseEvent(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Event
		wantErr string
	}{
		{
			name: "duration string",
			line: `{"timer":"db","at":"2024-01-01T00:00:00Z","elapsed":"12ms","error":true}`,
			want: Event{
				Timer:   "db",
				At:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				Elapsed: 12 * time.Millisecond,
				Error:   true,
			},
		},
		{
			name: "milliseconds number",
			line: `{"timer":"db","elapsed":2.5}`,
			want: Event{Timer: "db", Elapsed: 2500 * time.Microsecond},
		},
		{name: "not json", line: `timer=db`, wantErr: "invalid JSON"},
		{name: "no timer", line: `{"elapsed":"1ms"}`, wantErr: "missing timer"},
		{name: "no elapsed", line: `{"timer":"db"}`, wantErr: "missing elapsed"},
		{name: "negative", line: `{"timer":"db","elapsed":-1}`, wantErr: "negative"},
		{name: "bad duration", line: `{"timer":"db","elapsed":"soon"}`, wantErr: "invalid elapsed"},
		{name: "bad at", line: `{"timer":"db","elapsed":1,"at":"yesterday"}`, wantErr: "invalid at"},
		{name: "bad error", line: `{"timer":"db","elapsed":1,"error":"yes"}`, wantErr: "boolean"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseEvent(tt.line)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Timer, ev.Timer)
			assert.True(t, tt.want.At.Equal(ev.At))
			assert.Equal(t, tt.want.Elapsed, ev.Elapsed)
			assert.Equal(t, tt.want.Error, ev.Error)
		})
	}
}

const events = `
# three calls to the same timer
{"timer":"db","at":"2024-01-01T00:00:00Z","elapsed":"50ms"}
{"timer":"db","at":"2024-01-01T00:00:30Z","elapsed":"150ms"}
{"timer":"cache","at":"2024-01-01T00:00:45Z","elapsed":1}

{"timer":"db","at":"2024-01-01T00:01:10Z","elapsed":"250ms","error":true}
`

func TestReplayer_Run(t *testing.T) {
	g := timer.NewGroup("replay", timer.MustRangeConfig(0, 100*time.Millisecond, 200*time.Millisecond))
	rp := New(g, 0, zerolog.Nop())

	res, err := rp.Run(context.Background(), strings.NewReader(events))
	require.NoError(t, err)

	assert.Equal(t, 4, res.Events)
	assert.Equal(t, 0, res.Periods)
	assert.True(t, res.First.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, res.Last.Equal(time.Date(2024, 1, 1, 0, 1, 10, 0, time.UTC)))

	db, ok := g.Lookup("db")
	require.True(t, ok)
	s := db.Snapshot()
	assert.Equal(t, int64(3), s.Hits)
	assert.Equal(t, int64(1), s.Errors)
	assert.Equal(t, []int64{1, 1}, s.Histogram)
	assert.Equal(t, int64(1), s.OverRange)
	assert.Equal(t, 150*time.Millisecond, s.AverageTime)
	assert.Equal(t, int64(1), s.MaxThreads)

	cache, ok := g.Lookup("cache")
	require.True(t, ok)
	assert.Equal(t, int64(1), cache.Hits())
}

func TestReplayer_Periods(t *testing.T) {
	windows := map[string]*movingavg.Window{}
	g := timer.NewGroup("replay", nil, timer.WithSinkFactory(func(name string) timer.MovingAverageSink {
		w := movingavg.NewWindow(5)
		windows[name] = w
		return w
	}))
	rp := New(g, time.Minute, zerolog.Nop())

	res, err := rp.Run(context.Background(), strings.NewReader(events))
	require.NoError(t, err)

	// One boundary crossed at 00:01:00 plus the final period.
	assert.Equal(t, 2, res.Periods)

	db := windows["db"]
	require.NotNil(t, db)
	require.Equal(t, 2, db.Count())
	stats := db.Stats()
	assert.Equal(t, 1, stats.Periods)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, 250*time.Millisecond, stats.AverageTime)
}

func TestReplayer_LongGapIsBounded(t *testing.T) {
	windows := map[string]*movingavg.Window{}
	g := timer.NewGroup("replay", nil, timer.WithSinkFactory(func(name string) timer.MovingAverageSink {
		w := movingavg.NewWindow(3)
		windows[name] = w
		return w
	}))
	rp := New(g, time.Minute, zerolog.Nop(), WithMaxIdlePeriods(4))

	input := `{"timer":"db","at":"2024-01-01T00:00:00Z","elapsed":"10ms"}
{"timer":"db","at":"2025-01-01T00:00:30Z","elapsed":"20ms"}
{"timer":"db","at":"2025-01-01T00:01:10Z","elapsed":"30ms"}
`
	res, err := rp.Run(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	// Four deliveries for the year-long gap, one boundary at 00:01 and the
	// final period.
	assert.Equal(t, 6, res.Periods)
	assert.Equal(t, 366*24*60-4, res.Skipped)

	// Boundaries stay aligned to the first event after the skip.
	stats := windows["db"].Stats()
	assert.Equal(t, 3, stats.Periods)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, 50*time.Millisecond, stats.TotalTime)
}

func TestReplayer_ParseErrorHasLine(t *testing.T) {
	g := timer.NewGroup("replay", nil)
	rp := New(g, 0, zerolog.Nop())

	input := "{\"timer\":\"a\",\"elapsed\":1}\n{\"timer\":\"a\"}\n"
	res, err := rp.Run(context.Background(), strings.NewReader(input))
	require.Error(t, err)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 2, perr.Line)
	assert.Equal(t, 1, res.Events)
}

func TestReplayer_ContextCanceled(t *testing.T) {
	g := timer.NewGroup("replay", nil)
	rp := New(g, 0, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := rp.Run(ctx, strings.NewReader(events))
	assert.ErrorIs(t, err, context.Canceled)
}
