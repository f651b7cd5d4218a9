// Package replay feeds recorded timing events into a timer group.
//
// Input is JSON lines, one event per line:
//
//	{"timer": "db.query", "at": "2024-01-01T10:00:00Z", "elapsed": "12ms", "error": false}
//
// "elapsed" is a Go duration string or a number of milliseconds. "at" is the
// start time in RFC 3339; events without it are stamped with the previous
// event's start time. Blank lines and lines starting with '#' are skipped.
package replay

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/wesleyorama2/stopwatch/internal/timer"
)

// maxLineSize bounds a single event line.
const maxLineSize = 1024 * 1024

// Event is one completed timed operation.
type Event struct {
	Timer   string
	At      time.Time
	Elapsed time.Duration
	Error   bool
}

// ParseError reports a malformed event line.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// ParseEvent decodes a single JSON event.
func ParseEvent(line string) (Event, error) {
	if !gjson.Valid(line) {
		return Event{}, fmt.Errorf("invalid JSON")
	}

	fields := gjson.GetMany(line, "timer", "at", "elapsed", "error")
	var ev Event

	if fields[0].Type != gjson.String || fields[0].String() == "" {
		return Event{}, fmt.Errorf("missing timer name")
	}
	ev.Timer = fields[0].String()

	if fields[1].Exists() {
		at, err := time.Parse(time.RFC3339Nano, fields[1].String())
		if err != nil {
			return Event{}, fmt.Errorf("invalid at: %w", err)
		}
		ev.At = at
	}

	elapsed, err := parseElapsed(fields[2])
	if err != nil {
		return Event{}, err
	}
	ev.Elapsed = elapsed

	switch fields[3].Type {
	case gjson.True:
		ev.Error = true
	case gjson.False, gjson.Null:
	default:
		return Event{}, fmt.Errorf("error must be a boolean")
	}

	return ev, nil
}

func parseElapsed(v gjson.Result) (time.Duration, error) {
	switch v.Type {
	case gjson.Number:
		ms := v.Float()
		if ms < 0 {
			return 0, fmt.Errorf("elapsed must not be negative")
		}
		return time.Duration(ms * float64(time.Millisecond)), nil
	case gjson.String:
		d, err := time.ParseDuration(v.String())
		if err != nil {
			return 0, fmt.Errorf("invalid elapsed: %w", err)
		}
		if d < 0 {
			return 0, fmt.Errorf("elapsed must not be negative")
		}
		return d, nil
	default:
		return 0, fmt.Errorf("missing elapsed")
	}
}

// Result summarizes a replay run.
type Result struct {
	Events  int
	Periods int
	// Skipped counts empty period boundaries that were not delivered
	// because they exceeded the idle limit
	Skipped int
	First   time.Time
	Last    time.Time
}

// DefaultMaxIdlePeriods is enough empty periods to flush a default-sized
// moving-average window.
const DefaultMaxIdlePeriods = 16

// Replayer drives a timer group from an event stream.
type Replayer struct {
	group   *timer.Group
	period  time.Duration
	logger  zerolog.Logger
	maxIdle int
}

// Option configures a Replayer.
type Option func(*Replayer)

// WithMaxIdlePeriods caps how many consecutive empty periods a gap between
// two events delivers. Once every window has been flushed with empty
// periods, more of them change nothing, so the rest are skipped. A
// non-positive n keeps the default.
func WithMaxIdlePeriods(n int) Option {
	return func(rp *Replayer) {
		if n > 0 {
			rp.maxIdle = n
		}
	}
}

// New creates a replayer. With a positive period, a period boundary is
// delivered to the group whenever event time crosses a multiple of period
// counted from the first event.
func New(group *timer.Group, period time.Duration, logger zerolog.Logger, opts ...Option) *Replayer {
	rp := &Replayer{group: group, period: period, logger: logger, maxIdle: DefaultMaxIdlePeriods}
	for _, opt := range opts {
		opt(rp)
	}
	return rp
}

// Run reads events from r until EOF, ctx is done, or a line fails to parse.
// A final period is delivered at the end when periods are enabled.
func (rp *Replayer) Run(ctx context.Context, r io.Reader) (Result, error) {
	var res Result

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var (
		lineNo     int
		lastAt     time.Time
		nextPeriod time.Time
	)

	for scanner.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return res, err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		ev, err := ParseEvent(line)
		if err != nil {
			return res, &ParseError{Line: lineNo, Msg: err.Error()}
		}
		if ev.At.IsZero() {
			ev.At = lastAt
		}

		if res.Events == 0 {
			res.First = ev.At
			nextPeriod = ev.At.Add(rp.period)
		}

		if rp.period > 0 {
			if nextPeriod, err = rp.catchUp(ctx, ev.At, nextPeriod, &res); err != nil {
				return res, err
			}
		}

		a := rp.group.Timer(ev.Timer)
		a.RecordStart(ev.At)
		a.RecordStop(ev.At.Add(ev.Elapsed), ev.Elapsed, ev.Error)

		res.Events++
		lastAt = ev.At
		if ev.At.After(res.Last) {
			res.Last = ev.At
		}
	}
	if err := scanner.Err(); err != nil {
		return res, fmt.Errorf("failed to read events: %w", err)
	}

	if rp.period > 0 && res.Events > 0 {
		rp.group.NotifyPeriodChange()
		res.Periods++
	}

	rp.logger.Info().
		Int("events", res.Events).
		Int("periods", res.Periods).
		Int("skipped", res.Skipped).
		Int("timers", len(rp.group.Timers())).
		Msg("replay finished")

	return res, nil
}

// catchUp delivers the period boundaries at or before at and returns the
// next boundary. Only the first boundary of a gap can close a period with
// data in it; after maxIdle deliveries the remaining boundaries are skipped
// arithmetically.
func (rp *Replayer) catchUp(ctx context.Context, at, next time.Time, res *Result) (time.Time, error) {
	for delivered := 0; !at.Before(next); delivered++ {
		if delivered == rp.maxIdle {
			skip := int(at.Sub(next)/rp.period) + 1
			res.Skipped += skip
			rp.logger.Debug().
				Int("skipped", skip).
				Time("at", at).
				Msg("skipping idle periods")
			return next.Add(time.Duration(skip) * rp.period), nil
		}
		if err := ctx.Err(); err != nil {
			return next, err
		}
		rp.group.NotifyPeriodChange()
		res.Periods++
		next = next.Add(rp.period)
	}
	return next, nil
}
