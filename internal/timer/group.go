package timer

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Group owns a set of named accumulators sharing one RangeConfig.
//
// The RangeConfig may be replaced at runtime with SetRange; each accumulator
// picks up the new configuration on its next stop. Group is the Listener of
// every accumulator it creates and fans notifications out to the listeners
// registered with AddListener.
type Group struct {
	name   string
	ranges atomic.Pointer[RangeConfig]

	mu     sync.RWMutex
	timers map[string]*Accumulator

	listenersMu sync.RWMutex
	listeners   []Listener

	sinkFactory func(timer string) MovingAverageSink
	latencyCfg  LatencyConfig
	logger      zerolog.Logger
}

// GroupOption configures a Group.
type GroupOption func(*Group)

// WithGroupLogger sets the group logger.
func WithGroupLogger(logger zerolog.Logger) GroupOption {
	return func(g *Group) { g.logger = logger }
}

// WithSinkFactory gives every new accumulator its own sink.
func WithSinkFactory(f func(timer string) MovingAverageSink) GroupOption {
	return func(g *Group) { g.sinkFactory = f }
}

// WithGroupLatencyConfig sets the percentile histogram configuration used by
// accumulators created by the group.
func WithGroupLatencyConfig(c LatencyConfig) GroupOption {
	return func(g *Group) { g.latencyCfg = c.withDefaults() }
}

// NewGroup creates an empty group. r may be nil.
func NewGroup(name string, r *RangeConfig, opts ...GroupOption) *Group {
	g := &Group{
		name:       name,
		timers:     make(map[string]*Accumulator),
		latencyCfg: DefaultLatencyConfig(),
		logger:     zerolog.Nop(),
	}
	g.ranges.Store(r)

	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name returns the group name.
func (g *Group) Name() string {
	return g.name
}

// Range returns the current RangeConfig, or nil.
func (g *Group) Range() *RangeConfig {
	return g.ranges.Load()
}

// SetRange swaps the RangeConfig shared by the group's accumulators.
func (g *Group) SetRange(r *RangeConfig) {
	old := g.ranges.Swap(r)
	if old == r {
		return
	}

	event := g.logger.Info().Str("group", g.name)
	if r != nil {
		event = event.Int("intervals", r.IntervalCount())
	} else {
		event = event.Bool("disabled", true)
	}
	event.Msg("range configuration replaced")
}

// Timer returns the accumulator named name, creating it on first use.
func (g *Group) Timer(name string) *Accumulator {
	g.mu.RLock()
	a, ok := g.timers[name]
	g.mu.RUnlock()
	if ok {
		return a
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	// Re-check: another goroutine may have created it.
	if a, ok := g.timers[name]; ok {
		return a
	}

	opts := []Option{WithListener(g), WithLatencyConfig(g.latencyCfg)}
	if g.sinkFactory != nil {
		opts = append(opts, WithSink(g.sinkFactory(name)))
	}
	a = NewAccumulator(name, g, opts...)
	g.timers[name] = a

	g.logger.Debug().Str("group", g.name).Str("timer", name).Msg("timer created")
	return a
}

// Lookup returns the accumulator named name if it exists.
func (g *Group) Lookup(name string) (*Accumulator, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	a, ok := g.timers[name]
	return a, ok
}

// Timers returns all accumulators sorted by name.
func (g *Group) Timers() []*Accumulator {
	g.mu.RLock()
	result := make([]*Accumulator, 0, len(g.timers))
	for _, a := range g.timers {
		result = append(result, a)
	}
	g.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name() < result[j].Name()
	})
	return result
}

// Snapshots returns a snapshot of every accumulator, sorted by name.
func (g *Group) Snapshots() []Snapshot {
	timers := g.Timers()
	result := make([]Snapshot, len(timers))
	for i, a := range timers {
		result[i] = a.Snapshot()
	}
	return result
}

// Reset resets every accumulator in the group.
func (g *Group) Reset() {
	for _, a := range g.Timers() {
		a.Reset()
	}
}

// NotifyPeriodChange forwards a period boundary to every accumulator.
func (g *Group) NotifyPeriodChange() {
	for _, a := range g.Timers() {
		a.NotifyPeriodChange()
	}
}

// AddListener registers l for stop notifications from every timer.
func (g *Group) AddListener(l Listener) {
	g.listenersMu.Lock()
	defer g.listenersMu.Unlock()
	g.listeners = append(g.listeners, l)
}

// TimerStopped implements Listener.
func (g *Group) TimerStopped(a *Accumulator) {
	g.listenersMu.RLock()
	listeners := g.listeners
	g.listenersMu.RUnlock()

	for _, l := range listeners {
		l.TimerStopped(a)
	}
}
