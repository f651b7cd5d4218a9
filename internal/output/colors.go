package output

import (
	"github.com/fatih/color"
)

// ColorScheme defines the colors used for different elements of a report
type ColorScheme struct {
	Title *color.Color
	Timer *color.Color
	Label *color.Color
	Value *color.Color
	Good  *color.Color
	Warn  *color.Color
	Bad   *color.Color
	Bar   *color.Color
	Dim   *color.Color
}

// DefaultColorScheme returns the default color scheme
func DefaultColorScheme() *ColorScheme {
	scheme := &ColorScheme{
		Title: color.New(color.FgMagenta, color.Bold),
		Timer: color.New(color.FgCyan, color.Bold),
		Label: color.New(color.FgYellow),
		Value: color.New(color.FgWhite),
		Good:  color.New(color.FgGreen),
		Warn:  color.New(color.FgYellow, color.Bold),
		Bad:   color.New(color.FgRed, color.Bold),
		Bar:   color.New(color.FgBlue),
		Dim:   color.New(color.Faint),
	}
	for _, c := range scheme.all() {
		c.EnableColor()
	}
	return scheme
}

// NoColorScheme returns a color scheme with all colors disabled
func NoColorScheme() *ColorScheme {
	scheme := DefaultColorScheme()
	for _, c := range scheme.all() {
		c.DisableColor()
	}
	return scheme
}

func (s *ColorScheme) all() []*color.Color {
	return []*color.Color{s.Title, s.Timer, s.Label, s.Value, s.Good, s.Warn, s.Bad, s.Bar, s.Dim}
}

// rate picks a color for an error rate: good when zero, warn below 5%.
func (s *ColorScheme) rate(r float64) *color.Color {
	switch {
	case r == 0:
		return s.Good
	case r < 0.05:
		return s.Warn
	default:
		return s.Bad
	}
}
