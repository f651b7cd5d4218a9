// Package config provides configuration parsing and validation for stopwatch.
package config

import (
	"encoding/json"
	"time"

	"github.com/wesleyorama2/stopwatch/internal/timer"
)

// Config is the root configuration.
//
// Example YAML:
//
//	name: checkout
//	period: 1m
//	window: 15
//	ranges: [0s, 10ms, 50ms, 100ms, 500ms, 1s]
//	latency:
//	  min: 1us
//	  max: 1h
//	  significantFigures: 3
//	logging:
//	  level: info
//	  file: stderr
//	  pretty: true
type Config struct {
	// Name of the timer group (for reporting and metric labels)
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Period is the interval between moving-average snapshots
	Period Duration `json:"period,omitempty" yaml:"period,omitempty"`

	// Window is the number of periods kept by each moving-average window
	Window int `json:"window,omitempty" yaml:"window,omitempty"`

	// Ranges are the bucket boundaries of the time distribution.
	// Omitted means DefaultRanges; an explicit empty list disables the distribution.
	Ranges []Duration `json:"ranges" yaml:"ranges"`

	// Latency configures the percentile histogram
	Latency LatencyConfig `json:"latency,omitempty" yaml:"latency,omitempty"`

	// Logging configures the process logger
	Logging LoggingConfig `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// LatencyConfig configures the HDR percentile histogram.
type LatencyConfig struct {
	Min                Duration `json:"min,omitempty" yaml:"min,omitempty"`
	Max                Duration `json:"max,omitempty" yaml:"max,omitempty"`
	SignificantFigures int      `json:"significantFigures,omitempty" yaml:"significantFigures,omitempty"`
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	// Level is a zerolog level name (default: info)
	Level string `json:"level,omitempty" yaml:"level,omitempty"`

	// File is "stdout", "stderr" or a path (default: stderr)
	File string `json:"file,omitempty" yaml:"file,omitempty"`

	// Pretty enables the human-readable console writer
	Pretty bool `json:"pretty,omitempty" yaml:"pretty,omitempty"`
}

// Defaults
const (
	DefaultName    = "stopwatch"
	DefaultPeriod  = time.Minute
	DefaultWindow  = 15
	DefaultLevel   = "info"
	DefaultLogFile = "stderr"
)

// DefaultRanges are the bucket boundaries used when none are configured.
var DefaultRanges = []time.Duration{
	0,
	time.Millisecond,
	5 * time.Millisecond,
	10 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
	5 * time.Second,
}

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.Period == 0 {
		c.Period = Duration(DefaultPeriod)
	}
	if c.Window == 0 {
		c.Window = DefaultWindow
	}
	if c.Ranges == nil {
		c.Ranges = make([]Duration, len(DefaultRanges))
		for i, b := range DefaultRanges {
			c.Ranges[i] = Duration(b)
		}
	}

	def := timer.DefaultLatencyConfig()
	if c.Latency.Min == 0 {
		c.Latency.Min = Duration(def.Min)
	}
	if c.Latency.Max == 0 {
		c.Latency.Max = Duration(def.Max)
	}
	if c.Latency.SignificantFigures == 0 {
		c.Latency.SignificantFigures = def.SignificantFigures
	}

	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLevel
	}
	if c.Logging.File == "" {
		c.Logging.File = DefaultLogFile
	}
}

// RangeConfig builds the bucket configuration, or nil when disabled.
func (c *Config) RangeConfig() (*timer.RangeConfig, error) {
	if len(c.Ranges) == 0 {
		return nil, nil
	}

	bounds := make([]time.Duration, len(c.Ranges))
	for i, b := range c.Ranges {
		bounds[i] = b.Duration()
	}
	return timer.NewRangeConfig(bounds...)
}

// TimerLatencyConfig converts the latency section for the timer package.
func (c *Config) TimerLatencyConfig() timer.LatencyConfig {
	return timer.LatencyConfig{
		Min:                c.Latency.Min.Duration(),
		Max:                c.Latency.Max.Duration(),
		SignificantFigures: c.Latency.SignificantFigures,
	}
}

// Duration is a time.Duration that can be unmarshaled from JSON/YAML strings.
type Duration time.Duration

// Duration returns the value as a time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	// Remove quotes if present
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	if s == "" || s == "null" {
		*d = 0
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	if s == "" {
		*d = 0
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// String returns the duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// JSONSchema describes the accepted configuration document.
const JSONSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "stopwatch configuration",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "name": {"type": "string"},
    "period": {"$ref": "#/definitions/duration"},
    "window": {"type": "integer", "minimum": 1},
    "ranges": {
      "type": "array",
      "items": {"$ref": "#/definitions/duration"}
    },
    "latency": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "min": {"$ref": "#/definitions/duration"},
        "max": {"$ref": "#/definitions/duration"},
        "significantFigures": {"type": "integer", "minimum": 1, "maximum": 5}
      }
    },
    "logging": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "level": {"enum": ["trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled"]},
        "file": {"type": "string"},
        "pretty": {"type": "boolean"}
      }
    }
  },
  "definitions": {
    "duration": {
      "anyOf": [
        {"type": "string", "pattern": "^(0|([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+)$"},
        {"const": 0}
      ]
    }
  }
}`
