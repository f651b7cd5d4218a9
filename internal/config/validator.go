package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Validate checks the semantic constraints the schema cannot express.
//
// Returns nil if valid, or a ValidationErrors containing all validation errors.
func (c *Config) Validate() error {
	errs := &ValidationErrors{}

	if c.Period <= 0 {
		errs.Add("period", "must be positive")
	}
	if c.Window < 1 {
		errs.Add("window", "must be at least 1")
	}

	validateRanges(c.Ranges, errs)
	validateLatency(&c.Latency, errs)

	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		errs.Add("logging.level", fmt.Sprintf("unknown level %q", c.Logging.Level))
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateRanges(ranges []Duration, errs *ValidationErrors) {
	if len(ranges) == 0 {
		return
	}
	if len(ranges) == 1 {
		errs.Add("ranges", "need at least 2 boundaries to form a bucket")
		return
	}
	for i := 1; i < len(ranges); i++ {
		if ranges[i] <= ranges[i-1] {
			errs.Add(fmt.Sprintf("ranges[%d]", i),
				fmt.Sprintf("%s is not greater than %s", ranges[i], ranges[i-1]))
		}
	}
}

func validateLatency(l *LatencyConfig, errs *ValidationErrors) {
	if l.Min.Duration().Microseconds() < 1 {
		errs.Add("latency.min", "must be at least 1us")
	}
	if l.Max <= l.Min {
		errs.Add("latency.max", "must be greater than latency.min")
	}
	if l.SignificantFigures < 1 || l.SignificantFigures > 5 {
		errs.Add("latency.significantFigures", "must be between 1 and 5")
	}
}
