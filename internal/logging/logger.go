// Package logging configures zerolog loggers for stopwatch components.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

const (
	// ModuleFieldName is the field carrying the component name on every line
	ModuleFieldName = "module"

	// DefaultTimeFormat is used for both JSON and console output
	DefaultTimeFormat = "2006-01-02 15:04:05.000"
)

// ConfigureLog creates a logger writing to logFile ("stdout", "stderr" or a
// path). An unknown level falls back to debug.
func ConfigureLog(logFile, logLevel, module string, pretty bool) (zerolog.Logger, error) {
	w, err := getLogWriter(logFile)
	if err != nil {
		return zerolog.Nop(), err
	}
	return New(w, logLevel, module, pretty, false), nil
}

// New creates a logger on w.
func New(w io.Writer, logLevel, module string, pretty, colorOff bool) zerolog.Logger {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil || logLevel == "" {
		level = zerolog.DebugLevel
	}

	zerolog.TimeFieldFormat = DefaultTimeFormat

	if pretty {
		w = zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    colorOff,
			TimeFormat: DefaultTimeFormat,
			PartsOrder: []string{zerolog.TimestampFieldName, ModuleFieldName, zerolog.LevelFieldName, zerolog.MessageFieldName},
		}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Str(ModuleFieldName, module).Logger()
}

func getLogWriter(logFileName string) (io.Writer, error) {
	switch logFileName {
	case "stdout", "":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}

	logDir := filepath.Dir(logFileName)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("can't create log directories %s: %w", logDir, err)
	}
	logFile, err := os.OpenFile(logFileName, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("can't open log file %s: %w", logFileName, err)
	}
	return logFile, nil
}
