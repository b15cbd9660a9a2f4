package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config contains logger configuration.
type Config struct {
	// Level is one of DEBUG, INFO, WARNING, ERROR, CRITICAL (case-insensitive).
	Level string
	// Pretty enables human-readable console output with colors.
	Pretty bool
	// Output sets the output writer (defaults to os.Stdout).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  "INFO",
		Pretty: true,
		Output: os.Stdout,
	}
}

// ParseLevel maps the five configured level names onto zerolog levels.
// CRITICAL has no direct zerolog equivalent above Error short of disabling
// the logger entirely, so it is mapped to zerolog's PanicLevel, which still
// logs (unlike NoLevel/Disabled) but sorts above Error.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zerolog.DebugLevel, nil
	case "INFO":
		return zerolog.InfoLevel, nil
	case "WARNING", "WARN":
		return zerolog.WarnLevel, nil
	case "ERROR":
		return zerolog.ErrorLevel, nil
	case "CRITICAL":
		return zerolog.PanicLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: must be one of DEBUG, INFO, WARNING, ERROR, CRITICAL", level)
	}
}

// New creates a new zerolog logger with the given configuration. It returns
// an error if cfg.Level does not name one of the five configured levels.
func New(cfg Config) (zerolog.Logger, error) {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Logger{}, err
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: "15:04:05",
			NoColor:    false,
		}
	}

	return zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger(), nil
}

// NewWithComponent creates a logger with a component field for structured logging.
func NewWithComponent(cfg Config, component string) (zerolog.Logger, error) {
	logger, err := New(cfg)
	if err != nil {
		return zerolog.Logger{}, err
	}
	return logger.With().Str("component", component).Logger(), nil
}
