// Package logging builds the zerolog logger used by the formkit command.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-formkit/internal/config"
)

// New creates a logger from cfg. The returned closer releases the output
// file, if any.
func New(cfg config.LoggingConfig) (zerolog.Logger, io.Closer, error) {
	writer, closer, err := output(cfg.Output)
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	return build(writer, cfg), closer, nil
}

// NewWriter creates a logger writing to w, for tests and embedding.
func NewWriter(w io.Writer, cfg config.LoggingConfig) zerolog.Logger {
	return build(w, cfg)
}

func build(writer io.Writer, cfg config.LoggingConfig) zerolog.Logger {
	switch cfg.TimeFormat {
	case "unix":
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	case "unixms":
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	default:
		zerolog.TimeFieldFormat = time.RFC3339
	}

	if cfg.Format == "console" {
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: time.Kitchen}
	}
	return zerolog.New(writer).With().Timestamp().Logger().Level(ParseLevel(cfg.Level))
}

func output(target string) (io.Writer, io.Closer, error) {
	switch strings.TrimSpace(target) {
	case "", "stderr":
		return os.Stderr, nopCloser{}, nil
	case "stdout":
		return os.Stdout, nopCloser{}, nil
	default:
		file, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("logging: open %s: %w", target, err)
		}
		return file, file, nil
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// ParseLevel maps a level name to zerolog, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
