// Package logging builds the process-wide slog logger from the logging
// section of the configuration.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Formats understood by New.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Options select the handler and its threshold.
type Options struct {
	Level  string
	Format string
	// AddSource annotates records with file:line.
	AddSource bool
}

// New writes to stderr so command output on stdout stays parseable.
func New(opts Options) *slog.Logger {
	return NewWithWriter(os.Stderr, opts)
}

// NewWithWriter is New with an explicit destination. An unreadable level
// falls back to info and is reported once through the new logger.
func NewWithWriter(w io.Writer, opts Options) *slog.Logger {
	level, levelErr := ParseLevel(opts.Level)
	handlerOpts := &slog.HandlerOptions{Level: level, AddSource: opts.AddSource}

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, handlerOpts)
	default:
		handler = slog.NewTextHandler(w, handlerOpts)
	}

	logger := slog.New(handler)
	if levelErr != nil {
		logger.Warn("logging.level_fallback", "error", levelErr)
	}
	return logger
}

// ParseLevel accepts slog level names, offsets such as "info+2" and the
// alias "warning". An empty value means info.
func ParseLevel(value string) (slog.Level, error) {
	value = strings.TrimSpace(value)
	switch strings.ToLower(value) {
	case "":
		return slog.LevelInfo, nil
	case "warning":
		return slog.LevelWarn, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", value)
	}
	return level, nil
}
