// Package logging configures the process-wide slog logger for the chat
// server and client.
//
//	logger, err := logging.Setup(logging.Options{Level: "debug", Format: "json", Component: "server"})
//	slog.Info("client connected", "remote", addr, "slot", slot)
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options controls how logging is configured.
type Options struct {
	Level     string    // "debug", "info", "warn", "error" (default: "info")
	Format    string    // "text" or "json" (default: "text")
	Output    io.Writer // default: os.Stderr
	Component string    // added to every record as component=<value> when set
}

// ParseLevel converts a level name to slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logging: unknown level %q (valid: %s)", level, LevelNames())
	}
}

// LevelNames returns all valid level names, useful for -help text.
func LevelNames() string {
	return "debug, info, warn, error"
}

// New builds a logger from opts without installing it.
func New(opts Options) (*slog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "json":
		handler = slog.NewJSONHandler(out, handlerOpts)
	case "text", "":
		handler = slog.NewTextHandler(out, handlerOpts)
	default:
		return nil, fmt.Errorf("logging: unknown format %q (valid: text, json)", opts.Format)
	}

	logger := slog.New(handler)
	if opts.Component != "" {
		logger = logger.With("component", opts.Component)
	}
	return logger, nil
}

// Setup installs the logger described by opts as the slog default.
func Setup(opts Options) (*slog.Logger, error) {
	logger, err := New(opts)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}
