// Package logging builds the process slog.Logger: a text or JSON handler
// on stderr, optionally teed into a size-rotated log file.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/roach88/wedplan/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string

	// File, when set, receives a copy of every record and is rotated by
	// size.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Output defaults to os.Stderr.
	Output io.Writer
}

// Logger is a configured logger together with the resources it holds.
type Logger struct {
	*slog.Logger
	rotator *lumberjack.Logger
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.rotator == nil {
		return nil
	}
	return l.rotator.Close()
}

// New constructs a logger from opts.
func New(opts Options) (*Logger, error) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var rotator *lumberjack.Logger
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
		rotator = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		out = io.MultiWriter(out, rotator)
	}

	level := ParseLevel(opts.Level)
	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "text":
		handler = slog.NewTextHandler(out, handlerOpts)
	case "json":
		handler = slog.NewJSONHandler(out, handlerOpts)
	default:
		if rotator != nil {
			_ = rotator.Close()
		}
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	return &Logger{Logger: slog.New(handler), rotator: rotator}, nil
}

// FromConfig builds the logger described by cfg.Log, writing to out (nil
// for stderr). verbose forces debug level.
func FromConfig(cfg config.Log, verbose bool, out io.Writer) (*Logger, error) {
	level := cfg.Level
	if verbose {
		level = "debug"
	}
	return New(Options{
		Level:      level,
		Format:     cfg.Format,
		File:       cfg.File,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
		Output:     out,
	})
}

// ParseLevel maps a level name to a slog level. Unknown names are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
