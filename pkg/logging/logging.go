// Package logging builds the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ParseLevel maps debug|info|warn|error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

// Options select where and how much to log.
type Options struct {
	Level string
	// File, when set, receives JSON logs rotated by size.
	File       string
	MaxSizeMB  int
	MaxBackups int
	// Stderr is used when File is empty. Defaults to os.Stderr.
	Stderr io.Writer
}

// New returns a logger and a closer for any file it opened.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}
	hopts := &slog.HandlerOptions{Level: level}

	if opts.File != "" {
		size := opts.MaxSizeMB
		if size <= 0 {
			size = 50
		}
		backups := opts.MaxBackups
		if backups <= 0 {
			backups = 3
		}
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    size,
			MaxBackups: backups,
			Compress:   true,
		}
		return slog.New(slog.NewJSONHandler(lj, hopts)), lj, nil
	}

	w := opts.Stderr
	if w == nil {
		w = os.Stderr
	}
	return slog.New(slog.NewTextHandler(w, hopts)), nopCloser{}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup installs the logger as slog's default.
func Setup(opts Options) (io.Closer, error) {
	log, closer, err := New(opts)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(log)
	return closer, nil
}
