// Package logging wires the dual-sink logger used by the mirrorbox CLI.
// Every record goes to a tinted console handler and to a plain text
// handler appending to the run's log file.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"github.com/mirrorbox/mirrorbox/internal/utils"
)

// ParseLevel converts a level name like "debug" or "warn" to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// Setup opens the log file in append mode and returns a logger fanning
// out to stdout and the file. The caller owns the returned closer.
func Setup(logFile string, level slog.Level, noColor bool) (*slog.Logger, io.Closer, error) {
	path, err := utils.ResolvePath(logFile)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve log path: %w", err)
	}
	if err := utils.EnsureParent(path); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	consoleHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
		NoColor:    noColor || !isatty.IsTerminal(os.Stdout.Fd()),
	})
	fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(NewMultiHandler(consoleHandler, fileHandler)), file, nil
}
