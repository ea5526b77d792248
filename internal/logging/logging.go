// Package logging builds the structured logger shared by pit's components.
//
// Logs go to <project>/.pit/logs/pit.log so nothing is written over the
// dashboard. With verbose set they are mirrored to the console as well.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Options configures New.
type Options struct {
	// ProjectRoot selects the log file; empty logs to Console only.
	ProjectRoot string
	// Level is a charmbracelet/log level name. Defaults to info.
	Level string
	// Verbose forces debug level and mirrors output to Console.
	Verbose bool
	// Console receives warnings when there is no log file, and everything
	// when Verbose is set. Usually os.Stderr.
	Console io.Writer
}

// LogPath returns the log file for a project.
func LogPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".pit", "logs", "pit.log")
}

// New creates a logger. The returned close function releases the log file.
func New(opts Options) (*log.Logger, func() error, error) {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}
	if opts.Verbose {
		level = log.DebugLevel
	}

	closeFn := func() error { return nil }
	var writers []io.Writer

	if opts.ProjectRoot != "" {
		path := LogPath(opts.ProjectRoot)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		writers = append(writers, f)
		closeFn = f.Close
	}

	if opts.Console != nil && (opts.Verbose || len(writers) == 0) {
		writers = append(writers, opts.Console)
		if !opts.Verbose {
			level = log.WarnLevel
		}
	}

	if len(writers) == 0 {
		return Discard(), closeFn, nil
	}

	logger := log.NewWithOptions(io.MultiWriter(writers...), log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Level:           level,
		Prefix:          "pit",
	})
	return logger, closeFn, nil
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

func parseLevel(s string) (log.Level, error) {
	if s == "" {
		return log.InfoLevel, nil
	}
	level, err := log.ParseLevel(strings.ToLower(s))
	if err != nil {
		return 0, fmt.Errorf("log level %q: %w", s, err)
	}
	return level, nil
}
