// Package logging configures the process-wide charmbracelet/log logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
)

// Config selects the log level and destination.
type Config struct {
	// Level is one of debug, info, warn or error.
	Level string

	// File, when set, receives log output instead of stderr.
	File string
}

// DefaultFile returns jarvis.log in the user's cache directory.
func DefaultFile() (string, error) {
	dir, err := gap.NewScope(gap.User, "jarvis").CacheDir()
	if err != nil {
		return "", fmt.Errorf("could not find cache directory: %w", err)
	}
	return filepath.Join(dir, "jarvis.log"), nil
}

// ParseLevel maps a level name to a log level. Empty means info.
func ParseLevel(level string) (log.Level, error) {
	if strings.TrimSpace(level) == "" {
		return log.InfoLevel, nil
	}
	l, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return log.InfoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return l, nil
}

// Setup points the default logger at the configured destination and
// returns it with a closer for any opened file.
func Setup(cfg Config, stderr io.Writer) (*log.Logger, func() error, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	out := stderr
	closer := func() error { return nil }

	if cfg.File != "" {
		path, err := homedir.Expand(cfg.File)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid log file path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec
			return nil, nil, fmt.Errorf("could not create log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec
		if err != nil {
			return nil, nil, fmt.Errorf("could not open log file: %w", err)
		}
		out = f
		closer = f.Close
	}

	logger := log.NewWithOptions(out, log.Options{
		ReportTimestamp: cfg.File != "",
		TimeFormat:      time.RFC3339,
		Level:           level,
	})
	log.SetDefault(logger)

	return logger, closer, nil
}
