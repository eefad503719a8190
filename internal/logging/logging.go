// Package logging wraps logrus with the daemon's log-rotation-by-count and
// level configuration: Config{LogPath, LogLevel, MaxLogFiles} plus
// New/With/Close entry points.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Config controls where and how verbosely the daemon logs.
type Config struct {
	LogPath     string
	LogLevel    string
	MaxLogFiles int
}

// Logger wraps a *logrus.Logger with the daemon's file handle, so Close can
// flush and release it.
type Logger struct {
	*logrus.Logger
	file *os.File
}

// New creates a Logger per cfg, rotating old log files beyond MaxLogFiles.
func New(cfg Config) (*Logger, error) {
	level, err := logrus.ParseLevel(strings.ToLower(firstNonEmpty(cfg.LogLevel, "info")))
	if err != nil {
		level = logrus.InfoLevel
	}

	l := logrus.New()
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	var out io.Writer = os.Stderr
	var file *os.File

	if cfg.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		if err := rotate(cfg.LogPath, cfg.MaxLogFiles); err != nil {
			l.WithError(err).Warn("failed to rotate old log files")
		}

		f, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", cfg.LogPath, err)
		}
		file = f
		out = io.MultiWriter(os.Stderr, f)
	}

	l.SetOutput(out)

	return &Logger{Logger: l, file: file}, nil
}

// Close flushes and releases the underlying log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// With returns a component-scoped entry, the way every call site in this
// daemon tags its logs with a "component" field.
func (l *Logger) With(component string) *logrus.Entry {
	return l.WithField("component", component)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// rotate renames the current log file aside (timestamped) and deletes the
// oldest rotated files beyond keep, per the Global.MaxLogFiles knob.
func rotate(path string, keep int) error {
	if keep <= 0 {
		return nil
	}

	if _, err := os.Stat(path); err != nil {
		return nil // nothing to rotate yet
	}

	rotated := fmt.Sprintf("%s.%s", path, time.Now().Format("20060102T150405"))
	if err := os.Rename(path, rotated); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var prior []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), base+".") {
			prior = append(prior, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(prior)

	for len(prior) > keep {
		if err := os.Remove(prior[0]); err != nil {
			return err
		}
		prior = prior[1:]
	}

	return nil
}
