// Package eventlog is a small sidecar audit log for bridge events (commands
// received, panel connection changes): one line per event, rotated
// daily and pruned by retention age. Adapted from logs/writer.go's
// current.log-symlink rotation and age-based Cleanup, with the ANSI
// cleaning and screen-redraw dedup logic dropped — this log receives
// discrete, already-translated lines, not a raw terminal stream.
package eventlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Writer appends timestamped event lines to a rotating log file.
type Writer struct {
	basePath      string
	retentionDays int
	log           *logrus.Entry

	mu           sync.Mutex
	file         *os.File
	lastRotation time.Time
}

// New constructs a Writer rooted at basePath, pruning files older than
// retentionDays on each Cleanup call (retentionDays <= 0 disables pruning).
func New(basePath string, retentionDays int, log *logrus.Logger) *Writer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Writer{
		basePath:      basePath,
		retentionDays: retentionDays,
		log:           log.WithField("component", "eventlog"),
	}
}

// Append writes one timestamped line. Safe for concurrent use.
func (w *Writer) Append(line string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.shouldRotateLocked() {
		if err := w.rotateLocked(); err != nil {
			return err
		}
	}

	f, err := w.getOrCreateFileLocked()
	if err != nil {
		return err
	}

	stamp := time.Now().Format("2006-01-02T15:04:05.000Z07:00")
	_, err = fmt.Fprintf(f, "%s %s\n", stamp, line)
	return err
}

func (w *Writer) shouldRotateLocked() bool {
	if w.file == nil {
		return false
	}
	return time.Now().YearDay() != w.lastRotation.YearDay() || time.Now().Year() != w.lastRotation.Year()
}

func (w *Writer) rotateLocked() error {
	if w.file != nil {
		w.file.Close()
		w.file = nil
	}
	return nil
}

func (w *Writer) getOrCreateFileLocked() (*os.File, error) {
	if w.file != nil {
		return w.file, nil
	}

	if err := os.MkdirAll(w.basePath, 0755); err != nil {
		return nil, fmt.Errorf("eventlog: create dir: %w", err)
	}

	symlinkPath := filepath.Join(w.basePath, "current.log")
	filename := time.Now().Format("2006-01-02") + ".log"
	path := filepath.Join(w.basePath, filename)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open %s: %w", path, err)
	}

	w.file = f
	w.lastRotation = time.Now()

	os.Remove(symlinkPath)
	os.Symlink(filename, symlinkPath)

	w.log.WithField("path", path).Info("opened event log file")
	return f, nil
}

// Close flushes and closes the currently open file, if any.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// Cleanup removes rotated log files older than the configured retention.
// Adapted from logs/writer.go::Cleanup, minus the per-server directory
// fan-out this package has no analog for.
func (w *Writer) Cleanup() {
	if w.retentionDays <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -w.retentionDays)

	entries, err := os.ReadDir(w.basePath)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".log" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(w.basePath, entry.Name())
			if err := os.Remove(path); err != nil {
				w.log.WithError(err).WithField("path", path).Warn("failed to remove expired log")
			} else {
				w.log.WithField("path", path).Info("removed expired log")
			}
		}
	}
}
