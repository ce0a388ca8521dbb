// Package framelog appends per-frame scoring telemetry to a CSV log.
//
// The log is a diagnostic artifact, not a system of record: appends are
// best-effort and callers treat failures as log-and-continue.
package framelog

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// defaultLogFile is the on-disk telemetry file name.
const defaultLogFile = "power_scan_log.csv"

var header = []string{
	"timestamp",
	"base_power",
	"pose_bonus",
	"expression_bonus",
	"speed_bonus",
	"total_power",
	"landmark_count",
}

// Entry is one scored frame's telemetry row.
type Entry struct {
	At              time.Time
	BasePower       int64
	PoseBonus       int64
	ExpressionBonus int64
	SpeedBonus      int64
	TotalPower      int64
	LandmarkCount   int
}

// Appender receives telemetry entries.
type Appender interface {
	Append(ctx context.Context, e Entry) error
}

// Log is a CSV-backed Appender. The file stays open in append mode for the
// life of the process.
type Log struct {
	mu   sync.Mutex
	path string
	f    *os.File
	w    *csv.Writer
}

// Option applies a configuration option to the Log.
type Option func(*Log)

// WithPath sets the telemetry file path.
func WithPath(path string) Option {
	return func(l *Log) {
		if path != "" {
			l.path = path
		}
	}
}

// New opens the telemetry file, writing the header when the file is new.
func New(opts ...Option) (*Log, error) {
	l := &Log{path: defaultLogFile}
	for _, opt := range opts {
		opt(l)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open frame log %s: %w", l.path, err)
	}
	l.f = f
	l.w = csv.NewWriter(f)

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat frame log %s: %w", l.path, err)
	}
	if info.Size() == 0 {
		if err := l.w.Write(header); err == nil {
			l.w.Flush()
		}
		if err := l.w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("write frame log header: %w", err)
		}
	}
	return l, nil
}

// Path returns the telemetry file path.
func (l *Log) Path() string {
	return l.path
}

// Append writes one telemetry row.
func (l *Log) Append(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return fmt.Errorf("frame log %s is closed", l.path)
	}

	row := []string{
		e.At.Format(time.RFC3339),
		strconv.FormatInt(e.BasePower, 10),
		strconv.FormatInt(e.PoseBonus, 10),
		strconv.FormatInt(e.ExpressionBonus, 10),
		strconv.FormatInt(e.SpeedBonus, 10),
		strconv.FormatInt(e.TotalPower, 10),
		strconv.Itoa(e.LandmarkCount),
	}
	if err := l.w.Write(row); err != nil {
		return fmt.Errorf("append frame log: %w", err)
	}
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		return fmt.Errorf("flush frame log: %w", err)
	}
	return nil
}

// Close flushes and closes the telemetry file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	l.w.Flush()
	err := l.f.Close()
	l.f = nil
	return err
}
