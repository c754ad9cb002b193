// Package logfile keeps the local sample log: one line per sample, appended to
// a size-bounded chain of files.
package logfile

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"humidity-monitor/internal/types"
)

// FormatLine renders the canonical log line, e.g.
//
//	2024/01/31 23:59:59,temp:68,rh:45
func FormatLine(s types.Sample) string {
	return fmt.Sprintf("%s,temp:%d,rh:%d\n", s.TimestampString(), s.TemperatureF, s.HumidityPct)
}

// Append opens path in append mode, writes line and closes the file again.
// Parent directories are not created.
func Append(path string, line string) (err error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()

	if _, err := io.WriteString(f, line); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

type Options struct {
	Path        string
	SizeLimit   int64
	RotateCount int
	// Stdout receives a copy of every line; nil disables the mirror.
	Stdout io.Writer
	Logger *slog.Logger
}

// Writer is the local sample log.
type Writer struct {
	opts   Options
	logger *slog.Logger
}

func NewWriter(opts Options) *Writer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{opts: opts, logger: logger}
}

// Write rotates the chain if the active file is over the limit, appends the
// sample line to the active file and, only once that succeeded, echoes it to
// stdout.
func (w *Writer) Write(s types.Sample) error {
	rotated, err := RotateIfNeeded(w.opts.Path, w.opts.SizeLimit, w.opts.RotateCount)
	if err != nil {
		return err
	}
	if rotated {
		w.logger.Info("log rotated", "path", w.opts.Path, "rotate_count", w.opts.RotateCount)
	}

	line := FormatLine(s)
	if err := Append(w.opts.Path, line); err != nil {
		return err
	}
	if w.opts.Stdout != nil {
		if _, err := io.WriteString(w.opts.Stdout, line); err != nil {
			w.logger.Warn("stdout write failed", "error", err)
		}
	}
	return nil
}
