package utils

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tj/go-spin"
)

// ProgressReporter hands out trackers. A nil reporter produces silent trackers.
type ProgressReporter struct {
	// Out receives the spinner line; nil disables it.
	Out    io.Writer
	Logger *log.Logger
	// Every controls how often (in items) progress is reported.
	Every int64
}

// ProgressTracker counts processed items for one batch.
type ProgressTracker struct {
	Total     int64
	Processed int64
	StartTime time.Time
	Name      string

	reporter *ProgressReporter
	spinner  *spin.Spinner
	mu       sync.Mutex
}

// Track starts a tracker for total items.
func (r *ProgressReporter) Track(total int64, name string) *ProgressTracker {
	if r == nil {
		return nil
	}
	s := spin.New()
	s.Set(spin.Spin1)
	return &ProgressTracker{
		Total:     total,
		StartTime: time.Now(),
		Name:      name,
		reporter:  r,
		spinner:   s,
	}
}

// Increment counts one processed item. Safe for concurrent use.
func (pt *ProgressTracker) Increment() {
	if pt == nil {
		return
	}
	processed := atomic.AddInt64(&pt.Processed, 1)

	every := pt.reporter.Every
	if every <= 0 {
		every = 100
	}
	if processed%every != 0 && processed != pt.Total {
		return
	}

	elapsed := time.Since(pt.StartTime)
	rate := float64(processed) / elapsed.Seconds()
	percentage := float64(processed) / float64(pt.Total) * 100

	pt.mu.Lock()
	defer pt.mu.Unlock()
	if pt.reporter.Out != nil {
		fmt.Fprintf(pt.reporter.Out, "\r%s %s: %d/%d (%.1f%%) - %.1f items/sec",
			pt.spinner.Next(), pt.Name, processed, pt.Total, percentage, rate)
	}
	if pt.reporter.Logger != nil {
		pt.reporter.Logger.Debug("progress", "step", pt.Name, "done", processed, "total", pt.Total)
	}
}

// GetProgress returns processed, total and the percentage done.
func (pt *ProgressTracker) GetProgress() (int64, int64, float64) {
	processed := atomic.LoadInt64(&pt.Processed)
	percentage := float64(processed) / float64(pt.Total) * 100
	return processed, pt.Total, percentage
}

// Finish terminates the spinner line.
func (pt *ProgressTracker) Finish() {
	if pt == nil {
		return
	}
	pt.mu.Lock()
	defer pt.mu.Unlock()
	if pt.reporter.Out != nil {
		fmt.Fprintln(pt.reporter.Out)
	}
}
