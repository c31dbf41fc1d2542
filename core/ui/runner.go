// Package ui - Phase runner with live progress
package ui

import (
	"os"
	"time"
)

// Runner runs the phases of a CLI command, showing a spinner for each
// phase when attached to a terminal
type Runner struct {
	w           *Writer
	showSpinner bool
	timings     []PhaseTiming
}

// PhaseTiming records how long one phase took
type PhaseTiming struct {
	Label    string
	Duration time.Duration
	Failed   bool
}

// NewRunner creates a runner writing progress to w
func NewRunner(w *Writer, interactive bool) *Runner {
	return &Runner{
		w:           w,
		showSpinner: interactive,
	}
}

// Step runs fn as the phase named label
func (r *Runner) Step(label string, fn func() error) error {
	start := time.Now()

	var err error
	if r.showSpinner {
		spinner := r.w.NewSpinner(label)
		spinner.Start()
		err = fn()
		spinner.Stop(err == nil)
	} else {
		err = fn()
	}

	timing := PhaseTiming{Label: label, Duration: time.Since(start), Failed: err != nil}
	r.timings = append(r.timings, timing)
	r.w.Debug("%s %s", label, formatDuration(timing.Duration))
	return err
}

// Timings returns the phases run so far
func (r *Runner) Timings() []PhaseTiming {
	return r.timings
}

// IsTerminal reports whether f is a character device
func IsTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
