package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"comicgrabber/pkg/job"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
)

// JobReport tracks one job on the console: it prints each warning as it
// arrives and a summary once the result is in
type JobReport struct {
	mu       sync.Mutex
	filename string
	total    int
	warnings []job.Warning
	start    time.Time
	notifier *Notifier
}

// NewJobReport starts a report for a job of total images
func NewJobReport(filename string, total int, notifier *Notifier) *JobReport {
	return &JobReport{
		filename: filename,
		total:    total,
		start:    time.Now(),
		notifier: notifier,
	}
}

// Warn records a failed image. It matches the coordinator's warning callback.
func (r *JobReport) Warn(w job.Warning) {
	r.mu.Lock()
	r.warnings = append(r.warnings, w)
	r.mu.Unlock()

	printf(false, "%s %s %s\n", Yellow("⚠"), w.Brief, Dim(w.Src))
}

// Warnings returns the warnings seen so far
func (r *JobReport) Warnings() []job.Warning {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]job.Warning(nil), r.warnings...)
}

// Bar renders how many images made it into the archive
func (r *JobReport) Bar() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	const width = 20
	ok := r.total - len(r.warnings)
	if ok < 0 {
		ok = 0
	}
	filled := 0
	if r.total > 0 {
		filled = ok * width / r.total
	}
	bar := strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, width-filled)
	return fmt.Sprintf("[%s] %d/%d", bar, ok, r.total)
}

// Finish prints the outcome of the job and sends a notification
func (r *JobReport) Finish(res job.Result) {
	elapsed := time.Since(r.start).Round(time.Millisecond)
	bar := r.Bar()

	switch res.Status {
	case job.StatusComplete:
		printf(false, "%s %s %s\n", Green("✓"), bar, Dim(elapsed.String()))
		if r.notifier != nil {
			r.notifier.SendSuccess("Download complete", res.Filename)
		}
	default:
		msg := string(res.Status)
		if res.Error != "" {
			msg += ": " + res.Error
		}
		if r.notifier != nil {
			r.notifier.SendError("Download "+string(res.Status), msg)
		} else {
			PrintError(msg)
		}
	}
}
