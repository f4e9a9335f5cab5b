package ingestion

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/poiesic/runbooks/core"
)

// ProgressTracker renders the progress of a job to a terminal.
type ProgressTracker struct {
	writer         io.Writer
	total          int
	processed      int
	successful     int
	failed         int
	reportInterval int
	unit           string
	lastReported   int
	startTime      time.Time
	started        bool
	mu             sync.Mutex
}

// NewProgressTracker creates a new progress tracker.
// writer: where to write progress output (typically os.Stderr)
// total: number of pages in the job
// reportInterval: report progress every N processed pages
func NewProgressTracker(writer io.Writer, total, reportInterval int) *ProgressTracker {
	return &ProgressTracker{
		writer:         writer,
		total:          total,
		reportInterval: max(reportInterval, 1),
		unit:           "pages",
	}
}

// WithUnit sets the plural noun used in the rate, e.g. "runbooks".
func (p *ProgressTracker) WithUnit(unit string) *ProgressTracker {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unit = unit
	return p
}

// Start begins tracking progress.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.processed = 0
	p.successful = 0
	p.failed = 0
	p.lastReported = 0
}

// Observe records the counters of a job snapshot and reports when at
// least reportInterval more items have been processed since the last report.
func (p *ProgressTracker) Observe(job *core.Job) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started || job == nil {
		return
	}
	p.set(job.ProcessedItems, job.SuccessfulItems, job.FailedItems)
	p.maybeReport()
}

// Update records absolute counters for work that is not tracked by a job.
func (p *ProgressTracker) Update(processed, successful, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.set(processed, successful, failed)
	p.maybeReport()
}

// Must be called with lock held.
func (p *ProgressTracker) maybeReport() {
	if p.processed-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = p.processed
	}
}

// Finish prints the final counters of job followed by a newline.
func (p *ProgressTracker) Finish(job *core.Job) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	if job != nil {
		p.set(job.ProcessedItems, job.SuccessfulItems, job.FailedItems)
	}
	p.report()
	fmt.Fprintln(p.writer)
}

// Elapsed returns the time elapsed since Start was called.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}
	return time.Since(p.startTime)
}

// Must be called with lock held.
func (p *ProgressTracker) set(processed, successful, failed int) {
	p.processed = min(processed, p.total)
	p.successful = successful
	p.failed = failed
}

// report prints the current progress. Must be called with lock held.
func (p *ProgressTracker) report() {
	elapsed := time.Since(p.startTime)
	rate := 0.0
	if elapsed > 0 {
		rate = float64(p.processed) / elapsed.Seconds()
	}

	percentage := 0.0
	if p.total > 0 {
		percentage = float64(p.processed) / float64(p.total) * 100.0
	}

	fmt.Fprintf(p.writer, "\rProgress: %d/%d (%.1f%%) - %d ok, %d failed - %.1f %s/s",
		p.processed, p.total, percentage, p.successful, p.failed, rate, p.unit)
}
