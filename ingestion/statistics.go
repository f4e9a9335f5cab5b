package ingestion

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"github.com/poiesic/runbooks/core"
)

const (
	// errorKeyLength bounds the histogram key of an error without a colon.
	errorKeyLength = 50
	// commonErrorLimit is the number of entries in FleetStatistics.MostCommonErrors.
	commonErrorLimit = 5
)

// JobSummary is a job together with analytics derived from its item results.
type JobSummary struct {
	core.Job

	SuccessRate     float64       `json:"success_rate"`
	AverageItemTime float64       `json:"average_page_processing_time"`
	FastestItemTime *float64      `json:"fastest_page_time"`
	SlowestItemTime *float64      `json:"slowest_page_time"`
	ErrorSummary    ErrorSummary  `json:"error_summary"`
	Items           []ItemSummary `json:"page_results_summary"`
}

// ErrorSummary counts the errors recorded against a job.
type ErrorSummary struct {
	TotalErrors int              `json:"total_errors"`
	ItemErrors  int              `json:"page_errors"`
	JobErrors   int              `json:"job_errors"`
	ErrorTypes  []ErrorTypeCount `json:"error_types"`
}

// ErrorTypeCount is one bucket of the item error histogram.
type ErrorTypeCount struct {
	ErrorType string `json:"error_type"`
	Count     int    `json:"count"`
}

// ItemSummary is the condensed view of one item result.
type ItemSummary struct {
	ItemID         string  `json:"page_id"`
	Title          string  `json:"title,omitempty"`
	Success        bool    `json:"success"`
	ProcessingTime float64 `json:"processing_time"`
	Error          string  `json:"error,omitempty"`
}

// ErrorCount is an exact error message and how often it occurred.
type ErrorCount struct {
	Error string `json:"error"`
	Count int    `json:"count"`
}

// PerformanceMetrics holds timing figures across all jobs.
type PerformanceMetrics struct {
	FastestJobTime            *float64 `json:"fastest_job_time"`
	SlowestJobTime            *float64 `json:"slowest_job_time"`
	AverageItemProcessingTime float64  `json:"average_page_processing_time"`
}

// FleetStatistics aggregates every job in the registry.
type FleetStatistics struct {
	TotalJobs     int `json:"total_jobs"`
	PendingJobs   int `json:"pending_jobs"`
	RunningJobs   int `json:"running_jobs"`
	CompletedJobs int `json:"completed_jobs"`
	FailedJobs    int `json:"failed_jobs"`
	CancelledJobs int `json:"cancelled_jobs"`

	TotalItemsProcessed        int `json:"total_pages_processed"`
	TotalSuccessfulExtractions int `json:"total_successful_extractions"`
	TotalFailedExtractions     int `json:"total_failed_extractions"`

	AverageProcessingTime float64            `json:"average_processing_time"`
	TotalProcessingTime   float64            `json:"total_processing_time"`
	AverageItemsPerJob    float64            `json:"average_pages_per_job"`
	SuccessRatePercentage float64            `json:"success_rate_percentage"`
	MostCommonErrors      []ErrorCount       `json:"most_common_errors"`
	Performance           PerformanceMetrics `json:"performance_metrics"`
}

// Summary computes the summary of one job.
func (r *Registry) Summary(id string) (*JobSummary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, false
	}

	summary := &JobSummary{
		Job: *job.Clone(),
		ErrorSummary: ErrorSummary{
			TotalErrors: len(job.Errors),
			JobErrors:   len(job.Errors),
			ErrorTypes:  []ErrorTypeCount{},
		},
		Items: make([]ItemSummary, 0, len(job.ItemResults)),
	}
	if job.ProcessedItems > 0 {
		summary.SuccessRate = percentage(job.SuccessfulItems, job.ProcessedItems)
	}

	var times []float64
	histogram := newCounter()
	for _, result := range job.ItemResults {
		if result.ProcessingTime > 0 {
			times = append(times, result.ProcessingTime)
		}
		if !result.Success && result.Error != "" {
			summary.ErrorSummary.ItemErrors++
			histogram.add(errorType(result.Error))
		}
		item := ItemSummary{
			ItemID:         result.ItemID,
			Title:          result.Title,
			Success:        result.Success,
			ProcessingTime: result.ProcessingTime,
		}
		if !result.Success {
			item.Error = result.Error
		}
		summary.Items = append(summary.Items, item)
	}

	if len(times) > 0 {
		summary.AverageItemTime = round2(mean(times))
		summary.FastestItemTime = ptr(round2(slices.Min(times)))
		summary.SlowestItemTime = ptr(round2(slices.Max(times)))
	}

	for _, entry := range histogram.sorted(byFirstSeen) {
		summary.ErrorSummary.ErrorTypes = append(summary.ErrorSummary.ErrorTypes,
			ErrorTypeCount{ErrorType: entry.key, Count: entry.count})
	}
	return summary, true
}

// Statistics computes aggregate figures over every job in the registry.
func (r *Registry) Statistics() *FleetStatistics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &FleetStatistics{
		TotalJobs:        len(r.jobs),
		MostCommonErrors: []ErrorCount{},
	}

	var jobTimes, itemTimes []float64
	errs := newCounter()
	for _, job := range r.snapshot() {
		switch job.Status {
		case core.JobStatusPending:
			stats.PendingJobs++
		case core.JobStatusRunning:
			stats.RunningJobs++
		case core.JobStatusCompleted:
			stats.CompletedJobs++
		case core.JobStatusFailed:
			stats.FailedJobs++
		case core.JobStatusCancelled:
			stats.CancelledJobs++
		}

		stats.TotalItemsProcessed += job.ProcessedItems
		stats.TotalSuccessfulExtractions += job.SuccessfulItems
		stats.TotalFailedExtractions += job.FailedItems

		if job.ProcessingTime != nil {
			jobTimes = append(jobTimes, *job.ProcessingTime)
		}
		for _, msg := range job.Errors {
			errs.add(msg)
		}
		for _, result := range job.ItemResults {
			if !result.Success && result.Error != "" {
				errs.add(result.Error)
			}
			if result.ProcessingTime > 0 {
				itemTimes = append(itemTimes, result.ProcessingTime)
			}
		}
	}

	if stats.TotalJobs > 0 {
		stats.AverageItemsPerJob = round2(float64(stats.TotalItemsProcessed) / float64(stats.TotalJobs))
	}
	if len(jobTimes) > 0 {
		total := sum(jobTimes)
		stats.TotalProcessingTime = round2(total)
		stats.AverageProcessingTime = round2(total / float64(len(jobTimes)))
		stats.Performance.FastestJobTime = ptr(round2(slices.Min(jobTimes)))
		stats.Performance.SlowestJobTime = ptr(round2(slices.Max(jobTimes)))
	}
	if len(itemTimes) > 0 {
		stats.Performance.AverageItemProcessingTime = round2(mean(itemTimes))
	}
	if extractions := stats.TotalSuccessfulExtractions + stats.TotalFailedExtractions; extractions > 0 {
		stats.SuccessRatePercentage = percentage(stats.TotalSuccessfulExtractions, extractions)
	}

	common := errs.sorted(byFirstSeen)
	for _, entry := range common[:min(commonErrorLimit, len(common))] {
		stats.MostCommonErrors = append(stats.MostCommonErrors,
			ErrorCount{Error: entry.key, Count: entry.count})
	}
	return stats
}

// errorType is the histogram key of an item error: the text before the
// first colon, or the first 50 characters when there is none.
func errorType(msg string) string {
	if before, _, found := strings.Cut(msg, ":"); found {
		return strings.TrimSpace(before)
	}
	runes := []rune(msg)
	if len(runes) > errorKeyLength {
		return string(runes[:errorKeyLength])
	}
	return msg
}

type counterEntry struct {
	key   string
	count int
	seen  int
}

// byFirstSeen keeps equal counts in the order they first appeared.
func byFirstSeen(a, b counterEntry) int {
	return cmp.Compare(a.seen, b.seen)
}

// counter counts strings and remembers the order they first appeared in.
type counter struct {
	entries map[string]*counterEntry
}

func newCounter() *counter {
	return &counter{entries: make(map[string]*counterEntry)}
}

func (c *counter) add(key string) {
	if e, ok := c.entries[key]; ok {
		e.count++
		return
	}
	c.entries[key] = &counterEntry{key: key, count: 1, seen: len(c.entries)}
}

// sorted returns the entries by descending count, using tie to order equal counts.
func (c *counter) sorted(tie func(a, b counterEntry) int) []counterEntry {
	out := make([]counterEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, *e)
	}
	slices.SortFunc(out, func(a, b counterEntry) int {
		if n := cmp.Compare(b.count, a.count); n != 0 {
			return n
		}
		return tie(a, b)
	})
	return out
}

func percentage(part, whole int) float64 {
	return round2(float64(part) / float64(whole) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

func mean(values []float64) float64 {
	return sum(values) / float64(len(values))
}

func ptr[T any](v T) *T {
	return &v
}
