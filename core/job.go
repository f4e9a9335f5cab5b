package core

import (
	"slices"
	"time"
)

// JobStatus is the lifecycle state of a bulk ingestion job.
type JobStatus string

const (
	// JobStatusPending is the state of a job that has been created but not started.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning is the state of a job whose executor is active.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted means at least one item succeeded.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed means no item succeeded.
	JobStatusFailed JobStatus = "failed"
	// JobStatusCancelled means cancellation was requested before the job finished.
	JobStatusCancelled JobStatus = "cancelled"
)

// JobStatuses lists every status in lifecycle order.
var JobStatuses = []JobStatus{
	JobStatusPending,
	JobStatusRunning,
	JobStatusCompleted,
	JobStatusFailed,
	JobStatusCancelled,
}

// IsTerminal reports whether no further transitions are possible from s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// IsValid reports whether s is a known status.
func (s JobStatus) IsValid() bool {
	return slices.Contains(JobStatuses, s)
}

// ItemResult is the outcome of processing one work item.
type ItemResult struct {
	ItemID         string  `json:"page_id"`
	DerivedID      string  `json:"runbook_id,omitempty"` // Set by the index store on success
	Title          string  `json:"title,omitempty"`
	Success        bool    `json:"success"`
	Error          string  `json:"error,omitempty"` // Required when Success is false
	ProcessingTime float64 `json:"processing_time"` // Seconds
}

// Job tracks one bulk ingestion request.
//
// Counters satisfy ProcessedItems == len(ItemResults) == SuccessfulItems + FailedItems
// and ProcessedItems <= TotalItems at every observation point.
type Job struct {
	ID               string       `json:"job_id"`
	Status           JobStatus    `json:"status"`
	CreatedAt        time.Time    `json:"created_at"`
	StartedAt        *time.Time   `json:"started_at"`
	CompletedAt      *time.Time   `json:"completed_at"`
	TotalItems       int          `json:"total_pages"`
	ProcessedItems   int          `json:"processed_pages"`
	SuccessfulItems  int          `json:"successful_extractions"`
	FailedItems      int          `json:"failed_extractions"`
	ProcessingTime   *float64     `json:"processing_time"` // Seconds, set on terminal transition
	ConcurrencyLimit int          `json:"concurrency_limit"`
	ItemResults      []ItemResult `json:"page_results"`
	Errors           []string     `json:"errors"`
}

// Clone returns a deep copy of the job.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	if j.ProcessingTime != nil {
		p := *j.ProcessingTime
		c.ProcessingTime = &p
	}
	c.ItemResults = slices.Clone(j.ItemResults)
	c.Errors = slices.Clone(j.Errors)
	return &c
}

// BulkRequest is a request to ingest a batch of pages.
type BulkRequest struct {
	PageIDs          []string `json:"page_ids" validate:"required,min=1,max=100,unique,dive,required,max=50"`
	SpaceKey         string   `json:"space_key,omitempty" validate:"omitempty,max=50"`
	ConcurrencyLimit int      `json:"concurrency_limit" validate:"min=1,max=20"`
}

// DefaultConcurrencyLimit is used when a BulkRequest does not specify one.
const DefaultConcurrencyLimit = 5
