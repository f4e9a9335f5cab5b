package ingestion

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/runbooks/core"
)

// Registry is the in-memory store of bulk ingestion jobs.
//
// Every read and write goes through a single lock. Reads return deep copies,
// so callers never see a job mid-update. Mutations that name an unknown job
// are silently ignored: a worker may still be reporting results for a job
// that was removed by Cleanup.
type Registry struct {
	mu    sync.RWMutex
	jobs    map[string]*core.Job
	claimed map[string]bool
	now     func() time.Time
	newID   func() (uuid.UUID, error)
}

// NewRegistry creates an empty registry. Only WithClock applies.
func NewRegistry(opts ...Option) (*Registry, error) {
	s, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	return newRegistry(s), nil
}

func newRegistry(s *settings) *Registry {
	return &Registry{
		jobs:    make(map[string]*core.Job),
		claimed: make(map[string]bool),
		now:     s.now,
		newID:   uuid.NewRandom,
	}
}

// Create allocates a pending job and returns its ID.
func (r *Registry) Create(totalItems, concurrencyLimit int) (string, error) {
	if concurrencyLimit < 1 {
		return "", ErrInvalidConcurrency
	}
	id, err := r.newID()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrIDGeneration, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	job := &core.Job{
		ID:               id.String(),
		Status:           core.JobStatusPending,
		CreatedAt:        r.now().UTC(),
		TotalItems:       totalItems,
		ConcurrencyLimit: concurrencyLimit,
		ItemResults:      []core.ItemResult{},
		Errors:           []string{},
	}
	r.jobs[job.ID] = job
	return job.ID, nil
}

// Get returns a copy of the job.
func (r *Registry) Get(id string) (*core.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, false
	}
	return job.Clone(), true
}

// status returns the job's status without copying it.
func (r *Registry) status(id string) (core.JobStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return "", false
	}
	return job.Status, true
}

// List returns copies of up to limit jobs, newest first, skipping offset.
func (r *Registry) List(limit, offset int) []*core.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	offset = max(offset, 0)
	if limit <= 0 || offset >= len(r.jobs) {
		return []*core.Job{}
	}

	jobs := r.snapshot()
	slices.Reverse(jobs)
	end := min(offset+limit, len(jobs))

	result := make([]*core.Job, 0, end-offset)
	for _, job := range jobs[offset:end] {
		result = append(result, job.Clone())
	}
	return result
}

// Count returns the number of jobs in the registry.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// UpdateStatus moves a job to status.
//
// Moving to the current status does nothing. Terminal states are absorbing,
// so a finished job keeps its status and timestamps. The first move to
// running stamps StartedAt; a terminal move stamps CompletedAt and the
// processing time.
func (r *Registry) UpdateStatus(id string, status core.JobStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if job, ok := r.jobs[id]; ok {
		r.transition(job, status)
	}
}

// Cancel marks a job cancelled.
// It fails with ErrJobNotFound for unknown jobs and ErrJobTerminal for finished ones.
// A job cancelled while pending gets CompletedAt but keeps StartedAt and
// ProcessingTime nil, since it never ran.
func (r *Registry) Cancel(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if job.Status.IsTerminal() {
		return fmt.Errorf("%w: job %s is %s", ErrJobTerminal, id, job.Status)
	}
	r.transition(job, core.JobStatusCancelled)
	return nil
}

// claim reserves a job for a single run over items and moves it from
// pending to running. A job cancelled before it was claimed can still be
// claimed once, so its run finalizes without launching anything.
func (r *Registry) claim(id string, items int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if items != job.TotalItems {
		return fmt.Errorf("%w: job %s has %d items, got %d", ErrItemCountMismatch, id, job.TotalItems, items)
	}
	if r.claimed[id] {
		return fmt.Errorf("%w: %s", ErrJobStarted, id)
	}
	switch job.Status {
	case core.JobStatusPending:
		r.transition(job, core.JobStatusRunning)
	case core.JobStatusCancelled:
	default:
		return fmt.Errorf("%w: job %s is %s", ErrJobTerminal, id, job.Status)
	}
	r.claimed[id] = true
	return nil
}

// Must be called with the write lock held.
func (r *Registry) transition(job *core.Job, status core.JobStatus) {
	if !status.IsValid() || status == core.JobStatusPending {
		return
	}
	if job.Status == status || job.Status.IsTerminal() {
		return
	}

	job.Status = status
	now := r.now().UTC()
	if status == core.JobStatusRunning {
		if job.StartedAt == nil {
			job.StartedAt = &now
		}
		return
	}

	job.CompletedAt = &now
	if job.StartedAt != nil {
		elapsed := now.Sub(*job.StartedAt).Seconds()
		job.ProcessingTime = &elapsed
	}
}

// AppendItemResult records the outcome of one item and updates the counters.
func (r *Registry) AppendItemResult(id string, result core.ItemResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return
	}
	job.ItemResults = append(job.ItemResults, result)
	job.ProcessedItems++
	if result.Success {
		job.SuccessfulItems++
	} else {
		job.FailedItems++
	}
}

// AppendJobError records a job-level error message.
func (r *Registry) AppendJobError(id, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if job, ok := r.jobs[id]; ok {
		job.Errors = append(job.Errors, message)
	}
}

// Cleanup removes finished jobs that completed more than maxAge ago and
// returns how many were removed. Pending and running jobs are never removed.
func (r *Registry) Cleanup(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().UTC().Add(-maxAge)
	removed := 0
	for id, job := range r.jobs {
		if !job.Status.IsTerminal() || job.CompletedAt == nil {
			continue
		}
		if job.CompletedAt.Before(cutoff) {
			delete(r.jobs, id)
			delete(r.claimed, id)
			removed++
		}
	}
	return removed
}

// snapshot returns the live jobs ordered oldest first, ties broken by ID.
// Must be called with the lock held.
func (r *Registry) snapshot() []*core.Job {
	jobs := make([]*core.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, job)
	}
	slices.SortFunc(jobs, func(a, b *core.Job) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return jobs
}
