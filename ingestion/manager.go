package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/runbooks/core"
	"github.com/poiesic/runbooks/index"
	"github.com/poiesic/runbooks/source"
)

const (
	// MinCleanupAge and MaxCleanupAge bound the age accepted by CleanupJobs.
	MinCleanupAge = time.Hour
	MaxCleanupAge = 168 * time.Hour
)

// Manager exposes the job operations used by the CLI and other front ends.
// One long-lived Manager should own the worker pool for the whole process.
type Manager struct {
	registry     *Registry
	executor     *Executor
	pool         *ants.Pool
	pollInterval time.Duration
	running      sync.WaitGroup
	logger       *slog.Logger
}

// NewManager creates a job manager that ingests pages with the given collaborators.
func NewManager(fetcher source.Fetcher, extractor source.Extractor, indexer index.Indexer,
	opts ...Option) (*Manager, error) {
	s, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}

	registry := s.registry
	if registry == nil {
		registry = newRegistry(s)
	}

	pool, err := ants.NewPool(s.poolSize)
	if err != nil {
		return nil, err
	}

	proc, err := newPoolProcessor(pool, fetcher, extractor, indexer, s.logger)
	if err != nil {
		pool.Release()
		return nil, err
	}

	return &Manager{
		registry:     registry,
		executor:     newExecutor(registry, proc, s),
		pool:         pool,
		pollInterval: s.pollInterval,
		logger:       s.logger.With("component", "job-manager"),
	}, nil
}

// Registry returns the registry backing the manager.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// CreateJob registers a pending job for items.
func (m *Manager) CreateJob(items []string, concurrencyLimit int) (string, error) {
	id, err := m.registry.Create(len(items), concurrencyLimit)
	if err != nil {
		return "", err
	}
	m.logger.Debug("job created", "job_id", id, "items", len(items))
	return id, nil
}

// StartJob runs the executor for a job in the background and returns immediately.
// A job runs at most once, and items must match the count it was created with.
func (m *Manager) StartJob(jobID string, items []string, concurrencyLimit int) error {
	if err := m.registry.claim(jobID, len(items)); err != nil {
		return err
	}
	items = slices.Clone(items)
	// Jobs outlive the request that started them; cancellation goes through CancelJob.
	m.running.Go(func() {
		m.executor.Run(context.Background(), jobID, items, concurrencyLimit)
	})
	return nil
}

// Submit validates a bulk request, then creates and starts its job.
func (m *Manager) Submit(ctx context.Context, req core.BulkRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	req.PageIDs = slices.Clone(req.PageIDs)
	core.NormalizeBulkRequest(&req)
	if err := core.ValidateBulkRequest(&req); err != nil {
		return "", err
	}

	id, err := m.CreateJob(req.PageIDs, req.ConcurrencyLimit)
	if err != nil {
		return "", err
	}
	if err := m.StartJob(id, req.PageIDs, req.ConcurrencyLimit); err != nil {
		return "", err
	}
	m.logger.Info("bulk extraction submitted", "job_id", id, "pages", len(req.PageIDs),
		"space", req.SpaceKey)
	return id, nil
}

// GetJob returns a snapshot of a job.
func (m *Manager) GetJob(jobID string) (*core.Job, error) {
	job, ok := m.registry.Get(jobID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return job, nil
}

// ListJobs returns a page of jobs, newest first, and the total number of jobs.
func (m *Manager) ListJobs(limit, offset int) ([]*core.Job, int) {
	return m.registry.List(limit, offset), m.registry.Count()
}

// GetJobSummary returns a job with derived analytics.
func (m *Manager) GetJobSummary(jobID string) (*JobSummary, error) {
	summary, ok := m.registry.Summary(jobID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return summary, nil
}

// CancelJob requests cooperative cancellation of a job. In-flight items run
// to completion; items not yet started are skipped.
func (m *Manager) CancelJob(jobID string) error {
	if err := m.registry.Cancel(jobID); err != nil {
		return err
	}
	m.logger.Info("job cancelled", "job_id", jobID)
	return nil
}

// CleanupJobs removes finished jobs older than maxAge.
func (m *Manager) CleanupJobs(maxAge time.Duration) (int, error) {
	if maxAge < MinCleanupAge || maxAge > MaxCleanupAge {
		return 0, fmt.Errorf("%w: got %s", ErrInvalidMaxAge, maxAge)
	}
	removed := m.registry.Cleanup(maxAge)
	m.logger.Info("cleaned up jobs", "removed", removed, "max_age", maxAge)
	return removed, nil
}

// FleetStatistics returns aggregate figures across all jobs.
func (m *Manager) FleetStatistics() *FleetStatistics {
	return m.registry.Statistics()
}

// Wait polls a job until it reaches a terminal status or ctx is done.
func (m *Manager) Wait(ctx context.Context, jobID string) (*core.Job, error) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		job, err := m.GetJob(jobID)
		if err != nil {
			return nil, err
		}
		if job.Status.IsTerminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Release waits for running jobs to finish and releases the worker pool.
// The manager should not be used after calling Release.
func (m *Manager) Release() {
	m.running.Wait()
	if m.pool != nil {
		m.pool.Release()
	}
}
