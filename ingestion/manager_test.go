package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	aimock "github.com/poiesic/runbooks/ai/mock"
	"github.com/poiesic/runbooks/core"
	"github.com/poiesic/runbooks/index"
	"github.com/poiesic/runbooks/source/mock"
	"github.com/poiesic/runbooks/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager_RequiresCollaborators(t *testing.T) {
	fetcher := mock.NewMockFetcher()
	extractor := mock.NewMockExtractor()
	indexer := &testIndexer{}

	_, err := NewManager(nil, extractor, indexer)
	assert.ErrorIs(t, err, ErrFetcherRequired)

	_, err = NewManager(fetcher, nil, indexer)
	assert.ErrorIs(t, err, ErrExtractorRequired)

	_, err = NewManager(fetcher, extractor, nil)
	assert.ErrorIs(t, err, ErrIndexerRequired)
}

func TestNewManager_InvalidOption(t *testing.T) {
	_, err := NewManager(mock.NewMockFetcher(), mock.NewMockExtractor(), &testIndexer{},
		WithPollInterval(0))
	assert.Error(t, err)
}

func TestNewManager_Defaults(t *testing.T) {
	m := setupManager(t, newTestCollaborators())

	assert.Equal(t, DefaultPoolSize, m.pool.Cap())
	assert.NotNil(t, m.Registry())
}

func TestNewManager_PoolSize(t *testing.T) {
	m := setupManager(t, newTestCollaborators(), WithPoolSize(0))
	assert.Equal(t, 1, m.pool.Cap(), "pool size is at least one")

	m = setupManager(t, newTestCollaborators(), WithPoolSize(4))
	assert.Equal(t, 4, m.pool.Cap())
}

func TestManager_SharedRegistry(t *testing.T) {
	registry, err := NewRegistry()
	require.NoError(t, err)
	m := setupManager(t, newTestCollaborators(), WithRegistry(registry))

	id, err := m.CreateJob([]string{"A"}, 1)
	require.NoError(t, err)

	_, ok := registry.Get(id)
	assert.True(t, ok)
}

func TestManager_Submit(t *testing.T) {
	c := newTestCollaborators()
	m := setupManager(t, c)

	id, err := m.Submit(context.Background(), core.BulkRequest{
		PageIDs:  []string{" 101 ", "102"},
		SpaceKey: "OPS",
	})
	require.NoError(t, err)

	job := waitForJob(t, m, id)
	assert.Equal(t, core.JobStatusCompleted, job.Status)
	assert.Equal(t, core.DefaultConcurrencyLimit, job.ConcurrencyLimit)
	assert.ElementsMatch(t, []string{"101", "102"}, c.fetcher.Fetched(), "page ids are trimmed")
}

func TestManager_Submit_Validation(t *testing.T) {
	m := setupManager(t, newTestCollaborators())

	tests := []struct {
		name string
		req  core.BulkRequest
	}{
		{"no pages", core.BulkRequest{}},
		{"blank page id", core.BulkRequest{PageIDs: []string{"  "}}},
		{"duplicate page ids", core.BulkRequest{PageIDs: []string{"1", "1"}}},
		{"concurrency too high", core.BulkRequest{PageIDs: []string{"1"}, ConcurrencyLimit: 21}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Submit(context.Background(), tt.req)
			assert.ErrorIs(t, err, core.ErrInvalidRequest)
		})
	}
	assert.Zero(t, m.Registry().Count(), "invalid requests create no jobs")
}

func TestManager_Submit_CancelledContext(t *testing.T) {
	m := setupManager(t, newTestCollaborators())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Submit(ctx, core.BulkRequest{PageIDs: []string{"1"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestManager_NotFound(t *testing.T) {
	m := setupManager(t, newTestCollaborators())

	_, err := m.GetJob("missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	_, err = m.GetJobSummary("missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	err = m.CancelJob("missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	err = m.StartJob("missing", []string{"A"}, 1)
	assert.ErrorIs(t, err, ErrJobNotFound)

	_, err = m.Wait(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestManager_CancelFinishedJobConflicts(t *testing.T) {
	m := setupManager(t, newTestCollaborators())

	id := startJob(t, m, []string{"A"}, 1)
	waitForJob(t, m, id)

	err := m.CancelJob(id)
	assert.ErrorIs(t, err, ErrJobTerminal)

	job, err := m.GetJob(id)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusCompleted, job.Status)
}

func TestManager_GetJobSummary(t *testing.T) {
	c := newTestCollaborators()
	c.fetcher.FetchPageFunc = func(ctx context.Context, pageID string) (*core.RawPage, error) {
		if pageID == "B" {
			return nil, errors.New("Resource not found.")
		}
		return testPage(pageID), nil
	}
	m := setupManager(t, c)

	id := startJob(t, m, []string{"A", "B"}, 1)
	waitForJob(t, m, id)

	summary, err := m.GetJobSummary(id)
	require.NoError(t, err)
	assert.Equal(t, 50.0, summary.SuccessRate)
	assert.Len(t, summary.Items, 2)
	assert.Equal(t, []ErrorTypeCount{{ErrorType: "Resource not found.", Count: 1}},
		summary.ErrorSummary.ErrorTypes)
}

func TestManager_ListJobs(t *testing.T) {
	clock := newFakeClock()
	m := setupManager(t, newTestCollaborators(), WithClock(clock.Now))

	var ids []string
	for range 3 {
		id, err := m.CreateJob([]string{"A"}, 1)
		require.NoError(t, err)
		ids = append(ids, id)
		clock.Advance(time.Second)
	}

	jobs, total := m.ListJobs(2, 0)
	assert.Equal(t, 3, total)
	require.Len(t, jobs, 2)
	assert.Equal(t, ids[2], jobs[0].ID)

	jobs, total = m.ListJobs(2, 2)
	assert.Equal(t, 3, total)
	require.Len(t, jobs, 1)
	assert.Equal(t, ids[0], jobs[0].ID)
}

func TestManager_CleanupJobs(t *testing.T) {
	clock := newFakeClock()
	m := setupManager(t, newTestCollaborators(), WithClock(clock.Now))

	finished := startJob(t, m, []string{"A"}, 1)
	waitForJob(t, m, finished)
	pending, err := m.CreateJob([]string{"B"}, 1)
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)

	removed, err := m.CleanupJobs(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = m.GetJob(finished)
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = m.GetJob(pending)
	assert.NoError(t, err, "pending jobs are never removed")
}

func TestManager_CleanupJobs_Range(t *testing.T) {
	m := setupManager(t, newTestCollaborators())

	for _, age := range []time.Duration{0, 30 * time.Minute, 169 * time.Hour} {
		_, err := m.CleanupJobs(age)
		assert.ErrorIs(t, err, ErrInvalidMaxAge, "age %s", age)
	}
	for _, age := range []time.Duration{MinCleanupAge, MaxCleanupAge} {
		_, err := m.CleanupJobs(age)
		assert.NoError(t, err, "age %s", age)
	}
}

func TestManager_FleetStatistics(t *testing.T) {
	c := newTestCollaborators()
	c.fetcher.FetchPageFunc = func(ctx context.Context, pageID string) (*core.RawPage, error) {
		if pageID == "bad" {
			return nil, errors.New("Authentication failed. Check your credentials.")
		}
		return testPage(pageID), nil
	}
	m := setupManager(t, c)

	first := startJob(t, m, []string{"good", "bad"}, 2)
	waitForJob(t, m, first)

	second, err := m.CreateJob([]string{"x", "y"}, 1)
	require.NoError(t, err)
	m.Registry().UpdateStatus(second, core.JobStatusRunning)

	stats := m.FleetStatistics()
	assert.Equal(t, 2, stats.TotalJobs)
	assert.Equal(t, 1, stats.CompletedJobs)
	assert.Equal(t, 1, stats.RunningJobs)
	assert.Equal(t, 1, stats.TotalSuccessfulExtractions)
	assert.Equal(t, 1, stats.TotalFailedExtractions)
	assert.Equal(t, []ErrorCount{{Error: "Authentication failed. Check your credentials.", Count: 1}},
		stats.MostCommonErrors)
}

func TestManager_Wait_ContextDone(t *testing.T) {
	m := setupManager(t, newTestCollaborators())
	id, err := m.CreateJob([]string{"A"}, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	job, err := m.Wait(ctx, id)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.NotNil(t, job)
	assert.Equal(t, core.JobStatusPending, job.Status)
}

func TestManager_StartJobCopiesItems(t *testing.T) {
	c := newTestCollaborators()
	release := make(chan struct{})
	c.fetcher.FetchPageFunc = func(ctx context.Context, pageID string) (*core.RawPage, error) {
		<-release
		return testPage(pageID), nil
	}
	m := setupManager(t, c)

	items := []string{"A", "B"}
	id, err := m.CreateJob(items, 1)
	require.NoError(t, err)
	require.NoError(t, m.StartJob(id, items, 1))
	items[0], items[1] = "X", "Y"
	close(release)

	job := waitForJob(t, m, id)
	assert.ElementsMatch(t, []string{"A", "B"}, itemIDs(job))
}

func TestManager_StartJob_RunsOnce(t *testing.T) {
	c := newTestCollaborators()
	m := setupManager(t, c)

	items := []string{"A", "B"}
	id := startJob(t, m, items, 1)
	waitForJob(t, m, id)

	err := m.StartJob(id, items, 1)
	assert.ErrorIs(t, err, ErrJobStarted)

	m.Release()
	job, err := m.GetJob(id)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusCompleted, job.Status)
	assert.Equal(t, 2, job.TotalItems)
	assert.Equal(t, 2, job.ProcessedItems)
	assert.Len(t, job.ItemResults, 2)
	assert.Equal(t, 2, c.fetcher.CallCount())
}

func TestManager_StartJob_ConcurrentStarts(t *testing.T) {
	c := newTestCollaborators()
	release := make(chan struct{})
	c.fetcher.FetchPageFunc = func(ctx context.Context, pageID string) (*core.RawPage, error) {
		<-release
		return testPage(pageID), nil
	}
	m := setupManager(t, c)

	items := []string{"A", "B", "C"}
	id, err := m.CreateJob(items, 1)
	require.NoError(t, err)

	errs := make(chan error, 4)
	for range 4 {
		go func() { errs <- m.StartJob(id, items, 1) }()
	}
	started := 0
	for range 4 {
		if err := <-errs; err == nil {
			started++
		} else {
			assert.ErrorIs(t, err, ErrJobStarted)
		}
	}
	assert.Equal(t, 1, started)
	close(release)

	job := waitForJob(t, m, id)
	assert.Equal(t, 3, job.ProcessedItems)
	assert.Equal(t, 3, c.fetcher.CallCount())
}

func TestManager_StartJob_ItemCountMismatch(t *testing.T) {
	c := newTestCollaborators()
	m := setupManager(t, c)

	id, err := m.CreateJob([]string{"A"}, 1)
	require.NoError(t, err)

	err = m.StartJob(id, []string{"A", "B", "C"}, 1)
	assert.ErrorIs(t, err, ErrItemCountMismatch)
	err = m.StartJob(id, nil, 1)
	assert.ErrorIs(t, err, ErrItemCountMismatch)

	job, err := m.GetJob(id)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusPending, job.Status)
	assert.Zero(t, job.ProcessedItems)
	assert.Zero(t, c.fetcher.CallCount())

	require.NoError(t, m.StartJob(id, []string{"A"}, 1))
	job = waitForJob(t, m, id)
	assert.Equal(t, 1, job.TotalItems)
	assert.Equal(t, 1, job.ProcessedItems)
}

func TestManager_EndToEndWithIndex(t *testing.T) {
	repo, backend, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
		backend.Close()
	})

	indexer, err := index.NewIndexer(repo, aimock.NewMockEmbedder())
	require.NoError(t, err)

	m, err := NewManager(mock.NewMockFetcher(), mock.NewMockExtractor(), indexer,
		WithPollInterval(5*time.Millisecond), WithPoolSize(2))
	require.NoError(t, err)
	t.Cleanup(m.Release)

	id, err := m.Submit(context.Background(), core.BulkRequest{
		PageIDs:          []string{"101", "102", "103"},
		ConcurrencyLimit: 2,
	})
	require.NoError(t, err)
	job := waitForJob(t, m, id)

	assert.Equal(t, core.JobStatusCompleted, job.Status)
	assert.Equal(t, 3, job.SuccessfulItems)

	count, err := repo.CountRunbooks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	result := resultFor(t, job, "102")
	assert.Equal(t, index.RunbookID("102").String(), result.DerivedID)
	assert.Equal(t, "Runbook 102", result.Title)

	// Re-ingesting the same pages replaces the stored runbooks.
	id, err = m.Submit(context.Background(), core.BulkRequest{PageIDs: []string{"101", "102"}})
	require.NoError(t, err)
	waitForJob(t, m, id)

	count, err = repo.CountRunbooks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
