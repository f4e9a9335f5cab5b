package ingestion

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/runbooks/core"
	"github.com/poiesic/runbooks/index"
	"github.com/poiesic/runbooks/source/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testIndexer implements index.Indexer for testing
type testIndexer struct {
	IndexRunbookFunc func(ctx context.Context, rb *core.Runbook) (string, error)

	mu      sync.Mutex
	indexed []string
}

var _ index.Indexer = (*testIndexer)(nil)

func (ti *testIndexer) IndexRunbook(ctx context.Context, rb *core.Runbook) (string, error) {
	ti.mu.Lock()
	ti.indexed = append(ti.indexed, rb.Metadata.PageID)
	ti.mu.Unlock()

	if ti.IndexRunbookFunc != nil {
		return ti.IndexRunbookFunc(ctx, rb)
	}
	return "rb-" + rb.Metadata.PageID, nil
}

func (ti *testIndexer) Indexed() []string {
	ti.mu.Lock()
	defer ti.mu.Unlock()
	return append([]string(nil), ti.indexed...)
}

// fakeClock is a manually advanced time source
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// concurrencyProbe tracks how many calls are in flight at once
type concurrencyProbe struct {
	inFlight atomic.Int64
	peak     atomic.Int64
}

func (p *concurrencyProbe) enter() {
	n := p.inFlight.Add(1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			return
		}
	}
}

func (p *concurrencyProbe) leave() {
	p.inFlight.Add(-1)
}

type testCollaborators struct {
	fetcher   *mock.MockFetcher
	extractor *mock.MockExtractor
	indexer   *testIndexer
}

func newTestCollaborators() *testCollaborators {
	return &testCollaborators{
		fetcher:   mock.NewMockFetcher(),
		extractor: mock.NewMockExtractor(),
		indexer:   &testIndexer{},
	}
}

func setupManager(t *testing.T, c *testCollaborators, opts ...Option) *Manager {
	t.Helper()
	opts = append([]Option{WithPollInterval(5 * time.Millisecond)}, opts...)
	m, err := NewManager(c.fetcher, c.extractor, c.indexer, opts...)
	require.NoError(t, err)
	t.Cleanup(m.Release)
	return m
}

func startJob(t *testing.T, m *Manager, items []string, concurrency int) string {
	t.Helper()
	id, err := m.CreateJob(items, concurrency)
	require.NoError(t, err)
	require.NoError(t, m.StartJob(id, items, concurrency))
	return id
}

func waitForJob(t *testing.T, m *Manager, id string) *core.Job {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	job, err := m.Wait(ctx, id)
	require.NoError(t, err)
	return job
}

func assertCounters(t *testing.T, job *core.Job) {
	t.Helper()
	assert.Equal(t, len(job.ItemResults), job.ProcessedItems, "processed == len(results)")
	assert.Equal(t, job.SuccessfulItems+job.FailedItems, job.ProcessedItems, "processed == successful + failed")
	assert.LessOrEqual(t, job.ProcessedItems, job.TotalItems, "processed <= total")
}

func resultFor(t *testing.T, job *core.Job, itemID string) core.ItemResult {
	t.Helper()
	for _, r := range job.ItemResults {
		if r.ItemID == itemID {
			return r
		}
	}
	require.Failf(t, "missing item result", "no result for %q", itemID)
	return core.ItemResult{}
}

func receive[T any](t *testing.T, ch chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		require.FailNow(t, "timed out waiting for signal")
	}
	var zero T
	return zero
}
