package mock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/poiesic/runbooks/core"
	"github.com/poiesic/runbooks/source"
)

// MockFetcher is a test double for source.Fetcher.
type MockFetcher struct {
	// FetchPageFunc is called by FetchPage if set.
	// If nil, returns a synthetic page for any id.
	FetchPageFunc func(ctx context.Context, pageID string) (*core.RawPage, error)

	mu        sync.Mutex
	fetched   []string
	callCount atomic.Int64
}

var _ source.Fetcher = (*MockFetcher)(nil)

// NewMockFetcher creates a mock fetcher with default behavior.
func NewMockFetcher() *MockFetcher {
	return &MockFetcher{}
}

// FetchPage records the call and returns a page.
func (m *MockFetcher) FetchPage(ctx context.Context, pageID string) (*core.RawPage, error) {
	m.callCount.Add(1)
	m.mu.Lock()
	m.fetched = append(m.fetched, pageID)
	m.mu.Unlock()

	if m.FetchPageFunc != nil {
		return m.FetchPageFunc(ctx, pageID)
	}
	return Page(pageID), nil
}

// CallCount returns the number of FetchPage calls.
func (m *MockFetcher) CallCount() int {
	return int(m.callCount.Load())
}

// Fetched returns the page ids passed to FetchPage, in call order.
func (m *MockFetcher) Fetched() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.fetched...)
}

// MockExtractor is a test double for source.Extractor.
type MockExtractor struct {
	// ExtractRunbookFunc is called by ExtractRunbook if set.
	// If nil, builds a runbook from the page title and body.
	ExtractRunbookFunc func(page *core.RawPage) (*core.Runbook, error)

	callCount atomic.Int64
}

var _ source.Extractor = (*MockExtractor)(nil)

// NewMockExtractor creates a mock extractor with default behavior.
func NewMockExtractor() *MockExtractor {
	return &MockExtractor{}
}

// ExtractRunbook records the call and returns a runbook.
func (m *MockExtractor) ExtractRunbook(page *core.RawPage) (*core.Runbook, error) {
	m.callCount.Add(1)

	if m.ExtractRunbookFunc != nil {
		return m.ExtractRunbookFunc(page)
	}
	return &core.Runbook{
		Metadata: core.RunbookMetadata{
			Title:    page.Title,
			SpaceKey: page.SpaceKey,
			PageID:   page.ID,
			PageURL:  page.URL,
		},
		RawContent: page.Body,
	}, nil
}

// CallCount returns the number of ExtractRunbook calls.
func (m *MockExtractor) CallCount() int {
	return int(m.callCount.Load())
}

// Page returns a synthetic page for pageID.
func Page(pageID string) *core.RawPage {
	return &core.RawPage{
		ID:       pageID,
		Title:    "Runbook " + pageID,
		SpaceKey: "OPS",
		Body:     fmt.Sprintf("<h1>Runbook %s</h1><p>Procedure: restart service %s.</p>", pageID, pageID),
		URL:      "https://wiki.example.com/spaces/OPS/pages/" + pageID,
	}
}
