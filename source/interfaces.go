package source

import (
	"context"

	"github.com/poiesic/runbooks/core"
)

// Fetcher retrieves raw pages from a document source.
type Fetcher interface {
	// FetchPage returns the page with the given identifier.
	// Errors are reported to the caller verbatim as item failures.
	FetchPage(ctx context.Context, pageID string) (*core.RawPage, error)
}

// Extractor turns a raw page into a normalized runbook.
type Extractor interface {
	// ExtractRunbook parses the page body and returns a validated runbook.
	ExtractRunbook(page *core.RawPage) (*core.Runbook, error)
}
