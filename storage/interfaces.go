package storage

import (
	"context"

	"github.com/poiesic/runbooks/core"
)

// RunbookRepository provides operations for managing indexed runbooks.
// Implementations must be thread-safe and support concurrent access.
type RunbookRepository interface {
	// SaveRunbook stores a runbook and its chunks in one transaction.
	// An existing runbook with the same ID is replaced together with all of
	// its previous chunks; its InsertedAt timestamp is preserved.
	// Sets InsertedAt (first save) and UpdatedAt.
	SaveRunbook(ctx context.Context, rb *core.Runbook, chunks []*core.Chunk) (*core.Runbook, error)

	// GetRunbook retrieves a single runbook by ID.
	// Returns ErrNotFound if the runbook doesn't exist.
	GetRunbook(ctx context.Context, id core.ID) (*core.Runbook, error)

	// DeleteRunbook removes a runbook and all of its chunks.
	// Returns ErrNotFound if the runbook doesn't exist.
	DeleteRunbook(ctx context.Context, id core.ID) error

	// ListRunbooks returns up to limit runbooks in ID order, skipping offset.
	ListRunbooks(ctx context.Context, limit, offset int) ([]*core.Runbook, error)

	// CountRunbooks returns the number of stored runbooks.
	CountRunbooks(ctx context.Context) (int, error)

	// GetChunks returns the chunks of a runbook ordered by index.
	GetChunks(ctx context.Context, runbookID core.ID) ([]*core.Chunk, error)

	// FindSimilarChunks finds chunks similar to the given vector.
	// Returns chunks with similarity >= minSimilarity, up to limit results,
	// each with its parent runbook populated.
	// Results are ordered by similarity score (highest first).
	FindSimilarChunks(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error)

	// Close releases repository resources. It does not close the backend.
	Close() error
}
