package reindex

import (
	"context"

	"github.com/poiesic/runbooks/core"
	"github.com/poiesic/runbooks/storage"
)

// DefaultBatchSize is the default number of runbooks fetched per batch.
const DefaultBatchSize = 20

// RunbookIterator pages through all stored runbooks in ID order.
type RunbookIterator struct {
	repo      storage.RunbookRepository
	batchSize int
}

// NewRunbookIterator creates an iterator. A batchSize below 1 uses DefaultBatchSize.
func NewRunbookIterator(repo storage.RunbookRepository, batchSize int) *RunbookIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &RunbookIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// ForEach calls fn with successive batches of runbooks until the store is
// exhausted, fn fails or ctx ends. Runbooks added or removed during
// iteration may be skipped or visited twice.
func (it *RunbookIterator) ForEach(ctx context.Context, fn func([]*core.Runbook) error) error {
	for offset := 0; ; offset += it.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := it.repo.ListRunbooks(ctx, it.batchSize, offset)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		if len(batch) < it.batchSize {
			return nil
		}
	}
}
