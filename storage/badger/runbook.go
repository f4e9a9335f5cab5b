package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/runbooks/core"
	"github.com/poiesic/runbooks/storage"
)

// RunbookRepository implements storage.RunbookRepository for BadgerDB.
type RunbookRepository struct {
	backend *Backend
	now     func() time.Time
}

var _ storage.RunbookRepository = (*RunbookRepository)(nil)

// NewRunbookRepository creates a new RunbookRepository on top of backend.
func NewRunbookRepository(backend *Backend) storage.RunbookRepository {
	return &RunbookRepository{
		backend: backend,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Close is a no-op; the backend is owned by the caller.
func (r *RunbookRepository) Close() error {
	return nil
}

// FindSimilarChunks delegates to the backend.
func (r *RunbookRepository) FindSimilarChunks(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	return r.backend.FindSimilarChunks(ctx, vector, minSimilarity, limit)
}

// SaveRunbook stores a runbook and replaces all of its chunks.
func (r *RunbookRepository) SaveRunbook(ctx context.Context, rb *core.Runbook, chunks []*core.Chunk) (*core.Runbook, error) {
	for _, chunk := range chunks {
		if chunk.RunbookId != rb.Id {
			return nil, storage.ErrChunkMismatch
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		old, err := readRunbook(tx, rb.Id)
		if err != nil {
			return err
		}

		rb.UpdatedAt = r.now()
		if old != nil {
			rb.InsertedAt = old.InsertedAt
			if err := deleteChunks(tx, rb.Id); err != nil {
				return err
			}
		} else {
			rb.InsertedAt = rb.UpdatedAt
		}

		if err := tx.Set(makeRunbookKey(rb.Id), storage.MarshalRunbook(rb)); err != nil {
			return err
		}
		for _, chunk := range chunks {
			if err := tx.Set(makeChunkKey(chunk.RunbookId, chunk.Index), storage.MarshalChunk(chunk)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return rb, nil
}

// GetRunbook retrieves a single runbook by ID.
func (r *RunbookRepository) GetRunbook(ctx context.Context, id core.ID) (*core.Runbook, error) {
	var result *core.Runbook
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readRunbook(tx, id)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// DeleteRunbook removes a runbook and all of its chunks.
func (r *RunbookRepository) DeleteRunbook(ctx context.Context, id core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeRunbookKey(id)
		if _, err := tx.Get(key); err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		if err := deleteChunks(tx, id); err != nil {
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// ListRunbooks returns up to limit runbooks in ID order, skipping offset.
func (r *RunbookRepository) ListRunbooks(ctx context.Context, limit, offset int) ([]*core.Runbook, error) {
	if limit <= 0 || offset < 0 {
		return nil, storage.ErrInvalidQuery
	}

	var results []*core.Runbook
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(runbookPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		skipped := 0
		for iter.Rewind(); iter.Valid() && len(results) < limit; iter.Next() {
			if skipped < offset {
				skipped++
				continue
			}
			var rb *core.Runbook
			err := iter.Item().Value(func(val []byte) error {
				var err error
				rb, err = storage.UnmarshalRunbook(val)
				return err
			})
			if err != nil {
				return err
			}
			results = append(results, rb)
		}
		return nil
	}, false)
	return results, err
}

// CountRunbooks returns the number of stored runbooks.
func (r *RunbookRepository) CountRunbooks(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(runbookPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// GetChunks returns the chunks of a runbook ordered by index.
func (r *RunbookRepository) GetChunks(ctx context.Context, runbookID core.ID) ([]*core.Chunk, error) {
	var chunks []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialChunkKey(runbookID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var chunk *core.Chunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			chunks = append(chunks, chunk)
		}
		return nil
	}, false)
	return chunks, err
}

// deleteChunks removes every chunk stored for runbookID inside tx.
func deleteChunks(tx *badger.Txn, runbookID core.ID) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = makePartialChunkKey(runbookID)
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)

	var keys [][]byte
	for iter.Rewind(); iter.Valid(); iter.Next() {
		keys = append(keys, iter.Item().KeyCopy(nil))
	}
	iter.Close()

	for _, key := range keys {
		if err := tx.Delete(key); err != nil {
			return err
		}
	}
	return nil
}
