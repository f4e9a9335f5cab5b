package badger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/runbooks/core"
	"github.com/poiesic/runbooks/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "nested", "db")
	backend, err := OpenBackend(tmpDir, false)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
	assert.DirExists(t, tmpDir)
}

func TestOpenBackend_NotADirectory(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(tmpFile, []byte("x"), 0644))

	_, err := OpenBackend(tmpFile, false)
	assert.Error(t, err)
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)

	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())

	_, err = backend.FindSimilarChunks(context.Background(), []float32{1}, 0, 1)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestFindSimilarChunks_NoRecords(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	results, err := backend.FindSimilarChunks(context.Background(), []float32{0.1, 0.2, 0.3}, 0.5, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFindSimilarChunks_InvalidLimit(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	_, err = backend.FindSimilarChunks(context.Background(), []float32{1}, 0, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestFindSimilarChunks_RanksAndLimits(t *testing.T) {
	repo, backend, err := NewMemoryRepository()
	require.NoError(t, err)
	defer func() {
		repo.Close()
		backend.Close()
	}()

	ctx := context.Background()
	rb := testRunbook("100")
	chunks := []*core.Chunk{
		testChunk(rb.Id, 0, "exact", []float32{1, 0}),
		testChunk(rb.Id, 1, "close", []float32{0.8, 0.6}),
		testChunk(rb.Id, 2, "orthogonal", []float32{0, 1}),
		testChunk(rb.Id, 3, "no vector", nil),
	}
	_, err = repo.SaveRunbook(ctx, rb, chunks)
	require.NoError(t, err)

	results, err := backend.FindSimilarChunks(ctx, []float32{1, 0}, 0.5, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "exact", results[0].Chunk.Content)
	assert.Equal(t, "close", results[1].Chunk.Content)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	require.NotNil(t, results[0].Runbook)
	assert.Equal(t, rb.Metadata.Title, results[0].Runbook.Metadata.Title)

	limited, err := backend.FindSimilarChunks(ctx, []float32{1, 0}, -1, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "exact", limited[0].Chunk.Content)
}

func TestDotProduct(t *testing.T) {
	assert.InDelta(t, 11.0, dotProduct([]float32{1, 2}, []float32{3, 4}), 1e-6)
	assert.InDelta(t, 3.0, dotProduct([]float32{1, 2, 5}, []float32{3}), 1e-6)
	assert.Zero(t, dotProduct(nil, []float32{1}))
}
