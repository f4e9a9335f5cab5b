package index

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/poiesic/runbooks/ai/mock"
	"github.com/poiesic/runbooks/core"
	"github.com/poiesic/runbooks/storage"
	"github.com/poiesic/runbooks/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupIndexer(t *testing.T, opts ...Option) (*RunbookIndexer, storage.RunbookRepository, *mock.MockEmbedder) {
	t.Helper()
	repo, backend, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
		backend.Close()
	})

	embedder := mock.NewMockEmbedder()
	ri, err := newRunbookIndexer(repo, embedder, opts...)
	require.NoError(t, err)
	return ri, repo, embedder
}

func sampleRunbook(pageID, content string) *core.Runbook {
	return &core.Runbook{
		Metadata: core.RunbookMetadata{
			Title:    "Runbook " + pageID,
			PageID:   pageID,
			SpaceKey: "OPS",
		},
		RawContent: content,
	}
}

func TestNewIndexer_RequiresDependencies(t *testing.T) {
	_, err := NewIndexer(nil, mock.NewMockEmbedder())
	assert.ErrorIs(t, err, ErrRepositoryRequired)

	repo, backend, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	defer backend.Close()

	_, err = NewIndexer(repo, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewIndexer(repo, mock.NewMockEmbedder(), WithChunking(100, 100))
	assert.ErrorIs(t, err, ErrInvalidChunking)
}

func TestIndexRunbook(t *testing.T) {
	ri, repo, embedder := setupIndexer(t)
	ctx := context.Background()

	id, err := ri.IndexRunbook(ctx, sampleRunbook("42", "Restart the payment service."))
	require.NoError(t, err)
	assert.Equal(t, RunbookID("42").String(), id)
	assert.Equal(t, 1, embedder.CallCount(), "all chunks embedded in one batch")

	stored, err := repo.GetRunbook(ctx, RunbookID("42"))
	require.NoError(t, err)
	assert.Equal(t, "Runbook 42", stored.Metadata.Title)

	chunks, err := repo.GetChunks(ctx, RunbookID("42"))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Runbook 42\n\nRestart the payment service.", chunks[0].Content)
	assertUnitLength(t, chunks[0].Vector)
}

func TestIndexRunbook_SplitsLongContent(t *testing.T) {
	ri, repo, _ := setupIndexer(t, WithChunking(100, 20))
	ctx := context.Background()

	var paragraphs []string
	for i := range 20 {
		paragraphs = append(paragraphs, strings.Repeat("word ", 10)+string(rune('a'+i)))
	}
	_, err := ri.IndexRunbook(ctx, sampleRunbook("long", strings.Join(paragraphs, "\n\n")))
	require.NoError(t, err)

	chunks, err := repo.GetChunks(ctx, RunbookID("long"))
	require.NoError(t, err)
	assert.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.True(t, strings.HasPrefix(c.Content, "Runbook long\n\n"))
	}
}

func TestIndexRunbook_Idempotent(t *testing.T) {
	ri, repo, _ := setupIndexer(t)
	ctx := context.Background()

	first, err := ri.IndexRunbook(ctx, sampleRunbook("7", "first version"))
	require.NoError(t, err)
	second, err := ri.IndexRunbook(ctx, sampleRunbook("7", "second version"))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	count, err := repo.CountRunbooks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	stored, err := repo.GetRunbook(ctx, RunbookID("7"))
	require.NoError(t, err)
	assert.Equal(t, "second version", stored.RawContent)
}

func TestIndexRunbook_InvalidRunbook(t *testing.T) {
	ri, _, embedder := setupIndexer(t)

	_, err := ri.IndexRunbook(context.Background(), sampleRunbook("1", "  "))
	assert.ErrorIs(t, err, core.ErrInvalidRunbook)
	assert.Zero(t, embedder.CallCount())
}

func TestIndexRunbook_EmbeddingFailure(t *testing.T) {
	ri, repo, embedder := setupIndexer(t)
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("connection refused")
	}

	_, err := ri.IndexRunbook(context.Background(), sampleRunbook("9", "content"))
	assert.ErrorContains(t, err, "connection refused")

	_, err = repo.GetRunbook(context.Background(), RunbookID("9"))
	assert.ErrorIs(t, err, storage.ErrNotFound, "nothing stored on failure")
}

func TestIndexRunbook_EmbeddingMismatch(t *testing.T) {
	ri, _, embedder := setupIndexer(t)
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{}, nil
	}

	_, err := ri.IndexRunbook(context.Background(), sampleRunbook("9", "content"))
	assert.ErrorIs(t, err, ErrEmbeddingMismatch)
}

func TestNormalizeVector(t *testing.T) {
	assert.Empty(t, NormalizeVector(nil))
	assert.Equal(t, []float32{0, 0}, NormalizeVector([]float32{0, 0}))

	v := NormalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	in := []float32{1, 1}
	NormalizeVector(in)
	assert.Equal(t, []float32{1, 1}, in, "input is not modified")
}

func assertUnitLength(t *testing.T, v []float32) {
	t.Helper()
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}
