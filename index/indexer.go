package index

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/runbooks/ai"
	"github.com/poiesic/runbooks/core"
	"github.com/poiesic/runbooks/storage"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	// DefaultChunkSize is the target chunk length in characters.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the number of characters shared by adjacent chunks.
	DefaultChunkOverlap = 200
)

// Indexer adds runbooks to the vector index.
// Implementations must be safe for concurrent use.
type Indexer interface {
	// IndexRunbook stores rb and returns its runbook ID.
	IndexRunbook(ctx context.Context, rb *core.Runbook) (string, error)
}

// RunbookIndexer implements Indexer on a RunbookRepository.
type RunbookIndexer struct {
	repository storage.RunbookRepository
	embedder   ai.Embedder
	splitter   textsplitter.TextSplitter
	chunkSize  int
	overlap    int
	logger     *slog.Logger
}

var _ Indexer = (*RunbookIndexer)(nil)

// Option is a functional option for configuring a RunbookIndexer.
type Option func(*RunbookIndexer) error

// WithChunking sets the chunk size and overlap in characters.
func WithChunking(size, overlap int) Option {
	return func(ri *RunbookIndexer) error {
		if size <= 0 || overlap < 0 || overlap >= size {
			return ErrInvalidChunking
		}
		ri.chunkSize = size
		ri.overlap = overlap
		return nil
	}
}

// WithLogger sets a custom logger for the indexer.
func WithLogger(logger *slog.Logger) Option {
	return func(ri *RunbookIndexer) error {
		ri.logger = logger
		return nil
	}
}

// NewIndexer creates an indexer that embeds with embedder and stores into repository.
//
// Returns Indexer interface to enforce abstraction.
func NewIndexer(repository storage.RunbookRepository, embedder ai.Embedder, opts ...Option) (Indexer, error) {
	return newRunbookIndexer(repository, embedder, opts...)
}

func newRunbookIndexer(repository storage.RunbookRepository, embedder ai.Embedder, opts ...Option) (*RunbookIndexer, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	ri := &RunbookIndexer{
		repository: repository,
		embedder:   embedder,
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(ri); err != nil {
			return nil, err
		}
	}
	ri.logger = ri.logger.With("component", "indexer")
	ri.splitter = textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(ri.chunkSize),
		textsplitter.WithChunkOverlap(ri.overlap),
	)
	return ri, nil
}

// RunbookID returns the runbook ID assigned to a source page.
func RunbookID(pageID string) core.ID {
	return core.IDFromContent(strings.TrimSpace(pageID))
}

// IndexRunbook validates rb, chunks and embeds its content and saves it.
// Re-indexing a page replaces its earlier runbook and chunks.
func (ri *RunbookIndexer) IndexRunbook(ctx context.Context, rb *core.Runbook) (string, error) {
	if err := core.ValidateRunbook(rb); err != nil {
		return "", err
	}
	rb.Id = RunbookID(rb.Metadata.PageID)

	texts, err := ri.split(rb)
	if err != nil {
		return "", err
	}

	vectors, err := ri.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		ri.logger.Error("error generating embeddings", "pageID", rb.Metadata.PageID, "err", err)
		return "", fmt.Errorf("embedding runbook chunks: %w", err)
	}
	if len(vectors) != len(texts) {
		return "", fmt.Errorf("%w: expected %d, received %d", ErrEmbeddingMismatch, len(texts), len(vectors))
	}

	chunks := make([]*core.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = &core.Chunk{
			Id:        core.IDFromContent(core.ChunkKey(rb.Id, i)),
			RunbookId: rb.Id,
			Index:     i,
			Content:   text,
			Vector:    NormalizeVector(vectors[i]),
		}
	}

	if _, err := ri.repository.SaveRunbook(ctx, rb, chunks); err != nil {
		ri.logger.Error("error saving runbook", "pageID", rb.Metadata.PageID, "err", err)
		return "", fmt.Errorf("saving runbook: %w", err)
	}

	ri.logger.Debug("indexed runbook", "pageID", rb.Metadata.PageID, "runbookID", rb.Id.String(), "chunks", len(chunks))
	return rb.Id.String(), nil
}

// split chunks the runbook text, prefixed with its title so every chunk
// carries the context of the runbook it came from.
func (ri *RunbookIndexer) split(rb *core.Runbook) ([]string, error) {
	parts, err := ri.splitter.SplitText(rb.RawContent)
	if err != nil {
		return nil, fmt.Errorf("splitting runbook content: %w", err)
	}

	texts := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			texts = append(texts, rb.Metadata.Title+"\n\n"+part)
		}
	}
	if len(texts) == 0 {
		return nil, core.ErrEmptyContent
	}
	return texts, nil
}
