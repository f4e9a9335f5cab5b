package reindex

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/runbooks/ai"
	"github.com/poiesic/runbooks/core"
	"github.com/poiesic/runbooks/index"
	"github.com/poiesic/runbooks/storage"
)

// BatchProcessor re-embeds the chunks of a batch of runbooks.
type BatchProcessor struct {
	repo           storage.RunbookRepository
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
	logger         *slog.Logger
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of attempts for each embedding call
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(repo storage.RunbookRepository, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		repo:           repo,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
		logger:         slog.Default(),
	}
}

// Process embeds all chunks of runbooks in one call and saves every runbook
// with its new vectors. Returns the number of chunks re-embedded.
func (bp *BatchProcessor) Process(ctx context.Context, runbooks []*core.Runbook) (int, error) {
	chunksByRunbook := make([][]*core.Chunk, len(runbooks))
	var texts []string
	for i, rb := range runbooks {
		chunks, err := bp.repo.GetChunks(ctx, rb.Id)
		if err != nil {
			return 0, fmt.Errorf("failed to load chunks of runbook %s: %w", rb.Id, err)
		}
		if len(chunks) == 0 {
			bp.logger.Warn("runbook has no chunks", "runbookID", rb.Id.String(), "pageID", rb.Metadata.PageID)
		}
		chunksByRunbook[i] = chunks
		for _, chunk := range chunks {
			texts = append(texts, chunk.Content)
		}
	}
	if len(texts) == 0 {
		return 0, nil
	}

	var vectors [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		vectors, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return 0, fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}
	if len(vectors) != len(texts) {
		return 0, fmt.Errorf("%w: expected %d, received %d", index.ErrEmbeddingMismatch, len(texts), len(vectors))
	}

	next := 0
	for i, rb := range runbooks {
		chunks := chunksByRunbook[i]
		if len(chunks) == 0 {
			continue
		}
		for _, chunk := range chunks {
			chunk.Vector = index.NormalizeVector(vectors[next])
			next++
		}
		if _, err := bp.repo.SaveRunbook(ctx, rb, chunks); err != nil {
			return 0, fmt.Errorf("failed to save runbook %s: %w", rb.Id, err)
		}
	}
	return len(texts), nil
}
