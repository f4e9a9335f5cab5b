package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/poiesic/runbooks/ai"
	"github.com/poiesic/runbooks/core"
	"github.com/poiesic/runbooks/index"
	"github.com/poiesic/runbooks/storage"
)

const (
	// DefaultMinSimilarity is the lowest chunk similarity considered a match.
	DefaultMinSimilarity float32 = 0.60

	verbatimBoost float32 = 0.3

	// chunksPerHit is how many chunks are fetched per requested runbook, so
	// that runbooks with several matching chunks do not crowd out others.
	chunksPerHit = 3
)

// Searcher provides semantic search over indexed runbooks.
type Searcher struct {
	repository    storage.RunbookRepository
	embedder      ai.Embedder
	minSimilarity float32
	logger        *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMinSimilarity sets the similarity threshold for matching chunks.
func WithMinSimilarity(threshold float32) Option {
	return func(s *Searcher) error {
		if threshold < -1 || threshold > 1 {
			return ErrInvalidSimilarity
		}
		s.minSimilarity = threshold
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(repository storage.RunbookRepository, provider ai.AIProvider, opts ...Option) (*Searcher, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	s := &Searcher{
		repository:    repository,
		embedder:      provider.Embedder(),
		minSimilarity: DefaultMinSimilarity,
		logger:        slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Search returns up to maxHits runbooks relevant to query, best first.
// Each result carries the runbook's best matching chunk.
func (s *Searcher) Search(ctx context.Context, query string, maxHits int) ([]*core.SearchResult, error) {
	return s.SearchWithMonitor(ctx, query, maxHits, nil)
}

// SearchWithMonitor is Search with a monitor observing each stage.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query string, maxHits int, monitor SearchMonitor) ([]*core.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if maxHits <= 0 {
		return nil, ErrInvalidLimit
	}
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	monitor.Start(query)

	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}

	matches, err := s.repository.FindSimilarChunks(ctx, index.NormalizeVector(embedding),
		s.minSimilarity, maxHits*chunksPerHit)
	if err != nil {
		s.logger.Error("error querying for similar chunks", "err", err)
		return nil, err
	}
	monitor.AfterSemanticSearch(matches)

	// Matches arrive best first, so the first chunk seen for a runbook is its best.
	best := make(map[core.ID]*core.SearchResult, len(matches))
	verbatim := make(map[core.ID]bool)
	results := make([]*core.SearchResult, 0, len(matches))
	for _, match := range matches {
		id := match.Runbook.Id
		if _, seen := best[id]; !seen {
			result := &core.SearchResult{Runbook: match.Runbook, Chunk: match.Chunk, Score: match.Score}
			best[id] = result
			results = append(results, result)
		}
		if !verbatim[id] && containsAllQueryWords(match.Chunk.Content, query) {
			verbatim[id] = true
			best[id].Score += verbatimBoost
			monitor.VerbatimHit(match)
		}
	}

	// Sort by score descending
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > maxHits {
		results = results[:maxHits]
	}
	monitor.Finish(results)

	return results, nil
}
