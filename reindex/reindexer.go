// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reindex

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/runbooks/ai"
	"github.com/poiesic/runbooks/core"
	"github.com/poiesic/runbooks/storage"
)

// Config holds configuration for the reindexing operation.
type Config struct {
	// BatchSize is the number of runbooks embedded together
	BatchSize int

	// MaxRetries is the maximum number of attempts for each embedding call
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:  DefaultBatchSize,
		MaxRetries: 3,
		RetryDelay: 1 * time.Second,
	}
}

// Result summarizes a completed run.
type Result struct {
	Runbooks int
	Chunks   int
	Elapsed  time.Duration
}

// ProgressFunc is called after each batch with the runbooks done so far.
type ProgressFunc func(done, total int)

// Reindexer re-embeds every stored runbook.
type Reindexer struct {
	repo      storage.RunbookRepository
	config    *Config
	processor *BatchProcessor
	iterator  *RunbookIterator
	progress  ProgressFunc
	logger    *slog.Logger
}

// Option configures a Reindexer.
type Option func(*Reindexer)

// WithProgress sets a callback invoked after each batch.
func WithProgress(fn ProgressFunc) Option {
	return func(r *Reindexer) {
		r.progress = fn
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reindexer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewReindexer creates a new reindexer. A nil config uses DefaultConfig.
func NewReindexer(repo storage.RunbookRepository, embedder ai.Embedder, config *Config, opts ...Option) (*Reindexer, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxRetries <= 0 {
		return nil, ErrInvalidMaxAttempts
	}

	r := &Reindexer{
		repo:     repo,
		config:   config,
		iterator: NewRunbookIterator(repo, config.BatchSize),
		progress: func(int, int) {},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "reindexer")

	r.processor = NewBatchProcessor(repo, embedder, config.MaxRetries, config.RetryDelay)
	r.processor.logger = r.logger
	return r, nil
}

// Run re-embeds all runbooks. A failed batch stops the run; batches already
// saved keep their new vectors.
func (r *Reindexer) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	total, err := r.repo.CountRunbooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count runbooks: %w", err)
	}
	result := &Result{}
	if total == 0 {
		r.logger.Info("no runbooks to reindex")
		return result, nil
	}
	r.logger.Info("starting reindex", "runbooks", total, "batchSize", r.iterator.batchSize)

	err = r.iterator.ForEach(ctx, func(batch []*core.Runbook) error {
		chunks, err := r.processor.Process(ctx, batch)
		if err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		result.Runbooks += len(batch)
		result.Chunks += chunks
		r.progress(min(result.Runbooks, total), total)
		return nil
	})
	result.Elapsed = time.Since(start)
	if err != nil {
		return result, err
	}

	r.logger.Info("reindex complete", "runbooks", result.Runbooks, "chunks", result.Chunks,
		"elapsed", result.Elapsed.Round(time.Millisecond))
	return result, nil
}
