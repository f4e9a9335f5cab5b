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


package runbooks

import (
	"errors"
	"log/slog"

	"github.com/poiesic/runbooks/ai"
	"github.com/poiesic/runbooks/ai/openai"
	"github.com/poiesic/runbooks/index"
	"github.com/poiesic/runbooks/ingestion"
	"github.com/poiesic/runbooks/reindex"
	"github.com/poiesic/runbooks/search"
	"github.com/poiesic/runbooks/source"
	"github.com/poiesic/runbooks/source/confluence"
	"github.com/poiesic/runbooks/storage"
	"github.com/poiesic/runbooks/storage/badger"
)

// ErrSourceNotConfigured is returned when an operation needs a page source
// and neither Confluence nor a custom fetcher was configured.
var ErrSourceNotConfigured = errors.New("no page source configured")

// Database ties the runbook store, the embedding provider and the page
// source together.
type Database struct {
	backend     *badger.Backend
	runbookRepo storage.RunbookRepository
	provider    ai.AIProvider
	indexer     index.Indexer
	confluence  *confluence.Client
	fetcher     source.Fetcher
	extractor   source.Extractor
	logger      *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig         *ai.Config
	provider         ai.AIProvider
	confluenceConfig *confluence.Config
	clientOpts       []confluence.Option
	fetcher          source.Fetcher
	indexOpts        []index.Option
	logger           *slog.Logger
}

// WithAIConfig sets the embedding service configuration.
func WithAIConfig(cfg *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.aiConfig = cfg
	}
}

// WithAIProvider uses provider instead of building an OpenAI-compatible one.
// The Database closes it on Close.
func WithAIProvider(provider ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithConfluence configures the Confluence page source.
func WithConfluence(cfg *confluence.Config, opts ...confluence.Option) DatabaseOption {
	return func(o *databaseOptions) {
		o.confluenceConfig = cfg
		o.clientOpts = opts
	}
}

// WithFetcher replaces the page source used by job managers.
func WithFetcher(fetcher source.Fetcher) DatabaseOption {
	return func(o *databaseOptions) {
		o.fetcher = fetcher
	}
}

// WithIndexOptions configures the indexer, e.g. its chunking.
func WithIndexOptions(opts ...index.Option) DatabaseOption {
	return func(o *databaseOptions) {
		o.indexOpts = opts
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Open opens the runbook database at filePath, creating it if needed.
func Open(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		aiConfig: ai.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, false)
	if err != nil {
		return nil, err
	}
	runbookRepo := badger.NewRunbookRepository(backend)

	closeStorage := func() {
		runbookRepo.Close()
		backend.Close()
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			closeStorage()
			return nil, err
		}
	}

	indexOpts := append([]index.Option{index.WithLogger(options.logger)}, options.indexOpts...)
	indexer, err := index.NewIndexer(runbookRepo, provider.Embedder(), indexOpts...)
	if err != nil {
		provider.Close()
		closeStorage()
		return nil, err
	}

	db := &Database{
		backend:     backend,
		runbookRepo: runbookRepo,
		provider:    provider,
		indexer:     indexer,
		fetcher:     options.fetcher,
		extractor:   confluence.NewExtractor(options.logger),
		logger:      options.logger,
	}

	if options.confluenceConfig != nil {
		clientOpts := append([]confluence.Option{confluence.WithLogger(options.logger)}, options.clientOpts...)
		client, err := confluence.NewClient(options.confluenceConfig, clientOpts...)
		if err != nil {
			provider.Close()
			closeStorage()
			return nil, err
		}
		db.confluence = client
		if db.fetcher == nil {
			db.fetcher = client
		}
	}

	return db, nil
}

// Close releases the provider and the store. Job managers created from the
// Database must be released first.
func (db *Database) Close() error {
	var errs []error
	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
		errs = append(errs, err)
	}
	if err := db.runbookRepo.Close(); err != nil {
		db.logger.Error("error closing runbook repository", "err", err)
		errs = append(errs, err)
	}
	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (db *Database) RunbookRepository() storage.RunbookRepository {
	return db.runbookRepo
}

func (db *Database) Indexer() index.Indexer {
	return db.indexer
}

// Confluence returns the Confluence client, or ErrSourceNotConfigured when
// the Database was opened without one.
func (db *Database) Confluence() (*confluence.Client, error) {
	if db.confluence == nil {
		return nil, ErrSourceNotConfigured
	}
	return db.confluence, nil
}

// NewJobManager creates a job manager that ingests pages from the configured
// source into this Database. Callers must Release it.
func (db *Database) NewJobManager(opts ...ingestion.Option) (*ingestion.Manager, error) {
	if db.fetcher == nil {
		return nil, ErrSourceNotConfigured
	}
	opts = append([]ingestion.Option{ingestion.WithLogger(db.logger)}, opts...)
	return ingestion.NewManager(db.fetcher, db.extractor, db.indexer, opts...)
}

func (db *Database) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	opts = append([]search.Option{search.WithLogger(db.logger)}, opts...)
	return search.NewSearcher(db.runbookRepo, db.provider, opts...)
}

// NewReindexer creates a reindexer that re-embeds stored runbooks with this
// Database's embedder. A nil config uses reindex.DefaultConfig.
func (db *Database) NewReindexer(config *reindex.Config, opts ...reindex.Option) (*reindex.Reindexer, error) {
	opts = append([]reindex.Option{reindex.WithLogger(db.logger)}, opts...)
	return reindex.NewReindexer(db.runbookRepo, db.provider.Embedder(), config, opts...)
}
