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


package ingestion

import (
	"context"
	"errors"
	"log/slog"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/runbooks/index"
	"github.com/poiesic/runbooks/source"
)

// processor runs the blocking work for one item.
type processor interface {
	// process fetches, extracts and indexes itemID. A collaborator failure
	// is reported in the outcome; the returned error means the work could
	// not be scheduled at all.
	process(ctx context.Context, itemID string) (outcome, error)
}

// outcome is the result of the collaborator calls for one item.
type outcome struct {
	derivedID string
	title     string
	err       error
}

// poolProcessor runs the fetch/extract/index chain on a shared ants pool so
// that slow I/O never occupies the orchestration goroutines.
type poolProcessor struct {
	pool      *ants.Pool
	fetcher   source.Fetcher
	extractor source.Extractor
	indexer   index.Indexer
	logger    *slog.Logger
}

var _ processor = (*poolProcessor)(nil)

func newPoolProcessor(pool *ants.Pool, fetcher source.Fetcher, extractor source.Extractor,
	indexer index.Indexer, logger *slog.Logger) (*poolProcessor, error) {
	if fetcher == nil {
		return nil, ErrFetcherRequired
	}
	if extractor == nil {
		return nil, ErrExtractorRequired
	}
	if indexer == nil {
		return nil, ErrIndexerRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &poolProcessor{
		pool:      pool,
		fetcher:   fetcher,
		extractor: extractor,
		indexer:   indexer,
		logger:    logger.With("component", "item-processor"),
	}, nil
}

// completion carries an outcome, or a recovered panic, back to the caller.
type completion struct {
	outcome
	panicked any
}

func (p *poolProcessor) process(ctx context.Context, itemID string) (outcome, error) {
	done := make(chan completion, 1)
	err := p.pool.Submit(func() {
		var c completion
		defer func() {
			if r := recover(); r != nil {
				c.panicked = r
			}
			done <- c
		}()
		c.outcome = p.run(ctx, itemID)
	})
	if err != nil {
		return outcome{}, err
	}

	c := <-done
	if c.panicked != nil {
		// Re-raise on the item's goroutine so the executor records it.
		panic(c.panicked)
	}
	return c.outcome, nil
}

func (p *poolProcessor) run(ctx context.Context, itemID string) outcome {
	page, err := p.fetcher.FetchPage(ctx, itemID)
	if err != nil {
		return outcome{err: err}
	}
	if page == nil {
		return outcome{err: errors.New("page source returned no page")}
	}

	runbook, err := p.extractor.ExtractRunbook(page)
	if err != nil {
		return outcome{err: err}
	}
	if runbook == nil {
		return outcome{err: errors.New("extractor returned no runbook")}
	}

	id, err := p.indexer.IndexRunbook(ctx, runbook)
	if err != nil {
		return outcome{err: err}
	}

	p.logger.Debug("indexed page", "page_id", itemID, "runbook_id", id)
	return outcome{derivedID: id, title: runbook.Metadata.Title}
}
