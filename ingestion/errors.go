package ingestion

import "errors"

var (
	// ErrJobNotFound is returned when a job ID is not known to the registry.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobTerminal is returned when a lifecycle change is requested for a finished job.
	ErrJobTerminal = errors.New("job already finished")

	// ErrJobStarted is returned when a job that already has a run is started again.
	ErrJobStarted = errors.New("job already started")

	// ErrItemCountMismatch is returned when a job is started with a different
	// number of items than it was created with.
	ErrItemCountMismatch = errors.New("item count does not match job")

	// ErrIDGeneration is returned when a job ID cannot be allocated.
	ErrIDGeneration = errors.New("unable to generate job ID")

	// ErrInvalidConcurrency is returned for a non-positive concurrency limit.
	ErrInvalidConcurrency = errors.New("concurrency limit must be positive")

	// ErrInvalidMaxAge is returned when a cleanup age is outside the accepted range.
	ErrInvalidMaxAge = errors.New("max age must be between 1 and 168 hours")

	// ErrFetcherRequired is returned when a page fetcher is not provided.
	ErrFetcherRequired = errors.New("page fetcher required")

	// ErrExtractorRequired is returned when a runbook extractor is not provided.
	ErrExtractorRequired = errors.New("runbook extractor required")

	// ErrIndexerRequired is returned when an indexer is not provided.
	ErrIndexerRequired = errors.New("indexer required")
)

// Item failure messages recorded by the executor.
const (
	MsgCancelledBeforeStart      = "cancelled before start"
	MsgCancelledDuringProcessing = "cancelled during processing"
)
