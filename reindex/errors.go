package reindex

import "errors"

var (
	ErrRepositoryRequired = errors.New("runbook repository is required")
	ErrEmbedderRequired   = errors.New("embedder is required")
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")
)
