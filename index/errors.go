package index

import "errors"

var (
	// ErrRepositoryRequired indicates that a runbook repository must be provided.
	ErrRepositoryRequired = errors.New("runbook repository required")

	// ErrEmbedderRequired indicates that an embedder must be provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrEmbeddingMismatch indicates the embedder returned the wrong number of vectors.
	ErrEmbeddingMismatch = errors.New("embedding result mismatch")

	// ErrInvalidChunking indicates chunk size or overlap are out of range.
	ErrInvalidChunking = errors.New("chunk overlap must be smaller than chunk size")
)
