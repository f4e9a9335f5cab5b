// Package reindex re-embeds the chunks of every stored runbook with the
// current embedder, e.g. after switching embedding models. Chunk text and
// boundaries are kept; only vectors change.
package reindex
