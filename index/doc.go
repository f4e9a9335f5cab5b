// Package index stores extracted runbooks in the vector index.
//
// Indexing a runbook splits its text into overlapping chunks, embeds all
// chunks in one batch, normalizes the vectors and saves the runbook together
// with its chunks. Runbook IDs are derived from the source page ID, so
// re-ingesting a page replaces its previous version.
//
//	indexer, err := index.NewIndexer(repo, provider.Embedder())
//	runbookID, err := indexer.IndexRunbook(ctx, rb)
package index
