package runbooks

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/runbooks/ai"
	"github.com/poiesic/runbooks/ai/mock"
	"github.com/poiesic/runbooks/core"
	"github.com/poiesic/runbooks/ingestion"
	"github.com/poiesic/runbooks/search"
	"github.com/poiesic/runbooks/source/confluence"
	sourcemock "github.com/poiesic/runbooks/source/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	t.Run("create new database", func(t *testing.T) {
		tmpDir := filepath.Join(t.TempDir(), "test_db")
		db, err := Open(tmpDir, WithAIProvider(mock.NewMockProvider()))
		require.NoError(t, err)
		require.NotNil(t, db)
		defer db.Close()

		// Verify components are initialized
		assert.NotNil(t, db.RunbookRepository())
		assert.NotNil(t, db.Indexer())
		assert.NotNil(t, db.backend)
		assert.NotNil(t, db.logger)
	})

	t.Run("default provider", func(t *testing.T) {
		db, err := Open(t.TempDir())
		require.NoError(t, err)
		assert.NoError(t, db.Close())
	})

	t.Run("invalid AI config", func(t *testing.T) {
		db, err := Open(t.TempDir(), WithAIConfig(ai.NewConfig(ai.WithEmbeddingModel(""))))
		assert.Error(t, err)
		assert.Nil(t, db)
	})

	t.Run("incomplete confluence config", func(t *testing.T) {
		cfg := confluence.NewConfig(confluence.WithURL("https://wiki.example.com"))
		db, err := Open(t.TempDir(), WithAIProvider(mock.NewMockProvider()), WithConfluence(cfg))
		assert.ErrorIs(t, err, confluence.ErrNotConfigured)
		assert.Nil(t, db)
	})

	t.Run("error with invalid path", func(t *testing.T) {
		// Try to create a database at a file path instead of directory
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		err := os.WriteFile(tmpFile, []byte("test"), 0644)
		require.NoError(t, err)

		db, err := Open(tmpFile, WithAIProvider(mock.NewMockProvider()))
		assert.Error(t, err)
		assert.Nil(t, db)
	})
}

func TestDatabase_Close(t *testing.T) {
	db, err := Open(t.TempDir(), WithAIProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	require.NotNil(t, db)

	// Close the database
	err = db.Close()
	assert.NoError(t, err)
	assert.True(t, db.backend.IsClosed())
}

func TestDatabase_WithoutSource(t *testing.T) {
	db, err := Open(t.TempDir(), WithAIProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Confluence()
	assert.ErrorIs(t, err, ErrSourceNotConfigured)

	_, err = db.NewJobManager()
	assert.ErrorIs(t, err, ErrSourceNotConfigured)

	searcher, err := db.NewSearcher()
	require.NoError(t, err)
	require.NotNil(t, searcher)
}

func TestDatabase_FactoryMethods(t *testing.T) {
	db, err := Open(t.TempDir(),
		WithAIProvider(mock.NewMockProvider()),
		WithFetcher(sourcemock.NewMockFetcher()))
	require.NoError(t, err)
	defer db.Close()

	t.Run("can create job manager", func(t *testing.T) {
		manager, err := db.NewJobManager(ingestion.WithPoolSize(2))
		require.NoError(t, err)
		require.NotNil(t, manager)
		manager.Release()
	})

	t.Run("job manager options are validated", func(t *testing.T) {
		_, err := db.NewJobManager(ingestion.WithPollInterval(-time.Second))
		assert.Error(t, err)
	})

	t.Run("can create searcher", func(t *testing.T) {
		searcher, err := db.NewSearcher()
		require.NoError(t, err)
		require.NotNil(t, searcher)
	})

	t.Run("can create reindexer", func(t *testing.T) {
		reindexer, err := db.NewReindexer(nil)
		require.NoError(t, err)

		result, err := reindexer.Run(context.Background())
		require.NoError(t, err)
		assert.Zero(t, result.Runbooks)
	})
}

// newConfluenceServer serves every page id except "404" as a small runbook.
func newConfluenceServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/rest/api/content/")
		if id == "404" {
			http.Error(w, `{"message":"No content found"}`, http.StatusNotFound)
			return
		}
		fmt.Fprintf(w, `{
			"id": %q,
			"title": "Restart service %s",
			"space": {"key": "OPS"},
			"version": {"when": "2024-03-01T10:00:00.000Z", "by": {"displayName": "Jane Operator"}},
			"body": {"storage": {"value": "<h1>Procedure</h1><ol><li>Drain traffic from service %s.</li><li>Restart the pods.</li></ol>"}}
		}`, id, id, id)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestDatabase_IngestFromConfluence(t *testing.T) {
	server := newConfluenceServer(t)
	cfg := confluence.NewConfig(
		confluence.WithURL(server.URL),
		confluence.WithCredentials("user", "token"),
		confluence.WithRetries(0, time.Millisecond, time.Millisecond),
	)

	db, err := Open(t.TempDir(), WithAIProvider(mock.NewMockProvider()), WithConfluence(cfg))
	require.NoError(t, err)
	defer db.Close()

	client, err := db.Confluence()
	require.NoError(t, err)
	assert.Equal(t, server.URL, client.BaseURL())

	manager, err := db.NewJobManager(ingestion.WithPollInterval(5 * time.Millisecond))
	require.NoError(t, err)
	defer manager.Release()

	ctx := context.Background()
	id, err := manager.Submit(ctx, core.BulkRequest{PageIDs: []string{"101", "102", "404"}, ConcurrencyLimit: 2})
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	job, err := manager.Wait(waitCtx, id)
	require.NoError(t, err)

	assert.Equal(t, core.JobStatusCompleted, job.Status)
	assert.Equal(t, 2, job.SuccessfulItems)
	assert.Equal(t, 1, job.FailedItems)
	for _, item := range job.ItemResults {
		if item.ItemID == "404" {
			assert.Contains(t, item.Error, "not found")
		}
	}

	count, err := db.RunbookRepository().CountRunbooks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	searcher, err := db.NewSearcher(search.WithMinSimilarity(-1))
	require.NoError(t, err)
	results, err := searcher.Search(ctx, "restart service 101", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "OPS", results[0].Runbook.Metadata.SpaceKey)
}
