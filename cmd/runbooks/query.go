package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/poiesic/runbooks/core"
	"github.com/poiesic/runbooks/search"
	"github.com/poiesic/runbooks/source/confluence"
	"github.com/urfave/cli/v2"
)

const snippetLength = 160

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return errors.New("a search query is required")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	searcher, err := db.NewSearcher(search.WithMinSimilarity(float32(c.Float64("min-similarity"))))
	if err != nil {
		return fmt.Errorf("failed to create searcher: %w", err)
	}

	var monitor search.SearchMonitor
	if c.Bool("explain") {
		logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: slog.LevelDebug}))
		monitor = search.NewLogMonitor(logger)
	}

	results, err := searcher.SearchWithMonitor(c.Context, query, c.Int("limit"), monitor)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	printResults(c.App.Writer, results)
	return nil
}

func printResults(w io.Writer, results []*core.SearchResult) {
	fmt.Fprintf(w, "Found %d runbooks\n", len(results))
	for i, hit := range results {
		meta := hit.Runbook.Metadata
		fmt.Fprintf(w, "%d: %s [%0.3f]\n", i+1, meta.Title, hit.Score)
		if meta.PageURL != "" {
			fmt.Fprintf(w, "   %s\n", meta.PageURL)
		}
		fmt.Fprintf(w, "   %s\n", snippet(hit.Chunk.Content))
	}
}

// snippet flattens text to one line of at most snippetLength runes.
func snippet(text string) string {
	flat := strings.Join(strings.Fields(text), " ")
	runes := []rune(flat)
	if len(runes) <= snippetLength {
		return flat
	}
	return string(runes[:snippetLength]) + "..."
}

func listCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := db.RunbookRepository()
	total, err := repo.CountRunbooks(c.Context)
	if err != nil {
		return fmt.Errorf("failed to count runbooks: %w", err)
	}
	list, err := repo.ListRunbooks(c.Context, c.Int("limit"), c.Int("offset"))
	if err != nil {
		return fmt.Errorf("failed to list runbooks: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "Showing %d of %d runbooks\n", len(list), total)
	for _, rb := range list {
		fmt.Fprintf(c.App.Writer, "%s  %-8s %-12s %s\n",
			rb.Id, rb.Metadata.SpaceKey, rb.Metadata.PageID, rb.Metadata.Title)
	}
	return nil
}

func searchPagesCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")

	cfg, err := confluenceConfig(c)
	if err != nil {
		return err
	}
	client, err := confluence.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to create confluence client: %w", err)
	}

	pages, err := client.SearchPages(c.Context, query, c.String("space"), c.Int("limit"))
	if err != nil {
		return fmt.Errorf("page search failed: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "Found %d pages\n", len(pages))
	for _, page := range pages {
		fmt.Fprintf(c.App.Writer, "%-12s %-8s %s\n   %s\n", page.ID, page.SpaceKey, page.Title, page.URL)
	}
	return nil
}
