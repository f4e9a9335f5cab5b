package main

import (
	"fmt"
	"time"

	"github.com/poiesic/runbooks/ingestion"
	"github.com/poiesic/runbooks/reindex"
	"github.com/urfave/cli/v2"
)

func reindexCommand(c *cli.Context) error {
	config := &reindex.Config{
		BatchSize:  c.Int("batch-size"),
		MaxRetries: c.Int("max-retries"),
		RetryDelay: c.Duration("retry-delay"),
	}
	if config.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	total, err := db.RunbookRepository().CountRunbooks(c.Context)
	if err != nil {
		return fmt.Errorf("failed to count runbooks: %w", err)
	}

	tracker := ingestion.NewProgressTracker(c.App.ErrWriter, total, config.BatchSize).WithUnit("runbooks")
	reindexer, err := db.NewReindexer(config, reindex.WithProgress(func(done, _ int) {
		tracker.Update(done, done, 0)
	}))
	if err != nil {
		return fmt.Errorf("failed to create reindexer: %w", err)
	}

	fmt.Fprintf(c.App.ErrWriter, "Embedding host: %s\n", c.String("embedding-host"))
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", c.String("embedding-model"))

	tracker.Start()
	result, err := reindexer.Run(c.Context)
	tracker.Finish(nil)
	if err != nil {
		return fmt.Errorf("reindexing failed: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "Reindexed %d runbooks (%d chunks) in %v\n",
		result.Runbooks, result.Chunks, result.Elapsed.Round(time.Millisecond))
	return nil
}
