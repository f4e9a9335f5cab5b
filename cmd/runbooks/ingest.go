package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/runbooks"
	"github.com/poiesic/runbooks/core"
	"github.com/poiesic/runbooks/ingestion"
	"github.com/urfave/cli/v2"
)

const progressPollInterval = 250 * time.Millisecond

// ingestReport is the --json output of the ingest command.
type ingestReport struct {
	Job        *ingestion.JobSummary      `json:"job"`
	Statistics *ingestion.FleetStatistics `json:"statistics"`
}

func ingestCommand(c *cli.Context) error {
	pageIDs, err := collectPageIDs(c.Args().Slice(), c.String("file"))
	if err != nil {
		return err
	}

	cfg, err := confluenceConfig(c)
	if err != nil {
		return err
	}

	db, err := openDatabase(c, runbooks.WithConfluence(cfg))
	if err != nil {
		return err
	}
	defer db.Close()

	manager, err := db.NewJobManager(ingestion.WithPoolSize(c.Int("pool-size")))
	if err != nil {
		return fmt.Errorf("failed to create job manager: %w", err)
	}
	defer manager.Release()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	jobID, err := manager.Submit(ctx, core.BulkRequest{
		PageIDs:          pageIDs,
		ConcurrencyLimit: c.Int("concurrency"),
	})
	if err != nil {
		return err
	}
	slog.Info("job submitted", "job_id", jobID, "pages", len(pageIDs))

	tracker := ingestion.NewProgressTracker(c.App.ErrWriter, len(pageIDs), 1)
	tracker.Start()
	job, err := followJob(ctx, manager, jobID, tracker)
	if err != nil {
		return err
	}
	tracker.Finish(job)

	summary, err := manager.GetJobSummary(jobID)
	if err != nil {
		return err
	}
	stats := manager.FleetStatistics()

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(ingestReport{Job: summary, Statistics: stats}); err != nil {
			return err
		}
	} else {
		printSummary(c.App.Writer, summary, tracker.Elapsed())
	}

	if job.Status == core.JobStatusFailed {
		return fmt.Errorf("job %s failed: no page was ingested", jobID)
	}
	return nil
}

// followJob reports progress until the job is terminal. The first interrupt
// cancels the job; pages already in flight are allowed to finish.
func followJob(ctx context.Context, manager *ingestion.Manager, jobID string, tracker *ingestion.ProgressTracker) (*core.Job, error) {
	ticker := time.NewTicker(progressPollInterval)
	defer ticker.Stop()

	done := ctx.Done()
	for {
		job, err := manager.GetJob(jobID)
		if err != nil {
			return nil, err
		}
		tracker.Observe(job)
		if job.Status.IsTerminal() {
			return job, nil
		}

		select {
		case <-done:
			done = nil
			slog.Warn("interrupt received, cancelling job", "job_id", jobID)
			if err := manager.CancelJob(jobID); err != nil && !errors.Is(err, ingestion.ErrJobTerminal) {
				return nil, err
			}
		case <-ticker.C:
		}
	}
}

// collectPageIDs merges page ids given as arguments with those read from
// file. Blank lines and lines starting with '#' are skipped.
func collectPageIDs(args []string, file string) ([]string, error) {
	ids := make([]string, 0, len(args))
	for _, arg := range args {
		for _, id := range strings.Split(arg, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}

	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open page id file: %w", err)
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			ids = append(ids, line)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read page id file: %w", err)
		}
	}

	if len(ids) == 0 {
		return nil, errors.New("no page ids given: pass them as arguments or with --file")
	}
	return ids, nil
}

func printSummary(w io.Writer, summary *ingestion.JobSummary, elapsed time.Duration) {
	fmt.Fprintf(w, "Job %s %s in %s\n", summary.ID, summary.Status, elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "  pages: %d processed, %d ok, %d failed (%.2f%% success)\n",
		summary.ProcessedItems, summary.SuccessfulItems, summary.FailedItems, summary.SuccessRate)
	if summary.FastestItemTime != nil && summary.SlowestItemTime != nil {
		fmt.Fprintf(w, "  page time: avg %.2fs, fastest %.2fs, slowest %.2fs\n",
			summary.AverageItemTime, *summary.FastestItemTime, *summary.SlowestItemTime)
	}

	for _, item := range summary.Items {
		if item.Success {
			fmt.Fprintf(w, "  ok     %-12s %s\n", item.ItemID, item.Title)
		} else {
			fmt.Fprintf(w, "  failed %-12s %s\n", item.ItemID, item.Error)
		}
	}

	if len(summary.ErrorSummary.ErrorTypes) > 0 {
		fmt.Fprintln(w, "  errors:")
		for _, et := range summary.ErrorSummary.ErrorTypes {
			fmt.Fprintf(w, "    %3d  %s\n", et.Count, et.ErrorType)
		}
	}
	for _, msg := range summary.Errors {
		fmt.Fprintf(w, "  job error: %s\n", msg)
	}
}
