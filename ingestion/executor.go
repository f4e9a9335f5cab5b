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
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/runbooks/core"
	"golang.org/x/sync/semaphore"
)

// Executor drives one job from running to a terminal status.
//
// Items are launched in input order, each on its own goroutine, and at most
// the job's concurrency limit of them hold a permit at once. The permit is
// the only place an item waits; the blocking calls run on the processor's
// worker pool. Item results are recorded in completion order.
type Executor struct {
	registry  *Registry
	processor processor
	hooks     Hooks
	now       func() time.Time
	logger    *slog.Logger
}

func newExecutor(registry *Registry, proc processor, s *settings) *Executor {
	return &Executor{
		registry:  registry,
		processor: proc,
		hooks:     s.hooks,
		now:       s.now,
		logger:    s.logger.With("component", "executor"),
	}
}

// Run processes items for jobID with at most concurrencyLimit in flight and
// blocks until every launched item has been recorded.
func (e *Executor) Run(ctx context.Context, jobID string, items []string, concurrencyLimit int) {
	logger := e.logger.With("job_id", jobID)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("bulk extraction aborted", "err", r)
			e.registry.AppendJobError(jobID, fmt.Sprintf("bulk extraction failed: %v", r))
			e.registry.UpdateStatus(jobID, core.JobStatusFailed)
		}
	}()

	e.registry.UpdateStatus(jobID, core.JobStatusRunning)
	logger.Info("job started", "items", len(items), "concurrency", concurrencyLimit)

	gate := semaphore.NewWeighted(int64(max(concurrencyLimit, 1)))
	var wg sync.WaitGroup
	launched := 0
	for _, itemID := range items {
		if e.cancelled(jobID) {
			logger.Info("job cancelled, not launching remaining items", "remaining", len(items)-launched)
			break
		}
		launched++
		wg.Go(func() {
			e.runItem(ctx, gate, jobID, itemID)
		})
	}
	wg.Wait()

	e.finalize(jobID, logger)
}

func (e *Executor) runItem(ctx context.Context, gate *semaphore.Weighted, jobID, itemID string) {
	if err := gate.Acquire(ctx, 1); err != nil {
		e.registry.AppendItemResult(jobID, core.ItemResult{ItemID: itemID, Error: err.Error()})
		return
	}
	result, ok := e.attempt(ctx, jobID, itemID)
	gate.Release(1)
	if ok {
		e.registry.AppendItemResult(jobID, result)
	}
}

// attempt runs one item while the caller holds its permit. It reports
// ok=false when the item panicked; the panic is recorded as a job error.
func (e *Executor) attempt(ctx context.Context, jobID, itemID string) (result core.ItemResult, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("item panicked", "job_id", jobID, "page_id", itemID, "err", r)
			e.registry.AppendJobError(jobID, fmt.Sprintf("item %s failed: %v", itemID, r))
			ok = false
		}
	}()

	e.hooks.beforeItemStart(jobID, itemID)
	start := e.now()
	if e.cancelled(jobID) {
		return core.ItemResult{ItemID: itemID, Error: MsgCancelledBeforeStart}, true
	}

	out, err := e.processor.process(ctx, itemID)
	elapsed := max(e.now().Sub(start).Seconds(), 0)
	if err != nil {
		msg := fmt.Sprintf("bulk extraction failed: %v", err)
		e.registry.AppendJobError(jobID, msg)
		return core.ItemResult{ItemID: itemID, Error: msg, ProcessingTime: elapsed}, true
	}

	result = core.ItemResult{ItemID: itemID, ProcessingTime: elapsed}
	if out.err != nil {
		result.Error = out.err.Error()
		if result.Error == "" {
			result.Error = "unknown error"
		}
		e.logger.Warn("item failed", "job_id", jobID, "page_id", itemID, "err", out.err)
	} else {
		result.Success = true
		result.DerivedID = out.derivedID
		result.Title = out.title
	}

	e.hooks.afterItemProcessed(jobID, itemID)
	// The indexed runbook stays in place; only the job's bookkeeping changes.
	if result.Success && e.cancelled(jobID) {
		return core.ItemResult{
			ItemID:         itemID,
			Error:          MsgCancelledDuringProcessing,
			ProcessingTime: elapsed,
		}, true
	}
	return result, true
}

func (e *Executor) cancelled(jobID string) bool {
	status, _ := e.registry.status(jobID)
	return status == core.JobStatusCancelled
}

// finalize picks the terminal status. Cancellation wins; otherwise any
// success makes the job completed, even when other items failed.
func (e *Executor) finalize(jobID string, logger *slog.Logger) {
	job, ok := e.registry.Get(jobID)
	if !ok {
		return
	}

	status := core.JobStatusFailed
	switch {
	case job.Status == core.JobStatusCancelled:
		status = core.JobStatusCancelled
	case job.SuccessfulItems > 0:
		status = core.JobStatusCompleted
	}
	e.registry.UpdateStatus(jobID, status)

	logger.Info("job finished",
		"status", status,
		"processed", job.ProcessedItems,
		"successful", job.SuccessfulItems,
		"failed", job.FailedItems)
}
