// Package ingestion orchestrates bulk runbook ingestion jobs.
//
// A Manager accepts a list of page IDs, records a Job in an in-memory
// Registry and hands the job to an Executor. The executor fans items out
// with a per-job concurrency limit and delegates the blocking
// fetch/extract/index calls to a worker pool shared by all jobs:
//   - the orchestration layer only waits on the per-job semaphore and on
//     the join of its item tasks
//   - the worker pool runs the collaborator calls
//
// Cancellation is cooperative. CancelJob only flips the job's status, so
// an item may be skipped before it starts, attempted and then reported as
// cancelled, or reported normally if it finished before the flag was seen.
// Callers observe progress by polling GetJob or GetJobSummary.
package ingestion
