package core

import (
	"testing"
	"time"
)

func TestJobStatus(t *testing.T) {
	tests := []struct {
		status   JobStatus
		terminal bool
	}{
		{JobStatusPending, false},
		{JobStatusRunning, false},
		{JobStatusCompleted, true},
		{JobStatusFailed, true},
		{JobStatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
			if !tt.status.IsValid() {
				t.Errorf("IsValid() = false for %q", tt.status)
			}
		})
	}

	if JobStatus("paused").IsValid() {
		t.Error("IsValid() = true for unknown status")
	}
}

func TestJobClone(t *testing.T) {
	started := time.Now().UTC()
	elapsed := 1.5
	job := &Job{
		ID:             "job-1",
		Status:         JobStatusRunning,
		StartedAt:      &started,
		ProcessingTime: &elapsed,
		ItemResults:    []ItemResult{{ItemID: "a", Success: true}},
		Errors:         []string{"boom"},
	}

	c := job.Clone()
	c.ItemResults[0].ItemID = "changed"
	c.Errors[0] = "changed"
	*c.StartedAt = started.Add(time.Hour)
	*c.ProcessingTime = 99

	if job.ItemResults[0].ItemID != "a" {
		t.Error("Clone() shares ItemResults with original")
	}
	if job.Errors[0] != "boom" {
		t.Error("Clone() shares Errors with original")
	}
	if !job.StartedAt.Equal(started) {
		t.Error("Clone() shares StartedAt with original")
	}
	if *job.ProcessingTime != 1.5 {
		t.Error("Clone() shares ProcessingTime with original")
	}

	var nilJob *Job
	if nilJob.Clone() != nil {
		t.Error("Clone() of nil job should be nil")
	}
}
