package search

import (
	"log/slog"

	"github.com/poiesic/runbooks/core"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterSemanticSearch(matches []*core.SearchResult)
	VerbatimHit(result *core.SearchResult)
	Finish(results []*core.SearchResult)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                             {}
func (n *noopMonitor) AfterSemanticSearch(_ []*core.SearchResult) {}
func (n *noopMonitor) VerbatimHit(_ *core.SearchResult)           {}
func (n *noopMonitor) Finish(_ []*core.SearchResult)              {}

// LogMonitor reports each search stage at debug level.
type LogMonitor struct {
	logger *slog.Logger
}

var _ SearchMonitor = (*LogMonitor)(nil)

// NewLogMonitor creates a monitor that logs to logger, or slog.Default() if nil.
func NewLogMonitor(logger *slog.Logger) *LogMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMonitor{logger: logger.With("component", "search")}
}

func (m *LogMonitor) Start(query string) {
	m.logger.Debug("search started", "query", query)
}

func (m *LogMonitor) AfterSemanticSearch(matches []*core.SearchResult) {
	m.logger.Debug("semantic search finished", "chunks", len(matches))
}

func (m *LogMonitor) VerbatimHit(result *core.SearchResult) {
	m.logger.Debug("verbatim match", "runbook_id", result.Runbook.Id.String(),
		"chunk", result.Chunk.Index)
}

func (m *LogMonitor) Finish(results []*core.SearchResult) {
	m.logger.Debug("search finished", "runbooks", len(results))
}
