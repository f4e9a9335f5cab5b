package confluence

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/poiesic/runbooks/core"
	"github.com/poiesic/runbooks/source"
)

// Section keys used in Runbook.Sections.
const (
	SectionProcedures      = "procedures"
	SectionTroubleshooting = "troubleshooting_steps"
	SectionPrerequisites   = "prerequisites"
	SectionOther           = "other_sections"
)

// sectionOrder is both the matching precedence and the output order.
var sectionOrder = []string{SectionProcedures, SectionTroubleshooting, SectionPrerequisites}

var sectionPatterns = map[string][]*regexp.Regexp{
	SectionProcedures: {
		regexp.MustCompile(`(?i)^(procedure|steps?|instructions?|how\s+to|process|workflow)`),
		regexp.MustCompile(`(?i)^(step\s+\d+|\d+\.)`),
		regexp.MustCompile(`(?i)(implementation|execution|deployment)`),
	},
	SectionTroubleshooting: {
		regexp.MustCompile(`(?i)^(troubleshoot|debug|problem|issue|error|fix|solution)`),
		regexp.MustCompile(`(?i)(common\s+issues?|known\s+problems?|error\s+handling)`),
		regexp.MustCompile(`(?i)(if.*then|when.*occurs|in\s+case\s+of)`),
	},
	SectionPrerequisites: {
		regexp.MustCompile(`(?i)^(prerequisite|requirement|before|setup|preparation)`),
		regexp.MustCompile(`(?i)(you\s+need|must\s+have|ensure\s+that|make\s+sure)`),
		regexp.MustCompile(`(?i)(dependencies|requirements|assumptions)`),
	},
}

// Extractor implements source.Extractor for Confluence storage-format pages.
type Extractor struct {
	logger *slog.Logger
	now    func() time.Time
}

var _ source.Extractor = (*Extractor)(nil)

// NewExtractor creates an extractor. A nil logger uses slog.Default().
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		logger: logger.With("component", "confluence-extractor"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ExtractRunbook cleans the page body and sorts its content into sections.
// The runbook ID is left for the index store to assign.
func (e *Extractor) ExtractRunbook(page *core.RawPage) (*core.Runbook, error) {
	if page == nil {
		return nil, ErrNoContent
	}
	if strings.TrimSpace(page.ID) == "" {
		return nil, ErrEmptyPageID
	}
	if strings.TrimSpace(page.Body) == "" {
		return nil, ErrNoContent
	}

	text := cleanHTML(page.Body)
	if text == "" {
		return nil, ErrEmptyAfterCleaning
	}

	lastModified, err := time.Parse(time.RFC3339, page.LastModified)
	if err != nil {
		lastModified = e.now()
	}

	sections := identifySections(text)
	structured := make(map[string]string)
	for key, entries := range sections {
		if len(entries) > 0 {
			structured[key] = strings.Join(entries, "\n\n")
		}
	}

	rb := &core.Runbook{
		Metadata: core.RunbookMetadata{
			Title:        strings.TrimSpace(page.Title),
			Author:       page.Author,
			LastModified: lastModified.UTC(),
			SpaceKey:     page.SpaceKey,
			PageID:       page.ID,
			PageURL:      page.URL,
		},
		Procedures:           sections[SectionProcedures],
		TroubleshootingSteps: sections[SectionTroubleshooting],
		Prerequisites:        sections[SectionPrerequisites],
		RawContent:           text,
		Sections:             structured,
	}
	if err := core.ValidateRunbook(rb); err != nil {
		return nil, err
	}

	e.logger.Debug("extracted runbook", "pageID", page.ID,
		"procedures", len(rb.Procedures),
		"troubleshooting", len(rb.TroubleshootingSteps),
		"prerequisites", len(rb.Prerequisites))
	return rb, nil
}

// identifySections walks the text line by line. A line matching a section
// pattern opens a new entry of that section; other lines extend the current
// entry, or open an "other" entry when none is open.
func identifySections(text string) map[string][]string {
	sections := map[string][]string{
		SectionProcedures:      nil,
		SectionTroubleshooting: nil,
		SectionPrerequisites:   nil,
		SectionOther:           nil,
	}

	var (
		current string
		entry   []string
	)
	flush := func() {
		if current != "" && len(entry) > 0 {
			if s := strings.TrimSpace(strings.Join(entry, "\n")); s != "" {
				sections[current] = append(sections[current], s)
			}
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if kind := classifyLine(line); kind != "" {
			flush()
			current, entry = kind, []string{line}
			continue
		}
		if current == "" {
			current = SectionOther
		}
		entry = append(entry, line)
	}
	flush()
	return sections
}

func classifyLine(line string) string {
	for _, kind := range sectionOrder {
		for _, re := range sectionPatterns[kind] {
			if re.MatchString(line) {
				return kind
			}
		}
	}
	return ""
}
