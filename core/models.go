package core

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for stored entities.
// It is generated using content-based hashing.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// String renders the ID in the form used for runbook identifiers.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 16)
}

// ParseID parses an identifier produced by ID.String.
func ParseID(s string) (ID, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, err
	}
	return ID(v), nil
}

// RawPage is a document as returned by the document source, before extraction.
type RawPage struct {
	ID           string
	Title        string
	SpaceKey     string
	Author       string
	LastModified string // RFC 3339 timestamp as reported by the source
	Body         string // storage-format HTML
	URL          string
}

// RunbookMetadata describes where a runbook came from.
type RunbookMetadata struct {
	Title        string    `json:"title"`
	Author       string    `json:"author,omitempty"`
	LastModified time.Time `json:"last_modified"`
	SpaceKey     string    `json:"space_key"`
	PageID       string    `json:"page_id"`
	PageURL      string    `json:"page_url"`
	Tags         []string  `json:"tags"`
}

// Runbook is normalized content extracted from a source page.
type Runbook struct {
	Id                   ID                `json:"-"`
	Metadata             RunbookMetadata   `json:"metadata"`
	Procedures           []string          `json:"procedures"`
	TroubleshootingSteps []string          `json:"troubleshooting_steps"`
	Prerequisites        []string          `json:"prerequisites"`
	RawContent           string            `json:"raw_content"`
	Sections             map[string]string `json:"structured_sections"`
	InsertedAt           time.Time         `json:"-"`
	UpdatedAt            time.Time         `json:"-"`
}

// Chunk is one embedded slice of a runbook's content.
type Chunk struct {
	Id        ID
	RunbookId ID
	Index     int
	Content   string
	Vector    []float32 // Embedding vector (normalized)
}

// ChunkKey returns the content used to derive a chunk's ID.
func ChunkKey(runbookID ID, index int) string {
	return runbookID.String() + "#" + strconv.Itoa(index)
}

// SearchResult is a runbook chunk matched by similarity search.
type SearchResult struct {
	Runbook *Runbook
	Chunk   *Chunk
	Score   float32
}
