package badger

import (
	"encoding/binary"

	"github.com/poiesic/runbooks/core"
)

// Key prefixes for different data types
const (
	runbookPrefix = "rbrec:"
	chunkPrefix   = "rbchk:"
)

// makeRunbookKey generates a key for a runbook by ID.
// Format: prefix + id (BigEndian) so iteration follows ID order.
func makeRunbookKey(id core.ID) []byte {
	buf := make([]byte, len(runbookPrefix)+8)
	offset := copy(buf, runbookPrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeChunkKey generates a composite key for a chunk.
// Format: prefix + runbookID + index
func makeChunkKey(runbookID core.ID, index int) []byte {
	buf := make([]byte, len(chunkPrefix)+16)
	offset := copy(buf, chunkPrefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(runbookID))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(index))
	return buf
}

// makePartialChunkKey generates the prefix shared by all chunks of a runbook.
// Format: prefix + runbookID
func makePartialChunkKey(runbookID core.ID) []byte {
	buf := make([]byte, len(chunkPrefix)+8)
	offset := copy(buf, chunkPrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(runbookID))
	return buf
}
