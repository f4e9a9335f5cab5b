package core

import (
	"testing"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "page id", content: "123456"},
		{name: "empty string", content: ""},
		{name: "long content", content: "This is a much longer piece of content that should still hash consistently"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent(tt.content)
			id2 := IDFromContent(tt.content)

			if id1 != id2 {
				t.Errorf("IDFromContent() produced different IDs for same content: %d vs %d", id1, id2)
			}
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	if IDFromContent("page-1") == IDFromContent("page-2") {
		t.Error("IDFromContent() produced identical IDs for different content")
	}
}

func TestIDStringRoundTrip(t *testing.T) {
	id := IDFromContent("98765")
	parsed, err := ParseID(id.String())
	if err != nil {
		t.Fatalf("ParseID() error = %v", err)
	}
	if parsed != id {
		t.Errorf("ParseID(String()) = %d, want %d", parsed, id)
	}

	if _, err := ParseID("not-hex"); err == nil {
		t.Error("ParseID() expected error for invalid input")
	}
}

func TestChunkKey(t *testing.T) {
	rb := ID(0xabc)
	if got := ChunkKey(rb, 3); got != "abc#3" {
		t.Errorf("ChunkKey() = %q, want %q", got, "abc#3")
	}
	if ChunkKey(rb, 0) == ChunkKey(rb, 1) {
		t.Error("ChunkKey() must differ per index")
	}
}
