package search

import (
	"strings"
	"unicode"
)

// Stop words ignored when checking for verbatim matches. Besides common
// English filler this covers the question words operators type into a
// runbook search ("how do I restart ...").
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true, "how": true, "what": true, "when": true, "why": true,
	"i": true, "we": true, "my": true, "our": true, "should": true, "can": true,
}

// tokenize lowercases text and splits it into words, keeping identifiers
// such as "payment-service" or "db_primary" intact.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' && r != '.'
	})
}

// keywords returns the non-stop-words of text with surrounding punctuation removed.
func keywords(text string) []string {
	words := tokenize(text)
	filtered := make([]string, 0, len(words))
	for _, word := range words {
		cleaned := strings.Trim(word, ".-_")
		if cleaned != "" && !stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}
	return filtered
}

// containsAllQueryWords checks if all query keywords appear in the document
func containsAllQueryWords(document, query string) bool {
	queryWords := keywords(query)
	if len(queryWords) == 0 {
		return false
	}

	docWords := make(map[string]bool)
	for _, word := range keywords(document) {
		docWords[word] = true
	}

	for _, word := range queryWords {
		if !docWords[word] {
			return false
		}
	}
	return true
}
