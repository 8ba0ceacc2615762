package indexer

import "strings"

// Preprocess trims text and collapses every whitespace run to a single space. Chunks embed
// the preprocessed text, so queries built from the same source text embed identically.
func Preprocess(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
