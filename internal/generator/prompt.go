// Package generator produces answers grounded in retrieved chunks with a chat-completion model.
package generator

import (
	"fmt"
	"strings"
)

// NoContextAnswer is returned without calling the model when retrieval found nothing.
const NoContextAnswer = "No relevant information found. Try adding more sources."

// BuildPrompt numbers each context as [Source i], starting at 1, and asks the model to answer
// from those sources only.
func BuildPrompt(query string, contexts []string) string {
	var b strings.Builder
	b.WriteString("Answer based on these sources:\n")
	for i, c := range contexts {
		fmt.Fprintf(&b, "\n[Source %d]\n%s\n", i+1, c)
	}
	fmt.Fprintf(&b, "\n\nQuestion: %s\n\n", query)
	b.WriteString("Instructions:\n")
	b.WriteString("- Answer based ONLY on the context\n")
	b.WriteString("- Be concise and direct\n")
	b.WriteString("- Mention source numbers [Source 1], [Source 2]\n")
	b.WriteString("- If context doesn't have the answer, say so\n\n")
	b.WriteString("Answer:")
	return b.String()
}
