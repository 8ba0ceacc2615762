// Package utils provides shared helpers for text, vectors and logging.
package utils

// Truncate returns s cut to maxLen runes with "..." appended when it was longer.
// A non-positive maxLen returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
