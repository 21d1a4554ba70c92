package stringutils

import "strings"

// FirstLine returns the text up to the first newline, trimmed of surrounding
// whitespace.
func FirstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// Truncate shortens s to at most max runes. Multi-byte text truncates on
// rune boundaries, never mid-character.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
