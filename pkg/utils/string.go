package utils

import "unicode/utf8"

// Truncate shortens s to at most maxLen runes, ending in an ellipsis when
// anything was cut.
func Truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	if maxLen <= 0 {
		return ""
	}
	return string([]rune(s)[:maxLen-1]) + "…"
}
