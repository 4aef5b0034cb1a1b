package utils

import (
	"strings"
	"unicode/utf8"
)

// Ellipsize returns the first n runes of s, followed by "..." when s was longer.
func Ellipsize(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}

// ContainsAnyFold reports whether s contains any of the needles, ignoring case.
func ContainsAnyFold(s string, needles ...string) bool {
	lower := strings.ToLower(s)
	for _, n := range needles {
		if n != "" && strings.Contains(lower, strings.ToLower(n)) {
			return true
		}
	}
	return false
}
