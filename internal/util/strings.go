package util

import "strings"

// Truncate trims s and shortens it to at most n bytes followed by "...".
// Used to keep response bodies out of error details and tables.
func Truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
