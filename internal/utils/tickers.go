// Package utils holds small helpers shared by the command and service layers.
package utils

import "strings"

// ParseTickers splits a comma-separated ticker list. Values are trimmed and
// upper-cased; empty entries and repeats are dropped, first occurrence wins.
// Returns nil for empty/whitespace-only input.
func ParseTickers(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	seen := make(map[string]bool)
	var result []string
	for _, v := range strings.Split(s, ",") {
		t := strings.ToUpper(strings.TrimSpace(v))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		result = append(result, t)
	}
	return result
}
