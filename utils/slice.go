package utils

import "strings"

// NormalizeNames trims and deduplicates a list of names, preserving
// first-seen order. Empty entries are dropped. Case is kept as given.
func NormalizeNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// StringSetDiff returns the elements of a that are absent from b.
func StringSetDiff(a, b map[string]bool) []string {
	out := make([]string, 0)
	for k := range a {
		if !b[k] {
			out = append(out, k)
		}
	}
	return out
}
