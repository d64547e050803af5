// Package utils provides small helpers for parsing query parameters.
package utils

import "strconv"

// AtoiDefault parses s as a base-10 int, returning def when s is empty or
// malformed.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// QueryInt parses s like AtoiDefault and clamps the result to [lo, hi].
// A hi below lo disables the upper bound.
func QueryInt(s string, def, lo, hi int) int {
	n := max(AtoiDefault(s, def), lo)
	if hi >= lo {
		n = min(n, hi)
	}
	return n
}
