// Package similarity scores how alike two strings or two person names are.
// All functions are pure and safe for concurrent use.
package similarity

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Similarity returns the normalised Levenshtein similarity of a and b in [0,1].
// The comparison is case-insensitive and lengths are counted in runes.
// Two empty strings are identical (1); an empty string against a non-empty
// one scores 0.
func Similarity(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == b {
		return 1.0
	}

	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1.0
	}

	distance := levenshtein.ComputeDistance(a, b)
	score := float64(maxLen-distance) / float64(maxLen)
	if score < 0 {
		return 0
	}
	return score
}
