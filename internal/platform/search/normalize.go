package search

import (
	"strings"
	"time"
	"unicode"
)

// fieldScore is the fewest edits needed to turn pattern into any substring of
// text, divided by the pattern length. The match position never affects it.
func fieldScore(pattern, text []rune) float64 {
	m := len(pattern)
	if m == 0 {
		return 0
	}

	// prev[j] is the best distance for pattern[:i] ending at text[:j]. Row 0 is
	// all zeros so that a match may start anywhere in text.
	prev := make([]int, len(text)+1)
	curr := make([]int, len(text)+1)
	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= len(text); j++ {
			cost := 1
			if pattern[i-1] == text[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	best := prev[0]
	for _, d := range prev[1:] {
		if d < best {
			best = d
		}
	}
	return float64(best) / float64(m)
}

// Digits strips every non-digit rune from s.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DOBTokens renders a date of birth in the formats people type into a
// search box. A nil date yields no tokens.
func DOBTokens(dob *time.Time) []string {
	if dob == nil || dob.IsZero() {
		return nil
	}
	d := *dob
	return []string{
		d.Format("01/02/2006"),
		d.Format("2006-01-02"),
		d.Format("01022006"),
		d.Format("20060102"),
	}
}
