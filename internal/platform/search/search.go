// Package search implements the fuzzy multi-field client search used by the
// client picker. The index is rebuilt from the caller's records on every call;
// cache the record fetch, not the index.
package search

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// DefaultLimit is the result cap when the caller passes limit <= 0.
	DefaultLimit = 50
	// RecentLimit is the size of the "recent items" list returned for short queries.
	RecentLimit = 25
	// MinQueryLength is the shortest trimmed query that triggers fuzzy matching.
	MinQueryLength = 2
	// Threshold is the worst field score still counted as a match (0 = exact).
	Threshold = 0.3

	// exactFloor stands in for a zero field score so exact hits still carry weight.
	exactFloor = 0.001
)

// PersonRecord is the searchable projection of a client. Optional fields may be nil.
type PersonRecord struct {
	ID        string     `json:"id"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	FullName  string     `json:"full_name"`
	Initials  string     `json:"initials"`
	Email     string     `json:"email"`
	Phone     *string    `json:"phone,omitempty"`
	DOB       *time.Time `json:"dob,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type field int

const (
	fieldFirstName field = iota
	fieldLastName
	fieldFullName
	fieldEmail
	fieldPhone
	fieldPhoneDigits
	fieldDOB
	fieldCount
)

// weights are indexed by field and sum to 1.
var weights = [fieldCount]float64{
	fieldFirstName:   0.35,
	fieldLastName:    0.20,
	fieldFullName:    0.18,
	fieldEmail:       0.15,
	fieldPhone:       0.07,
	fieldPhoneDigits: 0.03,
	fieldDOB:         0.02,
}

// entry holds the normalised values of one record; a field may carry several values.
type entry struct {
	values [fieldCount][][]rune
}

type hit struct {
	idx   int
	score float64
}

// Search returns up to limit records ranked best match first. Queries shorter
// than MinQueryLength return the RecentLimit most recently updated records instead.
func Search(records []PersonRecord, query string, limit int) []PersonRecord {
	if limit <= 0 {
		limit = DefaultLimit
	}

	trimmed := strings.TrimSpace(query)
	if utf8.RuneCountInString(trimmed) < MinQueryLength {
		return recent(records, RecentLimit)
	}

	pattern := []rune(fold(trimmed))
	digitPattern := pattern
	if digits := Digits(trimmed); len(digits) >= MinQueryLength {
		digitPattern = []rune(digits)
	}

	var hits []hit
	for i := range records {
		e := buildEntry(&records[i])
		score, ok := e.score(pattern, digitPattern)
		if ok {
			hits = append(hits, hit{idx: i, score: score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score < hits[j].score
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]PersonRecord, len(hits))
	for i, h := range hits {
		out[i] = records[h.idx]
	}
	return out
}

func recent(records []PersonRecord, n int) []PersonRecord {
	sorted := make([]PersonRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return updatedAt(sorted[i]).After(updatedAt(sorted[j]))
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func updatedAt(r PersonRecord) time.Time {
	if r.UpdatedAt == nil {
		return time.Time{}
	}
	return *r.UpdatedAt
}

func buildEntry(r *PersonRecord) entry {
	var e entry
	add := func(f field, s string) {
		if s = fold(strings.TrimSpace(s)); s != "" {
			e.values[f] = append(e.values[f], []rune(s))
		}
	}

	add(fieldFirstName, r.FirstName)
	add(fieldLastName, r.LastName)
	add(fieldFullName, r.FullName)
	add(fieldEmail, r.Email)
	if r.Phone != nil {
		add(fieldPhone, *r.Phone)
		add(fieldPhoneDigits, Digits(*r.Phone))
	}
	for _, tok := range DOBTokens(r.DOB) {
		add(fieldDOB, tok)
	}
	return e
}

// score combines matched fields multiplicatively; lower is better. ok is false
// when no field is within Threshold.
func (e *entry) score(pattern, digitPattern []rune) (float64, bool) {
	total := 1.0
	matched := false
	for f := field(0); f < fieldCount; f++ {
		p := pattern
		if f == fieldPhoneDigits {
			p = digitPattern
		}

		best := -1.0
		for _, v := range e.values[f] {
			s := fieldScore(p, v)
			if best < 0 || s < best {
				best = s
			}
		}
		if best < 0 || best > Threshold {
			continue
		}

		matched = true
		if best < exactFloor {
			best = exactFloor
		}
		total *= math.Pow(best, weights[f])
	}
	return total, matched
}

// fold lower-cases s and strips combining marks so "José" indexes as "jose".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}
