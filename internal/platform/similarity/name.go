package similarity

import "strings"

// Name weights. Last names collide far less often than first names in the
// client population, so a perfect last-name match alone is worth 0.6.
const (
	FirstNameWeight  = 0.3
	LastNameWeight   = 0.6
	MiddleNameWeight = 0.1

	// OneMiddlePenalty is the middle score when only one side has a middle name.
	OneMiddlePenalty = 0.8
)

// Name is a person name split into its scored parts. An empty Middle means
// the middle name (or initial) is unknown.
type Name struct {
	First  string
	Middle string
	Last   string
}

// NameSimilarity returns the weighted similarity of two names in [0,1].
func NameSimilarity(a, b Name) float64 {
	score := FirstNameWeight*Similarity(a.First, b.First) +
		LastNameWeight*Similarity(a.Last, b.Last) +
		MiddleNameWeight*middleScore(a.Middle, b.Middle)
	if score > 1 {
		return 1
	}
	return score
}

// Names is NameSimilarity over loose arguments. Pass "" for an unknown middle name.
func Names(firstA, lastA, firstB, lastB, middleA, middleB string) float64 {
	return NameSimilarity(
		Name{First: firstA, Middle: middleA, Last: lastA},
		Name{First: firstB, Middle: middleB, Last: lastB},
	)
}

func middleScore(a, b string) float64 {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	switch {
	case a != "" && b != "":
		return Similarity(a, b)
	case a != "" || b != "":
		return OneMiddlePenalty
	default:
		return 1.0
	}
}

// SplitName splits a free-form full name. It understands "First Last",
// "First M Last", "First Middle Names Last" and "Last, First M". A single
// token is treated as a last name.
func SplitName(full string) Name {
	full = strings.TrimSpace(full)
	if full == "" {
		return Name{}
	}

	if last, rest, ok := strings.Cut(full, ","); ok {
		n := Name{Last: strings.TrimSpace(last)}
		given := strings.Fields(rest)
		if len(given) > 0 {
			n.First = given[0]
			n.Middle = strings.Join(given[1:], " ")
		}
		return n
	}

	parts := strings.Fields(full)
	switch len(parts) {
	case 1:
		return Name{Last: parts[0]}
	case 2:
		return Name{First: parts[0], Last: parts[1]}
	default:
		return Name{
			First:  parts[0],
			Middle: strings.Join(parts[1:len(parts)-1], " "),
			Last:   parts[len(parts)-1],
		}
	}
}
