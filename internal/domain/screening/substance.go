// Package screening holds the drug-screen decision logic: substance and
// confirmation vocabularies, result classification against declared
// medications, confirmation completeness and test-record matching.
// Nothing in this package performs I/O.
package screening

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// SubstanceCode identifies a substance from the closed panel vocabulary.
type SubstanceCode string

const (
	SubstanceTHC             SubstanceCode = "thc"
	SubstanceCocaine         SubstanceCode = "cocaine"
	SubstanceOpiates         SubstanceCode = "opiates"
	SubstanceMorphine        SubstanceCode = "morphine"
	SubstanceCodeine         SubstanceCode = "codeine"
	SubstanceHeroin          SubstanceCode = "heroin"
	SubstanceOxycodone       SubstanceCode = "oxycodone"
	SubstanceHydrocodone     SubstanceCode = "hydrocodone"
	SubstanceFentanyl        SubstanceCode = "fentanyl"
	SubstanceMethadone       SubstanceCode = "methadone"
	SubstanceBuprenorphine   SubstanceCode = "buprenorphine"
	SubstanceTramadol        SubstanceCode = "tramadol"
	SubstanceAmphetamines    SubstanceCode = "amphetamines"
	SubstanceMethamphetamine SubstanceCode = "methamphetamine"
	SubstanceMDMA            SubstanceCode = "mdma"
	SubstanceBenzodiazepines SubstanceCode = "benzodiazepines"
	SubstanceBarbiturates    SubstanceCode = "barbiturates"
	SubstancePCP             SubstanceCode = "pcp"
	SubstanceKratom          SubstanceCode = "kratom"
	SubstanceAlcohol         SubstanceCode = "alcohol"

	// SubstanceNone marks a medication that does not show on a screen.
	SubstanceNone SubstanceCode = "none"
)

var validSubstances = map[SubstanceCode]bool{
	SubstanceTHC: true, SubstanceCocaine: true, SubstanceOpiates: true,
	SubstanceMorphine: true, SubstanceCodeine: true, SubstanceHeroin: true,
	SubstanceOxycodone: true, SubstanceHydrocodone: true, SubstanceFentanyl: true,
	SubstanceMethadone: true, SubstanceBuprenorphine: true, SubstanceTramadol: true,
	SubstanceAmphetamines: true, SubstanceMethamphetamine: true, SubstanceMDMA: true,
	SubstanceBenzodiazepines: true, SubstanceBarbiturates: true, SubstancePCP: true,
	SubstanceKratom: true, SubstanceAlcohol: true, SubstanceNone: true,
}

// ErrUnknownSubstance is returned for a code outside the vocabulary.
var ErrUnknownSubstance = errors.New("unknown substance code")

// Substances returns every code in the vocabulary except SubstanceNone, sorted.
func Substances() []SubstanceCode {
	out := make([]SubstanceCode, 0, len(validSubstances)-1)
	for s := range validSubstances {
		if s != SubstanceNone {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseSubstance validates a raw code. Surrounding space and case are ignored;
// nothing else is coerced.
func ParseSubstance(raw string) (SubstanceCode, error) {
	code := SubstanceCode(strings.ToLower(strings.TrimSpace(raw)))
	if !validSubstances[code] {
		return "", fmt.Errorf("%w: %q", ErrUnknownSubstance, raw)
	}
	return code, nil
}

// Valid reports whether s is in the vocabulary.
func (s SubstanceCode) Valid() bool {
	return validSubstances[s]
}

func (s *SubstanceCode) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	code, err := ParseSubstance(raw)
	if err != nil {
		return err
	}
	*s = code
	return nil
}

// SubstanceSet is an order-independent set of substance codes.
type SubstanceSet map[SubstanceCode]struct{}

// NewSubstanceSet builds a set from already-validated codes.
func NewSubstanceSet(codes ...SubstanceCode) SubstanceSet {
	set := make(SubstanceSet, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return set
}

// ParseSubstanceSet validates raw codes into a set. Duplicates collapse. A lone
// "none" yields the empty set; "none" alongside real codes is contradictory and
// rejected.
func ParseSubstanceSet(raw []string) (SubstanceSet, error) {
	set := make(SubstanceSet, len(raw))
	sawNone := false
	for _, r := range raw {
		code, err := ParseSubstance(r)
		if err != nil {
			return nil, err
		}
		if code == SubstanceNone {
			sawNone = true
			continue
		}
		set[code] = struct{}{}
	}
	if sawNone && len(set) > 0 {
		return nil, fmt.Errorf("%w: \"none\" cannot be combined with other substances", ErrUnknownSubstance)
	}
	return set, nil
}

func (s SubstanceSet) Has(code SubstanceCode) bool {
	_, ok := s[code]
	return ok
}

func (s SubstanceSet) Len() int { return len(s) }

// Sorted returns the members in lexical order.
func (s SubstanceSet) Sorted() []SubstanceCode {
	out := make([]SubstanceCode, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MarshalJSON writes the set as a sorted array so output is reproducible.
func (s SubstanceSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *SubstanceSet) UnmarshalJSON(b []byte) error {
	var raw []string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	set, err := ParseSubstanceSet(raw)
	if err != nil {
		return err
	}
	*s = set
	return nil
}
