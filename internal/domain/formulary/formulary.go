// Package formulary is the catalog of known prescriptions and how each shows
// up on a drug screen. It supplies defaults when staff record a medication
// without saying what it is detected as.
package formulary

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/sahilm/fuzzy"
	"gopkg.in/yaml.v3"

	"github.com/clinicops/clinic/internal/domain/screening"
)

//go:embed catalog.yaml
var defaultCatalog []byte

const DefaultSuggestLimit = 10

// Entry is one catalog medication.
type Entry struct {
	Name                string                 `yaml:"name" json:"name"`
	Aliases             []string               `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	DetectedAs          []string               `yaml:"detected_as" json:"-"`
	RequireConfirmation bool                   `yaml:"require_confirmation" json:"require_confirmation"`
	Substances          screening.SubstanceSet `yaml:"-" json:"detected_as"`
}

type file struct {
	Medications []Entry `yaml:"medications"`
}

// Catalog is immutable after Parse and safe for concurrent use.
type Catalog struct {
	entries []Entry
	byName  map[string]int
	// terms[i] is a searchable name or alias of entries[owner[i]].
	terms []string
	owner []int
}

// Parse decodes and validates a YAML catalog. Names and aliases must be
// unique ignoring case, and every detected_as code must be a known substance.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode formulary: %w", err)
	}

	c := &Catalog{byName: make(map[string]int)}
	for i, e := range f.Medications {
		e.Name = strings.TrimSpace(e.Name)
		if e.Name == "" {
			return nil, fmt.Errorf("formulary entry %d: name is required", i)
		}
		if len(e.DetectedAs) == 0 {
			return nil, fmt.Errorf("formulary entry %q: detected_as is required", e.Name)
		}
		subs, err := screening.ParseSubstanceSet(e.DetectedAs)
		if err != nil {
			return nil, fmt.Errorf("formulary entry %q: %w", e.Name, err)
		}
		e.Substances = subs

		idx := len(c.entries)
		for _, term := range append([]string{e.Name}, e.Aliases...) {
			key := normalize(term)
			if key == "" {
				continue
			}
			if prev, dup := c.byName[key]; dup {
				return nil, fmt.Errorf("formulary entry %q: %q already used by %q", e.Name, term, c.entries[prev].Name)
			}
			c.byName[key] = idx
			c.terms = append(c.terms, term)
			c.owner = append(c.owner, idx)
		}
		c.entries = append(c.entries, e)
	}
	return c, nil
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads the catalog at path, or the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read formulary %s: %w", path, err)
	}
	return Parse(data)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func (c *Catalog) Len() int { return len(c.entries) }

// Entries returns a copy of every entry in catalog order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Lookup finds an entry by exact name or alias, ignoring case and spacing.
func (c *Catalog) Lookup(name string) (Entry, bool) {
	idx, ok := c.byName[normalize(name)]
	if !ok {
		return Entry{}, false
	}
	return c.entries[idx], true
}

// termSource adapts the term list to fuzzy.Source.
type termSource []string

func (t termSource) String(i int) string { return t[i] }
func (t termSource) Len() int            { return len(t) }

// Suggest returns entries whose name or an alias fuzzy-matches query, best
// first, each entry at most once. An empty query lists the catalog.
func (c *Catalog) Suggest(query string, limit int) []Entry {
	if limit <= 0 {
		limit = DefaultSuggestLimit
	}
	query = strings.TrimSpace(query)
	if query == "" {
		n := limit
		if n > len(c.entries) {
			n = len(c.entries)
		}
		return c.Entries()[:n]
	}

	matches := fuzzy.FindFrom(query, termSource(c.terms))
	seen := make(map[int]bool)
	out := make([]Entry, 0, limit)
	for _, m := range matches {
		idx := c.owner[m.Index]
		if seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, c.entries[idx])
		if len(out) == limit {
			break
		}
	}
	return out
}
