package search

import (
	"fmt"
	"math"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func person(id, first, last, email string) PersonRecord {
	return PersonRecord{
		ID:        id,
		FirstName: first,
		LastName:  last,
		FullName:  first + " " + last,
		Initials:  string([]rune(first)[:1]) + string([]rune(last)[:1]),
		Email:     email,
	}
}

func ids(records []PersonRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestSearch_ShortQueryReturnsRecent(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var records []PersonRecord
	for i := 0; i < 30; i++ {
		r := person(fmt.Sprintf("p%02d", i), "First", fmt.Sprintf("Last%d", i), "")
		r.UpdatedAt = timePtr(base.Add(time.Duration(i) * time.Hour))
		records = append(records, r)
	}

	for _, q := range []string{"", " ", "a", "  z  "} {
		got := Search(records, q, 50)
		if len(got) != RecentLimit {
			t.Fatalf("query %q: expected %d records, got %d", q, RecentLimit, len(got))
		}
		for i, r := range got {
			want := fmt.Sprintf("p%02d", 29-i)
			if r.ID != want {
				t.Errorf("query %q: position %d = %s, want %s", q, i, r.ID, want)
			}
		}
	}
}

func TestSearch_ShortQueryMissingUpdatedAtSortsLast(t *testing.T) {
	records := []PersonRecord{
		person("none", "A", "B", ""),
		person("new", "A", "B", ""),
	}
	records[1].UpdatedAt = timePtr(time.Now())

	got := ids(Search(records, "", 0))
	if len(got) != 2 || got[0] != "new" || got[1] != "none" {
		t.Errorf("unexpected order: %v", got)
	}
}

func TestSearch_MissingOptionalFields(t *testing.T) {
	records := []PersonRecord{
		{ID: "1", FirstName: "Maria", LastName: "Gonzalez", FullName: "Maria Gonzalez", Email: "maria@example.com"},
		{ID: "2", FirstName: "Tom", LastName: "Baker", FullName: "Tom Baker"},
	}

	if got := ids(Search(records, "gonzalez", 10)); len(got) != 1 || got[0] != "1" {
		t.Errorf("search by last name: got %v", got)
	}
	if got := ids(Search(records, "maria@example", 10)); len(got) != 1 || got[0] != "1" {
		t.Errorf("search by email: got %v", got)
	}
	if got := Search(records, "5551234", 10); len(got) != 0 {
		t.Errorf("expected no phone matches, got %v", ids(got))
	}
}

func TestSearch_RanksExactAboveFuzzy(t *testing.T) {
	records := []PersonRecord{
		person("fuzzy", "Jon", "Smithe", "jon@example.com"),
		person("exact", "John", "Smith", "john@example.com"),
		person("other", "Alice", "Walker", "alice@example.com"),
	}

	got := ids(Search(records, "john", 10))
	if len(got) == 0 || got[0] != "exact" {
		t.Fatalf("expected exact match first, got %v", got)
	}
	for _, id := range got {
		if id == "other" {
			t.Errorf("unrelated record matched: %v", got)
		}
	}
}

func TestSearch_LocationAgnostic(t *testing.T) {
	records := []PersonRecord{
		{ID: "1", FirstName: "X", LastName: "Y", Email: "someone.with.a.long.prefix.riverside@example.com"},
	}
	if got := Search(records, "riverside", 10); len(got) != 1 {
		t.Errorf("expected substring deep inside email to match, got %d", len(got))
	}
}

func TestSearch_DiacriticsFolded(t *testing.T) {
	records := []PersonRecord{person("1", "José", "Núñez", "")}
	if got := Search(records, "jose nunez", 10); len(got) != 1 {
		t.Errorf("expected folded match, got %d results", len(got))
	}
}

func TestSearch_PhoneFormats(t *testing.T) {
	r := person("1", "Pat", "Lee", "")
	r.Phone = strPtr("(555) 867-5309")
	records := []PersonRecord{r, person("2", "Sam", "Ng", "")}

	for _, q := range []string{"5558675309", "555-867-5309", "867.5309", "(555) 867"} {
		got := ids(Search(records, q, 10))
		if len(got) != 1 || got[0] != "1" {
			t.Errorf("query %q: got %v", q, got)
		}
	}
}

func TestSearch_DOBFormats(t *testing.T) {
	r := person("1", "Pat", "Lee", "")
	r.DOB = timePtr(time.Date(1985, 3, 7, 0, 0, 0, 0, time.UTC))
	records := []PersonRecord{r, person("2", "Sam", "Ng", "")}

	for _, q := range []string{"03/07/1985", "1985-03-07", "03071985", "19850307"} {
		got := ids(Search(records, q, 10))
		if len(got) != 1 || got[0] != "1" {
			t.Errorf("query %q: got %v", q, got)
		}
	}
}

func TestSearch_Limit(t *testing.T) {
	var records []PersonRecord
	for i := 0; i < 80; i++ {
		records = append(records, person(fmt.Sprint(i), "Chris", "Taylor", ""))
	}
	if got := Search(records, "chris", 0); len(got) != DefaultLimit {
		t.Errorf("default limit: got %d, want %d", len(got), DefaultLimit)
	}
	if got := Search(records, "chris", 5); len(got) != 5 {
		t.Errorf("explicit limit: got %d, want 5", len(got))
	}
}

func TestSearch_EmptyRecords(t *testing.T) {
	if got := Search(nil, "anything", 10); len(got) != 0 {
		t.Errorf("expected no results, got %d", len(got))
	}
	if got := Search(nil, "", 10); len(got) != 0 {
		t.Errorf("expected no recent results, got %d", len(got))
	}
}

func TestFieldScore(t *testing.T) {
	tests := []struct {
		pattern, text string
		want          float64
	}{
		{"smith", "smith", 0},
		{"smith", "blacksmithing", 0},
		{"smith", "smyth", 0.2},
		{"abcd", "", 1},
		{"", "anything", 0},
	}
	for _, tt := range tests {
		got := fieldScore([]rune(tt.pattern), []rune(tt.text))
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("fieldScore(%q, %q) = %v, want %v", tt.pattern, tt.text, got, tt.want)
		}
	}
}

func TestDigits(t *testing.T) {
	if got := Digits("+1 (555) 867-5309 ext. 2"); got != "155586753092" {
		t.Errorf("Digits = %q", got)
	}
}

func TestDOBTokens(t *testing.T) {
	dob := time.Date(2001, 12, 9, 0, 0, 0, 0, time.UTC)
	got := DOBTokens(&dob)
	want := []string{"12/09/2001", "2001-12-09", "12092001", "20011209"}
	if len(got) != len(want) {
		t.Fatalf("expected %d tokens, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %q, want %q", i, got[i], want[i])
		}
	}
	if DOBTokens(nil) != nil {
		t.Error("expected no tokens for nil DOB")
	}
}
