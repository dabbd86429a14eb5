package client

import (
	"testing"
	"time"

	"github.com/clinicops/clinic/internal/domain/screening"
)

func strPtr(s string) *string { return &s }

func TestClient_FullName(t *testing.T) {
	tests := []struct {
		c    Client
		want string
	}{
		{Client{FirstName: "Jane", LastName: "Doe"}, "Jane Doe"},
		{Client{FirstName: "Jane", MiddleName: strPtr("Q"), LastName: "Doe"}, "Jane Q Doe"},
		{Client{FirstName: "Jane", MiddleName: strPtr("  "), LastName: "Doe"}, "Jane Doe"},
		{Client{LastName: "Doe"}, "Doe"},
	}
	for _, tt := range tests {
		if got := tt.c.FullName(); got != tt.want {
			t.Errorf("FullName() = %q, want %q", got, tt.want)
		}
	}
}

func TestClient_Initials(t *testing.T) {
	c := Client{FirstName: "élise", LastName: "o'brien"}
	if got := c.Initials(); got != "ÉO" {
		t.Errorf("Initials() = %q", got)
	}
	if got := (&Client{FirstName: "Jane"}).Initials(); got != "J" {
		t.Errorf("Initials() = %q", got)
	}
}

func TestClient_ToPersonRecord(t *testing.T) {
	dob := time.Date(1990, 4, 2, 0, 0, 0, 0, time.UTC)
	updated := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := Client{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Phone: strPtr("555-0100"), DOB: &dob, UpdatedAt: updated}

	r := c.ToPersonRecord()
	if r.ID != c.ID.String() || r.FullName != "Jane Doe" || r.Initials != "JD" {
		t.Errorf("unexpected record %+v", r)
	}
	if r.DOB == nil || !r.DOB.Equal(dob) || r.UpdatedAt == nil || !r.UpdatedAt.Equal(updated) {
		t.Errorf("dates not carried: %+v", r)
	}
}

func TestMedication_Snapshot(t *testing.T) {
	m := &Medication{
		Name:                "Suboxone",
		DetectedAs:          screening.NewSubstanceSet(screening.SubstanceBuprenorphine),
		RequireConfirmation: true,
	}
	snap := m.Snapshot()
	m.DetectedAs[screening.SubstanceTHC] = struct{}{}

	if snap.DetectedAs.Len() != 1 || !snap.DetectedAs.Has(screening.SubstanceBuprenorphine) {
		t.Errorf("snapshot shares state with medication: %v", snap.DetectedAs.Sorted())
	}
	if !snap.RequireConfirmation || snap.Name != "Suboxone" {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if got := Snapshots([]*Medication{m, m}); len(got) != 2 {
		t.Errorf("expected 2 snapshots, got %d", len(got))
	}
}
