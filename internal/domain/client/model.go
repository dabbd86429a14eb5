package client

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/clinicops/clinic/internal/domain/screening"
	"github.com/clinicops/clinic/internal/platform/search"
)

// Client maps to the clients table.
type Client struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	FirstName   string     `db:"first_name" json:"first_name"`
	MiddleName  *string    `db:"middle_name" json:"middle_name,omitempty"`
	LastName    string     `db:"last_name" json:"last_name"`
	Email       string     `db:"email" json:"email"`
	Phone       *string    `db:"phone" json:"phone,omitempty"`
	DOB         *time.Time `db:"dob" json:"dob,omitempty"`
	HeadshotURL *string    `db:"headshot_url" json:"headshot_url,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName joins first, middle and last name, skipping blanks.
func (c *Client) FullName() string {
	parts := []string{c.FirstName}
	if c.MiddleName != nil {
		parts = append(parts, *c.MiddleName)
	}
	parts = append(parts, c.LastName)

	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// Initials is the upper-cased first letter of first and last name.
func (c *Client) Initials() string {
	var b strings.Builder
	for _, p := range []string{c.FirstName, c.LastName} {
		p = strings.TrimSpace(p)
		if r, _ := utf8.DecodeRuneInString(p); r != utf8.RuneError {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// ToPersonRecord projects the client onto the fields the search index reads.
func (c *Client) ToPersonRecord() search.PersonRecord {
	updated := c.UpdatedAt
	return search.PersonRecord{
		ID:        c.ID.String(),
		FirstName: c.FirstName,
		LastName:  c.LastName,
		FullName:  c.FullName(),
		Initials:  c.Initials(),
		Email:     c.Email,
		Phone:     c.Phone,
		DOB:       c.DOB,
		UpdatedAt: &updated,
	}
}

const (
	MedicationActive       = "active"
	MedicationDiscontinued = "discontinued"
)

// Medication maps to the medications table. Rows are never deleted;
// discontinuing one keeps it for history.
type Medication struct {
	ID                  uuid.UUID              `db:"id" json:"id"`
	ClientID            uuid.UUID              `db:"client_id" json:"client_id"`
	Name                string                 `db:"name" json:"name"`
	DetectedAs          screening.SubstanceSet `db:"detected_as" json:"detected_as"`
	RequireConfirmation bool                   `db:"require_confirmation" json:"require_confirmation"`
	Status              string                 `db:"status" json:"status"`
	StartDate           time.Time              `db:"start_date" json:"start_date"`
	EndDate             *time.Time             `db:"end_date" json:"end_date,omitempty"`
	Notes               *string                `db:"notes" json:"notes,omitempty"`
	CreatedAt           time.Time              `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time              `db:"updated_at" json:"updated_at"`
}

func (m *Medication) IsActive() bool {
	return m.Status == MedicationActive
}

// Snapshot copies the fields classification depends on.
func (m *Medication) Snapshot() screening.MedicationSnapshot {
	detected := make(screening.SubstanceSet, len(m.DetectedAs))
	for code := range m.DetectedAs {
		detected[code] = struct{}{}
	}
	return screening.MedicationSnapshot{
		Name:                m.Name,
		DetectedAs:          detected,
		RequireConfirmation: m.RequireConfirmation,
	}
}

// Snapshots freezes a medication list for classification.
func Snapshots(meds []*Medication) []screening.MedicationSnapshot {
	out := make([]screening.MedicationSnapshot, 0, len(meds))
	for _, m := range meds {
		out = append(out, m.Snapshot())
	}
	return out
}
