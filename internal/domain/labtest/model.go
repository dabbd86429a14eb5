package labtest

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/clinic/internal/domain/screening"
)

// TestRecord maps to the tests table.
type TestRecord struct {
	ID                     uuid.UUID                      `db:"id" json:"id"`
	ClientID               uuid.UUID                      `db:"client_id" json:"client_id"`
	ClientName             string                         `db:"client_name" json:"client_name"`
	CollectionDate         time.Time                      `db:"collection_date" json:"collection_date"`
	TestType               string                         `db:"test_type" json:"test_type"`
	ScreeningStatus        string                         `db:"screening_status" json:"screening_status"`
	DetectedSubstances     screening.SubstanceSet         `db:"detected_substances" json:"detected_substances"`
	Dilute                 bool                           `db:"dilute" json:"dilute"`
	Classification         *screening.Classification      `db:"classification" json:"classification,omitempty"`
	Decision               screening.Decision             `db:"decision" json:"decision"`
	ConfirmationSubstances []screening.SubstanceCode      `db:"confirmation_substances" json:"confirmation_substances"`
	ConfirmationResults    []screening.ConfirmationResult `db:"confirmation_results" json:"confirmation_results"`
	FinalizedAt            *time.Time                     `db:"finalized_at" json:"finalized_at,omitempty"`
	CreatedAt              time.Time                      `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time                      `db:"updated_at" json:"updated_at"`
}

// IsFinalized reports whether the result has been released. A finalized
// record and its medications snapshot never change again.
func (t *TestRecord) IsFinalized() bool {
	return t.FinalizedAt != nil
}

// MedicationsSnapshot is one append-only version of the medications a test
// was classified against.
type MedicationsSnapshot struct {
	TestID      uuid.UUID                      `db:"test_id" json:"test_id"`
	Version     int                            `db:"version" json:"version"`
	Medications []screening.MedicationSnapshot `db:"medications" json:"medications"`
	CapturedAt  time.Time                      `db:"captured_at" json:"captured_at"`
}

// ListFilter narrows ListTests. Zero values match everything.
type ListFilter struct {
	Status   string
	ClientID uuid.UUID
}
