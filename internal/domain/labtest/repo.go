package labtest

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/clinicops/clinic/internal/domain/screening"
)

var ErrNotFound = errors.New("not found")

type TestRepository interface {
	Create(ctx context.Context, t *TestRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*TestRecord, error)
	// GetForUpdate locks the row for the surrounding transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*TestRecord, error)
	Update(ctx context.Context, t *TestRecord) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*TestRecord, int, error)
	// ListCandidates returns tests in statuses as match candidates, with the
	// client's headshot, newest collection first.
	ListCandidates(ctx context.Context, statuses []string) ([]screening.CandidateTest, error)
}

// SnapshotRepository is append-only.
type SnapshotRepository interface {
	// Append stores meds as the next version for testID.
	Append(ctx context.Context, testID uuid.UUID, meds []screening.MedicationSnapshot) (*MedicationsSnapshot, error)
	Latest(ctx context.Context, testID uuid.UUID) (*MedicationsSnapshot, error)
	List(ctx context.Context, testID uuid.UUID) ([]*MedicationsSnapshot, error)
}
