package client

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

type ClientRepository interface {
	Create(ctx context.Context, c *Client) error
	GetByID(ctx context.Context, id uuid.UUID) (*Client, error)
	Update(ctx context.Context, c *Client) error
	List(ctx context.Context, limit, offset int) ([]*Client, int, error)
	// ListAll returns every client, most recently updated first.
	ListAll(ctx context.Context) ([]*Client, error)
}

type MedicationRepository interface {
	Create(ctx context.Context, m *Medication) error
	GetByID(ctx context.Context, id uuid.UUID) (*Medication, error)
	Update(ctx context.Context, m *Medication) error
	// ListByClient filters by status unless status is empty.
	ListByClient(ctx context.Context, clientID uuid.UUID, status string) ([]*Medication, error)
}
