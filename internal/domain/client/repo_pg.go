package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicops/clinic/internal/domain/screening"
	"github.com/clinicops/clinic/internal/platform/db"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func connFor(ctx context.Context, pool *pgxpool.Pool) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// -- Client Repository --

type clientRepoPG struct {
	pool *pgxpool.Pool
}

func NewClientRepo(pool *pgxpool.Pool) ClientRepository {
	return &clientRepoPG{pool: pool}
}

const clientCols = `id, first_name, middle_name, last_name, email, phone, dob, headshot_url, created_at, updated_at`

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.FirstName, &c.MiddleName, &c.LastName, &c.Email, &c.Phone,
		&c.DOB, &c.HeadshotURL, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *clientRepoPG) Create(ctx context.Context, c *Client) error {
	c.ID = uuid.New()
	return connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO clients (id, first_name, middle_name, last_name, email, phone, dob, headshot_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		c.ID, c.FirstName, c.MiddleName, c.LastName, c.Email, c.Phone, c.DOB, c.HeadshotURL,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (r *clientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Client, error) {
	c, err := scanClient(connFor(ctx, r.pool).QueryRow(ctx, `SELECT `+clientCols+` FROM clients WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

func (r *clientRepoPG) Update(ctx context.Context, c *Client) error {
	err := connFor(ctx, r.pool).QueryRow(ctx, `
		UPDATE clients SET
			first_name=$2, middle_name=$3, last_name=$4, email=$5, phone=$6, dob=$7, headshot_url=$8,
			updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		c.ID, c.FirstName, c.MiddleName, c.LastName, c.Email, c.Phone, c.DOB, c.HeadshotURL,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	return notFound(err)
}

func (r *clientRepoPG) List(ctx context.Context, limit, offset int) ([]*Client, int, error) {
	q := connFor(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM clients`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, `SELECT `+clientCols+` FROM clients ORDER BY last_name, first_name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	clients, err := collectClients(rows)
	return clients, total, err
}

func (r *clientRepoPG) ListAll(ctx context.Context) ([]*Client, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx, `SELECT `+clientCols+` FROM clients ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	return collectClients(rows)
}

func collectClients(rows pgx.Rows) ([]*Client, error) {
	defer rows.Close()
	var out []*Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// -- Medication Repository --

type medicationRepoPG struct {
	pool *pgxpool.Pool
}

func NewMedicationRepo(pool *pgxpool.Pool) MedicationRepository {
	return &medicationRepoPG{pool: pool}
}

const medicationCols = `id, client_id, name, detected_as, require_confirmation, status,
	start_date, end_date, notes, created_at, updated_at`

func substanceStrings(s screening.SubstanceSet) []string {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for i, c := range sorted {
		out[i] = string(c)
	}
	return out
}

func scanMedication(row pgx.Row) (*Medication, error) {
	var m Medication
	var detected []string
	err := row.Scan(&m.ID, &m.ClientID, &m.Name, &detected, &m.RequireConfirmation, &m.Status,
		&m.StartDate, &m.EndDate, &m.Notes, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if m.DetectedAs, err = screening.ParseSubstanceSet(detected); err != nil {
		return nil, fmt.Errorf("medication %s: %w", m.ID, err)
	}
	return &m, nil
}

func (r *medicationRepoPG) Create(ctx context.Context, m *Medication) error {
	m.ID = uuid.New()
	return connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO medications (id, client_id, name, detected_as, require_confirmation, status, start_date, end_date, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		m.ID, m.ClientID, m.Name, substanceStrings(m.DetectedAs), m.RequireConfirmation, m.Status,
		m.StartDate, m.EndDate, m.Notes,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
}

func (r *medicationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Medication, error) {
	m, err := scanMedication(connFor(ctx, r.pool).QueryRow(ctx, `SELECT `+medicationCols+` FROM medications WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return m, nil
}

func (r *medicationRepoPG) Update(ctx context.Context, m *Medication) error {
	err := connFor(ctx, r.pool).QueryRow(ctx, `
		UPDATE medications SET
			name=$2, detected_as=$3, require_confirmation=$4, status=$5, start_date=$6, end_date=$7, notes=$8,
			updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		m.ID, m.Name, substanceStrings(m.DetectedAs), m.RequireConfirmation, m.Status, m.StartDate, m.EndDate, m.Notes,
	).Scan(&m.UpdatedAt)
	return notFound(err)
}

func (r *medicationRepoPG) ListByClient(ctx context.Context, clientID uuid.UUID, status string) ([]*Medication, error) {
	query := `SELECT ` + medicationCols + ` FROM medications WHERE client_id = $1`
	args := []interface{}{clientID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY start_date DESC, created_at DESC`

	rows, err := connFor(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Medication
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
