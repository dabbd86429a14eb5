package labtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

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

func codeStrings(codes []screening.SubstanceCode) []string {
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = string(c)
	}
	return out
}

// -- Test Repository --

type testRepoPG struct {
	pool *pgxpool.Pool
}

func NewTestRepo(pool *pgxpool.Pool) TestRepository {
	return &testRepoPG{pool: pool}
}

const testCols = `id, client_id, client_name, collection_date, test_type, screening_status,
	detected_substances, dilute, classification, decision, confirmation_substances,
	confirmation_results, finalized_at, created_at, updated_at`

func scanTest(row pgx.Row) (*TestRecord, error) {
	var t TestRecord
	var detected, confirmation []string
	var classification, results []byte
	var decision string
	err := row.Scan(&t.ID, &t.ClientID, &t.ClientName, &t.CollectionDate, &t.TestType, &t.ScreeningStatus,
		&detected, &t.Dilute, &classification, &decision, &confirmation,
		&results, &t.FinalizedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if t.DetectedSubstances, err = screening.ParseSubstanceSet(detected); err != nil {
		return nil, fmt.Errorf("test %s detected_substances: %w", t.ID, err)
	}
	if t.Decision, err = screening.ParseDecision(decision); err != nil {
		return nil, fmt.Errorf("test %s: %w", t.ID, err)
	}
	for _, raw := range confirmation {
		code, err := screening.ParseSubstance(raw)
		if err != nil {
			return nil, fmt.Errorf("test %s confirmation_substances: %w", t.ID, err)
		}
		t.ConfirmationSubstances = append(t.ConfirmationSubstances, code)
	}
	if len(classification) > 0 {
		var c screening.Classification
		if err := json.Unmarshal(classification, &c); err != nil {
			return nil, fmt.Errorf("test %s classification: %w", t.ID, err)
		}
		t.Classification = &c
	}
	if len(results) > 0 {
		if err := json.Unmarshal(results, &t.ConfirmationResults); err != nil {
			return nil, fmt.Errorf("test %s confirmation_results: %w", t.ID, err)
		}
	}
	return &t, nil
}

// encodeTest renders the JSONB columns. A nil classification is stored as NULL.
func encodeTest(t *TestRecord) (classification, results []byte, err error) {
	if t.Classification != nil {
		if classification, err = json.Marshal(t.Classification); err != nil {
			return nil, nil, err
		}
	}
	list := t.ConfirmationResults
	if list == nil {
		list = []screening.ConfirmationResult{}
	}
	results, err = json.Marshal(list)
	return classification, results, err
}

func (r *testRepoPG) Create(ctx context.Context, t *TestRecord) error {
	t.ID = uuid.New()
	classification, results, err := encodeTest(t)
	if err != nil {
		return fmt.Errorf("test create: %w", err)
	}
	return connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO tests (
			id, client_id, client_name, collection_date, test_type, screening_status,
			detected_substances, dilute, classification, decision, confirmation_substances,
			confirmation_results, finalized_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at, updated_at`,
		t.ID, t.ClientID, t.ClientName, t.CollectionDate, t.TestType, t.ScreeningStatus,
		substanceStrings(t.DetectedSubstances), t.Dilute, classification, string(t.Decision),
		codeStrings(t.ConfirmationSubstances), results, t.FinalizedAt,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *testRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*TestRecord, error) {
	t, err := scanTest(connFor(ctx, r.pool).QueryRow(ctx, `SELECT `+testCols+` FROM tests WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

func (r *testRepoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*TestRecord, error) {
	t, err := scanTest(connFor(ctx, r.pool).QueryRow(ctx, `SELECT `+testCols+` FROM tests WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

// Update refuses to touch a row that is already finalized.
func (r *testRepoPG) Update(ctx context.Context, t *TestRecord) error {
	classification, results, err := encodeTest(t)
	if err != nil {
		return fmt.Errorf("test update: %w", err)
	}
	err = connFor(ctx, r.pool).QueryRow(ctx, `
		UPDATE tests SET
			screening_status=$2, detected_substances=$3, dilute=$4, classification=$5, decision=$6,
			confirmation_substances=$7, confirmation_results=$8, finalized_at=$9, updated_at=NOW()
		WHERE id = $1 AND finalized_at IS NULL
		RETURNING updated_at`,
		t.ID, t.ScreeningStatus, substanceStrings(t.DetectedSubstances), t.Dilute, classification,
		string(t.Decision), codeStrings(t.ConfirmationSubstances), results, t.FinalizedAt,
	).Scan(&t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrFinalized
	}
	return err
}

func (r *testRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*TestRecord, int, error) {
	var where []string
	var args []interface{}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("screening_status = $%d", len(args)))
	}
	if f.ClientID != uuid.Nil {
		args = append(args, f.ClientID)
		where = append(where, fmt.Sprintf("client_id = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	q := connFor(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM tests`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := q.Query(ctx, fmt.Sprintf(`SELECT `+testCols+` FROM tests%s ORDER BY collection_date DESC LIMIT $%d OFFSET $%d`,
		clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	tests, err := collectTests(rows)
	return tests, total, err
}

func (r *testRepoPG) ListCandidates(ctx context.Context, statuses []string) ([]screening.CandidateTest, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx, `
		SELECT t.id, t.client_name, t.collection_date, t.test_type, t.screening_status,
			COALESCE(c.headshot_url, '')
		FROM tests t
		JOIN clients c ON c.id = t.client_id
		WHERE t.screening_status = ANY($1)
		ORDER BY t.collection_date DESC`, statuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []screening.CandidateTest
	for rows.Next() {
		var id uuid.UUID
		var c screening.CandidateTest
		if err := rows.Scan(&id, &c.ClientName, &c.CollectionDate, &c.TestType, &c.ScreeningStatus, &c.ClientHeadshot); err != nil {
			return nil, err
		}
		c.ID = id.String()
		out = append(out, c)
	}
	return out, rows.Err()
}

func collectTests(rows pgx.Rows) ([]*TestRecord, error) {
	defer rows.Close()
	var out []*TestRecord
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func substanceStrings(s screening.SubstanceSet) []string {
	return codeStrings(s.Sorted())
}

// -- Snapshot Repository --

type snapshotRepoPG struct {
	pool *pgxpool.Pool
}

func NewSnapshotRepo(pool *pgxpool.Pool) SnapshotRepository {
	return &snapshotRepoPG{pool: pool}
}

func scanSnapshot(row pgx.Row) (*MedicationsSnapshot, error) {
	var s MedicationsSnapshot
	var meds []byte
	if err := row.Scan(&s.TestID, &s.Version, &meds, &s.CapturedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(meds, &s.Medications); err != nil {
		return nil, fmt.Errorf("snapshot %s v%d: %w", s.TestID, s.Version, err)
	}
	return &s, nil
}

func (r *snapshotRepoPG) Append(ctx context.Context, testID uuid.UUID, meds []screening.MedicationSnapshot) (*MedicationsSnapshot, error) {
	if meds == nil {
		meds = []screening.MedicationSnapshot{}
	}
	payload, err := json.Marshal(meds)
	if err != nil {
		return nil, fmt.Errorf("snapshot encode: %w", err)
	}
	return scanSnapshot(connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO medication_snapshots (test_id, version, medications)
		SELECT $1, COALESCE(MAX(version), 0) + 1, $2
		FROM medication_snapshots WHERE test_id = $1
		RETURNING test_id, version, medications, captured_at`,
		testID, payload,
	))
}

func (r *snapshotRepoPG) Latest(ctx context.Context, testID uuid.UUID) (*MedicationsSnapshot, error) {
	s, err := scanSnapshot(connFor(ctx, r.pool).QueryRow(ctx, `
		SELECT test_id, version, medications, captured_at
		FROM medication_snapshots WHERE test_id = $1
		ORDER BY version DESC LIMIT 1`, testID))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

func (r *snapshotRepoPG) List(ctx context.Context, testID uuid.UUID) ([]*MedicationsSnapshot, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx, `
		SELECT test_id, version, medications, captured_at
		FROM medication_snapshots WHERE test_id = $1
		ORDER BY version`, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*MedicationsSnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
