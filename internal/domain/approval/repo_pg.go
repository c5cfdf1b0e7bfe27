package approval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/schemedesk/schemedesk/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const recordCols = `id, patient_id, patient_name, scheme_id, scheme_name, disease, facility_name,
	date, current_level, status, notes, rejection_reason, history, created_at, updated_at`

const uniqueViolation = "23505"

func (r *repoPG) Create(ctx context.Context, rec *Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.normalize()
	history, err := json.Marshal(rec.History)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	err = db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO approvals (id, patient_id, patient_name, scheme_id, scheme_name, disease, facility_name,
			date, current_level, status, notes, rejection_reason, history)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (patient_id, scheme_id) DO NOTHING
		RETURNING created_at, updated_at`,
		rec.ID, rec.PatientID, rec.PatientName, rec.SchemeID, rec.SchemeName, rec.Disease, rec.FacilityName,
		rec.Date, rec.CurrentLevel, rec.Status, rec.Notes, rec.RejectionReason, history,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	// A skipped conflict returns no row and leaves any enclosing
	// transaction usable.
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrDuplicate
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	rec, err := scanRecord(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+recordCols+` FROM approvals WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

func (r *repoPG) Update(ctx context.Context, rec *Record, from Level) error {
	history, err := json.Marshal(rec.History)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	conn := db.Conn(ctx, r.pool)
	tag, err := conn.Exec(ctx, `
		UPDATE approvals SET current_level = $2, status = $3, rejection_reason = $4, history = $5, updated_at = $6
		WHERE id = $1 AND status = $7 AND current_level = $8`,
		rec.ID, rec.CurrentLevel, rec.Status, rec.RejectionReason, history, rec.UpdatedAt,
		StatusPending, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM approvals WHERE id = $1)`, rec.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrTerminal
}

func (r *repoPG) ListByLevel(ctx context.Context, level Level, status Status) ([]*Record, error) {
	return r.query(ctx, `SELECT `+recordCols+` FROM approvals
		WHERE current_level = $1 AND status = $2 ORDER BY created_at, id`, level, status)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Record, error) {
	return r.query(ctx, `SELECT `+recordCols+` FROM approvals WHERE patient_id = $1 ORDER BY created_at, id`, patientID)
}

func (r *repoPG) CountByLevelAndStatus(ctx context.Context, level string, status Status) (int, error) {
	var n int
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM approvals WHERE current_level = $1 AND status = $2`, level, status).Scan(&n)
	return n, err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Record, int, error) {
	var total int
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM approvals`).Scan(&total); err != nil {
		return nil, 0, err
	}
	items, err := r.query(ctx, `SELECT `+recordCols+` FROM approvals
		ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`, limit, offset)
	return items, total, err
}

func (r *repoPG) query(ctx context.Context, sql string, args ...any) ([]*Record, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	var history []byte
	if err := row.Scan(&rec.ID, &rec.PatientID, &rec.PatientName, &rec.SchemeID, &rec.SchemeName,
		&rec.Disease, &rec.FacilityName, &rec.Date, &rec.CurrentLevel, &rec.Status, &rec.Notes,
		&rec.RejectionReason, &history, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &rec.History); err != nil {
			return nil, fmt.Errorf("decode history for record %s: %w", rec.ID, err)
		}
	}
	rec.normalize()
	return &rec, nil
}
