package patient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/schemedesk/schemedesk/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const patientCols = `id, name, age, gender, address, contact, medical_history, income, category,
	insurance_status, disease, additional_notes, recommended_schemes, registered_by, facility_name, created_at`

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.normalize()
	recommended, err := json.Marshal(p.RecommendedSchemes)
	if err != nil {
		return fmt.Errorf("encode recommended schemes: %w", err)
	}
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patients (id, name, age, gender, address, contact, medical_history, income, category,
			insurance_status, disease, additional_notes, recommended_schemes, registered_by, facility_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at`,
		p.ID, p.Name, p.Age, p.Gender, p.Address, p.Contact, p.MedicalHistory, p.Income, p.Category,
		p.InsuranceStatus, p.Disease, p.AdditionalNotes, recommended, p.RegisteredBy, p.FacilityName,
	).Scan(&p.CreatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	total, err := r.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+patientCols+` FROM patients
		ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *repoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&n)
	return n, err
}

func (r *repoPG) CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM patients WHERE created_at >= $1 AND created_at < $2`, from, to).Scan(&n)
	return n, err
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var recommended []byte
	if err := row.Scan(&p.ID, &p.Name, &p.Age, &p.Gender, &p.Address, &p.Contact, &p.MedicalHistory,
		&p.Income, &p.Category, &p.InsuranceStatus, &p.Disease, &p.AdditionalNotes, &recommended,
		&p.RegisteredBy, &p.FacilityName, &p.CreatedAt); err != nil {
		return nil, err
	}
	if len(recommended) > 0 {
		if err := json.Unmarshal(recommended, &p.RecommendedSchemes); err != nil {
			return nil, fmt.Errorf("decode recommended schemes for patient %s: %w", p.ID, err)
		}
	}
	p.normalize()
	return &p, nil
}
