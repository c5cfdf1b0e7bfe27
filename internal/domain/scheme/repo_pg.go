package scheme

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

const schemeCols = `id, name, description, criteria, benefits, documents, created_at`

func (r *repoPG) Create(ctx context.Context, s *Scheme) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.normalize()
	criteria, err := json.Marshal(s.EligibilityCriteria)
	if err != nil {
		return fmt.Errorf("encode criteria: %w", err)
	}
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO schemes (id, name, description, criteria, benefits, documents)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		s.ID, s.Name, s.Description, criteria, s.Benefits, s.Documents,
	).Scan(&s.CreatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Scheme, error) {
	s, err := scanScheme(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+schemeCols+` FROM schemes WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

func (r *repoPG) List(ctx context.Context) ([]*Scheme, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+schemeCols+` FROM schemes ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Scheme
	for rows.Next() {
		s, err := scanScheme(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM schemes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanScheme(row pgx.Row) (*Scheme, error) {
	var s Scheme
	var criteria []byte
	var created time.Time
	if err := row.Scan(&s.ID, &s.Name, &s.Description, &criteria, &s.Benefits, &s.Documents, &created); err != nil {
		return nil, err
	}
	if len(criteria) > 0 {
		if err := json.Unmarshal(criteria, &s.EligibilityCriteria); err != nil {
			return nil, fmt.Errorf("decode criteria for scheme %s: %w", s.ID, err)
		}
	}
	s.CreatedAt = created
	s.normalize()
	return &s, nil
}
