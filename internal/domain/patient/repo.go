package patient

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	// List returns patients newest first.
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
	Count(ctx context.Context) (int, error)
	// CountCreatedBetween counts patients with from <= created_at < to.
	CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error)
}
