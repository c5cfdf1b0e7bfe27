package scheme

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("scheme not found")

// Repository stores the scheme catalog. List returns the whole catalog in
// insertion order.
type Repository interface {
	Create(ctx context.Context, s *Scheme) error
	GetByID(ctx context.Context, id uuid.UUID) (*Scheme, error)
	List(ctx context.Context) ([]*Scheme, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
