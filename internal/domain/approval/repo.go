package approval

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("approval record not found")
	ErrTerminal       = errors.New("approval record is already decided")
	ErrForbiddenLevel = errors.New("record is not at your approval level")
	ErrReasonRequired = errors.New("a rejection reason is required")
	ErrInvalidLevel   = errors.New("unknown approval level")
	// ErrDuplicate is returned by Create when the patient already has a
	// record for the scheme.
	ErrDuplicate = errors.New("approval record already exists for patient and scheme")
)

type Repository interface {
	Create(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	// Update overwrites the mutable fields: level, status, rejection reason,
	// history, and updated_at. The write applies only while the stored record
	// is still pending at from; otherwise it returns ErrTerminal, or
	// ErrNotFound when the record is gone.
	Update(ctx context.Context, r *Record, from Level) error
	ListByLevel(ctx context.Context, level Level, status Status) ([]*Record, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Record, error)
	CountByLevelAndStatus(ctx context.Context, level string, status Status) (int, error)
	List(ctx context.Context, limit, offset int) ([]*Record, int, error)
}
