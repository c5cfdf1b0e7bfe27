package approval

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/schemedesk/schemedesk/internal/platform/docstore"
	"github.com/schemedesk/schemedesk/pkg/pagination"
)

type repoDoc struct {
	store *docstore.Store
}

func NewRepoDoc(store *docstore.Store) Repository {
	return &repoDoc{store: store}
}

func (r *repoDoc) Create(ctx context.Context, rec *Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	now := time.Now().UTC()
	rec.CreatedAt, rec.UpdatedAt = now, now
	rec.normalize()
	return docstore.Mutate(ctx, r.store, docstore.KeyApprovals, func(items []Record) ([]Record, error) {
		for i := range items {
			if items[i].PatientID == rec.PatientID && items[i].SchemeID == rec.SchemeID {
				return nil, ErrDuplicate
			}
		}
		return append(items, *rec), nil
	})
}

func (r *repoDoc) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	found, err := r.filter(ctx, func(rec *Record) bool { return rec.ID == id })
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	return found[0], nil
}

func (r *repoDoc) Update(ctx context.Context, rec *Record, from Level) error {
	return docstore.Mutate(ctx, r.store, docstore.KeyApprovals, func(items []Record) ([]Record, error) {
		for i := range items {
			if items[i].ID == rec.ID {
				if items[i].Status != StatusPending || items[i].CurrentLevel != from {
					return nil, ErrTerminal
				}
				items[i].CurrentLevel = rec.CurrentLevel
				items[i].Status = rec.Status
				items[i].RejectionReason = rec.RejectionReason
				items[i].History = rec.History
				items[i].UpdatedAt = rec.UpdatedAt
				return items, nil
			}
		}
		return nil, ErrNotFound
	})
}

func (r *repoDoc) ListByLevel(ctx context.Context, level Level, status Status) ([]*Record, error) {
	return r.filter(ctx, func(rec *Record) bool { return rec.CurrentLevel == level && rec.Status == status })
}

func (r *repoDoc) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Record, error) {
	return r.filter(ctx, func(rec *Record) bool { return rec.PatientID == patientID })
}

func (r *repoDoc) CountByLevelAndStatus(ctx context.Context, level string, status Status) (int, error) {
	found, err := r.filter(ctx, func(rec *Record) bool { return string(rec.CurrentLevel) == level && rec.Status == status })
	return len(found), err
}

func (r *repoDoc) List(ctx context.Context, limit, offset int) ([]*Record, int, error) {
	items, err := r.filter(ctx, func(*Record) bool { return true })
	if err != nil {
		return nil, 0, err
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return pagination.Slice(items, limit, offset), len(items), nil
}

// filter returns matching records in insertion order.
func (r *repoDoc) filter(ctx context.Context, keep func(*Record) bool) ([]*Record, error) {
	items, err := docstore.Load[Record](ctx, r.store, docstore.KeyApprovals)
	if err != nil {
		return nil, err
	}
	var out []*Record
	for i := range items {
		if keep(&items[i]) {
			items[i].normalize()
			out = append(out, &items[i])
		}
	}
	return out, nil
}
