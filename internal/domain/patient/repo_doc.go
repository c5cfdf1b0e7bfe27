package patient

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
	now   func() time.Time
}

func NewRepoDoc(store *docstore.Store) Repository {
	return &repoDoc{store: store, now: func() time.Time { return time.Now().UTC() }}
}

func (r *repoDoc) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = r.now()
	p.normalize()
	return docstore.Mutate(ctx, r.store, docstore.KeyPatients, func(items []Patient) ([]Patient, error) {
		return append(items, *p), nil
	})
}

func (r *repoDoc) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	items, err := docstore.Load[Patient](ctx, r.store, docstore.KeyPatients)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ID == id {
			items[i].normalize()
			return &items[i], nil
		}
	}
	return nil, ErrNotFound
}

func (r *repoDoc) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	items, err := docstore.Load[Patient](ctx, r.store, docstore.KeyPatients)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*Patient, len(items))
	for i := range items {
		items[i].normalize()
		out[i] = &items[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return pagination.Slice(out, limit, offset), len(out), nil
}

func (r *repoDoc) Count(ctx context.Context) (int, error) {
	items, err := docstore.Load[Patient](ctx, r.store, docstore.KeyPatients)
	return len(items), err
}

func (r *repoDoc) CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error) {
	items, err := docstore.Load[Patient](ctx, r.store, docstore.KeyPatients)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range items {
		if !p.CreatedAt.Before(from) && p.CreatedAt.Before(to) {
			n++
		}
	}
	return n, nil
}
