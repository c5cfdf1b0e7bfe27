package scheme

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/schemedesk/schemedesk/internal/platform/docstore"
)

type repoDoc struct {
	store *docstore.Store
}

func NewRepoDoc(store *docstore.Store) Repository {
	return &repoDoc{store: store}
}

func (r *repoDoc) Create(ctx context.Context, s *Scheme) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.CreatedAt = time.Now().UTC()
	s.normalize()
	return docstore.Mutate(ctx, r.store, docstore.KeySchemes, func(items []Scheme) ([]Scheme, error) {
		return append(items, *s), nil
	})
}

func (r *repoDoc) GetByID(ctx context.Context, id uuid.UUID) (*Scheme, error) {
	items, err := docstore.Load[Scheme](ctx, r.store, docstore.KeySchemes)
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

func (r *repoDoc) List(ctx context.Context) ([]*Scheme, error) {
	items, err := docstore.Load[Scheme](ctx, r.store, docstore.KeySchemes)
	if err != nil {
		return nil, err
	}
	out := make([]*Scheme, len(items))
	for i := range items {
		items[i].normalize()
		out[i] = &items[i]
	}
	return out, nil
}

func (r *repoDoc) Delete(ctx context.Context, id uuid.UUID) error {
	return docstore.Mutate(ctx, r.store, docstore.KeySchemes, func(items []Scheme) ([]Scheme, error) {
		for i := range items {
			if items[i].ID == id {
				return append(items[:i], items[i+1:]...), nil
			}
		}
		return nil, ErrNotFound
	})
}
