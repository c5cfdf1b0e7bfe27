package scheme

import (
	"context"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateScheme(ctx context.Context, sc *Scheme) error {
	if err := sc.Validate(); err != nil {
		return err
	}
	return s.repo.Create(ctx, sc)
}

func (s *Service) GetScheme(ctx context.Context, id uuid.UUID) (*Scheme, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListSchemes(ctx context.Context) ([]*Scheme, error) {
	return s.repo.List(ctx)
}

func (s *Service) DeleteScheme(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// Eligible runs the matcher over the current catalog.
func (s *Service) Eligible(ctx context.Context, a Attributes) ([]*Scheme, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	catalog, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return Match(a, catalog), nil
}
