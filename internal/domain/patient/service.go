package patient

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/schemedesk/schemedesk/internal/domain/approval"
	"github.com/schemedesk/schemedesk/internal/domain/scheme"
	"github.com/schemedesk/schemedesk/internal/platform/auth"
)

// SchemeCatalog supplies the schemes a new patient is matched against.
type SchemeCatalog interface {
	ListSchemes(ctx context.Context) ([]*scheme.Scheme, error)
}

// ApprovalCreator opens and reads approval records.
type ApprovalCreator interface {
	CreateApprovalRecords(ctx context.Context, in approval.NewRecords) ([]*approval.Record, error)
	PublishCreated(ctx context.Context, recs []*approval.Record)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*approval.Record, error)
}

// TxRunner runs fn atomically where the backend supports it.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Detail is a patient together with its approval records.
type Detail struct {
	*Patient
	Approvals []*approval.Record `json:"approvals"`
}

type Service struct {
	repo            Repository
	catalog         SchemeCatalog
	approvals       ApprovalCreator
	tx              TxRunner
	defaultFacility string
	logger          zerolog.Logger
}

func NewService(repo Repository, catalog SchemeCatalog, approvals ApprovalCreator, tx TxRunner, defaultFacility string, logger zerolog.Logger) *Service {
	return &Service{
		repo:            repo,
		catalog:         catalog,
		approvals:       approvals,
		tx:              tx,
		defaultFacility: defaultFacility,
		logger:          logger.With().Str("component", "patient").Logger(),
	}
}

// Register validates p, snapshots the schemes it qualifies for, stores it,
// and opens one approval record per recommended scheme.
func (s *Service) Register(ctx context.Context, p *Patient) (*Detail, error) {
	p.trim()
	if err := p.Validate(); err != nil {
		return nil, err
	}

	catalog, err := s.catalog.ListSchemes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load scheme catalog: %w", err)
	}
	matched := scheme.Match(p.Attributes(), catalog)
	p.RecommendedSchemes = make([]RecommendedScheme, len(matched))
	for i, sc := range matched {
		p.RecommendedSchemes[i] = RecommendedScheme{ID: sc.ID, Name: sc.Name, Description: sc.Description}
	}

	p.ID = uuid.Nil
	p.FacilityName = s.defaultFacility
	p.RegisteredBy = ""
	if principal := auth.PrincipalFromContext(ctx); principal != nil {
		p.RegisteredBy = principal.ID
		if principal.Facility != "" {
			p.FacilityName = principal.Facility
		}
	}

	var created []*approval.Record
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, p); err != nil {
			return fmt.Errorf("create patient: %w", err)
		}
		created, err = s.approvals.CreateApprovalRecords(ctx, newRecords(p))
		return err
	})
	if err != nil {
		return nil, err
	}
	s.approvals.PublishCreated(ctx, created)

	s.logger.Info().
		Str("patient_id", p.ID.String()).
		Int("recommended", len(p.RecommendedSchemes)).
		Msg("patient registered")
	return &Detail{Patient: p, Approvals: created}, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Detail, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	recs, err := s.approvals.ListByPatient(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list approvals for patient %s: %w", id, err)
	}
	return &Detail{Patient: p, Approvals: recs}, nil
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// ReconcileResult summarizes a reconcile run.
type ReconcileResult struct {
	Patients int `json:"patients"`
	Created  int `json:"created"`
}

const reconcileBatch = 100

// Reconcile re-creates approval records missing for any patient's
// recommendation snapshot. It repairs registrations that stored the patient
// but failed part-way through its records.
func (s *Service) Reconcile(ctx context.Context) (ReconcileResult, error) {
	var res ReconcileResult
	for offset := 0; ; offset += reconcileBatch {
		batch, total, err := s.repo.List(ctx, reconcileBatch, offset)
		if err != nil {
			return res, fmt.Errorf("list patients: %w", err)
		}
		for _, p := range batch {
			res.Patients++
			if len(p.RecommendedSchemes) == 0 {
				continue
			}
			var created []*approval.Record
			err := s.tx.InTx(ctx, func(ctx context.Context) error {
				var err error
				created, err = s.approvals.CreateApprovalRecords(ctx, newRecords(p))
				return err
			})
			if err != nil {
				return res, fmt.Errorf("reconcile patient %s: %w", p.ID, err)
			}
			if len(created) > 0 {
				s.logger.Warn().
					Str("patient_id", p.ID.String()).
					Int("created", len(created)).
					Msg("re-created missing approval records")
				s.approvals.PublishCreated(ctx, created)
				res.Created += len(created)
			}
		}
		if len(batch) == 0 || offset+reconcileBatch >= total {
			return res, nil
		}
	}
}

func newRecords(p *Patient) approval.NewRecords {
	in := approval.NewRecords{
		PatientID:    p.ID,
		PatientName:  p.Name,
		Disease:      p.Disease,
		FacilityName: p.FacilityName,
		Schemes:      make([]approval.SchemeRef, len(p.RecommendedSchemes)),
	}
	for i, sc := range p.RecommendedSchemes {
		in.Schemes[i] = approval.SchemeRef{ID: sc.ID, Name: sc.Name, Description: sc.Description}
	}
	return in
}
