package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/schemedesk/schemedesk/internal/platform/auth"
	"github.com/schemedesk/schemedesk/internal/platform/events"
)

type Service struct {
	repo      Repository
	publisher events.Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(repo Repository, publisher events.Publisher, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		logger:    logger.With().Str("component", "approval").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateApprovalRecords opens one pending facility-level record per scheme
// in in.Schemes and returns the records it inserted. Schemes that already
// have a record for the patient are skipped, so calling it again after a
// partial failure fills the gaps. Callers announce the returned records with
// PublishCreated once their transaction has committed.
func (s *Service) CreateApprovalRecords(ctx context.Context, in NewRecords) ([]*Record, error) {
	existing, err := s.repo.ListByPatient(ctx, in.PatientID)
	if err != nil {
		return nil, fmt.Errorf("list records for patient %s: %w", in.PatientID, err)
	}
	have := make(map[uuid.UUID]bool, len(existing))
	for _, rec := range existing {
		have[rec.SchemeID] = true
	}

	disease := strings.TrimSpace(in.Disease)
	if disease == "" {
		disease = DefaultDisease
	}
	date := s.now().Format(dateLayout)

	created := make([]*Record, 0, len(in.Schemes))
	for _, sc := range in.Schemes {
		if have[sc.ID] {
			continue
		}
		rec := &Record{
			PatientID:    in.PatientID,
			PatientName:  in.PatientName,
			SchemeID:     sc.ID,
			SchemeName:   sc.Name,
			Disease:      disease,
			FacilityName: in.FacilityName,
			Date:         date,
			CurrentLevel: LevelFacility,
			Status:       StatusPending,
			Notes:        sc.Description,
			History:      []HistoryEntry{},
		}
		if err := s.repo.Create(ctx, rec); err != nil {
			if errors.Is(err, ErrDuplicate) {
				continue
			}
			return nil, fmt.Errorf("create record for scheme %q: %w", sc.Name, err)
		}
		have[sc.ID] = true
		created = append(created, rec)
	}
	return created, nil
}

// PublishCreated emits approval.created for each record.
func (s *Service) PublishCreated(ctx context.Context, recs []*Record) {
	for _, rec := range recs {
		s.publish(ctx, events.TypeApprovalCreated, rec, "", "", "")
	}
}

// ListPendingByLevel returns the records waiting on level. Decided records
// never appear, even though they keep their last level.
func (s *Service) ListPendingByLevel(ctx context.Context, level Level) ([]*Record, error) {
	if !level.Valid() {
		return nil, ErrInvalidLevel
	}
	recs, err := s.repo.ListByLevel(ctx, level, StatusPending)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []*Record{}
	}
	return recs, nil
}

func (s *Service) GetRecord(ctx context.Context, id uuid.UUID) (*Record, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Record, error) {
	recs, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []*Record{}
	}
	return recs, nil
}

func (s *Service) ListRecords(ctx context.Context, limit, offset int) ([]*Record, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// Approve moves the record one tier up, or marks it approved at the top
// tier.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, comments string) (*Record, error) {
	return s.decide(ctx, id, func(rec *Record, actor string, at time.Time) {
		rec.approve(actor, strings.TrimSpace(comments), at)
	})
}

// Reject marks the record rejected at its current tier.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, reason string) (*Record, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}
	return s.decide(ctx, id, func(rec *Record, actor string, at time.Time) {
		rec.reject(actor, reason, at)
	})
}

func (s *Service) decide(ctx context.Context, id uuid.UUID, apply func(rec *Record, actor string, at time.Time)) (*Record, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status.Terminal() {
		return nil, ErrTerminal
	}
	if err := authorize(ctx, rec); err != nil {
		return nil, err
	}

	from := rec.CurrentLevel
	actor := actorFromContext(ctx)
	apply(rec, actor, s.now())
	if err := s.repo.Update(ctx, rec, from); err != nil {
		if errors.Is(err, ErrTerminal) || errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update record %s: %w", rec.ID, err)
	}

	last := rec.History[len(rec.History)-1]
	typ := events.TypeApprovalAdvanced
	switch rec.Status {
	case StatusApproved:
		typ = events.TypeApprovalApproved
	case StatusRejected:
		typ = events.TypeApprovalRejected
	}
	s.publish(ctx, typ, rec, from, actor, last.Comment)
	return rec, nil
}

// authorize allows the tier the record sits at, and super at any tier.
// Calls without a principal come from trusted internal callers.
func authorize(ctx context.Context, rec *Record) error {
	p := auth.PrincipalFromContext(ctx)
	if p == nil {
		return nil
	}
	if !auth.HasRole(p.Role, string(rec.CurrentLevel)) {
		return ErrForbiddenLevel
	}
	return nil
}

func actorFromContext(ctx context.Context) string {
	p := auth.PrincipalFromContext(ctx)
	switch {
	case p == nil:
		return "system"
	case p.Name != "":
		return p.Name
	case p.Email != "":
		return p.Email
	}
	return p.ID
}

func (s *Service) publish(ctx context.Context, typ string, rec *Record, from Level, actor, comment string) {
	e := events.New(typ)
	e.RecordID = rec.ID.String()
	e.PatientID = rec.PatientID.String()
	e.SchemeID = rec.SchemeID.String()
	e.SchemeName = rec.SchemeName
	e.FromLevel = string(from)
	e.Level = string(rec.CurrentLevel)
	e.Status = string(rec.Status)
	e.Actor = actor
	e.Comment = comment
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Error().Err(err).
			Str("event_type", typ).
			Str("record_id", e.RecordID).
			Msg("publish approval event")
	}
}
