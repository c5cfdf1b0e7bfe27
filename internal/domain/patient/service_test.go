package patient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/schemedesk/schemedesk/internal/domain/approval"
	"github.com/schemedesk/schemedesk/internal/domain/scheme"
	"github.com/schemedesk/schemedesk/internal/platform/auth"
	"github.com/schemedesk/schemedesk/internal/platform/docstore"
	"github.com/schemedesk/schemedesk/internal/platform/events"
)

type mockRepo struct {
	order    []uuid.UUID
	patients map[uuid.UUID]*Patient
}

func newMockRepo() *mockRepo {
	return &mockRepo{patients: make(map[uuid.UUID]*Patient)}
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	m.patients[p.ID] = p
	m.order = append(m.order, p.ID)
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	var all []*Patient
	for _, id := range m.order {
		all = append(all, m.patients[id])
	}
	if offset >= len(all) {
		return nil, len(all), nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (m *mockRepo) Count(_ context.Context) (int, error) {
	return len(m.patients), nil
}

func (m *mockRepo) CountCreatedBetween(_ context.Context, from, to time.Time) (int, error) {
	n := 0
	for _, p := range m.patients {
		if !p.CreatedAt.Before(from) && p.CreatedAt.Before(to) {
			n++
		}
	}
	return n, nil
}

type stubCatalog struct {
	schemes []*scheme.Scheme
	err     error
}

func (s *stubCatalog) ListSchemes(context.Context) ([]*scheme.Scheme, error) {
	return s.schemes, s.err
}

type countingTx struct {
	calls int
}

func (t *countingTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

type testEnv struct {
	svc       *Service
	repo      *mockRepo
	approvals *approval.Service
	events    *events.Recorder
	tx        *countingTx
}

func newTestEnv() *testEnv {
	catalog := scheme.DemoCatalog()
	for _, s := range catalog {
		s.ID = uuid.New()
	}
	rec := &events.Recorder{}
	store := docstore.New(docstore.NewMemoryBlob(), zerolog.Nop())
	approvals := approval.NewService(approval.NewRepoDoc(store), rec, zerolog.Nop())
	repo := newMockRepo()
	tx := &countingTx{}
	return &testEnv{
		svc:       NewService(repo, &stubCatalog{schemes: catalog}, approvals, tx, "Primary Health Center", zerolog.Nop()),
		repo:      repo,
		approvals: approvals,
		events:    rec,
		tx:        tx,
	}
}

func validPatient() *Patient {
	return &Patient{
		Name:     "Lakshmi Iyer",
		Age:      32,
		Gender:   scheme.GenderFemale,
		Address:  "12 Temple Street, Madurai",
		Contact:  "9876543210",
		Income:   180000,
		Category: scheme.CategoryOBC,
		Disease:  "Anemia",
	}
}

func TestService_Register(t *testing.T) {
	env := newTestEnv()

	d, err := env.svc.Register(context.Background(), validPatient())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	want := []string{"Health For All", "Maternal Welfare Scheme", "Universal Health Coverage"}
	if len(d.RecommendedSchemes) != len(want) {
		t.Fatalf("expected %d recommendations, got %d", len(want), len(d.RecommendedSchemes))
	}
	for i, name := range want {
		if d.RecommendedSchemes[i].Name != name {
			t.Errorf("recommendation[%d]: expected %q, got %q", i, name, d.RecommendedSchemes[i].Name)
		}
	}
	if len(d.Approvals) != 3 {
		t.Fatalf("expected 3 approval records, got %d", len(d.Approvals))
	}
	for i, r := range d.Approvals {
		if r.CurrentLevel != approval.LevelFacility || r.Status != approval.StatusPending {
			t.Errorf("record %d: expected facility/pending, got %s/%s", i, r.CurrentLevel, r.Status)
		}
		if r.SchemeName != want[i] || r.PatientName != "Lakshmi Iyer" || r.Disease != "Anemia" {
			t.Errorf("record %d: unexpected denormalized fields %+v", i, r)
		}
		if r.FacilityName != "Primary Health Center" {
			t.Errorf("expected default facility, got %q", r.FacilityName)
		}
	}
	if env.tx.calls != 1 {
		t.Errorf("expected registration in one transaction, got %d", env.tx.calls)
	}
	if len(env.events.Events) != 3 || env.events.Events[0].Type != events.TypeApprovalCreated {
		t.Errorf("expected 3 created events, got %v", env.events.Types())
	}
}

func TestService_Register_UsesPrincipalFacility(t *testing.T) {
	env := newTestEnv()
	ctx := auth.WithPrincipal(context.Background(), &auth.Principal{ID: "u-17", Role: auth.RoleFacility, Facility: "CHC Nandpur"})

	d, err := env.svc.Register(ctx, validPatient())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if d.RegisteredBy != "u-17" || d.FacilityName != "CHC Nandpur" {
		t.Errorf("unexpected registration metadata: %q %q", d.RegisteredBy, d.FacilityName)
	}
	if d.Approvals[0].FacilityName != "CHC Nandpur" {
		t.Errorf("expected facility on record, got %q", d.Approvals[0].FacilityName)
	}
}

func TestService_Register_Validation(t *testing.T) {
	env := newTestEnv()
	p := &Patient{Name: "A", Age: -1, Gender: "unknown", Contact: "123", Address: "abc", Income: -5, Category: "ews"}

	_, err := env.svc.Register(context.Background(), p)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := []string{"name", "age", "gender", "contact", "address", "disease", "income", "category"}
	if len(verr.Fields) != len(want) {
		t.Fatalf("expected %v, got %v", want, verr.Fields)
	}
	for i := range want {
		if verr.Fields[i] != want[i] {
			t.Errorf("field[%d]: expected %q, got %q", i, want[i], verr.Fields[i])
		}
	}
	if len(env.repo.patients) != 0 {
		t.Error("invalid patient should not be stored")
	}
}

func TestService_Register_NoMatchesStillStores(t *testing.T) {
	env := newTestEnv()
	env.svc.catalog = &stubCatalog{}

	d, err := env.svc.Register(context.Background(), validPatient())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if len(d.RecommendedSchemes) != 0 || len(d.Approvals) != 0 {
		t.Errorf("expected no recommendations, got %d/%d", len(d.RecommendedSchemes), len(d.Approvals))
	}
	if len(env.repo.patients) != 1 {
		t.Error("expected patient to be stored")
	}
}

func TestService_Register_CatalogError(t *testing.T) {
	env := newTestEnv()
	env.svc.catalog = &stubCatalog{err: errors.New("db down")}

	if _, err := env.svc.Register(context.Background(), validPatient()); err == nil {
		t.Fatal("expected error")
	}
	if len(env.repo.patients) != 0 {
		t.Error("patient should not be stored when the catalog fails")
	}
}

func TestService_GetPatient(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	d, _ := env.svc.Register(ctx, validPatient())

	got, err := env.svc.GetPatient(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetPatient: %v", err)
	}
	if len(got.Approvals) != 3 {
		t.Errorf("expected 3 approvals, got %d", len(got.Approvals))
	}

	if _, err := env.svc.GetPatient(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_Reconcile(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	if _, err := env.svc.Register(ctx, validPatient()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	orphan := validPatient()
	orphan.RecommendedSchemes = []RecommendedScheme{{ID: uuid.New(), Name: "Health For All"}, {ID: uuid.New(), Name: "Universal Health Coverage"}}
	env.repo.Create(ctx, orphan)
	env.repo.Create(ctx, &Patient{Name: "No Match"})

	res, err := env.svc.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Patients != 3 || res.Created != 2 {
		t.Errorf("expected 3 patients / 2 created, got %+v", res)
	}

	recs, _ := env.approvals.ListByPatient(ctx, orphan.ID)
	if len(recs) != 2 {
		t.Errorf("expected 2 records for orphan, got %d", len(recs))
	}

	res, err = env.svc.Reconcile(ctx)
	if err != nil || res.Created != 0 {
		t.Errorf("expected second run to create nothing, got %+v %v", res, err)
	}
}
