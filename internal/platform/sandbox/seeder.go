// Package sandbox seeds demo data: the scheme catalog, one user per role,
// and optionally synthetic patients registered through the normal path.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/schemedesk/schemedesk/internal/domain/identity"
	"github.com/schemedesk/schemedesk/internal/domain/patient"
	"github.com/schemedesk/schemedesk/internal/domain/scheme"
	"github.com/schemedesk/schemedesk/internal/platform/auth"
)

// SeedConfig controls what gets seeded.
type SeedConfig struct {
	PatientCount int    `json:"patientCount"`
	Seed         int64  `json:"seed"`
	DemoPassword string `json:"-"`
}

const DefaultDemoPassword = "schemedesk-demo"

func DefaultSeedConfig() SeedConfig {
	return SeedConfig{DemoPassword: DefaultDemoPassword}
}

// SeedResult counts what a run inserted. Items that already existed are
// counted as skipped.
type SeedResult struct {
	Schemes  int           `json:"schemes"`
	Users    int           `json:"users"`
	Patients int           `json:"patients"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

type SchemeStore interface {
	ListSchemes(ctx context.Context) ([]*scheme.Scheme, error)
	CreateScheme(ctx context.Context, s *scheme.Scheme) error
}

type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*identity.User, error)
	CreateUser(ctx context.Context, u *identity.User, password string) error
}

type PatientRegistrar interface {
	Register(ctx context.Context, p *patient.Patient) (*patient.Detail, error)
}

// DemoUsers returns one account per role, matching the login page hints.
func DemoUsers() []*identity.User {
	return []*identity.User{
		{Email: "jane.smith@facility.com", Name: "Jane Smith", Role: auth.RoleFacility, Facility: "Primary Health Center Wardha", Hospital: "District Hospital Wardha", District: "Wardha", State: "Maharashtra"},
		{Email: "michael.johnson@hospital.com", Name: "Michael Johnson", Role: auth.RoleHospital, Hospital: "District Hospital Wardha", District: "Wardha", State: "Maharashtra"},
		{Email: "amanda.lee@district.com", Name: "Amanda Lee", Role: auth.RoleDistrict, District: "Wardha", State: "Maharashtra"},
		{Email: "robert.chen@state.com", Name: "Robert Chen", Role: auth.RoleState, State: "Maharashtra"},
		{Email: "sarah.williams@super.com", Name: "Sarah Williams", Role: auth.RoleSuper},
	}
}

// Seeder inserts demo data. Every step is idempotent: schemes are matched
// by name and users by email. Synthetic patients are always new.
type Seeder struct {
	schemes  SchemeStore
	users    UserStore
	patients PatientRegistrar
	config   SeedConfig
	logger   zerolog.Logger
}

func NewSeeder(schemes SchemeStore, users UserStore, patients PatientRegistrar, config SeedConfig, logger zerolog.Logger) *Seeder {
	if config.DemoPassword == "" {
		config.DemoPassword = DefaultDemoPassword
	}
	return &Seeder{
		schemes:  schemes,
		users:    users,
		patients: patients,
		config:   config,
		logger:   logger.With().Str("component", "seeder").Logger(),
	}
}

func (s *Seeder) Seed(ctx context.Context) (*SeedResult, error) {
	start := time.Now()
	result := &SeedResult{}

	if err := s.seedSchemes(ctx, result); err != nil {
		return nil, err
	}
	facility, err := s.seedUsers(ctx, result)
	if err != nil {
		return nil, err
	}
	if s.config.PatientCount > 0 {
		if err := s.seedPatients(ctx, facility, result); err != nil {
			return nil, err
		}
	}

	result.Duration = time.Since(start)
	s.logger.Info().
		Int("schemes", result.Schemes).
		Int("users", result.Users).
		Int("patients", result.Patients).
		Int("skipped", result.Skipped).
		Dur("duration", result.Duration).
		Msg("seed complete")
	return result, nil
}

func (s *Seeder) seedSchemes(ctx context.Context, result *SeedResult) error {
	existing, err := s.schemes.ListSchemes(ctx)
	if err != nil {
		return fmt.Errorf("list schemes: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, sc := range existing {
		have[sc.Name] = true
	}
	for _, sc := range scheme.DemoCatalog() {
		if have[sc.Name] {
			result.Skipped++
			continue
		}
		if err := s.schemes.CreateScheme(ctx, sc); err != nil {
			return fmt.Errorf("create scheme %q: %w", sc.Name, err)
		}
		result.Schemes++
	}
	return nil
}

// seedUsers returns the facility user so synthetic patients can be
// registered on its behalf.
func (s *Seeder) seedUsers(ctx context.Context, result *SeedResult) (*identity.User, error) {
	var facility *identity.User
	for _, u := range DemoUsers() {
		got, err := s.users.GetByEmail(ctx, u.Email)
		switch {
		case err == nil:
			result.Skipped++
			u = got
		case errors.Is(err, identity.ErrNotFound):
			if err := s.users.CreateUser(ctx, u, s.config.DemoPassword); err != nil {
				return nil, fmt.Errorf("create user %s: %w", u.Email, err)
			}
			result.Users++
		default:
			return nil, fmt.Errorf("look up user %s: %w", u.Email, err)
		}
		if u.Role == auth.RoleFacility && facility == nil {
			facility = u
		}
	}
	return facility, nil
}

func (s *Seeder) seedPatients(ctx context.Context, facility *identity.User, result *SeedResult) error {
	if facility != nil {
		p := facility.Principal()
		ctx = auth.WithPrincipal(ctx, &p)
	}
	gen := NewDataGenerator(s.config.Seed)
	for i := 0; i < s.config.PatientCount; i++ {
		if _, err := s.patients.Register(ctx, gen.GeneratePatient()); err != nil {
			return fmt.Errorf("register synthetic patient %d: %w", i+1, err)
		}
		result.Patients++
	}
	return nil
}
