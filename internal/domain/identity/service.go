package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/schemedesk/schemedesk/internal/platform/auth"
)

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      *User     `json:"user"`
}

type Service struct {
	repo        Repository
	issuer      *auth.TokenIssuer
	revocations *auth.TokenRevocationStore
	cost        int
	// dummyHash is compared against when the email is unknown so both
	// failure paths cost one bcrypt comparison.
	dummyHash []byte
}

func NewService(repo Repository, issuer *auth.TokenIssuer, revocations *auth.TokenRevocationStore) *Service {
	return newService(repo, issuer, revocations, bcrypt.DefaultCost)
}

func newService(repo Repository, issuer *auth.TokenIssuer, revocations *auth.TokenRevocationStore, cost int) *Service {
	dummy, _ := bcrypt.GenerateFromPassword([]byte("schemedesk-unknown-user"), cost)
	return &Service{repo: repo, issuer: issuer, revocations: revocations, cost: cost, dummyHash: dummy}
}

// CreateUser hashes password and stores u.
func (s *Service) CreateUser(ctx context.Context, u *User, password string) error {
	if err := u.validate(password); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	return s.repo.Create(ctx, u)
}

// Login checks the credentials and issues an access token.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	u, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, exp, err := s.issuer.Issue(u.Principal())
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: exp, User: u}, nil
}

// Logout revokes the caller's token until it would have expired.
func (s *Service) Logout(ctx context.Context) error {
	p := auth.PrincipalFromContext(ctx)
	if p == nil {
		return ErrNotFound
	}
	if p.TokenID != "" {
		s.revocations.Revoke(p.TokenID, p.ExpiresAt)
	}
	return nil
}

// Me returns the caller's directory entry. Callers without one, such as the
// development principal, get a user built from their token.
func (s *Service) Me(ctx context.Context) (*User, error) {
	p := auth.PrincipalFromContext(ctx)
	if p == nil {
		return nil, ErrNotFound
	}
	if id, err := uuid.Parse(p.ID); err == nil {
		u, err := s.repo.GetByID(ctx, id)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return &User{
		Email:    p.Email,
		Name:     p.Name,
		Role:     p.Role,
		Facility: p.Facility,
		Hospital: p.Hospital,
		District: p.District,
		State:    p.State,
	}, nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetByEmail(ctx, normalizeEmail(email))
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.repo.List(ctx, limit, offset)
}
