package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/schemedesk/schemedesk/internal/platform/auth"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidUser        = errors.New("invalid user")
)

// User is a dashboard operator. The jurisdiction fields say which facility,
// hospital, district, and state the user acts for.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	Facility     string    `json:"facility,omitempty"`
	Hospital     string    `json:"hospital,omitempty"`
	District     string    `json:"district,omitempty"`
	State        string    `json:"state,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Principal converts u into the identity carried in its access token.
func (u *User) Principal() auth.Principal {
	return auth.Principal{
		ID:       u.ID.String(),
		Name:     u.Name,
		Email:    u.Email,
		Role:     u.Role,
		Facility: u.Facility,
		Hospital: u.Hospital,
		District: u.District,
		State:    u.State,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (u *User) validate(password string) error {
	u.Email = normalizeEmail(u.Email)
	u.Name = strings.TrimSpace(u.Name)
	switch {
	case u.Email == "" || !strings.Contains(u.Email, "@"):
		return fmt.Errorf("%w: a valid email is required", ErrInvalidUser)
	case u.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidUser)
	case !auth.ValidRole(u.Role):
		return fmt.Errorf("%w: unknown role %q", ErrInvalidUser, u.Role)
	case len(password) < 8:
		return fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidUser)
	}
	return nil
}
