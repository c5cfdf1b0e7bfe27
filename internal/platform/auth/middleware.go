package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserRolesKey contextKey = "user_roles"
	PrincipalKey contextKey = "principal"
)

// Roles. The four approval tiers double as roles; super may act at any tier.
const (
	RoleFacility = "facility"
	RoleHospital = "hospital"
	RoleDistrict = "district"
	RoleState    = "state"
	RoleSuper    = "super"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r string) bool {
	switch r {
	case RoleFacility, RoleHospital, RoleDistrict, RoleState, RoleSuper:
		return true
	}
	return false
}

// Principal is the authenticated caller as seen by handlers.
type Principal struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Facility  string    `json:"facility,omitempty"`
	Hospital  string    `json:"hospital,omitempty"`
	District  string    `json:"district,omitempty"`
	State     string    `json:"state,omitempty"`
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

type Claims struct {
	jwt.RegisteredClaims
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Facility string `json:"facility,omitempty"`
	Hospital string `json:"hospital,omitempty"`
	District string `json:"district,omitempty"`
	State    string `json:"state,omitempty"`
}

func (c *Claims) principal() *Principal {
	p := &Principal{
		ID:       c.Subject,
		Name:     c.Name,
		Email:    c.Email,
		Role:     c.Role,
		Facility: c.Facility,
		Hospital: c.Hospital,
		District: c.District,
		State:    c.State,
		TokenID:  c.ID,
	}
	if c.ExpiresAt != nil {
		p.ExpiresAt = c.ExpiresAt.Time
	}
	return p
}

type JWTConfig struct {
	Issuer     string
	SigningKey []byte
	// Revocations, when set, rejects tokens whose jti was revoked by logout.
	Revocations *TokenRevocationStore
	// Skipper bypasses authentication for public paths.
	Skipper func(c echo.Context) bool
}

// ParseToken validates an HS256 token and returns its claims.
func ParseToken(cfg JWTConfig, tokenStr string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return cfg.SigningKey, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenSignatureInvalid
	}
	return claims, nil
}

func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}
			return authenticate(c, cfg, next)
		}
	}
}

// authorization returns the Authorization header. WebSocket upgrades may pass
// the token as ?access_token= instead since browsers cannot set headers on
// them.
func authorization(c echo.Context) string {
	req := c.Request()
	if h := req.Header.Get("Authorization"); h != "" {
		return h
	}
	if strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
		if tok := req.URL.Query().Get("access_token"); tok != "" {
			return "Bearer " + tok
		}
	}
	return ""
}

func authenticate(c echo.Context, cfg JWTConfig, next echo.HandlerFunc) error {
	authHeader := authorization(c)
	if authHeader == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}

	claims, err := ParseToken(cfg, strings.TrimSpace(parts[1]))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	if !ValidRole(claims.Role) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	if cfg.Revocations != nil && claims.ID != "" && cfg.Revocations.IsRevoked(claims.ID) {
		return echo.NewHTTPError(http.StatusUnauthorized, "token has been revoked")
	}

	setPrincipal(c, claims.principal())
	return next(c)
}

// DevAuthMiddleware treats requests without a bearer token as the development
// super user. A token, when present, is still validated.
func DevAuthMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}
			if authorization(c) == "" {
				setPrincipal(c, &Principal{
					ID:    "dev-user",
					Name:  "Development Admin",
					Email: "dev@localhost",
					Role:  RoleSuper,
				})
				return next(c)
			}
			return authenticate(c, cfg, next)
		}
	}
}

func setPrincipal(c echo.Context, p *Principal) {
	c.Set("user_id", p.ID)
	c.Set("user_role", p.Role)
	c.SetRequest(c.Request().WithContext(WithPrincipal(c.Request().Context(), p)))
}

// WithPrincipal stores p on ctx the way the auth middleware does.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	ctx = context.WithValue(ctx, PrincipalKey, p)
	ctx = context.WithValue(ctx, UserIDKey, p.ID)
	ctx = context.WithValue(ctx, UserRolesKey, []string{p.Role})
	return ctx
}

func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(PrincipalKey).(*Principal)
	return p
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(UserRolesKey).([]string)
	return roles
}

// RoleFromContext returns the caller's single role, or "".
func RoleFromContext(ctx context.Context) string {
	if roles := RolesFromContext(ctx); len(roles) > 0 {
		return roles[0]
	}
	return ""
}
