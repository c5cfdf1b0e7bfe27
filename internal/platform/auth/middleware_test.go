package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func createTestToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func validClaims(role string) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti-1",
			Subject:   "user-123",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Name:     "Dr. Sharma",
		Email:    "district@example.com",
		Role:     role,
		District: "Pune",
		State:    "Maharashtra",
	}
}

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected HTTP %d error, got nil", code)
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func runMiddleware(mw echo.MiddlewareFunc, header string, handler echo.HandlerFunc) error {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	return mw(handler)(e.NewContext(req, rec))
}

func okHandler(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	err := runMiddleware(JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "", okHandler)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runMiddleware(JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), tt.header, okHandler)
			expectStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	tokenStr := createTestToken(t, validClaims(RoleDistrict), testSigningKey)

	var got *Principal
	err := runMiddleware(JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+tokenStr, func(c echo.Context) error {
		got = PrincipalFromContext(c.Request().Context())
		if uid := UserIDFromContext(c.Request().Context()); uid != "user-123" {
			t.Errorf("expected user_id=user-123, got %s", uid)
		}
		if role := RoleFromContext(c.Request().Context()); role != RoleDistrict {
			t.Errorf("expected role district, got %s", role)
		}
		return c.String(http.StatusOK, "ok")
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected principal on context")
	}
	if got.District != "Pune" || got.State != "Maharashtra" || got.TokenID != "jti-1" {
		t.Errorf("unexpected principal: %+v", got)
	}
	if got.ExpiresAt.IsZero() {
		t.Error("expected expiry to be carried")
	}
}

func TestJWTMiddleware_WrongKey(t *testing.T) {
	tokenStr := createTestToken(t, validClaims(RoleState), []byte("another-key"))
	err := runMiddleware(JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+tokenStr, okHandler)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	claims := validClaims(RoleFacility)
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	claims.IssuedAt = jwt.NewNumericDate(time.Now().Add(-2 * time.Hour))

	tokenStr := createTestToken(t, claims, testSigningKey)
	err := runMiddleware(JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+tokenStr, okHandler)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_UnknownRole(t *testing.T) {
	tokenStr := createTestToken(t, validClaims("physician"), testSigningKey)
	err := runMiddleware(JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+tokenStr, okHandler)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_IssuerMismatch(t *testing.T) {
	claims := validClaims(RoleHospital)
	claims.Issuer = "someone-else"
	tokenStr := createTestToken(t, claims, testSigningKey)
	err := runMiddleware(JWTMiddleware(JWTConfig{SigningKey: testSigningKey, Issuer: "schemedesk"}), "Bearer "+tokenStr, okHandler)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_RevokedToken(t *testing.T) {
	store := NewTokenRevocationStore(0)
	defer store.Close()
	store.Revoke("jti-1", time.Now().Add(time.Hour))

	tokenStr := createTestToken(t, validClaims(RoleState), testSigningKey)
	cfg := JWTConfig{SigningKey: testSigningKey, Revocations: store}
	err := runMiddleware(JWTMiddleware(cfg), "Bearer "+tokenStr, okHandler)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_Skipper(t *testing.T) {
	cfg := JWTConfig{SigningKey: testSigningKey, Skipper: func(echo.Context) bool { return true }}
	if err := runMiddleware(JWTMiddleware(cfg), "", okHandler); err != nil {
		t.Fatalf("expected skipped request to pass, got %v", err)
	}
}

func TestDevAuthMiddleware_NoToken(t *testing.T) {
	var got *Principal
	err := runMiddleware(DevAuthMiddleware(JWTConfig{SigningKey: testSigningKey}), "", func(c echo.Context) error {
		got = PrincipalFromContext(c.Request().Context())
		return c.String(http.StatusOK, "ok")
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ID != "dev-user" || got.Role != RoleSuper {
		t.Errorf("expected dev super principal, got %+v", got)
	}
}

func TestDevAuthMiddleware_ValidatesProvidedToken(t *testing.T) {
	err := runMiddleware(DevAuthMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer garbage", okHandler)
	expectStatus(t, err, http.StatusUnauthorized)

	tokenStr := createTestToken(t, validClaims(RoleFacility), testSigningKey)
	err = runMiddleware(DevAuthMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+tokenStr, func(c echo.Context) error {
		if role := RoleFromContext(c.Request().Context()); role != RoleFacility {
			t.Errorf("expected facility role from token, got %q", role)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer(testSigningKey, "schemedesk", time.Hour)
	fixed := time.Now().Truncate(time.Second)
	issuer.now = func() time.Time { return fixed }

	tokenStr, exp, err := issuer.Issue(Principal{ID: "u-1", Name: "Asha", Role: RoleFacility, Facility: "PHC Wagholi"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !exp.Equal(fixed.Add(time.Hour)) {
		t.Errorf("expected expiry %v, got %v", fixed.Add(time.Hour), exp)
	}

	claims, err := ParseToken(issuer.Config(), tokenStr)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.Subject != "u-1" || claims.Role != RoleFacility || claims.Facility != "PHC Wagholi" {
		t.Errorf("unexpected claims: %+v", claims)
	}
	if claims.ID == "" {
		t.Error("expected a jti")
	}

	other, _, err := issuer.Issue(Principal{ID: "u-1", Role: RoleFacility})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	otherClaims, err := ParseToken(issuer.Config(), other)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if otherClaims.ID == claims.ID {
		t.Error("expected a fresh jti per token")
	}
}

func TestJWTMiddleware_WebSocketQueryToken(t *testing.T) {
	tokenStr := createTestToken(t, validClaims(RoleHospital), testSigningKey)
	cfg := JWTConfig{SigningKey: testSigningKey}
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ws/approvals?access_token="+tokenStr, nil)
	req.Header.Set("Upgrade", "websocket")
	err := JWTMiddleware(cfg)(func(c echo.Context) error {
		if role := RoleFromContext(c.Request().Context()); role != RoleHospital {
			t.Errorf("expected hospital role from query token, got %q", role)
		}
		return nil
	})(e.NewContext(req, httptest.NewRecorder()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Plain requests must use the header.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/patients?access_token="+tokenStr, nil)
	err = JWTMiddleware(cfg)(okHandler)(e.NewContext(req, httptest.NewRecorder()))
	expectStatus(t, err, http.StatusUnauthorized)
}
