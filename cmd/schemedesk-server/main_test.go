package main

import (
	"context"
	"encoding/json"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/schemedesk/schemedesk/internal/config"
	"github.com/schemedesk/schemedesk/internal/domain/identity"
	"github.com/schemedesk/schemedesk/internal/domain/scheme"
	"github.com/schemedesk/schemedesk/internal/platform/auth"
	"github.com/schemedesk/schemedesk/internal/platform/docstore"
	"github.com/schemedesk/schemedesk/internal/platform/events"
	"github.com/schemedesk/schemedesk/internal/platform/websocket"
)

type testServer struct {
	e        *echo.Echo
	services *services
	recorder *events.Recorder
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := &config.Config{
		Env:                 "production",
		StoreBackend:        config.StoreFile,
		JWTSigningKey:       "0123456789abcdef0123456789abcdef",
		JWTIssuer:           "schemedesk",
		TokenTTL:            time.Hour,
		RateLimitRPS:        1000,
		RateLimitBurst:      1000,
		EventsBackend:       config.EventsLog,
		DefaultFacilityName: "Primary Health Center",
	}
	logger := zerolog.Nop()

	b := docBackend(config.StoreFile, docstore.New(docstore.NewMemoryBlob(), logger))
	recorder := &events.Recorder{}
	hub := websocket.NewHub(logger)
	revocations := auth.NewTokenRevocationStore(time.Minute)
	t.Cleanup(revocations.Close)
	issuer := auth.NewTokenIssuer(cfg.SigningKey(), cfg.JWTIssuer, cfg.TokenTTL)
	svc := newServices(cfg, b, events.Fanout{recorder, hub}, issuer, revocations, logger)

	jwtCfg := auth.JWTConfig{
		Issuer:      cfg.JWTIssuer,
		SigningKey:  cfg.SigningKey(),
		Revocations: revocations,
		Skipper:     auth.AuthSkipper,
	}
	return &testServer{
		e:        newServer(cfg, b, svc, hub, jwtCfg, logger),
		services: svc,
		recorder: recorder,
	}
}

func (s *testServer) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, email string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/auth/login", "", `{"email":"`+email+`","password":"correct-horse"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d: %s", email, rec.Code, rec.Body.String())
	}
	var res struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil || res.Token == "" {
		t.Fatalf("login %s: no token in %s", email, rec.Body.String())
	}
	return res.Token
}

func (s *testServer) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for _, sc := range scheme.DemoCatalog() {
		if err := s.services.schemes.CreateScheme(ctx, sc); err != nil {
			t.Fatalf("CreateScheme: %v", err)
		}
	}
	for _, u := range []*identity.User{
		{Email: "facility@example.org", Name: "Facility Officer", Role: auth.RoleFacility, Facility: "PHC Wardha"},
		{Email: "hospital@example.org", Name: "Hospital Officer", Role: auth.RoleHospital},
	} {
		if err := s.services.identity.CreateUser(ctx, u, "correct-horse"); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodGet, "/health/db", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["backend"] != config.StoreFile || body["status"] != "healthy" {
		t.Errorf("unexpected health body: %v", body)
	}
}

func TestAPI_RequiresToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/patients", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Message == "" {
		t.Errorf("expected message body, got %s", rec.Body.String())
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers on error responses")
	}
}

func TestAPI_RegistrationThroughApproval(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)
	facility := s.login(t, "facility@example.org")
	hospital := s.login(t, "hospital@example.org")

	// Hospital users cannot register patients.
	body := `{"name":"Sunita Patil","age":30,"gender":"female","address":"12 Station Road, Wardha","contact":"9876543210","income":100000,"category":"obc","disease":"Anaemia"}`
	if rec := s.do(t, http.MethodPost, "/api/v1/patients", hospital, body); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for hospital registration, got %d", rec.Code)
	}

	rec := s.do(t, http.MethodPost, "/api/v1/patients", facility, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var detail struct {
		ID                 string `json:"id"`
		FacilityName       string `json:"facilityName"`
		RecommendedSchemes []struct {
			Name string `json:"name"`
		} `json:"recommendedSchemes"`
		Approvals []struct {
			ID           string `json:"id"`
			CurrentLevel string `json:"currentLevel"`
			Status       string `json:"status"`
		} `json:"approvals"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if detail.FacilityName != "PHC Wardha" {
		t.Errorf("expected registering user's facility, got %q", detail.FacilityName)
	}
	if len(detail.Approvals) == 0 || len(detail.Approvals) != len(detail.RecommendedSchemes) {
		t.Fatalf("expected one approval per recommendation, got %d approvals for %d schemes",
			len(detail.Approvals), len(detail.RecommendedSchemes))
	}
	first := detail.Approvals[0]
	if first.CurrentLevel != "facility" || first.Status != "pending" {
		t.Errorf("expected pending at facility, got %+v", first)
	}

	// Hospital cannot act while the record is still at the facility tier.
	if rec := s.do(t, http.MethodPost, "/api/v1/approvals/"+first.ID+"/approve", hospital, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for wrong level, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodPost, "/api/v1/approvals/"+first.ID+"/approve", facility, `{"comments":"documents verified"}`); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/api/v1/approvals", hospital, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var queue []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &queue); err != nil {
		t.Fatalf("decode queue: %v", err)
	}
	if len(queue) != 1 || queue[0].ID != first.ID {
		t.Errorf("expected the advanced record in the hospital queue, got %+v", queue)
	}

	if rec := s.do(t, http.MethodPost, "/api/v1/approvals/"+first.ID+"/reject", hospital, `{"reason":"  "}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank reason, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodPost, "/api/v1/approvals/"+first.ID+"/reject", hospital, `{"reason":"income proof missing"}`); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := s.do(t, http.MethodPost, "/api/v1/approvals/"+first.ID+"/approve", hospital, ""); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on terminal record, got %d", rec.Code)
	}

	types := s.recorder.Types()
	want := []string{events.TypeApprovalAdvanced, events.TypeApprovalRejected}
	tail := types[len(types)-2:]
	if tail[0] != want[0] || tail[1] != want[1] {
		t.Errorf("expected %v at the end of %v", want, types)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/stats/dashboard", facility, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var st struct {
		TotalPatients           int `json:"totalPatients"`
		PendingApprovals        int `json:"pendingApprovals"`
		RejectedRecommendations int `json:"rejectedRecommendations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if st.TotalPatients != 1 || st.PendingApprovals != len(detail.Approvals)-1 || st.RejectedRecommendations != 1 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestAPI_LogoutRevokesToken(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)
	token := s.login(t, "facility@example.org")

	if rec := s.do(t, http.MethodGet, "/api/v1/auth/me", token, ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodPost, "/api/v1/auth/logout", token, ""); rec.Code/100 != 2 {
		t.Fatalf("expected 2xx on logout, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/api/v1/auth/me", token, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", rec.Code)
	}
}

func TestAPI_UnknownPathIsNotFound(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)
	token := s.login(t, "hospital@example.org")

	for _, path := range []string{"/api/v1/no-such-thing", "/api/v1/approvals/x/y/z", "/api/v1/users/extra"} {
		if rec := s.do(t, http.MethodGet, path, token, ""); rec.Code != http.StatusNotFound {
			t.Errorf("GET %s: expected 404, got %d: %s", path, rec.Code, rec.Body.String())
		}
	}
	// Role checks still apply on the routes that carry them.
	if rec := s.do(t, http.MethodGet, "/api/v1/users", token, ""); rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-super user listing, got %d", rec.Code)
	}
}

func TestAPI_WrongPassword(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	rec := s.do(t, http.MethodPost, "/api/v1/auth/login", "", `{"email":"facility@example.org","password":"wrong-horse"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestMigrationsFS_Embedded(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS(""), ".")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected embedded migrations")
	}
}
