package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/customersms/customer-service/internal/core/domain"
	"github.com/customersms/customer-service/internal/core/ports"
	"github.com/customersms/customer-service/internal/infrastructure/http/handlers"
	"github.com/customersms/customer-service/internal/pkg/token"
)

const routerSecret = "0123456789abcdef0123456789abcdef"

type fakeAuth struct {
	tokens *token.Manager
}

func (f *fakeAuth) Login(_ context.Context, username, password string) (*ports.LoginResult, error) {
	if password != "secret1" {
		return nil, domain.ErrInvalidCredentials
	}
	u := &domain.User{ID: "u001", Username: username, Status: domain.StatusActive}
	roles := []domain.RoleName{domain.RoleCustomer}
	tok, exp, err := f.tokens.Issue(&domain.Principal{UserID: u.ID, Username: u.Username, Roles: roles})
	if err != nil {
		return nil, err
	}
	return &ports.LoginResult{Token: tok, ExpiresAt: exp, User: u, Roles: roles}, nil
}

func (f *fakeAuth) Register(context.Context, ports.RegisterInput) (*ports.UserDetail, error) {
	return nil, fmt.Errorf("register: %w", domain.ErrDuplicateEmail)
}

func (f *fakeAuth) InitDefaultRoles(context.Context) error { return nil }

type fakeUsers struct {
	ports.UserService
	listErr error
}

func (f *fakeUsers) GetProfile(_ context.Context, id string) (*ports.UserDetail, error) {
	return &ports.UserDetail{User: &domain.User{ID: id, Username: "alice", Status: domain.StatusActive}}, nil
}

func (f *fakeUsers) ListUsers(_ context.Context, _ string, page ports.PageRequest) (*ports.Page[*ports.UserDetail], error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return ports.NewPage[*ports.UserDetail](nil, page, 0), nil
}

type fakeRoles struct{ ports.RoleService }

type fakeGrants struct{ ports.RoleAssignmentService }

func (fakeGrants) RevokeRole(context.Context, string, string) error {
	return fmt.Errorf("revoke role: %w", domain.ErrLastAdminProtected)
}

type testServer struct {
	e      *echo.Echo
	tokens *token.Manager
	users  *fakeUsers
	logs   *bytes.Buffer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	tokens := token.NewManager(routerSecret, time.Minute, "test")
	users := &fakeUsers{}
	logs := &bytes.Buffer{}
	reg := prometheus.NewRegistry()

	e := NewRouter(Deps{
		Auth:     &fakeAuth{tokens: tokens},
		Users:    users,
		Roles:    fakeRoles{},
		Grants:   fakeGrants{},
		Verifier: tokens,
		Readiness: map[string]handlers.Check{
			"mongodb": func(context.Context) error { return nil },
		},
		Logger:     zerolog.New(logs),
		Registerer: reg,
		Gatherer:   reg,
	})
	return &testServer{e: e, tokens: tokens, users: users, logs: logs}
}

func (s *testServer) bearer(t *testing.T, roles ...domain.RoleName) string {
	t.Helper()
	tok, _, err := s.tokens.Issue(&domain.Principal{UserID: "u001", Username: "alice", Roles: roles})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return "Bearer " + tok
}

func (s *testServer) do(method, target, auth, body string) (*httptest.ResponseRecorder, map[string]any) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	var env map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestRouter_HealthIsPublic(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/health", "/health/ready"} {
		rec, _ := s.do(http.MethodGet, path, "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodGet, "/health", "", "")

	rec, _ := s.do(http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "customersms_requests_total") {
		t.Fatalf("request metrics missing from /metrics output")
	}
}

func TestRouter_LoginThenProfile(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(http.MethodPost, "/api/v1/auth/login", "", `{"username":"alice","password":"secret1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	data, _ := env["data"].(map[string]any)
	tok, _ := data["token"].(string)

	rec, env = s.do(http.MethodGet, "/api/v1/auth/profile", "Bearer "+tok, "")
	if rec.Code != http.StatusOK || env["success"] != true {
		t.Fatalf("profile: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Customer tokens may use the customer area but not the admin one.
	if rec, _ := s.do(http.MethodGet, "/api/v1/customer/profile", "Bearer "+tok, ""); rec.Code != http.StatusOK {
		t.Fatalf("customer profile: expected 200, got %d", rec.Code)
	}
	if rec, _ := s.do(http.MethodGet, "/api/v1/admin/users", "Bearer "+tok, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("admin users: expected 403, got %d", rec.Code)
	}
}

func TestRouter_ErrorEnvelope(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name    string
		method  string
		path    string
		auth    string
		body    string
		status  int
		message string
	}{
		{"bad credentials", http.MethodPost, "/api/v1/auth/login", "", `{"username":"alice","password":"nope"}`, http.StatusUnauthorized, domain.ErrInvalidCredentials.Error()},
		{"stale token on login is ignored", http.MethodPost, "/api/v1/auth/login", "Bearer garbage", `{"username":"alice","password":"nope"}`, http.StatusUnauthorized, domain.ErrInvalidCredentials.Error()},
		{"anonymous admin", http.MethodGet, "/api/v1/admin/users", "", "", http.StatusUnauthorized, domain.ErrUnauthenticated.Error()},
		{"garbage token", http.MethodGet, "/api/v1/auth/profile", "Bearer garbage", "", http.StatusUnauthorized, domain.ErrUnauthenticated.Error()},
		{"staff on admin", http.MethodGet, "/api/v1/admin/users", "staff", "", http.StatusForbidden, domain.ErrForbidden.Error()},
		{"duplicate email", http.MethodPost, "/api/v1/auth/register", "", `{"username":"bob","email":"b@example.com","password":"secret1","fullName":"Bob"}`, http.StatusBadRequest, domain.ErrDuplicateEmail.Error()},
		{"last admin", http.MethodDelete, "/api/v1/user-roles/user/u001/role/r1", "admin", "", http.StatusConflict, domain.ErrLastAdminProtected.Error()},
		{"unknown route", http.MethodGet, "/api/v1/nope", "admin", "", http.StatusNotFound, "Not Found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := tt.auth
			switch auth {
			case "admin":
				auth = s.bearer(t, domain.RoleAdmin)
			case "staff":
				auth = s.bearer(t, domain.RoleStaff)
			}

			rec, env := s.do(tt.method, tt.path, auth, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if env["success"] != false || env["message"] != tt.message {
				t.Fatalf("unexpected envelope: %v", env)
			}
			if _, ok := env["timestamp"].(string); !ok {
				t.Fatalf("timestamp missing: %v", env)
			}
		})
	}
}

func TestRouter_ValidationErrorsListFields(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(http.MethodPost, "/api/v1/auth/register", "", `{"username":"x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	errs, ok := env["errors"].([]any)
	if !ok || len(errs) < 4 {
		t.Fatalf("expected field errors, got %v", env)
	}
	first, _ := errs[0].(map[string]any)
	if first["field"] == "" || first["message"] == "" {
		t.Fatalf("unexpected field error: %v", first)
	}
}

func TestRouter_UnexpectedErrorIsHidden(t *testing.T) {
	s := newTestServer(t)
	s.users.listErr = errors.New("mongo: connection reset by peer")

	rec, env := s.do(http.MethodGet, "/api/v1/admin/users", s.bearer(t, domain.RoleAdmin), "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if env["message"] != "internal server error" {
		t.Fatalf("internal detail leaked: %v", env)
	}
	if !strings.Contains(s.logs.String(), "connection reset by peer") {
		t.Fatalf("expected the cause to be logged, got %s", s.logs.String())
	}
}

func TestRouter_RoleRegistryErrorIs500(t *testing.T) {
	c := echo.New().NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder())

	err := fmt.Errorf("%w: %w", domain.ErrRoleRegistry, domain.ErrRoleNotFound)
	code, env := resolveError(err, zerolog.Nop(), c)
	if code != http.StatusInternalServerError || env.Message != "internal server error" {
		t.Fatalf("expected generic 500, got %d %q", code, env.Message)
	}
}

func TestRouter_OverlongPasswordIs400(t *testing.T) {
	s := newTestServer(t)

	body := `{"username":"bob","email":"b@example.com","password":"` + strings.Repeat("ü", 40) + `","fullName":"Bob"}`
	rec, env := s.do(http.MethodPost, "/api/v1/auth/register", "", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	errs, _ := env["errors"].([]any)
	if len(errs) != 1 || errs[0].(map[string]any)["field"] != "password" {
		t.Fatalf("expected a password field error, got %v", env)
	}

	c := echo.New().NewContext(httptest.NewRequest(http.MethodPut, "/", nil), httptest.NewRecorder())
	code, _ := resolveError(domain.NewValidationError("newPassword", "newPassword must be at most 72 bytes"), zerolog.Nop(), c)
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a service-side password violation, got %d", code)
	}
}
