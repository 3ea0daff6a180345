package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/customersms/customer-service/internal/core/domain"
	"github.com/customersms/customer-service/internal/core/ports"
)

type stubAuthService struct {
	loginFn    func(ctx context.Context, username, password string) (*ports.LoginResult, error)
	registerFn func(ctx context.Context, in ports.RegisterInput) (*ports.UserDetail, error)
}

func (s *stubAuthService) Login(ctx context.Context, username, password string) (*ports.LoginResult, error) {
	return s.loginFn(ctx, username, password)
}

func (s *stubAuthService) Register(ctx context.Context, in ports.RegisterInput) (*ports.UserDetail, error) {
	return s.registerFn(ctx, in)
}

func (s *stubAuthService) InitDefaultRoles(context.Context) error { return nil }

// stubUserService answers from a fixed set of users keyed by id.
type stubUserService struct {
	users   map[string]*ports.UserDetail
	lastIn  any
	deleted []string
	err     error
}

func (s *stubUserService) lookup(id string) (*ports.UserDetail, error) {
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u.User
	return &ports.UserDetail{User: &cp, Roles: append([]domain.RoleName(nil), u.Roles...)}, nil
}

func (s *stubUserService) GetProfile(_ context.Context, id string) (*ports.UserDetail, error) {
	return s.lookup(id)
}

func (s *stubUserService) GetUser(_ context.Context, id string) (*ports.UserDetail, error) {
	return s.lookup(id)
}

func (s *stubUserService) UpdateProfile(_ context.Context, id string, in ports.UpdateProfileInput) (*ports.UserDetail, error) {
	u, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	s.lastIn = in
	u.FullName, u.Email, u.PhoneNumber, u.Address = in.FullName, in.Email, in.PhoneNumber, in.Address
	return u, nil
}

func (s *stubUserService) ChangePassword(_ context.Context, id string, in ports.ChangePasswordInput) error {
	if _, err := s.lookup(id); err != nil {
		return err
	}
	s.lastIn = in
	if in.NewPassword != in.ConfirmPassword {
		return domain.ErrPasswordMismatch
	}
	return nil
}

func (s *stubUserService) ListUsers(_ context.Context, keyword string, page ports.PageRequest) (*ports.Page[*ports.UserDetail], error) {
	if s.err != nil {
		return nil, s.err
	}
	s.lastIn = page
	var out []*ports.UserDetail
	for _, u := range s.users {
		if keyword == "" || strings.Contains(u.Username, keyword) {
			out = append(out, u)
		}
	}
	return ports.NewPage(out, page, int64(len(out))), nil
}

func (s *stubUserService) UpdateStatus(_ context.Context, id string, status domain.UserStatus) (*ports.UserDetail, error) {
	u, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	s.lastIn = status
	u.Status = status
	return u, nil
}

func (s *stubUserService) DeleteUser(_ context.Context, id string) error {
	if _, err := s.lookup(id); err != nil {
		return err
	}
	s.deleted = append(s.deleted, id)
	return nil
}

type stubRoleService struct {
	roles []*domain.Role
}

func (s *stubRoleService) ListRoles(context.Context) ([]*domain.Role, error) {
	return s.roles, nil
}

func (s *stubRoleService) GetRole(_ context.Context, id string) (*domain.Role, error) {
	for _, r := range s.roles {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, domain.ErrRoleNotFound
}

func (s *stubRoleService) FindByName(_ context.Context, name string) (*domain.Role, error) {
	rn, err := domain.ParseRoleName(name)
	if err != nil {
		return nil, domain.NewValidationError("name", "unknown role")
	}
	for _, r := range s.roles {
		if r.Name == rn {
			return r, nil
		}
	}
	return nil, domain.ErrRoleNotFound
}

func (s *stubRoleService) Exists(ctx context.Context, name domain.RoleName) (bool, error) {
	_, err := s.FindByName(ctx, string(name))
	return err == nil, nil
}

func (s *stubRoleService) UpdateDescription(ctx context.Context, id, description string) (*domain.Role, error) {
	r, err := s.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}
	cp := *r
	cp.Description = description
	return &cp, nil
}

type stubGrantService struct {
	assignFn  func(userID, roleID string) (*domain.RoleGrant, error)
	replaceFn func(userID, oldRoleID, newRoleID string) (*domain.RoleGrant, error)
	revokeFn  func(userID, roleID string) error
	listIn    ports.ListGrantsInput
	grants    []*domain.RoleGrant
}

func (s *stubGrantService) AssignRole(_ context.Context, userID, roleID string) (*domain.RoleGrant, error) {
	return s.assignFn(userID, roleID)
}

func (s *stubGrantService) UpdateUserRole(_ context.Context, userID, oldRoleID, newRoleID string) (*domain.RoleGrant, error) {
	return s.replaceFn(userID, oldRoleID, newRoleID)
}

func (s *stubGrantService) RevokeRole(_ context.Context, userID, roleID string) error {
	return s.revokeFn(userID, roleID)
}

func (s *stubGrantService) ListGrants(_ context.Context, in ports.ListGrantsInput) (*ports.Page[*domain.RoleGrant], error) {
	s.listIn = in
	return ports.NewPage(s.grants, in.Page, int64(len(s.grants))), nil
}

func (s *stubGrantService) GetGrant(_ context.Context, userID, roleID string) (*domain.RoleGrant, error) {
	for _, g := range s.grants {
		if g.User.ID == userID && g.Role.ID == roleID {
			return g, nil
		}
	}
	return nil, domain.ErrMissingGrant
}

func (s *stubGrantService) ListRolesOfUser(_ context.Context, userID string, page ports.PageRequest) (*ports.Page[*domain.RoleGrant], error) {
	var out []*domain.RoleGrant
	for _, g := range s.grants {
		if g.User.ID == userID {
			out = append(out, g)
		}
	}
	return ports.NewPage(out, page, int64(len(out))), nil
}

func (s *stubGrantService) ListUsersOfRole(_ context.Context, roleID string, page ports.PageRequest) (*ports.Page[*domain.RoleGrant], error) {
	var out []*domain.RoleGrant
	for _, g := range s.grants {
		if g.Role.ID == roleID {
			out = append(out, g)
		}
	}
	return ports.NewPage(out, page, int64(len(out))), nil
}

// --- helpers ---

var fixedTime = time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)

func sampleUser(id, username string, roles ...domain.RoleName) *ports.UserDetail {
	return &ports.UserDetail{
		User: &domain.User{
			ID:        id,
			Username:  username,
			Email:     username + "@example.com",
			FullName:  strings.ToUpper(username[:1]) + username[1:],
			Status:    domain.StatusActive,
			CreatedAt: fixedTime,
			UpdatedAt: fixedTime,
		},
		Roles: roles,
	}
}

func sampleRoles() []*domain.Role {
	out := make([]*domain.Role, 0, 3)
	for _, n := range domain.AllRoleNames() {
		out = append(out, &domain.Role{
			ID:          "r-" + strings.ToLower(string(n)),
			Name:        n,
			Description: n.DefaultDescription(),
			CreatedAt:   fixedTime,
			UpdatedAt:   fixedTime,
		})
	}
	return out
}

// newContext builds an echo context with the validator installed. body may
// be empty for requests without a payload.
func newContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

// asPrincipal attaches p to the request the way the Authenticate middleware does.
func asPrincipal(c echo.Context, p *domain.Principal) {
	req := c.Request()
	c.SetRequest(req.WithContext(domain.WithPrincipal(req.Context(), p)))
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v\n%s", err, rec.Body.String())
	}
	if resp["success"] != true {
		t.Fatalf("expected success envelope, got %v", resp)
	}
	if _, ok := resp["timestamp"].(string); !ok {
		t.Fatalf("timestamp missing: %v", resp)
	}
	return resp
}

func dataOf(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	data, ok := decodeEnvelope(t, rec)["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected object data, got %s", rec.Body.String())
	}
	return data
}
