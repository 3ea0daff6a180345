package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/customersms/customer-service/internal/core/domain"
	"github.com/customersms/customer-service/internal/core/ports"
	"github.com/customersms/customer-service/internal/pkg/token"
)

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	clone.RoleIDs = append([]string(nil), u.RoleIDs...)
	return &clone
}

// ── users ────────────────────────────────────────────────────────────────────

type stubUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
	seq   int
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User)}
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username {
			return nil, domain.ErrDuplicateUsername
		}
		if u.Email == user.Email {
			return nil, domain.ErrDuplicateEmail
		}
	}
	r.seq++
	c := cloneUser(user)
	c.ID = fmt.Sprintf("u%03d", r.seq)
	r.users[c.ID] = c
	return cloneUser(c), nil
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) ExistsByUsername(_ context.Context, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubUserRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// updateLive runs fn on a live user under the lock, the way the mongo
// repository guards its writes in the update filter.
func (r *stubUserRepo) updateLive(userID string, fn func(u *domain.User) error) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	if u.IsDeleted() {
		return nil, domain.ErrUserDeleted
	}
	if err := fn(u); err != nil {
		return nil, err
	}
	u.UpdatedAt = time.Now().UTC()
	return cloneUser(u), nil
}

func (r *stubUserRepo) UpdateProfile(_ context.Context, userID string, c ports.ProfileChanges) (*domain.User, error) {
	return r.updateLive(userID, func(u *domain.User) error {
		if c.Email != "" {
			for id, other := range r.users {
				if id != userID && other.Email == c.Email {
					return domain.ErrDuplicateEmail
				}
			}
			u.Email = c.Email
		}
		if c.FullName != "" {
			u.FullName = c.FullName
		}
		u.PhoneNumber = c.PhoneNumber
		u.Address = c.Address
		return nil
	})
}

func (r *stubUserRepo) SetStatus(_ context.Context, userID string, status domain.UserStatus) (*domain.User, error) {
	return r.updateLive(userID, func(u *domain.User) error {
		u.Status = status
		return nil
	})
}

func (r *stubUserRepo) ReplacePasswordHash(_ context.Context, userID, currentHash, newHash string) error {
	_, err := r.updateLive(userID, func(u *domain.User) error {
		if u.PasswordHash != currentHash {
			return domain.ErrIncorrectPassword
		}
		u.PasswordHash = newHash
		return nil
	})
	return err
}

func (r *stubUserRepo) MarkDeleted(_ context.Context, userID, protectedRoleID string) error {
	_, err := r.updateLive(userID, func(u *domain.User) error {
		if u.HasRole(protectedRoleID) {
			return domain.ErrAdminDeletion
		}
		u.Status = domain.StatusDeleted
		return nil
	})
	return err
}

func (r *stubUserRepo) SetRoles(_ context.Context, userID string, roleIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.RoleIDs = append([]string(nil), roleIDs...)
	return nil
}

func (r *stubUserRepo) CountByRole(_ context.Context, roleID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, u := range r.users {
		if !u.IsDeleted() && u.HasRole(roleID) {
			n++
		}
	}
	return n, nil
}

func (r *stubUserRepo) sorted(keyword string) []*domain.User {
	keyword = strings.ToLower(keyword)
	out := make([]*domain.User, 0, len(r.users))
	for _, u := range r.users {
		if u.IsDeleted() {
			continue
		}
		if keyword != "" &&
			!strings.Contains(strings.ToLower(u.Username), keyword) &&
			!strings.Contains(strings.ToLower(u.Email), keyword) &&
			!strings.Contains(strings.ToLower(u.FullName), keyword) {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *stubUserRepo) List(_ context.Context, f ports.ListUsersFilter) ([]*domain.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.sorted(f.Keyword)
	from := min(f.Page.Offset(), len(all))
	to := min(from+f.Page.Size, len(all))
	out := make([]*domain.User, 0, to-from)
	for _, u := range all[from:to] {
		out = append(out, cloneUser(u))
	}
	return out, int64(len(all)), nil
}

func (r *stubUserRepo) ListGrants(_ context.Context, f ports.GrantFilter) ([]ports.GrantRow, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var rows []ports.GrantRow
	for _, u := range r.sorted(f.Keyword) {
		if f.UserID != "" && u.ID != f.UserID {
			continue
		}
		for _, rid := range u.RoleIDs {
			if f.RoleIDs != nil && !contains(f.RoleIDs, rid) {
				continue
			}
			rows = append(rows, ports.GrantRow{User: cloneUser(u), RoleID: rid})
		}
	}
	from := min(f.Page.Offset(), len(rows))
	to := min(from+f.Page.Size, len(rows))
	return rows[from:to], int64(len(rows)), nil
}

func (r *stubUserRepo) snapshot() map[string]*domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := make(map[string]*domain.User, len(r.users))
	for id, u := range r.users {
		snap[id] = cloneUser(u)
	}
	return snap
}

func (r *stubUserRepo) restore(snap map[string]*domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = snap
}

func (r *stubUserRepo) setStatus(id string, status domain.UserStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[id].Status = status
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// ── roles ────────────────────────────────────────────────────────────────────

type stubRoleRepo struct {
	mu      sync.Mutex
	roles   map[string]*domain.Role
	locks   map[string]int
	lookups int
}

func newStubRoleRepo() *stubRoleRepo {
	return &stubRoleRepo{roles: make(map[string]*domain.Role), locks: make(map[string]int)}
}

func (r *stubRoleRepo) CreateIfAbsent(_ context.Context, role *domain.Role) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.roles {
		if existing.Name == role.Name {
			return false, nil
		}
	}
	c := *role
	c.ID = "r-" + strings.ToLower(string(role.Name))
	r.roles[c.ID] = &c
	return true, nil
}

func (r *stubRoleRepo) FindByID(_ context.Context, id string) (*domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	role, ok := r.roles[id]
	if !ok {
		return nil, domain.ErrRoleNotFound
	}
	c := *role
	return &c, nil
}

func (r *stubRoleRepo) FindByName(_ context.Context, name domain.RoleName) (*domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	for _, role := range r.roles {
		if role.Name == name {
			c := *role
			return &c, nil
		}
	}
	return nil, domain.ErrRoleNotFound
}

func (r *stubRoleRepo) List(_ context.Context) ([]*domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Role, 0, len(r.roles))
	for _, role := range r.roles {
		c := *role
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *stubRoleRepo) UpdateDescription(_ context.Context, id, description string) (*domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	role, ok := r.roles[id]
	if !ok {
		return nil, domain.ErrRoleNotFound
	}
	role.Description = description
	role.UpdatedAt = time.Now().UTC()
	c := *role
	return &c, nil
}

func (r *stubRoleRepo) Lock(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[id]; !ok {
		return domain.ErrRoleNotFound
	}
	r.locks[id]++
	return nil
}

func (r *stubRoleRepo) lockCount(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.locks[id]
}

// ── transactions, audit, throttle ────────────────────────────────────────────

// stubTransactor runs units of work one at a time and rolls the user store
// back when fn fails.
type stubTransactor struct {
	mu    sync.Mutex
	users *stubUserRepo
}

func (t *stubTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := t.users.snapshot()
	if err := fn(ctx); err != nil {
		t.users.restore(snap)
		return err
	}
	return nil
}

type stubAudit struct {
	mu     sync.Mutex
	events []*domain.GrantEvent
	err    error
}

func (a *stubAudit) InsertEvent(_ context.Context, ev *domain.GrantEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	c := *ev
	a.events = append(a.events, &c)
	return nil
}

func (a *stubAudit) all() []*domain.GrantEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*domain.GrantEvent(nil), a.events...)
}

type stubThrottle struct {
	mu       sync.Mutex
	failures map[string]int
	max      int
	err      error
}

func newStubThrottle(max int) *stubThrottle {
	return &stubThrottle{failures: make(map[string]int), max: max}
}

func (s *stubThrottle) Blocked(_ context.Context, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	return s.failures[strings.ToLower(username)] >= s.max, nil
}

func (s *stubThrottle) RecordFailure(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.failures[strings.ToLower(username)]++
	return nil
}

func (s *stubThrottle) Reset(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, strings.ToLower(username))
	return nil
}

// ── environment ──────────────────────────────────────────────────────────────

const testSecret = "service-test-secret-with-enough-bytes"

type testEnv struct {
	users    *stubUserRepo
	roleRepo *stubRoleRepo
	audit    *stubAudit
	throttle *stubThrottle
	tokens   *token.Manager

	roles  ports.RoleService
	auth   *AuthService
	assign ports.RoleAssignmentService
	user   ports.UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zerolog.Nop()

	env := &testEnv{
		users:    newStubUserRepo(),
		roleRepo: newStubRoleRepo(),
		audit:    &stubAudit{},
		throttle: newStubThrottle(3),
		tokens:   token.NewManager(testSecret, time.Minute, "test"),
	}
	env.roles = NewRoleService(env.roleRepo, NewRoleCache(8, time.Minute), log)
	env.auth = NewAuthService(env.users, env.roleRepo, env.roles, env.tokens, env.throttle, bcrypt.MinCost, log)
	env.assign = NewRoleAssignmentService(env.users, env.roleRepo, env.roles, &stubTransactor{users: env.users}, env.audit, log)
	env.user = NewUserService(env.users, env.roles, bcrypt.MinCost, log)

	if err := env.auth.InitDefaultRoles(context.Background()); err != nil {
		t.Fatalf("InitDefaultRoles returned error: %v", err)
	}
	return env
}

func (e *testEnv) register(t *testing.T, username, email string) *ports.UserDetail {
	t.Helper()
	d, err := e.auth.Register(context.Background(), ports.RegisterInput{
		Username: username,
		Email:    email,
		Password: "pw123456",
		FullName: strings.ToUpper(username[:1]) + username[1:],
	})
	if err != nil {
		t.Fatalf("register %s failed: %v", username, err)
	}
	return d
}

func (e *testEnv) roleID(name domain.RoleName) string {
	return "r-" + strings.ToLower(string(name))
}

func (e *testEnv) roleNamesOf(t *testing.T, userID string) []domain.RoleName {
	t.Helper()
	u, err := e.users.FindByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	names := make([]domain.RoleName, 0, len(u.RoleIDs))
	for _, id := range u.RoleIDs {
		r, err := e.roleRepo.FindByID(context.Background(), id)
		if err != nil {
			t.Fatalf("unknown role id %s", id)
		}
		names = append(names, r.Name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

func adminCtx() context.Context {
	return domain.WithPrincipal(context.Background(), &domain.Principal{
		UserID:   "admin-id",
		Username: "root",
		Roles:    []domain.RoleName{domain.RoleAdmin},
	})
}
