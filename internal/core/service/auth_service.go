package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/customersms/customer-service/internal/api/metrics"
	"github.com/customersms/customer-service/internal/core/domain"
	"github.com/customersms/customer-service/internal/core/ports"
)

// LoginThrottle counts failed logins per username (Redis).
type LoginThrottle interface {
	Blocked(ctx context.Context, username string) (bool, error)
	RecordFailure(ctx context.Context, username string) error
	Reset(ctx context.Context, username string) error
}

// TokenIssuer mints session tokens.
type TokenIssuer interface {
	Issue(p *domain.Principal) (string, time.Time, error)
}

// AuthService implements registration, login and role bootstrap.
type AuthService struct {
	users      ports.UserRepository
	roleRepo   ports.RoleRepository
	roles      ports.RoleService
	tokens     TokenIssuer
	throttle   LoginThrottle
	bcryptCost int
	log        zerolog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService wires the authenticator. throttle may be nil.
func NewAuthService(
	users ports.UserRepository,
	roleRepo ports.RoleRepository,
	roles ports.RoleService,
	tokens TokenIssuer,
	throttle LoginThrottle,
	bcryptCost int,
	log zerolog.Logger,
) *AuthService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		users:      users,
		roleRepo:   roleRepo,
		roles:      roles,
		tokens:     tokens,
		throttle:   throttle,
		bcryptCost: bcryptCost,
		log:        log,
	}
}

var _ ports.AuthService = (*AuthService)(nil)

// Login verifies credentials and issues a session token. Unknown users,
// wrong passwords and accounts that are not ACTIVE all fail with the same
// ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, username, password string) (*ports.LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, s.loginFailed(ctx, username)
	}

	if s.throttle != nil {
		blocked, err := s.throttle.Blocked(ctx, username)
		if err != nil {
			s.log.Warn().Err(err).Msg("login throttle check failed, continuing")
		} else if blocked {
			metrics.LoginsTotal.WithLabelValues("throttled").Inc()
			return nil, domain.ErrTooManyAttempts
		}
	}

	user, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, domain.ErrUserNotFound) {
		// keep the response time of unknown users close to a real check
		verifyPassword(s.timingHash(), password)
		return nil, s.loginFailed(ctx, username)
	}
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("login: %w", err)
	}

	if !verifyPassword(user.PasswordHash, password) || user.Status != domain.StatusActive {
		return nil, s.loginFailed(ctx, username)
	}

	roleNames, err := resolveRoleNames(ctx, s.roles, s.log, user.RoleIDs)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("login: resolve roles: %w", err)
	}

	token, exp, err := s.tokens.Issue(&domain.Principal{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		FullName: user.FullName,
		Roles:    roleNames,
	})
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("login: %w", err)
	}

	if s.throttle != nil {
		if err := s.throttle.Reset(ctx, username); err != nil {
			s.log.Warn().Err(err).Msg("failed to reset login throttle")
		}
	}
	metrics.LoginsTotal.WithLabelValues("success").Inc()
	s.log.Info().Str("user_id", user.ID).Msg("user logged in")

	return &ports.LoginResult{Token: token, ExpiresAt: exp, User: user, Roles: roleNames}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, username string) error {
	metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
	if s.throttle != nil && username != "" {
		if err := s.throttle.RecordFailure(ctx, username); err != nil {
			s.log.Warn().Err(err).Msg("failed to record login failure")
		}
	}
	return domain.ErrInvalidCredentials
}

func (s *AuthService) timingHash() string {
	s.dummyOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("timing-equaliser"), s.bcryptCost)
		if err == nil {
			s.dummyHash = string(h)
		}
	})
	return s.dummyHash
}

// Register creates an ACTIVE account holding the CUSTOMER role.
func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (*ports.UserDetail, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)
	if err := checkPasswordLength("password", in.Password); err != nil {
		return nil, err
	}

	exists, err := s.users.ExistsByUsername(ctx, in.Username)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	if exists {
		return nil, domain.ErrDuplicateUsername
	}
	exists, err = s.users.ExistsByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	if exists {
		return nil, domain.ErrDuplicateEmail
	}

	customer, err := s.roles.FindByName(ctx, string(domain.RoleCustomer))
	if errors.Is(err, domain.ErrRoleNotFound) {
		return nil, fmt.Errorf("register: %w: role %s is missing", domain.ErrRoleRegistry, domain.RoleCustomer)
	}
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	hash, err := hashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	now := time.Now().UTC()
	created, err := s.users.Create(ctx, &domain.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		FullName:     in.FullName,
		PhoneNumber:  strings.TrimSpace(in.PhoneNumber),
		Address:      strings.TrimSpace(in.Address),
		Status:       domain.StatusActive,
		RoleIDs:      []string{customer.ID},
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	metrics.RegistrationsTotal.Inc()
	s.log.Info().Str("user_id", created.ID).Str("username", created.Username).Msg("user registered")
	return &ports.UserDetail{User: created, Roles: []domain.RoleName{domain.RoleCustomer}}, nil
}

// InitDefaultRoles creates every missing role of the closed set. Existing
// rows are left untouched, so it is safe on every start.
func (s *AuthService) InitDefaultRoles(ctx context.Context) error {
	for _, name := range domain.AllRoleNames() {
		now := time.Now().UTC()
		created, err := s.roleRepo.CreateIfAbsent(ctx, &domain.Role{
			Name:        name,
			Description: name.DefaultDescription(),
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return fmt.Errorf("init default roles: %s: %w", name, err)
		}
		if created {
			s.log.Info().Str("role", string(name)).Msg("default role created")
		}
	}
	return nil
}
