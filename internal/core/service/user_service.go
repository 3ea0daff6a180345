package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/customersms/customer-service/internal/core/domain"
	"github.com/customersms/customer-service/internal/core/ports"
)

type userService struct {
	users      ports.UserRepository
	roles      ports.RoleService
	bcryptCost int
	log        zerolog.Logger
}

// NewUserService returns a UserService implementation.
func NewUserService(users ports.UserRepository, roles ports.RoleService, bcryptCost int, log zerolog.Logger) ports.UserService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &userService{users: users, roles: roles, bcryptCost: bcryptCost, log: log}
}

// GetProfile re-reads the account, so a token issued before deletion no
// longer yields a profile.
func (s *userService) GetProfile(ctx context.Context, userID string) (*ports.UserDetail, error) {
	user, err := s.liveUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return s.detail(ctx, user)
}

func (s *userService) GetUser(ctx context.Context, userID string) (*ports.UserDetail, error) {
	user, err := s.liveUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return s.detail(ctx, user)
}

func (s *userService) UpdateProfile(ctx context.Context, userID string, in ports.UpdateProfileInput) (*ports.UserDetail, error) {
	user, err := s.liveUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email != "" && email != user.Email {
		taken, err := s.users.ExistsByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("update profile: %w", err)
		}
		if taken {
			return nil, domain.ErrDuplicateEmail
		}
	}

	updated, err := s.users.UpdateProfile(ctx, userID, ports.ProfileChanges{
		Email:       email,
		FullName:    strings.TrimSpace(in.FullName),
		PhoneNumber: strings.TrimSpace(in.PhoneNumber),
		Address:     strings.TrimSpace(in.Address),
	})
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	s.log.Info().Str("user_id", updated.ID).Msg("profile updated")
	return s.detail(ctx, updated)
}

func (s *userService) ChangePassword(ctx context.Context, userID string, in ports.ChangePasswordInput) error {
	if in.NewPassword != in.ConfirmPassword {
		return domain.ErrPasswordMismatch
	}
	if err := checkPasswordLength("newPassword", in.NewPassword); err != nil {
		return err
	}

	user, err := s.liveUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	if !verifyPassword(user.PasswordHash, in.CurrentPassword) {
		return domain.ErrIncorrectPassword
	}

	hash, err := hashPassword(in.NewPassword, s.bcryptCost)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	if err := s.users.ReplacePasswordHash(ctx, user.ID, user.PasswordHash, hash); err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	s.log.Info().Str("user_id", user.ID).Msg("password changed")
	return nil
}

// ListUsers never returns soft-deleted accounts.
func (s *userService) ListUsers(ctx context.Context, keyword string, page ports.PageRequest) (*ports.Page[*ports.UserDetail], error) {
	page = page.Normalize()
	users, total, err := s.users.List(ctx, ports.ListUsersFilter{Keyword: strings.TrimSpace(keyword), Page: page})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	items := make([]*ports.UserDetail, 0, len(users))
	for _, u := range users {
		d, err := s.detail(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		items = append(items, d)
	}
	return ports.NewPage(items, page, total), nil
}

// UpdateStatus toggles between ACTIVE and INACTIVE. Deletion goes through
// DeleteUser.
func (s *userService) UpdateStatus(ctx context.Context, userID string, status domain.UserStatus) (*ports.UserDetail, error) {
	if status != domain.StatusActive && status != domain.StatusInactive {
		return nil, domain.ErrInvalidStatus
	}
	user, err := s.liveUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	if user.Status != status {
		user, err = s.users.SetStatus(ctx, userID, status)
		if err != nil {
			return nil, fmt.Errorf("update status: %w", err)
		}
		s.log.Info().Str("user_id", user.ID).Str("status", string(status)).Str("actor", actorFrom(ctx)).Msg("user status changed")
	}
	return s.detail(ctx, user)
}

// DeleteUser soft deletes the account. ADMIN holders must lose the role
// first, which keeps last-admin protection in one place. The store re-checks
// the grant in the same write.
func (s *userService) DeleteUser(ctx context.Context, userID string) error {
	user, err := s.liveUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	admin, err := s.roles.FindByName(ctx, string(domain.RoleAdmin))
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if user.HasRole(admin.ID) {
		return domain.ErrAdminDeletion
	}

	if err := s.users.MarkDeleted(ctx, user.ID, admin.ID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.log.Info().Str("user_id", user.ID).Str("actor", actorFrom(ctx)).Msg("user deleted")
	return nil
}

func (s *userService) liveUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsDeleted() {
		return nil, domain.ErrUserDeleted
	}
	return user, nil
}

func (s *userService) detail(ctx context.Context, user *domain.User) (*ports.UserDetail, error) {
	names, err := resolveRoleNames(ctx, s.roles, s.log, user.RoleIDs)
	if err != nil {
		return nil, err
	}
	return &ports.UserDetail{User: user, Roles: names}, nil
}
