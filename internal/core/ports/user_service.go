package ports

import (
	"context"

	"github.com/customersms/customer-service/internal/core/domain"
)

// UpdateProfileInput holds the editable profile fields.
type UpdateProfileInput struct {
	FullName    string
	Email       string
	PhoneNumber string
	Address     string
}

// ChangePasswordInput holds a password change request.
type ChangePasswordInput struct {
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
}

// UserService covers profile and account administration. Every operation
// re-reads the account and refuses to act on a soft-deleted user.
type UserService interface {
	GetProfile(ctx context.Context, userID string) (*UserDetail, error)
	UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*UserDetail, error)
	ChangePassword(ctx context.Context, userID string, input ChangePasswordInput) error
	ListUsers(ctx context.Context, keyword string, page PageRequest) (*Page[*UserDetail], error)
	GetUser(ctx context.Context, userID string) (*UserDetail, error)
	UpdateStatus(ctx context.Context, userID string, status domain.UserStatus) (*UserDetail, error)
	DeleteUser(ctx context.Context, userID string) error
}
