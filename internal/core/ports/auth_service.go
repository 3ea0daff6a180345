package ports

import (
	"context"
	"time"

	"github.com/customersms/customer-service/internal/core/domain"
)

// RegisterInput carries the fields of a self-service registration.
type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	FullName    string
	PhoneNumber string
	Address     string
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
	Roles     []domain.RoleName
}

// UserDetail is a user together with the names of the roles it holds.
type UserDetail struct {
	*domain.User
	Roles []domain.RoleName
}

type AuthService interface {
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	Register(ctx context.Context, input RegisterInput) (*UserDetail, error)
	InitDefaultRoles(ctx context.Context) error
}
