package ports

import (
	"context"

	"github.com/customersms/customer-service/internal/core/domain"
)

// RoleService exposes the role registry.
type RoleService interface {
	ListRoles(ctx context.Context) ([]*domain.Role, error)
	GetRole(ctx context.Context, id string) (*domain.Role, error)
	FindByName(ctx context.Context, name string) (*domain.Role, error)
	Exists(ctx context.Context, name domain.RoleName) (bool, error)
	UpdateDescription(ctx context.Context, id, description string) (*domain.Role, error)
}

// ListGrantsInput filters the user/role pair listing.
type ListGrantsInput struct {
	Keyword  string
	RoleName string // optional: case-insensitive partial match on the role name
	Page     PageRequest
}

// RoleAssignmentService grants and revokes roles.
type RoleAssignmentService interface {
	AssignRole(ctx context.Context, userID, roleID string) (*domain.RoleGrant, error)
	UpdateUserRole(ctx context.Context, userID, oldRoleID, newRoleID string) (*domain.RoleGrant, error)
	RevokeRole(ctx context.Context, userID, roleID string) error

	ListGrants(ctx context.Context, input ListGrantsInput) (*Page[*domain.RoleGrant], error)
	GetGrant(ctx context.Context, userID, roleID string) (*domain.RoleGrant, error)
	ListRolesOfUser(ctx context.Context, userID string, page PageRequest) (*Page[*domain.RoleGrant], error)
	ListUsersOfRole(ctx context.Context, roleID string, page PageRequest) (*Page[*domain.RoleGrant], error)
}
