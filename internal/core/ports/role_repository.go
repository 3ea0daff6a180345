package ports

import (
	"context"

	"github.com/customersms/customer-service/internal/core/domain"
)

// RoleRepository persists the role registry.
type RoleRepository interface {
	// CreateIfAbsent inserts role unless a role with the same name exists.
	// It never touches an existing row and reports whether it inserted.
	CreateIfAbsent(ctx context.Context, role *domain.Role) (bool, error)
	FindByID(ctx context.Context, id string) (*domain.Role, error)
	FindByName(ctx context.Context, name domain.RoleName) (*domain.Role, error)
	List(ctx context.Context) ([]*domain.Role, error)
	UpdateDescription(ctx context.Context, id, description string) (*domain.Role, error)
	// Lock takes the write lock on a role row for the surrounding transaction.
	// Two transactions that lock the same role cannot both commit.
	Lock(ctx context.Context, id string) error
}

// GrantAuditRepository appends role grant changes to the audit trail.
type GrantAuditRepository interface {
	InsertEvent(ctx context.Context, event *domain.GrantEvent) error
}
