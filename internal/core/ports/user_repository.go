package ports

import (
	"context"

	"github.com/customersms/customer-service/internal/core/domain"
)

// ListUsersFilter carries the query parameters of the user listing.
// Soft-deleted users are always excluded.
type ListUsersFilter struct {
	Keyword string // optional: partial match on username, email or full name
	Page    PageRequest
}

// ProfileChanges are the contact fields written by UpdateProfile. An empty
// Email or FullName keeps the stored value.
type ProfileChanges struct {
	Email       string
	FullName    string
	PhoneNumber string
	Address     string
}

// GrantFilter selects user/role pairs for the role administration views.
type GrantFilter struct {
	Keyword string   // optional: partial match on username, email or full name
	UserID  string   // optional: restrict to one user
	RoleIDs []string // optional: restrict to these roles; nil means any role
	Page    PageRequest
}

// GrantRow is one (user, role id) pair returned by ListGrants.
type GrantRow struct {
	User   *domain.User
	RoleID string
}

// UserRepository is the credential store. Implementations must make every
// call issued with a context produced by Transactor.WithinTransaction part of
// that transaction.
type UserRepository interface {
	// Create inserts a new user. Unique constraints on username and email are
	// reported as ErrDuplicateUsername and ErrDuplicateEmail.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// The writes below set only their own fields and only on live users. A
	// user soft deleted after the caller read it yields ErrUserDeleted, so a
	// stale read can never bring a DELETED account back.
	UpdateProfile(ctx context.Context, userID string, changes ProfileChanges) (*domain.User, error)
	SetStatus(ctx context.Context, userID string, status domain.UserStatus) (*domain.User, error)
	// ReplacePasswordHash swaps currentHash for newHash. It fails with
	// ErrIncorrectPassword when the stored hash is no longer currentHash.
	ReplacePasswordHash(ctx context.Context, userID, currentHash, newHash string) error
	// MarkDeleted soft deletes the user. It fails with ErrAdminDeletion while
	// the user holds protectedRoleID.
	MarkDeleted(ctx context.Context, userID, protectedRoleID string) error

	// SetRoles replaces the user's role set in a single write.
	SetRoles(ctx context.Context, userID string, roleIDs []string) error
	// CountByRole counts non-deleted users holding roleID.
	CountByRole(ctx context.Context, roleID string) (int64, error)
	List(ctx context.Context, filter ListUsersFilter) ([]*domain.User, int64, error)
	ListGrants(ctx context.Context, filter GrantFilter) ([]GrantRow, int64, error)
}

// Transactor runs fn as one atomic unit of work. fn may be invoked more than
// once when the store asks for a retry, so it must not have side effects
// outside the store.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
