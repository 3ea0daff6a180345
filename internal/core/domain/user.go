package domain

import (
	"strings"
	"time"
)

// UserStatus is the lifecycle state of an account. DELETED is terminal: the
// row stays in the store but the account can no longer sign in or be changed.
type UserStatus string

const (
	StatusActive   UserStatus = "ACTIVE"
	StatusInactive UserStatus = "INACTIVE"
	StatusDeleted  UserStatus = "DELETED"
)

// ParseUserStatus accepts a status name in any case.
func ParseUserStatus(s string) (UserStatus, error) {
	switch UserStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusActive:
		return StatusActive, nil
	case StatusInactive:
		return StatusInactive, nil
	case StatusDeleted:
		return StatusDeleted, nil
	}
	return "", ErrInvalidStatus
}

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// User models an account in the credential store.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FullName     string     `json:"full_name"`
	PhoneNumber  string     `json:"phone_number,omitempty"`
	Address      string     `json:"address,omitempty"`
	Status       UserStatus `json:"status"`
	RoleIDs      []string   `json:"role_ids"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsDeleted reports whether the account has been soft deleted.
func (u *User) IsDeleted() bool {
	return u.Status == StatusDeleted
}

// HasRole reports whether roleID is among the user's grants.
func (u *User) HasRole(roleID string) bool {
	for _, id := range u.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// RolesWithout returns a copy of the user's role ids minus roleID.
func (u *User) RolesWithout(roleID string) []string {
	out := make([]string, 0, len(u.RoleIDs))
	for _, id := range u.RoleIDs {
		if id != roleID {
			out = append(out, id)
		}
	}
	return out
}
