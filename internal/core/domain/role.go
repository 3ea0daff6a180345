package domain

import (
	"strings"
	"time"
)

// RoleName is one of the fixed roles known to the system.
type RoleName string

const (
	RoleAdmin    RoleName = "ADMIN"
	RoleStaff    RoleName = "STAFF"
	RoleCustomer RoleName = "CUSTOMER"
)

// legacyRolePrefix is accepted on input for compatibility with clients that
// still send authority-style names such as ROLE_ADMIN.
const legacyRolePrefix = "ROLE_"

var defaultDescriptions = map[RoleName]string{
	RoleAdmin:    "System administrator",
	RoleStaff:    "Staff member",
	RoleCustomer: "Customer",
}

// AllRoleNames returns the closed set of roles in bootstrap order.
func AllRoleNames() []RoleName {
	return []RoleName{RoleAdmin, RoleStaff, RoleCustomer}
}

// DefaultDescription is the description a role is created with at bootstrap.
func (n RoleName) DefaultDescription() string {
	return defaultDescriptions[n]
}

// Valid reports whether n belongs to the closed role set.
func (n RoleName) Valid() bool {
	_, ok := defaultDescriptions[n]
	return ok
}

// ParseRoleName normalises "admin", "ADMIN" and "ROLE_ADMIN" to RoleAdmin.
func ParseRoleName(s string) (RoleName, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	name = strings.TrimPrefix(name, legacyRolePrefix)
	rn := RoleName(name)
	if !rn.Valid() {
		return "", ErrInvalidRoleName
	}
	return rn, nil
}

// Role is a row of the role registry. Only Description is mutable.
type Role struct {
	ID          string    `json:"id"`
	Name        RoleName  `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RoleGrant is a user/role pair as listed by the role administration views.
type RoleGrant struct {
	User *User
	Role *Role
}
