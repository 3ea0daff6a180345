package domain

import "time"

// GrantAction names a role grant mutation recorded in the audit trail.
type GrantAction string

const (
	GrantAssigned GrantAction = "assigned"
	GrantReplaced GrantAction = "replaced"
	GrantRevoked  GrantAction = "revoked"
)

// GrantEvent records a committed change to a user's role set.
type GrantEvent struct {
	Action           GrantAction
	UserID           string
	Username         string
	RoleID           string
	RoleName         RoleName
	PreviousRoleID   string   // set for GrantReplaced
	PreviousRoleName RoleName // set for GrantReplaced
	Actor            string   // username of the administrator, empty when unknown
	OccurredAt       time.Time
}
