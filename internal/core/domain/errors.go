package domain

import (
	"errors"
	"strings"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrTooManyAttempts    = errors.New("too many failed login attempts")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrForbidden          = errors.New("access forbidden")

	ErrDuplicateUsername = errors.New("username is already taken")
	ErrDuplicateEmail    = errors.New("email is already in use")
	ErrUserNotFound      = errors.New("user not found")
	ErrUserDeleted       = errors.New("user has been deleted")
	ErrAdminDeletion     = errors.New("users holding the ADMIN role cannot be deleted")
	ErrInvalidStatus     = errors.New("invalid user status")
	ErrPasswordMismatch  = errors.New("password confirmation does not match")
	ErrIncorrectPassword = errors.New("current password is incorrect")

	ErrRoleNotFound       = errors.New("role not found")
	ErrInvalidRoleName    = errors.New("invalid role name")
	ErrRoleRegistry       = errors.New("role registry is not initialised")
	ErrDuplicateGrant     = errors.New("user already holds this role")
	ErrMissingGrant       = errors.New("user does not hold this role")
	ErrMissingOldGrant    = errors.New("user does not hold the role being replaced")
	ErrLastAdminProtected = errors.New("the last ADMIN grant cannot be removed")

	ErrValidationFailed = errors.New("validation failed")
)

// FieldViolation describes one invalid input field.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries field-level violations and matches ErrValidationFailed.
type ValidationError struct {
	Fields []FieldViolation
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidationFailed.Error()
	}
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return ErrValidationFailed.Error() + ": " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// NewValidationError is a shorthand for a single-field violation.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldViolation{{Field: field, Message: message}}}
}
