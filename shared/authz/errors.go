package authz

import (
	"errors"
	"fmt"
)

// Sentinel errors for authorization operations. Gateway middleware maps these
// to HTTP status codes and error codes.
var (
	// ErrInvalidCredential is returned when a bearer token fails validation.
	ErrInvalidCredential = errors.New("authz: invalid credential")

	// ErrExpiredCredential is returned when a bearer token is expired.
	ErrExpiredCredential = errors.New("authz: expired credential")

	// ErrInactiveAccount is returned when the resolved user is deactivated.
	ErrInactiveAccount = errors.New("authz: inactive account")

	// ErrCrossOrganizationAccess is returned when a request tries to scope
	// itself to an organization the user does not belong to.
	ErrCrossOrganizationAccess = errors.New("authz: cross-organization access denied")

	// ErrNoOrganizationMembership is returned for users without a bound
	// organization (pre-migration accounts).
	ErrNoOrganizationMembership = errors.New("authz: no organization membership")

	// ErrInsufficientPermission is returned when the evaluator denies access.
	ErrInsufficientPermission = errors.New("authz: insufficient permission")

	// ErrInsufficientRoleLevel is returned when the user's highest active
	// role level is below the required minimum.
	ErrInsufficientRoleLevel = errors.New("authz: insufficient role level")

	// ErrDuplicateAssignment is returned when an identical active binding
	// already exists. This is a validation error, not a fault.
	ErrDuplicateAssignment = errors.New("authz: duplicate assignment")

	// ErrRoleNotFound is returned when a role lookup finds nothing.
	ErrRoleNotFound = errors.New("authz: role not found")

	// ErrAssignmentNotFound is returned when revoking a binding that does
	// not exist or is already inactive.
	ErrAssignmentNotFound = errors.New("authz: assignment not found")

	// ErrStoreUnavailable is returned when the durable store fails. During a
	// permission check it is treated as an implicit denial (fail-closed).
	ErrStoreUnavailable = errors.New("authz: store unavailable")
)

// Error wraps a sentinel error with request context.
type Error struct {
	Err            error
	Message        string
	UserID         string
	OrganizationID string
	Resource       string
	Action         string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error with context.
func NewError(err error, message string) *Error {
	return &Error{
		Err:     err,
		Message: message,
	}
}

// WithUser adds user information to the error.
func (e *Error) WithUser(userID string) *Error {
	e.UserID = userID
	return e
}

// WithOrganization adds organization information to the error.
func (e *Error) WithOrganization(orgID string) *Error {
	e.OrganizationID = orgID
	return e
}

// WithPermission adds the checked resource/action pair to the error.
func (e *Error) WithPermission(resource, action string) *Error {
	e.Resource = resource
	e.Action = action
	return e
}

// IsStoreUnavailable distinguishes operational failures from legitimate
// authorization denials.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsDuplicateAssignment checks for the recoverable duplicate-binding error.
func IsDuplicateAssignment(err error) bool {
	return errors.Is(err, ErrDuplicateAssignment)
}
