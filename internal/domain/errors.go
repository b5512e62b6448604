package domain

import "fmt"

// Error types for consistent error handling across the IAM core.

// ErrValidation indicates a validation error (bad input to an entity
// constructor or setter).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrUnauthenticated indicates missing or invalid credentials or token.
type ErrUnauthenticated struct {
	Message string
}

func (e *ErrUnauthenticated) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthenticated"
}

// ErrForbidden indicates an authenticated caller lacks rights for the
// operation: tenant mismatch or insufficient role. Always fails closed.
type ErrForbidden struct {
	Action string
	Reason string
}

func (e *ErrForbidden) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("forbidden: %s (%s)", e.Action, e.Reason)
	}
	return fmt.Sprintf("forbidden: %s", e.Action)
}

// ErrInternalGuard indicates programmer misuse of an entity (e.g. comparing
// a password before hashing it). These are usecase bugs, not user input, and
// are logged distinctly from user-facing errors.
type ErrInternalGuard struct {
	Op      string
	Message string
}

func (e *ErrInternalGuard) Error() string {
	return fmt.Sprintf("internal guard [%s]: %s", e.Op, e.Message)
}

// ErrConflict indicates a resource already exists (e.g. duplicate email).
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}
