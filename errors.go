package biblioteca

import (
	"errors"
	"fmt"
)

// Sentinel errors for the closed set of failure kinds surfaced by the catalog
// components. Callers branch with errors.Is; the typed errors below carry the
// detail needed for a specific user-facing message and unwrap to one of these.
var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("no copies available")
	ErrConflict    = errors.New("transaction conflict, operation should be retried")
	ErrUpstream    = errors.New("bibliographic lookup failed")
)

// ValidationError reports invalid caller input. It is always raised before any
// storage access, so a ValidationError guarantees no state change.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field string, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrValidation.Error(), e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NotFoundError reports that a referenced record does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func NewNotFoundError(entity string, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Entity, e.ID, ErrNotFound.Error())
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// UnavailableError reports that admission control rejected a loan because the
// book has no free copies. This is a legitimate business outcome, not a fault.
type UnavailableError struct {
	BookID BookID
	Reason string
}

func NewUnavailableError(bookID BookID, reason string) *UnavailableError {
	return &UnavailableError{BookID: bookID, Reason: reason}
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("book %q: %s: %s", e.BookID, ErrUnavailable.Error(), e.Reason)
}

func (e *UnavailableError) Unwrap() error {
	return ErrUnavailable
}

// UpstreamError reports a failed or malformed response from the external
// bibliographic lookup. The cause stays reachable through errors.Is/As.
type UpstreamError struct {
	Op  string
	Err error
}

func NewUpstreamError(op string, err error) *UpstreamError {
	return &UpstreamError{Op: op, Err: err}
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, ErrUpstream.Error(), e.Err)
}

func (e *UpstreamError) Unwrap() []error {
	return []error{ErrUpstream, e.Err}
}
