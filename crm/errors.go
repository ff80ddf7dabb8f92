/*
errors.go - Error types shared by the store, the API and the reminder job

ERROR CATEGORIES:
  1. Lookup errors     - ErrNotFound
  2. Integrity errors  - ErrConflict (duplicate key), ErrUnknownReference
  3. Validation errors - ErrInvalidRecord, wrapped by *ValidationError

  Store implementations translate driver errors into these sentinels so the
  API can map them to HTTP statuses with errors.Is.

SEE ALSO:
  - store/sqlstore/errors.go: driver error translation
  - api/respond.go: status mapping
*/
package crm

import (
	"errors"
	"fmt"

	"github.com/warp/crm-engine/recurrence"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a unique field (id, email, employee code)
	// is already taken.
	ErrConflict = errors.New("record conflicts with an existing record")

	// ErrUnknownReference is returned when a record points at an owner,
	// account, contact or deal that does not exist, or when a record that is
	// still referenced is deleted.
	ErrUnknownReference = errors.New("unknown or still-referenced record")

	// ErrInvalidRecord is returned when a record fails validation.
	ErrInvalidRecord = errors.New("invalid record")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Kind   string // "deal", "lead", ...
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s %s", e.Kind, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidRecord }

func invalid(kind, field, reason string) error {
	return &ValidationError{Kind: kind, Field: field, Reason: reason}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRecord) ||
		errors.Is(err, recurrence.ErrInvalidSchedule) ||
		errors.Is(err, ErrUnknownReference)
}

// IsConflict returns true for duplicate-key failures.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
