/*
errors.go - Centralized error types for the budget engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Input construction errors - a caller built an invalid value
     (bad amount, malformed bill, out-of-range split rule)
  2. Lookup errors - a referenced bucket or bill does not exist
  3. Store errors - persistence failures

  Purchase rejections are NOT errors. They are returned as a Decision with a
  reason string; see budget/purchase.go.

USAGE:
  if errors.Is(err, generic.ErrInvalidBill) {
      // 400 to the client
  }

SEE ALSO:
  - budget/settings.go: Validates edits and wraps these errors
  - api/handlers.go: Maps errors to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidAmount is returned when an amount is negative or unparsable
	// where a non-negative currency value is required.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidDate is returned when a date string is not YYYY-MM-DD or a
	// date is outside the accepted range (e.g. PTO in the past).
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidBill is returned when a bill definition is malformed, for
	// example a weekly bill whose weekday is outside 0-6.
	ErrInvalidBill = errors.New("invalid bill")

	// ErrInvalidRules is returned when split rules or caps are out of range.
	ErrInvalidRules = errors.New("invalid rules")

	// ErrUnknownBucket is returned when a bucket name is not recognised.
	ErrUnknownBucket = errors.New("unknown bucket")

	// ErrNotFound is returned when a referenced bill or PTO day doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrStoreFailed is returned when state cannot be loaded or persisted.
	ErrStoreFailed = errors.New("store failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// FieldError names the offending field of an invalid input.
type FieldError struct {
	Field  string
	Reason string
	Err    error // one of the sentinels above
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%v: %s %s", e.Err, e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// NewFieldError builds a FieldError around a sentinel.
func NewFieldError(sentinel error, field, reason string) *FieldError {
	return &FieldError{Field: field, Reason: reason, Err: sentinel}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidBill) ||
		errors.Is(err, ErrInvalidRules) ||
		errors.Is(err, ErrUnknownBucket)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
