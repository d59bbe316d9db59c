/*
errors.go - Centralized error types for the compensation engine

PURPOSE:
  All sentinel errors in one place for consistency and discoverability.
  Domain packages wrap these with additional context (teacher id, field).

ERROR CATEGORIES:
  1. Boundary errors - malformed input rejected before any work starts
  2. Reference errors - a teacher or location id that resolves to nothing
  3. Reference-data errors - rate tables that cannot produce a valid amount

PROPAGATION:
  Reference errors are isolated per teacher by the batch driver: the teacher
  is skipped, the error is logged, and the batch continues. Boundary errors
  abort the run before any teacher is touched. Rate errors are surfaced as-is,
  never clamped, since they point at reference data that must be fixed.

USAGE:
  if errors.Is(err, generic.ErrInvalidPeriod) {
      // 400 at the API boundary
  }

SEE ALSO:
  - period.go: Period.Validate returns ErrInvalidPeriod
  - payroll/rates.go: RateError wraps ErrInvalidRate
*/
package generic

import (
	"errors"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidPeriod is returned when a period is malformed (end not after start).
	ErrInvalidPeriod = errors.New("invalid period: end must be after start")

	// ErrInvalidRate is returned when reference rate data is negative or unparsable.
	ErrInvalidRate = errors.New("invalid rate")

	// ErrTeacherNotFound is returned when a referenced teacher doesn't exist.
	ErrTeacherNotFound = errors.New("teacher not found")

	// ErrLocationNotFound is returned when a teacher's location doesn't exist.
	ErrLocationNotFound = errors.New("location not found")

	// ErrInvalidID is returned when an identifier is empty or malformed.
	ErrInvalidID = errors.New("invalid identifier")
)

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidID)
}

// IsNotFound returns true if the error indicates a missing reference.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTeacherNotFound) ||
		errors.Is(err, ErrLocationNotFound)
}
