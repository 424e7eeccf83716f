/*
errors.go - Centralized error types

PURPOSE:
  All error types in one place for consistency and discoverability.
  Stores, the session gate and the OCR client wrap these with context;
  the API maps them to HTTP status codes.

ERROR CATEGORIES:
  1. Lookup errors - Missing client/application
  2. Validation errors - Bad input, illegal status moves
  3. Access errors - No or expired session
  4. Upstream errors - The OCR provider failed

NOT HERE:
  The eligibility calculator never returns Go errors. Its failures are
  data (EligibilityResult.Errors), see subsidy/eligibility.go.

USAGE:
  if errors.Is(err, generic.ErrNotFound) {
      // 404
  }

SEE ALSO:
  - api/handlers.go: writeDomainError maps these to HTTP codes
  - store/sqlite/sqlite.go: wraps these with record context
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
	// ErrNotFound is returned when a referenced client or application doesn't exist
	// in the requested office.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when a record fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidTransition is returned when a status change is not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrUnauthorized is returned when credentials are wrong or no session exists.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrSessionExpired is returned when a session token is past its TTL.
	ErrSessionExpired = errors.New("session expired")

	// ErrUpstream is returned when an external collaborator (OCR provider) fails.
	ErrUpstream = errors.New("upstream failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind     string // "client", "application"
	ID       string
	OfficeID OfficeID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found in office %s", e.Kind, e.ID, e.OfficeID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// TransitionError provides details about a rejected status change.
type TransitionError struct {
	From   string
	To     string
	Reason string
}

func (e *TransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot move from %s to %s: %s", e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("cannot move from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// ValidationError lists every problem found in one record.
type ValidationError struct {
	Field    string
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return fmt.Sprintf("%s: %s", e.Field, e.Problems[0])
	}
	return fmt.Sprintf("%s: %d problems: %v", e.Field, len(e.Problems), e.Problems)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAuthError returns true for missing, wrong or expired credentials.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrSessionExpired)
}
