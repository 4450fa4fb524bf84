/*
errors.go - Centralized error types for the reconciliation engine

PURPOSE:
  All domain error kinds in one place. The taxonomy is small and fixed:
  NotFound, Validation, StateConflict, and ExternalServiceDegraded.
  Detection, classification, grouping, and rendering never raise domain
  errors — an empty month, a missing context, or an unresolved related id
  are all valid inputs.

USAGE:
  The api package maps these onto HTTP status codes:

    IsNotFound(err)      -> 404
    IsValidation(err)    -> 400
    IsStateConflict(err) -> 409

SEE ALSO:
  - api/handlers.go: HTTP mapping
  - document/service.go, enrich/service.go: producers of these errors
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrTransactionNotFound is returned when a referenced transaction is absent.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrContextNotFound is returned when a transaction has no enriched context.
	ErrContextNotFound = errors.New("enriched context not found")

	// ErrDocumentNotFound is returned when a monthly document is absent.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrContextExists is returned when answers are submitted for a
	// transaction that already carries a context. Contexts are 1:1.
	ErrContextExists = errors.New("enriched context already exists")

	// ErrInvalidMonth is returned for malformed or out-of-range month keys.
	ErrInvalidMonth = errors.New("invalid month")

	// ErrNotReviewed is returned when delivery is attempted on a document
	// still in generated state. The transition is never silently corrected.
	ErrNotReviewed = errors.New("document must be reviewed before sending")

	// ErrInvalidStatusTransition is returned for any non-forward document
	// status move.
	ErrInvalidStatusTransition = errors.New("invalid document status transition")

	// ErrFileType is returned for disallowed upload extensions.
	ErrFileType = errors.New("file type not allowed")

	// ErrFileTooLarge is returned for uploads over the size cap.
	ErrFileTooLarge = errors.New("file too large")

	// ErrServiceDegraded marks an unreachable external capability.
	// Text generation absorbs it by falling back to templates; a failed
	// feed fetch surfaces it as HTTP 503.
	ErrServiceDegraded = errors.New("external service degraded")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidMonthError reports why a month string was rejected.
type InvalidMonthError struct {
	Value  string
	Reason string
}

func (e *InvalidMonthError) Error() string {
	return fmt.Sprintf("invalid month %q: %s", e.Value, e.Reason)
}

func (e *InvalidMonthError) Unwrap() error { return ErrInvalidMonth }

// StatusTransitionError reports an illegal document status move.
type StatusTransitionError struct {
	DocumentID string
	From       DocumentStatus
	To         DocumentStatus
}

func (e *StatusTransitionError) Error() string {
	return fmt.Sprintf("document %s: cannot transition %s -> %s", e.DocumentID, e.From, e.To)
}

func (e *StatusTransitionError) Unwrap() error {
	if e.From == DocGenerated && e.To == DocSent {
		return ErrNotReviewed
	}
	return ErrInvalidStatusTransition
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrContextNotFound) ||
		errors.Is(err, ErrDocumentNotFound)
}

// IsValidation returns true if the error is due to invalid client input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidMonth) ||
		errors.Is(err, ErrFileType) ||
		errors.Is(err, ErrFileTooLarge)
}

// IsStateConflict returns true for illegal state transitions and
// duplicate-context submissions.
func IsStateConflict(err error) bool {
	return errors.Is(err, ErrContextExists) ||
		errors.Is(err, ErrNotReviewed) ||
		errors.Is(err, ErrInvalidStatusTransition)
}
