/*
errors.go - Centralized error taxonomy for the inventory engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is / errors.As; the API layer maps these
  onto HTTP status codes.

ERROR CATEGORIES:
  1. Validation errors      - malformed input (400)
  2. Not-found errors       - missing product/batch/entry (404)
  3. Conflict errors        - duplicate submission, referenced batch,
                              outstanding edit request (409)
  4. Insufficient stock     - FEFO cannot satisfy the request (409)
  5. Invariant errors       - ledger arithmetic violated; a defect signal,
                              never a recoverable business error (500)

PROPAGATION RULES:
  - Conflict and insufficient-stock are business outcomes returned to the
    caller. They are never auto-retried.
  - Invariant errors abort the enclosing transaction entirely.
  - Audit-log failures never surface here at all; they degrade to warnings.

SEE ALSO:
  - ledger.go:    raises InvariantError
  - allocator.go: raises InsufficientStockError
  - opening.go:   raises ConflictError for duplicate/locked entries
*/
package inventory

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the base of all malformed-input errors.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is the base of all missing-record errors.
	ErrNotFound = errors.New("not found")

	// ErrConflict is the base of all state-conflict errors: duplicate
	// submissions, batches still referenced by allocations, entries with
	// an outstanding edit request.
	ErrConflict = errors.New("conflict")

	// ErrInsufficientStock is returned when the FEFO allocator exhausts
	// all open batches before satisfying a sale.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInvariantViolated is returned when ledger arithmetic breaks.
	// This must never occur in a healthy system.
	ErrInvariantViolated = errors.New("ledger invariant violated")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports a malformed field with actionable detail.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError reports a missing record by kind and identifier.
type NotFoundError struct {
	Kind string // "product", "batch", "sale", "opening stock entry", "edit request"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictError reports a state conflict the caller must resolve.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func (e *ConflictError) Unwrap() error { return ErrConflict }

// InsufficientStockError reports the shortfall when FEFO allocation
// cannot satisfy a sale. The sale is rejected outright; nothing was
// committed.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d, shortfall %d",
		e.ProductID, e.Requested, e.Available, e.Shortfall())
}

func (e *InsufficientStockError) Shortfall() int { return e.Requested - e.Available }

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// InvariantError reports that quantity != sold + remaining (or a status
// contradiction) was observed on a batch. It aborts the enclosing
// transaction; nothing is partially committed.
type InvariantError struct {
	BatchID   string
	Quantity  int
	Sold      int
	Remaining int
	Detail    string
}

func (e *InvariantError) Error() string {
	msg := fmt.Sprintf("batch %s: quantity=%d sold=%d remaining=%d violates quantity == sold + remaining",
		e.BatchID, e.Quantity, e.Sold, e.Remaining)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *InvariantError) Unwrap() error { return ErrInvariantViolated }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether err indicates a missing record.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err indicates a state conflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsClientError reports whether the error is attributable to the caller
// rather than the system. Invariant errors are never client errors.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInsufficientStock)
}
