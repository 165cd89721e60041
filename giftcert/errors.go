/*
errors.go - Centralized error types for the certificate engine

PURPOSE:
  All failure kinds in one place. Every business-rule rejection is a typed
  error the caller can match with errors.Is / errors.As; nothing fails
  silently.

ERROR CATEGORIES:
  1. Lookup errors    - ErrNotFound
  2. Lifecycle errors - ErrAlreadyCancelled, ErrExhausted, ErrExpired, ErrNotYetValid
  3. Amount errors    - ErrInvalidAmount, ErrInsufficientBalance
  4. Store errors     - ErrConcurrentModification, ErrDuplicateCode
  5. Issuance errors  - ErrGenerationExhausted, ErrInvalidRequest

RETRY POLICY:
  ErrConcurrentModification is the only error a caller should retry
  automatically, after re-fetching state. Store/I-O errors propagate
  wrapped and are never retried inside the engine.

SEE ALSO:
  - validation.go: Maps verdicts to lifecycle errors
  - redemption.go: NotRedeemableError, InsufficientBalanceError
*/
package giftcert

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrNotFound         = errors.New("certificate not found")
	ErrAlreadyCancelled = errors.New("certificate cancelled")
	ErrExhausted        = errors.New("certificate balance exhausted")
	ErrExpired          = errors.New("certificate expired")
	ErrNotYetValid      = errors.New("certificate not yet valid")

	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrNotRedeemable wraps the lifecycle reason a redemption was refused.
	ErrNotRedeemable = errors.New("certificate not redeemable")

	// ErrGenerationExhausted is returned when no unique code was found
	// within the attempt budget.
	ErrGenerationExhausted = errors.New("code generation attempts exhausted")

	// ErrConcurrentModification is returned when the stored version no longer
	// matches the version an update was computed from.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrDuplicateCode is returned by stores when a code is already taken
	// within the organization.
	ErrDuplicateCode = errors.New("duplicate certificate code")

	ErrInvalidRequest = errors.New("invalid request")

	// ErrIdempotencyConflict is returned when an idempotency key is reused
	// for a different redemption.
	ErrIdempotencyConflict = errors.New("idempotency key reused with different request")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	CertificateID CertificateID
	Available     decimal.Decimal
	Requested     decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %s, requested %s, shortfall %s",
		e.Available, e.Requested, e.Requested.Sub(e.Available))
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// NotRedeemableError carries the lifecycle reason behind a refused
// redemption. It matches both ErrNotRedeemable and the reason.
type NotRedeemableError struct {
	Code   string
	Reason error
}

func (e *NotRedeemableError) Error() string {
	return fmt.Sprintf("certificate %s not redeemable: %v", e.Code, e.Reason)
}

func (e *NotRedeemableError) Unwrap() []error {
	return []error{ErrNotRedeemable, e.Reason}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is a business-rule rejection
// rather than an infrastructure failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrAlreadyCancelled) ||
		errors.Is(err, ErrExhausted) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrNotYetValid) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrNotRedeemable) ||
		errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrIdempotencyConflict)
}

// IsNotFound returns true if the error indicates a missing certificate.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Kind returns a stable machine-readable name for err, used by the audit
// log, metrics labels, and HTTP error bodies.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyCancelled):
		return "already_cancelled"
	case errors.Is(err, ErrExhausted):
		return "exhausted"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrNotYetValid):
		return "not_yet_valid"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrGenerationExhausted):
		return "generation_exhausted"
	case errors.Is(err, ErrConcurrentModification):
		return "concurrent_modification"
	case errors.Is(err, ErrDuplicateCode):
		return "duplicate_code"
	case errors.Is(err, ErrIdempotencyConflict):
		return "idempotency_conflict"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return "internal"
	}
}
