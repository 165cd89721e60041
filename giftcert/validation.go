/*
validation.go - Validation pipeline over (certificate, now)

PURPOSE:
  Decides whether a certificate is valid and redeemable at a given instant.
  The decision itself (Evaluate) is a pure function. Validator wraps it and
  performs the pipeline's one permitted side effect: persisting a status
  correction (lazy expiry, or marking an exhausted certificate fully_used).

ORDERED CHECKS (short-circuit):
  1. Not found                              -> invalid (ErrNotFound)
  2. Cancelled                              -> invalid (ErrAlreadyCancelled)
  3. Fully used or balance <= 0             -> valid, not redeemable (ErrExhausted)
  4. Expired, or now > valid_until          -> invalid (ErrExpired)
  5. now < valid_from                       -> valid, not redeemable (ErrNotYetValid)
  6. Otherwise                              -> valid, redeemable

IDEMPOTENCY:
  Terminal certificates never produce a correction, so validating them
  again yields the same verdict and no write.

SEE ALSO:
  - redemption.go: Consumes the verdict before mutating balance
*/
package giftcert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

// Verdict is the outcome of validating a certificate.
type Verdict struct {
	Valid            bool
	CanRedeem        bool
	RemainingBalance decimal.Decimal
	// Reason is nil when CanRedeem is true, otherwise one of the lifecycle
	// sentinels.
	Reason error

	// Certificate is the snapshot the verdict was computed from, after any
	// persisted correction. Nil when not found.
	Certificate *Certificate

	// Corrected is the status persisted by this validation, if any.
	Corrected Status

	correction Status
}

// Err returns the rejection reason, nil when redeemable.
func (v Verdict) Err() error {
	return v.Reason
}

// Evaluate runs the ordered checks without touching storage.
func Evaluate(cert *Certificate, now time.Time) Verdict {
	if cert == nil {
		return Verdict{Reason: ErrNotFound, RemainingBalance: decimal.Zero}
	}
	v := Verdict{Certificate: cert, RemainingBalance: cert.CurrentBalance}

	if cert.Status == StatusCancelled {
		v.Reason = ErrAlreadyCancelled
		return v
	}

	if cert.Status == StatusFullyUsed || !cert.CurrentBalance.IsPositive() {
		v.Valid = true
		v.Reason = ErrExhausted
		v.RemainingBalance = decimal.Zero
		if !cert.Status.Terminal() {
			v.correction = StatusFullyUsed
		}
		return v
	}

	if cert.Status == StatusExpired || (cert.ValidUntil != nil && now.After(*cert.ValidUntil)) {
		v.Reason = ErrExpired
		if cert.Status != StatusExpired {
			v.correction = StatusExpired
		}
		return v
	}

	if now.Before(cert.ValidFrom) {
		v.Valid = true
		v.Reason = ErrNotYetValid
		return v
	}

	v.Valid = true
	v.CanRedeem = true
	return v
}

// =============================================================================
// VALIDATOR - Evaluate plus the lazy status correction
// =============================================================================

// maxCorrectionAttempts bounds re-evaluation when a correction loses a CAS
// race.
const maxCorrectionAttempts = 3

type Validator struct {
	Store  CertificateStore
	Logger *slog.Logger
}

// Validate evaluates cert at now and persists the status correction the
// verdict calls for. A nil cert yields a not-found verdict.
//
// Losing a CAS race while correcting is not an error: the certificate is
// re-read and re-evaluated, since another writer has already moved it.
func (v *Validator) Validate(ctx context.Context, cert *Certificate, now time.Time) (Verdict, error) {
	verdict := Evaluate(cert, now)
	for attempt := 0; attempt < maxCorrectionAttempts && verdict.correction != ""; attempt++ {
		c := verdict.Certificate
		status := verdict.correction
		updated, err := v.Store.Update(ctx, c.OrganizationID, c.ID, c.Version, Patch{
			Status:    &status,
			UpdatedAt: now,
		})
		switch {
		case err == nil:
			out := Evaluate(&updated, now)
			out.Corrected = status
			return out, nil
		case errors.Is(err, ErrConcurrentModification):
			v.logger().Debug("status correction lost race, re-reading",
				"certificate_id", c.ID, "status", status)
			fresh, getErr := v.Store.GetByID(ctx, c.OrganizationID, c.ID)
			if getErr != nil {
				return Verdict{}, fmt.Errorf("re-read certificate: %w", getErr)
			}
			verdict = Evaluate(&fresh, now)
		default:
			return Verdict{}, fmt.Errorf("persist status %s: %w", status, err)
		}
	}
	verdict.correction = ""
	return verdict, nil
}

func (v *Validator) logger() *slog.Logger {
	if v.Logger != nil {
		return v.Logger
	}
	return slog.Default()
}
