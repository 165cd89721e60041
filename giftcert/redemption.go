/*
redemption.go - Atomic balance mutation guarded by validation

PURPOSE:
  Consumes part or all of a certificate's remaining balance. This is the
  correctness-critical path: money leaves the certificate here and nowhere
  else.

FLOW:
  1. Reject amounts out of precision or magnitude bounds before any
     arithmetic (see money.go)
  2. Replay check on the idempotency key (if given)
  3. Load by code, run the validation pipeline
  4. Reject: not redeemable, amount <= 0 or finer than the currency's
     minor unit, amount > balance
  5. One conditional store update: new balance + status + ledger entry,
     guarded by the version the validation saw

CONCURRENCY:
  Two redemptions that read the same version race at the store. Exactly one
  update matches the version; the other gets ErrConcurrentModification and
  nothing of it is visible. The engine never retries; the caller re-validates
  and decides. No global lock is held, so unrelated certificates redeem in
  parallel.

EXAMPLE:
  res, err := redeemer.Redeem(ctx, RedeemRequest{
      OrganizationID: "org-1", Code: "GC-ABCD-EFGH-JKMN",
      Amount: decimal.NewFromInt(40),
  }, now)
  if giftcert.IsRetryable(err) {
      // re-fetch and try again
  }

SEE ALSO:
  - validation.go: The verdict consumed in step 3
  - store.go: Update's atomicity contract
*/
package giftcert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RedemptionStore is what the engine needs from persistence.
type RedemptionStore interface {
	CertificateStore
	TransactionLog
}

type RedeemRequest struct {
	OrganizationID OrganizationID
	Code           string
	Amount         decimal.Decimal
	Actor          string
	IdempotencyKey string
}

type RedeemResult struct {
	NewBalance  decimal.Decimal
	Transaction Transaction
	Certificate Certificate
	// Before is the snapshot the redemption was computed from.
	Before  *Certificate
	Verdict Verdict
	// Replayed is true when an earlier redemption with the same idempotency
	// key was returned instead of a new one.
	Replayed bool
}

type Redeemer struct {
	Store     RedemptionStore
	Validator *Validator
}

// NewRedeemer wires a redeemer and its validator to one store.
func NewRedeemer(store RedemptionStore) *Redeemer {
	return &Redeemer{Store: store, Validator: &Validator{Store: store}}
}

// Redeem debits req.Amount from the certificate identified by req.Code.
// On rejection the returned result still carries the verdict.
func (r *Redeemer) Redeem(ctx context.Context, req RedeemRequest, now time.Time) (RedeemResult, error) {
	code := NormalizeCode(req.Code)

	if err := checkAmountBounds(req.Amount); err != nil {
		return RedeemResult{}, err
	}

	if req.IdempotencyKey != "" {
		res, found, err := r.replay(ctx, req, code)
		if err != nil || found {
			return res, err
		}
	}

	var cert *Certificate
	stored, err := r.Store.GetByCode(ctx, req.OrganizationID, code)
	switch {
	case err == nil:
		cert = &stored
	case !errors.Is(err, ErrNotFound):
		return RedeemResult{}, fmt.Errorf("load certificate: %w", err)
	}

	verdict, err := r.Validator.Validate(ctx, cert, now)
	if err != nil {
		return RedeemResult{}, err
	}
	result := RedeemResult{Verdict: verdict, Before: verdict.Certificate}
	if !verdict.CanRedeem {
		return result, &NotRedeemableError{Code: code, Reason: verdict.Reason}
	}
	c := verdict.Certificate

	if err := ValidateAmount(req.Amount, c.Currency); err != nil {
		return result, err
	}
	if req.Amount.GreaterThan(c.CurrentBalance) {
		return result, &InsufficientBalanceError{
			CertificateID: c.ID,
			Available:     c.CurrentBalance,
			Requested:     req.Amount,
		}
	}

	newBalance := c.CurrentBalance.Sub(req.Amount)
	newStatus := StatusPartiallyUsed
	if !newBalance.IsPositive() {
		newStatus = StatusFullyUsed
	}

	tx := Transaction{
		ID:             TransactionID(uuid.NewString()),
		CertificateID:  c.ID,
		OrganizationID: c.OrganizationID,
		Type:           TxRedeemed,
		Amount:         req.Amount,
		BalanceBefore:  c.CurrentBalance,
		BalanceAfter:   newBalance,
		Sequence:       c.Version + 1,
		Timestamp:      now,
		Actor:          req.Actor,
		IdempotencyKey: req.IdempotencyKey,
	}
	updated, err := r.Store.Update(ctx, c.OrganizationID, c.ID, c.Version, Patch{
		Status:         &newStatus,
		CurrentBalance: &newBalance,
		UpdatedAt:      now,
	}, tx)
	if err != nil {
		return result, fmt.Errorf("redeem %s: %w", code, err)
	}

	result.NewBalance = updated.CurrentBalance
	result.Transaction = tx
	result.Certificate = updated
	return result, nil
}

// replay returns the earlier redemption recorded under req.IdempotencyKey.
func (r *Redeemer) replay(ctx context.Context, req RedeemRequest, code string) (RedeemResult, bool, error) {
	prior, err := r.Store.TransactionByIdempotencyKey(ctx, req.OrganizationID, req.IdempotencyKey)
	if err != nil {
		return RedeemResult{}, false, fmt.Errorf("lookup idempotency key: %w", err)
	}
	if prior == nil {
		return RedeemResult{}, false, nil
	}
	cert, err := r.Store.GetByID(ctx, req.OrganizationID, prior.CertificateID)
	if err != nil {
		return RedeemResult{}, false, fmt.Errorf("load replayed certificate: %w", err)
	}
	if prior.Type != TxRedeemed || cert.Code != code || !prior.Amount.Equal(req.Amount) {
		return RedeemResult{}, false, ErrIdempotencyConflict
	}
	return RedeemResult{
		NewBalance:  prior.BalanceAfter,
		Transaction: *prior,
		Certificate: cert,
		Replayed:    true,
	}, true, nil
}
