/*
Package giftcert provides the gift-certificate ledger and redemption engine.

PURPOSE:
  Issues certificates with human-transcribable codes, tracks their balances,
  validates them at the point of sale, redeems them partially or fully, and
  keeps an append-only ledger plus a best-effort audit trail of every action.
  Money is never created or destroyed outside the ledger's rules.

KEY CONCEPTS IN THIS FILE (types.go):
  - Certificate: the stored balance holder, guarded by a version token
  - Status: lifecycle state (persisted status is the only source of truth)
  - Transaction: an immutable ledger row (issued, redeemed, cancelled)
  - Patch: the only way a stored certificate changes

STATE MACHINE:
  active --(partial redeem)--> partially_used --(full redeem)--> fully_used
  {active, partially_used} --(valid_until passed)--> expired
  any non-terminal --(cancel)--> cancelled
  Terminal: fully_used, expired, cancelled. Never reversed.

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for all money
  2. CAS: every update carries the version it was computed from
  3. Opaque metadata: the engine stores Metadata and Recipient, never reads them

SEE ALSO:
  - validation.go: Verdict computation and lazy expiry
  - redemption.go: Balance mutation
  - store.go: Persistence interfaces
*/
package giftcert

import (
	"maps"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type OrganizationID string
type CertificateID string
type TransactionID string

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusActive        Status = "active"
	StatusPartiallyUsed Status = "partially_used"
	StatusFullyUsed     Status = "fully_used"
	StatusExpired       Status = "expired"
	StatusCancelled     Status = "cancelled"
)

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	return s == StatusFullyUsed || s == StatusExpired || s == StatusCancelled
}

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPartiallyUsed, StatusFullyUsed, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// Redeemable reports whether s still holds spendable value.
func (s Status) Redeemable() bool {
	return s == StatusActive || s == StatusPartiallyUsed
}

// =============================================================================
// CERTIFICATE
// =============================================================================

// Recipient is carried for collaborators (email, receipts). The engine never
// inspects it.
type Recipient struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Message string `json:"message,omitempty"`
}

type Certificate struct {
	ID              CertificateID
	OrganizationID  OrganizationID
	Code            string
	OriginalAmount  decimal.Decimal
	CurrentBalance  decimal.Decimal
	ForfeitedAmount decimal.Decimal // balance removed by cancellation
	Currency        string
	Status          Status
	ValidFrom       time.Time
	ValidUntil      *time.Time
	IssuedAt        time.Time
	IssuedBy        string
	Recipient       Recipient
	Metadata        map[string]any

	CancelledAt  *time.Time
	CancelReason string

	// Version is the CAS token. 1 on insert, +1 on every update.
	Version   int64
	UpdatedAt time.Time
}

// Clone returns a copy that shares no mutable state with c.
func (c Certificate) Clone() Certificate {
	out := c
	out.Metadata = maps.Clone(c.Metadata)
	if c.ValidUntil != nil {
		t := *c.ValidUntil
		out.ValidUntil = &t
	}
	if c.CancelledAt != nil {
		t := *c.CancelledAt
		out.CancelledAt = &t
	}
	return out
}

// RedeemedAmount is what has been spent, excluding forfeited balance.
func (c Certificate) RedeemedAmount() decimal.Decimal {
	return c.OriginalAmount.Sub(c.CurrentBalance).Sub(c.ForfeitedAmount)
}

// StatusForBalance derives the non-terminal status a balance implies.
func StatusForBalance(balance, original decimal.Decimal) Status {
	switch {
	case !balance.IsPositive():
		return StatusFullyUsed
	case balance.LessThan(original):
		return StatusPartiallyUsed
	default:
		return StatusActive
	}
}

// =============================================================================
// PATCH - The only mutation a store applies
// =============================================================================

// Patch lists the fields an update changes. Nil fields are left untouched.
type Patch struct {
	Status          *Status
	CurrentBalance  *decimal.Decimal
	ForfeitedAmount *decimal.Decimal
	CancelledAt     *time.Time
	CancelReason    *string
	UpdatedAt       time.Time
}

// Apply returns c with p applied and the version bumped. Stores call this
// after the version check succeeds.
func (c Certificate) Apply(p Patch) Certificate {
	out := c.Clone()
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.CurrentBalance != nil {
		out.CurrentBalance = *p.CurrentBalance
	}
	if p.ForfeitedAmount != nil {
		out.ForfeitedAmount = *p.ForfeitedAmount
	}
	if p.CancelledAt != nil {
		t := *p.CancelledAt
		out.CancelledAt = &t
	}
	if p.CancelReason != nil {
		out.CancelReason = *p.CancelReason
	}
	out.UpdatedAt = p.UpdatedAt
	out.Version = c.Version + 1
	return out
}

// =============================================================================
// TRANSACTION - Immutable ledger row
// =============================================================================

type TransactionType string

const (
	TxIssued    TransactionType = "issued"
	TxRedeemed  TransactionType = "redeemed"
	TxCancelled TransactionType = "cancelled"
)

type Transaction struct {
	ID             TransactionID
	CertificateID  CertificateID
	OrganizationID OrganizationID
	Type           TransactionType
	Amount         decimal.Decimal
	BalanceBefore  decimal.Decimal
	BalanceAfter   decimal.Decimal
	// Sequence is the certificate version this entry produced.
	Sequence       int64
	Timestamp      time.Time
	Actor          string
	IdempotencyKey string
}

// =============================================================================
// LIST FILTER
// =============================================================================

type ListFilter struct {
	Statuses     []Status
	ExpiringFrom *time.Time // ValidUntil >= ExpiringFrom
	ExpiringTo   *time.Time // ValidUntil < ExpiringTo
	Limit        int
}

// Matches reports whether c passes the filter. Shared by in-memory stores;
// SQL stores translate the same fields into WHERE clauses.
func (f ListFilter) Matches(c Certificate) bool {
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if c.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.ExpiringFrom != nil || f.ExpiringTo != nil {
		if c.ValidUntil == nil {
			return false
		}
		if f.ExpiringFrom != nil && c.ValidUntil.Before(*f.ExpiringFrom) {
			return false
		}
		if f.ExpiringTo != nil && !c.ValidUntil.Before(*f.ExpiringTo) {
			return false
		}
	}
	return true
}
