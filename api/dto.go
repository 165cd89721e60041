/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  Amounts are decimal.Decimal, which marshals as a JSON string ("12.50")
  and accepts either a string or a number on input. Floats never touch a
  balance.

TIMES:
  RFC 3339 in UTC.

SEE ALSO:
  - handlers.go: Uses these types
  - giftcert/types.go: Domain types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/giftcert-engine/giftcert"
)

// =============================================================================
// CERTIFICATES
// =============================================================================

// CertificateDTO represents a certificate in API responses.
type CertificateDTO struct {
	ID              string             `json:"id"`
	OrganizationID  string             `json:"organization_id"`
	Code            string             `json:"code"`
	OriginalAmount  decimal.Decimal    `json:"original_amount"`
	CurrentBalance  decimal.Decimal    `json:"current_balance"`
	RedeemedAmount  decimal.Decimal    `json:"redeemed_amount"`
	ForfeitedAmount decimal.Decimal    `json:"forfeited_amount"`
	Currency        string             `json:"currency"`
	Status          string             `json:"status"`
	ValidFrom       string             `json:"valid_from"`
	ValidUntil      *string            `json:"valid_until,omitempty"`
	IssuedAt        string             `json:"issued_at"`
	IssuedBy        string             `json:"issued_by,omitempty"`
	Recipient       giftcert.Recipient `json:"recipient"`
	Metadata        map[string]any     `json:"metadata,omitempty"`
	CancelledAt     *string            `json:"cancelled_at,omitempty"`
	CancelReason    string             `json:"cancel_reason,omitempty"`
	Version         int64              `json:"version"`
	UpdatedAt       string             `json:"updated_at"`
	QRPayload       string             `json:"qr_payload,omitempty"`
}

// CreateCertificateRequest is the request to issue a certificate.
// ValidUntil and ValidDays are alternatives; ValidUntil wins if both are set.
type CreateCertificateRequest struct {
	Amount     decimal.Decimal    `json:"amount"`
	Currency   string             `json:"currency,omitempty"`
	ValidFrom  *string            `json:"valid_from,omitempty"`
	ValidUntil *string            `json:"valid_until,omitempty"`
	ValidDays  *int               `json:"valid_days,omitempty"`
	Recipient  giftcert.Recipient `json:"recipient"`
	Metadata   map[string]any     `json:"metadata,omitempty"`
	Actor      string             `json:"actor,omitempty"`
}

// CertificateListResponse wraps a certificate listing.
type CertificateListResponse struct {
	Certificates []CertificateDTO `json:"certificates"`
	Count        int              `json:"count"`
}

// =============================================================================
// VALIDATE / REDEEM / CANCEL
// =============================================================================

// ValidateRequest identifies a certificate by typed code or scanned QR
// payload.
type ValidateRequest struct {
	Code      string `json:"code,omitempty"`
	QRPayload string `json:"qr_payload,omitempty"`
}

// VerdictDTO is the validation outcome.
type VerdictDTO struct {
	Code             string          `json:"code"`
	Valid            bool            `json:"valid"`
	CanRedeem        bool            `json:"can_redeem"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	Currency         string          `json:"currency,omitempty"`
	Status           string          `json:"status,omitempty"`
	Reason           string          `json:"reason,omitempty"`
	ReasonCode       string          `json:"reason_code,omitempty"`
	ValidUntil       *string         `json:"valid_until,omitempty"`
}

// RedeemRequest debits a certificate. The Idempotency-Key header is used
// when IdempotencyKey is empty.
type RedeemRequest struct {
	Code           string          `json:"code,omitempty"`
	QRPayload      string          `json:"qr_payload,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Actor          string          `json:"actor,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

// RedeemResponse is returned by a successful (or replayed) redemption.
type RedeemResponse struct {
	NewBalance  decimal.Decimal `json:"new_balance"`
	Transaction TransactionDTO  `json:"transaction"`
	Certificate CertificateDTO  `json:"certificate"`
	Replayed    bool            `json:"replayed,omitempty"`
}

// CancelRequest is the request to cancel a certificate.
type CancelRequest struct {
	Reason string `json:"reason"`
	Actor  string `json:"actor,omitempty"`
}

// =============================================================================
// LEDGER
// =============================================================================

// TransactionDTO represents one ledger entry.
type TransactionDTO struct {
	ID             string          `json:"id"`
	CertificateID  string          `json:"certificate_id"`
	Type           string          `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	BalanceBefore  decimal.Decimal `json:"balance_before"`
	BalanceAfter   decimal.Decimal `json:"balance_after"`
	Sequence       int64           `json:"sequence"`
	Timestamp      string          `json:"timestamp"`
	Actor          string          `json:"actor,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

// TransactionsResponse is a certificate's ledger plus its reconciliation
// result.
type TransactionsResponse struct {
	CertificateID  string           `json:"certificate_id"`
	Transactions   []TransactionDTO `json:"transactions"`
	Reconciled     bool             `json:"reconciled"`
	ReconcileError string           `json:"reconcile_error,omitempty"`
}

// =============================================================================
// STATS
// =============================================================================

// CurrencyStatsDTO aggregates one currency.
type CurrencyStatsDTO struct {
	Currency         string          `json:"currency"`
	TotalIssued      int             `json:"total_issued"`
	TotalValueIssued decimal.Decimal `json:"total_value_issued"`
	ActiveBalance    decimal.Decimal `json:"active_balance"`
	ExpiredBalance   decimal.Decimal `json:"expired_balance"`
	ForfeitedBalance decimal.Decimal `json:"forfeited_balance"`
	TotalRedeemed    decimal.Decimal `json:"total_redeemed"`
	RedemptionRate   decimal.Decimal `json:"redemption_rate"`
}

// StatsDTO is the organization-wide aggregate.
type StatsDTO struct {
	OrganizationID string             `json:"organization_id"`
	TotalIssued    int                `json:"total_issued"`
	CountByStatus  map[string]int     `json:"count_by_status"`
	Currencies     []CurrencyStatsDTO `json:"currencies"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func toCertificateDTO(c giftcert.Certificate) CertificateDTO {
	return CertificateDTO{
		ID:              string(c.ID),
		OrganizationID:  string(c.OrganizationID),
		Code:            c.Code,
		OriginalAmount:  c.OriginalAmount,
		CurrentBalance:  c.CurrentBalance,
		RedeemedAmount:  c.RedeemedAmount(),
		ForfeitedAmount: c.ForfeitedAmount,
		Currency:        c.Currency,
		Status:          string(c.Status),
		ValidFrom:       formatTime(c.ValidFrom),
		ValidUntil:      formatTimePtr(c.ValidUntil),
		IssuedAt:        formatTime(c.IssuedAt),
		IssuedBy:        c.IssuedBy,
		Recipient:       c.Recipient,
		Metadata:        c.Metadata,
		CancelledAt:     formatTimePtr(c.CancelledAt),
		CancelReason:    c.CancelReason,
		Version:         c.Version,
		UpdatedAt:       formatTime(c.UpdatedAt),
	}
}

func toTransactionDTO(tx giftcert.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:             string(tx.ID),
		CertificateID:  string(tx.CertificateID),
		Type:           string(tx.Type),
		Amount:         tx.Amount,
		BalanceBefore:  tx.BalanceBefore,
		BalanceAfter:   tx.BalanceAfter,
		Sequence:       tx.Sequence,
		Timestamp:      formatTime(tx.Timestamp),
		Actor:          tx.Actor,
		IdempotencyKey: tx.IdempotencyKey,
	}
}

func toVerdictDTO(code string, v giftcert.Verdict) VerdictDTO {
	dto := VerdictDTO{
		Code:             code,
		Valid:            v.Valid,
		CanRedeem:        v.CanRedeem,
		RemainingBalance: v.RemainingBalance,
	}
	if v.Reason != nil {
		dto.Reason = v.Reason.Error()
		dto.ReasonCode = giftcert.Kind(v.Reason)
	}
	if c := v.Certificate; c != nil {
		dto.Currency = c.Currency
		dto.Status = string(c.Status)
		dto.ValidUntil = formatTimePtr(c.ValidUntil)
	}
	return dto
}

func toStatsDTO(org giftcert.OrganizationID, s giftcert.Stats) StatsDTO {
	dto := StatsDTO{
		OrganizationID: string(org),
		TotalIssued:    s.TotalIssued,
		CountByStatus:  make(map[string]int, len(s.CountByStatus)),
		Currencies:     make([]CurrencyStatsDTO, 0, len(s.Currencies)),
	}
	for status, n := range s.CountByStatus {
		dto.CountByStatus[string(status)] = n
	}
	for _, cs := range s.Currencies {
		dto.Currencies = append(dto.Currencies, CurrencyStatsDTO{
			Currency:         cs.Currency,
			TotalIssued:      cs.TotalIssued,
			TotalValueIssued: cs.TotalValueIssued,
			ActiveBalance:    cs.ActiveBalance,
			ExpiredBalance:   cs.ExpiredBalance,
			ForfeitedBalance: cs.ForfeitedBalance,
			TotalRedeemed:    cs.TotalRedeemed,
			RedemptionRate:   cs.RedemptionRate,
		})
	}
	return dto
}
