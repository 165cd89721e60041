package giftcert

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// EVENTS - Emitted after successful mutations for collaborators
// =============================================================================

type EventType string

const (
	EventIssued    EventType = "giftcert.issued"
	EventRedeemed  EventType = "giftcert.redeemed"
	EventCancelled EventType = "giftcert.cancelled"
	EventExpired   EventType = "giftcert.expired"
)

// Event is the envelope handed to collaborators (email, receipts, signage).
// Recipient travels with it so notification delivery needs no lookup.
type Event struct {
	ID             string          `json:"id"`
	Type           EventType       `json:"type"`
	OrganizationID OrganizationID  `json:"organization_id"`
	CertificateID  CertificateID   `json:"certificate_id"`
	Code           string          `json:"code"`
	Amount         decimal.Decimal `json:"amount"`
	Balance        decimal.Decimal `json:"balance"`
	Currency       string          `json:"currency"`
	Status         Status          `json:"status"`
	Recipient      Recipient       `json:"recipient"`
	QRPayload      string          `json:"qr_payload,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

// EventPublisher delivers events. Publishing is fire-and-forget from the
// engine's point of view: a failure never rolls back the mutation.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// EventPublisherFunc adapts a function to EventPublisher.
type EventPublisherFunc func(ctx context.Context, event Event) error

func (f EventPublisherFunc) Publish(ctx context.Context, event Event) error { return f(ctx, event) }

func newEvent(typ EventType, c Certificate, amount decimal.Decimal, at time.Time) Event {
	return Event{
		ID:             uuid.NewString(),
		Type:           typ,
		OrganizationID: c.OrganizationID,
		CertificateID:  c.ID,
		Code:           c.Code,
		Amount:         amount,
		Balance:        c.CurrentBalance,
		Currency:       c.Currency,
		Status:         c.Status,
		Recipient:      c.Recipient,
		OccurredAt:     at,
	}
}
