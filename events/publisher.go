/*
Package events delivers giftcert.Event values to collaborators.

PURPOSE:
  The engine publishes after every successful mutation (issue, redeem,
  cancel, expire). Email, receipt printing, and digital signage subscribe
  downstream; none of them is part of this module.

SINKS:
  LogPublisher:   Structured log line per event (default, dev)
  RedisPublisher: XADD to a Redis stream
  KafkaPublisher: One message per event, keyed by certificate id
  Multi:          Fan-out to several sinks

DELIVERY:
  At-most-once. The engine counts and logs a failed Publish but never
  retries it and never undoes the mutation.

SEE ALSO:
  - giftcert/events.go: Event envelope and EventPublisher interface
*/
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/warp/giftcert-engine/giftcert"
)

// Encode is the wire format shared by every sink.
func Encode(event giftcert.Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", event.Type, err)
	}
	return payload, nil
}

// =============================================================================
// LOG SINK
// =============================================================================

// LogPublisher writes each event as one log record.
type LogPublisher struct {
	Logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{Logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event giftcert.Event) error {
	p.Logger.InfoContext(ctx, "event",
		"event_id", event.ID,
		"event_type", event.Type,
		"organization_id", event.OrganizationID,
		"certificate_id", event.CertificateID,
		"amount", event.Amount.String(),
		"balance", event.Balance.String(),
		"currency", event.Currency,
		"status", event.Status,
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// =============================================================================
// FAN-OUT
// =============================================================================

// Multi publishes to every sink and joins their errors. One failing sink
// does not stop delivery to the others.
type Multi []giftcert.EventPublisher

func (m Multi) Publish(ctx context.Context, event giftcert.Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink that has a Close method.
func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if c, ok := p.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
