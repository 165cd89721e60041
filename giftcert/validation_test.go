package giftcert_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/warp/giftcert-engine/giftcert"
)

func TestEvaluateOrderedChecks(t *testing.T) {
	past := t0.Add(-time.Hour)
	future := t0.Add(time.Hour)
	base := func(mut func(c *giftcert.Certificate)) *giftcert.Certificate {
		c := &giftcert.Certificate{
			ID:             "c-1",
			OriginalAmount: dec("100"),
			CurrentBalance: dec("100"),
			Status:         giftcert.StatusActive,
			ValidFrom:      past,
		}
		mut(c)
		return c
	}

	tests := []struct {
		name      string
		cert      *giftcert.Certificate
		valid     bool
		canRedeem bool
		reason    error
	}{
		{"not found", nil, false, false, giftcert.ErrNotFound},
		{"active", base(func(*giftcert.Certificate) {}), true, true, nil},
		{"cancelled beats everything", base(func(c *giftcert.Certificate) {
			c.Status = giftcert.StatusCancelled
			c.CurrentBalance = decimal.Zero
			c.ValidUntil = &past
		}), false, false, giftcert.ErrAlreadyCancelled},
		{"exhausted beats expiry", base(func(c *giftcert.Certificate) {
			c.Status = giftcert.StatusFullyUsed
			c.CurrentBalance = decimal.Zero
			c.ValidUntil = &past
		}), true, false, giftcert.ErrExhausted},
		{"zero balance while active", base(func(c *giftcert.Certificate) {
			c.CurrentBalance = decimal.Zero
		}), true, false, giftcert.ErrExhausted},
		{"persisted expiry", base(func(c *giftcert.Certificate) {
			c.Status = giftcert.StatusExpired
		}), false, false, giftcert.ErrExpired},
		{"clock past valid_until", base(func(c *giftcert.Certificate) {
			c.ValidUntil = &past
		}), false, false, giftcert.ErrExpired},
		{"exactly at valid_until", base(func(c *giftcert.Certificate) {
			c.ValidUntil = &t0
		}), true, true, nil},
		{"expiry beats not-yet-valid", base(func(c *giftcert.Certificate) {
			c.ValidFrom = future
			c.ValidUntil = &past
		}), false, false, giftcert.ErrExpired},
		{"not yet valid", base(func(c *giftcert.Certificate) {
			c.ValidFrom = future
		}), true, false, giftcert.ErrNotYetValid},
		{"partially used", base(func(c *giftcert.Certificate) {
			c.Status = giftcert.StatusPartiallyUsed
			c.CurrentBalance = dec("0.01")
		}), true, true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := giftcert.Evaluate(tt.cert, t0)

			assert.Equal(t, tt.valid, v.Valid, "valid")
			assert.Equal(t, tt.canRedeem, v.CanRedeem, "can_redeem")
			if tt.reason == nil {
				assert.NoError(t, v.Reason)
			} else {
				assert.ErrorIs(t, v.Reason, tt.reason)
			}
			assert.Empty(t, v.Corrected, "Evaluate never persists")
		})
	}
}

func TestStatusPredicates(t *testing.T) {
	for _, s := range []giftcert.Status{giftcert.StatusFullyUsed, giftcert.StatusExpired, giftcert.StatusCancelled} {
		assert.True(t, s.Terminal(), s)
		assert.False(t, s.Redeemable(), s)
	}
	for _, s := range []giftcert.Status{giftcert.StatusActive, giftcert.StatusPartiallyUsed} {
		assert.False(t, s.Terminal(), s)
		assert.True(t, s.Redeemable(), s)
	}
	assert.False(t, giftcert.Status("refunded").Valid())
}

func TestStatusForBalance(t *testing.T) {
	assert.Equal(t, giftcert.StatusActive, giftcert.StatusForBalance(dec("10"), dec("10")))
	assert.Equal(t, giftcert.StatusPartiallyUsed, giftcert.StatusForBalance(dec("4"), dec("10")))
	assert.Equal(t, giftcert.StatusFullyUsed, giftcert.StatusForBalance(decimal.Zero, dec("10")))
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		err    error
		kind   string
		client bool
	}{
		{nil, "ok", false},
		{giftcert.ErrNotFound, "not_found", false},
		{&giftcert.NotRedeemableError{Code: "X", Reason: giftcert.ErrExpired}, "expired", true},
		{&giftcert.InsufficientBalanceError{Available: dec("1"), Requested: dec("2")}, "insufficient_balance", true},
		{fmt.Errorf("redeem: %w", giftcert.ErrConcurrentModification), "concurrent_modification", false},
		{giftcert.ErrIdempotencyConflict, "idempotency_conflict", true},
		{giftcert.ErrGenerationExhausted, "generation_exhausted", false},
		{errors.New("disk on fire"), "internal", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.kind, giftcert.Kind(tt.err))
		assert.Equal(t, tt.client, giftcert.IsClientError(tt.err), tt.kind)
	}
	assert.True(t, giftcert.IsRetryable(fmt.Errorf("x: %w", giftcert.ErrConcurrentModification)))
	assert.True(t, giftcert.IsNotFound(giftcert.ErrNotFound))
}
