package giftcert_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/giftcert-engine/giftcert"
)

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		amount   string
		currency string
		ok       bool
	}{
		{"10", "USD", true},
		{"10.25", "USD", true},
		{"10.500", "USD", true}, // trailing zero, still whole cents
		{"999999999999.99", "USD", true},
		{"1.234", "KWD", true},
		{"500", "JPY", true},
		{"0.001", "USD", false},
		{"100.5", "JPY", false},
		{"1.23456", "CLF", false},
		{"1e-20000000", "USD", false},
		{"1e20000000", "USD", false},
		{"1000000000000", "USD", false},
		{"0", "USD", false},
		{"-1", "USD", false},
	}
	for _, tt := range tests {
		t.Run(tt.amount+" "+tt.currency, func(t *testing.T) {
			err := giftcert.ValidateAmount(decimal.RequireFromString(tt.amount), tt.currency)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, giftcert.ErrInvalidAmount)
			}
		})
	}
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int32(2), giftcert.MinorUnits("usd"))
	assert.Equal(t, int32(0), giftcert.MinorUnits("JPY"))
	assert.Equal(t, int32(3), giftcert.MinorUnits("BHD"))
}

func TestRedeemRejectsOutOfRangeAmounts(t *testing.T) {
	// GIVEN: a 100 USD certificate
	f := newFixture(t)
	cert := f.issue(t, "100", nil)

	for _, amount := range []string{"0.001", "1e-20000000", "1e20000000", "0.00001"} {
		t.Run(amount, func(t *testing.T) {
			// WHEN: redeeming an amount finer than a cent or absurdly large
			start := time.Now()
			_, err := f.svc.Redeem(context.Background(), giftcert.RedeemRequest{
				OrganizationID: org,
				Code:           cert.Code,
				Amount:         decimal.RequireFromString(amount),
				IdempotencyKey: "key-" + amount,
			})

			// THEN: rejected quickly and the balance is untouched
			assert.ErrorIs(t, err, giftcert.ErrInvalidAmount)
			assert.Less(t, time.Since(start), 5*time.Second)

			stored, err := f.svc.Get(context.Background(), org, cert.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(1), stored.Version)
			assert.Equal(t, "100", stored.CurrentBalance.String())
		})
	}

	txs, err := f.svc.Transactions(context.Background(), org, cert.ID)
	require.NoError(t, err)
	assert.Len(t, txs, 1)

	// AND: the failed attempts are audited without expanding the exponent
	failed := f.auditActions(giftcert.AuditRedeem)
	require.Len(t, failed, 4)
	for _, e := range failed {
		assert.NotEmpty(t, e.Error)
		assert.Less(t, len(e.Details["amount"].(string)), 64)
	}
}

func TestCreateRejectsOutOfRangeAmounts(t *testing.T) {
	f := newFixture(t)
	for _, amount := range []string{"0.005", "1e-20000000", "1e20000000"} {
		_, err := f.svc.Create(context.Background(), giftcert.IssueRequest{
			OrganizationID: org,
			Amount:         decimal.RequireFromString(amount),
		})
		assert.ErrorIs(t, err, giftcert.ErrInvalidAmount, amount)
	}

	certs, err := f.svc.List(context.Background(), org, giftcert.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, certs)
}

func TestCreateValidDaysUsesServiceClock(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Create(context.Background(), giftcert.IssueRequest{
		OrganizationID: org,
		Amount:         dec("10"),
		ValidDays:      10,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Certificate.ValidUntil)
	assert.Equal(t, t0.AddDate(0, 0, 10), *res.Certificate.ValidUntil)
	assert.Equal(t, t0, f.svc.Now())

	_, err = f.svc.Create(context.Background(), giftcert.IssueRequest{
		OrganizationID: org,
		Amount:         dec("10"),
		ValidDays:      -1,
	})
	assert.ErrorIs(t, err, giftcert.ErrInvalidRequest)
}
