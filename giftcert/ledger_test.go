package giftcert_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/giftcert-engine/giftcert"
)

func TestReconcileDetectsTampering(t *testing.T) {
	// GIVEN: a certificate with issue, two redemptions, and a cancel
	f := newFixture(t)
	cert := f.issue(t, "100", nil)
	_, err := f.redeem(cert.Code, "10")
	require.NoError(t, err)
	_, err = f.redeem(cert.Code, "15.50")
	require.NoError(t, err)
	_, err = f.svc.Cancel(context.Background(), org, cert.ID, "lost", "manager")
	require.NoError(t, err)

	stored, err := f.svc.Get(context.Background(), org, cert.ID)
	require.NoError(t, err)
	txs, err := f.svc.Transactions(context.Background(), org, cert.ID)
	require.NoError(t, err)
	require.Len(t, txs, 4)
	require.NoError(t, giftcert.Reconcile(stored, txs))

	for i, tx := range txs {
		assert.Equal(t, int64(i+1), tx.Sequence)
	}

	tests := []struct {
		name   string
		tamper func(c *giftcert.Certificate, txs []giftcert.Transaction) []giftcert.Transaction
	}{
		{"balance edited", func(c *giftcert.Certificate, txs []giftcert.Transaction) []giftcert.Transaction {
			c.CurrentBalance = dec("5")
			return txs
		}},
		{"entry amount edited", func(_ *giftcert.Certificate, txs []giftcert.Transaction) []giftcert.Transaction {
			txs[1].Amount = dec("1")
			return txs
		}},
		{"entry removed", func(_ *giftcert.Certificate, txs []giftcert.Transaction) []giftcert.Transaction {
			return append(txs[:1:1], txs[2:]...)
		}},
		{"forfeit edited", func(c *giftcert.Certificate, txs []giftcert.Transaction) []giftcert.Transaction {
			c.ForfeitedAmount = decimal.Zero
			return txs
		}},
		{"missing issue", func(_ *giftcert.Certificate, txs []giftcert.Transaction) []giftcert.Transaction {
			return txs[1:]
		}},
		{"empty", func(_ *giftcert.Certificate, _ []giftcert.Transaction) []giftcert.Transaction {
			return nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := stored.Clone()
			chain := tt.tamper(&c, append([]giftcert.Transaction(nil), txs...))

			err := giftcert.Reconcile(c, chain)

			var re *giftcert.ReconciliationError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, cert.ID, re.CertificateID)
		})
	}
}

func TestRedeemedAmountExcludesForfeit(t *testing.T) {
	c := giftcert.Certificate{
		OriginalAmount:  dec("100"),
		CurrentBalance:  decimal.Zero,
		ForfeitedAmount: dec("60"),
	}
	assert.True(t, c.RedeemedAmount().Equal(dec("40")))
}

func TestApplyBumpsVersionAndClones(t *testing.T) {
	meta := map[string]any{"campaign": "spring"}
	c := giftcert.Certificate{Version: 4, Status: giftcert.StatusActive, Metadata: meta}
	status := giftcert.StatusPartiallyUsed
	balance := dec("3")

	out := c.Apply(giftcert.Patch{Status: &status, CurrentBalance: &balance, UpdatedAt: t0})

	assert.Equal(t, int64(5), out.Version)
	assert.Equal(t, giftcert.StatusPartiallyUsed, out.Status)
	assert.True(t, out.CurrentBalance.Equal(balance))
	assert.Equal(t, t0, out.UpdatedAt)
	out.Metadata["campaign"] = "winter"
	assert.Equal(t, "spring", meta["campaign"])
	assert.Equal(t, giftcert.StatusActive, c.Status)
}
