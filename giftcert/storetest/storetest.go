// Package storetest holds the contract every giftcert.Store implementation
// must satisfy. Backends call Run from their own tests with a factory that
// returns a fresh, empty store.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/giftcert-engine/giftcert"
)

const org giftcert.OrganizationID = "org-contract"

var t0 = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

// Run executes the contract suite against stores built by newStore.
func Run(t *testing.T, newStore func(t *testing.T) giftcert.Store) {
	t.Run("InsertAndGet", func(t *testing.T) { testInsertAndGet(t, newStore(t)) })
	t.Run("DuplicateCode", func(t *testing.T) { testDuplicateCode(t, newStore(t)) })
	t.Run("CodesScopedByOrganization", func(t *testing.T) { testCodesScopedByOrganization(t, newStore(t)) })
	t.Run("UpdateCAS", func(t *testing.T) { testUpdateCAS(t, newStore(t)) })
	t.Run("UpdateNotFound", func(t *testing.T) { testUpdateNotFound(t, newStore(t)) })
	t.Run("ConcurrentUpdatesOneWinner", func(t *testing.T) { testConcurrentUpdates(t, newStore(t)) })
	t.Run("IdempotencyKey", func(t *testing.T) { testIdempotencyKey(t, newStore(t)) })
	t.Run("ListFilters", func(t *testing.T) { testListFilters(t, newStore(t)) })
	t.Run("Audit", func(t *testing.T) { testAudit(t, newStore(t)) })
}

// =============================================================================
// FIXTURES
// =============================================================================

func newCert(id, code string, amount int64, validUntil *time.Time) (giftcert.Certificate, giftcert.Transaction) {
	amt := decimal.NewFromInt(amount)
	cert := giftcert.Certificate{
		ID:              giftcert.CertificateID(id),
		OrganizationID:  org,
		Code:            code,
		OriginalAmount:  amt,
		CurrentBalance:  amt,
		ForfeitedAmount: decimal.Zero,
		Currency:        "USD",
		Status:          giftcert.StatusActive,
		ValidFrom:       t0,
		ValidUntil:      validUntil,
		IssuedAt:        t0,
		IssuedBy:        "tester",
		Recipient:       giftcert.Recipient{Name: "Ada", Email: "ada@example.com"},
		Metadata:        map[string]any{"campaign": "spring"},
		Version:         1,
		UpdatedAt:       t0,
	}
	tx := giftcert.Transaction{
		ID:             giftcert.TransactionID(id + "-tx-1"),
		CertificateID:  cert.ID,
		OrganizationID: org,
		Type:           giftcert.TxIssued,
		Amount:         amt,
		BalanceBefore:  decimal.Zero,
		BalanceAfter:   amt,
		Sequence:       1,
		Timestamp:      t0,
		Actor:          "tester",
	}
	return cert, tx
}

func redeemTx(cert giftcert.Certificate, n int64, amount int64, key string) giftcert.Transaction {
	amt := decimal.NewFromInt(amount)
	return giftcert.Transaction{
		ID:             giftcert.TransactionID(string(cert.ID) + "-tx-" + decimal.NewFromInt(n).String()),
		CertificateID:  cert.ID,
		OrganizationID: cert.OrganizationID,
		Type:           giftcert.TxRedeemed,
		Amount:         amt,
		BalanceBefore:  cert.CurrentBalance,
		BalanceAfter:   cert.CurrentBalance.Sub(amt),
		Sequence:       n,
		Timestamp:      t0.Add(time.Minute),
		Actor:          "cashier",
		IdempotencyKey: key,
	}
}

func statusPtr(s giftcert.Status) *giftcert.Status { return &s }

func decPtr(d decimal.Decimal) *decimal.Decimal { return &d }

func timePtr(t time.Time) *time.Time { return &t }

// =============================================================================
// CONTRACT
// =============================================================================

func testInsertAndGet(t *testing.T, s giftcert.Store) {
	ctx := context.Background()
	until := t0.AddDate(1, 0, 0)
	cert, tx := newCert("c1", "GC-AAAA-BBBB-CCCC", 100, &until)
	require.NoError(t, s.Insert(ctx, cert, tx))

	byCode, err := s.GetByCode(ctx, org, cert.Code)
	require.NoError(t, err)
	assert.Equal(t, cert.ID, byCode.ID)
	assert.True(t, byCode.OriginalAmount.Equal(cert.OriginalAmount))
	assert.True(t, byCode.CurrentBalance.Equal(cert.CurrentBalance))
	assert.Equal(t, giftcert.StatusActive, byCode.Status)
	assert.Equal(t, int64(1), byCode.Version)
	assert.Equal(t, "Ada", byCode.Recipient.Name)
	assert.Equal(t, "spring", byCode.Metadata["campaign"])
	require.NotNil(t, byCode.ValidUntil)
	assert.True(t, byCode.ValidUntil.Equal(until))
	assert.True(t, byCode.ValidFrom.Equal(t0))

	byID, err := s.GetByID(ctx, org, cert.ID)
	require.NoError(t, err)
	assert.Equal(t, cert.Code, byID.Code)

	exists, err := s.CodeExists(ctx, org, cert.Code)
	require.NoError(t, err)
	assert.True(t, exists)

	txs, err := s.Transactions(ctx, org, cert.ID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, giftcert.TxIssued, txs[0].Type)
	assert.True(t, txs[0].BalanceAfter.Equal(decimal.NewFromInt(100)))

	_, err = s.GetByCode(ctx, org, "GC-NOPE-NOPE-NOPE")
	assert.ErrorIs(t, err, giftcert.ErrNotFound)
	_, err = s.GetByID(ctx, "other-org", cert.ID)
	assert.ErrorIs(t, err, giftcert.ErrNotFound)
}

func testDuplicateCode(t *testing.T, s giftcert.Store) {
	ctx := context.Background()
	a, atx := newCert("c1", "GC-DUPE-DUPE-DUPE", 10, nil)
	b, btx := newCert("c2", "GC-DUPE-DUPE-DUPE", 20, nil)

	require.NoError(t, s.Insert(ctx, a, atx))
	err := s.Insert(ctx, b, btx)
	assert.ErrorIs(t, err, giftcert.ErrDuplicateCode)

	// The losing insert leaves no ledger entry behind.
	txs, err := s.Transactions(ctx, org, b.ID)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func testCodesScopedByOrganization(t *testing.T, s giftcert.Store) {
	ctx := context.Background()
	a, atx := newCert("c1", "GC-SAME-SAME-SAME", 10, nil)
	b, btx := newCert("c2", "GC-SAME-SAME-SAME", 20, nil)
	b.OrganizationID = "org-other"
	btx.OrganizationID = "org-other"

	require.NoError(t, s.Insert(ctx, a, atx))
	require.NoError(t, s.Insert(ctx, b, btx))

	got, err := s.GetByCode(ctx, "org-other", b.Code)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
}

func testUpdateCAS(t *testing.T, s giftcert.Store) {
	ctx := context.Background()
	cert, tx := newCert("c1", "GC-CASS-CASS-CASS", 100, nil)
	require.NoError(t, s.Insert(ctx, cert, tx))

	// GIVEN: version 1 in store
	// WHEN: a redemption is applied at version 1
	// THEN: version becomes 2 and the ledger grows by one entry
	entry := redeemTx(cert, 2, 40, "")
	updated, err := s.Update(ctx, org, cert.ID, 1, giftcert.Patch{
		Status:         statusPtr(giftcert.StatusPartiallyUsed),
		CurrentBalance: decPtr(decimal.NewFromInt(60)),
		UpdatedAt:      t0.Add(time.Minute),
	}, entry)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.True(t, updated.CurrentBalance.Equal(decimal.NewFromInt(60)))
	assert.Equal(t, giftcert.StatusPartiallyUsed, updated.Status)

	// WHEN: a second writer still holds version 1
	// THEN: the update is rejected and nothing changes
	_, err = s.Update(ctx, org, cert.ID, 1, giftcert.Patch{
		CurrentBalance: decPtr(decimal.NewFromInt(0)),
		UpdatedAt:      t0.Add(2 * time.Minute),
	}, redeemTx(cert, 2, 100, ""))
	assert.ErrorIs(t, err, giftcert.ErrConcurrentModification)

	stored, err := s.GetByID(ctx, org, cert.ID)
	require.NoError(t, err)
	assert.True(t, stored.CurrentBalance.Equal(decimal.NewFromInt(60)))
	assert.Equal(t, int64(2), stored.Version)

	txs, err := s.Transactions(ctx, org, cert.ID)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, int64(1), txs[0].Sequence)
	assert.Equal(t, int64(2), txs[1].Sequence)

	// Cancel fields round-trip.
	reason := "fraud"
	cancelledAt := t0.Add(time.Hour)
	cancelled, err := s.Update(ctx, org, cert.ID, 2, giftcert.Patch{
		Status:          statusPtr(giftcert.StatusCancelled),
		CurrentBalance:  decPtr(decimal.Zero),
		ForfeitedAmount: decPtr(decimal.NewFromInt(60)),
		CancelledAt:     timePtr(cancelledAt),
		CancelReason:    &reason,
		UpdatedAt:       cancelledAt,
	})
	require.NoError(t, err)
	reread, err := s.GetByID(ctx, org, cert.ID)
	require.NoError(t, err)
	assert.Equal(t, cancelled.Version, reread.Version)
	assert.Equal(t, giftcert.StatusCancelled, reread.Status)
	assert.Equal(t, "fraud", reread.CancelReason)
	assert.True(t, reread.ForfeitedAmount.Equal(decimal.NewFromInt(60)))
	require.NotNil(t, reread.CancelledAt)
	assert.True(t, reread.CancelledAt.Equal(cancelledAt))
}

func testUpdateNotFound(t *testing.T, s giftcert.Store) {
	_, err := s.Update(context.Background(), org, "missing", 1, giftcert.Patch{UpdatedAt: t0})
	assert.ErrorIs(t, err, giftcert.ErrNotFound)
}

func testConcurrentUpdates(t *testing.T, s giftcert.Store) {
	ctx := context.Background()
	cert, tx := newCert("c1", "GC-RACE-RACE-RACE", 100, nil)
	require.NoError(t, s.Insert(ctx, cert, tx))

	// GIVEN: 8 writers all computed from version 1
	// THEN: exactly one lands
	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, org, cert.ID, 1, giftcert.Patch{
				Status:         statusPtr(giftcert.StatusPartiallyUsed),
				CurrentBalance: decPtr(decimal.NewFromInt(90)),
				UpdatedAt:      t0,
			}, redeemTx(cert, 2, 10, ""))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case giftcert.IsRetryable(err):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, writers-1, conflicts)

	txs, err := s.Transactions(ctx, org, cert.ID)
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}

func testIdempotencyKey(t *testing.T, s giftcert.Store) {
	ctx := context.Background()
	cert, tx := newCert("c1", "GC-IDEM-IDEM-IDEM", 100, nil)
	require.NoError(t, s.Insert(ctx, cert, tx))

	none, err := s.TransactionByIdempotencyKey(ctx, org, "key-1")
	require.NoError(t, err)
	assert.Nil(t, none)

	updated, err := s.Update(ctx, org, cert.ID, 1, giftcert.Patch{
		CurrentBalance: decPtr(decimal.NewFromInt(75)),
		UpdatedAt:      t0,
	}, redeemTx(cert, 2, 25, "key-1"))
	require.NoError(t, err)

	found, err := s.TransactionByIdempotencyKey(ctx, org, "key-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, cert.ID, found.CertificateID)
	assert.True(t, found.Amount.Equal(decimal.NewFromInt(25)))

	// Reusing the key rolls the whole update back.
	_, err = s.Update(ctx, org, cert.ID, updated.Version, giftcert.Patch{
		CurrentBalance: decPtr(decimal.NewFromInt(50)),
		UpdatedAt:      t0,
	}, redeemTx(updated, 3, 25, "key-1"))
	assert.ErrorIs(t, err, giftcert.ErrIdempotencyConflict)

	stored, err := s.GetByID(ctx, org, cert.ID)
	require.NoError(t, err)
	assert.True(t, stored.CurrentBalance.Equal(decimal.NewFromInt(75)))
	assert.Equal(t, updated.Version, stored.Version)
}

func testListFilters(t *testing.T, s giftcert.Store) {
	ctx := context.Background()
	soon := t0.Add(24 * time.Hour)
	later := t0.Add(30 * 24 * time.Hour)

	a, atx := newCert("c1", "GC-LIST-AAAA-AAAA", 10, &soon)
	b, btx := newCert("c2", "GC-LIST-BBBB-BBBB", 20, &later)
	c, ctxn := newCert("c3", "GC-LIST-CCCC-CCCC", 30, nil)
	b.IssuedAt = t0.Add(time.Second)
	c.IssuedAt = t0.Add(2 * time.Second)
	require.NoError(t, s.Insert(ctx, a, atx))
	require.NoError(t, s.Insert(ctx, b, btx))
	require.NoError(t, s.Insert(ctx, c, ctxn))

	_, err := s.Update(ctx, org, c.ID, 1, giftcert.Patch{
		Status:    statusPtr(giftcert.StatusCancelled),
		UpdatedAt: t0,
	})
	require.NoError(t, err)

	all, err := s.List(ctx, org, giftcert.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, a.ID, all[0].ID)
	assert.Equal(t, c.ID, all[2].ID)

	active, err := s.List(ctx, org, giftcert.ListFilter{Statuses: []giftcert.Status{giftcert.StatusActive}})
	require.NoError(t, err)
	assert.Len(t, active, 2)

	cutoff := t0.Add(7 * 24 * time.Hour)
	expiring, err := s.List(ctx, org, giftcert.ListFilter{ExpiringTo: &cutoff})
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, a.ID, expiring[0].ID)

	after, err := s.List(ctx, org, giftcert.ListFilter{ExpiringFrom: &cutoff})
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, b.ID, after[0].ID)

	limited, err := s.List(ctx, org, giftcert.ListFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	other, err := s.List(ctx, "org-empty", giftcert.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func testAudit(t *testing.T, s giftcert.Store) {
	cert, _ := newCert("c1", "GC-AUDT-AUDT-AUDT", 10, nil)
	err := s.RecordAudit(context.Background(), giftcert.AuditEntry{
		ID:             "audit-1",
		OrganizationID: org,
		CertificateID:  cert.ID,
		Code:           cert.Code,
		Action:         giftcert.AuditIssue,
		Success:        true,
		New:            &cert,
		Actor:          "tester",
		Timestamp:      t0,
		Details:        map[string]any{"amount": "10"},
	})
	require.NoError(t, err)
}
