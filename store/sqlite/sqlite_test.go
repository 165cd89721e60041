package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/warp/giftcert-engine/giftcert"
	"github.com/warp/giftcert-engine/giftcert/storetest"
	"github.com/warp/giftcert-engine/store/sqlite"
)

func TestSQLiteStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) giftcert.Store {
		store, err := sqlite.New(context.Background(), ":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		return store
	})
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	// GIVEN: A certificate issued into a database file
	// WHEN: The file is closed and opened again
	// THEN: The certificate and its ledger are still there
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "giftcert.db")

	first, err := sqlite.New(ctx, path)
	require.NoError(t, err)
	svc, err := giftcert.NewService(giftcert.ServiceConfig{Store: first})
	require.NoError(t, err)
	issued, err := svc.Create(ctx, giftcert.IssueRequest{
		OrganizationID: "org-1",
		Amount:         mustAmount(t, "25.50"),
		Actor:          "tester",
	})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := sqlite.New(ctx, path)
	require.NoError(t, err)
	defer second.Close()

	got, err := second.GetByCode(ctx, "org-1", issued.Certificate.Code)
	require.NoError(t, err)
	require.True(t, got.CurrentBalance.Equal(issued.Certificate.OriginalAmount))

	txs, err := second.Transactions(ctx, "org-1", got.ID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.NoError(t, giftcert.Reconcile(got, txs))

	entries, err := second.AuditEntries(ctx, "org-1", got.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, giftcert.AuditIssue, entries[0].Action)
	require.True(t, entries[0].Success)
}

func TestSQLiteCorruptColumnsSurfaceErrors(t *testing.T) {
	// GIVEN: An issued certificate whose stored rows are then damaged
	// WHEN: The damaged rows are read back
	// THEN: Reads fail instead of yielding zero amounts or times
	ctx := context.Background()
	store, err := sqlite.New(ctx, ":memory:")
	require.NoError(t, err)
	defer store.Close()

	svc, err := giftcert.NewService(giftcert.ServiceConfig{Store: store})
	require.NoError(t, err)
	issued, err := svc.Create(ctx, giftcert.IssueRequest{
		OrganizationID: "org-1",
		Amount:         mustAmount(t, "40"),
	})
	require.NoError(t, err)
	id := issued.Certificate.ID

	tests := []struct {
		name    string
		stmt    string
		column  string
		readErr func() error
	}{
		{
			name:   "ledger amount",
			stmt:   `UPDATE transactions SET amount = 'forty' WHERE certificate_id = ?`,
			column: "amount",
			readErr: func() error {
				_, err := store.Transactions(ctx, "org-1", id)
				return err
			},
		},
		{
			name:   "ledger balance",
			stmt:   `UPDATE transactions SET amount = '40', balance_after = '' WHERE certificate_id = ?`,
			column: "balance_after",
			readErr: func() error {
				_, err := store.Transactions(ctx, "org-1", id)
				return err
			},
		},
		{
			name:   "ledger timestamp",
			stmt:   `UPDATE transactions SET balance_after = '40', created_at = 'yesterday' WHERE certificate_id = ?`,
			column: "created_at",
			readErr: func() error {
				_, err := store.Transactions(ctx, "org-1", id)
				return err
			},
		},
		{
			name:   "certificate timestamp",
			stmt:   `UPDATE certificates SET valid_from = 'soon' WHERE id = ?`,
			column: "valid_from",
			readErr: func() error {
				_, err := store.GetByID(ctx, "org-1", id)
				return err
			},
		},
		{
			name:   "audit timestamp",
			stmt:   `UPDATE audit_log SET created_at = 'never' WHERE certificate_id = ?`,
			column: "created_at",
			readErr: func() error {
				_, err := store.AuditEntries(ctx, "org-1", id)
				return err
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.DB().ExecContext(ctx, tt.stmt, string(id))
			require.NoError(t, err)

			err = tt.readErr()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.column)
		})
	}
}

func mustAmount(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}
