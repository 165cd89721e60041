package giftcert

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RECONCILIATION - Verifies the ledger chain against the certificate
// =============================================================================

// ReconciliationError describes the first ledger entry that breaks the chain.
type ReconciliationError struct {
	CertificateID CertificateID
	Index         int
	Message       string
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("ledger mismatch for %s at entry %d: %s", e.CertificateID, e.Index, e.Message)
}

// Reconcile checks that txs form an unbroken chain starting with the issued
// entry and ending at cert's current balance. txs must be ordered by Sequence.
func Reconcile(cert Certificate, txs []Transaction) error {
	fail := func(i int, format string, args ...any) error {
		return &ReconciliationError{CertificateID: cert.ID, Index: i, Message: fmt.Sprintf(format, args...)}
	}
	if len(txs) == 0 {
		return fail(0, "no ledger entries")
	}
	if txs[0].Type != TxIssued {
		return fail(0, "first entry is %s, want %s", txs[0].Type, TxIssued)
	}

	balance := decimal.Zero
	forfeited := decimal.Zero
	for i, tx := range txs {
		if tx.CertificateID != cert.ID {
			return fail(i, "entry belongs to %s", tx.CertificateID)
		}
		if !tx.BalanceBefore.Equal(balance) {
			return fail(i, "balance_before %s, previous balance_after %s", tx.BalanceBefore, balance)
		}
		var want decimal.Decimal
		switch tx.Type {
		case TxIssued:
			if i != 0 {
				return fail(i, "issued entry after start of chain")
			}
			want = tx.BalanceBefore.Add(tx.Amount)
		case TxRedeemed:
			want = tx.BalanceBefore.Sub(tx.Amount)
		case TxCancelled:
			want = tx.BalanceBefore.Sub(tx.Amount)
			forfeited = forfeited.Add(tx.Amount)
		default:
			return fail(i, "unknown entry type %q", tx.Type)
		}
		if !tx.BalanceAfter.Equal(want) {
			return fail(i, "balance_after %s, want %s", tx.BalanceAfter, want)
		}
		if tx.BalanceAfter.IsNegative() {
			return fail(i, "negative balance %s", tx.BalanceAfter)
		}
		balance = tx.BalanceAfter
	}

	if !txs[0].Amount.Equal(cert.OriginalAmount) {
		return fail(0, "issued %s, certificate original %s", txs[0].Amount, cert.OriginalAmount)
	}
	if !balance.Equal(cert.CurrentBalance) {
		return fail(len(txs)-1, "ledger balance %s, certificate balance %s", balance, cert.CurrentBalance)
	}
	if !forfeited.Equal(cert.ForfeitedAmount) {
		return fail(len(txs)-1, "ledger forfeited %s, certificate forfeited %s", forfeited, cert.ForfeitedAmount)
	}
	return nil
}
