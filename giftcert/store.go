/*
store.go - Persistence interfaces for certificates, ledger, and audit

PURPOSE:
  Defines the boundary between the engine and the database. The engine
  never holds a lock across validate-then-write; instead every update is
  conditional on the version it was computed from (compare-and-swap).

KEY INTERFACES:
  CodeUniquenessCheck: Used by CodeGenerator during its retry loop
  CertificateStore:    Keyed lookup, insert, conditional update, listing
  TransactionLog:      Read side of the append-only ledger
  AuditLog:            Append-only audit sink
  Store:               Everything a Service needs from one backend

ATOMICITY CONTRACT:
  Insert writes the certificate and its issued entry together.
  Update checks the version, applies the patch, and appends the ledger
  entries in one unit: either all are visible or none are. There is no
  Delete and no ledger Update.

IMPLEMENTATIONS:
  - giftcert/store/memory.go: In-memory for testing/dev
  - store/sqlstore: database/sql implementation shared by
    store/sqlite and store/postgres

SEE ALSO:
  - storetest/storetest.go: Contract tests every implementation must pass
*/
package giftcert

import (
	"context"
	"time"
)

// CodeUniquenessCheck answers whether a code is already taken within an
// organization.
type CodeUniquenessCheck interface {
	CodeExists(ctx context.Context, org OrganizationID, code string) (bool, error)
}

// CertificateStore persists certificates.
type CertificateStore interface {
	CodeUniquenessCheck

	// GetByCode returns ErrNotFound when no certificate has the code.
	GetByCode(ctx context.Context, org OrganizationID, code string) (Certificate, error)

	// GetByID returns ErrNotFound when the certificate does not exist in org.
	GetByID(ctx context.Context, org OrganizationID, id CertificateID) (Certificate, error)

	// Insert writes a new certificate and its issued ledger entry atomically.
	// Returns ErrDuplicateCode if the code is taken within the organization.
	Insert(ctx context.Context, cert Certificate, issued Transaction) error

	// Update applies patch if the stored version equals expectedVersion and
	// appends entries in the same atomic unit. Returns the updated
	// certificate, ErrConcurrentModification on a version mismatch,
	// ErrNotFound if the certificate does not exist, or
	// ErrIdempotencyConflict if an entry's idempotency key is taken.
	Update(ctx context.Context, org OrganizationID, id CertificateID, expectedVersion int64, patch Patch, entries ...Transaction) (Certificate, error)

	// List returns certificates in org matching filter, ordered by IssuedAt.
	List(ctx context.Context, org OrganizationID, filter ListFilter) ([]Certificate, error)
}

// TransactionLog reads the append-only ledger. Writes happen only inside
// CertificateStore.Insert and CertificateStore.Update.
type TransactionLog interface {
	// Transactions returns the entries of one certificate ordered by Sequence.
	Transactions(ctx context.Context, org OrganizationID, id CertificateID) ([]Transaction, error)

	// TransactionByIdempotencyKey returns (nil, nil) when the key is unused.
	TransactionByIdempotencyKey(ctx context.Context, org OrganizationID, key string) (*Transaction, error)
}

// AuditLog stores audit entries. Append-only, never read by business logic.
type AuditLog interface {
	RecordAudit(ctx context.Context, entry AuditEntry) error
}

// Store is the full persistence surface a Service is built on.
// OrganizationLister is implemented by stores that can enumerate the
// organizations holding certificates. The expiry sweeper uses it when no
// explicit organization list is configured.
type OrganizationLister interface {
	Organizations(ctx context.Context) ([]OrganizationID, error)
}

type Store interface {
	CertificateStore
	TransactionLog
	AuditLog
}

// =============================================================================
// CLOCK
// =============================================================================

// Clock supplies the current time. Injected so expiry is testable.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns UTC wall-clock time.
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })
