/*
Package sqlstore implements giftcert.Store on database/sql.

PURPOSE:
  One implementation of the certificate, ledger, and audit persistence,
  shared by the SQLite and PostgreSQL backends. Dialect differences are
  limited to placeholder syntax and unique-violation detection.

KEY TABLES:
  certificates:  One row per certificate, version column is the CAS token
  transactions:  Append-only ledger, (certificate_id, sequence) unique
  audit_log:     Append-only audit trail

CAS UPDATE:
  Update runs inside one database transaction:
    1. SELECT the row, compare version with the caller's expectation
    2. UPDATE ... WHERE id = ? AND version = ?   (0 rows -> conflict)
    3. INSERT the ledger entries
    4. COMMIT
  Step 2 re-checks the version, so a concurrent writer that commits between
  1 and 2 makes this update match zero rows rather than overwrite it.

APPEND-ONLY ENFORCEMENT:
  There is no UPDATE or DELETE on transactions or audit_log, and no DELETE
  on certificates.

TIMESTAMPS:
  Stored as fixed-width UTC text so string comparison orders them
  chronologically in every dialect.

SEE ALSO:
  - store/sqlite: SQLite dialect (github.com/mattn/go-sqlite3)
  - store/postgres: PostgreSQL dialect (github.com/lib/pq)
  - giftcert/store.go: Interface definitions
*/
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/giftcert-engine/giftcert"
)

// Dialect captures what differs between SQL backends.
type Dialect struct {
	Name string

	// Placeholder returns the bind marker for the n-th (1-based) argument.
	Placeholder func(n int) string

	// IsUniqueViolation reports whether err is a unique-constraint failure.
	IsUniqueViolation func(err error) bool
}

// QuestionMark is the placeholder style of SQLite and MySQL.
func QuestionMark(int) string { return "?" }

// Dollar is the placeholder style of PostgreSQL.
func Dollar(n int) string { return "$" + strconv.Itoa(n) }

// Store implements giftcert.Store.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New wraps db and migrates the schema.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	if dialect.Placeholder == nil {
		dialect.Placeholder = QuestionMark
	}
	if dialect.IsUniqueViolation == nil {
		dialect.IsUniqueViolation = func(error) bool { return false }
	}
	s := &Store{db: db, dialect: dialect}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the handle for health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS certificates (
			id TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL,
			code TEXT NOT NULL,
			original_amount TEXT NOT NULL,
			current_balance TEXT NOT NULL,
			forfeited_amount TEXT NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL,
			valid_from TEXT NOT NULL,
			valid_until TEXT,
			issued_at TEXT NOT NULL,
			issued_by TEXT NOT NULL DEFAULT '',
			recipient_json TEXT NOT NULL DEFAULT '{}',
			metadata_json TEXT,
			cancelled_at TEXT,
			cancel_reason TEXT NOT NULL DEFAULT '',
			version BIGINT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE (organization_id, code)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_certificates_org_status
			ON certificates(organization_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_certificates_org_valid_until
			ON certificates(organization_id, valid_until)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			certificate_id TEXT NOT NULL,
			organization_id TEXT NOT NULL,
			tx_type TEXT NOT NULL,
			amount TEXT NOT NULL,
			balance_before TEXT NOT NULL,
			balance_after TEXT NOT NULL,
			sequence BIGINT NOT NULL,
			created_at TEXT NOT NULL,
			actor TEXT NOT NULL DEFAULT '',
			idempotency_key TEXT,
			UNIQUE (certificate_id, sequence),
			UNIQUE (organization_id, idempotency_key)
		)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL,
			certificate_id TEXT NOT NULL DEFAULT '',
			code TEXT NOT NULL DEFAULT '',
			action TEXT NOT NULL,
			success BOOLEAN NOT NULL,
			old_json TEXT,
			new_json TEXT,
			error TEXT NOT NULL DEFAULT '',
			error_kind TEXT NOT NULL DEFAULT '',
			actor TEXT NOT NULL DEFAULT '',
			details_json TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_certificate
			ON audit_log(organization_id, certificate_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? markers into the dialect's placeholders.
func (s *Store) rebind(query string) string {
	if s.dialect.Placeholder(1) == "?" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(s.dialect.Placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// =============================================================================
// CERTIFICATE STORE
// =============================================================================

const certificateColumns = `id, organization_id, code, original_amount, current_balance, forfeited_amount,
	currency, status, valid_from, valid_until, issued_at, issued_by, recipient_json, metadata_json,
	cancelled_at, cancel_reason, version, updated_at`

func (s *Store) CodeExists(ctx context.Context, org giftcert.OrganizationID, code string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT COUNT(*) FROM certificates WHERE organization_id = ? AND code = ?"),
		string(org), code,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check code: %w", err)
	}
	return count > 0, nil
}

func (s *Store) GetByCode(ctx context.Context, org giftcert.OrganizationID, code string) (giftcert.Certificate, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind("SELECT "+certificateColumns+" FROM certificates WHERE organization_id = ? AND code = ?"),
		string(org), code,
	)
	return scanCertificate(row)
}

func (s *Store) GetByID(ctx context.Context, org giftcert.OrganizationID, id giftcert.CertificateID) (giftcert.Certificate, error) {
	return s.getByID(ctx, s.db, org, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) getByID(ctx context.Context, q queryRower, org giftcert.OrganizationID, id giftcert.CertificateID) (giftcert.Certificate, error) {
	row := q.QueryRowContext(ctx,
		s.rebind("SELECT "+certificateColumns+" FROM certificates WHERE organization_id = ? AND id = ?"),
		string(org), string(id),
	)
	return scanCertificate(row)
}

// Insert writes the certificate and its issued entry in one transaction.
func (s *Store) Insert(ctx context.Context, cert giftcert.Certificate, issued giftcert.Transaction) error {
	recipientJSON, err := json.Marshal(cert.Recipient)
	if err != nil {
		return fmt.Errorf("failed to encode recipient: %w", err)
	}
	metadataJSON, err := encodeJSON(cert.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	_, err = sqlTx.ExecContext(ctx, s.rebind(`
		INSERT INTO certificates (`+certificateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		string(cert.ID),
		string(cert.OrganizationID),
		cert.Code,
		cert.OriginalAmount.String(),
		cert.CurrentBalance.String(),
		cert.ForfeitedAmount.String(),
		cert.Currency,
		string(cert.Status),
		formatTime(cert.ValidFrom),
		formatTimePtr(cert.ValidUntil),
		formatTime(cert.IssuedAt),
		cert.IssuedBy,
		string(recipientJSON),
		metadataJSON,
		formatTimePtr(cert.CancelledAt),
		cert.CancelReason,
		cert.Version,
		formatTime(cert.UpdatedAt),
	)
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return giftcert.ErrDuplicateCode
		}
		return fmt.Errorf("failed to insert certificate: %w", err)
	}

	if err := s.appendTx(ctx, sqlTx, issued); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// Update applies patch under a version check and appends entries, all in
// one database transaction.
func (s *Store) Update(ctx context.Context, org giftcert.OrganizationID, id giftcert.CertificateID, expectedVersion int64, patch giftcert.Patch, entries ...giftcert.Transaction) (giftcert.Certificate, error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return giftcert.Certificate{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	current, err := s.getByID(ctx, sqlTx, org, id)
	if err != nil {
		return giftcert.Certificate{}, err
	}
	if current.Version != expectedVersion {
		return giftcert.Certificate{}, giftcert.ErrConcurrentModification
	}
	updated := current.Apply(patch)

	res, err := sqlTx.ExecContext(ctx, s.rebind(`
		UPDATE certificates
		SET status = ?, current_balance = ?, forfeited_amount = ?, cancelled_at = ?,
		    cancel_reason = ?, updated_at = ?, version = ?
		WHERE organization_id = ? AND id = ? AND version = ?`),
		string(updated.Status),
		updated.CurrentBalance.String(),
		updated.ForfeitedAmount.String(),
		formatTimePtr(updated.CancelledAt),
		updated.CancelReason,
		formatTime(updated.UpdatedAt),
		updated.Version,
		string(org),
		string(id),
		expectedVersion,
	)
	if err != nil {
		return giftcert.Certificate{}, fmt.Errorf("failed to update certificate: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return giftcert.Certificate{}, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return giftcert.Certificate{}, giftcert.ErrConcurrentModification
	}

	for _, tx := range entries {
		if err := s.appendTx(ctx, sqlTx, tx); err != nil {
			return giftcert.Certificate{}, err
		}
	}
	if err := sqlTx.Commit(); err != nil {
		return giftcert.Certificate{}, fmt.Errorf("failed to commit update: %w", err)
	}
	return updated, nil
}

func (s *Store) List(ctx context.Context, org giftcert.OrganizationID, filter giftcert.ListFilter) ([]giftcert.Certificate, error) {
	query := "SELECT " + certificateColumns + " FROM certificates WHERE organization_id = ?"
	args := []any{string(org)}

	if len(filter.Statuses) > 0 {
		marks := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			marks[i] = "?"
			args = append(args, string(st))
		}
		query += " AND status IN (" + strings.Join(marks, ", ") + ")"
	}
	if filter.ExpiringFrom != nil {
		query += " AND valid_until >= ?"
		args = append(args, formatTime(*filter.ExpiringFrom))
	}
	if filter.ExpiringTo != nil {
		query += " AND valid_until < ?"
		args = append(args, formatTime(*filter.ExpiringTo))
	}
	query += " ORDER BY issued_at ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT " + strconv.Itoa(filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query certificates: %w", err)
	}
	defer rows.Close()

	var certs []giftcert.Certificate
	for rows.Next() {
		c, err := scanCertificate(rows)
		if err != nil {
			return nil, err
		}
		certs = append(certs, c)
	}
	return certs, rows.Err()
}

// Organizations returns every organization with at least one certificate.
func (s *Store) Organizations(ctx context.Context) ([]giftcert.OrganizationID, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT organization_id FROM certificates ORDER BY organization_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query organizations: %w", err)
	}
	defer rows.Close()

	var orgs []giftcert.OrganizationID
	for rows.Next() {
		var org string
		if err := rows.Scan(&org); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, giftcert.OrganizationID(org))
	}
	return orgs, rows.Err()
}

func scanCertificate(row rowScanner) (giftcert.Certificate, error) {
	var (
		c                              giftcert.Certificate
		org, id, status                string
		original, balance, forfeited   string
		validFrom, issuedAt, updatedAt string
		validUntil, cancelledAt        sql.NullString
		recipientJSON                  string
		metadataJSON                   sql.NullString
	)
	err := row.Scan(
		&id, &org, &c.Code, &original, &balance, &forfeited,
		&c.Currency, &status, &validFrom, &validUntil, &issuedAt, &c.IssuedBy,
		&recipientJSON, &metadataJSON, &cancelledAt, &c.CancelReason, &c.Version, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return giftcert.Certificate{}, giftcert.ErrNotFound
	}
	if err != nil {
		return giftcert.Certificate{}, fmt.Errorf("failed to scan certificate: %w", err)
	}

	c.ID = giftcert.CertificateID(id)
	c.OrganizationID = giftcert.OrganizationID(org)
	c.Status = giftcert.Status(status)
	if c.OriginalAmount, err = parseDecimal("original_amount", original); err != nil {
		return giftcert.Certificate{}, err
	}
	if c.CurrentBalance, err = parseDecimal("current_balance", balance); err != nil {
		return giftcert.Certificate{}, err
	}
	if c.ForfeitedAmount, err = parseDecimal("forfeited_amount", forfeited); err != nil {
		return giftcert.Certificate{}, err
	}
	if c.ValidFrom, err = parseTime("valid_from", validFrom); err != nil {
		return giftcert.Certificate{}, err
	}
	if c.ValidUntil, err = parseTimePtr("valid_until", validUntil); err != nil {
		return giftcert.Certificate{}, err
	}
	if c.IssuedAt, err = parseTime("issued_at", issuedAt); err != nil {
		return giftcert.Certificate{}, err
	}
	if c.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return giftcert.Certificate{}, err
	}
	if c.CancelledAt, err = parseTimePtr("cancelled_at", cancelledAt); err != nil {
		return giftcert.Certificate{}, err
	}
	if err := json.Unmarshal([]byte(recipientJSON), &c.Recipient); err != nil {
		return giftcert.Certificate{}, fmt.Errorf("bad recipient_json: %w", err)
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &c.Metadata); err != nil {
			return giftcert.Certificate{}, fmt.Errorf("bad metadata_json: %w", err)
		}
	}
	return c, nil
}

// =============================================================================
// TRANSACTION LOG
// =============================================================================

const transactionColumns = `id, certificate_id, organization_id, tx_type, amount, balance_before,
	balance_after, sequence, created_at, actor, idempotency_key`

func (s *Store) appendTx(ctx context.Context, db execer, tx giftcert.Transaction) error {
	_, err := db.ExecContext(ctx, s.rebind(`
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		string(tx.ID),
		string(tx.CertificateID),
		string(tx.OrganizationID),
		string(tx.Type),
		tx.Amount.String(),
		tx.BalanceBefore.String(),
		tx.BalanceAfter.String(),
		tx.Sequence,
		formatTime(tx.Timestamp),
		tx.Actor,
		nullString(tx.IdempotencyKey),
	)
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			if tx.IdempotencyKey != "" {
				return giftcert.ErrIdempotencyConflict
			}
			return giftcert.ErrConcurrentModification
		}
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

func (s *Store) Transactions(ctx context.Context, org giftcert.OrganizationID, id giftcert.CertificateID) ([]giftcert.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE organization_id = ? AND certificate_id = ?
		ORDER BY sequence ASC`),
		string(org), string(id),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []giftcert.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (s *Store) TransactionByIdempotencyKey(ctx context.Context, org giftcert.OrganizationID, key string) (*giftcert.Transaction, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE organization_id = ? AND idempotency_key = ?`),
		string(org), key,
	)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func scanTransaction(row rowScanner) (giftcert.Transaction, error) {
	var (
		tx                            giftcert.Transaction
		id, certID, org, typ          string
		amount, before, after, create string
		idempotencyKey                sql.NullString
	)
	err := row.Scan(&id, &certID, &org, &typ, &amount, &before, &after,
		&tx.Sequence, &create, &tx.Actor, &idempotencyKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return tx, err
		}
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}
	tx.ID = giftcert.TransactionID(id)
	tx.CertificateID = giftcert.CertificateID(certID)
	tx.OrganizationID = giftcert.OrganizationID(org)
	tx.Type = giftcert.TransactionType(typ)
	if tx.Amount, err = parseDecimal("amount", amount); err != nil {
		return giftcert.Transaction{}, err
	}
	if tx.BalanceBefore, err = parseDecimal("balance_before", before); err != nil {
		return giftcert.Transaction{}, err
	}
	if tx.BalanceAfter, err = parseDecimal("balance_after", after); err != nil {
		return giftcert.Transaction{}, err
	}
	if tx.Timestamp, err = parseTime("created_at", create); err != nil {
		return giftcert.Transaction{}, err
	}
	tx.IdempotencyKey = idempotencyKey.String
	return tx, nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (s *Store) RecordAudit(ctx context.Context, entry giftcert.AuditEntry) error {
	oldJSON, err := encodeSnapshot(entry.Old)
	if err != nil {
		return err
	}
	newJSON, err := encodeSnapshot(entry.New)
	if err != nil {
		return err
	}
	detailsJSON, err := encodeJSON(entry.Details)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO audit_log
		(id, organization_id, certificate_id, code, action, success, old_json, new_json,
		 error, error_kind, actor, details_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		entry.ID,
		string(entry.OrganizationID),
		string(entry.CertificateID),
		entry.Code,
		string(entry.Action),
		entry.Success,
		oldJSON,
		newJSON,
		entry.Error,
		entry.ErrorKind,
		entry.Actor,
		detailsJSON,
		formatTime(entry.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}

// AuditEntries returns the audit trail of one certificate, oldest first.
// Snapshots are not decoded.
func (s *Store) AuditEntries(ctx context.Context, org giftcert.OrganizationID, id giftcert.CertificateID) ([]giftcert.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, organization_id, certificate_id, code, action, success, error, error_kind, actor, created_at
		FROM audit_log
		WHERE organization_id = ? AND certificate_id = ?
		ORDER BY created_at ASC`),
		string(org), string(id),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []giftcert.AuditEntry
	for rows.Next() {
		var (
			e                     giftcert.AuditEntry
			orgID, certID, action string
			created               string
		)
		if err := rows.Scan(&e.ID, &orgID, &certID, &e.Code, &action, &e.Success,
			&e.Error, &e.ErrorKind, &e.Actor, &created); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.OrganizationID = giftcert.OrganizationID(orgID)
		e.CertificateID = giftcert.CertificateID(certID)
		e.Action = giftcert.AuditAction(action)
		if e.Timestamp, err = parseTime("created_at", created); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

// timeFormat is fixed-width so lexical order equals chronological order.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(column, s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		if t, err = time.Parse(time.RFC3339Nano, s); err != nil {
			return time.Time{}, fmt.Errorf("bad %s %q: %w", column, s, err)
		}
	}
	return t.UTC(), nil
}

func parseTimePtr(column string, s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(column, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseDecimal(column, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad %s %q: %w", column, s, err)
	}
	return d, nil
}

func encodeJSON[T any](v T) (sql.NullString, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	if string(raw) == "null" {
		return sql.NullString{}, nil
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

// snapshotJSON is the audit representation of a certificate.
type snapshotJSON struct {
	ID              string             `json:"id"`
	Code            string             `json:"code"`
	Status          string             `json:"status"`
	OriginalAmount  decimal.Decimal    `json:"original_amount"`
	CurrentBalance  decimal.Decimal    `json:"current_balance"`
	ForfeitedAmount decimal.Decimal    `json:"forfeited_amount"`
	Currency        string             `json:"currency"`
	ValidUntil      *time.Time         `json:"valid_until,omitempty"`
	Recipient       giftcert.Recipient `json:"recipient"`
	Metadata        map[string]any     `json:"metadata,omitempty"`
	Version         int64              `json:"version"`
}

func encodeSnapshot(c *giftcert.Certificate) (sql.NullString, error) {
	if c == nil {
		return sql.NullString{}, nil
	}
	return encodeJSON(snapshotJSON{
		ID:              string(c.ID),
		Code:            c.Code,
		Status:          string(c.Status),
		OriginalAmount:  c.OriginalAmount,
		CurrentBalance:  c.CurrentBalance,
		ForfeitedAmount: c.ForfeitedAmount,
		Currency:        c.Currency,
		ValidUntil:      c.ValidUntil,
		Recipient:       c.Recipient,
		Metadata:        c.Metadata,
		Version:         c.Version,
	})
}
