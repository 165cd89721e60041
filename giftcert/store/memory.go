// Package store provides in-process giftcert.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/giftcert-engine/giftcert"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps everything in maps behind one RWMutex. The mutex only guards
// map access for the duration of a single call; the version check inside
// Update is what serializes competing redemptions.
type Memory struct {
	mu           sync.RWMutex
	certificates map[giftcert.CertificateID]giftcert.Certificate
	codes        map[codeKey]giftcert.CertificateID
	transactions map[giftcert.CertificateID][]giftcert.Transaction
	idempotency  map[idempotencyKey]giftcert.Transaction
	audit        []giftcert.AuditEntry

	// AuditErr, when set, is returned by RecordAudit. Lets tests exercise the
	// best-effort audit path.
	AuditErr error
}

type codeKey struct {
	org  giftcert.OrganizationID
	code string
}

type idempotencyKey struct {
	org giftcert.OrganizationID
	key string
}

func NewMemory() *Memory {
	return &Memory{
		certificates: make(map[giftcert.CertificateID]giftcert.Certificate),
		codes:        make(map[codeKey]giftcert.CertificateID),
		transactions: make(map[giftcert.CertificateID][]giftcert.Transaction),
		idempotency:  make(map[idempotencyKey]giftcert.Transaction),
	}
}

func (m *Memory) CodeExists(_ context.Context, org giftcert.OrganizationID, code string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.codes[codeKey{org: org, code: code}]
	return ok, nil
}

func (m *Memory) GetByCode(_ context.Context, org giftcert.OrganizationID, code string) (giftcert.Certificate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.codes[codeKey{org: org, code: code}]
	if !ok {
		return giftcert.Certificate{}, giftcert.ErrNotFound
	}
	return m.certificates[id].Clone(), nil
}

func (m *Memory) GetByID(_ context.Context, org giftcert.OrganizationID, id giftcert.CertificateID) (giftcert.Certificate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.certificates[id]
	if !ok || c.OrganizationID != org {
		return giftcert.Certificate{}, giftcert.ErrNotFound
	}
	return c.Clone(), nil
}

// Insert adds the certificate and its issued entry atomically.
func (m *Memory) Insert(_ context.Context, cert giftcert.Certificate, issued giftcert.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ck := codeKey{org: cert.OrganizationID, code: cert.Code}
	if _, taken := m.codes[ck]; taken {
		return giftcert.ErrDuplicateCode
	}
	if issued.IdempotencyKey != "" {
		if _, taken := m.idempotency[idempotencyKey{org: cert.OrganizationID, key: issued.IdempotencyKey}]; taken {
			return giftcert.ErrIdempotencyConflict
		}
	}

	m.certificates[cert.ID] = cert.Clone()
	m.codes[ck] = cert.ID
	m.appendLocked(issued)
	return nil
}

// Update is the compare-and-swap: the patch and entries land only if the
// stored version still equals expectedVersion.
func (m *Memory) Update(_ context.Context, org giftcert.OrganizationID, id giftcert.CertificateID, expectedVersion int64, patch giftcert.Patch, entries ...giftcert.Transaction) (giftcert.Certificate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.certificates[id]
	if !ok || current.OrganizationID != org {
		return giftcert.Certificate{}, giftcert.ErrNotFound
	}
	if current.Version != expectedVersion {
		return giftcert.Certificate{}, giftcert.ErrConcurrentModification
	}

	// Check all idempotency keys first so a rejected batch leaves no trace.
	seen := make(map[string]bool)
	for _, tx := range entries {
		if tx.IdempotencyKey == "" {
			continue
		}
		k := idempotencyKey{org: org, key: tx.IdempotencyKey}
		if _, taken := m.idempotency[k]; taken || seen[tx.IdempotencyKey] {
			return giftcert.Certificate{}, giftcert.ErrIdempotencyConflict
		}
		seen[tx.IdempotencyKey] = true
	}

	updated := current.Apply(patch)
	m.certificates[id] = updated
	for _, tx := range entries {
		m.appendLocked(tx)
	}
	return updated.Clone(), nil
}

func (m *Memory) appendLocked(tx giftcert.Transaction) {
	m.transactions[tx.CertificateID] = append(m.transactions[tx.CertificateID], tx)
	if tx.IdempotencyKey != "" {
		m.idempotency[idempotencyKey{org: tx.OrganizationID, key: tx.IdempotencyKey}] = tx
	}
}

func (m *Memory) List(_ context.Context, org giftcert.OrganizationID, filter giftcert.ListFilter) ([]giftcert.Certificate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []giftcert.Certificate
	for _, c := range m.certificates {
		if c.OrganizationID == org && filter.Matches(c) {
			result = append(result, c.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].IssuedAt.Equal(result[j].IssuedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].IssuedAt.Before(result[j].IssuedAt)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// Organizations returns every organization with at least one certificate,
// sorted.
func (m *Memory) Organizations(_ context.Context) ([]giftcert.OrganizationID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[giftcert.OrganizationID]bool)
	var orgs []giftcert.OrganizationID
	for _, c := range m.certificates {
		if !seen[c.OrganizationID] {
			seen[c.OrganizationID] = true
			orgs = append(orgs, c.OrganizationID)
		}
	}
	sort.Slice(orgs, func(i, j int) bool { return orgs[i] < orgs[j] })
	return orgs, nil
}

// =============================================================================
// TRANSACTION LOG
// =============================================================================

func (m *Memory) Transactions(_ context.Context, org giftcert.OrganizationID, id giftcert.CertificateID) ([]giftcert.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []giftcert.Transaction
	for _, tx := range m.transactions[id] {
		if tx.OrganizationID == org {
			result = append(result, tx)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Sequence < result[j].Sequence })
	return result, nil
}

func (m *Memory) TransactionByIdempotencyKey(_ context.Context, org giftcert.OrganizationID, key string) (*giftcert.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ok := m.idempotency[idempotencyKey{org: org, key: key}]
	if !ok {
		return nil, nil
	}
	return &tx, nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (m *Memory) RecordAudit(_ context.Context, entry giftcert.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AuditErr != nil {
		return m.AuditErr
	}
	m.audit = append(m.audit, entry)
	return nil
}

// AuditEntries returns a copy of every audit entry in write order.
func (m *Memory) AuditEntries() []giftcert.AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]giftcert.AuditEntry(nil), m.audit...)
}
