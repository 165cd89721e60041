package giftcert

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// AUDIT LOG - Separate from the ledger, tracks every call and its outcome
// =============================================================================

type AuditAction string

const (
	AuditIssue    AuditAction = "issue"
	AuditValidate AuditAction = "validate"
	AuditRedeem   AuditAction = "redeem"
	AuditCancel   AuditAction = "cancel"
	AuditExpire   AuditAction = "expire"
)

// AuditEntry records who did what, when, and whether it worked. Old and New
// are snapshots around the call; either may be nil.
type AuditEntry struct {
	ID             string
	OrganizationID OrganizationID
	CertificateID  CertificateID
	Code           string
	Action         AuditAction
	Success        bool
	Old            *Certificate
	New            *Certificate
	Error          string
	ErrorKind      string
	Actor          string
	Timestamp      time.Time
	Details        map[string]any
}

// auditor writes entries best-effort: a failing sink is logged and counted,
// never surfaced to the caller.
type auditor struct {
	log     AuditLog
	logger  *slog.Logger
	metrics *Metrics
}

func (a *auditor) record(ctx context.Context, entry AuditEntry, err error) {
	if a.log == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.Success = err == nil
	if err != nil {
		entry.Error = err.Error()
		entry.ErrorKind = Kind(err)
	}
	if writeErr := a.log.RecordAudit(ctx, entry); writeErr != nil {
		a.metrics.auditFailure()
		a.logger.Warn("audit write failed",
			"action", entry.Action,
			"certificate_id", entry.CertificateID,
			"error", writeErr,
		)
	}
}

func snapshot(c *Certificate) *Certificate {
	if c == nil {
		return nil
	}
	s := c.Clone()
	return &s
}
