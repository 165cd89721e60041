/*
service.go - Public operations of the certificate engine

PURPOSE:
  Service is the explicit object every caller (HTTP handlers, CLI, sweeper)
  goes through. It is built from injected dependencies (store, clock, code
  generator, publisher) and holds no package-level state.

OPERATIONS:
  Create        Issue a certificate, returns it with its QR payload
  Validate      Verdict for a code (may persist lazy expiry)
  Redeem        Debit an amount atomically
  Cancel        Move a non-terminal certificate to cancelled
  GetStats      Aggregates computed by scanning certificates
  SweepExpired  Apply lazy expiry to every overdue certificate

SIDE CHANNELS:
  Every call is audited (success or failure) and successful mutations
  publish an event. Both are best-effort: their failures are logged and
  counted, never returned, never rolled back.

SEE ALSO:
  - redemption.go, validation.go: The decision logic
  - api/handlers.go: HTTP exposure
*/
package giftcert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const DefaultCurrency = "USD"

type ServiceConfig struct {
	Store     Store
	Clock     Clock
	Codes     *CodeGenerator
	Publisher EventPublisher
	Metrics   *Metrics
	Logger    *slog.Logger

	// DefaultCurrency applies when an issue request names none.
	DefaultCurrency string
	// QRBaseURL, when set, turns QR payloads into redeem URLs.
	QRBaseURL string
}

type Service struct {
	store     Store
	clock     Clock
	codes     *CodeGenerator
	validator *Validator
	redeemer  *Redeemer
	publisher EventPublisher
	metrics   *Metrics
	logger    *slog.Logger
	audit     *auditor

	defaultCurrency string
	qrBaseURL       string
}

// NewService builds a Service. Store is required; everything else has a
// default (system clock, default code shape, no publisher, no metrics).
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("giftcert: store is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Codes == nil {
		cfg.Codes = NewCodeGenerator(cfg.Store)
	}
	if cfg.Codes.Check == nil {
		cfg.Codes.Check = cfg.Store
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = DefaultCurrency
	}
	logger := cfg.Logger.With("component", "giftcert")
	validator := &Validator{Store: cfg.Store, Logger: logger}
	return &Service{
		store:           cfg.Store,
		clock:           cfg.Clock,
		codes:           cfg.Codes,
		validator:       validator,
		redeemer:        &Redeemer{Store: cfg.Store, Validator: validator},
		publisher:       cfg.Publisher,
		metrics:         cfg.Metrics,
		logger:          logger,
		audit:           &auditor{log: cfg.Store, logger: logger, metrics: cfg.Metrics},
		defaultCurrency: strings.ToUpper(cfg.DefaultCurrency),
		qrBaseURL:       cfg.QRBaseURL,
	}, nil
}

// =============================================================================
// CREATE
// =============================================================================

type IssueRequest struct {
	OrganizationID OrganizationID
	Amount         decimal.Decimal
	Currency       string
	ValidFrom      time.Time  // zero means now
	ValidUntil     *time.Time // nil means no expiry
	// ValidDays sets ValidUntil relative to ValidFrom when ValidUntil is nil.
	ValidDays int
	Recipient      Recipient
	Metadata       map[string]any
	Actor          string
}

type IssueResult struct {
	Certificate Certificate
	Transaction Transaction
	QRPayload   string
}

// Create issues a certificate: active, balance equal to the face amount,
// with a freshly generated code and an issued ledger entry.
func (s *Service) Create(ctx context.Context, req IssueRequest) (IssueResult, error) {
	now := s.clock.Now()
	res, err := s.create(ctx, req, now)

	entry := AuditEntry{
		OrganizationID: req.OrganizationID,
		Action:         AuditIssue,
		Actor:          req.Actor,
		Timestamp:      now,
		Details:        map[string]any{"amount": auditAmount(req.Amount), "currency": req.Currency},
	}
	if err == nil {
		entry.CertificateID = res.Certificate.ID
		entry.Code = res.Certificate.Code
		entry.New = snapshot(&res.Certificate)
	}
	s.audit.record(ctx, entry, err)
	if err != nil {
		return IssueResult{}, err
	}

	s.metrics.issued(res.Certificate.Currency, res.Certificate.OriginalAmount)
	s.logger.Info("certificate issued",
		"organization_id", res.Certificate.OrganizationID,
		"certificate_id", res.Certificate.ID,
		"amount", res.Certificate.OriginalAmount.String(),
		"currency", res.Certificate.Currency,
	)
	event := newEvent(EventIssued, res.Certificate, res.Certificate.OriginalAmount, now)
	event.QRPayload = res.QRPayload
	s.publish(ctx, event)
	return res, nil
}

func (s *Service) create(ctx context.Context, req IssueRequest, now time.Time) (IssueResult, error) {
	if req.OrganizationID == "" {
		return IssueResult{}, fmt.Errorf("%w: organization is required", ErrInvalidRequest)
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.defaultCurrency
	}
	if len(currency) != 3 {
		return IssueResult{}, fmt.Errorf("%w: currency must be a 3-letter code, got %q", ErrInvalidRequest, currency)
	}
	if err := ValidateAmount(req.Amount, currency); err != nil {
		return IssueResult{}, fmt.Errorf("face value: %w", err)
	}
	validFrom := req.ValidFrom
	if validFrom.IsZero() {
		validFrom = now
	}
	if req.ValidDays < 0 {
		return IssueResult{}, fmt.Errorf("%w: valid_days must be positive", ErrInvalidRequest)
	}
	if req.ValidUntil == nil && req.ValidDays > 0 {
		until := validFrom.AddDate(0, 0, req.ValidDays)
		req.ValidUntil = &until
	}
	if req.ValidUntil != nil && !req.ValidUntil.After(validFrom) {
		return IssueResult{}, fmt.Errorf("%w: valid_until must be after valid_from", ErrInvalidRequest)
	}

	// A code that passed the uniqueness check can still lose an insert race;
	// such a loss spends one attempt from the same budget.
	attempts := s.codes.maxAttempts()
	for attempt := 0; attempt < attempts; attempt++ {
		code, err := s.codes.Generate(ctx, req.OrganizationID)
		if err != nil {
			if errors.Is(err, ErrGenerationExhausted) {
				s.metrics.generationExhausted()
			}
			return IssueResult{}, err
		}

		cert := Certificate{
			ID:              CertificateID(uuid.NewString()),
			OrganizationID:  req.OrganizationID,
			Code:            code,
			OriginalAmount:  req.Amount,
			CurrentBalance:  req.Amount,
			ForfeitedAmount: decimal.Zero,
			Currency:        currency,
			Status:          StatusActive,
			ValidFrom:       validFrom,
			ValidUntil:      req.ValidUntil,
			IssuedAt:        now,
			IssuedBy:        req.Actor,
			Recipient:       req.Recipient,
			Metadata:        req.Metadata,
			Version:         1,
			UpdatedAt:       now,
		}
		tx := Transaction{
			ID:             TransactionID(uuid.NewString()),
			CertificateID:  cert.ID,
			OrganizationID: cert.OrganizationID,
			Type:           TxIssued,
			Amount:         req.Amount,
			BalanceBefore:  decimal.Zero,
			BalanceAfter:   req.Amount,
			Sequence:       1,
			Timestamp:      now,
			Actor:          req.Actor,
		}

		err = s.store.Insert(ctx, cert, tx)
		if errors.Is(err, ErrDuplicateCode) {
			s.logger.Debug("code collided on insert, regenerating", "organization_id", req.OrganizationID)
			continue
		}
		if err != nil {
			return IssueResult{}, fmt.Errorf("insert certificate: %w", err)
		}
		return IssueResult{
			Certificate: cert,
			Transaction: tx,
			QRPayload:   QRPayload(s.qrBaseURL, cert.OrganizationID, cert.Code),
		}, nil
	}
	s.metrics.generationExhausted()
	return IssueResult{}, fmt.Errorf("%w after %d insert collisions", ErrGenerationExhausted, attempts)
}

// =============================================================================
// VALIDATE
// =============================================================================

// Validate returns the verdict for code. Business rejections are reported in
// the verdict (Reason), not as an error; the error is reserved for store
// failures.
func (s *Service) Validate(ctx context.Context, org OrganizationID, code string) (Verdict, error) {
	now := s.clock.Now()
	code = NormalizeCode(code)

	var before *Certificate
	stored, err := s.store.GetByCode(ctx, org, code)
	switch {
	case err == nil:
		before = &stored
	case !errors.Is(err, ErrNotFound):
		err = fmt.Errorf("load certificate: %w", err)
		s.audit.record(ctx, AuditEntry{OrganizationID: org, Code: code, Action: AuditValidate, Timestamp: now}, err)
		return Verdict{}, err
	}

	verdict, err := s.validator.Validate(ctx, snapshot(before), now)
	entry := AuditEntry{
		OrganizationID: org,
		Code:           code,
		Action:         AuditValidate,
		Old:            snapshot(before),
		Timestamp:      now,
	}
	if before != nil {
		entry.CertificateID = before.ID
	}
	if err != nil {
		s.audit.record(ctx, entry, err)
		return Verdict{}, err
	}

	entry.Details = map[string]any{"valid": verdict.Valid, "can_redeem": verdict.CanRedeem}
	s.audit.record(ctx, entry, verdict.Reason)
	s.metrics.validation(Kind(verdict.Reason))
	s.afterCorrection(ctx, before, verdict, now)
	return verdict, nil
}

// afterCorrection audits and announces a status the validator persisted.
func (s *Service) afterCorrection(ctx context.Context, before *Certificate, v Verdict, now time.Time) {
	if v.Corrected == "" || v.Certificate == nil {
		return
	}
	action := AuditValidate
	if v.Corrected == StatusExpired {
		action = AuditExpire
		s.metrics.expired()
		s.publish(ctx, newEvent(EventExpired, *v.Certificate, decimal.Zero, now))
	}
	s.audit.record(ctx, AuditEntry{
		OrganizationID: v.Certificate.OrganizationID,
		CertificateID:  v.Certificate.ID,
		Code:           v.Certificate.Code,
		Action:         action,
		Old:            snapshot(before),
		New:            snapshot(v.Certificate),
		Actor:          "system",
		Timestamp:      now,
		Details:        map[string]any{"status": string(v.Corrected)},
	}, nil)
	s.logger.Info("certificate status corrected",
		"certificate_id", v.Certificate.ID,
		"status", v.Corrected,
	)
}

// =============================================================================
// REDEEM
// =============================================================================

// Redeem debits req.Amount. ErrConcurrentModification means another
// redemption won the race; the caller may re-validate and retry.
func (s *Service) Redeem(ctx context.Context, req RedeemRequest) (RedeemResult, error) {
	now := s.clock.Now()
	res, err := s.redeemer.Redeem(ctx, req, now)

	entry := AuditEntry{
		OrganizationID: req.OrganizationID,
		Code:           NormalizeCode(req.Code),
		Action:         AuditRedeem,
		Old:            snapshot(res.Before),
		Actor:          req.Actor,
		Timestamp:      now,
		Details: map[string]any{
			"amount":          auditAmount(req.Amount),
			"idempotency_key": req.IdempotencyKey,
			"replayed":        res.Replayed,
		},
	}
	if res.Before != nil {
		entry.CertificateID = res.Before.ID
	}
	if err == nil {
		entry.CertificateID = res.Certificate.ID
		entry.New = snapshot(&res.Certificate)
	}
	s.audit.record(ctx, entry, err)
	s.afterCorrection(ctx, res.Before, res.Verdict, now)

	if err != nil {
		s.metrics.redemption(Kind(err), "", decimal.Zero)
		if IsRetryable(err) {
			s.metrics.conflict()
		}
		return res, err
	}
	if res.Replayed {
		s.metrics.redemption("replayed", res.Certificate.Currency, decimal.Zero)
		return res, nil
	}

	s.metrics.redemption("ok", res.Certificate.Currency, req.Amount)
	s.logger.Info("certificate redeemed",
		"certificate_id", res.Certificate.ID,
		"amount", req.Amount.String(),
		"balance", res.NewBalance.String(),
		"status", res.Certificate.Status,
	)
	s.publish(ctx, newEvent(EventRedeemed, res.Certificate, req.Amount, now))
	return res, nil
}

// =============================================================================
// CANCEL
// =============================================================================

// Cancel moves a non-terminal certificate to cancelled. The remaining
// balance is forfeited through a cancelled ledger entry. Cancelling a
// terminal certificate fails with the lifecycle error of its state.
func (s *Service) Cancel(ctx context.Context, org OrganizationID, id CertificateID, reason, actor string) (Certificate, error) {
	now := s.clock.Now()
	before, updated, err := s.cancel(ctx, org, id, reason, actor, now)

	entry := AuditEntry{
		OrganizationID: org,
		CertificateID:  id,
		Action:         AuditCancel,
		Old:            snapshot(before),
		Actor:          actor,
		Timestamp:      now,
		Details:        map[string]any{"reason": reason},
	}
	if before != nil {
		entry.Code = before.Code
	}
	if err == nil {
		entry.New = snapshot(&updated)
	}
	s.audit.record(ctx, entry, err)
	if err != nil {
		if IsRetryable(err) {
			s.metrics.conflict()
		}
		return Certificate{}, err
	}

	s.metrics.cancelled()
	s.logger.Info("certificate cancelled",
		"certificate_id", id,
		"forfeited", updated.ForfeitedAmount.String(),
	)
	s.publish(ctx, newEvent(EventCancelled, updated, updated.ForfeitedAmount, now))
	return updated, nil
}

func (s *Service) cancel(ctx context.Context, org OrganizationID, id CertificateID, reason, actor string, now time.Time) (*Certificate, Certificate, error) {
	stored, err := s.store.GetByID(ctx, org, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, Certificate{}, err
		}
		return nil, Certificate{}, fmt.Errorf("load certificate: %w", err)
	}
	before := stored.Clone()

	// Terminal states win over cancellation, including an expiry the clock
	// implies but nobody has persisted yet.
	verdict, err := s.validator.Validate(ctx, &stored, now)
	if err != nil {
		return &before, Certificate{}, err
	}
	s.afterCorrection(ctx, &before, verdict, now)
	switch {
	case errors.Is(verdict.Reason, ErrAlreadyCancelled),
		errors.Is(verdict.Reason, ErrExhausted),
		errors.Is(verdict.Reason, ErrExpired):
		return &before, Certificate{}, verdict.Reason
	}
	c := *verdict.Certificate

	status := StatusCancelled
	zero := decimal.Zero
	forfeited := c.ForfeitedAmount.Add(c.CurrentBalance)
	tx := Transaction{
		ID:             TransactionID(uuid.NewString()),
		CertificateID:  c.ID,
		OrganizationID: c.OrganizationID,
		Type:           TxCancelled,
		Amount:         c.CurrentBalance,
		BalanceBefore:  c.CurrentBalance,
		BalanceAfter:   decimal.Zero,
		Sequence:       c.Version + 1,
		Timestamp:      now,
		Actor:          actor,
	}
	updated, err := s.store.Update(ctx, org, id, c.Version, Patch{
		Status:          &status,
		CurrentBalance:  &zero,
		ForfeitedAmount: &forfeited,
		CancelledAt:     &now,
		CancelReason:    &reason,
		UpdatedAt:       now,
	}, tx)
	if err != nil {
		return &before, Certificate{}, fmt.Errorf("cancel %s: %w", id, err)
	}
	return &before, updated, nil
}

// =============================================================================
// READ SIDE
// =============================================================================

func (s *Service) Get(ctx context.Context, org OrganizationID, id CertificateID) (Certificate, error) {
	return s.store.GetByID(ctx, org, id)
}

func (s *Service) List(ctx context.Context, org OrganizationID, filter ListFilter) ([]Certificate, error) {
	return s.store.List(ctx, org, filter)
}

// Transactions returns the ledger of one certificate.
func (s *Service) Transactions(ctx context.Context, org OrganizationID, id CertificateID) ([]Transaction, error) {
	if _, err := s.store.GetByID(ctx, org, id); err != nil {
		return nil, err
	}
	return s.store.Transactions(ctx, org, id)
}

// Reconcile checks the ledger chain of one certificate against its balance.
func (s *Service) Reconcile(ctx context.Context, org OrganizationID, id CertificateID) error {
	c, err := s.store.GetByID(ctx, org, id)
	if err != nil {
		return err
	}
	txs, err := s.store.Transactions(ctx, org, id)
	if err != nil {
		return err
	}
	return Reconcile(c, txs)
}

// GetStats scans every certificate of org.
func (s *Service) GetStats(ctx context.Context, org OrganizationID) (Stats, error) {
	certs, err := s.store.List(ctx, org, ListFilter{})
	if err != nil {
		return Stats{}, fmt.Errorf("list certificates: %w", err)
	}
	return ComputeStats(certs), nil
}

// Now is the service clock's current time.
func (s *Service) Now() time.Time {
	return s.clock.Now()
}

// QRPayload returns the optical payload for a certificate code.
func (s *Service) QRPayload(org OrganizationID, code string) string {
	return QRPayload(s.qrBaseURL, org, code)
}

// =============================================================================
// SWEEP
// =============================================================================

// SweepExpired validates every non-terminal certificate of org whose
// valid_until has passed, which persists their expiry. It returns how many
// were moved to expired.
func (s *Service) SweepExpired(ctx context.Context, org OrganizationID) (int, error) {
	now := s.clock.Now()
	overdue, err := s.store.List(ctx, org, ListFilter{
		Statuses:   []Status{StatusActive, StatusPartiallyUsed},
		ExpiringTo: &now,
	})
	if err != nil {
		return 0, fmt.Errorf("list overdue certificates: %w", err)
	}

	expired := 0
	for i := range overdue {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		before := overdue[i]
		verdict, err := s.validator.Validate(ctx, &overdue[i], now)
		if err != nil {
			return expired, err
		}
		if verdict.Corrected == StatusExpired {
			expired++
		}
		s.afterCorrection(ctx, &before, verdict, now)
	}
	return expired, nil
}

// Organizations lists the organizations the store knows about. Stores
// that cannot enumerate them yield ErrInvalidRequest.
func (s *Service) Organizations(ctx context.Context) ([]OrganizationID, error) {
	lister, ok := s.store.(OrganizationLister)
	if !ok {
		return nil, fmt.Errorf("%w: store cannot enumerate organizations", ErrInvalidRequest)
	}
	return lister.Organizations(ctx)
}

func (s *Service) publish(ctx context.Context, event Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.metrics.publishFailure()
		s.logger.Warn("event publish failed",
			"event_type", event.Type,
			"certificate_id", event.CertificateID,
			"error", err,
		)
	}
}
