/*
handlers.go - HTTP API handlers for the gift-certificate engine

PURPOSE:
  Exposes giftcert.Service via REST API. Handles HTTP request/response,
  JSON serialization, and delegates every decision to the service.

ENDPOINTS:
  All under /api/organizations/{org}/certificates:
    POST   /                  Issue a certificate
    GET    /                  List certificates (?status=&expiring_before=&limit=)
    GET    /stats             Aggregate stats for the organization
    POST   /validate          Validate by code or QR payload
    POST   /redeem            Redeem by code or QR payload
    GET    /{id}              Certificate details
    GET    /{id}/transactions Ledger plus reconciliation result
    POST   /{id}/cancel       Cancel a non-terminal certificate

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid input, invalid amount
  - 404: Certificate not found
  - 409: Concurrent modification (re-validate and retry), idempotency conflict
  - 422: Business-rule rejection (expired, exhausted, insufficient balance...)
  - 500: Internal errors

SECURITY NOTE:
  No authentication. The organization in the path is trusted; put the API
  behind a gateway that scopes callers to their organization.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/giftcert-engine/giftcert"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *giftcert.Service
	Logger  *slog.Logger

	// Health reports backend readiness for /healthz. Optional.
	Health func(ctx context.Context) error
}

// NewHandler creates a new handler for svc.
func NewHandler(svc *giftcert.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Service: svc, Logger: logger}
}

func orgParam(r *http.Request) giftcert.OrganizationID {
	return giftcert.OrganizationID(chi.URLParam(r, "org"))
}

func idParam(r *http.Request) giftcert.CertificateID {
	return giftcert.CertificateID(chi.URLParam(r, "id"))
}

// =============================================================================
// CERTIFICATE HANDLERS
// =============================================================================

// CreateCertificate issues a certificate.
func (h *Handler) CreateCertificate(w http.ResponseWriter, r *http.Request) {
	var req CreateCertificateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	issue := giftcert.IssueRequest{
		OrganizationID: orgParam(r),
		Amount:         req.Amount,
		Currency:       req.Currency,
		Recipient:      req.Recipient,
		Metadata:       req.Metadata,
		Actor:          req.Actor,
	}
	if req.ValidFrom != nil {
		t, err := time.Parse(time.RFC3339, *req.ValidFrom)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid valid_from format (use RFC 3339)", err)
			return
		}
		issue.ValidFrom = t.UTC()
	}
	switch {
	case req.ValidUntil != nil:
		t, err := time.Parse(time.RFC3339, *req.ValidUntil)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid valid_until format (use RFC 3339)", err)
			return
		}
		t = t.UTC()
		issue.ValidUntil = &t
	case req.ValidDays != nil:
		if *req.ValidDays <= 0 {
			writeError(w, http.StatusBadRequest, "valid_days must be positive", nil)
			return
		}
		issue.ValidDays = *req.ValidDays
	}

	res, err := h.Service.Create(r.Context(), issue)
	if err != nil {
		h.writeServiceError(w, r, "Failed to issue certificate", err)
		return
	}

	dto := toCertificateDTO(res.Certificate)
	dto.QRPayload = res.QRPayload
	writeJSON(w, http.StatusCreated, dto)
}

// ListCertificates lists an organization's certificates.
func (h *Handler) ListCertificates(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}

	certs, err := h.Service.List(r.Context(), orgParam(r), filter)
	if err != nil {
		h.writeServiceError(w, r, "Failed to list certificates", err)
		return
	}

	resp := CertificateListResponse{Certificates: make([]CertificateDTO, 0, len(certs))}
	for _, c := range certs {
		resp.Certificates = append(resp.Certificates, toCertificateDTO(c))
	}
	resp.Count = len(resp.Certificates)
	writeJSON(w, http.StatusOK, resp)
}

func parseListFilter(r *http.Request) (giftcert.ListFilter, error) {
	var filter giftcert.ListFilter
	q := r.URL.Query()

	if raw := q.Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			status := giftcert.Status(strings.TrimSpace(s))
			if !status.Valid() {
				return filter, fmt.Errorf("unknown status %q", s)
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	if raw := q.Get("expiring_after"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, fmt.Errorf("expiring_after: %w", err)
		}
		filter.ExpiringFrom = &t
	}
	if raw := q.Get("expiring_before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, fmt.Errorf("expiring_before: %w", err)
		}
		filter.ExpiringTo = &t
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return filter, fmt.Errorf("limit must be a non-negative integer")
		}
		filter.Limit = n
	}
	return filter, nil
}

// GetCertificate returns one certificate with its QR payload.
func (h *Handler) GetCertificate(w http.ResponseWriter, r *http.Request) {
	org := orgParam(r)
	cert, err := h.Service.Get(r.Context(), org, idParam(r))
	if err != nil {
		h.writeServiceError(w, r, "Failed to get certificate", err)
		return
	}
	dto := toCertificateDTO(cert)
	dto.QRPayload = h.Service.QRPayload(org, cert.Code)
	writeJSON(w, http.StatusOK, dto)
}

// GetTransactions returns a certificate's ledger and whether it reconciles.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org, id := orgParam(r), idParam(r)

	txs, err := h.Service.Transactions(ctx, org, id)
	if err != nil {
		h.writeServiceError(w, r, "Failed to get transactions", err)
		return
	}

	resp := TransactionsResponse{
		CertificateID: string(id),
		Transactions:  make([]TransactionDTO, 0, len(txs)),
		Reconciled:    true,
	}
	for _, tx := range txs {
		resp.Transactions = append(resp.Transactions, toTransactionDTO(tx))
	}
	if err := h.Service.Reconcile(ctx, org, id); err != nil {
		var mismatch *giftcert.ReconciliationError
		if !errors.As(err, &mismatch) {
			h.writeServiceError(w, r, "Failed to reconcile ledger", err)
			return
		}
		h.Logger.Error("ledger does not reconcile",
			"organization_id", org,
			"certificate_id", id,
			"error", err,
		)
		resp.Reconciled = false
		resp.ReconcileError = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetStats returns organization-wide aggregates.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	org := orgParam(r)
	stats, err := h.Service.GetStats(r.Context(), org)
	if err != nil {
		h.writeServiceError(w, r, "Failed to compute stats", err)
		return
	}
	writeJSON(w, http.StatusOK, toStatsDTO(org, stats))
}

// =============================================================================
// POINT-OF-SALE HANDLERS
// =============================================================================

// resolveCode picks the code from a typed code or a scanned QR payload.
// A QR payload minted for another organization is rejected.
func resolveCode(org giftcert.OrganizationID, code, qrPayload string) (string, error) {
	if qrPayload != "" {
		qrOrg, qrCode, err := giftcert.ParseQRPayload(qrPayload)
		if err != nil {
			return "", err
		}
		if qrOrg != org {
			return "", fmt.Errorf("%w: qr payload belongs to another organization", giftcert.ErrInvalidRequest)
		}
		return qrCode, nil
	}
	code = giftcert.NormalizeCode(code)
	if code == "" {
		return "", fmt.Errorf("%w: code or qr_payload is required", giftcert.ErrInvalidRequest)
	}
	return code, nil
}

// ValidateCertificate reports whether a code can be redeemed. Business
// rejections are a 200 with can_redeem=false; only lookup and backend
// failures are errors.
func (h *Handler) ValidateCertificate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	org := orgParam(r)
	code, err := resolveCode(org, req.Code, req.QRPayload)
	if err != nil {
		h.writeServiceError(w, r, "Invalid certificate reference", err)
		return
	}

	verdict, err := h.Service.Validate(r.Context(), org, code)
	if err != nil {
		h.writeServiceError(w, r, "Failed to validate certificate", err)
		return
	}
	if errors.Is(verdict.Reason, giftcert.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error: "Certificate not found",
			Code:  giftcert.Kind(verdict.Reason),
		})
		return
	}
	writeJSON(w, http.StatusOK, toVerdictDTO(code, verdict))
}

// RedeemCertificate debits an amount.
func (h *Handler) RedeemCertificate(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	org := orgParam(r)
	code, err := resolveCode(org, req.Code, req.QRPayload)
	if err != nil {
		h.writeServiceError(w, r, "Invalid certificate reference", err)
		return
	}
	key := req.IdempotencyKey
	if key == "" {
		key = r.Header.Get("Idempotency-Key")
	}

	res, err := h.Service.Redeem(r.Context(), giftcert.RedeemRequest{
		OrganizationID: org,
		Code:           code,
		Amount:         req.Amount,
		Actor:          req.Actor,
		IdempotencyKey: key,
	})
	if err != nil {
		h.writeServiceError(w, r, "Failed to redeem certificate", err)
		return
	}

	writeJSON(w, http.StatusOK, RedeemResponse{
		NewBalance:  res.NewBalance,
		Transaction: toTransactionDTO(res.Transaction),
		Certificate: toCertificateDTO(res.Certificate),
		Replayed:    res.Replayed,
	})
}

// CancelCertificate cancels a non-terminal certificate.
func (h *Handler) CancelCertificate(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if r.ContentLength != 0 {
		if !decodeBody(w, r, &req) {
			return
		}
	}

	cert, err := h.Service.Cancel(r.Context(), orgParam(r), idParam(r), req.Reason, req.Actor)
	if err != nil {
		h.writeServiceError(w, r, "Failed to cancel certificate", err)
		return
	}
	writeJSON(w, http.StatusOK, toCertificateDTO(cert))
}

// =============================================================================
// OPERATIONAL HANDLERS
// =============================================================================

// Healthz reports liveness and, when Health is set, backend readiness.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		if err := h.Health(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Backend unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

// maxBodyBytes caps request bodies; every request type is a few hundred bytes.
const maxBodyBytes = 64 << 10

// decodeBody reads a size-limited JSON body into v, answering 400 or 413
// itself on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large", err)
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
		resp.Code = giftcert.Kind(err)
	}
	writeJSON(w, status, resp)
}

// statusFor maps engine errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case giftcert.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, giftcert.ErrInvalidAmount),
		errors.Is(err, giftcert.ErrInvalidRequest):
		return http.StatusBadRequest
	case giftcert.IsRetryable(err),
		errors.Is(err, giftcert.ErrIdempotencyConflict):
		return http.StatusConflict
	case giftcert.IsClientError(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error(message,
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	resp := ErrorResponse{Error: message, Code: giftcert.Kind(err), Details: err.Error()}
	var short *giftcert.InsufficientBalanceError
	if errors.As(err, &short) {
		resp.Details = map[string]string{
			"message":   err.Error(),
			"available": short.Available.String(),
			"requested": short.Requested.String(),
		}
	}
	writeJSON(w, status, resp)
}
