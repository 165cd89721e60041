/*
handlers_test.go - HTTP tests for the certificate endpoints

Tests for:
- Issue, validate, redeem, cancel round trip over HTTP
- Error status mapping (404, 400, 409, 422)
- QR payload redemption and organization scoping
- Ledger reconciliation flag, stats, scenarios, healthz, metrics
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/giftcert-engine/giftcert"
	"github.com/warp/giftcert-engine/giftcert/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	router http.Handler
	svc    *giftcert.Service
	store  *store.Memory
	clock  *testClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mem := store.NewMemory()
	clock := &testClock{now: time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)}
	reg := prometheus.NewRegistry()
	svc, err := giftcert.NewService(giftcert.ServiceConfig{
		Store:   mem,
		Clock:   clock,
		Metrics: giftcert.NewMetrics(reg),
	})
	require.NoError(t, err)

	h := NewHandler(svc, nil)
	return &testEnv{
		router: NewRouter(h, RouterOptions{Gatherer: reg}),
		svc:    svc,
		store:  mem,
		clock:  clock,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// doRaw sends body verbatim, for payloads the JSON encoder would rewrite.
func (e *testEnv) doRaw(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

const base = "/api/organizations/shop-1/certificates"

func (e *testEnv) issue(t *testing.T, amount string, extra map[string]any) CertificateDTO {
	t.Helper()
	body := map[string]any{"amount": amount}
	for k, v := range extra {
		body[k] = v
	}
	rec := e.do(t, http.MethodPost, base+"/", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[CertificateDTO](t, rec)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestCertificateLifecycle_OverHTTP(t *testing.T) {
	env := newTestEnv(t)

	// GIVEN: A 100 USD certificate
	cert := env.issue(t, "100", map[string]any{
		"recipient": map[string]any{"name": "Ada", "email": "ada@example.com"},
	})
	assert.Equal(t, "active", cert.Status)
	assert.True(t, cert.CurrentBalance.Equal(dec("100")))
	assert.Equal(t, "USD", cert.Currency)
	assert.Equal(t, "GIFTCERT:shop-1:"+cert.Code, cert.QRPayload)

	// WHEN: Validating its code in lower case with spaces
	rec := env.do(t, http.MethodPost, base+"/validate", ValidateRequest{Code: " " + strings.ToLower(cert.Code) + " "})
	require.Equal(t, http.StatusOK, rec.Code)
	verdict := decode[VerdictDTO](t, rec)

	// THEN: It is valid and redeemable for the full amount
	assert.True(t, verdict.Valid)
	assert.True(t, verdict.CanRedeem)
	assert.True(t, verdict.RemainingBalance.Equal(dec("100")))

	// WHEN: Redeeming 40 then 60
	rec = env.do(t, http.MethodPost, base+"/redeem", RedeemRequest{Code: cert.Code, Amount: dec("40"), Actor: "till-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode[RedeemResponse](t, rec)
	assert.True(t, first.NewBalance.Equal(dec("60")))
	assert.Equal(t, "partially_used", first.Certificate.Status)

	rec = env.do(t, http.MethodPost, base+"/redeem", RedeemRequest{Code: cert.Code, Amount: dec("60")})
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode[RedeemResponse](t, rec)
	assert.True(t, second.NewBalance.IsZero())
	assert.Equal(t, "fully_used", second.Certificate.Status)

	// THEN: A further redemption is rejected as exhausted
	rec = env.do(t, http.MethodPost, base+"/redeem", RedeemRequest{Code: cert.Code, Amount: dec("1")})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "exhausted", decode[ErrorResponse](t, rec).Code)

	// AND: The ledger reconciles
	rec = env.do(t, http.MethodGet, base+"/"+cert.ID+"/transactions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ledger := decode[TransactionsResponse](t, rec)
	require.Len(t, ledger.Transactions, 3)
	assert.True(t, ledger.Reconciled)
	assert.Equal(t, "issued", ledger.Transactions[0].Type)
	assert.Equal(t, "till-1", ledger.Transactions[1].Actor)
}

func TestIssue_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"zero amount", map[string]any{"amount": "0"}, http.StatusBadRequest},
		{"negative amount", map[string]any{"amount": "-5"}, http.StatusBadRequest},
		{"bad currency", map[string]any{"amount": "10", "currency": "DOLLARS"}, http.StatusBadRequest},
		{"bad date", map[string]any{"amount": "10", "valid_until": "next tuesday"}, http.StatusBadRequest},
		{"until before from", map[string]any{
			"amount":      "10",
			"valid_from":  "2025-06-10T00:00:00Z",
			"valid_until": "2025-06-01T00:00:00Z",
		}, http.StatusBadRequest},
		{"negative valid_days", map[string]any{"amount": "10", "valid_days": -1}, http.StatusBadRequest},
		{"malformed json", "{", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, base+"/", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestValidate_UnknownCode_NotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, base+"/validate", ValidateRequest{Code: "GC-NOPE-NOPE-NOPE"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[ErrorResponse](t, rec).Code)
}

func TestValidate_MissingCode_BadRequest(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, base+"/validate", ValidateRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidate_Expired_ReportsReason(t *testing.T) {
	env := newTestEnv(t)

	// GIVEN: A certificate valid for 1 day
	cert := env.issue(t, "20", map[string]any{"valid_until": "2025-06-02T09:00:00Z"})

	// WHEN: Two days pass
	env.clock.Advance(48 * time.Hour)
	rec := env.do(t, http.MethodPost, base+"/validate", ValidateRequest{Code: cert.Code})

	// THEN: 200 with can_redeem=false and the expiry persisted
	require.Equal(t, http.StatusOK, rec.Code)
	verdict := decode[VerdictDTO](t, rec)
	assert.False(t, verdict.Valid)
	assert.False(t, verdict.CanRedeem)
	assert.Equal(t, "expired", verdict.ReasonCode)
	assert.Equal(t, "expired", verdict.Status)

	rec = env.do(t, http.MethodGet, base+"/"+cert.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "expired", decode[CertificateDTO](t, rec).Status)
}

func TestRedeem_InsufficientBalance_422WithDetails(t *testing.T) {
	env := newTestEnv(t)
	cert := env.issue(t, "30", nil)

	rec := env.do(t, http.MethodPost, base+"/redeem", RedeemRequest{Code: cert.Code, Amount: dec("30.01")})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "insufficient_balance", resp.Code)
	details, ok := resp.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "30", details["available"])
	assert.Equal(t, "30.01", details["requested"])
}

func TestRedeem_InvalidAmount_400(t *testing.T) {
	env := newTestEnv(t)
	cert := env.issue(t, "30", nil)

	rec := env.do(t, http.MethodPost, base+"/redeem", RedeemRequest{Code: cert.Code, Amount: dec("0")})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_amount", decode[ErrorResponse](t, rec).Code)
}

func TestRedeem_OutOfRangeAmounts_400(t *testing.T) {
	// GIVEN: a 100 USD certificate
	env := newTestEnv(t)
	cert := env.issue(t, "100", nil)

	for _, amount := range []string{"0.001", "1e-20000000", "1e20000000"} {
		t.Run(amount, func(t *testing.T) {
			// WHEN: redeeming an amount finer than a cent or with a huge exponent
			start := time.Now()
			body := `{"code":"` + cert.Code + `","amount":"` + amount + `"}`
			rec := env.doRaw(t, http.MethodPost, base+"/redeem", body)

			// THEN: rejected as invalid_amount without touching the balance
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, "invalid_amount", decode[ErrorResponse](t, rec).Code)
			assert.Less(t, time.Since(start), 5*time.Second)

			rec = env.do(t, http.MethodGet, base+"/"+cert.ID, nil)
			require.Equal(t, http.StatusOK, rec.Code)
			got := decode[CertificateDTO](t, rec)
			assert.Equal(t, "100", got.CurrentBalance.String())
			assert.Equal(t, int64(1), got.Version)
		})
	}
}

func TestIssue_OutOfRangeAmounts_400(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []string{
		`{"amount":"0.001"}`,
		`{"amount":"1e-20000000"}`,
		`{"amount":1e20000000}`,
		`{"amount":"12.5","currency":"JPY"}`,
	} {
		rec := env.doRaw(t, http.MethodPost, base+"/", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "invalid_amount", decode[ErrorResponse](t, rec).Code, body)
	}

	certs, err := env.svc.List(context.Background(), "shop-1", giftcert.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, certs)
}

func TestOversizedBody_413(t *testing.T) {
	env := newTestEnv(t)

	body := `{"code":"` + strings.Repeat("A", maxBodyBytes+1) + `"}`
	rec := env.doRaw(t, http.MethodPost, base+"/validate", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = env.doRaw(t, http.MethodPost, base+"/redeem", `{"code":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIssue_ValidDays_UsesServiceClock(t *testing.T) {
	// GIVEN: the service clock is pinned to 2025-06-01 09:00 UTC
	env := newTestEnv(t)

	// WHEN: issuing with valid_days instead of valid_until
	cert := env.issue(t, "25", map[string]any{"valid_days": 10})

	// THEN: expiry is counted from the service clock, not the wall clock
	require.NotNil(t, cert.ValidUntil)
	assert.Equal(t, "2025-06-11T09:00:00Z", *cert.ValidUntil)
	assert.Equal(t, "2025-06-01T09:00:00Z", cert.ValidFrom)

	rec := env.do(t, http.MethodPost, base+"/", map[string]any{"amount": "25", "valid_days": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRedeem_ByQRPayload(t *testing.T) {
	env := newTestEnv(t)
	cert := env.issue(t, "50", nil)

	// GIVEN: The payload printed on the certificate
	// WHEN: Scanned at the till of the same organization
	rec := env.do(t, http.MethodPost, base+"/redeem", RedeemRequest{QRPayload: cert.QRPayload, Amount: dec("10")})

	// THEN: The redemption goes through
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[RedeemResponse](t, rec).NewBalance.Equal(dec("40")))

	// WHEN: The same payload is scanned at another organization
	rec = env.do(t, http.MethodPost, "/api/organizations/shop-2/certificates/redeem",
		RedeemRequest{QRPayload: cert.QRPayload, Amount: dec("10")})

	// THEN: It is rejected
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRedeem_IdempotencyKeyHeader(t *testing.T) {
	env := newTestEnv(t)
	cert := env.issue(t, "50", nil)

	send := func(amount string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(RedeemRequest{Code: cert.Code, Amount: dec(amount)}))
		req := httptest.NewRequest(http.MethodPost, base+"/redeem", &buf)
		req.Header.Set("Idempotency-Key", "receipt-881")
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		return rec
	}

	// GIVEN: A redemption sent twice with the same key (client retry)
	first := send("20")
	again := send("20")

	// THEN: The second is a replay, the balance is debited once
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, again.Code)
	replay := decode[RedeemResponse](t, again)
	assert.True(t, replay.Replayed)
	assert.Equal(t, decode[RedeemResponse](t, first).Transaction.ID, replay.Transaction.ID)

	got, err := env.svc.Get(context.Background(), "shop-1", giftcert.CertificateID(cert.ID))
	require.NoError(t, err)
	assert.True(t, got.CurrentBalance.Equal(dec("30")))

	// WHEN: The key is reused for a different amount
	conflict := send("25")
	assert.Equal(t, http.StatusConflict, conflict.Code)
	assert.Equal(t, "idempotency_conflict", decode[ErrorResponse](t, conflict).Code)
}

func TestCancel_ThenValidateAndRecancel(t *testing.T) {
	env := newTestEnv(t)
	cert := env.issue(t, "75", nil)

	// WHEN: Cancelling
	rec := env.do(t, http.MethodPost, base+"/"+cert.ID+"/cancel", CancelRequest{Reason: "fraud", Actor: "manager"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cancelled := decode[CertificateDTO](t, rec)

	// THEN: Status, reason, and forfeited balance are recorded
	assert.Equal(t, "cancelled", cancelled.Status)
	assert.Equal(t, "fraud", cancelled.CancelReason)
	assert.True(t, cancelled.CurrentBalance.IsZero())
	assert.True(t, cancelled.ForfeitedAmount.Equal(dec("75")))
	assert.NotNil(t, cancelled.CancelledAt)

	// AND: Validation reports already cancelled
	rec = env.do(t, http.MethodPost, base+"/validate", ValidateRequest{Code: cert.Code})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "already_cancelled", decode[VerdictDTO](t, rec).ReasonCode)

	// AND: A second cancel is a 422
	rec = env.do(t, http.MethodPost, base+"/"+cert.ID+"/cancel", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "already_cancelled", decode[ErrorResponse](t, rec).Code)
}

func TestGetCertificate_NotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, base+"/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, base+"/does-not-exist/transactions", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetCertificate_ScopedToOrganization(t *testing.T) {
	env := newTestEnv(t)
	cert := env.issue(t, "10", nil)

	rec := env.do(t, http.MethodGet, "/api/organizations/shop-2/certificates/"+cert.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// LISTING AND STATS
// =============================================================================

func TestListCertificates_StatusFilter(t *testing.T) {
	env := newTestEnv(t)
	a := env.issue(t, "10", nil)
	env.issue(t, "20", nil)
	rec := env.do(t, http.MethodPost, base+"/redeem", RedeemRequest{Code: a.Code, Amount: dec("5")})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, base+"/?status=partially_used", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[CertificateListResponse](t, rec)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, a.ID, list.Certificates[0].ID)

	rec = env.do(t, http.MethodGet, base+"/?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[CertificateListResponse](t, rec).Count)

	rec = env.do(t, http.MethodGet, base+"/?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetStats_PerCurrency(t *testing.T) {
	env := newTestEnv(t)
	usd := env.issue(t, "100", nil)
	env.issue(t, "50", map[string]any{"currency": "eur"})
	rec := env.do(t, http.MethodPost, base+"/redeem", RedeemRequest{Code: usd.Code, Amount: dec("25")})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, base+"/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[StatsDTO](t, rec)

	assert.Equal(t, 2, stats.TotalIssued)
	assert.Equal(t, 1, stats.CountByStatus["active"])
	assert.Equal(t, 1, stats.CountByStatus["partially_used"])
	require.Len(t, stats.Currencies, 2)
	assert.Equal(t, "EUR", stats.Currencies[0].Currency)
	assert.Equal(t, "USD", stats.Currencies[1].Currency)
	assert.True(t, stats.Currencies[1].TotalRedeemed.Equal(dec("25")))
	assert.True(t, stats.Currencies[1].ActiveBalance.Equal(dec("75")))
	assert.True(t, stats.Currencies[1].RedemptionRate.Equal(dec("0.25")))
}

// =============================================================================
// OPERATIONAL
// =============================================================================

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthz_BackendDown(t *testing.T) {
	mem := store.NewMemory()
	svc, err := giftcert.NewService(giftcert.ServiceConfig{Store: mem})
	require.NoError(t, err)
	h := NewHandler(svc, nil)
	h.Health = func(context.Context) error { return errors.New("db gone") }

	rec := httptest.NewRecorder()
	NewRouter(h, RouterOptions{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint_ExposesEngineCounters(t *testing.T) {
	env := newTestEnv(t)
	env.issue(t, "10", nil)

	rec := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `giftcert_issued_total{currency="USD"} 1`)
}

func TestScenarios_LoadPartialRedemptions(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/scenarios/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ScenarioDTO](t, rec), len(scenarios))

	rec = env.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{
		ScenarioID:     "partial-redemptions",
		OrganizationID: "demo",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[ScenarioResult](t, rec)
	assert.Equal(t, 5, res.Issued)

	stats, err := env.svc.GetStats(context.Background(), "demo")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CountByStatus[giftcert.StatusActive])
	assert.Equal(t, 2, stats.CountByStatus[giftcert.StatusPartiallyUsed])
	assert.Equal(t, 2, stats.CountByStatus[giftcert.StatusFullyUsed])

	rec = env.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope", OrganizationID: "demo"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScenarios_LoadExpiring_FollowsServiceClock(t *testing.T) {
	// GIVEN: the expiring scenario loaded under the pinned service clock
	env := newTestEnv(t)
	ctx := context.Background()
	rec := env.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{
		ScenarioID:     "expiring",
		OrganizationID: "demo",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 4, decode[ScenarioResult](t, rec).Issued)

	// WHEN: sweeping right away
	expired, err := env.svc.SweepExpired(ctx, "demo")

	// THEN: only the two overdue certificates expire
	require.NoError(t, err)
	assert.Equal(t, 2, expired)

	// AND: four days later the one expiring in three days follows
	env.clock.Advance(4 * 24 * time.Hour)
	expired, err = env.svc.SweepExpired(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, 1, expired)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{giftcert.ErrNotFound, http.StatusNotFound},
		{&giftcert.NotRedeemableError{Code: "X", Reason: giftcert.ErrNotFound}, http.StatusNotFound},
		{giftcert.ErrInvalidAmount, http.StatusBadRequest},
		{giftcert.ErrInvalidRequest, http.StatusBadRequest},
		{giftcert.ErrConcurrentModification, http.StatusConflict},
		{giftcert.ErrIdempotencyConflict, http.StatusConflict},
		{&giftcert.NotRedeemableError{Code: "X", Reason: giftcert.ErrExpired}, http.StatusUnprocessableEntity},
		{&giftcert.InsufficientBalanceError{}, http.StatusUnprocessableEntity},
		{giftcert.ErrAlreadyCancelled, http.StatusUnprocessableEntity},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
