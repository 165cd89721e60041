/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built scenarios that populate an organization with realistic
  certificates for demos and manual testing. Every scenario goes through
  the public Service operations, so the ledger and audit trail are the
  same as for real traffic.

AVAILABLE SCENARIOS:
  holiday-promo:       A batch of fresh certificates in two currencies
  partial-redemptions: Certificates at various stages of being spent
  expiring:            Overdue and soon-to-expire certificates
  cancellations:       Certificates cancelled before and after use

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "partial-redemptions", "organization_id": "demo-shop"}

ADDING NEW SCENARIOS:
  1. Add to 'scenarios' slice with ID, name, description
  2. Create loader function: loadXxxScenario(ctx, svc, res)
  3. Add to the loaders map

NOTE:
  Scenarios only add data. Load them into a dedicated organization.

SEE ALSO:
  - handlers.go: Certificate endpoints
  - cmd/server/main.go: "seed" command
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/giftcert-engine/giftcert"
)

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID     string `json:"scenario_id"`
	OrganizationID string `json:"organization_id"`
}

// ScenarioResult summarizes what a scenario created.
type ScenarioResult struct {
	ScenarioID     string   `json:"scenario_id"`
	OrganizationID string   `json:"organization_id"`
	Issued         int      `json:"issued"`
	Codes          []string `json:"codes"`
}

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "holiday-promo",
		Name:        "Holiday Promo",
		Description: "Ten fresh certificates in USD and EUR with a one-year expiry",
	},
	{
		ID:          "partial-redemptions",
		Name:        "Partial Redemptions",
		Description: "Certificates untouched, partly spent, and fully spent",
	},
	{
		ID:          "expiring",
		Name:        "Expiring",
		Description: "Certificates already past valid_until and some expiring this week",
	},
	{
		ID:          "cancellations",
		Name:        "Cancellations",
		Description: "Certificates cancelled unused and cancelled after a partial redemption",
	},
}

type scenarioLoader func(ctx context.Context, svc *giftcert.Service, res *ScenarioResult) error

var loaders = map[string]scenarioLoader{
	"holiday-promo":       loadHolidayPromoScenario,
	"partial-redemptions": loadPartialRedemptionsScenario,
	"expiring":            loadExpiringScenario,
	"cancellations":       loadCancellationsScenario,
}

// Scenarios returns the available scenarios.
func Scenarios() []ScenarioDTO {
	return append([]ScenarioDTO(nil), scenarios...)
}

// LoadScenario issues the scenario's certificates into org.
func LoadScenario(ctx context.Context, svc *giftcert.Service, scenarioID string, org giftcert.OrganizationID) (ScenarioResult, error) {
	loader, ok := loaders[scenarioID]
	if !ok {
		return ScenarioResult{}, fmt.Errorf("%w: unknown scenario %q", giftcert.ErrInvalidRequest, scenarioID)
	}
	if org == "" {
		return ScenarioResult{}, fmt.Errorf("%w: organization_id is required", giftcert.ErrInvalidRequest)
	}
	res := ScenarioResult{ScenarioID: scenarioID, OrganizationID: string(org), Codes: []string{}}
	if err := loader(ctx, svc, &res); err != nil {
		return res, fmt.Errorf("scenario %s: %w", scenarioID, err)
	}
	return res, nil
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Scenarios())
}

// LoadScenario loads a scenario into the requested organization.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := LoadScenario(r.Context(), h.Service, req.ScenarioID, giftcert.OrganizationID(req.OrganizationID))
	if err != nil {
		h.writeServiceError(w, r, "Failed to load scenario", err)
		return
	}
	h.Logger.Info("scenario loaded",
		"scenario_id", res.ScenarioID,
		"organization_id", res.OrganizationID,
		"issued", res.Issued,
	)
	writeJSON(w, http.StatusOK, res)
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

const scenarioActor = "scenario-loader"

func issue(ctx context.Context, svc *giftcert.Service, res *ScenarioResult, req giftcert.IssueRequest) (giftcert.Certificate, error) {
	req.OrganizationID = giftcert.OrganizationID(res.OrganizationID)
	req.Actor = scenarioActor
	out, err := svc.Create(ctx, req)
	if err != nil {
		return giftcert.Certificate{}, err
	}
	res.Issued++
	res.Codes = append(res.Codes, out.Certificate.Code)
	return out.Certificate, nil
}

func redeem(ctx context.Context, svc *giftcert.Service, c giftcert.Certificate, amount int64) error {
	_, err := svc.Redeem(ctx, giftcert.RedeemRequest{
		OrganizationID: c.OrganizationID,
		Code:           c.Code,
		Amount:         decimal.NewFromInt(amount),
		Actor:          scenarioActor,
	})
	return err
}

func loadHolidayPromoScenario(ctx context.Context, svc *giftcert.Service, res *ScenarioResult) error {
	until := svc.Now().AddDate(1, 0, 0)
	faces := []int64{25, 25, 50, 50, 100}
	for _, currency := range []string{"USD", "EUR"} {
		for i, face := range faces {
			_, err := issue(ctx, svc, res, giftcert.IssueRequest{
				Amount:     decimal.NewFromInt(face),
				Currency:   currency,
				ValidUntil: &until,
				Recipient:  giftcert.Recipient{Name: fmt.Sprintf("Customer %d", i+1), Message: "Happy holidays!"},
				Metadata:   map[string]any{"campaign": "holiday-promo"},
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func loadPartialRedemptionsScenario(ctx context.Context, svc *giftcert.Service, res *ScenarioResult) error {
	// Amount spent per certificate of face value 100.
	spends := [][]int64{
		{},
		{40},
		{40, 35},
		{100},
		{60, 40},
	}
	for i, steps := range spends {
		c, err := issue(ctx, svc, res, giftcert.IssueRequest{
			Amount:    decimal.NewFromInt(100),
			Recipient: giftcert.Recipient{Name: fmt.Sprintf("Holder %d", i+1)},
		})
		if err != nil {
			return err
		}
		for _, amount := range steps {
			if err := redeem(ctx, svc, c, amount); err != nil {
				return err
			}
		}
	}
	return nil
}

func loadExpiringScenario(ctx context.Context, svc *giftcert.Service, res *ScenarioResult) error {
	now := svc.Now()
	windows := []struct {
		from, until time.Time
	}{
		{now.AddDate(0, -6, 0), now.AddDate(0, 0, -1)},
		{now.AddDate(0, -3, 0), now.Add(-time.Hour)},
		{now.AddDate(0, 0, -10), now.AddDate(0, 0, 3)},
		{now.AddDate(0, 0, -10), now.AddDate(0, 0, 6)},
	}
	for _, w := range windows {
		until := w.until
		if _, err := issue(ctx, svc, res, giftcert.IssueRequest{
			Amount:     decimal.NewFromInt(30),
			ValidFrom:  w.from,
			ValidUntil: &until,
		}); err != nil {
			return err
		}
	}
	return nil
}

func loadCancellationsScenario(ctx context.Context, svc *giftcert.Service, res *ScenarioResult) error {
	unused, err := issue(ctx, svc, res, giftcert.IssueRequest{Amount: decimal.NewFromInt(50)})
	if err != nil {
		return err
	}
	if _, err := svc.Cancel(ctx, unused.OrganizationID, unused.ID, "issued in error", scenarioActor); err != nil {
		return err
	}

	spent, err := issue(ctx, svc, res, giftcert.IssueRequest{Amount: decimal.NewFromInt(80)})
	if err != nil {
		return err
	}
	if err := redeem(ctx, svc, spent, 30); err != nil {
		return err
	}
	if _, err := svc.Cancel(ctx, spent.OrganizationID, spent.ID, "reported stolen", scenarioActor); err != nil {
		return err
	}
	return nil
}
