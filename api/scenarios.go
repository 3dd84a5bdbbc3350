/*
scenarios.go - Demo budget loaders for testing and demonstrations

PURPOSE:

	Provides pre-built budgets that populate the store with envelopes,
	cash, transaction history and rules demonstrating specific rule types.

AVAILABLE SCENARIOS:

	first-paycheck: Rent first, 10% savings, sweep the rest on income
	bills-month:    Monthly bills top-up plus a weekly grocery rescue
	json-rules:     Rules loaded from JSON with pattern and date conditions

HOW SCENARIOS WORK:
 1. Reset store (clear all data)
 2. Create envelopes and set unassigned cash
 3. Add transaction history where conditions need it
 4. Save rules through the service (validated)

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "first-paycheck"}

	then POST /api/income {"amount": "3000"} or POST /api/plans/preview

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx, h)
 3. Add to the 'loaders' map

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - funding/presets: Go-based rule presets
  - factory/rule.go: Rule JSON definitions
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/shopspring/decimal"
	"github.com/warp/autofund/funding"
	"github.com/warp/autofund/funding/presets"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "first-paycheck",
		Name:        "First Paycheck",
		Description: "Rent first, 10% to the emergency fund, remainder split between fun and travel",
	},
	{
		ID:          "bills-month",
		Name:        "Bills Month",
		Description: "Monthly bills top-up to the monthly amount and a weekly grocery rescue below 50",
	},
	{
		ID:          "json-rules",
		Name:        "JSON Rules",
		Description: "Rules parsed from JSON: coffee-habit guard and a holiday savings window",
	},
}

type scenarioLoader func(ctx context.Context, h *Handler) error

var loaders = map[string]scenarioLoader{
	"first-paycheck": loadFirstPaycheckScenario,
	"bills-month":    loadBillsMonthScenario,
	"json-rules":     loadJSONRulesScenario,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	current := h.getCurrentScenario()
	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	load, ok := loaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.Service.Forget()
	h.setCurrentScenario("")

	if err := load(ctx, h); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.setCurrentScenario(req.ScenarioID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadFirstPaycheckScenario(ctx context.Context, h *Handler) error {
	envelopes := []funding.Envelope{
		envelope("env-rent", "Rent", "0", "1200", ""),
		envelope("env-ef", "Emergency Fund", "800", "0", "5000"),
		envelope("env-fun", "Fun Money", "20", "150", ""),
		envelope("env-travel", "Travel", "310", "100", "2000"),
	}
	rules := []funding.Rule{
		presets.RentFirst("rule-rent", "env-rent", decimal.NewFromInt(1200)),
		presets.EmergencyFund("rule-ef", "env-ef", decimal.NewFromInt(10)),
		presets.PaycheckSweep("rule-sweep", "env-fun", "env-travel"),
	}
	return h.seed(ctx, "0", envelopes, nil, rules)
}

func loadBillsMonthScenario(ctx context.Context, h *Handler) error {
	now := h.Service.Now()
	envelopes := []funding.Envelope{
		envelope("env-bills", "Bills", "120", "450", ""),
		envelope("env-groceries", "Groceries", "35", "600", ""),
	}
	txns := []funding.Transaction{
		spend("Corner Grocer", "Groceries", "-64.20", now.AddDate(0, 0, -5)),
		spend("Corner Grocer", "Groceries", "-38.75", now.AddDate(0, 0, -2)),
	}
	rules := []funding.Rule{
		presets.BillsTopUp("rule-bills", "env-bills"),
		presets.LowBalanceRescue("rule-rescue", "env-groceries", decimal.NewFromInt(50), decimal.NewFromInt(100)),
	}
	// Let the bills rule fire whenever the demo is loaded.
	rules[0].Schedule = nil
	return h.seed(ctx, "1500", envelopes, txns, rules)
}

func loadJSONRulesScenario(ctx context.Context, h *Handler) error {
	now := h.Service.Now()
	envelopes := []funding.Envelope{
		envelope("env-coffee", "Coffee", "4", "40", ""),
		envelope("env-holiday", "Holiday Gifts", "0", "0", "600"),
	}
	txns := []funding.Transaction{
		spend("Blue Bottle Cafe", "Dining", "-5.50", now.AddDate(0, 0, -6)),
		spend("Starbucks Coffee", "Dining", "-6.10", now.AddDate(0, 0, -4)),
		spend("Blue Bottle Cafe", "Dining", "-4.75", now.AddDate(0, 0, -1)),
	}

	start := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339)
	end := time.Date(now.Year(), 12, 31, 23, 59, 59, 0, time.UTC).Format(time.RFC3339)
	docs := []string{
		`{
			"id": "rule-coffee", "name": "Coffee guard", "type": "CONDITIONAL",
			"trigger": "weekly", "priority": 50, "enabled": true,
			"config": {
				"target_id": "env-coffee", "amount": "15",
				"conditions": [
					{"type": "transaction_pattern", "value": "coffee|cafe", "parameters": {"min_count": 3, "window_days": 7}},
					{"type": "balance_below", "value": 10, "parameters": {"envelope_id": "env-coffee"}}
				]
			}
		}`,
		fmt.Sprintf(`{
			"id": "rule-holiday", "name": "Holiday savings", "type": "PRIORITY_FILL",
			"trigger": "manual", "priority": 120, "enabled": true,
			"config": {
				"target_id": "env-holiday", "fill_to": "target_amount",
				"conditions": [
					{"type": "date_range", "value": {"start": %q, "end": %q}}
				]
			}
		}`, start, end),
	}

	rules := make([]funding.Rule, 0, len(docs))
	for _, doc := range docs {
		rule, err := h.RuleFactory.ParseRule(doc)
		if err != nil {
			return err
		}
		rules = append(rules, rule)
	}
	return h.seed(ctx, "400", envelopes, txns, rules)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) seed(ctx context.Context, cash string, envelopes []funding.Envelope, txns []funding.Transaction, rules []funding.Rule) error {
	for _, e := range envelopes {
		if err := h.Store.SaveEnvelope(ctx, e); err != nil {
			return fmt.Errorf("envelope %s: %w", e.ID, err)
		}
	}
	if err := h.Store.SetUnassignedCash(ctx, decimal.RequireFromString(cash)); err != nil {
		return err
	}
	for _, t := range txns {
		if err := h.Store.AddTransaction(ctx, t); err != nil {
			return fmt.Errorf("transaction %s: %w", t.ID, err)
		}
	}
	for _, r := range rules {
		if _, err := h.Service.SaveRule(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func envelope(id, name, balance, monthly, target string) funding.Envelope {
	e := funding.Envelope{
		ID:             id,
		Name:           name,
		CurrentBalance: decimal.RequireFromString(balance),
		MonthlyAmount:  decimal.RequireFromString(monthly),
	}
	if target != "" {
		t := decimal.RequireFromString(target)
		e.TargetAmount = &t
	}
	return e
}

func spend(merchant, category, amount string, at time.Time) funding.Transaction {
	return funding.Transaction{
		ID:         fmt.Sprintf("txn-%s-%d", category, at.Unix()),
		Merchant:   merchant,
		Category:   category,
		Amount:     decimal.RequireFromString(amount),
		OccurredAt: at,
	}
}
