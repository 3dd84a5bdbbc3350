/*
handlers.go - HTTP API handlers for the auto-funding service

PURPOSE:
  Exposes rules, the budget snapshot and the planning engine via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to the
  budget service.

ENDPOINTS:
  Rules:
    GET    /api/rules                  List rules
    POST   /api/rules                  Create rule from JSON
    GET    /api/rules/{id}             Get rule
    PUT    /api/rules/{id}             Replace rule (keeps execution stats)
    DELETE /api/rules/{id}             Delete rule
    POST   /api/rules/validate         Validate without saving

  Budget:
    GET    /api/envelopes              List envelopes
    POST   /api/envelopes              Create or update envelope
    GET    /api/budget                 Unassigned cash + envelopes
    POST   /api/budget/cash            Set unassigned cash
    POST   /api/income                 Record income, run income rules

  Plans:
    POST   /api/plans/preview          Simulate: plan + summary + impact
    POST   /api/plans/apply            Apply a previewed plan by id
    POST   /api/plans/run              Preview + apply in one step

  History:
    GET    /api/transfers              Applied transfer ledger
    GET    /api/runs                   Scheduled run history
    POST   /api/runs/check             Run the scheduler check now

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Budget persistence
  - Service: Preview / apply orchestration
  - RuleFactory: JSON to Rule conversion

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call the service (which calls the engine)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Rule, envelope or plan not found
  - 409: Stale plan, plan already applied, insufficient cash
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/warp/autofund/budget"
	"github.com/warp/autofund/factory"
	"github.com/warp/autofund/funding"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       budget.Store
	Service     *budget.Service
	RuleFactory *factory.RuleFactory

	// Scheduler is optional; POST /api/runs/check needs it.
	Scheduler *FundingScheduler

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler.
func NewHandler(store budget.Store, svc *budget.Service) *Handler {
	return &Handler{
		Store:       store,
		Service:     svc,
		RuleFactory: factory.NewRuleFactory(),
	}
}

// =============================================================================
// RULE ENDPOINTS
// =============================================================================

// ListRules returns all rules.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Store.ListRules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rules", err)
		return
	}

	out := make([]factory.RuleJSON, 0, len(rules))
	for _, rule := range rules {
		out = append(out, h.RuleFactory.ToJSON(rule))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetRule returns one rule.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.Store.GetRule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get rule", err)
		return
	}
	writeJSON(w, http.StatusOK, h.RuleFactory.ToJSON(rule))
}

// CreateRule parses, validates and stores a new rule.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	rule, ok := h.decodeRule(w, r)
	if !ok {
		return
	}
	rule.ExecutionCount = 0
	rule.LastExecuted = nil

	saved, err := h.Service.SaveRule(r.Context(), rule)
	if err != nil {
		writeDomainError(w, "Failed to create rule", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.RuleFactory.ToJSON(saved))
}

// UpdateRule replaces a rule. Execution stats and creation time are kept
// from the stored rule; clients cannot rewrite them.
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	existing, err := h.Store.GetRule(ctx, id)
	if err != nil {
		writeDomainError(w, "Failed to update rule", err)
		return
	}

	rule, ok := h.decodeRule(w, r)
	if !ok {
		return
	}
	rule.ID = id
	rule.CreatedAt = existing.CreatedAt
	rule.ExecutionCount = existing.ExecutionCount
	rule.LastExecuted = existing.LastExecuted

	saved, err := h.Service.SaveRule(ctx, rule)
	if err != nil {
		writeDomainError(w, "Failed to update rule", err)
		return
	}
	writeJSON(w, http.StatusOK, h.RuleFactory.ToJSON(saved))
}

// DeleteRule removes a rule.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteRule(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "Failed to delete rule", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ValidateRule reports every validation message without saving.
func (h *Handler) ValidateRule(w http.ResponseWriter, r *http.Request) {
	var rj factory.RuleJSON
	if err := render.DecodeJSON(r.Body, &rj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rule, err := h.RuleFactory.FromJSON(rj)
	if err != nil {
		writeJSON(w, http.StatusOK, RuleValidationDTO{Valid: false, Errors: []string{err.Error()}})
		return
	}

	errs := funding.ValidateRule(rule)
	if errs == nil {
		errs = []string{}
	}
	writeJSON(w, http.StatusOK, RuleValidationDTO{Valid: len(errs) == 0, Errors: errs})
}

func (h *Handler) decodeRule(w http.ResponseWriter, r *http.Request) (funding.Rule, bool) {
	var rj factory.RuleJSON
	if err := render.DecodeJSON(r.Body, &rj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return funding.Rule{}, false
	}
	rule, err := h.RuleFactory.FromJSON(rj)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rule", err)
		return funding.Rule{}, false
	}
	return rule, true
}

// =============================================================================
// BUDGET ENDPOINTS
// =============================================================================

// ListEnvelopes returns all envelopes.
func (h *Handler) ListEnvelopes(w http.ResponseWriter, r *http.Request) {
	envs, err := h.Store.ListEnvelopes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list envelopes", err)
		return
	}

	out := make([]EnvelopeDTO, 0, len(envs))
	for _, e := range envs {
		out = append(out, toEnvelopeDTO(e))
	}
	writeJSON(w, http.StatusOK, out)
}

// SaveEnvelope creates or updates an envelope.
func (h *Handler) SaveEnvelope(w http.ResponseWriter, r *http.Request) {
	var req EnvelopeDTO
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	if req.MonthlyAmount.IsNegative() {
		writeError(w, http.StatusBadRequest, "monthly_amount must not be negative", nil)
		return
	}
	if req.TargetAmount != nil && req.TargetAmount.IsNegative() {
		writeError(w, http.StatusBadRequest, "target_amount must not be negative", nil)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	if err := h.Store.SaveEnvelope(r.Context(), req.toEnvelope()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save envelope", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// GetBudget returns unassigned cash and every envelope.
func (h *Handler) GetBudget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cash, err := h.Store.UnassignedCash(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load cash", err)
		return
	}
	envs, err := h.Store.ListEnvelopes(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list envelopes", err)
		return
	}

	dto := BudgetDTO{UnassignedCash: cash, Envelopes: make([]EnvelopeDTO, 0, len(envs))}
	for _, e := range envs {
		dto.TotalAssigned = dto.TotalAssigned.Add(e.CurrentBalance)
		dto.Envelopes = append(dto.Envelopes, toEnvelopeDTO(e))
	}
	writeJSON(w, http.StatusOK, dto)
}

// SetCash overwrites unassigned cash.
func (h *Handler) SetCash(w http.ResponseWriter, r *http.Request) {
	var req SetCashRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Amount.IsNegative() {
		writeError(w, http.StatusBadRequest, "amount must not be negative", nil)
		return
	}

	if err := h.Store.SetUnassignedCash(r.Context(), req.Amount); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to set cash", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"unassigned_cash": req.Amount})
}

// RecordIncome stores a deposit and runs the income_detected rules.
func (h *Handler) RecordIncome(w http.ResponseWriter, r *http.Request) {
	var req IncomeRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := budget.IncomeInput{Amount: req.Amount, Merchant: req.Merchant, Category: req.Category}
	if req.OccurredAt != nil {
		in.At = req.OccurredAt.UTC()
	}

	result, err := h.Service.RecordIncome(r.Context(), in)
	if err != nil {
		writeDomainError(w, "Failed to record income", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRunResponse(result))
}

// =============================================================================
// PLAN ENDPOINTS
// =============================================================================

// PreviewPlan simulates the stored rules against the live budget.
func (h *Handler) PreviewPlan(w http.ResponseWriter, r *http.Request) {
	in, ok := decodePlanRequest(w, r)
	if !ok {
		return
	}

	preview, err := h.Service.Preview(r.Context(), in)
	if err != nil {
		writeDomainError(w, "Failed to preview plan", err)
		return
	}
	writeJSON(w, http.StatusOK, toPreviewDTO(preview))
}

// ApplyPlan commits a previewed plan.
func (h *Handler) ApplyPlan(w http.ResponseWriter, r *http.Request) {
	var req ApplyRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.PlanID == "" {
		writeError(w, http.StatusBadRequest, "plan_id is required", nil)
		return
	}

	result, err := h.Service.Apply(r.Context(), req.PlanID)
	if err != nil {
		writeDomainError(w, "Failed to apply plan", err)
		return
	}
	writeJSON(w, http.StatusOK, toApplyResultDTO(result))
}

// RunPlan previews and applies in one step.
func (h *Handler) RunPlan(w http.ResponseWriter, r *http.Request) {
	in, ok := decodePlanRequest(w, r)
	if !ok {
		return
	}

	result, err := h.Service.Run(r.Context(), in)
	if err != nil {
		writeDomainError(w, "Failed to run plan", err)
		return
	}
	writeJSON(w, http.StatusOK, toRunResponse(result))
}

func decodePlanRequest(w http.ResponseWriter, r *http.Request) (budget.PreviewInput, bool) {
	var req PlanRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return budget.PreviewInput{}, false
	}

	trigger := funding.Trigger(req.Trigger)
	if req.Trigger == "" {
		trigger = funding.TriggerManual
	}
	if !trigger.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid trigger: "+req.Trigger, nil)
		return budget.PreviewInput{}, false
	}
	if req.IncomeAmount != nil && req.IncomeAmount.IsNegative() {
		writeError(w, http.StatusBadRequest, "income_amount must not be negative", nil)
		return budget.PreviewInput{}, false
	}

	in := budget.PreviewInput{Trigger: trigger, IncomeAmount: req.IncomeAmount}
	if req.Now != nil {
		in.Now = req.Now.UTC()
	}
	return in, true
}

// =============================================================================
// HISTORY ENDPOINTS
// =============================================================================

// ListTransfers returns applied transfers, newest first.
func (h *Handler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListTransfers(r.Context(), limitParam(r, 100))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list transfers", err)
		return
	}

	out := make([]TransferRecordDTO, 0, len(records))
	for _, rec := range records {
		out = append(out, toTransferRecordDTO(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

// ListRuns returns scheduled runs, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.ListRuns(r.Context(), limitParam(r, 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}

	out := make([]RunRecordDTO, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunRecordDTO(run))
	}
	writeJSON(w, http.StatusOK, out)
}

// CheckRuns runs the scheduler's period check immediately.
func (h *Handler) CheckRuns(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "Scheduler is not configured", nil)
		return
	}

	records := h.Scheduler.RunNow(r.Context())
	out := make([]RunRecordDTO, 0, len(records))
	for _, run := range records {
		out = append(out, toRunRecordDTO(run))
	}
	writeJSON(w, http.StatusOK, out)
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.Service.Forget()
	h.setCurrentScenario("")

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps service and engine errors to a status code.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	var (
		stale   *budget.StalePlanError
		invalid *budget.InvalidRuleError
	)
	switch {
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Details: err.Error(), Errors: invalid.Errors})
	case errors.As(err, &stale):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: message, Details: err.Error(), Errors: stale.Errors})
	case budget.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case budget.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case funding.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func limitParam(r *http.Request, def int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func (h *Handler) setCurrentScenario(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.currentScenario = id
}

func (h *Handler) getCurrentScenario() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentScenario
}
