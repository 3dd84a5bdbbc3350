/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  Amounts are decimal.Decimal, which marshals as a JSON string ("12.50")
  and accepts either a string or a number on input.

TYPES:
  Rules:      factory.RuleJSON (shared with storage), RuleValidationDTO
  Budget:     EnvelopeDTO, BudgetDTO, SetCashRequest, IncomeRequest
  Plans:      PlanRequest, ApplyRequest, PreviewDTO, PlanDTO, RunResponse
  History:    TransferRecordDTO, RunRecordDTO
  Scenarios:  ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/rule.go: RuleJSON type
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/autofund/budget"
	"github.com/warp/autofund/funding"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// PlanRequest selects what to plan for preview or run.
type PlanRequest struct {
	Trigger      string           `json:"trigger"`
	IncomeAmount *decimal.Decimal `json:"income_amount,omitempty"`
	Now          *time.Time       `json:"now,omitempty"`
}

// ApplyRequest names a previously previewed plan.
type ApplyRequest struct {
	PlanID string `json:"plan_id"`
}

// IncomeRequest records a deposit.
type IncomeRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	Merchant   string          `json:"merchant,omitempty"`
	Category   string          `json:"category,omitempty"`
	OccurredAt *time.Time      `json:"occurred_at,omitempty"`
}

// SetCashRequest overwrites unassigned cash.
type SetCashRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// LoadScenarioRequest selects a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// BUDGET
// =============================================================================

// EnvelopeDTO is an envelope in requests and responses.
type EnvelopeDTO struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	CurrentBalance decimal.Decimal  `json:"current_balance"`
	MonthlyAmount  decimal.Decimal  `json:"monthly_amount"`
	TargetAmount   *decimal.Decimal `json:"target_amount,omitempty"`
}

// BudgetDTO is the live budget snapshot.
type BudgetDTO struct {
	UnassignedCash decimal.Decimal `json:"unassigned_cash"`
	TotalAssigned  decimal.Decimal `json:"total_assigned"`
	Envelopes      []EnvelopeDTO   `json:"envelopes"`
}

// RuleValidationDTO is the result of validating a rule without saving it.
type RuleValidationDTO struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// =============================================================================
// PLANS
// =============================================================================

// TransferDTO is one planned transfer.
type TransferDTO struct {
	ToEnvelopeID string          `json:"to_envelope_id"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	RuleID       string          `json:"rule_id"`
	RuleName     string          `json:"rule_name"`
}

// RuleResultDTO is one executed rule.
type RuleResultDTO struct {
	RuleID    string          `json:"rule_id"`
	RuleName  string          `json:"rule_name"`
	Type      string          `json:"type"`
	Priority  int             `json:"priority"`
	Amount    decimal.Decimal `json:"amount"`
	Transfers []TransferDTO   `json:"transfers"`
}

// RuleErrorDTO is one rule that was eligible but failed.
type RuleErrorDTO struct {
	RuleID   string `json:"rule_id"`
	RuleName string `json:"rule_name"`
	Error    string `json:"error"`
}

// WarningDTO is a plan-level warning.
type WarningDTO struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// PlanDTO is an execution plan.
type PlanDTO struct {
	Trigger         string          `json:"trigger"`
	InitialCash     decimal.Decimal `json:"initial_cash"`
	FinalCash       decimal.Decimal `json:"final_cash"`
	TotalToTransfer decimal.Decimal `json:"total_to_transfer"`
	RulesExecuted   int             `json:"rules_executed"`
	Rules           []RuleResultDTO `json:"rules"`
	Transfers       []TransferDTO   `json:"transfers"`
	Errors          []RuleErrorDTO  `json:"errors"`
	Warnings        []WarningDTO    `json:"warnings"`
}

// EnvelopeImpactDTO is the before/after of one envelope.
type EnvelopeImpactDTO struct {
	EnvelopeID     string          `json:"envelope_id"`
	EnvelopeName   string          `json:"envelope_name"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	Change         decimal.Decimal `json:"change"`
	NewBalance     decimal.Decimal `json:"new_balance"`
}

// ImpactDTO is the projected effect of a plan.
type ImpactDTO struct {
	Envelopes        []EnvelopeImpactDTO `json:"envelopes"`
	TotalTransferred decimal.Decimal     `json:"total_transferred"`
	UnassignedChange decimal.Decimal     `json:"unassigned_change"`
}

// OverviewDTO holds headline numbers of a plan.
type OverviewDTO struct {
	TotalAmount   decimal.Decimal `json:"total_amount"`
	InitialCash   decimal.Decimal `json:"initial_cash"`
	FinalCash     decimal.Decimal `json:"final_cash"`
	RulesExecuted int             `json:"rules_executed"`
	TransferCount int             `json:"transfer_count"`
	ErrorCount    int             `json:"error_count"`
	WarningCount  int             `json:"warning_count"`
}

// RuleSummaryDTO is one executed rule with target names.
type RuleSummaryDTO struct {
	RuleID      string          `json:"rule_id"`
	RuleName    string          `json:"rule_name"`
	Amount      decimal.Decimal `json:"amount"`
	TargetNames []string        `json:"target_names"`
}

// TransferSummaryDTO is one transfer with its envelope name.
type TransferSummaryDTO struct {
	EnvelopeID   string          `json:"envelope_id"`
	EnvelopeName string          `json:"envelope_name"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
}

// SummaryDTO is a display-ready plan summary.
type SummaryDTO struct {
	Overview  OverviewDTO          `json:"overview"`
	Rules     []RuleSummaryDTO     `json:"rules"`
	Transfers []TransferSummaryDTO `json:"transfers"`
}

// PreviewDTO is a previewed plan that can be applied by id.
type PreviewDTO struct {
	PlanID    string     `json:"plan_id"`
	CreatedAt string     `json:"created_at"`
	Plan      PlanDTO    `json:"plan"`
	Summary   SummaryDTO `json:"summary"`
	Impact    ImpactDTO  `json:"impact"`
}

// ApplyResultDTO describes a committed plan.
type ApplyResultDTO struct {
	PlanID       string          `json:"plan_id"`
	Transfers    int             `json:"transfers"`
	TotalApplied decimal.Decimal `json:"total_applied"`
	RulesUpdated int             `json:"rules_updated"`
	AppliedAt    string          `json:"applied_at"`
}

// RunResponse is a preview plus its commit, if any.
type RunResponse struct {
	Preview PreviewDTO      `json:"preview"`
	Applied *ApplyResultDTO `json:"applied,omitempty"`
}

// =============================================================================
// HISTORY
// =============================================================================

// TransferRecordDTO is one applied transfer.
type TransferRecordDTO struct {
	ID          string          `json:"id"`
	PlanID      string          `json:"plan_id"`
	RuleID      string          `json:"rule_id,omitempty"`
	RuleName    string          `json:"rule_name,omitempty"`
	EnvelopeID  string          `json:"envelope_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	AppliedAt   string          `json:"applied_at"`
}

// RunRecordDTO is one scheduled run.
type RunRecordDTO struct {
	ID               string          `json:"id"`
	Trigger          string          `json:"trigger"`
	PeriodKey        string          `json:"period_key"`
	Status           string          `json:"status"`
	PlanID           string          `json:"plan_id,omitempty"`
	RulesExecuted    int             `json:"rules_executed"`
	TotalTransferred decimal.Decimal `json:"total_transferred"`
	Error            string          `json:"error,omitempty"`
	RanAt            string          `json:"ran_at"`
}

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the error body.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Details string   `json:"details,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toEnvelopeDTO(e funding.Envelope) EnvelopeDTO {
	return EnvelopeDTO{
		ID:             e.ID,
		Name:           e.Name,
		CurrentBalance: e.CurrentBalance,
		MonthlyAmount:  e.MonthlyAmount,
		TargetAmount:   e.TargetAmount,
	}
}

func (d EnvelopeDTO) toEnvelope() funding.Envelope {
	return funding.Envelope{
		ID:             d.ID,
		Name:           d.Name,
		CurrentBalance: d.CurrentBalance,
		MonthlyAmount:  d.MonthlyAmount,
		TargetAmount:   d.TargetAmount,
	}
}

func toTransferDTOs(ts []funding.PlannedTransfer) []TransferDTO {
	out := make([]TransferDTO, 0, len(ts))
	for _, t := range ts {
		out = append(out, TransferDTO{
			ToEnvelopeID: t.ToEnvelopeID,
			Amount:       t.Amount,
			Description:  t.Description,
			RuleID:       t.RuleID,
			RuleName:     t.RuleName,
		})
	}
	return out
}

func toPlanDTO(p *funding.ExecutionPlan) PlanDTO {
	dto := PlanDTO{
		Trigger:         string(p.Trigger),
		InitialCash:     p.InitialCash,
		FinalCash:       p.FinalCash,
		TotalToTransfer: p.TotalToTransfer,
		RulesExecuted:   p.RulesExecuted,
		Rules:           make([]RuleResultDTO, 0, len(p.Rules)),
		Transfers:       toTransferDTOs(p.Transfers),
		Errors:          make([]RuleErrorDTO, 0, len(p.Errors)),
		Warnings:        make([]WarningDTO, 0, len(p.Warnings)),
	}
	for _, r := range p.Rules {
		dto.Rules = append(dto.Rules, RuleResultDTO{
			RuleID:    r.RuleID,
			RuleName:  r.RuleName,
			Type:      string(r.Type),
			Priority:  r.Priority,
			Amount:    r.Amount,
			Transfers: toTransferDTOs(r.Transfers),
		})
	}
	for _, e := range p.Errors {
		dto.Errors = append(dto.Errors, RuleErrorDTO{RuleID: e.RuleID, RuleName: e.RuleName, Error: e.Err.Error()})
	}
	for _, w := range p.Warnings {
		dto.Warnings = append(dto.Warnings, WarningDTO{Type: string(w.Type), Message: w.Message})
	}
	return dto
}

func toSummaryDTO(s funding.PlanSummary) SummaryDTO {
	o := s.Overview
	dto := SummaryDTO{
		Overview: OverviewDTO{
			TotalAmount:   o.TotalAmount,
			InitialCash:   o.InitialCash,
			FinalCash:     o.FinalCash,
			RulesExecuted: o.RulesExecuted,
			TransferCount: o.TransferCount,
			ErrorCount:    o.ErrorCount,
			WarningCount:  o.WarningCount,
		},
		Rules:     make([]RuleSummaryDTO, 0, len(s.RulesSummary)),
		Transfers: make([]TransferSummaryDTO, 0, len(s.TransfersSummary)),
	}
	for _, r := range s.RulesSummary {
		dto.Rules = append(dto.Rules, RuleSummaryDTO(r))
	}
	for _, t := range s.TransfersSummary {
		dto.Transfers = append(dto.Transfers, TransferSummaryDTO(t))
	}
	return dto
}

func toImpactDTO(i funding.TransferImpact) ImpactDTO {
	dto := ImpactDTO{
		Envelopes:        make([]EnvelopeImpactDTO, 0, len(i.Envelopes)),
		TotalTransferred: i.TotalTransferred,
		UnassignedChange: i.UnassignedChange,
	}
	for _, e := range i.Envelopes {
		dto.Envelopes = append(dto.Envelopes, EnvelopeImpactDTO{
			EnvelopeID:     e.EnvelopeID,
			EnvelopeName:   e.EnvelopeName,
			CurrentBalance: e.CurrentBalance,
			Change:         e.Change,
			NewBalance:     e.NewBalance,
		})
	}
	return dto
}

func toPreviewDTO(p *budget.Preview) PreviewDTO {
	return PreviewDTO{
		PlanID:    p.PlanID,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
		Plan:      toPlanDTO(p.Plan),
		Summary:   toSummaryDTO(p.Summary),
		Impact:    toImpactDTO(p.Impact),
	}
}

func toApplyResultDTO(a *budget.ApplyResult) *ApplyResultDTO {
	if a == nil {
		return nil
	}
	return &ApplyResultDTO{
		PlanID:       a.PlanID,
		Transfers:    a.Transfers,
		TotalApplied: a.TotalApplied,
		RulesUpdated: a.RulesUpdated,
		AppliedAt:    a.AppliedAt.Format(time.RFC3339),
	}
}

func toRunResponse(r *budget.RunResult) RunResponse {
	return RunResponse{
		Preview: toPreviewDTO(r.Preview),
		Applied: toApplyResultDTO(r.Applied),
	}
}

func toTransferRecordDTO(r budget.TransferRecord) TransferRecordDTO {
	return TransferRecordDTO{
		ID:          r.ID,
		PlanID:      r.PlanID,
		RuleID:      r.RuleID,
		RuleName:    r.RuleName,
		EnvelopeID:  r.EnvelopeID,
		Amount:      r.Amount,
		Description: r.Description,
		AppliedAt:   r.AppliedAt.Format(time.RFC3339),
	}
}

func toRunRecordDTO(r budget.RunRecord) RunRecordDTO {
	return RunRecordDTO{
		ID:               r.ID,
		Trigger:          string(r.Trigger),
		PeriodKey:        r.PeriodKey,
		Status:           string(r.Status),
		PlanID:           r.PlanID,
		RulesExecuted:    r.RulesExecuted,
		TotalTransferred: r.TotalTransferred,
		Error:            r.Error,
		RanAt:            r.RanAt.Format(time.RFC3339),
	}
}
