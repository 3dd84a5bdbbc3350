package funding

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// WARNINGS
// =============================================================================

// WarningType classifies an advisory message on a plan.
type WarningType string

const (
	WarningInsufficientFunds WarningType = "insufficient_funds"
	WarningNoExecution       WarningType = "no_execution"
	WarningLowRemainingCash  WarningType = "low_remaining_cash"
)

// Warning is advisory only; it never blocks a plan.
type Warning struct {
	Type    WarningType
	Message string
}

// GeneratePlanWarnings derives advisory warnings from a simulation.
func (p *Planner) GeneratePlanWarnings(sim *Simulation, ctx ExecutionContext) []Warning {
	var warnings []Warning
	if sim == nil {
		return warnings
	}

	if len(sim.Errors) > 0 {
		warnings = append(warnings, Warning{
			Type:    WarningInsufficientFunds,
			Message: fmt.Sprintf("%d rule(s) could not be funded", len(sim.Errors)),
		})
	}
	if sim.RulesExecuted == 0 {
		warnings = append(warnings, Warning{
			Type:    WarningNoExecution,
			Message: fmt.Sprintf("No rules executed for trigger %s", ctx.Trigger),
		})
	}
	if p.LowCashThreshold.IsPositive() && sim.RemainingCash.LessThan(p.LowCashThreshold) {
		warnings = append(warnings, Warning{
			Type:    WarningLowRemainingCash,
			Message: fmt.Sprintf("Only %s unassigned cash would remain", sim.RemainingCash.StringFixed(2)),
		})
	}
	return warnings
}

// =============================================================================
// TRANSFER RE-VALIDATION
// =============================================================================

// TransferValidation is the result of re-checking transfers against a snapshot.
type TransferValidation struct {
	IsValid bool
	Errors  []string
}

// ValidateTransfers re-verifies a transfer set against ctx, independent of
// the simulation that produced it. Appliers run it against live state right
// before committing so a stale plan cannot overdraw.
func ValidateTransfers(transfers []PlannedTransfer, ctx ExecutionContext) TransferValidation {
	var errs []string

	total := decimal.Zero
	for _, t := range transfers {
		if _, ok := ctx.Envelope(t.ToEnvelopeID); !ok {
			errs = append(errs, fmt.Sprintf("Envelope %s not found", t.ToEnvelopeID))
		}
		if !t.Amount.IsPositive() {
			errs = append(errs, fmt.Sprintf("Transfer amount for %s must be positive", t.ToEnvelopeID))
		}
		total = total.Add(t.Amount)
	}

	if total.GreaterThan(ctx.Data.UnassignedCash) {
		errs = append(errs, fmt.Sprintf("Total transfers (%s) exceed available cash (%s)",
			total.StringFixed(2), ctx.Data.UnassignedCash.StringFixed(2)))
	}

	return TransferValidation{IsValid: len(errs) == 0, Errors: errs}
}

// =============================================================================
// BALANCE IMPACT
// =============================================================================

// EnvelopeImpact is the projected effect of a plan on one envelope.
type EnvelopeImpact struct {
	EnvelopeID     string
	EnvelopeName   string
	CurrentBalance decimal.Decimal
	Change         decimal.Decimal
	NewBalance     decimal.Decimal
}

// TransferImpact is the projected effect of a transfer set on the budget.
type TransferImpact struct {
	Envelopes        []EnvelopeImpact
	TotalTransferred decimal.Decimal
	UnassignedChange decimal.Decimal
}

// CalculateTransferImpact projects new envelope balances. Envelopes appear
// in the order they are first touched; unknown ids start from zero.
func CalculateTransferImpact(transfers []PlannedTransfer, ctx ExecutionContext) TransferImpact {
	index := make(map[string]int)
	var impacts []EnvelopeImpact
	total := decimal.Zero

	for _, t := range transfers {
		i, ok := index[t.ToEnvelopeID]
		if !ok {
			env, _ := ctx.Envelope(t.ToEnvelopeID)
			impacts = append(impacts, EnvelopeImpact{
				EnvelopeID:     t.ToEnvelopeID,
				EnvelopeName:   env.Name,
				CurrentBalance: env.CurrentBalance,
				Change:         decimal.Zero,
			})
			i = len(impacts) - 1
			index[t.ToEnvelopeID] = i
		}
		impacts[i].Change = impacts[i].Change.Add(t.Amount)
		total = total.Add(t.Amount)
	}

	for i := range impacts {
		impacts[i].NewBalance = impacts[i].CurrentBalance.Add(impacts[i].Change)
	}

	return TransferImpact{
		Envelopes:        impacts,
		TotalTransferred: total,
		UnassignedChange: total.Neg(),
	}
}

// =============================================================================
// SUMMARY
// =============================================================================

// PlanOverview holds headline numbers of a plan.
type PlanOverview struct {
	TotalAmount   decimal.Decimal
	InitialCash   decimal.Decimal
	FinalCash     decimal.Decimal
	RulesExecuted int
	TransferCount int
	ErrorCount    int
	WarningCount  int
}

// RuleSummary is one executed rule with its targets resolved to names.
type RuleSummary struct {
	RuleID      string
	RuleName    string
	Amount      decimal.Decimal
	TargetNames []string
}

// TransferSummary is one transfer with its target resolved to a name.
type TransferSummary struct {
	EnvelopeID   string
	EnvelopeName string
	Amount       decimal.Decimal
	Description  string
}

// PlanSummary is a display-ready rendering of a plan.
type PlanSummary struct {
	Overview         PlanOverview
	RulesSummary     []RuleSummary
	TransfersSummary []TransferSummary
}

// GeneratePlanSummary resolves envelope ids to names. Ids with no matching
// envelope are shown as the id itself.
func GeneratePlanSummary(plan *ExecutionPlan, envelopes []Envelope) PlanSummary {
	if plan == nil {
		return PlanSummary{}
	}

	names := make(map[string]string, len(envelopes))
	for _, e := range envelopes {
		names[e.ID] = e.Name
	}
	nameOf := func(id string) string {
		if n, ok := names[id]; ok && n != "" {
			return n
		}
		return id
	}

	summary := PlanSummary{
		Overview: PlanOverview{
			TotalAmount:   plan.TotalToTransfer,
			InitialCash:   plan.InitialCash,
			FinalCash:     plan.FinalCash,
			RulesExecuted: plan.RulesExecuted,
			TransferCount: len(plan.Transfers),
			ErrorCount:    len(plan.Errors),
			WarningCount:  len(plan.Warnings),
		},
	}

	for _, r := range plan.Rules {
		var targets []string
		seen := make(map[string]bool)
		for _, t := range r.Transfers {
			if seen[t.ToEnvelopeID] {
				continue
			}
			seen[t.ToEnvelopeID] = true
			targets = append(targets, nameOf(t.ToEnvelopeID))
		}
		summary.RulesSummary = append(summary.RulesSummary, RuleSummary{
			RuleID:      r.RuleID,
			RuleName:    r.RuleName,
			Amount:      r.Amount,
			TargetNames: targets,
		})
	}

	for _, t := range plan.Transfers {
		summary.TransfersSummary = append(summary.TransfersSummary, TransferSummary{
			EnvelopeID:   t.ToEnvelopeID,
			EnvelopeName: nameOf(t.ToEnvelopeID),
			Amount:       t.Amount,
			Description:  t.Description,
		})
	}

	return summary
}
