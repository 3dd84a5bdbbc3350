/*
simulation.go - Planning pass over a rule set

PURPOSE:
  Runs the evaluator, calculator and transfer planner across a sorted rule
  set and produces a full execution plan. This is where the shared cash
  budget is threaded from one rule to the next.

PROCESS:
  Init -> PerRule(sorted) -> Done

  1. Keep enabled rules, sort by priority
  2. remaining = UnassignedCash
  3. For each rule:
     - not eligible      -> skipped (no error, not executed)
     - amount is zero    -> error "Amount calculated as zero", continue
     - calculator error  -> error recorded, continue
     - success           -> remaining -= amount, transfers appended
  4. Plan = simulation + initial/final cash + warnings

FOLD:
  Each step takes a foldState VALUE and returns a new one. Nothing is
  mutated in place, so a planning pass shares no state with any other.

INVARIANTS:
  - finalCash = initialCash - totalToTransfer
  - totalToTransfer = sum(transfers[].Amount)
  - finalCash >= 0: a rule asking for more than remains is rejected

SEE ALSO:
  - calculator.go: Amount per rule
  - transfers.go: Transfers per rule
  - diagnostics.go: Warnings attached to the plan
*/
package funding

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RESULT TYPES
// =============================================================================

// RuleOutcome is the result of simulating one eligible rule.
type RuleOutcome struct {
	Success          bool
	Amount           decimal.Decimal
	PlannedTransfers []PlannedTransfer
	Error            error
}

// RuleResult is the per-rule entry of a simulation.
type RuleResult struct {
	RuleID    string
	RuleName  string
	Type      RuleType
	Priority  int
	Amount    decimal.Decimal
	Transfers []PlannedTransfer
}

// Simulation is the raw output of a planning pass.
type Simulation struct {
	TotalPlanned     decimal.Decimal
	RulesExecuted    int
	RemainingCash    decimal.Decimal
	PlannedTransfers []PlannedTransfer
	Rules            []RuleResult
	Errors           []*RuleError
}

// ExecutionPlan is the engine's full output for one context.
type ExecutionPlan struct {
	Trigger         Trigger
	InitialCash     decimal.Decimal
	FinalCash       decimal.Decimal
	TotalToTransfer decimal.Decimal
	RulesExecuted   int
	Rules           []RuleResult
	Transfers       []PlannedTransfer
	Errors          []*RuleError
	Warnings        []Warning
}

// =============================================================================
// PLANNER
// =============================================================================

// DefaultLowCashThreshold is the remaining cash under which a plan warns.
var DefaultLowCashThreshold = decimal.NewFromInt(5)

// Planner runs planning passes. The zero value is usable; it warns on low
// cash only when LowCashThreshold is positive.
type Planner struct {
	LowCashThreshold decimal.Decimal
}

// NewPlanner creates a planner with the default low cash threshold.
func NewPlanner() *Planner {
	return &Planner{LowCashThreshold: DefaultLowCashThreshold}
}

// foldState is the accumulator threaded through the sorted rules.
type foldState struct {
	remaining decimal.Decimal
	planned   decimal.Decimal
	executed  int
	transfers []PlannedTransfer
	results   []RuleResult
	errors    []*RuleError
}

// SimulateRuleExecution plans every eligible rule against ctx.
// Only a malformed context is returned as an error.
func (p *Planner) SimulateRuleExecution(rules []Rule, ctx ExecutionContext) (*Simulation, error) {
	if err := ctx.Validate(); err != nil {
		return nil, err
	}

	var enabled []Rule
	for _, r := range rules {
		if r.Enabled {
			enabled = append(enabled, r)
		}
	}

	state := foldState{remaining: ctx.Data.UnassignedCash, planned: decimal.Zero}
	for _, rule := range SortRulesByPriority(enabled) {
		state = p.step(state, rule, ctx)
	}

	return &Simulation{
		TotalPlanned:     state.planned,
		RulesExecuted:    state.executed,
		RemainingCash:    state.remaining,
		PlannedTransfers: state.transfers,
		Rules:            state.results,
		Errors:           state.errors,
	}, nil
}

func (p *Planner) step(state foldState, rule Rule, ctx ExecutionContext) foldState {
	if !eligible(rule, ctx) {
		return state
	}

	outcome := p.SimulateSingleRule(rule, ctx, state.remaining)
	if !outcome.Success {
		state.errors = appendErr(state.errors, &RuleError{RuleID: rule.ID, RuleName: rule.Name, Err: outcome.Error})
		return state
	}

	state.remaining = state.remaining.Sub(outcome.Amount)
	state.planned = state.planned.Add(outcome.Amount)
	state.executed++
	state.transfers = appendTransfers(state.transfers, outcome.PlannedTransfers)
	state.results = appendResult(state.results, RuleResult{
		RuleID:    rule.ID,
		RuleName:  rule.Name,
		Type:      rule.Type,
		Priority:  rule.Priority,
		Amount:    outcome.Amount,
		Transfers: outcome.PlannedTransfers,
	})
	return state
}

// eligible evaluates the gates, treating a panicking condition as ineligible.
func eligible(rule Rule, ctx ExecutionContext) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return ShouldRuleExecute(rule, ctx)
}

// SimulateSingleRule computes one rule's amount and transfers against the
// cash still available. It never panics and never returns an error; failures
// are reported in the outcome.
func (p *Planner) SimulateSingleRule(rule Rule, ctx ExecutionContext, remaining decimal.Decimal) (outcome RuleOutcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = RuleOutcome{Error: fmt.Errorf("%w: %v", ErrRuleEvaluation, r)}
		}
	}()

	amount, err := CalculateFundingAmount(rule, ctx, remaining)
	if err != nil {
		return RuleOutcome{Error: err}
	}
	if amount.IsZero() {
		return RuleOutcome{Error: ErrZeroAmount}
	}
	if amount.IsNegative() || amount.GreaterThan(remaining) {
		return RuleOutcome{Error: fmt.Errorf("%w: requested %s, available %s", ErrInsufficientCash, amount, remaining)}
	}

	transfers := PlanRuleTransfers(rule, amount)
	if !TotalAmount(transfers).Equal(amount) {
		return RuleOutcome{Error: fmt.Errorf("%w: transfers do not cover %s", ErrConfigMismatch, amount)}
	}

	return RuleOutcome{Success: true, Amount: amount, PlannedTransfers: transfers}
}

// CreateExecutionPlan simulates rules and decorates the result with cash
// totals and warnings.
func (p *Planner) CreateExecutionPlan(rules []Rule, ctx ExecutionContext) (*ExecutionPlan, error) {
	sim, err := p.SimulateRuleExecution(rules, ctx)
	if err != nil {
		return nil, err
	}

	initial := ctx.Data.UnassignedCash
	total := TotalAmount(sim.PlannedTransfers)

	return &ExecutionPlan{
		Trigger:         ctx.Trigger,
		InitialCash:     initial,
		FinalCash:       initial.Sub(total),
		TotalToTransfer: total,
		RulesExecuted:   sim.RulesExecuted,
		Rules:           sim.Rules,
		Transfers:       sim.PlannedTransfers,
		Errors:          sim.Errors,
		Warnings:        p.GeneratePlanWarnings(sim, ctx),
	}, nil
}

// The append helpers copy, so a foldState handed to step is never aliased
// by the state it returns.

func appendTransfers(s []PlannedTransfer, more []PlannedTransfer) []PlannedTransfer {
	out := make([]PlannedTransfer, len(s), len(s)+len(more))
	copy(out, s)
	return append(out, more...)
}

func appendResult(s []RuleResult, r RuleResult) []RuleResult {
	out := make([]RuleResult, len(s), len(s)+1)
	copy(out, s)
	return append(out, r)
}

func appendErr(s []*RuleError, e *RuleError) []*RuleError {
	out := make([]*RuleError, len(s), len(s)+1)
	copy(out, s)
	return append(out, e)
}
