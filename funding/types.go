/*
Package funding provides the auto-funding rule engine.

PURPOSE:
  Decides how a pool of unassigned cash would be distributed across budget
  envelopes by a prioritized, conditionally-triggered set of user rules.
  The engine only PLANS. It never moves money, never writes to a store and
  never reads a clock: every input arrives in an ExecutionContext and every
  output is a fresh ExecutionPlan.

KEY CONCEPTS IN THIS FILE (types.go):
  - Trigger: The event that started a planning pass (manual, income, schedule)
  - Envelope: A named bucket of budgeted funds with a current balance
  - ExecutionContext: Immutable snapshot the engine plans against
  - PlannedTransfer: One proposed move of cash into one envelope

DESIGN PRINCIPLES:
  1. Purity: Same rules + same context = same plan, every time
  2. Precision: decimal.Decimal everywhere, no float money
  3. Conservation: A plan never moves more cash than the context holds
  4. Continue and report: One bad rule never blocks the good ones

USAGE:
  planner := funding.NewPlanner()
  plan, err := planner.CreateExecutionPlan(rules, funding.ExecutionContext{
      Trigger: funding.TriggerManual,
      Now:     time.Now(),
      Data: funding.ContextData{
          UnassignedCash: decimal.NewFromInt(500),
          Envelopes:      envelopes,
      },
  })

SEE ALSO:
  - rule.go: Rule model and validation
  - conditions.go: Eligibility gates
  - calculator.go: Per-rule funding amounts
  - transfers.go: Rule amount to concrete transfers
  - simulation.go: The planning fold
  - diagnostics.go: Warnings, re-validation, impact, summary
*/
package funding

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TRIGGERS
// =============================================================================

// Trigger identifies the event that makes a rule eligible.
type Trigger string

const (
	TriggerManual         Trigger = "manual"
	TriggerIncomeDetected Trigger = "income_detected"
	TriggerBiweekly       Trigger = "biweekly"
	TriggerWeekly         Trigger = "weekly"
	TriggerMonthly        Trigger = "monthly"
)

// Triggers lists every known trigger in display order.
var Triggers = []Trigger{TriggerManual, TriggerIncomeDetected, TriggerBiweekly, TriggerWeekly, TriggerMonthly}

// Valid reports whether t is a known trigger.
func (t Trigger) Valid() bool {
	for _, known := range Triggers {
		if t == known {
			return true
		}
	}
	return false
}

// IsScheduled reports whether the trigger fires from the calendar.
func (t Trigger) IsScheduled() bool {
	return t == TriggerWeekly || t == TriggerBiweekly || t == TriggerMonthly
}

// =============================================================================
// BUDGET SNAPSHOT
// =============================================================================

// Envelope is a named bucket of budgeted funds.
type Envelope struct {
	ID             string
	Name           string
	CurrentBalance decimal.Decimal
	MonthlyAmount  decimal.Decimal
	TargetAmount   *decimal.Decimal
}

// Transaction is a recent account transaction, used by pattern conditions.
type Transaction struct {
	ID         string
	Merchant   string
	Category   string
	Amount     decimal.Decimal
	OccurredAt time.Time
}

// ContextData is the financial snapshot a plan is computed against.
type ContextData struct {
	UnassignedCash decimal.Decimal

	// IncomeAmount is the base for PERCENTAGE rules. It is never inferred
	// from UnassignedCash; a zero base produces zero-amount percentage rules.
	IncomeAmount decimal.Decimal

	Envelopes    []Envelope
	Transactions []Transaction
}

// ExecutionContext is the immutable input of one planning pass.
type ExecutionContext struct {
	Trigger Trigger
	Now     time.Time
	Data    ContextData
}

// Envelope looks up an envelope by id.
func (c ExecutionContext) Envelope(id string) (Envelope, bool) {
	for _, e := range c.Data.Envelopes {
		if e.ID == id {
			return e, true
		}
	}
	return Envelope{}, false
}

// Validate rejects malformed top-level input. This is the only failure that
// escapes the engine; everything rule-level is reported inside the plan.
func (c ExecutionContext) Validate() error {
	if !c.Trigger.Valid() {
		return fmt.Errorf("%w: unknown trigger %q", ErrInvalidContext, c.Trigger)
	}
	if c.Data.UnassignedCash.IsNegative() {
		return fmt.Errorf("%w: unassigned cash is negative (%s)", ErrInvalidContext, c.Data.UnassignedCash)
	}
	seen := make(map[string]bool, len(c.Data.Envelopes))
	for _, e := range c.Data.Envelopes {
		if e.ID == "" {
			return fmt.Errorf("%w: envelope without id", ErrInvalidContext)
		}
		if seen[e.ID] {
			return fmt.Errorf("%w: duplicate envelope %q", ErrInvalidContext, e.ID)
		}
		seen[e.ID] = true
	}
	return nil
}

// =============================================================================
// PLAN OUTPUT
// =============================================================================

// PlannedTransfer is one proposed move of cash into an envelope.
// Amount is never negative and uses the same unit as UnassignedCash.
type PlannedTransfer struct {
	ToEnvelopeID string
	Amount       decimal.Decimal
	Description  string
	RuleID       string
	RuleName     string
}

// TotalAmount sums the amounts of transfers.
func TotalAmount(transfers []PlannedTransfer) decimal.Decimal {
	total := decimal.Zero
	for _, t := range transfers {
		total = total.Add(t.Amount)
	}
	return total
}
