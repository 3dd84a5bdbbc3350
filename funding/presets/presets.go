/*
Package presets provides ready-made auto-funding rules.

PURPOSE:
  Starting points for the rules most budgets end up with. Each function
  returns a complete, valid funding.Rule that callers can adjust before
  saving.

AVAILABLE PRESETS:
  RentFirst:        Fixed amount to a must-pay envelope, runs first
  EmergencyFund:    Percentage of each paycheck into savings
  BillsTopUp:       Refill a bills envelope to its monthly amount
  LowBalanceRescue: Fixed top-up only while an envelope is below a floor
  PaycheckSweep:    Split whatever is left across several envelopes, runs last

PRIORITY BANDS:
  10-99    must-pay fixed amounts
  100-199  savings percentages
  200-299  top-ups
  1000     sweeps

EXAMPLE:
  rules := []funding.Rule{
      presets.RentFirst("rule-rent", "env-rent", decimal.NewFromInt(1200)),
      presets.EmergencyFund("rule-ef", "env-ef", decimal.NewFromInt(10)),
      presets.PaycheckSweep("rule-sweep", "env-fun", "env-travel"),
  }

SEE ALSO:
  - funding/rule.go: Rule type definition
  - factory/rule.go: JSON-based rule creation
*/
package presets

import (
	"github.com/shopspring/decimal"
	"github.com/warp/autofund/funding"
)

// RentFirst moves a fixed amount into a must-pay envelope on every paycheck.
func RentFirst(id, envelopeID string, amount decimal.Decimal) funding.Rule {
	return funding.Rule{
		ID:          id,
		Name:        "Rent first",
		Description: "Cover rent before anything else",
		Type:        funding.TypeFixedAmount,
		Trigger:     funding.TriggerIncomeDetected,
		Priority:    10,
		Enabled:     true,
		Source:      funding.FundingSource{Type: funding.SourceIncome},
		Config:      funding.FixedAmountConfig{TargetID: envelopeID, Amount: amount},
	}
}

// EmergencyFund saves a percentage of each paycheck.
func EmergencyFund(id, envelopeID string, percentage decimal.Decimal) funding.Rule {
	return funding.Rule{
		ID:          id,
		Name:        "Emergency fund",
		Description: "Save a slice of every paycheck",
		Type:        funding.TypePercentage,
		Trigger:     funding.TriggerIncomeDetected,
		Priority:    100,
		Enabled:     true,
		Source:      funding.FundingSource{Type: funding.SourceIncome},
		Config:      funding.PercentageConfig{TargetID: envelopeID, Percentage: percentage},
	}
}

// BillsTopUp refills an envelope to its monthly amount at the start of each month.
func BillsTopUp(id, envelopeID string) funding.Rule {
	return funding.Rule{
		ID:          id,
		Name:        "Bills top-up",
		Description: "Refill bills to the monthly budget",
		Type:        funding.TypePriorityFill,
		Trigger:     funding.TriggerMonthly,
		Priority:    200,
		Enabled:     true,
		Source:      funding.FundingSource{Type: funding.SourceUnassigned},
		Schedule:    &funding.ScheduleConfig{DayOfMonth: 1},
		Config:      funding.PriorityFillConfig{TargetID: envelopeID, FillTo: funding.FillToMonthlyAmount},
	}
}

// LowBalanceRescue tops up an envelope by amount while it sits below floor.
func LowBalanceRescue(id, envelopeID string, floor, amount decimal.Decimal) funding.Rule {
	return funding.Rule{
		ID:          id,
		Name:        "Low balance rescue",
		Description: "Add a cushion when the envelope runs low",
		Type:        funding.TypeConditional,
		Trigger:     funding.TriggerWeekly,
		Priority:    250,
		Enabled:     true,
		Source:      funding.FundingSource{Type: funding.SourceUnassigned},
		Conditions:  []funding.Condition{funding.BalanceBelow{EnvelopeID: envelopeID, Threshold: floor}},
		Config:      funding.ConditionalConfig{TargetID: envelopeID, Amount: &amount},
	}
}

// PaycheckSweep splits whatever a paycheck leaves over across envelopeIDs.
func PaycheckSweep(id string, envelopeIDs ...string) funding.Rule {
	return funding.Rule{
		ID:          id,
		Name:        "Paycheck sweep",
		Description: "Split the leftovers evenly",
		Type:        funding.TypeSplitRemainder,
		Trigger:     funding.TriggerIncomeDetected,
		Priority:    1000,
		Enabled:     true,
		Source:      funding.FundingSource{Type: funding.SourceIncome},
		Config:      funding.SplitRemainderConfig{TargetIDs: envelopeIDs},
	}
}
