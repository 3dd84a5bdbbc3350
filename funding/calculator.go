package funding

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// FUNDING AMOUNT CALCULATOR
// =============================================================================

// CalculateFundingAmount returns how much an eligible rule would move, given
// the cash still unplanned. A zero result means the rule has nothing to do.
//
//	FIXED_AMOUNT:    min(amount, remaining)
//	PERCENTAGE:      min(percentage% of IncomeAmount, remaining)
//	PRIORITY_FILL:   min(max(goal - balance, 0), remaining)
//	SPLIT_REMAINDER: remaining
//	CONDITIONAL:     FIXED_AMOUNT or PERCENTAGE, conditions already passed
func CalculateFundingAmount(rule Rule, ctx ExecutionContext, remaining decimal.Decimal) (decimal.Decimal, error) {
	if rule.Config == nil {
		return decimal.Zero, fmt.Errorf("%w: rule has no config", ErrConfigMismatch)
	}
	if rule.Config.RuleType() != rule.Type {
		return decimal.Zero, fmt.Errorf("%w: %s config on %s rule", ErrConfigMismatch, rule.Config.RuleType(), rule.Type)
	}
	if !remaining.IsPositive() {
		return decimal.Zero, nil
	}

	switch c := rule.Config.(type) {
	case FixedAmountConfig:
		return fixedAmount(c.Amount, remaining), nil

	case PercentageConfig:
		return percentageOfIncome(c.Percentage, ctx, remaining), nil

	case PriorityFillConfig:
		return fillGap(c, ctx, remaining)

	case SplitRemainderConfig:
		return remaining, nil

	case ConditionalConfig:
		switch {
		case c.Amount != nil:
			return fixedAmount(*c.Amount, remaining), nil
		case c.Percentage != nil:
			return percentageOfIncome(*c.Percentage, ctx, remaining), nil
		}
		return decimal.Zero, nil
	}

	return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownRuleType, rule.Type)
}

func fixedAmount(amount, remaining decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() {
		return decimal.Zero
	}
	return decimal.Min(amount, remaining)
}

// percentageOfIncome is computed against the cycle's income, not the
// shrinking pool, so stacked percentage rules see the same base. The result
// is exact in the caller's unit; no rounding is applied.
func percentageOfIncome(pct decimal.Decimal, ctx ExecutionContext, remaining decimal.Decimal) decimal.Decimal {
	base := ctx.Data.IncomeAmount
	if !pct.IsPositive() || !base.IsPositive() {
		return decimal.Zero
	}
	want := base.Mul(pct).Div(hundred)
	if !want.IsPositive() {
		return decimal.Zero
	}
	return decimal.Min(want, remaining)
}

func fillGap(c PriorityFillConfig, ctx ExecutionContext, remaining decimal.Decimal) (decimal.Decimal, error) {
	env, ok := ctx.Envelope(c.TargetID)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrEnvelopeNotFound, c.TargetID)
	}

	goal := env.MonthlyAmount
	if c.FillTo == FillToTargetAmount {
		if env.TargetAmount == nil {
			return decimal.Zero, nil
		}
		goal = *env.TargetAmount
	}

	gap := goal.Sub(env.CurrentBalance)
	if !gap.IsPositive() {
		return decimal.Zero, nil
	}
	return decimal.Min(gap, remaining), nil
}
