package funding_test

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/warp/autofund/funding"
)

func cents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

// TestPlanConservation checks, over random budgets and rule sets, that a plan
// never overdraws and that every cent is accounted for.
// Property: initial == final + total, final >= 0, sum(transfers) == total
func TestPlanConservation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	planner := funding.NewPlanner()

	properties.Property("plans conserve cash and never overdraw", prop.ForAll(
		func(cash int64, fixed []int64, pct int64, income int64, sweep bool) bool {
			ctx := manualContext("0", envelope("a", "0"), envelope("b", "0"), envelope("c", "0"))
			ctx.Data.UnassignedCash = cents(cash)
			ctx.Data.IncomeAmount = cents(income)

			var rules []funding.Rule
			for i, amount := range fixed {
				rules = append(rules, fixedRule(fmt.Sprintf("f%d", i), i, "a", cents(amount).String()))
			}
			rules = append(rules, funding.Rule{
				ID: "pct", Name: "pct", Type: funding.TypePercentage, Trigger: funding.TriggerManual,
				Priority: 50, Enabled: true,
				Config: funding.PercentageConfig{TargetID: "b", Percentage: decimal.NewFromInt(pct)},
			})
			if sweep {
				rules = append(rules, splitRule("sweep", 1000, "a", "b", "c"))
			}

			plan, err := planner.CreateExecutionPlan(rules, ctx)
			if err != nil {
				return false
			}

			if plan.FinalCash.IsNegative() {
				return false
			}
			if !plan.InitialCash.Equal(plan.FinalCash.Add(plan.TotalToTransfer)) {
				return false
			}
			sum := decimal.Zero
			for _, tr := range plan.Transfers {
				if !tr.Amount.IsPositive() {
					return false
				}
				sum = sum.Add(tr.Amount)
			}
			if !sum.Equal(plan.TotalToTransfer) {
				return false
			}
			// A sweep that ran leaves nothing behind
			if sweep && cash > 0 && plan.RulesExecuted > 0 && plan.Rules[len(plan.Rules)-1].RuleID == "sweep" {
				return plan.FinalCash.IsZero()
			}
			return true
		},
		gen.Int64Range(0, 500000),
		gen.SliceOf(gen.Int64Range(0, 300000)),
		gen.Int64Range(0, 100),
		gen.Int64Range(0, 1000000),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// TestSplitSharesSumToAmount checks the remainder split over any number of
// targets.
// Property: sum(shares) == amount, every share > 0, shares differ by < 1 cent
// except the last
func TestSplitSharesSumToAmount(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("split shares sum to the amount", prop.ForAll(
		func(amount int64, n int) bool {
			targets := make([]string, n)
			for i := range targets {
				targets[i] = fmt.Sprintf("env-%d", i)
			}

			transfers := funding.PlanRuleTransfers(splitRule("s", 1, targets...), cents(amount))

			sum := decimal.Zero
			for i, tr := range transfers {
				if !tr.Amount.IsPositive() {
					return false
				}
				if i > 0 && i < len(transfers)-1 && !tr.Amount.Equal(transfers[0].Amount) {
					return false
				}
				sum = sum.Add(tr.Amount)
			}
			return sum.Equal(cents(amount))
		},
		gen.Int64Range(1, 10000000),
		gen.IntRange(1, 12),
	))

	properties.TestingRun(t)
}
