package funding_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/autofund/funding"
)

func TestPlanRuleTransfers_SplitRounding(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		targets []string
		want    []string
	}{
		{"ten three ways", "10", []string{"a", "b", "c"}, []string{"3.33", "3.33", "3.34"}},
		{"even split", "9", []string{"a", "b", "c"}, []string{"3", "3", "3"}},
		{"single target", "7.77", []string{"a"}, []string{"7.77"}},
		{"penny remainder", "100.01", []string{"a", "b"}, []string{"50", "50.01"}},
		{"seven ways", "1", []string{"a", "b", "c", "d", "e", "f", "g"}, []string{"0.14", "0.14", "0.14", "0.14", "0.14", "0.14", "0.16"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transfers := funding.PlanRuleTransfers(splitRule("s", 1, tt.targets...), dec(tt.amount))

			require.Len(t, transfers, len(tt.want))
			for i, w := range tt.want {
				assertDecimal(t, w, transfers[i].Amount, "share %d", i)
				assert.Equal(t, tt.targets[i], transfers[i].ToEnvelopeID)
			}
			assertDecimal(t, tt.amount, funding.TotalAmount(transfers), "shares must sum to the amount exactly")
		})
	}
}

func TestPlanRuleTransfers_TinySplitSkipsZeroShares(t *testing.T) {
	transfers := funding.PlanRuleTransfers(splitRule("s", 1, "a", "b", "c"), dec("0.02"))

	require.Len(t, transfers, 1)
	assert.Equal(t, "c", transfers[0].ToEnvelopeID)
	assertDecimal(t, "0.02", transfers[0].Amount)
}

func TestPlanRuleTransfers_SingleTarget(t *testing.T) {
	rule := fixedRule("r1", 1, "env-1", "100")

	transfers := funding.PlanRuleTransfers(rule, dec("42.10"))

	require.Len(t, transfers, 1)
	assert.Equal(t, "env-1", transfers[0].ToEnvelopeID)
	assertDecimal(t, "42.10", transfers[0].Amount)
	assert.Equal(t, "r1", transfers[0].RuleID)
	assert.Contains(t, transfers[0].Description, rule.Name)
}

func TestPlanRuleTransfers_NonPositiveAmount(t *testing.T) {
	assert.Empty(t, funding.PlanRuleTransfers(fixedRule("r", 1, "env", "1"), dec("0")))
	assert.Empty(t, funding.PlanRuleTransfers(splitRule("s", 1, "a"), dec("-1")))
}

func TestCalculateFundingAmount(t *testing.T) {
	target := funding.Envelope{ID: "env", CurrentBalance: dec("40"), MonthlyAmount: dec("100"), TargetAmount: decPtr("1000")}
	ctx := manualContext("500", target)
	ctx.Data.IncomeAmount = dec("2000")

	rule := func(typ funding.RuleType, cfg funding.RuleConfig) funding.Rule {
		return funding.Rule{ID: "r", Type: typ, Trigger: funding.TriggerManual, Enabled: true, Config: cfg}
	}

	tests := []struct {
		name      string
		rule      funding.Rule
		remaining string
		want      string
	}{
		{"fixed under remaining", rule(funding.TypeFixedAmount, funding.FixedAmountConfig{TargetID: "env", Amount: dec("100")}), "500", "100"},
		{"fixed capped", rule(funding.TypeFixedAmount, funding.FixedAmountConfig{TargetID: "env", Amount: dec("100")}), "60", "60"},
		{"percentage of income", rule(funding.TypePercentage, funding.PercentageConfig{TargetID: "env", Percentage: dec("12.5")}), "500", "250"},
		{"percentage capped", rule(funding.TypePercentage, funding.PercentageConfig{TargetID: "env", Percentage: dec("50")}), "500", "500"},
		{"fill to monthly", rule(funding.TypePriorityFill, funding.PriorityFillConfig{TargetID: "env"}), "500", "60"},
		{"fill to target capped", rule(funding.TypePriorityFill, funding.PriorityFillConfig{TargetID: "env", FillTo: funding.FillToTargetAmount}), "500", "500"},
		{"split sweeps", rule(funding.TypeSplitRemainder, funding.SplitRemainderConfig{TargetIDs: []string{"env"}}), "123.45", "123.45"},
		{"conditional fixed", rule(funding.TypeConditional, funding.ConditionalConfig{TargetID: "env", Amount: decPtr("30")}), "500", "30"},
		{"conditional percentage", rule(funding.TypeConditional, funding.ConditionalConfig{TargetID: "env", Percentage: decPtr("1")}), "500", "20"},
		{"exhausted cash", rule(funding.TypeFixedAmount, funding.FixedAmountConfig{TargetID: "env", Amount: dec("100")}), "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := funding.CalculateFundingAmount(tt.rule, ctx, dec(tt.remaining))
			require.NoError(t, err)
			assertDecimal(t, tt.want, got)
		})
	}
}

func TestCalculateFundingAmount_PercentageIsExact(t *testing.T) {
	// GIVEN: An income of 33.33 and a 12.5% rule
	// WHEN: Calculating the amount
	// THEN: The result is pct/100 * income with no rounding

	ctx := manualContext("500", envelope("env", "0"))
	ctx.Data.IncomeAmount = dec("33.33")
	rule := funding.Rule{
		ID: "r", Type: funding.TypePercentage, Trigger: funding.TriggerManual, Enabled: true,
		Config: funding.PercentageConfig{TargetID: "env", Percentage: dec("12.5")},
	}

	got, err := funding.CalculateFundingAmount(rule, ctx, dec("500"))
	require.NoError(t, err)
	assertDecimal(t, "4.16625", got)
}

func TestCalculateFundingAmount_PercentageWithoutIncomeIsZero(t *testing.T) {
	ctx := manualContext("500", envelope("env", "0"))
	rule := funding.Rule{
		Type: funding.TypePercentage, Trigger: funding.TriggerManual, Enabled: true,
		Config: funding.PercentageConfig{TargetID: "env", Percentage: dec("10")},
	}

	got, err := funding.CalculateFundingAmount(rule, ctx, dec("500"))
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestCalculateFundingAmount_FillTargetWithoutGoalIsZero(t *testing.T) {
	ctx := manualContext("500", envelope("env", "0"))
	rule := funding.Rule{
		Type: funding.TypePriorityFill, Trigger: funding.TriggerManual, Enabled: true,
		Config: funding.PriorityFillConfig{TargetID: "env", FillTo: funding.FillToTargetAmount},
	}

	got, err := funding.CalculateFundingAmount(rule, ctx, dec("500"))
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}
