package funding

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// explodingConfig stands in for a config variant whose evaluation panics.
type explodingConfig struct{}

func (explodingConfig) RuleType() RuleType { panic("config exploded") }
func (explodingConfig) isRuleConfig() {}

func recoveryContext(cash int64) ExecutionContext {
	return ExecutionContext{
		Trigger: TriggerManual,
		Now:     time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC),
		Data: ContextData{
			UnassignedCash: decimal.NewFromInt(cash),
			Envelopes:      []Envelope{{ID: "env-a", Name: "A", CurrentBalance: decimal.Zero}},
		},
	}
}

func TestSimulateSingleRule_RecoversPanic(t *testing.T) {
	// GIVEN: A rule whose config panics when evaluated
	// WHEN: Simulating it alone
	// THEN: The panic becomes an ErrRuleEvaluation outcome

	rule := Rule{ID: "boom", Name: "Boom", Type: TypeFixedAmount, Trigger: TriggerManual, Enabled: true, Config: explodingConfig{}}

	var outcome RuleOutcome
	require.NotPanics(t, func() {
		outcome = NewPlanner().SimulateSingleRule(rule, recoveryContext(100), decimal.NewFromInt(100))
	})
	assert.False(t, outcome.Success)
	assert.ErrorIs(t, outcome.Error, ErrRuleEvaluation)
	assert.Contains(t, outcome.Error.Error(), "config exploded")
}

func TestCreateExecutionPlan_PanickingRuleDoesNotAbortPlan(t *testing.T) {
	// GIVEN: A panicking rule ahead of a normal fixed rule
	// WHEN: Planning
	// THEN: The panic is recorded against its rule and the fixed rule still runs

	rules := []Rule{
		{ID: "boom", Name: "Boom", Type: TypeFixedAmount, Trigger: TriggerManual, Priority: 1, Enabled: true, Config: explodingConfig{}},
		{ID: "fixed", Name: "Fixed", Type: TypeFixedAmount, Trigger: TriggerManual, Priority: 2, Enabled: true,
			Config: FixedAmountConfig{TargetID: "env-a", Amount: decimal.NewFromInt(40)}},
	}

	plan, err := NewPlanner().CreateExecutionPlan(rules, recoveryContext(100))
	require.NoError(t, err)

	require.Len(t, plan.Errors, 1)
	assert.Equal(t, "boom", plan.Errors[0].RuleID)
	assert.ErrorIs(t, plan.Errors[0], ErrRuleEvaluation)

	assert.Equal(t, 1, plan.RulesExecuted)
	require.Len(t, plan.Transfers, 1)
	assert.Equal(t, "env-a", plan.Transfers[0].ToEnvelopeID)
	assert.True(t, plan.FinalCash.Equal(decimal.NewFromInt(60)))
}
