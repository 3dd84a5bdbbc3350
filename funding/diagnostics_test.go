package funding_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/autofund/funding"
)

// =============================================================================
// VALIDATE TRANSFERS
// =============================================================================

func TestValidateTransfers_RejectsOverdraft(t *testing.T) {
	ctx := manualContext("500", envelope("env-1", "0"))

	result := funding.ValidateTransfers([]funding.PlannedTransfer{
		{ToEnvelopeID: "env-1", Amount: dec("600")},
	}, ctx)

	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "exceed available cash")
}

func TestValidateTransfers_RejectsUnknownTarget(t *testing.T) {
	ctx := manualContext("500", envelope("env-1", "0"))

	result := funding.ValidateTransfers([]funding.PlannedTransfer{
		{ToEnvelopeID: "ghost", Amount: dec("10")},
	}, ctx)

	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "not found")
}

func TestValidateTransfers_RejectsNonPositive(t *testing.T) {
	ctx := manualContext("500", envelope("env-1", "0"))

	result := funding.ValidateTransfers([]funding.PlannedTransfer{
		{ToEnvelopeID: "env-1", Amount: dec("0")},
		{ToEnvelopeID: "env-1", Amount: dec("-5")},
	}, ctx)

	assert.False(t, result.IsValid)
	assert.Len(t, result.Errors, 2)
	for _, e := range result.Errors {
		assert.Contains(t, e, "must be positive")
	}
}

func TestValidateTransfers_AcceptsExactCash(t *testing.T) {
	ctx := manualContext("500", envelope("env-1", "0"), envelope("env-2", "0"))

	result := funding.ValidateTransfers([]funding.PlannedTransfer{
		{ToEnvelopeID: "env-1", Amount: dec("250")},
		{ToEnvelopeID: "env-2", Amount: dec("250")},
	}, ctx)

	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
}

func TestValidateTransfers_CatchesStalePlan(t *testing.T) {
	// GIVEN: A plan computed when 500 was available
	// WHEN: Cash dropped to 300 before apply
	// THEN: Re-validation rejects the plan

	planner := funding.NewPlanner()
	planned := manualContext("500", envelope("env-1", "0"))
	plan, err := planner.CreateExecutionPlan([]funding.Rule{fixedRule("r", 1, "env-1", "400")}, planned)
	require.NoError(t, err)

	live := manualContext("300", envelope("env-1", "0"))
	result := funding.ValidateTransfers(plan.Transfers, live)

	assert.False(t, result.IsValid)
}

// =============================================================================
// IMPACT
// =============================================================================

func TestCalculateTransferImpact(t *testing.T) {
	ctx := manualContext("500", envelope("a", "10"), envelope("b", "20"))
	transfers := []funding.PlannedTransfer{
		{ToEnvelopeID: "a", Amount: dec("5")},
		{ToEnvelopeID: "b", Amount: dec("7.5")},
		{ToEnvelopeID: "a", Amount: dec("2.25")},
	}

	impact := funding.CalculateTransferImpact(transfers, ctx)

	require.Len(t, impact.Envelopes, 2)
	assert.Equal(t, "a", impact.Envelopes[0].EnvelopeID)
	assertDecimal(t, "7.25", impact.Envelopes[0].Change)
	assertDecimal(t, "17.25", impact.Envelopes[0].NewBalance)
	assert.Equal(t, "b", impact.Envelopes[1].EnvelopeID)
	assertDecimal(t, "27.5", impact.Envelopes[1].NewBalance)
	assertDecimal(t, "14.75", impact.TotalTransferred)
	assertDecimal(t, "-14.75", impact.UnassignedChange)
}

func TestCalculateTransferImpact_Empty(t *testing.T) {
	impact := funding.CalculateTransferImpact(nil, manualContext("1"))

	assert.Empty(t, impact.Envelopes)
	assert.True(t, impact.TotalTransferred.IsZero())
}

// =============================================================================
// SUMMARY
// =============================================================================

func TestGeneratePlanSummary(t *testing.T) {
	planner := funding.NewPlanner()
	envelopes := []funding.Envelope{
		{ID: "rent", Name: "Rent"},
		{ID: "fun", Name: "Fun Money"},
		{ID: "save", Name: "Savings"},
	}
	ctx := manualContext("1000", envelopes...)
	rules := []funding.Rule{
		fixedRule("r-rent", 1, "rent", "700"),
		splitRule("r-sweep", 2, "fun", "save"),
	}

	plan, err := planner.CreateExecutionPlan(rules, ctx)
	require.NoError(t, err)

	summary := funding.GeneratePlanSummary(plan, envelopes)

	assertDecimal(t, "1000", summary.Overview.TotalAmount)
	assert.Equal(t, 2, summary.Overview.RulesExecuted)
	assert.Equal(t, 3, summary.Overview.TransferCount)

	require.Len(t, summary.RulesSummary, 2)
	assert.Equal(t, []string{"Rent"}, summary.RulesSummary[0].TargetNames)
	assert.Equal(t, []string{"Fun Money", "Savings"}, summary.RulesSummary[1].TargetNames)
	assertDecimal(t, "300", summary.RulesSummary[1].Amount)

	require.Len(t, summary.TransfersSummary, 3)
	assert.Equal(t, "Fun Money", summary.TransfersSummary[1].EnvelopeName)
	assertDecimal(t, "150", summary.TransfersSummary[1].Amount)
	assert.True(t, strings.Contains(summary.TransfersSummary[1].Description, "split 1/2"))
}

func TestGeneratePlanSummary_UnknownEnvelopeFallsBackToID(t *testing.T) {
	plan := &funding.ExecutionPlan{
		Transfers: []funding.PlannedTransfer{{ToEnvelopeID: "orphan", Amount: dec("1")}},
	}

	summary := funding.GeneratePlanSummary(plan, nil)

	require.Len(t, summary.TransfersSummary, 1)
	assert.Equal(t, "orphan", summary.TransfersSummary[0].EnvelopeName)
}
