package budget_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/autofund/budget"
	"github.com/warp/autofund/funding"
	"github.com/warp/autofund/funding/presets"
)

var now = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newService(t *testing.T, cash string) (*budget.Service, *budget.MemoryStore) {
	t.Helper()
	ctx := context.Background()
	store := budget.NewMemoryStore()
	require.NoError(t, store.SaveEnvelope(ctx, funding.Envelope{ID: "env-rent", Name: "Rent", CurrentBalance: decimal.Zero, MonthlyAmount: dec("1200")}))
	require.NoError(t, store.SaveEnvelope(ctx, funding.Envelope{ID: "env-save", Name: "Savings", CurrentBalance: decimal.Zero, MonthlyAmount: decimal.Zero}))
	require.NoError(t, store.SetUnassignedCash(ctx, dec(cash)))

	svc := budget.NewService(store, funding.NewPlanner())
	svc.Now = func() time.Time { return now }
	return svc, store
}

func manualFixed(id, target, amount string, priority int) funding.Rule {
	return funding.Rule{
		ID:       id,
		Name:     id,
		Type:     funding.TypeFixedAmount,
		Trigger:  funding.TriggerManual,
		Priority: priority,
		Enabled:  true,
		Config:   funding.FixedAmountConfig{TargetID: target, Amount: dec(amount)},
	}
}

func envelopeBalance(t *testing.T, store *budget.MemoryStore, id string) decimal.Decimal {
	t.Helper()
	envs, err := store.ListEnvelopes(context.Background())
	require.NoError(t, err)
	for _, e := range envs {
		if e.ID == id {
			return e.CurrentBalance
		}
	}
	t.Fatalf("envelope %s not found", id)
	return decimal.Zero
}

func TestService_PreviewThenApply(t *testing.T) {
	// GIVEN: 1000 unassigned and a manual rule moving 400 to rent
	// WHEN: Previewing, then applying the preview
	// THEN: Preview writes nothing; apply moves 400 and bumps the rule stats

	ctx := context.Background()
	svc, store := newService(t, "1000")
	_, err := svc.SaveRule(ctx, manualFixed("rent", "env-rent", "400", 10))
	require.NoError(t, err)

	preview, err := svc.Preview(ctx, budget.PreviewInput{Trigger: funding.TriggerManual})
	require.NoError(t, err)
	require.NotEmpty(t, preview.PlanID)
	assert.True(t, preview.Plan.TotalToTransfer.Equal(dec("400")))
	assert.True(t, preview.Impact.UnassignedChange.Equal(dec("-400")))
	require.Len(t, preview.Summary.TransfersSummary, 1)
	assert.Equal(t, "Rent", preview.Summary.TransfersSummary[0].EnvelopeName)

	cash, _ := store.UnassignedCash(ctx)
	assert.True(t, cash.Equal(dec("1000")), "preview must not write")

	result, err := svc.Apply(ctx, preview.PlanID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Transfers)
	assert.Equal(t, 1, result.RulesUpdated)

	cash, _ = store.UnassignedCash(ctx)
	assert.True(t, cash.Equal(dec("600")))
	assert.True(t, envelopeBalance(t, store, "env-rent").Equal(dec("400")))

	rule, err := store.GetRule(ctx, "rent")
	require.NoError(t, err)
	assert.Equal(t, 1, rule.ExecutionCount)
	require.NotNil(t, rule.LastExecuted)
	assert.Equal(t, now, *rule.LastExecuted)

	transfers, err := store.ListTransfers(ctx, 10)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, preview.PlanID, transfers[0].PlanID)
	assert.Equal(t, "Auto-funding: rent", transfers[0].Description)
}

func TestService_ApplyStalePlan(t *testing.T) {
	// GIVEN: A previewed plan for 400 out of 1000
	// WHEN: Cash drops to 100 before apply
	// THEN: Apply fails as stale and nothing moves

	ctx := context.Background()
	svc, store := newService(t, "1000")
	_, err := svc.SaveRule(ctx, manualFixed("rent", "env-rent", "400", 10))
	require.NoError(t, err)

	preview, err := svc.Preview(ctx, budget.PreviewInput{Trigger: funding.TriggerManual})
	require.NoError(t, err)

	require.NoError(t, store.SetUnassignedCash(ctx, dec("100")))

	_, err = svc.Apply(ctx, preview.PlanID)
	require.Error(t, err)
	assert.ErrorIs(t, err, budget.ErrStalePlan)
	assert.True(t, budget.IsConflict(err))

	var stale *budget.StalePlanError
	require.ErrorAs(t, err, &stale)
	require.Len(t, stale.Errors, 1)
	assert.Contains(t, stale.Errors[0], "exceed available cash")

	assert.True(t, envelopeBalance(t, store, "env-rent").IsZero())
}

func TestService_ApplyTwiceIsRejected(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t, "1000")
	_, err := svc.SaveRule(ctx, manualFixed("rent", "env-rent", "100", 10))
	require.NoError(t, err)

	preview, err := svc.Preview(ctx, budget.PreviewInput{Trigger: funding.TriggerManual})
	require.NoError(t, err)

	_, err = svc.Apply(ctx, preview.PlanID)
	require.NoError(t, err)
	_, err = svc.Apply(ctx, preview.PlanID)
	assert.ErrorIs(t, err, budget.ErrDuplicatePlan)

	cash, _ := store.UnassignedCash(ctx)
	assert.True(t, cash.Equal(dec("900")))
}

func TestService_ReapplyAfterCashDropIsDuplicate(t *testing.T) {
	// GIVEN: A plan that was applied once
	// WHEN: Cash drops below the plan total and the same plan is applied again
	// THEN: The retry is reported as a duplicate, not as stale

	ctx := context.Background()
	svc, store := newService(t, "1000")
	_, err := svc.SaveRule(ctx, manualFixed("rent", "env-rent", "400", 10))
	require.NoError(t, err)

	preview, err := svc.Preview(ctx, budget.PreviewInput{Trigger: funding.TriggerManual})
	require.NoError(t, err)
	_, err = svc.Apply(ctx, preview.PlanID)
	require.NoError(t, err)

	require.NoError(t, store.SetUnassignedCash(ctx, dec("50")))

	_, err = svc.Apply(ctx, preview.PlanID)
	require.Error(t, err)
	assert.ErrorIs(t, err, budget.ErrDuplicatePlan)
	assert.NotErrorIs(t, err, budget.ErrStalePlan)
	assert.True(t, envelopeBalance(t, store, "env-rent").Equal(dec("400")))
}

func TestService_ApplyUnknownPlan(t *testing.T) {
	svc, _ := newService(t, "10")
	_, err := svc.Apply(context.Background(), "nope")
	assert.ErrorIs(t, err, budget.ErrPlanNotFound)
	assert.True(t, budget.IsNotFound(err))
}

func TestService_RecordIncomeRunsIncomeRules(t *testing.T) {
	// GIVEN: An empty budget with a 10% savings rule on income
	// WHEN: A 2000 deposit is recorded
	// THEN: The deposit lands in cash and 200 is moved to savings

	ctx := context.Background()
	svc, store := newService(t, "0")
	_, err := svc.SaveRule(ctx, presets.EmergencyFund("ef", "env-save", dec("10")))
	require.NoError(t, err)

	result, err := svc.RecordIncome(ctx, budget.IncomeInput{Amount: dec("2000"), Merchant: "ACME Payroll"})
	require.NoError(t, err)
	require.NotNil(t, result.Applied)
	assert.True(t, result.Applied.TotalApplied.Equal(dec("200")))
	assert.Equal(t, funding.TriggerIncomeDetected, result.Preview.Plan.Trigger)

	cash, _ := store.UnassignedCash(ctx)
	assert.True(t, cash.Equal(dec("1800")))
	assert.True(t, envelopeBalance(t, store, "env-save").Equal(dec("200")))

	txns, err := store.RecentTransactions(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "ACME Payroll", txns[0].Merchant)
}

func TestService_RecordIncomeRejectsNonPositive(t *testing.T) {
	svc, _ := newService(t, "0")
	_, err := svc.RecordIncome(context.Background(), budget.IncomeInput{Amount: dec("-5")})
	assert.ErrorIs(t, err, funding.ErrInvalidContext)
}

func TestService_RunWithNothingEligible(t *testing.T) {
	// GIVEN: Only a manual rule
	// WHEN: Running the weekly trigger
	// THEN: The preview is empty and nothing is applied

	ctx := context.Background()
	svc, store := newService(t, "500")
	_, err := svc.SaveRule(ctx, manualFixed("rent", "env-rent", "100", 10))
	require.NoError(t, err)

	result, err := svc.Run(ctx, budget.PreviewInput{Trigger: funding.TriggerWeekly})
	require.NoError(t, err)
	assert.Nil(t, result.Applied)
	assert.Equal(t, 0, result.Preview.Plan.RulesExecuted)

	transfers, _ := store.ListTransfers(ctx, 0)
	assert.Empty(t, transfers)
}

func TestService_SaveRuleValidates(t *testing.T) {
	svc, _ := newService(t, "0")
	rule := manualFixed("", "", "0", 1)
	rule.Name = ""

	_, err := svc.SaveRule(context.Background(), rule)
	require.Error(t, err)
	assert.ErrorIs(t, err, budget.ErrInvalidRule)

	var invalid *budget.InvalidRuleError
	require.ErrorAs(t, err, &invalid)
	assert.NotEmpty(t, invalid.RuleID, "id assigned before validation")
	assert.GreaterOrEqual(t, len(invalid.Errors), 3)
}

func TestMemoryStore_CommitChecksEverythingFirst(t *testing.T) {
	// GIVEN: A commit whose second transfer targets a missing envelope
	// WHEN: Committing
	// THEN: Nothing is written

	ctx := context.Background()
	_, store := newService(t, "100")
	err := store.CommitPlan(ctx, budget.Commit{
		PlanID: "p1",
		Transfers: []funding.PlannedTransfer{
			{ToEnvelopeID: "env-rent", Amount: dec("10")},
			{ToEnvelopeID: "env-gone", Amount: dec("10")},
		},
		At: now,
	})
	assert.ErrorIs(t, err, budget.ErrEnvelopeNotFound)

	cash, _ := store.UnassignedCash(ctx)
	assert.True(t, cash.Equal(dec("100")))
	assert.True(t, envelopeBalance(t, store, "env-rent").IsZero())

	err = store.CommitPlan(ctx, budget.Commit{
		PlanID:    "p2",
		Transfers: []funding.PlannedTransfer{{ToEnvelopeID: "env-rent", Amount: dec("101")}},
	})
	assert.ErrorIs(t, err, budget.ErrInsufficientCash)
}

func TestMemoryStore_RunsPerPeriod(t *testing.T) {
	ctx := context.Background()
	store := budget.NewMemoryStore()

	require.NoError(t, store.SaveRun(ctx, budget.RunRecord{ID: "a", Trigger: funding.TriggerWeekly, PeriodKey: "2025-W11", Status: budget.RunFailed}))
	done, err := store.IsRunComplete(ctx, funding.TriggerWeekly, "2025-W11")
	require.NoError(t, err)
	assert.False(t, done, "failed runs are retried")

	require.NoError(t, store.SaveRun(ctx, budget.RunRecord{ID: "b", Trigger: funding.TriggerWeekly, PeriodKey: "2025-W11", Status: budget.RunSkipped}))
	done, err = store.IsRunComplete(ctx, funding.TriggerWeekly, "2025-W11")
	require.NoError(t, err)
	assert.True(t, done)

	runs, err := store.ListRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "b", runs[0].ID)
}
