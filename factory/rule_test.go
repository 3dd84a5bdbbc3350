package factory_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/autofund/factory"
	"github.com/warp/autofund/funding"
)

func TestParseRule_KeepsOnlyFieldsOfItsType(t *testing.T) {
	// GIVEN: A FIXED_AMOUNT rule whose JSON also carries split and percentage fields
	// WHEN: Parsing
	// THEN: Only the fixed amount variant survives

	f := factory.NewRuleFactory()
	rule, err := f.ParseRule(`{
		"id": "r1", "name": "Rent", "type": "FIXED_AMOUNT", "trigger": "manual",
		"priority": 10, "enabled": true,
		"config": {"target_id": "env-1", "amount": 100, "percentage": 50, "target_ids": ["x", "y"]}
	}`)
	require.NoError(t, err)

	cfg, ok := rule.Config.(funding.FixedAmountConfig)
	require.True(t, ok, "got %T", rule.Config)
	assert.Equal(t, "env-1", cfg.TargetID)
	assert.Equal(t, "100", cfg.Amount.String())
	assert.Equal(t, funding.SourceIncome, rule.Source.Type)
	assert.Empty(t, funding.ValidateRule(rule))
}

func TestParseRule_Conditions(t *testing.T) {
	f := factory.NewRuleFactory()
	rule, err := f.ParseRule(`{
		"id": "r2", "name": "Rescue", "type": "CONDITIONAL", "trigger": "weekly", "enabled": true,
		"config": {
			"target_id": "env-food", "amount": "25.50",
			"conditions": [
				{"type": "balance_below", "value": 50, "parameters": {"envelope_id": "env-food"}},
				{"type": "date_range", "value": {"start": "2025-01-01T00:00:00Z", "end": "2025-12-31T00:00:00Z"}},
				{"type": "transaction_pattern", "value": "grocer", "parameters": {"category": "Food", "min_count": 2, "window_days": 7}}
			],
			"schedule_config": {"day_of_week": 1}
		}
	}`)
	require.NoError(t, err)

	require.Len(t, rule.Conditions, 3)
	bb, ok := rule.Conditions[0].(funding.BalanceBelow)
	require.True(t, ok)
	assert.Equal(t, "env-food", bb.EnvelopeID)
	assert.Equal(t, "50", bb.Threshold.String())

	dr, ok := rule.Conditions[1].(funding.DateRange)
	require.True(t, ok)
	assert.Equal(t, 2025, dr.Start.Year())

	tp, ok := rule.Conditions[2].(funding.TransactionPattern)
	require.True(t, ok)
	assert.Equal(t, "grocer", tp.Merchant)
	assert.Equal(t, 2, tp.MinCount)

	require.NotNil(t, rule.Schedule)
	require.NotNil(t, rule.Schedule.DayOfWeek)
	assert.Equal(t, time.Monday, *rule.Schedule.DayOfWeek)

	cfg := rule.Config.(funding.ConditionalConfig)
	require.NotNil(t, cfg.Amount)
	assert.Nil(t, cfg.Percentage)
}

func TestParseRule_Errors(t *testing.T) {
	f := factory.NewRuleFactory()

	tests := []struct {
		name string
		json string
	}{
		{"malformed json", `{"id":`},
		{"unknown type", `{"type": "ROUND_UP", "config": {}}`},
		{"unknown condition", `{"type": "FIXED_AMOUNT", "config": {"conditions": [{"type": "moon_phase"}]}}`},
		{"bad balance value", `{"type": "FIXED_AMOUNT", "config": {"conditions": [{"type": "balance_below", "value": "lots"}]}}`},
		{"bad weekday", `{"type": "FIXED_AMOUNT", "config": {"schedule_config": {"day_of_week": 9}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ParseRule(tt.json)
			assert.Error(t, err)
		})
	}

	_, err := f.ParseRule(`{"type": "ROUND_UP", "config": {}}`)
	assert.ErrorIs(t, err, funding.ErrUnknownRuleType)
}

func TestToJSON_RoundTripsThroughFactory(t *testing.T) {
	f := factory.NewRuleFactory()
	monday := time.Monday
	amount := funding.ConditionalConfig{TargetID: "env"}
	pct := mustDecimal(t, "12.5")
	amount.Percentage = &pct

	original := funding.Rule{
		ID:             "r",
		Name:           "Round trip",
		Type:           funding.TypeConditional,
		Trigger:        funding.TriggerWeekly,
		Priority:       7,
		Enabled:        true,
		ExecutionCount: 3,
		Source:         funding.FundingSource{Type: funding.SourceUnassigned},
		Schedule:       &funding.ScheduleConfig{DayOfWeek: &monday},
		Conditions: []funding.Condition{
			funding.BalanceBelow{EnvelopeID: "env", Threshold: mustDecimal(t, "20")},
		},
		Config: amount,
	}

	encoded, err := f.Marshal(original)
	require.NoError(t, err)
	decoded, err := f.ParseRule(encoded)
	require.NoError(t, err)

	assert.Equal(t, original.ID, decoded.ID)
	assert.Equal(t, original.Trigger, decoded.Trigger)
	assert.Equal(t, original.ExecutionCount, decoded.ExecutionCount)
	assert.Equal(t, original.Source, decoded.Source)
	assert.Equal(t, *original.Schedule.DayOfWeek, *decoded.Schedule.DayOfWeek)

	cfg := decoded.Config.(funding.ConditionalConfig)
	require.NotNil(t, cfg.Percentage)
	assert.True(t, cfg.Percentage.Equal(pct))

	bb := decoded.Conditions[0].(funding.BalanceBelow)
	assert.True(t, bb.Threshold.Equal(mustDecimal(t, "20")))
}

func TestToJSON_Split(t *testing.T) {
	f := factory.NewRuleFactory()
	rj := f.ToJSON(funding.Rule{
		Type:   funding.TypeSplitRemainder,
		Config: funding.SplitRemainderConfig{TargetIDs: []string{"a", "b"}},
	})

	assert.Equal(t, []string{"a", "b"}, rj.Config.TargetIDs)
	assert.Empty(t, rj.Config.TargetID)
	assert.Nil(t, rj.Config.Amount)
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestParseRule_SchemaRejectsWrongShapes(t *testing.T) {
	f := factory.NewRuleFactory()

	tests := []struct {
		name string
		json string
	}{
		{"missing config", `{"type": "FIXED_AMOUNT"}`},
		{"string priority", `{"type": "FIXED_AMOUNT", "priority": "high", "config": {}}`},
		{"boolean amount", `{"type": "FIXED_AMOUNT", "config": {"amount": true}}`},
		{"target_ids not strings", `{"type": "SPLIT_REMAINDER", "config": {"target_ids": [1, 2]}}`},
		{"condition without type", `{"type": "CONDITIONAL", "config": {"conditions": [{"value": 5}]}}`},
		{"negative window", `{"type": "CONDITIONAL", "config": {"conditions": [{"type": "transaction_pattern", "parameters": {"window_days": -1}}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ParseRule(tt.json)
			assert.ErrorIs(t, err, factory.ErrRuleSchema)
		})
	}
}

func TestParseRule_SchemaLeavesSemanticsToValidation(t *testing.T) {
	// GIVEN: A well-shaped document that is not a valid rule
	// WHEN: Parsing
	// THEN: Parsing succeeds and ValidateRule reports the problems

	f := factory.NewRuleFactory()
	rule, err := f.ParseRule(`{"name": "", "type": "PERCENTAGE", "trigger": "manual", "config": {"target_id": "e", "percentage": 150}}`)
	require.NoError(t, err)

	errs := funding.ValidateRule(rule)
	assert.Contains(t, errs, "Rule name is required")
	assert.Contains(t, errs, "Percentage must be between 0 and 100")
}
