package funding_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warp/autofund/funding"
)

func TestValidateRule(t *testing.T) {
	base := func(cfg funding.RuleConfig, typ funding.RuleType) funding.Rule {
		return funding.Rule{
			Name:    "Rule",
			Type:    typ,
			Trigger: funding.TriggerManual,
			Enabled: true,
			Config:  cfg,
		}
	}

	tests := []struct {
		name    string
		rule    funding.Rule
		wantErr string // substring; empty means valid
	}{
		{
			name: "valid fixed amount",
			rule: base(funding.FixedAmountConfig{TargetID: "env", Amount: dec("10")}, funding.TypeFixedAmount),
		},
		{
			name:    "fixed amount must be positive",
			rule:    base(funding.FixedAmountConfig{TargetID: "env", Amount: dec("0")}, funding.TypeFixedAmount),
			wantErr: "Amount must be greater than 0",
		},
		{
			name:    "fixed amount needs target",
			rule:    base(funding.FixedAmountConfig{Amount: dec("10")}, funding.TypeFixedAmount),
			wantErr: "Target envelope is required",
		},
		{
			name: "valid percentage at 100",
			rule: base(funding.PercentageConfig{TargetID: "env", Percentage: dec("100")}, funding.TypePercentage),
		},
		{
			name:    "percentage above 100",
			rule:    base(funding.PercentageConfig{TargetID: "env", Percentage: dec("100.01")}, funding.TypePercentage),
			wantErr: "Percentage must be between 0 and 100",
		},
		{
			name:    "percentage zero",
			rule:    base(funding.PercentageConfig{TargetID: "env"}, funding.TypePercentage),
			wantErr: "Percentage must be between 0 and 100",
		},
		{
			name:    "split needs targets",
			rule:    base(funding.SplitRemainderConfig{}, funding.TypeSplitRemainder),
			wantErr: "At least one target envelope",
		},
		{
			name:    "split duplicate target",
			rule:    base(funding.SplitRemainderConfig{TargetIDs: []string{"a", "a"}}, funding.TypeSplitRemainder),
			wantErr: "listed twice",
		},
		{
			name:    "priority fill bad fill target",
			rule:    base(funding.PriorityFillConfig{TargetID: "env", FillTo: "someday"}, funding.TypePriorityFill),
			wantErr: "Invalid fill target",
		},
		{
			name: "conditional with percentage",
			rule: base(funding.ConditionalConfig{TargetID: "env", Percentage: decPtr("5")}, funding.TypeConditional),
		},
		{
			name:    "conditional with both",
			rule:    base(funding.ConditionalConfig{TargetID: "env", Amount: decPtr("5"), Percentage: decPtr("5")}, funding.TypeConditional),
			wantErr: "not both",
		},
		{
			name:    "conditional with neither",
			rule:    base(funding.ConditionalConfig{TargetID: "env"}, funding.TypeConditional),
			wantErr: "need an amount or a percentage",
		},
		{
			name:    "unknown type",
			rule:    base(funding.FixedAmountConfig{TargetID: "env", Amount: dec("1")}, "ROUND_UP"),
			wantErr: "Invalid rule type",
		},
		{
			name: "unknown trigger",
			rule: funding.Rule{
				Name: "Rule", Type: funding.TypeFixedAmount, Trigger: "daily",
				Config: funding.FixedAmountConfig{TargetID: "env", Amount: dec("1")},
			},
			wantErr: "Invalid trigger",
		},
		{
			name:    "config mismatch",
			rule:    base(funding.FixedAmountConfig{TargetID: "env", Amount: dec("1")}, funding.TypePercentage),
			wantErr: "does not match rule type",
		},
		{
			name:    "missing config",
			rule:    base(nil, funding.TypeFixedAmount),
			wantErr: "Rule config is required",
		},
		{
			name: "bad date range condition",
			rule: func() funding.Rule {
				r := base(funding.FixedAmountConfig{TargetID: "env", Amount: dec("1")}, funding.TypeFixedAmount)
				r.Conditions = []funding.Condition{funding.DateRange{Start: now, End: now.Add(-time.Hour)}}
				return r
			}(),
			wantErr: "Condition 1: date range ends before it starts",
		},
		{
			name: "bad schedule day",
			rule: func() funding.Rule {
				r := base(funding.FixedAmountConfig{TargetID: "env", Amount: dec("1")}, funding.TypeFixedAmount)
				r.Schedule = &funding.ScheduleConfig{DayOfMonth: 32}
				return r
			}(),
			wantErr: "day of month",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := funding.ValidateRule(tt.rule)
			if tt.wantErr == "" {
				assert.Empty(t, errs)
				return
			}
			assert.True(t, containsMessage(errs, tt.wantErr), "expected %q in %v", tt.wantErr, errs)
		})
	}
}

func TestValidateRule_AggregatesErrors(t *testing.T) {
	rule := funding.Rule{
		Type:    funding.TypeFixedAmount,
		Trigger: "never",
		Config:  funding.FixedAmountConfig{},
	}

	errs := funding.ValidateRule(rule)

	assert.Len(t, errs, 4, "name, trigger, target and amount: %v", errs)
}

func TestNewDefaultRule(t *testing.T) {
	for _, typ := range funding.RuleTypes {
		t.Run(string(typ), func(t *testing.T) {
			rule := funding.NewDefaultRule(typ, funding.TriggerMonthly)

			assert.Equal(t, typ, rule.Type)
			assert.Equal(t, typ, rule.Config.RuleType())
			assert.True(t, rule.Enabled)
			assert.Equal(t, funding.SourceIncome, rule.Source.Type)
		})
	}

	sweep := funding.NewDefaultRule(funding.TypeSplitRemainder, funding.TriggerManual)
	fixed := funding.NewDefaultRule(funding.TypeFixedAmount, funding.TriggerManual)
	assert.Greater(t, sweep.Priority, fixed.Priority, "sweeps default to running last")
}

func TestRule_TargetIDs(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitRule("s", 1, "a", "b").TargetIDs())
	assert.Equal(t, []string{"env"}, fixedRule("f", 1, "env", "1").TargetIDs())
	assert.Equal(t, "", funding.Rule{}.PrimaryTargetID())
}

func containsMessage(errs []string, sub string) bool {
	for _, e := range errs {
		if strings.Contains(e, sub) {
			return true
		}
	}
	return false
}
