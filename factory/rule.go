/*
Package factory provides JSON to Go rule conversion.

PURPOSE:
  Converts the loose JSON rule shape used by editors and storage into a
  funding.Rule with exactly one typed config variant, and back. Whatever
  fields a JSON config carries, only the ones meaningful for the rule's
  type survive the conversion.

JSON SCHEMA:
  {
    "id": "rule-rent",
    "name": "Rent",
    "type": "FIXED_AMOUNT",
    "trigger": "income_detected",
    "priority": 10,
    "enabled": true,
    "config": {
      "source_type": "income",
      "target_type": "envelope",
      "target_id": "env-rent",
      "amount": "1200.00",
      "conditions": [
        {"type": "balance_below", "value": 500, "parameters": {"envelope_id": "env-rent"}},
        {"type": "date_range", "value": {"start": "2025-01-01T00:00:00Z", "end": "2025-12-31T23:59:59Z"}},
        {"type": "transaction_pattern", "value": "payroll", "parameters": {"min_count": 1, "window_days": 14}}
      ],
      "schedule_config": {"day_of_month": 1}
    }
  }

  Per type:
    FIXED_AMOUNT     target_id, amount
    PERCENTAGE       target_id, percentage
    PRIORITY_FILL    target_id, fill_to (monthly_amount | target_amount)
    SPLIT_REMAINDER  target_ids
    CONDITIONAL      target_id, amount | percentage

USAGE:
  f := factory.NewRuleFactory()
  rule, err := f.ParseRule(jsonString)
  if err != nil { ... }
  if errs := funding.ValidateRule(rule); len(errs) > 0 { ... }

SEE ALSO:
  - funding/rule.go: Rule and config variants
  - funding/presets: Go-based rule presets
*/
package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/autofund/funding"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RuleJSON is the JSON representation of a rule.
type RuleJSON struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	Type           string     `json:"type"`
	Trigger        string     `json:"trigger"`
	Priority       int        `json:"priority"`
	Enabled        bool       `json:"enabled"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
	LastExecuted   *time.Time `json:"last_executed,omitempty"`
	ExecutionCount int        `json:"execution_count"`
	Config         ConfigJSON `json:"config"`
}

// ConfigJSON is the loosely-typed config object shared by all rule types.
type ConfigJSON struct {
	SourceType     string           `json:"source_type,omitempty"`
	SourceID       string           `json:"source_id,omitempty"`
	TargetType     string           `json:"target_type,omitempty"`
	TargetID       string           `json:"target_id,omitempty"`
	TargetIDs      []string         `json:"target_ids,omitempty"`
	Amount         *decimal.Decimal `json:"amount,omitempty"`
	Percentage     *decimal.Decimal `json:"percentage,omitempty"`
	FillTo         string           `json:"fill_to,omitempty"`
	Conditions     []ConditionJSON  `json:"conditions,omitempty"`
	ScheduleConfig *ScheduleJSON    `json:"schedule_config,omitempty"`
}

// ConditionJSON is one condition. The shape of Value depends on Type:
//
//	balance_below        number (threshold)
//	date_range           {"start": RFC3339, "end": RFC3339}
//	transaction_pattern  string (merchant expression)
type ConditionJSON struct {
	Type       string           `json:"type"`
	Value      json.RawMessage  `json:"value,omitempty"`
	Parameters *ConditionParams `json:"parameters,omitempty"`
}

// ConditionParams carries the optional extras of a condition.
type ConditionParams struct {
	EnvelopeID string           `json:"envelope_id,omitempty"`
	Category   string           `json:"category,omitempty"`
	MinCount   int              `json:"min_count,omitempty"`
	WindowDays int              `json:"window_days,omitempty"`
	MinAmount  *decimal.Decimal `json:"min_amount,omitempty"`
}

type dateRangeJSON struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ScheduleJSON narrows scheduled rules to a day.
type ScheduleJSON struct {
	DayOfWeek  *int `json:"day_of_week,omitempty"` // 0 = Sunday
	DayOfMonth int  `json:"day_of_month,omitempty"`
}

// =============================================================================
// RULE FACTORY
// =============================================================================

// RuleFactory converts between RuleJSON and funding.Rule.
type RuleFactory struct{}

// NewRuleFactory creates a new rule factory.
func NewRuleFactory() *RuleFactory {
	return &RuleFactory{}
}

// ParseRule parses a JSON string into a rule. The document is checked
// against the rule schema before conversion.
func (f *RuleFactory) ParseRule(jsonStr string) (funding.Rule, error) {
	var doc any
	if err := json.Unmarshal([]byte(jsonStr), &doc); err != nil {
		return funding.Rule{}, fmt.Errorf("failed to parse rule JSON: %w", err)
	}
	if err := ruleSchema.Validate(doc); err != nil {
		return funding.Rule{}, fmt.Errorf("%w: %v", ErrRuleSchema, err)
	}

	var rj RuleJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return funding.Rule{}, fmt.Errorf("failed to parse rule JSON: %w", err)
	}
	return f.FromJSON(rj)
}

// FromJSON converts RuleJSON into a rule with a typed config variant.
// Structural problems inside a known type are left to funding.ValidateRule;
// only shapes that cannot be represented at all are errors here.
func (f *RuleFactory) FromJSON(rj RuleJSON) (funding.Rule, error) {
	ruleType := funding.RuleType(rj.Type)

	rule := funding.Rule{
		ID:             rj.ID,
		Name:           rj.Name,
		Description:    rj.Description,
		Type:           ruleType,
		Trigger:        funding.Trigger(rj.Trigger),
		Priority:       rj.Priority,
		Enabled:        rj.Enabled,
		LastExecuted:   rj.LastExecuted,
		ExecutionCount: rj.ExecutionCount,
		Source:         parseSource(rj.Config),
	}
	if rj.CreatedAt != nil {
		rule.CreatedAt = *rj.CreatedAt
	}

	cfg, err := parseConfig(ruleType, rj.Config)
	if err != nil {
		return funding.Rule{}, err
	}
	rule.Config = cfg

	for i, cj := range rj.Config.Conditions {
		cond, err := parseCondition(cj)
		if err != nil {
			return funding.Rule{}, fmt.Errorf("condition %d: %w", i+1, err)
		}
		rule.Conditions = append(rule.Conditions, cond)
	}

	if s := rj.Config.ScheduleConfig; s != nil {
		sched := &funding.ScheduleConfig{DayOfMonth: s.DayOfMonth}
		if s.DayOfWeek != nil {
			if *s.DayOfWeek < 0 || *s.DayOfWeek > 6 {
				return funding.Rule{}, fmt.Errorf("invalid day_of_week %d", *s.DayOfWeek)
			}
			wd := time.Weekday(*s.DayOfWeek)
			sched.DayOfWeek = &wd
		}
		rule.Schedule = sched
	}

	return rule, nil
}

// ToJSON converts a rule back into its JSON representation.
func (f *RuleFactory) ToJSON(rule funding.Rule) RuleJSON {
	rj := RuleJSON{
		ID:             rule.ID,
		Name:           rule.Name,
		Description:    rule.Description,
		Type:           string(rule.Type),
		Trigger:        string(rule.Trigger),
		Priority:       rule.Priority,
		Enabled:        rule.Enabled,
		LastExecuted:   rule.LastExecuted,
		ExecutionCount: rule.ExecutionCount,
		Config: ConfigJSON{
			SourceType: string(rule.Source.Type),
			SourceID:   rule.Source.ID,
		},
	}
	if !rule.CreatedAt.IsZero() {
		created := rule.CreatedAt
		rj.CreatedAt = &created
	}

	switch c := rule.Config.(type) {
	case funding.FixedAmountConfig:
		rj.Config.TargetType, rj.Config.TargetID = "envelope", c.TargetID
		rj.Config.Amount = ptr(c.Amount)
	case funding.PercentageConfig:
		rj.Config.TargetType, rj.Config.TargetID = "envelope", c.TargetID
		rj.Config.Percentage = ptr(c.Percentage)
	case funding.PriorityFillConfig:
		rj.Config.TargetType, rj.Config.TargetID = "envelope", c.TargetID
		rj.Config.FillTo = string(c.FillTo)
	case funding.SplitRemainderConfig:
		rj.Config.TargetType = "envelope"
		rj.Config.TargetIDs = append([]string(nil), c.TargetIDs...)
	case funding.ConditionalConfig:
		rj.Config.TargetType, rj.Config.TargetID = "envelope", c.TargetID
		rj.Config.Amount = c.Amount
		rj.Config.Percentage = c.Percentage
	}

	for _, cond := range rule.Conditions {
		rj.Config.Conditions = append(rj.Config.Conditions, conditionToJSON(cond))
	}

	if rule.Schedule != nil {
		s := &ScheduleJSON{DayOfMonth: rule.Schedule.DayOfMonth}
		if rule.Schedule.DayOfWeek != nil {
			wd := int(*rule.Schedule.DayOfWeek)
			s.DayOfWeek = &wd
		}
		rj.Config.ScheduleConfig = s
	}

	return rj
}

// Marshal encodes a rule as a JSON string.
func (f *RuleFactory) Marshal(rule funding.Rule) (string, error) {
	b, err := json.Marshal(f.ToJSON(rule))
	if err != nil {
		return "", fmt.Errorf("failed to encode rule %s: %w", rule.ID, err)
	}
	return string(b), nil
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseSource(c ConfigJSON) funding.FundingSource {
	src := funding.FundingSource{Type: funding.SourceType(c.SourceType), ID: c.SourceID}
	if src.Type == "" {
		src.Type = funding.SourceIncome
	}
	return src
}

func parseConfig(ruleType funding.RuleType, c ConfigJSON) (funding.RuleConfig, error) {
	switch ruleType {
	case funding.TypeFixedAmount:
		return funding.FixedAmountConfig{TargetID: c.TargetID, Amount: val(c.Amount)}, nil
	case funding.TypePercentage:
		return funding.PercentageConfig{TargetID: c.TargetID, Percentage: val(c.Percentage)}, nil
	case funding.TypePriorityFill:
		return funding.PriorityFillConfig{TargetID: c.TargetID, FillTo: funding.FillTarget(c.FillTo)}, nil
	case funding.TypeSplitRemainder:
		return funding.SplitRemainderConfig{TargetIDs: append([]string(nil), c.TargetIDs...)}, nil
	case funding.TypeConditional:
		return funding.ConditionalConfig{TargetID: c.TargetID, Amount: c.Amount, Percentage: c.Percentage}, nil
	}
	return nil, fmt.Errorf("%w: %q", funding.ErrUnknownRuleType, ruleType)
}

func parseCondition(cj ConditionJSON) (funding.Condition, error) {
	params := ConditionParams{}
	if cj.Parameters != nil {
		params = *cj.Parameters
	}

	switch funding.ConditionType(cj.Type) {
	case funding.ConditionBalanceBelow:
		var threshold decimal.Decimal
		if err := json.Unmarshal(cj.Value, &threshold); err != nil {
			return nil, fmt.Errorf("balance_below value must be a number: %w", err)
		}
		return funding.BalanceBelow{EnvelopeID: params.EnvelopeID, Threshold: threshold}, nil

	case funding.ConditionDateRange:
		var dr dateRangeJSON
		if err := json.Unmarshal(cj.Value, &dr); err != nil {
			return nil, fmt.Errorf("date_range value must be {start, end}: %w", err)
		}
		return funding.DateRange{Start: dr.Start, End: dr.End}, nil

	case funding.ConditionTransactionPattern:
		var merchant string
		if len(cj.Value) > 0 {
			if err := json.Unmarshal(cj.Value, &merchant); err != nil {
				return nil, fmt.Errorf("transaction_pattern value must be a string: %w", err)
			}
		}
		return funding.TransactionPattern{
			Merchant:   merchant,
			Category:   params.Category,
			MinCount:   params.MinCount,
			WindowDays: params.WindowDays,
			MinAmount:  params.MinAmount,
		}, nil
	}
	return nil, fmt.Errorf("unknown condition type %q", cj.Type)
}

func conditionToJSON(c funding.Condition) ConditionJSON {
	switch cond := c.(type) {
	case funding.BalanceBelow:
		v, _ := json.Marshal(cond.Threshold)
		cj := ConditionJSON{Type: string(funding.ConditionBalanceBelow), Value: v}
		if cond.EnvelopeID != "" {
			cj.Parameters = &ConditionParams{EnvelopeID: cond.EnvelopeID}
		}
		return cj
	case funding.DateRange:
		v, _ := json.Marshal(dateRangeJSON{Start: cond.Start, End: cond.End})
		return ConditionJSON{Type: string(funding.ConditionDateRange), Value: v}
	case funding.TransactionPattern:
		v, _ := json.Marshal(cond.Merchant)
		return ConditionJSON{
			Type:  string(funding.ConditionTransactionPattern),
			Value: v,
			Parameters: &ConditionParams{
				Category:   cond.Category,
				MinCount:   cond.MinCount,
				WindowDays: cond.WindowDays,
				MinAmount:  cond.MinAmount,
			},
		}
	}
	return ConditionJSON{}
}

func val(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

func ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
