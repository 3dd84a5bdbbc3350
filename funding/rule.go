/*
rule.go - Auto-funding rule model

PURPOSE:
  Defines the rule a user authors to move unassigned cash into envelopes,
  the per-type configuration variants, structural validation and the
  priority ordering that decides which rule sees cash first.

RULE TYPES:
  FIXED_AMOUNT:    Move a fixed amount into one envelope (capped by cash left)
  PERCENTAGE:      Move a percentage of the cycle's income into one envelope
  PRIORITY_FILL:   Top up one envelope to its monthly or target amount
  SPLIT_REMAINDER: Sweep everything left, split evenly across envelopes
  CONDITIONAL:     A fixed or percentage amount gated by conditions

CONFIG VARIANTS:
  Each type carries exactly the fields it needs:

    FixedAmountConfig    -> TargetID, Amount
    PercentageConfig     -> TargetID, Percentage
    PriorityFillConfig   -> TargetID, FillTo
    SplitRemainderConfig -> TargetIDs
    ConditionalConfig    -> TargetID, Amount | Percentage

ORDERING:
  Lower Priority runs first. Ties keep their original order.

EXAMPLE:
  rule := funding.Rule{
      ID:       "rule-rent",
      Name:     "Rent",
      Type:     funding.TypeFixedAmount,
      Trigger:  funding.TriggerIncomeDetected,
      Priority: 10,
      Enabled:  true,
      Config:   funding.FixedAmountConfig{TargetID: "env-rent", Amount: decimal.NewFromInt(1200)},
  }
  if errs := funding.ValidateRule(rule); len(errs) > 0 {
      ...
  }
*/
package funding

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RULE TYPES
// =============================================================================

// RuleType determines which config variant a rule carries.
type RuleType string

const (
	TypeFixedAmount    RuleType = "FIXED_AMOUNT"
	TypePercentage     RuleType = "PERCENTAGE"
	TypePriorityFill   RuleType = "PRIORITY_FILL"
	TypeSplitRemainder RuleType = "SPLIT_REMAINDER"
	TypeConditional    RuleType = "CONDITIONAL"
)

// RuleTypes lists every known rule type.
var RuleTypes = []RuleType{TypeFixedAmount, TypePercentage, TypePriorityFill, TypeSplitRemainder, TypeConditional}

// Valid reports whether t is a known rule type.
func (t RuleType) Valid() bool {
	for _, known := range RuleTypes {
		if t == known {
			return true
		}
	}
	return false
}

// =============================================================================
// RULE
// =============================================================================

// Rule is a user-authored funding instruction.
//
// CreatedAt, LastExecuted and ExecutionCount are written by the applier
// after a plan is committed. The engine only reads them.
type Rule struct {
	ID          string
	Name        string
	Description string
	Type        RuleType
	Trigger     Trigger
	Priority    int
	Enabled     bool

	CreatedAt      time.Time
	LastExecuted   *time.Time
	ExecutionCount int

	Source     FundingSource
	Conditions []Condition
	Schedule   *ScheduleConfig
	Config     RuleConfig
}

// FundingSource says where funds originate. Only income is planned today.
type FundingSource struct {
	Type SourceType
	ID   string
}

type SourceType string

const (
	SourceIncome     SourceType = "income"
	SourceUnassigned SourceType = "unassigned"
)

// ScheduleConfig narrows a scheduled rule to one day of its period.
// A nil DayOfWeek or zero DayOfMonth leaves that dimension unconstrained.
type ScheduleConfig struct {
	DayOfWeek  *time.Weekday
	DayOfMonth int
}

// TargetIDs returns every envelope the rule can fund, in config order.
func (r Rule) TargetIDs() []string {
	switch c := r.Config.(type) {
	case FixedAmountConfig:
		return single(c.TargetID)
	case PercentageConfig:
		return single(c.TargetID)
	case PriorityFillConfig:
		return single(c.TargetID)
	case ConditionalConfig:
		return single(c.TargetID)
	case SplitRemainderConfig:
		return append([]string(nil), c.TargetIDs...)
	}
	return nil
}

// PrimaryTargetID is the first target, or "" when the rule has none.
func (r Rule) PrimaryTargetID() string {
	if ids := r.TargetIDs(); len(ids) > 0 {
		return ids[0]
	}
	return ""
}

func single(id string) []string {
	if id == "" {
		return nil
	}
	return []string{id}
}

// =============================================================================
// CONFIG VARIANTS
// =============================================================================

// RuleConfig is the per-type payload of a rule. The set of variants is closed.
type RuleConfig interface {
	RuleType() RuleType
	isRuleConfig()
}

type FixedAmountConfig struct {
	TargetID string
	Amount   decimal.Decimal
}

type PercentageConfig struct {
	TargetID   string
	Percentage decimal.Decimal // 0 < p <= 100
}

// FillTarget selects which envelope field PRIORITY_FILL tops up to.
type FillTarget string

const (
	FillToMonthlyAmount FillTarget = "monthly_amount"
	FillToTargetAmount  FillTarget = "target_amount"
)

type PriorityFillConfig struct {
	TargetID string
	FillTo   FillTarget // empty means FillToMonthlyAmount
}

type SplitRemainderConfig struct {
	TargetIDs []string
}

// ConditionalConfig layers the rule's conditions on top of a fixed or
// percentage amount. Exactly one of Amount and Percentage is set.
type ConditionalConfig struct {
	TargetID   string
	Amount     *decimal.Decimal
	Percentage *decimal.Decimal
}

func (FixedAmountConfig) RuleType() RuleType    { return TypeFixedAmount }
func (PercentageConfig) RuleType() RuleType     { return TypePercentage }
func (PriorityFillConfig) RuleType() RuleType   { return TypePriorityFill }
func (SplitRemainderConfig) RuleType() RuleType { return TypeSplitRemainder }
func (ConditionalConfig) RuleType() RuleType    { return TypeConditional }

func (FixedAmountConfig) isRuleConfig()    {}
func (PercentageConfig) isRuleConfig()     {}
func (PriorityFillConfig) isRuleConfig()   {}
func (SplitRemainderConfig) isRuleConfig() {}
func (ConditionalConfig) isRuleConfig()    {}

// =============================================================================
// DEFAULT RULE FACTORY
// =============================================================================

// NewDefaultRule returns an enabled rule of the given type with an empty
// config variant, ready to be filled in by an editor. It is not valid until
// targets and amounts are set.
func NewDefaultRule(ruleType RuleType, trigger Trigger) Rule {
	rule := Rule{
		Name:     "New funding rule",
		Type:     ruleType,
		Trigger:  trigger,
		Priority: 100,
		Enabled:  true,
		Source:   FundingSource{Type: SourceIncome},
	}

	switch ruleType {
	case TypeFixedAmount:
		rule.Config = FixedAmountConfig{}
	case TypePercentage:
		rule.Config = PercentageConfig{Percentage: decimal.NewFromInt(10)}
	case TypePriorityFill:
		rule.Config = PriorityFillConfig{FillTo: FillToMonthlyAmount}
	case TypeSplitRemainder:
		// Sweeps run after everything else.
		rule.Priority = 1000
		rule.Config = SplitRemainderConfig{}
	case TypeConditional:
		zero := decimal.Zero
		rule.Config = ConditionalConfig{Amount: &zero}
	}
	return rule
}

// =============================================================================
// VALIDATION
// =============================================================================

var hundred = decimal.NewFromInt(100)

// ValidateRule checks a rule's structure and returns every problem found.
// An empty result means the rule is valid.
func ValidateRule(rule Rule) []string {
	var errs []string

	if rule.Name == "" {
		errs = append(errs, "Rule name is required")
	}
	if !rule.Type.Valid() {
		errs = append(errs, fmt.Sprintf("Invalid rule type: %q", rule.Type))
	}
	if !rule.Trigger.Valid() {
		errs = append(errs, fmt.Sprintf("Invalid trigger: %q", rule.Trigger))
	}

	if rule.Config == nil {
		errs = append(errs, "Rule config is required")
		return errs
	}
	if rule.Type.Valid() && rule.Config.RuleType() != rule.Type {
		errs = append(errs, fmt.Sprintf("Config for %s does not match rule type %s", rule.Config.RuleType(), rule.Type))
		return errs
	}

	switch c := rule.Config.(type) {
	case FixedAmountConfig:
		errs = requireTarget(errs, c.TargetID)
		if !c.Amount.IsPositive() {
			errs = append(errs, "Amount must be greater than 0")
		}
	case PercentageConfig:
		errs = requireTarget(errs, c.TargetID)
		errs = checkPercentage(errs, c.Percentage)
	case PriorityFillConfig:
		errs = requireTarget(errs, c.TargetID)
		if c.FillTo != "" && c.FillTo != FillToMonthlyAmount && c.FillTo != FillToTargetAmount {
			errs = append(errs, fmt.Sprintf("Invalid fill target: %q", c.FillTo))
		}
	case SplitRemainderConfig:
		if len(c.TargetIDs) == 0 {
			errs = append(errs, "At least one target envelope is required for split rules")
		}
		seen := make(map[string]bool, len(c.TargetIDs))
		for _, id := range c.TargetIDs {
			if id == "" {
				errs = append(errs, "Split target envelope ids must not be empty")
				continue
			}
			if seen[id] {
				errs = append(errs, fmt.Sprintf("Split target %q is listed twice", id))
			}
			seen[id] = true
		}
	case ConditionalConfig:
		errs = requireTarget(errs, c.TargetID)
		switch {
		case c.Amount != nil && c.Percentage != nil:
			errs = append(errs, "Conditional rules take either an amount or a percentage, not both")
		case c.Amount != nil:
			if !c.Amount.IsPositive() {
				errs = append(errs, "Amount must be greater than 0")
			}
		case c.Percentage != nil:
			errs = checkPercentage(errs, *c.Percentage)
		default:
			errs = append(errs, "Conditional rules need an amount or a percentage")
		}
	}

	for i, cond := range rule.Conditions {
		if msg := validateCondition(cond); msg != "" {
			errs = append(errs, fmt.Sprintf("Condition %d: %s", i+1, msg))
		}
	}

	if rule.Schedule != nil && rule.Schedule.DayOfMonth != 0 &&
		(rule.Schedule.DayOfMonth < 1 || rule.Schedule.DayOfMonth > 31) {
		errs = append(errs, "Schedule day of month must be between 1 and 31")
	}

	return errs
}

func requireTarget(errs []string, targetID string) []string {
	if targetID == "" {
		return append(errs, "Target envelope is required")
	}
	return errs
}

func checkPercentage(errs []string, p decimal.Decimal) []string {
	if !p.IsPositive() || p.GreaterThan(hundred) {
		return append(errs, "Percentage must be between 0 and 100")
	}
	return errs
}

// =============================================================================
// ORDERING
// =============================================================================

// SortRulesByPriority returns a copy of rules in ascending priority order.
// Equal priorities keep their input order.
func SortRulesByPriority(rules []Rule) []Rule {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	return sorted
}
