package funding

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CONDITIONS
// =============================================================================

// ConditionType names a condition variant on the wire.
type ConditionType string

const (
	ConditionBalanceBelow       ConditionType = "balance_below"
	ConditionDateRange          ConditionType = "date_range"
	ConditionTransactionPattern ConditionType = "transaction_pattern"
)

// Condition is one eligibility check attached to a rule. The set of
// variants is closed.
type Condition interface {
	ConditionType() ConditionType
	isCondition()
}

// BalanceBelow holds when the envelope's balance is strictly under Threshold.
// An empty EnvelopeID refers to the rule's primary target.
type BalanceBelow struct {
	EnvelopeID string
	Threshold  decimal.Decimal
}

// DateRange holds when Now falls within [Start, End], inclusive.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// TransactionPattern holds when at least MinCount recent transactions match.
// Merchant is a case-insensitive regular expression; Category is an exact,
// case-insensitive match. Empty fields match everything.
type TransactionPattern struct {
	Merchant   string
	Category   string
	MinCount   int
	WindowDays int
	MinAmount  *decimal.Decimal
}

func (BalanceBelow) ConditionType() ConditionType       { return ConditionBalanceBelow }
func (DateRange) ConditionType() ConditionType          { return ConditionDateRange }
func (TransactionPattern) ConditionType() ConditionType { return ConditionTransactionPattern }

func (BalanceBelow) isCondition()       {}
func (DateRange) isCondition()          {}
func (TransactionPattern) isCondition() {}

const defaultPatternWindowDays = 30

func validateCondition(c Condition) string {
	switch cond := c.(type) {
	case BalanceBelow:
		return ""
	case DateRange:
		if cond.Start.IsZero() || cond.End.IsZero() {
			return "date range needs a start and an end"
		}
		if cond.End.Before(cond.Start) {
			return "date range ends before it starts"
		}
	case TransactionPattern:
		if cond.Merchant == "" && cond.Category == "" {
			return "transaction pattern needs a merchant or a category"
		}
		if cond.Merchant != "" {
			if _, err := regexp.Compile("(?i)" + cond.Merchant); err != nil {
				return "transaction pattern merchant is not a valid expression"
			}
		}
		if cond.MinCount < 0 || cond.WindowDays < 0 {
			return "transaction pattern counts must not be negative"
		}
	case nil:
		return "condition is empty"
	}
	return ""
}

// =============================================================================
// CONDITION EVALUATOR
// =============================================================================

// ShouldRuleExecute decides whether a rule is eligible in this planning pass.
//
// Gates, in order:
//  1. The rule is enabled and its trigger equals the context trigger.
//  2. A scheduled rule with a ScheduleConfig only runs on its configured day.
//  3. Every condition holds. Missing envelopes make a condition false.
func ShouldRuleExecute(rule Rule, ctx ExecutionContext) bool {
	if !rule.Enabled || rule.Trigger != ctx.Trigger {
		return false
	}
	if !scheduleMatches(rule, ctx.Now) {
		return false
	}
	for _, cond := range rule.Conditions {
		if !EvaluateCondition(cond, rule, ctx) {
			return false
		}
	}
	return true
}

func scheduleMatches(rule Rule, now time.Time) bool {
	if rule.Schedule == nil || !rule.Trigger.IsScheduled() {
		return true
	}
	if rule.Schedule.DayOfWeek != nil && now.Weekday() != *rule.Schedule.DayOfWeek {
		return false
	}
	if rule.Schedule.DayOfMonth != 0 && now.Day() != rule.Schedule.DayOfMonth {
		return false
	}
	return true
}

// EvaluateCondition evaluates one condition against the context snapshot.
// Unknown variants fail closed.
func EvaluateCondition(c Condition, rule Rule, ctx ExecutionContext) bool {
	switch cond := c.(type) {
	case BalanceBelow:
		id := cond.EnvelopeID
		if id == "" {
			id = rule.PrimaryTargetID()
		}
		env, ok := ctx.Envelope(id)
		if !ok {
			return false
		}
		return env.CurrentBalance.LessThan(cond.Threshold)

	case DateRange:
		if cond.Start.IsZero() || cond.End.IsZero() {
			return false
		}
		return !ctx.Now.Before(cond.Start) && !ctx.Now.After(cond.End)

	case TransactionPattern:
		return matchesPattern(cond, ctx)
	}
	return false
}

func matchesPattern(p TransactionPattern, ctx ExecutionContext) bool {
	var merchant *regexp.Regexp
	if p.Merchant != "" {
		re, err := regexp.Compile("(?i)" + p.Merchant)
		if err != nil {
			return false
		}
		merchant = re
	}

	window := p.WindowDays
	if window == 0 {
		window = defaultPatternWindowDays
	}
	since := ctx.Now.AddDate(0, 0, -window)

	minCount := p.MinCount
	if minCount == 0 {
		minCount = 1
	}

	count := 0
	for _, txn := range ctx.Data.Transactions {
		if txn.OccurredAt.Before(since) || txn.OccurredAt.After(ctx.Now) {
			continue
		}
		if merchant != nil && !merchant.MatchString(txn.Merchant) {
			continue
		}
		if p.Category != "" && !strings.EqualFold(p.Category, txn.Category) {
			continue
		}
		if p.MinAmount != nil && txn.Amount.Abs().LessThan(*p.MinAmount) {
			continue
		}
		count++
		if count >= minCount {
			return true
		}
	}
	return false
}
