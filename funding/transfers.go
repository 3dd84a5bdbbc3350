package funding

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TRANSFER PLANNER
// =============================================================================

// PlanRuleTransfers expands a rule's funding amount into concrete transfers.
//
// Single-target rules produce one transfer for the full amount. Split rules
// divide the amount evenly, truncating each share to cents; the LAST target
// absorbs the remainder so the shares always sum to amount exactly:
//
//	10 across 3 targets -> 3.33, 3.33, 3.34
func PlanRuleTransfers(rule Rule, amount decimal.Decimal) []PlannedTransfer {
	if !amount.IsPositive() {
		return nil
	}

	split, ok := rule.Config.(SplitRemainderConfig)
	if !ok {
		target := rule.PrimaryTargetID()
		if target == "" {
			return nil
		}
		return []PlannedTransfer{{
			ToEnvelopeID: target,
			Amount:       amount,
			Description:  fmt.Sprintf("Auto-funding: %s", rule.Name),
			RuleID:       rule.ID,
			RuleName:     rule.Name,
		}}
	}

	n := len(split.TargetIDs)
	if n == 0 {
		return nil
	}

	share := amount.Div(decimal.NewFromInt(int64(n))).Truncate(2)
	transfers := make([]PlannedTransfer, 0, n)
	allocated := decimal.Zero

	for i, id := range split.TargetIDs {
		part := share
		if i == n-1 {
			part = amount.Sub(allocated)
		}
		allocated = allocated.Add(part)

		if !part.IsPositive() {
			continue
		}
		transfers = append(transfers, PlannedTransfer{
			ToEnvelopeID: id,
			Amount:       part,
			Description:  fmt.Sprintf("Auto-funding: %s (split %d/%d)", rule.Name, i+1, n),
			RuleID:       rule.ID,
			RuleName:     rule.Name,
		})
	}
	return transfers
}
