/*
errors.go - Error types for the funding engine

ERROR CATEGORIES:
  1. Context errors - Malformed top-level input, returned by the engine
  2. Rule errors - Per-rule failures, recorded in the plan and never returned
  3. Validation messages - Plain strings from ValidateRule and ValidateTransfers

USAGE:
  for _, rerr := range plan.Errors {
      if errors.Is(rerr, funding.ErrZeroAmount) {
          continue // rule had nothing to do
      }
  }

SEE ALSO:
  - simulation.go: Wraps calculator failures in RuleError
  - budget/errors.go: Apply-time errors
*/
package funding

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrZeroAmount is recorded when a rule computes nothing to move.
	ErrZeroAmount = errors.New("Amount calculated as zero")

	// ErrEnvelopeNotFound is returned when a rule references a missing envelope.
	ErrEnvelopeNotFound = errors.New("envelope not found")

	// ErrInsufficientCash is recorded when a rule asks for more than remains.
	ErrInsufficientCash = errors.New("insufficient unassigned cash")

	// ErrUnknownRuleType is returned for a type the engine cannot compute.
	ErrUnknownRuleType = errors.New("unknown rule type")

	// ErrConfigMismatch is returned when a rule's config variant does not fit its type.
	ErrConfigMismatch = errors.New("rule config does not match rule type")

	// ErrInvalidContext is returned for malformed execution contexts.
	ErrInvalidContext = errors.New("invalid execution context")

	// ErrRuleEvaluation wraps a panic raised while evaluating a single rule.
	ErrRuleEvaluation = errors.New("rule evaluation failed")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// RuleError ties a per-rule failure to the rule that produced it.
type RuleError struct {
	RuleID   string
	RuleName string
	Err      error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %q (%s): %v", e.RuleName, e.RuleID, e.Err)
}

func (e *RuleError) Unwrap() error {
	return e.Err
}

// IsClientError returns true if the error is caused by caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidContext) ||
		errors.Is(err, ErrConfigMismatch) ||
		errors.Is(err, ErrUnknownRuleType)
}
