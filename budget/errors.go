package budget

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRuleNotFound is returned when a referenced rule doesn't exist.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrEnvelopeNotFound is returned when a commit references a missing envelope.
	ErrEnvelopeNotFound = errors.New("envelope not found")

	// ErrInsufficientCash is returned when a commit would overdraw unassigned cash.
	ErrInsufficientCash = errors.New("insufficient unassigned cash")

	// ErrDuplicatePlan is returned when a plan id was already committed.
	// Expected on retries; the first commit stands.
	ErrDuplicatePlan = errors.New("plan already applied")

	// ErrStalePlan is returned when a plan no longer fits the live budget.
	ErrStalePlan = errors.New("plan is stale")

	// ErrPlanNotFound is returned when applying a plan id that was never
	// previewed or has been evicted.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrInvalidRule is returned when a rule fails structural validation.
	ErrInvalidRule = errors.New("invalid rule")
)

// StalePlanError lists why a plan failed re-validation against live state.
type StalePlanError struct {
	Errors []string
}

func (e *StalePlanError) Error() string {
	return fmt.Sprintf("plan is stale: %s", strings.Join(e.Errors, "; "))
}

func (e *StalePlanError) Unwrap() error {
	return ErrStalePlan
}

// InvalidRuleError carries every validation message for a rule.
type InvalidRuleError struct {
	RuleID string
	Errors []string
}

func (e *InvalidRuleError) Error() string {
	return fmt.Sprintf("invalid rule %s: %s", e.RuleID, strings.Join(e.Errors, "; "))
}

func (e *InvalidRuleError) Unwrap() error {
	return ErrInvalidRule
}

// IsConflict returns true if the error means live state disagrees with the request.
func IsConflict(err error) bool {
	return errors.Is(err, ErrStalePlan) ||
		errors.Is(err, ErrDuplicatePlan) ||
		errors.Is(err, ErrInsufficientCash)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRuleNotFound) ||
		errors.Is(err, ErrEnvelopeNotFound) ||
		errors.Is(err, ErrPlanNotFound)
}
