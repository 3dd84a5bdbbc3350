/*
Package budget connects the funding engine to persistent budget state.

PURPOSE:
  The funding engine is pure: it plans against a snapshot and returns a
  recommendation. This package supplies the collaborators around it:
  loading rules and the budget snapshot, committing an accepted plan, and
  keeping an audit trail of applied transfers and scheduled runs.

KEY INTERFACES (store.go):
  RuleStore:     Rule CRUD; the only writer of LastExecuted/ExecutionCount
  EnvelopeStore: Envelopes, unassigned cash and recent transactions
  LedgerStore:   Atomic plan commit plus the append-only transfer ledger
  RunStore:      Scheduled-run audit, one run per trigger period

COMMIT CONTRACT:
  CommitPlan() is all-or-nothing. Inside one transaction it must:
  1. Reject a plan id that was already committed (ErrDuplicatePlan)
  2. Re-check unassigned cash covers the total (ErrInsufficientCash)
  3. Reject transfers to unknown envelopes (ErrEnvelopeNotFound)
  4. Credit envelopes, debit unassigned cash, append transfer records
  5. Bump LastExecuted and ExecutionCount on every executed rule

IMPLEMENTATIONS:
  - budget/memory.go: In-memory for tests and demos
  - store/sqlite/sqlite.go: SQLite

SEE ALSO:
  - service.go: Preview / apply orchestration
  - funding/diagnostics.go: ValidateTransfers (stale-plan check)
*/
package budget

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/autofund/funding"
)

// =============================================================================
// STORE INTERFACES
// =============================================================================

// RuleStore persists funding rules.
type RuleStore interface {
	ListRules(ctx context.Context) ([]funding.Rule, error)

	// GetRule returns ErrRuleNotFound for unknown ids.
	GetRule(ctx context.Context, id string) (funding.Rule, error)

	// SaveRule inserts or replaces a rule.
	SaveRule(ctx context.Context, rule funding.Rule) error

	// DeleteRule returns ErrRuleNotFound for unknown ids.
	DeleteRule(ctx context.Context, id string) error
}

// EnvelopeStore persists envelope balances and the unassigned cash pool.
type EnvelopeStore interface {
	ListEnvelopes(ctx context.Context) ([]funding.Envelope, error)
	SaveEnvelope(ctx context.Context, env funding.Envelope) error

	UnassignedCash(ctx context.Context) (decimal.Decimal, error)
	SetUnassignedCash(ctx context.Context, amount decimal.Decimal) error

	// RecordIncome stores an income transaction and adds its amount to
	// unassigned cash in one step.
	RecordIncome(ctx context.Context, txn funding.Transaction) error

	// AddTransaction stores a spending transaction without touching cash.
	AddTransaction(ctx context.Context, txn funding.Transaction) error

	// RecentTransactions returns transactions at or after since, oldest first.
	RecentTransactions(ctx context.Context, since time.Time) ([]funding.Transaction, error)
}

// LedgerStore commits plans and exposes the applied transfer history.
type LedgerStore interface {
	CommitPlan(ctx context.Context, commit Commit) error
	ListTransfers(ctx context.Context, limit int) ([]TransferRecord, error)
}

// RunStore records scheduled runs so each trigger period runs once.
type RunStore interface {
	SaveRun(ctx context.Context, run RunRecord) error
	IsRunComplete(ctx context.Context, trigger funding.Trigger, periodKey string) (bool, error)
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}

// Store is everything the service needs.
type Store interface {
	RuleStore
	EnvelopeStore
	LedgerStore
	RunStore

	// Reset clears all data. Development and demo only.
	Reset(ctx context.Context) error
}

// =============================================================================
// RECORDS
// =============================================================================

// Commit is an accepted plan on its way to persistent balances.
type Commit struct {
	PlanID    string
	Transfers []funding.PlannedTransfer
	RuleIDs   []string
	At        time.Time
}

// TransferRecord is one applied transfer. Append-only.
type TransferRecord struct {
	ID          string
	PlanID      string
	RuleID      string
	RuleName    string
	EnvelopeID  string
	Amount      decimal.Decimal
	Description string
	AppliedAt   time.Time
}

// RunStatus is the outcome of a scheduled run.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunSkipped   RunStatus = "skipped" // nothing to transfer
	RunFailed    RunStatus = "failed"
)

// RunRecord audits one scheduled planning run.
type RunRecord struct {
	ID               string
	Trigger          funding.Trigger
	PeriodKey        string
	Status           RunStatus
	PlanID           string
	RulesExecuted    int
	TotalTransferred decimal.Decimal
	Error            string
	RanAt            time.Time
}
