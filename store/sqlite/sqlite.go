/*
Package sqlite provides a SQLite-backed implementation of budget.Store.

PURPOSE:
  Persists rules, envelopes, unassigned cash, recent transactions, the
  applied-transfer ledger and scheduled-run audit using SQLite. Money is
  stored as decimal TEXT so no value ever passes through a float.

KEY TABLES:
  rules:         Rule columns for listing plus the full rule JSON (factory)
  envelopes:     Envelope balances and goals
  budget_state:  Single row holding unassigned cash
  transactions:  Income and spending history for pattern conditions
  applied_plans: One row per committed plan id (duplicate guard)
  transfers:     Append-only ledger of applied transfers
  funding_runs:  Scheduled runs, unique per trigger and period

APPEND-ONLY ENFORCEMENT:
  transfers and applied_plans are never updated or deleted outside Reset.
  Corrections are made by a new plan, not by editing history.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. CommitPlan runs in one SQL
  transaction under the write lock, so its checks and writes are atomic.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/autofund.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := budget.NewService(store, funding.NewPlanner())

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - budget/store.go: Interface definitions and commit contract
  - budget/memory.go: In-memory implementation for testing
  - factory/rule.go: Rule JSON stored in rules.rule_json
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/autofund/budget"
	"github.com/warp/autofund/factory"
	"github.com/warp/autofund/funding"
)

// Store implements budget.Store using SQLite.
type Store struct {
	db      *sql.DB
	mu      sync.RWMutex
	factory *factory.RuleFactory
}

var _ budget.Store = (*Store)(nil)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// An in-memory database lives per connection.
	if strings.HasPrefix(dbPath, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, factory: factory.NewRuleFactory()}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Rules: queryable columns plus the full JSON document
	CREATE TABLE IF NOT EXISTS rules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		rule_type TEXT NOT NULL,
		trigger_type TEXT NOT NULL,
		priority INTEGER NOT NULL,
		enabled INTEGER NOT NULL,
		rule_json TEXT NOT NULL,
		execution_count INTEGER NOT NULL DEFAULT 0,
		last_executed TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rules_trigger_priority
		ON rules(trigger_type, priority);

	-- Envelopes
	CREATE TABLE IF NOT EXISTS envelopes (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		current_balance TEXT NOT NULL,
		monthly_amount TEXT NOT NULL,
		target_amount TEXT,
		created_at TEXT NOT NULL
	);

	-- Unassigned cash (single row)
	CREATE TABLE IF NOT EXISTS budget_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		unassigned_cash TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Transactions (income and spending history)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		merchant TEXT NOT NULL,
		category TEXT,
		amount TEXT NOT NULL,
		occurred_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_occurred_at
		ON transactions(occurred_at);

	-- Committed plans (duplicate guard)
	CREATE TABLE IF NOT EXISTS applied_plans (
		plan_id TEXT PRIMARY KEY,
		total TEXT NOT NULL,
		applied_at TEXT NOT NULL
	);

	-- Transfers (append-only ledger)
	CREATE TABLE IF NOT EXISTS transfers (
		id TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL REFERENCES applied_plans(plan_id),
		rule_id TEXT,
		rule_name TEXT,
		envelope_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		description TEXT,
		applied_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transfers_plan
		ON transfers(plan_id);
	CREATE INDEX IF NOT EXISTS idx_transfers_applied_at
		ON transfers(applied_at DESC);

	-- Scheduled funding runs
	CREATE TABLE IF NOT EXISTS funding_runs (
		id TEXT PRIMARY KEY,
		trigger_type TEXT NOT NULL,
		period_key TEXT NOT NULL,
		status TEXT NOT NULL,
		plan_id TEXT,
		rules_executed INTEGER NOT NULL DEFAULT 0,
		total_transferred TEXT NOT NULL,
		error TEXT,
		ran_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_funding_runs_period
		ON funding_runs(trigger_type, period_key);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RULE STORE
// =============================================================================

// ListRules returns all rules ordered by priority, then id.
func (s *Store) ListRules(ctx context.Context) ([]funding.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT rule_json, execution_count, last_executed
		FROM rules
		ORDER BY priority ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []funding.Rule
	for rows.Next() {
		rule, err := s.scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// GetRule returns one rule.
func (s *Store) GetRule(ctx context.Context, id string) (funding.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT rule_json, execution_count, last_executed
		FROM rules WHERE id = ?
	`, id)

	rule, err := s.scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return funding.Rule{}, fmt.Errorf("%w: %s", budget.ErrRuleNotFound, id)
	}
	return rule, err
}

// SaveRule inserts or replaces a rule.
func (s *Store) SaveRule(ctx context.Context, rule funding.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.factory.Marshal(rule)
	if err != nil {
		return err
	}

	createdAt := rule.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO rules (id, name, rule_type, trigger_type, priority, enabled, rule_json,
			execution_count, last_executed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			rule_type = excluded.rule_type,
			trigger_type = excluded.trigger_type,
			priority = excluded.priority,
			enabled = excluded.enabled,
			rule_json = excluded.rule_json,
			execution_count = excluded.execution_count,
			last_executed = excluded.last_executed,
			updated_at = excluded.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		rule.ID, rule.Name, string(rule.Type), string(rule.Trigger), rule.Priority, rule.Enabled, doc,
		rule.ExecutionCount, nullTime(rule.LastExecuted),
		formatTime(createdAt), formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}
	return nil
}

// DeleteRule removes a rule.
func (s *Store) DeleteRule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM rules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", budget.ErrRuleNotFound, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRule decodes the stored JSON and overlays the execution stats, which
// CommitPlan maintains in their own columns.
func (s *Store) scanRule(row scanner) (funding.Rule, error) {
	var (
		doc          string
		count        int
		lastExecuted sql.NullString
	)
	if err := row.Scan(&doc, &count, &lastExecuted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return funding.Rule{}, err
		}
		return funding.Rule{}, fmt.Errorf("failed to scan rule: %w", err)
	}

	rule, err := s.factory.ParseRule(doc)
	if err != nil {
		return funding.Rule{}, err
	}
	rule.ExecutionCount = count
	rule.LastExecuted = parseNullTime(lastExecuted)
	return rule, nil
}

// =============================================================================
// ENVELOPE STORE
// =============================================================================

// ListEnvelopes returns envelopes in creation order.
func (s *Store) ListEnvelopes(ctx context.Context) ([]funding.Envelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, current_balance, monthly_amount, target_amount
		FROM envelopes
		ORDER BY rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query envelopes: %w", err)
	}
	defer rows.Close()

	var envelopes []funding.Envelope
	for rows.Next() {
		var (
			env              funding.Envelope
			balance, monthly string
			target           sql.NullString
		)
		if err := rows.Scan(&env.ID, &env.Name, &balance, &monthly, &target); err != nil {
			return nil, fmt.Errorf("failed to scan envelope: %w", err)
		}
		if env.CurrentBalance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("envelope %s balance: %w", env.ID, err)
		}
		if env.MonthlyAmount, err = decimal.NewFromString(monthly); err != nil {
			return nil, fmt.Errorf("envelope %s monthly amount: %w", env.ID, err)
		}
		if target.Valid {
			t, err := decimal.NewFromString(target.String)
			if err != nil {
				return nil, fmt.Errorf("envelope %s target: %w", env.ID, err)
			}
			env.TargetAmount = &t
		}
		envelopes = append(envelopes, env)
	}
	return envelopes, rows.Err()
}

// SaveEnvelope inserts or updates an envelope.
func (s *Store) SaveEnvelope(ctx context.Context, env funding.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var target sql.NullString
	if env.TargetAmount != nil {
		target = sql.NullString{String: env.TargetAmount.String(), Valid: true}
	}

	query := `
		INSERT INTO envelopes (id, name, current_balance, monthly_amount, target_amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			current_balance = excluded.current_balance,
			monthly_amount = excluded.monthly_amount,
			target_amount = excluded.target_amount
	`
	_, err := s.db.ExecContext(ctx, query,
		env.ID, env.Name, env.CurrentBalance.String(), env.MonthlyAmount.String(), target,
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to save envelope: %w", err)
	}
	return nil
}

// UnassignedCash returns the cash pool. Zero before it is first set.
func (s *Store) UnassignedCash(ctx context.Context) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return readCash(ctx, s.db)
}

// SetUnassignedCash overwrites the cash pool.
func (s *Store) SetUnassignedCash(ctx context.Context, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeCash(ctx, s.db, amount)
}

// RecordIncome stores the deposit and adds it to cash in one transaction.
func (s *Store) RecordIncome(ctx context.Context, txn funding.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := insertTransaction(ctx, sqlTx, txn); err != nil {
		return err
	}
	cash, err := readCash(ctx, sqlTx)
	if err != nil {
		return err
	}
	if err := writeCash(ctx, sqlTx, cash.Add(txn.Amount)); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// AddTransaction records a spending transaction without touching cash.
func (s *Store) AddTransaction(ctx context.Context, txn funding.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertTransaction(ctx, s.db, txn)
}

// RecentTransactions returns transactions at or after since, oldest first.
func (s *Store) RecentTransactions(ctx context.Context, since time.Time) ([]funding.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, merchant, category, amount, occurred_at
		FROM transactions
		WHERE occurred_at >= ?
		ORDER BY occurred_at ASC, rowid ASC
	`, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txns []funding.Transaction
	for rows.Next() {
		var (
			t                  funding.Transaction
			category           sql.NullString
			amount, occurredAt string
		)
		if err := rows.Scan(&t.ID, &t.Merchant, &category, &amount, &occurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.Category = category.String
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("transaction %s amount: %w", t.ID, err)
		}
		t.OccurredAt, _ = time.Parse(time.RFC3339, occurredAt)
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

func insertTransaction(ctx context.Context, db execer, txn funding.Transaction) error {
	id := txn.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO transactions (id, merchant, category, amount, occurred_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, txn.Merchant, nullString(txn.Category), txn.Amount.String(), formatTime(txn.OccurredAt))
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func readCash(ctx context.Context, db querier) (decimal.Decimal, error) {
	var cash string
	err := db.QueryRowContext(ctx, "SELECT unassigned_cash FROM budget_state WHERE id = 1").Scan(&cash)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read unassigned cash: %w", err)
	}
	return decimal.NewFromString(cash)
}

func writeCash(ctx context.Context, db execer, amount decimal.Decimal) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO budget_state (id, unassigned_cash, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			unassigned_cash = excluded.unassigned_cash,
			updated_at = excluded.updated_at
	`, amount.String(), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to write unassigned cash: %w", err)
	}
	return nil
}

// =============================================================================
// LEDGER STORE
// =============================================================================

// CommitPlan applies a plan in one SQL transaction. See budget.Store for the
// contract.
func (s *Store) CommitPlan(ctx context.Context, c budget.Commit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	total := funding.TotalAmount(c.Transfers)
	at := formatTime(c.At)

	_, err = sqlTx.ExecContext(ctx,
		"INSERT INTO applied_plans (plan_id, total, applied_at) VALUES (?, ?, ?)",
		c.PlanID, total.String(), at,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: %s", budget.ErrDuplicatePlan, c.PlanID)
		}
		return fmt.Errorf("failed to record plan: %w", err)
	}

	cash, err := readCash(ctx, sqlTx)
	if err != nil {
		return err
	}
	if total.GreaterThan(cash) {
		return fmt.Errorf("%w: need %s, have %s", budget.ErrInsufficientCash, total, cash)
	}

	for _, t := range c.Transfers {
		var balance string
		err := sqlTx.QueryRowContext(ctx,
			"SELECT current_balance FROM envelopes WHERE id = ?", t.ToEnvelopeID,
		).Scan(&balance)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", budget.ErrEnvelopeNotFound, t.ToEnvelopeID)
		}
		if err != nil {
			return fmt.Errorf("failed to read envelope: %w", err)
		}
		current, err := decimal.NewFromString(balance)
		if err != nil {
			return fmt.Errorf("envelope %s balance: %w", t.ToEnvelopeID, err)
		}

		if _, err := sqlTx.ExecContext(ctx,
			"UPDATE envelopes SET current_balance = ? WHERE id = ?",
			current.Add(t.Amount).String(), t.ToEnvelopeID,
		); err != nil {
			return fmt.Errorf("failed to credit envelope: %w", err)
		}

		if _, err := sqlTx.ExecContext(ctx, `
			INSERT INTO transfers (id, plan_id, rule_id, rule_name, envelope_id, amount, description, applied_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, uuid.NewString(), c.PlanID, nullString(t.RuleID), nullString(t.RuleName),
			t.ToEnvelopeID, t.Amount.String(), nullString(t.Description), at,
		); err != nil {
			return fmt.Errorf("failed to append transfer: %w", err)
		}
	}

	if err := writeCash(ctx, sqlTx, cash.Sub(total)); err != nil {
		return err
	}

	for _, id := range c.RuleIDs {
		if _, err := sqlTx.ExecContext(ctx, `
			UPDATE rules SET execution_count = execution_count + 1, last_executed = ?
			WHERE id = ?
		`, at, id); err != nil {
			return fmt.Errorf("failed to update rule %s: %w", id, err)
		}
	}

	return sqlTx.Commit()
}

// ListTransfers returns the newest transfers first. limit <= 0 means all.
func (s *Store) ListTransfers(ctx context.Context, limit int) ([]budget.TransferRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, plan_id, rule_id, rule_name, envelope_id, amount, description, applied_at
		FROM transfers
		ORDER BY applied_at DESC, rowid DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	defer rows.Close()

	var records []budget.TransferRecord
	for rows.Next() {
		var (
			r                             budget.TransferRecord
			ruleID, ruleName, description sql.NullString
			amount, appliedAt             string
		)
		if err := rows.Scan(&r.ID, &r.PlanID, &ruleID, &ruleName, &r.EnvelopeID, &amount, &description, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		r.RuleID = ruleID.String
		r.RuleName = ruleName.String
		r.Description = description.String
		if r.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("transfer %s amount: %w", r.ID, err)
		}
		r.AppliedAt, _ = time.Parse(time.RFC3339, appliedAt)
		records = append(records, r)
	}
	return records, rows.Err()
}

// =============================================================================
// RUN STORE
// =============================================================================

// SaveRun records a scheduled run.
func (s *Store) SaveRun(ctx context.Context, r budget.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := r.ID
	if id == "" {
		id = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO funding_runs (id, trigger_type, period_key, status, plan_id,
			rules_executed, total_transferred, error, ran_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			plan_id = excluded.plan_id,
			rules_executed = excluded.rules_executed,
			total_transferred = excluded.total_transferred,
			error = excluded.error,
			ran_at = excluded.ran_at
	`, id, string(r.Trigger), r.PeriodKey, string(r.Status), nullString(r.PlanID),
		r.RulesExecuted, r.TotalTransferred.String(), nullString(r.Error), formatTime(r.RanAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// IsRunComplete reports whether a non-failed run exists for the period.
func (s *Store) IsRunComplete(ctx context.Context, trigger funding.Trigger, periodKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM funding_runs
		WHERE trigger_type = ? AND period_key = ? AND status != ?
	`, string(trigger), periodKey, string(budget.RunFailed)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListRuns returns the newest runs first. limit <= 0 means all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]budget.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, trigger_type, period_key, status, plan_id, rules_executed,
			total_transferred, error, ran_at
		FROM funding_runs
		ORDER BY ran_at DESC, rowid DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []budget.RunRecord
	for rows.Next() {
		var (
			r               budget.RunRecord
			trigger, status string
			planID, runErr  sql.NullString
			total, ranAt    string
		)
		if err := rows.Scan(&r.ID, &trigger, &r.PeriodKey, &status, &planID,
			&r.RulesExecuted, &total, &runErr, &ranAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Trigger = funding.Trigger(trigger)
		r.Status = budget.RunStatus(status)
		r.PlanID = planID.String
		r.Error = runErr.String
		r.TotalTransferred, _ = decimal.NewFromString(total)
		r.RanAt, _ = time.Parse(time.RFC3339, ranAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"transfers", "applied_plans", "funding_runs", "transactions", "rules", "envelopes", "budget_state"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
