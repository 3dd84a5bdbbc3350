package budget

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/autofund/funding"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type MemoryStore struct {
	mu            sync.RWMutex
	rules         map[string]funding.Rule
	envelopes     map[string]funding.Envelope
	envelopeOrder []string
	cash          decimal.Decimal
	transactions  []funding.Transaction
	transfers     []TransferRecord
	plans         map[string]bool
	runs          []RunRecord
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rules:     make(map[string]funding.Rule),
		envelopes: make(map[string]funding.Envelope),
		plans:     make(map[string]bool),
		cash:      decimal.Zero,
	}
}

// -----------------------------------------------------------------------------
// Rules
// -----------------------------------------------------------------------------

// ListRules returns rules ordered by priority, then id.
func (m *MemoryStore) ListRules(_ context.Context) ([]funding.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]funding.Rule, 0, len(m.rules))
	for _, r := range m.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) GetRule(_ context.Context, id string) (funding.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rules[id]
	if !ok {
		return funding.Rule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	return r, nil
}

func (m *MemoryStore) SaveRule(_ context.Context, rule funding.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[rule.ID] = rule
	return nil
}

func (m *MemoryStore) DeleteRule(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[id]; !ok {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	delete(m.rules, id)
	return nil
}

// -----------------------------------------------------------------------------
// Envelopes and cash
// -----------------------------------------------------------------------------

// ListEnvelopes returns envelopes in the order they were first saved.
func (m *MemoryStore) ListEnvelopes(_ context.Context) ([]funding.Envelope, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]funding.Envelope, 0, len(m.envelopeOrder))
	for _, id := range m.envelopeOrder {
		out = append(out, m.envelopes[id])
	}
	return out, nil
}

func (m *MemoryStore) SaveEnvelope(_ context.Context, env funding.Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.envelopes[env.ID]; !ok {
		m.envelopeOrder = append(m.envelopeOrder, env.ID)
	}
	m.envelopes[env.ID] = env
	return nil
}

func (m *MemoryStore) UnassignedCash(_ context.Context) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cash, nil
}

func (m *MemoryStore) SetUnassignedCash(_ context.Context, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cash = amount
	return nil
}

func (m *MemoryStore) RecordIncome(_ context.Context, txn funding.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions = append(m.transactions, txn)
	m.cash = m.cash.Add(txn.Amount)
	return nil
}

// AddTransaction records a spending transaction without touching cash.
func (m *MemoryStore) AddTransaction(_ context.Context, txn funding.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions = append(m.transactions, txn)
	return nil
}

func (m *MemoryStore) RecentTransactions(_ context.Context, since time.Time) ([]funding.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []funding.Transaction
	for _, t := range m.transactions {
		if !t.OccurredAt.Before(since) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})
	return out, nil
}

// -----------------------------------------------------------------------------
// Ledger
// -----------------------------------------------------------------------------

// CommitPlan applies a plan atomically under the write lock.
func (m *MemoryStore) CommitPlan(_ context.Context, c Commit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check everything first (atomic check)
	if m.plans[c.PlanID] {
		return fmt.Errorf("%w: %s", ErrDuplicatePlan, c.PlanID)
	}
	total := funding.TotalAmount(c.Transfers)
	if total.GreaterThan(m.cash) {
		return fmt.Errorf("%w: need %s, have %s", ErrInsufficientCash, total, m.cash)
	}
	for _, t := range c.Transfers {
		if _, ok := m.envelopes[t.ToEnvelopeID]; !ok {
			return fmt.Errorf("%w: %s", ErrEnvelopeNotFound, t.ToEnvelopeID)
		}
	}

	// Then write
	for _, t := range c.Transfers {
		env := m.envelopes[t.ToEnvelopeID]
		env.CurrentBalance = env.CurrentBalance.Add(t.Amount)
		m.envelopes[t.ToEnvelopeID] = env

		m.transfers = append(m.transfers, TransferRecord{
			ID:          uuid.NewString(),
			PlanID:      c.PlanID,
			RuleID:      t.RuleID,
			RuleName:    t.RuleName,
			EnvelopeID:  t.ToEnvelopeID,
			Amount:      t.Amount,
			Description: t.Description,
			AppliedAt:   c.At,
		})
	}
	m.cash = m.cash.Sub(total)

	at := c.At
	for _, id := range c.RuleIDs {
		r, ok := m.rules[id]
		if !ok {
			continue
		}
		r.LastExecuted = &at
		r.ExecutionCount++
		m.rules[id] = r
	}

	m.plans[c.PlanID] = true
	return nil
}

// ListTransfers returns the newest transfers first. limit <= 0 means all.
func (m *MemoryStore) ListTransfers(_ context.Context, limit int) ([]TransferRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]TransferRecord, 0, len(m.transfers))
	for i := len(m.transfers) - 1; i >= 0; i-- {
		out = append(out, m.transfers[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Runs
// -----------------------------------------------------------------------------

func (m *MemoryStore) SaveRun(_ context.Context, run RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

// IsRunComplete reports whether a non-failed run exists for the period.
func (m *MemoryStore) IsRunComplete(_ context.Context, trigger funding.Trigger, periodKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.runs {
		if r.Trigger == trigger && r.PeriodKey == periodKey && r.Status != RunFailed {
			return true, nil
		}
	}
	return false, nil
}

// ListRuns returns the newest runs first. limit <= 0 means all.
func (m *MemoryStore) ListRuns(_ context.Context, limit int) ([]RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]RunRecord, 0, len(m.runs))
	for i := len(m.runs) - 1; i >= 0; i-- {
		out = append(out, m.runs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = make(map[string]funding.Rule)
	m.envelopes = make(map[string]funding.Envelope)
	m.envelopeOrder = nil
	m.cash = decimal.Zero
	m.transactions = nil
	m.transfers = nil
	m.plans = make(map[string]bool)
	m.runs = nil
	return nil
}
