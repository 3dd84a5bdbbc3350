package budget

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/autofund/funding"
	"golang.org/x/sync/errgroup"
)

// DefaultLookback is how far back transactions are loaded for pattern conditions.
const DefaultLookback = 90 * 24 * time.Hour

// maxPendingPreviews bounds the previews kept for a later apply.
const maxPendingPreviews = 128

// Service orchestrates planning against live budget state.
//
// The engine never writes; the service is where an accepted plan turns into
// balance changes, and only through Store.CommitPlan.
type Service struct {
	Store   Store
	Planner *funding.Planner

	// DefaultIncome is the percentage base when a preview names no income.
	DefaultIncome decimal.Decimal

	// Lookback bounds the transaction history loaded into a snapshot.
	Lookback time.Duration

	// Now is the clock. Overridable in tests.
	Now func() time.Time

	mu      sync.Mutex
	pending map[string]*Preview
	applied map[string]bool
	order   []string
}

// NewService creates a service with the default lookback and a UTC clock.
func NewService(store Store, planner *funding.Planner) *Service {
	if planner == nil {
		planner = funding.NewPlanner()
	}
	return &Service{
		Store:         store,
		Planner:       planner,
		DefaultIncome: decimal.Zero,
		Lookback:      DefaultLookback,
		Now:           func() time.Time { return time.Now().UTC() },
		pending:       make(map[string]*Preview),
	}
}

// PreviewInput selects what to plan.
type PreviewInput struct {
	Trigger funding.Trigger

	// IncomeAmount overrides DefaultIncome as the percentage base.
	IncomeAmount *decimal.Decimal

	// Now overrides the service clock when non-zero.
	Now time.Time
}

// Preview is a plan plus everything needed to show it and apply it later.
type Preview struct {
	PlanID    string
	CreatedAt time.Time
	Context   funding.ExecutionContext
	Plan      *funding.ExecutionPlan
	Summary   funding.PlanSummary
	Impact    funding.TransferImpact
}

// ApplyResult describes a committed plan.
type ApplyResult struct {
	PlanID       string
	Transfers    int
	TotalApplied decimal.Decimal
	RulesUpdated int
	AppliedAt    time.Time
}

// RunResult is a preview and, when it moved money, its commit.
type RunResult struct {
	Preview *Preview
	Applied *ApplyResult
}

// IncomeInput describes a detected deposit.
type IncomeInput struct {
	Amount   decimal.Decimal
	Merchant string
	Category string
	At       time.Time
}

// =============================================================================
// SNAPSHOT / PREVIEW
// =============================================================================

// Snapshot loads the live budget as an execution context. The three reads
// run concurrently; a commit landing between them is caught later by the
// stale check in Apply.
func (s *Service) Snapshot(ctx context.Context, trigger funding.Trigger, now time.Time, income decimal.Decimal) (funding.ExecutionContext, error) {
	var (
		cash      decimal.Decimal
		envelopes []funding.Envelope
		txns      []funding.Transaction
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cash, err = s.Store.UnassignedCash(gCtx)
		if err != nil {
			return fmt.Errorf("load unassigned cash: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		envelopes, err = s.Store.ListEnvelopes(gCtx)
		if err != nil {
			return fmt.Errorf("load envelopes: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		txns, err = s.Store.RecentTransactions(gCtx, now.Add(-s.lookback()))
		if err != nil {
			return fmt.Errorf("load transactions: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return funding.ExecutionContext{}, err
	}

	return funding.ExecutionContext{
		Trigger: trigger,
		Now:     now,
		Data: funding.ContextData{
			UnassignedCash: cash,
			IncomeAmount:   income,
			Envelopes:      envelopes,
			Transactions:   txns,
		},
	}, nil
}

// Preview plans the stored rules against the live budget. Nothing is written;
// the preview is remembered so Apply can commit it by id.
func (s *Service) Preview(ctx context.Context, in PreviewInput) (*Preview, error) {
	now := in.Now
	if now.IsZero() {
		now = s.now()
	}
	income := s.DefaultIncome
	if in.IncomeAmount != nil {
		income = *in.IncomeAmount
	}

	execCtx, err := s.Snapshot(ctx, in.Trigger, now, income)
	if err != nil {
		return nil, err
	}
	rules, err := s.Store.ListRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	plan, err := s.Planner.CreateExecutionPlan(rules, execCtx)
	if err != nil {
		return nil, err
	}

	preview := &Preview{
		PlanID:    uuid.NewString(),
		CreatedAt: now,
		Context:   execCtx,
		Plan:      plan,
		Summary:   funding.GeneratePlanSummary(plan, execCtx.Data.Envelopes),
		Impact:    funding.CalculateTransferImpact(plan.Transfers, execCtx),
	}
	s.remember(preview)
	return preview, nil
}

// =============================================================================
// APPLY
// =============================================================================

// Apply commits a previewed plan. The plan is re-validated against the live
// budget first; if balances moved underneath it, a StalePlanError is returned
// and nothing is written.
func (s *Service) Apply(ctx context.Context, planID string) (*ApplyResult, error) {
	preview, ok := s.lookup(planID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, planID)
	}
	if s.wasApplied(planID) {
		return nil, fmt.Errorf("%w: %s", ErrDuplicatePlan, planID)
	}
	return s.apply(ctx, planID, preview.Plan)
}

func (s *Service) apply(ctx context.Context, planID string, plan *funding.ExecutionPlan) (*ApplyResult, error) {
	now := s.now()
	if len(plan.Transfers) == 0 {
		return &ApplyResult{PlanID: planID, TotalApplied: decimal.Zero, AppliedAt: now}, nil
	}

	live, err := s.Snapshot(ctx, plan.Trigger, now, decimal.Zero)
	if err != nil {
		return nil, err
	}
	if v := funding.ValidateTransfers(plan.Transfers, live); !v.IsValid {
		log.Printf("[Applier] Plan %s is stale: %v", planID, v.Errors)
		return nil, &StalePlanError{Errors: v.Errors}
	}

	ruleIDs := make([]string, 0, len(plan.Rules))
	for _, r := range plan.Rules {
		ruleIDs = append(ruleIDs, r.RuleID)
	}

	commit := Commit{PlanID: planID, Transfers: plan.Transfers, RuleIDs: ruleIDs, At: now}
	if err := s.Store.CommitPlan(ctx, commit); err != nil {
		return nil, fmt.Errorf("commit plan %s: %w", planID, err)
	}
	s.markApplied(planID)

	total := funding.TotalAmount(plan.Transfers)
	log.Printf("[Applier] Applied plan %s: %d transfers, %s total, %d rules",
		planID, len(plan.Transfers), total.StringFixed(2), len(ruleIDs))

	return &ApplyResult{
		PlanID:       planID,
		Transfers:    len(plan.Transfers),
		TotalApplied: total,
		RulesUpdated: len(ruleIDs),
		AppliedAt:    now,
	}, nil
}

// Run previews and immediately applies when the plan moves any cash.
func (s *Service) Run(ctx context.Context, in PreviewInput) (*RunResult, error) {
	preview, err := s.Preview(ctx, in)
	if err != nil {
		return nil, err
	}
	result := &RunResult{Preview: preview}
	if len(preview.Plan.Transfers) == 0 {
		return result, nil
	}

	applied, err := s.apply(ctx, preview.PlanID, preview.Plan)
	if err != nil {
		return result, err
	}
	result.Applied = applied
	return result, nil
}

// RecordIncome stores a deposit and runs the income_detected rules with the
// deposit as the percentage base.
func (s *Service) RecordIncome(ctx context.Context, in IncomeInput) (*RunResult, error) {
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: income amount must be positive", funding.ErrInvalidContext)
	}
	at := in.At
	if at.IsZero() {
		at = s.now()
	}
	merchant := in.Merchant
	if merchant == "" {
		merchant = "Income"
	}
	category := in.Category
	if category == "" {
		category = "Income"
	}

	txn := funding.Transaction{
		ID:         uuid.NewString(),
		Merchant:   merchant,
		Category:   category,
		Amount:     in.Amount,
		OccurredAt: at,
	}
	if err := s.Store.RecordIncome(ctx, txn); err != nil {
		return nil, fmt.Errorf("record income: %w", err)
	}

	amount := in.Amount
	return s.Run(ctx, PreviewInput{Trigger: funding.TriggerIncomeDetected, IncomeAmount: &amount, Now: at})
}

// =============================================================================
// RULES
// =============================================================================

// SaveRule validates and stores a rule, assigning an id and creation time
// when missing.
func (s *Service) SaveRule(ctx context.Context, rule funding.Rule) (funding.Rule, error) {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = s.now()
	}
	if errs := funding.ValidateRule(rule); len(errs) > 0 {
		return funding.Rule{}, &InvalidRuleError{RuleID: rule.ID, Errors: errs}
	}
	if err := s.Store.SaveRule(ctx, rule); err != nil {
		return funding.Rule{}, fmt.Errorf("save rule %s: %w", rule.ID, err)
	}
	return rule, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now()
}

func (s *Service) lookback() time.Duration {
	if s.Lookback <= 0 {
		return DefaultLookback
	}
	return s.Lookback
}

func (s *Service) remember(p *Preview) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		s.pending = make(map[string]*Preview)
	}
	s.pending[p.PlanID] = p
	s.order = append(s.order, p.PlanID)
	for len(s.order) > maxPendingPreviews {
		delete(s.pending, s.order[0])
		delete(s.applied, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *Service) markApplied(planID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applied == nil {
		s.applied = make(map[string]bool)
	}
	s.applied[planID] = true
}

func (s *Service) wasApplied(planID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applied[planID]
}

func (s *Service) lookup(planID string) (*Preview, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[planID]
	return p, ok
}

// Forget drops all remembered previews. Used after a reset.
func (s *Service) Forget() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = make(map[string]*Preview)
	s.applied = nil
	s.order = nil
}
