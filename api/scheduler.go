/*
scheduler.go - Scheduled funding trigger

PURPOSE:
  Periodically plans and applies the weekly, biweekly and monthly rules,
  once per trigger period.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each scheduled trigger has a period key for "now":
      weekly   ISO week        2025-W11
      biweekly two-week block  BW-0037 (blocks counted from 2024-01-01 UTC)
      monthly  calendar month  2025-03
  - A period with a recorded run is skipped
  - A period where no rule can act yet is left open: no rule is eligible,
    or every eligible rule computed zero (e.g. no cash yet). Rules gated to
    a later day (schedule_config), on a balance condition, or waiting for
    income fire on a later check in the same period
  - Every run is recorded for audit and UI display

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewFundingScheduler(store, service)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: CheckRuns endpoint (manual check)
  - budget/service.go: Preview / Apply
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/autofund/budget"
	"github.com/warp/autofund/funding"
)

// biweeklyEpoch anchors the two-week blocks. A Monday.
var biweeklyEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// scheduledTriggers are the triggers the scheduler owns.
var scheduledTriggers = []funding.Trigger{
	funding.TriggerWeekly,
	funding.TriggerBiweekly,
	funding.TriggerMonthly,
}

// FundingScheduler fires scheduled triggers once per period.
type FundingScheduler struct {
	Store         budget.RunStore
	Service       *budget.Service
	CheckInterval time.Duration
	Enabled       bool

	// Now is the clock. Overridable in tests.
	Now func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	// runMu serializes checks from the ticker and from RunNow.
	runMu sync.Mutex
}

// NewFundingScheduler creates a new scheduler.
func NewFundingScheduler(store budget.RunStore, svc *budget.Service) *FundingScheduler {
	return &FundingScheduler{
		Store:         store,
		Service:       svc,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Now:           func() time.Time { return time.Now().UTC() },
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (fs *FundingScheduler) Start() {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if !fs.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}
	if fs.ticker != nil {
		return
	}

	fs.ticker = time.NewTicker(fs.CheckInterval)
	fs.stop = make(chan struct{})
	fs.wg.Add(1)

	go fs.run()

	log.Printf("[Scheduler] Started with check interval: %v", fs.CheckInterval)
}

// Stop stops the scheduler.
func (fs *FundingScheduler) Stop() {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.ticker != nil {
		fs.ticker.Stop()
		close(fs.stop)
		fs.wg.Wait()
		fs.ticker = nil
		log.Println("[Scheduler] Stopped")
	}
}

func (fs *FundingScheduler) run() {
	defer fs.wg.Done()

	// Run immediately on start
	fs.checkAndProcess(context.Background())

	for {
		select {
		case <-fs.ticker.C:
			fs.checkAndProcess(context.Background())
		case <-fs.stop:
			return
		}
	}
}

// RunNow triggers an immediate check and returns the runs it recorded.
func (fs *FundingScheduler) RunNow(ctx context.Context) []budget.RunRecord {
	return fs.checkAndProcess(ctx)
}

// GetNextRunTime returns when the next scheduled check will occur.
func (fs *FundingScheduler) GetNextRunTime() time.Time {
	return fs.now().Add(fs.CheckInterval)
}

func (fs *FundingScheduler) checkAndProcess(ctx context.Context) []budget.RunRecord {
	fs.runMu.Lock()
	defer fs.runMu.Unlock()

	now := fs.now()
	var recorded []budget.RunRecord
	skipped := 0

	for _, trigger := range scheduledTriggers {
		key := PeriodKey(trigger, now)

		done, err := fs.Store.IsRunComplete(ctx, trigger, key)
		if err != nil {
			log.Printf("[Scheduler] Error checking %s %s: %v", trigger, key, err)
			continue
		}
		if done {
			skipped++
			continue
		}

		run, ok := fs.process(ctx, trigger, key, now)
		if !ok {
			continue
		}
		if err := fs.Store.SaveRun(ctx, run); err != nil {
			log.Printf("[Scheduler] Error saving run for %s %s: %v", trigger, key, err)
			continue
		}
		recorded = append(recorded, run)
	}

	if len(recorded) > 0 || skipped > 0 {
		log.Printf("[Scheduler] Completed: %d recorded, %d skipped (already done)", len(recorded), skipped)
	}
	return recorded
}

// process plans one trigger. ok is false when no rule can act yet (none is
// eligible, or every eligible rule computed zero) and the period should stay
// open.
func (fs *FundingScheduler) process(ctx context.Context, trigger funding.Trigger, key string, now time.Time) (budget.RunRecord, bool) {
	run := budget.RunRecord{
		ID:               uuid.NewString(),
		Trigger:          trigger,
		PeriodKey:        key,
		TotalTransferred: decimal.Zero,
		RanAt:            now,
	}

	preview, err := fs.Service.Preview(ctx, budget.PreviewInput{Trigger: trigger, Now: now})
	if err != nil {
		run.Status = budget.RunFailed
		run.Error = err.Error()
		log.Printf("[Scheduler] Error planning %s %s: %v", trigger, key, err)
		return run, true
	}

	plan := preview.Plan
	if len(plan.Transfers) == 0 && onlyZeroAmounts(plan.Errors) {
		return run, false
	}

	run.PlanID = preview.PlanID
	run.RulesExecuted = plan.RulesExecuted
	if len(plan.Errors) > 0 {
		msgs := make([]string, 0, len(plan.Errors))
		for _, e := range plan.Errors {
			msgs = append(msgs, e.Error())
		}
		run.Error = strings.Join(msgs, "; ")
	}

	if len(plan.Transfers) == 0 {
		run.Status = budget.RunSkipped
		return run, true
	}

	result, err := fs.Service.Apply(ctx, preview.PlanID)
	if err != nil {
		run.Status = budget.RunFailed
		run.Error = err.Error()
		log.Printf("[Scheduler] Error applying %s %s: %v", trigger, key, err)
		return run, true
	}

	run.Status = budget.RunCompleted
	run.TotalTransferred = result.TotalApplied
	log.Printf("[Scheduler] Processed %s %s: %d rules, %s transferred",
		trigger, key, run.RulesExecuted, run.TotalTransferred.StringFixed(2))
	return run, true
}

// onlyZeroAmounts reports whether every rule error just means there was
// nothing to move. An empty list counts.
func onlyZeroAmounts(errs []*funding.RuleError) bool {
	for _, e := range errs {
		if !errors.Is(e, funding.ErrZeroAmount) {
			return false
		}
	}
	return true
}

func (fs *FundingScheduler) now() time.Time {
	if fs.Now == nil {
		return time.Now().UTC()
	}
	return fs.Now()
}

// PeriodKey names the period of t for a scheduled trigger. Other triggers
// have no period and return "".
func PeriodKey(trigger funding.Trigger, t time.Time) string {
	t = t.UTC()
	switch trigger {
	case funding.TriggerWeekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case funding.TriggerBiweekly:
		return fmt.Sprintf("BW-%04d", biweeklyIndex(t))
	case funding.TriggerMonthly:
		return t.Format("2006-01")
	}
	return ""
}

// biweeklyIndex counts whole two-week blocks since biweeklyEpoch, rounding
// toward negative infinity for earlier dates.
func biweeklyIndex(t time.Time) int {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	days := int(day.Sub(biweeklyEpoch).Hours() / 24)
	if days < 0 {
		return (days - 13) / 14
	}
	return days / 14
}
