/*
reconcile.go - Missed-period catch-up

PURPOSE:
  Reconstructs the daily swaps an account should have received while the
  scheduler was not running, and enqueues one catch-up action per missed
  calendar day, bounded by Config.MaxCatchUpDays.

HOW MISSED DAYS ARE COUNTED:
  missed = clamp(daysSinceLastSwap - 1, 0, MaxCatchUpDays)

  The -1 is deliberate: the day of the last swap does not count as
  missed, and today's swap belongs to the direct sweep, not to catch-up.
  An account that swapped yesterday has missed nothing.

  Accounts that have never swapped anchor on their enrollment day
  instead, so a wallet enrolled while the scheduler was down still
  catches up.

RELATION TO THE DIRECT SWEEP:
  Reconciliation is not the only producer of daily swaps. The scheduler
  also runs a direct "swap now" sweep over active accounts that bypasses
  the queue entirely (see api/scheduler.go). The two coexist: the sweep
  covers today, reconciliation covers the gap.
*/
package queue

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Reconciler computes and enqueues missed daily swaps.
type Reconciler struct {
	Accounts AccountRegistry
	Engine   *Engine

	// Now is injectable for tests; defaults to Today.
	Now func() time.Time
}

func NewReconciler(accounts AccountRegistry, engine *Engine) *Reconciler {
	return &Reconciler{Accounts: accounts, Engine: engine, Now: Today}
}

// ReconcileAccount enqueues one catch-up swap per missed calendar day for
// the account and returns how many were enqueued. Inactive accounts are
// skipped (0, nil). Enqueueing feeds the threshold trigger, so a large
// gap typically executes immediately.
func (r *Reconciler) ReconcileAccount(ctx context.Context, accountID AccountID) (int, error) {
	acct, err := r.Accounts.GetAccount(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("reconcile %s: %w", accountID, err)
	}
	if !acct.Active {
		return 0, nil
	}

	anchor := acct.LastSwapAt
	if anchor.IsZero() {
		anchor = acct.EnrolledAt
	}
	if anchor.IsZero() {
		// Registry never populated the enrollment anchor; nothing to
		// measure against.
		return 0, nil
	}

	missed := DaysBetween(anchor, r.now()) - 1
	if missed <= 0 {
		return 0, nil
	}
	if max := r.Engine.Config.MaxCatchUpDays; missed > max {
		missed = max
	}

	for day := 1; day <= missed; day++ {
		_, err := r.Engine.Enqueue(ctx, accountID, SwapPayload{Reason: "missed_cycle", Day: day})
		if err != nil {
			return day - 1, fmt.Errorf("enqueue catch-up %d/%d for %s: %w", day, missed, accountID, err)
		}
	}
	return missed, nil
}

// SweepResult aggregates one reconciliation pass over all active accounts.
type SweepResult struct {
	Accounts int // accounts examined
	Enqueued int // catch-up actions enqueued
	Failed   int // accounts whose reconciliation errored
}

// ReconcileAll reconciles every active account. Failures are isolated per
// account: one bad account is logged and counted, never allowed to halt
// the sweep. Only listing the accounts themselves is fatal.
func (r *Reconciler) ReconcileAll(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	accounts, err := r.Accounts.ListActive(ctx)
	if err != nil {
		return res, fmt.Errorf("list active accounts: %w", err)
	}

	for _, acct := range accounts {
		res.Accounts++
		n, err := r.ReconcileAccount(ctx, acct.Address)
		if err != nil {
			res.Failed++
			log.Printf("[Reconcile] %s: %v", acct.Address, err)
			continue
		}
		res.Enqueued += n
	}
	return res, nil
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return Today()
}
