/*
scheduler.go - Periodic driver for reconciliation and the daily swap

PURPOSE:
  Runs a background goroutine that, once per calendar day, (a) sweeps
  every active account for missed swap cycles and enqueues catch-ups,
  and (b) performs today's swap directly for every active account that
  has not swapped yet. The two are independent entry points into the
  engine: the direct sweep bypasses the queue entirely, reconciliation
  feeds it.

DESIGN:
  - Ticker with a short check interval (default 1 hour); actual work is
    deduplicated to once per UTC day, so a restart mid-day does not
    double-swap
  - Reconciliation runs before the direct sweep so catch-ups and today's
    swap land in one pass
  - Per-account failures are logged and counted, never fatal to a sweep

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether the scheduler is active (default: true)

USAGE:
  s := NewScheduler(accounts, engine, reconciler)
  s.Start()
  // ... later
  s.Stop()

SEE ALSO:
  - queue/reconcile.go: Missed-period math
  - handlers.go: Manual sweep endpoints
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/drip-labs/drip-engine/queue"
)

// DirectSweepResult aggregates one direct daily-swap pass.
type DirectSweepResult struct {
	Accounts int // active accounts examined
	Swapped  int // swaps performed
	Skipped  int // already swapped today
	Failed   int // swap attempts that errored
}

// Scheduler drives reconciliation and the daily swap.
type Scheduler struct {
	Accounts      queue.AccountRegistry
	Engine        *queue.Engine
	Reconciler    *queue.Reconciler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex // guards lifecycle (Start/Stop)

	// sweepMu guards lastSweepDay separately from the lifecycle lock:
	// Stop waits on the worker while holding mu, and the worker needs
	// to read and set the dedup state without deadlocking on it.
	sweepMu      sync.Mutex
	lastSweepDay time.Time
}

func NewScheduler(accounts queue.AccountRegistry, engine *queue.Engine, reconciler *queue.Reconciler) *Scheduler {
	return &Scheduler{
		Accounts:      accounts,
		Engine:        engine,
		Reconciler:    reconciler,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)
	go s.run()

	log.Printf("[Scheduler] Started with check interval: %v", s.CheckInterval)
}

// Stop stops the scheduler and waits for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	// Run immediately on start; catch-up after downtime must not wait
	// for the first tick.
	s.checkAndProcess()

	for {
		select {
		case <-s.ticker.C:
			s.checkAndProcess()
		case <-s.stop:
			return
		}
	}
}

func (s *Scheduler) checkAndProcess() {
	today := queue.Today()

	s.sweepMu.Lock()
	done := queue.SameDay(s.lastSweepDay, today)
	s.sweepMu.Unlock()
	if done {
		return
	}

	ctx := context.Background()
	log.Printf("[Scheduler] Daily sweep for %s", today.Format("2006-01-02"))

	rec, err := s.Reconciler.ReconcileAll(ctx)
	if err != nil {
		// Store outage; leave lastSweepDay unset so the next tick retries.
		log.Printf("[Scheduler] Reconciliation sweep failed: %v", err)
		return
	}
	if rec.Enqueued > 0 || rec.Failed > 0 {
		log.Printf("[Scheduler] Reconciliation: %d accounts, %d catch-ups enqueued, %d failed",
			rec.Accounts, rec.Enqueued, rec.Failed)
	}

	swept, err := s.DirectSweep(ctx)
	if err != nil {
		log.Printf("[Scheduler] Swap sweep failed: %v", err)
		return
	}
	log.Printf("[Scheduler] Swap sweep: %d swapped, %d skipped, %d failed",
		swept.Swapped, swept.Skipped, swept.Failed)

	s.sweepMu.Lock()
	s.lastSweepDay = today
	s.sweepMu.Unlock()
}

// DirectSweep performs today's swap for every active account that has
// not swapped today, invoking the swap executor directly without
// queuing. Per-account failures are counted, never fatal.
func (s *Scheduler) DirectSweep(ctx context.Context) (DirectSweepResult, error) {
	var res DirectSweepResult

	exec, err := s.Engine.Registry.Lookup(queue.TypeDailySwap)
	if err != nil {
		return res, err
	}

	accounts, err := s.Accounts.ListActive(ctx)
	if err != nil {
		return res, err
	}

	today := queue.Today()
	for _, acct := range accounts {
		res.Accounts++
		if !acct.LastSwapAt.IsZero() && queue.SameDay(acct.LastSwapAt, today) {
			res.Skipped++
			continue
		}
		if err := exec.Execute(ctx, acct.Address, queue.SwapPayload{Reason: "scheduled"}); err != nil {
			res.Failed++
			log.Printf("[Scheduler] Swap for %s failed: %v", acct.Address, err)
			continue
		}
		res.Swapped++
	}
	return res, nil
}

// RunNow triggers an immediate check (for testing/admin).
func (s *Scheduler) RunNow() {
	s.checkAndProcess()
}

// StatusDTO reports the scheduler's state for the admin surface.
func (s *Scheduler) StatusDTO() SchedulerStatusDTO {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	dto := SchedulerStatusDTO{
		Enabled:       s.Enabled,
		CheckInterval: s.CheckInterval.String(),
		NextCheckAt:   time.Now().Add(s.CheckInterval).Format(time.RFC3339),
	}
	if !s.lastSweepDay.IsZero() {
		dto.LastSweepDay = s.lastSweepDay.Format("2006-01-02")
	}
	return dto
}
