/*
engine.go - Batch execution and threshold triggering

PURPOSE:
  The Engine is the only write path over the action ledger. It appends
  actions, fires a synchronous batch run when an account's pending count
  reaches the configured threshold, and offers the two operator escape
  hatches: force-execute a whole batch, or execute one named action.

EXECUTION MODEL:
  Within one account, actions run strictly sequentially in creation order
  (the ledger side may care about nonce ordering). Across accounts there
  is no ordering guarantee and runs may proceed concurrently. A single
  action's failure never aborts its batch.

LOCKING:
  A per-account mutex serializes Enqueue, batch runs, and single-action
  execution for the same account. A cron tick and a manual "force batch"
  click racing on one account would otherwise interleave a read-modify-
  write over the same pending set.

SEE ALSO:
  - registry.go: Type dispatch
  - reconcile.go: The other producer of actions
*/
package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
)

// Engine coordinates the action ledger, the executor registry, and the
// threshold trigger.
type Engine struct {
	Store    Store
	Registry *Registry
	Config   Config

	mu    sync.Mutex
	locks map[AccountID]*sync.Mutex
}

func NewEngine(store Store, registry *Registry, cfg Config) *Engine {
	return &Engine{
		Store:    store,
		Registry: registry,
		Config:   cfg.Normalize(),
		locks:    make(map[AccountID]*sync.Mutex),
	}
}

// accountLock returns the mutex serializing work for one account,
// creating it on first use. Lock entries are never removed; the set of
// accounts is small and bounded by enrollment.
func (e *Engine) accountLock(id AccountID) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[id]
	if !ok {
		l = &sync.Mutex{}
		e.locks[id] = l
	}
	return l
}

// =============================================================================
// ENQUEUE + THRESHOLD TRIGGER
// =============================================================================

// Enqueue appends a new pending action and, if the account's pending count
// has reached Config.BatchThreshold, runs the batch synchronously before
// returning. Callers needing low latency on the append path should
// dispatch asynchronously; correctness does not depend on which they pick.
func (e *Engine) Enqueue(ctx context.Context, accountID AccountID, payload Payload) (Action, error) {
	if payload == nil {
		return Action{}, fmt.Errorf("enqueue for %s: nil payload", accountID)
	}

	l := e.accountLock(accountID)
	l.Lock()
	defer l.Unlock()

	a := NewAction(accountID, payload)
	if err := e.Store.Append(ctx, a); err != nil {
		return Action{}, fmt.Errorf("enqueue %s for %s: %w", a.Type, accountID, err)
	}

	pending, err := e.Store.ListPending(ctx, accountID)
	if err != nil {
		return a, fmt.Errorf("count pending for %s: %w", accountID, err)
	}
	if len(pending) >= e.Config.BatchThreshold {
		log.Printf("[Batch] Threshold reached for %s (%d pending), executing", accountID, len(pending))
		if _, err := e.runBatchLocked(ctx, accountID); err != nil {
			return a, err
		}
	}
	return a, nil
}

// =============================================================================
// BATCH EXECUTION
// =============================================================================

// RunBatch executes every pending action for the account in creation
// order, then prunes history. An empty queue is a no-op, not an error.
func (e *Engine) RunBatch(ctx context.Context, accountID AccountID) (BatchResult, error) {
	l := e.accountLock(accountID)
	l.Lock()
	defer l.Unlock()
	return e.runBatchLocked(ctx, accountID)
}

// ForceBatch is RunBatch for operators: it exists so the admin surface
// reads as an explicit threshold bypass, and its result's String()
// distinguishes "no pending actions" from "N actions executed".
func (e *Engine) ForceBatch(ctx context.Context, accountID AccountID) (BatchResult, error) {
	return e.RunBatch(ctx, accountID)
}

func (e *Engine) runBatchLocked(ctx context.Context, accountID AccountID) (BatchResult, error) {
	var result BatchResult

	pending, err := e.Store.ListPending(ctx, accountID)
	if err != nil {
		return result, fmt.Errorf("load pending for %s: %w", accountID, err)
	}
	if len(pending) == 0 {
		return result, nil
	}

	for _, a := range pending {
		// Cooperative cancellation between actions; a half-finished
		// batch leaves the remainder pending for the next run.
		if err := ctx.Err(); err != nil {
			return result, err
		}

		ok, err := e.executeAndRecord(ctx, a)
		if err != nil {
			// Store-level failure while recording the outcome aborts
			// the batch; the ledger state is no longer trustworthy.
			return result, err
		}
		if ok {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}

	if err := e.Store.Prune(ctx, accountID, e.Config.KeepHistory); err != nil {
		return result, fmt.Errorf("prune %s: %w", accountID, err)
	}

	log.Printf("[Batch] %s: %s", accountID, result)
	return result, nil
}

// executeAndRecord runs one action through the registry and records the
// outcome. Returns (succeeded, storeError). Executor failures are
// recorded on the action and reported as succeeded=false, never as an
// error: a single action must not abort its batch.
func (e *Engine) executeAndRecord(ctx context.Context, a Action) (bool, error) {
	execErr := e.dispatch(ctx, a)
	if execErr == nil {
		if err := e.Store.UpdateStatus(ctx, a.AccountID, a.ID, StatusCompleted, ""); err != nil {
			return false, fmt.Errorf("record completion of %s: %w", a.ID, err)
		}
		return true, nil
	}

	log.Printf("[Batch] Action %s (%s) failed: %v", a.ID, a.Type, execErr)
	if err := e.Store.UpdateStatus(ctx, a.AccountID, a.ID, StatusFailed, execErr.Error()); err != nil {
		return false, fmt.Errorf("record failure of %s: %w", a.ID, err)
	}
	return false, nil
}

// dispatch resolves the executor and invokes it under the per-action
// timeout. Ledger calls can block on network and consensus confirmation;
// the timeout converts an indefinite hang into a recorded failure.
func (e *Engine) dispatch(ctx context.Context, a Action) error {
	exec, err := e.Registry.Lookup(a.Type)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnsupportedActionType, a.Type)
	}

	execCtx, cancel := context.WithTimeout(ctx, e.Config.ActionTimeout)
	defer cancel()

	err = exec.Execute(execCtx, a.AccountID, a.Payload)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("timed out after %s: %w", e.Config.ActionTimeout, err)
	}
	return err
}

// =============================================================================
// SINGLE-ACTION EXECUTION
// =============================================================================

// ExecuteSingle executes exactly one named pending action through the
// same dispatch and status-update path as a batch, without touching any
// other pending action. Returns ErrActionNotFound if the id does not
// exist for the account and ErrAlreadyProcessed if it is terminal.
func (e *Engine) ExecuteSingle(ctx context.Context, accountID AccountID, id ActionID) error {
	l := e.accountLock(accountID)
	l.Lock()
	defer l.Unlock()

	pending, err := e.Store.ListPending(ctx, accountID)
	if err != nil {
		return fmt.Errorf("load pending for %s: %w", accountID, err)
	}

	for _, a := range pending {
		if a.ID != id {
			continue
		}
		_, err := e.executeAndRecord(ctx, a)
		return err
	}

	// Not pending: distinguish "already processed" from "never existed".
	all, err := e.Store.List(ctx, accountID)
	if err != nil {
		return fmt.Errorf("load actions for %s: %w", accountID, err)
	}
	for _, a := range all {
		if a.ID == id {
			return fmt.Errorf("action %s: %w", id, ErrAlreadyProcessed)
		}
	}
	return fmt.Errorf("action %s: %w", id, ErrActionNotFound)
}

// =============================================================================
// STATUS
// =============================================================================

// Status summarizes the account's queue for the admin surface.
func (e *Engine) Status(ctx context.Context, accountID AccountID) (QueueStatus, error) {
	all, err := e.Store.List(ctx, accountID)
	if err != nil {
		return QueueStatus{}, fmt.Errorf("load actions for %s: %w", accountID, err)
	}

	var s QueueStatus
	s.Total = len(all)
	for _, a := range all {
		switch a.Status {
		case StatusPending:
			s.Pending++
		case StatusCompleted:
			s.Completed++
		case StatusFailed:
			s.Failed++
		}
	}
	s.CanTriggerBatch = s.Pending >= e.Config.BatchThreshold
	return s, nil
}
